// Package handler 提供 HTTP 请求处理器
// 本文件处理消息历史、发送、已读回执与语音上传
package handler

import (
	"fyp_chat_server/internal/dto/request"
	"fyp_chat_server/internal/service"
	"fyp_chat_server/pkg/errorx"

	"github.com/gin-gonic/gin"
)

// MessageHandler 消息请求处理器
type MessageHandler struct {
	messageSvc service.MessageService
}

// NewMessageHandler 创建消息处理器实例
func NewMessageHandler(messageSvc service.MessageService) *MessageHandler {
	return &MessageHandler{messageSvc: messageSvc}
}

// GetMessageList 获取会话全部消息
// GET /message/list?sessionId=xxx
// 响应: []respond.MessageRespond（服务端时间升序）
func (h *MessageHandler) GetMessageList(c *gin.Context) {
	var req request.GetMessageListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.messageSvc.GetMessageList(c.GetString("user_id"), req.SessionId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// SendMessage 发送消息
// POST /message/send
// 请求体: request.SendMessageRequest
// 响应: respond.MessageRespond（服务端已落库的视图）
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req request.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.messageSvc.SendMessage(c.GetString("user_id"), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// MarkRead 提交已读回执
// POST /message/markRead
// 重复提交是安全的空操作
func (h *MessageHandler) MarkRead(c *gin.Context) {
	var req request.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.messageSvc.MarkRead(c.GetString("user_id"), req.MessageId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// UploadVoice 上传语音附件
// POST /message/uploadVoice (multipart: sessionId + voice)
// 响应: {"url": "..."}，前端拿到 URL 后再调 SendMessage
func (h *MessageHandler) UploadVoice(c *gin.Context) {
	sessionId := c.PostForm("sessionId")
	if sessionId == "" {
		HandleError(c, errorx.ErrInvalidParam)
		return
	}
	fileHeader, err := c.FormFile("voice")
	if err != nil {
		// 没有附件按空录音处理
		HandleError(c, errorx.ErrEmptyRecording)
		return
	}
	url, err := h.messageSvc.UploadVoiceNote(c.GetString("user_id"), sessionId, fileHeader)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, gin.H{"url": url})
}
