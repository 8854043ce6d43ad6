// Package handler 提供 HTTP 请求处理器
// 本文件处理 WebSocket 连接相关的 API 请求
package handler

import (
	"fyp_chat_server/internal/service"
	"fyp_chat_server/internal/service/chat"
	"fyp_chat_server/pkg/errorx"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WsHandler WebSocket 请求处理器
// 升级前先做会话参与者校验，非参与者不允许加入话题
type WsHandler struct {
	hub        *chat.Hub
	sessionSvc service.SessionService
}

// NewWsHandler 创建 WebSocket 处理器实例
func NewWsHandler(hub *chat.Hub, sessionSvc service.SessionService) *WsHandler {
	return &WsHandler{hub: hub, sessionSvc: sessionSvc}
}

// Connect 升级 HTTP 连接为 WebSocket 并加入会话话题
// GET /ws?sessionId=xxx&token=xxx
// 功能:
//   - 校验调用者是会话参与者
//   - 升级连接并注册到话题，开始事件收发
func (h *WsHandler) Connect(c *gin.Context) {
	userId := c.GetString("user_id")
	role, _ := c.MustGet("user_role").(int8)
	sessionId := c.Query("sessionId")
	if sessionId == "" {
		zap.L().Error("sessionId获取失败")
		HandleError(c, errorx.ErrInvalidParam)
		return
	}
	if _, err := h.sessionSvc.CheckParticipant(sessionId, userId); err != nil {
		HandleError(c, err)
		return
	}
	chat.NewMemberInit(c, h.hub, userId, role, sessionId)
}
