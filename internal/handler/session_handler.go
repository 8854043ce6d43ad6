// Package handler 提供 HTTP 请求处理器
// 本文件处理毕设会话相关的 API 请求
package handler

import (
	"fyp_chat_server/internal/dto/request"
	"fyp_chat_server/internal/service"

	"github.com/gin-gonic/gin"
)

// SessionHandler 会话请求处理器
type SessionHandler struct {
	sessionSvc service.SessionService
}

// NewSessionHandler 创建会话处理器实例
func NewSessionHandler(sessionSvc service.SessionService) *SessionHandler {
	return &SessionHandler{sessionSvc: sessionSvc}
}

// OpenSession 打开（或创建）学生-导师会话
// POST /session/open
// 请求体: request.OpenSessionRequest
// 响应: respond.SessionRespond
func (h *SessionHandler) OpenSession(c *gin.Context) {
	var req request.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.sessionSvc.OpenSession(c.GetString("user_id"), req)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// GetSessionList 获取当前用户参与的会话列表
// GET /session/list
func (h *SessionHandler) GetSessionList(c *gin.Context) {
	data, err := h.sessionSvc.GetSessionList(c.GetString("user_id"))
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}
