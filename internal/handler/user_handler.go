// Package handler 提供 HTTP 请求处理器
// 本文件处理用户资料与在线状态相关的 API 请求
package handler

import (
	"fyp_chat_server/internal/dto/request"
	"fyp_chat_server/internal/service"
	"fyp_chat_server/pkg/errorx"

	"github.com/gin-gonic/gin"
)

// UserHandler 用户请求处理器
type UserHandler struct {
	userSvc service.UserService
}

// NewUserHandler 创建用户处理器实例
func NewUserHandler(userSvc service.UserService) *UserHandler {
	return &UserHandler{userSvc: userSvc}
}

// GetUserInfo 获取当前登录用户的资料
// GET /user/info
func (h *UserHandler) GetUserInfo(c *gin.Context) {
	userId := c.GetString("user_id")
	data, err := h.userSvc.GetUserInfo(userId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// Heartbeat 上报在线心跳
// POST /user/heartbeat
// WebSocket 不可用时前端退化为 HTTP 心跳
func (h *UserHandler) Heartbeat(c *gin.Context) {
	userId := c.GetString("user_id")
	if err := h.userSvc.Heartbeat(userId); err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, nil)
}

// GetLastSeen 查询指定用户的最近在线时间
// GET /user/lastSeen?userId=xxx
func (h *UserHandler) GetLastSeen(c *gin.Context) {
	var req request.GetLastSeenRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	if req.UserId == "" {
		HandleError(c, errorx.ErrInvalidParam)
		return
	}
	data, err := h.userSvc.GetLastSeen(req.UserId)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}
