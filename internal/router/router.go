// Package router 提供 HTTP 路由注册
// 本文件是路由注册的入口，聚合所有子模块的路由
package router

import (
	"github.com/gin-gonic/gin"

	"fyp_chat_server/internal/handler"
	"fyp_chat_server/internal/infrastructure/middleware"
)

// Router 路由管理器，持有 Handler 聚合
type Router struct {
	handlers *handler.Handlers
}

// NewRouter 创建路由管理器
func NewRouter(handlers *handler.Handlers) *Router {
	return &Router{handlers: handlers}
}

// RegisterRoutes 注册所有路由
// 在 https_server.Init() 中调用
// 除认证与静态资源外的接口统一走 JWT 中间件
func (rt *Router) RegisterRoutes(r *gin.Engine) {
	rt.RegisterAuthRoutes(r)   // 认证路由（注册/登录/Token 刷新）
	rt.RegisterStaticRoutes(r) // 语音附件与监控指标

	authed := r.Group("")
	authed.Use(middleware.JWTAuth())
	{
		rt.RegisterUserRoutes(authed)      // 用户路由
		rt.RegisterSessionRoutes(authed)   // 会话路由
		rt.RegisterMessageRoutes(authed)   // 消息路由
		rt.RegisterWebSocketRoutes(authed) // WebSocket 路由
	}
}
