// Package router 提供 HTTP 路由注册
// 本文件定义认证相关的路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterAuthRoutes 注册认证相关路由（公开接口，无需认证）
func (rt *Router) RegisterAuthRoutes(r *gin.Engine) {
	authGroup := r.Group("/auth")
	{
		// POST /auth/register - 注册
		authGroup.POST("/register", rt.handlers.Auth.Register)
		// POST /auth/login - 密码登录
		authGroup.POST("/login", rt.handlers.Auth.Login)
		// POST /auth/refresh - 使用 Refresh Token 换取新的 Access Token
		authGroup.POST("/refresh", rt.handlers.Auth.RefreshToken)
	}
}
