package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterSessionRoutes 注册会话相关路由（需要认证）
func (rt *Router) RegisterSessionRoutes(rg *gin.RouterGroup) {
	sessionGroup := rg.Group("/session")
	{
		sessionGroup.POST("/open", rt.handlers.Session.OpenSession)    // 打开（或创建）会话
		sessionGroup.GET("/list", rt.handlers.Session.GetSessionList) // 会话列表
	}
}
