package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterUserRoutes 注册用户相关路由（需要认证）
func (rt *Router) RegisterUserRoutes(rg *gin.RouterGroup) {
	userGroup := rg.Group("/user")
	{
		userGroup.GET("/info", rt.handlers.User.GetUserInfo)     // 当前用户资料
		userGroup.POST("/heartbeat", rt.handlers.User.Heartbeat) // HTTP 心跳兜底
		userGroup.GET("/lastSeen", rt.handlers.User.GetLastSeen) // 查询最近在线时间
	}
}
