// Package router 提供 HTTP 路由注册
// 本文件定义消息相关的路由
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterMessageRoutes 注册消息相关路由（需要认证）
// 包括消息历史查询、发送、已读回执与语音上传
func (rt *Router) RegisterMessageRoutes(rg *gin.RouterGroup) {
	messageGroup := rg.Group("/message")
	{
		messageGroup.GET("/list", rt.handlers.Message.GetMessageList)      // 获取会话消息记录
		messageGroup.POST("/send", rt.handlers.Message.SendMessage)        // 发送消息
		messageGroup.POST("/markRead", rt.handlers.Message.MarkRead)       // 已读回执
		messageGroup.POST("/uploadVoice", rt.handlers.Message.UploadVoice) // 上传语音附件
	}
}
