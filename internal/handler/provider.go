// Package handler 提供 HTTP 请求处理器
// 本文件定义 Handler 聚合结构和构造函数
// 遵循依赖倒置原则，通过构造函数注入 Service 依赖
package handler

import (
	"fyp_chat_server/internal/infrastructure/storage"
	"fyp_chat_server/internal/service"
	"fyp_chat_server/internal/service/chat"
)

// Handlers 聚合所有 Handler 实例
// 作为依赖注入的入口，Router 层通过此结构访问各个 Handler
type Handlers struct {
	Auth      *AuthHandler
	User      *UserHandler
	Session   *SessionHandler
	Message   *MessageHandler
	Ws        *WsHandler
	VoiceNote *VoiceNoteHandler
}

// NewHandlers 创建并注入所有 Handler 实例
// 依赖注入流程：
//  1. 接收 Services 聚合、话题注册表与对象存储
//  2. 创建各个 Handler 实例，注入对应依赖
//  3. 返回 Handlers 聚合
func NewHandlers(svc *service.Services, hub *chat.Hub, store storage.ObjectStorage) *Handlers {
	return &Handlers{
		Auth:      NewAuthHandler(svc.User),
		User:      NewUserHandler(svc.User),
		Session:   NewSessionHandler(svc.Session),
		Message:   NewMessageHandler(svc.Message),
		Ws:        NewWsHandler(hub, svc.Session),
		VoiceNote: NewVoiceNoteHandler(store),
	}
}
