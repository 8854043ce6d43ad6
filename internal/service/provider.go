// Package service 提供业务逻辑层
// 本文件实现 Service 层的依赖注入和聚合
package service

import (
	"fyp_chat_server/internal/dao/mysql/repository"
	myredis "fyp_chat_server/internal/dao/redis"
	"fyp_chat_server/internal/infrastructure/storage"
	"fyp_chat_server/internal/service/chat"
	"fyp_chat_server/internal/service/message"
	"fyp_chat_server/internal/service/session"
	"fyp_chat_server/internal/service/user"
)

// Services 聚合所有 Service 实例
// 作为依赖注入的入口，Handler 层通过 service.Svc 访问各个 Service
type Services struct {
	User    UserService    // 用户 Service
	Session SessionService // 会话 Service
	Message MessageService // 消息 Service
}

// NewServices 创建并注入所有 Service 实例
// 依赖注入流程：
//  1. 接收 Repository 聚合、缓存、对象存储与话题注册表
//  2. 创建各个 Service 实例，注入依赖
//  3. 返回 Services 聚合
func NewServices(
	repos *repository.Repositories,
	cache myredis.AsyncCacheService,
	store storage.ObjectStorage,
	hub *chat.Hub,
) *Services {
	userSvc := user.NewUserService(repos, cache)
	sessionSvc := session.NewSessionService(repos)
	messageSvc := message.NewMessageService(repos, cache, store, hub)

	return &Services{
		User:    userSvc,
		Session: sessionSvc,
		Message: messageSvc,
	}
}

// Svc 全局 Services 实例
// Handler 层通过 service.Svc.Message.SendMessage() 等方式调用
var Svc *Services

// InitServices 初始化全局 Services 实例
// 应在 main.go 中调用，在 Repository 初始化之后
func InitServices(
	repos *repository.Repositories,
	cache myredis.AsyncCacheService,
	store storage.ObjectStorage,
	hub *chat.Hub,
) {
	Svc = NewServices(repos, cache, store, hub)
}
