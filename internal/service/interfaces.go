// Package service 定义业务层接口
// 本文件定义所有 Service 接口，供 Handler 层调用
// 接口设计遵循依赖倒置原则，便于测试和解耦
package service

import (
	"mime/multipart"

	"fyp_chat_server/internal/dto/request"
	"fyp_chat_server/internal/dto/respond"
	"fyp_chat_server/internal/model"
)

// UserService 用户业务接口
// 处理学生/导师的注册、登录、资料与在线状态查询
type UserService interface {
	// Register 用户注册
	Register(req request.RegisterRequest) (*respond.RegisterRespond, error)
	// Login 密码登录
	Login(req request.LoginRequest) (*respond.LoginRespond, error)
	// RefreshToken 用 Refresh Token 换取新的 Access Token
	RefreshToken(refreshToken string) (string, error)
	// GetUserInfo 获取单个用户资料
	GetUserInfo(uuid string) (*respond.GetUserInfoRespond, error)
	// GetLastSeen 查询用户最近在线时间
	GetLastSeen(userId string) (*respond.LastSeenRespond, error)
	// Heartbeat 刷新用户最近在线时间
	Heartbeat(userId string) error
}

// SessionService 会话业务接口
// 学生与导师的毕设会话：已存在直接返回，不存在则创建
type SessionService interface {
	// OpenSession 打开（或创建）学生-导师会话，operatorId 必须是参与者之一
	OpenSession(operatorId string, req request.OpenSessionRequest) (*respond.SessionRespond, error)
	// GetSessionList 获取用户参与的会话列表，按最近消息时间倒序
	GetSessionList(userId string) ([]respond.SessionRespond, error)
	// CheckParticipant 校验用户是否为会话参与者，是则返回会话
	CheckParticipant(sessionId, userId string) (*model.FypSession, error)
}

// MessageService 消息业务接口
// 消息历史、发送、已读回执与语音附件上传
type MessageService interface {
	// GetMessageList 获取会话全部消息，按服务端时间升序
	GetMessageList(userId, sessionId string) ([]respond.MessageRespond, error)
	// SendMessage 写入一条消息并向会话话题广播
	SendMessage(userId string, req request.SendMessageRequest) (*respond.MessageRespond, error)
	// MarkRead 将 userId 加入消息的已读名单并广播变更
	MarkRead(userId, messageId string) (*respond.MessageRespond, error)
	// UploadVoiceNote 保存语音附件，返回可访问 URL
	UploadVoiceNote(userId, sessionId string, fileHeader *multipart.FileHeader) (string, error)
}
