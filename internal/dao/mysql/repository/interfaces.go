// Package repository 定义数据访问层接口和聚合结构
// 采用 Repository 模式将数据访问逻辑与业务逻辑分离
// 所有 Repository 接口在此文件定义，具体实现在各自的文件中
package repository

import (
	"time"

	"fyp_chat_server/internal/model"

	"gorm.io/gorm"
)

// UserRepository 用户数据访问接口
type UserRepository interface {
	// FindByUuid 根据 UUID 查找用户
	FindByUuid(uuid string) (*model.UserInfo, error)
	// FindByEmail 根据邮箱查找用户
	FindByEmail(email string) (*model.UserInfo, error)
	// FindByUuids 批量根据 UUID 查找用户
	FindByUuids(uuids []string) ([]model.UserInfo, error)
	// Create 创建新用户
	Create(user *model.UserInfo) error
	// UpdateLastSeen 写入最近在线时间（心跳）
	UpdateLastSeen(uuid string, at time.Time) error
}

// SessionRepository 会话数据访问接口
// 毕设会话的参与者对创建后不可变更，因此没有更新参与者的操作
type SessionRepository interface {
	// FindByUuid 根据 UUID 查找会话
	FindByUuid(uuid string) (*model.FypSession, error)
	// FindByParticipants 根据学生和导师查找会话
	FindByParticipants(studentId, supervisorId string) (*model.FypSession, error)
	// FindByParticipant 查找用户参与的所有会话，按最近消息时间倒序
	FindByParticipant(userId string) ([]model.FypSession, error)
	// Create 创建新会话
	Create(session *model.FypSession) error
	// UpdateLastMessage 更新会话的最新消息摘要
	UpdateLastMessage(uuid string, content string, at time.Time) error
}

// MessageRepository 消息数据访问接口
type MessageRepository interface {
	// FindBySessionId 按会话查找全部消息，按创建时间升序（同刻按雪花 ID）
	FindBySessionId(sessionId string) ([]model.Message, error)
	// FindByUuid 根据雪花 ID 查找消息
	FindByUuid(uuid int64) (*model.Message, error)
	// Create 创建消息（全有或全无的单行插入）
	Create(message *model.Message) error
	// UpdateReadBy 覆写已读回执集合
	// 调用方保证新集合只增不减
	UpdateReadBy(uuid int64, readBy model.ReadBySet) error
}

// ==================== Repository 聚合 ====================

// Repositories 聚合所有 Repository 实例
// 作为依赖注入的入口，Service 层通过此结构访问数据层
type Repositories struct {
	db      *gorm.DB          // GORM 数据库实例
	User    UserRepository    // 用户 Repository
	Session SessionRepository // 会话 Repository
	Message MessageRepository // 消息 Repository
}

// NewRepositories 创建所有 Repository 实例
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		db:      db,
		User:    NewUserRepository(db),
		Session: NewSessionRepository(db),
		Message: NewMessageRepository(db),
	}
}

// Transaction 在数据库事务中执行函数
// 事务内的所有操作要么全部成功，要么全部回滚
func (r *Repositories) Transaction(fn func(txRepos *Repositories) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}
