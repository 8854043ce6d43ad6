// Package model 定义数据库实体模型
// 本文件定义毕设会话模型：一条毕设指导记录对应一个学生-导师双人会话
package model

import (
	"database/sql"

	"gorm.io/gorm"
)

// FypSession 毕设会话模型
// 对应数据库 fyp_session 表
// 参与者对 (StudentId, SupervisorId) 在会话创建后不可变更，代码中不提供更新操作
type FypSession struct {
	gorm.Model

	// Uuid 会话唯一标识
	// 格式：S + UUID
	Uuid string `gorm:"column:uuid;uniqueIndex;type:char(40);comment:会话uuid"`

	// StudentId 学生 UUID
	StudentId string `gorm:"column:student_id;index;type:char(36);not null;comment:学生uuid"`

	// SupervisorId 导师 UUID
	SupervisorId string `gorm:"column:supervisor_id;index;type:char(36);not null;comment:导师uuid"`

	// ProjectTitle 毕设课题名称
	// 冗余存储，用于会话列表展示
	ProjectTitle string `gorm:"column:project_title;type:varchar(120);comment:课题名称"`

	// LastMessage 最新消息内容摘要
	LastMessage string `gorm:"column:last_message;type:TEXT;comment:最新的消息"`

	// LastMessageAt 最后消息时间
	// 用于会话列表排序（最近聊天的排在前面）
	LastMessageAt sql.NullTime `gorm:"column:last_message_at;type:datetime;comment:最近消息时间"`
}

// TableName 指定表名
func (FypSession) TableName() string {
	return "fyp_session"
}

// Counterpart 返回 userId 在本会话中的对端参与者
// userId 不属于本会话时返回空串
func (s *FypSession) Counterpart(userId string) string {
	switch userId {
	case s.StudentId:
		return s.SupervisorId
	case s.SupervisorId:
		return s.StudentId
	}
	return ""
}

// HasParticipant 判断 userId 是否为本会话参与者
func (s *FypSession) HasParticipant(userId string) bool {
	return userId == s.StudentId || userId == s.SupervisorId
}
