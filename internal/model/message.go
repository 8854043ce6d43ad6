// Package model 定义数据库实体模型
// 本文件定义消息模型，用于存储会话消息及其已读回执
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
)

// ReadBySet 已读回执集合，持久化为 JSON 字符串数组
// 集合只增不减：AddReader 对已存在的读者是安全的空操作
type ReadBySet []string

// Contains 判断 userId 是否已在集合中
func (s ReadBySet) Contains(userId string) bool {
	for _, id := range s {
		if id == userId {
			return true
		}
	}
	return false
}

// Add 返回加入 userId 后的集合；已存在时原样返回
func (s ReadBySet) Add(userId string) ReadBySet {
	if s.Contains(userId) {
		return s
	}
	return append(s, userId)
}

// Value 实现 driver.Valuer，写库时序列化为 JSON
func (s ReadBySet) Value() (driver.Value, error) {
	if s == nil {
		s = ReadBySet{}
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现 sql.Scanner，读库时从 JSON 还原
func (s *ReadBySet) Scan(value interface{}) error {
	if value == nil {
		*s = ReadBySet{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("read_by: unsupported column type %T", value)
	}
	if len(data) == 0 {
		*s = ReadBySet{}
		return nil
	}
	return json.Unmarshal(data, s)
}

// Message 消息模型
// 对应数据库 message 表
// 存储文本、语音、文件、系统等所有类型的会话消息
type Message struct {
	gorm.Model

	// Uuid 消息唯一标识
	// 使用雪花算法生成的 int64 类型 ID，服务端落库时分配
	Uuid int64 `gorm:"column:uuid;uniqueIndex;type:bigint;not null;comment:消息雪花ID"`

	// SessionId 会话 UUID
	// 关联到 FypSession 表，标识消息属于哪个会话
	SessionId string `gorm:"column:session_id;index;type:char(40);not null;comment:会话uuid"`

	// Kind 消息种类
	// 0=文本，1=语音，2=文件，3=系统
	// 参见 pkg/enum/message/message_kind_enum
	Kind int8 `gorm:"column:kind;not null;comment:消息种类，0.文本，1.语音，2.文件，3.系统"`

	// Content 消息文本内容
	// 文本消息存储实际内容，其他类型可能为空
	Content string `gorm:"column:content;type:TEXT;comment:消息内容"`

	// Url 资源 URL
	// 语音和文件消息先写入对象存储，这里只保存可访问链接
	Url string `gorm:"column:url;type:char(255);comment:消息url"`

	// SendId 发送者 UUID
	SendId string `gorm:"column:send_id;index;type:char(36);not null;comment:发送者uuid"`

	// SendName 发送者昵称
	// 冗余存储，避免每次查询消息时都要关联用户表
	SendName string `gorm:"column:send_name;type:varchar(30);not null;comment:发送者昵称"`

	// SendAvatar 发送者头像
	SendAvatar string `gorm:"column:send_avatar;type:varchar(255);comment:发送者头像"`

	// Duration 语音时长（秒），仅语音消息使用
	Duration int `gorm:"column:duration;comment:语音时长(秒)"`

	// FileType 文件 MIME 类型，如 "audio/webm"
	FileType string `gorm:"column:file_type;type:char(50);comment:文件类型"`

	// FileName 文件名
	FileName string `gorm:"column:file_name;type:varchar(80);comment:文件名"`

	// FileSize 文件大小（字节）
	FileSize int64 `gorm:"column:file_size;comment:文件大小"`

	// ReadBy 已读回执集合
	// 创建时仅含发送者自己；只增不减
	ReadBy ReadBySet `gorm:"column:read_by;type:text;comment:已读回执"`
}

// TableName 指定表名
func (Message) TableName() string {
	return "message"
}

// ReadByOther 判断消息是否已被发送者以外的参与者读过
// 这是"双勾"展示的唯一判据
func (m *Message) ReadByOther() bool {
	for _, id := range m.ReadBy {
		if id != m.SendId {
			return true
		}
	}
	return false
}
