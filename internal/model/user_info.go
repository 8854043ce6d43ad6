// Package model 定义数据库实体模型
// 本文件定义用户信息模型，包含学生/导师的基本资料和认证信息
package model

import (
	"database/sql"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// 用户角色
const (
	RoleStudent    int8 = 0 // 学生
	RoleSupervisor int8 = 1 // 导师
)

// RoleName 角色的可读名称，用于日志展示
func RoleName(role int8) string {
	switch role {
	case RoleStudent:
		return "student"
	case RoleSupervisor:
		return "supervisor"
	default:
		return "unknown"
	}
}

// UserInfo 用户信息模型
// 对应数据库 user_info 表
type UserInfo struct {
	gorm.Model // 内嵌 GORM 模型，包含 ID、CreatedAt、UpdatedAt、DeletedAt

	// Uuid 用户唯一标识
	// 格式：U + 随机串，如 "U2024010412345678"
	Uuid string `gorm:"column:uuid;uniqueIndex;type:char(36);comment:用户唯一id"`

	// Nickname 用户昵称
	Nickname string `gorm:"column:nickname;type:varchar(30);not null;comment:昵称"`

	// Email 邮箱地址，用于登录
	Email string `gorm:"column:email;index;type:char(50);not null;comment:邮箱"`

	// Avatar 用户头像 URL
	Avatar string `gorm:"column:avatar;type:char(255);default:/static/avatars/default.png;not null;comment:头像"`

	// Role 角色，0=学生，1=导师
	Role int8 `gorm:"column:role;not null;comment:角色，0.学生，1.导师"`

	// Password 密码（已哈希）
	// 存储 bcrypt 哈希后的密码，不存储明文
	Password string `gorm:"column:password;type:varchar(100);not null;comment:密码"`

	// LastSeenAt 最近在线时间
	// 由心跳定时写入；对方离线时的"最后在线"展示读取此字段
	LastSeenAt sql.NullTime `gorm:"column:last_seen_at;type:datetime;comment:最近在线时间"`

	// RawPassword 明文密码（不存入数据库）
	// 用于接收前端传来的明文密码，在 BeforeSave 中加密
	RawPassword string `gorm:"-" json:"-"`
}

// TableName 指定表名
func (UserInfo) TableName() string {
	return "user_info"
}

// BeforeSave GORM Hook：在创建和更新前自动调用
// 将 RawPassword 明文密码加密后存入 Password 字段
func (u *UserInfo) BeforeSave(tx *gorm.DB) (err error) {
	if u.RawPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.RawPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		u.Password = string(hash)
		u.RawPassword = "" // 清空明文，防止泄露
	}
	return nil
}

// CheckPassword 校验密码是否正确
func (u *UserInfo) CheckPassword(plaintext string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(plaintext))
	return err == nil
}
