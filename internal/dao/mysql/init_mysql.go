// Package mysql 提供数据访问层的初始化和全局数据库实例管理
// 负责建立 MySQL 连接、自动迁移表结构、初始化 Repository 层
package mysql

import (
	"fmt"

	"fyp_chat_server/internal/config"
	"fyp_chat_server/internal/dao/mysql/repository"
	"fyp_chat_server/internal/model"

	"go.uber.org/zap"
	mysqldriver "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// Init 初始化数据库连接并返回 Repository 层实例
// 执行步骤：
//  1. 从配置读取 MySQL 连接信息
//  2. 构建 DSN（Data Source Name）连接字符串
//  3. 使用 GORM 建立数据库连接
//  4. 执行 AutoMigrate 自动迁移表结构
//  5. 创建并返回 Repository 实例
func Init() *repository.Repositories {
	conf := config.GetConfig()

	// 构建 MySQL DSN 连接字符串
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		conf.MysqlConfig.User,
		conf.MysqlConfig.Password,
		conf.MysqlConfig.Host,
		conf.MysqlConfig.Port,
		conf.MysqlConfig.DatabaseName,
	)

	db, err := gorm.Open(mysqldriver.Open(dsn), &gorm.Config{})
	if err != nil {
		zap.L().Fatal(err.Error())
	}

	if err := Migrate(db); err != nil {
		zap.L().Fatal(err.Error())
	}

	return repository.NewRepositories(db)
}

// Migrate 自动迁移表结构
// 如果表不存在则创建，字段变更则更新结构；不会删除已有字段或数据
// 单独导出供测试用 sqlite 建表
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.UserInfo{},   // 用户信息表
		&model.FypSession{}, // 毕设会话表
		&model.Message{},    // 消息表
	)
}
