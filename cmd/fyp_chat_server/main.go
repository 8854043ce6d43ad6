package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"fyp_chat_server/internal/config"
	dao "fyp_chat_server/internal/dao/mysql"
	myredis "fyp_chat_server/internal/dao/redis"
	"fyp_chat_server/internal/handler"
	"fyp_chat_server/internal/https_server"
	"fyp_chat_server/internal/infrastructure/logger"
	"fyp_chat_server/internal/infrastructure/storage"
	"fyp_chat_server/internal/service"
	"fyp_chat_server/internal/service/chat"
	"fyp_chat_server/pkg/util/jwt"
	"fyp_chat_server/pkg/util/snowflake"

	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	conf := config.GetConfig()

	// 2. 初始化日志
	if err := logger.Init(&conf.LogConfig, "dev"); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	zap.L().Info("日志初始化成功")

	// 3. 初始化数据库
	repos := dao.Init()
	zap.L().Info("数据库初始化成功")

	// 4. 初始化 Redis
	cache := myredis.Init()
	zap.L().Info("Redis 初始化成功")

	// 5. 初始化 JWT 与雪花算法
	jwt.Init(conf.JWTConfig.Secret, conf.JWTConfig.AccessTokenExpiry, conf.JWTConfig.RefreshTokenExpiry)
	snowflake.Init(conf.SnowflakeConfig.MachineID)
	zap.L().Info("JWT 与雪花算法初始化成功")

	// 6. 初始化对象存储
	store, err := storage.NewDiskStorage(
		conf.StorageConfig.VoiceNotePath,
		conf.StorageConfig.BaseURL+"/static/voice_notes",
	)
	if err != nil {
		zap.L().Fatal("对象存储初始化失败", zap.Error(err))
	}
	zap.L().Info("对象存储初始化成功")

	// 7. 初始化话题注册表与事件代理
	hub := chat.NewHub(repos.User, cache)
	var broker chat.EventBroker
	if conf.KafkaConfig.EventMode == "kafka" {
		broker = chat.NewKafkaBroker(hub)
	} else {
		broker = chat.NewChannelBroker(hub)
	}
	hub.SetBroker(broker)
	go broker.Start()
	zap.L().Info("事件代理初始化成功", zap.String("mode", conf.KafkaConfig.EventMode))

	// 8. 初始化 Service 层（依赖注入）
	service.InitServices(repos, cache, store, hub)
	zap.L().Info("Service 层初始化成功")

	// 9. 初始化参数校验翻译器
	if err := handler.InitTrans("zh"); err != nil {
		zap.L().Fatal("翻译器初始化失败", zap.Error(err))
	}

	// 10. 初始化 HTTP 服务器
	handlers := handler.NewHandlers(service.Svc, hub, store)
	engine := https_server.Init(handlers)
	zap.L().Info("HTTP 服务器初始化成功")

	// 11. 启动服务
	host := conf.MainConfig.Host
	port := conf.MainConfig.Port
	go func() {
		if err := engine.Run(fmt.Sprintf("%s:%d", host, port)); err != nil {
			zap.L().Fatal("server running fault", zap.Error(err))
		}
	}()

	// 信号驱动的优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zap.L().Info("关闭服务器...")
	broker.Close()
	zap.L().Info("服务器已关闭")
}
