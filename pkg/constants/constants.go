package constants

import "time"

const (
	CHANNEL_SIZE               = 100      // 通道大小
	VOICE_MAX_SIZE             = 10 << 20 // 语音附件最大大小 (10MB)
	REDIS_TIMEOUT              = 1        // redis timeout (分钟)
	REFRESH_TOKEN_EXPIRY_HOURS = 168      // Refresh Token 有效期（小时），168小时 = 7天

	// 聊天会话的软超时，均为客户端展示层面的约定，不是事务保证
	TYPING_DECAY         = 3 * time.Second  // 对方输入中指示的衰减时间
	RECORDING_DECAY_CAP  = 60 * time.Second // 对方录音中指示的安全上限
	HEARTBEAT_INTERVAL   = time.Minute      // 在线心跳上报间隔
	VOICE_NOTE_TTL_HOURS = 24               // 语音消息可播放窗口（小时）
)
