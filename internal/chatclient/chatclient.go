// Package chatclient 实现会话端的编排引擎
// 服务端负责落库与扇出，本包负责打开会话后的那一侧：
// 历史加载、乐观发送、事件合并、在线状态衰减与心跳
// 引擎是无界面的，渲染层只需订阅快照变化
package chatclient

import (
	"context"
	"io"
	"time"

	"fyp_chat_server/internal/dto/request"
	"fyp_chat_server/internal/dto/respond"
	"fyp_chat_server/internal/service/chat"
)

// MessageStore 消息存取适配器
// 生产实现走 HTTP 接口；单测可注入内存实现
type MessageStore interface {
	// LoadMessages 拉取会话全部消息，服务端时间升序
	LoadMessages(ctx context.Context, sessionId string) ([]respond.MessageRespond, error)
	// SendMessage 写入一条消息，返回服务端视图
	SendMessage(ctx context.Context, req request.SendMessageRequest) (*respond.MessageRespond, error)
	// MarkRead 提交已读回执，重复提交安全
	MarkRead(ctx context.Context, messageId string) (*respond.MessageRespond, error)
	// UploadVoiceNote 上传语音附件，返回可访问 URL
	UploadVoiceNote(ctx context.Context, sessionId, filename string, blob io.Reader, size int64) (string, error)
	// LastSeen 查询对端最近在线时间（RFC3339，空串表示从未在线）
	LastSeen(ctx context.Context, userId string) (string, error)
}

// Binder 实时通道绑定器
// Bind 订阅会话话题，之后事件经 onEvent 回调送达；
// Close 返回后保证不再有回调触发
type Binder interface {
	Bind(ctx context.Context, sessionId string, onEvent func(*chat.Event)) error
	// SendSignal 上行瞬时信号（typing / recording / heartbeat）
	SendSignal(signalType string, active bool) error
	Close() error
}

// Clock 可注入时钟，过期判定与衰减计时都从这里取当前时间
type Clock func() time.Time
