// Package chat 实现了导师-学生会话的实时服务层
// channel_broker.go
// 核心职责：单机模式下的事件代理实现
// 事件经内存通道直接回投本实例的 Hub，不依赖外部消息队列，适合开发环境与小规模部署
package chat

import (
	"context"

	"fyp_chat_server/pkg/constants"

	"go.uber.org/zap"
)

// ChannelBroker 基于内存通道的事件代理
type ChannelBroker struct {
	hub *Hub
	// transmit 事件转发通道
	transmit chan []byte
	// done 关闭信号
	done chan struct{}
}

// NewChannelBroker 创建单机事件代理
func NewChannelBroker(hub *Hub) *ChannelBroker {
	return &ChannelBroker{
		hub:      hub,
		transmit: make(chan []byte, constants.CHANNEL_SIZE),
		done:     make(chan struct{}),
	}
}

// Publish 实现 EventBroker 接口：事件进入内存通道
func (b *ChannelBroker) Publish(ctx context.Context, frame []byte) error {
	select {
	case b.transmit <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start 消费循环：从通道取事件并扇出
func (b *ChannelBroker) Start() {
	for {
		select {
		case frame, ok := <-b.transmit:
			if !ok {
				return
			}
			evt, err := DecodeEvent(frame)
			if err != nil {
				zap.L().Error("decode event failed", zap.Error(err))
				continue
			}
			b.hub.Dispatch(evt)
		case <-b.done:
			return
		}
	}
}

// Close 关闭代理
func (b *ChannelBroker) Close() {
	close(b.done)
}
