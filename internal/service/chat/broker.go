// Package chat 实现了导师-学生会话的实时服务层
// broker.go
// 核心职责：定义事件代理接口
// 抽象事件转发通道，支持 Kafka（多实例）和 Channel（单机）两种实现
package chat

import "context"

// EventBroker 定义事件代理接口
// Publish 之后事件最终会回到每个实例的 Hub.Dispatch
type EventBroker interface {
	// Publish 发布事件帧
	Publish(ctx context.Context, frame []byte) error
	// Start 启动消费循环（阻塞，调用方负责开协程）
	Start()
	// Close 关闭代理资源
	Close()
}
