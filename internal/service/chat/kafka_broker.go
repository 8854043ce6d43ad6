// Package chat 实现了导师-学生会话的实时服务层
// kafka_broker.go
// 核心职责：多实例模式下的事件代理实现
// 1. 封装 Kafka 底层连接 (Writer/Reader)
// 2. 事件先写入 Kafka，再由各实例的消费循环取回并扇出
// 3. 每个实例使用独立 GroupID，同一事件被所有实例各消费一次
package chat

import (
	"context"
	"strconv"
	"time"

	myconfig "fyp_chat_server/internal/config"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaBroker 基于 Kafka 的事件代理
type KafkaBroker struct {
	hub      *Hub
	producer *kafka.Writer
	consumer *kafka.Reader
	done     chan struct{}
	// partitionKey 发布时的分区键，同一实例的事件落同一分区保序
	partitionKey []byte
}

// NewKafkaBroker 创建 Kafka 事件代理并初始化连接
func NewKafkaBroker(hub *Hub) *KafkaBroker {
	kafkaConfig := myconfig.GetConfig().KafkaConfig
	b := &KafkaBroker{
		hub:          hub,
		done:         make(chan struct{}),
		partitionKey: []byte(strconv.Itoa(kafkaConfig.Partition)),
	}
	b.producer = &kafka.Writer{
		Addr:                   kafka.TCP(kafkaConfig.HostPort),
		Topic:                  kafkaConfig.EventTopic,
		Balancer:               &kafka.Hash{},
		WriteTimeout:           kafkaConfig.Timeout * time.Second,
		RequiredAcks:           kafka.RequireNone,
		AllowAutoTopicCreation: false,
	}
	// GroupID 带实例随机后缀：事件要广播给所有实例，而不是组内负载均衡
	b.consumer = kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{kafkaConfig.HostPort},
		Topic:          kafkaConfig.EventTopic,
		CommitInterval: kafkaConfig.Timeout * time.Second,
		GroupID:        "fyp_chat_" + uuid.NewString(),
		StartOffset:    kafka.LastOffset,
	})
	return b
}

// Publish 实现 EventBroker 接口：事件写入 Kafka
func (b *KafkaBroker) Publish(ctx context.Context, frame []byte) error {
	return b.producer.WriteMessages(ctx, kafka.Message{
		Key:   b.partitionKey,
		Value: frame,
	})
}

// Start 消费循环：从 Kafka 读取事件并扇出给本实例的话题成员
func (b *KafkaBroker) Start() {
	ctx := context.Background()
	for {
		select {
		case <-b.done:
			return
		default:
		}
		msg, err := b.consumer.ReadMessage(ctx)
		if err != nil {
			zap.L().Error("kafka read failed", zap.Error(err))
			// reader 关闭后 ReadMessage 持续报错，稍等避免空转
			select {
			case <-b.done:
				return
			case <-time.After(time.Second):
			}
			continue
		}
		evt, err := DecodeEvent(msg.Value)
		if err != nil {
			zap.L().Error("decode event failed", zap.Error(err))
			continue
		}
		b.hub.Dispatch(evt)
	}
}

// Close 关闭代理资源
func (b *KafkaBroker) Close() {
	close(b.done)
	if err := b.producer.Close(); err != nil {
		zap.L().Error(err.Error())
	}
	if err := b.consumer.Close(); err != nil {
		zap.L().Error(err.Error())
	}
}
