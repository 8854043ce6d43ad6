// Package metrics 提供 Prometheus 指标埋点
// 所有指标通过 promauto 注册到默认 Registry，经 /metrics 路由暴露
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WsConnections 当前在线的 WebSocket 连接数
	WsConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fyp_chat",
		Name:      "ws_connections",
		Help:      "Number of active websocket connections.",
	})

	// MessagesTotal 按消息类型统计的已入库消息数
	MessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fyp_chat",
		Name:      "messages_total",
		Help:      "Total number of messages persisted, partitioned by kind.",
	}, []string{"kind"})

	// ReadReceiptsTotal 已处理的已读回执数
	ReadReceiptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fyp_chat",
		Name:      "read_receipts_total",
		Help:      "Total number of read receipts applied.",
	})

	// VoiceUploadsTotal 语音附件上传结果统计
	VoiceUploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fyp_chat",
		Name:      "voice_uploads_total",
		Help:      "Total number of voice note uploads, partitioned by result.",
	}, []string{"result"})

	// VoiceExpiredRefusalsTotal 因超过播放窗口被拒绝的语音访问数
	VoiceExpiredRefusalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fyp_chat",
		Name:      "voice_expired_refusals_total",
		Help:      "Total number of voice note downloads refused because the note expired.",
	})

	// EventsPublishedTotal 按事件类型统计的话题事件数
	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fyp_chat",
		Name:      "events_published_total",
		Help:      "Total number of session events published, partitioned by type.",
	}, []string{"type"})
)
