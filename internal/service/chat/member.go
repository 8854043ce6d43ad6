// Package chat 实现了导师-学生会话的实时服务层
// member.go
// 核心职责：WebSocket 连接生命周期管理
// 1. 建立 WebSocket 连接 (Upgrade)
// 2. 封装 Member 对象，管理读写协程 (Read/Write Loop)
// 3. 上行只承载瞬时信号；消息发送与已读回执走 HTTP，由服务层发布事件
package chat

import (
	"encoding/json"
	"net/http"

	"fyp_chat_server/internal/infrastructure/metrics"
	"fyp_chat_server/internal/model"
	"fyp_chat_server/pkg/constants"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Member 表示某个会话话题上的一条 WebSocket 连接
// 同一用户开多个标签页时会存在多个 Member，UserId 相同
type Member struct {
	Conn      *websocket.Conn
	UserId    string
	Role      int8 // 学生 / 导师，来自 Token 声明
	SessionId string
	// Send 下行推送通道，Hub 扇出只写这里，由 Write 协程刷给前端
	// 单测可以不挂真实连接，直接从该通道断言推送内容
	Send chan []byte

	hub *Hub
}

// 允许跨域握手，前端开发服务器与后端不同源
var upgrader = websocket.Upgrader{
	ReadBufferSize:  2048,
	WriteBufferSize: 2048,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Read 从 WebSocket 读取上行信号并转交 Hub
func (m *Member) Read() {
	defer m.hub.Leave(m)
	for {
		_, frame, err := m.Conn.ReadMessage()
		if err != nil {
			// 连接断开，触发离开流程
			zap.L().Info("ws read closed", zap.String("user", m.UserId), zap.Error(err))
			return
		}
		var signal ClientSignal
		if err := json.Unmarshal(frame, &signal); err != nil {
			zap.L().Error("bad client signal", zap.Error(err))
			continue
		}
		switch signal.Type {
		case SignalTyping:
			m.hub.PublishSignal(EventTyping, m.SessionId, m.UserId, signal.Active)
		case SignalRecording:
			m.hub.PublishSignal(EventRecording, m.SessionId, m.UserId, signal.Active)
		case SignalHeartbeat:
			m.hub.Heartbeat(m.UserId)
		default:
			zap.L().Warn("unknown client signal", zap.String("type", signal.Type))
		}
	}
}

// Write 从 Send 通道读取推送帧并发送给 WebSocket
func (m *Member) Write() {
	for frame := range m.Send {
		if err := m.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			zap.L().Error("ws write failed", zap.String("user", m.UserId), zap.Error(err))
			return
		}
	}
}

// NewMemberInit 前端完成会话鉴权后升级 WebSocket 并加入话题
func NewMemberInit(c *gin.Context, hub *Hub, userId string, role int8, sessionId string) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		zap.L().Error("ws upgrade failed", zap.Error(err))
		return
	}
	member := &Member{
		Conn:      conn,
		UserId:    userId,
		Role:      role,
		SessionId: sessionId,
		Send:      make(chan []byte, constants.CHANNEL_SIZE),
		hub:       hub,
	}
	hub.Join(member)
	metrics.WsConnections.Inc()
	go member.Read()
	go member.Write()
	zap.L().Info("ws连接成功",
		zap.String("user", userId),
		zap.String("role", model.RoleName(role)),
		zap.String("session", sessionId))
}
