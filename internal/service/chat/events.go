// Package chat 实现了导师-学生会话的实时服务层
// events.go
// 核心职责：定义话题事件的线格式
// 服务端与前端之间、多实例之间都使用同一套 JSON 事件
package chat

import (
	"encoding/json"

	"fyp_chat_server/internal/dto/respond"
)

// 话题事件类型
const (
	// EventMessageInserted 有新消息入库，携带完整消息体
	EventMessageInserted = "message_inserted"
	// EventMessageUpdated 已有消息发生变更（目前只有已读名单）
	EventMessageUpdated = "message_updated"
	// EventTyping 对方正在输入的瞬时信号
	EventTyping = "typing"
	// EventRecording 对方正在录音的瞬时信号
	EventRecording = "recording"
	// EventPresenceSync 成员上下线，携带该会话当前在线名单
	EventPresenceSync = "presence_sync"
)

// Event 会话话题上的一条事件
// 瞬时信号（typing/recording）只带 SenderId 和 Active；
// 消息事件带完整的 Message 响应体
type Event struct {
	Type      string                  `json:"type"`                // 事件类型
	SessionId string                  `json:"session_id"`          // 所属会话
	SenderId  string                  `json:"sender_id,omitempty"` // 触发事件的用户
	Active    bool                    `json:"active,omitempty"`    // 瞬时信号的起/止
	Message   *respond.MessageRespond `json:"message,omitempty"`   // 消息事件的载荷
	Online    []string                `json:"online,omitempty"`    // presence_sync 的在线名单
}

// Encode 序列化为推送帧
func (e *Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvent 反序列化推送帧
func DecodeEvent(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// 前端经 WebSocket 上行的信号类型
const (
	SignalTyping    = "typing"
	SignalRecording = "recording"
	SignalHeartbeat = "heartbeat"
)

// ClientSignal 前端上行的瞬时信号帧
// 消息发送与已读回执走 HTTP 接口，WebSocket 只承载瞬时信号
type ClientSignal struct {
	Type   string `json:"type"`             // typing / recording / heartbeat
	Active bool   `json:"active,omitempty"` // 信号起止
}
