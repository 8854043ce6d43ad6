// heartbeat.go
// 核心职责：固定间隔的在线心跳上报
// 生命周期与会话一致：Open 后 Start，Close 前 Stop
package chatclient

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"fyp_chat_server/internal/service/chat"
	"fyp_chat_server/pkg/constants"
)

// HeartbeatRunner 心跳上报器
// 每个间隔经实时通道上行一次 heartbeat 信号，服务端据此刷新最近在线时间
type HeartbeatRunner struct {
	binder   Binder
	interval time.Duration

	mu      sync.Mutex
	stopCh  chan struct{}
	running bool
}

// NewHeartbeatRunner 创建心跳上报器
// interval <= 0 时使用默认间隔
func NewHeartbeatRunner(binder Binder, interval time.Duration) *HeartbeatRunner {
	if interval <= 0 {
		interval = constants.HEARTBEAT_INTERVAL
	}
	return &HeartbeatRunner{binder: binder, interval: interval}
}

// Start 启动心跳循环；重复调用是空操作
func (h *HeartbeatRunner) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	h.stopCh = make(chan struct{})

	go h.loop(h.stopCh)
}

// Stop 停止心跳循环；未启动或已停止时是空操作
func (h *HeartbeatRunner) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return
	}
	h.running = false
	close(h.stopCh)
}

func (h *HeartbeatRunner) loop(stop chan struct{}) {
	// 启动即上报一次，不等第一个间隔
	h.beat()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.beat()
		case <-stop:
			return
		}
	}
}

func (h *HeartbeatRunner) beat() {
	if err := h.binder.SendSignal(chat.SignalHeartbeat, true); err != nil {
		// 通道断开期间心跳静默失败，重绑后恢复
		zap.L().Debug("heartbeat send failed", zap.Error(err))
	}
}
