// presence.go
// 核心职责：对端在线状态与瞬时信号的衰减维护
// 1. 在线 ⇔ 话题在线名单中除自己外非空；转为离线时一次性拉取最近在线时间
// 2. typing 信号 3 秒无刷新自动消退；recording 以显式停止为准，60 秒兜底
// 3. 同键新信号重置计时器
package chatclient

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"fyp_chat_server/pkg/constants"
)

// SignalKind 瞬时信号种类
type SignalKind string

const (
	SignalTyping    SignalKind = "typing"
	SignalRecording SignalKind = "recording"
)

// PresenceSnapshot 在线状态快照，渲染层直接消费
type PresenceSnapshot struct {
	// CounterpartOnline 对端是否在线
	CounterpartOnline bool
	// LastSeenAt 对端离线时的最近在线时间（RFC3339，可为空串）
	LastSeenAt string
	// Typing / Recording 对端当前的瞬时信号
	Typing    bool
	Recording bool
}

// PresenceTracker 单个会话的在线状态跟踪器
type PresenceTracker struct {
	selfId        string
	counterpartId string
	store         MessageStore

	mu       sync.Mutex
	snapshot PresenceSnapshot
	timers   map[SignalKind]*time.Timer
	// gens 每种信号的代数，刷新即加一
	// 衰减回调只在代数未变时生效，已过期仍排队的回调不会清掉刷新后的信号
	gens    map[SignalKind]uint64
	stopped bool

	typingDecay    time.Duration
	recordingDecay time.Duration

	// onUpdate 快照变化回调，可为 nil
	onUpdate func(PresenceSnapshot)
}

// NewPresenceTracker 创建跟踪器
// store 用于离线转换时的最近在线时间补拉
func NewPresenceTracker(selfId, counterpartId string, store MessageStore) *PresenceTracker {
	return &PresenceTracker{
		selfId:         selfId,
		counterpartId:  counterpartId,
		store:          store,
		timers:         make(map[SignalKind]*time.Timer),
		gens:           make(map[SignalKind]uint64),
		typingDecay:    constants.TYPING_DECAY,
		recordingDecay: constants.RECORDING_DECAY_CAP,
	}
}

// OnUpdate 注册快照变化回调
func (p *PresenceTracker) OnUpdate(fn func(PresenceSnapshot)) {
	p.mu.Lock()
	p.onUpdate = fn
	p.mu.Unlock()
}

// Snapshot 返回当前快照
func (p *PresenceTracker) Snapshot() PresenceSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot
}

// SyncOnline 应用话题在线名单（presence_sync 事件）
// 对端从在线转为离线时，一次性拉取其最近在线时间
func (p *PresenceTracker) SyncOnline(online []string) {
	counterpartOnline := false
	for _, id := range online {
		if id == p.counterpartId {
			counterpartOnline = true
			break
		}
	}

	p.mu.Lock()
	if p.stopped || p.snapshot.CounterpartOnline == counterpartOnline {
		p.mu.Unlock()
		return
	}
	p.snapshot.CounterpartOnline = counterpartOnline
	if counterpartOnline {
		p.snapshot.LastSeenAt = ""
	}
	// 离线同时清掉残留的瞬时信号
	if !counterpartOnline {
		p.clearSignalLocked(SignalTyping)
		p.clearSignalLocked(SignalRecording)
	}
	p.mu.Unlock()
	p.notify()

	if !counterpartOnline {
		go p.fetchLastSeen()
	}
}

// Signal 应用对端的瞬时信号
// active=true 启动（或重置）衰减计时；active=false 立即清除
func (p *PresenceTracker) Signal(senderId string, kind SignalKind, active bool) {
	if senderId != p.counterpartId {
		return
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	if !active {
		p.clearSignalLocked(kind)
		p.mu.Unlock()
		p.notify()
		return
	}

	p.setSignalLocked(kind, true)
	// 同键信号重置衰减计时
	// Stop 可能晚于计时器触发，旧回调此刻已在排队等锁，
	// 靠代数比对让它变成空操作，否则会清掉刚刷新的信号
	if t, ok := p.timers[kind]; ok {
		t.Stop()
	}
	p.gens[kind]++
	gen := p.gens[kind]
	decay := p.typingDecay
	if kind == SignalRecording {
		// recording 以显式停止为准，这里只是异常断联的兜底
		decay = p.recordingDecay
	}
	p.timers[kind] = time.AfterFunc(decay, func() {
		p.mu.Lock()
		if p.stopped || p.gens[kind] != gen {
			p.mu.Unlock()
			return
		}
		p.clearSignalLocked(kind)
		p.mu.Unlock()
		p.notify()
	})
	p.mu.Unlock()
	p.notify()
}

// Stop 停止跟踪器并取消所有衰减计时
func (p *PresenceTracker) Stop() {
	p.mu.Lock()
	p.stopped = true
	for _, t := range p.timers {
		t.Stop()
	}
	p.timers = make(map[SignalKind]*time.Timer)
	p.mu.Unlock()
}

// fetchLastSeen 离线转换时的一次性补拉
func (p *PresenceTracker) fetchLastSeen() {
	lastSeen, err := p.store.LastSeen(context.Background(), p.counterpartId)
	if err != nil {
		zap.L().Warn("拉取最近在线时间失败", zap.String("user", p.counterpartId), zap.Error(err))
		return
	}
	p.mu.Lock()
	// 拉取期间对端可能又上线了，此时丢弃结果
	if p.stopped || p.snapshot.CounterpartOnline {
		p.mu.Unlock()
		return
	}
	p.snapshot.LastSeenAt = lastSeen
	p.mu.Unlock()
	p.notify()
}

func (p *PresenceTracker) setSignalLocked(kind SignalKind, v bool) {
	switch kind {
	case SignalTyping:
		p.snapshot.Typing = v
	case SignalRecording:
		p.snapshot.Recording = v
	}
}

func (p *PresenceTracker) clearSignalLocked(kind SignalKind) {
	p.setSignalLocked(kind, false)
	p.gens[kind]++
	if t, ok := p.timers[kind]; ok {
		t.Stop()
		delete(p.timers, kind)
	}
}

func (p *PresenceTracker) notify() {
	p.mu.Lock()
	fn := p.onUpdate
	snap := p.snapshot
	p.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}
