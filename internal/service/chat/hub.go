// Package chat 实现了导师-学生会话的实时服务层
// hub.go
// 核心职责：会话话题的成员管理与事件扇出
// 1. 维护每个会话话题的在线成员（同一用户多标签页为多个成员）
// 2. 接收本实例事件并扇出给话题成员
// 3. 成员进出时广播在线名单、落库最近在线时间
package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"fyp_chat_server/internal/dao/mysql/repository"
	myredis "fyp_chat_server/internal/dao/redis"
	"fyp_chat_server/internal/infrastructure/metrics"

	"go.uber.org/zap"
)

// Hub 单实例内的话题注册表
// 跨实例的事件转发交给 EventBroker；Hub 只认本实例的连接
type Hub struct {
	mu sync.RWMutex
	// topics 会话 ID -> 该话题上的成员集合
	topics map[string]map[*Member]struct{}

	broker       EventBroker
	userRepo     repository.UserRepository
	cacheService myredis.AsyncCacheService
}

// NewHub 创建话题注册表
// broker 在 main 中构建后通过 SetBroker 注入，避免两者互相依赖的构造顺序问题
func NewHub(userRepo repository.UserRepository, cacheService myredis.AsyncCacheService) *Hub {
	return &Hub{
		topics:       make(map[string]map[*Member]struct{}),
		userRepo:     userRepo,
		cacheService: cacheService,
	}
}

// SetBroker 注入事件代理
func (h *Hub) SetBroker(b EventBroker) {
	h.broker = b
}

// Join 将成员加入会话话题，并向话题广播最新在线名单
func (h *Hub) Join(m *Member) {
	h.mu.Lock()
	members, ok := h.topics[m.SessionId]
	if !ok {
		members = make(map[*Member]struct{})
		h.topics[m.SessionId] = members
	}
	members[m] = struct{}{}
	h.mu.Unlock()

	zap.L().Info("member joined", zap.String("user", m.UserId), zap.String("session", m.SessionId))
	h.syncPresence(m.SessionId)
}

// Leave 将成员移出话题
// 重复调用安全：只有仍在话题内的成员才会触发清理
func (h *Hub) Leave(m *Member) {
	h.mu.Lock()
	members, ok := h.topics[m.SessionId]
	if ok {
		if _, present := members[m]; !present {
			ok = false
		} else {
			delete(members, m)
			if len(members) == 0 {
				delete(h.topics, m.SessionId)
			}
		}
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	close(m.Send)
	metrics.WsConnections.Dec()

	// 离线时间写库，供对端展示"最近在线"
	h.Heartbeat(m.UserId)

	zap.L().Info("member left", zap.String("user", m.UserId), zap.String("session", m.SessionId))
	h.syncPresence(m.SessionId)
}

// Heartbeat 刷新用户的最近在线时间
// 走异步任务池，心跳高频但不在请求路径上
func (h *Hub) Heartbeat(userId string) {
	at := time.Now()
	if h.cacheService != nil {
		h.cacheService.SubmitTask(func() {
			if err := h.userRepo.UpdateLastSeen(userId, at); err != nil {
				zap.L().Error("update last seen failed", zap.String("user", userId), zap.Error(err))
			}
		})
		return
	}
	if err := h.userRepo.UpdateLastSeen(userId, at); err != nil {
		zap.L().Error("update last seen failed", zap.String("user", userId), zap.Error(err))
	}
}

// OnlineUsers 返回话题上去重后的在线用户 ID（升序）
func (h *Hub) OnlineUsers(sessionId string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	seen := make(map[string]struct{})
	for m := range h.topics[sessionId] {
		seen[m.UserId] = struct{}{}
	}
	users := make([]string, 0, len(seen))
	for id := range seen {
		users = append(users, id)
	}
	sort.Strings(users)
	return users
}

// PublishEvent 经事件代理发布事件
// channel 模式下代理会立刻回投本实例；kafka 模式下经消息队列到达所有实例
func (h *Hub) PublishEvent(evt *Event) {
	frame, err := evt.Encode()
	if err != nil {
		zap.L().Error("encode event failed", zap.Error(err))
		return
	}
	metrics.EventsPublishedTotal.WithLabelValues(evt.Type).Inc()
	if err := h.broker.Publish(context.Background(), frame); err != nil {
		zap.L().Error("publish event failed", zap.String("type", evt.Type), zap.Error(err))
	}
}

// PublishSignal 发布瞬时信号（typing / recording）
func (h *Hub) PublishSignal(eventType, sessionId, senderId string, active bool) {
	h.PublishEvent(&Event{
		Type:      eventType,
		SessionId: sessionId,
		SenderId:  senderId,
		Active:    active,
	})
}

// syncPresence 成员进出后向话题广播当前在线名单
// 在线名单只反映本实例连接，直接本地扇出，不经代理
func (h *Hub) syncPresence(sessionId string) {
	evt := &Event{
		Type:      EventPresenceSync,
		SessionId: sessionId,
		Online:    h.OnlineUsers(sessionId),
	}
	h.Dispatch(evt)
}

// Dispatch 将事件扇出给话题内的本实例成员
// 发送者自己的所有连接都不收自己触发的事件：
// 乐观回显已经在发送端完成，回显帧只会造成重复渲染，
// 同一用户的其他标签页靠重新拉取历史对齐
func (h *Hub) Dispatch(evt *Event) {
	frame, err := evt.Encode()
	if err != nil {
		zap.L().Error("encode event failed", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for m := range h.topics[evt.SessionId] {
		if evt.SenderId != "" && m.UserId == evt.SenderId {
			continue
		}
		select {
		case m.Send <- frame:
		default:
			// 下行通道满说明该连接长期不消费，丢弃并记录
			zap.L().Warn("member send buffer full, dropping event",
				zap.String("user", m.UserId),
				zap.String("type", evt.Type))
		}
	}
}
