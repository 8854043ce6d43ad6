// session.go
// 核心职责：单个已打开会话的消息列表维护
// 1. 打开时先绑定实时通道再加载历史，两路按 Uuid 去重合并
// 2. 乐观发送：占位 -> 原位确认 / 失败移除
// 3. 实时事件合并：插入按到达序追加，更新只允许已读名单增长
package chatclient

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"fyp_chat_server/internal/dto/request"
	"fyp_chat_server/internal/dto/respond"
	"fyp_chat_server/internal/service/chat"
	"fyp_chat_server/pkg/enum/message/message_kind_enum"
	"fyp_chat_server/pkg/errorx"
	"fyp_chat_server/pkg/voicenote"
)

// 消息在本地列表中的状态
type MessageStatus int8

const (
	StatusPending   MessageStatus = iota // 乐观占位，等待服务端确认
	StatusConfirmed                      // 服务端已落库
)

// LocalMessage 本地消息视图
// 占位阶段 TempId 非空且 Uuid 为空；确认后原位换成服务端字段
type LocalMessage struct {
	respond.MessageRespond
	TempId string        // 本地临时 ID（ULID）
	Status MessageStatus // 占位 / 已确认
	// LocalPreview 语音占位期间的本地回放引用，确认后仍保留
	LocalPreview string
}

// ReadByCounterpart 判断消息是否已被发送者以外的参与者读过
// 这是"双勾"展示的唯一判据
func (m *LocalMessage) ReadByCounterpart() bool {
	for _, id := range m.ReadBy {
		if id != m.SendId {
			return true
		}
	}
	return false
}

// Session 一个已打开会话的编排引擎
type Session struct {
	SessionId string
	SelfId    string

	store    MessageStore
	binder   Binder
	presence *PresenceTracker
	clock    Clock

	mu       sync.Mutex
	messages []*LocalMessage
	entropy  *rand.Rand

	// onChange 消息列表变化回调（渲染层重绘钩子），可为 nil
	onChange func()
}

// NewSession 创建会话引擎，此时尚未加载历史、未绑定通道
func NewSession(sessionId, selfId string, store MessageStore, binder Binder, presence *PresenceTracker, clock Clock) *Session {
	if clock == nil {
		clock = time.Now
	}
	return &Session{
		SessionId: sessionId,
		SelfId:    selfId,
		store:     store,
		binder:    binder,
		presence:  presence,
		clock:     clock,
		entropy:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// OnChange 注册列表变化回调
func (s *Session) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// Open 绑定实时通道后加载历史
// 先绑定再加载：落库发生在历史快照与订阅之间的消息会以事件到达，
// 合并历史时按 Uuid 去重，两条路都不会丢
// 历史加载失败返回 StoreUnavailable 并解绑通道
func (s *Session) Open(ctx context.Context) error {
	if err := s.binder.Bind(ctx, s.SessionId, s.handleEvent); err != nil {
		return err
	}

	history, err := s.store.LoadMessages(ctx, s.SessionId)
	if err != nil {
		_ = s.binder.Close()
		return errorx.Wrap(err, errorx.CodeStoreUnavailable, "消息历史加载失败")
	}

	s.mergeHistory(history)
	s.notify()
	return nil
}

// Reload 重新拉取历史并与本地列表合并
// 未决占位和拉取期间到达的事件消息保留在尾部
func (s *Session) Reload(ctx context.Context) error {
	history, err := s.store.LoadMessages(ctx, s.SessionId)
	if err != nil {
		return errorx.Wrap(err, errorx.CodeStoreUnavailable, "消息历史加载失败")
	}

	s.mergeHistory(history)
	s.notify()
	return nil
}

// mergeHistory 以服务端历史为基底重建列表
// 历史未覆盖的本地消息（未决占位、加载期间到达的事件）按原到达序补在尾部
func (s *Session) mergeHistory(history []respond.MessageRespond) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(history))
	merged := make([]*LocalMessage, 0, len(history)+len(s.messages))
	for i := range history {
		seen[history[i].Uuid] = struct{}{}
		merged = append(merged, &LocalMessage{
			MessageRespond: history[i],
			Status:         StatusConfirmed,
		})
	}
	for _, m := range s.messages {
		if m.Uuid != "" {
			if _, ok := seen[m.Uuid]; ok {
				continue
			}
		}
		merged = append(merged, m)
	}
	s.messages = merged
}

// Close 解绑通道并停掉在线状态跟踪
// binder.Close 返回后不再有事件回调
func (s *Session) Close() error {
	err := s.binder.Close()
	if s.presence != nil {
		s.presence.Stop()
	}
	return err
}

// Messages 返回消息列表快照
func (s *Session) Messages() []LocalMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LocalMessage, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, *m)
	}
	return out
}

// SendText 发送文本消息（乐观管线）
// 占位立即进入列表；确认原位替换；失败移除占位并返回错误
// 并发调用相互独立，各自的占位互不影响
func (s *Session) SendText(ctx context.Context, content string) (*LocalMessage, error) {
	return s.send(ctx, request.SendMessageRequest{
		SessionId: s.SessionId,
		Kind:      message_kind_enum.Text,
		Content:   content,
	}, "")
}

// SendVoice 发送语音消息
// 附件已上传完成，url 为对象存储返回的地址；preview 为本地回放引用
func (s *Session) SendVoice(ctx context.Context, url string, duration int, fileType string, size int64, preview string) (*LocalMessage, error) {
	return s.send(ctx, request.SendMessageRequest{
		SessionId: s.SessionId,
		Kind:      message_kind_enum.Audio,
		Url:       url,
		Duration:  duration,
		FileType:  fileType,
		FileSize:  size,
	}, preview)
}

// send 乐观发送的公共路径
func (s *Session) send(ctx context.Context, req request.SendMessageRequest, preview string) (*LocalMessage, error) {
	placeholder := s.appendPlaceholder(req, preview)

	rsp, err := s.store.SendMessage(ctx, req)
	if err != nil {
		// 回滚：占位从列表移除，错误原样上抛
		s.removeByTempId(placeholder.TempId)
		s.notify()
		return nil, err
	}

	confirmed := s.confirm(placeholder.TempId, rsp)
	s.notify()
	return confirmed, nil
}

// appendPlaceholder 在列表尾部追加乐观占位
func (s *Session) appendPlaceholder(req request.SendMessageRequest, preview string) *LocalMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	tempId := ulid.MustNew(ulid.Timestamp(s.clock()), s.entropy).String()
	placeholder := &LocalMessage{
		MessageRespond: respond.MessageRespond{
			SessionId: req.SessionId,
			SendId:    s.SelfId,
			Kind:      req.Kind,
			Content:   req.Content,
			Url:       req.Url,
			Duration:  req.Duration,
			FileType:  req.FileType,
			FileSize:  req.FileSize,
			ReadBy:    []string{s.SelfId},
			CreatedAt: s.clock().Format(time.RFC3339),
		},
		TempId:       tempId,
		Status:       StatusPending,
		LocalPreview: preview,
	}
	s.messages = append(s.messages, placeholder)

	if s.onChange != nil {
		go s.onChange()
	}
	return placeholder
}

// confirm 原位确认：占位位置不变，字段换成服务端视图
func (s *Session) confirm(tempId string, rsp *respond.MessageRespond) *LocalMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.TempId == tempId {
			preview := m.LocalPreview
			m.MessageRespond = *rsp
			m.Status = StatusConfirmed
			m.LocalPreview = preview
			return m
		}
	}
	// 占位已被 Reload 清走，极少见，按确认消息补到尾部
	confirmed := &LocalMessage{MessageRespond: *rsp, Status: StatusConfirmed}
	s.messages = append(s.messages, confirmed)
	return confirmed
}

// removeByTempId 移除失败的占位
func (s *Session) removeByTempId(tempId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.messages {
		if m.TempId == tempId {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			return
		}
	}
}

// MarkVisibleRead 对可见列表中所有未读的对端消息提交已读回执
// 回执幂等；服务端确认后本地名单同步增长
func (s *Session) MarkVisibleRead(ctx context.Context) error {
	s.mu.Lock()
	var todo []string
	for _, m := range s.messages {
		if m.Status != StatusConfirmed || m.SendId == s.SelfId {
			continue
		}
		if !containsId(m.ReadBy, s.SelfId) {
			todo = append(todo, m.Uuid)
		}
	}
	s.mu.Unlock()

	for _, id := range todo {
		rsp, err := s.store.MarkRead(ctx, id)
		if err != nil {
			zap.L().Warn("已读回执提交失败", zap.String("message", id), zap.Error(err))
			continue
		}
		s.applyUpdate(rsp)
	}
	if len(todo) > 0 {
		s.notify()
	}
	return nil
}

// SendTyping 上行输入中信号
func (s *Session) SendTyping(active bool) error {
	return s.binder.SendSignal(chat.SignalTyping, active)
}

// VoiceExpired 判断一条语音消息在当前时刻是否超窗
func (s *Session) VoiceExpired(m *LocalMessage) bool {
	if m.Kind != message_kind_enum.Audio {
		return false
	}
	createdAt, err := time.Parse(time.RFC3339, m.CreatedAt)
	if err != nil {
		return m.Expired
	}
	return voicenote.Expired(createdAt, s.clock())
}

// handleEvent 实时事件入口（由 Binder 回调）
func (s *Session) handleEvent(evt *chat.Event) {
	switch evt.Type {
	case chat.EventMessageInserted:
		if evt.Message == nil || evt.SenderId == s.SelfId {
			// 自己的插入事件不会到达；万一到达也直接丢弃，乐观回显已经渲染过
			return
		}
		s.applyInsert(evt.Message)
		s.notify()
	case chat.EventMessageUpdated:
		if evt.Message == nil {
			return
		}
		s.applyUpdate(evt.Message)
		s.notify()
	case chat.EventTyping:
		if s.presence != nil && evt.SenderId != s.SelfId {
			s.presence.Signal(evt.SenderId, SignalTyping, evt.Active)
		}
	case chat.EventRecording:
		if s.presence != nil && evt.SenderId != s.SelfId {
			s.presence.Signal(evt.SenderId, SignalRecording, evt.Active)
		}
	case chat.EventPresenceSync:
		if s.presence != nil {
			s.presence.SyncOnline(evt.Online)
		}
	}
}

// applyInsert 对端新消息按到达序追加；按 Uuid 去重
func (s *Session) applyInsert(rsp *respond.MessageRespond) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.Uuid != "" && m.Uuid == rsp.Uuid {
			return
		}
	}
	s.messages = append(s.messages, &LocalMessage{
		MessageRespond: *rsp,
		Status:         StatusConfirmed,
	})
}

// applyUpdate 合并消息变更，已读名单只增不减
func (s *Session) applyUpdate(rsp *respond.MessageRespond) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.Uuid != "" && m.Uuid == rsp.Uuid {
			for _, reader := range rsp.ReadBy {
				if !containsId(m.ReadBy, reader) {
					m.ReadBy = append(m.ReadBy, reader)
				}
			}
			return
		}
	}
}

// notify 触发变化回调
func (s *Session) notify() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func containsId(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
