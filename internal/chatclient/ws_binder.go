// ws_binder.go
// 核心职责：Binder 的 WebSocket 生产实现
// 1. 以会话话题为单位建立连接，收到的事件帧回调给引擎
// 2. Close 返回后保证不再触发回调（先摘回调再关连接）
package chatclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"fyp_chat_server/internal/service/chat"
)

// WSBinder 基于 gorilla/websocket 的通道绑定器
type WSBinder struct {
	// baseURL WebSocket 端点，如 "wss://chat.example.edu/ws"
	baseURL string
	// token 握手鉴权用的 Access Token
	token string

	mu      sync.Mutex
	conn    *websocket.Conn
	onEvent func(*chat.Event)
	closed  bool
	// done 读循环退出信号，Close 等它保证回调静默
	done chan struct{}
}

// NewWSBinder 创建绑定器，此时尚未建立连接
func NewWSBinder(baseURL, token string) *WSBinder {
	return &WSBinder{baseURL: baseURL, token: token}
}

// Bind 建立连接并订阅会话话题
func (b *WSBinder) Bind(ctx context.Context, sessionId string, onEvent func(*chat.Event)) error {
	b.mu.Lock()
	if b.conn != nil {
		b.mu.Unlock()
		return fmt.Errorf("binder already bound")
	}
	b.mu.Unlock()

	u, err := url.Parse(b.baseURL)
	if err != nil {
		return fmt.Errorf("bad ws url %q: %w", b.baseURL, err)
	}
	q := u.Query()
	q.Set("sessionId", sessionId)
	q.Set("token", b.token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("ws dial: %w", err)
	}

	b.mu.Lock()
	b.conn = conn
	b.onEvent = onEvent
	b.closed = false
	b.done = make(chan struct{})
	b.mu.Unlock()

	go b.readLoop(conn)
	return nil
}

// SendSignal 上行瞬时信号
func (b *WSBinder) SendSignal(signalType string, active bool) error {
	b.mu.Lock()
	conn := b.conn
	closed := b.closed
	b.mu.Unlock()
	if conn == nil || closed {
		return fmt.Errorf("binder not bound")
	}

	frame, err := json.Marshal(chat.ClientSignal{Type: signalType, Active: active})
	if err != nil {
		return err
	}
	// gorilla 连接的并发写需要自行串行化
	b.mu.Lock()
	defer b.mu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// Close 解绑：摘掉回调、关闭连接、等待读循环退出
// 返回后保证 onEvent 不再触发
func (b *WSBinder) Close() error {
	b.mu.Lock()
	if b.closed || b.conn == nil {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.onEvent = nil
	conn := b.conn
	done := b.done
	b.mu.Unlock()

	err := conn.Close()
	<-done

	b.mu.Lock()
	b.conn = nil
	b.mu.Unlock()
	return err
}

// readLoop 连接读循环，逐帧解码并回调
func (b *WSBinder) readLoop(conn *websocket.Conn) {
	defer close(b.done)
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			b.mu.Lock()
			closed := b.closed
			b.mu.Unlock()
			if !closed {
				zap.L().Warn("ws read closed", zap.Error(err))
			}
			return
		}
		evt, err := chat.DecodeEvent(frame)
		if err != nil {
			zap.L().Error("decode event failed", zap.Error(err))
			continue
		}
		b.mu.Lock()
		fn := b.onEvent
		b.mu.Unlock()
		if fn != nil {
			fn(evt)
		}
	}
}
