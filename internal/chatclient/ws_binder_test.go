package chatclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"fyp_chat_server/internal/chatclient"
	"fyp_chat_server/internal/service/chat"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsTestServer 单连接的话题端点：记录上行信号，支持下行推送
type wsTestServer struct {
	server *httptest.Server

	mu      sync.Mutex
	conn    *websocket.Conn
	signals []chat.ClientSignal
	query   map[string]string
	ready   chan struct{}
}

func newWsTestServer(t *testing.T) *wsTestServer {
	t.Helper()
	s := &wsTestServer{ready: make(chan struct{})}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Error(err)
			return
		}
		s.mu.Lock()
		s.conn = conn
		s.query = map[string]string{
			"sessionId": r.URL.Query().Get("sessionId"),
			"token":     r.URL.Query().Get("token"),
		}
		s.mu.Unlock()
		close(s.ready)

		for {
			var signal chat.ClientSignal
			if err := conn.ReadJSON(&signal); err != nil {
				return
			}
			s.mu.Lock()
			s.signals = append(s.signals, signal)
			s.mu.Unlock()
		}
	}))
	t.Cleanup(s.server.Close)
	return s
}

func (s *wsTestServer) url() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

func (s *wsTestServer) push(t *testing.T, evt *chat.Event) {
	t.Helper()
	frame, err := evt.Encode()
	if err != nil {
		t.Fatal(err)
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatal(err)
	}
}

func (s *wsTestServer) receivedSignals() []chat.ClientSignal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chat.ClientSignal, len(s.signals))
	copy(out, s.signals)
	return out
}

func TestWSBinderBindAndReceive(t *testing.T) {
	server := newWsTestServer(t)
	binder := chatclient.NewWSBinder(server.url(), "tok-123")

	events := make(chan *chat.Event, 8)
	if err := binder.Bind(context.Background(), "S1", func(evt *chat.Event) {
		events <- evt
	}); err != nil {
		t.Fatal(err)
	}
	defer binder.Close()
	<-server.ready

	// 握手携带会话与鉴权参数
	if server.query["sessionId"] != "S1" || server.query["token"] != "tok-123" {
		t.Fatalf("query = %v", server.query)
	}

	server.push(t, &chat.Event{Type: chat.EventTyping, SessionId: "S1", SenderId: "U_sup", Active: true})

	select {
	case evt := <-events:
		if evt.Type != chat.EventTyping || evt.SenderId != "U_sup" {
			t.Fatalf("evt = %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("等待事件回调超时")
	}
}

func TestWSBinderSendSignal(t *testing.T) {
	server := newWsTestServer(t)
	binder := chatclient.NewWSBinder(server.url(), "tok-123")

	if err := binder.Bind(context.Background(), "S1", func(*chat.Event) {}); err != nil {
		t.Fatal(err)
	}
	defer binder.Close()
	<-server.ready

	if err := binder.SendSignal(chat.SignalTyping, true); err != nil {
		t.Fatal(err)
	}
	if err := binder.SendSignal(chat.SignalHeartbeat, true); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	for len(server.receivedSignals()) < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	signals := server.receivedSignals()
	if len(signals) != 2 || signals[0].Type != chat.SignalTyping || signals[1].Type != chat.SignalHeartbeat {
		t.Fatalf("signals = %v", signals)
	}
}

func TestWSBinderCloseSilencesCallbacks(t *testing.T) {
	server := newWsTestServer(t)
	binder := chatclient.NewWSBinder(server.url(), "tok-123")

	var callbacks atomic.Int64
	if err := binder.Bind(context.Background(), "S1", func(*chat.Event) {
		callbacks.Add(1)
	}); err != nil {
		t.Fatal(err)
	}
	<-server.ready

	if err := binder.Close(); err != nil {
		t.Fatal(err)
	}
	before := callbacks.Load()

	// Close 返回后服务端再推送也不应触发回调
	frame, _ := (&chat.Event{Type: chat.EventTyping, SessionId: "S1"}).Encode()
	server.mu.Lock()
	_ = server.conn.WriteMessage(websocket.TextMessage, frame)
	server.mu.Unlock()

	time.Sleep(100 * time.Millisecond)
	if after := callbacks.Load(); after != before {
		t.Fatalf("Close 后仍有回调: %d -> %d", before, after)
	}

	// 重复 Close 安全
	if err := binder.Close(); err != nil {
		t.Fatal(err)
	}
	// 解绑后上行信号应报错
	if err := binder.SendSignal(chat.SignalTyping, true); err == nil {
		t.Fatal("解绑后上行应失败")
	}
}

func TestWSBinderSendBeforeBind(t *testing.T) {
	binder := chatclient.NewWSBinder("ws://localhost:1/ws", "tok")
	if err := binder.SendSignal(chat.SignalTyping, true); err == nil {
		t.Fatal("未绑定时上行应失败")
	}
}

func TestWSBinderDialFailure(t *testing.T) {
	binder := chatclient.NewWSBinder("ws://127.0.0.1:1/ws", "tok")
	err := binder.Bind(context.Background(), "S1", func(*chat.Event) {})
	if err == nil {
		t.Fatal("连接失败应返回错误")
	}
}
