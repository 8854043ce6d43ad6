package voice_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"fyp_chat_server/internal/chatclient"
	"fyp_chat_server/internal/chatclient/voice"
	"fyp_chat_server/internal/dto/request"
	"fyp_chat_server/internal/dto/respond"
	"fyp_chat_server/internal/service/chat"
	"fyp_chat_server/pkg/enum/message/message_kind_enum"
	"fyp_chat_server/pkg/errorx"
)

// fakeRecorder 内存录音设备
type fakeRecorder struct {
	startErr error
	stopErr  error
	data     []byte

	mu       sync.Mutex
	started  bool
	canceled bool
}

func (r *fakeRecorder) Start(ctx context.Context) error {
	if r.startErr != nil {
		return r.startErr
	}
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()
	return nil
}

func (r *fakeRecorder) Stop() ([]byte, error) {
	if r.stopErr != nil {
		return nil, r.stopErr
	}
	return r.data, nil
}

func (r *fakeRecorder) Cancel() error {
	r.mu.Lock()
	r.canceled = true
	r.mu.Unlock()
	return nil
}

// fakeStore 记录上传与落库调用
type fakeStore struct {
	mu        sync.Mutex
	uploads   []string
	uploadErr error
	sendErr   error
	sent      []request.SendMessageRequest
}

func (s *fakeStore) LoadMessages(ctx context.Context, sessionId string) ([]respond.MessageRespond, error) {
	return nil, nil
}

func (s *fakeStore) SendMessage(ctx context.Context, req request.SendMessageRequest) (*respond.MessageRespond, error) {
	s.mu.Lock()
	s.sent = append(s.sent, req)
	s.mu.Unlock()
	if s.sendErr != nil {
		return nil, s.sendErr
	}
	return &respond.MessageRespond{
		Uuid: "100", SessionId: req.SessionId, SendId: "U_stu",
		Kind: req.Kind, Url: req.Url, Duration: req.Duration,
		FileType: req.FileType, FileSize: req.FileSize,
		ReadBy: []string{"U_stu"},
	}, nil
}

func (s *fakeStore) MarkRead(ctx context.Context, messageId string) (*respond.MessageRespond, error) {
	return &respond.MessageRespond{Uuid: messageId}, nil
}

func (s *fakeStore) UploadVoiceNote(ctx context.Context, sessionId, filename string, blob io.Reader, size int64) (string, error) {
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	s.mu.Lock()
	s.uploads = append(s.uploads, filename)
	s.mu.Unlock()
	return "/static/voice_notes/" + sessionId + "/" + filename, nil
}

func (s *fakeStore) LastSeen(ctx context.Context, userId string) (string, error) {
	return "", nil
}

// fakeBinder 记录上行信号
type fakeBinder struct {
	mu      sync.Mutex
	signals []chat.ClientSignal
}

func (b *fakeBinder) Bind(ctx context.Context, sessionId string, onEvent func(*chat.Event)) error {
	return nil
}

func (b *fakeBinder) SendSignal(signalType string, active bool) error {
	b.mu.Lock()
	b.signals = append(b.signals, chat.ClientSignal{Type: signalType, Active: active})
	b.mu.Unlock()
	return nil
}

func (b *fakeBinder) Close() error { return nil }

func (b *fakeBinder) recordingSignals() []bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []bool
	for _, s := range b.signals {
		if s.Type == chat.SignalRecording {
			out = append(out, s.Active)
		}
	}
	return out
}

func newCapture(recorder *fakeRecorder, store *fakeStore, binder *fakeBinder, clock chatclient.Clock) (*voice.Capture, *chatclient.Session) {
	session := chatclient.NewSession("S1", "U_stu", store, binder, nil, clock)
	return voice.NewCapture(recorder, session, store, binder, clock), session
}

func TestBeginMicrophoneUnavailable(t *testing.T) {
	recorder := &fakeRecorder{startErr: errors.New("device busy")}
	capture, _ := newCapture(recorder, &fakeStore{}, &fakeBinder{}, nil)

	err := capture.Begin(context.Background())
	if err == nil {
		t.Fatal("设备占用失败应返回错误")
	}
	if errorx.GetCode(err) != errorx.CodeMicrophoneUnavailable {
		t.Fatalf("code = %d, want %d", errorx.GetCode(err), errorx.CodeMicrophoneUnavailable)
	}
	if capture.Recording() {
		t.Fatal("失败后状态应保持空闲")
	}
}

func TestBeginTwiceRejected(t *testing.T) {
	capture, _ := newCapture(&fakeRecorder{}, &fakeStore{}, &fakeBinder{}, nil)

	if err := capture.Begin(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := capture.Begin(context.Background()); err == nil {
		t.Fatal("录音中再次 Begin 应被拒绝")
	}
}

func TestFinishEmptyRecording(t *testing.T) {
	store := &fakeStore{}
	binder := &fakeBinder{}
	capture, _ := newCapture(&fakeRecorder{data: nil}, store, binder, nil)

	if err := capture.Begin(context.Background()); err != nil {
		t.Fatal(err)
	}
	_, err := capture.Finish(context.Background())
	if !errors.Is(err, errorx.ErrEmptyRecording) {
		t.Fatalf("err = %v, want ErrEmptyRecording", err)
	}
	// 空录音不上传也不落库
	if len(store.uploads) != 0 || len(store.sent) != 0 {
		t.Fatalf("uploads=%v sent=%v", store.uploads, store.sent)
	}
	if capture.Recording() {
		t.Fatal("结束后状态应回到空闲")
	}
}

func TestFinishUploadFailed(t *testing.T) {
	store := &fakeStore{uploadErr: errors.New("storage full")}
	capture, _ := newCapture(&fakeRecorder{data: []byte("webm-bytes")}, store, &fakeBinder{}, nil)

	if err := capture.Begin(context.Background()); err != nil {
		t.Fatal(err)
	}
	_, err := capture.Finish(context.Background())
	if errorx.GetCode(err) != errorx.CodeUploadFailed {
		t.Fatalf("code = %d, want %d", errorx.GetCode(err), errorx.CodeUploadFailed)
	}
	if len(store.sent) != 0 {
		t.Fatal("上传失败不应落库")
	}
}

func TestFinishSendsVoiceMessage(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	store := &fakeStore{}
	binder := &fakeBinder{}
	capture, session := newCapture(&fakeRecorder{data: []byte("webm-bytes")}, store, binder, clock)

	if err := capture.Begin(context.Background()); err != nil {
		t.Fatal(err)
	}
	now = now.Add(5 * time.Second) // 录了 5 秒

	msg, err := capture.Finish(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if msg.Kind != message_kind_enum.Audio {
		t.Fatalf("kind = %d", msg.Kind)
	}
	if msg.Url == "" || msg.Duration != 5 {
		t.Fatalf("url=%s duration=%d", msg.Url, msg.Duration)
	}
	if msg.LocalPreview == "" {
		t.Fatal("确认后应保留本地回放引用")
	}
	if len(store.uploads) != 1 {
		t.Fatalf("uploads = %v", store.uploads)
	}

	msgs := session.Messages()
	if len(msgs) != 1 || msgs[0].Status != chatclient.StatusConfirmed {
		t.Fatalf("msgs = %+v", msgs)
	}

	// 录音中信号应成对出现：开始 true，结束 false
	signals := binder.recordingSignals()
	if len(signals) != 2 || !signals[0] || signals[1] {
		t.Fatalf("recording signals = %v", signals)
	}
}

func TestFinishInsertFailedLeavesNoMessage(t *testing.T) {
	store := &fakeStore{sendErr: errorx.New(errorx.CodeMessageInsertFailed, "消息发送失败")}
	capture, session := newCapture(&fakeRecorder{data: []byte("webm-bytes")}, store, &fakeBinder{}, nil)

	if err := capture.Begin(context.Background()); err != nil {
		t.Fatal(err)
	}
	_, err := capture.Finish(context.Background())
	if errorx.GetCode(err) != errorx.CodeMessageInsertFailed {
		t.Fatalf("code = %d", errorx.GetCode(err))
	}
	// 附件已上传（孤儿对象），但列表中不留占位
	if len(store.uploads) != 1 {
		t.Fatalf("uploads = %v", store.uploads)
	}
	if msgs := session.Messages(); len(msgs) != 0 {
		t.Fatalf("落库失败不应留下消息: %+v", msgs)
	}
}

func TestAbortReleasesDevice(t *testing.T) {
	recorder := &fakeRecorder{data: []byte("webm-bytes")}
	store := &fakeStore{}
	binder := &fakeBinder{}
	capture, session := newCapture(recorder, store, binder, nil)

	if err := capture.Begin(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := capture.Abort(); err != nil {
		t.Fatal(err)
	}

	if !recorder.canceled {
		t.Fatal("放弃录音应释放设备")
	}
	if len(store.uploads) != 0 || len(store.sent) != 0 {
		t.Fatal("放弃录音不应产生上传或消息")
	}
	if msgs := session.Messages(); len(msgs) != 0 {
		t.Fatalf("msgs = %+v", msgs)
	}
	if capture.Recording() {
		t.Fatal("放弃后状态应回到空闲")
	}

	signals := binder.recordingSignals()
	if len(signals) != 2 || !signals[0] || signals[1] {
		t.Fatalf("recording signals = %v", signals)
	}
}

func TestFinishWithoutBegin(t *testing.T) {
	capture, _ := newCapture(&fakeRecorder{}, &fakeStore{}, &fakeBinder{}, nil)
	if _, err := capture.Finish(context.Background()); err == nil {
		t.Fatal("没有进行中的录音时 Finish 应报错")
	}
}
