// Package voice 实现语音消息的采集状态机
// 空闲 -> 录音中 -> （完成：上传并发送 | 放弃：释放设备，不产生消息）
// 录音期间每秒上报一次时长，并向会话话题广播录音中信号
package voice

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"fyp_chat_server/internal/chatclient"
	"fyp_chat_server/internal/service/chat"
	"fyp_chat_server/pkg/errorx"
)

// Recorder 录音设备抽象
// 生产实现对接系统音频输入；单测注入内存实现
type Recorder interface {
	// Start 占用录音设备并开始采集
	Start(ctx context.Context) error
	// Stop 结束采集并返回完整音频数据
	Stop() ([]byte, error)
	// Cancel 放弃采集并释放设备，已采集数据丢弃
	Cancel() error
}

// 采集状态
type captureState int8

const (
	stateIdle captureState = iota
	stateRecording
)

// Capture 一次录音会话的状态机
// 同一时间只允许一次录音；Begin 到 Finish/Abort 之间为录音中
type Capture struct {
	recorder Recorder
	session  *chatclient.Session
	store    chatclient.MessageStore
	binder   chatclient.Binder
	clock    chatclient.Clock

	mu        sync.Mutex
	state     captureState
	startedAt time.Time
	tickStop  chan struct{}

	// onTick 每秒一次的时长回调（秒），可为 nil
	onTick func(seconds int)
}

// NewCapture 创建采集状态机
func NewCapture(recorder Recorder, session *chatclient.Session, store chatclient.MessageStore, binder chatclient.Binder, clock chatclient.Clock) *Capture {
	if clock == nil {
		clock = time.Now
	}
	return &Capture{
		recorder: recorder,
		session:  session,
		store:    store,
		binder:   binder,
		clock:    clock,
	}
}

// OnTick 注册时长回调
func (c *Capture) OnTick(fn func(seconds int)) {
	c.mu.Lock()
	c.onTick = fn
	c.mu.Unlock()
}

// Recording 当前是否在录音中
func (c *Capture) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateRecording
}

// Begin 开始录音
// 设备占用失败返回 MicrophoneUnavailable，状态保持空闲
func (c *Capture) Begin(ctx context.Context) error {
	c.mu.Lock()
	if c.state != stateIdle {
		c.mu.Unlock()
		return errorx.New(errorx.CodeInvalidParam, "已有录音在进行中")
	}
	c.mu.Unlock()

	if err := c.recorder.Start(ctx); err != nil {
		return errorx.Wrap(err, errorx.CodeMicrophoneUnavailable, "无法获取录音设备")
	}

	c.mu.Lock()
	c.state = stateRecording
	c.startedAt = c.clock()
	c.tickStop = make(chan struct{})
	stop := c.tickStop
	c.mu.Unlock()

	// 广播录音中；对端的指示以显式停止为准，60 秒兜底在接收侧
	if err := c.binder.SendSignal(chat.SignalRecording, true); err != nil {
		zap.L().Debug("recording signal send failed", zap.Error(err))
	}

	go c.tickLoop(stop)
	return nil
}

// Finish 结束录音，上传附件并发送语音消息
// 空录音返回 EmptyRecording；上传失败返回 UploadFailed；
// 落库失败时附件成为孤儿对象，记录日志但不隐藏错误
func (c *Capture) Finish(ctx context.Context) (*chatclient.LocalMessage, error) {
	duration, err := c.teardown()
	if err != nil {
		return nil, err
	}

	blob, err := c.recorder.Stop()
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CodeMicrophoneUnavailable, "录音设备读取失败")
	}
	if len(blob) == 0 {
		// 没有任何音频数据：不上传、不发送、不留占位
		return nil, errorx.ErrEmptyRecording
	}

	filename := fmt.Sprintf("%d.webm", c.clock().Unix())
	url, err := c.store.UploadVoiceNote(ctx, c.session.SessionId, filename, bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CodeUploadFailed, "语音上传失败")
	}

	msg, err := c.session.SendVoice(ctx, url, duration, "audio/webm", int64(len(blob)), "local:"+filename)
	if err != nil {
		// 附件已上传但消息未落库，孤儿对象留在存储里等待清理
		zap.L().Warn("voice note uploaded but message insert failed",
			zap.String("url", url), zap.Error(err))
		return nil, err
	}
	return msg, nil
}

// Abort 放弃录音：释放设备、停止广播，不产生任何消息
func (c *Capture) Abort() error {
	if _, err := c.teardown(); err != nil {
		return err
	}
	return c.recorder.Cancel()
}

// teardown 退出录音态的公共路径：停计时、停广播，返回时长（秒）
func (c *Capture) teardown() (int, error) {
	c.mu.Lock()
	if c.state != stateRecording {
		c.mu.Unlock()
		return 0, errorx.New(errorx.CodeInvalidParam, "当前没有进行中的录音")
	}
	c.state = stateIdle
	close(c.tickStop)
	c.tickStop = nil
	duration := int(c.clock().Sub(c.startedAt) / time.Second)
	c.mu.Unlock()

	if duration < 1 {
		duration = 1
	}
	if err := c.binder.SendSignal(chat.SignalRecording, false); err != nil {
		zap.L().Debug("recording signal send failed", zap.Error(err))
	}
	return duration, nil
}

// tickLoop 每秒一次的时长上报
func (c *Capture) tickLoop(stop chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	start := c.startedAt
	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			fn := c.onTick
			c.mu.Unlock()
			if fn != nil {
				fn(int(c.clock().Sub(start) / time.Second))
			}
		case <-stop:
			return
		}
	}
}
