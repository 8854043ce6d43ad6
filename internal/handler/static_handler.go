// Package handler 提供 HTTP 请求处理器
// 本文件实现语音附件的静态访问网关
// 与普通静态目录不同：超过 24 小时可播放窗口的语音直接拒绝
package handler

import (
	"io"
	"net/http"
	"strings"
	"time"

	"fyp_chat_server/internal/infrastructure/metrics"
	"fyp_chat_server/internal/infrastructure/storage"
	"fyp_chat_server/pkg/voicenote"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// VoiceNoteHandler 语音附件访问处理器
type VoiceNoteHandler struct {
	store storage.ObjectStorage
}

// NewVoiceNoteHandler 创建语音附件处理器实例
func NewVoiceNoteHandler(store storage.ObjectStorage) *VoiceNoteHandler {
	return &VoiceNoteHandler{store: store}
}

// Serve 按对象 key 返回语音附件
// GET /static/voice_notes/*key
// 录制时间编码在 key 的文件名里，过期判定不需要回查数据库；
// 超窗请求返回 410 Gone，数据行与存储对象都不删除
func (h *VoiceNoteHandler) Serve(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if key == "" {
		c.Status(http.StatusNotFound)
		return
	}

	recordedAt, err := voicenote.ParseKeyTime(key)
	if err != nil {
		zap.L().Warn("bad voice note key", zap.String("key", key), zap.Error(err))
		c.Status(http.StatusNotFound)
		return
	}
	if voicenote.Expired(recordedAt, time.Now()) {
		metrics.VoiceExpiredRefusalsTotal.Inc()
		c.Status(http.StatusGone)
		return
	}

	obj, err := h.store.Get(key)
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	defer obj.Close()

	c.Header("Content-Type", contentTypeForKey(key))
	c.Header("Cache-Control", "private, max-age=3600")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, obj); err != nil {
		zap.L().Warn("voice note stream interrupted", zap.String("key", key), zap.Error(err))
	}
}

// contentTypeForKey 按扩展名推断 MIME
func contentTypeForKey(key string) string {
	switch {
	case strings.HasSuffix(key, ".webm"):
		return "audio/webm"
	case strings.HasSuffix(key, ".ogg"):
		return "audio/ogg"
	case strings.HasSuffix(key, ".mp3"):
		return "audio/mpeg"
	case strings.HasSuffix(key, ".wav"):
		return "audio/wav"
	case strings.HasSuffix(key, ".m4a"):
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}
