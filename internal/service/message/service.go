// Package message 提供消息相关的业务逻辑
// 消息历史、发送、已读回执与语音附件上传
package message

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"fyp_chat_server/internal/dao/mysql/repository"
	myredis "fyp_chat_server/internal/dao/redis"
	"fyp_chat_server/internal/dto/request"
	"fyp_chat_server/internal/dto/respond"
	"fyp_chat_server/internal/infrastructure/metrics"
	"fyp_chat_server/internal/infrastructure/storage"
	"fyp_chat_server/internal/model"
	"fyp_chat_server/internal/service/chat"
	"fyp_chat_server/pkg/constants"
	"fyp_chat_server/pkg/enum/message/message_kind_enum"
	"fyp_chat_server/pkg/errorx"
	"fyp_chat_server/pkg/util/snowflake"
	"fyp_chat_server/pkg/voicenote"
)

type messageService struct {
	repos *repository.Repositories
	cache myredis.AsyncCacheService
	store storage.ObjectStorage
	hub   *chat.Hub
}

// NewMessageService 构造函数，注入所有依赖
func NewMessageService(
	repos *repository.Repositories,
	cache myredis.AsyncCacheService,
	store storage.ObjectStorage,
	hub *chat.Hub,
) *messageService {
	return &messageService{repos: repos, cache: cache, store: store, hub: hub}
}

// GetMessageList 获取会话全部消息，按服务端时间升序
// 先查 Redis 缓存，未命中回源 MySQL 并回填
// 语音消息的 Expired 按响应时刻重新计算，缓存里的值不可信
func (m *messageService) GetMessageList(userId, sessionId string) ([]respond.MessageRespond, error) {
	if _, err := m.checkParticipant(sessionId, userId); err != nil {
		return nil, err
	}

	key := "message_list_" + sessionId
	now := time.Now()

	// 缓存命中
	if cached, err := m.cache.GetOrError(context.Background(), key); err == nil {
		var list []respond.MessageRespond
		if err := json.Unmarshal([]byte(cached), &list); err == nil {
			refreshExpired(list, now)
			return list, nil
		}
		// 缓存损坏，删掉回源
		_ = m.cache.Delete(context.Background(), key)
	}

	messages, err := m.repos.Message.FindBySessionId(sessionId)
	if err != nil {
		zap.L().Error("加载消息历史失败", zap.Error(err))
		return nil, errorx.Wrap(err, errorx.CodeStoreUnavailable, "消息历史加载失败")
	}

	list := make([]respond.MessageRespond, 0, len(messages))
	for i := range messages {
		list = append(list, *toMessageRespond(&messages[i], now))
	}

	// 异步回填缓存
	m.cache.SubmitTask(func() {
		if data, err := json.Marshal(list); err == nil {
			_ = m.cache.Set(context.Background(), key, string(data), time.Minute*constants.REDIS_TIMEOUT)
		}
	})

	return list, nil
}

// SendMessage 写入一条消息并向会话话题广播
// 落库成功才算发送成功；已读名单初始只含发送者自己
func (m *messageService) SendMessage(userId string, req request.SendMessageRequest) (*respond.MessageRespond, error) {
	if _, err := m.checkParticipant(req.SessionId, userId); err != nil {
		return nil, err
	}
	sender, err := m.repos.User.FindByUuid(userId)
	if err != nil {
		zap.L().Error(err.Error())
		return nil, errorx.ErrServerBusy
	}

	// 按消息种类校验载荷
	switch req.Kind {
	case message_kind_enum.Text:
		if strings.TrimSpace(req.Content) == "" {
			return nil, errorx.New(errorx.CodeInvalidParam, "消息内容不能为空")
		}
	case message_kind_enum.Audio:
		if req.Url == "" || req.Duration <= 0 {
			return nil, errorx.New(errorx.CodeInvalidParam, "语音消息缺少附件或时长")
		}
	case message_kind_enum.File:
		if req.Url == "" {
			return nil, errorx.New(errorx.CodeInvalidParam, "文件消息缺少附件")
		}
	}

	msg := &model.Message{
		Uuid:       snowflake.GenerateID(),
		SessionId:  req.SessionId,
		Kind:       req.Kind,
		Content:    req.Content,
		Url:        req.Url,
		SendId:     sender.Uuid,
		SendName:   sender.Nickname,
		SendAvatar: sender.Avatar,
		Duration:   req.Duration,
		FileName:   req.FileName,
		FileType:   req.FileType,
		FileSize:   req.FileSize,
		// 发送者视角自己的消息永远是已读的
		ReadBy: model.ReadBySet{sender.Uuid},
	}
	// 消息与会话摘要在同一事务里写入，摘要不会领先或落后于消息
	err = m.repos.Transaction(func(tx *repository.Repositories) error {
		if err := tx.Message.Create(msg); err != nil {
			return err
		}
		return tx.Session.UpdateLastMessage(req.SessionId, summary(msg), msg.CreatedAt)
	})
	if err != nil {
		zap.L().Error("消息落库失败", zap.Error(err))
		// 语音消息此时附件已上传成功，区分错误码方便前端提示
		if req.Kind == message_kind_enum.Audio {
			return nil, errorx.Wrap(err, errorx.CodeMessageInsertFailed, "语音消息发送失败")
		}
		return nil, errorx.Wrap(err, errorx.CodeStoreUnavailable, "消息发送失败")
	}
	metrics.MessagesTotal.WithLabelValues(strconv.Itoa(int(msg.Kind))).Inc()

	rsp := toMessageRespond(msg, time.Now())

	// 追加进缓存（缓存不存在时跳过，等下次查询回填）
	m.appendToCache(req.SessionId, rsp)

	// 向会话话题广播；发送端靠乐观回显，不接收自己的事件
	m.hub.PublishEvent(&chat.Event{
		Type:      chat.EventMessageInserted,
		SessionId: req.SessionId,
		SenderId:  userId,
		Message:   rsp,
	})

	return rsp, nil
}

// MarkRead 将 userId 加入消息的已读名单并广播变更
// 名单只增不减；重复标记是安全的空操作，不触发广播
func (m *messageService) MarkRead(userId, messageId string) (*respond.MessageRespond, error) {
	uuid, err := strconv.ParseInt(messageId, 10, 64)
	if err != nil {
		return nil, errorx.New(errorx.CodeInvalidParam, "消息 ID 格式错误")
	}

	msg, err := m.repos.Message.FindByUuid(uuid)
	if err != nil {
		if errorx.GetCode(err) == errorx.CodeNotFound {
			return nil, errorx.New(errorx.CodeNotFound, "消息不存在")
		}
		zap.L().Error(err.Error())
		return nil, errorx.Wrap(err, errorx.CodeStoreUnavailable, "消息查询失败")
	}
	if _, err := m.checkParticipant(msg.SessionId, userId); err != nil {
		return nil, err
	}

	now := time.Now()
	if msg.ReadBy.Contains(userId) {
		// 已读过，幂等返回
		return toMessageRespond(msg, now), nil
	}

	msg.ReadBy = msg.ReadBy.Add(userId)
	if err := m.repos.Message.UpdateReadBy(uuid, msg.ReadBy); err != nil {
		zap.L().Error("更新已读名单失败", zap.Error(err))
		return nil, errorx.Wrap(err, errorx.CodeStoreUnavailable, "已读回执写入失败")
	}
	metrics.ReadReceiptsTotal.Inc()

	// 缓存里的消息体已过时，直接失效
	m.cache.SubmitTask(func() {
		_ = m.cache.Delete(context.Background(), "message_list_"+msg.SessionId)
	})

	rsp := toMessageRespond(msg, now)
	m.hub.PublishEvent(&chat.Event{
		Type:      chat.EventMessageUpdated,
		SessionId: msg.SessionId,
		SenderId:  userId, // 标记者自己的连接不需要这条事件
		Message:   rsp,
	})

	return rsp, nil
}

// UploadVoiceNote 保存语音附件，返回可访问 URL
// 空文件视为无效录音直接拒绝；只接受音频 MIME
func (m *messageService) UploadVoiceNote(userId, sessionId string, fileHeader *multipart.FileHeader) (string, error) {
	if _, err := m.checkParticipant(sessionId, userId); err != nil {
		return "", err
	}

	if fileHeader == nil || fileHeader.Size == 0 {
		metrics.VoiceUploadsTotal.WithLabelValues("empty").Inc()
		return "", errorx.ErrEmptyRecording
	}
	if fileHeader.Size > constants.VOICE_MAX_SIZE {
		metrics.VoiceUploadsTotal.WithLabelValues("too_large").Inc()
		return "", errorx.Newf(errorx.CodeInvalidParam, "语音附件超过 %dMB 上限", constants.VOICE_MAX_SIZE>>20)
	}

	src, err := fileHeader.Open()
	if err != nil {
		zap.L().Error(err.Error())
		return "", errorx.Wrap(err, errorx.CodeUploadFailed, "语音上传失败")
	}
	defer src.Close()

	// Magic Bytes 校验 MIME 类型
	buffer := make([]byte, 512)
	n, err := src.Read(buffer)
	if err != nil && err != io.EOF {
		zap.L().Error(err.Error())
		return "", errorx.Wrap(err, errorx.CodeUploadFailed, "语音上传失败")
	}
	contentType := http.DetectContentType(buffer[:n])
	if !strings.HasPrefix(contentType, "audio/") &&
		!strings.HasPrefix(contentType, "video/webm") && // webm 音频常被嗅探为 video/webm
		!strings.HasPrefix(contentType, "application/octet-stream") {
		metrics.VoiceUploadsTotal.WithLabelValues("bad_type").Inc()
		return "", errorx.Newf(errorx.CodeInvalidParam, "invalid voice type: %s", contentType)
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", errorx.Wrap(err, errorx.CodeUploadFailed, "语音上传失败")
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileHeader.Filename)), ".")
	if ext == "" {
		ext = "webm"
	}
	// key 带 unix 秒时间戳，同一秒内的重复上传顺延一秒，避免覆盖已有附件
	at := time.Now()
	key := voicenote.BuildKey(sessionId, userId, at, ext)
	for tries := 0; m.store.Exists(key) && tries < 3; tries++ {
		at = at.Add(time.Second)
		key = voicenote.BuildKey(sessionId, userId, at, ext)
	}

	url, err := m.store.Put(key, src, fileHeader.Size)
	if err != nil {
		zap.L().Error("语音附件写入存储失败", zap.Error(err))
		metrics.VoiceUploadsTotal.WithLabelValues("store_error").Inc()
		return "", errorx.Wrap(err, errorx.CodeUploadFailed, "语音上传失败")
	}
	metrics.VoiceUploadsTotal.WithLabelValues("ok").Inc()

	return url, nil
}

// checkParticipant 校验用户是否为会话参与者
func (m *messageService) checkParticipant(sessionId, userId string) (bool, error) {
	sess, err := m.repos.Session.FindByUuid(sessionId)
	if err != nil {
		if errorx.GetCode(err) == errorx.CodeNotFound {
			return false, errorx.New(errorx.CodeNotFound, "会话不存在")
		}
		zap.L().Error(err.Error())
		return false, errorx.Wrap(err, errorx.CodeStoreUnavailable, "会话查询失败")
	}
	if !sess.HasParticipant(userId) {
		return false, errorx.New(errorx.CodeNotSessionParticipant, "不是该会话的参与者")
	}
	return true, nil
}

// appendToCache 将新消息追加进已有缓存
// 缓存不存在时什么都不做，等下次查询回源重建
func (m *messageService) appendToCache(sessionId string, rsp *respond.MessageRespond) {
	m.cache.SubmitTask(func() {
		key := "message_list_" + sessionId
		cached, err := m.cache.GetOrError(context.Background(), key)
		if err != nil {
			return
		}
		var list []respond.MessageRespond
		if err := json.Unmarshal([]byte(cached), &list); err != nil {
			_ = m.cache.Delete(context.Background(), key)
			return
		}
		list = append(list, *rsp)
		if data, err := json.Marshal(list); err == nil {
			_ = m.cache.Set(context.Background(), key, string(data), time.Minute*constants.REDIS_TIMEOUT)
		}
	})
}

// summary 生成会话列表展示用的消息摘要
func summary(msg *model.Message) string {
	switch msg.Kind {
	case message_kind_enum.Audio:
		return "[语音]"
	case message_kind_enum.File:
		return "[文件] " + msg.FileName
	default:
		return msg.Content
	}
}

// toMessageRespond 构造消息响应体
// 语音消息的 Expired 按 now 计算
func toMessageRespond(msg *model.Message, now time.Time) *respond.MessageRespond {
	rsp := &respond.MessageRespond{
		Uuid:       strconv.FormatInt(msg.Uuid, 10),
		SessionId:  msg.SessionId,
		SendId:     msg.SendId,
		SendName:   msg.SendName,
		SendAvatar: msg.SendAvatar,
		Kind:       msg.Kind,
		Content:    msg.Content,
		Url:        msg.Url,
		Duration:   msg.Duration,
		FileName:   msg.FileName,
		FileType:   msg.FileType,
		FileSize:   msg.FileSize,
		ReadBy:     append([]string(nil), msg.ReadBy...),
		CreatedAt:  msg.CreatedAt.Format(time.RFC3339),
	}
	if msg.Kind == message_kind_enum.Audio {
		rsp.Expired = voicenote.Expired(msg.CreatedAt, now)
	}
	return rsp
}

// refreshExpired 对缓存命中的列表按当前时间重算语音过期标记
func refreshExpired(list []respond.MessageRespond, now time.Time) {
	for i := range list {
		if list[i].Kind != message_kind_enum.Audio {
			continue
		}
		createdAt, err := time.Parse(time.RFC3339, list[i].CreatedAt)
		if err != nil {
			continue
		}
		list[i].Expired = voicenote.Expired(createdAt, now)
	}
}
