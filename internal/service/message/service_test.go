package message_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"fyp_chat_server/internal/dao/mysql"
	"fyp_chat_server/internal/dao/mysql/repository"
	"fyp_chat_server/internal/dto/request"
	"fyp_chat_server/internal/dto/respond"
	"fyp_chat_server/internal/infrastructure/storage"
	"fyp_chat_server/internal/model"
	"fyp_chat_server/internal/service"
	"fyp_chat_server/internal/service/chat"
	"fyp_chat_server/internal/service/message"
	"fyp_chat_server/pkg/constants"
	"fyp_chat_server/pkg/enum/message/message_kind_enum"
	"fyp_chat_server/pkg/errorx"
)

// memCache 同步执行任务的内存缓存，让缓存副作用在断言前完成
type memCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string]string)}
}

func (c *memCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	c.data[key] = value
	c.mu.Unlock()
	return nil
}

func (c *memCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *memCache) GetOrError(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.data[key]; ok {
		return v, nil
	}
	return "", errorx.New(errorx.CodeCacheError, "key not found")
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
	return nil
}

func (c *memCache) DeleteByPattern(ctx context.Context, pattern string) error {
	return nil
}

func (c *memCache) SubmitTask(action func()) {
	action()
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

type fixture struct {
	svc    service.MessageService
	repos  *repository.Repositories
	cache  *memCache
	store  *storage.MemoryStorage
	hub    *chat.Hub
	broker *chat.ChannelBroker
}

// newFixture 组装 sqlite 仓储、内存缓存/存储与单机事件代理
// 并预置一个学生-导师会话 S1
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := mysql.Migrate(db); err != nil {
		t.Fatal(err)
	}
	repos := repository.NewRepositories(db)

	seed := []*model.UserInfo{
		{Uuid: "U_stu", Nickname: "张三", Email: "stu@example.edu", Role: model.RoleStudent, RawPassword: "x"},
		{Uuid: "U_sup", Nickname: "王老师", Email: "sup@example.edu", Role: model.RoleSupervisor, RawPassword: "x"},
	}
	for _, u := range seed {
		if err := repos.User.Create(u); err != nil {
			t.Fatal(err)
		}
	}
	if err := repos.Session.Create(&model.FypSession{
		Uuid: "S1", StudentId: "U_stu", SupervisorId: "U_sup", ProjectTitle: "实时聊天系统",
	}); err != nil {
		t.Fatal(err)
	}

	cache := newMemCache()
	store := storage.NewMemoryStorage("http://localhost:8000/static/voice_notes")
	hub := chat.NewHub(repos.User, cache)
	broker := chat.NewChannelBroker(hub)
	hub.SetBroker(broker)
	go broker.Start()
	t.Cleanup(broker.Close)

	return &fixture{
		svc:    message.NewMessageService(repos, cache, store, hub),
		repos:  repos,
		cache:  cache,
		store:  store,
		hub:    hub,
		broker: broker,
	}
}

// joinMember 挂一个测试成员到会话话题上
func joinMember(f *fixture, userId string) *chat.Member {
	m := &chat.Member{
		UserId:    userId,
		SessionId: "S1",
		Send:      make(chan []byte, constants.CHANNEL_SIZE),
	}
	f.hub.Join(m)
	// 排掉入场时的 presence_sync 帧
	for {
		select {
		case <-m.Send:
		default:
			return m
		}
	}
}

func recvEvent(t *testing.T, m *chat.Member) *chat.Event {
	t.Helper()
	select {
	case frame := <-m.Send:
		evt, err := chat.DecodeEvent(frame)
		if err != nil {
			t.Fatal(err)
		}
		return evt
	case <-time.After(time.Second):
		t.Fatal("等待推送超时")
		return nil
	}
}

func TestSendTextMessage(t *testing.T) {
	f := newFixture(t)
	counterpart := joinMember(f, "U_sup")
	senderTab := joinMember(f, "U_stu")

	rsp, err := f.svc.SendMessage("U_stu", request.SendMessageRequest{
		SessionId: "S1",
		Kind:      message_kind_enum.Text,
		Content:   "初稿已上传，请您审阅",
	})
	if err != nil {
		t.Fatal(err)
	}

	if rsp.Uuid == "" || rsp.SendId != "U_stu" || rsp.SendName != "张三" {
		t.Fatalf("rsp = %+v", rsp)
	}
	if len(rsp.ReadBy) != 1 || rsp.ReadBy[0] != "U_stu" {
		t.Fatalf("新消息的已读名单应只含发送者: %v", rsp.ReadBy)
	}

	// 对端收到插入事件
	evt := recvEvent(t, counterpart)
	if evt.Type != chat.EventMessageInserted || evt.Message == nil || evt.Message.Uuid != rsp.Uuid {
		t.Fatalf("evt = %+v", evt)
	}
	// 发送者自己的连接不收回显帧
	select {
	case frame := <-senderTab.Send:
		t.Fatalf("发送者不应收到自己的插入事件: %s", string(frame))
	case <-time.After(100 * time.Millisecond):
	}

	// 会话摘要已更新
	sess, err := f.repos.Session.FindByUuid("S1")
	if err != nil {
		t.Fatal(err)
	}
	if sess.LastMessage != "初稿已上传，请您审阅" || !sess.LastMessageAt.Valid {
		t.Fatalf("摘要未更新: %+v", sess)
	}
}

func TestSendMessageValidation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name     string
		userId   string
		req      request.SendMessageRequest
		wantCode int
	}{
		{
			"空文本",
			"U_stu",
			request.SendMessageRequest{SessionId: "S1", Kind: message_kind_enum.Text, Content: "   "},
			errorx.CodeInvalidParam,
		},
		{
			"语音缺附件",
			"U_stu",
			request.SendMessageRequest{SessionId: "S1", Kind: message_kind_enum.Audio},
			errorx.CodeInvalidParam,
		},
		{
			"非会话参与者",
			"U_outsider",
			request.SendMessageRequest{SessionId: "S1", Kind: message_kind_enum.Text, Content: "hi"},
			errorx.CodeNotSessionParticipant,
		},
		{
			"会话不存在",
			"U_stu",
			request.SendMessageRequest{SessionId: "S_ghost", Kind: message_kind_enum.Text, Content: "hi"},
			errorx.CodeNotFound,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := f.svc.SendMessage(c.userId, c.req)
			if errorx.GetCode(err) != c.wantCode {
				t.Fatalf("code = %d, want %d (err=%v)", errorx.GetCode(err), c.wantCode, err)
			}
		})
	}
}

func TestGetMessageListCaching(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.SendMessage("U_stu", request.SendMessageRequest{
		SessionId: "S1", Kind: message_kind_enum.Text, Content: "第一条",
	}); err != nil {
		t.Fatal(err)
	}

	list, err := f.svc.GetMessageList("U_sup", "S1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Content != "第一条" {
		t.Fatalf("list = %+v", list)
	}
	if !f.cache.has("message_list_S1") {
		t.Fatal("查询后应回填缓存")
	}

	// 非参与者查不了
	if _, err := f.svc.GetMessageList("U_outsider", "S1"); errorx.GetCode(err) != errorx.CodeNotSessionParticipant {
		t.Fatalf("err = %v", err)
	}
}

func TestGetMessageListRefreshesExpired(t *testing.T) {
	f := newFixture(t)

	// 直接塞一份带陈旧 Expired 标记的缓存：语音已录了 25 小时但标记还是 false
	stale := []respond.MessageRespond{{
		Uuid: "900", SessionId: "S1", SendId: "U_stu",
		Kind: message_kind_enum.Audio, Url: "/static/voice_notes/S1/U_stu/1.webm",
		Duration: 5, ReadBy: []string{"U_stu"},
		CreatedAt: time.Now().Add(-25 * time.Hour).Format(time.RFC3339),
		Expired:   false,
	}}
	data, err := json.Marshal(stale)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.cache.Set(context.Background(), "message_list_S1", string(data), time.Minute); err != nil {
		t.Fatal(err)
	}

	list, err := f.svc.GetMessageList("U_stu", "S1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || !list[0].Expired {
		t.Fatalf("缓存命中也应按当前时刻重算过期标记: %+v", list)
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	f := newFixture(t)

	rsp, err := f.svc.SendMessage("U_stu", request.SendMessageRequest{
		SessionId: "S1", Kind: message_kind_enum.Text, Content: "请查收",
	})
	if err != nil {
		t.Fatal(err)
	}

	reader := joinMember(f, "U_sup")
	senderMember := joinMember(f, "U_stu")

	updated, err := f.svc.MarkRead("U_sup", rsp.Uuid)
	if err != nil {
		t.Fatal(err)
	}
	if len(updated.ReadBy) != 2 {
		t.Fatalf("readBy = %v", updated.ReadBy)
	}

	// 发送者收到更新事件（双勾），标记者自己不收
	evt := recvEvent(t, senderMember)
	if evt.Type != chat.EventMessageUpdated || evt.Message.Uuid != rsp.Uuid {
		t.Fatalf("evt = %+v", evt)
	}
	select {
	case frame := <-reader.Send:
		t.Fatalf("标记者不应收到自己的更新事件: %s", string(frame))
	case <-time.After(100 * time.Millisecond):
	}

	// 重复标记幂等返回，不再广播
	again, err := f.svc.MarkRead("U_sup", rsp.Uuid)
	if err != nil {
		t.Fatal(err)
	}
	if len(again.ReadBy) != 2 {
		t.Fatalf("readBy = %v", again.ReadBy)
	}
	select {
	case frame := <-senderMember.Send:
		t.Fatalf("重复标记不应再广播: %s", string(frame))
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMarkReadErrors(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.MarkRead("U_stu", "not-a-number"); errorx.GetCode(err) != errorx.CodeInvalidParam {
		t.Fatalf("err = %v", err)
	}
	if _, err := f.svc.MarkRead("U_stu", "424242"); errorx.GetCode(err) != errorx.CodeNotFound {
		t.Fatalf("err = %v", err)
	}
}

// buildVoiceUpload 构造 multipart 上传，返回解析出来的 FileHeader
func buildVoiceUpload(t *testing.T, filename string, payload []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("voice", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	req, err := http.NewRequest(http.MethodPost, "/message/uploadVoice", body)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		t.Fatal(err)
	}
	return req.MultipartForm.File["voice"][0]
}

func TestUploadVoiceNote(t *testing.T) {
	f := newFixture(t)

	fh := buildVoiceUpload(t, "note.webm", []byte("fake-webm-audio-bytes"))
	url, err := f.svc.UploadVoiceNote("U_stu", "S1", fh)
	if err != nil {
		t.Fatal(err)
	}
	if url == "" {
		t.Fatal("上传成功应返回可访问 URL")
	}
}

func TestUploadVoiceNoteSameSecondKeysDiffer(t *testing.T) {
	f := newFixture(t)

	// key 精确到秒，同一秒内的第二次上传必须顺延出不同的 key
	fh := buildVoiceUpload(t, "note.webm", []byte("fake-webm-audio-bytes"))
	first, err := f.svc.UploadVoiceNote("U_stu", "S1", fh)
	if err != nil {
		t.Fatal(err)
	}
	fh2 := buildVoiceUpload(t, "note.webm", []byte("other-audio-bytes"))
	second, err := f.svc.UploadVoiceNote("U_stu", "S1", fh2)
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatalf("两次上传共享了同一个存储 key: %s", first)
	}
}

func TestUploadVoiceNoteEmpty(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.UploadVoiceNote("U_stu", "S1", nil); !errorsIsCode(err, errorx.CodeEmptyRecording) {
		t.Fatalf("err = %v", err)
	}

	fh := buildVoiceUpload(t, "empty.webm", nil)
	if _, err := f.svc.UploadVoiceNote("U_stu", "S1", fh); !errorsIsCode(err, errorx.CodeEmptyRecording) {
		t.Fatalf("err = %v", err)
	}
}

func TestUploadVoiceNoteTooLarge(t *testing.T) {
	f := newFixture(t)

	// 大小检查先于内容读取，直接构造超限的 FileHeader
	fh := &multipart.FileHeader{Filename: "huge.webm", Size: constants.VOICE_MAX_SIZE + 1}
	if _, err := f.svc.UploadVoiceNote("U_stu", "S1", fh); errorx.GetCode(err) != errorx.CodeInvalidParam {
		t.Fatalf("err = %v", err)
	}
}

func TestUploadVoiceNoteNonParticipant(t *testing.T) {
	f := newFixture(t)

	fh := buildVoiceUpload(t, "note.webm", []byte("fake-webm-audio-bytes"))
	if _, err := f.svc.UploadVoiceNote("U_outsider", "S1", fh); errorx.GetCode(err) != errorx.CodeNotSessionParticipant {
		t.Fatalf("err = %v", err)
	}
}

func errorsIsCode(err error, code int) bool {
	return err != nil && errorx.GetCode(err) == code
}
