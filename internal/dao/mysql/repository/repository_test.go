package repository_test

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"fyp_chat_server/internal/dao/mysql"
	"fyp_chat_server/internal/dao/mysql/repository"
	"fyp_chat_server/internal/model"
	"fyp_chat_server/pkg/errorx"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestRepos 在内存 sqlite 上建表，测试完全不依赖外部 MySQL
func newTestRepos(t *testing.T) *repository.Repositories {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := mysql.Migrate(db); err != nil {
		t.Fatal(err)
	}
	return repository.NewRepositories(db)
}

func TestUserCreateAndFind(t *testing.T) {
	repos := newTestRepos(t)

	user := &model.UserInfo{
		Uuid:        "U1001",
		Nickname:    "张三",
		Email:       "zhangsan@example.edu",
		Role:        model.RoleStudent,
		RawPassword: "123456",
	}
	if err := repos.User.Create(user); err != nil {
		t.Fatal(err)
	}

	got, err := repos.User.FindByEmail("zhangsan@example.edu")
	if err != nil {
		t.Fatal(err)
	}
	if got.Uuid != "U1001" {
		t.Fatalf("uuid = %s, want U1001", got.Uuid)
	}
	// BeforeSave 应已将明文加密
	if got.Password == "123456" || got.Password == "" {
		t.Fatal("密码未经过 bcrypt 加密")
	}
	if !got.CheckPassword("123456") {
		t.Fatal("正确密码校验失败")
	}
	if got.CheckPassword("wrong") {
		t.Fatal("错误密码不应通过校验")
	}
}

func TestUserFindNotFound(t *testing.T) {
	repos := newTestRepos(t)

	_, err := repos.User.FindByUuid("U_nobody")
	if err == nil {
		t.Fatal("查不到用户应返回错误")
	}
	if errorx.GetCode(err) != errorx.CodeNotFound {
		t.Fatalf("code = %d, want %d", errorx.GetCode(err), errorx.CodeNotFound)
	}
	var codeErr *errorx.CodeError
	if !errors.As(err, &codeErr) {
		t.Fatal("错误应为 CodeError")
	}
}

func TestUserUpdateLastSeen(t *testing.T) {
	repos := newTestRepos(t)

	user := &model.UserInfo{Uuid: "U1002", Nickname: "李四", Email: "lisi@example.edu", RawPassword: "x"}
	if err := repos.User.Create(user); err != nil {
		t.Fatal(err)
	}

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)
	if err := repos.User.UpdateLastSeen("U1002", at); err != nil {
		t.Fatal(err)
	}

	got, err := repos.User.FindByUuid("U1002")
	if err != nil {
		t.Fatal(err)
	}
	if !got.LastSeenAt.Valid {
		t.Fatal("last_seen_at 应已写入")
	}
	if !got.LastSeenAt.Time.Equal(at) {
		t.Fatalf("last_seen_at = %v, want %v", got.LastSeenAt.Time, at)
	}
}

func TestSessionFindByParticipants(t *testing.T) {
	repos := newTestRepos(t)

	session := &model.FypSession{
		Uuid:         "S2001",
		StudentId:    "U_stu",
		SupervisorId: "U_sup",
		ProjectTitle: "基于 Go 的实时聊天系统",
	}
	if err := repos.Session.Create(session); err != nil {
		t.Fatal(err)
	}

	got, err := repos.Session.FindByParticipants("U_stu", "U_sup")
	if err != nil {
		t.Fatal(err)
	}
	if got.Uuid != "S2001" {
		t.Fatalf("uuid = %s, want S2001", got.Uuid)
	}
	if got.Counterpart("U_stu") != "U_sup" || got.Counterpart("U_sup") != "U_stu" {
		t.Fatal("Counterpart 解析错误")
	}
	if got.Counterpart("U_other") != "" {
		t.Fatal("非参与者的 Counterpart 应为空")
	}

	if _, err := repos.Session.FindByParticipants("U_sup", "U_stu"); errorx.GetCode(err) != errorx.CodeNotFound {
		t.Fatal("参与者顺序颠倒时不应命中")
	}
}

func TestSessionListOrder(t *testing.T) {
	repos := newTestRepos(t)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.Local)
	for i, uuid := range []string{"S_a", "S_b", "S_c"} {
		s := &model.FypSession{
			Uuid:          uuid,
			StudentId:     "U_stu",
			SupervisorId:  "U_sup" + uuid,
			LastMessageAt: sql.NullTime{Time: base.Add(time.Duration(i) * time.Hour), Valid: true},
		}
		if err := repos.Session.Create(s); err != nil {
			t.Fatal(err)
		}
	}

	sessions, err := repos.Session.FindByParticipant("U_stu")
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 3 {
		t.Fatalf("会话数 = %d, want 3", len(sessions))
	}
	// 最近有消息的排在最前
	if sessions[0].Uuid != "S_c" || sessions[2].Uuid != "S_a" {
		t.Fatalf("排序错误: %s %s %s", sessions[0].Uuid, sessions[1].Uuid, sessions[2].Uuid)
	}
}

func TestSessionUpdateLastMessage(t *testing.T) {
	repos := newTestRepos(t)

	if err := repos.Session.Create(&model.FypSession{Uuid: "S3001", StudentId: "a", SupervisorId: "b"}); err != nil {
		t.Fatal(err)
	}
	at := time.Date(2026, 3, 1, 15, 0, 0, 0, time.Local)
	if err := repos.Session.UpdateLastMessage("S3001", "开题报告初稿已上传", at); err != nil {
		t.Fatal(err)
	}

	got, err := repos.Session.FindByUuid("S3001")
	if err != nil {
		t.Fatal(err)
	}
	if got.LastMessage != "开题报告初稿已上传" {
		t.Fatalf("last_message = %s", got.LastMessage)
	}
	if !got.LastMessageAt.Valid || !got.LastMessageAt.Time.Equal(at) {
		t.Fatalf("last_message_at = %v, want %v", got.LastMessageAt, at)
	}
}

func TestMessageOrderWithinSameInstant(t *testing.T) {
	repos := newTestRepos(t)

	// 同一 created_at 下按雪花 ID 升序，保证顺序与产生顺序一致
	at := time.Date(2026, 3, 1, 16, 0, 0, 0, time.Local)
	for _, uuid := range []int64{103, 101, 102} {
		msg := &model.Message{
			Model:     gorm.Model{CreatedAt: at},
			Uuid:      uuid,
			SessionId: "S4001",
			SendId:    "U_stu",
			SendName:  "张三",
			Content:   "m",
			ReadBy:    model.ReadBySet{"U_stu"},
		}
		if err := repos.Message.Create(msg); err != nil {
			t.Fatal(err)
		}
	}

	messages, err := repos.Message.FindBySessionId("S4001")
	if err != nil {
		t.Fatal(err)
	}
	if len(messages) != 3 {
		t.Fatalf("消息数 = %d, want 3", len(messages))
	}
	for i, want := range []int64{101, 102, 103} {
		if messages[i].Uuid != want {
			t.Fatalf("messages[%d].Uuid = %d, want %d", i, messages[i].Uuid, want)
		}
	}
}

func TestMessageReadByRoundtrip(t *testing.T) {
	repos := newTestRepos(t)

	msg := &model.Message{
		Uuid:      201,
		SessionId: "S5001",
		SendId:    "U_stu",
		SendName:  "张三",
		Content:   "进度汇报",
		ReadBy:    model.ReadBySet{"U_stu"},
	}
	if err := repos.Message.Create(msg); err != nil {
		t.Fatal(err)
	}

	got, err := repos.Message.FindByUuid(201)
	if err != nil {
		t.Fatal(err)
	}
	if got.ReadByOther() {
		t.Fatal("仅发送者已读时 ReadByOther 应为 false")
	}

	if err := repos.Message.UpdateReadBy(201, got.ReadBy.Add("U_sup")); err != nil {
		t.Fatal(err)
	}

	got, err = repos.Message.FindByUuid(201)
	if err != nil {
		t.Fatal(err)
	}
	if !got.ReadBy.Contains("U_stu") || !got.ReadBy.Contains("U_sup") {
		t.Fatalf("read_by = %v", got.ReadBy)
	}
	if !got.ReadByOther() {
		t.Fatal("对端已读后 ReadByOther 应为 true")
	}
}

func TestMessageUniqueUuid(t *testing.T) {
	repos := newTestRepos(t)

	msg := &model.Message{Uuid: 301, SessionId: "S6001", SendId: "a", SendName: "n", ReadBy: model.ReadBySet{"a"}}
	if err := repos.Message.Create(msg); err != nil {
		t.Fatal(err)
	}
	dup := &model.Message{Uuid: 301, SessionId: "S6001", SendId: "a", SendName: "n", ReadBy: model.ReadBySet{"a"}}
	if err := repos.Message.Create(dup); err == nil {
		t.Fatal("重复雪花 ID 应被唯一索引拒绝")
	}
}

func TestUserFindByUuids(t *testing.T) {
	repos := newTestRepos(t)

	for _, u := range []struct {
		uuid, nickname string
		role           int8
	}{
		{"U7001", "张三", model.RoleStudent},
		{"U7002", "王老师", model.RoleSupervisor},
	} {
		if err := repos.User.Create(&model.UserInfo{
			Uuid: u.uuid, Nickname: u.nickname, Role: u.role,
			Email: u.uuid + "@example.edu", RawPassword: "123456",
		}); err != nil {
			t.Fatal(err)
		}
	}

	users, err := repos.User.FindByUuids([]string{"U7001", "U7002", "U_missing"})
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 2 {
		t.Fatalf("用户数 = %d, want 2（不存在的 UUID 直接跳过）", len(users))
	}
}

func TestTransactionRollsBack(t *testing.T) {
	repos := newTestRepos(t)

	insertFailed := errors.New("insert failed")
	err := repos.Transaction(func(tx *repository.Repositories) error {
		msg := &model.Message{Uuid: 401, SessionId: "S7001", SendId: "a", SendName: "n", ReadBy: model.ReadBySet{"a"}}
		if err := tx.Message.Create(msg); err != nil {
			t.Fatal(err)
		}
		return insertFailed
	})
	if !errors.Is(err, insertFailed) {
		t.Fatalf("err = %v, want 透传事务内的失败", err)
	}

	// 事务失败后消息不应落库
	if _, err := repos.Message.FindByUuid(401); errorx.GetCode(err) != errorx.CodeNotFound {
		t.Fatalf("err = %v, want NotFound（事务应整体回滚）", err)
	}
}
