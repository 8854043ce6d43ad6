package user_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"fyp_chat_server/internal/dao/mysql"
	"fyp_chat_server/internal/dao/mysql/repository"
	"fyp_chat_server/internal/dto/request"
	"fyp_chat_server/internal/model"
	"fyp_chat_server/internal/service"
	"fyp_chat_server/internal/service/user"
	"fyp_chat_server/pkg/errorx"
	"fyp_chat_server/pkg/util/jwt"
)

// kvCache 内存键值缓存
type kvCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newKvCache() *kvCache {
	return &kvCache{data: make(map[string]string)}
}

func (c *kvCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	c.data[key] = value
	c.mu.Unlock()
	return nil
}

func (c *kvCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *kvCache) GetOrError(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.data[key]; ok {
		return v, nil
	}
	return "", errorx.New(errorx.CodeCacheError, "key not found")
}

func (c *kvCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
	return nil
}

func (c *kvCache) DeleteByPattern(ctx context.Context, pattern string) error { return nil }

func newTestService(t *testing.T) (service.UserService, *repository.Repositories, *kvCache) {
	t.Helper()
	jwt.Init("test-secret", 30, 24)

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
	cache := newKvCache()
	return user.NewUserService(repos, cache), repos, cache
}

func TestRegisterAndLogin(t *testing.T) {
	svc, _, _ := newTestService(t)

	rsp, err := svc.Register(request.RegisterRequest{
		Nickname: "张三",
		Email:    "zhangsan@example.edu",
		Password: "123456",
		Role:     model.RoleStudent,
	})
	if err != nil {
		t.Fatal(err)
	}
	if rsp.Uuid == "" || rsp.Uuid[0] != 'U' {
		t.Fatalf("uuid = %s", rsp.Uuid)
	}

	// 同邮箱重复注册被拒
	_, err = svc.Register(request.RegisterRequest{
		Nickname: "李四", Email: "zhangsan@example.edu", Password: "654321", Role: model.RoleStudent,
	})
	if errorx.GetCode(err) != errorx.CodeUserExist {
		t.Fatalf("err = %v", err)
	}

	login, err := svc.Login(request.LoginRequest{Email: "zhangsan@example.edu", Password: "123456"})
	if err != nil {
		t.Fatal(err)
	}
	if login.AccessToken == "" || login.RefreshToken == "" {
		t.Fatal("登录应返回双 Token")
	}
	if login.Uuid != rsp.Uuid {
		t.Fatalf("uuid = %s, want %s", login.Uuid, rsp.Uuid)
	}
}

func TestLoginErrors(t *testing.T) {
	svc, _, _ := newTestService(t)

	if _, err := svc.Login(request.LoginRequest{Email: "nobody@example.edu", Password: "x"}); errorx.GetCode(err) != errorx.CodeUserNotExist {
		t.Fatalf("err = %v", err)
	}

	if _, err := svc.Register(request.RegisterRequest{
		Nickname: "张三", Email: "zhangsan@example.edu", Password: "123456", Role: model.RoleStudent,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Login(request.LoginRequest{Email: "zhangsan@example.edu", Password: "wrong"}); errorx.GetCode(err) != errorx.CodeInvalidPassword {
		t.Fatalf("err = %v", err)
	}
}

func TestRefreshToken(t *testing.T) {
	svc, _, cache := newTestService(t)

	if _, err := svc.Register(request.RegisterRequest{
		Nickname: "张三", Email: "zhangsan@example.edu", Password: "123456", Role: model.RoleStudent,
	}); err != nil {
		t.Fatal(err)
	}
	login, err := svc.Login(request.LoginRequest{Email: "zhangsan@example.edu", Password: "123456"})
	if err != nil {
		t.Fatal(err)
	}

	accessToken, err := svc.RefreshToken(login.RefreshToken)
	if err != nil {
		t.Fatal(err)
	}
	if accessToken == "" {
		t.Fatal("刷新应返回新的 Access Token")
	}

	// Access Token 不能拿来刷新
	if _, err := svc.RefreshToken(login.AccessToken); errorx.GetCode(err) != errorx.CodeUnauthorized {
		t.Fatalf("err = %v", err)
	}

	// 再次登录后旧的 Refresh Token 被互踢
	if _, err := svc.Login(request.LoginRequest{Email: "zhangsan@example.edu", Password: "123456"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RefreshToken(login.RefreshToken); errorx.GetCode(err) != errorx.CodeUnauthorized {
		t.Fatalf("旧 Refresh Token 应已失效: %v", err)
	}

	// 登录态被清空后刷新也失效
	if err := cache.Delete(context.Background(), "user_token:"+login.Uuid); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RefreshToken(login.RefreshToken); errorx.GetCode(err) != errorx.CodeUnauthorized {
		t.Fatalf("err = %v", err)
	}
}

func TestHeartbeatAndLastSeen(t *testing.T) {
	svc, repos, _ := newTestService(t)

	if err := repos.User.Create(&model.UserInfo{
		Uuid: "U1", Nickname: "张三", Email: "a@example.edu", RawPassword: "x",
	}); err != nil {
		t.Fatal(err)
	}

	// 从未上报过心跳
	rsp, err := svc.GetLastSeen("U1")
	if err != nil {
		t.Fatal(err)
	}
	if rsp.LastSeenAt != "" {
		t.Fatalf("lastSeenAt = %s, want empty", rsp.LastSeenAt)
	}

	if err := svc.Heartbeat("U1"); err != nil {
		t.Fatal(err)
	}

	rsp, err = svc.GetLastSeen("U1")
	if err != nil {
		t.Fatal(err)
	}
	if rsp.LastSeenAt == "" {
		t.Fatal("心跳后应有最近在线时间")
	}
	if _, err := time.Parse(time.RFC3339, rsp.LastSeenAt); err != nil {
		t.Fatalf("时间格式应为 RFC3339: %s", rsp.LastSeenAt)
	}

	if _, err := svc.GetLastSeen("U_ghost"); errorx.GetCode(err) != errorx.CodeUserNotExist {
		t.Fatalf("err = %v", err)
	}
}

func TestGetUserInfo(t *testing.T) {
	svc, repos, _ := newTestService(t)

	if err := repos.User.Create(&model.UserInfo{
		Uuid: "U1", Nickname: "王老师", Email: "sup@example.edu", Role: model.RoleSupervisor, RawPassword: "x",
	}); err != nil {
		t.Fatal(err)
	}

	rsp, err := svc.GetUserInfo("U1")
	if err != nil {
		t.Fatal(err)
	}
	if rsp.Nickname != "王老师" || rsp.Role != model.RoleSupervisor {
		t.Fatalf("rsp = %+v", rsp)
	}

	if _, err := svc.GetUserInfo("U_ghost"); errorx.GetCode(err) != errorx.CodeUserNotExist {
		t.Fatalf("err = %v", err)
	}
}
