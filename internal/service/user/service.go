// Package user 提供用户相关的业务逻辑
// 处理学生/导师的注册、登录、Token 刷新与在线状态查询
package user

import (
	"context"
	"time"

	"go.uber.org/zap"

	"fyp_chat_server/internal/dao/mysql/repository"
	myredis "fyp_chat_server/internal/dao/redis"
	"fyp_chat_server/internal/dto/request"
	"fyp_chat_server/internal/dto/respond"
	"fyp_chat_server/internal/model"
	"fyp_chat_server/pkg/constants"
	"fyp_chat_server/pkg/errorx"
	"fyp_chat_server/pkg/util/jwt"
	"fyp_chat_server/pkg/util/random"
)

// userInfoService 用户业务逻辑实现
// 通过构造函数注入 Repository 依赖
type userInfoService struct {
	repos *repository.Repositories
	cache myredis.CacheService
}

// NewUserService 构造函数，注入所有依赖
func NewUserService(repos *repository.Repositories, cache myredis.CacheService) *userInfoService {
	return &userInfoService{repos: repos, cache: cache}
}

// Register 注册
// 邮箱唯一；角色只能是学生或导师
func (u *userInfoService) Register(req request.RegisterRequest) (*respond.RegisterRespond, error) {
	// 检查邮箱是否已注册
	if _, err := u.repos.User.FindByEmail(req.Email); err == nil {
		return nil, errorx.New(errorx.CodeUserExist, "该邮箱已注册")
	} else if errorx.GetCode(err) != errorx.CodeNotFound {
		zap.L().Error(err.Error())
		return nil, errorx.ErrServerBusy
	}

	newUser := model.UserInfo{
		Uuid:        "U" + random.GetNowAndLenRandomString(11),
		Nickname:    req.Nickname,
		Email:       req.Email,
		Role:        req.Role,
		RawPassword: req.Password, // BeforeSave Hook 中加密
	}
	if err := u.repos.User.Create(&newUser); err != nil {
		zap.L().Error("创建用户失败", zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	return &respond.RegisterRespond{
		Uuid:     newUser.Uuid,
		Nickname: newUser.Nickname,
		Email:    newUser.Email,
		Role:     newUser.Role,
	}, nil
}

// Login 登录
func (u *userInfoService) Login(req request.LoginRequest) (*respond.LoginRespond, error) {
	user, err := u.repos.User.FindByEmail(req.Email)
	if err != nil {
		if errorx.GetCode(err) == errorx.CodeNotFound {
			return nil, errorx.New(errorx.CodeUserNotExist, "用户不存在，请注册")
		}
		zap.L().Error(err.Error())
		return nil, errorx.ErrServerBusy
	}
	if !user.CheckPassword(req.Password) {
		return nil, errorx.New(errorx.CodeInvalidPassword, "密码不正确，请重试")
	}

	// 生成双 Token，角色写入声明，后续鉴权不再回查数据库
	accessToken, err := jwt.GenerateAccessToken(user.Uuid, user.Role)
	if err != nil {
		zap.L().Error("生成 Access Token 失败", zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	refreshToken, tokenID, err := jwt.GenerateRefreshToken(user.Uuid, user.Role)
	if err != nil {
		zap.L().Error("生成 Refresh Token 失败", zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	// 将 Refresh Token ID 存入 Redis，实现单点互踢
	redisKey := "user_token:" + user.Uuid
	expiry := time.Duration(constants.REFRESH_TOKEN_EXPIRY_HOURS) * time.Hour
	if err := u.cache.Set(context.Background(), redisKey, tokenID, expiry); err != nil {
		// 不阻塞登录流程，仅记录日志
		zap.L().Error("存储 Token ID 到 Redis 失败", zap.Error(err))
	}

	return &respond.LoginRespond{
		Uuid:         user.Uuid,
		Nickname:     user.Nickname,
		Avatar:       user.Avatar,
		Role:         user.Role,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// RefreshToken 用 Refresh Token 换取新的 Access Token
// 校验 Token 类型与 Redis 中的 Token ID（互踢后旧 Refresh Token 立即失效）
func (u *userInfoService) RefreshToken(refreshToken string) (string, error) {
	claims, err := jwt.ParseToken(refreshToken)
	if err != nil {
		return "", errorx.New(errorx.CodeUnauthorized, "Refresh Token 无效或已过期")
	}
	if claims.Subject != "refresh_token" {
		return "", errorx.New(errorx.CodeUnauthorized, "请使用 Refresh Token 刷新")
	}

	redisKey := "user_token:" + claims.UserID
	validTokenID, err := u.cache.Get(context.Background(), redisKey)
	if err != nil {
		zap.L().Error(err.Error())
		return "", errorx.ErrServerBusy
	}
	if validTokenID == "" || validTokenID != claims.TokenID {
		return "", errorx.New(errorx.CodeUnauthorized, "登录状态已失效，请重新登录")
	}

	// 角色沿用 Refresh Token 里的声明，角色在本系统中不会变更
	accessToken, err := jwt.GenerateAccessToken(claims.UserID, claims.Role)
	if err != nil {
		zap.L().Error("生成 Access Token 失败", zap.Error(err))
		return "", errorx.ErrServerBusy
	}
	return accessToken, nil
}

// GetUserInfo 获取单个用户资料
func (u *userInfoService) GetUserInfo(uuid string) (*respond.GetUserInfoRespond, error) {
	user, err := u.repos.User.FindByUuid(uuid)
	if err != nil {
		if errorx.GetCode(err) == errorx.CodeNotFound {
			return nil, errorx.New(errorx.CodeUserNotExist, "用户不存在")
		}
		zap.L().Error(err.Error())
		return nil, errorx.ErrServerBusy
	}
	return &respond.GetUserInfoRespond{
		Uuid:     user.Uuid,
		Nickname: user.Nickname,
		Avatar:   user.Avatar,
		Role:     user.Role,
	}, nil
}

// Heartbeat 刷新用户最近在线时间
// WebSocket 不可用时前端退化为 HTTP 心跳
func (u *userInfoService) Heartbeat(userId string) error {
	if err := u.repos.User.UpdateLastSeen(userId, time.Now()); err != nil {
		zap.L().Error("写入心跳失败", zap.Error(err))
		return errorx.ErrServerBusy
	}
	return nil
}

// GetLastSeen 查询用户最近在线时间
// 从未上报心跳的用户返回空串，由前端展示"从未在线"
func (u *userInfoService) GetLastSeen(userId string) (*respond.LastSeenRespond, error) {
	user, err := u.repos.User.FindByUuid(userId)
	if err != nil {
		if errorx.GetCode(err) == errorx.CodeNotFound {
			return nil, errorx.New(errorx.CodeUserNotExist, "用户不存在")
		}
		zap.L().Error(err.Error())
		return nil, errorx.ErrServerBusy
	}
	rsp := &respond.LastSeenRespond{UserId: user.Uuid}
	if user.LastSeenAt.Valid {
		rsp.LastSeenAt = user.LastSeenAt.Time.Format(time.RFC3339)
	}
	return rsp, nil
}
