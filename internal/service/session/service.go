// Package session 提供毕设会话相关的业务逻辑
// 学生与导师构成唯一的双人会话：打开时已存在直接返回，不存在则创建
package session

import (
	"time"

	"go.uber.org/zap"

	"fyp_chat_server/internal/dao/mysql/repository"
	"fyp_chat_server/internal/dto/request"
	"fyp_chat_server/internal/dto/respond"
	"fyp_chat_server/internal/model"
	"fyp_chat_server/pkg/errorx"
	"fyp_chat_server/pkg/util/random"
)

type sessionService struct {
	repos *repository.Repositories
}

// NewSessionService 构造函数
func NewSessionService(repos *repository.Repositories) *sessionService {
	return &sessionService{repos: repos}
}

// OpenSession 打开（或创建）学生-导师会话
// 参与者对创建后不可变更；operatorId 必须是参与者之一
func (s *sessionService) OpenSession(operatorId string, req request.OpenSessionRequest) (*respond.SessionRespond, error) {
	if operatorId != req.StudentId && operatorId != req.SupervisorId {
		return nil, errorx.New(errorx.CodeNotSessionParticipant, "只能打开自己参与的会话")
	}
	if req.StudentId == req.SupervisorId {
		return nil, errorx.New(errorx.CodeInvalidParam, "学生与导师不能是同一用户")
	}

	// 校验双方角色
	student, err := s.repos.User.FindByUuid(req.StudentId)
	if err != nil {
		if errorx.GetCode(err) == errorx.CodeNotFound {
			return nil, errorx.New(errorx.CodeUserNotExist, "学生不存在")
		}
		zap.L().Error(err.Error())
		return nil, errorx.ErrServerBusy
	}
	supervisor, err := s.repos.User.FindByUuid(req.SupervisorId)
	if err != nil {
		if errorx.GetCode(err) == errorx.CodeNotFound {
			return nil, errorx.New(errorx.CodeUserNotExist, "导师不存在")
		}
		zap.L().Error(err.Error())
		return nil, errorx.ErrServerBusy
	}
	if student.Role != model.RoleStudent || supervisor.Role != model.RoleSupervisor {
		return nil, errorx.New(errorx.CodeInvalidParam, "会话双方必须分别为学生和导师")
	}

	names := map[string]string{
		student.Uuid:    student.Nickname,
		supervisor.Uuid: supervisor.Nickname,
	}

	// 已存在直接返回
	existing, err := s.repos.Session.FindByParticipants(req.StudentId, req.SupervisorId)
	if err == nil {
		return toSessionRespond(existing, names), nil
	}
	if errorx.GetCode(err) != errorx.CodeNotFound {
		zap.L().Error(err.Error())
		return nil, errorx.Wrap(err, errorx.CodeStoreUnavailable, "会话查询失败")
	}

	newSession := &model.FypSession{
		Uuid:         "S" + random.GetNowAndLenRandomString(11),
		StudentId:    req.StudentId,
		SupervisorId: req.SupervisorId,
		ProjectTitle: req.ProjectTitle,
	}
	if err := s.repos.Session.Create(newSession); err != nil {
		zap.L().Error("创建会话失败", zap.Error(err))
		return nil, errorx.Wrap(err, errorx.CodeStoreUnavailable, "会话创建失败")
	}
	zap.L().Info("session created",
		zap.String("session", newSession.Uuid),
		zap.String("student", req.StudentId),
		zap.String("supervisor", req.SupervisorId))

	return toSessionRespond(newSession, names), nil
}

// GetSessionList 获取用户参与的会话列表，按最近消息时间倒序
// 参与者昵称一次批量查询后填充，不逐会话回表
func (s *sessionService) GetSessionList(userId string) ([]respond.SessionRespond, error) {
	sessions, err := s.repos.Session.FindByParticipant(userId)
	if err != nil {
		zap.L().Error(err.Error())
		return nil, errorx.Wrap(err, errorx.CodeStoreUnavailable, "会话列表加载失败")
	}

	names, err := s.participantNames(sessions)
	if err != nil {
		zap.L().Error("批量查询参与者失败", zap.Error(err))
		return nil, errorx.Wrap(err, errorx.CodeStoreUnavailable, "会话列表加载失败")
	}

	list := make([]respond.SessionRespond, 0, len(sessions))
	for i := range sessions {
		list = append(list, *toSessionRespond(&sessions[i], names))
	}
	return list, nil
}

// participantNames 收集会话双方的 UUID 并批量解析昵称
func (s *sessionService) participantNames(sessions []model.FypSession) (map[string]string, error) {
	uuidSet := make(map[string]struct{}, len(sessions)*2)
	for i := range sessions {
		uuidSet[sessions[i].StudentId] = struct{}{}
		uuidSet[sessions[i].SupervisorId] = struct{}{}
	}
	if len(uuidSet) == 0 {
		return map[string]string{}, nil
	}

	uuids := make([]string, 0, len(uuidSet))
	for id := range uuidSet {
		uuids = append(uuids, id)
	}
	users, err := s.repos.User.FindByUuids(uuids)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(users))
	for i := range users {
		names[users[i].Uuid] = users[i].Nickname
	}
	return names, nil
}

// CheckParticipant 校验用户是否为会话参与者，是则返回会话
// 消息读写与 WebSocket 加入话题前都要走这道校验
func (s *sessionService) CheckParticipant(sessionId, userId string) (*model.FypSession, error) {
	sess, err := s.repos.Session.FindByUuid(sessionId)
	if err != nil {
		if errorx.GetCode(err) == errorx.CodeNotFound {
			return nil, errorx.New(errorx.CodeNotFound, "会话不存在")
		}
		zap.L().Error(err.Error())
		return nil, errorx.Wrap(err, errorx.CodeStoreUnavailable, "会话查询失败")
	}
	if !sess.HasParticipant(userId) {
		return nil, errorx.New(errorx.CodeNotSessionParticipant, "不是该会话的参与者")
	}
	return sess, nil
}

// toSessionRespond 构造会话响应体
func toSessionRespond(s *model.FypSession, names map[string]string) *respond.SessionRespond {
	rsp := &respond.SessionRespond{
		Uuid:           s.Uuid,
		StudentId:      s.StudentId,
		StudentName:    names[s.StudentId],
		SupervisorId:   s.SupervisorId,
		SupervisorName: names[s.SupervisorId],
		ProjectTitle:   s.ProjectTitle,
		LastMessage:    s.LastMessage,
	}
	if s.LastMessageAt.Valid {
		rsp.LastMessageAt = s.LastMessageAt.Time.Format(time.RFC3339)
	}
	return rsp
}
