package repository

import (
	"time"

	"fyp_chat_server/internal/model"

	"gorm.io/gorm"
)

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository 创建会话 Repository
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

// FindByUuid 根据 UUID 查找会话
func (r *sessionRepository) FindByUuid(uuid string) (*model.FypSession, error) {
	var session model.FypSession
	if err := r.db.Where("uuid = ?", uuid).First(&session).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询会话 uuid=%s", uuid)
	}
	return &session, nil
}

// FindByParticipants 根据学生和导师查找会话
func (r *sessionRepository) FindByParticipants(studentId, supervisorId string) (*model.FypSession, error) {
	var session model.FypSession
	if err := r.db.Where("student_id = ? AND supervisor_id = ?", studentId, supervisorId).
		First(&session).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询会话 student=%s supervisor=%s", studentId, supervisorId)
	}
	return &session, nil
}

// FindByParticipant 查找用户参与的所有会话
func (r *sessionRepository) FindByParticipant(userId string) ([]model.FypSession, error) {
	var sessions []model.FypSession
	if err := r.db.Where("student_id = ? OR supervisor_id = ?", userId, userId).
		Order("last_message_at DESC").
		Find(&sessions).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询会话列表 user=%s", userId)
	}
	return sessions, nil
}

// Create 创建会话
func (r *sessionRepository) Create(session *model.FypSession) error {
	if err := r.db.Create(session).Error; err != nil {
		return wrapDBError(err, "创建会话")
	}
	return nil
}

// UpdateLastMessage 更新会话的最新消息摘要
func (r *sessionRepository) UpdateLastMessage(uuid string, content string, at time.Time) error {
	if err := r.db.Model(&model.FypSession{}).Where("uuid = ?", uuid).
		Updates(map[string]interface{}{
			"last_message":    content,
			"last_message_at": at,
		}).Error; err != nil {
		return wrapDBErrorf(err, "更新会话摘要 uuid=%s", uuid)
	}
	return nil
}
