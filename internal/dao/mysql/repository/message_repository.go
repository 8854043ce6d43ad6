package repository

import (
	"fyp_chat_server/internal/model"

	"gorm.io/gorm"
)

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建消息 Repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// FindBySessionId 按会话查找全部消息
// created_at 升序排列；同一时刻的消息按雪花 ID 升序，与产生顺序一致
func (r *messageRepository) FindBySessionId(sessionId string) ([]model.Message, error) {
	var messages []model.Message
	if err := r.db.Where("session_id = ?", sessionId).
		Order("created_at ASC").Order("uuid ASC").
		Find(&messages).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询消息 session_id=%s", sessionId)
	}
	return messages, nil
}

// FindByUuid 根据雪花 ID 查找消息
func (r *messageRepository) FindByUuid(uuid int64) (*model.Message, error) {
	var message model.Message
	if err := r.db.Where("uuid = ?", uuid).First(&message).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询消息 uuid=%d", uuid)
	}
	return &message, nil
}

// Create 创建消息
func (r *messageRepository) Create(message *model.Message) error {
	if err := r.db.Create(message).Error; err != nil {
		return wrapDBError(err, "创建消息")
	}
	return nil
}

// UpdateReadBy 覆写已读回执集合
func (r *messageRepository) UpdateReadBy(uuid int64, readBy model.ReadBySet) error {
	if err := r.db.Model(&model.Message{}).Where("uuid = ?", uuid).
		Update("read_by", readBy).Error; err != nil {
		return wrapDBErrorf(err, "更新已读回执 uuid=%d", uuid)
	}
	return nil
}
