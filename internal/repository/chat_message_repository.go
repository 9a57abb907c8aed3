package repository

import (
	"context"

	"gorm.io/gorm"

	"clinic-chat-go/internal/model"
)

// ChatMessageRepository 是聊天记录的只追加存储。
type ChatMessageRepository interface {
	Append(ctx context.Context, msg *model.ChatMessage) error
	// ListOrdered 按 created_at、id 升序返回最早的 limit 条记录。
	ListOrdered(ctx context.Context, ownerID, patientID uint, limit int) ([]model.ChatMessage, error)
}

type chatMessageRepository struct {
	db *gorm.DB
}

// NewChatMessageRepository 创建一个新的 ChatMessageRepository 实例。
func NewChatMessageRepository(db *gorm.DB) ChatMessageRepository {
	return &chatMessageRepository{db: db}
}

func (r *chatMessageRepository) Append(ctx context.Context, msg *model.ChatMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *chatMessageRepository) ListOrdered(ctx context.Context, ownerID, patientID uint, limit int) ([]model.ChatMessage, error) {
	messages := make([]model.ChatMessage, 0)
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND patient_id = ?", ownerID, patientID).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}
