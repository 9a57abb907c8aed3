package model

import "time"

// 对话角色
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage 是某个用户关于某个患者的一条对话记录，写入后不再修改。
type ChatMessage struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index:idx_chat_owner_patient,priority:1;not null" json:"-"`
	PatientID uint      `gorm:"index:idx_chat_owner_patient,priority:2;not null" json:"-"`
	Role      string    `gorm:"type:varchar(16);not null" json:"role"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
