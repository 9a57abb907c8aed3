// Package events defines the messages published to Kafka.
package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"clinic-chat-go/internal/model"
)

// ChatTurnEvent is emitted for every persisted chat turn.
type ChatTurnEvent struct {
	EventID    string    `json:"event_id"`
	TurnID     uint      `json:"turn_id"`
	UserID     uint      `json:"user_id"`
	PatientID  uint      `json:"patient_id"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewChatTurnEvent builds an event for a stored message.
func NewChatTurnEvent(msg model.ChatMessage) ChatTurnEvent {
	return ChatTurnEvent{
		EventID:    uuid.NewString(),
		TurnID:     msg.ID,
		UserID:     msg.UserID,
		PatientID:  msg.PatientID,
		Role:       msg.Role,
		Content:    msg.Content,
		CreatedAt:  msg.CreatedAt,
		OccurredAt: time.Now().UTC(),
	}
}

// Key partitions events by conversation so turns of one thread stay ordered.
func (e ChatTurnEvent) Key() string {
	return fmt.Sprintf("%d:%d", e.UserID, e.PatientID)
}

// Document converts the event into the search index document.
func (e ChatTurnEvent) Document() model.ChatTurnDocument {
	return model.ChatTurnDocument{
		TurnID:    e.TurnID,
		UserID:    e.UserID,
		PatientID: e.PatientID,
		Role:      e.Role,
		Content:   e.Content,
		CreatedAt: e.CreatedAt,
	}
}
