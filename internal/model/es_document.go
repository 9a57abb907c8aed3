package model

import "time"

// ChatTurnDocument 是写入 Elasticsearch 的聊天记录文档，文档 ID 为 TurnID。
type ChatTurnDocument struct {
	TurnID    uint      `json:"turn_id"`
	UserID    uint      `json:"user_id"`
	PatientID uint      `json:"patient_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatSearchHit 是返回给前端的搜索结果。
type ChatSearchHit struct {
	TurnID    uint      `json:"id"`
	PatientID uint      `json:"patientId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Score     float64   `json:"score"`
}
