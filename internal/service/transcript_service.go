package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"clinic-chat-go/internal/model"
)

// TranscriptURLExpiry 是导出链接的有效期。
const TranscriptURLExpiry = time.Hour

// TranscriptStore 由 *storage.ObjectStore 实现。
type TranscriptStore interface {
	Put(ctx context.Context, objectName, contentType string, data []byte) error
	PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

// TranscriptExport 是导出结果。
type TranscriptExport struct {
	Object    string    `json:"object"`
	URL       string    `json:"url"`
	Turns     int       `json:"turns"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// TranscriptService 将患者的聊天记录导出为 Markdown 并上传到对象存储。
type TranscriptService interface {
	Export(ctx context.Context, ownerID, patientID uint) (*TranscriptExport, error)
}

type transcriptService struct {
	patients PatientService
	chat     ChatService
	store    TranscriptStore
	now      func() time.Time
}

// NewTranscriptService 创建 TranscriptService。store 为 nil 时导出返回 ErrUnavailable。
func NewTranscriptService(patients PatientService, chat ChatService, store TranscriptStore) TranscriptService {
	return &transcriptService{patients: patients, chat: chat, store: store, now: time.Now}
}

func (s *transcriptService) Export(ctx context.Context, ownerID, patientID uint) (*TranscriptExport, error) {
	if s.store == nil {
		return nil, ErrUnavailable
	}
	patient, err := s.patients.Get(ctx, ownerID, patientID)
	if err != nil {
		return nil, err
	}
	turns, err := s.chat.GetHistory(ctx, ownerID, patientID, MaxHistoryLimit)
	if err != nil {
		return nil, err
	}

	now := s.now()
	object := fmt.Sprintf("transcripts/%d/%d/%d.md", ownerID, patientID, now.Unix())
	if err := s.store.Put(ctx, object, "text/markdown; charset=utf-8", []byte(RenderTranscript(patient, turns))); err != nil {
		return nil, err
	}
	url, err := s.store.PresignedURL(ctx, object, TranscriptURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("presign transcript: %w", err)
	}
	return &TranscriptExport{Object: object, URL: url, Turns: len(turns), ExpiresAt: now.Add(TranscriptURLExpiry)}, nil
}

// RenderTranscript 将聊天记录渲染为 Markdown。
func RenderTranscript(patient *model.Patient, turns []TurnView) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Conversation: %s\n\n", patient.Name)
	if patient.DOB != nil {
		fmt.Fprintf(&sb, "- DOB: %s\n", patient.DOB.String())
	}
	fmt.Fprintf(&sb, "- Turns: %d\n\n", len(turns))
	for _, t := range turns {
		fmt.Fprintf(&sb, "**%s** (%s)\n\n%s\n\n", t.Role, t.CreatedAt.UTC().Format(time.RFC3339), t.Content)
	}
	return sb.String()
}
