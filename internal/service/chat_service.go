package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"clinic-chat-go/internal/model"
	"clinic-chat-go/internal/repository"
	"clinic-chat-go/pkg/events"
	"clinic-chat-go/pkg/llm"
	"clinic-chat-go/pkg/log"
)

const (
	// ApologyReply 是回复解析失败时保存的助手内容。
	ApologyReply = "Sorry, I couldn't process that right now. Please try again."

	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// ReplyResolver 由 *llm.Resolver 实现。
type ReplyResolver interface {
	Resolve(ctx context.Context, message string, pc llm.PatientContext) llm.Outcome
}

// EventPublisher 投递聊天事件，失败不影响主流程。
type EventPublisher interface {
	PublishTurns(ctx context.Context, evs ...events.ChatTurnEvent) error
}

// TurnView 是返回给调用方的聊天记录投影，不包含用户与患者 ID。
type TurnView struct {
	ID        uint      `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func toView(m model.ChatMessage) TurnView {
	return TurnView{ID: m.ID, Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt}
}

// SendMessageResult 是 SendMessage 的返回值。
type SendMessageResult struct {
	Reply            string   `json:"reply"`
	UserMessage      TurnView `json:"userMessage"`
	AssistantMessage TurnView `json:"assistantMessage"`
	AIError          bool     `json:"aiError,omitempty"`
}

// ChatService 定义了聊天操作的接口。
type ChatService interface {
	SendMessage(ctx context.Context, ownerID, patientID uint, rawText string) (*SendMessageResult, error)
	GetHistory(ctx context.Context, ownerID, patientID uint, limit int) ([]TurnView, error)
}

type chatService struct {
	patientRepo repository.PatientRepository
	messageRepo repository.ChatMessageRepository
	resolver    ReplyResolver
	publisher   EventPublisher
}

// NewChatService 创建一个新的 ChatService 实例。publisher 可以为 nil。
func NewChatService(patientRepo repository.PatientRepository, messageRepo repository.ChatMessageRepository, resolver ReplyResolver, publisher EventPublisher) ChatService {
	return &chatService{
		patientRepo: patientRepo,
		messageRepo: messageRepo,
		resolver:    resolver,
		publisher:   publisher,
	}
}

func (s *chatService) findPatient(ctx context.Context, ownerID, patientID uint) (*model.Patient, error) {
	patient, err := s.patientRepo.FindByOwner(ctx, ownerID, patientID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("find patient: %w", err)
	}
	return patient, nil
}

// SendMessage 保存用户消息，解析回复并保存助手消息。
// 回复解析失败不会返回错误，而是保存致歉内容并设置 AIError。
func (s *chatService) SendMessage(ctx context.Context, ownerID, patientID uint, rawText string) (*SendMessageResult, error) {
	// 1. 归属校验，失败时不写入任何记录
	patient, err := s.findPatient(ctx, ownerID, patientID)
	if err != nil {
		return nil, err
	}

	// 2. 输入校验
	text := strings.TrimSpace(rawText)
	if text == "" {
		return nil, invalid("Message is required")
	}

	// 从这里开始使用不可取消的上下文：客户端断开不能让用户消息缺少对应的助手消息
	ctx = context.WithoutCancel(ctx)

	// 3. 先持久化用户消息
	userMsg := &model.ChatMessage{UserID: ownerID, PatientID: patientID, Role: model.RoleUser, Content: text}
	if err := s.messageRepo.Append(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("append user turn: %w", err)
	}

	// 4. 解析回复
	outcome := s.resolver.Resolve(ctx, text, llm.PatientContext{
		Name:         patient.Name,
		MedicalNotes: patient.NotesOrEmpty(),
	})
	content, aiError := outcome.Reply, false
	if !outcome.OK() {
		log.Warnw("[ChatService] 回复解析失败，返回致歉内容",
			"provider", outcome.Provider, "outcome", outcome.Kind.String(), "detail", outcome.Detail,
			"userId", ownerID, "patientId", patientID)
		content, aiError = ApologyReply, true
	}

	// 5. 持久化助手消息
	assistantMsg := &model.ChatMessage{UserID: ownerID, PatientID: patientID, Role: model.RoleAssistant, Content: content}
	if err := s.messageRepo.Append(ctx, assistantMsg); err != nil {
		return nil, fmt.Errorf("append assistant turn: %w", err)
	}

	s.publish(ctx, *userMsg, *assistantMsg)

	return &SendMessageResult{
		Reply:            content,
		UserMessage:      toView(*userMsg),
		AssistantMessage: toView(*assistantMsg),
		AIError:          aiError,
	}, nil
}

func (s *chatService) publish(ctx context.Context, msgs ...model.ChatMessage) {
	if s.publisher == nil {
		return
	}
	evs := make([]events.ChatTurnEvent, 0, len(msgs))
	for _, m := range msgs {
		evs = append(evs, events.NewChatTurnEvent(m))
	}
	if err := s.publisher.PublishTurns(ctx, evs...); err != nil {
		log.Errorf("[ChatService] 投递聊天事件失败: %v", err)
	}
}

// ClampHistoryLimit 将 limit 规范到 [1, MaxHistoryLimit]，非正数取默认值。
func ClampHistoryLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		return MaxHistoryLimit
	}
	return limit
}

// GetHistory 按时间升序返回患者的聊天记录。
func (s *chatService) GetHistory(ctx context.Context, ownerID, patientID uint, limit int) ([]TurnView, error) {
	if _, err := s.findPatient(ctx, ownerID, patientID); err != nil {
		return nil, err
	}
	msgs, err := s.messageRepo.ListOrdered(ctx, ownerID, patientID, ClampHistoryLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list chat history: %w", err)
	}
	views := make([]TurnView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, toView(m))
	}
	return views, nil
}
