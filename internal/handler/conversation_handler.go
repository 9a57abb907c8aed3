package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"clinic-chat-go/internal/service"
)

// ConversationHandler 处理聊天记录的读取与导出。
type ConversationHandler struct {
	chatService       service.ChatService
	transcriptService service.TranscriptService
}

// NewConversationHandler 创建一个新的 ConversationHandler。
func NewConversationHandler(chatService service.ChatService, transcriptService service.TranscriptService) *ConversationHandler {
	return &ConversationHandler{chatService: chatService, transcriptService: transcriptService}
}

func queryPatientID(c *gin.Context) (uint, bool) {
	id, ok := parseID(c.Query("patientId"))
	if !ok {
		respond(c, http.StatusBadRequest, "Valid patientId query is required", nil)
	}
	return id, ok
}

// GetHistory 处理 GET /api/v1/chat?patientId=&limit=。
func (h *ConversationHandler) GetHistory(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	patientID, ok := queryPatientID(c)
	if !ok {
		return
	}
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respond(c, http.StatusBadRequest, "limit must be an integer", nil)
			return
		}
		limit = n
	}

	history, err := h.chatService.GetHistory(c.Request.Context(), user.ID, patientID, limit)
	if err != nil {
		respondError(c, err, "Failed to load chat history")
		return
	}
	respond(c, http.StatusOK, "success", history)
}

// Export 处理 GET /api/v1/chat/export?patientId=。
func (h *ConversationHandler) Export(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	patientID, ok := queryPatientID(c)
	if !ok {
		return
	}
	out, err := h.transcriptService.Export(c.Request.Context(), user.ID, patientID)
	if err != nil {
		respondError(c, err, "Failed to export transcript")
		return
	}
	respond(c, http.StatusOK, "success", out)
}
