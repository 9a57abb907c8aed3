package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"clinic-chat-go/internal/service"
	"clinic-chat-go/pkg/log"
)

// SearchHandler 结构体定义了搜索相关的处理器。
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

// SearchTurns 处理 GET /api/v1/chat/search?q=&patientId=。patientId 可省略。
func (h *SearchHandler) SearchTurns(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	var patientID uint
	if raw := strings.TrimSpace(c.Query("patientId")); raw != "" {
		id, ok := parseID(raw)
		if !ok {
			respond(c, http.StatusBadRequest, "Invalid patientId", nil)
			return
		}
		patientID = id
	}

	hits, err := h.searchService.SearchTurns(c.Request.Context(), user.ID, patientID, c.Query("q"))
	if err != nil {
		respondError(c, err, "Search failed")
		return
	}
	log.Infof("[SearchHandler] 检索完成, userId: %d, 返回 %d 条结果", user.ID, len(hits))
	respond(c, http.StatusOK, "success", hits)
}
