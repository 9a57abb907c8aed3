package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"clinic-chat-go/internal/service"
	"clinic-chat-go/pkg/log"
	"clinic-chat-go/pkg/token"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 鉴权由路径中的 token 完成
	},
}

// ChatHandler 处理聊天消息的发送（REST 与 WebSocket）。
type ChatHandler struct {
	chatService service.ChatService
	userService service.UserService
	jwtManager  *token.JWTManager
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, userService service.UserService, jwtManager *token.JWTManager) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		userService: userService,
		jwtManager:  jwtManager,
	}
}

// ChatRequest 中 patientId 可以是数字或数字字符串。
type ChatRequest struct {
	PatientID json.RawMessage `json:"patientId"`
	Message   json.RawMessage `json:"message"`
}

// SendMessage 处理 POST /api/v1/chat。
func (h *ChatHandler) SendMessage(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	patientID, ok := parseJSONID(req.PatientID)
	if !ok {
		respond(c, http.StatusBadRequest, "Valid patientId is required", nil)
		return
	}

	result, err := h.chatService.SendMessage(c.Request.Context(), user.ID, patientID, jsonString(req.Message))
	if err != nil {
		respondError(c, err, "Chat request failed")
		return
	}
	respond(c, http.StatusOK, "success", result)
}

type wsFrame struct {
	Type    string      `json:"type"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Handle 处理 /chat/:token 上的 WebSocket 连接，每帧 {patientId, message} 对应一次 SendMessage。
func (h *ChatHandler) Handle(c *gin.Context) {
	tokenString := c.Param("token")
	claims, err := h.jwtManager.VerifyAccessToken(tokenString)
	if err != nil {
		respond(c, http.StatusUnauthorized, "Invalid or expired token", nil)
		return
	}
	if revoked, err := h.userService.IsTokenRevoked(c.Request.Context(), tokenString); err != nil || revoked {
		respond(c, http.StatusUnauthorized, "Invalid or expired token", nil)
		return
	}
	if _, err := h.userService.GetProfile(c.Request.Context(), claims.UserID); err != nil {
		respond(c, http.StatusUnauthorized, "User not found", nil)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立，用户: %d", claims.UserID)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			return
		}

		frame := h.handleFrame(c, claims.UserID, message)
		if err := conn.WriteJSON(frame); err != nil {
			log.Warnf("写入 WebSocket 消息失败: %v", err)
			return
		}
	}
}

func (h *ChatHandler) handleFrame(c *gin.Context, ownerID uint, message []byte) wsFrame {
	var req ChatRequest
	if err := json.Unmarshal(message, &req); err != nil {
		return wsFrame{Type: "error", Message: "Invalid message format"}
	}
	patientID, ok := parseJSONID(req.PatientID)
	if !ok {
		return wsFrame{Type: "error", Message: "Valid patientId is required"}
	}
	result, err := h.chatService.SendMessage(c.Request.Context(), ownerID, patientID, jsonString(req.Message))
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			return wsFrame{Type: "error", Message: verr.Message}
		case errors.Is(err, service.ErrPatientNotFound):
			return wsFrame{Type: "error", Message: "Patient not found"}
		default:
			log.Errorf("处理 WebSocket 聊天消息失败: %v", err)
			return wsFrame{Type: "error", Message: "Chat request failed"}
		}
	}
	return wsFrame{Type: "reply", Data: result}
}
