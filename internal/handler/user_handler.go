package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"clinic-chat-go/internal/middleware"
	"clinic-chat-go/internal/service"
	"clinic-chat-go/pkg/log"
)

// UserHandler 负责处理所有与用户相关的 API 请求。
type UserHandler struct {
	userService service.UserService
}

// NewUserHandler 创建一个新的 UserHandler 实例。
func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// CredentialsRequest 是注册与登录的请求体。
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register 处理用户注册请求。
func (h *UserHandler) Register(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Register: Invalid request payload, error: %v", err)
		respond(c, http.StatusBadRequest, "Email and password are required", nil)
		return
	}

	user, err := h.userService.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err, "Registration failed")
		return
	}
	respond(c, http.StatusCreated, "User registered successfully", user)
}

// Login 处理用户登录请求。
func (h *UserHandler) Login(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warnf("Login: Invalid request payload, error: %v", err)
		respond(c, http.StatusBadRequest, "Email and password are required", nil)
		return
	}

	result, err := h.userService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err, "Login failed")
		return
	}
	log.Infof("User %d logged in successfully", result.User.ID)
	respond(c, http.StatusOK, "Login successful", result)
}

// GetProfile 获取当前登录用户的个人信息。
func (h *UserHandler) GetProfile(c *gin.Context) {
	user, ok := mustUser(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, "success", user)
}

// Logout 将当前 access token 加入黑名单。
func (h *UserHandler) Logout(c *gin.Context) {
	tokenString := c.GetString(middleware.ContextTokenKey)
	if err := h.userService.Logout(c.Request.Context(), tokenString); err != nil {
		respondError(c, err, "Logout failed")
		return
	}
	respond(c, http.StatusOK, "Logged out", nil)
}
