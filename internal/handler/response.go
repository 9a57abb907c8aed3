// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"clinic-chat-go/internal/middleware"
	"clinic-chat-go/internal/model"
	"clinic-chat-go/internal/service"
	"clinic-chat-go/pkg/log"
)

func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, gin.H{"code": status, "message": message, "data": data})
}

// respondError 将业务错误映射为 HTTP 状态码。fallback 是 500 时返回给客户端的信息。
func respondError(c *gin.Context, err error, fallback string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		respond(c, http.StatusBadRequest, verr.Message, nil)
	case errors.Is(err, service.ErrPatientNotFound):
		respond(c, http.StatusNotFound, "Patient not found", nil)
	case errors.Is(err, service.ErrEmailExists):
		respond(c, http.StatusConflict, "Email already registered", nil)
	case errors.Is(err, service.ErrInvalidCredentials):
		respond(c, http.StatusUnauthorized, "Invalid email or password", nil)
	case errors.Is(err, service.ErrInvalidToken):
		respond(c, http.StatusUnauthorized, "Invalid refresh token", nil)
	case errors.Is(err, service.ErrUnavailable):
		respond(c, http.StatusServiceUnavailable, err.Error(), nil)
	default:
		log.Errorw(fallback, "path", c.Request.URL.Path, "error", err)
		_ = c.Error(err)
		body := gin.H{"code": http.StatusInternalServerError, "message": fallback, "data": nil}
		if gin.Mode() != gin.ReleaseMode {
			body["detail"] = err.Error()
		}
		c.JSON(http.StatusInternalServerError, body)
	}
}

// currentUser 返回 AuthMiddleware 注入的用户。
func currentUser(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*model.User)
	return u, ok && u != nil
}

func mustUser(c *gin.Context) (*model.User, bool) {
	u, ok := currentUser(c)
	if !ok {
		respond(c, http.StatusUnauthorized, "Unauthorized", nil)
	}
	return u, ok
}

// parseID 解析正整数 ID。
func parseID(s string) (uint, bool) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || n == 0 || n > uint64(^uint(0)) {
		return 0, false
	}
	return uint(n), true
}

// parseJSONID 接受 JSON 数字或数字字符串形式的正整数。
func parseJSONID(raw json.RawMessage) (uint, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return parseID(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return parseID(n.String())
}

// jsonString 返回 JSON 字符串的值，其它类型视为空。
func jsonString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}
