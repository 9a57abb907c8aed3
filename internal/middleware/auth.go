// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"clinic-chat-go/internal/service"
	"clinic-chat-go/pkg/log"
	"clinic-chat-go/pkg/token"
)

// 上下文键
const (
	ContextUserKey   = "user"
	ContextClaimsKey = "claims"
	ContextTokenKey  = "token"
)

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"code": status, "message": message, "data": nil})
}

// AuthMiddleware 创建一个 Gin 中间件，用于 JWT 认证。
// 它会从请求头中提取 token，验证其有效性，并将完整的 User 对象存入 Gin 的上下文中。
func AuthMiddleware(jwtManager *token.JWTManager, userService service.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "Authorization header is required")
			return
		}

		// Token 以 "Bearer <token>" 的形式提供
		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			abort(c, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))

		claims, err := jwtManager.VerifyAccessToken(tokenString)
		if err != nil {
			abort(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		revoked, err := userService.IsTokenRevoked(c.Request.Context(), tokenString)
		if err != nil {
			log.Error("检查 token 黑名单失败", err)
			abort(c, http.StatusServiceUnavailable, "Authentication temporarily unavailable")
			return
		}
		if revoked {
			abort(c, http.StatusUnauthorized, "Token has been revoked")
			return
		}

		// 用户可能已被删除
		user, err := userService.GetProfile(c.Request.Context(), claims.UserID)
		if err != nil {
			abort(c, http.StatusUnauthorized, "User not found")
			return
		}

		c.Set(ContextUserKey, user)
		c.Set(ContextClaimsKey, claims)
		c.Set(ContextTokenKey, tokenString)
		c.Next()
	}
}
