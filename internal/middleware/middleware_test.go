package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-chat-go/internal/model"
	"clinic-chat-go/internal/service"
	"clinic-chat-go/pkg/token"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubUsers struct {
	service.UserService
	revoked   map[string]bool
	revokeErr error
	users     map[uint]*model.User
}

func (s *stubUsers) IsTokenRevoked(_ context.Context, tok string) (bool, error) {
	return s.revoked[tok], s.revokeErr
}

func (s *stubUsers) GetProfile(_ context.Context, id uint) (*model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return u, nil
}

func newAuthRouter(jwtm *token.JWTManager, users service.UserService) *gin.Engine {
	r := gin.New()
	r.GET("/me", AuthMiddleware(jwtm, users), func(c *gin.Context) {
		u := c.MustGet(ContextUserKey).(*model.User)
		c.JSON(http.StatusOK, gin.H{"email": u.Email})
	})
	return r
}

func TestAuthMiddleware(t *testing.T) {
	jwtm := token.NewJWTManager("test-secret", 1, 1)
	users := &stubUsers{
		revoked: map[string]bool{},
		users: map[uint]*model.User{
			7: {ID: 7, Email: "doc@example.com"},
			8: {ID: 8, Email: "gone@example.com"},
		},
	}
	r := newAuthRouter(jwtm, users)

	good, err := jwtm.GenerateToken(7, "doc@example.com")
	require.NoError(t, err)
	refresh, err := jwtm.GenerateRefreshToken(7, "doc@example.com")
	require.NoError(t, err)
	ghost, err := jwtm.GenerateToken(99, "ghost@example.com")
	require.NoError(t, err)
	revoked, err := jwtm.GenerateToken(8, "gone@example.com")
	require.NoError(t, err)
	users.revoked[revoked] = true

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"no bearer", good, http.StatusUnauthorized},
		{"garbage", "Bearer abc.def", http.StatusUnauthorized},
		{"refresh token", "Bearer " + refresh, http.StatusUnauthorized},
		{"unknown user", "Bearer " + ghost, http.StatusUnauthorized},
		{"revoked", "Bearer " + revoked, http.StatusUnauthorized},
		{"ok", "Bearer " + good, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestAuthMiddleware_BlacklistUnavailable(t *testing.T) {
	jwtm := token.NewJWTManager("test-secret", 1, 1)
	users := &stubUsers{revokeErr: errors.New("redis down")}
	r := newAuthRouter(jwtm, users)

	tok, err := jwtm.GenerateToken(7, "doc@example.com")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:5174"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://localhost:5174")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:5174", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "http://localhost:5174")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(RequestLogger())
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusCreated) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
}
