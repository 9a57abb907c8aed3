package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_AccessTokenRoundTrip(t *testing.T) {
	m := NewJWTManager("test-secret", 1, 1)

	tok, err := m.GenerateToken(7, "doc@example.com")
	require.NoError(t, err)

	claims, err := m.VerifyAccessToken(tok)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "doc@example.com", claims.Email)
	assert.Equal(t, TypeAccess, claims.TokenType)

	_, err = m.VerifyRefreshToken(tok)
	assert.Error(t, err, "access token must not be accepted as refresh token")
}

func TestJWTManager_RefreshToken(t *testing.T) {
	m := NewJWTManager("test-secret", 1, 7)

	tok, err := m.GenerateRefreshToken(7, "doc@example.com")
	require.NoError(t, err)

	claims, err := m.VerifyRefreshToken(tok)
	require.NoError(t, err)
	assert.Equal(t, TypeRefresh, claims.TokenType)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), claims.ExpiresAt.Time, time.Minute)

	_, err = m.VerifyAccessToken(tok)
	assert.Error(t, err)
}

func TestJWTManager_WrongSecret(t *testing.T) {
	tok, err := NewJWTManager("secret-a", 1, 1).GenerateToken(1, "a@example.com")
	require.NoError(t, err)

	_, err = NewJWTManager("secret-b", 1, 1).VerifyToken(tok)
	assert.Error(t, err)
}

func TestJWTManager_Expired(t *testing.T) {
	m := NewJWTManager("test-secret", 1, 1)
	claims := CustomClaims{
		UserID:    1,
		TokenType: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = m.VerifyToken(tok)
	assert.Error(t, err)
}
