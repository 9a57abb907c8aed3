package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinic-chat-go/internal/model"
	"clinic-chat-go/pkg/token"
)

func newUserFixture() (UserService, *memBlacklist, *token.JWTManager) {
	bl := &memBlacklist{keys: map[string]time.Duration{}}
	jwtm := token.NewJWTManager("test-secret", 1, 7)
	return NewUserService(&memUsers{rows: map[uint]*model.User{}}, bl, jwtm), bl, jwtm
}

func TestUserService_RegisterAndLogin(t *testing.T) {
	svc, _, jwtm := newUserFixture()
	ctx := context.Background()

	u, err := svc.Register(ctx, " Doc@Example.com ", "pw123456")
	require.NoError(t, err)
	assert.Equal(t, "doc@example.com", u.Email)
	assert.NotEqual(t, "pw123456", u.PasswordHash)

	_, err = svc.Register(ctx, "doc@example.com", "other")
	assert.ErrorIs(t, err, ErrEmailExists)

	res, err := svc.Login(ctx, "doc@example.com", "pw123456")
	require.NoError(t, err)
	assert.Equal(t, u.ID, res.User.ID)
	claims, err := jwtm.VerifyAccessToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)

	_, err = svc.Login(ctx, "doc@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "nobody@example.com", "pw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUserService_RegisterValidation(t *testing.T) {
	svc, _, _ := newUserFixture()

	_, err := svc.Register(context.Background(), "", "pw")
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestUserService_LogoutRevokesToken(t *testing.T) {
	svc, bl, _ := newUserFixture()
	ctx := context.Background()
	_, err := svc.Register(ctx, "a@example.com", "pw")
	require.NoError(t, err)
	res, err := svc.Login(ctx, "a@example.com", "pw")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, res.Token))
	revoked, err := svc.IsTokenRevoked(ctx, res.Token)
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.InDelta(t, time.Hour.Seconds(), bl.keys[res.Token].Seconds(), 60)
}

func TestUserService_RefreshToken(t *testing.T) {
	svc, _, _ := newUserFixture()
	ctx := context.Background()
	_, err := svc.Register(ctx, "a@example.com", "pw")
	require.NoError(t, err)
	res, err := svc.Login(ctx, "a@example.com", "pw")
	require.NoError(t, err)

	next, err := svc.RefreshToken(ctx, res.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, next.Token)
	assert.Nil(t, next.User)

	_, err = svc.RefreshToken(ctx, res.Token)
	assert.ErrorIs(t, err, ErrInvalidToken, "access token cannot refresh")
}
