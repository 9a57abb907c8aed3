// Package service 包含了应用的业务逻辑层。
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
	"clinic-chat-go/pkg/hash"
	"clinic-chat-go/pkg/log"
	"clinic-chat-go/pkg/token"
)

// LoginResult 是登录与刷新 token 的返回值。
type LoginResult struct {
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken"`
	User         *model.User `json:"user,omitempty"`
}

// UserService 接口定义了所有与用户相关的业务操作。
type UserService interface {
	Register(ctx context.Context, email, password string) (*model.User, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	GetProfile(ctx context.Context, userID uint) (*model.User, error)
	Logout(ctx context.Context, tokenString string) error
	IsTokenRevoked(ctx context.Context, tokenString string) (bool, error)
	RefreshToken(ctx context.Context, refreshTokenString string) (*LoginResult, error)
}

// userService 是 UserService 接口的实现。
type userService struct {
	userRepo   repository.UserRepository
	blacklist  repository.TokenBlacklist
	jwtManager *token.JWTManager
}

// NewUserService 创建一个新的 UserService 实例。
func NewUserService(userRepo repository.UserRepository, blacklist repository.TokenBlacklist, jwtManager *token.JWTManager) UserService {
	return &userService{
		userRepo:   userRepo,
		blacklist:  blacklist,
		jwtManager: jwtManager,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register 处理用户注册的业务逻辑。
func (s *userService) Register(ctx context.Context, email, password string) (*model.User, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, invalid("Email and password are required")
	}

	// 1. 检查邮箱是否已存在
	_, err := s.userRepo.FindByEmail(ctx, email)
	if err == nil {
		return nil, ErrEmailExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// 2. 对密码进行哈希处理
	hashedPassword, err := hash.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	// 3. 将用户存入数据库以生成ID
	user := &model.User{Email: email, PasswordHash: hashedPassword}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	log.Infow("[UserService] 用户注册成功", "userId", user.ID)
	return user, nil
}

// Login 处理用户登录的业务逻辑。
func (s *userService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, invalid("Email and password are required")
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !hash.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	result, err := s.issue(user)
	if err != nil {
		return nil, err
	}
	result.User = user
	return result, nil
}

func (s *userService) issue(user *model.User) (*LoginResult, error) {
	accessToken, err := s.jwtManager.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	return &LoginResult{Token: accessToken, RefreshToken: refreshToken}, nil
}

// GetProfile 根据用户 ID 获取用户详细信息。
func (s *userService) GetProfile(ctx context.Context, userID uint) (*model.User, error) {
	return s.userRepo.FindByID(ctx, userID)
}

// Logout 将 token 加入 Redis 黑名单，剩余有效期作为过期时间。
func (s *userService) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.jwtManager.VerifyToken(tokenString)
	if err != nil {
		return err
	}
	return s.blacklist.Add(ctx, tokenString, time.Until(claims.ExpiresAt.Time))
}

func (s *userService) IsTokenRevoked(ctx context.Context, tokenString string) (bool, error) {
	return s.blacklist.Contains(ctx, tokenString)
}

// RefreshToken 验证 refresh token 并签发新的 access token 和 refresh token。
func (s *userService) RefreshToken(ctx context.Context, refreshTokenString string) (*LoginResult, error) {
	claims, err := s.jwtManager.VerifyRefreshToken(refreshTokenString)
	if err != nil {
		return nil, ErrInvalidToken
	}
	revoked, err := s.blacklist.Contains(ctx, refreshTokenString)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrInvalidToken
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return s.issue(user)
}
