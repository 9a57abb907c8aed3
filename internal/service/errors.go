package service

import "errors"

var (
	// ErrPatientNotFound 表示患者不存在或不属于当前用户。
	ErrPatientNotFound = errors.New("patient not found")
	// ErrEmailExists 表示注册邮箱已被使用。
	ErrEmailExists = errors.New("email already registered")
	// ErrInvalidCredentials 表示邮箱或密码错误。
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidToken 表示 refresh token 无效或对应用户已不存在。
	ErrInvalidToken = errors.New("invalid refresh token")
	// ErrUnavailable 表示可选的外部组件（搜索、对象存储）未启用。
	ErrUnavailable = errors.New("feature not configured")
)

// ValidationError 是调用方可修正的输入错误，Message 会原样返回给客户端。
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}
