// Package llm 负责从外部回复后端解析出一条助手回复。
package llm

import (
	"context"
	"errors"
	"fmt"
)

// PatientContext 是随问题一起发送给回复后端的患者信息，空字符串表示缺失。
type PatientContext struct {
	Name         string
	MedicalNotes string
}

// Provider 是一个可选的回复后端。
type Provider interface {
	// Name 用于日志与指标。
	Name() string
	// Configured 为 false 时解析器直接跳过该提供方。
	Configured() bool
	// Reply 返回非空回复或错误；ctx 携带本次调用的超时。
	Reply(ctx context.Context, message string, pc PatientContext) (string, error)
}

// OutcomeKind 描述一次回复解析的结果类型。
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeTimeout
	OutcomeProviderError
	OutcomeUnconfigured
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeProviderError:
		return "provider_error"
	case OutcomeUnconfigured:
		return "unconfigured"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome 是 Resolve 的返回值。Fallback 标记本地兜底回复。
type Outcome struct {
	Kind     OutcomeKind
	Reply    string
	Provider string
	Detail   string
	Fallback bool
}

// OK 表示拿到了可用的回复。
func (o Outcome) OK() bool {
	return o.Kind == OutcomeSuccess
}

// ProviderError 是提供方返回的非超时错误。
type ProviderError struct {
	Provider string
	Status   int
	Msg      string
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Msg)
}

// ErrEmptyReply 表示提供方返回了空回复。
var ErrEmptyReply = errors.New("empty reply")
