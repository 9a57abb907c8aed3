package llm

import (
	"context"
	"errors"
	"time"

	"clinic-chat-go/internal/config"
	"clinic-chat-go/pkg/log"
	"clinic-chat-go/pkg/metrics"
)

// attempt 绑定一个提供方与其单次调用超时。
type attempt struct {
	provider Provider
	timeout  time.Duration
}

// Resolver 按固定优先级选择第一个已配置的提供方。
// 已配置提供方的结果即最终结果，失败时不会尝试下一个。
type Resolver struct {
	attempts []attempt
	fallback LocalFallback
}

// NewResolver 根据配置构建解析器：外部回复服务优先，其次 Chat Completions，
// 都未配置时使用本地兜底回复。
func NewResolver(cfg config.AIConfig) *Resolver {
	return &Resolver{
		attempts: []attempt{
			{provider: NewServiceProvider(cfg.Service.URL, nil), timeout: cfg.ServiceTimeout()},
			{provider: NewOpenAIProvider(cfg.OpenAI, cfg.Generation.MaxTokens, nil), timeout: cfg.OpenAITimeout()},
		},
		fallback: LocalFallback{},
	}
}

// NewResolverWith 使用给定的提供方与统一超时构建解析器。
func NewResolverWith(timeout time.Duration, providers ...Provider) *Resolver {
	r := &Resolver{fallback: LocalFallback{}}
	for _, p := range providers {
		r.attempts = append(r.attempts, attempt{provider: p, timeout: timeout})
	}
	return r
}

// Resolve 解析一条回复。它从不返回 error，失败以 Outcome.Kind 表示。
func (r *Resolver) Resolve(ctx context.Context, message string, pc PatientContext) Outcome {
	for _, a := range r.attempts {
		if !a.provider.Configured() {
			continue
		}
		out := r.try(ctx, a, message, pc)
		record(out)
		return out
	}

	out := Outcome{Kind: OutcomeSuccess, Reply: r.fallback.Text(message, pc), Provider: r.fallback.Name(), Fallback: true}
	record(out)
	return out
}

func (r *Resolver) try(ctx context.Context, a attempt, message string, pc PatientContext) Outcome {
	name := a.provider.Name()
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	reply, err := a.provider.Reply(callCtx, message, pc)
	metrics.ReplyLatency.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err == nil {
		return Outcome{Kind: OutcomeSuccess, Reply: reply, Provider: name}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		log.Warnw("回复提供方超时", "provider", name, "timeout", a.timeout.String())
		return Outcome{Kind: OutcomeTimeout, Provider: name, Detail: err.Error()}
	}
	log.Warnw("回复提供方调用失败", "provider", name, "error", err)
	return Outcome{Kind: OutcomeProviderError, Provider: name, Detail: err.Error()}
}

func record(o Outcome) {
	metrics.ReplyOutcomes.WithLabelValues(o.Provider, o.Kind.String()).Inc()
}
