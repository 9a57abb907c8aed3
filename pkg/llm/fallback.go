package llm

import (
	"context"
	"fmt"
)

// LocalFallback 在没有任何提供方配置时给出确定性的占位回复，从不失败。
type LocalFallback struct{}

func (LocalFallback) Name() string { return "local-fallback" }

func (LocalFallback) Configured() bool { return true }

func (f LocalFallback) Reply(_ context.Context, message string, pc PatientContext) (string, error) {
	return f.Text(message, pc), nil
}

// Text 返回兜底回复文本。
func (LocalFallback) Text(message string, pc PatientContext) string {
	patient := ""
	if pc.Name != "" {
		patient = fmt.Sprintf(" (Patient: %s)", pc.Name)
	}
	return fmt.Sprintf("Thank you for your question%s. This is a mock response. Set AI_SERVICE_URL or OPENAI_API_KEY for real AI. You asked: \"%s\"", patient, message)
}
