package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"clinic-chat-go/internal/config"
)

const systemPreamble = "You are a helpful dental assistant. Answer professionally and concisely."

// OpenAIProvider 调用 OpenAI 兼容的 Chat Completions 接口（非流式）。
type OpenAIProvider struct {
	apiKey    string
	baseURL   string
	model     string
	maxTokens int
	client    *http.Client
}

// NewOpenAIProvider 创建 Chat Completions 提供方，client 为 nil 时使用 http.DefaultClient。
func NewOpenAIProvider(cfg config.OpenAIConfig, maxTokens int, client *http.Client) *OpenAIProvider {
	if client == nil {
		client = http.DefaultClient
	}
	model := cfg.Model
	if model == "" {
		model = config.DefaultOpenAIModel
	}
	if maxTokens <= 0 {
		maxTokens = 500
	}
	return &OpenAIProvider{
		apiKey:    strings.TrimSpace(cfg.APIKey),
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		model:     model,
		maxTokens: maxTokens,
		client:    client,
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Configured() bool { return p.apiKey != "" }

// Message 表示一条角色消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string    `json:"model"`
	Messages  []Message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// SystemPrompt 根据患者信息拼出 system 消息。
func SystemPrompt(pc PatientContext) string {
	var sb strings.Builder
	sb.WriteString(systemPreamble)
	if pc.Name != "" {
		sb.WriteString(" Patient name: ")
		sb.WriteString(pc.Name)
		sb.WriteString(".")
	}
	if pc.MedicalNotes != "" {
		sb.WriteString(" Relevant notes: ")
		sb.WriteString(pc.MedicalNotes)
		sb.WriteString(".")
	}
	return sb.String()
}

func (p *OpenAIProvider) Reply(ctx context.Context, message string, pc PatientContext) (string, error) {
	reqBytes, err := json.Marshal(chatRequest{
		Model: p.model,
		Messages: []Message{
			{Role: "system", Content: SystemPrompt(pc)},
			{Role: "user", Content: message},
		},
		MaxTokens: p.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call chat api: %w", err)
	}
	defer resp.Body.Close()

	raw, err := readBody(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read chat response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &ProviderError{Provider: p.Name(), Status: resp.StatusCode, Msg: truncate(string(raw), maxErrorBody)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &ProviderError{Provider: p.Name(), Msg: "malformed response body"}
	}
	if len(parsed.Choices) == 0 {
		return "", &ProviderError{Provider: p.Name(), Msg: "returned no content"}
	}
	reply := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if reply == "" {
		return "", &ProviderError{Provider: p.Name(), Msg: "returned no content"}
	}
	return reply, nil
}
