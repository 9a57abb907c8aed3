package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"
)

const (
	// maxErrorBody 限制错误日志中响应体的长度。
	maxErrorBody = 512
	// maxResponseBody 是读取提供方响应体的上限，超出部分被截断。
	maxResponseBody = 4 << 20
)

// ServiceProvider 调用通用的外部回复服务。
type ServiceProvider struct {
	url    string
	client *http.Client
}

// NewServiceProvider 创建外部回复服务提供方，client 为 nil 时使用 http.DefaultClient。
func NewServiceProvider(url string, client *http.Client) *ServiceProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &ServiceProvider{url: strings.TrimSpace(url), client: client}
}

func (p *ServiceProvider) Name() string { return "ai-service" }

func (p *ServiceProvider) Configured() bool { return p.url != "" }

type servicePatientContext struct {
	Name         string `json:"name,omitempty"`
	MedicalNotes string `json:"medical_notes,omitempty"`
}

type serviceRequest struct {
	Message        string                `json:"message"`
	PatientContext servicePatientContext `json:"patientContext"`
}

// serviceResponse 兼容 reply / text / response 三种字段名，按此顺序取第一个非 null 值。
type serviceResponse struct {
	Reply    json.RawMessage `json:"reply"`
	Text     json.RawMessage `json:"text"`
	Response json.RawMessage `json:"response"`
}

func (p *ServiceProvider) Reply(ctx context.Context, message string, pc PatientContext) (string, error) {
	body, err := json.Marshal(serviceRequest{
		Message:        message,
		PatientContext: servicePatientContext{Name: pc.Name, MedicalNotes: pc.MedicalNotes},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal service request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create service request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call ai service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := readBody(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read ai service response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &ProviderError{Provider: p.Name(), Status: resp.StatusCode, Msg: truncate(string(raw), maxErrorBody)}
	}

	var parsed serviceResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &ProviderError{Provider: p.Name(), Msg: "malformed response body"}
	}
	field := firstNonNull(parsed.Reply, parsed.Text, parsed.Response)
	if field == nil {
		return "", &ProviderError{Provider: p.Name(), Msg: "response has no reply field"}
	}
	var reply string
	if err := json.Unmarshal(field, &reply); err != nil {
		return "", &ProviderError{Provider: p.Name(), Msg: "reply field is not a string"}
	}
	// 空回复与纯空白回复都算失败，调用方得到致歉内容而不是本地兜底回复
	if strings.TrimSpace(reply) == "" {
		return "", fmt.Errorf("%s: %w", p.Name(), ErrEmptyReply)
	}
	return reply, nil
}

func firstNonNull(fields ...json.RawMessage) json.RawMessage {
	for _, f := range fields {
		if len(f) == 0 || string(bytes.TrimSpace(f)) == "null" {
			continue
		}
		return f
	}
	return nil
}

// readBody 最多读取 maxResponseBody 字节。
func readBody(r io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxResponseBody))
}

// truncate 在不超过 n 字节的最近 rune 边界处截断。
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…"
}
