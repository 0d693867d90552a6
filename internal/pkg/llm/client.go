package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/codexalpha/blueprint_go_server/config"
)

// 错误分类，仅影响展示给用户的错误信息前缀，不影响重试策略
const (
	ErrClassRateLimit  = "rate_limit"
	ErrClassBilling    = "billing"
	ErrClassInvalidKey = "invalid_key"
	ErrClassTimeout    = "timeout"
	ErrClassOther      = "provider_error"
)

// ProviderError 提供商侧错误
type ProviderError struct {
	Class   string
	Message string
}

func (e *ProviderError) Error() string {
	switch e.Class {
	case ErrClassRateLimit:
		return fmt.Sprintf("rate limited by provider: %s", e.Message)
	case ErrClassBilling:
		return fmt.Sprintf("provider billing issue: %s", e.Message)
	case ErrClassInvalidKey:
		return fmt.Sprintf("invalid provider credentials: %s", e.Message)
	case ErrClassTimeout:
		return fmt.Sprintf("provider request timed out: %s", e.Message)
	default:
		return fmt.Sprintf("provider error: %s", e.Message)
	}
}

// Client OpenAI 兼容的 chat completions 客户端
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
}

func NewClient(cfg *config.LLMConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxTokens:  cfg.MaxTokens,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate 根据系统提示词和用户输入生成一段长文
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens: c.maxTokens,
	}

	data, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &ProviderError{Class: ErrClassTimeout, Message: err.Error()}
		}
		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "", &ProviderError{Class: ErrClassTimeout, Message: err.Error()}
		}
		return "", &ProviderError{Class: ErrClassOther, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ProviderError{Class: ErrClassOther, Message: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyHTTPError(resp.StatusCode, body)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", &ProviderError{Class: ErrClassOther, Message: "malformed provider response"}
	}
	if chatResp.Error != nil {
		return "", &ProviderError{Class: ErrClassOther, Message: chatResp.Error.Message}
	}
	if len(chatResp.Choices) == 0 {
		return "", &ProviderError{Class: ErrClassOther, Message: "empty provider response"}
	}

	return chatResp.Choices[0].Message.Content, nil
}

// classifyHTTPError 按状态码分类，取代原实现里对英文错误文案的子串匹配
func classifyHTTPError(statusCode int, body []byte) *ProviderError {
	message := providerMessage(body)
	if message == "" {
		message = http.StatusText(statusCode)
	}

	switch statusCode {
	case http.StatusTooManyRequests:
		return &ProviderError{Class: ErrClassRateLimit, Message: message}
	case http.StatusPaymentRequired:
		return &ProviderError{Class: ErrClassBilling, Message: message}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &ProviderError{Class: ErrClassInvalidKey, Message: message}
	case http.StatusGatewayTimeout:
		return &ProviderError{Class: ErrClassTimeout, Message: message}
	default:
		return &ProviderError{Class: ErrClassOther, Message: message}
	}
}

func providerMessage(body []byte) string {
	var parsed struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil {
		return parsed.Error.Message
	}
	return ""
}
