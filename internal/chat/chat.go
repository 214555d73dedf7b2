// Package chat 调用兼容 OpenAI 的对话补全接口
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/blues/rosca/internal/config"
	"github.com/blues/rosca/internal/logger"
)

// 返回给用户的固定提示
const (
	MsgInvalidAPIKey = "Invalid API key. Please check your configuration."
	MsgRateLimited   = "Rate limit exceeded. Please try again later."
	MsgUnavailable   = "AI service temporarily unavailable. Please try again later."
	MsgGeneric       = "Sorry, I encountered an error. Please try again."
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var ErrEmptyConversation = errors.New("conversation has no messages")

// Message 对话消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Error 对话接口错误，Message 可直接展示给用户
type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("chat completion failed (status %d, code %q): %v", e.Status, e.Code, e.Err)
	}
	return fmt.Sprintf("chat completion failed (status %d, code %q)", e.Status, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newError 按状态码或错误码映射用户提示
func newError(status int, code string, err error) *Error {
	msg := MsgGeneric
	switch {
	case status == http.StatusUnauthorized || code == "invalid_api_key":
		msg = MsgInvalidAPIKey
	case status == http.StatusTooManyRequests || code == "rate_limit_exceeded" || code == "insufficient_quota":
		msg = MsgRateLimited
	case status == http.StatusInternalServerError || code == "server_error":
		msg = MsgUnavailable
	}
	return &Error{Status: status, Code: code, Message: msg, Err: err}
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

// Client 对话补全客户端
type Client struct {
	baseURL      string
	apiKey       string
	model        string
	systemPrompt string
	httpClient   *http.Client
}

// NewClient 创建客户端
func NewClient(cfg config.ChatConfig) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

// Model 当前模型
func (c *Client) Model() string {
	return c.model
}

// Complete 发送对话并返回助手回复。失败时返回 *Error
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	if len(messages) == 0 {
		return "", ErrEmptyConversation
	}
	if c.apiKey == "" {
		return "", newError(http.StatusUnauthorized, "", errors.New("api key not configured"))
	}

	payload, err := json.Marshal(completionRequest{Model: c.model, Messages: c.withSystemPrompt(messages)})
	if err != nil {
		return "", newError(0, "", fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", newError(0, "", fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Error("Chat completion request failed: %v", err)
		return "", newError(0, "", fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", newError(resp.StatusCode, "", fmt.Errorf("read response: %w", err))
	}

	var out completionResponse
	decodeErr := json.Unmarshal(body, &out)

	if resp.StatusCode != http.StatusOK || out.Error != nil {
		code := ""
		detail := strings.TrimSpace(string(body))
		if out.Error != nil {
			code = out.Error.Code
			detail = out.Error.Message
		}
		logger.Warn("Chat completion failed with status %d code %q: %s", resp.StatusCode, code, detail)
		return "", newError(resp.StatusCode, code, errors.New(detail))
	}
	if decodeErr != nil {
		return "", newError(resp.StatusCode, "", fmt.Errorf("decode response: %w", decodeErr))
	}
	if len(out.Choices) == 0 {
		return "", newError(resp.StatusCode, "", errors.New("no completion returned"))
	}

	reply := strings.TrimSpace(out.Choices[0].Message.Content)
	logger.Info("Chat completion (%s) finished in %v, reply length %d", c.model, time.Since(start), len(reply))
	return reply, nil
}

// withSystemPrompt 对话中没有 system 消息时补充配置的提示词
func (c *Client) withSystemPrompt(messages []Message) []Message {
	if c.systemPrompt == "" {
		return messages
	}
	for _, m := range messages {
		if m.Role == RoleSystem {
			return messages
		}
	}
	out := make([]Message, 0, len(messages)+1)
	out = append(out, Message{Role: RoleSystem, Content: c.systemPrompt})
	return append(out, messages...)
}
