package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"SearchChat/internal/session"
	"SearchChat/internal/telemetry"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
)

// AnthropicRequest represents the request body for Anthropic API
type AnthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []AnthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

// AnthropicMessage represents a message in the conversation
type AnthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AnthropicContent is one block of a response
type AnthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// AnthropicResponse represents the response from Anthropic API
type AnthropicResponse struct {
	ID           string                 `json:"id"`
	Type         string                 `json:"type"`
	Role         string                 `json:"role"`
	Content      []AnthropicContent     `json:"content"`
	Model        string                 `json:"model"`
	StopReason   string                 `json:"stop_reason"`
	StopSequence string                 `json:"stop_sequence"`
	Usage        map[string]interface{} `json:"usage"`
}

// Anthropic talks to the Messages API
type Anthropic struct {
	httpEngine
	url     string
	headers map[string]string
	opts    Options
}

// NewAnthropic creates an Anthropic engine. An empty baseURL selects api.anthropic.com.
func NewAnthropic(baseURL, apiKey string, opts Options, httpClient *http.Client, inst telemetry.Instruments, logger *slog.Logger) *Anthropic {
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}
	return &Anthropic{
		httpEngine: newHTTPEngine("anthropic", httpClient, inst, logger),
		url:        strings.TrimRight(baseURL, "/") + "/v1/messages",
		headers: map[string]string{
			"x-api-key":         apiKey,
			"anthropic-version": anthropicVersion,
		},
		opts: opts,
	}
}

// Complete calls /v1/messages. System messages are joined into the
// top-level system field since the API rejects them inline.
func (a *Anthropic) Complete(ctx context.Context, messages []session.Message) (string, error) {
	var system []string
	reqMessages := make([]AnthropicMessage, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == session.RoleSystem {
			system = append(system, msg.Content)
			continue
		}
		reqMessages = append(reqMessages, AnthropicMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	reqBody := AnthropicRequest{
		Model:       a.opts.Model,
		MaxTokens:   a.opts.MaxTokens,
		System:      strings.Join(system, "\n\n"),
		Messages:    reqMessages,
		Temperature: a.opts.Temperature,
	}

	var apiResp AnthropicResponse
	if err := a.doJSON(ctx, http.MethodPost, a.url, a.headers, reqBody, &apiResp); err != nil {
		a.logger.Error("completion request failed", "backend", a.name, "error", err)
		return "", unavailable(a.name, err)
	}

	a.recordUsage(ctx, apiResp.Usage)

	for _, content := range apiResp.Content {
		if content.Type == "text" {
			return content.Text, nil
		}
	}

	return "", unavailable(a.name, fmt.Errorf("empty response from Anthropic"))
}
