package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"SearchChat/internal/session"
	"SearchChat/internal/telemetry"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultGrokBaseURL   = "https://api.x.ai/v1"
)

// OpenAIRequest represents the request body for OpenAI-compatible APIs
type OpenAIRequest struct {
	Model       string              `json:"model,omitempty"`
	Messages    []map[string]string `json:"messages"`
	Temperature float64             `json:"temperature"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
}

// OpenAIResponse represents the response from OpenAI-compatible APIs
type OpenAIResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage map[string]interface{} `json:"usage"`
}

// OpenAI talks to the chat completions API of OpenAI, Grok or an Azure
// OpenAI deployment.
type OpenAI struct {
	httpEngine
	url     string
	headers map[string]string
	opts    Options
	azure   bool
}

// NewAzureOpenAI targets {endpoint}/openai/deployments/{model}/chat/completions.
// The model doubles as the deployment name.
func NewAzureOpenAI(endpoint, apiKey, apiVersion string, opts Options, httpClient *http.Client, inst telemetry.Instruments, logger *slog.Logger) *OpenAI {
	u := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		strings.TrimRight(endpoint, "/"), url.PathEscape(opts.Model), url.QueryEscape(apiVersion))
	return &OpenAI{
		httpEngine: newHTTPEngine("azure", httpClient, inst, logger),
		url:        u,
		headers:    map[string]string{"api-key": apiKey},
		opts:       opts,
		azure:      true,
	}
}

// NewOpenAI targets {baseURL}/chat/completions with bearer auth. An empty
// baseURL selects api.openai.com.
func NewOpenAI(baseURL, apiKey string, opts Options, httpClient *http.Client, inst telemetry.Instruments, logger *slog.Logger) *OpenAI {
	return newOpenAICompatible("openai", baseURL, defaultOpenAIBaseURL, apiKey, opts, httpClient, inst, logger)
}

// NewGrok targets the xAI OpenAI-compatible API.
func NewGrok(baseURL, apiKey string, opts Options, httpClient *http.Client, inst telemetry.Instruments, logger *slog.Logger) *OpenAI {
	return newOpenAICompatible("grok", baseURL, defaultGrokBaseURL, apiKey, opts, httpClient, inst, logger)
}

func newOpenAICompatible(name, baseURL, fallback, apiKey string, opts Options, httpClient *http.Client, inst telemetry.Instruments, logger *slog.Logger) *OpenAI {
	if baseURL == "" {
		baseURL = fallback
	}
	return &OpenAI{
		httpEngine: newHTTPEngine(name, httpClient, inst, logger),
		url:        strings.TrimRight(baseURL, "/") + "/chat/completions",
		headers:    map[string]string{"Authorization": "Bearer " + apiKey},
		opts:       opts,
	}
}

// Complete calls the chat completions endpoint
func (o *OpenAI) Complete(ctx context.Context, messages []session.Message) (string, error) {
	reqBody := OpenAIRequest{
		Messages:    toRoleContent(messages),
		Temperature: o.opts.Temperature,
		MaxTokens:   o.opts.MaxTokens,
	}
	// Azure routes by deployment in the URL
	if !o.azure {
		reqBody.Model = o.opts.Model
	}

	var apiResp OpenAIResponse
	if err := o.doJSON(ctx, http.MethodPost, o.url, o.headers, reqBody, &apiResp); err != nil {
		o.logger.Error("completion request failed", "backend", o.name, "error", err)
		return "", unavailable(o.name, err)
	}

	o.recordUsage(ctx, apiResp.Usage)

	if len(apiResp.Choices) > 0 {
		return apiResp.Choices[0].Message.Content, nil
	}

	return "", unavailable(o.name, fmt.Errorf("empty response from %s", o.name))
}
