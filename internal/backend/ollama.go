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

const defaultOllamaBaseURL = "http://localhost:11434"

// OllamaRequest represents the request body for Ollama API
type OllamaRequest struct {
	Model    string              `json:"model"`
	Messages []map[string]string `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

// OllamaResponse represents the response from Ollama API
type OllamaResponse struct {
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	Message   struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// OllamaTagsResponse represents the response from Ollama /api/tags endpoint
type OllamaTagsResponse struct {
	Models []OllamaModel `json:"models"`
}

// OllamaModel represents a single model in the Ollama tags response
type OllamaModel struct {
	Name       string `json:"name"`
	ModifiedAt string `json:"modified_at"`
	Size       int64  `json:"size"`
	Digest     string `json:"digest"`
}

// Ollama talks to a local Ollama server
type Ollama struct {
	httpEngine
	baseURL string
	opts    Options
}

// NewOllama creates an Ollama engine. An empty baseURL selects localhost:11434.
func NewOllama(baseURL string, opts Options, httpClient *http.Client, inst telemetry.Instruments, logger *slog.Logger) *Ollama {
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	return &Ollama{
		httpEngine: newHTTPEngine("ollama", httpClient, inst, logger),
		baseURL:    strings.TrimRight(baseURL, "/"),
		opts:       opts,
	}
}

// Complete calls /api/chat without streaming
func (o *Ollama) Complete(ctx context.Context, messages []session.Message) (string, error) {
	reqBody := OllamaRequest{
		Model:    o.opts.Model,
		Messages: toRoleContent(messages),
		Stream:   false,
		Options: map[string]any{
			"temperature": o.opts.Temperature,
			"num_predict": o.opts.MaxTokens,
		},
	}

	var apiResp OllamaResponse
	if err := o.doJSON(ctx, http.MethodPost, o.baseURL+"/api/chat", nil, reqBody, &apiResp); err != nil {
		o.logger.Error("completion request failed", "backend", o.name, "error", err)
		return "", unavailable(o.name, err)
	}

	return apiResp.Message.Content, nil
}

// ListModels fetches the list of available Ollama models
func (o *Ollama) ListModels(ctx context.Context) ([]OllamaModel, error) {
	var tagsResp OllamaTagsResponse
	if err := o.doJSON(ctx, http.MethodGet, o.baseURL+"/api/tags", nil, nil, &tagsResp); err != nil {
		return nil, fmt.Errorf("failed to list models (is Ollama running?): %w", err)
	}
	return tagsResp.Models, nil
}

// Model returns the configured model name
func (o *Ollama) Model() string {
	return o.opts.Model
}
