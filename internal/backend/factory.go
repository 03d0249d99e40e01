package backend

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"SearchChat/internal/config"
	"SearchChat/internal/telemetry"

	"github.com/tmc/langchaingo/llms/openai"
)

// New builds the engine selected by cfg.Backend.
func New(cfg config.EngineConfig, inst telemetry.Instruments, logger *slog.Logger) (Engine, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	opts := Options{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
	}

	// The placeholder endpoint only makes sense for Azure
	baseURL := cfg.Endpoint
	if baseURL == config.PlaceholderEndpoint {
		baseURL = ""
	}

	switch cfg.Backend {
	case config.BackendAzure:
		return NewAzureOpenAI(cfg.Endpoint, cfg.APIKey, cfg.APIVersion, opts, httpClient, inst, logger), nil
	case config.BackendOpenAI:
		return NewOpenAI(baseURL, cfg.APIKey, opts, httpClient, inst, logger), nil
	case config.BackendGrok:
		return NewGrok(baseURL, cfg.APIKey, opts, httpClient, inst, logger), nil
	case config.BackendOllama:
		return NewOllama(baseURL, opts, httpClient, inst, logger), nil
	case config.BackendAnthropic:
		return NewAnthropic(baseURL, cfg.APIKey, opts, httpClient, inst, logger), nil
	case config.BackendLangChain:
		llmOpts := []openai.Option{
			openai.WithToken(cfg.APIKey),
			openai.WithModel(cfg.Model),
			openai.WithHTTPClient(httpClient),
		}
		if baseURL != "" {
			llmOpts = append(llmOpts, openai.WithBaseURL(baseURL))
		}
		if isAzureEndpoint(baseURL) {
			llmOpts = append(llmOpts,
				openai.WithAPIType(openai.APITypeAzure),
				openai.WithAPIVersion(cfg.APIVersion),
			)
		}
		llm, err := openai.New(llmOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create langchain model: %w", err)
		}
		return NewLangChain(llm, opts, inst, logger), nil
	default:
		return nil, fmt.Errorf("unknown backend: %s", cfg.Backend)
	}
}

func isAzureEndpoint(endpoint string) bool {
	return strings.Contains(endpoint, ".openai.azure.com")
}
