package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"SearchChat/internal/session"
	"SearchChat/internal/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// ErrEngineUnavailable covers every completion failure: auth, quota,
// malformed request, network error and timeout.
var ErrEngineUnavailable = errors.New("completion engine unavailable")

// Engine generates one completion for an ordered list of messages.
type Engine interface {
	Complete(ctx context.Context, messages []session.Message) (string, error)
}

// Options are the sampling parameters sent with every request
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// APIError is returned when a provider answers with a non-200 status
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %s - %s", e.Status, e.Body)
}

// unavailable collapses a provider failure into ErrEngineUnavailable while
// keeping the cause inspectable.
func unavailable(backend string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrEngineUnavailable, backend, err)
}

// httpEngine carries what every JSON-over-HTTP backend needs
type httpEngine struct {
	name       string
	httpClient *http.Client
	inst       telemetry.Instruments
	logger     *slog.Logger
}

func newHTTPEngine(name string, httpClient *http.Client, inst telemetry.Instruments, logger *slog.Logger) httpEngine {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = telemetry.DiscardLogger()
	}
	return httpEngine{
		name:       name,
		httpClient: httpClient,
		inst:       inst.OrNoop(),
		logger:     logger,
	}
}

// doJSON sends reqBody (when non-nil) to url and decodes a 200 answer into respBody.
func (e *httpEngine) doJSON(ctx context.Context, method, url string, headers map[string]string, reqBody, respBody any) error {
	ctx, span := e.inst.Tracer.Start(ctx, e.name+"_api_call")
	defer span.End()

	start := time.Now()

	var payload io.Reader
	if reqBody != nil {
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		payload = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, payload)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if reqBody != nil {
		req.Header.Set("content-type", "application/json")
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	telemetry.RecordDuration(ctx, e.inst.Meter, start,
		metric.WithAttributes(attribute.String("backend", e.name), attribute.Int("status", resp.StatusCode)))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, resp.Status)
		return apiErr
	}

	if err := json.Unmarshal(body, respBody); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// recordUsage records OpenTelemetry counters from a provider usage payload
func (e *httpEngine) recordUsage(ctx context.Context, usage map[string]interface{}) {
	if usage == nil {
		return
	}

	for key, value := range usage {
		if intVal, ok := value.(float64); ok {
			counter, err := e.inst.Meter.Int64Counter(
				fmt.Sprintf("llm.usage.%s", key),
				metric.WithDescription(fmt.Sprintf("LLM usage metric: %s", key)),
			)
			if err != nil {
				e.logger.Warn("failed to create counter", "key", key, "error", err)
				continue
			}
			counter.Add(ctx, int64(intVal), metric.WithAttributes(attribute.String("backend", e.name)))
		}
	}
}

// toRoleContent converts session messages to the plain role/content shape
// shared by OpenAI-compatible APIs and Ollama.
func toRoleContent(messages []session.Message) []map[string]string {
	out := make([]map[string]string, len(messages))
	for i, msg := range messages {
		out[i] = map[string]string{
			"role":    string(msg.Role),
			"content": msg.Content,
		}
	}
	return out
}
