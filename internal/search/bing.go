package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"SearchChat/internal/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// DefaultBingEndpoint is the Bing Web Search v7 endpoint
const DefaultBingEndpoint = "https://api.bing.microsoft.com/v7.0/search"

// Bing uses the Bing Web Search API. The key is sent as Ocp-Apim-Subscription-Key.
type Bing struct {
	endpoint string
	apiKey   string
	client   *http.Client
	inst     telemetry.Instruments
	logger   *slog.Logger
}

// NewBing constructs a Bing fetcher. An empty endpoint selects DefaultBingEndpoint
// and a nil client gets a 15 second timeout.
func NewBing(endpoint, apiKey string, client *http.Client, inst telemetry.Instruments, logger *slog.Logger) *Bing {
	if endpoint == "" {
		endpoint = DefaultBingEndpoint
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = telemetry.DiscardLogger()
	}
	return &Bing{endpoint: endpoint, apiKey: apiKey, client: client, inst: inst.OrNoop(), logger: logger}
}

type bingResponse struct {
	WebPages struct {
		Value []struct {
			Name            string `json:"name"`
			URL             string `json:"url"`
			Snippet         string `json:"snippet"`
			DateLastCrawled string `json:"dateLastCrawled"`
		} `json:"value"`
	} `json:"webPages"`
}

// Fetch runs one Bing query. Any non-200 answer becomes a FetchError
// carrying the status code and raw body.
func (b *Bing) Fetch(ctx context.Context, query string, count int) ([]Record, error) {
	if strings.TrimSpace(query) == "" {
		return nil, &FetchError{Err: errors.New("query is empty")}
	}
	if count <= 0 {
		return nil, &FetchError{Err: fmt.Errorf("invalid result count %d", count)}
	}

	ctx, span := b.inst.Tracer.Start(ctx, "bing_search")
	defer span.End()
	start := time.Now()

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(count))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &FetchError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, &FetchError{Err: fmt.Errorf("failed to send request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	telemetry.RecordDuration(ctx, b.inst.Meter, start,
		metric.WithAttributes(attribute.String("backend", "bing"), attribute.Int("status", resp.StatusCode)))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		fetchErr := &FetchError{StatusCode: resp.StatusCode, Body: string(body)}
		span.RecordError(fetchErr)
		span.SetStatus(codes.Error, resp.Status)
		b.logger.Warn("web search rejected", "status", resp.StatusCode)
		return nil, fetchErr
	}

	var payload bingResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &FetchError{StatusCode: resp.StatusCode, Body: string(body), Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}

	records := make([]Record, 0, count)
	for _, page := range payload.WebPages.Value {
		records = append(records, Record{
			Title:     page.Name,
			URL:       page.URL,
			Snippet:   page.Snippet,
			CrawledAt: page.DateLastCrawled,
		})
		if len(records) >= count {
			break
		}
	}

	span.SetAttributes(attribute.Int("search.results", len(records)))
	b.logger.Info("web search completed", "results", len(records))
	return records, nil
}
