// Package search fetches web evidence for search-augmented turns.
package search

import (
	"context"
	"errors"
	"fmt"
)

// ErrFetchUnavailable matches every FetchError and transport failure.
var ErrFetchUnavailable = errors.New("web search unavailable")

// Record is a single search-result summary. CrawledAt is empty when the
// provider did not report a crawl time.
type Record struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Snippet   string `json:"snippet"`
	CrawledAt string `json:"crawled_at,omitempty"`
}

// Fetcher executes a query and returns at most count records in provider
// relevance order.
type Fetcher interface {
	Fetch(ctx context.Context, query string, count int) ([]Record, error)
}

// FetchError reports a failed search request. StatusCode is zero when the
// request never got a response.
type FetchError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("web search failed: %v", e.Err)
	}
	return fmt.Sprintf("web search http %d: %s", e.StatusCode, e.Body)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is makes every FetchError match ErrFetchUnavailable.
func (e *FetchError) Is(target error) bool {
	return target == ErrFetchUnavailable
}

// URLs returns the url of every record, in order
func URLs(records []Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.URL
	}
	return out
}
