package search

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"SearchChat/internal/cache"
	"SearchChat/internal/telemetry"
)

// Cached remembers successful fetches for a while. Failures are never cached.
type Cached struct {
	next   Fetcher
	store  *cache.TTL[[]Record]
	logger *slog.Logger
}

// NewCached wraps next. A non-positive ttl disables caching and returns next unchanged.
func NewCached(next Fetcher, ttl time.Duration, logger *slog.Logger) Fetcher {
	if ttl <= 0 {
		return next
	}
	if logger == nil {
		logger = telemetry.DiscardLogger()
	}
	return &Cached{next: next, store: cache.NewTTL[[]Record](ttl, cache.DefaultCapacity), logger: logger}
}

func (c *Cached) Fetch(ctx context.Context, query string, count int) ([]Record, error) {
	key := cache.Key(query, strconv.Itoa(count))
	if records, ok := c.store.Get(key); ok {
		c.logger.Debug("web search cache hit", "results", len(records))
		return cloneRecords(records), nil
	}

	records, err := c.next.Fetch(ctx, query, count)
	if err != nil {
		return nil, err
	}
	c.store.Set(key, cloneRecords(records))
	c.logger.Debug("web search cached", "results", len(records), "entries", c.store.Len())
	return records, nil
}

func cloneRecords(in []Record) []Record {
	out := make([]Record, len(in))
	copy(out, in)
	return out
}
