// Package pipeline runs chat turns, optionally grounding answers in web search.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"SearchChat/internal/backend"
	"SearchChat/internal/config"
	"SearchChat/internal/search"
	"SearchChat/internal/session"
	"SearchChat/internal/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	PathDirect    = "direct"
	PathAugmented = "augmented"

	outcomeOK                = "ok"
	outcomeEngineUnavailable = "engine_unavailable"
	outcomeFetchUnavailable  = "fetch_unavailable"
)

// Options configures an Orchestrator. Zero values get defaults.
type Options struct {
	Directive     string
	Backend       string
	MaxResults    int
	EngineTimeout time.Duration
	FetchTimeout  time.Duration
	Now           func() time.Time
}

// Turn correlates one user message with the assistant message it produced
type Turn struct {
	Query     string
	Path      string
	Optimized string
	Evidence  []search.Record
	Reply     string
	// Augmented is true when Reply was synthesized from fetched evidence
	Augmented bool
}

// Orchestrator sequences the engine, optimizer, fetcher and synthesizer for
// each turn. A session must not run two turns at once.
type Orchestrator struct {
	engine      backend.Engine
	fetcher     search.Fetcher
	optimizer   *Optimizer
	synthesizer *Synthesizer
	opts        Options

	tracer   trace.Tracer
	turns    metric.Int64Counter
	evidence metric.Int64Histogram
	logger   *slog.Logger
}

// New builds an Orchestrator. fetcher may be nil, in which case every
// search-augmented turn fails with search.ErrFetchUnavailable.
func New(engine backend.Engine, fetcher search.Fetcher, opts Options, inst telemetry.Instruments, logger *slog.Logger) (*Orchestrator, error) {
	if engine == nil {
		return nil, fmt.Errorf("completion engine is required")
	}
	if opts.Directive == "" {
		opts.Directive = Directive
	}
	if opts.MaxResults <= 0 || opts.MaxResults > config.MaxSearchResults {
		opts.MaxResults = config.MaxSearchResults
	}
	if opts.EngineTimeout <= 0 {
		opts.EngineTimeout = 60 * time.Second
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 15 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = telemetry.DiscardLogger()
	}
	inst = inst.OrNoop()

	turns, err := inst.Meter.Int64Counter(
		"searchchat.turns",
		metric.WithDescription("Chat turns by path and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create turn counter: %w", err)
	}
	evidence, err := inst.Meter.Int64Histogram(
		"searchchat.evidence.records",
		metric.WithDescription("Search results used per augmented turn"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create evidence histogram: %w", err)
	}

	return &Orchestrator{
		engine:      engine,
		fetcher:     fetcher,
		optimizer:   NewOptimizer(engine, opts.Directive),
		synthesizer: NewSynthesizer(engine, opts.Directive),
		opts:        opts,
		tracer:      inst.Tracer,
		turns:       turns,
		evidence:    evidence,
		logger:      logger,
	}, nil
}

// Directive returns the system message conversations are seeded with
func (o *Orchestrator) Directive() string {
	return o.opts.Directive
}

// SearchAvailable reports whether a fetcher is configured
func (o *Orchestrator) SearchAvailable() bool {
	return o.fetcher != nil
}

// NewSession starts a session whose conversation holds only the directive
func (o *Orchestrator) NewSession(searchEnabled bool) *session.Session {
	sess := &session.Session{
		ID:            uuid.New().String(),
		StartTime:     o.opts.Now(),
		Backend:       o.opts.Backend,
		SearchEnabled: searchEnabled,
		Conversation:  session.NewConversation(o.opts.Directive),
	}
	o.logger.Info("created new session", "session_id", sess.ID, "backend", sess.Backend)
	return sess
}

// Reset clears the session's conversation back to the directive
func (o *Orchestrator) Reset(sess *session.Session) {
	if sess.Conversation == nil {
		sess.Conversation = session.NewConversation(o.opts.Directive)
	} else {
		sess.Conversation.Reset(o.opts.Directive)
	}
	o.logger.Info("conversation reset", "session_id", sess.ID)
}

// ensureDirective seeds a missing or empty conversation with the directive
func (o *Orchestrator) ensureDirective(sess *session.Session) {
	if sess.Conversation == nil || sess.Conversation.Len() == 0 {
		sess.Conversation = session.NewConversation(o.opts.Directive)
	}
}

// Turn appends raw as a user message, produces a reply and appends it as an
// assistant message. The returned Turn is never nil. On failure the reply is
// a fixed fallback text and the error matches backend.ErrEngineUnavailable
// or search.ErrFetchUnavailable. Blank input is rejected with ErrEmptyQuery
// before anything is appended.
func (o *Orchestrator) Turn(ctx context.Context, sess *session.Session, raw string) (*Turn, error) {
	turn := &Turn{Query: raw, Path: PathDirect}
	if sess.SearchEnabled {
		turn.Path = PathAugmented
	}
	if strings.TrimSpace(raw) == "" {
		return turn, ErrEmptyQuery
	}
	o.ensureDirective(sess)

	ctx, span := o.tracer.Start(ctx, "turn", trace.WithAttributes(
		attribute.String("session.id", sess.ID),
		attribute.String("turn.path", turn.Path),
	))
	defer span.End()

	sess.Conversation.Append(session.RoleUser, raw)

	var err error
	if turn.Path == PathAugmented {
		err = o.augmented(ctx, sess, turn)
	} else {
		err = o.direct(ctx, sess, turn)
	}

	sess.Conversation.Append(session.RoleAssistant, turn.Reply)

	outcome := outcomeOK
	switch {
	case errors.Is(err, search.ErrFetchUnavailable):
		outcome = outcomeFetchUnavailable
	case err != nil:
		outcome = outcomeEngineUnavailable
	}
	o.turns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("path", turn.Path),
		attribute.String("outcome", outcome),
	))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		o.logger.Warn("turn failed", "session_id", sess.ID, "path", turn.Path, "error", err)
	} else {
		o.logger.Info("turn completed", "session_id", sess.ID, "path", turn.Path, "evidence", len(turn.Evidence))
	}
	return turn, err
}

func (o *Orchestrator) direct(ctx context.Context, sess *session.Session, turn *Turn) error {
	ctx, cancel := context.WithTimeout(ctx, o.opts.EngineTimeout)
	defer cancel()

	reply, err := o.engine.Complete(ctx, sess.Conversation.Messages())
	if err == nil && strings.TrimSpace(reply) == "" {
		err = errors.New("empty completion")
	}
	if err != nil {
		turn.Reply = EngineFallback
		return engineErr("direct completion", err)
	}
	turn.Reply = reply
	return nil
}

func (o *Orchestrator) augmented(ctx context.Context, sess *session.Session, turn *Turn) error {
	optimized, err := o.optimize(ctx, sess, turn.Query)
	if err != nil {
		turn.Reply = EngineFallback
		return err
	}
	turn.Optimized = optimized

	evidence, err := o.fetch(ctx, optimized)
	if err != nil {
		turn.Reply = SearchFallback
		return err
	}
	turn.Evidence = evidence
	o.evidence.Record(ctx, int64(len(evidence)))

	ctx, span := o.tracer.Start(ctx, "synthesize_answer")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, o.opts.EngineTimeout)
	defer cancel()

	reply, err := o.synthesizer.Synthesize(ctx, turn.Query, evidence, sess.Conversation.Messages())
	turn.Reply = reply
	if err != nil {
		span.RecordError(err)
		return err
	}
	turn.Augmented = true
	return nil
}

func (o *Orchestrator) optimize(ctx context.Context, sess *session.Session, raw string) (string, error) {
	ctx, span := o.tracer.Start(ctx, "optimize_query")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, o.opts.EngineTimeout)
	defer cancel()

	optimized, err := o.optimizer.Optimize(ctx, raw, sess.Conversation.WithoutSystem(), o.opts.Now())
	if err == nil && strings.TrimSpace(optimized) == "" {
		err = engineErr("optimize query", errors.New("empty optimized query"))
	}
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	o.logger.Debug("optimized query", "query", optimized)
	return optimized, nil
}

func (o *Orchestrator) fetch(ctx context.Context, query string) ([]search.Record, error) {
	if o.fetcher == nil {
		return nil, fmt.Errorf("%w: no search provider configured", search.ErrFetchUnavailable)
	}

	ctx, span := o.tracer.Start(ctx, "web_search")
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, o.opts.FetchTimeout)
	defer cancel()

	records, err := o.fetcher.Fetch(ctx, query, o.opts.MaxResults)
	if err != nil {
		span.RecordError(err)
		if !errors.Is(err, search.ErrFetchUnavailable) {
			err = fmt.Errorf("%w: %w", search.ErrFetchUnavailable, err)
		}
		return nil, err
	}
	if len(records) > o.opts.MaxResults {
		records = records[:o.opts.MaxResults]
	}
	span.SetAttributes(attribute.Int("search.results", len(records)))
	return records, nil
}
