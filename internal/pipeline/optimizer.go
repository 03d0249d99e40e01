package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"SearchChat/internal/backend"
	"SearchChat/internal/session"
)

// ErrEmptyQuery is returned for blank user input
var ErrEmptyQuery = errors.New("query is empty")

// Optimizer rewrites a user utterance into one self-contained search query.
type Optimizer struct {
	engine    backend.Engine
	directive string
}

func NewOptimizer(engine backend.Engine, directive string) *Optimizer {
	return &Optimizer{engine: engine, directive: directive}
}

// Prompt builds the instruction sent to the engine. System messages in
// history are dropped before rendering.
func (o *Optimizer) Prompt(raw string, history []session.Message, now time.Time) string {
	transcript := session.Transcript(session.WithoutSystem(history))
	return fmt.Sprintf(optimizeTemplate, raw, transcript, now.Format(DateTimeLayout))
}

// Optimize returns the engine's rewritten query verbatim.
func (o *Optimizer) Optimize(ctx context.Context, raw string, history []session.Message, now time.Time) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", ErrEmptyQuery
	}

	out, err := o.engine.Complete(ctx, []session.Message{
		{Role: session.RoleSystem, Content: o.directive},
		{Role: session.RoleUser, Content: o.Prompt(raw, history, now)},
	})
	if err != nil {
		return "", engineErr("optimize query", err)
	}
	return out, nil
}

// engineErr makes sure err matches backend.ErrEngineUnavailable
func engineErr(step string, err error) error {
	if errors.Is(err, backend.ErrEngineUnavailable) {
		return fmt.Errorf("%s: %w", step, err)
	}
	return fmt.Errorf("%s: %w: %w", step, backend.ErrEngineUnavailable, err)
}
