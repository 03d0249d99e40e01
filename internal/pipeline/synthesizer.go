package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"SearchChat/internal/backend"
	"SearchChat/internal/search"
	"SearchChat/internal/session"
)

// Synthesizer turns fetched evidence into a grounded answer.
type Synthesizer struct {
	engine    backend.Engine
	directive string
}

func NewSynthesizer(engine backend.Engine, directive string) *Synthesizer {
	return &Synthesizer{engine: engine, directive: directive}
}

// FormatEvidence renders records in order as Title/URL/Snippet groups
// separated by a blank line. Missing fields render empty.
func FormatEvidence(records []search.Record) string {
	var sb strings.Builder
	for i, r := range records {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("Title: ")
		sb.WriteString(r.Title)
		sb.WriteString("\nURL: ")
		sb.WriteString(r.URL)
		sb.WriteString("\nSnippet: ")
		sb.WriteString(r.Snippet)
	}
	return sb.String()
}

// Prompt embeds raw verbatim along with the evidence block and the full history.
func (s *Synthesizer) Prompt(raw string, evidence []search.Record, history []session.Message) string {
	return fmt.Sprintf(synthesizeTemplate, raw, FormatEvidence(evidence), session.Transcript(history), raw)
}

// Synthesize always returns text to show. When the engine fails the text is
// EngineFallback and the error is returned alongside it.
func (s *Synthesizer) Synthesize(ctx context.Context, raw string, evidence []search.Record, history []session.Message) (string, error) {
	out, err := s.engine.Complete(ctx, []session.Message{
		{Role: session.RoleSystem, Content: s.directive},
		{Role: session.RoleUser, Content: s.Prompt(raw, evidence, history)},
	})
	if err != nil {
		return EngineFallback, engineErr("synthesize answer", err)
	}
	if strings.TrimSpace(out) == "" {
		return EngineFallback, engineErr("synthesize answer", errors.New("empty completion"))
	}
	return out, nil
}
