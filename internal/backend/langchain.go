package backend

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"SearchChat/internal/session"
	"SearchChat/internal/telemetry"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// LangChain adapts a langchaingo model to Engine
type LangChain struct {
	llm    llms.Model
	opts   Options
	inst   telemetry.Instruments
	logger *slog.Logger
}

// NewLangChain wraps llm
func NewLangChain(llm llms.Model, opts Options, inst telemetry.Instruments, logger *slog.Logger) *LangChain {
	if logger == nil {
		logger = telemetry.DiscardLogger()
	}
	return &LangChain{llm: llm, opts: opts, inst: inst.OrNoop(), logger: logger}
}

func chatMessageType(role session.Role) schema.ChatMessageType {
	switch role {
	case session.RoleSystem:
		return schema.ChatMessageTypeSystem
	case session.RoleAssistant:
		return schema.ChatMessageTypeAI
	default:
		return schema.ChatMessageTypeHuman
	}
}

// Complete generates content through the wrapped model
func (l *LangChain) Complete(ctx context.Context, messages []session.Message) (string, error) {
	ctx, span := l.inst.Tracer.Start(ctx, "langchain_generate")
	defer span.End()

	start := time.Now()

	content := make([]llms.MessageContent, 0, len(messages))
	for _, msg := range messages {
		content = append(content, llms.TextParts(chatMessageType(msg.Role), msg.Content))
	}

	resp, err := l.llm.GenerateContent(ctx, content,
		llms.WithTemperature(l.opts.Temperature),
		llms.WithMaxTokens(l.opts.MaxTokens),
	)
	telemetry.RecordDuration(ctx, l.inst.Meter, start, metric.WithAttributes(attribute.String("backend", "langchain")))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate failed")
		l.logger.Error("completion request failed", "backend", "langchain", "error", err)
		return "", unavailable("langchain", err)
	}

	if resp == nil || len(resp.Choices) == 0 {
		return "", unavailable("langchain", errors.New("empty response from model"))
	}
	return resp.Choices[0].Content, nil
}
