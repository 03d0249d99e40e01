package chatbot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"SearchChat/internal/backend"
	"SearchChat/internal/pipeline"
	"SearchChat/internal/search"
	"SearchChat/internal/session"
	"SearchChat/internal/store"
	"SearchChat/internal/telemetry"
)

const (
	sessionListLimit = 20
	saveTimeout      = 5 * time.Second
)

// SessionStore persists sessions between runs
type SessionStore interface {
	Save(ctx context.Context, sess *session.Session) error
	Load(ctx context.Context, id string) (*session.Session, error)
	List(ctx context.Context, limit int) ([]store.Summary, error)
	Delete(ctx context.Context, id string) error
}

// modelLister is implemented by engines that can enumerate local models
type modelLister interface {
	ListModels(ctx context.Context) ([]backend.OllamaModel, error)
	Model() string
}

// ChatBot is the interactive terminal front-end
type ChatBot struct {
	orch    *pipeline.Orchestrator
	store   SessionStore
	engine  backend.Engine
	session *session.Session
	logger  *slog.Logger

	in  io.Reader
	out io.Writer
}

// New creates a ChatBot reading stdin and writing stdout
func New(orch *pipeline.Orchestrator, sessions SessionStore, engine backend.Engine, logger *slog.Logger) *ChatBot {
	if logger == nil {
		logger = telemetry.DiscardLogger()
	}
	return &ChatBot{
		orch:   orch,
		store:  sessions,
		engine: engine,
		logger: logger,
		in:     os.Stdin,
		out:    os.Stdout,
	}
}

// WithIO redirects the REPL
func (cb *ChatBot) WithIO(in io.Reader, out io.Writer) *ChatBot {
	cb.in = in
	cb.out = out
	return cb
}

// Session returns the active session
func (cb *ChatBot) Session() *session.Session {
	return cb.session
}

// Start loads sessionID, or starts a fresh session when it is empty or cannot be loaded
func (cb *ChatBot) Start(ctx context.Context, sessionID string, searchEnabled bool) {
	if sessionID != "" {
		sess, err := cb.store.Load(ctx, sessionID)
		if err == nil {
			cb.session = sess
			cb.logger.Info("loaded existing session", "session_id", sess.ID)
			return
		}
		cb.logger.Warn("failed to load session, creating new one", "session_id", sessionID, "error", err)
	}
	cb.session = cb.orch.NewSession(searchEnabled)
}

func (cb *ChatBot) printf(format string, args ...any) {
	fmt.Fprintf(cb.out, format, args...)
}

// persist saves the active session even after ctx has been cancelled
func (cb *ChatBot) persist(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	return cb.store.Save(ctx, cb.session)
}

func (cb *ChatBot) save(ctx context.Context) {
	if err := cb.persist(ctx); err != nil {
		cb.logger.Error("failed to save session", "session_id", cb.session.ID, "error", err)
	}
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}

// sendMessage runs one turn and prints the reply
func (cb *ChatBot) sendMessage(ctx context.Context, input string) {
	turn, err := cb.orch.Turn(ctx, cb.session, input)
	if err != nil {
		cb.logger.Error("turn failed", "error", err)
		switch {
		case errors.Is(err, search.ErrFetchUnavailable):
			cb.printf("Error: web search failed: %v\n", err)
		case errors.Is(err, backend.ErrEngineUnavailable):
			cb.printf("Error: completion engine unavailable\n")
		}
	}

	if turn.Optimized != "" {
		cb.printf("Search: %s\n", turn.Optimized)
	}
	cb.printf("Bot: %s\n", turn.Reply)
	if turn.Augmented && len(turn.Evidence) > 0 {
		cb.printf("Sources:\n")
		for i, url := range search.URLs(turn.Evidence) {
			cb.printf("  %d. %s\n", i+1, url)
		}
	}
	cb.printf("\n")

	cb.save(ctx)
}

// handleCommand handles special commands
func (cb *ChatBot) handleCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/search":
		enabled := !cb.session.SearchEnabled
		if len(parts) > 1 {
			switch parts[1] {
			case "on":
				enabled = true
			case "off":
				enabled = false
			default:
				return false, fmt.Errorf("usage: /search [on|off]")
			}
		}
		cb.session.SearchEnabled = enabled
		cb.printf("Web search: %s\n", onOff(enabled))
		if enabled && !cb.orch.SearchAvailable() {
			cb.printf("Warning: no search provider is configured\n")
		}
		return false, nil

	case "/clear":
		cb.orch.Reset(cb.session)
		cb.save(ctx)
		cb.printf("Chat history cleared.\n")
		return false, nil

	case "/history":
		msgs := cb.session.Conversation.WithoutSystem()
		if len(msgs) == 0 {
			cb.printf("No messages yet.\n")
			return false, nil
		}
		for _, msg := range msgs {
			who := "User"
			if msg.Role == session.RoleAssistant {
				who = "Bot"
			}
			cb.printf("%s: %s\n", who, msg.Content)
		}
		return false, nil

	case "/new-session":
		cb.save(ctx)
		cb.session = cb.orch.NewSession(cb.session.SearchEnabled)
		cb.printf("Started new session: %s\n", cb.session.ID)
		return false, nil

	case "/sessions":
		sums, err := cb.store.List(ctx, sessionListLimit)
		if err != nil {
			return false, fmt.Errorf("failed to list sessions: %w", err)
		}
		if len(sums) == 0 {
			cb.printf("No saved sessions.\n")
			return false, nil
		}
		for i, s := range sums {
			current := ""
			if s.ID == cb.session.ID {
				current = " (current)"
			}
			cb.printf("%d. %s  %s  %s  %d messages  search %s%s\n",
				i+1, s.ID, s.StartTime.Format("2006-01-02 15:04"), s.Backend, s.MessageCount, onOff(s.SearchEnabled), current)
		}
		return false, nil

	case "/load":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /load <session-id>")
		}
		sess, err := cb.store.Load(ctx, parts[1])
		if err != nil {
			return false, err
		}
		cb.save(ctx)
		cb.session = sess
		cb.printf("Loaded session %s (%d messages)\n", sess.ID, sess.Conversation.Len())
		return false, nil

	case "/delete":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /delete <session-id>")
		}
		if parts[1] == cb.session.ID {
			return false, fmt.Errorf("cannot delete the active session")
		}
		if err := cb.store.Delete(ctx, parts[1]); err != nil {
			return false, err
		}
		cb.printf("Deleted session %s\n", parts[1])
		return false, nil

	case "/models":
		lister, ok := cb.engine.(modelLister)
		if !ok {
			return false, fmt.Errorf("model listing is only available with the ollama backend")
		}
		models, err := lister.ListModels(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to list Ollama models: %w", err)
		}
		cb.printf("\nAvailable Ollama models:\n")
		for i, model := range models {
			sizeGB := float64(model.Size) / (1024 * 1024 * 1024)
			current := ""
			if model.Name == lister.Model() {
				current = " (current)"
			}
			cb.printf("%d. %s - %.2f GB%s\n", i+1, model.Name, sizeGB, current)
		}
		cb.printf("\n")
		return false, nil

	case "/help":
		cb.printf("Available commands:\n")
		cb.printf("  /search [on|off]  - Toggle web search for this session\n")
		cb.printf("  /clear            - Clear the chat history\n")
		cb.printf("  /history          - Show the chat history\n")
		cb.printf("  /new-session      - Start a new chat session\n")
		cb.printf("  /sessions         - List saved sessions\n")
		cb.printf("  /load <id>        - Switch to a saved session\n")
		cb.printf("  /delete <id>      - Delete a saved session\n")
		cb.printf("  /models           - List available Ollama models\n")
		cb.printf("  /help             - Show this help message\n")
		cb.printf("  /quit, /exit      - Exit\n")
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s (try /help)", parts[0])
	}
}

// readLines feeds input lines to the returned channel until the input is
// exhausted or ctx is done.
func (cb *ChatBot) readLines(ctx context.Context) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(cb.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			cb.logger.Error("failed to read input", "error", err)
		}
	}()
	return lines
}

// Run starts the read-eval-print loop. Start must be called first. The loop
// ends on /quit, end of input or when ctx is cancelled; the session is saved
// in every case.
func (cb *ChatBot) Run(ctx context.Context) error {
	if cb.session == nil {
		return fmt.Errorf("no active session")
	}

	cb.printf("=== SearchChat ===\n")
	cb.printf("Session: %s\n", cb.session.ID)
	cb.printf("Backend: %s\n", cb.session.Backend)
	cb.printf("Web search: %s\n", onOff(cb.session.SearchEnabled))
	cb.printf("Type /help for commands, /quit to exit\n\n")

	lines := cb.readLines(ctx)
loop:
	for ctx.Err() == nil {
		cb.printf("You: ")

		var line string
		select {
		case <-ctx.Done():
			cb.printf("\n")
			break loop
		case l, ok := <-lines:
			if !ok {
				break loop
			}
			line = l
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldQuit, err := cb.handleCommand(ctx, input)
			if err != nil {
				cb.printf("Error: %v\n", err)
				cb.logger.Error("command error", "error", err)
			}
			if shouldQuit {
				break
			}
			continue
		}

		cb.sendMessage(ctx, input)
	}

	if err := cb.persist(ctx); err != nil {
		cb.logger.Error("failed to save session on exit", "error", err)
		return err
	}

	cb.printf("Goodbye!\n")
	return nil
}
