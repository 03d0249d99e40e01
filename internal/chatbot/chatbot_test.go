package chatbot

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"SearchChat/internal/backend"
	"SearchChat/internal/pipeline"
	"SearchChat/internal/search"
	"SearchChat/internal/session"
	"SearchChat/internal/store"
	"SearchChat/internal/telemetry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type echoEngine struct {
	calls int
}

func (e *echoEngine) Complete(_ context.Context, messages []session.Message) (string, error) {
	e.calls++
	return "echo: " + messages[len(messages)-1].Content, nil
}

type fixedFetcher struct{}

func (fixedFetcher) Fetch(_ context.Context, _ string, _ int) ([]search.Record, error) {
	return []search.Record{
		{Title: "Go", URL: "https://go.dev", Snippet: "The Go programming language"},
	}, nil
}

type ChatBotSuite struct {
	suite.Suite
	store  *store.Store
	engine *echoEngine
	orch   *pipeline.Orchestrator
	out    *bytes.Buffer
}

func (s *ChatBotSuite) SetupTest() {
	st, err := store.Open(filepath.Join(s.T().TempDir(), "chat.db"), nil)
	s.Require().NoError(err)
	s.store = st

	s.engine = &echoEngine{}
	s.orch, err = pipeline.New(s.engine, fixedFetcher{}, pipeline.Options{Backend: "azure"}, telemetry.Instruments{}, nil)
	s.Require().NoError(err)
	s.out = &bytes.Buffer{}
}

func (s *ChatBotSuite) TearDownTest() {
	s.store.Close()
}

func (s *ChatBotSuite) run(sessionID string, searchOn bool, input string) *ChatBot {
	cb := New(s.orch, s.store, s.engine, nil).WithIO(strings.NewReader(input), s.out)
	cb.Start(context.Background(), sessionID, searchOn)
	s.Require().NoError(cb.Run(context.Background()))
	return cb
}

func (s *ChatBotSuite) TestDirectConversationIsSaved() {
	cb := s.run("", false, "hello there\n/quit\n")

	s.Contains(s.out.String(), "Bot: echo: hello there")
	s.Contains(s.out.String(), "Goodbye!")

	loaded, err := s.store.Load(context.Background(), cb.Session().ID)
	s.Require().NoError(err)
	s.Equal(3, loaded.Conversation.Len())
}

func (s *ChatBotSuite) TestSearchToggleShowsSources() {
	s.run("", false, "/search on\nwhat is go\n")

	out := s.out.String()
	s.Contains(out, "Web search: on")
	s.Contains(out, "Search: echo: ")
	s.Contains(out, "Sources:\n  1. https://go.dev")
	s.Equal(2, s.engine.calls)
}

func (s *ChatBotSuite) TestClearAndHistory() {
	cb := s.run("", false, "first\n/history\n/clear\n/history\n")

	out := s.out.String()
	s.Contains(out, "User: first\nBot: echo: first")
	s.Contains(out, "Chat history cleared.")
	s.Contains(out, "No messages yet.")
	s.Equal(1, cb.Session().Conversation.Len())
}

func (s *ChatBotSuite) TestResumeSession() {
	first := s.run("", true, "one\n")
	id := first.Session().ID

	s.out.Reset()
	second := s.run(id, false, "/history\n")
	s.Equal(id, second.Session().ID)
	s.True(second.Session().SearchEnabled)
	s.Contains(s.out.String(), "User: one")
}

func (s *ChatBotSuite) TestUnknownSessionStartsFresh() {
	cb := s.run("missing-id", false, "")
	s.NotEqual("missing-id", cb.Session().ID)
}

func (s *ChatBotSuite) TestSessionsLoadAndDelete() {
	first := s.run("", false, "one\n")
	firstID := first.Session().ID

	s.out.Reset()
	cb := New(s.orch, s.store, s.engine, nil).WithIO(strings.NewReader(
		"/new-session\n/sessions\n/load "+firstID+"\n/delete "+firstID+"\n/bogus\n",
	), s.out)
	cb.Start(context.Background(), "", false)
	s.Require().NoError(cb.Run(context.Background()))

	out := s.out.String()
	s.Contains(out, "Started new session:")
	s.Contains(out, firstID)
	s.Contains(out, "Loaded session "+firstID)
	s.Contains(out, "Error: cannot delete the active session")
	s.Contains(out, "Error: unknown command: /bogus")
}

func (s *ChatBotSuite) TestModelsRequiresOllama() {
	s.run("", false, "/models\n")
	s.Contains(s.out.String(), "only available with the ollama backend")
}

func (s *ChatBotSuite) TestCancelledContextStillSaves() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cb := New(s.orch, s.store, s.engine, nil).WithIO(strings.NewReader("hello\n/quit\n"), s.out)
	cb.Start(context.Background(), "", false)
	s.Require().NoError(cb.Run(ctx))

	s.Zero(s.engine.calls)
	loaded, err := s.store.Load(context.Background(), cb.Session().ID)
	s.Require().NoError(err)
	s.Equal(1, loaded.Conversation.Len())
}

func (s *ChatBotSuite) TestCancelWhileWaitingForInput() {
	pr, pw := io.Pipe()
	s.T().Cleanup(func() { pw.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cb := New(s.orch, s.store, s.engine, nil).WithIO(pr, s.out)
	cb.Start(context.Background(), "", true)

	done := make(chan error, 1)
	go func() { done <- cb.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		s.Require().NoError(err)
	case <-time.After(2 * time.Second):
		s.FailNow("Run did not return after cancellation")
	}

	loaded, err := s.store.Load(context.Background(), cb.Session().ID)
	s.Require().NoError(err)
	s.True(loaded.SearchEnabled)
	s.Contains(s.out.String(), "Goodbye!")
}

func TestChatBotSuite(t *testing.T) {
	suite.Run(t, new(ChatBotSuite))
}

func TestModelsListsOllamaModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models":[{"name":"llama3:latest","size":4294967296},{"name":"mistral:7b","size":1073741824}]}`))
	}))
	defer srv.Close()

	engine := backend.NewOllama(srv.URL, backend.Options{Model: "llama3:latest"}, srv.Client(), telemetry.Instruments{}, nil)
	st, err := store.Open(filepath.Join(t.TempDir(), "chat.db"), nil)
	require.NoError(t, err)
	defer st.Close()
	orch, err := pipeline.New(engine, nil, pipeline.Options{}, telemetry.Instruments{}, nil)
	require.NoError(t, err)

	out := &bytes.Buffer{}
	cb := New(orch, st, engine, nil).WithIO(strings.NewReader("/models\n/search\n"), out)
	cb.Start(context.Background(), "", false)
	require.NoError(t, cb.Run(context.Background()))

	assert.Contains(t, out.String(), "1. llama3:latest - 4.00 GB (current)")
	assert.Contains(t, out.String(), "2. mistral:7b - 1.00 GB")
	assert.Contains(t, out.String(), "Warning: no search provider is configured")
}
