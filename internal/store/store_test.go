package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"SearchChat/internal/session"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newSession(start time.Time) *session.Session {
	sess := &session.Session{
		ID:           uuid.New().String(),
		StartTime:    start,
		Backend:      "azure",
		Conversation: session.NewConversation("directive"),
	}
	sess.Conversation.Append(session.RoleUser, "hello")
	sess.Conversation.Append(session.RoleAssistant, "hi there")
	return sess
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	sess := newSession(time.Now())
	sess.SearchEnabled = true
	require.NoError(t, s.Save(ctx, sess))

	got, err := s.Load(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, "azure", got.Backend)
	assert.True(t, got.SearchEnabled)
	assert.WithinDuration(t, sess.StartTime, got.StartTime, time.Second)

	msgs := got.Conversation.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, session.RoleSystem, msgs[0].Role)
	assert.Equal(t, "hello", msgs[1].Content)
	assert.Equal(t, session.RoleAssistant, msgs[2].Role)
}

func TestSaveReplacesMessages(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	sess := newSession(time.Now())
	require.NoError(t, s.Save(ctx, sess))

	sess.Conversation.Reset("directive")
	sess.Conversation.Append(session.RoleUser, "fresh start")
	require.NoError(t, s.Save(ctx, sess))

	got, err := s.Load(ctx, sess.ID)
	require.NoError(t, err)
	msgs := got.Conversation.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "fresh start", msgs[1].Content)
}

func TestLoadMissing(t *testing.T) {
	s := openTemp(t)
	_, err := s.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestListAndDelete(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	older := newSession(time.Now().Add(-time.Hour))
	newer := newSession(time.Now())
	require.NoError(t, s.Save(ctx, older))
	require.NoError(t, s.Save(ctx, newer))

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer.ID, all[0].ID)
	assert.Equal(t, 3, all[0].MessageCount)

	limited, err := s.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, s.Delete(ctx, older.ID))
	_, err = s.Load(ctx, older.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, s.Delete(ctx, older.ID), ErrSessionNotFound)

	all, err = s.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
