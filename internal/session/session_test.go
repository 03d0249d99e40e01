package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const directive = "You are a helpful assistant."

func TestNewConversationStartsWithDirective(t *testing.T) {
	c := NewConversation(directive)

	require.Equal(t, 1, c.Len())
	first := c.Messages()[0]
	assert.Equal(t, RoleSystem, first.Role)
	assert.Equal(t, directive, first.Content)
}

func TestResetIsIdempotent(t *testing.T) {
	c := NewConversation(directive)
	c.Append(RoleUser, "hi")
	c.Append(RoleAssistant, "hello")

	c.Reset(directive)
	once := c.Messages()
	c.Reset(directive)
	twice := c.Messages()

	require.Len(t, once, 1)
	require.Len(t, twice, 1)
	assert.Equal(t, once[0].Role, twice[0].Role)
	assert.Equal(t, once[0].Content, twice[0].Content)
}

func TestWithoutSystemDropsOnlySystemMessages(t *testing.T) {
	c := NewConversation(directive)
	c.Append(RoleUser, "q1")
	c.Append(RoleAssistant, "a1")
	c.Append(RoleSystem, "late directive")
	c.Append(RoleUser, "q2")

	filtered := c.WithoutSystem()

	assert.Len(t, filtered, c.Len()-2)
	for _, msg := range filtered {
		assert.NotEqual(t, RoleSystem, msg.Role)
	}
	assert.Equal(t, "q1", filtered[0].Content)
	assert.Equal(t, "q2", filtered[2].Content)
}

func TestMessagesReturnsCopy(t *testing.T) {
	c := NewConversation(directive)
	msgs := c.Messages()
	msgs[0].Content = "tampered"

	assert.Equal(t, directive, c.Messages()[0].Content)
}

func TestTranscript(t *testing.T) {
	msgs := []Message{
		{Role: RoleUser, Content: "What is Go?"},
		{Role: RoleAssistant, Content: "A language."},
	}

	assert.Equal(t, "user: What is Go?\nassistant: A language.", Transcript(msgs))
	assert.Equal(t, "", Transcript(nil))
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole("assistant")
	require.NoError(t, err)
	assert.Equal(t, RoleAssistant, r)

	_, err = ParseRole("tool")
	assert.Error(t, err)
}

func TestRestoreEmpty(t *testing.T) {
	c := Restore(nil)
	assert.Equal(t, 0, c.Len())

	c.Append(RoleUser, "ping")
	msgs := c.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "ping", msgs[0].Content)
}
