package cli

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/papersoul/internal/core/domain"
)

func TestChatCmd_LineMode(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	rootCmd.SetIn(strings.NewReader("Where are you going?\n/quit\n"))
	out, err := execute(t, "chat", "s1", "--plain")

	require.NoError(t, err)
	assert.Contains(t, out, "Talking to Lin Daiyu in session s1")
	assert.Contains(t, out, "Lin Daiyu: The flowers are falling.")

	require.Len(t, ts.chat.requests, 1)
	req := ts.chat.requests[0]
	assert.Equal(t, "s1", req.SessionID)
	assert.Equal(t, "lin", req.RoleID)
	assert.Equal(t, "Where are you going?", req.UserText)
	assert.True(t, req.UseMemory)
	assert.Len(t, req.History, 2)
}

func TestChatCmd_HistoryGrowsAndMemoryToggles(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	rootCmd.SetIn(strings.NewReader("First\n/memory\n\nSecond\n"))
	out, err := execute(t, "chat", "s1", "--plain")

	require.NoError(t, err)
	assert.Contains(t, out, "Memory off")
	require.Len(t, ts.chat.requests, 2)
	assert.True(t, ts.chat.requests[0].UseMemory)
	assert.False(t, ts.chat.requests[1].UseMemory)
	assert.Equal(t, []domain.Message{
		{Role: domain.RoleUser, Content: "Hello"},
		{Role: domain.RoleAssistant, Content: "Good evening."},
		{Role: domain.RoleUser, Content: "First"},
		{Role: domain.RoleAssistant, Content: "The flowers are falling."},
	}, ts.chat.requests[1].History)
}

func TestChatCmd_NewSessionWithRole(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	rootCmd.SetIn(strings.NewReader("Hi\n"))
	out, err := execute(t, "chat", "--role", "lin", "--plain", "--memory=false")

	require.NoError(t, err)
	assert.Contains(t, out, "in session s-new")
	require.Len(t, ts.chat.requests, 1)
	assert.False(t, ts.chat.requests[0].UseMemory)
	assert.Empty(t, ts.chat.requests[0].History)
}

func TestChatCmd_GenerationErrorKeepsHistory(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.chat.err = domain.ErrGeneration

	rootCmd.SetIn(strings.NewReader("One\nTwo\n"))
	out, err := execute(t, "chat", "s1", "--plain")

	require.NoError(t, err)
	assert.Contains(t, out, "Error: generation failed")
	require.Len(t, ts.chat.requests, 2)
	assert.Len(t, ts.chat.requests[1].History, 2, "failed exchange is not added")
}

func TestChatCmd_PersistenceWarning(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.chat.finalErr = errors.New("disk full")

	rootCmd.SetIn(strings.NewReader("One\nTwo\n"))
	out, err := execute(t, "chat", "s1", "--plain")

	require.NoError(t, err)
	assert.Contains(t, out, "Warning: reply succeeded, storage failed: disk full")
	require.Len(t, ts.chat.requests, 2)
	assert.Len(t, ts.chat.requests[1].History, 4, "delivered reply stays in the conversation")
}

func TestChatCmd_NeedsSessionOrRole(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "chat", "--plain")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a session id or --role is required")
}

func TestChatCmd_SessionAndRoleConflict(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "chat", "s1", "--role", "lin", "--plain")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not both")
}

func TestChatCmd_UnknownSession(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute(t, "chat", "nope", "--plain")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
