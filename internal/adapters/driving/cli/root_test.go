package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/papersoul/internal/logger"
)

// execute runs the root command and returns everything it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCmd_Use(t *testing.T) {
	assert.Equal(t, "papersoul", rootCmd.Use)
	assert.Contains(t, rootCmd.Long, "index build --corpus")
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"chat", "session", "index", "retrieve", "roles", "settings", "serve", "mcp", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestRootCmd_VerboseFlag(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	defer func() {
		verbose = false
		logger.SetVerbose(false)
	}()

	flag := rootCmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, flag)
	assert.Equal(t, "v", flag.Shorthand)

	_, err := execute(t, "--verbose", "version")
	require.NoError(t, err)
	assert.True(t, logger.IsVerbose())
}

func TestNotConfigured(t *testing.T) {
	t.Run("without setup error", func(t *testing.T) {
		SetSetupError(nil)
		assert.EqualError(t, notConfigured("chat"), "chat service not configured")
	})

	t.Run("wraps setup error", func(t *testing.T) {
		cause := errors.New("llm.provider is not set")
		SetSetupError(cause)
		defer SetSetupError(nil)

		err := notConfigured("chat")
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "chat service not configured")
	})
}

func TestSetVersion(t *testing.T) {
	original := version
	defer func() { version = original }()

	SetVersion("")
	assert.Equal(t, original, version)
	SetVersion("1.2.3")
	assert.Equal(t, "1.2.3", version)
}

func TestCommands_WithoutServices(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	SetServices(Services{})

	tests := [][]string{
		{"session", "list"},
		{"roles"},
		{"retrieve", "--corpus", "x", "query"},
		{"index", "status", "--corpus", "x"},
		{"settings", "show"},
		{"chat", "s1"},
	}
	for _, args := range tests {
		t.Run(args[0], func(t *testing.T) {
			_, err := execute(t, args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "service not configured")
		})
	}
}
