// Package cli implements the papersoul command line.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/papersoul/internal/core/ports/driving"
	"github.com/custodia-labs/papersoul/internal/logger"
)

// version is set at build time via SetVersion.
var version = "dev"

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "papersoul",
	Short: "Chat with characters grounded in their books",
	Long: `papersoul lets you talk to a character from a novel. Replies are grounded
in passages retrieved from the book and, optionally, in facts the character
remembers about earlier conversations.

Put the book's .txt, .md or .html files in <data_dir>/corpora/<corpus>/, describe the
character in <data_dir>/profiles/<id>.json, build the index once, then chat:

  papersoul index build --corpus hongloumeng
  papersoul chat --role lin`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Services holds the driving ports the commands run against.
// Any of them may be nil when the configuration does not allow building it.
type Services struct {
	Chat      driving.ChatService
	Sessions  driving.SessionService
	Profiles  driving.ProfileService
	Retrieval driving.RetrievalService
	Memory    driving.MemoryService
	Index     driving.IndexService
	Settings  driving.SettingsService
}

var (
	chatService      driving.ChatService
	sessionService   driving.SessionService
	profileService   driving.ProfileService
	retrievalService driving.RetrievalService
	memoryService    driving.MemoryService
	indexService     driving.IndexService
	settingsService  driving.SettingsService

	// setupErr explains why a service could not be built.
	setupErr error
)

// SetServices installs the services used by all commands.
func SetServices(s Services) {
	chatService = s.Chat
	sessionService = s.Sessions
	profileService = s.Profiles
	retrievalService = s.Retrieval
	memoryService = s.Memory
	indexService = s.Index
	settingsService = s.Settings
}

// SetSetupError records why some services are missing, so commands that
// need them can say what to fix.
func SetSetupError(err error) {
	setupErr = err
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// notConfigured reports a missing service.
func notConfigured(name string) error {
	if setupErr != nil {
		return fmt.Errorf("%s service not configured: %w", name, setupErr)
	}
	return errors.New(name + " service not configured")
}
