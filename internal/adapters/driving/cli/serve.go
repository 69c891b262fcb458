package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	httpapi "github.com/custodia-labs/papersoul/internal/adapters/driving/http"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat API over HTTP",
	Long: `Serve sessions and chat as a JSON API. Replies can be streamed as
server-sent events from POST /api/sessions/:id/chat/stream; a client that
disconnects before the last fragment leaves the session unchanged.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "127.0.0.1:8080", "listen address")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	server, err := httpapi.NewServer(&httpapi.Ports{
		Chat:     chatService,
		Sessions: sessionService,
		Profiles: profileService,
	})
	if err != nil {
		if setupErr != nil {
			return fmt.Errorf("%w: %w", err, setupErr)
		}
		return err
	}

	cmd.Printf("Serving on http://%s\n", serveAddr)
	return server.Run(cmd.Context(), serveAddr)
}
