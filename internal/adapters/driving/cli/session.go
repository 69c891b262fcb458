package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/papersoul/internal/core/domain"
)

var (
	sessionName string
	sessionRole string
	sessionJSON bool
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage conversation sessions",
	Long: `Create, inspect and remove conversation sessions.

A session is bound to one character for its whole life. Its messages and
the facts the character remembers are deleted together with it.`,
}

var sessionNewCmd = &cobra.Command{
	Use:   "new",
	Short: "Start a new session with a character",
	Args:  cobra.NoArgs,
	RunE:  runSessionNew,
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, newest first",
	Args:  cobra.NoArgs,
	RunE:  runSessionList,
}

var sessionHistoryCmd = &cobra.Command{
	Use:   "history [session-id]",
	Short: "Print the messages of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionHistory,
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear [session-id]",
	Short: "Remove the messages of a session, keeping its memory",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionClear,
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "delete [session-id]",
	Short: "Delete a session with its messages and memory",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionDelete,
}

var sessionExportCmd = &cobra.Command{
	Use:   "export [session-id]",
	Short: "Write a session, its messages and its memory to a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionExport,
}

func init() {
	sessionNewCmd.Flags().StringVarP(&sessionRole, "role", "r", "", "character id (required)")
	sessionNewCmd.Flags().StringVar(&sessionName, "name", "", "session name (defaults to character and time)")
	_ = sessionNewCmd.MarkFlagRequired("role")

	sessionListCmd.Flags().BoolVar(&sessionJSON, "json", false, "output as JSON")
	sessionHistoryCmd.Flags().BoolVar(&sessionJSON, "json", false, "output as JSON")

	sessionCmd.AddCommand(sessionNewCmd)
	sessionCmd.AddCommand(sessionListCmd)
	sessionCmd.AddCommand(sessionHistoryCmd)
	sessionCmd.AddCommand(sessionClearCmd)
	sessionCmd.AddCommand(sessionDeleteCmd)
	sessionCmd.AddCommand(sessionExportCmd)
	rootCmd.AddCommand(sessionCmd)
}

func runSessionNew(cmd *cobra.Command, _ []string) error {
	if sessionService == nil {
		return notConfigured("session")
	}

	session, err := sessionService.Create(cmd.Context(), sessionName, sessionRole)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	cmd.Printf("Created session %s (%s)\n", session.ID, session.Name)
	return nil
}

func runSessionList(cmd *cobra.Command, _ []string) error {
	if sessionService == nil {
		return notConfigured("session")
	}

	sessions, err := sessionService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if sessionJSON {
		return printJSON(cmd, sessions)
	}

	if len(sessions) == 0 {
		cmd.Println("No sessions yet. Start one with 'papersoul session new --role <id>'.")
		return nil
	}
	for _, s := range sessions {
		cmd.Printf("%s  %-10s  %s  %s\n", s.ID, s.RoleID, s.CreatedAt.Format("2006-01-02 15:04"), s.Name)
	}
	return nil
}

func runSessionHistory(cmd *cobra.Command, args []string) error {
	if sessionService == nil {
		return notConfigured("session")
	}

	turns, err := sessionService.History(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	if sessionJSON {
		return printJSON(cmd, domain.Messages(turns))
	}

	if len(turns) == 0 {
		cmd.Println("No messages.")
		return nil
	}
	for _, t := range turns {
		cmd.Printf("[%d] %s: %s\n", t.Index, t.Speaker, t.Content)
	}
	return nil
}

func runSessionClear(cmd *cobra.Command, args []string) error {
	if sessionService == nil {
		return notConfigured("session")
	}

	if err := sessionService.Clear(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	cmd.Printf("Cleared messages of session %s\n", args[0])
	return nil
}

func runSessionDelete(cmd *cobra.Command, args []string) error {
	if sessionService == nil {
		return notConfigured("session")
	}

	if err := sessionService.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	cmd.Printf("Deleted session %s\n", args[0])
	return nil
}

func runSessionExport(cmd *cobra.Command, args []string) error {
	if sessionService == nil {
		return notConfigured("session")
	}

	path, err := sessionService.Export(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to export session: %w", err)
	}
	cmd.Printf("Exported to %s\n", path)
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
