package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/papersoul/internal/adapters/driving/tui"
	"github.com/custodia-labs/papersoul/internal/core/domain"
)

var (
	chatRole   string
	chatName   string
	chatMemory bool
	chatPlain  bool
)

var chatCmd = &cobra.Command{
	Use:   "chat [session-id]",
	Short: "Talk to a character",
	Long: `Continue a session, or start a new one with --role.

On a terminal the chat opens in a full-screen view that streams replies as
they are written. Otherwise, or with --plain, it reads one message per line
from standard input.

Line mode commands:
  /memory - toggle long-term memory
  /quit   - leave the chat`,
	Args: cobra.MaximumNArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatRole, "role", "r", "", "start a new session with this character")
	chatCmd.Flags().StringVar(&chatName, "name", "", "name of the new session")
	chatCmd.Flags().BoolVarP(&chatMemory, "memory", "m", true, "recall and record long-term facts")
	chatCmd.Flags().BoolVar(&chatPlain, "plain", false, "line mode even on a terminal")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	if chatService == nil {
		return notConfigured("chat")
	}
	if sessionService == nil {
		return notConfigured("session")
	}
	if profileService == nil {
		return notConfigured("profile")
	}

	ctx := cmd.Context()
	session, err := resolveSession(ctx, args)
	if err != nil {
		return err
	}
	profile, err := profileService.Get(ctx, session.RoleID)
	if err != nil {
		return fmt.Errorf("failed to load character: %w", err)
	}

	if !chatPlain && isTerminal(os.Stdin) && isTerminal(os.Stdout) {
		app, err := tui.NewApp(&tui.Ports{Chat: chatService, Sessions: sessionService}, *session, *profile, chatMemory)
		if err != nil {
			return fmt.Errorf("failed to create TUI: %w", err)
		}
		app.WithContext(ctx)
		return app.Run()
	}

	return runLineChat(cmd, session, profile)
}

func resolveSession(ctx context.Context, args []string) (*domain.Session, error) {
	switch {
	case len(args) == 1 && chatRole != "":
		return nil, errors.New("give either a session id or --role, not both")
	case len(args) == 1:
		session, err := sessionService.Get(ctx, args[0])
		if err != nil {
			return nil, fmt.Errorf("failed to load session: %w", err)
		}
		return session, nil
	case chatRole != "":
		session, err := sessionService.Create(ctx, chatName, chatRole)
		if err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
		return session, nil
	default:
		return nil, errors.New("a session id or --role is required")
	}
}

func runLineChat(cmd *cobra.Command, session *domain.Session, profile *domain.Profile) error {
	ctx := cmd.Context()

	turns, err := sessionService.History(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	history := domain.Messages(turns)
	useMemory := chatMemory

	cmd.Printf("Talking to %s in session %s. Type /quit to leave.\n", profile.Name(), session.ID)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		cmd.Print("> ")
		if !scanner.Scan() {
			cmd.Println()
			return scanner.Err()
		}

		text := strings.TrimSpace(scanner.Text())
		switch text {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/memory":
			useMemory = !useMemory
			cmd.Printf("Memory %s\n", onOff(useMemory))
			continue
		}

		reply, err := streamReply(ctx, cmd, profile.Name(), domain.ChatRequest{
			SessionID: session.ID,
			RoleID:    session.RoleID,
			History:   history,
			UserText:  text,
			UseMemory: useMemory,
		})
		switch {
		case errors.Is(err, domain.ErrPersistence):
			cmd.PrintErrf("Warning: %v\n", err)
		case err != nil:
			cmd.PrintErrf("Error: %v\n", err)
			continue
		}
		history = append(history,
			domain.Message{Role: domain.RoleUser, Content: text},
			domain.Message{Role: domain.RoleAssistant, Content: reply},
		)
	}
}

// streamReply prints fragments as they arrive and persists the exchange once
// the reply is complete.
func streamReply(ctx context.Context, cmd *cobra.Command, name string, req domain.ChatRequest) (string, error) {
	stream, err := chatService.RespondStream(ctx, req)
	if err != nil {
		return "", err
	}
	defer stream.Close() //nolint:errcheck

	cmd.Printf("%s: ", name)
	for {
		piece, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			cmd.Println()
			return "", err
		}
		cmd.Print(piece)
	}
	cmd.Println()

	return stream.Finalize(ctx)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
