package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rolesJSON bool

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "List the characters you can talk to",
	Args:  cobra.NoArgs,
	RunE:  runRoles,
}

func init() {
	rolesCmd.Flags().BoolVar(&rolesJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(rolesCmd)
}

func runRoles(cmd *cobra.Command, _ []string) error {
	if profileService == nil {
		return notConfigured("profile")
	}

	profiles, err := profileService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list roles: %w", err)
	}

	if rolesJSON {
		return printJSON(cmd, profiles)
	}

	if len(profiles) == 0 {
		cmd.Println("No character profiles found.")
		return nil
	}
	for _, p := range profiles {
		line := fmt.Sprintf("%-12s %s", p.ID, p.Name())
		if p.BookTitle != "" {
			line += fmt.Sprintf(" (%s)", p.BookTitle)
		}
		cmd.Printf("%s  [corpus: %s]\n", line, p.CorpusID)
	}
	return nil
}
