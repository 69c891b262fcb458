package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/papersoul/internal/core/domain"
)

var (
	retrieveRole   string
	retrieveCorpus string
	retrieveK      int
	retrieveJSON   bool
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Show the passages a reply would be grounded in",
	Long: `Runs the hybrid retriever against a corpus. Keyword (BM25) and semantic
(vector) rankings are fused with reciprocal rank fusion.`,
	Args: cobra.ExactArgs(1),
	RunE: runRetrieve,
}

func init() {
	retrieveCmd.Flags().StringVarP(&retrieveRole, "role", "r", "", "character whose corpus is searched")
	retrieveCmd.Flags().StringVarP(&retrieveCorpus, "corpus", "c", "", "corpus id when no role is given")
	retrieveCmd.Flags().IntVarP(&retrieveK, "top-k", "k", domain.DefaultTopK, "number of passages")
	retrieveCmd.Flags().BoolVar(&retrieveJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return notConfigured("retrieval")
	}

	corpusID := retrieveCorpus
	if retrieveRole != "" {
		if profileService == nil {
			return notConfigured("profile")
		}
		profile, err := profileService.Get(cmd.Context(), retrieveRole)
		if err != nil {
			return err
		}
		corpusID = profile.CorpusID
	}
	if corpusID == "" {
		return errors.New("either --role or --corpus is required")
	}

	chunks, err := retrievalService.Retrieve(cmd.Context(), corpusID, args[0], retrieveK)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}

	if retrieveJSON {
		return printJSON(cmd, chunks)
	}

	if len(chunks) == 0 {
		cmd.Println("No passages found.")
		return nil
	}
	for i, c := range chunks {
		cmd.Printf("[%d] %s #%d\n", i+1, c.ID, c.Position)
		cmd.Println(strings.TrimSpace(c.Content))
		cmd.Println()
	}
	return nil
}
