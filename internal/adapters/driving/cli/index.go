package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var indexCorpus string

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build and inspect corpus indexes",
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the keyword and vector indexes of a corpus",
	Long: `Reads every .txt file below <data_dir>/corpora/<corpus>/, splits it into
overlapping chunks, embeds them and writes both indexes. The new indexes
replace the old ones only once they are complete.`,
	Args: cobra.NoArgs,
	RunE: runIndexBuild,
}

var indexStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether a corpus index is ready",
	Args:  cobra.NoArgs,
	RunE:  runIndexStatus,
}

func init() {
	for _, c := range []*cobra.Command{indexBuildCmd, indexStatusCmd} {
		c.Flags().StringVarP(&indexCorpus, "corpus", "c", "", "corpus id (required)")
		_ = c.MarkFlagRequired("corpus")
		indexCmd.AddCommand(c)
	}
	rootCmd.AddCommand(indexCmd)
}

func runIndexBuild(cmd *cobra.Command, _ []string) error {
	if indexService == nil {
		return notConfigured("index")
	}

	cmd.Printf("Building index for %s...\n", indexCorpus)
	start := time.Now()

	stats, err := indexService.Build(cmd.Context(), indexCorpus)
	if err != nil {
		return fmt.Errorf("index build failed: %w", err)
	}

	cmd.Printf("Indexed %d chunks from %d files (%d dimensions) in %s\n",
		stats.Chunks, stats.Documents, stats.Dimensions, time.Since(start).Round(time.Millisecond))
	cmd.Printf("Index: %s\n", stats.Path)
	return nil
}

func runIndexStatus(cmd *cobra.Command, _ []string) error {
	if indexService == nil {
		return notConfigured("index")
	}

	missing := indexService.Missing(indexCorpus)
	if len(missing) == 0 {
		cmd.Printf("Index for %s is ready.\n", indexCorpus)
		return nil
	}

	cmd.Printf("Index for %s is incomplete. Missing:\n", indexCorpus)
	for _, path := range missing {
		cmd.Printf("  %s\n", path)
	}
	cmd.Printf("Run 'papersoul index build --corpus %s'.\n", indexCorpus)
	return nil
}
