// Package cli provides the lapis command line: the HTTP server plus
// one-shot ingestion, search and token commands against the same providers.
package cli

import (
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	cfgPath string
)

var rootCmd = &cobra.Command{
	Use:   "lapis",
	Short: "Chunk, embed and search documents",
	Long: `Lapis splits documents into overlapping chunks, embeds them with an
OpenAI-compatible model and stores them in Pinecone or Qdrant. Queries are
answered from the nearest chunks, optionally with a generated answer.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a YAML config file (overrides LAPIS_CONFIG)")
}

// Execute runs the root command
func Execute(v string) error {
	if v != "" {
		version = v
	}
	return rootCmd.Execute()
}
