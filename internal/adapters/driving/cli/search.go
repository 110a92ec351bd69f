package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lapis-labs/lapis-backend/internal/core/domain"
)

var (
	searchTopK   int
	searchTeamID string
	searchOrgID  string
	searchAnswer bool
	searchJSON   bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search stored chunks",
	Long: `Embeds the query, retrieves the nearest chunks within the given team and
organization and, with --answer, generates an answer from them.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of chunks to retrieve (0 uses the configured default)")
	searchCmd.Flags().StringVar(&searchTeamID, "team", "", "team id to search within")
	searchCmd.Flags().StringVar(&searchOrgID, "org", "", "organization id to search within")
	searchCmd.Flags().BoolVarP(&searchAnswer, "answer", "a", false, "generate an answer from the retrieved chunks")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	a, err := newApp(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.retrieval.Answer(ctx, args[0], domain.SearchOptions{
		Scope:          domain.Scope{TeamID: searchTeamID, OrganizationID: searchOrgID},
		TopK:           searchTopK,
		GenerateAnswer: searchAnswer,
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, result)
	}
	return outputSearchTable(cmd, result)
}

func outputSearchJSON(cmd *cobra.Command, result *domain.AnswerResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, result *domain.AnswerResult) error {
	if result.Answer != "" {
		cmd.Println(result.Answer)
		cmd.Println()
	}

	if len(result.Sources) == 0 {
		if result.Answer == "" {
			cmd.Println("No results found.")
		}
		return nil
	}

	cmd.Println("Sources:")
	for i, src := range result.Sources {
		title := src.Metadata.String(domain.MetaTitle)
		if title == "" {
			title = src.ID
		}
		cmd.Printf("  [%d] %s (%.2f)\n", i+1, title, src.Score)
		if s := snippet(src.Text, 160); s != "" {
			cmd.Printf("      %s\n", s)
		}
	}
	return nil
}

// snippet flattens whitespace and truncates to at most n runes
func snippet(text string, n int) string {
	flat := strings.Join(strings.Fields(text), " ")
	runes := []rune(flat)
	if len(runes) <= n {
		return flat
	}
	return string(runes[:n]) + "..."
}
