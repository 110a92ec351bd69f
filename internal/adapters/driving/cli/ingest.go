package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lapis-labs/lapis-backend/internal/core/domain"
)

var (
	ingestID           string
	ingestDocumentID   string
	ingestTitle        string
	ingestTeamID       string
	ingestOrgID        string
	ingestMIMEType     string
	ingestSource       string
	ingestChunkSize    int
	ingestChunkOverlap int
	ingestJSON         bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Ingest a file",
	Long: `Extracts text from a PDF, HTML, Markdown or plain-text file, splits it
into overlapping chunks and stores their embeddings in the vector index.
Use "-" to read plain text from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestID, "id", "", "record id (defaults to the file name)")
	ingestCmd.Flags().StringVar(&ingestDocumentID, "document-id", "", "logical document id")
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "document title (defaults to the file name)")
	ingestCmd.Flags().StringVar(&ingestTeamID, "team", "", "owning team id")
	ingestCmd.Flags().StringVar(&ingestOrgID, "org", "", "owning organization id")
	ingestCmd.Flags().StringVar(&ingestMIMEType, "mime-type", "", "override the type guessed from the file name")
	ingestCmd.Flags().StringVar(&ingestSource, "source", "cli", "source label stored with each chunk")
	ingestCmd.Flags().IntVar(&ingestChunkSize, "chunk-size", 0, "maximum chunk size in bytes (0 uses the configured default)")
	ingestCmd.Flags().IntVar(&ingestChunkOverlap, "chunk-overlap", 0, "chunk overlap in bytes (defaults to the configured overlap)")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := args[0]

	data, name, err := readInput(cmd, path)
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	a, err := newApp(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	mimeType := ingestMIMEType
	if mimeType == "" {
		mimeType = domain.MIMETypeForFilename(name)
	}

	base := strings.TrimSuffix(name, filepath.Ext(name))
	doc := domain.Document{
		ID:         firstNonEmpty(ingestID, base),
		DocumentID: ingestDocumentID,
		Title:      firstNonEmpty(ingestTitle, base),
		Scope:      domain.Scope{TeamID: ingestTeamID, OrganizationID: ingestOrgID},
		SourceMetadata: map[string]string{
			"filename": name,
		},
	}

	opts := domain.IngestOptions{
		ChunkSize:  ingestChunkSize,
		Source:     ingestSource,
		SourceType: mimeType,
	}
	if cmd.Flags().Changed("chunk-overlap") {
		opts.ChunkOverlap = &ingestChunkOverlap
	}

	result, err := a.ingestion.IngestFile(ctx, data, mimeType, doc, opts)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	if ingestJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		cmd.Println(string(out))
		return nil
	}

	cmd.Printf("Stored %d chunk(s) for %s\n", result.ChunkCount, result.DocumentID)
	for _, c := range result.PerChunk {
		cmd.Printf("  %s (%d bytes)\n", c.ChunkID, c.ChunkSize)
	}
	return nil
}

// readInput reads a file, or stdin for "-", returning its bytes and a name
// used to guess the MIME type.
func readInput(cmd *cobra.Command, path string) ([]byte, string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, "stdin.txt", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, filepath.Base(path), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
