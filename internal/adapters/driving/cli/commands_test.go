package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lapis-labs/lapis-backend/internal/adapters/driven/auth"
	"github.com/lapis-labs/lapis-backend/internal/core/domain"
	"github.com/lapis-labs/lapis-backend/internal/core/ports/driven/mocks"
	"github.com/lapis-labs/lapis-backend/internal/runtime"
)

// run executes the root command with args and returns its output
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"serve", "ingest", "search", "token", "version"} {
		assert.True(t, names[want], "missing %s command", want)
	}
}

func TestRootCmd_ConfigFlag(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)
}

func TestVersionCmd(t *testing.T) {
	old := version
	version = "1.2.3"
	defer func() { version = old }()

	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "lapis version 1.2.3\n", out)
}

func TestServeCmd_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "p", flag.Shorthand)
	assert.Equal(t, "0", flag.DefValue)
}

func TestServerConfig(t *testing.T) {
	ingestion := &mockIngestion{}
	cleanup := setupTestApp(ingestion, &mockRetrieval{})
	defer cleanup()

	a, err := newApp(context.Background(), "")
	require.NoError(t, err)

	oldPort := servePort
	servePort = 9999
	defer func() { servePort = oldPort }()

	cfg := serverConfig(a)
	assert.Equal(t, 9999, cfg.Port)
	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, domain.SchemaTenant, cfg.Schema)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestSearchCmd_RequiresExactlyOneArg(t *testing.T) {
	_, err := run(t, "", "search")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestSearchCmd_Table(t *testing.T) {
	retrieval := &mockRetrieval{
		result: &domain.AnswerResult{
			Answer: "Refunds take 14 days.",
			Sources: []domain.SourceMatch{
				{ID: "doc-1_chunk_0", Score: 0.91, Text: "Refunds   take\n14 days.", Metadata: domain.Metadata{"title": "Refund policy"}},
				{ID: "doc-2_chunk_3", Score: 0.42, Text: "Other."},
			},
		},
	}
	cleanup := setupTestApp(&mockIngestion{}, retrieval)
	defer cleanup()
	defer func() {
		searchTeamID, searchOrgID, searchTopK, searchAnswer = "", "", 0, false
	}()

	out, err := run(t, "", "search", "how long?", "--team", "t1", "--org", "o1", "-k", "2", "--answer")
	require.NoError(t, err)

	assert.Equal(t, "how long?", retrieval.gotQuery)
	assert.Equal(t, domain.Scope{TeamID: "t1", OrganizationID: "o1"}, retrieval.gotOpts.Scope)
	assert.Equal(t, 2, retrieval.gotOpts.TopK)
	assert.True(t, retrieval.gotOpts.GenerateAnswer)

	assert.Contains(t, out, "Refunds take 14 days.\n\nSources:")
	assert.Contains(t, out, "[1] Refund policy (0.91)\n      Refunds take 14 days.")
	assert.Contains(t, out, "[2] doc-2_chunk_3 (0.42)")
}

func TestSearchCmd_NoResults(t *testing.T) {
	retrieval := &mockRetrieval{result: &domain.AnswerResult{Sources: []domain.SourceMatch{}}}
	cleanup := setupTestApp(&mockIngestion{}, retrieval)
	defer cleanup()

	out, err := run(t, "", "search", "nothing")
	require.NoError(t, err)
	assert.Contains(t, out, "No results found.")
}

func TestSearchCmd_Error(t *testing.T) {
	retrieval := &mockRetrieval{err: domain.NewValidationError(domain.FieldTeamID)}
	cleanup := setupTestApp(&mockIngestion{}, retrieval)
	defer cleanup()

	_, err := run(t, "", "search", "q")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "teamId")
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "a b c", snippet(" a\n b\t c ", 10))
	assert.Equal(t, "héll...", snippet("héllo world", 4))
}

func TestIngestCmd_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "handbook.md")
	require.NoError(t, os.WriteFile(path, []byte("# Handbook"), 0o600))

	ingestion := &mockIngestion{}
	cleanup := setupTestApp(ingestion, &mockRetrieval{})
	defer cleanup()
	defer func() {
		ingestTeamID, ingestOrgID = "", ""
	}()

	out, err := run(t, "", "ingest", path, "--team", "t1", "--org", "o1")
	require.NoError(t, err)

	assert.Equal(t, "# Handbook", string(ingestion.gotData))
	assert.Equal(t, "text/markdown", ingestion.gotMIME)
	assert.Equal(t, "handbook", ingestion.gotDoc.ID)
	assert.Equal(t, "handbook", ingestion.gotDoc.Title)
	assert.Equal(t, domain.Scope{TeamID: "t1", OrganizationID: "o1"}, ingestion.gotDoc.Scope)
	assert.Equal(t, "handbook.md", ingestion.gotDoc.SourceMetadata["filename"])
	assert.Equal(t, "cli", ingestion.gotOpts.Source)
	assert.Contains(t, out, "Stored 1 chunk(s) for handbook")
	assert.Contains(t, out, "handbook_chunk_0")
}

func TestIngestCmd_Stdin(t *testing.T) {
	ingestion := &mockIngestion{}
	cleanup := setupTestApp(ingestion, &mockRetrieval{})
	defer cleanup()
	defer func() { ingestID = "" }()

	_, err := run(t, "plain words", "ingest", "-", "--id", "note-7")
	require.NoError(t, err)

	assert.Equal(t, "plain words", string(ingestion.gotData))
	assert.Equal(t, "text/plain", ingestion.gotMIME)
	assert.Equal(t, "note-7", ingestion.gotDoc.ID)
}

func TestIngestCmd_ChunkOverlap(t *testing.T) {
	flag := ingestCmd.Flags().Lookup("chunk-overlap")
	defer func() {
		ingestID, ingestChunkOverlap = "", 0
		flag.Changed = false
	}()

	t.Run("unset uses configured overlap", func(t *testing.T) {
		ingestion := &mockIngestion{}
		cleanup := setupTestApp(ingestion, &mockRetrieval{})
		defer cleanup()

		_, err := run(t, "words", "ingest", "-", "--id", "note-1")
		require.NoError(t, err)
		assert.Nil(t, ingestion.gotOpts.ChunkOverlap)
	})

	t.Run("explicit zero is kept", func(t *testing.T) {
		ingestion := &mockIngestion{}
		cleanup := setupTestApp(ingestion, &mockRetrieval{})
		defer cleanup()

		_, err := run(t, "words", "ingest", "-", "--id", "note-2", "--chunk-overlap", "0")
		require.NoError(t, err)
		require.NotNil(t, ingestion.gotOpts.ChunkOverlap)
		assert.Equal(t, 0, *ingestion.gotOpts.ChunkOverlap)
	})
}

func TestIngestCmd_MissingFile(t *testing.T) {
	cleanup := setupTestApp(&mockIngestion{}, &mockRetrieval{})
	defer cleanup()

	_, err := run(t, "", "ingest", filepath.Join(t.TempDir(), "absent.txt"))
	assert.Error(t, err)
}

func TestIngestCmd_ServiceError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	ingestion := &mockIngestion{err: domain.NewExternalServiceError("embedding", "embed", errors.New("429"))}
	cleanup := setupTestApp(ingestion, &mockRetrieval{})
	defer cleanup()

	_, err := run(t, "", "ingest", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExternalService)
}

func TestTokenCmd(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	defer func() {
		tokenTeamID, tokenOrgID, tokenTTL = "", "", 24*time.Hour
	}()

	out, err := run(t, "", "token", "--team", "t1", "--org", "o1", "--ttl", "1h")
	require.NoError(t, err)

	claims, err := auth.NewAdapter("test-secret").ParseToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "t1", claims.TeamID)
	assert.Equal(t, "o1", claims.OrganizationID)
	assert.Equal(t, "lapis-cli", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, time.Minute)
}

func TestTokenCmd_NoSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := run(t, "", "token")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestVerifyProviders(t *testing.T) {
	newVerifyApp := func(llm *mocks.MockLLMService) *app {
		services := runtime.NewServices(domain.NewRuntimeConfig("pinecone", domain.SchemaTenant), mocks.NewMockVectorIndex())
		services.SetEmbeddingService(mocks.NewMockEmbeddingService())
		services.SetLLMService(llm)
		return &app{services: services, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	}

	t.Run("reachable", func(t *testing.T) {
		a := newVerifyApp(mocks.NewMockLLMService("ok"))

		require.NoError(t, verifyProviders(context.Background(), a))
		assert.True(t, a.services.Config().LLMAvailable())
	})

	t.Run("generation unreachable", func(t *testing.T) {
		llm := mocks.NewMockLLMService("ok")
		llm.SetPingError(errors.New("401 unauthorized"))
		a := newVerifyApp(llm)

		err := verifyProviders(context.Background(), a)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "generation provider check failed")
	})
}
