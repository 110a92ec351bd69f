package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpadapter "github.com/lapis-labs/lapis-backend/internal/adapters/driving/http"
)

var (
	serveHost   string
	servePort   int
	serveVerify bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Starts the HTTP API: /embedding, /ingest, /chunk-and-embed, /ingest/upload,
/search and /documents/{id}/ingestions, plus liveness and readiness probes.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host (overrides HOST)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (overrides PORT)")
	serveCmd.Flags().BoolVar(&serveVerify, "verify", false, "check provider credentials before accepting requests")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if serveVerify {
		if err := verifyProviders(ctx, a); err != nil {
			return err
		}
	}

	server := httpadapter.NewServer(serverConfig(a), a.ingestion, a.retrieval, a.services, a.auth)
	return server.Start(ctx)
}

// verifyProviders re-registers the configured providers through the
// runtime's validating setters, failing on the first unreachable one.
func verifyProviders(ctx context.Context, a *app) error {
	if err := a.services.ValidateAndSetEmbedding(ctx, a.services.EmbeddingService()); err != nil {
		return fmt.Errorf("embedding provider check failed: %w", err)
	}
	if err := a.services.ValidateAndSetLLM(ctx, a.services.LLMService()); err != nil {
		return fmt.Errorf("generation provider check failed: %w", err)
	}
	a.logger.Info("provider credentials verified")
	return nil
}

func serverConfig(a *app) httpadapter.Config {
	cfg := httpadapter.DefaultConfig()
	cfg.Host = a.cfg.Server.Host
	cfg.Port = a.cfg.Server.Port
	if serveHost != "" {
		cfg.Host = serveHost
	}
	if servePort > 0 {
		cfg.Port = servePort
	}
	cfg.Version = version
	cfg.Schema = a.cfg.Schema()
	cfg.CORSOrigins = a.cfg.Server.CORSOrigins
	cfg.MaxUploadBytes = a.cfg.Server.MaxUploadBytes
	cfg.Logger = a.logger
	return cfg
}

// commandContext returns the command's context, falling back to Background
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
