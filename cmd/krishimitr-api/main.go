// Package main provides the KrishiMitr dev backend entrypoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/krishimitr/assistant/internal/app"
	"github.com/krishimitr/assistant/internal/backend"
	"github.com/krishimitr/assistant/internal/config"
	"github.com/krishimitr/assistant/internal/observability"
	"github.com/krishimitr/assistant/internal/storage"
)

var (
	cfgFile string
	dbPath  string

	cfg    *config.Config
	logger *observability.Logger
)

var rootCmd = &cobra.Command{
	Use:   "krishimitr-api",
	Short: "Development backend for the KrishiMitr assistant",
	Long: `krishimitr-api serves the assistant API from a local knowledge base.

It answers POST /api/ask with summaries of the best matching record, serves
the whole knowledge base on GET /api/knowledge-base for client resyncs, and
reports liveness on GET /health. Build records from raw data with the etl
subcommand and load a prepared CSV with import.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if dbPath == "" {
			dbPath = cfg.Server.KnowledgeBasePath
		}
		logger = app.NewLogger(cfg, "krishimitr-api", os.Stderr)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", os.Getenv("CONFIG_PATH"), "config file path")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "knowledge base SQLite path (default: server.knowledge_base_path)")

	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newETLCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context) (*storage.Store, error) {
	store, err := app.OpenStore(ctx, cfg, dbPath, logger)
	if err != nil {
		return nil, fmt.Errorf("open knowledge base: %w", err)
	}
	return store, nil
}

func serve(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := backend.NewService(store, app.IntentMatcher(cfg), app.Detector(cfg), logger)
	records, err := svc.Count(ctx)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	logger.Info().
		Str("addr", addr).
		Str("database", store.Driver()).
		Int("records", records).
		Msg("Starting KrishiMitr API")

	appCfg := DefaultAppConfig()
	if cfg.Server.ReadTimeout > 0 {
		appCfg.RequestTimeout = cfg.Server.ReadTimeout
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      NewRouter(logger, svc, appCfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("HTTP server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-shutdown:
		logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdown)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Graceful shutdown failed")
		if err := srv.Close(); err != nil {
			logger.Error().Err(err).Msg("Forced shutdown failed")
		}
	}

	logger.Info().Msg("Server stopped")
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "krishimitr-api v%s\n", app.Version)
		},
	}
}
