package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/soaringjerry/archetypes/internal/api"
	"github.com/soaringjerry/archetypes/internal/config"
	dbstore "github.com/soaringjerry/archetypes/internal/db"
	"github.com/soaringjerry/archetypes/internal/middleware"
	"github.com/soaringjerry/archetypes/internal/services"
)

var (
	commit    = "dev"
	buildTime = ""
)

func main() {
	root := &cobra.Command{
		Use:           "archetypes",
		Short:         "Archetype assessment scoring and report unlock service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newMigrateCmd(), newSignCmd())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	cfg.Level = lvl
	return cfg.Build()
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func openStore(cfg *config.Config, logger *zap.Logger) (services.AssessmentStore, func(), error) {
	if cfg.SQLitePath == "" {
		logger.Warn("ARCHETYPES_SQLITE_PATH not set, using in-memory store")
		return api.NewMemoryStore(), func() {}, nil
	}
	conn, err := dbstore.Open(cfg.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if cerr := conn.Close(); cerr != nil {
			logger.Warn("close sqlite", zap.Error(cerr))
		}
	}
	if _, err := dbstore.RunMigrations(conn, cfg.MigrationsDir, logger); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("run migrations: %w", err)
	}
	store, err := dbstore.NewSQLiteStore(conn, logger)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("init sqlite store: %w", err)
	}
	return store, closeFn, nil
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	catalog, err := services.DefaultCatalog()
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	sessions, err := middleware.NewSessions(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return err
	}
	assessments := services.NewAssessmentService(store, catalog)
	payments := services.NewPaymentService(assessments, services.PayFastSettings{
		MerchantID:   cfg.PayFast.MerchantID,
		MerchantKey:  cfg.PayFast.MerchantKey,
		Passphrase:   cfg.PayFast.Passphrase,
		ProcessURL:   cfg.PayFast.ProcessURL,
		ReturnURL:    cfg.PayFast.ReturnURL,
		CancelURL:    cfg.PayFast.CancelURL,
		NotifyURL:    cfg.PayFast.NotifyURL,
		PlusForSpace: cfg.PayFast.PlusForSpace,
	}, services.PricingSettings{
		FullReportPrice: cfg.Pricing.FullReportPrice,
		Currency:        cfg.Pricing.Currency,
	})
	router := api.NewRouter(assessments, payments, services.NewReportService(assessments), sessions, logger)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.String("commit", commit), zap.String("build_time", buildTime))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
