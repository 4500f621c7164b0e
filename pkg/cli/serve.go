package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-metastore/pkg/config"
	"github.com/ekaya-inc/ekaya-metastore/pkg/handlers"
	"github.com/ekaya-inc/ekaya-metastore/pkg/metastore"
	"github.com/ekaya-inc/ekaya-metastore/pkg/metrics"
	"github.com/ekaya-inc/ekaya-metastore/pkg/middleware"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the repository to the execution engine over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := rootOpts.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, logger)
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Configuration loaded",
		zap.String("version", cfg.Version),
		zap.String("env", cfg.Env),
		zap.String("driver", cfg.Database.Driver),
		zap.Bool("require_enabled", cfg.Repository.RequireEnabled))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	repo, err := metastore.Open(ctx, cfg, metrics.NewRecorder(reg), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("Failed to close repository", zap.Error(err))
		}
	}()
	repo.StartPurger(cfg.Repository.PurgeAfter, cfg.Repository.PurgeInterval)

	server := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           NewRouter(cfg, repo, reg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting ekaya-metastore", zap.String("addr", server.Addr), zap.String("base_url", cfg.BaseURL))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// NewRouter mounts every route behind the request middleware.
func NewRouter(cfg *config.Config, repo *metastore.Repository, reg *prometheus.Registry, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	handlers.NewHealthHandler(cfg, repo.DB, logger).RegisterRoutes(mux)
	handlers.RegisterMetrics(mux, reg)
	handlers.NewConfigurableHandler(repo.Catalog, repo.Descriptors, logger).RegisterRoutes(mux)
	handlers.NewInstanceHandler(repo.Links, repo.Jobs, repo.Descriptors, logger).RegisterRoutes(mux)
	handlers.NewSubmissionHandler(repo.Submissions, repo.Counters, logger).RegisterRoutes(mux)

	var h http.Handler = mux
	h = middleware.RequestLogger(logger)(h)
	h = middleware.Recover(logger)(h)
	h = middleware.RequestID(h)
	return h
}
