package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/essayflow"
	"github.com/aretw0/essayflow/internal/cli"
	httpAdapter "github.com/aretw0/essayflow/pkg/adapters/http"
	"github.com/aretw0/essayflow/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the workflow over HTTP with live graph events",
	Long: `Starts the engine behind a JSON API. Browsers follow the graph on /events
(Server-Sent Events); /metrics exposes Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTP.Addr = addr
		}
		ctx := cmd.Context()

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics, err := observability.NewMetrics(reg)
		if err != nil {
			return err
		}

		logger, err := cli.NewLogger(cfg.Log)
		if err != nil {
			return err
		}
		streams := httpAdapter.NewStreamManager(logger)
		deps, err := newEngine(ctx,
			essayflow.WithHost(streams),
			essayflow.WithLifecycleHooks(metrics.Hooks()),
		)
		if err != nil {
			return err
		}
		defer deps.Close()

		server := httpAdapter.NewServer(deps.engine, streams,
			httpAdapter.WithStore(deps.persistence.Store),
			httpAdapter.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
			httpAdapter.WithLogger(deps.logger),
		)
		return listen(ctx, deps.logger, cfg.HTTP.Addr, server.Handler())
	},
}

// listen serves handler until ctx is done, then shuts down gracefully.
func listen(ctx context.Context, logger *slog.Logger, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", "address", addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down", "cause", context.Cause(ctx))
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.Join(
				fmt.Errorf("graceful shutdown did not complete in %v: %w", shutdownTimeout, err),
				srv.Close(),
			)
		}
		return nil
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addBackendFlags(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (default from config, :8080)")
}
