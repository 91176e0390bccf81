// Command server is the process entrypoint: parses --config, wires the
// connection holder (C7), event plane (C4), task manager (C6), timeline
// engine (C5) and service layer together, serves Prometheus metrics,
// and blocks until SIGINT/SIGTERM.
//
// Grounded on cuemby-warren/cmd/warren/main.go's cobra rootCmd +
// signal-wait + ordered-shutdown shape, and go-server-3/cmd/odin-ws's
// main.go for the metrics-HTTP-server-alongside-the-core-server pattern
// (signal.NotifyContext, context-cancel-driven shutdown, ListenAndServe
// in its own goroutine reporting errors on a channel).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	_ "go.uber.org/automaxprocs"

	"github.com/odin-social/timeline-server/internal/config"
	"github.com/odin-social/timeline-server/internal/logging"
	"github.com/odin-social/timeline-server/internal/metrics"
	"github.com/odin-social/timeline-server/internal/service"
	"github.com/odin-social/timeline-server/internal/storage"
	"github.com/odin-social/timeline-server/internal/taskmanager"
	"github.com/odin-social/timeline-server/pkg/bus"
)

const taskManagerWorkers = 8

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "timeline-server",
	Short: "Social-network core: users, friendships, messages, and the real-time timeline engine",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "./config/config.dev.json", "path to the JSON configuration file")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(logging.Config{Level: logging.LevelInfo, Format: logging.FormatJSON})

	port, err := cfg.PostgresPort()
	if err != nil {
		return fmt.Errorf("parse postgresql.port: %w", err)
	}

	holderCfg := storage.Config{
		Relational: storage.RelationalConfig{
			Host:        cfg.PostgreSQL.Host,
			Port:        port,
			Username:    cfg.PostgreSQL.Username,
			Password:    cfg.PostgreSQL.Password,
			Database:    cfg.PostgreSQL.Database,
			SSLStrategy: string(cfg.PostgreSQL.SSLStrategy),
		},
		Column: storage.ColumnConfig{
			Hostnames: cfg.ScyllaDB.Hostnames,
			Keyspace:  cfg.ScyllaDB.Keyspace,
		},
		Bus: bus.Config{Host: cfg.NATS.Host},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	holder, err := storage.Open(ctx, holderCfg, logger, m)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer holder.Close()

	tasks := taskmanager.New(taskManagerWorkers, logger, m)
	tasks.Start(ctx)
	defer tasks.Stop()

	svc := service.New(holder.Relational(), holder.Column(), holder.Bus(), tasks, m, logger)
	_ = svc // exposed for an external RPC layer, per spec.md §1/§6; not dispatched to here.

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	httpServer := &http.Server{
		Addr:         cfg.ListeningAddr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.ListeningAddr).Msg("metrics/health server starting")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error().Err(err).Msg("http server error")
			stop()
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http server shutdown error")
	}

	logger.Info().Msg("shutdown complete")
	return nil
}
