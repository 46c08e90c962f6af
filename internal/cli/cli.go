// Package cli assembles the cobra command tree for tidesim.
package cli

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tidesim/internal/authfilter"
	"tidesim/internal/config"
	"tidesim/internal/httpapi"
	"tidesim/internal/logging"
	"tidesim/internal/metrics"
	"tidesim/internal/store"
	"tidesim/internal/stream"
)

// UsageError marks a flag/argument validation failure, mapped to exit code 2
// (spec.md §6 exit code table).
type UsageError struct{ msg string }

func (e UsageError) Error() string { return e.msg }

// StartupError marks an unrecoverable startup failure (bind/database open),
// mapped to exit code 1.
type StartupError struct{ err error }

func (e StartupError) Error() string { return e.err.Error() }
func (e StartupError) Unwrap() error { return e.err }

// Execute builds and runs the root command.
func Execute() error {
	root := newRootCommand()
	return root.Execute()
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "tidesim",
		Short:         "Delayed-visibility store and broadcast stream simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return UsageError{msg: cmd.UsageString()}
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return UsageError{msg: err.Error()}
	})
	root.AddCommand(newServerCommand())
	return root
}

func newServerCommand() *cobra.Command {
	server := &cobra.Command{
		Use:   "server",
		Short: "Server commands",
	}
	server.AddCommand(newServerRunCommand())
	return server
}

func newServerRunCommand() *cobra.Command {
	var (
		port                 uint16
		token                string
		directory            string
		consistencyBoundMin  uint32
		consistencyBoundMax  uint32
		verbose              bool
		metricsAddr          string
		subscriberBuffer     int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Config{
				Port:                port,
				Token:               token,
				Directory:           directory,
				ConsistencyBoundMin: consistencyBoundMin,
				ConsistencyBoundMax: consistencyBoundMax,
				Verbose:             verbose,
				MetricsAddr:         metricsAddr,
				SubscriberBuffer:    subscriberBuffer,
			}
			if err := cfg.Validate(); err != nil {
				return UsageError{msg: err.Error()}
			}
			return run(cfg)
		},
	}

	flags := cmd.Flags()
	flags.Uint16Var(&port, "port", 8080, "listen port for the store/stream API")
	flags.StringVar(&token, "token", "", "shared bearer token (required)")
	flags.StringVar(&directory, "directory", "", "directory for durable storage (required)")
	flags.Uint32Var(&consistencyBoundMin, "consistency-bound-min", 0, "minimum write visibility delay, seconds")
	flags.Uint32Var(&consistencyBoundMax, "consistency-bound-max", 0, "maximum write visibility delay, seconds")
	flags.BoolVar(&verbose, "verbose", false, "enable debug logging")
	flags.StringVar(&metricsAddr, "metrics-addr", ":9095", "listen address for /metrics and /health")
	flags.IntVar(&subscriberBuffer, "subscriber-buffer", 128, "per-subscriber channel capacity")

	return cmd
}

func run(cfg config.Config) error {
	logger, err := logging.New(cfg.Verbose)
	if err != nil {
		return StartupError{err: fmt.Errorf("build logger: %w", err)}
	}
	defer logger.Sync() //nolint:errcheck

	reg := metrics.New()

	st, err := store.Open(cfg.Directory, store.Config{
		ConsistencyBoundMin: time.Duration(cfg.ConsistencyBoundMin) * time.Second,
		ConsistencyBoundMax: time.Duration(cfg.ConsistencyBoundMax) * time.Second,
	}, logger,
		store.WithPendingDepthObserver(func(n int) { reg.StorePendingDepth.Set(float64(n)) }),
		store.WithWriteAcceptedObserver(reg.StoreWritesAccepted.Inc),
		store.WithWriteRejectedObserver(reg.StoreWritesRejected.Inc),
		store.WithReadObserver(reg.StoreReads.Inc),
		store.WithRangeScanObserver(reg.StoreRangeScans.Inc),
	)
	if err != nil {
		return StartupError{err: fmt.Errorf("open store: %w", err)}
	}
	defer st.Close()

	streams := stream.NewRegistry(cfg.SubscriberBuffer, stream.Observers{
		TopicsActive:     func(delta int) { reg.StreamTopicsActive.Add(float64(delta)) },
		MessagePublished: reg.StreamMessagesPublished.Inc,
		MessageDelivered: reg.StreamMessagesDelivered.Inc,
		MessageDropped:   reg.StreamMessagesDropped.Inc,
		SubscriberJoined: func() { reg.StreamSubscribersActive.Inc() },
		SubscriberLeft:   func() { reg.StreamSubscribersActive.Dec() },
	})

	auth := authfilter.New(cfg.Token)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := httpapi.New(addr, st, streams, auth, reg, logger)
	metricsSrv := httpapi.NewMetricsServer(cfg.MetricsAddr, reg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() { errCh <- srv.ListenAndServe() }()
	go func() {
		logger.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return StartupError{err: fmt.Errorf("server error: %w", err)}
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", zap.Error(err))
	}
	_ = metricsSrv.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
	return nil
}
