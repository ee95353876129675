package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mdobak/go-xerrors"
	"github.com/spf13/cobra"

	"github.com/0xlemi/tunecoach/internal/logging"
	"github.com/0xlemi/tunecoach/internal/practice"
	"github.com/0xlemi/tunecoach/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		addr        string
		dbPath      string
		timeout     time.Duration
		maxInFlight int64
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and socket.io stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Addr = addr
			}
			if flags.Changed("db") {
				cfg.DBPath = dbPath
			}
			if flags.Changed("timeout") {
				cfg.Timeout = timeout
			}
			if flags.Changed("max-inflight") {
				cfg.MaxInFlight = maxInFlight
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return serve(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default :5000)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite file for practice sessions (default in memory)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "per-request analysis budget (default 30s)")
	cmd.Flags().Int64Var(&maxInFlight, "max-inflight", 0, "concurrent analysis requests (default 16)")
	return cmd
}

func serve(ctx context.Context) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}

	var store practice.Store = practice.NewMemoryStore()
	if cfg.DBPath != "" {
		if store, err = practice.NewSQLiteStore(cfg.DBPath); err != nil {
			return err
		}
	}
	manager := practice.NewManager(store, eng, nil)
	defer manager.Close()

	srv := server.New(eng, manager, server.Options{
		Timeout:     cfg.Timeout,
		MaxInFlight: cfg.MaxInFlight,
	})

	go func() {
		if err := srv.Serve(); err != nil {
			logging.Error(xerrors.New(err), "socket.io server stopped")
		}
	}()
	defer srv.Close()

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logging.Info("listening", logging.Fields{
			"addr":         cfg.Addr,
			"db":           cfg.DBPath,
			"workers":      cfg.Workers,
			"max_inflight": cfg.MaxInFlight,
		})
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logging.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
