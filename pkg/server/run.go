package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/chatterd/chatterd/pkg/store"
)

// OpenStore opens the user store selected by the config.
func OpenStore(cfg StoreConfig) (store.UserStore, error) {
	switch cfg.Backend {
	case BackendFile:
		return store.OpenFile(cfg.Path)
	case BackendSQLite:
		return store.OpenSQL(cfg.Path)
	default:
		return nil, fmt.Errorf("server: unknown store backend %q", cfg.Backend)
	}
}

// Run starts the configured listeners and blocks until SIGINT or SIGTERM,
// then shuts down. The TCP bind is the only fatal failure.
func Run(cfg Config) error {
	st, err := OpenStore(cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := New(cfg, st)
	if err := srv.Start(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.WSListen != "" {
		srv.StartWS(ctx, cfg.WSListen)
	}
	if cfg.Metrics != "" {
		StartMetricsHTTP(ctx, cfg.Metrics, srv.Metrics())
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig
	slog.Info("shutting down", "signal", received.String())

	cancel()
	srv.Shutdown()
	return nil
}
