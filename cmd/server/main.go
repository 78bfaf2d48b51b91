package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/chatterd/chatterd/pkg/logging"
	"github.com/chatterd/chatterd/pkg/server"
	"github.com/chatterd/chatterd/pkg/version"
)

func main() {
	configPath := flag.String("config", "", "YAML config file path")
	listen := flag.String("listen", "", "TCP bind address (overrides config)")
	wsListen := flag.String("ws", "", "WebSocket bind address (overrides config, empty to disable)")
	metricsAddr := flag.String("metrics", "", "HTTP bind address for Prometheus /metrics (overrides config, empty to disable)")
	storePath := flag.String("store", "", "User store path (overrides config)")
	storeBackend := flag.String("store-backend", "", "User store backend: file or sqlite (overrides config)")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	logFormat := flag.String("log-format", "", "Log format: text or json (overrides config)")
	exportUsers := flag.Bool("export-users", false, "Export all users as YAML to stdout and exit")
	importUsers := flag.String("import-users", "", "Import users from a YAML file and exit")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("chatterd", version.String())
		return
	}

	cfg, err := server.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	// Flags override config only when set.
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *wsListen != "" {
		cfg.WSListen = *wsListen
	}
	if *metricsAddr != "" {
		cfg.Metrics = *metricsAddr
	}
	if *storePath != "" {
		cfg.Store.Path = *storePath
	}
	if *storeBackend != "" {
		cfg.Store.Backend = *storeBackend
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Setup(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	// Maintenance commands run against the store and exit.
	if *exportUsers || *importUsers != "" {
		st, err := server.OpenStore(cfg.Store)
		if err != nil {
			slog.Error("open store", "err", err)
			os.Exit(1)
		}
		defer st.Close()

		if *importUsers != "" {
			f, err := os.Open(*importUsers)
			if err != nil {
				slog.Error("open import file", "err", err)
				os.Exit(1)
			}
			defer f.Close()
			n, err := server.ImportUsersYAML(st, f)
			if err != nil {
				slog.Error("import users", "err", err)
				os.Exit(1)
			}
			slog.Info("users imported", "count", n)
		}
		if *exportUsers {
			if err := server.ExportUsersYAML(st, os.Stdout); err != nil {
				slog.Error("export users", "err", err)
				os.Exit(1)
			}
		}
		return
	}

	slog.Info("starting chatterd", "version", version.String())
	if err := server.Run(cfg); err != nil {
		slog.Error("server failed", "err", err)
		os.Exit(1)
	}
}
