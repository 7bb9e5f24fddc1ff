package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/urlbind-dev/urlbind"
	"github.com/urlbind-dev/urlbind/internal/config"
	"github.com/urlbind-dev/urlbind/pkg/sessionstore"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		addr       string
		metrics    bool
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the session server",
		Long: `Run the WebSocket session server from an urlbind.json project file.

The server mounts /ws for clients, /healthz for probes, and /metrics
when metrics are enabled. Flags override the corresponding file
settings. Without a project file the server runs with defaults.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServeConfig(configPath)
			if err != nil {
				return err
			}

			if addr != "" {
				cfg.Addr = addr
			}
			if cmd.Flags().Changed("metrics") {
				cfg.Metrics.Enabled = metrics
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := buildLogger(cfg.Log)
			if err != nil {
				return err
			}

			store, cleanup, err := buildStore(cfg.Session.Store)
			if err != nil {
				return err
			}
			defer cleanup()

			app := urlbind.New(urlbind.Config{
				Address: cfg.Addr,
				Logger:  logger,
				Session: urlbind.SessionConfig{
					ResumeWindow: cfg.ResumeWindow(),
					IdleTimeout:  cfg.IdleTimeout(),
					MaxSessions:  cfg.Session.MaxSessions,
					Store:        store,
				},
				Metrics: urlbind.MetricsConfig{
					Enabled: cfg.Metrics.Enabled,
					Path:    cfg.Metrics.Path,
				},
			})

			logger.Info("starting urlbind server",
				"addr", cfg.Addr,
				"store", cfg.Session.Store.Backend,
				"metrics", cfg.Metrics.Enabled)
			return app.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to urlbind.json (default: nearest parent)")
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (overrides config)")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "Enable the Prometheus endpoint")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	return cmd
}

// loadServeConfig loads the project config, falling back to defaults
// when no urlbind.json exists and none was named explicitly.
func loadServeConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	cfg, err := config.LoadFromWorkingDir()
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			return config.New(), nil
		}
		return nil, err
	}
	return cfg, nil
}

func buildLogger(lc config.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "", "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", lc.Level)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if lc.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler), nil
}

// buildStore constructs the snapshot store named by sc. The returned
// cleanup closes whatever the store borrowed (the sql.DB handle).
func buildStore(sc config.StoreConfig) (sessionstore.Store, func(), error) {
	noop := func() {}

	switch sc.Backend {
	case "none":
		return nil, noop, nil

	case "", "memory":
		return sessionstore.NewMemoryStore(), noop, nil

	case "sql":
		// The driver must be linked into the binary; build a custom
		// entry point importing it when the stock CLI lacks yours.
		db, err := sql.Open(sc.Driver, sc.DSN)
		if err != nil {
			return nil, noop, fmt.Errorf("open %s database: %w", sc.Driver, err)
		}
		dialect := sessionstore.DialectPostgreSQL
		switch sc.Driver {
		case "mysql":
			dialect = sessionstore.DialectMySQL
		case "sqlite", "sqlite3":
			dialect = sessionstore.DialectSQLite
		}
		store := sessionstore.NewSQLStore(db,
			sessionstore.WithSQLTableName(sc.Table),
			sessionstore.WithSQLDialect(dialect))
		return store, func() { _ = db.Close() }, nil

	case "s3":
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background())
		if err != nil {
			return nil, noop, fmt.Errorf("load AWS config: %w", err)
		}
		store := sessionstore.NewS3Store(s3.NewFromConfig(awsCfg), sc.Bucket,
			sessionstore.WithS3Prefix(sc.Prefix))
		return store, noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown store backend %q", sc.Backend)
	}
}
