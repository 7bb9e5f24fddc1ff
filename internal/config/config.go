package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "urlbind.json"

	// DefaultAddr is the default listen address.
	DefaultAddr = ":8080"

	// DefaultMetricsPath is the default Prometheus endpoint path.
	DefaultMetricsPath = "/metrics"
)

// ErrNotFound is returned when no urlbind.json can be located.
var ErrNotFound = errors.New("config: urlbind.json not found")

// Config is the complete urlbind.json configuration.
type Config struct {
	// Name is the project name.
	Name string `json:"name,omitempty"`

	// Version is the project version.
	Version string `json:"version,omitempty"`

	// Addr is the listen address, e.g. ":8080".
	Addr string `json:"addr,omitempty"`

	// Log contains logging configuration.
	Log LogConfig `json:"log,omitempty"`

	// Metrics contains Prometheus endpoint configuration.
	Metrics MetricsConfig `json:"metrics,omitempty"`

	// Session contains session runtime configuration.
	Session SessionConfig `json:"session,omitempty"`

	// configPath stores the path the config was loaded from.
	configPath string
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is the slog level: "debug", "info", "warn", or "error".
	Level string `json:"level,omitempty"`

	// Format selects "text" or "json" output.
	Format string `json:"format,omitempty"`
}

// MetricsConfig contains Prometheus endpoint settings.
type MetricsConfig struct {
	// Enabled mounts the metrics endpoint.
	Enabled bool `json:"enabled,omitempty"`

	// Path is the metrics route (default: "/metrics").
	Path string `json:"path,omitempty"`
}

// SessionConfig contains session runtime settings. Durations are
// Go duration strings ("30s", "5m").
type SessionConfig struct {
	// IdleTimeout is how long an attached session may stay idle.
	IdleTimeout string `json:"idleTimeout,omitempty"`

	// ResumeWindow is how long a detached session stays resumable.
	ResumeWindow string `json:"resumeWindow,omitempty"`

	// MaxSessions caps concurrent sessions. 0 means unlimited.
	MaxSessions int `json:"maxSessions,omitempty"`

	// Store selects the snapshot store backend.
	Store StoreConfig `json:"store,omitempty"`
}

// StoreConfig selects and configures the snapshot store.
type StoreConfig struct {
	// Backend is "none", "memory", "sql", or "s3".
	Backend string `json:"backend,omitempty"`

	// Driver is the database/sql driver name for the sql backend.
	Driver string `json:"driver,omitempty"`

	// DSN is the data source name for the sql backend.
	DSN string `json:"dsn,omitempty"`

	// Table is the snapshot table name (default: "urlbind_sessions").
	Table string `json:"table,omitempty"`

	// Bucket is the S3 bucket for the s3 backend.
	Bucket string `json:"bucket,omitempty"`

	// Prefix is the S3 key prefix (default: "urlbind/sessions/").
	Prefix string `json:"prefix,omitempty"`
}

// New creates a Config with default values.
func New() *Config {
	return &Config{
		Version: "0.1.0",
		Addr:    DefaultAddr,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Path: DefaultMetricsPath,
		},
		Session: SessionConfig{
			IdleTimeout:  "5m",
			ResumeWindow: "5m",
			Store: StoreConfig{
				Backend: "memory",
			},
		},
	}
}

// Load reads configuration from urlbind.json in dir.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w in %s", ErrNotFound, filepath.Dir(path))
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := New()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.configPath = path
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration back to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.New("config: no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	c.configPath = path
	return nil
}

// Path returns the path the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills empty fields in.
func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Session.IdleTimeout == "" {
		c.Session.IdleTimeout = "5m"
	}
	if c.Session.ResumeWindow == "" {
		c.Session.ResumeWindow = "5m"
	}
	if c.Session.Store.Backend == "" {
		c.Session.Store.Backend = "memory"
	}
	if c.Session.Store.Table == "" {
		c.Session.Store.Table = "urlbind_sessions"
	}
	if c.Session.Store.Prefix == "" {
		c.Session.Store.Prefix = "urlbind/sessions/"
	}
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("config: invalid addr %q: %w", c.Addr, err)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}

	if _, err := time.ParseDuration(c.Session.IdleTimeout); err != nil {
		return fmt.Errorf("config: invalid session.idleTimeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Session.ResumeWindow); err != nil {
		return fmt.Errorf("config: invalid session.resumeWindow: %w", err)
	}
	if c.Session.MaxSessions < 0 {
		return fmt.Errorf("config: session.maxSessions must not be negative")
	}

	switch c.Session.Store.Backend {
	case "none", "memory":
	case "sql":
		if c.Session.Store.Driver == "" || c.Session.Store.DSN == "" {
			return errors.New("config: sql store needs session.store.driver and session.store.dsn")
		}
	case "s3":
		if c.Session.Store.Bucket == "" {
			return errors.New("config: s3 store needs session.store.bucket")
		}
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Session.Store.Backend)
	}
	return nil
}

// IdleTimeout returns the parsed idle timeout.
func (c *Config) IdleTimeout() time.Duration {
	d, err := time.ParseDuration(c.Session.IdleTimeout)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// ResumeWindow returns the parsed resume window.
func (c *Config) ResumeWindow() time.Duration {
	d, err := time.ParseDuration(c.Session.ResumeWindow)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// Exists reports whether a config file exists in dir.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}

// FindProjectRoot walks up from startDir to the directory containing
// urlbind.json.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w in %s or any parent directory", ErrNotFound, startDir)
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the working directory or
// the nearest parent holding a urlbind.json.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}
	return Load(root)
}
