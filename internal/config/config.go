// Package config loads the roundsbot YAML configuration.
//
// The file is selected by --config or ROUNDSBOT_CONFIG. Every field has a
// default, so an empty or missing file yields a runnable configuration for
// the ward network. A few ROUNDSBOT_* variables override addresses and the
// journal DSN after the file is read.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"roundsbot/internal/adapter/feed"
	httpadapter "roundsbot/internal/adapter/http"
	"roundsbot/internal/adapter/navbackend"
	"roundsbot/internal/adapter/storebackend"
	"roundsbot/internal/app/ports"
	"roundsbot/internal/domain/visit"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig        `yaml:"server"`
	Navigation navbackend.Config   `yaml:"navigation"`
	Storage    storebackend.Config `yaml:"storage"`
	Feed       feed.Config         `yaml:"feed"`
	Emergency  feed.Config         `yaml:"emergency"`
	Sequencer  SequencerConfig     `yaml:"sequencer"`
	Registry   RegistryConfig      `yaml:"registry"`
	Journal    JournalConfig       `yaml:"journal"`
	Telemetry  TelemetryConfig     `yaml:"telemetry"`
	Logging    LoggingConfig       `yaml:"logging"`
}

type ServerConfig struct {
	Addr            string                 `yaml:"addr"`
	ShutdownTimeout time.Duration          `yaml:"shutdown_timeout"`
	CORS            httpadapter.CORSPolicy `yaml:"cors"`
}

type SequencerConfig struct {
	Plan           visit.LegPlan `yaml:"plan"`
	BackendRetries int           `yaml:"backend_retries"`
	EventTimeout   time.Duration `yaml:"event_timeout"`
	QueueSize      int           `yaml:"queue_size"`
	EventQueueSize int           `yaml:"event_queue_size"`
	DedupeWindow   int           `yaml:"dedupe_window"`
	JournalTimeout time.Duration `yaml:"journal_timeout"`
}

type RegistryConfig struct {
	// RefreshInterval of zero disables periodic refresh; the boot refresh
	// still runs.
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	SnapshotPath    string        `yaml:"snapshot_path"`
}

// JournalConfig picks the outcome log backend: postgres when DSN is set,
// otherwise the JSON file at Path. With neither, history lives in memory
// only.
type JournalConfig struct {
	Path          string `yaml:"path"`
	DSN           string `yaml:"dsn"`
	MigrationsDir string `yaml:"migrations_dir"`
}

type TelemetryConfig struct {
	Buffer int `yaml:"buffer"`
	Keep   int `yaml:"keep"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() Config {
	assignments := feed.DefaultConfig()
	assignments.URL = "ws://192.168.1.73:8000/ws/socket-server/slot/"
	assignments.InitialRequest = &ports.NextRequest{Room: "room_1", Bed: "bed_2"}
	emergency := feed.DefaultConfig()
	emergency.URL = "ws://192.168.1.33:8000/ws/socket-server/emergency-status/"

	return Config{
		Server:     ServerConfig{Addr: ":8000", ShutdownTimeout: 5 * time.Second},
		Navigation: navbackend.DefaultConfig(),
		Storage:    storebackend.DefaultConfig(),
		Feed:       assignments,
		Emergency:  emergency,
		Sequencer: SequencerConfig{
			Plan:           visit.DefaultLegPlan(),
			BackendRetries: 2,
			EventTimeout:   10 * time.Minute,
			QueueSize:      64,
			EventQueueSize: 64,
			DedupeWindow:   1024,
			JournalTimeout: 5 * time.Second,
		},
		Registry: RegistryConfig{
			RefreshInterval: 5 * time.Minute,
			SnapshotPath:    "pois.json",
		},
		Journal: JournalConfig{
			Path:          "task_history.json",
			MigrationsDir: "db/migrations",
		},
		Telemetry: TelemetryConfig{Buffer: 32, Keep: 20},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults
// with environment overrides applied.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Addr = stringEnv("ROUNDSBOT_ADDR", c.Server.Addr)
	c.Navigation.BaseURL = stringEnv("ROUNDSBOT_NAV_URL", c.Navigation.BaseURL)
	c.Storage.BaseURL = stringEnv("ROUNDSBOT_STORAGE_URL", c.Storage.BaseURL)
	c.Feed.URL = stringEnv("ROUNDSBOT_FEED_URL", c.Feed.URL)
	c.Emergency.URL = stringEnv("ROUNDSBOT_EMERGENCY_URL", c.Emergency.URL)
	c.Journal.DSN = stringEnv("ROUNDSBOT_DB_DSN", c.Journal.DSN)
	c.Journal.Path = stringEnv("ROUNDSBOT_JOURNAL_PATH", c.Journal.Path)
	c.Navigation.TransportRetries = intEnv("ROUNDSBOT_NAV_RETRIES", c.Navigation.TransportRetries)
	c.Logging.Level = stringEnv("ROUNDSBOT_LOG_LEVEL", c.Logging.Level)
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Navigation.BaseURL) == "" {
		errs = append(errs, errors.New("navigation.base_url is required"))
	}
	if strings.TrimSpace(c.Storage.BaseURL) == "" {
		errs = append(errs, errors.New("storage.base_url is required"))
	}
	if strings.TrimSpace(c.Feed.URL) == "" {
		errs = append(errs, errors.New("feed.url is required"))
	}
	if c.Navigation.TransportRetries < 0 {
		errs = append(errs, errors.New("navigation.transport_retries must not be negative"))
	}
	if c.Sequencer.BackendRetries < 0 {
		errs = append(errs, errors.New("sequencer.backend_retries must not be negative"))
	}
	for name, d := range map[string]time.Duration{
		"server.shutdown_timeout":   c.Server.ShutdownTimeout,
		"navigation.timeout":        c.Navigation.Timeout,
		"navigation.retry_delay":    c.Navigation.RetryDelay,
		"storage.timeout":           c.Storage.Timeout,
		"feed.reconnect_delay":      c.Feed.ReconnectDelay,
		"feed.ping_interval":        c.Feed.PingInterval,
		"feed.ping_timeout":         c.Feed.PingTimeout,
		"emergency.reconnect_delay": c.Emergency.ReconnectDelay,
		"sequencer.event_timeout":   c.Sequencer.EventTimeout,
		"sequencer.journal_timeout": c.Sequencer.JournalTimeout,
		"registry.refresh_interval": c.Registry.RefreshInterval,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q is not text or json", c.Logging.Format))
	}
	return errors.Join(errs...)
}

func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging.level %q is unknown", level)
	}
}

func stringEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
