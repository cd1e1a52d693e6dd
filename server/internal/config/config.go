package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bumpwatch/bumpwatch/pkg/bump"
	"github.com/bumpwatch/bumpwatch/server/internal/store"
)

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`

	// SweepInterval is how often every record is re-evaluated so that
	// time-based rules fire without a write. Defaults to 1 minute.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// AlertRule defines one per-record alert condition.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Condition is a simple expression: "health < 3000", "status == Critical",
	// "car_count > 50000", "stale_hours > 72".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Default values for the server configuration.
const (
	DefaultGRPCPort        = 50051
	DefaultHTTPPort        = 8080
	DefaultRefreshInterval = 5 * time.Second
	DefaultStoreURLEnv     = "BUMPWATCH_STORE_URL"
	DefaultStoreKeyEnv     = "BUMPWATCH_STORE_KEY"
	DefaultSQLitePath      = "bumpwatch.db"
	DefaultEventsSubject   = "bumpwatch.bumps"
	DefaultSweepInterval   = time.Minute

	minRefreshInterval = 500 * time.Millisecond
)

// Config holds the server-side configuration parsed from the `server:` section
// of config.yaml. The `agent:` key in the same file is ignored.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// GRPCPort is the port the impact receiver listens on (default 50051).
	GRPCPort int `yaml:"grpc_port"`

	// HTTPPort is the port the dashboard, REST API and WebSocket hub listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// Auth configures how the server authenticates agents and write requests.
	Auth AuthConfig `yaml:"auth"`

	// Store selects the record store backend.
	Store StoreConfig `yaml:"store"`

	// Refresh controls how often live views re-fetch the list.
	Refresh RefreshConfig `yaml:"refresh"`

	// Impact parameterises the wear model applied to agent reports.
	Impact ImpactConfig `yaml:"impact"`

	// Events configures change notifications on NATS.
	Events EventsConfig `yaml:"events"`

	// Alerts holds rule definitions and webhook delivery targets.
	Alerts AlertsConfig `yaml:"alerts"`
}

// AuthConfig controls client authentication on the server side.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	// Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the gRPC metadata key (and HTTP header name) to read the key from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// StoreConfig selects where speed-bump records live.
type StoreConfig struct {
	// Backend is one of: memory | sqlite | postgres (default memory).
	Backend string `yaml:"backend"`

	// Condition is the authoritative condition variant: health | status.
	Condition bump.Mode `yaml:"condition"`

	// FoldCritical makes the damaged filter include critical records.
	// Deployments migrated from the status-only schema relied on this.
	FoldCritical bool `yaml:"fold_critical"`

	// Path is the SQLite database file (backend sqlite).
	Path string `yaml:"path"`

	// URLEnv and KeyEnv name the environment variables holding the hosted
	// database's service URL and service key (backend postgres).
	URLEnv string `yaml:"url_env"`
	KeyEnv string `yaml:"key_env"`

	// AutoMigrate creates the speed_bumps table on postgres if missing.
	AutoMigrate bool `yaml:"auto_migrate"`

	// SeedDemo loads the demo records into an empty memory or sqlite store.
	SeedDemo bool `yaml:"seed_demo"`
}

// URL returns the service URL resolved from the environment.
func (s StoreConfig) URL() string { return getenv(s.URLEnv) }

// Key returns the service key resolved from the environment.
func (s StoreConfig) Key() string { return getenv(s.KeyEnv) }

// Problems lists missing connection parameters. They are reported at
// startup but do not stop the server; store calls fail until they are set.
func (s StoreConfig) Problems() []error {
	if s.Backend != "postgres" {
		return nil
	}
	var out []error
	if s.URL() == "" {
		out = append(out, fmt.Errorf("store service url: environment variable %q is not set", s.URLEnv))
	}
	if s.Key() == "" {
		out = append(out, fmt.Errorf("store service key: environment variable %q is not set", s.KeyEnv))
	}
	return out
}

// StoreOptions converts the section into store.Options, resolving the
// service URL and key from the environment.
func (s StoreConfig) StoreOptions() store.Options {
	return store.Options{
		Backend:     s.Backend,
		Mode:        s.Condition,
		Path:        s.Path,
		URL:         s.URL(),
		Key:         s.Key(),
		AutoMigrate: s.AutoMigrate,
		SeedDemo:    s.SeedDemo,
	}
}

// RefreshConfig controls the live view polling loop.
type RefreshConfig struct {
	// Interval is the timer period of every live view (default 5s).
	Interval time.Duration `yaml:"interval"`
}

// ImpactConfig parameterises impact ingestion.
type ImpactConfig struct {
	// SpeedLimitKmh is the speed above which a crossing causes damage (default 35).
	SpeedLimitKmh float64 `yaml:"speed_limit_kmh"`
}

// EventsConfig configures NATS change events. Events are disabled when the
// URL is empty.
type EventsConfig struct {
	URLEnv  string `yaml:"url_env"`
	Subject string `yaml:"subject"`
}

// URL returns the NATS URL resolved from the environment.
func (e EventsConfig) URL() string { return getenv(e.URLEnv) }

// Load reads and parses the config file at path, returning the server configuration.
// Missing fields are filled with sensible defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML config data with defaults applied.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config { return defaults() }

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			GRPCPort: DefaultGRPCPort,
			HTTPPort: DefaultHTTPPort,
			Store: StoreConfig{
				Backend:   "memory",
				Condition: bump.ModeHealth,
				Path:      DefaultSQLitePath,
				URLEnv:    DefaultStoreURLEnv,
				KeyEnv:    DefaultStoreKeyEnv,
				SeedDemo:  true,
			},
			Refresh: RefreshConfig{Interval: DefaultRefreshInterval},
			Impact:  ImpactConfig{SpeedLimitKmh: bump.DefaultSpeedLimitKmh},
			Events:  EventsConfig{Subject: DefaultEventsSubject},
			Alerts:  AlertsConfig{SweepInterval: DefaultSweepInterval},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.GRPCPort <= 0 || s.GRPCPort > 65535 {
		return fmt.Errorf("server.grpc_port %d is out of range [1, 65535]", s.GRPCPort)
	}
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	switch s.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", s.Auth.Mode)
	}
	switch s.Store.Backend {
	case "memory", "postgres":
	case "sqlite":
		if s.Store.Path == "" {
			return fmt.Errorf("server.store.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("server.store.backend %q unknown: want memory|sqlite|postgres", s.Store.Backend)
	}
	if !s.Store.Condition.Valid() {
		return fmt.Errorf("server.store.condition %q unknown: want health|status", s.Store.Condition)
	}
	if s.Refresh.Interval < minRefreshInterval {
		return fmt.Errorf("server.refresh.interval %v is below the %v minimum", s.Refresh.Interval, minRefreshInterval)
	}
	if s.Impact.SpeedLimitKmh <= 0 {
		return fmt.Errorf("server.impact.speed_limit_kmh must be positive")
	}
	if s.Alerts.SweepInterval < minRefreshInterval {
		return fmt.Errorf("server.alerts.sweep_interval %v is below the %v minimum", s.Alerts.SweepInterval, minRefreshInterval)
	}
	for i, r := range s.Alerts.Rules {
		if r.Name == "" || r.Condition == "" {
			return fmt.Errorf("server.alerts.rules[%d]: name and condition are required", i)
		}
	}
	return nil
}

func getenv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
