package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultScrapeInterval = 15 * time.Second
	DefaultBufferSize     = 1000
	DefaultCertInterval   = time.Hour
	DefaultServerHeader   = "x-api-key"
)

// Detector formats understood by the scraper.
const (
	FormatPrometheus = "prometheus"
	FormatJSON       = "json"
)

// Config is the agent's view of config.yaml. The `server:` section of the
// same file is read by bumpwatch-server and ignored here.
type Config struct {
	Agent AgentConfig `yaml:"agent"`
}

// AgentConfig holds all agent-side settings.
type AgentConfig struct {
	// ServerEndpoint is the gRPC address of bumpwatch-server (host:port).
	ServerEndpoint string `yaml:"server_endpoint"`

	// ScrapeInterval controls how often each detector is polled.
	ScrapeInterval time.Duration `yaml:"scrape_interval"`

	// BufferSize is the maximum number of impact reports held in memory
	// while the server is unreachable.
	BufferSize int `yaml:"buffer_size"`

	// CertInterval is how often HTTPS detector certificates are checked.
	CertInterval time.Duration `yaml:"cert_interval"`

	// Detectors are the roadside counters this agent reads.
	Detectors []Detector `yaml:"detectors"`

	// ServerAuth configures how the agent authenticates to bumpwatch-server.
	// Modes: mtls | apikey | none.
	ServerAuth AuthConfig `yaml:"server_auth"`
}

// Detector is one roadside vehicle counter. A detector may cover several
// bumps; its counters are labelled by bump id.
type Detector struct {
	// ID names the detector in logs and in impact reports.
	ID string `yaml:"id"`

	// Format is the exposition the endpoint serves: prometheus (default) | json.
	Format string `yaml:"format"`

	// Endpoint is the full URL of the detector's counter endpoint.
	Endpoint string `yaml:"endpoint"`

	// Bumps restricts reports to these bump ids. Empty means every bump the
	// detector exposes.
	Bumps []string `yaml:"bumps"`

	Auth AuthConfig `yaml:"auth"`
	TLS  TLSConfig  `yaml:"tls"`
}

// Covers reports whether reports for bumpID should be shipped.
func (d Detector) Covers(bumpID string) bool {
	if len(d.Bumps) == 0 {
		return true
	}
	for _, id := range d.Bumps {
		if id == bumpID {
			return true
		}
	}
	return false
}

// AuthConfig specifies the authentication mode for a detector or the server.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Header is the header (HTTP) or metadata key (gRPC) carrying the API key.
	Header string `yaml:"header"`
	// KeyEnv names the environment variable holding the API key.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv names the environment variable holding a bearer token.
	TokenEnv string `yaml:"token_env"`

	// Username is stored literally; the password comes from PasswordEnv.
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
func (a AuthConfig) Key() string { return getenv(a.KeyEnv) }

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string { return getenv(a.TokenEnv) }

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string { return getenv(a.PasswordEnv) }

// TLSConfig holds per-detector TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables certificate verification. Field units
	// with self-signed certificates need it.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

func getenv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	for i := range cfg.Agent.Detectors {
		if cfg.Agent.Detectors[i].Format == "" {
			cfg.Agent.Detectors[i].Format = FormatPrometheus
		}
	}
	if cfg.Agent.ServerAuth.Header == "" {
		cfg.Agent.ServerAuth.Header = DefaultServerHeader
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			ScrapeInterval: DefaultScrapeInterval,
			BufferSize:     DefaultBufferSize,
			CertInterval:   DefaultCertInterval,
		},
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	a := cfg.Agent
	if a.ServerEndpoint == "" {
		return fmt.Errorf("agent.server_endpoint is required")
	}
	if a.ScrapeInterval <= 0 {
		return fmt.Errorf("agent.scrape_interval must be positive")
	}
	if a.BufferSize <= 0 {
		return fmt.Errorf("agent.buffer_size must be positive")
	}
	if a.CertInterval <= 0 {
		return fmt.Errorf("agent.cert_interval must be positive")
	}
	switch a.ServerAuth.Mode {
	case "mtls", "apikey", "none", "":
	default:
		return fmt.Errorf("agent.server_auth: unknown mode %q", a.ServerAuth.Mode)
	}

	seen := make(map[string]bool, len(a.Detectors))
	for i, d := range a.Detectors {
		if d.ID == "" {
			return fmt.Errorf("detectors[%d]: id is required", i)
		}
		if seen[d.ID] {
			return fmt.Errorf("detectors[%d]: duplicate id %q", i, d.ID)
		}
		seen[d.ID] = true
		if d.Endpoint == "" {
			return fmt.Errorf("detectors[%d] %q: endpoint is required", i, d.ID)
		}
		switch d.Format {
		case FormatPrometheus, FormatJSON:
		default:
			return fmt.Errorf("detectors[%d] %q: unknown format %q", i, d.ID, d.Format)
		}
		switch d.Auth.Mode {
		case "mtls", "apikey", "bearer", "basic", "none", "":
		default:
			return fmt.Errorf("detectors[%d] %q: unknown auth mode %q", i, d.ID, d.Auth.Mode)
		}
	}
	return nil
}
