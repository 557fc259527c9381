package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

const (
	EnvGatewayToken = "STREAMCTL_GATEWAY_TOKEN"
	EnvControlToken = "STREAMCTL_CONTROL_PLANE_TOKEN"
)

type Config struct {
	Gateway      GatewayConfig      `yaml:"gateway" toml:"gateway"`
	ControlPlane ControlPlaneConfig `yaml:"control_plane" toml:"control_plane"`
	Mock         MockConfig         `yaml:"mock" toml:"mock"`
	Client       ClientConfig       `yaml:"client" toml:"client"`
	Stats        StatsConfig        `yaml:"stats" toml:"stats"`
	Transport    TransportConfig    `yaml:"transport" toml:"transport"`
	History      HistoryConfig      `yaml:"history" toml:"history"`
	Log          LogConfig          `yaml:"log" toml:"log"`
}

type GatewayConfig struct {
	Port                     int      `yaml:"port" toml:"port"`
	Host                     string   `yaml:"host" toml:"host"`
	AuthToken                string   `yaml:"auth_token" toml:"auth_token"`
	AllowedOrigins           []string `yaml:"allowed_origins" toml:"allowed_origins"`
	ConnectionTimeoutSeconds int      `yaml:"connection_timeout_seconds" toml:"connection_timeout_seconds"`
	MaxPerformanceClients    int      `yaml:"max_performance_clients" toml:"max_performance_clients"`
}

type ControlPlaneConfig struct {
	Endpoint       string        `yaml:"endpoint" toml:"endpoint"`
	Token          string        `yaml:"token" toml:"token"`
	RequestTimeout time.Duration `yaml:"request_timeout" toml:"request_timeout"`
}

// MockConfig tunes the in-process control plane used with -mock.
type MockConfig struct {
	AccountID         string        `yaml:"account_id" toml:"account_id"`
	DefaultRegion     string        `yaml:"default_region" toml:"default_region"`
	ActivationDelay   time.Duration `yaml:"activation_delay" toml:"activation_delay"`
	PerformancePeriod time.Duration `yaml:"performance_period" toml:"performance_period"`
}

type ClientConfig struct {
	GatewayURL    string        `yaml:"gateway_url" toml:"gateway_url"`
	Token         string        `yaml:"token" toml:"token"`
	ApplicationID string        `yaml:"application_id" toml:"application_id"`
	StreamGroupID string        `yaml:"stream_group_id" toml:"stream_group_id"`
	Regions       []string      `yaml:"regions" toml:"regions"`
	PollTimeout   time.Duration `yaml:"poll_timeout" toml:"poll_timeout"`
	PollInterval  time.Duration `yaml:"poll_interval" toml:"poll_interval"`
}

type StatsConfig struct {
	Interval time.Duration `yaml:"interval" toml:"interval"`
}

type TransportConfig struct {
	ICEServers    []string      `yaml:"ice_servers" toml:"ice_servers"`
	GatherTimeout time.Duration `yaml:"gather_timeout" toml:"gather_timeout"`
	LogLevel      string        `yaml:"log_level" toml:"log_level"`
}

type HistoryConfig struct {
	Path  string `yaml:"path" toml:"path"`
	Limit int    `yaml:"limit" toml:"limit"`
}

type LogConfig struct {
	Level string `yaml:"level" toml:"level"`
	JSON  bool   `yaml:"json" toml:"json"`
	File  string `yaml:"file" toml:"file"`
}

func defaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Port:                     8080,
			Host:                     "127.0.0.1",
			ConnectionTimeoutSeconds: 120,
			MaxPerformanceClients:    16,
		},
		ControlPlane: ControlPlaneConfig{
			RequestTimeout: 10 * time.Second,
		},
		Mock: MockConfig{
			AccountID:         "111122223333",
			DefaultRegion:     "us-west-2",
			ActivationDelay:   3 * time.Second,
			PerformancePeriod: time.Second,
		},
		Client: ClientConfig{
			GatewayURL:   "http://127.0.0.1:8080",
			Regions:      []string{"us-west-2"},
			PollTimeout:  10 * time.Minute,
			PollInterval: time.Second,
		},
		Stats: StatsConfig{
			Interval: time.Second,
		},
		Transport: TransportConfig{
			ICEServers:    []string{"stun:stun.l.google.com:19302"},
			GatherTimeout: 5 * time.Second,
			LogLevel:      "warn",
		},
		History: HistoryConfig{
			Path:  defaultHistoryPath(),
			Limit: 20,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Default returns the built-in configuration with environment overrides applied.
func Default() *Config {
	cfg := defaultConfig()
	cfg.applyEnv()
	return cfg
}

// Load reads a YAML or TOML file (chosen by extension) over the defaults.
// A missing file is not an error: the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvGatewayToken)); v != "" {
		c.Gateway.AuthToken = v
		c.Client.Token = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvControlToken)); v != "" {
		c.ControlPlane.Token = v
	}
}

// Validate rejects values the gateway and controller cannot run with.
func (c *Config) Validate() error {
	if c.Gateway.Port < 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("config: gateway.port %d out of range", c.Gateway.Port)
	}
	if c.Gateway.ConnectionTimeoutSeconds < 0 {
		return fmt.Errorf("config: gateway.connection_timeout_seconds must not be negative")
	}
	if c.Client.PollInterval <= 0 {
		return fmt.Errorf("config: client.poll_interval must be positive")
	}
	if c.Client.PollTimeout < c.Client.PollInterval {
		return fmt.Errorf("config: client.poll_timeout must be at least client.poll_interval")
	}
	if c.Stats.Interval <= 0 {
		return fmt.Errorf("config: stats.interval must be positive")
	}
	return nil
}

// ConnectionTimeout returns the configured session connection timeout, falling
// back to the default when unset.
func (c *Config) ConnectionTimeout() int {
	if c.Gateway.ConnectionTimeoutSeconds > 0 {
		return c.Gateway.ConnectionTimeoutSeconds
	}
	return 120
}

func defaultHistoryPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return filepath.Join(os.TempDir(), "streamctl", "history.db")
	}
	return filepath.Join(dir, "streamctl", "history.db")
}
