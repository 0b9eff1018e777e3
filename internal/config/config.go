package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries the hub daemon's settings. Precedence, lowest first:
// built-in defaults, the YAML config file, NOTEHUB_* environment variables.
type Config struct {
	ListenAddr string `yaml:"listenAddr"`
	// BackendDSN selects the durable backend: a bare path or file:// for the
	// JSON file backend, memory://, sqlite://path, or a postgres:// DSN.
	BackendDSN string `yaml:"backendDSN"`
	// WatchBackend subscribes to backend change notifications so writes by
	// another process surface as changed events here.
	WatchBackend bool `yaml:"watchBackend"`
	// BridgeTimeout bounds each bridge client request.
	BridgeTimeout       time.Duration `yaml:"bridgeTimeout"`
	MaxMutationAttempts int           `yaml:"maxMutationAttempts"`
}

func Default() Config {
	return Config{
		ListenAddr:          ":8791",
		BackendDSN:          "file://.notehub/state.json",
		WatchBackend:        true,
		BridgeTimeout:       5 * time.Second,
		MaxMutationAttempts: 5,
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides. A missing file at an explicitly given path is an
// error; an empty path just means defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("NOTEHUB_ADDR")); v != "" {
		c.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("NOTEHUB_BACKEND_DSN")); v != "" {
		c.BackendDSN = v
	}
	if v := strings.TrimSpace(os.Getenv("NOTEHUB_WATCH_BACKEND")); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			c.WatchBackend = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("NOTEHUB_BRIDGE_TIMEOUT")); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			c.BridgeTimeout = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("NOTEHUB_MAX_MUTATION_ATTEMPTS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			c.MaxMutationAttempts = parsed
		}
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return fmt.Errorf("listenAddr must not be empty")
	}
	if strings.TrimSpace(c.BackendDSN) == "" {
		return fmt.Errorf("backendDSN must not be empty")
	}
	if c.BridgeTimeout <= 0 {
		return fmt.Errorf("bridgeTimeout must be positive")
	}
	if c.MaxMutationAttempts <= 0 {
		return fmt.Errorf("maxMutationAttempts must be positive")
	}
	return nil
}
