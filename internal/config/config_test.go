package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load with empty path failed: %v", err)
	}
	if cfg.ListenAddr != ":8791" {
		t.Fatalf("unexpected listen addr: %q", cfg.ListenAddr)
	}
	if cfg.BackendDSN != "file://.notehub/state.json" {
		t.Fatalf("unexpected backend DSN: %q", cfg.BackendDSN)
	}
	if !cfg.WatchBackend || cfg.BridgeTimeout != 5*time.Second || cfg.MaxMutationAttempts != 5 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notehub.yaml")
	content := `
listenAddr: "127.0.0.1:9000"
backendDSN: "memory://"
watchBackend: false
bridgeTimeout: 2s
maxMutationAttempts: 3
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:9000" || cfg.BackendDSN != "memory://" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.WatchBackend || cfg.BridgeTimeout != 2*time.Second || cfg.MaxMutationAttempts != 3 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notehub.yaml")
	if err := os.WriteFile(path, []byte(`listenAddr: ":9000"`), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("NOTEHUB_ADDR", ":9100")
	t.Setenv("NOTEHUB_BACKEND_DSN", "sqlite://notes.db")
	t.Setenv("NOTEHUB_WATCH_BACKEND", "false")
	t.Setenv("NOTEHUB_BRIDGE_TIMEOUT", "750ms")
	t.Setenv("NOTEHUB_MAX_MUTATION_ATTEMPTS", "9")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.ListenAddr != ":9100" || cfg.BackendDSN != "sqlite://notes.db" {
		t.Fatalf("environment did not win: %+v", cfg)
	}
	if cfg.WatchBackend || cfg.BridgeTimeout != 750*time.Millisecond || cfg.MaxMutationAttempts != 9 {
		t.Fatalf("environment did not win: %+v", cfg)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"empty listen addr":    `listenAddr: "  "`,
		"empty backend dsn":    `backendDSN: "  "`,
		"zero bridge timeout":  `bridgeTimeout: 0s`,
		"zero retry budget":    `maxMutationAttempts: 0`,
		"unparsable yaml body": `listenAddr: [`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "notehub.yaml")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatalf("write config file: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Fatalf("config accepted but should not be: %s", content)
			}
		})
	}
}
