package notestore

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildStateBackendFromDSN(t *testing.T) {
	backend, err := BuildStateBackendFromDSN("")
	if err != nil || backend != nil {
		t.Fatalf("empty DSN should yield no backend, got %v / %v", backend, err)
	}

	backend, err = BuildStateBackendFromDSN("memory://")
	if err != nil {
		t.Fatalf("memory DSN failed: %v", err)
	}
	if _, ok := backend.(*InMemoryStateBackend); !ok {
		t.Fatalf("expected in-memory backend, got %T", backend)
	}

	backend, err = BuildStateBackendFromDSN(".notehub/state.json")
	if err != nil {
		t.Fatalf("bare path DSN failed: %v", err)
	}
	fileBackend, ok := backend.(*JSONFileStateBackend)
	if !ok {
		t.Fatalf("expected file backend, got %T", backend)
	}
	if fileBackend.Path != ".notehub/state.json" {
		t.Fatalf("unexpected file path: %q", fileBackend.Path)
	}

	backend, err = BuildStateBackendFromDSN("file://.notehub/state.json")
	if err != nil {
		t.Fatalf("file DSN failed: %v", err)
	}
	if _, ok := backend.(*JSONFileStateBackend); !ok {
		t.Fatalf("expected file backend, got %T", backend)
	}

	dbPath := filepath.Join(t.TempDir(), "notes.db")
	backend, err = BuildStateBackendFromDSN("sqlite://" + dbPath)
	if err != nil {
		t.Fatalf("sqlite DSN failed: %v", err)
	}
	if _, ok := backend.(*SQLiteStateBackend); !ok {
		t.Fatalf("expected sqlite backend, got %T", backend)
	}

	backend, err = BuildStateBackendFromDSN("postgres://user@localhost/notes")
	if err != nil {
		t.Fatalf("postgres DSN failed: %v", err)
	}
	if _, ok := backend.(*PostgresStateBackend); !ok {
		t.Fatalf("expected postgres backend, got %T", backend)
	}

	if _, err := BuildStateBackendFromDSN("mysql://localhost/notes"); !errors.Is(err, ErrNotImplemented) {
		t.Fatalf("expected not implemented for mysql, got: %v", err)
	}
	if _, err := BuildStateBackendFromDSN("carrierpigeon://coop"); err == nil ||
		!strings.Contains(err.Error(), "unsupported state backend scheme") {
		t.Fatalf("expected unsupported scheme error, got: %v", err)
	}
}

type registeredTestBackend struct {
	InMemoryStateBackend
	dsn string
}

func TestRegisterStateBackendFactory(t *testing.T) {
	RegisterStateBackendFactory("teststore", func(dsn string) (StateBackend, error) {
		return &registeredTestBackend{dsn: dsn}, nil
	})

	backend, err := BuildStateBackendFromDSN("teststore://somewhere")
	if err != nil {
		t.Fatalf("registered scheme failed: %v", err)
	}
	custom, ok := backend.(*registeredTestBackend)
	if !ok {
		t.Fatalf("expected registered backend, got %T", backend)
	}
	if custom.dsn != "teststore://somewhere" {
		t.Fatalf("factory did not receive the DSN: %q", custom.dsn)
	}
	if _, _, err := backend.Load(context.Background()); err != nil {
		t.Fatalf("registered backend load failed: %v", err)
	}
}
