package notestore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

type fileEnvelope struct {
	Revision string          `json:"revision"`
	Payload  json.RawMessage `json:"payload"`
}

// JSONFileStateBackend persists the snapshot as a single JSON file, replaced
// atomically via tmp+rename. The revision lives inside the envelope so that
// a second process sharing the file participates in the same
// compare-and-swap protocol. The in-process mutex serializes local writers;
// cross-process CAS is best-effort, bounded by the rename atomicity of the
// filesystem.
type JSONFileStateBackend struct {
	Path string

	mu sync.Mutex
}

func NewJSONFileStateBackend(path string) *JSONFileStateBackend {
	return &JSONFileStateBackend{Path: strings.TrimSpace(path)}
}

func (b *JSONFileStateBackend) Load(ctx context.Context) ([]byte, string, error) {
	if b == nil || strings.TrimSpace(b.Path) == "" {
		return nil, "", nil
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(b.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", nil
		}
		return nil, "", err
	}
	var envelope fileEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, "", &CorruptionError{Reason: "unreadable state file " + b.Path, Cause: err}
	}
	return []byte(envelope.Payload), envelope.Revision, nil
}

func (b *JSONFileStateBackend) Save(ctx context.Context, data []byte, ifRevision string) (string, error) {
	if b == nil || strings.TrimSpace(b.Path) == "" {
		return "", ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	current, err := b.currentRevision()
	if err != nil {
		return "", err
	}
	if ifRevision != current {
		return "", ErrRevisionConflict
	}

	revision := uuid.NewString()
	envelope, err := json.Marshal(fileEnvelope{Revision: revision, Payload: json.RawMessage(data)})
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(b.Path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", err
		}
	}
	tmp := b.Path + ".tmp"
	if err := os.WriteFile(tmp, envelope, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, b.Path); err != nil {
		return "", err
	}
	return revision, nil
}

func (b *JSONFileStateBackend) currentRevision() (string, error) {
	data, err := os.ReadFile(b.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	var envelope fileEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", &CorruptionError{Reason: "unreadable state file " + b.Path, Cause: err}
	}
	return envelope.Revision, nil
}

// WatchState reports writes to the state file until ctx is cancelled. Writes
// made through this backend fire too; subscribers reconcile by re-listing,
// so the extra notifications are harmless.
func (b *JSONFileStateBackend) WatchState(ctx context.Context, onChange func()) error {
	if b == nil || strings.TrimSpace(b.Path) == "" || onChange == nil {
		return ErrValidation
	}
	dir := filepath.Dir(b.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(b.Path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			onChange()
		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
		}
	}
}
