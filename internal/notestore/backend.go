package notestore

import (
	"context"
	"strconv"
	"sync"
)

// StateBackend is the durable key-value collaborator. It stores one opaque
// snapshot payload together with an opaque revision. Save is compare-and-swap:
// it fails with ErrRevisionConflict when ifRevision no longer matches the
// stored revision, which is what lets concurrent read-modify-write cycles
// from separate contexts both survive.
type StateBackend interface {
	// Load returns the stored payload and its revision. Absent state is not
	// an error: it yields nil data and an empty revision.
	Load(ctx context.Context) (data []byte, revision string, err error)
	// Save persists data when ifRevision matches the stored revision (empty
	// means "expect absent") and returns the new revision.
	Save(ctx context.Context, data []byte, ifRevision string) (string, error)
}

// StateWatcher is implemented by backends that can observe writes made by
// other processes. onChange delivery is best-effort.
type StateWatcher interface {
	WatchState(ctx context.Context, onChange func()) error
}

type stateBackendCloser interface {
	Close() error
}

// InMemoryStateBackend keeps state in process memory. Loads hand out clones
// so callers can never mutate the stored snapshot in place.
type InMemoryStateBackend struct {
	mu       sync.Mutex
	data     []byte
	revision uint64
}

func NewInMemoryStateBackend() *InMemoryStateBackend {
	return &InMemoryStateBackend{}
}

func (b *InMemoryStateBackend) Load(ctx context.Context) ([]byte, string, error) {
	if b == nil {
		return nil, "", nil
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.data == nil {
		return nil, "", nil
	}
	return append([]byte(nil), b.data...), b.revisionLocked(), nil
}

func (b *InMemoryStateBackend) Save(ctx context.Context, data []byte, ifRevision string) (string, error) {
	if b == nil || data == nil {
		return "", ErrValidation
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if ifRevision != b.revisionLocked() {
		return "", ErrRevisionConflict
	}
	b.data = append([]byte(nil), data...)
	b.revision++
	return b.revisionLocked(), nil
}

func (b *InMemoryStateBackend) revisionLocked() string {
	if b.revision == 0 {
		return ""
	}
	return "r" + strconv.FormatUint(b.revision, 10)
}
