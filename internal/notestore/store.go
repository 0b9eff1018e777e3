package notestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrValidation       = errors.New("validation error")
	ErrRevisionConflict = errors.New("revision conflict")
	ErrCorruptState     = errors.New("corrupt state")
	ErrNotFound         = errors.New("not found")
	ErrNotImplemented   = errors.New("not implemented")
)

// ValidationError reports bad caller input. It is recoverable: the
// presentation layer surfaces it for user correction.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Note is the atomic persisted unit. Notes are immutable except for
// deletion; there is no edit operation.
type Note struct {
	ID        string `json:"id"`
	PageKey   string `json:"pageKey"`
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt"`
}

// Subscription is a registered changed-event listener. Callers must Cancel
// it on teardown so callbacks never fire against a destroyed view.
type Subscription struct {
	store *Store
	id    uint64
}

func (s *Subscription) Cancel() {
	if s == nil || s.store == nil {
		return
	}
	s.store.unsubscribe(s.id)
}

type listener struct {
	pageKey string // empty means every page
	fn      func(pageKey string)
}

type StoreOptions struct {
	Backend StateBackend
	// MaxMutationAttempts bounds the read-modify-write retry loop when the
	// backend reports a revision conflict.
	MaxMutationAttempts int
	// WatchBackend subscribes to backend change notifications (when the
	// backend supports them) so writes by another process surface as
	// changed events in this one.
	WatchBackend bool
}

// Store is the Note Store Engine. It owns no authoritative state: every
// operation reads the latest persisted snapshot from the backend, and every
// mutation is a full read-modify-write cycle against it.
type Store struct {
	backend     StateBackend
	maxAttempts int

	// writeMu serializes mutations issued through this handle, preserving
	// the same-context ordering guarantee.
	writeMu sync.Mutex

	subMu     sync.Mutex
	listeners map[uint64]listener
	subSeq    uint64

	watchCancel context.CancelFunc
	closeOnce   sync.Once
	wg          sync.WaitGroup
}

func NewStore(backend StateBackend) *Store {
	return NewStoreWithOptions(StoreOptions{Backend: backend})
}

func NewStoreWithOptions(opts StoreOptions) *Store {
	maxAttempts := opts.MaxMutationAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	backend := opts.Backend
	if backend == nil {
		backend = NewInMemoryStateBackend()
	}
	s := &Store{
		backend:     backend,
		maxAttempts: maxAttempts,
		listeners:   map[uint64]listener{},
	}
	if opts.WatchBackend {
		if watcher, ok := backend.(StateWatcher); ok {
			ctx, cancel := context.WithCancel(context.Background())
			s.watchCancel = cancel
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				// The watcher cannot tell which page changed, so every
				// listener is notified with its own key and re-lists.
				_ = watcher.WatchState(ctx, s.notifyAll)
			}()
		}
	}
	return s
}

func (s *Store) Close() {
	s.closeOnce.Do(func() {
		if s.watchCancel != nil {
			s.watchCancel()
		}
		s.wg.Wait()
		if closer, ok := s.backend.(stateBackendCloser); ok && closer != nil {
			_ = closer.Close()
		}
	})
}

// Add validates text, generates a fresh ID, appends the note to the pageKey
// collection and persists the updated snapshot. The changed event fires only
// after the write durably committed.
func (s *Store) Add(ctx context.Context, pageKey, text string) (Note, error) {
	if strings.TrimSpace(pageKey) == "" {
		return Note{}, &ValidationError{Field: "pageKey", Reason: "must not be empty"}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Note{}, &ValidationError{Field: "text", Reason: "must not be empty"}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var created Note
	err := s.mutate(ctx, func(snap *storeSnapshot) bool {
		created = Note{
			ID:        uuid.NewString(),
			PageKey:   pageKey,
			Text:      text,
			CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		}
		snap.Pages[pageKey] = append(snap.Pages[pageKey], created)
		return true
	})
	if err != nil {
		return Note{}, err
	}
	s.notify(pageKey)
	return created, nil
}

// Remove deletes the note with the given id from the pageKey collection.
// A missing id is not an error: two contexts may race to delete the same
// note, so deletion is idempotent and the loser sees false. Removing the
// last note of a page prunes the collection key from the snapshot.
func (s *Store) Remove(ctx context.Context, pageKey, id string) (bool, error) {
	if strings.TrimSpace(pageKey) == "" {
		return false, &ValidationError{Field: "pageKey", Reason: "must not be empty"}
	}
	if strings.TrimSpace(id) == "" {
		return false, &ValidationError{Field: "id", Reason: "must not be empty"}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	removed := false
	err := s.mutate(ctx, func(snap *storeSnapshot) bool {
		removed = false
		notes, ok := snap.Pages[pageKey]
		if !ok {
			return false
		}
		kept := notes[:0:0]
		for _, note := range notes {
			if note.ID == id {
				removed = true
				continue
			}
			kept = append(kept, note)
		}
		if !removed {
			return false
		}
		if len(kept) == 0 {
			delete(snap.Pages, pageKey)
		} else {
			snap.Pages[pageKey] = kept
		}
		return true
	})
	if err != nil {
		return false, err
	}
	if removed {
		s.notify(pageKey)
	}
	return removed, nil
}

// List returns the notes for pageKey in insertion order. An unknown pageKey
// yields an empty slice, never an error.
func (s *Store) List(ctx context.Context, pageKey string) ([]Note, error) {
	snap, _, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	notes := snap.Pages[pageKey]
	return append([]Note(nil), notes...), nil
}

// Pages returns every page key currently holding notes, sorted.
func (s *Store) Pages(ctx context.Context) ([]string, error) {
	snap, _, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(snap.Pages))
	for key := range snap.Pages {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Subscribe registers fn for changed events on pageKey in this process.
func (s *Store) Subscribe(pageKey string, fn func(pageKey string)) *Subscription {
	if fn == nil {
		return &Subscription{}
	}
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subSeq++
	id := s.subSeq
	s.listeners[id] = listener{pageKey: pageKey, fn: fn}
	return &Subscription{store: s, id: id}
}

// SubscribeAll registers fn for changed events on every page. Fan-out
// consumers such as the bridge hub use this.
func (s *Store) SubscribeAll(fn func(pageKey string)) *Subscription {
	return s.Subscribe("", fn)
}

func (s *Store) unsubscribe(id uint64) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	delete(s.listeners, id)
}

// mutate runs one read-modify-write cycle, retrying on revision conflicts.
// apply reports whether the snapshot actually changed; an unchanged snapshot
// is not persisted.
func (s *Store) mutate(ctx context.Context, apply func(*storeSnapshot) bool) error {
	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		snap, revision, err := s.loadSnapshot(ctx)
		if err != nil {
			return err
		}
		if !apply(snap) {
			return nil
		}
		data, err := encodeSnapshot(snap)
		if err != nil {
			return err
		}
		_, err = s.backend.Save(ctx, data, revision)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrRevisionConflict) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("mutation retries exhausted: %w", lastErr)
}

func (s *Store) loadSnapshot(ctx context.Context) (*storeSnapshot, string, error) {
	data, revision, err := s.backend.Load(ctx)
	if err != nil {
		return nil, "", err
	}
	snap, err := decodeSnapshot(data)
	if err != nil {
		return nil, "", err
	}
	return snap, revision, nil
}

func (s *Store) notify(pageKey string) {
	for _, l := range s.snapshotListeners() {
		if l.pageKey == "" || l.pageKey == pageKey {
			l.fn(pageKey)
		}
	}
}

func (s *Store) notifyAll() {
	for _, l := range s.snapshotListeners() {
		key := l.pageKey
		l.fn(key)
	}
}

func (s *Store) snapshotListeners() []listener {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	out := make([]listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		out = append(out, l)
	}
	return out
}
