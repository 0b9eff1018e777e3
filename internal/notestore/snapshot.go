package notestore

import (
	"encoding/json"
	"fmt"
)

// storeSnapshot is the unit of serialization against the durable backend:
// the complete mapping of page keys to their note collections. Collections
// are kept in insertion order and an empty collection is never persisted.
type storeSnapshot struct {
	Pages map[string][]Note `json:"pages"`
}

// CorruptionError reports stored data the engine could not decode. It is
// surfaced, never auto-healed: silently resetting the snapshot would be a
// silent data-loss policy.
type CorruptionError struct {
	Reason string
	Cause  error
}

func (e *CorruptionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("corrupt state: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("corrupt state: %s", e.Reason)
}

func (e *CorruptionError) Is(target error) bool {
	return target == ErrCorruptState
}

func (e *CorruptionError) Unwrap() error {
	return e.Cause
}

func newSnapshot() *storeSnapshot {
	return &storeSnapshot{Pages: map[string][]Note{}}
}

func encodeSnapshot(snap *storeSnapshot) ([]byte, error) {
	if snap == nil {
		snap = newSnapshot()
	}
	for key, notes := range snap.Pages {
		if len(notes) == 0 {
			delete(snap.Pages, key)
		}
	}
	return json.Marshal(snap)
}

// decodeSnapshot treats absent data as a lazily initialized empty snapshot
// and unreadable data as corruption.
func decodeSnapshot(data []byte) (*storeSnapshot, error) {
	if len(data) == 0 {
		return newSnapshot(), nil
	}
	var snap storeSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, &CorruptionError{Reason: "undecodable snapshot payload", Cause: err}
	}
	if snap.Pages == nil {
		snap.Pages = map[string][]Note{}
	}
	return &snap, nil
}
