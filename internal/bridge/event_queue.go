package bridge

// eventQueue is the bounded per-connection outbox for broadcast frames.
// TryEnqueue never blocks: when a context falls behind, its events are
// dropped rather than stalling the mutating context. Delivery is
// at-most-once by contract, and a context that misses an event reconciles
// by re-listing on next activation.
type eventQueue struct {
	ch chan []byte
}

func newEventQueue(capacity int) *eventQueue {
	if capacity <= 0 {
		capacity = 64
	}
	return &eventQueue{ch: make(chan []byte, capacity)}
}

func (q *eventQueue) TryEnqueue(frame []byte) bool {
	if q == nil || len(frame) == 0 {
		return false
	}
	select {
	case q.ch <- frame:
		return true
	default:
		return false
	}
}

func (q *eventQueue) Frames() <-chan []byte {
	if q == nil {
		return nil
	}
	return q.ch
}

func (q *eventQueue) Depth() int {
	if q == nil {
		return 0
	}
	return len(q.ch)
}

func (q *eventQueue) Capacity() int {
	if q == nil {
		return 0
	}
	return cap(q.ch)
}
