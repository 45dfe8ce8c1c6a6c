package eventqueue

import "github.com/vtengine/core/internal/arena"

// Queue is a fixed-capacity FIFO of Events backed by a companion byte
// arena for PASTE/USER variable-length payloads. Push that would
// overflow the event slots drops the oldest queued event and increments
// DropCount; a payload that does not fit in the arena is dropped from
// its event (see Push). Arena bytes of popped or dropped events are
// reclaimed only on the next Reset. This is
// best-effort: it clamps, it never blocks and never grows past its
// configured capacity.
type Queue struct {
	events   []Event
	head     int
	len      int
	cap      int
	arena    *arena.Arena
	dropped  uint64
}

// New creates a queue holding up to capacity events, with an arena
// sized at arenaInitial bytes growable up to arenaMax for PASTE/USER
// payloads.
func New(capacity, arenaInitial, arenaMax int) *Queue {
	return &Queue{
		events: make([]Event, capacity),
		cap:    capacity,
		arena:  arena.New(arenaInitial, arenaMax),
	}
}

// Len reports the number of queued events.
func (q *Queue) Len() int { return q.len }

// Cap reports the queue's fixed event capacity.
func (q *Queue) Cap() int { return q.cap }

// DropCount reports how many events have been dropped for overflow
// since the queue was created; Reset does not clear it.
func (q *Queue) DropCount() uint64 { return q.dropped }

// Push enqueues e. If e carries a variable-length payload (PASTE/USER),
// it is copied into the queue's arena first; if that copy fails (arena
// exhausted), the event is replaced with an equivalent zero-length
// payload rather than silently growing unbounded, and the drop counter
// is NOT incremented for this truncation (the event itself is still
// delivered — only its ride-along bytes are lost). If the event slot
// ring is full, the oldest queued event is dropped to make room and
// DropCount increments.
func (q *Queue) Push(e Event) {
	if len(e.Bytes) > 0 {
		cp, ok := q.arena.AllocCopy(e.Bytes)
		if ok {
			e.Bytes = cp
		} else {
			e.Bytes = nil
		}
	}
	if q.len == q.cap {
		q.head = (q.head + 1) % q.cap
		q.len--
		q.dropped++
	}
	idx := (q.head + q.len) % q.cap
	q.events[idx] = e
	q.len++
}

// Pop removes and returns the oldest queued event in FIFO order.
func (q *Queue) Pop() (Event, bool) {
	if q.len == 0 {
		return Event{}, false
	}
	e := q.events[q.head]
	q.head = (q.head + 1) % q.cap
	q.len--
	return e, true
}

// Peek returns the oldest queued event without removing it.
func (q *Queue) Peek() (Event, bool) {
	if q.len == 0 {
		return Event{}, false
	}
	return q.events[q.head], true
}

// Reset drops all queued events and rewinds the arena. DropCount is
// preserved across Reset; it is a lifetime counter surfaced in
// metrics, not a per-poll counter.
func (q *Queue) Reset() {
	q.head, q.len = 0, 0
	q.arena.Reset()
}
