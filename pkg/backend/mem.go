package backend

import (
	"sync"
	"time"

	"github.com/vtengine/core/pkg/diffrender"
)

// MemBackend is an in-memory Backend with no platform dependency,
// suitable for engine tests and for hosts embedding the renderer over a
// non-terminal transport. Raw mode is a no-op; input is fed by the
// caller via Feed and consumed by ReadInput; output is accumulated in
// Written. Safe for concurrent use: Wake and PostUserEvent-driven
// writers may run on a different goroutine than the poll loop.
type MemBackend struct {
	Caps diffrender.Caps
	Cols int
	Rows int

	mu      sync.Mutex
	pending []byte
	woken   bool
	cond    *sync.Cond
	now     int64

	Written []byte
}

// NewMemBackend constructs a ready-to-use MemBackend with the given
// size and capability snapshot.
func NewMemBackend(cols, rows int, caps diffrender.Caps) *MemBackend {
	m := &MemBackend{Caps: caps, Cols: cols, Rows: rows}
	m.cond = sync.NewCond(&m.mu)
	return m
}

func (m *MemBackend) EnterRaw() error { return nil }
func (m *MemBackend) LeaveRaw() error { return nil }

func (m *MemBackend) GetSize() (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Cols, m.Rows, nil
}

func (m *MemBackend) GetCaps() diffrender.Caps {
	return m.Caps
}

// Feed appends host input bytes for a subsequent ReadInput/WaitInputOrWake
// to observe, and wakes any blocked waiter.
func (m *MemBackend) Feed(p []byte) {
	m.mu.Lock()
	m.pending = append(m.pending, p...)
	m.mu.Unlock()
	m.cond.Broadcast()
}

func (m *MemBackend) ReadInput(buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := copy(buf, m.pending)
	m.pending = m.pending[n:]
	return n, nil
}

func (m *MemBackend) WriteOutput(p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Written = append(m.Written, p...)
	return nil
}

func (m *MemBackend) WaitInputOrWake(timeoutMs int) (WaitStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.pending) > 0 {
		return WaitReady, nil
	}
	if m.woken {
		m.woken = false
		return WaitWoken, nil
	}
	if timeoutMs == 0 {
		return WaitTimeout, nil
	}
	// A positive timeout arms a timer that broadcasts on the condition,
	// so the wait ends at the deadline even without Feed or Wake.
	if timeoutMs > 0 {
		timer := time.AfterFunc(time.Duration(timeoutMs)*time.Millisecond, func() {
			m.mu.Lock()
			m.cond.Broadcast()
			m.mu.Unlock()
		})
		defer timer.Stop()
	}
	m.cond.Wait()
	if len(m.pending) > 0 {
		return WaitReady, nil
	}
	if m.woken {
		m.woken = false
		return WaitWoken, nil
	}
	return WaitTimeout, nil
}

func (m *MemBackend) Wake() {
	m.mu.Lock()
	m.woken = true
	m.mu.Unlock()
	m.cond.Broadcast()
}

func (m *MemBackend) WaitOutputWritable(timeoutMs int) (WaitStatus, error) {
	return WaitReady, nil
}

func (m *MemBackend) NowMS() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.now == 0 {
		return MonotonicNowMS()
	}
	return m.now
}

// SetNowMS pins NowMS to a fixed value, for deterministic tests.
func (m *MemBackend) SetNowMS(ms int64) {
	m.mu.Lock()
	m.now = ms
	m.mu.Unlock()
}

// DrainOutput atomically takes and clears everything WriteOutput has
// accumulated so far, for callers that relay Written onward (a network
// transport forwarding each present's bytes) rather than inspecting it
// after the fact.
func (m *MemBackend) DrainOutput() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.Written
	m.Written = nil
	return out
}
