// Package backend defines the platform collaborator the engine core
// consumes but never implements itself (spec §1, §6): raw-mode entry,
// terminal size/capability probing, blocking reads of host input bytes,
// atomic writes of rendered output, and the two bounded wait primitives
// the present orchestrator and event poller suspend on.
//
// The engine never touches global process state directly (spec §9): a
// Backend value is the explicit, single-active-instance object that
// owns whatever OS resources (terminal fds, signal handlers, wake
// pipes) a real implementation needs.
package backend

import (
	"time"

	"github.com/vtengine/core/pkg/diffrender"
)

// WaitStatus is the outcome of a bounded wait primitive.
type WaitStatus int

const (
	WaitReady WaitStatus = iota
	WaitWoken
	WaitTimeout
)

// Backend is the platform collaborator interface. Implementations are
// not required to be safe for concurrent use except where documented
// (Wake must be callable from any goroutine, matching the engine's own
// single cross-thread-safe operation, PostUserEvent).
type Backend interface {
	// EnterRaw acquires terminal raw mode and any alternate-screen
	// state. Called once at engine creation.
	EnterRaw() error
	// LeaveRaw releases what EnterRaw acquired. Called on every
	// destruction path, including failed creation, so it must be safe
	// to call even if EnterRaw partially failed.
	LeaveRaw() error

	// GetSize reports the current terminal size in cells.
	GetSize() (cols, rows int, err error)
	// GetCaps reports the backend's best-effort capability snapshot,
	// consumed as-is by the engine (spec §9 Open Question: capability
	// probing itself is out of the core's scope).
	GetCaps() diffrender.Caps

	// ReadInput reads whatever host input bytes are currently
	// available into buf, returning the number of bytes read. It does
	// not block; callers use WaitInputOrWake first.
	ReadInput(buf []byte) (int, error)
	// WriteOutput writes all of p or reports failure; the engine
	// treats it as atomic-on-success (spec §6).
	WriteOutput(p []byte) error

	// WaitInputOrWake blocks up to timeoutMs (0 = non-blocking,
	// negative is the caller's error to avoid) for input readiness or
	// a Wake call, returning which occurred first.
	WaitInputOrWake(timeoutMs int) (WaitStatus, error)
	// Wake is the engine's only cross-thread-safe backend call,
	// fire-and-forget, used to unblock a pending WaitInputOrWake after
	// PostUserEvent enqueues a user event.
	Wake()
	// WaitOutputWritable blocks up to timeoutMs for the output
	// descriptor to accept a write, used by the present orchestrator's
	// optional pacing wait (spec §4.9 step 1).
	WaitOutputWritable(timeoutMs int) (WaitStatus, error)

	// NowMS is monotonic and strictly non-decreasing across calls
	// within one process (spec §6).
	NowMS() int64
}

// MonotonicNowMS is a ready-made NowMS implementation backed by
// time.Now's monotonic reading, usable by any Backend implementation
// that has no cheaper monotonic clock of its own.
func MonotonicNowMS() int64 {
	return monotonicStart.Add(time.Since(monotonicEpoch)).UnixMilli()
}

var monotonicEpoch = time.Now()
var monotonicStart = time.Unix(0, 0)
