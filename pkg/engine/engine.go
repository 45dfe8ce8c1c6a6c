// Package engine wires the cell framebuffer, drawlist validator/
// executor, diff renderer, event queue/packer, input parser, platform
// backend, and metrics collector into the single object hosts embed
// (spec §6, §9). It is grounded on the teacher's session.Session
// lifecycle (pkg/session/pty.go: acquire a platform resource, run
// until told to stop, always release on every exit path) generalized
// from "one PTY session" to "one present/poll cycle."
package engine

import (
	"sync"

	"github.com/vtengine/core/pkg/backend"
	"github.com/vtengine/core/pkg/cellbuf"
	"github.com/vtengine/core/pkg/config"
	"github.com/vtengine/core/pkg/diffrender"
	"github.com/vtengine/core/pkg/drawlist"
	"github.com/vtengine/core/pkg/eventqueue"
	"github.com/vtengine/core/pkg/inputparser"
	"github.com/vtengine/core/pkg/metrics"
	"github.com/vtengine/core/pkg/vterr"
)

const engineOp = "engine"

// Engine is the top-level object a host creates once, drives through
// SubmitDrawlist/Present/PollEvents, and Destroys on shutdown. Every
// method except PostUserEvent must be called from the single thread
// that owns the Engine (spec §9 "Shared-resource policy").
type Engine struct {
	cfg  *config.Config
	be   backend.Backend
	caps diffrender.Caps

	prev, next *cellbuf.Framebuffer
	clip       *cellbuf.ClipStack
	store      *drawlist.Store
	cursor     drawlist.CursorIntent

	queue  *eventqueue.Queue
	parser *inputparser.Parser

	metrics metrics.Collector
	state   diffrender.TermState
	scratch *diffrender.RowHashScratch

	// mu guards only the fields a cross-thread PostUserEvent call may
	// touch: the queue and its arena (spec §9).
	mu sync.Mutex

	destroyed bool
}

// Create validates cfg, probes the backend for size/capabilities, and
// allocates every owned resource. On any failure nothing is left
// allocated (spec §6 "no partial effects").
func Create(cfg *config.Config, be backend.Backend) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := be.EnterRaw(); err != nil {
		return nil, vterr.Wrap(engineOp+".Create", vterr.KindPlatform, err, "enter raw mode")
	}

	cols, rows, err := be.GetSize()
	if err != nil {
		be.LeaveRaw()
		return nil, vterr.Wrap(engineOp+".Create", vterr.KindPlatform, err, "get terminal size")
	}
	if cols <= 0 || rows <= 0 {
		be.LeaveRaw()
		return nil, vterr.New(engineOp+".Create", vterr.KindInvalidArgument, "backend reported non-positive size %dx%d", cols, rows)
	}

	prev, err := cellbuf.New(cols, rows)
	if err != nil {
		be.LeaveRaw()
		return nil, err
	}
	next, err := cellbuf.New(cols, rows)
	if err != nil {
		be.LeaveRaw()
		return nil, err
	}
	prev.Clear(diffrender.BaselineStyle)
	next.Clear(diffrender.BaselineStyle)

	e := &Engine{
		cfg:     cfg,
		be:      be,
		caps:    cfg.ApplyOverride(be.GetCaps()),
		prev:    prev,
		next:    next,
		clip:    cellbuf.NewClipStack(next.Bounds()),
		store:   drawlist.NewStore(),
		queue:   eventqueue.New(cfg.QueueLimits.Capacity, cfg.QueueLimits.ArenaInitial, cfg.QueueLimits.ArenaMax),
		scratch: diffrender.NewRowHashScratch(rows),
		state:   diffrender.TermState{Style: diffrender.BaselineStyle, ScreenValid: false},
	}
	e.parser = inputparser.New(e.queue)
	return e, nil
}

// Destroy releases the backend's raw mode. Safe to call more than
// once.
func (e *Engine) Destroy() error {
	if e.destroyed {
		return nil
	}
	e.destroyed = true
	return e.be.LeaveRaw()
}

// SubmitDrawlist validates and executes one drawlist against the
// engine's next framebuffer. On any error next is left unchanged from
// the point of view of the next present (spec §4.9 "A submit_drawlist
// call that fails at validation or execution must leave both
// framebuffers unchanged").
func (e *Engine) SubmitDrawlist(buf []byte) error {
	view, err := drawlist.Validate(buf, e.cfg.DrawlistLimits)
	if err != nil {
		return err
	}

	scratchFB, err := cellbuf.New(e.next.Cols(), e.next.Rows())
	if err != nil {
		return err
	}
	if err := cellbuf.CloneInto(scratchFB, e.next); err != nil {
		return err
	}
	scratchClip := cellbuf.NewClipStack(scratchFB.Bounds())
	scratchCursor := e.cursor

	policy := e.cfg.TextPolicy(diffrender.BaselineStyle)
	if err := drawlist.Execute(view, scratchFB, scratchClip, e.store, policy, &scratchCursor, e.cfg.DrawlistLimits); err != nil {
		return err
	}

	if err := cellbuf.CloneInto(e.next, scratchFB); err != nil {
		return err
	}
	e.clip = scratchClip
	e.cursor = scratchCursor
	return nil
}

// Present runs the diff renderer against prev/next, writes the result
// through the backend, swaps prev<-next, and updates metrics. A failing
// present performs zero backend writes and does not swap framebuffers
// (spec §4.9).
func (e *Engine) Present() error {
	if e.cfg.TargetFPS > 0 {
		timeoutMs := 1000 / e.cfg.TargetFPS
		st, err := e.be.WaitOutputWritable(timeoutMs)
		if err != nil {
			return err
		}
		if st == backend.WaitTimeout {
			e.metrics.RecordPresentDropped()
			return vterr.New(engineOp+".Present", vterr.KindLimitExceeded, "backend not writable within one frame interval")
		}
	}

	out := make([]byte, e.cfg.DiffRenderLimits.OutMaxBytesPerFrame)
	desired := &diffrender.CursorState{
		X: e.cursor.X, Y: e.cursor.Y,
		Shape:   diffrender.CursorShape(e.cursor.Shape),
		Visible: e.cursor.Visible,
		Blink:   e.cursor.Blink,
	}

	scratch := e.scratch
	if !e.cfg.Features.RowHashReuse {
		scratch = nil
	}

	n, newState, stats, err := diffrender.Render(e.prev, e.next, e.caps, e.state, desired, e.cfg.DiffRenderLimits, scratch, e.cfg.Features.ScrollRegionOptimization, out)
	if err != nil {
		e.metrics.RecordPresentDropped()
		return err
	}

	if err := e.be.WriteOutput(out[:n]); err != nil {
		e.metrics.RecordPresentDropped()
		return err
	}

	if err := cellbuf.CloneInto(e.prev, e.next); err != nil {
		return err
	}
	e.state = newState
	e.metrics.RecordPresent(n, stats.DamageRects, stats.RowsRepainted, stats.DamageFullFrame, stats.ScrollOptimized, stats.CollisionGuardHits, e.be.NowMS())
	return nil
}

// PollEvents reads available host input, parses it into the event
// queue, and packs as many queued events as fit into outBuf.
// Truncation is success with the batch's truncated flag set
// (spec §6).
func (e *Engine) PollEvents(timeoutMs int, outBuf []byte) (int, error) {
	st, err := e.be.WaitInputOrWake(timeoutMs)
	if err != nil {
		return 0, err
	}
	if st == backend.WaitReady {
		buf := make([]byte, 4096)
		n, err := e.be.ReadInput(buf)
		if err != nil {
			return 0, err
		}
		if n > 0 {
			e.mu.Lock()
			e.parser.Parse(buf[:n], uint32(e.be.NowMS()))
			e.mu.Unlock()
		}
	}

	e.mu.Lock()
	n, err := eventqueue.Pack(e.queue, outBuf)
	if err == nil && e.queue.Len() == 0 {
		e.queue.Reset()
	}
	queued, dropped := e.queue.Len(), e.queue.DropCount()
	e.mu.Unlock()
	if err != nil {
		return 0, err
	}
	e.metrics.RecordEventQueueState(queued, dropped)
	return n, nil
}

// PostUserEvent enqueues a USER event and wakes any pending
// WaitInputOrWake. This is the engine's one thread-safe operation
// (spec §9).
func (e *Engine) PostUserEvent(tag uint32, payload []byte) error {
	e.mu.Lock()
	e.queue.Push(eventqueue.Event{Type: eventqueue.TypeUser, TimeMs: uint32(e.be.NowMS()), Tag: tag, Bytes: payload})
	e.mu.Unlock()
	e.be.Wake()
	return nil
}

// GetMetrics returns a prefix-copy snapshot truncated to structSize
// logical fields (spec §6 get_metrics).
func (e *Engine) GetMetrics(structSize uint32) (metrics.Snapshot, error) {
	return metrics.Get(e.metrics.Current(), structSize)
}

// SetConfig replaces the engine's runtime-mutable configuration
// (scheduling, feature toggles, capability overrides), re-deriving
// effective caps from the backend's original report. Limits and ABI
// fields are creation-time only and are not affected by this call.
func (e *Engine) SetConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.cfg.Features = cfg.Features
	e.cfg.CapsOverride = cfg.CapsOverride
	e.cfg.TargetFPS = cfg.TargetFPS
	e.caps = e.cfg.ApplyOverride(e.be.GetCaps())
	return nil
}

// GetCaps returns the engine's effective, override-applied capability
// snapshot.
func (e *Engine) GetCaps() diffrender.Caps {
	return e.caps
}

// Resize re-initializes both framebuffers to blanks and clears the
// screen-validity bit, forcing a full bootstrap redraw on the next
// Present (spec §3 "Framebuffer").
func (e *Engine) Resize(cols, rows int) error {
	if err := e.prev.Resize(cols, rows); err != nil {
		return err
	}
	if err := e.next.Resize(cols, rows); err != nil {
		return err
	}
	e.clip = cellbuf.NewClipStack(e.next.Bounds())
	e.scratch = diffrender.NewRowHashScratch(rows)
	e.state.ScreenValid = false
	return nil
}
