// Package diffrender implements the engine's deepest subsystem: given a
// previously-presented framebuffer, a newly-built one, a capability
// snapshot, and a tracked terminal state, it produces a deterministic
// VT/ANSI byte stream that reproduces exactly the new framebuffer and
// the caller's desired cursor state when applied to a minimal VT model.
//
// It is grounded on two teacher precedents: termsocket.Manager's
// diff-against-last-known-state, notify-only-what-changed shape
// (GetOrCreateBuffer/SubscribeToBufferChanges/monitorSession), and
// terminal.TerminalBuffer.handleSGR for the attribute/color bit
// encoding this component now emits instead of parses.
package diffrender

import "github.com/vtengine/core/pkg/cellbuf"

// ColorMode selects how RGB style colors are downgraded for emission.
type ColorMode int

const (
	ColorRGB ColorMode = iota
	Color256
	Color16
)

// Caps is the effective terminal capability snapshot the renderer is
// told to target. It never probes a real terminal itself (spec §9 Open
// Question: capability probing is a platform-backend concern).
type Caps struct {
	ColorMode            ColorMode
	SgrAttrsSupported    cellbuf.AttrMask
	SupportsScrollRegion bool
	SupportsSyncUpdate   bool
	SupportsHyperlinks   bool
}

// CursorShape mirrors drawlist.CursorShape without importing it, so
// diffrender has no dependency on the drawlist package.
type CursorShape uint8

const (
	CursorBlock     CursorShape = 0
	CursorUnderline CursorShape = 1
	CursorBar       CursorShape = 2
)

// CursorState is the cursor half of a tracked/desired terminal state.
type CursorState struct {
	X, Y    int
	Shape   CursorShape
	Visible bool
	Blink   bool
}

// TermState is the terminal model the renderer tracks and mutates as it
// emits bytes: spec §3 "Terminal model (tracked)".
type TermState struct {
	Cursor      CursorState
	Style       cellbuf.Style
	ScreenValid bool
}

// BaselineStyle is the pinned style the renderer assumes after an
// absolute SGR reset (screen-invalid bootstrap, spec §4.8). It is
// defined equal to cellbuf.DefaultStyle so that a freshly blanked
// framebuffer and a freshly reset terminal agree on what "default"
// means without needing a separate "unset color" sentinel in Style.
var BaselineStyle = cellbuf.DefaultStyle

// Limits bounds the renderer's output and scratch usage.
type Limits struct {
	OutMaxBytesPerFrame int
	MaxDamageRects      int
}

// Stats carries the renderer's best-effort statistics for one frame.
type Stats struct {
	BytesWritten       int
	DamageRects        int
	RowsRepainted      int
	DamageFullFrame    bool
	CollisionGuardHits int
	ScrollOptimized    bool
	SparsePath         bool
}

// RowHashScratch is caller-owned scratch for per-row fingerprints,
// reused frame to frame so the renderer never allocates it internally.
type RowHashScratch struct {
	hashes []uint64
	valid  bool
}

// NewRowHashScratch allocates scratch for a framebuffer with the given
// row count.
func NewRowHashScratch(rows int) *RowHashScratch {
	return &RowHashScratch{hashes: make([]uint64, rows)}
}

// Invalidate marks the scratch's hashes as not trustworthy for reuse on
// the next frame (e.g. after a resize).
func (s *RowHashScratch) Invalidate() {
	s.valid = false
}

func (s *RowHashScratch) ensureLen(rows int) {
	if cap(s.hashes) < rows {
		s.hashes = make([]uint64, rows)
		s.valid = false
		return
	}
	s.hashes = s.hashes[:rows]
}
