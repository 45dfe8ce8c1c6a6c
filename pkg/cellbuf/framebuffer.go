package cellbuf

import "github.com/vtengine/core/pkg/vterr"

// Rect is a half-open cell-space rectangle: [Min, Max).
type Rect struct {
	MinX, MinY, MaxX, MaxY int
}

// Empty reports whether the rectangle has no area.
func (r Rect) Empty() bool {
	return r.MaxX <= r.MinX || r.MaxY <= r.MinY
}

// Intersect returns the intersection of r and o.
func (r Rect) Intersect(o Rect) Rect {
	out := Rect{
		MinX: max(r.MinX, o.MinX),
		MinY: max(r.MinY, o.MinY),
		MaxX: min(r.MaxX, o.MaxX),
		MaxY: min(r.MaxY, o.MaxY),
	}
	if out.Empty() {
		return Rect{}
	}
	return out
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// HyperlinkEntry is one interned (uri, id) pair, referenced from Style
// by a 1-based HyperlinkRef.
type HyperlinkEntry struct {
	URI string
	ID  string
}

// hyperlinkTable is the framebuffer's optional auxiliary interning
// table for OSC-8-style hyperlink references (v3 style extension).
type hyperlinkTable struct {
	entries []HyperlinkEntry
}

func (t *hyperlinkTable) intern(e HyperlinkEntry) uint32 {
	t.entries = append(t.entries, e)
	return uint32(len(t.entries))
}

func (t *hyperlinkTable) lookup(ref uint32) (HyperlinkEntry, bool) {
	if ref == 0 || int(ref) > len(t.entries) {
		return HyperlinkEntry{}, false
	}
	return t.entries[ref-1], true
}

// Framebuffer is a cols x rows grid of Cells, owned exclusively by the
// engine. Two instances exist in practice: prev (last presented) and
// next (being built); this type itself is dimension-agile and knows
// nothing about which role it plays.
type Framebuffer struct {
	cols, rows  int
	cells       []Cell
	hyperlinks  hyperlinkTable
	screenValid bool
}

// New allocates a blank cols x rows framebuffer.
func New(cols, rows int) (*Framebuffer, error) {
	if cols <= 0 || rows <= 0 {
		return nil, vterr.New("cellbuf.New", vterr.KindInvalidArgument,
			"cols and rows must be positive, got %dx%d", cols, rows)
	}
	fb := &Framebuffer{}
	if err := fb.Resize(cols, rows); err != nil {
		return nil, err
	}
	return fb, nil
}

// Cols reports the framebuffer's column count.
func (f *Framebuffer) Cols() int { return f.cols }

// Rows reports the framebuffer's row count.
func (f *Framebuffer) Rows() int { return f.rows }

// ScreenValid reports whether the terminal is known to currently match
// this framebuffer's last presented contents (spec §4.8).
func (f *Framebuffer) ScreenValid() bool { return f.screenValid }

// SetScreenValid sets the screen-validity bit, which Resize clears
// automatically. The diff renderer does not use this bit; it tracks
// screen validity in its own TermState.
func (f *Framebuffer) SetScreenValid(v bool) { f.screenValid = v }

// Resize reallocates the grid to cols x rows, re-initializing every cell
// to a blank DefaultStyle cell and clearing the screen-validity bit. It
// is no-partial-effects: the new grid is built completely before it
// replaces the framebuffer's state, so a failure (invalid dimensions)
// leaves the framebuffer exactly as it was.
func (f *Framebuffer) Resize(cols, rows int) error {
	if cols <= 0 || rows <= 0 {
		return vterr.New("cellbuf.Resize", vterr.KindInvalidArgument,
			"cols and rows must be positive, got %dx%d", cols, rows)
	}
	next := make([]Cell, cols*rows)
	for i := range next {
		next[i].Blank(DefaultStyle)
	}
	f.cols = cols
	f.rows = rows
	f.cells = next
	f.hyperlinks = hyperlinkTable{}
	f.screenValid = false
	return nil
}

// Release drops the backing storage. The Framebuffer must not be used
// again afterward except through a fresh Resize.
func (f *Framebuffer) Release() {
	f.cells = nil
	f.cols, f.rows = 0, 0
	f.hyperlinks = hyperlinkTable{}
}

func (f *Framebuffer) index(x, y int) (int, bool) {
	if x < 0 || y < 0 || x >= f.cols || y >= f.rows {
		return 0, false
	}
	return y*f.cols + x, true
}

// CellAt returns the cell at (x, y). ok is false if out of bounds.
func (f *Framebuffer) CellAt(x, y int) (Cell, bool) {
	i, ok := f.index(x, y)
	if !ok {
		return Cell{}, false
	}
	return f.cells[i], true
}

// cellPtr returns a mutable pointer to the cell at (x, y), or nil if out
// of bounds.
func (f *Framebuffer) cellPtr(x, y int) *Cell {
	i, ok := f.index(x, y)
	if !ok {
		return nil
	}
	return &f.cells[i]
}

// Bounds returns the framebuffer's full-grid rectangle.
func (f *Framebuffer) Bounds() Rect {
	return Rect{MaxX: f.cols, MaxY: f.rows}
}

// Clear fills every cell with a width-1 space in the given style.
func (f *Framebuffer) Clear(style Style) {
	for i := range f.cells {
		f.cells[i].Blank(style)
	}
}

// InternHyperlink adds a (uri, id) pair to the framebuffer's hyperlink
// table and returns its 1-based reference.
func (f *Framebuffer) InternHyperlink(e HyperlinkEntry) uint32 {
	return f.hyperlinks.intern(e)
}

// LookupHyperlink resolves a hyperlink reference.
func (f *Framebuffer) LookupHyperlink(ref uint32) (HyperlinkEntry, bool) {
	return f.hyperlinks.lookup(ref)
}

// CloneInto deep-copies src's cell contents into dst, resizing dst first
// if dimensions differ. Used by the present orchestrator's prev<-next
// swap when the two buffers are kept as distinct backing arrays rather
// than pointer-swapped (see pkg/engine).
func CloneInto(dst, src *Framebuffer) error {
	if dst.cols != src.cols || dst.rows != src.rows {
		if err := dst.Resize(src.cols, src.rows); err != nil {
			return err
		}
	}
	copy(dst.cells, src.cells)
	dst.hyperlinks = src.hyperlinks
	dst.screenValid = src.screenValid
	return nil
}
