package diffrender

import (
	"strconv"

	"github.com/vtengine/core/internal/bytewriter"
	"github.com/vtengine/core/pkg/cellbuf"
	"github.com/vtengine/core/pkg/vterr"
)

const renderOp = "diffrender.Render"

// Render produces a deterministic VT/ANSI byte stream that, applied to
// a minimal VT terminal model starting in `initial`, yields exactly
// `next` and `final` (spec §8 property 2, VT fidelity). On any error no
// bytes are written into out and prev/initial are left as the caller's
// problem to retry unchanged (spec §4.8 "Output cap").
//
// scratch may be nil, in which case row-hash reuse is skipped and every
// row is compared cell-by-cell every frame.
func Render(prev, next *cellbuf.Framebuffer, caps Caps, initial TermState, desired *CursorState, limits Limits, scratch *RowHashScratch, enableScrollOpt bool, out []byte) (int, TermState, Stats, error) {
	cols, rows := next.Cols(), next.Rows()
	if prev.Cols() != cols || prev.Rows() != rows {
		return 0, initial, Stats{}, vterr.New(renderOp, vterr.KindInvalidArgument,
			"prev (%dx%d) and next (%dx%d) dimensions differ", prev.Cols(), prev.Rows(), cols, rows)
	}

	// Build into a same-capacity local scratch buffer so a mid-frame
	// limit failure never touches the caller's out slice (no partial
	// effects): out is only copied into at the very end, on success.
	local := make([]byte, len(out))
	b := bytewriter.New(local)

	state := initial
	var stats Stats

	if caps.SupportsSyncUpdate {
		if !b.AppendString("\x1b[?2026h") {
			return 0, initial, Stats{}, limitErr()
		}
	}

	effectivePrev := prev
	wasValid := initial.ScreenValid
	if !wasValid {
		if !b.AppendString("\x1b[r") { // scroll-region reset
			return 0, initial, Stats{}, limitErr()
		}
		if !b.AppendString("\x1b[0m") { // absolute SGR reset to the baseline style
			return 0, initial, Stats{}, limitErr()
		}
		if !b.AppendString("\x1b[2J") { // erase in display, all
			return 0, initial, Stats{}, limitErr()
		}
		state.Cursor.X, state.Cursor.Y = 0, 0
		state.Style = effectiveStyle(BaselineStyle, caps)

		blank, err := cellbuf.New(cols, rows)
		if err != nil {
			return 0, initial, Stats{}, vterr.Wrap(renderOp, vterr.KindInvalidArgument, err, "blank comparison framebuffer")
		}
		blank.Clear(BaselineStyle)
		effectivePrev = blank
	}

	var rects []cellbuf.Rect

	if caps.SupportsScrollRegion && enableScrollOpt && wasValid {
		if k, up, ok := detectFullWidthShift(prev, next, cols, rows); ok {
			if !emitScrollShift(b, k, up, rows) {
				return 0, initial, Stats{}, limitErr()
			}
			state.Cursor.X, state.Cursor.Y = 0, 0
			stats.ScrollOptimized = true
			rects = exposedRowRects(k, up, cols, rows)
		}
	}

	if rects == nil {
		dirty, dirtyCount := dirtyRows(effectivePrev, next, cols, rows, scratch, &stats)
		if dirtyCount > 0 {
			if useSparsePath(dirtyCount, rows, cols) {
				stats.SparsePath = true
				coalesced, overflowed := coalesceDamage(effectivePrev, next, dirty, cols, rows, limits.MaxDamageRects)
				if overflowed {
					stats.DamageFullFrame = true
					rects = []cellbuf.Rect{{MinX: 0, MinY: 0, MaxX: cols, MaxY: rows}}
				} else {
					rects = coalesced
				}
			} else {
				perRow := perRowRects(effectivePrev, next, dirty, cols, rows)
				if len(perRow) > limits.MaxDamageRects {
					stats.DamageFullFrame = true
					rects = []cellbuf.Rect{{MinX: 0, MinY: 0, MaxX: cols, MaxY: rows}}
				} else {
					rects = perRow
				}
			}
		}
	}
	stats.DamageRects = len(rects)
	for _, r := range rects {
		stats.RowsRepainted += r.MaxY - r.MinY
	}

	for _, r := range rects {
		if !emitRect(b, next, r, &state, caps) {
			return 0, initial, Stats{}, limitErr()
		}
	}

	if !emitCursorControl(b, &state, desired) {
		return 0, initial, Stats{}, limitErr()
	}

	if caps.SupportsSyncUpdate {
		if !b.AppendString("\x1b[?2026l") {
			return 0, initial, Stats{}, limitErr()
		}
	}

	state.ScreenValid = true
	n := b.Len()
	copy(out, local[:n])
	stats.BytesWritten = n
	return n, state, stats, nil
}

func limitErr() error {
	return vterr.New(renderOp, vterr.KindLimitExceeded, "output would exceed caller-provided capacity")
}

// emitRect prints one damage rectangle's cells, positioning the cursor
// at the start of each printable run and tracking style/position state
// as it goes.
func emitRect(b *bytewriter.Builder, next *cellbuf.Framebuffer, r cellbuf.Rect, state *TermState, caps Caps) bool {
	for y := r.MinY; y < r.MaxY; y++ {
		x := r.MinX
		for x < r.MaxX {
			cell, ok := next.CellAt(x, y)
			if !ok || cell.Width == cellbuf.WidthContinuation {
				x++
				continue
			}
			if state.Cursor.X != x || state.Cursor.Y != y {
				if !emitCUP(b, x, y) {
					return false
				}
				state.Cursor.X, state.Cursor.Y = x, y
			}
			if !emitStyleChange(b, state.Style, cell.Style, caps) {
				return false
			}
			state.Style = effectiveStyle(cell.Style, caps)

			linked := caps.SupportsHyperlinks && cell.Style.HyperlinkRef != 0
			var link cellbuf.HyperlinkEntry
			if linked {
				link, linked = next.LookupHyperlink(cell.Style.HyperlinkRef)
			}
			if linked {
				if !b.AppendString("\x1b]8;;") || !b.AppendString(link.URI) || !b.AppendString("\x1b\\") {
					return false
				}
			}

			glyph := cell.Bytes()
			if cell.Width > 0 && len(glyph) == 0 {
				glyph = []byte{' '}
			}
			if !b.Append(glyph) {
				return false
			}

			if linked {
				if !b.AppendString("\x1b]8;;\x1b\\") {
					return false
				}
			}

			nonASCII := false
			for _, g := range glyph {
				if g > 0x7f {
					nonASCII = true
					break
				}
			}
			if nonASCII || cell.Width != 1 {
				// Cursor-drift guard: the real terminal/font may not
				// agree on this glyph's width, so the tracked position
				// is no longer trustworthy until re-anchored.
				state.Cursor.X, state.Cursor.Y = -1, -1
			} else {
				state.Cursor.X += int(cell.Width)
			}

			if cell.Width == cellbuf.WidthWide {
				x += 2
			} else {
				x++
			}
		}
	}
	return true
}

func emitCUP(b *bytewriter.Builder, x, y int) bool {
	return b.AppendString("\x1b[") && b.AppendString(strconv.Itoa(y+1)) && b.AppendByte(';') && b.AppendString(strconv.Itoa(x+1)) && b.AppendByte('H')
}

// emitCursorControl appends cursor-state transitions after cell output:
// shape+blink (DECSCUSR encodes both in one parameter), then
// visibility, then final position. When desired is nil, visibility and
// shape are left exactly as tracked and only a position sequence is
// considered (there is none to emit, since the tracked position already
// reflects the last printable cell or is left where it was).
func emitCursorControl(b *bytewriter.Builder, state *TermState, desired *CursorState) bool {
	if desired == nil {
		return true
	}
	if desired.Shape != state.Cursor.Shape || desired.Blink != state.Cursor.Blink {
		if !b.AppendString("\x1b[") || !b.AppendString(strconv.Itoa(decscusrCode(desired.Shape, desired.Blink))) || !b.AppendString(" q") {
			return false
		}
		state.Cursor.Shape = desired.Shape
		state.Cursor.Blink = desired.Blink
	}
	if desired.Visible != state.Cursor.Visible {
		seq := "\x1b[?25l"
		if desired.Visible {
			seq = "\x1b[?25h"
		}
		if !b.AppendString(seq) {
			return false
		}
		state.Cursor.Visible = desired.Visible
	}
	if desired.X >= 0 && desired.Y >= 0 && (state.Cursor.X != desired.X || state.Cursor.Y != desired.Y) {
		if !emitCUP(b, desired.X, desired.Y) {
			return false
		}
		state.Cursor.X, state.Cursor.Y = desired.X, desired.Y
	}
	return true
}

func decscusrCode(shape CursorShape, blink bool) int {
	switch shape {
	case CursorUnderline:
		if blink {
			return 3
		}
		return 4
	case CursorBar:
		if blink {
			return 5
		}
		return 6
	default: // CursorBlock
		if blink {
			return 1
		}
		return 2
	}
}

func perRowRects(prev, next *cellbuf.Framebuffer, dirty []bool, cols, rows int) []cellbuf.Rect {
	var rects []cellbuf.Rect
	for y := 0; y < rows; y++ {
		if !dirty[y] {
			continue
		}
		minX, maxX, ok := dirtySpan(prev, next, y, cols)
		if !ok {
			continue
		}
		rects = append(rects, cellbuf.Rect{MinX: minX, MinY: y, MaxX: maxX, MaxY: y + 1})
	}
	return rects
}

// detectFullWidthShift reports whether next is exactly prev shifted by
// k full-width rows (up: next[i] == prev[i+k]; down: next[i+k] ==
// prev[i]), the smallest such k > 0 if several match.
func detectFullWidthShift(prev, next *cellbuf.Framebuffer, cols, rows int) (k int, up bool, ok bool) {
	for cand := 1; cand < rows; cand++ {
		if shiftMatches(prev, next, cols, rows, cand, true) {
			return cand, true, true
		}
		if shiftMatches(prev, next, cols, rows, cand, false) {
			return cand, false, true
		}
	}
	return 0, false, false
}

// shiftMatches reports whether next is exactly prev's rows shifted by k
// (up: next[i] == prev[i+k] for every surviving row; down: the mirror).
func shiftMatches(prev, next *cellbuf.Framebuffer, cols, rows, k int, up bool) bool {
	for i := 0; i < rows-k; i++ {
		var py, ny int
		if up {
			py, ny = i+k, i
		} else {
			py, ny = i, i+k
		}
		for x := 0; x < cols; x++ {
			pc, _ := prev.CellAt(x, py)
			nc, _ := next.CellAt(x, ny)
			if !cellsEqual(pc, nc) {
				return false
			}
		}
	}
	return true
}

func emitScrollShift(b *bytewriter.Builder, k int, up bool, rows int) bool {
	if !b.AppendString("\x1b[1;") || !b.AppendString(strconv.Itoa(rows)) || !b.AppendByte('r') {
		return false
	}
	dir := byte('S')
	if !up {
		dir = 'T'
	}
	if !b.AppendString("\x1b[") || !b.AppendString(strconv.Itoa(k)) || !b.AppendByte(dir) {
		return false
	}
	return b.AppendString("\x1b[r")
}

func exposedRowRects(k int, up bool, cols, rows int) []cellbuf.Rect {
	var rects []cellbuf.Rect
	if up {
		for y := rows - k; y < rows; y++ {
			rects = append(rects, cellbuf.Rect{MinX: 0, MinY: y, MaxX: cols, MaxY: y + 1})
		}
	} else {
		for y := 0; y < k; y++ {
			rects = append(rects, cellbuf.Rect{MinX: 0, MinY: y, MaxX: cols, MaxY: y + 1})
		}
	}
	return rects
}
