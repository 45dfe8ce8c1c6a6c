package diffrender

import "github.com/vtengine/core/pkg/cellbuf"

// rowHash computes a cheap FNV-1a fingerprint over one row's cells.
// Collisions are expected and guarded against by an exact byte compare
// wherever a hash match is used to skip that compare (spec §4.8).
func rowHash(fb *cellbuf.Framebuffer, y, cols int) uint64 {
	var h uint64 = 1469598103934665603 // FNV offset basis
	for x := 0; x < cols; x++ {
		c, _ := fb.CellAt(x, y)
		h ^= uint64(c.Width)
		h *= 1099511628211
		for _, b := range c.Bytes() {
			h ^= uint64(b)
			h *= 1099511628211
		}
		h ^= uint64(c.Style.FgR)<<16 | uint64(c.Style.FgG)<<8 | uint64(c.Style.FgB)
		h *= 1099511628211
		h ^= uint64(c.Style.BgR)<<16 | uint64(c.Style.BgG)<<8 | uint64(c.Style.BgB)
		h *= 1099511628211
		h ^= uint64(c.Style.Attrs)
		h *= 1099511628211
	}
	return h
}

func cellsEqual(a, b cellbuf.Cell) bool {
	if a.Width != b.Width || a.Style != b.Style {
		return false
	}
	return string(a.Bytes()) == string(b.Bytes())
}

func rowsEqual(prev, next *cellbuf.Framebuffer, y, cols int) bool {
	for x := 0; x < cols; x++ {
		pc, _ := prev.CellAt(x, y)
		nc, _ := next.CellAt(x, y)
		if !cellsEqual(pc, nc) {
			return false
		}
	}
	return true
}

// dirtyRows computes, for each row, whether it differs between prev and
// next. When the row-hash scratch is provided and valid, a row whose
// hash changed from last frame is marked dirty without a cell compare,
// and a row whose hash is unchanged is still compared cell by cell (the
// collision guard). Returns the per-row dirty flags and the number of
// dirty rows.
func dirtyRows(prev, next *cellbuf.Framebuffer, cols, rows int, scratch *RowHashScratch, stats *Stats) ([]bool, int) {
	dirty := make([]bool, rows)
	count := 0

	var newHashes []uint64
	if scratch != nil {
		scratch.ensureLen(rows)
		newHashes = make([]uint64, rows)
	}

	for y := 0; y < rows; y++ {
		if scratch != nil {
			nh := rowHash(next, y, cols)
			newHashes[y] = nh
			if scratch.valid && scratch.hashes[y] == nh {
				// Equal hash: verify with an exact compare once,
				// counted as a collision-guard event regardless of
				// outcome.
				stats.CollisionGuardHits++
				if rowsEqual(prev, next, y, cols) {
					continue
				}
			}
			dirty[y] = true
			count++
			continue
		}
		if !rowsEqual(prev, next, y, cols) {
			dirty[y] = true
			count++
		}
	}

	if scratch != nil {
		copy(scratch.hashes, newHashes)
		scratch.valid = true
	}
	return dirty, count
}

// dirtySpan returns the [minX, maxX) range of differing columns in row
// y, or ok=false if the row is identical.
func dirtySpan(prev, next *cellbuf.Framebuffer, y, cols int) (minX, maxX int, ok bool) {
	minX, maxX = cols, 0
	for x := 0; x < cols; x++ {
		pc, _ := prev.CellAt(x, y)
		nc, _ := next.CellAt(x, y)
		if !cellsEqual(pc, nc) {
			if x < minX {
				minX = x
			}
			if x+1 > maxX {
				maxX = x + 1
			}
		}
	}
	if maxX <= minX {
		return 0, 0, false
	}
	// Expand to cover a full wide-glyph pair (spec §4.8): if the first
	// dirty cell is a continuation, include its lead; if the last dirty
	// cell is a lead, include its continuation.
	if c, _ := next.CellAt(minX, y); c.Width == cellbuf.WidthContinuation && minX > 0 {
		minX--
	}
	if c, _ := next.CellAt(maxX-1, y); c.Width == cellbuf.WidthWide && maxX < cols {
		maxX++
	}
	return minX, maxX, true
}

// coalesceDamage builds damage rectangles from per-row dirty spans using
// a single linear pass over rows (a row-indexed active-rectangle walk):
// a rectangle is extended downward while the next row's span exactly
// matches its [minX,maxX) bounds, and closed out otherwise. This is
// linear in rows + rects, not rows*rects.
func coalesceDamage(prev, next *cellbuf.Framebuffer, dirty []bool, cols, rows int, maxRects int) ([]cellbuf.Rect, bool) {
	var rects []cellbuf.Rect
	var active *cellbuf.Rect

	flush := func() {
		if active != nil {
			rects = append(rects, *active)
			active = nil
		}
	}

	for y := 0; y < rows; y++ {
		if !dirty[y] {
			flush()
			continue
		}
		minX, maxX, ok := dirtySpan(prev, next, y, cols)
		if !ok {
			flush()
			continue
		}
		if active != nil && active.MinX == minX && active.MaxX == maxX && active.MaxY == y {
			active.MaxY = y + 1
			continue
		}
		flush()
		active = &cellbuf.Rect{MinX: minX, MinY: y, MaxX: maxX, MaxY: y + 1}
	}
	flush()

	if len(rects) > maxRects {
		return nil, true
	}
	return rects, false
}

// dirtyRowDensity is the fraction of rows with any dirty cell.
func dirtyRowDensity(dirtyCount, rows int) float64 {
	if rows == 0 {
		return 0
	}
	return float64(dirtyCount) / float64(rows)
}

// useSparsePath decides between sparse damage-rect rendering and
// per-row sweep rendering (spec §4.8 "Adaptive render path"). The base
// threshold is adjusted by three bounded rules: very small frames
// (<=4 rows) always sweep (the fixed per-row cursor-position overhead
// dominates anyway), very wide frames (>=200 cols) favor sparse damage
// rects more aggressively since a full-row rewrite is expensive, and
// very-dirty frames (density > 0.85) always sweep since there's almost
// nothing to save by rect bookkeeping.
func useSparsePath(dirtyCount, rows, cols int) bool {
	if rows <= 4 {
		return false
	}
	density := dirtyRowDensity(dirtyCount, rows)
	if density > 0.85 {
		return false
	}
	threshold := 0.35
	if cols >= 200 {
		threshold = 0.5
	}
	return density < threshold
}
