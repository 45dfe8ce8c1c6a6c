package cellbuf

import (
	"github.com/vtengine/core/internal/textmetrics"
)

// Painter is the sole mutator of a Framebuffer's cell contents. Every
// drawlist opcode that touches cells goes through one of its methods so
// the wide-glyph lead/continuation invariant is enforced in exactly one
// place (spec §3: a wide cell and its continuation are always written
// or cleared together, never independently).
type Painter struct {
	fb     *Framebuffer
	clip   *ClipStack
	policy textmetrics.WidthPolicy
}

// NewPainter binds a Painter to fb, clipped by clip, measuring grapheme
// widths under policy.
func NewPainter(fb *Framebuffer, clip *ClipStack, policy textmetrics.WidthPolicy) *Painter {
	return &Painter{fb: fb, clip: clip, policy: policy}
}

// FillRect overwrites every cell in r (clipped to the current clip top)
// with a blank space cell in style. Partially clipped rectangles only
// fill the visible portion. The one exception to staying inside the
// clip: a wide glyph straddling the boundary of the filled region has
// its orphaned half (which may lie outside the clip) blanked too, so no
// half-glyph survives a partial fill.
func (p *Painter) FillRect(r Rect, style Style) {
	vis := p.clip.Top().Intersect(r)
	if vis.Empty() {
		return
	}
	for y := vis.MinY; y < vis.MaxY; y++ {
		if c := p.fb.cellPtr(vis.MinX, y); c != nil {
			p.clearWideSpanAt(vis.MinX, y)
		}
		if c := p.fb.cellPtr(vis.MaxX-1, y); c != nil {
			p.clearWideSpanAt(vis.MaxX-1, y)
		}
		for x := vis.MinX; x < vis.MaxX; x++ {
			if c := p.fb.cellPtr(x, y); c != nil {
				c.Blank(style)
			}
		}
	}
}

// PutGrapheme writes one grapheme at (x, y). If width is 2, it also
// clears/claims the continuation cell at (x+1, y) in the same style.
// An unsafe or oversized grapheme, or a width-2 glyph whose continuation
// cell would fall outside the clip or framebuffer, is never written or
// half-written: it is replaced by ReplacementGrapheme at width 1 instead
// (spec §3, §4.3). PutGrapheme returns false, writing nothing, when
// width is neither 1 nor 2, or when (x, y) itself — the lead cell —
// falls outside the clip or framebuffer, since then there is no cell to
// write a replacement into either. Writing over an
// existing wide glyph's continuation clears the old lead to a blank
// first, so no stale half-glyph survives.
func (p *Painter) PutGrapheme(x, y int, grapheme []byte, width int, style Style) bool {
	if width != 1 && width != 2 {
		return false
	}
	top := p.clip.Top()
	lead := Rect{MinX: x, MinY: y, MaxX: x + 1, MaxY: y + 1}
	if top.Intersect(lead).Empty() {
		return false
	}
	cell := p.fb.cellPtr(x, y)
	if cell == nil {
		return false
	}

	payload := grapheme
	writeWidth := width
	if !IsSafeGrapheme(grapheme) {
		payload = ReplacementGrapheme
		writeWidth = 1
	}
	if writeWidth == 2 {
		cont := Rect{MinX: x + 1, MinY: y, MaxX: x + 2, MaxY: y + 1}
		if top.Intersect(cont).Empty() || p.fb.cellPtr(x+1, y) == nil {
			payload = ReplacementGrapheme
			writeWidth = 1
		}
	}

	p.clearWideSpanAt(x, y)
	if writeWidth == 2 {
		p.clearWideSpanAt(x+1, y)
	}

	cell.SetBytes(payload)
	cell.Width = uint8(writeWidth)
	cell.Style = style

	if writeWidth == 2 {
		contCell := p.fb.cellPtr(x + 1, y)
		*contCell = ContinuationOf(style)
	}
	return true
}

// clearWideSpanAt ensures the cell at (x, y) is not left as an orphaned
// continuation or a lead whose partner is about to be overwritten. If
// (x, y) is a continuation cell, its lead (one column to the left) is
// blanked. If (x, y) is a wide lead, its continuation (one column to
// the right) is blanked.
func (p *Painter) clearWideSpanAt(x, y int) {
	cell := p.fb.cellPtr(x, y)
	if cell == nil {
		return
	}
	switch cell.Width {
	case WidthContinuation:
		if lead := p.fb.cellPtr(x-1, y); lead != nil && lead.Width == WidthWide {
			lead.Blank(lead.Style)
		}
	case WidthWide:
		if cont := p.fb.cellPtr(x+1, y); cont != nil {
			cont.Blank(cell.Style)
		}
	}
}

// DrawTextBytes segments text into graphemes via textmetrics and writes
// them left to right starting at (x, y). x always advances by the width
// actually measured, not the width actually written, so a clip region
// starting mid-row still receives the graphemes that fall inside it
// instead of every grapheme after the first rejection vanishing (spec
// §4.3). A grapheme PutGrapheme rejects outright (its column falls
// entirely outside clip/bounds) is skipped; DrawTextBytes returns the
// count of graphemes actually placed, which can be less than the number
// measured. Zero-width graphemes (width 0, e.g. isolated combining
// marks) are dropped rather than written.
func (p *Painter) DrawTextBytes(x, y int, text []byte, style Style) int {
	cursor := x
	written := 0
	it := textmetrics.NewGraphemeIter(text)
	for {
		off, size, ok := it.Next()
		if !ok {
			break
		}
		g := text[off : off+size]
		w := textmetrics.GraphemeWidth(string(g), p.policy)
		if w == 0 {
			continue
		}
		if p.PutGrapheme(cursor, y, g, w, style) {
			written++
		}
		cursor += w
	}
	return written
}
