package cellbuf

import (
	"testing"

	"github.com/vtengine/core/internal/textmetrics"
)

func newTestPainter(cols, rows int) (*Framebuffer, *Painter) {
	fb, _ := New(cols, rows)
	clip := NewClipStack(fb.Bounds())
	return fb, NewPainter(fb, clip, textmetrics.PolicyEmojiWide)
}

func TestPutGraphemeNarrow(t *testing.T) {
	fb, p := newTestPainter(5, 1)
	if !p.PutGrapheme(1, 0, []byte("a"), 1, DefaultStyle) {
		t.Fatalf("expected PutGrapheme to succeed")
	}
	c, _ := fb.CellAt(1, 0)
	if string(c.Bytes()) != "a" || c.Width != WidthNormal {
		t.Errorf("unexpected cell: %q width=%d", c.Bytes(), c.Width)
	}
}

func TestPutGraphemeWideWritesContinuation(t *testing.T) {
	fb, p := newTestPainter(5, 1)
	if !p.PutGrapheme(0, 0, []byte("中"), 2, DefaultStyle) {
		t.Fatalf("expected wide PutGrapheme to succeed")
	}
	lead, _ := fb.CellAt(0, 0)
	cont, _ := fb.CellAt(1, 0)
	if lead.Width != WidthWide {
		t.Errorf("expected lead width 2, got %d", lead.Width)
	}
	if cont.Width != WidthContinuation || len(cont.Bytes()) != 0 {
		t.Errorf("expected blank continuation cell, got width=%d bytes=%q", cont.Width, cont.Bytes())
	}
}

func TestPutGraphemeWideAtEdgeWritesReplacement(t *testing.T) {
	fb, p := newTestPainter(3, 1)
	if !p.PutGrapheme(2, 0, []byte("中"), 2, DefaultStyle) {
		t.Fatalf("expected wide write straddling the right edge to still write a replacement")
	}
	c, _ := fb.CellAt(2, 0)
	if string(c.Bytes()) != string(ReplacementGrapheme) || c.Width != WidthNormal {
		t.Errorf("expected replacement scalar at width 1, got %q width=%d", c.Bytes(), c.Width)
	}
}

func TestPutGraphemeLeadOutOfBoundsRejected(t *testing.T) {
	_, p := newTestPainter(3, 1)
	if p.PutGrapheme(3, 0, []byte("a"), 1, DefaultStyle) {
		t.Fatalf("expected write with lead cell out of bounds to be rejected")
	}
}

func TestPutGraphemeOverwritesWideLeadClearsContinuation(t *testing.T) {
	fb, p := newTestPainter(5, 1)
	p.PutGrapheme(0, 0, []byte("中"), 2, DefaultStyle)
	if !p.PutGrapheme(0, 0, []byte("a"), 1, DefaultStyle) {
		t.Fatalf("expected overwrite to succeed")
	}
	cont, _ := fb.CellAt(1, 0)
	if cont.Width != WidthNormal || string(cont.Bytes()) != " " {
		t.Errorf("expected orphaned continuation cleared to blank, got width=%d bytes=%q", cont.Width, cont.Bytes())
	}
}

func TestPutGraphemeOverwritesContinuationClearsLead(t *testing.T) {
	fb, p := newTestPainter(5, 1)
	p.PutGrapheme(0, 0, []byte("中"), 2, DefaultStyle)
	if !p.PutGrapheme(1, 0, []byte("b"), 1, DefaultStyle) {
		t.Fatalf("expected overwrite of continuation cell to succeed")
	}
	lead, _ := fb.CellAt(0, 0)
	if lead.Width != WidthNormal || string(lead.Bytes()) != " " {
		t.Errorf("expected orphaned lead cleared to blank, got width=%d bytes=%q", lead.Width, lead.Bytes())
	}
}

func TestPutGraphemeUnsafeBytesWriteReplacement(t *testing.T) {
	fb, p := newTestPainter(5, 1)
	if !p.PutGrapheme(0, 0, []byte{0x01}, 1, DefaultStyle) {
		t.Fatalf("expected control byte grapheme to still write a replacement")
	}
	c, _ := fb.CellAt(0, 0)
	if string(c.Bytes()) != string(ReplacementGrapheme) || c.Width != WidthNormal {
		t.Errorf("expected replacement scalar at width 1, got %q width=%d", c.Bytes(), c.Width)
	}
}

func TestPutGraphemeOversizedBytesWriteReplacement(t *testing.T) {
	fb, p := newTestPainter(5, 1)
	oversized := make([]byte, MaxGraphemeBytes+1)
	for i := range oversized {
		oversized[i] = 'a'
	}
	if !p.PutGrapheme(0, 0, oversized, 1, DefaultStyle) {
		t.Fatalf("expected oversized grapheme to still write a replacement")
	}
	c, _ := fb.CellAt(0, 0)
	if string(c.Bytes()) != string(ReplacementGrapheme) || c.Width != WidthNormal {
		t.Errorf("expected replacement scalar at width 1, got %q width=%d", c.Bytes(), c.Width)
	}
}

func TestFillRectRespectsClip(t *testing.T) {
	fb, p := newTestPainter(4, 4)
	p.clip.Push(Rect{MinX: 1, MinY: 1, MaxX: 3, MaxY: 3})
	p.FillRect(Rect{MinX: 0, MinY: 0, MaxX: 4, MaxY: 4}, Style{FgR: 7})

	inside, _ := fb.CellAt(1, 1)
	if inside.Style.FgR != 7 {
		t.Errorf("expected cell inside clip to be filled, got %+v", inside.Style)
	}
	outside, _ := fb.CellAt(0, 0)
	if outside.Style.FgR == 7 {
		t.Errorf("expected cell outside clip to be untouched")
	}
}

func TestFillRectClearsStraddlingWideGlyph(t *testing.T) {
	fb, p := newTestPainter(5, 1)
	p.PutGrapheme(0, 0, []byte("中"), 2, DefaultStyle)
	p.FillRect(Rect{MinX: 1, MinY: 0, MaxX: 3, MaxY: 1}, Style{FgR: 3})

	lead, _ := fb.CellAt(0, 0)
	if lead.Width != WidthNormal {
		t.Errorf("expected orphaned lead blanked after straddled fill, got width=%d", lead.Width)
	}
}

func TestDrawTextBytesAdvancesByWidth(t *testing.T) {
	fb, p := newTestPainter(10, 1)
	n := p.DrawTextBytes(0, 0, []byte("a中b"), DefaultStyle)
	if n != 3 {
		t.Fatalf("expected 3 graphemes written, got %d", n)
	}
	c0, _ := fb.CellAt(0, 0)
	c1, _ := fb.CellAt(1, 0)
	c2, _ := fb.CellAt(2, 0)
	c3, _ := fb.CellAt(3, 0)
	if string(c0.Bytes()) != "a" {
		t.Errorf("expected 'a' at col 0, got %q", c0.Bytes())
	}
	if string(c1.Bytes()) != "中" || c1.Width != WidthWide {
		t.Errorf("expected wide '中' at col 1, got %q width=%d", c1.Bytes(), c1.Width)
	}
	if c2.Width != WidthContinuation {
		t.Errorf("expected continuation at col 2, got width=%d", c2.Width)
	}
	if string(c3.Bytes()) != "b" {
		t.Errorf("expected 'b' at col 3, got %q", c3.Bytes())
	}
}

func TestDrawTextBytesWideGlyphAtEdgeWritesReplacementAndContinues(t *testing.T) {
	fb, p := newTestPainter(3, 1)
	n := p.DrawTextBytes(2, 0, []byte("中x"), DefaultStyle)
	if n != 1 {
		t.Errorf("expected only the in-bounds replacement cell written, got %d", n)
	}
	c2, _ := fb.CellAt(2, 0)
	if string(c2.Bytes()) != string(ReplacementGrapheme) || c2.Width != WidthNormal {
		t.Errorf("expected replacement scalar at col 2, got %q width=%d", c2.Bytes(), c2.Width)
	}
}

func TestDrawTextBytesAdvancesPastMidRowClipThenWritesInside(t *testing.T) {
	fb, p := newTestPainter(5, 1)
	p.clip.Push(Rect{MinX: 3, MinY: 0, MaxX: 5, MaxY: 1})
	n := p.DrawTextBytes(0, 0, []byte("abcde"), DefaultStyle)
	if n != 2 {
		t.Fatalf("expected the 2 graphemes inside the clip to be written, got %d", n)
	}
	c3, _ := fb.CellAt(3, 0)
	c4, _ := fb.CellAt(4, 0)
	if string(c3.Bytes()) != "d" || string(c4.Bytes()) != "e" {
		t.Errorf("expected 'd' 'e' written inside the clip, got %q %q", c3.Bytes(), c4.Bytes())
	}
}
