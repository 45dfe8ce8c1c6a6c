package cellbuf

import (
	"testing"

	"github.com/vtengine/core/internal/textmetrics"
)

func TestFramebufferNewAndBounds(t *testing.T) {
	fb, err := New(10, 4)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if fb.Cols() != 10 || fb.Rows() != 4 {
		t.Errorf("expected 10x4, got %dx%d", fb.Cols(), fb.Rows())
	}
	c, ok := fb.CellAt(0, 0)
	if !ok || string(c.Bytes()) != " " {
		t.Errorf("expected blank cell at origin, got %q ok=%v", c.Bytes(), ok)
	}
	if _, ok := fb.CellAt(10, 0); ok {
		t.Errorf("expected out-of-bounds CellAt to fail")
	}
}

func TestFramebufferNewRejectsNonPositive(t *testing.T) {
	if _, err := New(0, 5); err == nil {
		t.Errorf("expected error for zero cols")
	}
	if _, err := New(5, -1); err == nil {
		t.Errorf("expected error for negative rows")
	}
}

func TestFramebufferResizeClearsScreenValid(t *testing.T) {
	fb, _ := New(5, 5)
	fb.SetScreenValid(true)
	if err := fb.Resize(8, 8); err != nil {
		t.Fatalf("Resize failed: %v", err)
	}
	if fb.ScreenValid() {
		t.Errorf("expected screen-validity to be cleared by Resize")
	}
	if fb.Cols() != 8 || fb.Rows() != 8 {
		t.Errorf("expected 8x8 after resize, got %dx%d", fb.Cols(), fb.Rows())
	}
}

func TestFramebufferResizeRejectsLeavesStateIntact(t *testing.T) {
	fb, _ := New(5, 5)
	if err := fb.Resize(0, 5); err == nil {
		t.Fatalf("expected Resize(0, 5) to fail")
	}
	if fb.Cols() != 5 || fb.Rows() != 5 {
		t.Errorf("expected dimensions unchanged after failed resize, got %dx%d", fb.Cols(), fb.Rows())
	}
}

func TestFramebufferClear(t *testing.T) {
	fb, _ := New(3, 2)
	style := Style{FgR: 9}
	fb.Clear(style)
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			c, _ := fb.CellAt(x, y)
			if c.Style != style {
				t.Errorf("cell (%d,%d): expected style %+v, got %+v", x, y, style, c.Style)
			}
		}
	}
}

func TestCloneInto(t *testing.T) {
	src, _ := New(4, 3)
	painter := NewPainter(src, NewClipStack(src.Bounds()), textmetrics.PolicyEmojiWide)
	painter.PutGrapheme(0, 0, []byte("x"), 1, DefaultStyle)

	dst, _ := New(1, 1)
	if err := CloneInto(dst, src); err != nil {
		t.Fatalf("CloneInto failed: %v", err)
	}
	if dst.Cols() != 4 || dst.Rows() != 3 {
		t.Fatalf("expected dst resized to 4x3, got %dx%d", dst.Cols(), dst.Rows())
	}
	c, _ := dst.CellAt(0, 0)
	if string(c.Bytes()) != "x" {
		t.Errorf("expected cloned cell to hold 'x', got %q", c.Bytes())
	}
}

func TestHyperlinkInternAndLookup(t *testing.T) {
	fb, _ := New(2, 2)
	ref := fb.InternHyperlink(HyperlinkEntry{URI: "https://example.com", ID: "a"})
	if ref == 0 {
		t.Fatalf("expected non-zero ref")
	}
	got, ok := fb.LookupHyperlink(ref)
	if !ok || got.URI != "https://example.com" {
		t.Errorf("expected lookup to find entry, got %+v ok=%v", got, ok)
	}
	if _, ok := fb.LookupHyperlink(0); ok {
		t.Errorf("expected ref 0 to be invalid")
	}
	if _, ok := fb.LookupHyperlink(99); ok {
		t.Errorf("expected out-of-range ref to be invalid")
	}
}
