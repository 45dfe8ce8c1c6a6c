package drawlist

import (
	"testing"

	"github.com/vtengine/core/internal/textmetrics"
	"github.com/vtengine/core/pkg/cellbuf"
)

func newExecFixture(cols, rows int) (*cellbuf.Framebuffer, *cellbuf.ClipStack, *Store, TextPolicy, *CursorIntent) {
	fb, _ := cellbuf.New(cols, rows)
	clip := cellbuf.NewClipStack(fb.Bounds())
	store := NewStore()
	policy := TextPolicy{TabWidth: 8, WidthPolicy: textmetrics.PolicyEmojiWide, DefaultStyle: cellbuf.DefaultStyle}
	cursor := &CursorIntent{}
	return fb, clip, store, policy, cursor
}

func TestExecuteClearFillsDefaultStyle(t *testing.T) {
	var b dlBuilder
	b.addCommand(OpClear, nil)
	view, err := Validate(b.build(), DefaultLimits())
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	fb, clip, store, policy, cursor := newExecFixture(4, 2)
	if err := Execute(view, fb, clip, store, policy, cursor, DefaultLimits()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	c, _ := fb.CellAt(0, 0)
	if string(c.Bytes()) != " " {
		t.Errorf("expected blank cell after CLEAR, got %q", c.Bytes())
	}
}

func TestExecuteFillRect(t *testing.T) {
	var b dlBuilder
	b.addCommand(OpFillRect, rectStylePayload(1, 0, 2, 1, 1, 2, 3, 0, 0, 0, 0))
	view, err := Validate(b.build(), DefaultLimits())
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	fb, clip, store, policy, cursor := newExecFixture(4, 1)
	if err := Execute(view, fb, clip, store, policy, cursor, DefaultLimits()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	c, _ := fb.CellAt(1, 0)
	if c.Style.FgR != 1 || c.Style.FgG != 2 || c.Style.FgB != 3 {
		t.Errorf("expected filled style, got %+v", c.Style)
	}
	untouched, _ := fb.CellAt(0, 0)
	if untouched.Style.FgR == 1 {
		t.Errorf("expected cell outside rect to be untouched")
	}
}

func TestExecuteDrawText(t *testing.T) {
	var b dlBuilder
	sid := b.addString([]byte("hi"))
	b.addCommand(OpDrawText, drawTextPayload(0, 0, sid, 0, 2, 9, 9, 9, 0, 0, 0, 0))
	view, err := Validate(b.build(), DefaultLimits())
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	fb, clip, store, policy, cursor := newExecFixture(4, 1)
	if err := Execute(view, fb, clip, store, policy, cursor, DefaultLimits()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	c0, _ := fb.CellAt(0, 0)
	c1, _ := fb.CellAt(1, 0)
	if string(c0.Bytes()) != "h" || string(c1.Bytes()) != "i" {
		t.Errorf("expected \"hi\" written, got %q %q", c0.Bytes(), c1.Bytes())
	}
}

func TestExecuteSetCursorPreservesUnsetComponents(t *testing.T) {
	var b dlBuilder
	b.addCommand(OpSetCursor, setCursorPayload(5, -1, byte(CursorBar), true, true))
	view, err := Validate(b.build(), DefaultLimits())
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	fb, clip, store, policy, cursor := newExecFixture(10, 10)
	cursor.Y = 3
	if err := Execute(view, fb, clip, store, policy, cursor, DefaultLimits()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if cursor.X != 5 {
		t.Errorf("expected X updated to 5, got %d", cursor.X)
	}
	if cursor.Y != 3 {
		t.Errorf("expected Y preserved at 3, got %d", cursor.Y)
	}
	if cursor.Shape != CursorBar || !cursor.Visible || !cursor.Blink {
		t.Errorf("unexpected cursor state: %+v", cursor)
	}
}

func TestExecutePushClipOverflow(t *testing.T) {
	var b dlBuilder
	for i := 0; i < 70; i++ {
		b.addCommand(OpPushClip, pushClipPayload(0, 0, 1, 1))
	}
	view, err := Validate(b.build(), DefaultLimits())
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	fb, clip, store, policy, cursor := newExecFixture(10, 10)
	err = Execute(view, fb, clip, store, policy, cursor, DefaultLimits())
	if err == nil {
		t.Fatalf("expected clip overflow to fail execution")
	}
}

func TestExecutePopClipUnderflow(t *testing.T) {
	var b dlBuilder
	b.addCommand(OpPopClip, nil)
	view, err := Validate(b.build(), DefaultLimits())
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	fb, clip, store, policy, cursor := newExecFixture(4, 4)
	if err := Execute(view, fb, clip, store, policy, cursor, DefaultLimits()); err == nil {
		t.Fatalf("expected POP_CLIP underflow to fail")
	}
}

func TestExecuteDefStringThenTextRun(t *testing.T) {
	var b dlBuilder
	srcSid := b.addString([]byte("hello"))
	b.addCommand(OpDefString, defStringPayload(42, srcSid))

	seg := segmentPayload(1, 2, 3, 0, 0, 0, 0, 42, 0, 5)
	blobData := append(u32le(1), seg...)
	bid := b.addBlob(blobData)
	b.addCommand(OpDrawTextRun, drawTextRunPayload(0, 0, bid))

	view, err := Validate(b.build(), DefaultLimits())
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	fb, clip, store, policy, cursor := newExecFixture(10, 1)
	if err := Execute(view, fb, clip, store, policy, cursor, DefaultLimits()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	c, _ := fb.CellAt(0, 0)
	if string(c.Bytes()) != "h" {
		t.Errorf("expected 'h' from persistent string via DRAW_TEXT_RUN, got %q", c.Bytes())
	}
}

func TestExecuteTextRunUnboundStringFails(t *testing.T) {
	var b dlBuilder
	seg := segmentPayload(1, 2, 3, 0, 0, 0, 0, 999, 0, 5)
	blobData := append(u32le(1), seg...)
	bid := b.addBlob(blobData)
	b.addCommand(OpDrawTextRun, drawTextRunPayload(0, 0, bid))

	view, err := Validate(b.build(), DefaultLimits())
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	fb, clip, store, policy, cursor := newExecFixture(10, 1)
	if err := Execute(view, fb, clip, store, policy, cursor, DefaultLimits()); err == nil {
		t.Fatalf("expected unbound string_id reference to fail execution")
	}
}
