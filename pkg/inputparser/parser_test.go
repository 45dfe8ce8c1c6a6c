package inputparser

import (
	"testing"

	"github.com/vtengine/core/pkg/eventqueue"
)

func newFixture() (*Parser, *eventqueue.Queue) {
	q := eventqueue.New(32, 1024, 8192)
	return New(q), q
}

func drain(q *eventqueue.Queue) []eventqueue.Event {
	var out []eventqueue.Event
	for {
		e, ok := q.Pop()
		if !ok {
			break
		}
		out = append(out, e)
	}
	return out
}

func TestParsePrintableASCIIText(t *testing.T) {
	p, q := newFixture()
	p.Parse([]byte("hi"), 10)

	events := drain(q)
	if len(events) != 2 {
		t.Fatalf("expected 2 text events, got %d", len(events))
	}
	if events[0].Type != eventqueue.TypeText || events[0].Scalar != 'h' {
		t.Errorf("expected first event 'h', got %+v", events[0])
	}
	if events[1].Scalar != 'i' {
		t.Errorf("expected second event 'i', got %+v", events[1])
	}
}

func TestParseInvalidUTF8YieldsReplacementScalar(t *testing.T) {
	p, q := newFixture()
	p.Parse([]byte{0xff}, 0)

	events := drain(q)
	if len(events) != 1 || events[0].Scalar != '�' {
		t.Fatalf("expected replacement scalar, got %+v", events)
	}
}

func TestParseArrowKeysWithModifiers(t *testing.T) {
	p, q := newFixture()
	p.Parse([]byte("\x1b[A\x1b[1;5C"), 0) // plain Up, Ctrl+Right

	events := drain(q)
	if len(events) != 2 {
		t.Fatalf("expected 2 key events, got %d", len(events))
	}
	if events[0].KeyCode != eventqueue.KeyUp || events[0].Modifiers != 0 {
		t.Errorf("expected plain Up, got %+v", events[0])
	}
	if events[1].KeyCode != eventqueue.KeyRight || events[1].Modifiers != eventqueue.ModCtrl {
		t.Errorf("expected Ctrl+Right, got %+v", events[1])
	}
}

func TestParseTildeTerminatedKeys(t *testing.T) {
	p, q := newFixture()
	p.Parse([]byte("\x1b[3~\x1b[5~"), 0) // Delete, PageUp

	events := drain(q)
	if len(events) != 2 {
		t.Fatalf("expected 2 key events, got %d", len(events))
	}
	if events[0].KeyCode != eventqueue.KeyDelete {
		t.Errorf("expected Delete, got %+v", events[0])
	}
	if events[1].KeyCode != eventqueue.KeyPageUp {
		t.Errorf("expected PageUp, got %+v", events[1])
	}
}

func TestParseSS3FunctionKeys(t *testing.T) {
	p, q := newFixture()
	p.Parse([]byte("\x1bOP\x1bOQ"), 0) // F1, F2

	events := drain(q)
	if len(events) != 2 || events[0].KeyCode != eventqueue.KeyF1 || events[1].KeyCode != eventqueue.KeyF2 {
		t.Fatalf("expected F1 then F2, got %+v", events)
	}
}

func TestParseFocusEvents(t *testing.T) {
	p, q := newFixture()
	p.Parse([]byte("\x1b[I\x1b[O"), 0)

	events := drain(q)
	if len(events) != 2 || events[0].KeyCode != eventqueue.KeyFocusIn || events[1].KeyCode != eventqueue.KeyFocusOut {
		t.Fatalf("expected FocusIn then FocusOut, got %+v", events)
	}
}

func TestParseBracketedPasteAccumulatesAndEmitsOnClose(t *testing.T) {
	p, q := newFixture()
	p.Parse([]byte("\x1b[200~pasted text\x1b[201~"), 0)

	events := drain(q)
	if len(events) != 1 {
		t.Fatalf("expected exactly 1 paste event, got %d: %+v", len(events), events)
	}
	if events[0].Type != eventqueue.TypePaste || string(events[0].Bytes) != "pasted text" {
		t.Errorf("expected paste payload 'pasted text', got %+v", events[0])
	}
}

func TestParsePasteSplitAcrossCalls(t *testing.T) {
	p, q := newFixture()
	p.Parse([]byte("\x1b[200~hel"), 0)
	p.Parse([]byte("lo\x1b[201~"), 0)

	events := drain(q)
	if len(events) != 1 || string(events[0].Bytes) != "hello" {
		t.Fatalf("expected paste 'hello' across split calls, got %+v", events)
	}
}

func TestParseSGRMouseDown(t *testing.T) {
	p, q := newFixture()
	p.Parse([]byte("\x1b[<0;10;20M"), 0)

	events := drain(q)
	if len(events) != 1 {
		t.Fatalf("expected 1 mouse event, got %d", len(events))
	}
	e := events[0]
	if e.Type != eventqueue.TypeMouse || e.MouseKind != eventqueue.MouseDown || e.X != 9 || e.Y != 19 {
		t.Errorf("unexpected mouse event: %+v", e)
	}
}

func TestParseSGRMouseRelease(t *testing.T) {
	p, q := newFixture()
	p.Parse([]byte("\x1b[<0;10;20m"), 0)

	events := drain(q)
	if len(events) != 1 || events[0].MouseKind != eventqueue.MouseUp {
		t.Fatalf("expected mouse up, got %+v", events)
	}
}

func TestParseLegacyX10Mouse(t *testing.T) {
	p, q := newFixture()
	// Cb=32 (left button press, offset 0x20), Cx=33 (x=1), Cy=33 (y=1).
	p.Parse([]byte{0x1b, '[', 'M', 0x20, 0x21, 0x21}, 0)

	events := drain(q)
	if len(events) != 1 {
		t.Fatalf("expected 1 mouse event, got %d", len(events))
	}
	if events[0].MouseKind != eventqueue.MouseDown || events[0].X != 0 || events[0].Y != 0 {
		t.Errorf("unexpected legacy mouse event: %+v", events[0])
	}
}

func TestParseBareEscapeIsPendingAcrossCalls(t *testing.T) {
	p, q := newFixture()
	p.Parse([]byte{0x1b}, 0)
	if len(drain(q)) != 0 {
		t.Fatalf("expected no event from a lone ESC with nothing following")
	}

	p.Parse([]byte("x"), 0)
	events := drain(q)
	if len(events) != 2 {
		t.Fatalf("expected Escape then text 'x', got %d: %+v", len(events), events)
	}
	if events[0].KeyCode != eventqueue.KeyEscape {
		t.Errorf("expected Escape key, got %+v", events[0])
	}
	if events[1].Type != eventqueue.TypeText || events[1].Scalar != 'x' {
		t.Errorf("expected text 'x', got %+v", events[1])
	}
}

func TestParseControlKeys(t *testing.T) {
	p, q := newFixture()
	p.Parse([]byte("\r\t\x7f"), 0)

	events := drain(q)
	if len(events) != 3 {
		t.Fatalf("expected 3 key events, got %d", len(events))
	}
	want := []eventqueue.KeyCode{eventqueue.KeyEnter, eventqueue.KeyTab, eventqueue.KeyBackspace}
	for i, w := range want {
		if events[i].KeyCode != w {
			t.Errorf("event %d: expected %v, got %v", i, w, events[i].KeyCode)
		}
	}
}

func TestParseUnknownOSCIsConsumedWithoutEvents(t *testing.T) {
	p, q := newFixture()
	p.Parse([]byte("\x1b]0;title\x07ok"), 0)

	events := drain(q)
	if len(events) != 2 {
		t.Fatalf("expected only the trailing 'ok' text events, got %+v", events)
	}
	if events[0].Scalar != 'o' || events[1].Scalar != 'k' {
		t.Errorf("expected 'ok', got %+v", events)
	}
}
