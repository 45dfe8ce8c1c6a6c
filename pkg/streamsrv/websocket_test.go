package streamsrv

import (
	"encoding/binary"
	"testing"

	"github.com/vtengine/core/pkg/backend"
	"github.com/vtengine/core/pkg/config"
	"github.com/vtengine/core/pkg/diffrender"
	"github.com/vtengine/core/pkg/drawlist"
	"github.com/vtengine/core/pkg/engine"
)

// minimalClearDrawlist builds the smallest valid drawlist: a header
// plus a single zero-payload CLEAR command, no string/blob tables.
func minimalClearDrawlist() []byte {
	le := binary.LittleEndian
	buf := make([]byte, drawlist.HeaderSize+drawlist.CommandHeaderSize)
	copy(buf[0:4], drawlist.Magic[:])
	le.PutUint32(buf[4:8], 1)
	le.PutUint32(buf[8:12], drawlist.HeaderSize)
	le.PutUint32(buf[12:16], uint32(len(buf)))
	le.PutUint32(buf[16:20], drawlist.HeaderSize)
	le.PutUint32(buf[20:24], drawlist.CommandHeaderSize)
	le.PutUint32(buf[24:28], 1)

	cmd := buf[drawlist.HeaderSize:]
	le.PutUint16(cmd[0:2], uint16(drawlist.OpClear))
	le.PutUint16(cmd[2:4], 0)
	le.PutUint32(cmd[4:8], drawlist.CommandHeaderSize)
	return buf
}

func newTestConnSession(t *testing.T) *connSession {
	t.Helper()
	be := backend.NewMemBackend(10, 4, diffrender.Caps{ColorMode: diffrender.ColorRGB})
	eng, err := engine.Create(config.DefaultConfig(), be)
	if err != nil {
		t.Fatalf("engine.Create: %v", err)
	}
	t.Cleanup(func() { eng.Destroy() })
	return &connSession{eng: eng, be: be}
}

func TestHandleFrameDrawlistSendsOutputFrame(t *testing.T) {
	cs := newTestConnSession(t)
	send := make(chan []byte, 4)
	done := make(chan struct{})

	if err := cs.handleFrame(frameDrawlist, minimalClearDrawlist(), send, done); err != nil {
		t.Fatalf("handleFrame: %v", err)
	}

	select {
	case msg := <-send:
		if len(msg) == 0 || msg[0] != frameOutput {
			t.Fatalf("expected a frameOutput message, got %v", msg)
		}
	default:
		t.Fatal("expected an output frame to be queued")
	}
}

func TestHandleFrameBadDrawlistReturnsErrorNoSend(t *testing.T) {
	cs := newTestConnSession(t)
	send := make(chan []byte, 4)
	done := make(chan struct{})

	bad := minimalClearDrawlist()
	bad[0] = 'X'
	if err := cs.handleFrame(frameDrawlist, bad, send, done); err == nil {
		t.Fatal("expected an error for a corrupted magic")
	}
	select {
	case msg := <-send:
		t.Fatalf("expected no output frame queued, got %v", msg)
	default:
	}
}

func TestHandleFrameInputFeedsBackend(t *testing.T) {
	cs := newTestConnSession(t)
	send := make(chan []byte, 4)
	done := make(chan struct{})

	if err := cs.handleFrame(frameInput, []byte("a"), send, done); err != nil {
		t.Fatalf("handleFrame: %v", err)
	}

	out := make([]byte, 4096)
	n, err := cs.eng.PollEvents(0, out)
	if err != nil {
		t.Fatalf("PollEvents: %v", err)
	}
	if n == 0 {
		t.Error("expected a packed batch containing the fed input")
	}
}

func TestHandleFrameResizeResizesEngine(t *testing.T) {
	cs := newTestConnSession(t)
	send := make(chan []byte, 4)
	done := make(chan struct{})

	payload := make([]byte, 8)
	binary.LittleEndian.PutUint32(payload[0:4], 20)
	binary.LittleEndian.PutUint32(payload[4:8], 8)
	if err := cs.handleFrame(frameResize, payload, send, done); err != nil {
		t.Fatalf("handleFrame: %v", err)
	}
	if cs.be.Cols != 20 || cs.be.Rows != 8 {
		t.Errorf("expected backend size updated to 20x8, got %dx%d", cs.be.Cols, cs.be.Rows)
	}
}

func TestHandleFrameResizeRejectsShortPayload(t *testing.T) {
	cs := newTestConnSession(t)
	send := make(chan []byte, 4)
	done := make(chan struct{})

	if err := cs.handleFrame(frameResize, []byte{1, 2, 3}, send, done); err == nil {
		t.Fatal("expected an error for a short resize payload")
	}
}

func TestSafeSendReturnsFalseAfterDone(t *testing.T) {
	send := make(chan []byte)
	done := make(chan struct{})
	close(done)
	if safeSend(send, []byte("x"), done) {
		t.Error("expected safeSend to report failure once done is closed")
	}
}
