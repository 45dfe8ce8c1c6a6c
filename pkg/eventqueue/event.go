// Package eventqueue implements the engine's normalized input pipeline:
// a fixed-capacity event queue fed by the input parser, and a packer
// that serializes queued events into the self-framed binary event
// batch the host polls. It is adapted from the teacher's
// PTY-output-buffering idiom (coalesce into a bounded buffer, flush on
// demand) applied to the opposite direction of the data flow.
package eventqueue

import "encoding/binary"

// Magic is the 4-byte little-endian event batch header magic, "ZREV".
var Magic = [4]byte{'Z', 'R', 'E', 'V'}

// BatchVersion is the only event-batch wire version this engine build
// emits.
const BatchVersion = 1

// BatchHeaderSize is the fixed size of the batch header in bytes.
const BatchHeaderSize = 24

// RecordHeaderSize is the fixed size of one event record's header.
const RecordHeaderSize = 16

// TruncatedFlag is batch header flags bit 0.
const TruncatedFlag = 1 << 0

// Type identifies an event's payload shape.
type Type uint32

const (
	TypeKey    Type = 0
	TypeText   Type = 1
	TypePaste  Type = 2
	TypeMouse  Type = 3
	TypeResize Type = 4
	TypeTick   Type = 5
	TypeUser   Type = 6
)

// Fixed post-header payload sizes; PASTE and USER additionally carry a
// variable-length byte tail padded to 4 bytes.
const (
	KeyPayloadSize    = 16
	TextPayloadSize   = 8
	PastePayloadSize  = 8
	MousePayloadSize  = 32
	ResizePayloadSize = 16
	TickPayloadSize   = 16
	UserPayloadSize   = 16
)

// KeyAction enumerates KEY event actions.
type KeyAction uint32

const (
	KeyActionPress   KeyAction = 0
	KeyActionRepeat  KeyAction = 1
	KeyActionRelease KeyAction = 2
)

// Modifier bits, shared by KEY and MOUSE events.
type Modifier uint32

const (
	ModShift Modifier = 1 << iota
	ModAlt
	ModCtrl
	ModSuper
)

// MouseKind enumerates MOUSE event kinds.
type MouseKind uint32

const (
	MouseMove    MouseKind = 0
	MouseDown    MouseKind = 1
	MouseUp      MouseKind = 2
	MouseWheel   MouseKind = 3
	MouseDrag    MouseKind = 4
)

// KeyCode enumerates the fixed integer key codes the input parser and
// packer agree on. Printable characters travel as TEXT events instead;
// KeyCode covers control and named keys only.
type KeyCode uint32

const (
	KeyUnknown KeyCode = iota
	KeyEscape
	KeyEnter
	KeyTab
	KeyBackspace
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyHome
	KeyEnd
	KeyInsert
	KeyDelete
	KeyPageUp
	KeyPageDown
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
	KeyFocusIn
	KeyFocusOut
)

// Event is the engine-internal representation of one queued event. Only
// the fields relevant to Type are meaningful; Bytes holds the PASTE/
// USER variable-length payload, sliced from the queue's arena.
type Event struct {
	Type   Type
	TimeMs uint32

	// KEY
	KeyCode   KeyCode
	Modifiers Modifier
	Action    KeyAction

	// TEXT
	Scalar rune

	// MOUSE
	X, Y              int32
	MouseKind         MouseKind
	Buttons           uint32
	WheelDX, WheelDY  int32

	// RESIZE
	Cols, Rows, PxWidth, PxHeight uint32

	// TICK
	Seq uint32

	// USER
	Tag uint32

	// PASTE / USER opaque payload, unpadded logical length.
	Bytes []byte
}

// WireSize returns the total 4-byte-aligned record size (header +
// payload) this event would occupy once packed.
func (e *Event) WireSize() uint32 {
	var payload uint32
	switch e.Type {
	case TypeKey:
		payload = KeyPayloadSize
	case TypeText:
		payload = TextPayloadSize
	case TypePaste:
		payload = PastePayloadSize + padTo4(uint32(len(e.Bytes)))
	case TypeMouse:
		payload = MousePayloadSize
	case TypeResize:
		payload = ResizePayloadSize
	case TypeTick:
		payload = TickPayloadSize
	case TypeUser:
		payload = UserPayloadSize + padTo4(uint32(len(e.Bytes)))
	}
	return RecordHeaderSize + payload
}

func padTo4(n uint32) uint32 {
	if n%4 == 0 {
		return n
	}
	return n + (4 - n%4)
}

// encodeRecord writes e's record header and payload into buf, which
// must be exactly e.WireSize() bytes. Padding bytes are always zeroed.
func encodeRecord(buf []byte, e *Event) {
	le := binary.LittleEndian
	size := e.WireSize()
	le.PutUint32(buf[0:4], uint32(e.Type))
	le.PutUint32(buf[4:8], size)
	le.PutUint32(buf[8:12], e.TimeMs)
	le.PutUint32(buf[12:16], 0)

	p := buf[RecordHeaderSize:]
	switch e.Type {
	case TypeKey:
		le.PutUint32(p[0:4], uint32(e.KeyCode))
		le.PutUint32(p[4:8], uint32(e.Modifiers))
		le.PutUint32(p[8:12], uint32(e.Action))
		le.PutUint32(p[12:16], 0)
	case TypeText:
		le.PutUint32(p[0:4], uint32(e.Scalar))
		le.PutUint32(p[4:8], 0)
	case TypePaste:
		le.PutUint32(p[0:4], uint32(len(e.Bytes)))
		le.PutUint32(p[4:8], 0)
		copy(p[8:], e.Bytes)
	case TypeMouse:
		le.PutUint32(p[0:4], uint32(e.X))
		le.PutUint32(p[4:8], uint32(e.Y))
		le.PutUint32(p[8:12], uint32(e.MouseKind))
		le.PutUint32(p[12:16], e.Buttons)
		le.PutUint32(p[16:20], uint32(e.Modifiers))
		le.PutUint32(p[20:24], uint32(e.WheelDX))
		le.PutUint32(p[24:28], uint32(e.WheelDY))
		le.PutUint32(p[28:32], 0)
	case TypeResize:
		le.PutUint32(p[0:4], e.Cols)
		le.PutUint32(p[4:8], e.Rows)
		le.PutUint32(p[8:12], e.PxWidth)
		le.PutUint32(p[12:16], e.PxHeight)
	case TypeTick:
		le.PutUint32(p[0:4], e.Seq)
		le.PutUint32(p[4:8], 0)
		le.PutUint32(p[8:12], 0)
		le.PutUint32(p[12:16], 0)
	case TypeUser:
		le.PutUint32(p[0:4], e.Tag)
		le.PutUint32(p[4:8], uint32(len(e.Bytes)))
		le.PutUint32(p[8:12], 0)
		le.PutUint32(p[12:16], 0)
		copy(p[16:], e.Bytes)
	}
}
