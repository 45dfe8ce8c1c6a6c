// Package drawlist implements the binary drawlist wire format: strict
// structural validation of a host-submitted byte buffer followed by
// in-order execution of its commands into a cell framebuffer. It is
// adapted from the binary little-endian framing idiom of a classic
// terminal emulator's snapshot serializer, generalized from "dump a
// buffer" into "validate then replay an untrusted command stream".
package drawlist

import "encoding/binary"

// Magic is the 4-byte little-endian drawlist header magic, "ZRDL".
var Magic = [4]byte{'Z', 'R', 'D', 'L'}

// HeaderSize is the fixed size of the drawlist header in bytes.
const HeaderSize = 64

// CommandHeaderSize is the fixed size of a command's tag in bytes.
const CommandHeaderSize = 8

// SpanEntrySize is the fixed size of one string/blob span table entry.
const SpanEntrySize = 8

// SupportedVersions is the pinned set of drawlist wire versions this
// engine build accepts.
var SupportedVersions = map[uint32]bool{1: true}

// Opcode identifies a drawlist command.
type Opcode uint16

const (
	OpClear       Opcode = 0
	OpFillRect    Opcode = 1
	OpDrawText    Opcode = 2
	OpPushClip    Opcode = 3
	OpPopClip     Opcode = 4
	OpDrawTextRun Opcode = 5
	OpSetCursor   Opcode = 6
	OpDefString   Opcode = 7
	OpFreeString  Opcode = 8
	OpDefBlob     Opcode = 9
	OpFreeBlob    Opcode = 10

	// OpDrawCanvas, OpDrawImage, and OpBlitRect (11-13) are reserved for
	// a v2+ wire extension this engine build does not implement.
	// SupportedVersions only accepts version 1, so a drawlist carrying
	// them is rejected at validation (unknown opcode) rather than
	// accepted and then failing at execution for lack of a handler; see
	// payloadSizes.
	OpDrawCanvas Opcode = 11
	OpDrawImage  Opcode = 12
	OpBlitRect   Opcode = 13
)

// DRAW_TEXT payload (40 bytes): x i32, y i32, string_id u32, byte_off
// u32, byte_len u32, reserved u32 (must be 0), style (16 bytes).
//
// FILL_RECT payload (32 bytes): rect_x i32, rect_y i32, rect_w i32,
// rect_h i32, style (16 bytes).
//
// PUSH_CLIP payload (16 bytes): rect_x i32, rect_y i32, rect_w i32,
// rect_h i32.
//
// DRAW_TEXT_RUN payload (16 bytes): x i32, y i32, blob_id u32, reserved
// u32 (must be 0). The blob it references holds (seg_count u32,
// segment[seg_count]), segment = style(16) + string_id u32 + byte_off
// u32 + byte_len u32 = 28 bytes.
//
// SET_CURSOR payload (8 bytes): x i16, y i16, shape u8, visible u8,
// blink u8, reserved u8 (must be 0). x/y of -1 leave that component
// unchanged.
//
// DEF_STRING / DEF_BLOB payload (8 bytes): id u32, source string_id/
// blob_id u32 (indexing this drawlist's own inline span table).
// FREE_STRING / FREE_BLOB payload (4 bytes): id u32.
//
// DRAW_TEXT's string_id indexes the drawlist's own inline strings table
// (the span array in the header, resolved structurally by the
// validator). DEF_STRING copies one such inline entry, named by its
// string_id, into the engine's persistent Store under a caller-chosen
// id; DRAW_TEXT_RUN segments then reference that persistent id,
// resolved at execution time since the Store's contents depend on
// which DEF_STRING/FREE_STRING commands have run, not on anything the
// validator alone can see. Blobs mirror this with DEF_BLOB/FREE_BLOB.

// payloadSizes gives the fixed payload size (after the 8-byte command
// header) for every opcode whose payload size is constant. DRAW_TEXT_RUN
// and the DEF_* opcodes also have a fixed command payload size (the
// variable part lives in the referenced blob/bytes, not the command
// itself). OpDrawCanvas/OpDrawImage/OpBlitRect are deliberately absent:
// this build has no executor handler for them, and PayloadSize's "known
// opcode" check is what the validator relies on to reject them cleanly
// at validation instead of passing them through to execution.
var payloadSizes = map[Opcode]uint32{
	OpClear:       0,
	OpFillRect:    32,
	OpDrawText:    40,
	OpPushClip:    16,
	OpPopClip:     0,
	OpDrawTextRun: 16,
	OpSetCursor:   8,
	OpDefString:   8,
	OpFreeString:  4,
	OpDefBlob:     8,
	OpFreeBlob:    4,
}

// PayloadSize returns the fixed post-header payload size for op and
// whether op is a recognized opcode at all.
func PayloadSize(op Opcode) (uint32, bool) {
	s, ok := payloadSizes[op]
	return s, ok
}

// Header is the decoded fixed 64-byte drawlist header.
type Header struct {
	Version            uint32
	HeaderSize         uint32
	TotalSize          uint32
	CmdOffset          uint32
	CmdBytes           uint32
	CmdCount           uint32
	StringsSpanOffset  uint32
	StringsCount       uint32
	StringsBytesOffset uint32
	StringsBytesLen    uint32
	BlobsSpanOffset    uint32
	BlobsCount         uint32
	BlobsBytesOffset   uint32
	BlobsBytesLen      uint32
	Reserved0          uint32
}

// decodeHeader reads the first HeaderSize bytes of buf as a Header. The
// caller must have already checked len(buf) >= HeaderSize and the magic.
func decodeHeader(buf []byte) Header {
	le := binary.LittleEndian
	return Header{
		Version:            le.Uint32(buf[4:8]),
		HeaderSize:         le.Uint32(buf[8:12]),
		TotalSize:          le.Uint32(buf[12:16]),
		CmdOffset:          le.Uint32(buf[16:20]),
		CmdBytes:           le.Uint32(buf[20:24]),
		CmdCount:           le.Uint32(buf[24:28]),
		StringsSpanOffset:  le.Uint32(buf[28:32]),
		StringsCount:       le.Uint32(buf[32:36]),
		StringsBytesOffset: le.Uint32(buf[36:40]),
		StringsBytesLen:    le.Uint32(buf[40:44]),
		BlobsSpanOffset:    le.Uint32(buf[44:48]),
		BlobsCount:         le.Uint32(buf[48:52]),
		BlobsBytesOffset:   le.Uint32(buf[52:56]),
		BlobsBytesLen:      le.Uint32(buf[56:60]),
		Reserved0:          le.Uint32(buf[60:64]),
	}
}

// CommandTag is a decoded 8-byte command header.
type CommandTag struct {
	Opcode Opcode
	Flags  uint16
	Size   uint32 // total size including this 8-byte tag, 4-byte aligned
}

func decodeCommandTag(buf []byte) CommandTag {
	le := binary.LittleEndian
	return CommandTag{
		Opcode: Opcode(le.Uint16(buf[0:2])),
		Flags:  le.Uint16(buf[2:4]),
		Size:   le.Uint32(buf[4:8]),
	}
}

// SpanEntry is one (offset, length) pair in a string/blob span table.
type SpanEntry struct {
	Off uint32
	Len uint32
}

func decodeSpanEntry(buf []byte) SpanEntry {
	le := binary.LittleEndian
	return SpanEntry{Off: le.Uint32(buf[0:4]), Len: le.Uint32(buf[4:8])}
}

// StyleWire is the 16-byte on-wire encoding of cellbuf.Style used inside
// FILL_RECT and DRAW_TEXT payloads.
//
//	byte 0-2:  fg r,g,b
//	byte 3-5:  bg r,g,b
//	byte 6-7:  attrs (u16 LE)
//	byte 8-11: reserved (u32 LE, must be 0 for v1)
//	byte 12-15: reserved2 (u32 LE, must be 0 for v1; v3 packs underline
//	            color + hyperlink ref here, gated on drawlist version)
const StyleWireSize = 16

func decodeStyleWire(buf []byte) (fgR, fgG, fgB, bgR, bgG, bgB uint8, attrs uint16, reserved, reserved2 uint32) {
	le := binary.LittleEndian
	return buf[0], buf[1], buf[2], buf[3], buf[4], buf[5], le.Uint16(buf[6:8]), le.Uint32(buf[8:12]), le.Uint32(buf[12:16])
}

// EncodeStyleWire is the inverse of decodeStyleWire, used by tests and
// by tools that synthesize drawlists.
func EncodeStyleWire(buf []byte, fgR, fgG, fgB, bgR, bgG, bgB uint8, attrs uint16) {
	le := binary.LittleEndian
	buf[0], buf[1], buf[2] = fgR, fgG, fgB
	buf[3], buf[4], buf[5] = bgR, bgG, bgB
	le.PutUint16(buf[6:8], attrs)
	le.PutUint32(buf[8:12], 0)
	le.PutUint32(buf[12:16], 0)
}

// SegmentSize is the fixed size of one DRAW_TEXT_RUN blob segment:
// style(16) + string_id(4) + byte_off(4) + byte_len(4).
const SegmentSize = 28

// Segment is one decoded DRAW_TEXT_RUN blob segment.
type Segment struct {
	FgR, FgG, FgB, BgR, BgG, BgB uint8
	Attrs                        uint16
	Reserved, Reserved2          uint32
	StringID                     uint32
	ByteOff                      uint32
	ByteLen                      uint32
}

func decodeSegment(buf []byte) Segment {
	fgR, fgG, fgB, bgR, bgG, bgB, attrs, reserved, reserved2 := decodeStyleWire(buf[0:16])
	le := binary.LittleEndian
	return Segment{
		FgR: fgR, FgG: fgG, FgB: fgB, BgR: bgR, BgG: bgG, BgB: bgB, Attrs: attrs,
		Reserved: reserved, Reserved2: reserved2,
		StringID: le.Uint32(buf[16:20]),
		ByteOff:  le.Uint32(buf[20:24]),
		ByteLen:  le.Uint32(buf[24:28]),
	}
}
