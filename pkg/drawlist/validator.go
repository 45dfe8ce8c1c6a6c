package drawlist

import (
	"github.com/vtengine/core/internal/fixedmath"
	"github.com/vtengine/core/pkg/vterr"
)

// Limits bounds everything the validator checks against, pinned at
// engine creation (spec §3 Limits).
type Limits struct {
	MaxTotalBytes   uint32
	MaxCommands     uint32
	MaxStrings      uint32
	MaxBlobs        uint32
	MaxCommandBytes uint32
	MaxClipDepth    int
	MaxTextRunSegs  uint32
}

// DefaultLimits returns a conservative, documented default set.
func DefaultLimits() Limits {
	return Limits{
		MaxTotalBytes:   4 << 20,
		MaxCommands:     1 << 16,
		MaxStrings:      1 << 14,
		MaxBlobs:        1 << 14,
		MaxCommandBytes: 1 << 20,
		MaxClipDepth:    64,
		MaxTextRunSegs:  4096,
	}
}

// CommandView is one validated command: its opcode and its payload
// slice (the bytes after the 8-byte tag).
type CommandView struct {
	Opcode  Opcode
	Payload []byte
}

// View is the validator's sole output: offsets and counts it has proven
// safe to execute, plus borrowed slices into the original buffer. It
// never mutates engine state and the executor never re-validates.
type View struct {
	Header      Header
	Commands    []CommandView
	StringSpans []SpanEntry
	StringBytes []byte
	BlobSpans   []SpanEntry
	BlobBytes   []byte
}

const op = "drawlist.Validate"

// Validate performs the full ordered structural check of buf and
// returns a View on success. On any failure it returns a *vterr.Error
// of the matching kind and the View is zero-valued; engine state is
// untouched either way, since Validate never sees engine state.
func Validate(buf []byte, limits Limits) (View, error) {
	if len(buf) < HeaderSize {
		return View{}, vterr.New(op, vterr.KindFormat,
			"buffer length %d smaller than header size %d", len(buf), HeaderSize)
	}
	if buf[0] != Magic[0] || buf[1] != Magic[1] || buf[2] != Magic[2] || buf[3] != Magic[3] {
		return View{}, vterr.New(op, vterr.KindFormat, "bad magic bytes")
	}
	h := decodeHeader(buf)
	if !SupportedVersions[h.Version] {
		return View{}, vterr.New(op, vterr.KindUnsupported, "unsupported drawlist version %d", h.Version)
	}
	if h.HeaderSize != HeaderSize {
		return View{}, vterr.New(op, vterr.KindFormat, "declared header_size %d != %d", h.HeaderSize, HeaderSize)
	}
	if h.Reserved0 != 0 {
		return View{}, vterr.New(op, vterr.KindFormat, "reserved0 must be zero")
	}
	if h.TotalSize > limits.MaxTotalBytes {
		return View{}, vterr.New(op, vterr.KindLimitExceeded, "total_size %d exceeds limit %d", h.TotalSize, limits.MaxTotalBytes)
	}
	if int(h.TotalSize) > len(buf) {
		return View{}, vterr.New(op, vterr.KindLimitExceeded, "total_size %d exceeds buffer length %d", h.TotalSize, len(buf))
	}
	if h.CmdCount > limits.MaxCommands {
		return View{}, vterr.New(op, vterr.KindLimitExceeded, "cmd_count %d exceeds limit %d", h.CmdCount, limits.MaxCommands)
	}
	if h.StringsCount > limits.MaxStrings {
		return View{}, vterr.New(op, vterr.KindLimitExceeded, "strings_count %d exceeds limit %d", h.StringsCount, limits.MaxStrings)
	}
	if h.BlobsCount > limits.MaxBlobs {
		return View{}, vterr.New(op, vterr.KindLimitExceeded, "blobs_count %d exceeds limit %d", h.BlobsCount, limits.MaxBlobs)
	}

	sections := []struct {
		name   string
		off    uint32
		size   uint32
		align4 bool
	}{
		{"cmd", h.CmdOffset, h.CmdBytes, true},
		{"strings_span", h.StringsSpanOffset, h.StringsCount * SpanEntrySize, true},
		{"strings_bytes", h.StringsBytesOffset, h.StringsBytesLen, true},
		{"blobs_span", h.BlobsSpanOffset, h.BlobsCount * SpanEntrySize, true},
		{"blobs_bytes", h.BlobsBytesOffset, h.BlobsBytesLen, true},
	}
	for _, s := range sections {
		if s.align4 && (!fixedmath.Aligned4(s.off) || !fixedmath.Aligned4(s.size)) {
			return View{}, vterr.New(op, vterr.KindFormat, "section %s not 4-byte aligned", s.name)
		}
		if !fixedmath.InRange(s.off, s.size, h.TotalSize) {
			return View{}, vterr.New(op, vterr.KindFormat, "section %s out of range", s.name)
		}
	}
	if overlaps(sections) {
		return View{}, vterr.New(op, vterr.KindFormat, "drawlist sections overlap")
	}

	stringSpans, err := validateSpans(buf, h.StringsSpanOffset, h.StringsCount, h.StringsBytesLen, "string")
	if err != nil {
		return View{}, err
	}
	blobSpans, err := validateSpans(buf, h.BlobsSpanOffset, h.BlobsCount, h.BlobsBytesLen, "blob")
	if err != nil {
		return View{}, err
	}

	cmds, err := validateCommands(buf, h, limits, stringSpans, blobSpans)
	if err != nil {
		return View{}, err
	}

	return View{
		Header:      h,
		Commands:    cmds,
		StringSpans: stringSpans,
		StringBytes: buf[h.StringsBytesOffset : h.StringsBytesOffset+h.StringsBytesLen],
		BlobSpans:   blobSpans,
		BlobBytes:   buf[h.BlobsBytesOffset : h.BlobsBytesOffset+h.BlobsBytesLen],
	}, nil
}

type sectionRange struct {
	name     string
	off, end uint32
}

func overlaps(sections []struct {
	name   string
	off    uint32
	size   uint32
	align4 bool
}) bool {
	var ranges []sectionRange
	for _, s := range sections {
		if s.size == 0 {
			continue
		}
		ranges = append(ranges, sectionRange{s.name, s.off, s.off + s.size})
	}
	for i := 0; i < len(ranges); i++ {
		for j := i + 1; j < len(ranges); j++ {
			a, b := ranges[i], ranges[j]
			if a.off < b.end && b.off < a.end {
				return true
			}
		}
	}
	return false
}

func validateSpans(buf []byte, spanOff, count, bytesLen uint32, kind string) ([]SpanEntry, error) {
	spans := make([]SpanEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		entryOff := spanOff + i*SpanEntrySize
		e := decodeSpanEntry(buf[entryOff : entryOff+SpanEntrySize])
		if !fixedmath.InRange(e.Off, e.Len, bytesLen) {
			return nil, vterr.New(op, vterr.KindFormat, "%s span %d out of range", kind, i)
		}
		spans = append(spans, e)
	}
	return spans, nil
}

func validateCommands(buf []byte, h Header, limits Limits, stringSpans, blobSpans []SpanEntry) ([]CommandView, error) {
	cmds := make([]CommandView, 0, h.CmdCount)
	cursor := h.CmdOffset
	end := h.CmdOffset + h.CmdBytes
	var count uint32
	for cursor < end {
		if !fixedmath.InRange(cursor, CommandHeaderSize, h.TotalSize) {
			return nil, vterr.New(op, vterr.KindFormat, "command tag at %d out of range", cursor)
		}
		tag := decodeCommandTag(buf[cursor : cursor+CommandHeaderSize])
		if tag.Flags != 0 {
			return nil, vterr.New(op, vterr.KindFormat, "command flags must be zero")
		}
		if !fixedmath.Aligned4(tag.Size) {
			return nil, vterr.New(op, vterr.KindFormat, "command size %d not 4-byte aligned", tag.Size)
		}
		if tag.Size > limits.MaxCommandBytes {
			return nil, vterr.New(op, vterr.KindLimitExceeded, "command size %d exceeds limit %d", tag.Size, limits.MaxCommandBytes)
		}
		if !fixedmath.InRange(cursor, tag.Size, end) {
			return nil, vterr.New(op, vterr.KindFormat, "command at %d with size %d exceeds cmd section", cursor, tag.Size)
		}
		wantPayload, known := PayloadSize(tag.Opcode)
		if !known {
			return nil, vterr.New(op, vterr.KindUnsupported, "unknown opcode %d", tag.Opcode)
		}
		gotPayload := tag.Size - CommandHeaderSize
		if gotPayload != wantPayload {
			return nil, vterr.New(op, vterr.KindFormat,
				"opcode %d payload size %d != expected %d", tag.Opcode, gotPayload, wantPayload)
		}
		payload := buf[cursor+CommandHeaderSize : cursor+tag.Size]
		if err := validatePayload(tag.Opcode, payload, h, stringSpans, blobSpans); err != nil {
			return nil, err
		}
		cmds = append(cmds, CommandView{Opcode: tag.Opcode, Payload: payload})
		count++
		if count > limits.MaxCommands {
			return nil, vterr.New(op, vterr.KindLimitExceeded, "command count exceeds limit %d", limits.MaxCommands)
		}
		cursor += tag.Size
	}
	if cursor != end {
		return nil, vterr.New(op, vterr.KindFormat, "command stream does not end exactly at cmd_bytes boundary")
	}
	if count != h.CmdCount {
		return nil, vterr.New(op, vterr.KindFormat, "decoded %d commands, header declared %d", count, h.CmdCount)
	}
	return cmds, nil
}

// validatePayload checks opcode-specific reserved-field and
// index-range invariants that the generic fixed-size check above
// cannot express. It never touches the framebuffer; string/blob id
// references are checked against the already-validated span tables, not
// against live engine-owned store state (DEF_STRING/DEF_BLOB bindings
// submitted in the very drawlist being validated are resolved at
// execution time, in submission order).
func validatePayload(opcode Opcode, payload []byte, h Header, stringSpans, blobSpans []SpanEntry) error {
	le := leReader{}
	switch opcode {
	case OpFillRect:
		if err := checkStyleWireReserved(le, payload, 16, "FILL_RECT"); err != nil {
			return err
		}
	case OpDrawText:
		stringID := le.u32(payload, 8)
		byteOff := le.u32(payload, 12)
		byteLen := le.u32(payload, 16)
		reserved := le.u32(payload, 20)
		if reserved != 0 {
			return vterr.New(op, vterr.KindFormat, "DRAW_TEXT reserved field must be zero")
		}
		if err := checkStyleWireReserved(le, payload, 24, "DRAW_TEXT"); err != nil {
			return err
		}
		if stringID == 0 || stringID > uint32(len(stringSpans)) {
			return vterr.New(op, vterr.KindFormat, "DRAW_TEXT string_id %d out of range", stringID)
		}
		span := stringSpans[stringID-1]
		if !fixedmath.InRange(byteOff, byteLen, span.Len) {
			return vterr.New(op, vterr.KindFormat, "DRAW_TEXT byte_off/byte_len out of range for string_id %d", stringID)
		}
	case OpPushClip:
		// x, y, w, h are caller-chosen ints; bounds against the
		// framebuffer are an execution-time concern (the framebuffer
		// dimensions aren't known to the validator), so only the fixed
		// size already checked applies here.
	case OpDrawTextRun:
		blobID := le.u32(payload, 8)
		reserved := le.u32(payload, 12)
		if reserved != 0 {
			return vterr.New(op, vterr.KindFormat, "DRAW_TEXT_RUN reserved field must be zero")
		}
		if blobID == 0 || blobID > uint32(len(blobSpans)) {
			return vterr.New(op, vterr.KindFormat, "DRAW_TEXT_RUN blob_id %d out of range", blobID)
		}
	case OpSetCursor:
		shape := payload[4]
		if shape > 2 {
			return vterr.New(op, vterr.KindFormat, "SET_CURSOR shape %d out of range", shape)
		}
		if payload[7] != 0 {
			return vterr.New(op, vterr.KindFormat, "SET_CURSOR reserved byte must be zero")
		}
	case OpDefString:
		id := le.u32(payload, 0)
		srcStringID := le.u32(payload, 4)
		if id == 0 {
			return vterr.New(op, vterr.KindFormat, "id 0 is reserved")
		}
		if srcStringID == 0 || srcStringID > uint32(len(stringSpans)) {
			return vterr.New(op, vterr.KindFormat, "DEF_STRING source string_id %d out of range", srcStringID)
		}
	case OpDefBlob:
		id := le.u32(payload, 0)
		srcBlobID := le.u32(payload, 4)
		if id == 0 {
			return vterr.New(op, vterr.KindFormat, "id 0 is reserved")
		}
		if srcBlobID == 0 || srcBlobID > uint32(len(blobSpans)) {
			return vterr.New(op, vterr.KindFormat, "DEF_BLOB source blob_id %d out of range", srcBlobID)
		}
	case OpFreeString, OpFreeBlob:
		id := le.u32(payload, 0)
		if id == 0 {
			return vterr.New(op, vterr.KindFormat, "id 0 is reserved")
		}
	}
	return nil
}

type leReader struct{}

func (leReader) u32(b []byte, off int) uint32 {
	return uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
}

// checkStyleWireReserved rejects a non-zero StyleWire reserved word
// (bytes 8-15 of the 16-byte style block starting at styleOff within
// payload; see StyleWire). v3's underline color/hyperlink extension
// reuses these bytes, but this engine build only accepts drawlist
// version 1, so both words must be zero.
func checkStyleWireReserved(le leReader, payload []byte, styleOff int, label string) error {
	reserved := le.u32(payload, styleOff+8)
	reserved2 := le.u32(payload, styleOff+12)
	if reserved != 0 || reserved2 != 0 {
		return vterr.New(op, vterr.KindFormat, "%s style reserved field must be zero", label)
	}
	return nil
}
