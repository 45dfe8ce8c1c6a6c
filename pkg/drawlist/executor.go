package drawlist

import (
	"encoding/binary"

	"github.com/vtengine/core/internal/fixedmath"
	"github.com/vtengine/core/internal/textmetrics"
	"github.com/vtengine/core/pkg/cellbuf"
	"github.com/vtengine/core/pkg/vterr"
)

// CursorIntent is the engine's tracked cursor placement request,
// mutated only by SET_CURSOR and consumed by the present path.
type CursorIntent struct {
	X, Y    int
	Shape   CursorShape
	Visible bool
	Blink   bool
}

// CursorShape enumerates SET_CURSOR's shape byte.
type CursorShape uint8

const (
	CursorBlock     CursorShape = 0
	CursorUnderline CursorShape = 1
	CursorBar       CursorShape = 2
)

// TextPolicy configures text-drawing behavior that is engine-wide, not
// per-command: tab expansion width and the ambiguous/emoji width
// policy handed to textmetrics.
type TextPolicy struct {
	TabWidth     int
	WidthPolicy  textmetrics.WidthPolicy
	DefaultStyle cellbuf.Style
}

const execOp = "drawlist.Execute"

// Execute walks a validated View's commands in order, mutating fb
// through painter, clip, and the engine's persistent string/blob
// store. The first failing command stops execution and returns its
// error; cells changed by earlier commands, and by earlier segments of
// a failing DRAW_TEXT_RUN, stay as they were left. Failures here are
// the checks the validator does not make: clip-stack overflow or
// underflow, a text-run blob's internal structure, and references into
// the persistent store (e.g. a freed string/blob id).
func Execute(view View, fb *cellbuf.Framebuffer, clip *cellbuf.ClipStack, store *Store, policy TextPolicy, cursor *CursorIntent, limits Limits) error {
	painter := cellbuf.NewPainter(fb, clip, policy.WidthPolicy)
	for i, cmd := range view.Commands {
		if err := executeOne(view, cmd, fb, painter, clip, store, policy, cursor, limits); err != nil {
			kind := vterr.KindFormat
			if ve, ok := err.(*vterr.Error); ok {
				kind = ve.Kind
			}
			return vterr.Wrap(execOp, kind, err, "command %d (opcode %d) failed", i, cmd.Opcode)
		}
	}
	return nil
}

func executeOne(view View, cmd CommandView, fb *cellbuf.Framebuffer, painter *cellbuf.Painter, clip *cellbuf.ClipStack, store *Store, policy TextPolicy, cursor *CursorIntent, limits Limits) error {
	le := binary.LittleEndian
	switch cmd.Opcode {
	case OpClear:
		painter.FillRect(fb.Bounds(), policy.DefaultStyle)
		return nil

	case OpFillRect:
		rect, style := decodeRectStyle(cmd.Payload)
		painter.FillRect(rect, style)
		return nil

	case OpDrawText:
		x := int(int32(le.Uint32(cmd.Payload[0:4])))
		y := int(int32(le.Uint32(cmd.Payload[4:8])))
		stringID := le.Uint32(cmd.Payload[8:12])
		byteOff := le.Uint32(cmd.Payload[12:16])
		byteLen := le.Uint32(cmd.Payload[16:20])
		fgR, fgG, fgB, bgR, bgG, bgB, attrs, _, _ := decodeStyleWire(cmd.Payload[24:40])
		style := cellbuf.Style{FgR: fgR, FgG: fgG, FgB: fgB, BgR: bgR, BgG: bgG, BgB: bgB, Attrs: cellbuf.AttrMask(attrs)}
		span := view.StringSpans[stringID-1]
		text := view.StringBytes[span.Off+byteOff : span.Off+byteOff+byteLen]
		painter.DrawTextBytes(x, y, expandTabs(text, policy.TabWidth), style)
		return nil

	case OpPushClip:
		x := int(int32(le.Uint32(cmd.Payload[0:4])))
		y := int(int32(le.Uint32(cmd.Payload[4:8])))
		w := int(int32(le.Uint32(cmd.Payload[8:12])))
		h := int(int32(le.Uint32(cmd.Payload[12:16])))
		if clip.Depth() >= limits.MaxClipDepth {
			return vterr.New(execOp, vterr.KindLimitExceeded, "clip stack depth exceeds limit %d", limits.MaxClipDepth)
		}
		clip.Push(cellbuf.Rect{MinX: x, MinY: y, MaxX: x + w, MaxY: y + h})
		return nil

	case OpPopClip:
		if !clip.Pop() {
			return vterr.New(execOp, vterr.KindFormat, "POP_CLIP with empty clip stack")
		}
		return nil

	case OpDrawTextRun:
		x := int(int32(le.Uint32(cmd.Payload[0:4])))
		y := int(int32(le.Uint32(cmd.Payload[4:8])))
		blobID := le.Uint32(cmd.Payload[8:12])
		blobSpan := view.BlobSpans[blobID-1]
		blob := view.BlobBytes[blobSpan.Off : blobSpan.Off+blobSpan.Len]
		return executeTextRun(x, y, blob, store, policy, painter, limits)

	case OpSetCursor:
		applySetCursor(cmd.Payload, cursor)
		return nil

	case OpDefString:
		id := le.Uint32(cmd.Payload[0:4])
		srcID := le.Uint32(cmd.Payload[4:8])
		span := view.StringSpans[srcID-1]
		store.DefString(id, view.StringBytes[span.Off:span.Off+span.Len])
		return nil

	case OpFreeString:
		store.FreeString(le.Uint32(cmd.Payload[0:4]))
		return nil

	case OpDefBlob:
		id := le.Uint32(cmd.Payload[0:4])
		srcID := le.Uint32(cmd.Payload[4:8])
		span := view.BlobSpans[srcID-1]
		store.DefBlob(id, view.BlobBytes[span.Off:span.Off+span.Len])
		return nil

	case OpFreeBlob:
		store.FreeBlob(le.Uint32(cmd.Payload[0:4]))
		return nil

	default:
		return vterr.New(execOp, vterr.KindUnsupported, "opcode %d has no executor handler", cmd.Opcode)
	}
}

func decodeRectStyle(payload []byte) (cellbuf.Rect, cellbuf.Style) {
	le := binary.LittleEndian
	x := int(int32(le.Uint32(payload[0:4])))
	y := int(int32(le.Uint32(payload[4:8])))
	w := int(int32(le.Uint32(payload[8:12])))
	h := int(int32(le.Uint32(payload[12:16])))
	fgR, fgG, fgB, bgR, bgG, bgB, attrs, _, _ := decodeStyleWire(payload[16:32])
	style := cellbuf.Style{FgR: fgR, FgG: fgG, FgB: fgB, BgR: bgR, BgG: bgG, BgB: bgB, Attrs: cellbuf.AttrMask(attrs)}
	return cellbuf.Rect{MinX: x, MinY: y, MaxX: x + w, MaxY: y + h}, style
}

func applySetCursor(payload []byte, cursor *CursorIntent) {
	x := int(int16(binary.LittleEndian.Uint16(payload[0:2])))
	y := int(int16(binary.LittleEndian.Uint16(payload[2:4])))
	shape := CursorShape(payload[4])
	visible := payload[5] != 0
	blink := payload[6] != 0
	if x != -1 {
		cursor.X = x
	}
	if y != -1 {
		cursor.Y = y
	}
	cursor.Shape = shape
	cursor.Visible = visible
	cursor.Blink = blink
}

// executeTextRun resolves a DRAW_TEXT_RUN blob's internal
// (seg_count, segment[]) structure, which the validator could not
// check because its length formula depends on seg_count itself, and
// draws each segment left to right, stopping at the current clip's
// right edge.
func executeTextRun(x, y int, blob []byte, store *Store, policy TextPolicy, painter *cellbuf.Painter, limits Limits) error {
	if len(blob) < 4 {
		return vterr.New(execOp, vterr.KindFormat, "DRAW_TEXT_RUN blob shorter than seg_count field")
	}
	segCount := binary.LittleEndian.Uint32(blob[0:4])
	if segCount > limits.MaxTextRunSegs {
		return vterr.New(execOp, vterr.KindLimitExceeded, "DRAW_TEXT_RUN seg_count %d exceeds limit %d", segCount, limits.MaxTextRunSegs)
	}
	want, ok := fixedmath.AddU32(4, segCount*SegmentSize)
	if !ok || uint32(len(blob)) != want {
		return vterr.New(execOp, vterr.KindFormat, "DRAW_TEXT_RUN blob length %d != 4 + seg_count*%d", len(blob), SegmentSize)
	}

	cursor := x
	for i := uint32(0); i < segCount; i++ {
		off := 4 + i*SegmentSize
		seg := decodeSegment(blob[off : off+SegmentSize])
		if seg.Reserved != 0 || seg.Reserved2 != 0 {
			return vterr.New(execOp, vterr.KindFormat, "DRAW_TEXT_RUN segment %d style reserved field must be zero", i)
		}
		text, ok := store.LookupString(seg.StringID)
		if !ok {
			return vterr.New(execOp, vterr.KindFormat, "DRAW_TEXT_RUN segment %d references unbound string_id %d", i, seg.StringID)
		}
		if !fixedmath.InRange(seg.ByteOff, seg.ByteLen, uint32(len(text))) {
			return vterr.New(execOp, vterr.KindFormat, "DRAW_TEXT_RUN segment %d byte_off/byte_len out of range", i)
		}
		style := cellbuf.Style{FgR: seg.FgR, FgG: seg.FgG, FgB: seg.FgB, BgR: seg.BgR, BgG: seg.BgG, BgB: seg.BgB, Attrs: cellbuf.AttrMask(seg.Attrs)}
		slice := text[seg.ByteOff : seg.ByteOff+seg.ByteLen]
		written := painter.DrawTextBytes(cursor, y, expandTabs(slice, policy.TabWidth), style)
		if written == 0 && len(slice) > 0 {
			// Clip edge reached; later segments would draw further
			// right of an already-exhausted row, so stop here.
			break
		}
		cursor += advanceWidth(slice, policy)
	}
	return nil
}

func advanceWidth(text []byte, policy TextPolicy) int {
	total := 0
	it := textmetrics.NewGraphemeIter(text)
	for {
		off, size, ok := it.Next()
		if !ok {
			break
		}
		total += textmetrics.GraphemeWidth(string(text[off:off+size]), policy.WidthPolicy)
	}
	return total
}

// expandTabs replaces each 0x09 byte with enough spaces to reach the
// next tab stop at the given width (8 when tabWidth <= 0). The column
// counts bytes from the start of text, so a multi-byte UTF-8 sequence
// before a tab counts as several columns, and tab stops are relative to
// the start of each DRAW_TEXT/segment since the executor doesn't track
// absolute column state across calls.
func expandTabs(text []byte, tabWidth int) []byte {
	if tabWidth <= 0 {
		tabWidth = 8
	}
	hasTab := false
	for _, b := range text {
		if b == '\t' {
			hasTab = true
			break
		}
	}
	if !hasTab {
		return text
	}
	out := make([]byte, 0, len(text)+tabWidth)
	col := 0
	for _, b := range text {
		if b == '\t' {
			n := tabWidth - (col % tabWidth)
			for i := 0; i < n; i++ {
				out = append(out, ' ')
			}
			col += n
			continue
		}
		out = append(out, b)
		col++
	}
	return out
}
