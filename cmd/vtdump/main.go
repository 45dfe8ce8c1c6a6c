// Command vtdump is a small introspection tool: given a drawlist or
// packed event-batch file, it detects which one it is by magic bytes
// and prints its header fields and contents, reusing
// pkg/drawlist.Validate as the authoritative parser for drawlists
// rather than re-implementing structural checks here. Grounded on
// cmd/vt/main.go's plain-main, no-flag-library shape.
package main

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/vtengine/core/pkg/drawlist"
	"github.com/vtengine/core/pkg/eventqueue"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: vtdump <file>\n")
		os.Exit(2)
	}
	buf, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "vtdump: %v\n", err)
		os.Exit(1)
	}

	switch {
	case len(buf) >= 4 && string(buf[0:4]) == string(drawlist.Magic[:]):
		err = dumpDrawlist(buf)
	case len(buf) >= 4 && string(buf[0:4]) == string(eventqueue.Magic[:]):
		err = dumpEventBatch(buf)
	default:
		err = fmt.Errorf("unrecognized magic bytes %q", buf[:min(4, len(buf))])
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "vtdump: %v\n", err)
		os.Exit(1)
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

var opcodeNames = map[drawlist.Opcode]string{
	drawlist.OpClear:       "CLEAR",
	drawlist.OpFillRect:    "FILL_RECT",
	drawlist.OpDrawText:    "DRAW_TEXT",
	drawlist.OpPushClip:    "PUSH_CLIP",
	drawlist.OpPopClip:     "POP_CLIP",
	drawlist.OpDrawTextRun: "DRAW_TEXT_RUN",
	drawlist.OpSetCursor:   "SET_CURSOR",
	drawlist.OpDefString:   "DEF_STRING",
	drawlist.OpFreeString:  "FREE_STRING",
	drawlist.OpDefBlob:     "DEF_BLOB",
	drawlist.OpFreeBlob:    "FREE_BLOB",
	drawlist.OpDrawCanvas:  "DRAW_CANVAS",
	drawlist.OpDrawImage:   "DRAW_IMAGE",
	drawlist.OpBlitRect:    "BLIT_RECT",
}

func dumpDrawlist(buf []byte) error {
	view, err := drawlist.Validate(buf, drawlist.DefaultLimits())
	if err != nil {
		fmt.Printf("drawlist: INVALID: %v\n", err)
		return nil
	}
	h := view.Header
	fmt.Printf("drawlist: version=%d total_size=%d cmd_count=%d strings=%d blobs=%d\n",
		h.Version, h.TotalSize, h.CmdCount, h.StringsCount, h.BlobsCount)
	for i, c := range view.Commands {
		name, ok := opcodeNames[c.Opcode]
		if !ok {
			name = fmt.Sprintf("opcode(%d)", c.Opcode)
		}
		fmt.Printf("  [%4d] %-14s payload=%d bytes\n", i, name, len(c.Payload))
	}
	fmt.Printf("strings: %d spans, %d bytes\n", len(view.StringSpans), len(view.StringBytes))
	fmt.Printf("blobs:   %d spans, %d bytes\n", len(view.BlobSpans), len(view.BlobBytes))
	return nil
}

// dumpEventBatch parses a packed event batch by hand: eventqueue has no
// exported decoder symmetric with Pack, since the engine's only reader
// of this format is the host, not this codebase.
func dumpEventBatch(buf []byte) error {
	if len(buf) < eventqueue.BatchHeaderSize {
		return fmt.Errorf("buffer length %d smaller than batch header size %d", len(buf), eventqueue.BatchHeaderSize)
	}
	le := binary.LittleEndian
	version := le.Uint32(buf[4:8])
	totalSize := le.Uint32(buf[8:12])
	eventCount := le.Uint32(buf[12:16])
	flags := le.Uint32(buf[16:20])
	if version != eventqueue.BatchVersion {
		return fmt.Errorf("unsupported event batch version %d", version)
	}
	if int(totalSize) > len(buf) {
		return fmt.Errorf("total_size %d exceeds buffer length %d", totalSize, len(buf))
	}
	fmt.Printf("event batch: version=%d total_size=%d event_count=%d truncated=%v\n",
		version, totalSize, eventCount, flags&eventqueue.TruncatedFlag != 0)

	cursor := uint32(eventqueue.BatchHeaderSize)
	for i := uint32(0); i < eventCount; i++ {
		if cursor+eventqueue.RecordHeaderSize > totalSize {
			return fmt.Errorf("record %d header at %d exceeds total_size %d", i, cursor, totalSize)
		}
		typ := le.Uint32(buf[cursor : cursor+4])
		size := le.Uint32(buf[cursor+4 : cursor+8])
		timeMs := le.Uint32(buf[cursor+8 : cursor+12])
		if size < eventqueue.RecordHeaderSize || cursor+size > totalSize {
			return fmt.Errorf("record %d at %d declares invalid size %d", i, cursor, size)
		}
		fmt.Printf("  [%4d] type=%-7s time_ms=%-8d size=%d\n", i, eventTypeName(eventqueue.Type(typ)), timeMs, size)
		cursor += size
	}
	if cursor != totalSize {
		return fmt.Errorf("decoded records end at %d, header declared total_size %d", cursor, totalSize)
	}
	return nil
}

func eventTypeName(t eventqueue.Type) string {
	switch t {
	case eventqueue.TypeKey:
		return "KEY"
	case eventqueue.TypeText:
		return "TEXT"
	case eventqueue.TypePaste:
		return "PASTE"
	case eventqueue.TypeMouse:
		return "MOUSE"
	case eventqueue.TypeResize:
		return "RESIZE"
	case eventqueue.TypeTick:
		return "TICK"
	case eventqueue.TypeUser:
		return "USER"
	default:
		return fmt.Sprintf("type(%d)", t)
	}
}
