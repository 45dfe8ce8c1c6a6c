package drawlist

import "encoding/binary"

// dlBuilder assembles a well-formed drawlist byte buffer for tests.
// It is intentionally naive (no alignment helpers beyond manual
// padding) so tests stay legible as worked examples of the wire
// format, not as a wrapper around the production encoder.
type dlBuilder struct {
	cmds        []byte
	cmdCount    uint32
	stringSpans []byte
	stringBytes []byte
	stringCount uint32
	blobSpans   []byte
	blobBytes   []byte
	blobCount   uint32
}

func pad(b []byte) []byte {
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	return b
}

func (d *dlBuilder) addCommand(opcode Opcode, payload []byte) {
	tag := make([]byte, CommandHeaderSize)
	binary.LittleEndian.PutUint16(tag[0:2], uint16(opcode))
	binary.LittleEndian.PutUint16(tag[2:4], 0)
	binary.LittleEndian.PutUint32(tag[4:8], uint32(CommandHeaderSize+len(payload)))
	d.cmds = append(d.cmds, tag...)
	d.cmds = append(d.cmds, payload...)
	d.cmds = pad(d.cmds)
	d.cmdCount++
}

// addString appends data to the inline string table and returns its
// 1-based string_id.
func (d *dlBuilder) addString(data []byte) uint32 {
	off := uint32(len(d.stringBytes))
	d.stringBytes = append(d.stringBytes, data...)
	d.stringBytes = pad(d.stringBytes)
	span := make([]byte, SpanEntrySize)
	binary.LittleEndian.PutUint32(span[0:4], off)
	binary.LittleEndian.PutUint32(span[4:8], uint32(len(data)))
	d.stringSpans = append(d.stringSpans, span...)
	d.stringCount++
	return d.stringCount
}

// addBlob appends data to the inline blob table and returns its 1-based
// blob_id.
func (d *dlBuilder) addBlob(data []byte) uint32 {
	off := uint32(len(d.blobBytes))
	d.blobBytes = append(d.blobBytes, data...)
	d.blobBytes = pad(d.blobBytes)
	span := make([]byte, SpanEntrySize)
	binary.LittleEndian.PutUint32(span[0:4], off)
	binary.LittleEndian.PutUint32(span[4:8], uint32(len(data)))
	d.blobSpans = append(d.blobSpans, span...)
	d.blobCount++
	return d.blobCount
}

func (d *dlBuilder) build() []byte {
	cmdOffset := uint32(HeaderSize)
	cmdBytes := uint32(len(d.cmds))
	stringsSpanOffset := cmdOffset + cmdBytes
	stringsBytesOffset := stringsSpanOffset + uint32(len(d.stringSpans))
	blobsSpanOffset := stringsBytesOffset + uint32(len(d.stringBytes))
	blobsBytesOffset := blobsSpanOffset + uint32(len(d.blobSpans))
	totalSize := blobsBytesOffset + uint32(len(d.blobBytes))

	buf := make([]byte, totalSize)
	copy(buf[0:4], Magic[:])
	le := binary.LittleEndian
	le.PutUint32(buf[4:8], 1) // version
	le.PutUint32(buf[8:12], HeaderSize)
	le.PutUint32(buf[12:16], totalSize)
	le.PutUint32(buf[16:20], cmdOffset)
	le.PutUint32(buf[20:24], cmdBytes)
	le.PutUint32(buf[24:28], d.cmdCount)
	le.PutUint32(buf[28:32], stringsSpanOffset)
	le.PutUint32(buf[32:36], d.stringCount)
	le.PutUint32(buf[36:40], stringsBytesOffset)
	le.PutUint32(buf[40:44], uint32(len(d.stringBytes)))
	le.PutUint32(buf[44:48], blobsSpanOffset)
	le.PutUint32(buf[48:52], d.blobCount)
	le.PutUint32(buf[52:56], blobsBytesOffset)
	le.PutUint32(buf[56:60], uint32(len(d.blobBytes)))
	le.PutUint32(buf[60:64], 0)

	copy(buf[cmdOffset:], d.cmds)
	copy(buf[stringsSpanOffset:], d.stringSpans)
	copy(buf[stringsBytesOffset:], d.stringBytes)
	copy(buf[blobsSpanOffset:], d.blobSpans)
	copy(buf[blobsBytesOffset:], d.blobBytes)
	return buf
}

func rectStylePayload(x, y, w, h int32, fgR, fgG, fgB, bgR, bgG, bgB uint8, attrs uint16) []byte {
	p := make([]byte, 32)
	le := binary.LittleEndian
	le.PutUint32(p[0:4], uint32(x))
	le.PutUint32(p[4:8], uint32(y))
	le.PutUint32(p[8:12], uint32(w))
	le.PutUint32(p[12:16], uint32(h))
	EncodeStyleWire(p[16:32], fgR, fgG, fgB, bgR, bgG, bgB, attrs)
	return p
}

func drawTextPayload(x, y int32, stringID, byteOff, byteLen uint32, fgR, fgG, fgB, bgR, bgG, bgB uint8, attrs uint16) []byte {
	p := make([]byte, 40)
	le := binary.LittleEndian
	le.PutUint32(p[0:4], uint32(x))
	le.PutUint32(p[4:8], uint32(y))
	le.PutUint32(p[8:12], stringID)
	le.PutUint32(p[12:16], byteOff)
	le.PutUint32(p[16:20], byteLen)
	le.PutUint32(p[20:24], 0)
	EncodeStyleWire(p[24:40], fgR, fgG, fgB, bgR, bgG, bgB, attrs)
	return p
}

func pushClipPayload(x, y, w, h int32) []byte {
	p := make([]byte, 16)
	le := binary.LittleEndian
	le.PutUint32(p[0:4], uint32(x))
	le.PutUint32(p[4:8], uint32(y))
	le.PutUint32(p[8:12], uint32(w))
	le.PutUint32(p[12:16], uint32(h))
	return p
}

func defStringPayload(id, srcStringID uint32) []byte {
	p := make([]byte, 8)
	le := binary.LittleEndian
	le.PutUint32(p[0:4], id)
	le.PutUint32(p[4:8], srcStringID)
	return p
}

func drawTextRunPayload(x, y int32, blobID uint32) []byte {
	p := make([]byte, 16)
	le := binary.LittleEndian
	le.PutUint32(p[0:4], uint32(x))
	le.PutUint32(p[4:8], uint32(y))
	le.PutUint32(p[8:12], blobID)
	le.PutUint32(p[12:16], 0)
	return p
}

func segmentPayload(fgR, fgG, fgB, bgR, bgG, bgB uint8, attrs uint16, stringID, byteOff, byteLen uint32) []byte {
	p := make([]byte, SegmentSize)
	EncodeStyleWire(p[0:16], fgR, fgG, fgB, bgR, bgG, bgB, attrs)
	le := binary.LittleEndian
	le.PutUint32(p[16:20], stringID)
	le.PutUint32(p[20:24], byteOff)
	le.PutUint32(p[24:28], byteLen)
	return p
}

func u32le(v uint32) []byte {
	p := make([]byte, 4)
	binary.LittleEndian.PutUint32(p, v)
	return p
}

func setCursorPayload(x, y int16, shape byte, visible, blink bool) []byte {
	p := make([]byte, 8)
	le := binary.LittleEndian
	le.PutUint16(p[0:2], uint16(x))
	le.PutUint16(p[2:4], uint16(y))
	p[4] = shape
	if visible {
		p[5] = 1
	}
	if blink {
		p[6] = 1
	}
	return p
}
