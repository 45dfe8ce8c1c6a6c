// Package bytewriter provides an append-only cursor over a caller-owned
// byte slice that fails atomically instead of growing past its capacity.
// It never retains the slice beyond the call that created it.
package bytewriter

import (
	"encoding/binary"
	"strconv"
)

// Builder writes into a fixed caller-provided buffer. It never
// reallocates and never writes past cap(buf).
type Builder struct {
	buf    []byte
	cursor int
}

// New wraps buf for writing starting at offset 0.
func New(buf []byte) *Builder {
	return &Builder{buf: buf}
}

// Len returns the number of bytes written so far.
func (b *Builder) Len() int { return b.cursor }

// Cap returns the total capacity available to the builder.
func (b *Builder) Cap() int { return len(b.buf) }

// Remaining returns the number of bytes still free.
func (b *Builder) Remaining() int { return len(b.buf) - b.cursor }

// Bytes returns the bytes written so far.
func (b *Builder) Bytes() []byte { return b.buf[:b.cursor] }

// Append writes p, returning false without writing anything if it would
// not fit.
func (b *Builder) Append(p []byte) bool {
	if len(p) > b.Remaining() {
		return false
	}
	b.cursor += copy(b.buf[b.cursor:], p)
	return true
}

// AppendByte writes a single byte.
func (b *Builder) AppendByte(c byte) bool {
	if b.Remaining() < 1 {
		return false
	}
	b.buf[b.cursor] = c
	b.cursor++
	return true
}

// AppendString writes the bytes of s.
func (b *Builder) AppendString(s string) bool {
	return b.Append([]byte(s))
}

// AppendDecimal writes the base-10 representation of v.
func (b *Builder) AppendDecimal(v int) bool {
	return b.AppendString(strconv.Itoa(v))
}

// AppendUint32LE writes v little-endian.
func (b *Builder) AppendUint32LE(v uint32) bool {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return b.Append(tmp[:])
}

// AppendUint16LE writes v little-endian.
func (b *Builder) AppendUint16LE(v uint16) bool {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return b.Append(tmp[:])
}

// Pad appends n zero bytes, used to reach 4-byte alignment.
func (b *Builder) Pad(n int) bool {
	if n <= 0 {
		return true
	}
	if b.Remaining() < n {
		return false
	}
	for i := 0; i < n; i++ {
		b.buf[b.cursor] = 0
		b.cursor++
	}
	return true
}

// PadTo4 appends zero bytes until Len() is a multiple of 4.
func (b *Builder) PadTo4() bool {
	rem := b.cursor % 4
	if rem == 0 {
		return true
	}
	return b.Pad(4 - rem)
}
