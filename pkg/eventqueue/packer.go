package eventqueue

import (
	"encoding/binary"

	"github.com/vtengine/core/pkg/vterr"
)

const packOp = "eventqueue.Pack"

// Pack drains q into buf as a self-framed event batch, following the
// five-step algorithm:
//  1. If buf cannot hold the batch header, fail with "limit".
//  2. Write the header with placeholder counts, advance the cursor.
//  3. While the queue is non-empty and the next record (plus its
//     alignment padding — already folded into Event.WireSize) fits,
//     pop and emit it.
//  4. If a record would not fit, stop and set the truncated flag; no
//     partial record is ever written.
//  5. Patch total_size, event_count, and flags in the header.
//
// Pack returns the number of bytes written. Truncation is a success
// with a positive byte count, not an error.
func Pack(q *Queue, buf []byte) (int, error) {
	if len(buf) < BatchHeaderSize {
		return 0, vterr.New(packOp, vterr.KindLimitExceeded,
			"buffer length %d smaller than batch header size %d", len(buf), BatchHeaderSize)
	}
	le := binary.LittleEndian
	copy(buf[0:4], Magic[:])
	le.PutUint32(buf[4:8], BatchVersion)
	le.PutUint32(buf[8:12], 0) // total_size, patched below
	le.PutUint32(buf[12:16], 0) // event_count, patched below
	le.PutUint32(buf[16:20], 0) // flags, patched below
	le.PutUint32(buf[20:24], 0) // reserved0

	cursor := BatchHeaderSize
	count := uint32(0)
	truncated := false
	for {
		e, ok := q.Peek()
		if !ok {
			break
		}
		size := int(e.WireSize())
		if cursor+size > len(buf) {
			truncated = true
			break
		}
		encodeRecord(buf[cursor:cursor+size], &e)
		cursor += size
		count++
		q.Pop()
	}

	var flags uint32
	if truncated {
		flags |= TruncatedFlag
	}
	le.PutUint32(buf[8:12], uint32(cursor))
	le.PutUint32(buf[12:16], count)
	le.PutUint32(buf[16:20], flags)

	return cursor, nil
}
