package eventqueue

import (
	"encoding/binary"
	"testing"
)

func TestPackEmptyQueue(t *testing.T) {
	q := New(4, 64, 256)
	buf := make([]byte, 128)
	n, err := Pack(q, buf)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	if n != BatchHeaderSize {
		t.Errorf("expected header-only batch of %d bytes, got %d", BatchHeaderSize, n)
	}
	verifyBatchHeader(t, buf, n, 0, false)
}

func TestPackSingleKeyEvent(t *testing.T) {
	q := New(4, 64, 256)
	q.Push(Event{Type: TypeKey, KeyCode: KeyEnter, Action: KeyActionPress})

	buf := make([]byte, 128)
	n, err := Pack(q, buf)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	wantSize := BatchHeaderSize + RecordHeaderSize + KeyPayloadSize
	if n != wantSize {
		t.Fatalf("expected %d bytes, got %d", wantSize, n)
	}
	verifyBatchHeader(t, buf, n, 1, false)

	recType := binary.LittleEndian.Uint32(buf[BatchHeaderSize : BatchHeaderSize+4])
	if Type(recType) != TypeKey {
		t.Errorf("expected record type KEY, got %d", recType)
	}
	if q.Len() != 0 {
		t.Errorf("expected event consumed from queue, got len %d", q.Len())
	}
}

func TestPackTruncationSetsFlagAndLeavesEventQueued(t *testing.T) {
	q := New(4, 256, 1024)
	q.Push(Event{Type: TypeKey})
	q.Push(Event{Type: TypeKey})

	// 24-byte header + one 32-byte key record (16+16) = 56; a 56-byte
	// buffer holds exactly one record.
	buf := make([]byte, 56)
	n, err := Pack(q, buf)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	if n != 56 {
		t.Fatalf("expected exactly 56 bytes written, got %d", n)
	}
	verifyBatchHeader(t, buf, n, 1, true)
	if q.Len() != 1 {
		t.Errorf("expected 1 event left queued after truncation, got %d", q.Len())
	}
}

func TestPackFitsBothRecordsWithLargerBuffer(t *testing.T) {
	q := New(4, 256, 1024)
	q.Push(Event{Type: TypeKey})
	q.Push(Event{Type: TypeKey})

	buf := make([]byte, 88)
	n, err := Pack(q, buf)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	if n != 88 {
		t.Fatalf("expected exactly 88 bytes written, got %d", n)
	}
	verifyBatchHeader(t, buf, n, 2, false)
	if q.Len() != 0 {
		t.Errorf("expected queue drained, got len %d", q.Len())
	}
}

func TestPackRejectsBufferSmallerThanHeader(t *testing.T) {
	q := New(4, 64, 256)
	buf := make([]byte, BatchHeaderSize-1)
	if _, err := Pack(q, buf); err == nil {
		t.Fatalf("expected error for undersized buffer")
	}
}

func TestPackPastePayloadPadding(t *testing.T) {
	q := New(4, 64, 256)
	q.Push(Event{Type: TypePaste, Bytes: []byte("ab")}) // 2 bytes, pads to 4

	buf := make([]byte, 128)
	n, err := Pack(q, buf)
	if err != nil {
		t.Fatalf("Pack failed: %v", err)
	}
	wantSize := BatchHeaderSize + RecordHeaderSize + PastePayloadSize + 4
	if n != wantSize {
		t.Fatalf("expected %d bytes (padded), got %d", wantSize, n)
	}
}

func verifyBatchHeader(t *testing.T, buf []byte, totalWritten int, wantCount uint32, wantTruncated bool) {
	t.Helper()
	if string(buf[0:4]) != "ZREV" {
		t.Errorf("expected magic ZREV, got %q", buf[0:4])
	}
	version := binary.LittleEndian.Uint32(buf[4:8])
	if version != BatchVersion {
		t.Errorf("expected version %d, got %d", BatchVersion, version)
	}
	totalSize := binary.LittleEndian.Uint32(buf[8:12])
	if int(totalSize) != totalWritten {
		t.Errorf("expected total_size %d, got %d", totalWritten, totalSize)
	}
	count := binary.LittleEndian.Uint32(buf[12:16])
	if count != wantCount {
		t.Errorf("expected event_count %d, got %d", wantCount, count)
	}
	flags := binary.LittleEndian.Uint32(buf[16:20])
	truncated := flags&TruncatedFlag != 0
	if truncated != wantTruncated {
		t.Errorf("expected truncated=%v, got %v", wantTruncated, truncated)
	}
}
