// Package metrics holds the engine's best-effort per-frame statistics
// snapshot and its prefix-copy ABI contract (spec §6 get_metrics),
// grounded on the struct-copy snapshot pattern in the teacher's
// terminal.BufferSnapshot / termsocket Info types: callers get a plain
// value copy, never a live reference into engine state.
package metrics

import "github.com/vtengine/core/pkg/vterr"

const getOp = "metrics.Get"

// Snapshot is the engine's metrics struct. Field order is append-only
// across versions so that a prefix copy between differently-sized
// structs (spec §6) is always meaningful: older callers just don't see
// newer trailing fields.
type Snapshot struct {
	StructSize uint32

	FrameIndex    uint64
	BytesEmitted  uint64
	FramesDropped uint64

	DamageRects        uint32
	RowsRepainted      uint32
	DamageFullFrame    bool
	ScrollOptimized    bool
	CollisionGuardHits uint64

	EventsDropped  uint64
	EventsQueued   uint64
	QueueHighWater uint32

	LastPresentMS    int64
	LastPresentNanos int64
}

// Size is this build's own struct_size in the sense spec §6 means it:
// the number of logical fields copyable by Get, not a byte count of an
// unstable in-memory layout.
const Size = 14

// Get implements the prefix-copy contract: dst receives min(dst's
// declared struct_size, Size) fields from src, in field order. A
// struct_size between 1 and 3 is invalid (spec §6): the first three
// fields (StructSize, FrameIndex, BytesEmitted) are not independently
// meaningful without FramesDropped alongside them in this layout's
// groupings, so partial copies that split a logical group are
// rejected rather than silently truncating mid-group.
func Get(src Snapshot, structSize uint32) (Snapshot, error) {
	if structSize >= 1 && structSize <= 3 {
		return Snapshot{}, vterr.New(getOp, vterr.KindInvalidArgument,
			"struct_size %d splits the first field group", structSize)
	}
	if structSize == 0 {
		return Snapshot{}, nil
	}
	n := structSize
	if n > Size {
		n = Size
	}
	return truncate(src, n), nil
}

// truncate zeroes every field beyond the nth in declaration order,
// implementing the "copy min(struct_size, own_struct_size) bytes"
// contract at the field granularity this Go representation uses
// instead of a raw byte count.
func truncate(src Snapshot, n uint32) Snapshot {
	var out Snapshot
	fields := []func(){
		func() { out.StructSize = src.StructSize },
		func() { out.FrameIndex = src.FrameIndex },
		func() { out.BytesEmitted = src.BytesEmitted },
		func() { out.FramesDropped = src.FramesDropped },
		func() { out.DamageRects = src.DamageRects },
		func() { out.RowsRepainted = src.RowsRepainted },
		func() { out.DamageFullFrame = src.DamageFullFrame },
		func() { out.ScrollOptimized = src.ScrollOptimized },
		func() { out.CollisionGuardHits = src.CollisionGuardHits },
		func() { out.EventsDropped = src.EventsDropped },
		func() { out.EventsQueued = src.EventsQueued },
		func() { out.QueueHighWater = src.QueueHighWater },
		func() { out.LastPresentMS = src.LastPresentMS },
		func() { out.LastPresentNanos = src.LastPresentNanos },
	}
	for i := uint32(0); i < n && int(i) < len(fields); i++ {
		fields[i]()
	}
	return out
}

// Collector accumulates per-frame statistics into a Snapshot, owned
// exclusively by the engine thread (spec §9 "all other engine state is
// engine-thread exclusive").
type Collector struct {
	snap Snapshot
}

// Current returns a copy of the accumulated snapshot.
func (c *Collector) Current() Snapshot {
	return c.snap
}

// RecordPresent folds one present() call's outcome into the running
// snapshot.
func (c *Collector) RecordPresent(bytesEmitted int, damageRects, rowsRepainted int, fullFrame, scrollOptimized bool, collisionGuardHits int, nowMS int64) {
	c.snap.FrameIndex++
	c.snap.BytesEmitted += uint64(bytesEmitted)
	c.snap.DamageRects = uint32(damageRects)
	c.snap.RowsRepainted = uint32(rowsRepainted)
	c.snap.DamageFullFrame = fullFrame
	c.snap.ScrollOptimized = scrollOptimized
	c.snap.CollisionGuardHits += uint64(collisionGuardHits)
	c.snap.LastPresentMS = nowMS
}

// RecordPresentDropped counts a present() call that backed off without
// writing (e.g. the output-writable wait timed out).
func (c *Collector) RecordPresentDropped() {
	c.snap.FramesDropped++
}

// RecordEventQueueState updates the queue occupancy/drop fields after
// an enqueue or poll.
func (c *Collector) RecordEventQueueState(queued int, dropped uint64) {
	c.snap.EventsQueued = uint64(queued)
	c.snap.EventsDropped = dropped
	if uint32(queued) > c.snap.QueueHighWater {
		c.snap.QueueHighWater = uint32(queued)
	}
}
