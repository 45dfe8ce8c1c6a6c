package metrics

import "testing"

func TestGetZeroIsNoopSuccess(t *testing.T) {
	src := Snapshot{FrameIndex: 5, BytesEmitted: 100}
	got, err := Get(src, 0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != (Snapshot{}) {
		t.Errorf("expected zero value, got %+v", got)
	}
}

func TestGetRejectsGroupSplit(t *testing.T) {
	for _, n := range []uint32{1, 2, 3} {
		if _, err := Get(Snapshot{}, n); err == nil {
			t.Errorf("struct_size %d: expected error", n)
		}
	}
}

func TestGetPrefixCopy(t *testing.T) {
	src := Snapshot{FrameIndex: 5, BytesEmitted: 100, FramesDropped: 2, DamageRects: 9}
	got, err := Get(src, 4)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.FrameIndex != 5 || got.BytesEmitted != 100 || got.FramesDropped != 2 {
		t.Errorf("expected first 4 fields copied, got %+v", got)
	}
	if got.DamageRects != 0 {
		t.Errorf("expected DamageRects left at zero beyond struct_size, got %d", got.DamageRects)
	}
}

func TestGetCapsAtOwnSize(t *testing.T) {
	src := Snapshot{FrameIndex: 1}
	got, err := Get(src, 9999)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.FrameIndex != 1 {
		t.Errorf("expected full copy when struct_size exceeds Size")
	}
}

func TestCollectorRecordPresent(t *testing.T) {
	var c Collector
	c.RecordPresent(128, 3, 10, false, true, 1, 1000)
	snap := c.Current()
	if snap.FrameIndex != 1 || snap.BytesEmitted != 128 || !snap.ScrollOptimized {
		t.Errorf("unexpected snapshot after RecordPresent: %+v", snap)
	}
	c.RecordPresentDropped()
	if c.Current().FramesDropped != 1 {
		t.Errorf("expected FramesDropped=1")
	}
}

func TestCollectorQueueHighWater(t *testing.T) {
	var c Collector
	c.RecordEventQueueState(3, 0)
	c.RecordEventQueueState(1, 0)
	if c.Current().QueueHighWater != 3 {
		t.Errorf("expected high water mark to stick at 3, got %d", c.Current().QueueHighWater)
	}
}
