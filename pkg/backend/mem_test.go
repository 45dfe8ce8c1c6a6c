package backend

import (
	"testing"
	"time"

	"github.com/vtengine/core/pkg/diffrender"
)

func TestMemBackendReadAfterFeed(t *testing.T) {
	m := NewMemBackend(80, 24, diffrender.Caps{})
	m.Feed([]byte("abc"))
	buf := make([]byte, 8)
	n, err := m.ReadInput(buf)
	if err != nil {
		t.Fatalf("ReadInput: %v", err)
	}
	if string(buf[:n]) != "abc" {
		t.Errorf("expected \"abc\", got %q", buf[:n])
	}
}

func TestMemBackendWaitReadyOnFeed(t *testing.T) {
	m := NewMemBackend(80, 24, diffrender.Caps{})
	done := make(chan WaitStatus, 1)
	go func() {
		st, _ := m.WaitInputOrWake(-1)
		done <- st
	}()
	time.Sleep(10 * time.Millisecond)
	m.Feed([]byte("x"))
	select {
	case st := <-done:
		if st != WaitReady {
			t.Errorf("expected WaitReady, got %v", st)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for WaitInputOrWake to return")
	}
}

func TestMemBackendWake(t *testing.T) {
	m := NewMemBackend(80, 24, diffrender.Caps{})
	done := make(chan WaitStatus, 1)
	go func() {
		st, _ := m.WaitInputOrWake(-1)
		done <- st
	}()
	time.Sleep(10 * time.Millisecond)
	m.Wake()
	select {
	case st := <-done:
		if st != WaitWoken {
			t.Errorf("expected WaitWoken, got %v", st)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for Wake to unblock WaitInputOrWake")
	}
}

func TestMemBackendWriteOutputAccumulates(t *testing.T) {
	m := NewMemBackend(80, 24, diffrender.Caps{})
	if err := m.WriteOutput([]byte("hi")); err != nil {
		t.Fatalf("WriteOutput: %v", err)
	}
	if err := m.WriteOutput([]byte(" there")); err != nil {
		t.Fatalf("WriteOutput: %v", err)
	}
	if string(m.Written) != "hi there" {
		t.Errorf("expected accumulated output, got %q", m.Written)
	}
}

func TestMemBackendDrainOutputClearsBuffer(t *testing.T) {
	m := NewMemBackend(80, 24, diffrender.Caps{})
	m.WriteOutput([]byte("frame1"))
	first := m.DrainOutput()
	if string(first) != "frame1" {
		t.Errorf("expected \"frame1\", got %q", first)
	}
	if len(m.Written) != 0 {
		t.Errorf("expected Written cleared after drain, got %q", m.Written)
	}
	m.WriteOutput([]byte("frame2"))
	second := m.DrainOutput()
	if string(second) != "frame2" {
		t.Errorf("expected \"frame2\", got %q", second)
	}
}

func TestMemBackendImplementsBackend(t *testing.T) {
	var _ Backend = NewMemBackend(1, 1, diffrender.Caps{})
}
