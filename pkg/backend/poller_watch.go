package backend

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vtengine/core/pkg/diffrender"
	"github.com/vtengine/core/pkg/vterr"
)

const fileWatchOp = "backend.FileWatchBackend"

// FileWatchBackend is a Backend whose input source is an ordinary file
// or FIFO rather than a live terminal: WaitInputOrWake learns about new
// bytes from an fsnotify watch instead of a platform poller. It exists
// for cmd/vtrender's demo harness, where a host drawlist-producing
// process may not have a real PTY to attach to and instead feeds the
// engine from a named pipe. Grounded on session.StdinWatcher's
// fsnotify-driven watch loop, generalized from "feed one session's PTY"
// to "satisfy one WaitInputOrWake call."
type FileWatchBackend struct {
	cols, rows int
	caps       diffrender.Caps

	in      *os.File
	out     *os.File
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	woken   bool
	ready   bool
	events  chan struct{}
	closed  chan struct{}
	closeMu sync.Once
}

// NewFileWatchBackend opens inPath for reading and outPath for writing
// and starts an fsnotify watch on inPath.
func NewFileWatchBackend(inPath, outPath string, cols, rows int, caps diffrender.Caps) (*FileWatchBackend, error) {
	in, err := os.OpenFile(inPath, os.O_RDONLY|os.O_NONBLOCK, 0)
	if err != nil {
		return nil, vterr.Wrap(fileWatchOp, vterr.KindPlatform, err, "open input path %s", inPath)
	}
	out, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		in.Close()
		return nil, vterr.Wrap(fileWatchOp, vterr.KindPlatform, err, "open output path %s", outPath)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		in.Close()
		out.Close()
		return nil, vterr.Wrap(fileWatchOp, vterr.KindPlatform, err, "create fsnotify watcher")
	}
	if err := watcher.Add(inPath); err != nil {
		watcher.Close()
		in.Close()
		out.Close()
		return nil, vterr.Wrap(fileWatchOp, vterr.KindPlatform, err, "watch input path %s", inPath)
	}

	b := &FileWatchBackend{
		cols: cols, rows: rows, caps: caps,
		in: in, out: out, watcher: watcher,
		events: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	go b.watchLoop()
	return b, nil
}

func (b *FileWatchBackend) watchLoop() {
	for {
		select {
		case <-b.closed:
			return
		case event, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Write == fsnotify.Write {
				b.mu.Lock()
				b.ready = true
				b.mu.Unlock()
				select {
				case b.events <- struct{}{}:
				default:
				}
			}
		case _, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (b *FileWatchBackend) EnterRaw() error { return nil }
func (b *FileWatchBackend) LeaveRaw() error {
	b.closeMu.Do(func() { close(b.closed) })
	b.watcher.Close()
	b.in.Close()
	return b.out.Close()
}

func (b *FileWatchBackend) GetSize() (int, int, error) { return b.cols, b.rows, nil }
func (b *FileWatchBackend) GetCaps() diffrender.Caps   { return b.caps }

func (b *FileWatchBackend) ReadInput(buf []byte) (int, error) {
	n, err := b.in.Read(buf)
	if err != nil {
		if err == io.EOF {
			return 0, nil
		}
		return 0, vterr.Wrap(fileWatchOp, vterr.KindPlatform, err, "read input")
	}
	b.mu.Lock()
	b.ready = false
	b.mu.Unlock()
	return n, nil
}

func (b *FileWatchBackend) WriteOutput(p []byte) error {
	_, err := b.out.Write(p)
	if err != nil {
		return vterr.Wrap(fileWatchOp, vterr.KindPlatform, err, "write output")
	}
	return nil
}

func (b *FileWatchBackend) WaitInputOrWake(timeoutMs int) (WaitStatus, error) {
	b.mu.Lock()
	ready := b.ready
	woken := b.woken
	b.woken = false
	b.mu.Unlock()
	if ready {
		return WaitReady, nil
	}
	if woken {
		return WaitWoken, nil
	}
	if timeoutMs == 0 {
		return WaitTimeout, nil
	}

	var deadline <-chan time.Time
	if timeoutMs > 0 {
		timer := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
		defer timer.Stop()
		deadline = timer.C
	}
	select {
	case <-b.events:
	case <-deadline:
		return WaitTimeout, nil
	case <-b.closed:
		return WaitTimeout, nil
	}
	b.mu.Lock()
	ready, woken = b.ready, b.woken
	b.woken = false
	b.mu.Unlock()
	if woken && !ready {
		return WaitWoken, nil
	}
	return WaitReady, nil
}

func (b *FileWatchBackend) Wake() {
	b.mu.Lock()
	b.woken = true
	b.mu.Unlock()
	select {
	case b.events <- struct{}{}:
	default:
	}
}

func (b *FileWatchBackend) WaitOutputWritable(timeoutMs int) (WaitStatus, error) {
	return WaitReady, nil
}

func (b *FileWatchBackend) NowMS() int64 {
	return MonotonicNowMS()
}
