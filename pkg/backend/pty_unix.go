//go:build linux || darwin || freebsd || openbsd || netbsd

package backend

import (
	"os"

	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/vtengine/core/pkg/diffrender"
	"github.com/vtengine/core/pkg/vterr"
)

const ptyOp = "backend.PTYBackend"

// platformPoller is implemented by epollPoller (Linux) and
// kqueuePoller (Darwin/BSD); pty_unix.go is built on both so it only
// depends on this shared surface.
type platformPoller interface {
	wait(timeoutMs int) (WaitStatus, error)
	wake()
	Close() error
}

// PTYBackend is the real terminal Backend: stdin/stdout of the calling
// process, raw mode via golang.org/x/term (grounded on the teacher's
// configurePTYTerminal termios fiddling, generalized to the portable
// x/term helper since this backend targets the controlling terminal
// itself rather than a PTY master the teacher allocates for a child),
// and a platform poller for the two bounded wait primitives.
type PTYBackend struct {
	in       *os.File
	out      *os.File
	fd       int
	oldState *term.State
	poller   platformPoller
}

// NewPTYBackend builds a backend over the process's own stdin/stdout.
func NewPTYBackend() (*PTYBackend, error) {
	b := &PTYBackend{in: os.Stdin, out: os.Stdout, fd: int(os.Stdin.Fd())}
	p, err := newPoller(b.fd)
	if err != nil {
		return nil, vterr.Wrap(ptyOp, vterr.KindPlatform, err, "create poller")
	}
	b.poller = p
	return b, nil
}

func (b *PTYBackend) EnterRaw() error {
	state, err := term.MakeRaw(b.fd)
	if err != nil {
		return vterr.Wrap(ptyOp, vterr.KindPlatform, err, "enter raw mode")
	}
	b.oldState = state
	return nil
}

func (b *PTYBackend) LeaveRaw() error {
	if b.oldState == nil {
		return nil
	}
	err := term.Restore(b.fd, b.oldState)
	b.oldState = nil
	if err != nil {
		return vterr.Wrap(ptyOp, vterr.KindPlatform, err, "restore terminal state")
	}
	return nil
}

func (b *PTYBackend) GetSize() (int, int, error) {
	cols, rows, err := term.GetSize(b.fd)
	if err != nil {
		return 0, 0, vterr.Wrap(ptyOp, vterr.KindPlatform, err, "get terminal size")
	}
	return cols, rows, nil
}

// GetCaps returns a conservative baseline: 256-color, no scroll-region
// or hyperlink assumptions, since capability probing (e.g. via
// terminfo or DA/DSR queries) is explicitly out of this package's
// scope (spec §9 Open Question).
func (b *PTYBackend) GetCaps() diffrender.Caps {
	return diffrender.Caps{
		ColorMode:            diffrender.Color256,
		SgrAttrsSupported:    0,
		SupportsScrollRegion: false,
		SupportsSyncUpdate:   false,
		SupportsHyperlinks:   false,
	}
}

func (b *PTYBackend) ReadInput(buf []byte) (int, error) {
	n, err := b.in.Read(buf)
	if err != nil {
		return n, vterr.Wrap(ptyOp, vterr.KindPlatform, err, "read input")
	}
	return n, nil
}

func (b *PTYBackend) WriteOutput(p []byte) error {
	n, err := b.out.Write(p)
	if err != nil {
		return vterr.Wrap(ptyOp, vterr.KindPlatform, err, "write output")
	}
	if n != len(p) {
		return vterr.New(ptyOp, vterr.KindPlatform, "short write: %d of %d bytes", n, len(p))
	}
	return nil
}

func (b *PTYBackend) WaitInputOrWake(timeoutMs int) (WaitStatus, error) {
	st, err := b.poller.wait(timeoutMs)
	if err != nil {
		return st, vterr.Wrap(ptyOp, vterr.KindPlatform, err, "wait for input")
	}
	return st, nil
}

func (b *PTYBackend) Wake() {
	b.poller.wake()
}

// WaitOutputWritable has no cheap poll primitive for a terminal output
// fd (it is essentially always writable); report immediate readiness.
func (b *PTYBackend) WaitOutputWritable(timeoutMs int) (WaitStatus, error) {
	return WaitReady, nil
}

func (b *PTYBackend) NowMS() int64 {
	return MonotonicNowMS()
}

// Close releases the poller's descriptors. LeaveRaw should be called
// first if EnterRaw succeeded.
func (b *PTYBackend) Close() error {
	return b.poller.Close()
}

// setSize applies a new terminal size, used by hosts that own a PTY
// master on behalf of a child process rather than rendering to their
// own controlling terminal.
func setSize(f *os.File, cols, rows uint16) error {
	ws := &unix.Winsize{Row: rows, Col: cols}
	return unix.IoctlSetWinsize(int(f.Fd()), unix.TIOCSWINSZ, ws)
}
