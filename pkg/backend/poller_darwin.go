//go:build darwin || freebsd || openbsd || netbsd

package backend

import (
	"time"

	"golang.org/x/sys/unix"
)

// kqueuePoller is the BSD/Darwin mirror of epollPoller, adapted from
// the teacher's kqueueEventLoop: one EVFILT_READ registration per
// watched fd, woken either by host input or a self-pipe write (spec
// §6).
type kqueuePoller struct {
	kq      int
	inputFd int
	wakeRfd int
	wakeWfd int
}

func newPoller(inputFd int) (*kqueuePoller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		unix.Close(kq)
		return nil, err
	}
	p := &kqueuePoller{kq: kq, inputFd: inputFd, wakeRfd: fds[0], wakeWfd: fds[1]}
	kevents := []unix.Kevent_t{
		{Ident: uint64(inputFd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD | unix.EV_ENABLE},
		{Ident: uint64(p.wakeRfd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD | unix.EV_ENABLE},
	}
	if _, err := unix.Kevent(p.kq, kevents, nil, nil); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func (p *kqueuePoller) wait(timeoutMs int) (WaitStatus, error) {
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		d := time.Duration(timeoutMs) * time.Millisecond
		t := unix.NsecToTimespec(d.Nanoseconds())
		ts = &t
	}
	events := make([]unix.Kevent_t, 2)
	n, err := unix.Kevent(p.kq, nil, events, ts)
	if err != nil {
		if err == unix.EINTR {
			return WaitTimeout, nil
		}
		return WaitTimeout, err
	}
	if n == 0 {
		return WaitTimeout, nil
	}
	ready, woken := false, false
	for i := 0; i < n; i++ {
		switch int(events[i].Ident) {
		case p.inputFd:
			ready = true
		case p.wakeRfd:
			woken = true
		}
	}
	if woken {
		var drain [64]byte
		for {
			n, _ := unix.Read(p.wakeRfd, drain[:])
			if n <= 0 {
				break
			}
		}
	}
	if ready {
		return WaitReady, nil
	}
	if woken {
		return WaitWoken, nil
	}
	return WaitTimeout, nil
}

func (p *kqueuePoller) wake() {
	unix.Write(p.wakeWfd, []byte{0})
}

func (p *kqueuePoller) Close() error {
	unix.Close(p.wakeRfd)
	unix.Close(p.wakeWfd)
	return unix.Close(p.kq)
}
