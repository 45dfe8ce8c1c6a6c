//go:build linux

package backend

import (
	"golang.org/x/sys/unix"
)

// epollPoller waits on a readable input fd and a self-pipe wake fd
// using epoll (Linux), adapted from the teacher's epollEventLoop: one
// level-triggered wait covering both descriptors instead of a general
// EventLoop abstraction, since the backend only ever needs "is input
// ready, or did something Wake me" (spec §6).
type epollPoller struct {
	epfd    int
	inputFd int
	wakeRfd int
	wakeWfd int
}

func newPoller(inputFd int) (*epollPoller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	fds, err := unixPipe2CloExecNonblock()
	if err != nil {
		unix.Close(epfd)
		return nil, err
	}
	p := &epollPoller{epfd: epfd, inputFd: inputFd, wakeRfd: fds[0], wakeWfd: fds[1]}
	if err := p.add(inputFd); err != nil {
		p.Close()
		return nil, err
	}
	if err := p.add(p.wakeRfd); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func (p *epollPoller) add(fd int) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

// wait blocks up to timeoutMs for the input fd to become readable or
// the wake pipe to be written to, draining the wake pipe when it is.
func (p *epollPoller) wait(timeoutMs int) (WaitStatus, error) {
	var events [2]unix.EpollEvent
	n, err := unix.EpollWait(p.epfd, events[:], timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return WaitTimeout, nil
		}
		return WaitTimeout, err
	}
	if n == 0 {
		return WaitTimeout, nil
	}
	woken := false
	ready := false
	for i := 0; i < n; i++ {
		switch int(events[i].Fd) {
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

func (p *epollPoller) wake() {
	unix.Write(p.wakeWfd, []byte{0})
}

func (p *epollPoller) Close() error {
	unix.Close(p.wakeRfd)
	unix.Close(p.wakeWfd)
	return unix.Close(p.epfd)
}

func unixPipe2CloExecNonblock() ([2]int, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		return fds, err
	}
	return fds, nil
}
