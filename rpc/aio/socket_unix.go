//go:build unix

package aio

import (
	"golang.org/x/sys/unix"
	"io"
)

const (
	pollIn  = unix.POLLIN
	pollOut = unix.POLLOUT
)

// rawRead performs one non-blocking read, EAGAIN is reported as 0 bytes
func rawRead(fd uintptr, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		n, err := unix.Read(int(fd), p)
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, io.EOF
		}
		return n, nil
	}
}

// rawWrite performs one non-blocking write, EAGAIN is reported as 0 bytes
func rawWrite(fd uintptr, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		n, err := unix.Write(int(fd), p)
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		return n, nil
	}
}

// pollReady checks the level state of fd without waiting. Errors and hangups count as
// ready so the following read or write observes them.
func pollReady(fd uintptr, events int16) bool {
	fds := []unix.PollFd{{Fd: int32(fd), Events: events}}
	for {
		n, err := unix.Poll(fds, 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return true
		}
		return n > 0 && fds[0].Revents != 0
	}
}
