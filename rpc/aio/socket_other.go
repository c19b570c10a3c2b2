//go:build !unix

package aio

import (
	"github.com/pkg/errors"
)

const (
	pollIn  = 0x1
	pollOut = 0x4
)

var errUnsupported = errors.New("non-blocking socket I/O is not supported on this platform")

func rawRead(fd uintptr, p []byte) (int, error) {
	return 0, errUnsupported
}

func rawWrite(fd uintptr, p []byte) (int, error) {
	return 0, errUnsupported
}

func pollReady(fd uintptr, events int16) bool {
	return true
}
