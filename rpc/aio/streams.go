package aio

import (
	"bytes"
	"io"
	"sync"
)

const readChunkSize = 32 * 1024

// --------------------------------------------------------------------------
// InputStream
// --------------------------------------------------------------------------

// InputStream buffers the bytes drained from a socket on read readiness
type InputStream struct {
	socket *Socket
	mu     sync.Mutex
	buf    bytes.Buffer
	chunk  []byte
	closed bool
}

// NewInputStream creates an input stream over socket
func NewInputStream(socket *Socket) *InputStream {
	return &InputStream{
		socket: socket,
		chunk:  make([]byte, readChunkSize),
	}
}

// Sync drains everything the socket has queued into the buffer. It returns the number of
// bytes added and io.EOF once the peer closed, bytes read before the EOF stay buffered.
func (in *InputStream) Sync() (int, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.closed {
		return 0, ErrClosed
	}

	total := 0
	for {
		n, err := in.socket.Read(in.chunk)
		if n > 0 {
			in.buf.Write(in.chunk[:n])
			total += n
		}
		if err != nil {
			return total, err
		}
		if n < len(in.chunk) {
			return total, nil
		}
	}
}

// Read reads buffered bytes, it returns io.EOF when the buffer is empty
func (in *InputStream) Read(p []byte) (int, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return 0, ErrClosed
	}
	return in.buf.Read(p)
}

// Available returns the number of buffered bytes
func (in *InputStream) Available() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.buf.Len()
}

// Close drops the buffer, further reads fail with ErrClosed
func (in *InputStream) Close() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return nil
	}
	in.closed = true
	in.buf.Reset()
	return nil
}

// --------------------------------------------------------------------------
// OutputStream
// --------------------------------------------------------------------------

// OutputStream queues outgoing bytes and writes them as the socket accepts them.
// Every Write is queued as a whole and in order, so frames from concurrent writers never interleave.
type OutputStream struct {
	socket *Socket
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

// NewOutputStream creates an output stream over socket
func NewOutputStream(socket *Socket) *OutputStream {
	return &OutputStream{socket: socket}
}

// Write queues p and flushes as much as possible. Before the socket is connected the
// bytes stay queued until the next Flush.
func (out *OutputStream) Write(p []byte) (int, error) {
	out.mu.Lock()
	defer out.mu.Unlock()

	if out.closed {
		return 0, ErrClosed
	}
	out.buf.Write(p)

	if err := out.flushLocked(); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Flush writes queued bytes until the socket stops accepting, called on write readiness
func (out *OutputStream) Flush() error {
	out.mu.Lock()
	defer out.mu.Unlock()
	if out.closed {
		return ErrClosed
	}
	return out.flushLocked()
}

// Buffered returns the number of queued bytes
func (out *OutputStream) Buffered() int {
	out.mu.Lock()
	defer out.mu.Unlock()
	return out.buf.Len()
}

// Close drops queued bytes, further writes fail with ErrClosed
func (out *OutputStream) Close() error {
	out.mu.Lock()
	defer out.mu.Unlock()
	if out.closed {
		return nil
	}
	out.closed = true
	out.buf.Reset()
	return nil
}

func (out *OutputStream) flushLocked() error {
	for out.buf.Len() > 0 {
		if !out.socket.IsConnected() {
			return nil
		}
		n, err := out.socket.Write(out.buf.Bytes())
		out.buf.Next(n)
		if err != nil {
			return err
		}
		if n == 0 {
			// socket raised write interest, continue on OpWrite
			return nil
		}
	}
	return nil
}

var (
	_ io.Reader = (*InputStream)(nil)
	_ io.Writer = (*OutputStream)(nil)
)
