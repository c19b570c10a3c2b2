package aio

import (
	"context"
	"github.com/ValentinKolb/dRPC/lib/promise"
	"github.com/pkg/errors"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// ConnConfigurer applies socket options to a freshly accepted or connected TCP connection
type ConnConfigurer func(conn *net.TCPConn) error

// Socket wraps one TCP connection in non-blocking mode. Read and Write never wait,
// readiness is reported to the listener as OpRead / OpWrite on the socket's dispatcher.
type Socket struct {
	eventQueue

	mu         sync.Mutex
	conn       *net.TCPConn
	raw        syscall.RawConn
	connecting *promise.Promise[*Socket]
	dialConn   *net.TCPConn
	dialErr    error

	interest  atomic.Uint32
	readWake  chan struct{}
	writeWake chan struct{}
}

// NewSocket creates an unconnected socket registered with the reactor
func NewSocket(r *Reactor, listener Listener) (*Socket, error) {
	s := newSocket(r, listener)
	if err := r.register(s); err != nil {
		return nil, err
	}
	go s.dispatch(s.onOperation)
	return s, nil
}

// newConnectedSocket wraps an already established connection. Reads are not watched
// until read interest is enabled, so the caller can finish wiring its listener first.
func newConnectedSocket(r *Reactor, conn *net.TCPConn, listener Listener) (*Socket, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return nil, errors.Wrap(err, "failed to access raw connection")
	}

	s := newSocket(r, listener)
	s.conn = conn
	s.raw = raw

	if err := r.register(s); err != nil {
		return nil, err
	}
	go s.dispatch(s.onOperation)
	s.startWatchers()
	return s, nil
}

func newSocket(r *Reactor, listener Listener) *Socket {
	s := &Socket{
		readWake:  make(chan struct{}, 1),
		writeWake: make(chan struct{}, 1),
	}
	s.init(r, listener, OpRead, OpWrite)
	return s
}

// --------------------------------------------------------------------------
// Operations
// --------------------------------------------------------------------------

// Connect starts connecting to address. The returned promise completes on the socket's
// dispatcher once the connection is established, a failed connect closes the socket.
func (s *Socket) Connect(address string, timeout time.Duration, configure ConnConfigurer) *promise.Promise[*Socket] {
	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return promise.Rejected[*Socket](ErrClosed)
	}
	if s.conn != nil || s.connecting != nil {
		s.mu.Unlock()
		return promise.Rejected[*Socket](ErrAlreadyConnected)
	}
	p := promise.New[*Socket]()
	s.connecting = p
	s.mu.Unlock()

	s.addInterest(OpConnect)

	go func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-s.done:
				cancel()
			case <-ctx.Done():
			}
		}()

		dialer := net.Dialer{Timeout: timeout}
		conn, err := dialer.DialContext(ctx, "tcp", address)

		var tcpConn *net.TCPConn
		if err == nil {
			var ok bool
			if tcpConn, ok = conn.(*net.TCPConn); !ok {
				conn.Close()
				err = errors.Errorf("connection to %s is not a tcp connection", address)
			} else if configure != nil {
				if cfgErr := configure(tcpConn); cfgErr != nil {
					tcpConn.Close()
					tcpConn, err = nil, errors.Wrap(cfgErr, "failed to configure connection")
				}
			}
		}

		s.mu.Lock()
		s.dialConn, s.dialErr = tcpConn, errors.Wrapf(err, "failed to connect to %s", address)
		s.mu.Unlock()

		if !s.notify(OpConnect) && tcpConn != nil {
			tcpConn.Close()
		}
	}()

	return p
}

// Read copies buffered input into p. It returns 0 without error when nothing is queued
// and io.EOF once the peer closed the connection.
func (s *Socket) Read(p []byte) (int, error) {
	raw, err := s.rawConn()
	if err != nil {
		return 0, err
	}

	var n int
	var opErr error
	if err := raw.Control(func(fd uintptr) {
		n, opErr = rawRead(fd, p)
	}); err != nil {
		return 0, s.mapErr(err)
	}
	return n, opErr
}

// ReadScatter fills bufs in order and stops at the first short read
func (s *Socket) ReadScatter(bufs [][]byte) (int, error) {
	total := 0
	for _, b := range bufs {
		n, err := s.Read(b)
		total += n
		if err != nil {
			return total, err
		}
		if n < len(b) {
			break
		}
	}
	return total, nil
}

// Write writes as many bytes as the OS accepts right now. A partial write raises
// OpWrite interest so the listener is told when space frees up, a complete one clears it.
func (s *Socket) Write(p []byte) (int, error) {
	raw, err := s.rawConn()
	if err != nil {
		return 0, err
	}

	var n int
	var opErr error
	if err := raw.Control(func(fd uintptr) {
		n, opErr = rawWrite(fd, p)
	}); err != nil {
		return 0, s.mapErr(err)
	}
	if opErr != nil {
		return n, opErr
	}

	if n < len(p) {
		s.addInterest(OpWrite)
	} else {
		s.removeInterest(OpWrite)
	}
	return n, nil
}

// WriteGather writes bufs in order and stops at the first short write
func (s *Socket) WriteGather(bufs [][]byte) (int, error) {
	total := 0
	for _, b := range bufs {
		n, err := s.Write(b)
		total += n
		if err != nil {
			return total, err
		}
		if n < len(b) {
			break
		}
	}
	return total, nil
}

// Close clears the interest set, releases the connection and unregisters the socket
func (s *Socket) Close() error {
	if !s.markClosed() {
		return nil
	}
	s.interest.Store(0)

	s.mu.Lock()
	conn, dialConn, pending := s.conn, s.dialConn, s.connecting
	s.connecting = nil
	s.mu.Unlock()

	if pending != nil {
		pending.Fail(ErrClosed)
	}
	if dialConn != nil && dialConn != conn {
		dialConn.Close()
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// --------------------------------------------------------------------------
// State
// --------------------------------------------------------------------------

// Interest returns the operations the socket currently waits for
func (s *Socket) Interest() Op {
	return Op(s.interest.Load())
}

// SetReadInterest pauses or resumes read readiness notifications
func (s *Socket) SetReadInterest(enabled bool) {
	if enabled {
		s.addInterest(OpRead)
	} else {
		s.removeInterest(OpRead)
	}
}

// IsConnected reports whether the connection is established and not closed
func (s *Socket) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil && !s.closed.Load()
}

// IsClosed reports whether Close was called
func (s *Socket) IsClosed() bool {
	return s.closed.Load()
}

// LocalAddr returns the local address or nil before connect
func (s *Socket) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// RemoteAddr returns the peer address or nil before connect
func (s *Socket) RemoteAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.RemoteAddr()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// onOperation runs on the dispatcher goroutine
func (s *Socket) onOperation(ops Op) {
	if ops&OpConnect != 0 {
		s.finishConnect()
		if ops &^= OpConnect; ops == 0 {
			return
		}
	}
	if s.closed.Load() && ops&OpClose == 0 {
		return
	}
	s.listener.OnOperation(ops)
}

// finishConnect completes or fails the pending connect promise
func (s *Socket) finishConnect() {
	s.mu.Lock()
	p := s.connecting
	conn, err := s.dialConn, s.dialErr
	s.connecting = nil
	s.dialConn, s.dialErr = nil, nil

	if p == nil {
		s.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}

	var raw syscall.RawConn
	if err == nil {
		raw, err = conn.SyscallConn()
		if err != nil {
			conn.Close()
		}
	}
	if err != nil {
		s.mu.Unlock()
		Logger.Debugf("%s connect failed: %v", s, err)
		s.Close()
		p.Fail(err)
		return
	}

	s.conn = conn
	s.raw = raw
	s.mu.Unlock()

	s.removeInterest(OpConnect)
	s.addInterest(OpRead)
	s.startWatchers()

	// listener first, so output queued before the connect is flushed when the promise completes
	s.listener.OnOperation(OpConnect)
	p.Complete(s)
}

func (s *Socket) rawConn() (syscall.RawConn, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.raw == nil {
		return nil, ErrNotConnected
	}
	return s.raw, nil
}

func (s *Socket) mapErr(err error) error {
	if s.closed.Load() || errors.Is(err, net.ErrClosed) {
		return ErrClosed
	}
	return err
}

func (s *Socket) addInterest(op Op) {
	for {
		old := s.interest.Load()
		if s.closed.Load() || old&uint32(op) != 0 {
			return
		}
		if s.interest.CompareAndSwap(old, old|uint32(op)) {
			break
		}
	}
	switch op {
	case OpRead:
		wake(s.readWake)
	case OpWrite:
		wake(s.writeWake)
	}
}

func (s *Socket) removeInterest(op Op) {
	for {
		old := s.interest.Load()
		if old&uint32(op) == 0 || s.interest.CompareAndSwap(old, old&^uint32(op)) {
			return
		}
	}
}

// startWatchers waits for readiness on the netpoller and forwards it to the dispatcher.
// Each watcher waits for its event to be handled before polling again.
func (s *Socket) startWatchers() {
	go s.watchRead()
	go s.watchWrite()
}

func (s *Socket) watchRead() {
	for {
		for s.Interest()&OpRead == 0 {
			select {
			case <-s.readWake:
			case <-s.done:
				return
			}
		}

		err := s.raw.Read(func(fd uintptr) bool {
			return pollReady(fd, pollIn)
		})
		if err != nil {
			if !s.closed.Load() {
				Logger.Debugf("%s read watcher stopped: %v", s, err)
				s.notify(OpClose)
			}
			return
		}

		if !s.notifyAndWait(OpRead) {
			return
		}
	}
}

func (s *Socket) watchWrite() {
	for {
		select {
		case <-s.writeWake:
		case <-s.done:
			return
		}

		for s.Interest()&OpWrite != 0 {
			err := s.raw.Write(func(fd uintptr) bool {
				return pollReady(fd, pollOut)
			})
			if err != nil {
				return
			}
			if !s.notifyAndWait(OpWrite) {
				return
			}
		}
	}
}

func wake(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
