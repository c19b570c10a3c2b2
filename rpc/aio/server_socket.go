package aio

import (
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
	"net"
	"sync"
	"time"
)

// ServerSocket is a listening TCP socket. Every accepted connection is announced to the
// listener as OpAccept and picked up with Accept.
type ServerSocket struct {
	eventQueue

	ln        *net.TCPListener
	configure ConnConfigurer

	mu      sync.Mutex
	pending []*net.TCPConn

	errLimiter *rate.Limiter
}

// Listen binds address and starts accepting
func Listen(r *Reactor, address string, listener Listener, configure ConnConfigurer) (*ServerSocket, error) {
	addr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %s", address)
	}
	ln, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", address)
	}

	s := &ServerSocket{
		ln:         ln,
		configure:  configure,
		errLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
	s.init(r, listener, OpAccept)

	if err := r.register(s); err != nil {
		ln.Close()
		return nil, err
	}

	go s.dispatch(s.onOperation)
	go s.watchAccept()
	return s, nil
}

// Addr returns the bound address
func (s *ServerSocket) Addr() net.Addr {
	return s.ln.Addr()
}

// Accept returns the next accepted connection wrapped as a Socket that reports to
// listener, or nil if no connection is pending. The socket starts without read interest,
// call SetReadInterest(true) once the listener is ready.
func (s *ServerSocket) Accept(listener Listener) (*Socket, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return nil, nil
	}
	conn := s.pending[0]
	s.pending[0] = nil
	s.pending = s.pending[1:]
	s.mu.Unlock()

	if s.configure != nil {
		if err := s.configure(conn); err != nil {
			conn.Close()
			return nil, errors.Wrap(err, "failed to configure accepted connection")
		}
	}

	sock, err := newConnectedSocket(s.reactor, conn, listener)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return sock, nil
}

// Close stops accepting and closes every connection not yet picked up
func (s *ServerSocket) Close() error {
	if !s.markClosed() {
		return nil
	}

	err := s.ln.Close()

	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, conn := range pending {
		conn.Close()
	}
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *ServerSocket) onOperation(ops Op) {
	if s.closed.Load() && ops&OpClose == 0 {
		return
	}
	s.listener.OnOperation(ops)
}

func (s *ServerSocket) watchAccept() {
	backoff := 5 * time.Millisecond

	for {
		conn, err := s.ln.AcceptTCP()
		if err != nil {
			if s.closed.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			if s.errLimiter.Allow() {
				Logger.Warningf("%s accept failed: %v", s, err)
			}
			select {
			case <-time.After(backoff):
			case <-s.done:
				return
			}
			if backoff < time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = 5 * time.Millisecond

		s.mu.Lock()
		if s.closed.Load() {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.pending = append(s.pending, conn)
		s.mu.Unlock()

		if !s.notifyAndWait(OpAccept) {
			return
		}
	}
}
