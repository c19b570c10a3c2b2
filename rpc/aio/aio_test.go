package aio

import (
	"bytes"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// endpoint wires a socket to its streams and records what it receives
type endpoint struct {
	socket *Socket
	in     *InputStream
	out    *OutputStream

	mu       sync.Mutex
	received bytes.Buffer
	eof      chan struct{}
	eofOnce  sync.Once
	closeOps atomic.Int32
	echo     bool
}

func newEndpoint(echo bool) *endpoint {
	return &endpoint{eof: make(chan struct{}), echo: echo}
}

func (e *endpoint) attach(s *Socket) {
	e.socket = s
	e.in = NewInputStream(s)
	e.out = NewOutputStream(s)
}

func (e *endpoint) OnOperation(ops Op) {
	if ops&OpClose != 0 {
		e.closeOps.Add(1)
		e.socket.Close()
		return
	}
	if ops&(OpConnect|OpWrite) != 0 {
		_ = e.out.Flush()
	}
	if ops&OpRead != 0 {
		_, err := e.in.Sync()
		if n := e.in.Available(); n > 0 {
			data := make([]byte, n)
			_, _ = io.ReadFull(e.in, data)
			e.mu.Lock()
			e.received.Write(data)
			e.mu.Unlock()
			if e.echo {
				_, _ = e.out.Write(data)
			}
		}
		if err != nil {
			e.eofOnce.Do(func() { close(e.eof) })
			e.socket.Close()
		}
	}
}

func (e *endpoint) receivedLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.received.Len()
}

func (e *endpoint) receivedBytes() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]byte(nil), e.received.Bytes()...)
}

// acceptor hands every accepted connection to a fresh endpoint
type acceptor struct {
	server    *ServerSocket
	echo      bool
	mu        sync.Mutex
	endpoints []*endpoint
}

func (a *acceptor) OnOperation(ops Op) {
	if ops&OpAccept == 0 {
		return
	}
	for {
		ep := newEndpoint(a.echo)
		s, err := a.server.Accept(ep)
		if err != nil || s == nil {
			return
		}
		ep.attach(s)
		a.mu.Lock()
		a.endpoints = append(a.endpoints, ep)
		a.mu.Unlock()
		s.SetReadInterest(true)
	}
}

func (a *acceptor) first() *endpoint {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.endpoints) == 0 {
		return nil
	}
	return a.endpoints[0]
}

func startServer(t *testing.T, r *Reactor, echo bool) *acceptor {
	t.Helper()
	a := &acceptor{echo: echo}
	server, err := Listen(r, "127.0.0.1:0", a, nil)
	require.NoError(t, err)
	a.server = server
	t.Cleanup(func() { server.Close() })
	return a
}

func connect(t *testing.T, r *Reactor, address string) *endpoint {
	t.Helper()
	ep := newEndpoint(false)
	s, err := NewSocket(r, ep)
	require.NoError(t, err)
	ep.attach(s)
	t.Cleanup(func() { s.Close() })

	_, err = s.Connect(address, time.Second, nil).Await(contextWithTimeout(t, 5*time.Second))
	require.NoError(t, err)
	return ep
}

func TestEcho(t *testing.T) {
	r := NewReactor(2)
	defer r.Close()
	a := startServer(t, r, true)

	client := connect(t, r, a.server.Addr().String())
	assert.True(t, client.socket.IsConnected())
	assert.NotNil(t, client.socket.RemoteAddr())

	_, err := client.out.Write([]byte("hello"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return client.receivedLen() == 5
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, "hello", string(client.receivedBytes()))
}

func TestWriteBeforeConnectIsQueued(t *testing.T) {
	r := NewReactor(0)
	defer r.Close()
	a := startServer(t, r, false)

	ep := newEndpoint(false)
	s, err := NewSocket(r, ep)
	require.NoError(t, err)
	ep.attach(s)
	defer s.Close()

	_, err = ep.out.Write([]byte("early"))
	require.NoError(t, err)
	assert.Equal(t, 5, ep.out.Buffered())

	_, err = s.Connect(a.server.Addr().String(), time.Second, nil).Await(contextWithTimeout(t, 5*time.Second))
	require.NoError(t, err)
	assert.Zero(t, ep.out.Buffered())

	require.Eventually(t, func() bool {
		srv := a.first()
		return srv != nil && string(srv.receivedBytes()) == "early"
	}, 5*time.Second, 5*time.Millisecond)
}

func TestConnectRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	address := ln.Addr().String()
	require.NoError(t, ln.Close())

	r := NewReactor(0)
	defer r.Close()

	s, err := NewSocket(r, ListenerFunc(func(Op) {}))
	require.NoError(t, err)

	_, err = s.Connect(address, time.Second, nil).Await(contextWithTimeout(t, 5*time.Second))
	require.Error(t, err)
	assert.True(t, s.IsClosed())
	assert.Zero(t, r.Len())

	_, err = s.Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestIOBeforeConnect(t *testing.T) {
	r := NewReactor(0)
	defer r.Close()

	s, err := NewSocket(r, ListenerFunc(func(Op) {}))
	require.NoError(t, err)

	_, err = s.Read(make([]byte, 4))
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = s.Write([]byte("x"))
	assert.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Connect("127.0.0.1:1", time.Second, nil).Await(contextWithTimeout(t, time.Second))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestReadReturnsZeroWhenEmpty(t *testing.T) {
	r := NewReactor(0)
	defer r.Close()
	a := startServer(t, r, false)
	client := connect(t, r, a.server.Addr().String())

	client.socket.SetReadInterest(false)
	n, err := client.socket.Read(make([]byte, 16))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPeerCloseIsReportedAsEOF(t *testing.T) {
	r := NewReactor(0)
	defer r.Close()
	a := startServer(t, r, false)
	client := connect(t, r, a.server.Addr().String())

	var srv *endpoint
	require.Eventually(t, func() bool {
		srv = a.first()
		return srv != nil
	}, 5*time.Second, 5*time.Millisecond)

	require.NoError(t, srv.socket.Close())

	select {
	case <-client.eof:
	case <-time.After(5 * time.Second):
		t.Fatal("client did not observe the closed connection")
	}
	assert.True(t, client.socket.IsClosed())
}

func TestBackpressureFlushesOnWriteReadiness(t *testing.T) {
	r := NewReactor(0)
	defer r.Close()
	a := startServer(t, r, false)
	client := connect(t, r, a.server.Addr().String())

	payload := bytes.Repeat([]byte("0123456789abcdef"), 1<<20) // 16 MiB
	_, err := client.out.Write(payload)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		srv := a.first()
		return srv != nil && srv.receivedLen() == len(payload)
	}, 20*time.Second, 10*time.Millisecond)

	assert.Equal(t, payload, a.first().receivedBytes())
	assert.Zero(t, client.out.Buffered())
	assert.Zero(t, client.socket.Interest()&OpWrite)
}

func TestReactorCloseDeliversOpClose(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	r := NewReactor(0)
	client := connect(t, r, ln.Addr().String())
	peer, err := ln.Accept()
	require.NoError(t, err)
	defer peer.Close()

	r.Close()
	require.Eventually(t, func() bool {
		return client.closeOps.Load() == 1 && client.socket.IsClosed()
	}, 5*time.Second, 5*time.Millisecond)

	_, err = NewSocket(r, ListenerFunc(func(Op) {}))
	assert.ErrorIs(t, err, ErrClosed)
	assert.True(t, r.IsClosed())
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "none", Op(0).String())
	assert.Equal(t, "read|write", (OpRead | OpWrite).String())
	assert.Equal(t, "accept", OpAccept.String())
}
