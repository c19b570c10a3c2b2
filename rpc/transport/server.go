package transport

import (
	"github.com/ValentinKolb/dRPC/rpc/aio"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"net"
	"sync"
	"sync/atomic"
)

// Server accepts connections on one endpoint and serves each with the shared handler
type Server struct {
	reactor *aio.Reactor
	handler IConnectionHandler
	config  common.TransportConfig

	mu     sync.Mutex
	socket *aio.ServerSocket
	uri    string

	connections *xsync.MapOf[*Connection, struct{}]
	stopped     atomic.Bool
}

// NewServer creates a server, nothing is bound until Start
func NewServer(reactor *aio.Reactor, handler IConnectionHandler, config common.TransportConfig) *Server {
	return &Server{
		reactor:     reactor,
		handler:     handler,
		config:      config,
		connections: xsync.NewMapOf[*Connection, struct{}](),
	}
}

// Start binds the tcp:// endpoint uri and starts accepting
func (s *Server) Start(uri string) error {
	address, err := ParseURI(uri)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped.Load() {
		return aio.ErrClosed
	}
	if s.socket != nil {
		return errors.Errorf("server already listening on %s", s.uri)
	}

	socket, err := aio.Listen(s.reactor, address, s, configurer(s.config))
	if err != nil {
		return err
	}
	s.socket = socket
	s.uri = FormatURI(socket.Addr())

	Logger.Infof("server listening on %s", s.uri)
	return nil
}

// OnOperation accepts every pending connection, it is the listener of the server socket
func (s *Server) OnOperation(ops aio.Op) {
	if ops&aio.OpClose != 0 {
		s.Shutdown()
		return
	}
	if ops&aio.OpAccept == 0 {
		return
	}

	// blocks until Start stored the socket
	s.mu.Lock()
	server := s.socket
	s.mu.Unlock()

	for {
		conn := newConnection(s.handler, s.remove)
		socket, err := server.Accept(conn)
		if err != nil {
			if !s.stopped.Load() {
				Logger.Warningf("failed to accept connection: %v", err)
			}
			if errors.Is(err, aio.ErrClosed) {
				return
			}
			continue
		}
		if socket == nil {
			return
		}

		conn.attach(socket)
		s.connections.Store(conn, struct{}{})

		// shutdown may have raced the accept
		if s.stopped.Load() {
			conn.Close()
			return
		}

		Logger.Debugf("accepted connection from %s", conn)
		socket.SetReadInterest(true)
	}
}

// Addr returns the bound address, nil before Start
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.socket == nil {
		return nil
	}
	return s.socket.Addr()
}

// URI returns the bound endpoint as tcp://host:port
func (s *Server) URI() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uri
}

// Connections returns the number of live connections
func (s *Server) Connections() int {
	return s.connections.Size()
}

// Shutdown closes the listening socket and every live connection
func (s *Server) Shutdown() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}

	s.mu.Lock()
	socket := s.socket
	s.mu.Unlock()

	if socket != nil {
		if err := socket.Close(); err != nil {
			Logger.Debugf("failed to close listening socket: %v", err)
		}
	}

	s.connections.Range(func(conn *Connection, _ struct{}) bool {
		conn.Close()
		return true
	})

	Logger.Infof("server on %s shut down", s.uri)
}

func (s *Server) remove(conn *Connection) {
	s.connections.Delete(conn)
}
