package transport

import (
	"github.com/ValentinKolb/dRPC/rpc/aio"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"io"
	"net"
	"sync/atomic"
)

var Logger = logger.GetLogger("transport")

// Connection binds one socket to its streams, its context and the message handler.
// It is the aio.Listener of its socket, so all its callbacks run on the socket's dispatcher.
type Connection struct {
	socket  *aio.Socket
	in      *aio.InputStream
	out     *aio.OutputStream
	ctx     *ConnContext
	handler IConnectionHandler

	// onClose removes the connection from whatever registry holds it
	onClose func(c *Connection)
	closed  atomic.Bool
}

func newConnection(handler IConnectionHandler, onClose func(c *Connection)) *Connection {
	c := &Connection{
		handler: handler,
		onClose: onClose,
	}
	c.ctx = &ConnContext{conn: c}
	return c
}

// attach wires the socket, it must happen before the socket reports any operation
func (c *Connection) attach(socket *aio.Socket) {
	c.socket = socket
	c.in = aio.NewInputStream(socket)
	c.out = aio.NewOutputStream(socket)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see aio.Listener)
// --------------------------------------------------------------------------

func (c *Connection) OnOperation(ops aio.Op) {
	if c.closed.Load() {
		return
	}

	if ops&aio.OpClose != 0 {
		Logger.Debugf("connection %s closed by reactor", c)
		c.Close()
		return
	}

	if ops&(aio.OpConnect|aio.OpWrite) != 0 {
		if err := c.out.Flush(); err != nil {
			Logger.Warningf("connection %s flush failed: %v", c, err)
			c.Close()
			return
		}
	}

	if ops&aio.OpRead != 0 {
		_, syncErr := c.in.Sync()

		// bytes read before an EOF are still handed to the handler
		if err := c.transact(); err != nil {
			Logger.Warningf("connection %s failed to decode input: %v", c, err)
			c.Close()
			return
		}

		if syncErr != nil {
			if errors.Is(syncErr, io.EOF) {
				Logger.Debugf("connection %s closed by peer", c)
			} else {
				Logger.Warningf("connection %s read failed: %v", c, syncErr)
			}
			c.Close()
		}
	}
}

// --------------------------------------------------------------------------
// Public Methods
// --------------------------------------------------------------------------

// Write queues p as one unit and flushes as much as the socket accepts
func (c *Connection) Write(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, aio.ErrClosed
	}
	return c.out.Write(p)
}

// Context returns the per-connection context
func (c *Connection) Context() *ConnContext {
	return c.ctx
}

// Input returns the buffered input stream
func (c *Connection) Input() *aio.InputStream {
	return c.in
}

// Output returns the buffered output stream
func (c *Connection) Output() *aio.OutputStream {
	return c.out
}

// RemoteAddr returns the peer address, nil while connecting
func (c *Connection) RemoteAddr() net.Addr {
	return c.socket.RemoteAddr()
}

// IsClosed reports whether the connection was closed
func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

// Close tears the connection down. Every step is best effort, failures are only logged.
func (c *Connection) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}

	if err := c.socket.Close(); err != nil {
		Logger.Debugf("connection %s: failed to close socket: %v", c, err)
	}
	if err := c.in.Close(); err != nil {
		Logger.Debugf("connection %s: failed to close input stream: %v", c, err)
	}
	if err := c.out.Close(); err != nil {
		Logger.Debugf("connection %s: failed to close output stream: %v", c, err)
	}
	c.ctx.Decoder.Reset()

	if c.onClose != nil {
		c.onClose(c)
	}
}

func (c *Connection) String() string {
	if addr := c.socket.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "<unconnected>"
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// transact calls the handler as long as it makes progress on the buffered input
func (c *Connection) transact() error {
	for !c.closed.Load() {
		before := c.in.Available()
		if before == 0 {
			return nil
		}
		if err := c.handler.OnTransact(c.ctx, c.in, c.out); err != nil {
			return err
		}
		if c.in.Available() == before {
			return nil
		}
	}
	return nil
}
