package transport

import (
	"github.com/ValentinKolb/dRPC/rpc/aio"
	"github.com/ValentinKolb/dRPC/rpc/protocol"
)

// --------------------------------------------------------------------------
// Connection Handler
// --------------------------------------------------------------------------

// IConnectionHandler turns buffered input of a connection into application messages.
// The same handler is used for the initiating and the accepting side of a connection.
type IConnectionHandler interface {
	// OnTransact is called every time new input was buffered and again as long as the
	// previous call consumed bytes. Implementations must return without consuming and
	// without error when not enough bytes are buffered, partial progress belongs in ctx.
	// A returned error closes the connection.
	OnTransact(ctx *ConnContext, in *aio.InputStream, out *aio.OutputStream) error
}

// HandlerFunc adapts a function to the IConnectionHandler interface
type HandlerFunc func(ctx *ConnContext, in *aio.InputStream, out *aio.OutputStream) error

func (f HandlerFunc) OnTransact(ctx *ConnContext, in *aio.InputStream, out *aio.OutputStream) error {
	return f(ctx, in, out)
}

// --------------------------------------------------------------------------
// Connection Context
// --------------------------------------------------------------------------

// ConnContext is the per-connection state that survives between readiness events.
// It is owned by exactly one connection and dropped when the connection closes.
type ConnContext struct {
	// Decoder keeps the partially decoded frame between calls
	Decoder protocol.Decoder

	conn *Connection
}

// Connection returns the connection owning this context
func (c *ConnContext) Connection() *Connection {
	return c.conn
}
