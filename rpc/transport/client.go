package transport

import (
	"github.com/ValentinKolb/dRPC/lib/promise"
	"github.com/ValentinKolb/dRPC/rpc/aio"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"sync/atomic"
)

// ClientOptions configures a Client
type ClientOptions struct {
	Transport common.TransportConfig

	// OnShutdown is called once after the client shut down, for whatever reason
	OnShutdown func(c *Client)
}

// Client owns exactly one outbound connection to a node
type Client struct {
	nodeID     uint32
	uri        string
	conn       *Connection
	ready      *promise.Promise[*Client]
	onShutdown func(c *Client)
	down       atomic.Bool
}

// NewClient starts connecting to uri. Writes issued before the connection is established
// are queued, a failed connect shuts the client down.
func NewClient(reactor *aio.Reactor, nodeID uint32, uri string, handler IConnectionHandler, opts ClientOptions) (*Client, error) {
	address, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	c := &Client{
		nodeID:     nodeID,
		uri:        uri,
		ready:      promise.New[*Client](),
		onShutdown: opts.OnShutdown,
	}
	c.conn = newConnection(handler, func(*Connection) { c.Shutdown() })

	socket, err := aio.NewSocket(reactor, c.conn)
	if err != nil {
		return nil, err
	}
	c.conn.attach(socket)

	timeout := opts.Transport.ConnectTimeout
	if timeout <= 0 {
		timeout = common.DefaultConnectTimeout
	}

	socket.Connect(address, timeout, configurer(opts.Transport)).Then(func(_ *aio.Socket, err error) {
		if err != nil {
			Logger.Warningf("client for node %d failed to connect to %s: %v", nodeID, uri, err)
			c.ready.Fail(err)
			c.Shutdown()
			return
		}
		Logger.Debugf("client for node %d connected to %s", nodeID, uri)
		c.ready.Complete(c)
	})

	return c, nil
}

// NodeID returns the node the client is connected to
func (c *Client) NodeID() uint32 {
	return c.nodeID
}

// URI returns the endpoint of the node
func (c *Client) URI() string {
	return c.uri
}

// Ready completes once the connection is established
func (c *Client) Ready() *promise.Promise[*Client] {
	return c.ready
}

// Write queues p as one unit on the connection
func (c *Client) Write(p []byte) (int, error) {
	if c.down.Load() {
		return 0, aio.ErrClosed
	}
	return c.conn.Write(p)
}

// Context returns the context of the client's connection
func (c *Client) Context() *ConnContext {
	return c.conn.Context()
}

// Input returns the input stream of the client's connection
func (c *Client) Input() *aio.InputStream {
	return c.conn.Input()
}

// Output returns the output stream of the client's connection
func (c *Client) Output() *aio.OutputStream {
	return c.conn.Output()
}

// IsShutdown reports whether the client shut down
func (c *Client) IsShutdown() bool {
	return c.down.Load()
}

// Shutdown closes the connection and notifies the owner, only the first call has an effect
func (c *Client) Shutdown() {
	if !c.down.CompareAndSwap(false, true) {
		return
	}

	c.conn.Close()
	c.ready.Fail(aio.ErrClosed)

	Logger.Debugf("client for node %d (%s) shut down", c.nodeID, c.uri)
	if c.onShutdown != nil {
		c.onShutdown(c)
	}
}
