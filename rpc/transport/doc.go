// Package transport implements the connection templates shared by the initiating and the
// accepting side of the RPC system. Both sides differ only in how a connection comes to be,
// framing, teardown and error handling are identical.
//
// The package focuses on:
//   - Turning read readiness into repeated calls of an IConnectionHandler
//   - Keeping partial decode progress in a typed per-connection context
//   - Best effort teardown that removes a connection from its owner
//
// Key Components:
//
//   - IConnectionHandler: Hook that consumes buffered input. It is called again as long as
//     it makes progress and must return without consuming when too few bytes are buffered.
//
//   - ConnContext: Typed per-connection state (frame decoder and back reference to the
//     connection) that persists between readiness events.
//
//   - Connection: Listener of one aio.Socket. Flushes output on write readiness, drains
//     input on read readiness and closes itself on I/O or decode errors.
//
//   - Server: Accepts connections on a tcp:// endpoint and tracks the live connections in a
//     concurrent set. Shutdown closes the listener and every live connection.
//
//   - Client: Establishes exactly one outbound connection at construction. A failed connect
//     or a closed connection shuts the client down and notifies its owner once.
//
// Endpoints are URIs of the form tcp://host:port, every other scheme is rejected. Accepted
// and connected sockets are tuned with UpgradeConnection (no-delay, keep-alive, linger and
// buffer sizes from common.TransportConfig).
package transport
