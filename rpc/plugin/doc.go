// Package plugin implements the RPC transport plugin of a node. It defines how calls on
// proxies become frames on the wire, how frames become calls on local objects, and how
// replies find their way back to the caller.
//
// The package focuses on:
//   - One outbound connection per remote node, created lazily and cached until it fails
//     or the plugin stops
//   - Correlating asynchronous replies to callers through per-connection transaction ids
//   - Answering every request, failed dispatches with an exception frame
//
// Key Components:
//
//   - Plugin: Entry point. Transact ships a call to the node owning the target (or
//     dispatches it locally), Start serves the node's Host on the endpoint from the
//     directory, Stop tears everything down. Also tracks attached proxies and exposes the
//     interface registry.
//
//   - nodeClient: The client connection to one node plus its transaction table. Two-way
//     calls get the next transaction id (starting at 1), are stored in the table and armed
//     with a timeout (Parcel.Timeout or the configured default of 10 seconds). The entry is
//     removed exactly once, on reply, timeout or connection shutdown. One-way calls are
//     written with transaction id 0 and are never tracked.
//
//   - serverHandler: Decodes requests on inbound connections. The target is resolved via
//     the Host, the call runs off the reactor, and the reply carries the request's
//     transaction id. A failed reply write closes the connection.
//
// Error semantics:
//
// Every failed two-way call reports an error matching common.ErrTransactionFailure, except
// timeouts which report common.ErrTimeout. Calls to nodes without directory entry fail
// before any network I/O. Connection loss fails all pending calls of that connection.
// Replies for unknown transaction ids (late replies after a timeout) are counted, logged
// with a rate limit and dropped.
//
// Metrics:
//
// Counters and a latency histogram are exported through github.com/VictoriaMetrics/metrics
// (see the serve command's /metrics endpoint), per remote node statistics are kept in a
// github.com/rcrowley/go-metrics registry and returned by Stats.
package plugin
