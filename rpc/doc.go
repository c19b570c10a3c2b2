// Package rpc provides a framework for invoking methods on objects that live on
// other nodes. It acts as the communication layer between the nodes of the system.
//
// The package is organized into several subpackages:
//
//   - aio: Readiness based non-blocking sockets, server sockets and byte streams
//     driven by a reactor.
//
//   - protocol: The length-prefixed binary frame and its resumable decoder.
//
//   - transport: Connection templates for the server and client role and the
//     tcp:// endpoint handling.
//
//   - binder: Object addresses, parcels, local binders, proxies, the object host
//     and the interface registry.
//
//   - directory: Node id to endpoint resolution, static or backed by etcd.
//
//   - plugin: The RPC transport plugin with its per-node client cache, transaction
//     tables and server-side dispatch.
//
//   - serializer: Payload serialization with multiple format options (Binary, JSON, GOB).
//
//   - client: Typed proxies of remote interfaces.
//
//   - server: The node runtime and the server-side stubs of the built-in interfaces.
//
//   - common: Configuration structures, shared errors and logging.
package rpc
