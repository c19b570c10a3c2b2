// Package client implements typed RPC proxies on top of the binder layer. A proxy
// turns method calls into transactions on a binder.IBinder, which is usually a
// binder.Proxy handed out by the transport plugin but may as well be a local binder.
//
// The package focuses on:
//   - Transparent access to remote interfaces through their Go interface type
//   - Marshaling of arguments and results with an rpc/serializer implementation
//   - Blocking and promise based variants of every two-way operation
//
// Key Components:
//
//   - NewRPCEcho: Factory function that creates a client implementing the echo.IEcho
//     interface. Echo and Ping are two-way calls, Notify is one-way.
//
//   - EchoProxyFactory: Registry hook so binder.Registry and plugin.GetProxy can hand
//     out typed IEcho proxies for the echo descriptor.
//
// Usage Example:
//
//	// Resolve the echo object published on node 2
//	remote := p.NewNamedProxy(2, echo.ServiceName, echo.Descriptor)
//
//	// Wrap it into a typed proxy
//	e := client.NewRPCEcho(remote, serializer.NewBinarySerializer(), 2*time.Second)
//
//	// Use the proxy
//	reply, err := e.Echo("hello")
//
// Error Handling:
//
//	Remote failures surface as errors matching common.ErrTransactionFailure,
//	expired calls as common.ErrTimeout.
package client
