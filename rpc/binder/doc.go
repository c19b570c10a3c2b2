// Package binder defines the object model the RPC transport moves calls between: addressable
// objects, the parcels carrying their arguments and results, and the registries that resolve
// targets and interfaces.
//
// Key Components:
//
//   - Address: node id (high 32 bits) and node-local object id (low 32 bits). The wire form is
//     drpc://<node>.<object>.
//
//   - IBinder: An invocable object. Binder is a local object whose handler runs off the
//     caller's goroutine, Proxy forwards calls to an ITransactor (the transport plugin).
//
//   - Host: The local objects of a node. Resolves wire targets either by address or by a
//     published name.
//
//   - Registry: Interface descriptor to proxy and stub factories, populated explicitly at startup.
//     Descriptors are normalized to the drpc:// scheme.
package binder
