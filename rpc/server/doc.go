// Package server implements the node runtime of the dRPC system. A node owns the
// object host, the interface registry and the RPC transport plugin, publishes the
// built-in services and exposes metrics and profiling endpoints.
//
// The package focuses on:
//   - Server-side stubs that turn incoming transactions into calls on typed implementations
//   - Adapter pattern to decouple service logic from parcels and serializers
//   - Wiring the node directory (static or etcd) into the plugin
//   - Process lifecycle: start, signal handling, graceful stop
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters. Bind
//     checks an implementation and returns the handler of its local binder.
//
//   - NewIEchoServerAdapter: Factory function creating the adapter for echo.IEcho,
//     translating operation codes to IEcho method calls.
//
//   - RegisterInterfaces: Registers proxy and stub factories of all built-in interfaces.
//
//   - OpenDirectory: Builds the node directory from the server configuration.
//
//   - NewRPCServer: Factory function creating a configured Node.
//
// Usage Example:
//
//	// Create server configuration
//	config := common.ServerConfig{
//	  Plugin: common.DefaultPluginConfig(1),
//	  Nodes: map[uint32]string{
//	    1: "tcp://127.0.0.1:9000",
//	    2: "tcp://127.0.0.1:9001",
//	  },
//	  MetricsEndpoint: "127.0.0.1:9100",
//	  LogLevel:        "info",
//	}
//
//	dir, release, _ := server.OpenDirectory(ctx, config)
//	defer release()
//
//	// Create and start the node
//	n := server.NewRPCServer(config, dir, serializer.NewBinarySerializer())
//	if err := n.Serve(ctx); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Every node publishes its echo object under echo.ServiceName, so other nodes reach it
// with a named proxy without knowing its object id.
//
// Thread Safety:
//
//	The node is thread-safe. Start and Stop may be called once each, Stop is idempotent.
package server
