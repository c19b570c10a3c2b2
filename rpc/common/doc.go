// Package common provides configuration structures, shared errors and logging
// utilities used by every other package of the dRPC system.
//
// The package focuses on:
//   - Configuration structures for the RPC plugin, its transport and the node runtime
//   - The uniform error kinds callers observe for failed remote calls
//   - Custom logging implementation integrated with Dragonboat's logger interface
//
// Key Components:
//
//   - PluginConfig: Node id, default transaction timeout, reactor worker bound and the
//     socket options (TransportConfig) applied to every accepted and connected socket.
//
//   - ServerConfig: Everything a node started from the command line needs, including
//     the node directory source (static list or etcd), logging and metrics endpoint.
//
//   - ErrTransactionFailure / TransactionFailure: The single remote-failure error kind.
//     Connection loss, remote dispatch failures and unknown nodes all match it with
//     errors.Is, while the local cause stays available for logging.
//
//   - ErrTimeout: Reported by two-way calls whose reply did not arrive in time.
//
//   - Logger: Custom logging implementation that integrates with Dragonboat's
//     logging system, backed by zap and optionally written to a rotated file.
package common
