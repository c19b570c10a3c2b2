// Package cmd implements the command-line interface of dRPC. It provides a
// hierarchical command structure for running nodes and calling them as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Starts a node that serves the built-in services on its directory endpoint
//   - call: Invokes the echo service of a node (echo, ping, notify, perf)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// All flags can also be set as DRPC_<FLAG> environment variables, in a .env file or
// in the file passed with --config.
//
// See drpc -help for a list of all commands.
package cmd
