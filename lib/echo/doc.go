// Package echo defines IEcho, a small remote interface used to exercise the RPC
// stack end to end, together with its in-process implementation.
//
// Operations:
//
//   - Echo (op 1): returns the message unchanged.
//   - Ping (op 2): returns "pong".
//   - Notify (op 3): one-way call, the caller never sees the remote outcome.
//
// The typed proxy lives in rpc/client and the server stub in rpc/server; both
// marshal arguments with an rpc/serializer implementation.
package echo
