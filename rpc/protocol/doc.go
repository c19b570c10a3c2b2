// Package protocol defines the binary wire frame exchanged between nodes and a
// resumable decoder that reassembles frames from a stream delivered in arbitrary chunks.
//
// Frame format (network byte order, the length does not count itself):
//
//	[int32  totalLength]
//	[int32  type]                      1 = transaction / result, 2 = exception
//	[uint16 targetLen][targetLen bytes ASCII target]
//	[int32  transactionId]
//	[int32  operationCode]
//	[int32  payloadSize][payloadSize bytes payload]
//
// Key Components:
//
//   - Message: One frame. Requests and normal replies share the transaction type,
//     failed replies use the exception type and carry a generic failure payload.
//
//   - Decoder: Two-state machine (awaiting length, awaiting body). Next never consumes
//     bytes it cannot turn into progress, so it can be called on every readiness event
//     and keeps the parsed length between calls.
package protocol
