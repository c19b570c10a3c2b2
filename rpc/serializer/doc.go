// Package serializer provides payload serialization for parcels exchanged between
// binders. The RPC frame itself only carries opaque bytes; the serializers in this
// package turn typed request and reply values into those bytes and back.
//
// The package focuses on:
//   - Providing a consistent interface for different serialization formats
//   - Offering multiple implementations with different performance characteristics
//   - Letting interface stubs and proxies agree on a format by name
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - binarySerializerImpl: Zero overhead format. Strings and byte slices are copied
//     verbatim, any other value must implement encoding.BinaryMarshaler and
//     encoding.BinaryUnmarshaler.
//
//   - gobSerializerImpl: Implementation using Go's built-in gob encoding, offering
//     good compatibility with Go's type system but with larger serialized sizes.
//
//   - jsonSerializerImpl: Implementation using JSON encoding, useful for debugging
//     or interoperability with peers not written in Go.
//
//   - ByName: Lookup of a serializer by its short name ("binary", "json", "gob"),
//     used by the command line tools.
//
// Performance Characteristics:
//
//   - Binary: Fastest and smallest, but limited to types that know how to encode themselves.
//
//   - JSON: Acceptable performance with moderate payload sizes and human-readable output.
//
//   - GOB: Carries type information in every payload which makes small messages large.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
package serializer
