package server

import (
	"github.com/ValentinKolb/dRPC/rpc/binder"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for turning incoming transactions into calls on a typed implementation
type IRPCServerAdapter interface {
	// Descriptor returns the interface descriptor the adapter serves
	Descriptor() string
	// Bind checks that impl implements the served interface and returns the handler of its binder
	Bind(impl any) (binder.Handler, error)
}

// stubFactory turns an adapter into the registry hook for its descriptor
func stubFactory(adapter IRPCServerAdapter) binder.StubFactory {
	return adapter.Bind
}
