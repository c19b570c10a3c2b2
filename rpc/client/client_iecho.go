package client

import (
	"github.com/ValentinKolb/dRPC/lib/echo"
	"github.com/ValentinKolb/dRPC/lib/promise"
	"github.com/ValentinKolb/dRPC/rpc/binder"
	"github.com/ValentinKolb/dRPC/rpc/serializer"
	"time"
)

// NewRPCEcho creates a typed IEcho proxy for the remote binder
// The function takes the remote binder, a serializer and a per-call timeout (0 keeps the transport default)
func NewRPCEcho(remote binder.IBinder, serializer serializer.IRPCSerializer, timeout time.Duration) *RPCEcho {
	return &RPCEcho{
		rpcClientAdapter{
			remote:     remote,
			serializer: serializer,
			timeout:    timeout,
		},
	}
}

// EchoProxyFactory returns the registry proxy factory for IEcho
func EchoProxyFactory(serializer serializer.IRPCSerializer, timeout time.Duration) binder.ProxyFactory {
	return func(remote binder.IBinder) any {
		return NewRPCEcho(remote, serializer, timeout)
	}
}

// RPCEcho is the client side of echo.IEcho
type RPCEcho struct {
	rpcClientAdapter
}

var _ echo.IEcho = (*RPCEcho)(nil)

// --------------------------------------------------------------------------
// Interface Methods (docu see echo.IEcho)
// --------------------------------------------------------------------------

func (e *RPCEcho) Echo(msg string) (string, error) {
	return await(e.EchoAsync(msg))
}

func (e *RPCEcho) Ping() (string, error) {
	return await(e.PingAsync())
}

func (e *RPCEcho) Notify(msg string) error {
	return invokeOnewayRequest(e.rpcClientAdapter, echo.OpNotify, msg)
}

// --------------------------------------------------------------------------
// Asynchronous Variants
// --------------------------------------------------------------------------

// EchoAsync is Echo without blocking the caller
func (e *RPCEcho) EchoAsync(msg string) *promise.Promise[string] {
	return invokeRPCRequest[string](e.rpcClientAdapter, echo.OpEcho, msg)
}

// PingAsync is Ping without blocking the caller
func (e *RPCEcho) PingAsync() *promise.Promise[string] {
	return invokeRPCRequest[string](e.rpcClientAdapter, echo.OpPing, nil)
}

// Remote returns the binder the proxy talks to
func (e *RPCEcho) Remote() binder.IBinder {
	return e.remote
}
