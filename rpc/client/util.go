package client

import (
	"context"
	"github.com/ValentinKolb/dRPC/lib/promise"
	"github.com/ValentinKolb/dRPC/rpc/binder"
	"github.com/ValentinKolb/dRPC/rpc/serializer"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"time"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC proxy
// Used by the typed proxies with composition pattern
type rpcClientAdapter struct {
	remote     binder.IBinder
	serializer serializer.IRPCSerializer
	timeout    time.Duration
}

// invokeRPCRequest is a helper function used by all typed proxies to issue two-way calls
// It serializes req, transacts operation what on the remote binder and deserializes the reply into a
// new value of type R once it arrives. A non-positive timeout keeps the transport default.
func invokeRPCRequest[R any](a rpcClientAdapter, what int32, req any) *promise.Promise[R] {
	parcel, err := a.parcel(req)
	if err != nil {
		return promise.Rejected[R](err)
	}

	// Send the request
	reply, err := a.remote.Transact(what, parcel, 0)
	if err != nil {
		return promise.Rejected[R](err)
	}
	if reply == nil {
		return promise.Rejected[R](errors.Errorf("operation %d on %s returned no reply", what, a.remote.URI()))
	}

	// Deserialize the response
	return promise.Map(reply, func(p *binder.Parcel) (R, error) {
		var resp R
		if err := a.serializer.Deserialize(p.Bytes(), &resp); err != nil {
			return resp, errors.Wrapf(err, "failed to deserialize reply of operation %d", what)
		}
		return resp, nil
	})
}

// invokeOnewayRequest serializes req and ships it without waiting for the remote side
func invokeOnewayRequest(a rpcClientAdapter, what int32, req any) error {
	parcel, err := a.parcel(req)
	if err != nil {
		return err
	}
	_, err = a.remote.Transact(what, parcel, binder.FlagOneway)
	return err
}

// await blocks until p is settled. The transport always arms a timeout on two-way calls.
func await[R any](p *promise.Promise[R]) (R, error) {
	return p.Await(context.Background())
}

func (a rpcClientAdapter) parcel(req any) (*binder.Parcel, error) {
	var data []byte
	if req != nil {
		b, err := a.serializer.Serialize(req)
		if err != nil {
			return nil, errors.Wrap(err, "failed to serialize request")
		}
		data = b
	}
	return binder.NewParcel(data).WithTimeout(a.timeout), nil
}
