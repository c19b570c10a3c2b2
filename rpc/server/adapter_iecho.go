package server

import (
	"github.com/ValentinKolb/dRPC/lib/echo"
	"github.com/ValentinKolb/dRPC/rpc/binder"
	"github.com/ValentinKolb/dRPC/rpc/serializer"
	"github.com/pkg/errors"
)

// NewIEchoServerAdapter creates the server side of echo.IEcho using s for arguments and results
func NewIEchoServerAdapter(s serializer.IRPCSerializer) IRPCServerAdapter {
	return &iEchoServerAdapterImpl{serializer: s}
}

type iEchoServerAdapterImpl struct {
	serializer serializer.IRPCSerializer
}

func (adapter *iEchoServerAdapterImpl) Descriptor() string {
	return echo.Descriptor
}

func (adapter *iEchoServerAdapterImpl) Bind(impl any) (binder.Handler, error) {
	e, ok := impl.(echo.IEcho)
	if !ok {
		return nil, errors.Errorf("%T does not implement IEcho", impl)
	}
	return func(what int32, data *binder.Parcel) (*binder.Parcel, error) {
		return adapter.handle(what, data, e)
	}, nil
}

func (adapter *iEchoServerAdapterImpl) handle(what int32, data *binder.Parcel, e echo.IEcho) (*binder.Parcel, error) {
	// Handle different operation codes
	switch what {
	case echo.OpEcho:
		msg, err := adapter.readString(data)
		if err != nil {
			return nil, err
		}
		reply, err := e.Echo(msg)
		if err != nil {
			return nil, err
		}
		return adapter.writeString(reply)
	case echo.OpPing:
		reply, err := e.Ping()
		if err != nil {
			return nil, err
		}
		return adapter.writeString(reply)
	case echo.OpNotify:
		msg, err := adapter.readString(data)
		if err != nil {
			return nil, err
		}
		if err := e.Notify(msg); err != nil {
			return nil, err
		}
		return nil, nil
	default:
		return nil, errors.Wrapf(binder.ErrUnknownOperation, "RPC IEchoAdapter - Unsupported operation: %d", what)
	}
}

func (adapter *iEchoServerAdapterImpl) readString(data *binder.Parcel) (string, error) {
	var msg string
	if len(data.Bytes()) == 0 {
		return msg, nil
	}
	if err := adapter.serializer.Deserialize(data.Bytes(), &msg); err != nil {
		return "", errors.Wrap(err, "failed to deserialize request")
	}
	return msg, nil
}

func (adapter *iEchoServerAdapterImpl) writeString(reply string) (*binder.Parcel, error) {
	b, err := adapter.serializer.Serialize(reply)
	if err != nil {
		return nil, errors.Wrap(err, "failed to serialize response")
	}
	return binder.NewParcel(b), nil
}
