package client

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dRPC/lib/echo"
	"github.com/ValentinKolb/dRPC/lib/promise"
	"github.com/ValentinKolb/dRPC/rpc/binder"
	"github.com/ValentinKolb/dRPC/rpc/serializer"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

// newEchoBinder builds a local binder speaking the IEcho operation codes with s
func newEchoBinder(s serializer.IRPCSerializer, notified *atomic.Int32) *binder.Binder {
	return binder.NewBinder(echo.Descriptor, func(what int32, data *binder.Parcel) (*binder.Parcel, error) {
		var msg string
		if len(data.Bytes()) > 0 {
			if err := s.Deserialize(data.Bytes(), &msg); err != nil {
				return nil, err
			}
		}
		var reply string
		switch what {
		case echo.OpEcho:
			if msg == "fail" {
				return nil, errBoom
			}
			reply = msg
		case echo.OpPing:
			reply = echo.Pong
		case echo.OpNotify:
			notified.Add(1)
			return nil, nil
		default:
			return nil, binder.ErrUnknownOperation
		}
		out, err := s.Serialize(reply)
		if err != nil {
			return nil, err
		}
		return binder.NewParcel(out), nil
	})
}

func TestRPCEcho(t *testing.T) {
	for _, name := range []string{"binary", "json", "gob"} {
		t.Run(name, func(t *testing.T) {
			s, ok := serializer.ByName(name)
			require.True(t, ok)

			var notified atomic.Int32
			e := NewRPCEcho(newEchoBinder(s, &notified), s, time.Second)

			reply, err := e.Echo("hello")
			require.NoError(t, err)
			assert.Equal(t, "hello", reply)

			reply, err = e.Ping()
			require.NoError(t, err)
			assert.Equal(t, echo.Pong, reply)

			require.NoError(t, e.Notify("note"))
			require.Eventually(t, func() bool { return notified.Load() == 1 }, time.Second, 5*time.Millisecond)
		})
	}
}

func TestRPCEchoPropagatesFailures(t *testing.T) {
	s := serializer.NewBinarySerializer()
	var notified atomic.Int32
	e := NewRPCEcho(newEchoBinder(s, &notified), s, time.Second)

	_, err := e.Echo("fail")
	assert.ErrorIs(t, err, errBoom)
}

func TestRPCEchoAsync(t *testing.T) {
	s := serializer.NewJSONSerializer()
	var notified atomic.Int32
	e := NewRPCEcho(newEchoBinder(s, &notified), s, time.Second)

	replies := make(chan string, 2)
	e.EchoAsync("a").Then(func(v string, err error) {
		assert.NoError(t, err)
		replies <- v
	})
	e.PingAsync().Then(func(v string, err error) {
		assert.NoError(t, err)
		replies <- v
	})

	got := []string{<-replies, <-replies}
	assert.ElementsMatch(t, []string{"a", echo.Pong}, got)
}

func TestRPCEchoUndecodableReply(t *testing.T) {
	// a reply that is not valid json
	remote := binder.NewBinder(echo.Descriptor, func(int32, *binder.Parcel) (*binder.Parcel, error) {
		return binder.NewParcel([]byte("{")), nil
	})
	e := NewRPCEcho(remote, serializer.NewJSONSerializer(), time.Second)

	_, err := e.Ping()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to deserialize reply")
}

// stubTransactor fails every call before anything is sent
type stubTransactor struct{}

func (stubTransactor) Transact(binder.IBinder, int32, *binder.Parcel, int) (*promise.Promise[*binder.Parcel], error) {
	return nil, errBoom
}

func TestRPCEchoTransactError(t *testing.T) {
	remote := binder.NewProxy(binder.NewAddress(2, 1), echo.Descriptor, stubTransactor{})
	e := NewRPCEcho(remote, serializer.NewBinarySerializer(), 0)

	_, err := e.Echo("x")
	assert.ErrorIs(t, err, errBoom)
	assert.ErrorIs(t, e.Notify("x"), errBoom)
}

func TestEchoProxyFactory(t *testing.T) {
	registry := binder.NewRegistry()
	registry.Register(echo.Descriptor, EchoProxyFactory(serializer.NewBinarySerializer(), time.Second), nil)

	remote := binder.NewProxy(binder.NewAddress(2, 1), echo.Descriptor, stubTransactor{})
	proxy, err := binder.ProxyAs[echo.IEcho](registry, remote)
	require.NoError(t, err)

	typed, ok := proxy.(*RPCEcho)
	require.True(t, ok)
	assert.Same(t, remote, typed.Remote())
}
