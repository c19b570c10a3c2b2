package binder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/dRPC/lib/promise"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddress(t *testing.T) {
	a := NewAddress(2, 7)
	assert.Equal(t, uint32(2), a.NodeID())
	assert.Equal(t, uint32(7), a.ObjectID())
	assert.Equal(t, "drpc://2.7", a.URI())

	top := NewAddress(^uint32(0), ^uint32(0))
	assert.Equal(t, ^uint32(0), top.NodeID())
	assert.Equal(t, ^uint32(0), top.ObjectID())

	parsed, err := ParseAddress("drpc://2.7")
	require.NoError(t, err)
	assert.Equal(t, a, parsed)

	for _, bad := range []string{"2.7", "drpc://2", "drpc://x.1", "drpc://1.-1", "drpc://4294967296.1", "tcp://1.1"} {
		_, err := ParseAddress(bad)
		assert.ErrorIs(t, err, ErrInvalidAddress, bad)
	}
}

func TestNormalizeDescriptor(t *testing.T) {
	assert.Equal(t, "drpc://interfaces/echo/IEcho", NormalizeDescriptor("ipc://interfaces/echo/IEcho"))
	assert.Equal(t, "drpc://interfaces/echo/IEcho", NormalizeDescriptor("drpc://interfaces/echo/IEcho"))
	assert.Equal(t, "drpc://interfaces/echo/IEcho", NormalizeDescriptor("/interfaces/echo/IEcho"))
}

func TestBinderRunsOffCaller(t *testing.T) {
	release := make(chan struct{})
	b := NewBinder("test/IBlock", func(what int32, data *Parcel) (*Parcel, error) {
		<-release
		return NewParcel(append([]byte("ok:"), data.Data...)), nil
	})

	p, err := b.Transact(1, NewParcel([]byte("x")), 0)
	require.NoError(t, err)
	assert.False(t, p.IsDone())

	close(release)
	reply, err := p.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok:x", string(reply.Data))
}

func TestBinderFailureAndPanic(t *testing.T) {
	b := NewBinder("test/IFail", func(what int32, data *Parcel) (*Parcel, error) {
		if what == 1 {
			return nil, ErrUnknownOperation
		}
		panic("boom")
	})

	p, err := b.Transact(1, nil, 0)
	require.NoError(t, err)
	_, err = p.Await(context.Background())
	assert.ErrorIs(t, err, ErrUnknownOperation)

	p, err = b.Transact(2, nil, 0)
	require.NoError(t, err)
	_, err = p.Await(context.Background())
	assert.ErrorContains(t, err, "panicked")
}

func TestBinderOneway(t *testing.T) {
	called := make(chan int32, 1)
	b := NewBinder("test/IOneway", func(what int32, data *Parcel) (*Parcel, error) {
		called <- what
		return nil, nil
	})

	p, err := b.Transact(3, nil, FlagOneway)
	require.NoError(t, err)
	assert.Nil(t, p)

	select {
	case what := <-called:
		assert.Equal(t, int32(3), what)
	case <-time.After(5 * time.Second):
		t.Fatal("one-way call was not executed")
	}
}

func TestHostResolve(t *testing.T) {
	h := NewHost(4)
	echo := NewBinder("interfaces/echo/IEcho", func(int32, *Parcel) (*Parcel, error) { return nil, nil })
	other := NewBinder("interfaces/other/IOther", func(int32, *Parcel) (*Parcel, error) { return nil, nil })

	echoAddr := h.Publish("interfaces/echo/IEcho", echo)
	otherAddr := h.Register(other)
	assert.Equal(t, uint32(4), echoAddr.NodeID())
	assert.NotEqual(t, echoAddr, otherAddr)
	assert.Equal(t, 2, h.Len())

	b, err := h.GetBinder(otherAddr.URI())
	require.NoError(t, err)
	assert.Same(t, other, b)

	b, err = h.GetBinder("drpc://interfaces/echo/IEcho")
	require.NoError(t, err)
	assert.Same(t, echo, b)

	_, err = h.GetBinder("drpc://4.999")
	assert.ErrorIs(t, err, ErrBinderNotFound)
	_, err = h.GetBinder(NewAddress(5, otherAddr.ObjectID()).URI())
	assert.ErrorIs(t, err, ErrBinderNotFound)
	_, err = h.GetBinder("drpc://interfaces/missing/IMissing")
	assert.ErrorIs(t, err, ErrBinderNotFound)
	_, err = h.GetBinder("garbage")
	assert.ErrorIs(t, err, ErrInvalidAddress)

	h.Unregister(echoAddr)
	_, err = h.GetBinder("drpc://interfaces/echo/IEcho")
	assert.ErrorIs(t, err, ErrBinderNotFound)
	assert.Equal(t, 1, h.Len())
}

// recordingTransactor records the calls a proxy forwards
type recordingTransactor struct {
	mu    sync.Mutex
	calls []string
}

func (r *recordingTransactor) Transact(remote IBinder, what int32, data *Parcel, flags int) (*promise.Promise[*Parcel], error) {
	r.mu.Lock()
	r.calls = append(r.calls, remote.URI())
	r.mu.Unlock()
	if flags&FlagOneway != 0 {
		return nil, nil
	}
	return promise.Resolved(NewParcel(data.Data)), nil
}

func TestProxyForwardsToTransactor(t *testing.T) {
	tr := &recordingTransactor{}
	p := NewProxy(NewAddress(2, 1), "x://interfaces/echo/IEcho", tr)
	named := NewNamedProxy(3, "interfaces/echo/IEcho", "interfaces/echo/IEcho", tr)

	assert.Equal(t, "drpc://interfaces/echo/IEcho", p.Descriptor())
	assert.Equal(t, uint32(3), named.Address().NodeID())

	reply, err := p.Transact(1, NewParcel([]byte("a")), 0)
	require.NoError(t, err)
	v, err := reply.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", string(v.Data))

	_, err = named.Transact(1, NewParcel(nil), FlagOneway)
	require.NoError(t, err)

	assert.Equal(t, []string{"drpc://2.1", "drpc://interfaces/echo/IEcho"}, tr.calls)
}

type greeter interface{ Greet() string }

type greeterProxy struct{ remote IBinder }

func (g *greeterProxy) Greet() string { return "hi from " + g.remote.URI() }

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("x://test/IGreeter",
		func(remote IBinder) any { return &greeterProxy{remote: remote} },
		func(impl any) (Handler, error) {
			g, ok := impl.(greeter)
			if !ok {
				return nil, errors.Errorf("%T is not a greeter", impl)
			}
			return func(int32, *Parcel) (*Parcel, error) { return NewParcel([]byte(g.Greet())), nil }, nil
		})
	assert.True(t, r.Has("drpc://test/IGreeter"))

	g, err := ProxyAs[greeter](r, NewProxy(NewAddress(1, 2), "test/IGreeter", &recordingTransactor{}))
	require.NoError(t, err)
	assert.Equal(t, "hi from drpc://1.2", g.Greet())

	stub, err := r.GetStub("test/IGreeter", &greeterProxy{remote: NewProxy(NewAddress(9, 9), "test/IGreeter", nil)})
	require.NoError(t, err)
	p, err := stub.Transact(1, nil, 0)
	require.NoError(t, err)
	reply, err := p.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hi from drpc://9.9", string(reply.Data))

	_, err = r.GetStub("test/IGreeter", 42)
	assert.Error(t, err)

	_, err = r.GetStub("test/IMissing", nil)
	assert.ErrorIs(t, err, ErrInterfaceNotRegistered)
	_, err = r.GetProxy(NewProxy(NewAddress(1, 1), "test/IMissing", nil))
	assert.ErrorIs(t, err, ErrInterfaceNotRegistered)
}
