package binder

import (
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
)

// ErrInterfaceNotRegistered is returned for descriptors without proxy and stub factories
var ErrInterfaceNotRegistered = errors.New("interface not registered")

// ProxyFactory wraps a remote binder into a typed client-side proxy
type ProxyFactory func(remote IBinder) any

// StubFactory turns a typed implementation into the handler of a local binder
type StubFactory func(impl any) (Handler, error)

type registryEntry struct {
	proxy ProxyFactory
	stub  StubFactory
}

// Registry maps interface descriptors to their proxy and stub factories. It is populated
// explicitly at startup.
type Registry struct {
	entries *xsync.MapOf[string, registryEntry]
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: xsync.NewMapOf[string, registryEntry]()}
}

// Register adds the factories of descriptor, replacing earlier ones
func (r *Registry) Register(descriptor string, proxy ProxyFactory, stub StubFactory) {
	r.entries.Store(NormalizeDescriptor(descriptor), registryEntry{proxy: proxy, stub: stub})
}

// Has reports whether descriptor is registered
func (r *Registry) Has(descriptor string) bool {
	_, ok := r.entries.Load(NormalizeDescriptor(descriptor))
	return ok
}

// GetProxy returns the typed proxy for remote based on its descriptor
func (r *Registry) GetProxy(remote IBinder) (any, error) {
	entry, ok := r.entries.Load(remote.Descriptor())
	if !ok || entry.proxy == nil {
		return nil, errors.Wrapf(ErrInterfaceNotRegistered, "no proxy for %s", remote.Descriptor())
	}
	return entry.proxy(remote), nil
}

// GetStub wraps impl into a local binder for descriptor
func (r *Registry) GetStub(descriptor string, impl any) (*Binder, error) {
	descriptor = NormalizeDescriptor(descriptor)
	entry, ok := r.entries.Load(descriptor)
	if !ok || entry.stub == nil {
		return nil, errors.Wrapf(ErrInterfaceNotRegistered, "no stub for %s", descriptor)
	}
	handler, err := entry.stub(impl)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create stub for %s", descriptor)
	}
	return NewBinder(descriptor, handler), nil
}

// ProxyAs returns the proxy for remote as T
func ProxyAs[T any](r *Registry, remote IBinder) (T, error) {
	var zero T
	proxy, err := r.GetProxy(remote)
	if err != nil {
		return zero, err
	}
	typed, ok := proxy.(T)
	if !ok {
		return zero, errors.Errorf("proxy for %s has type %T", remote.Descriptor(), proxy)
	}
	return typed, nil
}
