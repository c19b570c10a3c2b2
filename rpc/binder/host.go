package binder

import (
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"strings"
	"sync/atomic"
)

// Host owns the local objects of a node and resolves wire targets to them
type Host struct {
	nodeID  uint32
	nextID  atomic.Uint32
	objects *xsync.MapOf[uint32, *Binder]
	names   *xsync.MapOf[string, *Binder]
}

// NewHost creates an empty host for nodeID
func NewHost(nodeID uint32) *Host {
	return &Host{
		nodeID:  nodeID,
		objects: xsync.NewMapOf[uint32, *Binder](),
		names:   xsync.NewMapOf[string, *Binder](),
	}
}

// NodeID returns the node the host belongs to
func (h *Host) NodeID() uint32 {
	return h.nodeID
}

// Register assigns the next free object id to b and makes it reachable
func (h *Host) Register(b *Binder) Address {
	addr := NewAddress(h.nodeID, h.nextID.Add(1))
	b.setAddress(addr)
	h.objects.Store(addr.ObjectID(), b)
	Logger.Debugf("registered %s", b)
	return addr
}

// Publish registers b and additionally makes it reachable under name
func (h *Host) Publish(name string, b *Binder) Address {
	addr := h.Register(b)
	h.names.Store(NormalizeDescriptor(name), b)
	Logger.Infof("published %s as %s", b, NormalizeDescriptor(name))
	return addr
}

// Unregister removes the object at addr and every name it was published under
func (h *Host) Unregister(addr Address) {
	b, ok := h.objects.LoadAndDelete(addr.ObjectID())
	if !ok {
		return
	}
	h.names.Range(func(name string, v *Binder) bool {
		if v == b {
			h.names.Delete(name)
		}
		return true
	})
}

// GetBinder resolves a wire target, either an address drpc://<node>.<object> of this node
// or a published name
func (h *Host) GetBinder(target string) (IBinder, error) {
	if b, ok := h.names.Load(NormalizeDescriptor(target)); ok {
		return b, nil
	}

	addr, err := ParseAddress(target)
	if err != nil {
		if strings.HasPrefix(target, Scheme+"://") {
			return nil, errors.Wrapf(ErrBinderNotFound, "%s", target)
		}
		return nil, err
	}
	if addr.NodeID() != h.nodeID {
		return nil, errors.Wrapf(ErrBinderNotFound, "%s belongs to node %d, this is node %d", target, addr.NodeID(), h.nodeID)
	}

	b, ok := h.objects.Load(addr.ObjectID())
	if !ok {
		return nil, errors.Wrapf(ErrBinderNotFound, "%s", target)
	}
	return b, nil
}

// Len returns the number of registered objects
func (h *Host) Len() int {
	return h.objects.Size()
}
