package binder

import (
	"fmt"
	"github.com/ValentinKolb/dRPC/lib/promise"
)

// ITransactor ships calls of remote objects, implemented by the transport plugin
type ITransactor interface {
	Transact(remote IBinder, what int32, data *Parcel, flags int) (*promise.Promise[*Parcel], error)
}

// Proxy is the local stand-in of a remote object
type Proxy struct {
	address    Address
	target     string
	descriptor string
	transactor ITransactor
}

// NewProxy creates a proxy for the object at address
func NewProxy(address Address, descriptor string, transactor ITransactor) *Proxy {
	return &Proxy{
		address:    address,
		target:     address.URI(),
		descriptor: NormalizeDescriptor(descriptor),
		transactor: transactor,
	}
}

// NewNamedProxy creates a proxy for an object published under name on node
func NewNamedProxy(nodeID uint32, name string, descriptor string, transactor ITransactor) *Proxy {
	return &Proxy{
		address:    NewAddress(nodeID, 0),
		target:     NormalizeDescriptor(name),
		descriptor: NormalizeDescriptor(descriptor),
		transactor: transactor,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see binder.IBinder)
// --------------------------------------------------------------------------

func (p *Proxy) Address() Address {
	return p.address
}

func (p *Proxy) URI() string {
	return p.target
}

func (p *Proxy) Descriptor() string {
	return p.descriptor
}

func (p *Proxy) Transact(what int32, data *Parcel, flags int) (*promise.Promise[*Parcel], error) {
	return p.transactor.Transact(p, what, data, flags)
}

func (p *Proxy) String() string {
	return fmt.Sprintf("proxy %s on node %d (%s)", p.target, p.address.NodeID(), p.descriptor)
}
