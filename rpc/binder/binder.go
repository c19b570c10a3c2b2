package binder

import (
	"fmt"
	"github.com/ValentinKolb/dRPC/lib/promise"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"sync/atomic"
)

var Logger = logger.GetLogger("binder")

var (
	// ErrBinderNotFound is returned when a target does not resolve to a local object
	ErrBinderNotFound = errors.New("binder not found")
	// ErrUnknownOperation can be returned by handlers for unsupported operation codes
	ErrUnknownOperation = errors.New("unknown operation")
)

// --------------------------------------------------------------------------
// Interface
// --------------------------------------------------------------------------

// IBinder is an invocable object, either local or a proxy for a remote one
type IBinder interface {
	// Address returns the object address, its node component selects the transport path
	Address() Address

	// URI returns the target string used on the wire
	URI() string

	// Descriptor returns the normalized interface descriptor
	Descriptor() string

	// Transact invokes operation what. Two-way calls return a promise of the reply,
	// one-way calls (FlagOneway) return a nil promise.
	Transact(what int32, data *Parcel, flags int) (*promise.Promise[*Parcel], error)
}

// Handler executes one operation of a local object
type Handler func(what int32, data *Parcel) (*Parcel, error)

// --------------------------------------------------------------------------
// Local Binder
// --------------------------------------------------------------------------

// Binder is a local object. Calls run on its executor, never on the caller's goroutine.
type Binder struct {
	address    atomic.Uint64
	descriptor string
	handler    Handler
	executor   promise.Executor
}

// NewBinder creates a local object for descriptor served by handler
func NewBinder(descriptor string, handler Handler) *Binder {
	return &Binder{
		descriptor: NormalizeDescriptor(descriptor),
		handler:    handler,
		executor:   promise.Goroutine,
	}
}

// WithExecutor replaces the executor the handler runs on
func (b *Binder) WithExecutor(executor promise.Executor) *Binder {
	b.executor = executor
	return b
}

// --------------------------------------------------------------------------
// Interface Methods (docu see binder.IBinder)
// --------------------------------------------------------------------------

func (b *Binder) Address() Address {
	return Address(b.address.Load())
}

func (b *Binder) URI() string {
	return b.Address().URI()
}

func (b *Binder) Descriptor() string {
	return b.descriptor
}

func (b *Binder) Transact(what int32, data *Parcel, flags int) (*promise.Promise[*Parcel], error) {
	p := promise.New[*Parcel]()

	b.executor.Execute(func() {
		defer func() {
			if rec := recover(); rec != nil {
				Logger.Errorf("%s operation %d panicked: %v", b.URI(), what, rec)
				p.Fail(errors.Errorf("operation %d panicked: %v", what, rec))
			}
		}()

		reply, err := b.handler(what, data)
		if err != nil {
			p.Fail(err)
			return
		}
		if reply == nil {
			reply = &Parcel{}
		}
		p.Complete(reply)
	})

	if flags&FlagOneway != 0 {
		p.Catch(func(err error) {
			Logger.Debugf("%s one-way operation %d failed: %v", b.URI(), what, err)
		})
		return nil, nil
	}
	return p, nil
}

func (b *Binder) String() string {
	return fmt.Sprintf("%s (%s)", b.URI(), b.descriptor)
}

func (b *Binder) setAddress(a Address) {
	b.address.Store(uint64(a))
}
