package aio

import (
	"fmt"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"strings"
	"sync"
	"sync/atomic"
)

var Logger = logger.GetLogger("aio")

var (
	// ErrClosed is returned by operations on a closed socket or reactor
	ErrClosed = errors.New("socket closed")
	// ErrNotConnected is returned by I/O on a socket whose connect has not completed
	ErrNotConnected = errors.New("socket not connected")
	// ErrAlreadyConnected is returned by a second connect on the same socket
	ErrAlreadyConnected = errors.New("socket already connected or connecting")
)

// Op is a set of readiness operations
type Op uint32

const (
	OpClose Op = 1 << iota
	OpRead
	OpWrite
	OpConnect
	OpAccept
)

func (o Op) String() string {
	if o == 0 {
		return "none"
	}
	var parts []string
	for _, op := range []struct {
		op   Op
		name string
	}{{OpClose, "close"}, {OpRead, "read"}, {OpWrite, "write"}, {OpConnect, "connect"}, {OpAccept, "accept"}} {
		if o&op.op != 0 {
			parts = append(parts, op.name)
		}
	}
	return strings.Join(parts, "|")
}

// Listener receives the readiness operations of exactly one channel
type Listener interface {
	OnOperation(ops Op)
}

// ListenerFunc adapts a function to the Listener interface
type ListenerFunc func(ops Op)

func (f ListenerFunc) OnOperation(ops Op) {
	f(ops)
}

// Channel is anything the reactor can deliver readiness operations to
type Channel interface {
	// ID returns the reactor-unique id of the channel
	ID() uint64

	// Close releases the channel, it is idempotent
	Close() error

	// notify queues ops for the channel's dispatcher, false if the channel is closed
	notify(ops Op) bool
}

// --------------------------------------------------------------------------
// Reactor
// --------------------------------------------------------------------------

// Reactor owns all registered channels and bounds how many readiness handlers run at once.
// Readiness itself comes from the Go netpoller, the reactor decides when handlers run.
type Reactor struct {
	channels *xsync.MapOf[uint64, Channel]
	nextID   atomic.Uint64
	workers  chan struct{} // nil means unbounded
	closed   atomic.Bool
	closeMu  sync.RWMutex
}

// NewReactor creates a reactor that runs at most workers handlers concurrently (0 = unbounded)
func NewReactor(workers int) *Reactor {
	r := &Reactor{
		channels: xsync.NewMapOf[uint64, Channel](),
	}
	if workers > 0 {
		r.workers = make(chan struct{}, workers)
	}
	return r
}

// Len returns the number of registered channels
func (r *Reactor) Len() int {
	return r.channels.Size()
}

// Notify queues ops for the channel with the given id
func (r *Reactor) Notify(id uint64, ops Op) bool {
	ch, ok := r.channels.Load(id)
	if !ok {
		return false
	}
	return ch.notify(ops)
}

// Close rejects new registrations and delivers OpClose to every registered channel,
// the channel listeners are responsible for their teardown
func (r *Reactor) Close() {
	r.closeMu.Lock()
	alreadyClosed := r.closed.Swap(true)
	r.closeMu.Unlock()
	if alreadyClosed {
		return
	}

	r.channels.Range(func(id uint64, ch Channel) bool {
		ch.notify(OpClose)
		return true
	})
	Logger.Debugf("reactor closed with %d channels", r.channels.Size())
}

// IsClosed reports whether Close was called
func (r *Reactor) IsClosed() bool {
	return r.closed.Load()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (r *Reactor) register(ch Channel) error {
	r.closeMu.RLock()
	defer r.closeMu.RUnlock()
	if r.closed.Load() {
		return ErrClosed
	}
	r.channels.Store(ch.ID(), ch)
	return nil
}

func (r *Reactor) unregister(id uint64) {
	r.channels.Delete(id)
}

// execute runs fn on the calling dispatcher once a worker slot is free
func (r *Reactor) execute(id uint64, fn func()) {
	if r.workers != nil {
		r.workers <- struct{}{}
		defer func() { <-r.workers }()
	}

	defer func() {
		if rec := recover(); rec != nil {
			Logger.Errorf("handler of channel %d panicked: %v", id, rec)
		}
	}()

	fn()
}

// --------------------------------------------------------------------------
// Event queue shared by Socket and ServerSocket
// --------------------------------------------------------------------------

// eventQueue delivers readiness operations to a single dispatcher goroutine per channel,
// so a listener never runs concurrently with itself
type eventQueue struct {
	id       uint64
	reactor  *Reactor
	listener Listener
	events   chan Op
	acks     map[Op]chan struct{} // immutable after init
	done     chan struct{}
	closed   atomic.Bool
}

func (q *eventQueue) init(r *Reactor, listener Listener, ackOps ...Op) {
	q.id = r.nextID.Add(1)
	q.reactor = r
	q.listener = listener
	q.events = make(chan Op, 8)
	q.done = make(chan struct{})
	q.acks = make(map[Op]chan struct{}, len(ackOps))
	for _, op := range ackOps {
		q.acks[op] = make(chan struct{}, 1)
	}
}

func (q *eventQueue) ID() uint64 {
	return q.id
}

func (q *eventQueue) notify(ops Op) bool {
	select {
	case <-q.done:
		return false
	default:
	}
	select {
	case q.events <- ops:
		return true
	case <-q.done:
		return false
	}
}

// notifyAndWait queues op and blocks until the dispatcher handled it
func (q *eventQueue) notifyAndWait(op Op) bool {
	if !q.notify(op) {
		return false
	}
	select {
	case <-q.acks[op]:
		return true
	case <-q.done:
		return false
	}
}

// markClosed closes the queue once, true for the caller that closed it
func (q *eventQueue) markClosed() bool {
	if !q.closed.CompareAndSwap(false, true) {
		return false
	}
	close(q.done)
	q.reactor.unregister(q.id)
	return true
}

// dispatch is the consumer loop, handle runs inside a reactor worker slot
func (q *eventQueue) dispatch(handle func(ops Op)) {
	for {
		select {
		case ops := <-q.events:
			q.reactor.execute(q.id, func() { handle(ops) })
			for op, ack := range q.acks {
				if ops&op != 0 {
					select {
					case ack <- struct{}{}:
					default:
					}
				}
			}
		case <-q.done:
			return
		}
	}
}

func (q *eventQueue) String() string {
	return fmt.Sprintf("channel-%d", q.id)
}
