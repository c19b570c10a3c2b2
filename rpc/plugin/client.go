package plugin

import (
	"github.com/ValentinKolb/dRPC/lib/promise"
	"github.com/ValentinKolb/dRPC/rpc/aio"
	"github.com/ValentinKolb/dRPC/rpc/binder"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/protocol"
	"github.com/ValentinKolb/dRPC/rpc/transport"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/time/rate"
	"sync/atomic"
	"time"
)

// onewayTransactionID tags one-way requests, replies carrying it are dropped silently
const onewayTransactionID int32 = 0

// nodeClient is the single outbound connection to one remote node plus the table of
// transactions waiting for a reply on it
type nodeClient struct {
	plugin *Plugin
	nodeID uint32
	client *transport.Client

	nextTxID     atomic.Int32
	transactions *xsync.MapOf[int32, *promise.Promise[*binder.Parcel]]

	unmatchedLog *rate.Limiter
}

func newNodeClient(p *Plugin, nodeID uint32, uri string) (*nodeClient, error) {
	nc := &nodeClient{
		plugin:       p,
		nodeID:       nodeID,
		transactions: xsync.NewMapOf[int32, *promise.Promise[*binder.Parcel]](),
		unmatchedLog: rate.NewLimiter(rate.Every(time.Second), 5),
	}

	client, err := transport.NewClient(p.reactor, nodeID, uri, nc, transport.ClientOptions{
		Transport: p.config.Transport,
		OnShutdown: func(*transport.Client) {
			p.onClientShutdown(nc)
		},
	})
	if err != nil {
		return nil, err
	}
	nc.client = client

	Logger.Infof("created client for node %d at %s", nodeID, uri)
	return nc, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IConnectionHandler)
// --------------------------------------------------------------------------

func (c *nodeClient) OnTransact(ctx *transport.ConnContext, in *aio.InputStream, _ *aio.OutputStream) error {
	msg, err := ctx.Decoder.Next(in)
	if err != nil || msg == nil {
		return err
	}
	c.onReply(msg)
	return nil
}

// --------------------------------------------------------------------------
// Transactions
// --------------------------------------------------------------------------

// transact writes one request frame. Two-way calls are tracked until their reply,
// their timeout or the shutdown of the client, whichever comes first.
func (c *nodeClient) transact(target string, what int32, data *binder.Parcel, flags int) (*promise.Promise[*binder.Parcel], error) {
	if flags&binder.FlagOneway != 0 {
		if err := c.write(protocol.NewMessage(target, onewayTransactionID, what, data.Bytes())); err != nil {
			return nil, err
		}
		return nil, nil
	}

	txID := c.nextTransactionID()

	timeout := c.plugin.config.TransactionTimeout
	if data != nil && data.Timeout > 0 {
		timeout = data.Timeout
	}
	if timeout <= 0 {
		timeout = common.DefaultTransactionTimeout
	}

	// stored before the timeout is armed, so the removal below always finds it
	pending := promise.New[*binder.Parcel]()
	c.transactions.Store(txID, pending)

	start := time.Now()
	pending.OrTimeout(timeout).Then(func(_ *binder.Parcel, err error) {
		c.remove(txID, pending)
		c.plugin.metrics.transactionDone(c.nodeID, outcomeOf(err), start)
	})

	if err := c.write(protocol.NewMessage(target, txID, what, data.Bytes())); err != nil {
		pending.Fail(err)
		return nil, err
	}
	return pending, nil
}

// onReply resolves the transaction a reply belongs to
func (c *nodeClient) onReply(msg *protocol.Message) {
	c.plugin.metrics.framesReceived.Inc()

	pending, ok := c.transactions.LoadAndDelete(msg.TransactionID)
	if !ok {
		if msg.TransactionID == onewayTransactionID {
			return
		}
		c.plugin.metrics.unmatched.Inc()
		if c.unmatchedLog.Allow() {
			Logger.Warningf("node %d: dropping reply for unknown transaction %d (late or duplicate)", c.nodeID, msg.TransactionID)
		}
		return
	}

	switch msg.Type {
	case protocol.TypeTransaction:
		pending.Complete(binder.NewParcel(msg.Data))
	case protocol.TypeException:
		pending.Fail(common.TransactionFailure(nil, "node %d failed transaction %d", c.nodeID, msg.TransactionID))
	default:
		pending.Fail(common.TransactionFailure(nil, "node %d replied with %s", c.nodeID, msg.Type))
	}
}

// failAll fails every pending transaction, used once the connection is gone
func (c *nodeClient) failAll() int {
	failed := 0
	c.transactions.Range(func(txID int32, _ *promise.Promise[*binder.Parcel]) bool {
		if pending, ok := c.transactions.LoadAndDelete(txID); ok {
			pending.Fail(common.TransactionFailure(nil, "connection to node %d closed", c.nodeID))
			failed++
		}
		return true
	})
	return failed
}

// pending returns the number of transactions waiting for a reply
func (c *nodeClient) pending() int {
	return c.transactions.Size()
}

func (c *nodeClient) isShutdown() bool {
	return c.client.IsShutdown()
}

func (c *nodeClient) shutdown() {
	c.client.Shutdown()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// write encodes and queues msg. A failed write means the connection is broken and
// shuts the client down.
func (c *nodeClient) write(msg *protocol.Message) error {
	frame, err := msg.Encode()
	if err != nil {
		return common.TransactionFailure(err, "failed to encode request for %s", msg.Target)
	}

	if _, err := c.client.Write(frame); err != nil {
		Logger.Warningf("node %d: write failed, shutting client down: %v", c.nodeID, err)
		c.shutdown()
		return common.TransactionFailure(err, "failed to send request to node %d", c.nodeID)
	}

	c.plugin.metrics.framesSent.Inc()
	return nil
}

func (c *nodeClient) nextTransactionID() int32 {
	for {
		if id := c.nextTxID.Add(1); id != onewayTransactionID {
			return id
		}
	}
}

// remove deletes txID only if it still maps to pending
func (c *nodeClient) remove(txID int32, pending *promise.Promise[*binder.Parcel]) {
	c.transactions.Compute(txID, func(old *promise.Promise[*binder.Parcel], loaded bool) (*promise.Promise[*binder.Parcel], bool) {
		return old, !loaded || old == pending
	})
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, common.ErrTimeout):
		return outcomeTimeout
	case errors.Is(err, common.ErrTransactionFailure):
		return outcomeException
	default:
		return outcomeFailure
	}
}
