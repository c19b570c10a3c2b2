package plugin

import (
	"github.com/ValentinKolb/dRPC/lib/promise"
	"github.com/ValentinKolb/dRPC/rpc/aio"
	"github.com/ValentinKolb/dRPC/rpc/binder"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/protocol"
	"github.com/ValentinKolb/dRPC/rpc/transport"
	"github.com/pkg/errors"
	"time"
)

// serverHandler decodes requests on inbound connections and hands them to the plugin
type serverHandler struct {
	plugin *Plugin
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IConnectionHandler)
// --------------------------------------------------------------------------

func (h *serverHandler) OnTransact(ctx *transport.ConnContext, in *aio.InputStream, _ *aio.OutputStream) error {
	msg, err := ctx.Decoder.Next(in)
	if err != nil || msg == nil {
		return err
	}
	h.plugin.dispatch(ctx.Connection(), msg)
	return nil
}

// --------------------------------------------------------------------------
// Dispatch
// --------------------------------------------------------------------------

// dispatch resolves the target of a request and replies once the local call completed.
// Failures to resolve or invoke the target are answered with an exception frame.
func (p *Plugin) dispatch(conn *transport.Connection, msg *protocol.Message) {
	p.metrics.framesReceived.Inc()

	if msg.Type != protocol.TypeTransaction {
		Logger.Warningf("invalid message type %s from %s, dropping", msg.Type, conn)
		return
	}

	target, err := p.host.GetBinder(msg.Target)
	if err != nil {
		Logger.Debugf("failed to resolve %s: %v", msg.Target, err)
		p.metrics.dispatchFailed.Inc()
		p.reply(conn, protocol.NewExceptionMessage(msg.Target, msg.TransactionID, msg.What))
		return
	}

	result, err := target.Transact(msg.What, binder.NewParcel(msg.Data), 0)
	if err != nil || result == nil {
		Logger.Debugf("failed to invoke %s operation %d: %v", msg.Target, msg.What, err)
		p.metrics.dispatchFailed.Inc()
		p.reply(conn, protocol.NewExceptionMessage(msg.Target, msg.TransactionID, msg.What))
		return
	}

	p.metrics.dispatched.Inc()
	result.Then(func(reply *binder.Parcel, err error) {
		if err != nil {
			Logger.Debugf("%s operation %d failed: %v", msg.Target, msg.What, err)
			p.metrics.dispatchFailed.Inc()
			p.reply(conn, protocol.NewExceptionMessage(msg.Target, msg.TransactionID, msg.What))
			return
		}
		p.reply(conn, protocol.NewMessage(msg.Target, msg.TransactionID, msg.What, reply.Bytes()))
	})
}

// reply writes a reply frame, a failed write closes the connection
func (p *Plugin) reply(conn *transport.Connection, msg *protocol.Message) {
	if _, err := msg.WriteTo(conn); err != nil {
		if !conn.IsClosed() {
			Logger.Warningf("failed to reply to %s, closing connection: %v", conn, err)
		}
		conn.Close()
		return
	}
	p.metrics.framesSent.Inc()
}

// transactLocal invokes an object of this node without touching the network. The
// outcome is reported the same way as for remote calls.
func (p *Plugin) transactLocal(target string, what int32, data *binder.Parcel, flags int) (*promise.Promise[*binder.Parcel], error) {
	local, err := p.host.GetBinder(target)
	if err != nil {
		return nil, common.TransactionFailure(err, "local call on %s", target)
	}

	result, err := local.Transact(what, data, flags)
	if err != nil {
		return nil, common.TransactionFailure(err, "local call on %s", target)
	}
	if result == nil {
		return nil, nil
	}

	timeout := p.config.TransactionTimeout
	if data != nil && data.Timeout > 0 {
		timeout = data.Timeout
	}

	start := time.Now()
	bridged := promise.New[*binder.Parcel]()
	result.OrTimeout(timeout).Then(func(reply *binder.Parcel, err error) {
		if err != nil && !errors.Is(err, common.ErrTimeout) {
			Logger.Debugf("local call on %s operation %d failed: %v", target, what, err)
			err = common.TransactionFailure(nil, "local call on %s operation %d", target, what)
		}
		p.metrics.transactionDone(p.config.NodeID, outcomeOf(err), start)
		if err != nil {
			bridged.Fail(err)
			return
		}
		bridged.Complete(reply)
	})
	return bridged, nil
}
