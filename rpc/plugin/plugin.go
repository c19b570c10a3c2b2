package plugin

import (
	"github.com/ValentinKolb/dRPC/lib/promise"
	"github.com/ValentinKolb/dRPC/rpc/aio"
	"github.com/ValentinKolb/dRPC/rpc/binder"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/directory"
	"github.com/ValentinKolb/dRPC/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"
	"sort"
	"sync"
	"sync/atomic"
)

var Logger = logger.GetLogger("plugin")

// ErrStopped is returned by calls issued after Stop
var ErrStopped = errors.New("plugin stopped")

// Plugin is the RPC transport of one node. It serves the node's local objects to other
// nodes and ships calls on proxies to the node owning the target object.
type Plugin struct {
	config    common.PluginConfig
	directory directory.INodeDirectory
	host      *binder.Host
	registry  *binder.Registry
	reactor   *aio.Reactor
	metrics   *pluginMetrics

	mu     sync.Mutex
	server *transport.Server

	clients *xsync.MapOf[uint32, *nodeClient]
	proxies *xsync.MapOf[uint32, *xsync.MapOf[uint64, binder.IBinder]]

	stopped atomic.Bool
}

// New creates a plugin for config.NodeID. Nothing is bound until Start, calls to other
// nodes work right away.
func New(config common.PluginConfig, dir directory.INodeDirectory, host *binder.Host, registry *binder.Registry) *Plugin {
	if config.TransactionTimeout <= 0 {
		config.TransactionTimeout = common.DefaultTransactionTimeout
	}
	if host == nil {
		host = binder.NewHost(config.NodeID)
	}
	if registry == nil {
		registry = binder.NewRegistry()
	}

	return &Plugin{
		config:    config,
		directory: dir,
		host:      host,
		registry:  registry,
		reactor:   aio.NewReactor(config.ReactorWorkers),
		metrics:   newPluginMetrics(config.NodeID),
		clients:   xsync.NewMapOf[uint32, *nodeClient](),
		proxies:   xsync.NewMapOf[uint32, *xsync.MapOf[uint64, binder.IBinder]](),
	}
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Start serves the local host on the endpoint the directory lists for this node.
// Without an entry the plugin only issues calls.
func (p *Plugin) Start() error {
	if p.stopped.Load() {
		return ErrStopped
	}

	uri, ok := p.directory.Lookup(p.config.NodeID)
	if !ok {
		Logger.Warningf("node %d has no directory entry, running client-only", p.config.NodeID)
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.server != nil {
		return errors.Errorf("node %d already serving on %s", p.config.NodeID, p.server.URI())
	}

	server := transport.NewServer(p.reactor, &serverHandler{plugin: p}, p.config.Transport)
	if err := server.Start(uri); err != nil {
		return errors.Wrapf(err, "failed to start server of node %d", p.config.NodeID)
	}
	p.server = server

	Logger.Infof("node %d serving %d objects on %s", p.config.NodeID, p.host.Len(), server.URI())
	return nil
}

// Stop shuts the server down and every client, failing all pending transactions
func (p *Plugin) Stop() {
	if !p.stopped.CompareAndSwap(false, true) {
		return
	}

	p.mu.Lock()
	server := p.server
	p.mu.Unlock()
	if server != nil {
		server.Shutdown()
	}

	p.clients.Range(func(_ uint32, c *nodeClient) bool {
		c.shutdown()
		return true
	})

	p.reactor.Close()
	Logger.Infof("node %d stopped", p.config.NodeID)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see binder.ITransactor)
// --------------------------------------------------------------------------

// Transact ships a call on remote to the node owning it. An unknown node fails right away
// without any network I/O, calls on objects of this node are dispatched locally.
func (p *Plugin) Transact(remote binder.IBinder, what int32, data *binder.Parcel, flags int) (*promise.Promise[*binder.Parcel], error) {
	if p.stopped.Load() {
		return nil, common.TransactionFailure(ErrStopped, "call on %s", remote.URI())
	}

	node := remote.Address().NodeID()
	if node == p.config.NodeID {
		return p.transactLocal(remote.URI(), what, data, flags)
	}

	client, err := p.getClient(node)
	if err != nil {
		p.metrics.unresolvable(node)
		return nil, err
	}
	return client.transact(remote.URI(), what, data, flags)
}

// --------------------------------------------------------------------------
// Proxies and stubs
// --------------------------------------------------------------------------

// NewProxy returns a proxy that ships its calls through this plugin
func (p *Plugin) NewProxy(address binder.Address, descriptor string) *binder.Proxy {
	return binder.NewProxy(address, descriptor, p)
}

// NewNamedProxy returns a proxy for an object published under name on node
func (p *Plugin) NewNamedProxy(node uint32, name string, descriptor string) *binder.Proxy {
	return binder.NewNamedProxy(node, name, descriptor, p)
}

// GetProxy returns the typed proxy for remote from the interface registry
func (p *Plugin) GetProxy(remote binder.IBinder) (any, error) {
	return p.registry.GetProxy(remote)
}

// GetStub wraps impl into a local binder for descriptor from the interface registry
func (p *Plugin) GetStub(descriptor string, impl any) (*binder.Binder, error) {
	return p.registry.GetStub(descriptor, impl)
}

// AttachProxy records a live proxy of a remote object
func (p *Plugin) AttachProxy(proxyID uint64, proxy binder.IBinder) {
	node := proxy.Address().NodeID()
	set, _ := p.proxies.LoadOrCompute(node, func() *xsync.MapOf[uint64, binder.IBinder] {
		return xsync.NewMapOf[uint64, binder.IBinder]()
	})
	set.Store(proxyID, proxy)
}

// DetachProxy forgets a proxy. The node's client stays open until it fails or Stop.
func (p *Plugin) DetachProxy(proxyID uint64, address binder.Address) {
	if set, ok := p.proxies.Load(address.NodeID()); ok {
		set.Delete(proxyID)
	}
}

// Proxies returns the number of attached proxies for node
func (p *Plugin) Proxies(node uint32) int {
	if set, ok := p.proxies.Load(node); ok {
		return set.Size()
	}
	return 0
}

// --------------------------------------------------------------------------
// Introspection
// --------------------------------------------------------------------------

// NodeID returns the local node id
func (p *Plugin) NodeID() uint32 {
	return p.config.NodeID
}

// Host returns the local objects served by the plugin
func (p *Plugin) Host() *binder.Host {
	return p.host
}

// Registry returns the interface registry
func (p *Plugin) Registry() *binder.Registry {
	return p.registry
}

// URI returns the endpoint the plugin serves on, empty when client-only
func (p *Plugin) URI() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.server == nil {
		return ""
	}
	return p.server.URI()
}

// Connections returns the number of inbound connections
func (p *Plugin) Connections() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.server == nil {
		return 0
	}
	return p.server.Connections()
}

// Clients returns the ids of all nodes with a cached client, ascending
func (p *Plugin) Clients() []uint32 {
	var nodes []uint32
	p.clients.Range(func(node uint32, _ *nodeClient) bool {
		nodes = append(nodes, node)
		return true
	})
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	return nodes
}

// Pending returns the number of transactions waiting for a reply from node
func (p *Plugin) Pending(node uint32) int {
	if c, ok := p.clients.Load(node); ok {
		return c.pending()
	}
	return 0
}

// Stats returns latency and failure statistics per remote node
func (p *Plugin) Stats() map[uint32]NodeStats {
	stats := make(map[uint32]NodeStats)
	for _, node := range p.metrics.nodes() {
		stats[node] = p.metrics.stats(node)
	}
	return stats
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// getClient returns the cached client of node or creates one
func (p *Plugin) getClient(node uint32) (*nodeClient, error) {
	for attempt := 0; attempt < 2; attempt++ {
		if c, ok := p.clients.Load(node); ok && !c.isShutdown() {
			return c, nil
		} else if ok {
			p.evict(c)
		}

		uri, ok := p.directory.Lookup(node)
		if !ok {
			return nil, common.TransactionFailure(common.ErrUnknownNode, "node %d", node)
		}

		var createErr error
		c, _ := p.clients.Compute(node, func(old *nodeClient, loaded bool) (*nodeClient, bool) {
			if loaded && !old.isShutdown() {
				return old, false
			}
			created, err := newNodeClient(p, node, uri)
			if err != nil {
				createErr = err
				return nil, true
			}
			return created, false
		})
		if createErr != nil {
			return nil, common.TransactionFailure(createErr, "failed to create client for node %d", node)
		}

		if p.stopped.Load() {
			c.shutdown()
			return nil, common.TransactionFailure(ErrStopped, "node %d", node)
		}
		if !c.isShutdown() {
			return c, nil
		}
	}
	return nil, common.TransactionFailure(nil, "client for node %d shut down", node)
}

// onClientShutdown drops the client from the cache and fails what was pending on it
func (p *Plugin) onClientShutdown(c *nodeClient) {
	p.evict(c)
	if failed := c.failAll(); failed > 0 {
		Logger.Warningf("connection to node %d closed, failed %d pending transactions", c.nodeID, failed)
	} else {
		Logger.Infof("connection to node %d closed", c.nodeID)
	}
}

// evict removes c from the cache only if it is still the cached client of its node
func (p *Plugin) evict(c *nodeClient) {
	p.clients.Compute(c.nodeID, func(old *nodeClient, loaded bool) (*nodeClient, bool) {
		return old, !loaded || old == c
	})
}
