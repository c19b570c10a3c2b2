package directory

import (
	"context"
	"github.com/ValentinKolb/dRPC/rpc/transport"
	"github.com/pkg/errors"
	clientv3 "go.etcd.io/etcd/client/v3"
	"strings"
	"sync"
	"time"
)

// DefaultEtcdPrefix is the key prefix node endpoints are stored under
const DefaultEtcdPrefix = "/drpc/nodes/"

// EtcdConfig configures an etcd backed directory
type EtcdConfig struct {
	Endpoints   []string
	Prefix      string
	DialTimeout time.Duration

	// LeaseTTL is the lifetime in seconds of a published entry without keep alive
	LeaseTTL int64
}

// EtcdDirectory stores node endpoints in etcd as <prefix><nodeID> = tcp://host:port.
// Published entries are bound to a lease, so they disappear when the node dies.
// Lookups are served from the snapshot taken by Load.
type EtcdDirectory struct {
	client *clientv3.Client
	config EtcdConfig

	mu       sync.RWMutex
	snapshot *StaticDirectory
	leaseID  clientv3.LeaseID
	cancel   context.CancelFunc
}

// NewEtcdDirectory connects to etcd, nothing is loaded until Load
func NewEtcdDirectory(config EtcdConfig) (*EtcdDirectory, error) {
	if len(config.Endpoints) == 0 {
		return nil, errors.New("no etcd endpoints configured")
	}
	if config.Prefix == "" {
		config.Prefix = DefaultEtcdPrefix
	}
	if !strings.HasSuffix(config.Prefix, "/") {
		config.Prefix += "/"
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = 5 * time.Second
	}
	if config.LeaseTTL <= 0 {
		config.LeaseTTL = 10
	}

	c, err := clientv3.New(clientv3.Config{
		Endpoints:   config.Endpoints,
		DialTimeout: config.DialTimeout,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to etcd")
	}

	return &EtcdDirectory{
		client:   c,
		config:   config,
		snapshot: &StaticDirectory{nodes: map[uint32]string{}},
	}, nil
}

// Publish stores the endpoint of nodeID with a lease that is kept alive until Close
func (d *EtcdDirectory) Publish(ctx context.Context, nodeID uint32, uri string) error {
	if _, err := transport.ParseURI(uri); err != nil {
		return err
	}

	lease, err := d.client.Grant(ctx, d.config.LeaseTTL)
	if err != nil {
		return errors.Wrap(err, "failed to grant lease")
	}

	if _, err := d.client.Put(ctx, d.key(nodeID), uri, clientv3.WithLease(lease.ID)); err != nil {
		return errors.Wrapf(err, "failed to publish node %d", nodeID)
	}

	keepAliveCtx, cancel := context.WithCancel(context.Background())
	ch, err := d.client.KeepAlive(keepAliveCtx, lease.ID)
	if err != nil {
		cancel()
		return errors.Wrap(err, "failed to keep lease alive")
	}

	// drain keep alive responses so the channel never fills up
	go func() {
		for range ch {
		}
		Logger.Debugf("lease keep alive for node %d stopped", nodeID)
	}()

	d.mu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.leaseID = lease.ID
	d.cancel = cancel
	d.mu.Unlock()

	Logger.Infof("published node %d as %s under %s", nodeID, uri, d.key(nodeID))
	return nil
}

// Load replaces the snapshot with all entries currently stored under the prefix
func (d *EtcdDirectory) Load(ctx context.Context) error {
	resp, err := d.client.Get(ctx, d.config.Prefix, clientv3.WithPrefix())
	if err != nil {
		return errors.Wrap(err, "failed to load node directory")
	}

	entries := make(map[string]string, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		entries[string(kv.Key)] = string(kv.Value)
	}

	nodes := parseEntries(d.config.Prefix, entries)
	snapshot, err := NewStaticDirectory(nodes)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.snapshot = snapshot
	d.mu.Unlock()

	Logger.Infof("loaded %d nodes from etcd", len(nodes))
	return nil
}

// Close revokes the published entry and closes the etcd client
func (d *EtcdDirectory) Close() error {
	d.mu.Lock()
	cancel, leaseID := d.cancel, d.leaseID
	d.cancel = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
		ctx, done := context.WithTimeout(context.Background(), d.config.DialTimeout)
		if _, err := d.client.Revoke(ctx, leaseID); err != nil {
			Logger.Warningf("failed to revoke lease: %v", err)
		}
		done()
	}
	return d.client.Close()
}

// --------------------------------------------------------------------------
// Interface Methods (docu see directory.INodeDirectory)
// --------------------------------------------------------------------------

func (d *EtcdDirectory) Lookup(nodeID uint32) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snapshot.Lookup(nodeID)
}

func (d *EtcdDirectory) Nodes() map[uint32]string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.snapshot.Nodes()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (d *EtcdDirectory) key(nodeID uint32) string {
	return nodeKey(d.config.Prefix, nodeID)
}

func nodeKey(prefix string, nodeID uint32) string {
	return prefix + formatID(nodeID)
}

// parseEntries turns <prefix><id> = uri pairs into a node map, malformed keys are skipped
func parseEntries(prefix string, entries map[string]string) map[uint32]string {
	nodes := make(map[uint32]string, len(entries))
	for key, uri := range entries {
		idPart, ok := strings.CutPrefix(key, prefix)
		if !ok {
			continue
		}
		id, err := ParseNodeID(idPart)
		if err != nil {
			Logger.Warningf("skipping etcd key %q: %v", key, err)
			continue
		}
		if _, err := transport.ParseURI(uri); err != nil {
			Logger.Warningf("skipping node %d: %v", id, err)
			continue
		}
		nodes[id] = uri
	}
	return nodes
}
