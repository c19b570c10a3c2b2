package server

import (
	"context"
	"github.com/ValentinKolb/dRPC/lib/echo"
	"github.com/ValentinKolb/dRPC/rpc/binder"
	"github.com/ValentinKolb/dRPC/rpc/client"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/directory"
	"github.com/ValentinKolb/dRPC/rpc/plugin"
	"github.com/ValentinKolb/dRPC/rpc/serializer"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

var Logger = logger.GetLogger("rpc")

// shutdownTimeout bounds the graceful shutdown of the metrics endpoint
const shutdownTimeout = 5 * time.Second

// NewRPCServer creates a new node
// It takes a config, the node directory and the serializer of the built-in services as parameters
//
// Usage:
//
//	n := server.NewRPCServer(
//		*config,
//		dir,
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := n.Serve(context.Background()); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	dir directory.INodeDirectory,
	serializer serializer.IRPCSerializer,
) *Node {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	registry := binder.NewRegistry()
	RegisterInterfaces(registry, serializer, 0)

	host := binder.NewHost(config.Plugin.NodeID)

	Logger.Infof("Created RPC Server")
	Logger.Infof("%s", config.String())

	return &Node{
		config:     config,
		serializer: serializer,
		plugin:     plugin.New(config.Plugin, dir, host, registry),
		echo:       echo.NewLocalEcho(),
	}
}

// RegisterInterfaces adds the proxy and stub factories of all built-in interfaces to registry
func RegisterInterfaces(registry *binder.Registry, s serializer.IRPCSerializer, timeout time.Duration) {
	adapters := []IRPCServerAdapter{
		NewIEchoServerAdapter(s),
	}
	proxies := map[string]binder.ProxyFactory{
		echo.Descriptor: client.EchoProxyFactory(s, timeout),
	}
	for _, adapter := range adapters {
		registry.Register(adapter.Descriptor(), proxies[adapter.Descriptor()], stubFactory(adapter))
	}
}

// Node is one process of the system: it serves its published objects through the RPC
// plugin and exposes metrics and profiling over http
type Node struct {
	config     common.ServerConfig
	serializer serializer.IRPCSerializer
	plugin     *plugin.Plugin
	echo       *echo.LocalEcho
	echoAddr   binder.Address

	mu          sync.Mutex
	httpServer  *http.Server
	metricsAddr net.Addr

	started atomic.Bool
	stopped atomic.Bool
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Start publishes the built-in services, starts the plugin and the metrics endpoint
func (n *Node) Start() error {
	if !n.started.CompareAndSwap(false, true) {
		return errors.New("node already started")
	}

	if err := n.init(); err != nil {
		return err
	}

	if err := n.plugin.Start(); err != nil {
		return err
	}

	if n.config.MetricsEndpoint != "" {
		if err := n.startHTTP(n.config.MetricsEndpoint); err != nil {
			n.plugin.Stop()
			return err
		}
	}

	Logger.Infof("dRPC node %d setup completed successfully", n.config.Plugin.NodeID)
	return nil
}

// Serve starts the node and blocks until ctx is done or the process receives SIGINT or SIGTERM
func (n *Node) Serve(ctx context.Context) error {
	if err := n.Start(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	Logger.Infof("shutting down node %d", n.config.Plugin.NodeID)
	n.Stop()
	return nil
}

// Stop closes the metrics endpoint and the plugin, then logs the call statistics
func (n *Node) Stop() {
	if !n.stopped.CompareAndSwap(false, true) {
		return
	}

	n.mu.Lock()
	httpServer := n.httpServer
	n.mu.Unlock()

	if httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := httpServer.Shutdown(ctx); err != nil {
			Logger.Warningf("failed to shut down metrics endpoint: %v", err)
		}
		cancel()
	}

	n.plugin.Stop()
	n.logStats()
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// Plugin returns the RPC plugin of the node
func (n *Node) Plugin() *plugin.Plugin {
	return n.plugin
}

// Echo returns the local echo implementation served by the node
func (n *Node) Echo() *echo.LocalEcho {
	return n.echo
}

// EchoAddress returns the address of the published echo object
func (n *Node) EchoAddress() binder.Address {
	return n.echoAddr
}

// MetricsAddr returns the bound address of the metrics endpoint, nil if disabled
func (n *Node) MetricsAddr() net.Addr {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.metricsAddr
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// init publishes the echo object under its service name
func (n *Node) init() error {
	stub, err := n.plugin.GetStub(echo.Descriptor, n.echo)
	if err != nil {
		return err
	}
	n.echoAddr = n.plugin.Host().Publish(echo.ServiceName, stub)
	Logger.Infof("published %s as %s", echo.ServiceName, n.echoAddr.URI())
	return nil
}

// startHTTP serves /metrics and the pprof handlers on endpoint
func (n *Node) startHTTP(endpoint string) error {
	ln, err := net.Listen("tcp", endpoint)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", endpoint)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	httpServer := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	n.mu.Lock()
	n.httpServer = httpServer
	n.metricsAddr = ln.Addr()
	n.mu.Unlock()

	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("metrics endpoint stopped: %v", err)
		}
	}()

	Logger.Infof("serving metrics and pprof on http://%s", ln.Addr())
	return nil
}

func (n *Node) logStats() {
	calls, _ := n.echo.Notifications()
	Logger.Infof("node %d served %d echo calls and %d notifications", n.config.Plugin.NodeID, n.echo.Calls(), calls)

	stats := n.plugin.Stats()
	for _, node := range sortedKeys(stats) {
		Logger.Infof("calls to node %d: %s", node, stats[node])
	}
}

func sortedKeys(stats map[uint32]plugin.NodeStats) []uint32 {
	keys := make([]uint32, 0, len(stats))
	for k := range stats {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
