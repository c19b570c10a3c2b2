package common

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultTransactionTimeout is used for two-way calls that do not carry their own timeout
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultConnectTimeout bounds the establishment of outbound connections
	DefaultConnectTimeout = 5 * time.Second
)

// --------------------------------------------------------------------------
// Socket configuration (applied to every accepted and connected socket)
// --------------------------------------------------------------------------

// SocketConf holds OS level buffer sizes, zero keeps the system default
type SocketConf struct {
	WriteBufferSize int
	ReadBufferSize  int
}

// TCPConf holds TCP specific tuning options
type TCPConf struct {
	TCPNoDelay      bool
	TCPKeepAliveSec int
	// TCPLingerSec < 0 keeps the system default
	TCPLingerSec int
}

// TransportConfig bundles the socket level options of a plugin
type TransportConfig struct {
	SocketConf
	TCPConf
	ConnectTimeout time.Duration
}

// DefaultTransportConfig returns the options used when nothing is configured
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		TCPConf: TCPConf{
			TCPNoDelay:   true,
			TCPLingerSec: -1,
		},
		ConnectTimeout: DefaultConnectTimeout,
	}
}

// --------------------------------------------------------------------------
// Plugin configuration
// --------------------------------------------------------------------------

// PluginConfig configures the RPC transport plugin of one node
type PluginConfig struct {
	// NodeID is the id of the local node, its entry in the directory is the server endpoint
	NodeID uint32

	// TransactionTimeout is the default timeout of two-way calls
	TransactionTimeout time.Duration

	// ReactorWorkers bounds the number of readiness events dispatched concurrently
	ReactorWorkers int

	Transport TransportConfig
}

// DefaultPluginConfig returns a config for the given node with all defaults applied
func DefaultPluginConfig(nodeID uint32) PluginConfig {
	return PluginConfig{
		NodeID:             nodeID,
		TransactionTimeout: DefaultTransactionTimeout,
		ReactorWorkers:     0,
		Transport:          DefaultTransportConfig(),
	}
}

// String returns a formatted string representation of the configuration
func (c *PluginConfig) String() string {
	var sb strings.Builder
	writePluginConfig(&sb, c)
	return sb.String()
}

// --------------------------------------------------------------------------
// Server configuration
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of a node started with the serve command
type ServerConfig struct {
	Plugin PluginConfig

	// Nodes maps node ids to tcp:// endpoints
	Nodes map[uint32]string

	// EtcdEndpoints switches the node directory to etcd if not empty
	EtcdEndpoints []string
	EtcdPrefix    string

	// Serializer is the payload format of the built-in services ("binary", "json" or "gob")
	Serializer string

	// MetricsEndpoint enables the /metrics and pprof http endpoint if not empty
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
	LogFile  string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection, addField := formatters(&sb)

	writePluginConfig(&sb, &c.Plugin)

	addSection("Logging")
	addField("Log Level", c.LogLevel)
	if c.LogFile != "" {
		addField("Log File", c.LogFile)
	}

	addSection("Services")
	addField("Serializer", c.Serializer)

	if c.MetricsEndpoint != "" {
		addSection("Metrics")
		addField("Endpoint", c.MetricsEndpoint)
	}

	if len(c.EtcdEndpoints) > 0 {
		addSection("Etcd Directory")
		addField("Endpoints", strings.Join(c.EtcdEndpoints, ", "))
		addField("Prefix", c.EtcdPrefix)
	}

	addSection("Nodes")

	// Sort keys for consistent output
	var keys []uint32
	for k := range c.Nodes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, k := range keys {
		addField(strconv.FormatUint(uint64(k), 10), c.Nodes[k])
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func formatters(sb *strings.Builder) (func(string), func(string, string)) {
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}
	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}
	return addSection, addField
}

func writePluginConfig(sb *strings.Builder, c *PluginConfig) {
	addSection, addField := formatters(sb)

	addSection("RPC Plugin")
	addField("Node ID", strconv.FormatUint(uint64(c.NodeID), 10))
	addField("Transaction Timeout", c.TransactionTimeout.String())
	if c.ReactorWorkers > 0 {
		addField("Reactor Workers", strconv.Itoa(c.ReactorWorkers))
	} else {
		addField("Reactor Workers", "unbounded")
	}

	addSection("Transport")
	addField("Connect Timeout", c.Transport.ConnectTimeout.String())
	addField("TCP No Delay", strconv.FormatBool(c.Transport.TCPNoDelay))
	addField("TCP Keep Alive", fmt.Sprintf("%d sec", c.Transport.TCPKeepAliveSec))
	if c.Transport.TCPLingerSec >= 0 {
		addField("TCP Linger", fmt.Sprintf("%d sec", c.Transport.TCPLingerSec))
	}
	if c.Transport.ReadBufferSize > 0 {
		addField("Read Buffer", fmt.Sprintf("%d KB", c.Transport.ReadBufferSize/1024))
	}
	if c.Transport.WriteBufferSize > 0 {
		addField("Write Buffer", fmt.Sprintf("%d KB", c.Transport.WriteBufferSize/1024))
	}
}
