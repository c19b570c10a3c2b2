package util

import (
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/directory"
	"github.com/ValentinKolb/dRPC/rpc/serializer"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"strings"
	"time"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables read by the cli
	EnvPrefix = "drpc"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupPluginFlags adds the flags shared by every command that runs an RPC plugin
func SetupPluginFlags(cmd *cobra.Command) {
	key := "node-id"
	cmd.PersistentFlags().Uint32(key, 0, WrapString("Id of the local node. Without an entry in the node directory the node only issues calls"))

	key = "nodes"
	cmd.PersistentFlags().String(key, "", WrapString("Comma-separated node directory. Format: ID=tcp://host:port (e.g. 1=tcp://127.0.0.1:9000,2=tcp://127.0.0.1:9001)"))

	key = "config"
	cmd.PersistentFlags().String(key, "", WrapString("Optional config file (yaml, json, toml) with a 'nodes' map and any other flag"))

	key = "etcd-endpoints"
	cmd.PersistentFlags().String(key, "", WrapString("Comma-separated etcd endpoints. If set the node directory is loaded from etcd and the local entry of --nodes is published there"))

	key = "etcd-prefix"
	cmd.PersistentFlags().String(key, directory.DefaultEtcdPrefix, WrapString("Key prefix of the node directory in etcd"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, int(common.DefaultTransactionTimeout/time.Second), WrapString("Default timeout of two-way calls in seconds"))

	key = "reactor-workers"
	cmd.PersistentFlags().Int(key, 0, WrapString("Maximum number of socket events handled concurrently (0 = unbounded)"))

	key = "serializer"
	cmd.PersistentFlags().String(key, "binary", WrapString("Serializer of the built-in services (binary, json, gob)"))

	key = "transport-connect-timeout"
	cmd.PersistentFlags().Int(key, int(common.DefaultConnectTimeout/time.Second), WrapString("Timeout in seconds for establishing connections to other nodes"))

	key = "transport-write-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("The size of the socket write buffer (in KB, 0 = system default)"))

	key = "transport-read-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("The size of the socket read buffer (in KB, 0 = system default)"))

	key = "transport-tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY"))

	key = "transport-tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval (in seconds, 0 = disabled)"))

	key = "transport-tcp-linger"
	cmd.PersistentFlags().Int(key, -1, WrapString("The linger time (in seconds, -1 = system default)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "info", WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	key = "log-file"
	cmd.PersistentFlags().String(key, "", WrapString("Optional file logs are additionally written to (rotated)"))
}

// InitConfig initializes configuration from environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper and reads the config file if one is given
func BindCommandFlags(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if file := viper.GetString("config"); file != "" {
		viper.SetConfigFile(file)
		if err := viper.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "failed to read config file %s", file)
		}
	}
	return nil
}

// GetPluginConfig reads the plugin configuration from viper
func GetPluginConfig() common.PluginConfig {
	return common.PluginConfig{
		NodeID:             viper.GetUint32("node-id"),
		TransactionTimeout: time.Duration(viper.GetInt("timeout")) * time.Second,
		ReactorWorkers:     viper.GetInt("reactor-workers"),
		Transport: common.TransportConfig{
			SocketConf: common.SocketConf{
				WriteBufferSize: viper.GetInt("transport-write-buffer") * 1024,
				ReadBufferSize:  viper.GetInt("transport-read-buffer") * 1024,
			},
			TCPConf: common.TCPConf{
				TCPNoDelay:      viper.GetBool("transport-tcp-nodelay"),
				TCPKeepAliveSec: viper.GetInt("transport-tcp-keepalive"),
				TCPLingerSec:    viper.GetInt("transport-tcp-linger"),
			},
			ConnectTimeout: time.Duration(viper.GetInt("transport-connect-timeout")) * time.Second,
		},
	}
}

// GetServerConfig reads the complete node configuration from viper
func GetServerConfig() (*common.ServerConfig, error) {
	nodes, err := GetNodes()
	if err != nil {
		return nil, err
	}

	return &common.ServerConfig{
		Plugin:          GetPluginConfig(),
		Nodes:           nodes,
		EtcdEndpoints:   splitList(viper.GetString("etcd-endpoints")),
		EtcdPrefix:      viper.GetString("etcd-prefix"),
		Serializer:      viper.GetString("serializer"),
		MetricsEndpoint: viper.GetString("metrics-endpoint"),
		LogLevel:        viper.GetString("log-level"),
		LogFile:         viper.GetString("log-file"),
	}, nil
}

// GetNodes reads the node directory. The value is either the --nodes list or a map from the config file.
func GetNodes() (map[uint32]string, error) {
	raw := viper.Get("nodes")

	switch v := raw.(type) {
	case nil:
		return map[uint32]string{}, nil
	case string:
		return directory.ParseNodes(v)
	default:
		entries, err := cast.ToStringMapStringE(v)
		if err != nil {
			return nil, errors.Wrap(err, "invalid nodes configuration")
		}
		nodes := make(map[uint32]string, len(entries))
		for idPart, uri := range entries {
			id, err := directory.ParseNodeID(idPart)
			if err != nil {
				return nil, err
			}
			nodes[id] = uri
		}
		return nodes, nil
	}
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	name := viper.GetString("serializer")
	s, ok := serializer.ByName(name)
	if !ok {
		return nil, errors.Errorf("invalid serializer %s", name)
	}
	return s, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
