package common

import (
	"errors"
	"strings"
	"testing"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionFailure(t *testing.T) {
	plain := TransactionFailure(nil, "node %d", 3)
	assert.ErrorIs(t, plain, ErrTransactionFailure)
	assert.Contains(t, plain.Error(), "node 3")

	cause := errors.New("connection reset")
	wrapped := TransactionFailure(cause, "call on %s", "drpc://2.1")
	assert.ErrorIs(t, wrapped, ErrTransactionFailure)
	assert.ErrorIs(t, wrapped, cause)
	assert.True(t, strings.HasPrefix(wrapped.Error(), ErrTransactionFailure.Error()))
	assert.Contains(t, wrapped.Error(), "connection reset")

	unknown := TransactionFailure(ErrUnknownNode, "node %d", 99)
	assert.ErrorIs(t, unknown, ErrUnknownNode)
	assert.NotErrorIs(t, unknown, ErrTimeout)
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]logger.LogLevel{
		"debug":   logger.DEBUG,
		"INFO":    logger.INFO,
		"warn":    logger.WARNING,
		"warning": logger.WARNING,
		"error":   logger.ERROR,
	}
	for in, want := range cases {
		got, err := ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLogLevel("verbose")
	assert.Error(t, err)
}

func TestDefaultPluginConfig(t *testing.T) {
	c := DefaultPluginConfig(4)
	assert.EqualValues(t, 4, c.NodeID)
	assert.Equal(t, DefaultTransactionTimeout, c.TransactionTimeout)
	assert.Equal(t, DefaultConnectTimeout, c.Transport.ConnectTimeout)
	assert.True(t, c.Transport.TCPNoDelay)
	assert.Equal(t, -1, c.Transport.TCPLingerSec)

	out := c.String()
	assert.Contains(t, out, "RPC PLUGIN")
	assert.Contains(t, out, "unbounded")
	assert.NotContains(t, out, "TCP Linger")
}

func TestServerConfigString(t *testing.T) {
	c := ServerConfig{
		Plugin: DefaultPluginConfig(1),
		Nodes: map[uint32]string{
			2: "tcp://127.0.0.1:9001",
			1: "tcp://127.0.0.1:9000",
		},
		EtcdEndpoints:   []string{"127.0.0.1:2379"},
		EtcdPrefix:      "/drpc/nodes/",
		Serializer:      "binary",
		MetricsEndpoint: "127.0.0.1:9100",
		LogLevel:        "info",
	}

	out := c.String()
	assert.Contains(t, out, "ETCD DIRECTORY")
	assert.Contains(t, out, "METRICS")
	assert.Less(t, strings.Index(out, "tcp://127.0.0.1:9000"), strings.Index(out, "tcp://127.0.0.1:9001"))
}

func TestInitLoggersRejectsBadLevel(t *testing.T) {
	assert.Error(t, InitLoggers("loud", ""))
}
