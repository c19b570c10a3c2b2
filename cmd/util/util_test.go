package util

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 30)
	for _, line := range strings.Split(WrapString(text), "\n") {
		assert.LessOrEqual(t, len(line), Wrap)
	}
	assert.Equal(t, "short text", WrapString("  short   text "))
}

func TestGetNodesFromFlag(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("nodes", "1=tcp://127.0.0.1:9000, 2=tcp://127.0.0.1:9001")
	nodes, err := GetNodes()
	require.NoError(t, err)
	assert.Equal(t, map[uint32]string{1: "tcp://127.0.0.1:9000", 2: "tcp://127.0.0.1:9001"}, nodes)
}

func TestGetNodesFromConfigMap(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("nodes", map[string]interface{}{"3": "tcp://10.0.0.3:9000"})
	nodes, err := GetNodes()
	require.NoError(t, err)
	assert.Equal(t, map[uint32]string{3: "tcp://10.0.0.3:9000"}, nodes)

	viper.Set("nodes", map[string]interface{}{"x": "tcp://10.0.0.3:9000"})
	_, err = GetNodes()
	assert.Error(t, err)
}

func TestGetServerConfig(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("node-id", 2)
	viper.Set("timeout", 3)
	viper.Set("transport-tcp-nodelay", true)
	viper.Set("transport-read-buffer", 64)
	viper.Set("etcd-endpoints", "127.0.0.1:2379, ,127.0.0.1:2380")
	viper.Set("serializer", "json")

	config, err := GetServerConfig()
	require.NoError(t, err)

	assert.EqualValues(t, 2, config.Plugin.NodeID)
	assert.Equal(t, 3*time.Second, config.Plugin.TransactionTimeout)
	assert.True(t, config.Plugin.Transport.TCPNoDelay)
	assert.Equal(t, 64*1024, config.Plugin.Transport.ReadBufferSize)
	assert.Equal(t, []string{"127.0.0.1:2379", "127.0.0.1:2380"}, config.EtcdEndpoints)
	assert.Empty(t, config.Nodes)

	s, err := GetSerializer()
	require.NoError(t, err)
	assert.Equal(t, "json", s.Name())
}

func TestGetSerializerRejectsUnknown(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("serializer", "xml")
	_, err := GetSerializer()
	assert.Error(t, err)
}
