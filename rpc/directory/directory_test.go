package directory

import (
	"testing"

	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNodes(t *testing.T) {
	nodes, err := ParseNodes("1=tcp://127.0.0.1:9000, 2=tcp://127.0.0.1:9001,")
	require.NoError(t, err)
	assert.Equal(t, map[uint32]string{
		1: "tcp://127.0.0.1:9000",
		2: "tcp://127.0.0.1:9001",
	}, nodes)

	empty, err := ParseNodes("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, bad := range []string{"tcp://127.0.0.1:9000", "x=tcp://a:1", "1=tcp://a:1,1=tcp://b:2", "-1=tcp://a:1"} {
		_, err := ParseNodes(bad)
		assert.Error(t, err, bad)
	}
}

func TestStaticDirectory(t *testing.T) {
	d, err := NewStaticDirectory(map[uint32]string{2: "tcp://127.0.0.1:9000", 1: "tcp://127.0.0.1:9001"})
	require.NoError(t, err)

	uri, ok := d.Lookup(2)
	require.True(t, ok)
	assert.Equal(t, "tcp://127.0.0.1:9000", uri)

	_, ok = d.Lookup(99)
	assert.False(t, ok)

	nodes := d.Nodes()
	nodes[3] = "tcp://mutated:1"
	_, ok = d.Lookup(3)
	assert.False(t, ok, "Nodes must return a copy")

	assert.Equal(t, []uint32{1, 2}, SortedIDs(d))
}

func TestStaticDirectoryRejectsOtherSchemes(t *testing.T) {
	_, err := NewStaticDirectory(map[uint32]string{1: "udp://127.0.0.1:9000"})
	assert.ErrorIs(t, err, common.ErrInvalidURI)

	_, err = NewStaticDirectory(map[uint32]string{1: "tcp://127.0.0.1"})
	assert.ErrorIs(t, err, common.ErrInvalidURI)
}

func TestParseEntries(t *testing.T) {
	nodes := parseEntries(DefaultEtcdPrefix, map[string]string{
		nodeKey(DefaultEtcdPrefix, 1): "tcp://10.0.0.1:9000",
		nodeKey(DefaultEtcdPrefix, 7): "tcp://10.0.0.7:9000",
		DefaultEtcdPrefix + "abc":     "tcp://10.0.0.8:9000",
		nodeKey(DefaultEtcdPrefix, 8): "http://10.0.0.8:80",
		"/other/3":                    "tcp://10.0.0.3:9000",
	})

	assert.Equal(t, map[uint32]string{
		1: "tcp://10.0.0.1:9000",
		7: "tcp://10.0.0.7:9000",
	}, nodes)
	assert.Equal(t, "/drpc/nodes/42", nodeKey(DefaultEtcdPrefix, 42))
}
