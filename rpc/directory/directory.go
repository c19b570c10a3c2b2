package directory

import (
	"github.com/ValentinKolb/dRPC/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"sort"
	"strconv"
	"strings"
)

var Logger = logger.GetLogger("directory")

// INodeDirectory maps node ids to tcp:// endpoints. It is loaded once before the plugin
// starts and read-only afterwards.
type INodeDirectory interface {
	// Lookup returns the endpoint of nodeID
	Lookup(nodeID uint32) (uri string, ok bool)

	// Nodes returns a copy of all entries
	Nodes() map[uint32]string
}

// --------------------------------------------------------------------------
// Static Directory
// --------------------------------------------------------------------------

// StaticDirectory is an immutable node directory
type StaticDirectory struct {
	nodes map[uint32]string
}

// NewStaticDirectory validates every endpoint and copies nodes
func NewStaticDirectory(nodes map[uint32]string) (*StaticDirectory, error) {
	copied := make(map[uint32]string, len(nodes))
	for id, uri := range nodes {
		if _, err := transport.ParseURI(uri); err != nil {
			return nil, errors.Wrapf(err, "node %d", id)
		}
		copied[id] = uri
	}
	return &StaticDirectory{nodes: copied}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see directory.INodeDirectory)
// --------------------------------------------------------------------------

func (d *StaticDirectory) Lookup(nodeID uint32) (string, bool) {
	uri, ok := d.nodes[nodeID]
	return uri, ok
}

func (d *StaticDirectory) Nodes() map[uint32]string {
	copied := make(map[uint32]string, len(d.nodes))
	for id, uri := range d.nodes {
		copied[id] = uri
	}
	return copied
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

// ParseNodes parses a comma separated list of <id>=tcp://host:port entries
func ParseNodes(list string) (map[uint32]string, error) {
	nodes := make(map[uint32]string)
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		idPart, uri, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, errors.Errorf("invalid node entry %q, expected <id>=tcp://host:port", entry)
		}
		id, err := ParseNodeID(idPart)
		if err != nil {
			return nil, err
		}
		if _, dup := nodes[id]; dup {
			return nil, errors.Errorf("node %d configured twice", id)
		}
		nodes[id] = strings.TrimSpace(uri)
	}
	return nodes, nil
}

// ParseNodeID parses a decimal node id
func ParseNodeID(s string) (uint32, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, errors.Errorf("invalid node id %q", s)
	}
	return uint32(id), nil
}

func formatID(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}

// SortedIDs returns the node ids of d in ascending order
func SortedIDs(d INodeDirectory) []uint32 {
	nodes := d.Nodes()
	ids := make([]uint32, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
