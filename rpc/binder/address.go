package binder

import (
	"fmt"
	"github.com/pkg/errors"
	"strconv"
	"strings"
)

// Scheme of object addresses and interface descriptors
const Scheme = "drpc"

// ErrInvalidAddress is returned for targets that are not of the form drpc://<node>.<object>
var ErrInvalidAddress = errors.New("invalid object address")

// Address identifies an object in the system, the node id in the high 32 bits and the
// node-local object id in the low 32 bits
type Address uint64

// NewAddress combines a node id and an object id
func NewAddress(nodeID, objectID uint32) Address {
	return Address(uint64(nodeID)<<32 | uint64(objectID))
}

// NodeID returns the node component
func (a Address) NodeID() uint32 {
	return uint32(a >> 32)
}

// ObjectID returns the node-local component
func (a Address) ObjectID() uint32 {
	return uint32(a)
}

// URI returns the wire form drpc://<node>.<object>
func (a Address) URI() string {
	return fmt.Sprintf("%s://%d.%d", Scheme, a.NodeID(), a.ObjectID())
}

func (a Address) String() string {
	return a.URI()
}

// ParseAddress parses drpc://<node>.<object>
func ParseAddress(uri string) (Address, error) {
	rest, ok := strings.CutPrefix(uri, Scheme+"://")
	if !ok {
		return 0, errors.Wrapf(ErrInvalidAddress, "%q: missing %s:// prefix", uri, Scheme)
	}

	nodePart, objectPart, ok := strings.Cut(rest, ".")
	if !ok {
		return 0, errors.Wrapf(ErrInvalidAddress, "%q: expected <node>.<object>", uri)
	}

	node, err := strconv.ParseUint(nodePart, 10, 32)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidAddress, "%q: bad node id", uri)
	}
	object, err := strconv.ParseUint(objectPart, 10, 32)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidAddress, "%q: bad object id", uri)
	}

	return NewAddress(uint32(node), uint32(object)), nil
}

// NormalizeDescriptor maps any scheme to drpc://, so that descriptors written as
// ipc://a/b or a/b resolve to the same interface
func NormalizeDescriptor(descriptor string) string {
	if _, rest, ok := strings.Cut(descriptor, "://"); ok {
		return Scheme + "://" + rest
	}
	return Scheme + "://" + strings.TrimPrefix(descriptor, "/")
}
