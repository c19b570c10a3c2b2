package protocol

import (
	"encoding/binary"
	"github.com/pkg/errors"
	"io"
)

// Source is a buffered byte stream that knows how many bytes can be read without blocking
type Source interface {
	io.Reader
	Available() int
}

// Decoder reassembles frames from a Source. The zero value is ready to use.
// A Decoder is not safe for concurrent use, it belongs to exactly one connection.
type Decoder struct {
	length     int32
	haveLength bool
}

// Next returns the next complete frame or nil if not enough bytes are buffered yet.
// Bytes are only consumed when they lead to progress: the 4 byte length once it is
// fully available, the body once all of it is available.
func (d *Decoder) Next(src Source) (*Message, error) {
	if !d.haveLength {
		if src.Available() < lengthFieldSize {
			return nil, nil
		}

		var lengthBuf [lengthFieldSize]byte
		if _, err := io.ReadFull(src, lengthBuf[:]); err != nil {
			return nil, err
		}

		length := int32(binary.BigEndian.Uint32(lengthBuf[:]))
		if length < minBodySize {
			return nil, errors.Wrapf(ErrMalformedFrame, "invalid frame length %d", length)
		}

		d.length = length
		d.haveLength = true
	}

	if src.Available() < int(d.length) {
		return nil, nil
	}

	body := make([]byte, d.length)
	if _, err := io.ReadFull(src, body); err != nil {
		return nil, err
	}
	d.Reset()

	return Unmarshal(body)
}

// Pending reports the length of a frame whose body is still incomplete
func (d *Decoder) Pending() (length int32, ok bool) {
	return d.length, d.haveLength
}

// Reset forgets any partially decoded frame
func (d *Decoder) Reset() {
	d.length = 0
	d.haveLength = false
}
