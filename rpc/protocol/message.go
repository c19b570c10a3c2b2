package protocol

import (
	"encoding/binary"
	"fmt"
	"github.com/pkg/errors"
	"io"
	"math"
)

// MessageType distinguishes normal frames from exception replies
type MessageType int32

const (
	// TypeTransaction is used for requests and successful replies
	TypeTransaction MessageType = 1
	// TypeException is used for failed replies
	TypeException MessageType = 2
)

const (
	lengthFieldSize = 4
	// minBodySize is the size of a frame body with an empty target and payload
	minBodySize = 4 + 2 + 4 + 4 + 4
	// MaxTargetLength is the largest target the 16-bit length field can describe
	MaxTargetLength = math.MaxUint16
)

var (
	// ErrMalformedFrame is returned for frames whose fields contradict their length
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrTargetTooLong is returned when encoding a target longer than MaxTargetLength
	ErrTargetTooLong = errors.New("target exceeds 65535 bytes")
)

// TransactionFailurePayload is the payload of every exception reply
var TransactionFailurePayload = []byte("Binder transaction failure")

func (t MessageType) String() string {
	switch t {
	case TypeTransaction:
		return "transaction"
	case TypeException:
		return "exception"
	default:
		return fmt.Sprintf("unknown(%d)", int32(t))
	}
}

// --------------------------------------------------------------------------
// Message
// --------------------------------------------------------------------------

// Message is a single wire frame
type Message struct {
	Type          MessageType
	Target        string
	TransactionID int32
	What          int32
	Data          []byte
}

// NewMessage creates a transaction frame
func NewMessage(target string, transactionID int32, what int32, data []byte) *Message {
	return &Message{
		Type:          TypeTransaction,
		Target:        target,
		TransactionID: transactionID,
		What:          what,
		Data:          data,
	}
}

// NewExceptionMessage creates an exception reply carrying the generic failure payload
func NewExceptionMessage(target string, transactionID int32, what int32) *Message {
	return &Message{
		Type:          TypeException,
		Target:        target,
		TransactionID: transactionID,
		What:          what,
		Data:          TransactionFailurePayload,
	}
}

// Size returns the number of bytes following the length field
func (m *Message) Size() int {
	return minBodySize + len(m.Target) + len(m.Data)
}

// Encode returns the complete frame including the length prefix
func (m *Message) Encode() ([]byte, error) {
	if len(m.Target) > MaxTargetLength {
		return nil, ErrTargetTooLong
	}
	if len(m.Data) > math.MaxInt32-minBodySize-len(m.Target) {
		return nil, errors.Errorf("payload of %d bytes does not fit into a frame", len(m.Data))
	}

	size := m.Size()
	buf := make([]byte, lengthFieldSize+size)

	pos := 0
	binary.BigEndian.PutUint32(buf[pos:], uint32(size))
	pos += 4
	binary.BigEndian.PutUint32(buf[pos:], uint32(m.Type))
	pos += 4
	binary.BigEndian.PutUint16(buf[pos:], uint16(len(m.Target)))
	pos += 2
	pos += copy(buf[pos:], m.Target)
	binary.BigEndian.PutUint32(buf[pos:], uint32(m.TransactionID))
	pos += 4
	binary.BigEndian.PutUint32(buf[pos:], uint32(m.What))
	pos += 4
	binary.BigEndian.PutUint32(buf[pos:], uint32(len(m.Data)))
	pos += 4
	copy(buf[pos:], m.Data)

	return buf, nil
}

// WriteTo writes the frame with a single Write call, so concurrent writers sharing
// a serializing writer never interleave frames
func (m *Message) WriteTo(w io.Writer) (int64, error) {
	buf, err := m.Encode()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(buf)
	return int64(n), err
}

// Unmarshal parses a frame body (everything after the length field)
func Unmarshal(body []byte) (*Message, error) {
	if len(body) < minBodySize {
		return nil, errors.Wrapf(ErrMalformedFrame, "body of %d bytes is too short", len(body))
	}

	m := &Message{}
	pos := 0

	m.Type = MessageType(int32(binary.BigEndian.Uint32(body[pos:])))
	pos += 4

	targetLen := int(binary.BigEndian.Uint16(body[pos:]))
	pos += 2
	if len(body)-pos < targetLen+12 {
		return nil, errors.Wrapf(ErrMalformedFrame, "target length %d exceeds body", targetLen)
	}
	m.Target = string(body[pos : pos+targetLen])
	pos += targetLen

	m.TransactionID = int32(binary.BigEndian.Uint32(body[pos:]))
	pos += 4
	m.What = int32(binary.BigEndian.Uint32(body[pos:]))
	pos += 4

	size := int64(int32(binary.BigEndian.Uint32(body[pos:])))
	pos += 4
	if size < 0 || size != int64(len(body)-pos) {
		return nil, errors.Wrapf(ErrMalformedFrame, "payload size %d does not match remaining %d bytes", size, len(body)-pos)
	}
	if size > 0 {
		m.Data = body[pos:]
	}

	return m, nil
}

// Decode parses a complete frame including its length prefix
func Decode(frame []byte) (*Message, error) {
	if len(frame) < lengthFieldSize {
		return nil, errors.Wrap(ErrMalformedFrame, "missing length field")
	}
	length := int64(int32(binary.BigEndian.Uint32(frame)))
	if length != int64(len(frame)-lengthFieldSize) {
		return nil, errors.Wrapf(ErrMalformedFrame, "length field %d does not match %d bytes", length, len(frame)-lengthFieldSize)
	}
	return Unmarshal(frame[lengthFieldSize:])
}
