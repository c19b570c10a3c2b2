package protocol

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bufferSource exposes a bytes.Buffer as decoder Source
type bufferSource struct {
	bytes.Buffer
}

func (b *bufferSource) Available() int {
	return b.Len()
}

func TestEncodeLayout(t *testing.T) {
	m := NewMessage("drpc://2.1", 1, 7, []byte("ping"))
	frame, err := m.Encode()
	require.NoError(t, err)

	require.Equal(t, 4+m.Size(), len(frame))
	assert.Equal(t, uint32(m.Size()), binary.BigEndian.Uint32(frame[0:]))
	assert.Equal(t, uint32(TypeTransaction), binary.BigEndian.Uint32(frame[4:]))
	assert.Equal(t, uint16(len("drpc://2.1")), binary.BigEndian.Uint16(frame[8:]))
	assert.Equal(t, "drpc://2.1", string(frame[10:20]))
	assert.Equal(t, uint32(1), binary.BigEndian.Uint32(frame[20:]))
	assert.Equal(t, uint32(7), binary.BigEndian.Uint32(frame[24:]))
	assert.Equal(t, uint32(4), binary.BigEndian.Uint32(frame[28:]))
	assert.Equal(t, "ping", string(frame[32:]))
}

func TestRoundTrip(t *testing.T) {
	cases := []*Message{
		NewMessage("", 0, 0, nil),
		NewMessage("drpc://1.1", 1, 1, []byte("hello")),
		NewMessage(strings.Repeat("t", MaxTargetLength), -5, -1, []byte{0, 1, 2}),
		NewExceptionMessage("drpc://9.9", 42, 3),
		NewMessage("drpc://3.4", 1<<30, 99, bytes.Repeat([]byte{0xAB}, 1<<20)),
	}

	for _, want := range cases {
		frame, err := want.Encode()
		require.NoError(t, err)

		got, err := Decode(frame)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestTargetTooLong(t *testing.T) {
	m := NewMessage(strings.Repeat("x", MaxTargetLength+1), 1, 1, nil)
	_, err := m.Encode()
	assert.ErrorIs(t, err, ErrTargetTooLong)

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	assert.ErrorIs(t, err, ErrTargetTooLong)
	assert.Zero(t, buf.Len())
}

func TestDecoderWaitsForLength(t *testing.T) {
	src := &bufferSource{}
	src.Write([]byte{0, 0, 0})

	var d Decoder
	m, err := d.Next(src)
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Equal(t, 3, src.Available(), "incomplete length must not be consumed")
}

func TestDecoderKeepsLengthBetweenCalls(t *testing.T) {
	frame, err := NewMessage("drpc://2.1", 9, 7, []byte("pong")).Encode()
	require.NoError(t, err)

	src := &bufferSource{}
	src.Write(frame[:10])

	var d Decoder
	m, err := d.Next(src)
	require.NoError(t, err)
	assert.Nil(t, m)

	length, ok := d.Pending()
	require.True(t, ok)
	assert.Equal(t, int32(len(frame)-4), length)
	assert.Equal(t, 6, src.Available(), "body must stay buffered until complete")

	src.Write(frame[10:])
	m, err = d.Next(src)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, int32(9), m.TransactionID)
	assert.Equal(t, "pong", string(m.Data))

	_, ok = d.Pending()
	assert.False(t, ok)
}

func TestDecoderChunked(t *testing.T) {
	want := NewMessage("drpc://interfaces/echo/IEcho", 17, 1, []byte("some payload that spans chunks"))
	frame, err := want.Encode()
	require.NoError(t, err)

	rnd := rand.New(rand.NewSource(1))
	for run := 0; run < 50; run++ {
		src := &bufferSource{}
		var d Decoder
		var decoded []*Message

		rest := frame
		for len(rest) > 0 {
			n := 1 + rnd.Intn(len(rest))
			src.Write(rest[:n])
			rest = rest[n:]

			m, err := d.Next(src)
			require.NoError(t, err)
			if m != nil {
				decoded = append(decoded, m)
			}
		}

		require.Len(t, decoded, 1)
		assert.Equal(t, want, decoded[0])
	}
}

func TestDecoderMultipleFramesInOneBuffer(t *testing.T) {
	src := &bufferSource{}
	for i := int32(1); i <= 3; i++ {
		_, err := NewMessage("t", i, i, []byte{byte(i)}).WriteTo(src)
		require.NoError(t, err)
	}

	var d Decoder
	for i := int32(1); i <= 3; i++ {
		m, err := d.Next(src)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, i, m.TransactionID)
	}

	m, err := d.Next(src)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestDecoderMalformed(t *testing.T) {
	t.Run("length below minimum", func(t *testing.T) {
		src := &bufferSource{}
		src.Write([]byte{0, 0, 0, 3, 1, 2, 3})
		var d Decoder
		_, err := d.Next(src)
		assert.ErrorIs(t, err, ErrMalformedFrame)
	})

	t.Run("target length exceeds body", func(t *testing.T) {
		frame, err := NewMessage("abc", 1, 1, nil).Encode()
		require.NoError(t, err)
		binary.BigEndian.PutUint16(frame[8:], 200)
		_, err = Decode(frame)
		assert.ErrorIs(t, err, ErrMalformedFrame)
	})

	t.Run("payload size mismatch", func(t *testing.T) {
		frame, err := NewMessage("abc", 1, 1, []byte("data")).Encode()
		require.NoError(t, err)
		binary.BigEndian.PutUint32(frame[len(frame)-8:], 5)
		_, err = Decode(frame)
		assert.ErrorIs(t, err, ErrMalformedFrame)
	})
}
