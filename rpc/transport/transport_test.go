package transport

import (
	"context"
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/dRPC/rpc/aio"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoHandler answers every frame with the same transaction id and an upper-cased payload marker
func echoHandler() IConnectionHandler {
	return HandlerFunc(func(ctx *ConnContext, in *aio.InputStream, out *aio.OutputStream) error {
		msg, err := ctx.Decoder.Next(in)
		if err != nil || msg == nil {
			return err
		}
		reply := protocol.NewMessage(msg.Target, msg.TransactionID, msg.What, append([]byte("re:"), msg.Data...))
		_, err = reply.WriteTo(ctx.Connection())
		return err
	})
}

// collector forwards every decoded frame to a channel
func collector(ch chan<- *protocol.Message) IConnectionHandler {
	return HandlerFunc(func(ctx *ConnContext, in *aio.InputStream, out *aio.OutputStream) error {
		msg, err := ctx.Decoder.Next(in)
		if err != nil || msg == nil {
			return err
		}
		ch <- msg
		return nil
	})
}

func startServer(t *testing.T, r *aio.Reactor, handler IConnectionHandler) *Server {
	t.Helper()
	s := NewServer(r, handler, common.DefaultTransportConfig())
	require.NoError(t, s.Start("tcp://127.0.0.1:0"))
	t.Cleanup(s.Shutdown)
	return s
}

func await[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func TestParseURI(t *testing.T) {
	valid := map[string]string{
		"tcp://127.0.0.1:9000": "127.0.0.1:9000",
		"tcp://localhost:1/":   "localhost:1",
		"tcp://[::1]:8080":     "[::1]:8080",
	}
	for uri, want := range valid {
		got, err := ParseURI(uri)
		require.NoError(t, err, uri)
		assert.Equal(t, want, got)
	}

	invalid := []string{
		"udp://127.0.0.1:9000",
		"http://127.0.0.1:80",
		"tcp://127.0.0.1",
		"tcp://:9000",
		"127.0.0.1:9000",
		"tcp://host:1/path",
		"%%",
	}
	for _, uri := range invalid {
		_, err := ParseURI(uri)
		assert.ErrorIs(t, err, common.ErrInvalidURI, uri)
	}
}

func TestClientServerRoundTrip(t *testing.T) {
	r := aio.NewReactor(4)
	defer r.Close()
	server := startServer(t, r, echoHandler())

	replies := make(chan *protocol.Message, 16)
	client, err := NewClient(r, 2, server.URI(), collector(replies), ClientOptions{Transport: common.DefaultTransportConfig()})
	require.NoError(t, err)
	defer client.Shutdown()

	for i := int32(1); i <= 3; i++ {
		_, err := protocol.NewMessage("drpc://2.1", i, 7, []byte("ping")).WriteTo(client)
		require.NoError(t, err)
	}

	for i := int32(1); i <= 3; i++ {
		msg := await(t, replies)
		assert.Equal(t, i, msg.TransactionID)
		assert.Equal(t, "re:ping", string(msg.Data))
	}

	_, err = client.Ready().Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, server.Connections())
	assert.Equal(t, uint32(2), client.NodeID())
}

func TestServerDecodesByteByByte(t *testing.T) {
	r := aio.NewReactor(0)
	defer r.Close()
	server := startServer(t, r, echoHandler())

	conn, err := net.Dial("tcp", server.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	frame, err := protocol.NewMessage("target", 5, 1, []byte("slow")).Encode()
	require.NoError(t, err)
	for _, b := range frame {
		_, err := conn.Write([]byte{b})
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	reply := make([]byte, 4+(&protocol.Message{Target: "target", Data: []byte("re:slow")}).Size())
	_, err = io.ReadFull(conn, reply)
	require.NoError(t, err)

	msg, err := protocol.Decode(reply)
	require.NoError(t, err)
	assert.Equal(t, int32(5), msg.TransactionID)
	assert.Equal(t, "re:slow", string(msg.Data))
}

func TestMalformedFrameClosesConnection(t *testing.T) {
	r := aio.NewReactor(0)
	defer r.Close()
	server := startServer(t, r, echoHandler())

	conn, err := net.Dial("tcp", server.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return server.Connections() == 1 }, 5*time.Second, 5*time.Millisecond)

	_, err = conn.Write([]byte{0, 0, 0, 1, 0xFF})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return server.Connections() == 0 }, 5*time.Second, 5*time.Millisecond)
}

func TestConnectFailureShutsClientDown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	uri := "tcp://" + ln.Addr().String()
	require.NoError(t, ln.Close())

	r := aio.NewReactor(0)
	defer r.Close()

	shutdowns := make(chan *Client, 2)
	client, err := NewClient(r, 3, uri, collector(make(chan *protocol.Message)), ClientOptions{
		OnShutdown: func(c *Client) { shutdowns <- c },
	})
	require.NoError(t, err)

	assert.Same(t, client, await(t, shutdowns))
	assert.True(t, client.IsShutdown())

	_, err = client.Ready().Await(context.Background())
	assert.Error(t, err)

	_, err = client.Write([]byte("x"))
	assert.ErrorIs(t, err, aio.ErrClosed)

	client.Shutdown()
	assert.Len(t, shutdowns, 0)
}

func TestServerShutdownClosesClients(t *testing.T) {
	r := aio.NewReactor(0)
	defer r.Close()
	server := startServer(t, r, echoHandler())

	var shutdowns atomic.Int32
	done := make(chan struct{})
	client, err := NewClient(r, 1, server.URI(), collector(make(chan *protocol.Message, 1)), ClientOptions{
		OnShutdown: func(*Client) {
			shutdowns.Add(1)
			close(done)
		},
	})
	require.NoError(t, err)
	_, err = client.Ready().Await(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return server.Connections() == 1 }, 5*time.Second, 5*time.Millisecond)

	server.Shutdown()
	assert.Zero(t, server.Connections())

	await(t, done)
	assert.Equal(t, int32(1), shutdowns.Load())

	require.Error(t, server.Start("tcp://127.0.0.1:0"))
}

func TestInvalidSchemeRejected(t *testing.T) {
	r := aio.NewReactor(0)
	defer r.Close()

	_, err := NewClient(r, 1, "http://127.0.0.1:1", echoHandler(), ClientOptions{})
	assert.ErrorIs(t, err, common.ErrInvalidURI)

	err = NewServer(r, echoHandler(), common.DefaultTransportConfig()).Start("unix:///tmp/x.sock")
	assert.ErrorIs(t, err, common.ErrInvalidURI)
}
