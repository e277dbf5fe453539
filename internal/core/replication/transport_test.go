package replication_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zeusync/scenegraph/internal/core/replication"
)

func TestNewTransportBySchemeName(t *testing.T) {
	for _, scheme := range []string{"ws", "websocket", "quic"} {
		transport, err := replication.NewTransport(scheme)
		require.NoError(t, err, scheme)
		require.NotNil(t, transport, scheme)
	}
	_, err := replication.NewTransport("carrier-pigeon")
	require.ErrorIs(t, err, replication.ErrUnknownTransport)
}

func roundTrip(t *testing.T, transport replication.Transport) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	listener, err := transport.Listen(ctx, "127.0.0.1:0")
	require.NoError(t, err)
	defer func() { _ = listener.Close() }()

	type accepted struct {
		conn replication.Conn
		err  error
	}
	acceptCh := make(chan accepted, 1)
	go func() {
		conn, err := listener.Accept(ctx)
		acceptCh <- accepted{conn, err}
	}()

	client, err := transport.Dial(ctx, listener.Addr().String())
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	// QUIC streams materialize on the peer with the first byte, so the
	// client writes before the server read.
	want := []byte(`{"type":"ping"}`)
	require.NoError(t, client.WriteMessage(want))

	server := <-acceptCh
	require.NoError(t, server.err)
	defer func() { _ = server.conn.Close() }()

	got, err := server.conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, want, got)

	reply := []byte(`{"type":"pong"}`)
	require.NoError(t, server.conn.WriteMessage(reply))
	got, err = client.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, reply, got)
}

func TestWebSocketTransportRoundTrip(t *testing.T) {
	roundTrip(t, replication.NewWebSocketTransport())
}

func TestQUICTransportRoundTrip(t *testing.T) {
	roundTrip(t, replication.NewQUICTransport())
}
