package replication

import (
	"context"
	"net"
)

// maxFrameSize bounds a single wire frame. Scene snapshots dominate traffic
// and even large scenes stay well under this.
const maxFrameSize = 16 << 20

// Conn is one bidirectional message pipe to a peer. Implementations frame
// messages so a ReadMessage returns exactly what one WriteMessage sent.
// WriteMessage is safe for concurrent use; ReadMessage is not.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
	RemoteAddr() net.Addr
}

// Listener accepts incoming connections for a server.
type Listener interface {
	Accept(ctx context.Context) (Conn, error)
	Addr() net.Addr
	Close() error
}

// Transport binds a wire protocol to the Conn and Listener contracts.
type Transport interface {
	Name() string
	Listen(ctx context.Context, address string) (Listener, error)
	Dial(ctx context.Context, address string) (Conn, error)
}

// NewTransport builds a transport by scheme name: "ws" or "quic".
func NewTransport(scheme string) (Transport, error) {
	switch scheme {
	case "ws", "websocket":
		return NewWebSocketTransport(), nil
	case "quic":
		return NewQUICTransport(), nil
	default:
		return nil, ErrUnknownTransport
	}
}
