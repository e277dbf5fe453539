package replication

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// WebSocketTransport carries replication frames as binary WebSocket
// messages. The server side runs a plain HTTP server upgrading on /sync.
type WebSocketTransport struct {
	upgrader websocket.Upgrader
	dialer   *websocket.Dialer
}

// NewWebSocketTransport creates a WebSocket transport with development
// defaults: any origin is accepted.
func NewWebSocketTransport() *WebSocketTransport {
	return &WebSocketTransport{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

func (t *WebSocketTransport) Name() string { return "websocket" }

// Listen starts an HTTP server on address and returns a listener yielding
// upgraded connections.
func (t *WebSocketTransport) Listen(ctx context.Context, address string) (Listener, error) {
	netListener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", address)
	}

	l := &wsListener{
		accepted: make(chan *wsConn, 16),
		closed:   make(chan struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/sync", func(w http.ResponseWriter, r *http.Request) {
		conn, err := t.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		select {
		case l.accepted <- newWSConn(conn):
		case <-l.closed:
			_ = conn.Close()
		}
	})

	l.server = &http.Server{Handler: mux}
	go func() {
		if err := l.server.Serve(netListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.serveErr = err
		}
	}()
	l.addr = netListener.Addr()
	return l, nil
}

// Dial connects to a replication server. The address may be a bare
// host:port or a full ws:// URL.
func (t *WebSocketTransport) Dial(ctx context.Context, address string) (Conn, error) {
	url := address
	if !strings.Contains(url, "://") {
		url = "ws://" + url + "/sync"
	}
	conn, _, err := t.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %s", url)
	}
	return newWSConn(conn), nil
}

type wsListener struct {
	server   *http.Server
	addr     net.Addr
	accepted chan *wsConn
	closed   chan struct{}
	closeOne sync.Once
	serveErr error
}

func (l *wsListener) Accept(ctx context.Context) (Conn, error) {
	select {
	case conn := <-l.accepted:
		return conn, nil
	case <-l.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *wsListener) Addr() net.Addr { return l.addr }

func (l *wsListener) Close() error {
	var err error
	l.closeOne.Do(func() {
		close(l.closed)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = l.server.Shutdown(ctx)
	})
	return err
}

// wsConn wraps a gorilla connection. Gorilla allows one concurrent writer,
// so writes are serialized with a mutex.
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func newWSConn(conn *websocket.Conn) *wsConn {
	conn.SetReadLimit(maxFrameSize)
	return &wsConn{conn: conn}
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, ErrClosed
		}
		return nil, errors.Wrap(err, "websocket read failed")
	}
	return data, nil
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return errors.Wrap(err, "websocket write failed")
	}
	return nil
}

func (c *wsConn) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}

func (c *wsConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }
