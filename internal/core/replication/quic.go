package replication

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/binary"
	"encoding/pem"
	"io"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"
)

const quicALPN = "scenegraph-sync"

// QUICTransport carries replication frames over a single bidirectional QUIC
// stream per connection, with length-prefixed framing.
type QUICTransport struct {
	// TLSConfig overrides the generated self-signed server config when set.
	TLSConfig *tls.Config
}

// NewQUICTransport creates a QUIC transport. Without an explicit TLSConfig
// the server generates an in-memory self-signed certificate and clients
// skip verification, which is only suitable for development.
func NewQUICTransport() *QUICTransport {
	return &QUICTransport{}
}

func (t *QUICTransport) Name() string { return "quic" }

// Listen starts a QUIC listener on the given UDP address.
func (t *QUICTransport) Listen(ctx context.Context, address string) (Listener, error) {
	tlsConf := t.TLSConfig
	if tlsConf == nil {
		generated, err := generateTLSConfig()
		if err != nil {
			return nil, errors.Wrap(err, "failed to generate TLS config")
		}
		tlsConf = generated
	}
	listener, err := quic.ListenAddr(address, tlsConf, &quic.Config{
		MaxIdleTimeout:  30 * time.Second,
		KeepAlivePeriod: 10 * time.Second,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", address)
	}
	return &quicListener{listener: listener}, nil
}

// Dial connects to a replication server over QUIC and opens the stream the
// connection's frames travel on.
func (t *QUICTransport) Dial(ctx context.Context, address string) (Conn, error) {
	tlsConf := t.TLSConfig
	if tlsConf == nil {
		tlsConf = &tls.Config{
			InsecureSkipVerify: true,
			NextProtos:         []string{quicALPN},
			MinVersion:         tls.VersionTLS13,
		}
	}
	conn, err := quic.DialAddr(ctx, address, tlsConf, &quic.Config{
		MaxIdleTimeout:  30 * time.Second,
		KeepAlivePeriod: 10 * time.Second,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %s", address)
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "no stream")
		return nil, errors.Wrap(err, "failed to open stream")
	}
	return &quicConn{conn: conn, stream: stream}, nil
}

type quicListener struct {
	listener *quic.Listener
}

func (l *quicListener) Accept(ctx context.Context) (Conn, error) {
	conn, err := l.listener.Accept(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to accept connection")
	}
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "no stream")
		return nil, errors.Wrap(err, "failed to accept stream")
	}
	return &quicConn{conn: conn, stream: stream}, nil
}

func (l *quicListener) Addr() net.Addr { return l.listener.Addr() }

func (l *quicListener) Close() error { return l.listener.Close() }

type quicConn struct {
	conn    *quic.Conn
	stream  *quic.Stream
	writeMu sync.Mutex
}

func (c *quicConn) ReadMessage() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(c.stream, lenBuf[:]); err != nil {
		return nil, errors.Wrap(err, "failed to read frame length")
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length > maxFrameSize {
		return nil, ErrMessageTooLarge
	}
	data := make([]byte, length)
	if _, err := io.ReadFull(c.stream, data); err != nil {
		return nil, errors.Wrap(err, "failed to read frame body")
	}
	return data, nil
}

func (c *quicConn) WriteMessage(data []byte) error {
	if len(data) > maxFrameSize {
		return ErrMessageTooLarge
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.stream.Write(lenBuf[:]); err != nil {
		return errors.Wrap(err, "failed to write frame length")
	}
	if _, err := c.stream.Write(data); err != nil {
		return errors.Wrap(err, "failed to write frame body")
	}
	return nil
}

func (c *quicConn) Close() error {
	_ = c.stream.Close()
	return c.conn.CloseWithError(0, "connection closed")
}

func (c *quicConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// generateTLSConfig builds a self-signed in-memory certificate for
// development servers. Production deployments load a real certificate via
// QUICTransport.TLSConfig.
func generateTLSConfig() (*tls.Config, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"scenegraph"},
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1"), net.IPv6loopback},
	}
	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	privBytes, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, err
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privBytes})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: derBytes})

	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		NextProtos:   []string{quicALPN},
		MinVersion:   tls.VersionTLS13,
	}, nil
}
