package replication

import "errors"

var (
	// ErrAlreadyRunning is returned when Start is called on a running server
	// or a connected client.
	ErrAlreadyRunning = errors.New("replication: already running")

	// ErrNotRunning is returned by operations that need a running server.
	ErrNotRunning = errors.New("replication: not running")

	// ErrNotConnected is returned by client operations before Connect or
	// after the connection dropped.
	ErrNotConnected = errors.New("replication: not connected")

	// ErrClosed is returned when reading from a transport that was shut
	// down locally.
	ErrClosed = errors.New("replication: connection closed")

	// ErrUnknownTransport is returned for an unrecognized transport scheme.
	ErrUnknownTransport = errors.New("replication: unknown transport")

	// ErrMessageTooLarge guards the wire framing against hostile lengths.
	ErrMessageTooLarge = errors.New("replication: message exceeds size limit")
)
