package replication

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Message types exchanged between server and client. Payloads ride inside a
// small JSON envelope; node snapshots stay binary and JSON base64-encodes
// them in transit.
const (
	// MsgSceneSnapshot carries the full replicated scene state. Sent once
	// when a client connects and whenever the server reloads its scene.
	MsgSceneSnapshot = "scene_snapshot"

	// MsgNodeUpdate carries one node's replicated snapshot plus its parent
	// id so the receiver can create or reparent it.
	MsgNodeUpdate = "node_update"

	// MsgNodeRemoved tells the receiver a replicated node is gone.
	MsgNodeRemoved = "node_removed"

	// MsgPing is a liveness probe; the peer echoes MsgPong.
	MsgPing = "ping"
	MsgPong = "pong"
)

// Message is the wire envelope. Data holds the type-specific payload.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// SceneSnapshot is the payload of MsgSceneSnapshot.
type SceneSnapshot struct {
	Checksum uint64 `json:"checksum,omitempty"`
	Snapshot []byte `json:"snapshot"`
}

// NodeUpdate is the payload of MsgNodeUpdate. Parent is zero for children of
// the scene root.
type NodeUpdate struct {
	ID       uint32 `json:"id"`
	Parent   uint32 `json:"parent,omitempty"`
	Snapshot []byte `json:"snapshot"`
}

// NodeRemoved is the payload of MsgNodeRemoved.
type NodeRemoved struct {
	ID uint32 `json:"id"`
}

// Encode marshals a typed payload into an envelope ready for the wire.
func Encode(msgType string, payload any) ([]byte, error) {
	msg := Message{Type: msgType}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to marshal %s payload", msgType)
		}
		msg.Data = data
	}
	raw, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal message envelope")
	}
	return raw, nil
}

// Decode unmarshals a wire frame into its envelope. The payload stays raw
// until DecodePayload picks it apart.
func Decode(raw []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, errors.Wrap(err, "failed to unmarshal message envelope")
	}
	return msg, nil
}

// DecodePayload unmarshals the envelope's payload into out.
func DecodePayload(msg Message, out any) error {
	if err := json.Unmarshal(msg.Data, out); err != nil {
		return errors.Wrapf(err, "failed to unmarshal %s payload", msg.Type)
	}
	return nil
}
