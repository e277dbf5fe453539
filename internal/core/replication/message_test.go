package replication

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageEncodeDecode(t *testing.T) {
	raw, err := Encode(MsgNodeUpdate, NodeUpdate{ID: 7, Parent: 3, Snapshot: []byte{1, 2, 3}})
	require.NoError(t, err)

	msg, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, MsgNodeUpdate, msg.Type)

	var payload NodeUpdate
	require.NoError(t, DecodePayload(msg, &payload))
	require.Equal(t, uint32(7), payload.ID)
	require.Equal(t, uint32(3), payload.Parent)
	require.Equal(t, []byte{1, 2, 3}, payload.Snapshot)
}

func TestMessageWithoutPayload(t *testing.T) {
	raw, err := Encode(MsgPing, nil)
	require.NoError(t, err)

	msg, err := Decode(raw)
	require.NoError(t, err)
	require.Equal(t, MsgPing, msg.Type)
	require.Empty(t, msg.Data)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte("not json"))
	require.Error(t, err)
}

func TestReplicationStateOwnerIndex(t *testing.T) {
	st := NewSceneReplicationState()
	st.Touch(10, []uint32{100, 101})
	st.Touch(11, []uint32{102})

	owner, ok := st.Owner(101)
	require.True(t, ok)
	require.Equal(t, uint32(10), owner)

	// Re-touching with a smaller set drops the stale component.
	st.Touch(10, []uint32{100})
	_, ok = st.Owner(101)
	require.False(t, ok)

	st.Forget(10)
	require.False(t, st.Knows(10))
	_, ok = st.Owner(100)
	require.False(t, ok)
	require.Equal(t, 1, st.Len())
}
