package replication

// NodeReplicationState records what the server last sent for one replicated
// node: the set of replicated component ids present in its latest snapshot.
type NodeReplicationState struct {
	ID         uint32
	Components map[uint32]struct{}
}

// SceneReplicationState indexes sent nodes and their components. The scene's
// dirty set is id-only, so when a dirty component id no longer resolves (the
// component was removed) this index traces it back to the owning node, which
// then gets re-snapshotted without the component.
type SceneReplicationState struct {
	nodes  map[uint32]*NodeReplicationState
	owners map[uint32]uint32
}

// NewSceneReplicationState creates an empty state.
func NewSceneReplicationState() *SceneReplicationState {
	return &SceneReplicationState{
		nodes:  make(map[uint32]*NodeReplicationState),
		owners: make(map[uint32]uint32),
	}
}

// Touch replaces the node's entry with the component set of its latest
// snapshot, keeping the component owner index in sync.
func (st *SceneReplicationState) Touch(nodeID uint32, componentIDs []uint32) {
	if prev, ok := st.nodes[nodeID]; ok {
		for id := range prev.Components {
			delete(st.owners, id)
		}
	}
	node := &NodeReplicationState{
		ID:         nodeID,
		Components: make(map[uint32]struct{}, len(componentIDs)),
	}
	for _, id := range componentIDs {
		node.Components[id] = struct{}{}
		st.owners[id] = nodeID
	}
	st.nodes[nodeID] = node
}

// Forget drops the node's entry after a removal was sent.
func (st *SceneReplicationState) Forget(nodeID uint32) {
	prev, ok := st.nodes[nodeID]
	if !ok {
		return
	}
	for id := range prev.Components {
		delete(st.owners, id)
	}
	delete(st.nodes, nodeID)
}

// Knows reports whether a snapshot of the node was ever sent.
func (st *SceneReplicationState) Knows(nodeID uint32) bool {
	_, ok := st.nodes[nodeID]
	return ok
}

// Owner resolves a component id to the node that last carried it.
func (st *SceneReplicationState) Owner(componentID uint32) (uint32, bool) {
	nodeID, ok := st.owners[componentID]
	return nodeID, ok
}

// Len returns the number of tracked nodes.
func (st *SceneReplicationState) Len() int { return len(st.nodes) }
