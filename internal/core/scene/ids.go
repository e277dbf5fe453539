// Package scene implements a hierarchical scene graph: nodes with cached
// world transforms, attribute-reflected components, three interchangeable
// file formats, resumable async loading and network dirty tracking.
//
// A Scene owns flat id lookup maps and is itself the root Node of its tree.
// Ids split into a replicated range, synchronized over the network, and a
// local range that never leaves the process.
package scene

// NodeID identifies a node within one scene.
type NodeID uint32

// ComponentID identifies a component within one scene.
type ComponentID uint32

// Id range boundaries. Replicated ids travel in network messages; local ids
// are process-private.
const (
	FirstReplicatedID uint32 = 0x1
	LastReplicatedID  uint32 = 0xffffff
	FirstLocalID      uint32 = 0x1000000
	LastLocalID       uint32 = 0xffffffff
)

// CreateMode selects the id range for new nodes and components.
type CreateMode uint8

const (
	// Replicated objects get ids from the replicated range and are included
	// in network updates.
	Replicated CreateMode = iota
	// Local objects get ids from the local range and stay process-private.
	Local
)

func (m CreateMode) String() string {
	if m == Local {
		return "local"
	}
	return "replicated"
}

// IsReplicatedID reports whether a raw id falls into the replicated range.
func IsReplicatedID(id uint32) bool {
	return id >= FirstReplicatedID && id <= LastReplicatedID
}

// Replicated reports whether the node id is in the replicated range.
func (id NodeID) Replicated() bool { return IsReplicatedID(uint32(id)) }

// Replicated reports whether the component id is in the replicated range.
func (id ComponentID) Replicated() bool { return IsReplicatedID(uint32(id)) }

// modeOfID derives the create mode a deserialized id belongs to.
func modeOfID(id uint32) CreateMode {
	if IsReplicatedID(id) {
		return Replicated
	}
	return Local
}
