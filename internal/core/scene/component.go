package scene

import (
	"github.com/zeusync/scenegraph/internal/core/registry"
)

// Component is behavior and data attached to a node. Implementations embed
// BaseComponent and override the On* hooks they care about; the embedded
// base satisfies the rest, including the unexported methods that tie a
// component into its node and scene.
//
// Hooks:
//   - OnNodeSet fires after attach (with the node) and detach (with nil).
//   - OnSceneSet fires when the owning subtree enters or leaves a scene.
//   - OnSetEnabled fires when the component's own enabled flag flips.
//   - OnMarkedDirty fires when the owning node's world transform is
//     invalidated, if the component registered as a listener.
type Component interface {
	registry.Typed

	ID() ComponentID
	Node() *Node
	Scene() *Scene
	Mode() CreateMode

	Enabled() bool
	SetEnabled(enabled bool)
	EnabledEffective() bool

	MarkNetworkUpdate()
	ApplyAttributes()

	OnNodeSet(node *Node)
	OnSceneSet(scene *Scene)
	OnSetEnabled()
	OnMarkedDirty(node *Node)

	base() *BaseComponent
}

// Updater is implemented by components that want per-frame updates.
// Scene.Update calls it for every enabled component, parents before
// children, in attach order.
type Updater interface {
	Update(timeStep float32)
}

// BaseComponent supplies the Component plumbing. The zero value is enabled
// and replicated; embed it by value.
type BaseComponent struct {
	self     Component
	id       ComponentID
	node     *Node
	mode     CreateMode
	disabled bool
}

func (b *BaseComponent) base() *BaseComponent { return b }

// bind wires the outer component value so hook dispatch reaches overrides.
func (b *BaseComponent) bind(self Component) {
	if b.self == nil {
		b.self = self
	}
}

// ID returns the scene-unique component id, zero before scene attach.
func (b *BaseComponent) ID() ComponentID { return b.id }

// Node returns the owning node, nil while detached.
func (b *BaseComponent) Node() *Node { return b.node }

// Scene returns the scene of the owning node, or nil.
func (b *BaseComponent) Scene() *Scene {
	if b.node == nil {
		return nil
	}
	return b.node.scene
}

// Mode reports the id range the component belongs to.
func (b *BaseComponent) Mode() CreateMode {
	if b.id != 0 {
		return modeOfID(uint32(b.id))
	}
	return b.mode
}

// Enabled returns the component's own enabled flag.
func (b *BaseComponent) Enabled() bool { return !b.disabled }

// SetEnabled flips the enabled flag and runs the OnSetEnabled hook.
func (b *BaseComponent) SetEnabled(enabled bool) {
	if enabled == !b.disabled {
		return
	}
	b.disabled = !enabled
	b.MarkNetworkUpdate()
	if b.self != nil {
		b.self.OnSetEnabled()
	}
}

// EnabledEffective is true when the component and its whole node chain are
// enabled.
func (b *BaseComponent) EnabledEffective() bool {
	return !b.disabled && b.node != nil && b.node.EnabledEffective()
}

// MarkNetworkUpdate queues the component for the next network delta.
func (b *BaseComponent) MarkNetworkUpdate() {
	if s := b.Scene(); s != nil && b.id != 0 {
		s.markComponentDirty(b.id)
	}
}

// ApplyAttributes is called after a load or clone once references resolve.
func (b *BaseComponent) ApplyAttributes() {}

// OnNodeSet is a default no-op hook.
func (b *BaseComponent) OnNodeSet(*Node) {}

// OnSceneSet is a default no-op hook.
func (b *BaseComponent) OnSceneSet(*Scene) {}

// OnSetEnabled is a default no-op hook.
func (b *BaseComponent) OnSetEnabled() {}

// OnMarkedDirty is a default no-op hook.
func (b *BaseComponent) OnMarkedDirty(*Node) {}
