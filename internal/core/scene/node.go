package scene

import (
	"errors"
	"fmt"

	"github.com/zeusync/scenegraph/internal/core/math3d"
	"github.com/zeusync/scenegraph/internal/core/observability/log"
	"github.com/zeusync/scenegraph/internal/core/variant"
)

var (
	ErrDetachedNode = errors.New("node is not in a scene")
	ErrInvalidChild = errors.New("invalid child node")
	ErrCycle        = errors.New("node cannot adopt one of its ancestors")
	ErrNotComponent = errors.New("registered type is not a component")
)

// Node is one element of the scene tree. It owns an ordered child list and
// an ordered component list, and caches its world transform, recomputed
// lazily after any local transform in the parent chain changes.
type Node struct {
	id     NodeID
	name   string
	mode   CreateMode
	scene  *Scene
	parent *Node

	position math3d.Vector3
	rotation math3d.Quaternion
	scale    math3d.Vector3

	world      math3d.Matrix3x4
	worldDirty bool

	enabled     bool
	enabledPrev bool

	children   []*Node
	components []Component
	listeners  []Component

	tags []string
	vars variant.VariantMap
}

// NewNode creates a detached node with identity transform. It gets an id
// once attached under a scene.
func NewNode() *Node {
	return &Node{
		rotation:    math3d.QuaternionIdentity,
		scale:       math3d.One3,
		world:       math3d.MatrixIdentity,
		worldDirty:  true,
		enabled:     true,
		enabledPrev: true,
	}
}

func (n *Node) TypeName() string { return "Node" }

// ID returns the scene-unique node id, zero while detached.
func (n *Node) ID() NodeID { return n.id }

// Name returns the node name. Names need not be unique.
func (n *Node) Name() string { return n.name }

// SetName renames the node.
func (n *Node) SetName(name string) {
	if name == n.name {
		return
	}
	n.name = name
	n.MarkNetworkUpdate()
}

// Parent returns the parent node, nil for a root.
func (n *Node) Parent() *Node { return n.parent }

// Scene returns the owning scene, nil while detached.
func (n *Node) Scene() *Scene { return n.scene }

// Mode reports the id range the node belongs to.
func (n *Node) Mode() CreateMode {
	if n.id != 0 {
		return modeOfID(uint32(n.id))
	}
	return n.mode
}

// IsReplicated reports whether the node replicates over the network.
func (n *Node) IsReplicated() bool { return n.Mode() == Replicated }

// MarkNetworkUpdate queues the node for the next network delta.
func (n *Node) MarkNetworkUpdate() {
	if n.scene != nil && n.id != 0 {
		n.scene.markNodeDirty(n.id)
	}
}

// Transform

// Position returns the position relative to the parent.
func (n *Node) Position() math3d.Vector3 { return n.position }

// Rotation returns the rotation relative to the parent.
func (n *Node) Rotation() math3d.Quaternion { return n.rotation }

// Scale returns the scale relative to the parent.
func (n *Node) Scale() math3d.Vector3 { return n.scale }

// SetPosition moves the node in parent space.
func (n *Node) SetPosition(position math3d.Vector3) {
	n.position = position
	n.markDirty()
	n.MarkNetworkUpdate()
}

// SetRotation rotates the node in parent space.
func (n *Node) SetRotation(rotation math3d.Quaternion) {
	n.rotation = rotation
	n.markDirty()
	n.MarkNetworkUpdate()
}

// SetScale scales the node. Zero components are allowed but make the world
// transform singular.
func (n *Node) SetScale(scale math3d.Vector3) {
	n.scale = scale
	n.markDirty()
	n.MarkNetworkUpdate()
}

// SetUniformScale scales all three axes by the same factor.
func (n *Node) SetUniformScale(scale float32) {
	n.SetScale(math3d.V3(scale, scale, scale))
}

// SetTransform sets position, rotation and scale in one dirty pass.
func (n *Node) SetTransform(position math3d.Vector3, rotation math3d.Quaternion, scale math3d.Vector3) {
	n.position = position
	n.rotation = rotation
	n.scale = scale
	n.markDirty()
	n.MarkNetworkUpdate()
}

// Translate moves the node along its own rotated axes.
func (n *Node) Translate(delta math3d.Vector3) {
	n.SetPosition(n.position.Add(n.rotation.RotateVec(delta)))
}

// Rotate applies an additional local-space rotation.
func (n *Node) Rotate(delta math3d.Quaternion) {
	n.SetRotation(n.rotation.Mul(delta).Normalized())
}

// LocalTransform composes the local position, rotation and scale.
func (n *Node) LocalTransform() math3d.Matrix3x4 {
	return math3d.MatrixFromTRS(n.position, n.rotation, n.scale)
}

// WorldTransform returns the cached world matrix, recomputing the dirty
// parent chain first.
func (n *Node) WorldTransform() math3d.Matrix3x4 {
	if n.worldDirty {
		n.updateWorldTransform()
	}
	return n.world
}

// WorldPosition returns the node's position in world space.
func (n *Node) WorldPosition() math3d.Vector3 { return n.WorldTransform().Translation() }

// WorldRotation returns the node's rotation in world space.
func (n *Node) WorldRotation() math3d.Quaternion { return n.WorldTransform().Rotation() }

// WorldScale returns the node's accumulated scale in world space.
func (n *Node) WorldScale() math3d.Vector3 { return n.WorldTransform().ScaleFactor() }

// IsDirty reports whether the cached world transform needs recomputing.
func (n *Node) IsDirty() bool { return n.worldDirty }

func (n *Node) updateWorldTransform() {
	local := n.LocalTransform()
	if n.parent != nil {
		n.world = n.parent.WorldTransform().Mul(local)
	} else {
		n.world = local
	}
	n.worldDirty = false
}

// markDirty invalidates the subtree's world transforms. A dirty node's
// subtree is always fully dirty, so the walk stops at dirty nodes.
func (n *Node) markDirty() {
	if n.worldDirty {
		return
	}
	n.worldDirty = true
	for _, c := range n.listeners {
		if s := n.scene; s != nil && s.IsThreadedUpdate() {
			s.DelayedMarkedDirty(c)
		} else {
			c.OnMarkedDirty(n)
		}
	}
	for _, child := range n.children {
		child.markDirty()
	}
}

// AddListener subscribes one of the node's own components to OnMarkedDirty
// notifications.
func (n *Node) AddListener(c Component) {
	if c == nil || c.Node() != n {
		return
	}
	for _, l := range n.listeners {
		if l == c {
			return
		}
	}
	n.listeners = append(n.listeners, c)
}

// RemoveListener unsubscribes a component from dirty notifications.
func (n *Node) RemoveListener(c Component) {
	for i, l := range n.listeners {
		if l == c {
			n.listeners = append(n.listeners[:i], n.listeners[i+1:]...)
			return
		}
	}
}

// Enabled state

// Enabled returns the node's own enabled flag, ignoring ancestors.
func (n *Node) Enabled() bool { return n.enabled }

// EnabledEffective is true when the node and all its ancestors are enabled.
func (n *Node) EnabledEffective() bool {
	for cur := n; cur != nil; cur = cur.parent {
		if !cur.enabled {
			return false
		}
	}
	return true
}

// SetEnabled enables or disables the node and remembers the state as the
// one ResetDeepEnabled restores.
func (n *Node) SetEnabled(enabled bool) {
	n.setEnabled(enabled, false, true)
}

// SetDeepEnabled enables or disables the whole subtree without touching the
// remembered per-node states.
func (n *Node) SetDeepEnabled(enabled bool) {
	n.setEnabled(enabled, true, false)
}

// ResetDeepEnabled restores every node in the subtree to its remembered
// enabled state, undoing SetDeepEnabled.
func (n *Node) ResetDeepEnabled() {
	n.setEnabled(n.enabledPrev, false, false)
	for _, child := range n.children {
		child.ResetDeepEnabled()
	}
}

func (n *Node) setEnabled(enabled, recursive, storeSelf bool) {
	if storeSelf {
		n.enabledPrev = enabled
	}
	if enabled != n.enabled {
		n.enabled = enabled
		n.MarkNetworkUpdate()
		for _, c := range n.components {
			c.OnSetEnabled()
		}
	}
	if recursive {
		for _, child := range n.children {
			child.setEnabled(enabled, true, storeSelf)
		}
	}
}

// Tags

// Tags returns the node's tags. Callers must not mutate the slice.
func (n *Node) Tags() []string { return n.tags }

// HasTag reports whether the node carries the tag.
func (n *Node) HasTag(tag string) bool {
	for _, t := range n.tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AddTag adds a tag and indexes it in the scene.
func (n *Node) AddTag(tag string) {
	if tag == "" || n.HasTag(tag) {
		return
	}
	n.tags = append(n.tags, tag)
	if n.scene != nil {
		n.scene.nodeTagAdded(n, tag)
	}
	n.MarkNetworkUpdate()
}

// AddTags adds several tags at once.
func (n *Node) AddTags(tags ...string) {
	for _, tag := range tags {
		n.AddTag(tag)
	}
}

// RemoveTag removes a tag, reporting whether it was present.
func (n *Node) RemoveTag(tag string) bool {
	for i, t := range n.tags {
		if t == tag {
			n.tags = append(n.tags[:i], n.tags[i+1:]...)
			if n.scene != nil {
				n.scene.nodeTagRemoved(n, tag)
			}
			n.MarkNetworkUpdate()
			return true
		}
	}
	return false
}

// RemoveAllTags clears the node's tags.
func (n *Node) RemoveAllTags() {
	for _, tag := range n.tags {
		if n.scene != nil {
			n.scene.nodeTagRemoved(n, tag)
		}
	}
	n.tags = nil
	n.MarkNetworkUpdate()
}

// SetTags replaces the tag set.
func (n *Node) SetTags(tags []string) {
	n.RemoveAllTags()
	n.AddTags(tags...)
}

// User variables

// SetVar stores a user variable on the node.
func (n *Node) SetVar(key string, value variant.Variant) {
	if n.vars == nil {
		n.vars = variant.VariantMap{}
	}
	n.vars[key] = value
	n.MarkNetworkUpdate()
}

// Var reads a user variable; missing keys return the empty variant.
func (n *Node) Var(key string) variant.Variant { return n.vars[key] }

// Vars returns the node's user variable map. Callers must not mutate it.
func (n *Node) Vars() variant.VariantMap { return n.vars }

// Tree structure

// Children returns the direct children in order. Callers must not mutate
// the slice.
func (n *Node) Children() []*Node { return n.children }

// NumChildren returns the direct child count.
func (n *Node) NumChildren() int { return len(n.children) }

// ChildAt returns the i-th direct child, nil when out of range.
func (n *Node) ChildAt(i int) *Node {
	if i < 0 || i >= len(n.children) {
		return nil
	}
	return n.children[i]
}

// ChildrenRecursive returns the whole subtree below the node in depth-first
// order.
func (n *Node) ChildrenRecursive() []*Node {
	var out []*Node
	var walk func(*Node)
	walk = func(cur *Node) {
		for _, child := range cur.children {
			out = append(out, child)
			walk(child)
		}
	}
	walk(n)
	return out
}

// Child finds a direct child by name.
func (n *Node) Child(name string) *Node {
	for _, child := range n.children {
		if child.name == name {
			return child
		}
	}
	return nil
}

// ChildRecursive finds the first node with the name anywhere below this
// node, depth-first.
func (n *Node) ChildRecursive(name string) *Node {
	for _, child := range n.children {
		if child.name == name {
			return child
		}
		if found := child.ChildRecursive(name); found != nil {
			return found
		}
	}
	return nil
}

// ChildByID finds a node by id anywhere below this node.
func (n *Node) ChildByID(id NodeID) *Node {
	for _, child := range n.children {
		if child.id == id {
			return child
		}
		if found := child.ChildByID(id); found != nil {
			return found
		}
	}
	return nil
}

// CreateChild creates and attaches a child node. The id is assigned from
// the mode's range once the node is under a scene.
func (n *Node) CreateChild(name string, mode CreateMode) *Node {
	child := NewNode()
	child.name = name
	child.mode = mode
	_ = n.AddChild(child)
	return child
}

// CreateChildWithID creates a child carrying a caller-chosen id. If the id
// is taken the existing owner is evicted from the scene maps with a
// warning.
func (n *Node) CreateChildWithID(name string, id NodeID) *Node {
	child := NewNode()
	child.name = name
	child.id = id
	child.mode = modeOfID(uint32(id))
	_ = n.AddChild(child)
	return child
}

// createChildForLoad attaches a child for a deserialized subtree. The file
// id is kept when free so scene files round-trip with stable ids; a taken
// id (instantiating into a populated scene) gets a fresh one, and the
// resolver rewrites references afterwards.
func (n *Node) createChildForLoad(fileID uint32) *Node {
	child := NewNode()
	child.mode = Local
	if n.Mode() == Replicated && fileID < FirstLocalID {
		child.mode = Replicated
	}
	if n.scene != nil && fileID != 0 && modeOfID(fileID) == child.mode && n.scene.nodeIDFree(NodeID(fileID)) {
		child.id = NodeID(fileID)
	}
	_ = n.AddChild(child)
	return child
}

// AddChild attaches a node as the last child, re-parenting it and moving
// its subtree between scenes when needed.
func (n *Node) AddChild(child *Node) error {
	if child == nil || child == n {
		return ErrInvalidChild
	}
	for anc := n; anc != nil; anc = anc.parent {
		if anc == child {
			return ErrCycle
		}
	}
	if n.scene != nil {
		n.scene.assertNoStructuralChange("add child")
	}

	child.detachFromParent()
	child.parent = n
	n.children = append(n.children, child)

	if child.scene != n.scene {
		if n.scene != nil {
			n.scene.nodeAdded(child)
		} else {
			child.scene.nodeRemoved(child)
		}
	}
	child.markDirty()
	return nil
}

// RemoveChild detaches a direct child and unregisters its subtree from the
// scene. The subtree itself stays intact and can be re-attached.
func (n *Node) RemoveChild(child *Node) {
	if child == nil || child.parent != n {
		return
	}
	if n.scene != nil {
		n.scene.assertNoStructuralChange("remove child")
		n.scene.nodeRemoved(child)
	}
	child.detachFromParent()
	child.markDirty()
}

// RemoveAllChildren detaches every child.
func (n *Node) RemoveAllChildren() {
	for _, child := range append([]*Node(nil), n.children...) {
		n.RemoveChild(child)
	}
}

// Remove detaches the node from its parent.
func (n *Node) Remove() {
	if n.parent != nil {
		n.parent.RemoveChild(n)
	}
}

func (n *Node) detachFromParent() {
	p := n.parent
	if p == nil {
		return
	}
	for i, c := range p.children {
		if c == n {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	n.parent = nil
}

// removeFiltered strips nodes and components of the selected modes from the
// subtree, keeping non-matching nodes in place.
func (n *Node) removeFiltered(replicated, local bool) {
	for _, child := range append([]*Node(nil), n.children...) {
		mode := child.Mode()
		if (mode == Replicated && replicated) || (mode == Local && local) {
			n.RemoveChild(child)
		} else {
			child.removeFiltered(replicated, local)
		}
	}
	for _, comp := range append([]Component(nil), n.components...) {
		mode := comp.Mode()
		if (mode == Replicated && replicated) || (mode == Local && local) {
			n.removeComponent(comp)
		}
	}
}

// Components

// Components returns the node's components in attach order. Callers must
// not mutate the slice.
func (n *Node) Components() []Component { return n.components }

// Component finds the first component of the type, or nil.
func (n *Node) Component(typeName string) Component {
	for _, c := range n.components {
		if c.TypeName() == typeName {
			return c
		}
	}
	return nil
}

// ComponentRecursive finds the first component of the type in this node or
// anywhere below it, depth-first.
func (n *Node) ComponentRecursive(typeName string) Component {
	if c := n.Component(typeName); c != nil {
		return c
	}
	for _, child := range n.children {
		if c := child.ComponentRecursive(typeName); c != nil {
			return c
		}
	}
	return nil
}

// CreateComponent builds a registered component type and attaches it. The
// node must be in a scene, which supplies the type registry.
func (n *Node) CreateComponent(typeName string, mode CreateMode) (Component, error) {
	if n.scene == nil {
		return nil, ErrDetachedNode
	}
	typed, err := n.scene.reg.Create(typeName)
	if err != nil {
		return nil, err
	}
	comp, ok := typed.(Component)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotComponent, typeName)
	}
	n.addComponent(comp, mode, 0)
	return comp, nil
}

// AddComponent attaches an externally constructed component.
func (n *Node) AddComponent(comp Component, mode CreateMode) {
	if comp == nil || comp.Node() != nil {
		return
	}
	n.addComponent(comp, mode, 0)
}

func (n *Node) addComponent(comp Component, mode CreateMode, id ComponentID) {
	if n.scene != nil {
		n.scene.assertNoStructuralChange("add component")
	}
	b := comp.base()
	b.bind(comp)
	b.node = n
	b.mode = mode
	b.id = id
	n.components = append(n.components, comp)
	if n.scene != nil {
		n.scene.componentAdded(comp)
	}
	comp.OnNodeSet(n)
}

// RemoveComponent detaches the first component of the type, reporting
// whether one was found.
func (n *Node) RemoveComponent(typeName string) bool {
	comp := n.Component(typeName)
	if comp == nil {
		return false
	}
	n.removeComponent(comp)
	return true
}

// RemoveAllComponents detaches every component.
func (n *Node) RemoveAllComponents() {
	for _, comp := range append([]Component(nil), n.components...) {
		n.removeComponent(comp)
	}
}

func (n *Node) removeComponent(comp Component) {
	if n.scene != nil {
		n.scene.assertNoStructuralChange("remove component")
	}
	for i, c := range n.components {
		if c == comp {
			n.components = append(n.components[:i], n.components[i+1:]...)
			break
		}
	}
	n.RemoveListener(comp)
	if n.scene != nil {
		n.scene.componentRemoved(comp)
	}
	comp.OnNodeSet(nil)
	comp.base().node = nil
}

// ApplyAttributes runs the post-load hook on every component in the
// subtree, parents first.
func (n *Node) ApplyAttributes() {
	for _, c := range n.components {
		c.ApplyAttributes()
	}
	for _, child := range n.children {
		child.ApplyAttributes()
	}
}

// Clone deep-copies the node, its components and its subtree under the
// same parent. References between cloned objects are remapped to the
// clones; references out of the subtree keep their targets.
func (n *Node) Clone(mode CreateMode) (*Node, error) {
	if n.parent == nil {
		return nil, errors.New("root node cannot be cloned")
	}
	if n.scene == nil {
		return nil, ErrDetachedNode
	}
	resolver := NewSceneResolver()
	clone := n.cloneRecursive(n.parent, &resolver, mode)
	resolver.Resolve(n.scene.reg, n.scene.logger)
	clone.ApplyAttributes()
	return clone, nil
}

func (n *Node) cloneRecursive(parent *Node, resolver *SceneResolver, mode CreateMode) *Node {
	clone := parent.CreateChild(n.name, mode)
	resolver.AddNode(n.id, clone)

	clone.position = n.position
	clone.rotation = n.rotation
	clone.scale = n.scale
	clone.enabled = n.enabled
	clone.enabledPrev = n.enabledPrev
	clone.vars = n.vars.Clone()
	clone.SetTags(append([]string(nil), n.tags...))
	clone.markDirty()

	for _, comp := range n.components {
		n.cloneComponent(comp, clone, resolver)
	}
	for _, child := range n.children {
		child.cloneRecursive(clone, resolver, mode)
	}
	return clone
}

func (n *Node) cloneComponent(src Component, dst *Node, resolver *SceneResolver) {
	if unknown, ok := src.(*UnknownComponent); ok {
		clone := NewUnknownComponent(unknown.typeName)
		clone.raw = append([]byte(nil), unknown.raw...)
		clone.text = append([]namedAttr(nil), unknown.text...)
		clone.useText = unknown.useText
		clone.disabled = unknown.disabled
		dst.addComponent(clone, src.Mode(), 0)
		resolver.AddComponent(src.ID(), clone)
		return
	}

	comp, err := dst.CreateComponent(src.TypeName(), src.Mode())
	if err != nil {
		n.scene.logger.Warn("clone component failed",
			log.String("type", src.TypeName()), log.Error(err))
		return
	}
	resolver.AddComponent(src.ID(), comp)
	for _, attr := range n.scene.reg.Attributes(src.TypeName()) {
		attr.Set(comp, attr.Get(src).Clone())
	}
	comp.SetEnabled(src.Enabled())
}
