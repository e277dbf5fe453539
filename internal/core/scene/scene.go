package scene

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/zeusync/scenegraph/internal/core/events/bus"
	"github.com/zeusync/scenegraph/internal/core/observability/log"
	"github.com/zeusync/scenegraph/internal/core/registry"
	"github.com/zeusync/scenegraph/internal/core/resource"
	"github.com/zeusync/scenegraph/pkg/concurrent"
)

// sceneSerial numbers scenes for their private bus topics. Names can change
// at runtime; serials cannot.
var sceneSerial atomic.Uint64

// Scene is the root node of a scene graph and the owner of its bookkeeping:
// flat id lookup maps for O(1) resolution, id allocation, the tag index,
// update dispatch, async loading state and network dirty tracking.
//
// A scene is not safe for unsynchronized concurrent mutation. The threaded
// update window is the exception: between BeginThreadedUpdate and
// EndThreadedUpdate worker goroutines may read the tree and queue dirty
// notifications, while structural changes panic.
type Scene struct {
	Node

	reg    *registry.Registry
	cache  *resource.Cache
	events bus.EventBus
	logger log.Log
	topic  string

	replicatedNodes      map[NodeID]*Node
	localNodes           map[NodeID]*Node
	replicatedComponents map[ComponentID]Component
	localComponents      map[ComponentID]Component

	nextReplicatedNodeID      uint32
	nextLocalNodeID           uint32
	nextReplicatedComponentID uint32
	nextLocalComponentID      uint32

	taggedNodes map[string][]*Node

	fileName string
	checksum uint64

	timeScale      float32
	elapsedTime    float32
	updateEnabled  bool
	asyncLoadingMs int

	async *asyncLoadState

	threadedUpdate bool
	delayedMu      sync.Mutex
	delayedDirty   []Component

	netMu           sync.Mutex
	dirtyNodes      map[NodeID]struct{}
	dirtyComponents map[ComponentID]struct{}
}

// NewScene creates an empty scene wired to a type registry, a resource
// cache for (pre)loading referenced resources, and an event bus for
// lifecycle events. cache and eventBus may be nil for scenes that neither
// load files nor publish; a nil logger falls back to a no-op one.
func NewScene(reg *registry.Registry, cache *resource.Cache, eventBus bus.EventBus, logger log.Log) *Scene {
	if logger == nil {
		logger = log.Nop()
	}
	EnsureSceneTypes(reg)

	s := &Scene{
		Node:   *NewNode(),
		reg:    reg,
		cache:  cache,
		events: eventBus,
		logger: logger,
		topic:  fmt.Sprintf("scene/%d", sceneSerial.Add(1)),

		replicatedNodes:      make(map[NodeID]*Node),
		localNodes:           make(map[NodeID]*Node),
		replicatedComponents: make(map[ComponentID]Component),
		localComponents:      make(map[ComponentID]Component),

		nextReplicatedNodeID:      FirstReplicatedID,
		nextLocalNodeID:           FirstLocalID,
		nextReplicatedComponentID: FirstReplicatedID,
		nextLocalComponentID:      FirstLocalID,

		taggedNodes: make(map[string][]*Node),

		timeScale:      1,
		updateEnabled:  true,
		asyncLoadingMs: 5,

		dirtyNodes:      make(map[NodeID]struct{}),
		dirtyComponents: make(map[ComponentID]struct{}),
	}
	// The root registers itself so children have a parent id to refer to.
	s.nodeAdded(&s.Node)
	return s
}

func (s *Scene) TypeName() string { return "Scene" }

// Topic is the bus topic this scene publishes its events into, in addition
// to the default topic.
func (s *Scene) Topic() string { return s.topic }

// Registry returns the type registry the scene creates components from.
func (s *Scene) Registry() *registry.Registry { return s.reg }

// Cache returns the resource cache, nil when the scene was built without
// one.
func (s *Scene) Cache() *resource.Cache { return s.cache }

// FileName is the path of the last file loaded into the scene.
func (s *Scene) FileName() string { return s.fileName }

// Checksum is the content hash recorded by the last binary load or save,
// used to compare scene revisions across processes. Zero for text formats.
func (s *Scene) Checksum() uint64 { return s.checksum }

// Lookup

// GetNode resolves a node id to the live node, nil when unused.
func (s *Scene) GetNode(id NodeID) *Node {
	if id.Replicated() {
		return s.replicatedNodes[id]
	}
	return s.localNodes[id]
}

// GetComponent resolves a component id, nil when unused.
func (s *Scene) GetComponent(id ComponentID) Component {
	if id.Replicated() {
		return s.replicatedComponents[id]
	}
	return s.localComponents[id]
}

// NodesWithTag returns the nodes carrying the tag, in tagging order.
func (s *Scene) NodesWithTag(tag string) []*Node {
	return append([]*Node(nil), s.taggedNodes[tag]...)
}

// NumNodes is the number of registered nodes, including the root.
func (s *Scene) NumNodes() int { return len(s.replicatedNodes) + len(s.localNodes) }

// NumComponents is the number of registered components.
func (s *Scene) NumComponents() int {
	return len(s.replicatedComponents) + len(s.localComponents)
}

// Clear removes nodes and components of the selected id ranges and resets
// the matching id counters. Clearing everything also resets the scene
// name, file name and checksum. The root node itself always stays.
func (s *Scene) Clear(replicated, local bool) {
	s.StopAsyncLoading()
	s.removeFiltered(replicated, local)
	if replicated && local {
		s.name = ""
		s.fileName = ""
		s.checksum = 0
	}
	if replicated {
		s.nextReplicatedNodeID = FirstReplicatedID
		s.nextReplicatedComponentID = FirstReplicatedID
	}
	if local {
		s.nextLocalNodeID = FirstLocalID
		s.nextLocalComponentID = FirstLocalID
	}
}

// Update

// Update advances the scene one frame: async loading first, then the
// update event and every enabled Updater component, parents before
// children in attach order. timeStep is in seconds, scaled by the scene
// time scale before use. Does nothing while updates are disabled.
func (s *Scene) Update(timeStep float32) {
	if !s.updateEnabled {
		return
	}
	if s.async != nil {
		// A resources-only preload runs behind a live scene; full loads
		// suspend scene updates until finished.
		mode := s.async.mode
		s.updateAsyncLoading()
		if mode > LoadResourcesOnly {
			return
		}
	}

	timeStep *= s.timeScale
	s.publish(EventUpdate, UpdateEvent{Scene: s, TimeStep: timeStep})
	s.updateComponents(timeStep)
	s.elapsedTime += timeStep
}

// updateComponents walks the tree depth-first. Index loops tolerate
// updaters attaching or detaching siblings mid-frame.
func (s *Scene) updateComponents(timeStep float32) {
	var walk func(n *Node)
	walk = func(n *Node) {
		for i := 0; i < len(n.components); i++ {
			comp := n.components[i]
			if up, ok := comp.(Updater); ok && comp.EnabledEffective() {
				up.Update(timeStep)
			}
		}
		for i := 0; i < len(n.children); i++ {
			walk(n.children[i])
		}
	}
	walk(&s.Node)
}

// TimeScale multiplies every update time step.
func (s *Scene) TimeScale() float32 { return s.timeScale }

// SetTimeScale sets the update time multiplier, floored to a tiny positive
// value so time never stops or reverses.
func (s *Scene) SetTimeScale(scale float32) {
	if scale < 1e-6 {
		scale = 1e-6
	}
	s.timeScale = scale
	s.MarkNetworkUpdate()
}

// ElapsedTime is the scaled time accumulated by Update, for gameplay
// timing. Float accumulation drifts; it is not a wall clock.
func (s *Scene) ElapsedTime() float32 { return s.elapsedTime }

// SetElapsedTime resets the accumulated scene time.
func (s *Scene) SetElapsedTime(t float32) { s.elapsedTime = t }

// UpdateEnabled reports whether Update does anything.
func (s *Scene) UpdateEnabled() bool { return s.updateEnabled }

// SetUpdateEnabled pauses or resumes scene updates, including async
// loading progress.
func (s *Scene) SetUpdateEnabled(enable bool) { s.updateEnabled = enable }

// AsyncLoadingMs is the per-frame async loading budget in milliseconds.
func (s *Scene) AsyncLoadingMs() int { return s.asyncLoadingMs }

// SetAsyncLoadingMs sets the per-frame async loading budget, minimum 1ms.
func (s *Scene) SetAsyncLoadingMs(ms int) {
	if ms < 1 {
		ms = 1
	}
	s.asyncLoadingMs = ms
}

// Threaded update window

// BeginThreadedUpdate opens the window during which component work may run
// on worker goroutines. Structural scene mutation panics inside the
// window; dirty notifications are deferred.
func (s *Scene) BeginThreadedUpdate() { s.threadedUpdate = true }

// EndThreadedUpdate closes the window and delivers the deferred dirty
// notifications in queue order.
func (s *Scene) EndThreadedUpdate() {
	if !s.threadedUpdate {
		return
	}
	s.threadedUpdate = false

	s.delayedMu.Lock()
	delayed := s.delayedDirty
	s.delayedDirty = nil
	s.delayedMu.Unlock()

	for _, comp := range delayed {
		if node := comp.Node(); node != nil {
			comp.OnMarkedDirty(node)
		}
	}
}

// IsThreadedUpdate reports whether the threaded window is open.
func (s *Scene) IsThreadedUpdate() bool { return s.threadedUpdate }

// DelayedMarkedDirty queues a dirty notification raised on a worker
// goroutine for delivery at EndThreadedUpdate.
func (s *Scene) DelayedMarkedDirty(comp Component) {
	s.delayedMu.Lock()
	s.delayedDirty = append(s.delayedDirty, comp)
	s.delayedMu.Unlock()
}

// RunThreaded opens a threaded window and fans fn across every registered
// component on bounded workers. fn must treat the scene as read-only;
// marking transforms dirty is allowed and delivered after the window.
func (s *Scene) RunThreaded(fn func(Component)) {
	comps := make([]Component, 0, s.NumComponents())
	for _, comp := range s.replicatedComponents {
		comps = append(comps, comp)
	}
	for _, comp := range s.localComponents {
		comps = append(comps, comp)
	}
	s.BeginThreadedUpdate()
	concurrent.Each(comps, 0, fn)
	s.EndThreadedUpdate()
}

func (s *Scene) assertNoStructuralChange(op string) {
	if s.threadedUpdate {
		panic("scene: " + op + " during threaded update")
	}
}

// Network dirty tracking

// DirtySet is one frame's replication work: the replicated ids whose state
// changed since the previous PrepareNetworkUpdate call, sorted.
type DirtySet struct {
	Nodes      []NodeID
	Components []ComponentID
}

// Empty reports whether nothing changed.
func (d DirtySet) Empty() bool { return len(d.Nodes) == 0 && len(d.Components) == 0 }

// PrepareNetworkUpdate drains the accumulated dirty id sets. Ids may refer
// to since-removed objects; consumers treat an unresolvable id as a
// removal.
func (s *Scene) PrepareNetworkUpdate() DirtySet {
	s.netMu.Lock()
	nodes := make([]NodeID, 0, len(s.dirtyNodes))
	for id := range s.dirtyNodes {
		nodes = append(nodes, id)
	}
	comps := make([]ComponentID, 0, len(s.dirtyComponents))
	for id := range s.dirtyComponents {
		comps = append(comps, id)
	}
	s.dirtyNodes = make(map[NodeID]struct{})
	s.dirtyComponents = make(map[ComponentID]struct{})
	s.netMu.Unlock()

	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	sort.Slice(comps, func(i, j int) bool { return comps[i] < comps[j] })
	return DirtySet{Nodes: nodes, Components: comps}
}

// markNodeDirty queues a replicated node id for the next network delta.
// Local ids never leave the process and are dropped here.
func (s *Scene) markNodeDirty(id NodeID) {
	if !id.Replicated() {
		return
	}
	s.netMu.Lock()
	s.dirtyNodes[id] = struct{}{}
	s.netMu.Unlock()
}

// markComponentDirty queues a replicated component id likewise.
func (s *Scene) markComponentDirty(id ComponentID) {
	if !id.Replicated() {
		return
	}
	s.netMu.Lock()
	s.dirtyComponents[id] = struct{}{}
	s.netMu.Unlock()
}

// Id allocation

// freeNodeID scans the mode's range from the rolling counter for the next
// unused id. A full cycle without a free id means the range is exhausted,
// which is unrecoverable bookkeeping corruption at 16M+ live objects, and
// panics rather than silently reusing ids.
func (s *Scene) freeNodeID(mode CreateMode) NodeID {
	if mode == Replicated {
		start := s.nextReplicatedNodeID
		for {
			ret := s.nextReplicatedNodeID
			if s.nextReplicatedNodeID < LastReplicatedID {
				s.nextReplicatedNodeID++
			} else {
				s.nextReplicatedNodeID = FirstReplicatedID
			}
			if _, taken := s.replicatedNodes[NodeID(ret)]; !taken {
				return NodeID(ret)
			}
			if s.nextReplicatedNodeID == start {
				panic("scene: replicated node id range exhausted")
			}
		}
	}
	start := s.nextLocalNodeID
	for {
		ret := s.nextLocalNodeID
		if s.nextLocalNodeID < LastLocalID {
			s.nextLocalNodeID++
		} else {
			s.nextLocalNodeID = FirstLocalID
		}
		if _, taken := s.localNodes[NodeID(ret)]; !taken {
			return NodeID(ret)
		}
		if s.nextLocalNodeID == start {
			panic("scene: local node id range exhausted")
		}
	}
}

// freeComponentID is freeNodeID for the component id spaces.
func (s *Scene) freeComponentID(mode CreateMode) ComponentID {
	if mode == Replicated {
		start := s.nextReplicatedComponentID
		for {
			ret := s.nextReplicatedComponentID
			if s.nextReplicatedComponentID < LastReplicatedID {
				s.nextReplicatedComponentID++
			} else {
				s.nextReplicatedComponentID = FirstReplicatedID
			}
			if _, taken := s.replicatedComponents[ComponentID(ret)]; !taken {
				return ComponentID(ret)
			}
			if s.nextReplicatedComponentID == start {
				panic("scene: replicated component id range exhausted")
			}
		}
	}
	start := s.nextLocalComponentID
	for {
		ret := s.nextLocalComponentID
		if s.nextLocalComponentID < LastLocalID {
			s.nextLocalComponentID++
		} else {
			s.nextLocalComponentID = FirstLocalID
		}
		if _, taken := s.localComponents[ComponentID(ret)]; !taken {
			return ComponentID(ret)
		}
		if s.nextLocalComponentID == start {
			panic("scene: local component id range exhausted")
		}
	}
}

// nodeIDFree reports whether an id can be claimed by a loaded node.
func (s *Scene) nodeIDFree(id NodeID) bool {
	if id == 0 {
		return false
	}
	_, taken := s.nodeMapFor(id)[id]
	return !taken
}

// componentIDFree reports whether an id can be claimed by a loaded
// component.
func (s *Scene) componentIDFree(id ComponentID) bool {
	if id == 0 {
		return false
	}
	_, taken := s.componentMapFor(id)[id]
	return !taken
}

func (s *Scene) nodeMapFor(id NodeID) map[NodeID]*Node {
	if id.Replicated() {
		return s.replicatedNodes
	}
	return s.localNodes
}

func (s *Scene) componentMapFor(id ComponentID) map[ComponentID]Component {
	if id.Replicated() {
		return s.replicatedComponents
	}
	return s.localComponents
}

// Bookkeeping, called from node tree mutations.

// nodeAdded registers a node entering the scene: leave the old scene,
// assign an id when missing, claim the map slot (evicting a clashing
// owner with a warning), index tags, then recurse into components and
// children so adopted subtrees register wholesale.
func (s *Scene) nodeAdded(node *Node) {
	if node == nil || node.scene == s {
		return
	}
	if old := node.scene; old != nil {
		old.nodeRemoved(node)
	}
	node.scene = s

	if node.id == 0 {
		node.id = s.freeNodeID(node.mode)
	}
	nodes := s.nodeMapFor(node.id)
	if existing, taken := nodes[node.id]; taken && existing != node {
		s.logger.Warn("overwriting node id", log.NodeID(uint32(node.id)))
		s.nodeRemoved(existing)
	}
	nodes[node.id] = node
	s.markNodeDirty(node.id)

	for _, tag := range node.tags {
		s.nodeTagAdded(node, tag)
	}
	s.publish(EventNodeAdded, NodeEvent{Scene: s, Node: node})

	for _, comp := range node.components {
		s.componentAdded(comp)
	}
	for _, child := range node.children {
		s.nodeAdded(child)
	}
}

// nodeRemoved unregisters a node and its whole subtree. The node keeps its
// tree links so the subtree can be re-attached; ids are surrendered and
// reassigned on the next registration.
func (s *Scene) nodeRemoved(node *Node) {
	if node == nil || node.scene != s {
		return
	}
	if node.id.Replicated() {
		s.markNodeDirty(node.id)
	}
	s.publish(EventNodeRemoved, NodeEvent{Scene: s, Node: node})

	delete(s.nodeMapFor(node.id), node.id)
	node.id = 0
	node.scene = nil

	for _, tag := range node.tags {
		s.nodeTagRemoved(node, tag)
	}
	for _, comp := range node.components {
		s.componentRemoved(comp)
	}
	for _, child := range node.children {
		s.nodeRemoved(child)
	}
}

// componentAdded registers a component, assigning an id when missing, and
// fires OnSceneSet once the component is resolvable through the scene.
func (s *Scene) componentAdded(comp Component) {
	if comp == nil {
		return
	}
	b := comp.base()
	if b.id == 0 {
		b.id = s.freeComponentID(comp.Mode())
	}
	comps := s.componentMapFor(b.id)
	if existing, taken := comps[b.id]; taken && existing != comp {
		s.logger.Warn("overwriting component id", log.ComponentID(uint32(b.id)))
		s.componentRemoved(existing)
	}
	comps[b.id] = comp
	s.markComponentDirty(b.id)

	s.publish(EventComponentAdded, ComponentEvent{Scene: s, Node: comp.Node(), Component: comp})
	comp.OnSceneSet(s)
}

// componentRemoved unregisters a component, surrenders its id and fires
// OnSceneSet(nil).
func (s *Scene) componentRemoved(comp Component) {
	if comp == nil {
		return
	}
	b := comp.base()
	if b.id != 0 {
		if b.id.Replicated() {
			s.markComponentDirty(b.id)
		}
		s.publish(EventComponentRemoved, ComponentEvent{Scene: s, Node: comp.Node(), Component: comp})
		delete(s.componentMapFor(b.id), b.id)
	}
	b.id = 0
	comp.OnSceneSet(nil)
}

func (s *Scene) nodeTagAdded(node *Node, tag string) {
	s.taggedNodes[tag] = append(s.taggedNodes[tag], node)
}

func (s *Scene) nodeTagRemoved(node *Node, tag string) {
	list := s.taggedNodes[tag]
	for i, cur := range list {
		if cur == node {
			s.taggedNodes[tag] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(s.taggedNodes[tag]) == 0 {
		delete(s.taggedNodes, tag)
	}
}

// publish sends a lifecycle event to the scene's own topic and to the
// default topic.
func (s *Scene) publish(eventType string, data any) {
	if s.events == nil {
		return
	}
	ev := bus.NewEvent(eventType, s.topic, data)
	_ = s.events.PublishToTopic(s.topic, ev)
	_ = s.events.Publish(ev)
}
