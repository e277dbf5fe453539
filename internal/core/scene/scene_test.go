package scene_test

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zeusync/scenegraph/internal/core/math3d"
	"github.com/zeusync/scenegraph/internal/core/registry"
	"github.com/zeusync/scenegraph/internal/core/scene"
	"github.com/zeusync/scenegraph/internal/core/variant"
)

// Mover is the registered test component: a float, a reference, a resource
// ref and a structural list, which together cover every codec path.
type Mover struct {
	scene.BaseComponent

	speed   float32
	target  uint32
	sound   variant.ResourceRef
	path    []variant.Variant
	applied atomic.Int32
	updated atomic.Int32
}

func (*Mover) TypeName() string { return "Mover" }

func (m *Mover) ApplyAttributes() { m.applied.Add(1) }

func (m *Mover) Update(float32) { m.updated.Add(1) }

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	require.NoError(t, scene.RegisterComponent(reg, func() scene.Component { return &Mover{} }))
	require.NoError(t, reg.RegisterAttributes("Mover",
		registry.Attr("Speed", variant.TypeFloat, variant.FromFloat(0), registry.ModeDefault,
			func(m *Mover) variant.Variant { return variant.FromFloat(m.speed) },
			func(m *Mover, v variant.Variant) { m.speed = v.Float() }),
		registry.Attr("Target", variant.TypeNodeRef, variant.FromNodeRef(0), registry.ModeDefault,
			func(m *Mover) variant.Variant { return variant.FromNodeRef(m.target) },
			func(m *Mover, v variant.Variant) { m.target = v.NodeRef() }),
		registry.Attr("Sound", variant.TypeResourceRef, variant.FromResourceRef(variant.ResourceRef{}), registry.ModeFile,
			func(m *Mover) variant.Variant { return variant.FromResourceRef(m.sound) },
			func(m *Mover, v variant.Variant) { m.sound = v.ResourceRef() }),
		registry.Attr("Path", variant.TypeVariantList, variant.FromList(nil), registry.ModeFile,
			func(m *Mover) variant.Variant { return variant.FromList(m.path) },
			func(m *Mover, v variant.Variant) { m.path = v.List() }),
	))
	return reg
}

func newTestScene(t *testing.T) *scene.Scene {
	t.Helper()
	return scene.NewScene(newTestRegistry(t), nil, nil, nil)
}

func TestCreateChildAssignsReplicatedRange(t *testing.T) {
	s := newTestScene(t)

	a := s.CreateChild("a", scene.Replicated)
	b := s.CreateChild("b", scene.Replicated)

	if a.ID() == b.ID() {
		t.Fatalf("duplicate node ids: %d", a.ID())
	}
	for _, n := range []*scene.Node{a, b} {
		if !n.ID().Replicated() {
			t.Errorf("node %q id %d outside replicated range", n.Name(), n.ID())
		}
	}
}

func TestCreateChildAssignsLocalRange(t *testing.T) {
	s := newTestScene(t)

	n := s.CreateChild("local", scene.Local)
	if n.ID().Replicated() {
		t.Fatalf("local node got replicated id %d", n.ID())
	}
	if uint32(n.ID()) < scene.FirstLocalID {
		t.Fatalf("local id %d below range start", n.ID())
	}
}

func TestRemovedIDIsReused(t *testing.T) {
	s := newTestScene(t)

	first := s.CreateChild("first", scene.Replicated)
	firstID := first.ID()
	s.CreateChild("second", scene.Replicated)

	first.Remove()
	if s.GetNode(firstID) != nil {
		t.Fatalf("removed node still resolvable")
	}

	// The allocator scans forward and wraps at the range end, so the freed
	// id becomes allocatable again; a node created with it explicitly takes
	// it straight away.
	reborn := s.CreateChildWithID("reborn", firstID)
	if reborn.ID() != firstID {
		t.Fatalf("expected freed id %d, got %d", firstID, reborn.ID())
	}

	seen := map[scene.NodeID]bool{reborn.ID(): true}
	for i := 0; i < 4; i++ {
		n := s.CreateChild("n", scene.Replicated)
		if seen[n.ID()] {
			t.Fatalf("id %d allocated twice among live nodes", n.ID())
		}
		seen[n.ID()] = true
	}
}

func TestComponentIDsUniquePerScene(t *testing.T) {
	s := newTestScene(t)
	seen := make(map[scene.ComponentID]bool)

	for i := 0; i < 3; i++ {
		n := s.CreateChild("n", scene.Replicated)
		for j := 0; j < 3; j++ {
			comp, err := n.CreateComponent("Mover", scene.Replicated)
			require.NoError(t, err)
			if seen[comp.ID()] {
				t.Fatalf("duplicate component id %d", comp.ID())
			}
			seen[comp.ID()] = true
			if !comp.ID().Replicated() {
				t.Errorf("replicated component got id %d", comp.ID())
			}
		}
	}
}

func TestCascadeDeletionClearsLookupMaps(t *testing.T) {
	s := newTestScene(t)

	parent := s.CreateChild("parent", scene.Replicated)
	child := parent.CreateChild("child", scene.Replicated)
	grand := child.CreateChild("grand", scene.Local)
	comp, err := grand.CreateComponent("Mover", scene.Local)
	require.NoError(t, err)

	nodeIDs := []scene.NodeID{parent.ID(), child.ID(), grand.ID()}
	compID := comp.ID()

	parent.Remove()

	for _, id := range nodeIDs {
		if s.GetNode(id) != nil {
			t.Errorf("node %d still resolvable after cascade removal", id)
		}
	}
	if s.GetComponent(compID) != nil {
		t.Errorf("component %d still resolvable after cascade removal", compID)
	}
	if got := s.NumNodes(); got != 1 {
		t.Errorf("expected only the root to remain, have %d nodes", got)
	}
}

func TestTagIndex(t *testing.T) {
	s := newTestScene(t)

	a := s.CreateChild("a", scene.Replicated)
	b := s.CreateChild("b", scene.Replicated)
	a.AddTag("enemy")
	b.AddTags("enemy", "boss")

	require.Len(t, s.NodesWithTag("enemy"), 2)
	require.Len(t, s.NodesWithTag("boss"), 1)

	b.RemoveTag("enemy")
	require.Len(t, s.NodesWithTag("enemy"), 1)

	a.Remove()
	require.Empty(t, s.NodesWithTag("enemy"))
}

func TestEnabledEffective(t *testing.T) {
	s := newTestScene(t)
	parent := s.CreateChild("parent", scene.Replicated)
	child := parent.CreateChild("child", scene.Replicated)

	require.True(t, child.EnabledEffective())
	parent.SetEnabled(false)
	require.True(t, child.Enabled())
	require.False(t, child.EnabledEffective())
	parent.SetEnabled(true)
	require.True(t, child.EnabledEffective())
}

func TestPrepareNetworkUpdateDeduplicates(t *testing.T) {
	s := newTestScene(t)
	n := s.CreateChild("n", scene.Replicated)
	comp, err := n.CreateComponent("Mover", scene.Replicated)
	require.NoError(t, err)

	// Drain the creation marks so only the explicit ones below remain.
	s.PrepareNetworkUpdate()

	// Repeated marks of the same ids collapse into one record each.
	n.SetPosition(math3d.Vector3{X: 1})
	n.SetPosition(math3d.Vector3{X: 2})
	comp.MarkNetworkUpdate()
	comp.MarkNetworkUpdate()

	dirty := s.PrepareNetworkUpdate()
	require.Equal(t, []scene.NodeID{n.ID()}, dirty.Nodes)
	require.Equal(t, []scene.ComponentID{comp.ID()}, dirty.Components)

	// The set is consumed by the prepare pass.
	require.True(t, s.PrepareNetworkUpdate().Empty())
}

func TestLocalNodesStayOutOfNetworkUpdates(t *testing.T) {
	s := newTestScene(t)
	s.PrepareNetworkUpdate() // drain the root's creation mark

	n := s.CreateChild("n", scene.Local)
	n.SetPosition(math3d.Vector3{X: 1})

	require.True(t, s.PrepareNetworkUpdate().Empty())
}

func TestThreadedUpdateDefersDirtyMarks(t *testing.T) {
	s := newTestScene(t)
	n := s.CreateChild("n", scene.Replicated)
	comp, err := n.CreateComponent("Mover", scene.Replicated)
	require.NoError(t, err)
	n.AddListener(comp)

	var notified atomic.Int32
	hooked := &hookComponent{onDirty: func() { notified.Add(1) }}
	n.AddComponent(hooked, scene.Local)
	n.AddListener(hooked)
	n.WorldTransform() // settle, clear dirty

	s.RunThreaded(func(c scene.Component) {
		s.DelayedMarkedDirty(c)
	})

	// Marks queued during the window are applied on EndThreadedUpdate.
	require.Positive(t, notified.Load())
}

func TestStructuralChangePanicsDuringThreadedUpdate(t *testing.T) {
	s := newTestScene(t)
	s.CreateChild("n", scene.Replicated)

	s.BeginThreadedUpdate()
	defer s.EndThreadedUpdate()

	require.Panics(t, func() {
		s.CreateChild("forbidden", scene.Replicated)
	})
}

func TestUpdateRunsEnabledUpdaters(t *testing.T) {
	s := newTestScene(t)
	n := s.CreateChild("n", scene.Replicated)
	comp, err := n.CreateComponent("Mover", scene.Replicated)
	require.NoError(t, err)
	mover := comp.(*Mover)

	s.Update(0.016)
	require.Equal(t, int32(1), mover.updated.Load())

	comp.SetEnabled(false)
	s.Update(0.016)
	require.Equal(t, int32(1), mover.updated.Load())
}

// hookComponent records OnMarkedDirty calls.
type hookComponent struct {
	scene.BaseComponent
	onDirty func()
}

func (*hookComponent) TypeName() string { return "Hook" }

func (h *hookComponent) OnMarkedDirty(*scene.Node) {
	if h.onDirty != nil {
		h.onDirty()
	}
}
