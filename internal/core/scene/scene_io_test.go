package scene_test

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/scenegraph/internal/core/math3d"
	"github.com/zeusync/scenegraph/internal/core/registry"
	"github.com/zeusync/scenegraph/internal/core/scene"
	"github.com/zeusync/scenegraph/internal/core/variant"
)

// buildSampleScene populates s with a small tree exercising transforms,
// tags, user variables and every Mover attribute.
func buildSampleScene(t *testing.T, s *scene.Scene) {
	t.Helper()

	root := s.CreateChild("hero", scene.Replicated)
	root.SetPosition(math3d.V3(1, 2, 3))
	root.SetRotation(math3d.QuaternionFromEuler(0, math3d.DegToRad(45), 0))
	root.AddTags("player", "persistent")
	root.SetVar("health", variant.FromInt(100))

	comp, err := root.CreateComponent("Mover", scene.Replicated)
	require.NoError(t, err)
	mover := comp.(*Mover)
	mover.speed = 0.8
	mover.sound = variant.ResourceRef{Type: "BinaryFile", Name: "sounds/step.bin"}
	mover.path = []variant.Variant{
		variant.FromVector2(math3d.V2(0, 0)),
		variant.FromVector2(math3d.V2(4, 2)),
	}

	shadow := root.CreateChild("shadow", scene.Local)
	shadow.SetEnabled(false)

	follower := s.CreateChild("follower", scene.Replicated)
	fcomp, err := follower.CreateComponent("Mover", scene.Replicated)
	require.NoError(t, err)
	fcomp.(*Mover).target = uint32(root.ID())
}

// requireSameTree asserts structural equality: ids, names, transforms,
// component types and Mover attribute values.
func requireSameTree(t *testing.T, want, got *scene.Node) {
	t.Helper()
	require.Equal(t, want.Name(), got.Name())
	require.Equal(t, want.ID(), got.ID())
	require.True(t, want.Position().Equals(got.Position()), "position of %q", want.Name())
	require.True(t, want.Rotation().Equals(got.Rotation()), "rotation of %q", want.Name())
	require.Equal(t, want.Enabled(), got.Enabled())
	require.Equal(t, want.Tags(), got.Tags())

	require.Equal(t, len(want.Components()), len(got.Components()))
	for i, wc := range want.Components() {
		gc := got.Components()[i]
		require.Equal(t, wc.TypeName(), gc.TypeName())
		require.Equal(t, wc.ID(), gc.ID())
		if wm, ok := wc.(*Mover); ok {
			gm := gc.(*Mover)
			require.InDelta(t, wm.speed, gm.speed, 1e-6)
			require.Equal(t, wm.target, gm.target)
			require.Equal(t, wm.sound, gm.sound)
			require.Equal(t, len(wm.path), len(gm.path))
		}
	}

	require.Equal(t, want.NumChildren(), got.NumChildren())
	for i := range want.Children() {
		requireSameTree(t, want.ChildAt(i), got.ChildAt(i))
	}
}

func TestBinaryRoundTripIsByteIdentical(t *testing.T) {
	s1 := newTestScene(t)
	buildSampleScene(t, s1)

	var first bytes.Buffer
	require.NoError(t, s1.Save(&first))

	s2 := newTestScene(t)
	require.NoError(t, s2.Load(first.Bytes()))
	requireSameTree(t, &s1.Node, &s2.Node)

	var second bytes.Buffer
	require.NoError(t, s2.Save(&second))
	require.Equal(t, first.Bytes(), second.Bytes())
	require.NotZero(t, s2.Checksum())
}

func TestXMLRoundTrip(t *testing.T) {
	s1 := newTestScene(t)
	buildSampleScene(t, s1)

	var buf bytes.Buffer
	require.NoError(t, s1.SaveXML(&buf))
	require.True(t, strings.HasPrefix(strings.TrimSpace(buf.String()), "<scene"))

	s2 := newTestScene(t)
	require.NoError(t, s2.LoadXML(buf.Bytes()))
	requireSameTree(t, &s1.Node, &s2.Node)
}

func TestJSONRoundTrip(t *testing.T) {
	s1 := newTestScene(t)
	buildSampleScene(t, s1)

	var buf bytes.Buffer
	require.NoError(t, s1.SaveJSON(&buf))

	s2 := newTestScene(t)
	require.NoError(t, s2.LoadJSON(buf.Bytes()))
	requireSameTree(t, &s1.Node, &s2.Node)
}

func TestAttributeValuesSurviveBinary(t *testing.T) {
	s1 := newTestScene(t)
	n := s1.CreateChild("n", scene.Replicated)
	comp, err := n.CreateComponent("Mover", scene.Replicated)
	require.NoError(t, err)
	mover := comp.(*Mover)
	mover.speed = 0.8
	mover.path = []variant.Variant{
		variant.FromVector2(math3d.V2(1, 1)),
		variant.FromVector2(math3d.V2(2, 4)),
		variant.FromVector2(math3d.V2(3, 9)),
	}

	var buf bytes.Buffer
	require.NoError(t, s1.Save(&buf))

	s2 := newTestScene(t)
	require.NoError(t, s2.Load(buf.Bytes()))

	loaded := s2.Child("n").Component("Mover").(*Mover)
	require.InDelta(t, 0.8, loaded.speed, 1e-6)
	require.Len(t, loaded.path, 3)
	for i, v := range mover.path {
		require.True(t, v.Equals(loaded.path[i]), "path[%d]", i)
	}
	// ApplyAttributes ran once after the load settled.
	require.Equal(t, int32(1), loaded.applied.Load())
}

func TestForwardReferenceResolves(t *testing.T) {
	// The follower's Target points at a node that appears later in the
	// stream than the follower itself.
	s1 := newTestScene(t)
	follower := s1.CreateChild("follower", scene.Replicated)
	comp, err := follower.CreateComponent("Mover", scene.Replicated)
	require.NoError(t, err)
	hero := s1.CreateChild("hero", scene.Replicated)
	comp.(*Mover).target = uint32(hero.ID())

	var buf bytes.Buffer
	require.NoError(t, s1.Save(&buf))

	s2 := newTestScene(t)
	require.NoError(t, s2.Load(buf.Bytes()))

	loadedHero := s2.Child("hero")
	loadedFollower := s2.Child("follower")
	require.NotNil(t, loadedHero)
	require.Equal(t, uint32(loadedHero.ID()), loadedFollower.Component("Mover").(*Mover).target)
}

func TestDanglingReferenceResolvesToNull(t *testing.T) {
	s1 := newTestScene(t)
	n := s1.CreateChild("n", scene.Replicated)
	comp, err := n.CreateComponent("Mover", scene.Replicated)
	require.NoError(t, err)
	comp.(*Mover).target = 0xBEEF // never part of the scene

	var buf bytes.Buffer
	require.NoError(t, s1.Save(&buf))

	s2 := newTestScene(t)
	require.NoError(t, s2.Load(buf.Bytes()))
	require.Zero(t, s2.Child("n").Component("Mover").(*Mover).target)
}

func TestUnknownComponentRoundTripsBinary(t *testing.T) {
	s1 := newTestScene(t)
	buildSampleScene(t, s1)

	var buf bytes.Buffer
	require.NoError(t, s1.Save(&buf))

	// A scene whose registry lacks Mover still loads, keeping the raw
	// attribute bytes, and re-saves them unchanged.
	bare := registry.New()
	s2 := scene.NewScene(bare, nil, nil, nil)
	require.NoError(t, s2.Load(buf.Bytes()))

	unknown := s2.Child("hero").Component("Mover")
	require.NotNil(t, unknown)
	require.IsType(t, &scene.UnknownComponent{}, unknown)

	var resaved bytes.Buffer
	require.NoError(t, s2.Save(&resaved))
	require.Equal(t, buf.Bytes(), resaved.Bytes())
}

func TestUnknownComponentRoundTripsXML(t *testing.T) {
	s1 := newTestScene(t)
	n := s1.CreateChild("n", scene.Replicated)
	comp, err := n.CreateComponent("Mover", scene.Replicated)
	require.NoError(t, err)
	comp.(*Mover).speed = 1.5

	var buf bytes.Buffer
	require.NoError(t, s1.SaveXML(&buf))

	bare := registry.New()
	s2 := scene.NewScene(bare, nil, nil, nil)
	require.NoError(t, s2.LoadXML(buf.Bytes()))

	var resaved bytes.Buffer
	require.NoError(t, s2.SaveXML(&resaved))

	// Reload the re-saved document with the full registry: the preserved
	// name/value pairs must decode to the original attribute values.
	s3 := newTestScene(t)
	require.NoError(t, s3.LoadXML(resaved.Bytes()))
	require.InDelta(t, 1.5, s3.Child("n").Component("Mover").(*Mover).speed, 1e-6)
}

func TestLoadRejectsBadSignature(t *testing.T) {
	s := newTestScene(t)
	buildSampleScene(t, s)

	err := s.Load([]byte("BOGUS data that is long enough"))
	require.ErrorIs(t, err, scene.ErrBadMagic)
	// The failed load happened before any clearing: existing content stays.
	require.NotNil(t, s.Child("hero"))
}

func TestLoadRejectsCorruptPayload(t *testing.T) {
	s1 := newTestScene(t)
	buildSampleScene(t, s1)
	var buf bytes.Buffer
	require.NoError(t, s1.Save(&buf))

	data := buf.Bytes()
	data[len(data)-3] ^= 0xFF
	s2 := newTestScene(t)
	require.ErrorIs(t, s2.Load(data), scene.ErrChecksum)
}

func TestTruncatedPayloadClearsScene(t *testing.T) {
	s1 := newTestScene(t)
	buildSampleScene(t, s1)
	var buf bytes.Buffer
	require.NoError(t, s1.Save(&buf))

	// Recompute a valid checksum over a truncated payload so the failure
	// happens mid-parse, not at the integrity check.
	payload := buf.Bytes()[12:]
	truncated := payload[:len(payload)-10]
	var rebuilt bytes.Buffer
	rebuilt.WriteString("USCN")
	sum := make([]byte, 8)
	binary.LittleEndian.PutUint64(sum, xxhash.Sum64(truncated))
	rebuilt.Write(sum)
	rebuilt.Write(truncated)

	s2 := newTestScene(t)
	buildSampleScene(t, s2)
	require.Error(t, s2.Load(rebuilt.Bytes()))
	require.Equal(t, 1, s2.NumNodes(), "failed sync load must leave a cleared scene")
}

func TestOversizedComponentBlockFailsCleanly(t *testing.T) {
	s1 := newTestScene(t)
	var buf bytes.Buffer
	require.NoError(t, s1.Save(&buf))

	// Rewrite the root's empty component and child counts into one
	// component whose declared block length is far past the end of the
	// payload and turns negative when narrowed to int. The checksum is
	// recomputed so the failure happens mid-parse, not at the integrity
	// check.
	payload := buf.Bytes()[12:]
	crafted := append([]byte{}, payload[:len(payload)-2]...)
	crafted = append(crafted, 1)
	crafted = binary.AppendUvarint(crafted, 1<<63)
	crafted = append(crafted, 0xAA)

	var rebuilt bytes.Buffer
	rebuilt.WriteString("USCN")
	sum := make([]byte, 8)
	binary.LittleEndian.PutUint64(sum, xxhash.Sum64(crafted))
	rebuilt.Write(sum)
	rebuilt.Write(crafted)

	s2 := newTestScene(t)
	var err error
	require.NotPanics(t, func() { err = s2.Load(rebuilt.Bytes()) })
	require.Error(t, err)
	require.Equal(t, 1, s2.NumNodes(), "failed sync load must leave a cleared scene")
}

func TestInstantiatePlacesSubtree(t *testing.T) {
	s := newTestScene(t)
	prefabRoot := s.CreateChild("prefab", scene.Replicated)
	prefabRoot.CreateChild("part", scene.Replicated)
	_, err := prefabRoot.CreateComponent("Mover", scene.Replicated)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, prefabRoot.Save(&buf))

	at := math3d.V3(10, 0, 0)
	inst, err := s.Instantiate(buf.Bytes(), at, math3d.QuaternionIdentity, scene.Replicated)
	require.NoError(t, err)

	require.NotEqual(t, prefabRoot.ID(), inst.ID())
	require.True(t, inst.Position().Equals(at))
	require.Equal(t, "prefab", inst.Name())
	require.Equal(t, 1, inst.NumChildren())
	require.NotNil(t, inst.Component("Mover"))
}

func TestSaveLoadFile(t *testing.T) {
	dir := t.TempDir()
	s1 := newTestScene(t)
	buildSampleScene(t, s1)

	for _, name := range []string{"scene.bin", "scene.xml", "scene.json"} {
		path := dir + "/" + name
		require.NoError(t, s1.SaveFile(path))

		s2 := newTestScene(t)
		require.NoError(t, s2.LoadFile(path))
		requireSameTree(t, &s1.Node, &s2.Node)
		require.Equal(t, path, s2.FileName())
	}
}
