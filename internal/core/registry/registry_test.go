package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/scenegraph/internal/core/variant"
)

type testLight struct {
	Range float32
	On    bool
}

func (*testLight) TypeName() string { return "TestLight" }

type testSpotLight struct {
	testLight
	Angle float32
}

func (*testSpotLight) TypeName() string { return "TestSpotLight" }

func lightAttrs() []AttributeInfo {
	return []AttributeInfo{
		Attr("Range", variant.TypeFloat, variant.FromFloat(10), ModeDefault,
			func(l *testLight) variant.Variant { return variant.FromFloat(l.Range) },
			func(l *testLight, v variant.Variant) { l.Range = v.Float() }),
		Attr("On", variant.TypeBool, variant.FromBool(true), ModeDefault,
			func(l *testLight) variant.Variant { return variant.FromBool(l.On) },
			func(l *testLight, v variant.Variant) { l.On = v.Bool() }),
	}
}

func TestRegisterAndCreate(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(func() Typed { return &testLight{} }))
	require.NoError(t, r.RegisterAttributes("TestLight", lightAttrs()...))

	obj, err := r.Create("TestLight")
	require.NoError(t, err)
	assert.Equal(t, "TestLight", obj.TypeName())

	byHash, err := r.CreateByHash(TypeHash("TestLight"))
	require.NoError(t, err)
	assert.IsType(t, &testLight{}, byHash)

	name, ok := r.NameByHash(TypeHash("TestLight"))
	require.True(t, ok)
	assert.Equal(t, "TestLight", name)

	_, err = r.Create("Missing")
	assert.ErrorIs(t, err, ErrTypeNotRegistered)
}

func TestDuplicateRegistration(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(func() Typed { return &testLight{} }))
	assert.ErrorIs(t, r.Register(func() Typed { return &testLight{} }), ErrDuplicateType)
}

func TestAccessorsRoundTrip(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(func() Typed { return &testLight{} }))
	require.NoError(t, r.RegisterAttributes("TestLight", lightAttrs()...))

	light := &testLight{}
	attrs := r.Attributes("TestLight")
	require.Len(t, attrs, 2)

	attrs[0].Set(light, variant.FromFloat(25))
	assert.InDelta(t, 25, light.Range, 1e-6)
	assert.True(t, attrs[0].Get(light).Equals(variant.FromFloat(25)))

	// A wrong object type reads as empty instead of panicking.
	assert.True(t, attrs[0].Get(&testSpotLight{}).IsEmpty())
}

func TestCopyBaseAttributes(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(func() Typed { return &testLight{} }))
	require.NoError(t, r.Register(func() Typed { return &testSpotLight{} }))
	require.NoError(t, r.RegisterAttributes("TestLight", lightAttrs()...))
	require.NoError(t, r.RegisterAttributes("TestSpotLight",
		Attr("Angle", variant.TypeFloat, variant.FromFloat(45), ModeDefault,
			func(s *testSpotLight) variant.Variant { return variant.FromFloat(s.Angle) },
			func(s *testSpotLight, v variant.Variant) { s.Angle = v.Float() })))
	require.NoError(t, r.CopyBaseAttributes("TestSpotLight", "TestLight"))

	attrs := r.Attributes("TestSpotLight")
	require.Len(t, attrs, 3)
	assert.Equal(t, "Range", attrs[0].Name)
	assert.Equal(t, "On", attrs[1].Name)
	assert.Equal(t, "Angle", attrs[2].Name)
}

func TestAttributeTableEdits(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(func() Typed { return &testLight{} }))
	require.NoError(t, r.RegisterAttributes("TestLight", lightAttrs()...))

	require.NoError(t, r.UpdateAttributeDefault("TestLight", "Range", variant.FromFloat(99)))
	attr, err := r.Attribute("TestLight", "Range")
	require.NoError(t, err)
	assert.True(t, attr.Default.Equals(variant.FromFloat(99)))

	require.NoError(t, r.RemoveAttribute("TestLight", "On"))
	assert.Len(t, r.Attributes("TestLight"), 1)
	assert.ErrorIs(t, r.RemoveAttribute("TestLight", "On"), ErrAttributeUnknown)
}

func TestModeFlags(t *testing.T) {
	assert.True(t, ModeDefault.Has(ModeFile))
	assert.True(t, ModeDefault.Has(ModeNet))
	assert.False(t, ModeDefault.Has(ModeNoEdit))
	assert.False(t, ModeFile.Has(ModeDefault))
}
