package variant

import (
	"errors"
	"testing"

	"github.com/zeusync/scenegraph/internal/core/math3d"
)

func TestGettersReturnZeroOnMismatch(t *testing.T) {
	v := FromInt(42)
	if v.Str() != "" {
		t.Errorf("Str on int = %q", v.Str())
	}
	if v.Bool() {
		t.Error("Bool on int = true")
	}
	if !v.Quaternion().Equals(math3d.QuaternionIdentity) {
		t.Errorf("Quaternion on int = %v", v.Quaternion())
	}
	if v.Int() != 42 {
		t.Errorf("Int = %d", v.Int())
	}
}

func TestStringRoundTrip(t *testing.T) {
	cases := []Variant{
		FromBool(true),
		FromInt(-17),
		FromInt64(1 << 40),
		FromFloat(1.5),
		FromDouble(0.25),
		FromVector2(math3d.Vector2{X: 1, Y: -2}),
		FromVector3(math3d.V3(0.5, 100, -3)),
		FromQuaternion(math3d.QuaternionFromAxisAngle(math3d.Up, math3d.DegToRad(30))),
		FromColor(math3d.RGB(0.25, 0.5, 1)),
		FromString("hello world"),
		FromStringVector([]string{"enemy", "boss"}),
		FromBuffer([]byte{0, 1, 255}),
		FromResourceRef(ResourceRef{Type: "Model", Name: "models/crate.mdl"}),
		FromResourceRefList(ResourceRefList{Type: "Material", Names: []string{"a.mat", "b.mat"}}),
		FromNodeRef(0x1000001),
		FromComponentRef(77),
	}
	for _, want := range cases {
		got, err := Parse(want.Kind(), want.String())
		if err != nil {
			t.Fatalf("%s: parse %q: %v", want.Kind(), want.String(), err)
		}
		if !got.Equals(want) {
			t.Errorf("%s: round trip %v != %v", want.Kind(), got, want)
		}
	}
}

func TestParseRejectsStructuralTypes(t *testing.T) {
	if _, err := Parse(TypeVariantList, "x"); !errors.Is(err, ErrNoStringForm) {
		t.Errorf("list parse err = %v", err)
	}
	if _, err := ParseNamed("Nope", "x"); !errors.Is(err, ErrUnknownType) {
		t.Errorf("unknown name err = %v", err)
	}
	if _, err := Parse(TypeVector3, "1 2"); !errors.Is(err, ErrBadValue) {
		t.Errorf("short vector err = %v", err)
	}
}

func TestTypeNameRoundTrip(t *testing.T) {
	for typ := TypeNone; typ < typeCount; typ++ {
		back, ok := TypeFromName(typ.String())
		if !ok || back != typ {
			t.Errorf("type %d name %q round trip = %v %v", typ, typ.String(), back, ok)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	inner := VariantMap{"pos": FromVector3(math3d.V3(1, 2, 3))}
	orig := FromList([]Variant{FromBuffer([]byte{9}), FromMap(inner)})

	cl := orig.Clone()
	cl.List()[0].Buffer()[0] = 42
	cl.List()[1].Map()["pos"] = FromInt(1)

	if orig.List()[0].Buffer()[0] != 9 {
		t.Error("clone shares buffer storage")
	}
	if orig.List()[1].Map()["pos"].Kind() != TypeVector3 {
		t.Error("clone shares map storage")
	}
	if !orig.Clone().Equals(orig) {
		t.Error("clone not equal to original")
	}
}

func TestMapEquality(t *testing.T) {
	a := FromMap(VariantMap{"hp": FromInt(100), "name": FromString("orc")})
	b := FromMap(VariantMap{"name": FromString("orc"), "hp": FromInt(100)})
	c := FromMap(VariantMap{"hp": FromInt(99), "name": FromString("orc")})

	if !a.Equals(b) {
		t.Error("order-independent maps not equal")
	}
	if a.Equals(c) {
		t.Error("different maps reported equal")
	}
}
