package variant

import (
	"github.com/zeusync/scenegraph/internal/core/math3d"
)

// Variant is a typed value container for attributes. The zero Variant has
// TypeNone. Getters return the type's zero value when the stored type does
// not match, so callers reading a missing map key get usable defaults.
type Variant struct {
	typ  Type
	b    bool
	i    int64
	f    [4]float32
	d    float64
	s    string
	raw  []byte
	ref  ResourceRef
	refs ResourceRefList
	strs []string
	list []Variant
	vmap VariantMap
}

// VariantMap holds named child values, keyed by attribute or user key.
type VariantMap map[string]Variant

// None is the empty variant.
var None = Variant{}

func FromBool(v bool) Variant   { return Variant{typ: TypeBool, b: v} }
func FromInt(v int32) Variant   { return Variant{typ: TypeInt, i: int64(v)} }
func FromInt64(v int64) Variant { return Variant{typ: TypeInt64, i: v} }

func FromFloat(v float32) Variant {
	return Variant{typ: TypeFloat, f: [4]float32{v}}
}

func FromDouble(v float64) Variant { return Variant{typ: TypeDouble, d: v} }

func FromVector2(v math3d.Vector2) Variant {
	return Variant{typ: TypeVector2, f: [4]float32{v.X, v.Y}}
}

func FromVector3(v math3d.Vector3) Variant {
	return Variant{typ: TypeVector3, f: [4]float32{v.X, v.Y, v.Z}}
}

func FromQuaternion(v math3d.Quaternion) Variant {
	return Variant{typ: TypeQuaternion, f: [4]float32{v.W, v.X, v.Y, v.Z}}
}

func FromColor(v math3d.Color) Variant {
	return Variant{typ: TypeColor, f: [4]float32{v.R, v.G, v.B, v.A}}
}

func FromString(v string) Variant  { return Variant{typ: TypeString, s: v} }
func FromBuffer(v []byte) Variant  { return Variant{typ: TypeBuffer, raw: v} }

func FromStringVector(v []string) Variant {
	return Variant{typ: TypeStringVector, strs: v}
}

func FromResourceRef(v ResourceRef) Variant {
	return Variant{typ: TypeResourceRef, ref: v}
}

func FromResourceRefList(v ResourceRefList) Variant {
	return Variant{typ: TypeResourceRefList, refs: v}
}

func FromList(v []Variant) Variant   { return Variant{typ: TypeVariantList, list: v} }
func FromMap(v VariantMap) Variant   { return Variant{typ: TypeVariantMap, vmap: v} }

// FromNodeRef wraps a node ID that cross-references another node. The
// resolver rewrites these after load, so they must stay distinguishable
// from plain ints.
func FromNodeRef(id uint32) Variant { return Variant{typ: TypeNodeRef, i: int64(id)} }

// FromComponentRef wraps a component ID cross-reference.
func FromComponentRef(id uint32) Variant { return Variant{typ: TypeComponentRef, i: int64(id)} }

// Kind returns the stored type.
func (v Variant) Kind() Type { return v.typ }

// IsEmpty reports whether the variant holds no value.
func (v Variant) IsEmpty() bool { return v.typ == TypeNone }

func (v Variant) Bool() bool {
	if v.typ != TypeBool {
		return false
	}
	return v.b
}

func (v Variant) Int() int32 {
	if v.typ != TypeInt {
		return 0
	}
	return int32(v.i)
}

func (v Variant) Int64() int64 {
	if v.typ != TypeInt64 {
		return 0
	}
	return v.i
}

func (v Variant) Float() float32 {
	if v.typ != TypeFloat {
		return 0
	}
	return v.f[0]
}

func (v Variant) Double() float64 {
	if v.typ != TypeDouble {
		return 0
	}
	return v.d
}

func (v Variant) Vector2() math3d.Vector2 {
	if v.typ != TypeVector2 {
		return math3d.Vector2{}
	}
	return math3d.Vector2{X: v.f[0], Y: v.f[1]}
}

func (v Variant) Vector3() math3d.Vector3 {
	if v.typ != TypeVector3 {
		return math3d.Vector3{}
	}
	return math3d.Vector3{X: v.f[0], Y: v.f[1], Z: v.f[2]}
}

func (v Variant) Quaternion() math3d.Quaternion {
	if v.typ != TypeQuaternion {
		return math3d.QuaternionIdentity
	}
	return math3d.Quaternion{W: v.f[0], X: v.f[1], Y: v.f[2], Z: v.f[3]}
}

func (v Variant) Color() math3d.Color {
	if v.typ != TypeColor {
		return math3d.Color{}
	}
	return math3d.Color{R: v.f[0], G: v.f[1], B: v.f[2], A: v.f[3]}
}

func (v Variant) Str() string {
	if v.typ != TypeString {
		return ""
	}
	return v.s
}

func (v Variant) StringVector() []string {
	if v.typ != TypeStringVector {
		return nil
	}
	return v.strs
}

func (v Variant) Buffer() []byte {
	if v.typ != TypeBuffer {
		return nil
	}
	return v.raw
}

func (v Variant) ResourceRef() ResourceRef {
	if v.typ != TypeResourceRef {
		return ResourceRef{}
	}
	return v.ref
}

func (v Variant) ResourceRefList() ResourceRefList {
	if v.typ != TypeResourceRefList {
		return ResourceRefList{}
	}
	return v.refs
}

func (v Variant) List() []Variant {
	if v.typ != TypeVariantList {
		return nil
	}
	return v.list
}

func (v Variant) Map() VariantMap {
	if v.typ != TypeVariantMap {
		return nil
	}
	return v.vmap
}

// NodeRef returns the referenced node ID, or 0 for a null reference.
func (v Variant) NodeRef() uint32 {
	if v.typ != TypeNodeRef {
		return 0
	}
	return uint32(v.i)
}

// ComponentRef returns the referenced component ID, or 0 for a null reference.
func (v Variant) ComponentRef() uint32 {
	if v.typ != TypeComponentRef {
		return 0
	}
	return uint32(v.i)
}

// Equals reports deep equality of type and value.
func (v Variant) Equals(other Variant) bool {
	if v.typ != other.typ {
		return false
	}
	switch v.typ {
	case TypeNone:
		return true
	case TypeBool:
		return v.b == other.b
	case TypeInt, TypeInt64, TypeNodeRef, TypeComponentRef:
		return v.i == other.i
	case TypeFloat, TypeVector2, TypeVector3, TypeQuaternion, TypeColor:
		return v.f == other.f
	case TypeDouble:
		return v.d == other.d
	case TypeString:
		return v.s == other.s
	case TypeBuffer:
		if len(v.raw) != len(other.raw) {
			return false
		}
		for i := range v.raw {
			if v.raw[i] != other.raw[i] {
				return false
			}
		}
		return true
	case TypeResourceRef:
		return v.ref == other.ref
	case TypeResourceRefList:
		return v.refs.Equals(other.refs)
	case TypeStringVector:
		if len(v.strs) != len(other.strs) {
			return false
		}
		for i := range v.strs {
			if v.strs[i] != other.strs[i] {
				return false
			}
		}
		return true
	case TypeVariantList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equals(other.list[i]) {
				return false
			}
		}
		return true
	case TypeVariantMap:
		if len(v.vmap) != len(other.vmap) {
			return false
		}
		for k, val := range v.vmap {
			ov, ok := other.vmap[k]
			if !ok || !val.Equals(ov) {
				return false
			}
		}
		return true
	}
	return false
}

// Clone returns a deep copy. Buffers, lists and maps get their own storage
// so mutating the copy never leaks into the original.
func (v Variant) Clone() Variant {
	out := v
	switch v.typ {
	case TypeBuffer:
		if v.raw != nil {
			out.raw = make([]byte, len(v.raw))
			copy(out.raw, v.raw)
		}
	case TypeResourceRefList:
		out.refs = v.refs.Clone()
	case TypeStringVector:
		if v.strs != nil {
			out.strs = make([]string, len(v.strs))
			copy(out.strs, v.strs)
		}
	case TypeVariantList:
		if v.list != nil {
			out.list = make([]Variant, len(v.list))
			for i := range v.list {
				out.list[i] = v.list[i].Clone()
			}
		}
	case TypeVariantMap:
		out.vmap = v.vmap.Clone()
	}
	return out
}

// Clone returns a deep copy of the map.
func (m VariantMap) Clone() VariantMap {
	if m == nil {
		return nil
	}
	out := make(VariantMap, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return out
}
