package serialize

import (
	"fmt"
	"sort"

	"github.com/zeusync/scenegraph/internal/core/math3d"
	"github.com/zeusync/scenegraph/internal/core/variant"
	"github.com/zeusync/scenegraph/pkg/encoding"
)

// WriteVariant appends a self-describing value: one type byte, then the
// payload. Used where the reader cannot know the type up front, such as
// variant map entries.
func WriteVariant(w *encoding.Writer, v variant.Variant) {
	w.WriteU8(uint8(v.Kind()))
	WriteVariantData(w, v)
}

// WriteVariantData appends only the payload. Attribute tables define the
// type positionally, so attribute values omit the tag byte.
func WriteVariantData(w *encoding.Writer, v variant.Variant) {
	switch v.Kind() {
	case variant.TypeNone:
	case variant.TypeBool:
		w.WriteBool(v.Bool())
	case variant.TypeInt:
		w.WriteU32(uint32(v.Int()))
	case variant.TypeInt64:
		w.WriteU64(uint64(v.Int64()))
	case variant.TypeFloat:
		w.WriteF32(v.Float())
	case variant.TypeDouble:
		w.WriteF64(v.Double())
	case variant.TypeVector2:
		vec := v.Vector2()
		w.WriteF32(vec.X)
		w.WriteF32(vec.Y)
	case variant.TypeVector3:
		vec := v.Vector3()
		w.WriteF32(vec.X)
		w.WriteF32(vec.Y)
		w.WriteF32(vec.Z)
	case variant.TypeQuaternion:
		q := v.Quaternion()
		w.WriteF32(q.W)
		w.WriteF32(q.X)
		w.WriteF32(q.Y)
		w.WriteF32(q.Z)
	case variant.TypeColor:
		c := v.Color()
		w.WriteF32(c.R)
		w.WriteF32(c.G)
		w.WriteF32(c.B)
		w.WriteF32(c.A)
	case variant.TypeString:
		w.WriteString(v.Str())
	case variant.TypeStringVector:
		strs := v.StringVector()
		w.WriteVLE(uint64(len(strs)))
		for _, s := range strs {
			w.WriteString(s)
		}
	case variant.TypeBuffer:
		w.WriteBlob(v.Buffer())
	case variant.TypeResourceRef:
		ref := v.ResourceRef()
		w.WriteString(ref.Type)
		w.WriteString(ref.Name)
	case variant.TypeResourceRefList:
		list := v.ResourceRefList()
		w.WriteString(list.Type)
		w.WriteVLE(uint64(len(list.Names)))
		for _, name := range list.Names {
			w.WriteString(name)
		}
	case variant.TypeVariantList:
		items := v.List()
		w.WriteVLE(uint64(len(items)))
		for _, item := range items {
			WriteVariant(w, item)
		}
	case variant.TypeVariantMap:
		// Sorted keys keep repeated saves byte-identical.
		m := v.Map()
		w.WriteVLE(uint64(len(m)))
		for _, key := range SortedKeys(m) {
			w.WriteString(key)
			WriteVariant(w, m[key])
		}
	case variant.TypeNodeRef:
		w.WriteU32(v.NodeRef())
	case variant.TypeComponentRef:
		w.WriteU32(v.ComponentRef())
	}
}

// SortedKeys returns a variant map's keys in lexical order, for codecs that
// need a deterministic entry order.
func SortedKeys(m variant.VariantMap) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// ReadVariant consumes a self-describing value.
func ReadVariant(r *encoding.Reader) (variant.Variant, error) {
	tag := variant.Type(r.ReadU8())
	if err := r.Err(); err != nil {
		return variant.None, err
	}
	if !tag.Valid() {
		return variant.None, fmt.Errorf("%w: %d", ErrBadVariantType, tag)
	}
	return ReadVariantData(r, tag)
}

// ReadVariantData consumes the payload of a value whose type is known.
func ReadVariantData(r *encoding.Reader, t variant.Type) (variant.Variant, error) {
	var v variant.Variant
	switch t {
	case variant.TypeNone:
		v = variant.None
	case variant.TypeBool:
		v = variant.FromBool(r.ReadBool())
	case variant.TypeInt:
		v = variant.FromInt(int32(r.ReadU32()))
	case variant.TypeInt64:
		v = variant.FromInt64(int64(r.ReadU64()))
	case variant.TypeFloat:
		v = variant.FromFloat(r.ReadF32())
	case variant.TypeDouble:
		v = variant.FromDouble(r.ReadF64())
	case variant.TypeVector2:
		v = variant.FromVector2(math3d.Vector2{X: r.ReadF32(), Y: r.ReadF32()})
	case variant.TypeVector3:
		v = variant.FromVector3(math3d.Vector3{X: r.ReadF32(), Y: r.ReadF32(), Z: r.ReadF32()})
	case variant.TypeQuaternion:
		v = variant.FromQuaternion(math3d.Quaternion{W: r.ReadF32(), X: r.ReadF32(), Y: r.ReadF32(), Z: r.ReadF32()})
	case variant.TypeColor:
		v = variant.FromColor(math3d.Color{R: r.ReadF32(), G: r.ReadF32(), B: r.ReadF32(), A: r.ReadF32()})
	case variant.TypeString:
		v = variant.FromString(r.ReadString())
	case variant.TypeStringVector:
		count := r.ReadVLE()
		var strs []string
		if count > 0 {
			strs = make([]string, 0, count)
		}
		for i := uint64(0); i < count && r.Err() == nil; i++ {
			strs = append(strs, r.ReadString())
		}
		v = variant.FromStringVector(strs)
	case variant.TypeBuffer:
		v = variant.FromBuffer(r.ReadBlob())
	case variant.TypeResourceRef:
		v = variant.FromResourceRef(variant.ResourceRef{
			Type: r.ReadString(),
			Name: r.ReadString(),
		})
	case variant.TypeResourceRefList:
		list := variant.ResourceRefList{Type: r.ReadString()}
		count := r.ReadVLE()
		for i := uint64(0); i < count && r.Err() == nil; i++ {
			list.Names = append(list.Names, r.ReadString())
		}
		v = variant.FromResourceRefList(list)
	case variant.TypeVariantList:
		count := r.ReadVLE()
		items := make([]variant.Variant, 0, count)
		for i := uint64(0); i < count; i++ {
			item, err := ReadVariant(r)
			if err != nil {
				return variant.None, err
			}
			items = append(items, item)
		}
		v = variant.FromList(items)
	case variant.TypeVariantMap:
		count := r.ReadVLE()
		m := make(variant.VariantMap, count)
		for i := uint64(0); i < count; i++ {
			key := r.ReadString()
			item, err := ReadVariant(r)
			if err != nil {
				return variant.None, err
			}
			m[key] = item
		}
		v = variant.FromMap(m)
	case variant.TypeNodeRef:
		v = variant.FromNodeRef(r.ReadU32())
	case variant.TypeComponentRef:
		v = variant.FromComponentRef(r.ReadU32())
	default:
		return variant.None, fmt.Errorf("%w: %d", ErrBadVariantType, t)
	}
	if err := r.Err(); err != nil {
		return variant.None, err
	}
	return v, nil
}
