package variant

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/zeusync/scenegraph/internal/core/math3d"
)

var (
	ErrNoStringForm = errors.New("variant type has no string form")
	ErrUnknownType  = errors.New("unknown variant type")
	ErrBadValue     = errors.New("malformed variant value")
)

// String renders the value in its scene-file text form. Lists and maps are
// structural and render as a placeholder; the text codecs nest them instead.
func (v Variant) String() string {
	switch v.typ {
	case TypeNone:
		return ""
	case TypeBool:
		return strconv.FormatBool(v.b)
	case TypeInt, TypeInt64:
		return strconv.FormatInt(v.i, 10)
	case TypeFloat:
		return strconv.FormatFloat(float64(v.f[0]), 'g', -1, 32)
	case TypeDouble:
		return strconv.FormatFloat(v.d, 'g', -1, 64)
	case TypeVector2:
		return v.Vector2().String()
	case TypeVector3:
		return v.Vector3().String()
	case TypeQuaternion:
		return v.Quaternion().String()
	case TypeColor:
		return v.Color().String()
	case TypeString:
		return v.s
	case TypeStringVector:
		return strings.Join(v.strs, ";")
	case TypeBuffer:
		return bufferToString(v.raw)
	case TypeResourceRef:
		return v.ref.String()
	case TypeResourceRefList:
		return v.refs.String()
	case TypeNodeRef, TypeComponentRef:
		return strconv.FormatInt(v.i, 10)
	case TypeVariantList:
		return fmt.Sprintf("VariantList(%d)", len(v.list))
	case TypeVariantMap:
		return fmt.Sprintf("VariantMap(%d)", len(v.vmap))
	}
	return ""
}

// Parse builds a variant of type t from its scene-file text form.
func Parse(t Type, s string) (Variant, error) {
	switch t {
	case TypeNone:
		return None, nil
	case TypeBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return None, fmt.Errorf("%w: bool %q", ErrBadValue, s)
		}
		return FromBool(b), nil
	case TypeInt:
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return None, fmt.Errorf("%w: int %q", ErrBadValue, s)
		}
		return FromInt(int32(n)), nil
	case TypeInt64:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return None, fmt.Errorf("%w: int64 %q", ErrBadValue, s)
		}
		return FromInt64(n), nil
	case TypeFloat:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return None, fmt.Errorf("%w: float %q", ErrBadValue, s)
		}
		return FromFloat(float32(f)), nil
	case TypeDouble:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return None, fmt.Errorf("%w: double %q", ErrBadValue, s)
		}
		return FromDouble(f), nil
	case TypeVector2:
		f, err := parseFloats(s, 2)
		if err != nil {
			return None, err
		}
		return FromVector2(math3d.Vector2{X: f[0], Y: f[1]}), nil
	case TypeVector3:
		f, err := parseFloats(s, 3)
		if err != nil {
			return None, err
		}
		return FromVector3(math3d.Vector3{X: f[0], Y: f[1], Z: f[2]}), nil
	case TypeQuaternion:
		f, err := parseFloats(s, 4)
		if err != nil {
			return None, err
		}
		return FromQuaternion(math3d.Quaternion{W: f[0], X: f[1], Y: f[2], Z: f[3]}), nil
	case TypeColor:
		f, err := parseFloats(s, 4)
		if err != nil {
			return None, err
		}
		return FromColor(math3d.Color{R: f[0], G: f[1], B: f[2], A: f[3]}), nil
	case TypeString:
		return FromString(s), nil
	case TypeStringVector:
		if s == "" {
			return FromStringVector(nil), nil
		}
		return FromStringVector(strings.Split(s, ";")), nil
	case TypeBuffer:
		buf, err := bufferFromString(s)
		if err != nil {
			return None, err
		}
		return FromBuffer(buf), nil
	case TypeResourceRef:
		return FromResourceRef(ParseResourceRef(s)), nil
	case TypeResourceRefList:
		return FromResourceRefList(ParseResourceRefList(s)), nil
	case TypeNodeRef:
		id, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return None, fmt.Errorf("%w: node ref %q", ErrBadValue, s)
		}
		return FromNodeRef(uint32(id)), nil
	case TypeComponentRef:
		id, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return None, fmt.Errorf("%w: component ref %q", ErrBadValue, s)
		}
		return FromComponentRef(uint32(id)), nil
	case TypeVariantList, TypeVariantMap:
		return None, fmt.Errorf("%w: %s", ErrNoStringForm, t)
	}
	return None, fmt.Errorf("%w: %d", ErrUnknownType, t)
}

// ParseNamed is Parse with the type given by scene-file name.
func ParseNamed(typeName, s string) (Variant, error) {
	t, ok := TypeFromName(typeName)
	if !ok {
		return None, fmt.Errorf("%w: %q", ErrUnknownType, typeName)
	}
	return Parse(t, s)
}

func parseFloats(s string, want int) ([4]float32, error) {
	var out [4]float32
	fields := strings.Fields(s)
	if len(fields) != want {
		return out, fmt.Errorf("%w: %q needs %d components", ErrBadValue, s, want)
	}
	for i, field := range fields {
		f, err := strconv.ParseFloat(field, 32)
		if err != nil {
			return out, fmt.Errorf("%w: component %q", ErrBadValue, field)
		}
		out[i] = float32(f)
	}
	return out, nil
}

func bufferToString(buf []byte) string {
	if len(buf) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, b := range buf {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.FormatUint(uint64(b), 10))
	}
	return sb.String()
}

func bufferFromString(s string) ([]byte, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, nil
	}
	buf := make([]byte, len(fields))
	for i, field := range fields {
		b, err := strconv.ParseUint(field, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: buffer byte %q", ErrBadValue, field)
		}
		buf[i] = byte(b)
	}
	return buf, nil
}
