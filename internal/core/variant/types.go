package variant

// Type identifies which value a Variant holds. The numeric values are part
// of the binary scene format; append new types, never reorder.
type Type uint8

const (
	TypeNone Type = iota
	TypeBool
	TypeInt
	TypeInt64
	TypeFloat
	TypeDouble
	TypeVector2
	TypeVector3
	TypeQuaternion
	TypeColor
	TypeString
	TypeBuffer
	TypeResourceRef
	TypeResourceRefList
	TypeStringVector
	TypeVariantList
	TypeVariantMap
	TypeNodeRef
	TypeComponentRef

	typeCount
)

var typeNames = [typeCount]string{
	TypeNone:            "None",
	TypeBool:            "Bool",
	TypeInt:             "Int",
	TypeInt64:           "Int64",
	TypeFloat:           "Float",
	TypeDouble:          "Double",
	TypeVector2:         "Vector2",
	TypeVector3:         "Vector3",
	TypeQuaternion:      "Quaternion",
	TypeColor:           "Color",
	TypeString:          "String",
	TypeBuffer:          "Buffer",
	TypeResourceRef:     "ResourceRef",
	TypeResourceRefList: "ResourceRefList",
	TypeStringVector:    "StringVector",
	TypeVariantList:     "VariantList",
	TypeVariantMap:      "VariantMap",
	TypeNodeRef:         "NodeRef",
	TypeComponentRef:    "ComponentRef",
}

// String returns the type name used in XML and JSON scene files.
func (t Type) String() string {
	if t >= typeCount {
		return "Unknown"
	}
	return typeNames[t]
}

// TypeFromName resolves a type name from a scene file back to its Type.
func TypeFromName(name string) (Type, bool) {
	for t, n := range typeNames {
		if n == name {
			return Type(t), true
		}
	}
	return TypeNone, false
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	return t < typeCount
}
