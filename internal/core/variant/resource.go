package variant

import "strings"

// ResourceRef names a single resource by its type and cache path.
type ResourceRef struct {
	Type string
	Name string
}

// ResourceRefList names an ordered set of resources sharing one type.
type ResourceRefList struct {
	Type  string
	Names []string
}

// String encodes the ref in "Type;Name" scene-file form.
func (r ResourceRef) String() string {
	return r.Type + ";" + r.Name
}

// String encodes the list in "Type;Name1;Name2" scene-file form.
func (r ResourceRefList) String() string {
	parts := make([]string, 0, len(r.Names)+1)
	parts = append(parts, r.Type)
	parts = append(parts, r.Names...)
	return strings.Join(parts, ";")
}

// ParseResourceRef decodes "Type;Name" form. A missing separator yields a
// ref with an empty type, matching a bare resource name.
func ParseResourceRef(s string) ResourceRef {
	typ, name, found := strings.Cut(s, ";")
	if !found {
		return ResourceRef{Name: s}
	}
	return ResourceRef{Type: typ, Name: name}
}

// ParseResourceRefList decodes "Type;Name1;Name2" form.
func ParseResourceRefList(s string) ResourceRefList {
	parts := strings.Split(s, ";")
	list := ResourceRefList{Type: parts[0]}
	if len(parts) > 1 {
		list.Names = parts[1:]
	}
	return list
}

// Clone returns a list with its own name slice.
func (r ResourceRefList) Clone() ResourceRefList {
	out := ResourceRefList{Type: r.Type}
	if len(r.Names) > 0 {
		out.Names = make([]string, len(r.Names))
		copy(out.Names, r.Names)
	}
	return out
}

// Equals reports deep equality.
func (r ResourceRefList) Equals(other ResourceRefList) bool {
	if r.Type != other.Type || len(r.Names) != len(other.Names) {
		return false
	}
	for i := range r.Names {
		if r.Names[i] != other.Names[i] {
			return false
		}
	}
	return true
}
