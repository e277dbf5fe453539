package serialize

import (
	"fmt"

	"github.com/zeusync/scenegraph/internal/core/registry"
	"github.com/zeusync/scenegraph/pkg/encoding"
)

// SaveAttributes writes every table attribute carrying mode, positionally
// and without tags. The reader must use the same table and mode.
func SaveAttributes(w *encoding.Writer, obj any, attrs []registry.AttributeInfo, mode registry.AttrMode) {
	for _, attr := range attrs {
		if !attr.Mode.Has(mode) {
			continue
		}
		v := attr.Get(obj)
		if v.Kind() != attr.Type {
			v = attr.Default
		}
		WriteVariantData(w, v)
	}
}

// LoadAttributes reads positional attribute data written by SaveAttributes
// and applies each value through the table's setter.
func LoadAttributes(r *encoding.Reader, obj any, attrs []registry.AttributeInfo, mode registry.AttrMode) error {
	for _, attr := range attrs {
		if !attr.Mode.Has(mode) {
			continue
		}
		v, err := ReadVariantData(r, attr.Type)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", attr.Name, err)
		}
		attr.Set(obj, v)
	}
	return nil
}

// ResetToDefaults applies every attribute's default value.
func ResetToDefaults(obj any, attrs []registry.AttributeInfo) {
	for _, attr := range attrs {
		attr.Set(obj, attr.Default)
	}
}
