// Package serialize converts attribute-reflected objects to and from their
// wire form. It knows nothing about scene structure; the scene codecs layer
// file formats on top of it.
package serialize

import (
	"errors"

	"github.com/zeusync/scenegraph/internal/core/registry"
)

var (
	ErrBadVariantType = errors.New("serialize: bad variant type tag")
	ErrTruncated      = errors.New("serialize: truncated attribute data")
)

// Serializable is implemented by objects whose persistent state lives in a
// registered attribute table. ApplyAttributes runs after a full load so the
// object can rebuild derived state from freshly set attributes.
type Serializable interface {
	registry.Typed
	ApplyAttributes()
}
