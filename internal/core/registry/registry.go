package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/scenegraph/internal/core/variant"
)

var (
	ErrTypeNotRegistered = errors.New("type not registered")
	ErrDuplicateType     = errors.New("type already registered")
	ErrHashCollision     = errors.New("type name hash collision")
	ErrAttributeUnknown  = errors.New("attribute not registered")
)

// Typed is implemented by every object a factory can create.
type Typed interface {
	TypeName() string
}

// Factory creates a fresh instance of a registered type.
type Factory func() Typed

// TypeHash maps a type name onto the stable 64-bit hash used in network
// messages and in-memory indices. Scene files carry names, not hashes.
func TypeHash(name string) uint64 {
	return xxhash.Sum64String(name)
}

type typeEntry struct {
	name    string
	factory Factory
	attrs   []AttributeInfo
}

// Registry holds factories and attribute tables for all serializable types.
// Registration happens during startup; lookups afterwards are read-mostly
// and safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	types  map[string]*typeEntry
	byHash map[uint64]*typeEntry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		types:  make(map[string]*typeEntry),
		byHash: make(map[uint64]*typeEntry),
	}
}

// Register adds a factory under the type's name. Registering the same name
// twice is an error, as is a 64-bit hash collision with another name.
func (r *Registry) Register(factory Factory) error {
	probe := factory()
	name := probe.TypeName()
	hash := TypeHash(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.types[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateType, name)
	}
	if prev, ok := r.byHash[hash]; ok {
		return fmt.Errorf("%w: %s vs %s", ErrHashCollision, name, prev.name)
	}

	entry := &typeEntry{name: name, factory: factory}
	r.types[name] = entry
	r.byHash[hash] = entry
	return nil
}

// MustRegister registers or panics. Intended for startup wiring where a
// failure means a programming error.
func (r *Registry) MustRegister(factory Factory) {
	if err := r.Register(factory); err != nil {
		panic(err)
	}
}

// Create instantiates a registered type by name.
func (r *Registry) Create(name string) (Typed, error) {
	r.mu.RLock()
	entry, ok := r.types[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTypeNotRegistered, name)
	}
	return entry.factory(), nil
}

// CreateByHash instantiates a registered type by its name hash.
func (r *Registry) CreateByHash(hash uint64) (Typed, error) {
	r.mu.RLock()
	entry, ok := r.byHash[hash]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: hash %#x", ErrTypeNotRegistered, hash)
	}
	return entry.factory(), nil
}

// Known reports whether the name has a factory.
func (r *Registry) Known(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.types[name]
	return ok
}

// NameByHash resolves a type hash back to its name.
func (r *Registry) NameByHash(hash uint64) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.byHash[hash]
	if !ok {
		return "", false
	}
	return entry.name, true
}

// TypeNames returns all registered names, sorted.
func (r *Registry) TypeNames() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// RegisterAttributes appends attributes to a type's ordered table. The type
// must be registered first; serialization order follows insertion order.
func (r *Registry) RegisterAttributes(name string, attrs ...AttributeInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.types[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTypeNotRegistered, name)
	}
	entry.attrs = append(entry.attrs, attrs...)
	return nil
}

// CopyBaseAttributes prepends the base type's attributes onto the derived
// type's table, so shared attributes serialize first in both types.
func (r *Registry) CopyBaseAttributes(derived, base string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	dst, ok := r.types[derived]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTypeNotRegistered, derived)
	}
	src, ok := r.types[base]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTypeNotRegistered, base)
	}

	merged := make([]AttributeInfo, 0, len(src.attrs)+len(dst.attrs))
	merged = append(merged, src.attrs...)
	merged = append(merged, dst.attrs...)
	dst.attrs = merged
	return nil
}

// Attributes returns the ordered attribute table for a type. The returned
// slice is shared; callers must not mutate it.
func (r *Registry) Attributes(name string) []AttributeInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.types[name]
	if !ok {
		return nil
	}
	return entry.attrs
}

// Attribute finds a single attribute by name.
func (r *Registry) Attribute(typeName, attrName string) (AttributeInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.types[typeName]
	if !ok {
		return AttributeInfo{}, fmt.Errorf("%w: %s", ErrTypeNotRegistered, typeName)
	}
	for _, attr := range entry.attrs {
		if attr.Name == attrName {
			return attr, nil
		}
	}
	return AttributeInfo{}, fmt.Errorf("%w: %s.%s", ErrAttributeUnknown, typeName, attrName)
}

// UpdateAttributeDefault replaces the default value of one attribute, so a
// derived type can ship different defaults than its base.
func (r *Registry) UpdateAttributeDefault(typeName, attrName string, def variant.Variant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.types[typeName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTypeNotRegistered, typeName)
	}
	for i := range entry.attrs {
		if entry.attrs[i].Name == attrName {
			entry.attrs[i].Default = def
			return nil
		}
	}
	return fmt.Errorf("%w: %s.%s", ErrAttributeUnknown, typeName, attrName)
}

// RemoveAttribute drops an inherited attribute from a type's table.
func (r *Registry) RemoveAttribute(typeName, attrName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.types[typeName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrTypeNotRegistered, typeName)
	}
	for i := range entry.attrs {
		if entry.attrs[i].Name == attrName {
			entry.attrs = append(entry.attrs[:i:i], entry.attrs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s.%s", ErrAttributeUnknown, typeName, attrName)
}
