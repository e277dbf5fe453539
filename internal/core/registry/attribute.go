package registry

import (
	"github.com/zeusync/scenegraph/internal/core/variant"
)

// AttrMode controls which serialization paths an attribute participates in.
type AttrMode uint8

const (
	// ModeFile marks attributes written to scene files.
	ModeFile AttrMode = 1 << iota
	// ModeNet marks attributes included in network delta snapshots.
	ModeNet
	// ModeNoEdit hides the attribute from editing tools but still stores it.
	ModeNoEdit

	// ModeDefault is the usual file+net combination.
	ModeDefault = ModeFile | ModeNet
)

// Has reports whether all bits of flag are set.
func (m AttrMode) Has(flag AttrMode) bool { return m&flag == flag }

// AttributeInfo describes one reflected attribute of a registered type.
// Tables are ordered; binary scene data relies on that order.
type AttributeInfo struct {
	Name    string
	Type    variant.Type
	Mode    AttrMode
	Default variant.Variant
	Get     func(obj any) variant.Variant
	Set     func(obj any, value variant.Variant)
}

// Accessor adapts typed get/set closures to the any-based table form. The
// object is silently ignored when it is not a *T, so a table mismatch reads
// as defaults instead of panicking mid-load.
func Accessor[T any](get func(*T) variant.Variant, set func(*T, variant.Variant)) (func(any) variant.Variant, func(any, variant.Variant)) {
	g := func(obj any) variant.Variant {
		t, ok := obj.(*T)
		if !ok {
			return variant.None
		}
		return get(t)
	}
	s := func(obj any, value variant.Variant) {
		t, ok := obj.(*T)
		if !ok {
			return
		}
		set(t, value)
	}
	return g, s
}

// Attr builds an AttributeInfo from typed closures.
func Attr[T any](name string, typ variant.Type, def variant.Variant, mode AttrMode,
	get func(*T) variant.Variant, set func(*T, variant.Variant)) AttributeInfo {
	g, s := Accessor(get, set)
	return AttributeInfo{
		Name:    name,
		Type:    typ,
		Mode:    mode,
		Default: def,
		Get:     g,
		Set:     s,
	}
}
