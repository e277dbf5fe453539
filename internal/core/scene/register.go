package scene

import (
	"github.com/zeusync/scenegraph/internal/core/math3d"
	"github.com/zeusync/scenegraph/internal/core/registry"
	"github.com/zeusync/scenegraph/internal/core/variant"
)

// asNode unwraps the attribute target to its node. Scene embeds Node, so
// the shared node table must accept both pointer types.
func asNode(obj any) *Node {
	switch t := obj.(type) {
	case *Node:
		return t
	case *Scene:
		return &t.Node
	}
	return nil
}

// nodeAttr builds a node-table attribute whose accessors work for nodes and
// for the scene root alike.
func nodeAttr(name string, typ variant.Type, def variant.Variant, mode registry.AttrMode,
	get func(*Node) variant.Variant, set func(*Node, variant.Variant)) registry.AttributeInfo {
	return registry.AttributeInfo{
		Name:    name,
		Type:    typ,
		Mode:    mode,
		Default: def,
		Get: func(obj any) variant.Variant {
			n := asNode(obj)
			if n == nil {
				return variant.None
			}
			return get(n)
		},
		Set: func(obj any, value variant.Variant) {
			if n := asNode(obj); n != nil {
				set(n, value)
			}
		},
	}
}

func nodeAttributes() []registry.AttributeInfo {
	return []registry.AttributeInfo{
		nodeAttr("Is Enabled", variant.TypeBool, variant.FromBool(true), registry.ModeDefault,
			func(n *Node) variant.Variant { return variant.FromBool(n.enabled) },
			func(n *Node, v variant.Variant) {
				// Direct set: component hooks run through ApplyAttributes
				// after the load settles, not per-attribute.
				n.enabled = v.Bool()
				n.enabledPrev = n.enabled
			}),
		nodeAttr("Name", variant.TypeString, variant.FromString(""), registry.ModeDefault,
			func(n *Node) variant.Variant { return variant.FromString(n.name) },
			func(n *Node, v variant.Variant) { n.SetName(v.Str()) }),
		nodeAttr("Tags", variant.TypeStringVector, variant.FromStringVector(nil), registry.ModeDefault,
			func(n *Node) variant.Variant { return variant.FromStringVector(n.tags) },
			func(n *Node, v variant.Variant) { n.SetTags(v.StringVector()) }),
		nodeAttr("Position", variant.TypeVector3, variant.FromVector3(math3d.Vector3{}), registry.ModeDefault,
			func(n *Node) variant.Variant { return variant.FromVector3(n.position) },
			func(n *Node, v variant.Variant) { n.SetPosition(v.Vector3()) }),
		nodeAttr("Rotation", variant.TypeQuaternion, variant.FromQuaternion(math3d.QuaternionIdentity), registry.ModeDefault,
			func(n *Node) variant.Variant { return variant.FromQuaternion(n.rotation) },
			func(n *Node, v variant.Variant) { n.SetRotation(v.Quaternion()) }),
		nodeAttr("Scale", variant.TypeVector3, variant.FromVector3(math3d.One3), registry.ModeDefault,
			func(n *Node) variant.Variant { return variant.FromVector3(n.scale) },
			func(n *Node, v variant.Variant) { n.SetScale(v.Vector3()) }),
		nodeAttr("Variables", variant.TypeVariantMap, variant.FromMap(nil), registry.ModeFile,
			func(n *Node) variant.Variant { return variant.FromMap(n.vars) },
			func(n *Node, v variant.Variant) { n.vars = v.Map().Clone() }),
	}
}

func sceneAttributes() []registry.AttributeInfo {
	return []registry.AttributeInfo{
		registry.Attr("Time Scale", variant.TypeFloat, variant.FromFloat(1), registry.ModeDefault,
			func(s *Scene) variant.Variant { return variant.FromFloat(s.timeScale) },
			func(s *Scene, v variant.Variant) { s.SetTimeScale(v.Float()) }),
		registry.Attr("Elapsed Time", variant.TypeFloat, variant.FromFloat(0), registry.ModeFile,
			func(s *Scene) variant.Variant { return variant.FromFloat(s.elapsedTime) },
			func(s *Scene, v variant.Variant) { s.SetElapsedTime(v.Float()) }),
	}
}

// componentEnabledAttr is the base attribute every component type carries.
func componentEnabledAttr() registry.AttributeInfo {
	return registry.AttributeInfo{
		Name:    "Is Enabled",
		Type:    variant.TypeBool,
		Mode:    registry.ModeDefault,
		Default: variant.FromBool(true),
		Get: func(obj any) variant.Variant {
			c, ok := obj.(Component)
			if !ok {
				return variant.None
			}
			return variant.FromBool(c.Enabled())
		},
		Set: func(obj any, value variant.Variant) {
			if c, ok := obj.(Component); ok {
				c.base().disabled = !value.Bool()
			}
		},
	}
}

// EnsureSceneTypes registers the Node and Scene types and their attribute
// tables. Safe to call for a registry that already has them.
func EnsureSceneTypes(reg *registry.Registry) {
	if reg.Known("Node") {
		return
	}
	reg.MustRegister(func() registry.Typed { return NewNode() })
	if err := reg.RegisterAttributes("Node", nodeAttributes()...); err != nil {
		panic(err)
	}
	reg.MustRegister(func() registry.Typed { return &Scene{} })
	if err := reg.CopyBaseAttributes("Scene", "Node"); err != nil {
		panic(err)
	}
	if err := reg.RegisterAttributes("Scene", sceneAttributes()...); err != nil {
		panic(err)
	}
}

// RegisterComponent registers a component factory together with the base
// component attributes. Type-specific attributes are appended afterwards
// with reg.RegisterAttributes, in serialization order.
func RegisterComponent(reg *registry.Registry, factory func() Component) error {
	if err := reg.Register(func() registry.Typed { return factory() }); err != nil {
		return err
	}
	name := factory().TypeName()
	return reg.RegisterAttributes(name, componentEnabledAttr())
}
