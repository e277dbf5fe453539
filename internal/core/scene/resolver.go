package scene

import (
	"github.com/zeusync/scenegraph/internal/core/observability/log"
	"github.com/zeusync/scenegraph/internal/core/registry"
	"github.com/zeusync/scenegraph/internal/core/variant"
)

// SceneResolver maps the ids a load, clone or instantiate pass read from
// its source onto the objects created for them. Ids can change during the
// pass (taken id, forced mode), so reference-typed attribute values are
// rewritten once at the end, when every target exists; forward references
// in any order resolve correctly. A reference whose id is not in the map
// is dangling and becomes the null id with a warning.
type SceneResolver struct {
	nodes      map[NodeID]*Node
	components map[ComponentID]Component
}

// NewSceneResolver returns an empty resolver.
func NewSceneResolver() SceneResolver {
	return SceneResolver{
		nodes:      make(map[NodeID]*Node),
		components: make(map[ComponentID]Component),
	}
}

// AddNode records a created node under its source id.
func (r *SceneResolver) AddNode(oldID NodeID, node *Node) {
	if oldID != 0 && node != nil {
		r.nodes[oldID] = node
	}
}

// AddComponent records a created component under its source id.
func (r *SceneResolver) AddComponent(oldID ComponentID, comp Component) {
	if oldID != 0 && comp != nil {
		r.components[oldID] = comp
	}
}

// Resolve rewrites node and component references, including ones nested in
// variant lists and maps, across every recorded component's attributes and
// every recorded node's user variables. The maps are cleared afterwards,
// making the resolver reusable for another pass. Nodes carry no reference
// attributes in their table, so only user variables are scanned on them.
func (r *SceneResolver) Resolve(reg *registry.Registry, logger log.Log) {
	for _, node := range r.nodes {
		for key, value := range node.vars {
			node.vars[key] = r.rewrite(value, logger)
		}
	}
	for _, comp := range r.components {
		for _, attr := range reg.Attributes(comp.TypeName()) {
			switch attr.Type {
			case variant.TypeNodeRef, variant.TypeComponentRef,
				variant.TypeVariantList, variant.TypeVariantMap:
				old := attr.Get(comp)
				rewritten := r.rewrite(old, logger)
				if !rewritten.Equals(old) {
					attr.Set(comp, rewritten)
				}
			}
		}
	}
	r.nodes = make(map[NodeID]*Node)
	r.components = make(map[ComponentID]Component)
}

func (r *SceneResolver) rewrite(v variant.Variant, logger log.Log) variant.Variant {
	switch v.Kind() {
	case variant.TypeNodeRef:
		oldID := NodeID(v.NodeRef())
		if oldID == 0 {
			return v
		}
		node, ok := r.nodes[oldID]
		if !ok {
			logger.Warn("could not resolve node reference", log.NodeID(uint32(oldID)))
			return variant.FromNodeRef(0)
		}
		return variant.FromNodeRef(uint32(node.id))
	case variant.TypeComponentRef:
		oldID := ComponentID(v.ComponentRef())
		if oldID == 0 {
			return v
		}
		comp, ok := r.components[oldID]
		if !ok {
			logger.Warn("could not resolve component reference", log.ComponentID(uint32(oldID)))
			return variant.FromComponentRef(0)
		}
		return variant.FromComponentRef(uint32(comp.ID()))
	case variant.TypeVariantList:
		items := v.List()
		out := make([]variant.Variant, len(items))
		changed := false
		for i, item := range items {
			out[i] = r.rewrite(item, logger)
			if !out[i].Equals(item) {
				changed = true
			}
		}
		if !changed {
			return v
		}
		return variant.FromList(out)
	case variant.TypeVariantMap:
		m := v.Map()
		out := make(variant.VariantMap, len(m))
		changed := false
		for key, item := range m {
			out[key] = r.rewrite(item, logger)
			if !out[key].Equals(item) {
				changed = true
			}
		}
		if !changed {
			return v
		}
		return variant.FromMap(out)
	default:
		return v
	}
}
