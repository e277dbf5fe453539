package scene

import (
	"io"

	"github.com/zeusync/scenegraph/internal/core/observability/log"
	"github.com/zeusync/scenegraph/internal/core/registry"
	"github.com/zeusync/scenegraph/internal/core/serialize"
	"github.com/zeusync/scenegraph/pkg/encoding"
)

// Network form. The layout mirrors the file form but attributes are filtered
// by net mode and local children and components are skipped entirely, so a
// snapshot never carries a local id. Snapshot ids are live scene ids, not
// file ids, so no resolver pass is needed on apply.

// SaveNetwork writes a replicated-only snapshot of the node and its subtree.
func (n *Node) SaveNetwork(w io.Writer) error {
	if n.scene == nil {
		return ErrDetachedNode
	}
	buf := encoding.NewWriter(256)
	n.saveNetwork(buf)
	_, err := w.Write(buf.Bytes())
	return err
}

func (n *Node) saveNetwork(w *encoding.Writer) {
	obj, typeName := n.serialTarget()
	w.WriteU32(uint32(n.id))
	serialize.SaveAttributes(w, obj, n.scene.reg.Attributes(typeName), registry.ModeNet)

	comps := make([]Component, 0, len(n.components))
	for _, comp := range n.components {
		if comp.ID().Replicated() {
			comps = append(comps, comp)
		}
	}
	w.WriteVLE(uint64(len(comps)))
	for _, comp := range comps {
		block := encoding.NewWriter(128)
		block.WriteString(comp.TypeName())
		block.WriteU32(uint32(comp.ID()))
		if unknown, ok := comp.(*UnknownComponent); ok {
			if !unknown.useText {
				block.WriteRaw(unknown.raw)
			}
		} else {
			serialize.SaveAttributes(block, comp, n.scene.reg.Attributes(comp.TypeName()), registry.ModeNet)
		}
		w.WriteBlob(block.Bytes())
	}

	children := make([]*Node, 0, len(n.children))
	for _, child := range n.children {
		if child.ID().Replicated() {
			children = append(children, child)
		}
	}
	w.WriteVLE(uint64(len(children)))
	for _, child := range children {
		child.saveNetwork(w)
	}
}

// LoadNetwork applies a snapshot written by SaveNetwork. Replicated
// components and children of the node are replaced with the snapshot's
// content under the snapshot's ids; local ones are left untouched.
func (n *Node) LoadNetwork(data []byte) error {
	if n.scene == nil {
		return ErrDetachedNode
	}
	r := encoding.NewReader(data)
	r.ReadU32() // the caller matched the node by id already
	if err := n.loadNetwork(r); err != nil {
		return err
	}
	n.ApplyAttributes()
	return nil
}

func (n *Node) loadNetwork(r *encoding.Reader) error {
	for _, comp := range append([]Component(nil), n.components...) {
		if comp.ID().Replicated() {
			n.removeComponent(comp)
		}
	}
	for _, child := range append([]*Node(nil), n.children...) {
		if child.ID().Replicated() {
			n.RemoveChild(child)
		}
	}

	obj, typeName := n.serialTarget()
	if err := serialize.LoadAttributes(r, obj, n.scene.reg.Attributes(typeName), registry.ModeNet); err != nil {
		return err
	}

	numComponents := r.ReadVLE()
	for i := uint64(0); i < numComponents && r.Err() == nil; i++ {
		block := r.ReadBlob()
		if r.Err() != nil {
			break
		}
		n.loadComponentNetwork(block)
	}
	if err := r.Err(); err != nil {
		return err
	}

	numChildren := r.ReadVLE()
	for i := uint64(0); i < numChildren && r.Err() == nil; i++ {
		childID := r.ReadU32()
		if err := r.Err(); err != nil {
			return err
		}
		child := n.createChildForLoad(childID)
		if err := child.loadNetwork(r); err != nil {
			return err
		}
	}
	return r.Err()
}

func (n *Node) loadComponentNetwork(block []byte) {
	cr := encoding.NewReader(block)
	typeName := cr.ReadString()
	id := ComponentID(cr.ReadU32())
	if cr.Err() != nil || typeName == "" {
		n.scene.logger.Warn("skipping malformed component snapshot", log.NodeID(uint32(n.id)))
		return
	}
	comp, err := n.createComponentForLoad(typeName, id)
	if err != nil {
		n.scene.logger.Warn("skipping component snapshot", log.String("type", typeName), log.Error(err))
		return
	}
	if unknown, ok := comp.(*UnknownComponent); ok {
		unknown.setBinary(cr.ReadRaw(cr.Remaining()))
		return
	}
	if err := serialize.LoadAttributes(cr, comp, n.scene.reg.Attributes(typeName), registry.ModeNet); err != nil {
		n.scene.logger.Warn("component snapshot truncated",
			log.String("type", typeName), log.Error(err))
	}
}
