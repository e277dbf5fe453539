package scene

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/beevik/etree"

	"github.com/zeusync/scenegraph/internal/core/observability/log"
	"github.com/zeusync/scenegraph/internal/core/registry"
	"github.com/zeusync/scenegraph/internal/core/serialize"
	"github.com/zeusync/scenegraph/internal/core/variant"
	"github.com/zeusync/scenegraph/pkg/encoding"
)

// serialTarget resolves which attribute table the node serializes with. The
// root of a scene is the scene itself and carries the extended table.
func (n *Node) serialTarget() (any, string) {
	if s := n.scene; s != nil && n == &s.Node {
		return s, "Scene"
	}
	return n, "Node"
}

// Binary form. The layout per node is: u32 id, positional file attributes,
// VLE component count, length-prefixed component blocks, VLE child count,
// then each child (which starts with its own id). Component blocks are
// framed so one undecodable block can be skipped without desyncing the
// stream.

// Save writes the node and its subtree in binary form, suitable for Load or
// Scene.Instantiate.
func (n *Node) Save(w io.Writer) error {
	if n.scene == nil {
		return ErrDetachedNode
	}
	buf := encoding.NewWriter(512)
	n.saveBinary(buf)
	_, err := w.Write(buf.Bytes())
	return err
}

// Load replaces the node's attributes, components and children from binary
// data written by Save, then resolves id references and applies attributes.
// The node's own id is not overwritten; the stored id only seeds reference
// resolution.
func (n *Node) Load(data []byte) error {
	if n.scene == nil {
		return ErrDetachedNode
	}
	r := encoding.NewReader(data)
	resolver := NewSceneResolver()
	fileID := r.ReadU32()
	resolver.AddNode(NodeID(fileID), n)
	if err := n.loadBinary(r, &resolver, true); err != nil {
		return err
	}
	resolver.Resolve(n.scene.reg, n.scene.logger)
	n.ApplyAttributes()
	return nil
}

func (n *Node) saveBinary(w *encoding.Writer) {
	obj, typeName := n.serialTarget()
	w.WriteU32(uint32(n.id))
	serialize.SaveAttributes(w, obj, n.scene.reg.Attributes(typeName), registry.ModeFile)

	w.WriteVLE(uint64(len(n.components)))
	for _, comp := range n.components {
		n.saveComponentBinary(w, comp)
	}

	w.WriteVLE(uint64(len(n.children)))
	for _, child := range n.children {
		child.saveBinary(w)
	}
}

func (n *Node) saveComponentBinary(w *encoding.Writer, comp Component) {
	block := encoding.NewWriter(128)
	block.WriteString(comp.TypeName())
	block.WriteU32(uint32(comp.ID()))
	if unknown, ok := comp.(*UnknownComponent); ok {
		if !unknown.useText {
			block.WriteRaw(unknown.raw)
		}
	} else {
		serialize.SaveAttributes(block, comp, n.scene.reg.Attributes(comp.TypeName()), registry.ModeFile)
	}
	w.WriteBlob(block.Bytes())
}

// loadBinary reads the node's content in place. The caller has already
// consumed the node's id. With readChildren false only attributes and
// components load; the child list is left for the caller, which is how
// async loading takes over the stream between root-level subtrees.
func (n *Node) loadBinary(r *encoding.Reader, resolver *SceneResolver, readChildren bool) error {
	n.RemoveAllChildren()
	n.RemoveAllComponents()

	obj, typeName := n.serialTarget()
	if err := serialize.LoadAttributes(r, obj, n.scene.reg.Attributes(typeName), registry.ModeFile); err != nil {
		return err
	}

	numComponents := r.ReadVLE()
	for i := uint64(0); i < numComponents && r.Err() == nil; i++ {
		block := r.ReadBlob()
		if r.Err() == nil {
			n.loadComponentBinary(block, resolver)
		}
	}
	if err := r.Err(); err != nil {
		return err
	}
	if !readChildren {
		return nil
	}

	numChildren := r.ReadVLE()
	for i := uint64(0); i < numChildren && r.Err() == nil; i++ {
		if err := n.loadChildBinary(r, resolver); err != nil {
			return err
		}
	}
	return r.Err()
}

// loadChildBinary consumes one child subtree from the stream and attaches
// it. Async loading calls this directly, one root-level child per step.
func (n *Node) loadChildBinary(r *encoding.Reader, resolver *SceneResolver) error {
	childID := r.ReadU32()
	if err := r.Err(); err != nil {
		return err
	}
	child := n.createChildForLoad(childID)
	resolver.AddNode(NodeID(childID), child)
	return child.loadBinary(r, resolver, true)
}

func (n *Node) loadComponentBinary(block []byte, resolver *SceneResolver) {
	cr := encoding.NewReader(block)
	typeName := cr.ReadString()
	fileID := ComponentID(cr.ReadU32())
	if cr.Err() != nil || typeName == "" {
		n.scene.logger.Warn("skipping malformed component block", log.NodeID(uint32(n.id)))
		return
	}
	comp, err := n.createComponentForLoad(typeName, fileID)
	if err != nil {
		n.scene.logger.Warn("skipping component", log.String("type", typeName), log.Error(err))
		return
	}
	resolver.AddComponent(fileID, comp)
	if unknown, ok := comp.(*UnknownComponent); ok {
		unknown.setBinary(cr.ReadRaw(cr.Remaining()))
		return
	}
	if err := serialize.LoadAttributes(cr, comp, n.scene.reg.Attributes(typeName), registry.ModeFile); err != nil {
		n.scene.logger.Warn("component attributes truncated",
			log.String("type", typeName), log.Error(err))
	}
}

// createComponentForLoad attaches a component for deserialized data. Free
// file ids are kept so files round-trip with stable ids; a taken or
// range-mismatched id gets a fresh one and the resolver rewrites references
// to it. Unregistered types become UnknownComponent placeholders.
func (n *Node) createComponentForLoad(typeName string, fileID ComponentID) (Component, error) {
	mode := Local
	if n.Mode() == Replicated && uint32(fileID) < FirstLocalID {
		mode = Replicated
	}
	id := ComponentID(0)
	if fileID != 0 && modeOfID(uint32(fileID)) == mode && n.scene.componentIDFree(fileID) {
		id = fileID
	}
	if !n.scene.reg.Known(typeName) {
		unknown := NewUnknownComponent(typeName)
		n.addComponent(unknown, mode, id)
		return unknown, nil
	}
	typed, err := n.scene.reg.Create(typeName)
	if err != nil {
		return nil, err
	}
	comp, ok := typed.(Component)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotComponent, typeName)
	}
	n.addComponent(comp, mode, id)
	return comp, nil
}

// XML form. A node element carries an id attribute, <attribute> children
// with name/value pairs (structural values nest <variant> elements),
// <component> children and nested <node> children. Default-valued
// attributes are omitted.

// SaveXML writes the subtree as an XML document with a <node> root.
func (n *Node) SaveXML(w io.Writer) error {
	if n.scene == nil {
		return ErrDetachedNode
	}
	doc := etree.NewDocument()
	n.saveXMLInto(doc.CreateElement("node"))
	doc.IndentTabs()
	_, err := doc.WriteTo(w)
	return err
}

// LoadXML replaces the node's content from an XML document written by
// SaveXML, then resolves references and applies attributes.
func (n *Node) LoadXML(data []byte) error {
	if n.scene == nil {
		return ErrDetachedNode
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return fmt.Errorf("parse node xml: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return errors.New("node xml has no root element")
	}
	resolver := NewSceneResolver()
	fileID := parseID(root.SelectAttrValue("id", "0"))
	resolver.AddNode(NodeID(fileID), n)
	n.loadXMLFrom(root, &resolver, true)
	resolver.Resolve(n.scene.reg, n.scene.logger)
	n.ApplyAttributes()
	return nil
}

func (n *Node) saveXMLInto(el *etree.Element) {
	obj, typeName := n.serialTarget()
	el.CreateAttr("id", strconv.FormatUint(uint64(n.id), 10))
	saveAttributesXML(el, obj, n.scene.reg.Attributes(typeName))

	for _, comp := range n.components {
		n.saveComponentXML(el, comp)
	}
	for _, child := range n.children {
		child.saveXMLInto(el.CreateElement("node"))
	}
}

func (n *Node) saveComponentXML(el *etree.Element, comp Component) {
	compEl := el.CreateElement("component")
	compEl.CreateAttr("type", comp.TypeName())
	compEl.CreateAttr("id", strconv.FormatUint(uint64(comp.ID()), 10))
	if unknown, ok := comp.(*UnknownComponent); ok {
		if unknown.useText {
			for _, a := range unknown.text {
				attrEl := compEl.CreateElement("attribute")
				attrEl.CreateAttr("name", a.Name)
				attrEl.CreateAttr("value", a.Value)
			}
		}
		return
	}
	saveAttributesXML(compEl, comp, n.scene.reg.Attributes(comp.TypeName()))
}

// loadXMLFrom reads the node's content in place. Malformed components and
// attributes are skipped with a warning; XML loads never abort mid-tree.
func (n *Node) loadXMLFrom(el *etree.Element, resolver *SceneResolver, readChildren bool) {
	n.RemoveAllChildren()
	n.RemoveAllComponents()

	obj, typeName := n.serialTarget()
	loadAttributesXML(el, obj, n.scene.reg.Attributes(typeName), n.scene.logger)

	for _, compEl := range el.SelectElements("component") {
		n.loadComponentXML(compEl, resolver)
	}
	if !readChildren {
		return
	}
	for _, childEl := range el.SelectElements("node") {
		n.loadChildXML(childEl, resolver)
	}
}

// loadChildXML attaches one child subtree from its element.
func (n *Node) loadChildXML(childEl *etree.Element, resolver *SceneResolver) {
	childID := parseID(childEl.SelectAttrValue("id", "0"))
	child := n.createChildForLoad(childID)
	resolver.AddNode(NodeID(childID), child)
	child.loadXMLFrom(childEl, resolver, true)
}

func (n *Node) loadComponentXML(compEl *etree.Element, resolver *SceneResolver) {
	typeName := compEl.SelectAttrValue("type", "")
	if typeName == "" {
		n.scene.logger.Warn("component element without type", log.NodeID(uint32(n.id)))
		return
	}
	fileID := ComponentID(parseID(compEl.SelectAttrValue("id", "0")))
	comp, err := n.createComponentForLoad(typeName, fileID)
	if err != nil {
		n.scene.logger.Warn("skipping component", log.String("type", typeName), log.Error(err))
		return
	}
	resolver.AddComponent(fileID, comp)
	if unknown, ok := comp.(*UnknownComponent); ok {
		var attrs []namedAttr
		for _, attrEl := range compEl.SelectElements("attribute") {
			attrs = append(attrs, namedAttr{
				Name:  attrEl.SelectAttrValue("name", ""),
				Value: attrEl.SelectAttrValue("value", ""),
			})
		}
		unknown.setText(attrs)
		return
	}
	loadAttributesXML(compEl, comp, n.scene.reg.Attributes(typeName), n.scene.logger)
}

// JSON form, mirroring the XML layout: {"id", "attributes": [{"name",
// "type", "value"}], "components": [...], "children": [...]}. Attribute
// entries form an array so file order survives, which keeps the rolling
// table match cheap for files saved from a matching table.

// SaveJSON writes the subtree as an indented JSON document.
func (n *Node) SaveJSON(w io.Writer) error {
	if n.scene == nil {
		return ErrDetachedNode
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(n.saveJSONValue())
}

// LoadJSON replaces the node's content from a JSON document written by
// SaveJSON, then resolves references and applies attributes.
func (n *Node) LoadJSON(data []byte) error {
	if n.scene == nil {
		return ErrDetachedNode
	}
	var root map[string]any
	if err := json.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("parse node json: %w", err)
	}
	resolver := NewSceneResolver()
	resolver.AddNode(NodeID(jsonID(root["id"])), n)
	n.loadJSONFrom(root, &resolver, true)
	resolver.Resolve(n.scene.reg, n.scene.logger)
	n.ApplyAttributes()
	return nil
}

func (n *Node) saveJSONValue() map[string]any {
	obj, typeName := n.serialTarget()
	components := make([]any, 0, len(n.components))
	for _, comp := range n.components {
		components = append(components, n.saveComponentJSON(comp))
	}
	children := make([]any, 0, len(n.children))
	for _, child := range n.children {
		children = append(children, child.saveJSONValue())
	}
	return map[string]any{
		"id":         uint32(n.id),
		"attributes": saveAttributesJSON(obj, n.scene.reg.Attributes(typeName)),
		"components": components,
		"children":   children,
	}
}

func (n *Node) saveComponentJSON(comp Component) map[string]any {
	out := map[string]any{
		"type": comp.TypeName(),
		"id":   uint32(comp.ID()),
	}
	if unknown, ok := comp.(*UnknownComponent); ok {
		attrs := make([]any, 0, len(unknown.text))
		if unknown.useText {
			for _, a := range unknown.text {
				attrs = append(attrs, map[string]any{"name": a.Name, "type": a.Type, "value": a.Value})
			}
		}
		out["attributes"] = attrs
		return out
	}
	out["attributes"] = saveAttributesJSON(comp, n.scene.reg.Attributes(comp.TypeName()))
	return out
}

// loadJSONFrom reads the node's content in place, skipping malformed parts
// with a warning like the XML path.
func (n *Node) loadJSONFrom(obj map[string]any, resolver *SceneResolver, readChildren bool) {
	n.RemoveAllChildren()
	n.RemoveAllComponents()

	target, typeName := n.serialTarget()
	attrs, _ := obj["attributes"].([]any)
	loadAttributesJSON(attrs, target, n.scene.reg.Attributes(typeName), n.scene.logger)

	comps, _ := obj["components"].([]any)
	for _, raw := range comps {
		if compObj, ok := raw.(map[string]any); ok {
			n.loadComponentJSON(compObj, resolver)
		}
	}
	if !readChildren {
		return
	}
	children, _ := obj["children"].([]any)
	for _, raw := range children {
		if childObj, ok := raw.(map[string]any); ok {
			n.loadChildJSON(childObj, resolver)
		}
	}
}

// loadChildJSON attaches one child subtree from its decoded object.
func (n *Node) loadChildJSON(childObj map[string]any, resolver *SceneResolver) {
	childID := jsonID(childObj["id"])
	child := n.createChildForLoad(childID)
	resolver.AddNode(NodeID(childID), child)
	child.loadJSONFrom(childObj, resolver, true)
}

func (n *Node) loadComponentJSON(compObj map[string]any, resolver *SceneResolver) {
	typeName, _ := compObj["type"].(string)
	if typeName == "" {
		n.scene.logger.Warn("component entry without type", log.NodeID(uint32(n.id)))
		return
	}
	fileID := ComponentID(jsonID(compObj["id"]))
	comp, err := n.createComponentForLoad(typeName, fileID)
	if err != nil {
		n.scene.logger.Warn("skipping component", log.String("type", typeName), log.Error(err))
		return
	}
	resolver.AddComponent(fileID, comp)
	attrs, _ := compObj["attributes"].([]any)
	if unknown, ok := comp.(*UnknownComponent); ok {
		var text []namedAttr
		for _, raw := range attrs {
			if entry, ok := raw.(map[string]any); ok {
				name, _ := entry["name"].(string)
				typ, _ := entry["type"].(string)
				value, _ := entry["value"].(string)
				text = append(text, namedAttr{Name: name, Type: typ, Value: value})
			}
		}
		unknown.setText(text)
		return
	}
	loadAttributesJSON(attrs, comp, n.scene.reg.Attributes(typeName), n.scene.logger)
}

// Shared text-format attribute helpers.

// saveAttributesXML writes one <attribute> element per file attribute whose
// value differs from its default.
func saveAttributesXML(el *etree.Element, obj any, attrs []registry.AttributeInfo) {
	for _, attr := range attrs {
		if !attr.Mode.Has(registry.ModeFile) {
			continue
		}
		v := attr.Get(obj)
		if v.Equals(attr.Default) {
			continue
		}
		attrEl := el.CreateElement("attribute")
		attrEl.CreateAttr("name", attr.Name)
		writeVariantXML(attrEl, v)
	}
}

// loadAttributesXML matches file attribute elements against the table by
// name. Files saved from the same table list attributes in table order, so
// the search starts where the previous match left off and wraps around
// once; renamed or reordered attributes still match, unknown names warn.
func loadAttributesXML(el *etree.Element, obj any, attrs []registry.AttributeInfo, logger log.Log) {
	startIndex := 0
	for _, attrEl := range el.SelectElements("attribute") {
		name := attrEl.SelectAttrValue("name", "")
		found := false
		for attempts, i := len(attrs), startIndex; attempts > 0; attempts-- {
			attr := attrs[i]
			if attr.Mode.Has(registry.ModeFile) && attr.Name == name {
				v, err := readVariantXML(attrEl, attr.Type)
				if err != nil {
					logger.Warn("bad attribute value",
						log.String("attribute", name), log.Error(err))
				} else {
					attr.Set(obj, v)
				}
				startIndex = (i + 1) % len(attrs)
				found = true
				break
			}
			i = (i + 1) % len(attrs)
		}
		if !found {
			logger.Warn("unknown attribute in scene data", log.String("attribute", name))
		}
	}
}

// saveAttributesJSON builds the ordered attribute entry array.
func saveAttributesJSON(obj any, attrs []registry.AttributeInfo) []any {
	out := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		if !attr.Mode.Has(registry.ModeFile) {
			continue
		}
		v := attr.Get(obj)
		if v.Equals(attr.Default) {
			continue
		}
		out = append(out, map[string]any{
			"name":  attr.Name,
			"type":  v.Kind().String(),
			"value": writeVariantJSON(v),
		})
	}
	return out
}

// loadAttributesJSON applies attribute entries with the same rolling table
// match as the XML path.
func loadAttributesJSON(entries []any, obj any, attrs []registry.AttributeInfo, logger log.Log) {
	startIndex := 0
	for _, raw := range entries {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := entry["name"].(string)
		found := false
		for attempts, i := len(attrs), startIndex; attempts > 0; attempts-- {
			attr := attrs[i]
			if attr.Mode.Has(registry.ModeFile) && attr.Name == name {
				v, err := readVariantJSON(entry["value"], attr.Type)
				if err != nil {
					logger.Warn("bad attribute value",
						log.String("attribute", name), log.Error(err))
				} else {
					attr.Set(obj, v)
				}
				startIndex = (i + 1) % len(attrs)
				found = true
				break
			}
			i = (i + 1) % len(attrs)
		}
		if !found {
			logger.Warn("unknown attribute in scene data", log.String("attribute", name))
		}
	}
}

// writeVariantXML stores scalar values in the value attribute and expands
// lists and maps into nested <variant> elements.
func writeVariantXML(el *etree.Element, v variant.Variant) {
	switch v.Kind() {
	case variant.TypeVariantList:
		for _, item := range v.List() {
			child := el.CreateElement("variant")
			child.CreateAttr("type", item.Kind().String())
			writeVariantXML(child, item)
		}
	case variant.TypeVariantMap:
		m := v.Map()
		for _, key := range serialize.SortedKeys(m) {
			item := m[key]
			child := el.CreateElement("variant")
			child.CreateAttr("name", key)
			child.CreateAttr("type", item.Kind().String())
			writeVariantXML(child, item)
		}
	default:
		el.CreateAttr("value", v.String())
	}
}

// readVariantXML parses a value of the table-declared type, recursing into
// nested <variant> elements for lists and maps.
func readVariantXML(el *etree.Element, t variant.Type) (variant.Variant, error) {
	switch t {
	case variant.TypeVariantList:
		var items []variant.Variant
		for _, child := range el.SelectElements("variant") {
			item, err := readNestedVariantXML(child)
			if err != nil {
				return variant.None, err
			}
			items = append(items, item)
		}
		return variant.FromList(items), nil
	case variant.TypeVariantMap:
		m := variant.VariantMap{}
		for _, child := range el.SelectElements("variant") {
			item, err := readNestedVariantXML(child)
			if err != nil {
				return variant.None, err
			}
			m[child.SelectAttrValue("name", "")] = item
		}
		return variant.FromMap(m), nil
	default:
		return variant.Parse(t, el.SelectAttrValue("value", ""))
	}
}

func readNestedVariantXML(el *etree.Element) (variant.Variant, error) {
	typeName := el.SelectAttrValue("type", "")
	t, ok := variant.TypeFromName(typeName)
	if !ok {
		return variant.None, fmt.Errorf("%w: %q", variant.ErrUnknownType, typeName)
	}
	return readVariantXML(el, t)
}

// writeVariantJSON renders the text form for scalars and nests typed entry
// objects for lists and maps.
func writeVariantJSON(v variant.Variant) any {
	switch v.Kind() {
	case variant.TypeVariantList:
		items := make([]any, 0, len(v.List()))
		for _, item := range v.List() {
			items = append(items, map[string]any{
				"type":  item.Kind().String(),
				"value": writeVariantJSON(item),
			})
		}
		return items
	case variant.TypeVariantMap:
		out := make(map[string]any, len(v.Map()))
		for key, item := range v.Map() {
			out[key] = map[string]any{
				"type":  item.Kind().String(),
				"value": writeVariantJSON(item),
			}
		}
		return out
	default:
		return v.String()
	}
}

func readVariantJSON(raw any, t variant.Type) (variant.Variant, error) {
	switch t {
	case variant.TypeVariantList:
		entries, _ := raw.([]any)
		var items []variant.Variant
		for _, entry := range entries {
			item, err := readNestedVariantJSON(entry)
			if err != nil {
				return variant.None, err
			}
			items = append(items, item)
		}
		return variant.FromList(items), nil
	case variant.TypeVariantMap:
		entries, _ := raw.(map[string]any)
		m := variant.VariantMap{}
		for key, entry := range entries {
			item, err := readNestedVariantJSON(entry)
			if err != nil {
				return variant.None, err
			}
			m[key] = item
		}
		return variant.FromMap(m), nil
	default:
		s, ok := raw.(string)
		if !ok {
			return variant.None, fmt.Errorf("%w: expected string value for %s", variant.ErrBadValue, t)
		}
		return variant.Parse(t, s)
	}
}

func readNestedVariantJSON(raw any) (variant.Variant, error) {
	entry, ok := raw.(map[string]any)
	if !ok {
		return variant.None, fmt.Errorf("%w: malformed variant entry", variant.ErrBadValue)
	}
	typeName, _ := entry["type"].(string)
	t, ok := variant.TypeFromName(typeName)
	if !ok {
		return variant.None, fmt.Errorf("%w: %q", variant.ErrUnknownType, typeName)
	}
	return readVariantJSON(entry["value"], t)
}

// parseID reads a decimal id attribute, treating malformed text as 0.
func parseID(s string) uint32 {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(id)
}

// jsonID reads an id from a decoded JSON number.
func jsonID(raw any) uint32 {
	f, ok := raw.(float64)
	if !ok || f < 0 {
		return 0
	}
	return uint32(f)
}
