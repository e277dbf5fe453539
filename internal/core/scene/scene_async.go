package scene

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/scenegraph/internal/core/events/bus"
	"github.com/zeusync/scenegraph/internal/core/observability/log"
	"github.com/zeusync/scenegraph/internal/core/registry"
	"github.com/zeusync/scenegraph/internal/core/resource"
	"github.com/zeusync/scenegraph/internal/core/serialize"
	"github.com/zeusync/scenegraph/internal/core/variant"
	"github.com/zeusync/scenegraph/pkg/encoding"
)

// LoadMode selects what an async load brings in.
type LoadMode uint8

const (
	// LoadResourcesOnly warms the resource cache with everything the file
	// references without touching the scene tree.
	LoadResourcesOnly LoadMode = iota
	// LoadScene builds the tree without preloading resources.
	LoadScene
	// LoadSceneAndResources preloads referenced resources first, then
	// builds the tree.
	LoadSceneAndResources
)

type asyncFormat uint8

const (
	formatBinary asyncFormat = iota
	formatXML
	formatJSON
)

// asyncLoadState is the resumable cursor of an in-flight async load. The
// root's attributes and components are loaded synchronously at start; each
// Update tick then consumes whole root-level child subtrees until the
// per-tick budget runs out.
type asyncLoadState struct {
	mode     LoadMode
	format   asyncFormat
	fileName string
	checksum uint64

	resolver SceneResolver

	reader       *encoding.Reader
	xmlChildren  []*etree.Element
	jsonChildren []map[string]any
	next         int

	loadedNodes     int
	totalNodes      int
	loadedResources int
	totalResources  int

	pending map[string]struct{}
	sub     bus.Subscription
}

// IsAsyncLoading reports whether an async load is in flight.
func (s *Scene) IsAsyncLoading() bool { return s.async != nil }

// AsyncProgress reports load completion in [0, 1]. It is 1 whenever no
// async load is in flight.
func (s *Scene) AsyncProgress() float32 {
	st := s.async
	if st == nil {
		return 1
	}
	total := st.totalNodes + st.totalResources
	if total == 0 {
		return 1
	}
	p := float32(st.loadedNodes+st.loadedResources) / float32(total)
	if p > 1 {
		p = 1
	}
	return p
}

// StopAsyncLoading aborts an in-flight async load. The part of the tree
// built so far stays; callers wanting an empty scene call Clear afterwards.
func (s *Scene) StopAsyncLoading() {
	if s.async == nil {
		return
	}
	s.logger.Info("async load stopped",
		log.Int("loaded_nodes", s.async.loadedNodes),
		log.Int("total_nodes", s.async.totalNodes))
	s.dropAsync()
}

func (s *Scene) dropAsync() {
	if s.async.sub != nil {
		_ = s.async.sub.Cancel()
	}
	s.async = nil
}

// LoadAsync starts loading binary scene data incrementally. The signature
// and checksum are validated and the root's own content loaded before the
// call returns; child subtrees stream in across subsequent Update ticks.
// Mode LoadResourcesOnly leaves the current tree untouched.
func (s *Scene) LoadAsync(data []byte, mode LoadMode) error {
	if s.async != nil {
		return ErrAsyncInProgress
	}
	payload, checksum, err := s.openBinary(data)
	if err != nil {
		return err
	}

	st := &asyncLoadState{mode: mode, format: formatBinary, checksum: checksum}
	if mode == LoadResourcesOnly {
		s.preloadResources(st, s.scanBinaryResources(payload))
		s.beginAsync(st)
		return nil
	}

	s.Clear(true, true)
	st.resolver = NewSceneResolver()
	r := encoding.NewReader(payload)
	fileID := r.ReadU32()
	st.resolver.AddNode(NodeID(fileID), &s.Node)
	if err := s.Node.loadBinary(r, &st.resolver, false); err != nil {
		s.Clear(true, true)
		return fmt.Errorf("scene: %w", err)
	}
	st.totalNodes = int(r.ReadVLE())
	if err := r.Err(); err != nil {
		s.Clear(true, true)
		return fmt.Errorf("scene: %w", err)
	}
	st.reader = r
	if mode == LoadSceneAndResources {
		s.preloadResources(st, s.scanBinaryResources(payload))
	}
	s.beginAsync(st)
	return nil
}

// LoadAsyncXML starts loading an XML scene document incrementally.
func (s *Scene) LoadAsyncXML(data []byte, mode LoadMode) error {
	if s.async != nil {
		return ErrAsyncInProgress
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return fmt.Errorf("scene: parse xml: %w", err)
	}
	root := doc.Root()
	if root == nil || (root.Tag != "scene" && root.Tag != "node") {
		return ErrBadMagic
	}

	st := &asyncLoadState{mode: mode, format: formatXML, checksum: xxhash.Sum64(data)}
	if mode == LoadResourcesOnly {
		s.preloadResources(st, s.scanXMLResources(root))
		s.beginAsync(st)
		return nil
	}

	s.Clear(true, true)
	st.resolver = NewSceneResolver()
	st.resolver.AddNode(NodeID(parseID(root.SelectAttrValue("id", "0"))), &s.Node)
	s.Node.loadXMLFrom(root, &st.resolver, false)
	st.xmlChildren = root.SelectElements("node")
	st.totalNodes = len(st.xmlChildren)
	if mode == LoadSceneAndResources {
		s.preloadResources(st, s.scanXMLResources(root))
	}
	s.beginAsync(st)
	return nil
}

// LoadAsyncJSON starts loading a JSON scene document incrementally.
func (s *Scene) LoadAsyncJSON(data []byte, mode LoadMode) error {
	if s.async != nil {
		return ErrAsyncInProgress
	}
	root, err := decodeJSONRoot(data)
	if err != nil {
		return err
	}

	st := &asyncLoadState{mode: mode, format: formatJSON, checksum: xxhash.Sum64(data)}
	if mode == LoadResourcesOnly {
		s.preloadResources(st, s.scanJSONResources(root))
		s.beginAsync(st)
		return nil
	}

	s.Clear(true, true)
	st.resolver = NewSceneResolver()
	st.resolver.AddNode(NodeID(jsonID(root["id"])), &s.Node)
	s.Node.loadJSONFrom(root, &st.resolver, false)
	children, _ := root["children"].([]any)
	for _, raw := range children {
		if childObj, ok := raw.(map[string]any); ok {
			st.jsonChildren = append(st.jsonChildren, childObj)
		}
	}
	st.totalNodes = len(st.jsonChildren)
	if mode == LoadSceneAndResources {
		s.preloadResources(st, s.scanJSONResources(root))
	}
	s.beginAsync(st)
	return nil
}

// LoadAsyncFile starts an async load from a file, picking the codec from
// the extension the way LoadFile does.
func (s *Scene) LoadAsyncFile(path string, mode LoadMode) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml":
		err = s.LoadAsyncXML(data, mode)
	case ".json":
		err = s.LoadAsyncJSON(data, mode)
	default:
		err = s.LoadAsync(data, mode)
	}
	if err == nil && s.async != nil && s.async.mode != LoadResourcesOnly {
		s.async.fileName = path
	}
	return err
}

func (s *Scene) beginAsync(st *asyncLoadState) {
	s.async = st
	s.logger.Info("async load started",
		log.Int("total_nodes", st.totalNodes),
		log.Int("total_resources", st.totalResources))
	// Nothing may be pending at all: an empty scene or one with every
	// resource already cached finishes on the first Update tick, never
	// synchronously inside the start call.
}

// preloadResources queues the scanned references for background loading
// and subscribes to completion events. Refs that are already cached or
// unloadable never count towards the total.
func (s *Scene) preloadResources(st *asyncLoadState, refs []variant.ResourceRef) {
	if s.cache == nil || s.events == nil || len(refs) == 0 {
		return
	}
	st.pending = make(map[string]struct{})
	for _, ref := range refs {
		if ref.Type == "" || ref.Name == "" {
			continue
		}
		if !s.cache.BackgroundLoad(ref.Type, ref.Name, 0) {
			continue
		}
		st.pending[ref.String()] = struct{}{}
	}
	st.totalResources = len(st.pending)
	if st.totalResources == 0 {
		return
	}
	sub, err := s.events.Subscribe(resource.EventBackgroundLoaded, func(event bus.Event) error {
		ev, ok := event.Data().(resource.ResourceEvent)
		if !ok || s.async != st {
			return nil
		}
		key := variant.ResourceRef{Type: ev.TypeName, Name: ev.Name}.String()
		if _, mine := st.pending[key]; mine {
			delete(st.pending, key)
			st.loadedResources++
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("resource preload disabled", log.Error(err))
		st.pending = nil
		st.totalResources = 0
		return
	}
	st.sub = sub
}

// updateAsyncLoading advances the in-flight load by one tick: wait for
// preloaded resources, then consume child subtrees until the wall-clock
// budget is spent.
func (s *Scene) updateAsyncLoading() {
	st := s.async

	if st.loadedResources < st.totalResources {
		// Completion events fire from inside FinishBackgroundLoading, on
		// this goroutine.
		s.cache.FinishBackgroundLoading()
		if st.loadedResources < st.totalResources {
			s.publishAsyncProgress()
			return
		}
	}
	if st.mode == LoadResourcesOnly {
		s.finishAsyncLoading()
		return
	}

	deadline := time.Now().Add(time.Duration(s.asyncLoadingMs) * time.Millisecond)
	for st.loadedNodes < st.totalNodes {
		switch st.format {
		case formatBinary:
			if err := s.Node.loadChildBinary(st.reader, &st.resolver); err != nil {
				s.logger.Error("async load failed", log.Error(err),
					log.Int("loaded_nodes", st.loadedNodes))
				s.dropAsync()
				return
			}
		case formatXML:
			s.Node.loadChildXML(st.xmlChildren[st.next], &st.resolver)
			st.next++
		case formatJSON:
			s.Node.loadChildJSON(st.jsonChildren[st.next], &st.resolver)
			st.next++
		}
		st.loadedNodes++
		if time.Now().After(deadline) {
			break
		}
	}

	if st.loadedNodes >= st.totalNodes {
		s.finishAsyncLoading()
		return
	}
	s.publishAsyncProgress()
}

func (s *Scene) finishAsyncLoading() {
	st := s.async
	if st.mode != LoadResourcesOnly {
		s.finishLoading(&st.resolver, st.fileName, st.checksum)
	}
	s.dropAsync()
	s.publish(EventAsyncFinished, AsyncFinishedEvent{Scene: s})
}

func (s *Scene) publishAsyncProgress() {
	st := s.async
	s.publish(EventAsyncProgress, AsyncProgressEvent{
		Scene:           s,
		Progress:        s.AsyncProgress(),
		LoadedNodes:     st.loadedNodes,
		TotalNodes:      st.totalNodes,
		LoadedResources: st.loadedResources,
		TotalResources:  st.totalResources,
	})
}

// Resource reference scanning. The scan walks the serialized form with the
// attribute tables, collecting every ResourceRef and ResourceRefList value
// so the cache can warm them before the tree builds. Unknown component
// types cannot be interpreted and contribute nothing.

func collectRefs(v variant.Variant, out *[]variant.ResourceRef) {
	switch v.Kind() {
	case variant.TypeResourceRef:
		*out = append(*out, v.ResourceRef())
	case variant.TypeResourceRefList:
		list := v.ResourceRefList()
		for _, name := range list.Names {
			*out = append(*out, variant.ResourceRef{Type: list.Type, Name: name})
		}
	case variant.TypeVariantList:
		for _, item := range v.List() {
			collectRefs(item, out)
		}
	case variant.TypeVariantMap:
		for _, item := range v.Map() {
			collectRefs(item, out)
		}
	}
}

// scanBinaryResources re-parses the payload positionally without building
// any objects. Oversized or truncated data stops the scan; the load proper
// reports the error.
func (s *Scene) scanBinaryResources(payload []byte) []variant.ResourceRef {
	var refs []variant.ResourceRef
	r := encoding.NewReader(payload)
	s.scanNodeBinary(r, &refs, "Scene")
	return refs
}

func (s *Scene) scanNodeBinary(r *encoding.Reader, refs *[]variant.ResourceRef, typeName string) {
	r.ReadU32() // id
	s.scanAttributesBinary(r, refs, s.reg.Attributes(typeName))

	numComponents := r.ReadVLE()
	for i := uint64(0); i < numComponents && r.Err() == nil; i++ {
		block := r.ReadBlob()
		if r.Err() != nil {
			return
		}
		cr := encoding.NewReader(block)
		compType := cr.ReadString()
		cr.ReadU32() // id
		if cr.Err() == nil && s.reg.Known(compType) {
			s.scanAttributesBinary(cr, refs, s.reg.Attributes(compType))
		}
	}

	numChildren := r.ReadVLE()
	for i := uint64(0); i < numChildren && r.Err() == nil; i++ {
		s.scanNodeBinary(r, refs, "Node")
	}
}

func (s *Scene) scanAttributesBinary(r *encoding.Reader, refs *[]variant.ResourceRef, attrs []registry.AttributeInfo) {
	for _, attr := range attrs {
		if !attr.Mode.Has(registry.ModeFile) {
			continue
		}
		v, err := serialize.ReadVariantData(r, attr.Type)
		if err != nil {
			return
		}
		collectRefs(v, refs)
	}
}

// scanXMLResources walks <attribute> elements, typing each value through
// the owning element's attribute table. Only flat value strings are
// scanned; structural variants nest resource refs too rarely to matter for
// warming.
func (s *Scene) scanXMLResources(el *etree.Element) []variant.ResourceRef {
	var refs []variant.ResourceRef
	s.scanXMLElement(el, "Scene", &refs)
	return refs
}

func (s *Scene) scanXMLElement(el *etree.Element, typeName string, refs *[]variant.ResourceRef) {
	s.scanAttributeValues(el, typeName, refs)
	for _, compEl := range el.SelectElements("component") {
		compType := compEl.SelectAttrValue("type", "")
		if s.reg.Known(compType) {
			s.scanAttributeValues(compEl, compType, refs)
		}
	}
	for _, childEl := range el.SelectElements("node") {
		s.scanXMLElement(childEl, "Node", refs)
	}
}

func (s *Scene) scanAttributeValues(el *etree.Element, typeName string, refs *[]variant.ResourceRef) {
	attrs := s.reg.Attributes(typeName)
	for _, attrEl := range el.SelectElements("attribute") {
		name := attrEl.SelectAttrValue("name", "")
		value := attrEl.SelectAttrValue("value", "")
		for _, info := range attrs {
			if info.Name != name {
				continue
			}
			scanTextValue(info.Type, value, refs)
			break
		}
	}
}

// scanJSONResources mirrors the XML scan over decoded JSON objects.
func (s *Scene) scanJSONResources(root map[string]any) []variant.ResourceRef {
	var refs []variant.ResourceRef
	s.scanJSONObject(root, "Scene", &refs)
	return refs
}

func (s *Scene) scanJSONObject(obj map[string]any, typeName string, refs *[]variant.ResourceRef) {
	s.scanJSONAttributes(obj, typeName, refs)
	comps, _ := obj["components"].([]any)
	for _, raw := range comps {
		compObj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		compType, _ := compObj["type"].(string)
		if s.reg.Known(compType) {
			s.scanJSONAttributes(compObj, compType, refs)
		}
	}
	children, _ := obj["children"].([]any)
	for _, raw := range children {
		if childObj, ok := raw.(map[string]any); ok {
			s.scanJSONObject(childObj, "Node", refs)
		}
	}
}

func (s *Scene) scanJSONAttributes(obj map[string]any, typeName string, refs *[]variant.ResourceRef) {
	attrs := s.reg.Attributes(typeName)
	entries, _ := obj["attributes"].([]any)
	for _, raw := range entries {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := entry["name"].(string)
		value, _ := entry["value"].(string)
		for _, info := range attrs {
			if info.Name != name {
				continue
			}
			scanTextValue(info.Type, value, refs)
			break
		}
	}
}

func scanTextValue(t variant.Type, value string, refs *[]variant.ResourceRef) {
	switch t {
	case variant.TypeResourceRef:
		*refs = append(*refs, variant.ParseResourceRef(value))
	case variant.TypeResourceRefList:
		list := variant.ParseResourceRefList(value)
		for _, name := range list.Names {
			*refs = append(*refs, variant.ResourceRef{Type: list.Type, Name: name})
		}
	}
}
