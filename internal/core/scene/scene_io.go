package scene

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"
	"github.com/cespare/xxhash/v2"

	"github.com/zeusync/scenegraph/internal/core/math3d"
	"github.com/zeusync/scenegraph/internal/core/observability/log"
	"github.com/zeusync/scenegraph/pkg/encoding"
)

// fileMagic is the signature of binary scene files.
const fileMagic = "USCN"

var (
	ErrBadMagic        = errors.New("scene: bad file signature")
	ErrChecksum        = errors.New("scene: checksum mismatch")
	ErrAsyncInProgress = errors.New("scene: async load already in progress")
)

// Binary scene file layout: 4-byte "USCN" signature, u64 xxhash checksum of
// the payload, then the root node in Node binary form. The checksum doubles
// as the scene checksum used to match replicating peers.

// Save writes the whole scene as a binary scene file.
func (s *Scene) Save(w io.Writer) error {
	buf := encoding.NewWriter(4096)
	s.Node.saveBinary(buf)

	head := encoding.NewWriter(12)
	head.WriteRaw([]byte(fileMagic))
	head.WriteU64(xxhash.Sum64(buf.Bytes()))
	if _, err := w.Write(head.Bytes()); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Load replaces the scene content from binary scene file data. The scene is
// cleared first; on a malformed payload it is cleared again, so failure
// leaves an empty scene, not a half-built one.
func (s *Scene) Load(data []byte) error {
	payload, checksum, err := s.openBinary(data)
	if err != nil {
		return err
	}
	s.Clear(true, true)

	r := encoding.NewReader(payload)
	resolver := NewSceneResolver()
	fileID := r.ReadU32()
	resolver.AddNode(NodeID(fileID), &s.Node)
	if err := s.Node.loadBinary(r, &resolver, true); err != nil {
		s.Clear(true, true)
		return fmt.Errorf("scene: %w", err)
	}
	s.finishLoading(&resolver, "", checksum)
	return nil
}

// openBinary validates the signature and the payload checksum and returns
// the payload.
func (s *Scene) openBinary(data []byte) ([]byte, uint64, error) {
	if len(data) < len(fileMagic)+8 || string(data[:len(fileMagic)]) != fileMagic {
		return nil, 0, ErrBadMagic
	}
	r := encoding.NewReader(data[len(fileMagic):])
	checksum := r.ReadU64()
	payload := data[len(fileMagic)+8:]
	if xxhash.Sum64(payload) != checksum {
		return nil, 0, ErrChecksum
	}
	return payload, checksum, nil
}

// finishLoading runs the shared post-load steps: reference resolution, the
// ApplyAttributes cascade and the file bookkeeping.
func (s *Scene) finishLoading(resolver *SceneResolver, fileName string, checksum uint64) {
	resolver.Resolve(s.reg, s.logger)
	s.Node.ApplyAttributes()
	s.fileName = fileName
	s.checksum = checksum
	s.logger.Info("scene loaded",
		log.Int("nodes", s.NumNodes()),
		log.Int("components", s.NumComponents()),
		log.Uint64("checksum", checksum))
}

// SaveXML writes the whole scene as an XML document with a <scene> root.
func (s *Scene) SaveXML(w io.Writer) error {
	doc := etree.NewDocument()
	s.Node.saveXMLInto(doc.CreateElement("scene"))
	doc.IndentTabs()
	_, err := doc.WriteTo(w)
	return err
}

// LoadXML replaces the scene content from an XML scene document. A <node>
// root is accepted too, so node prefab files load directly as scenes.
func (s *Scene) LoadXML(data []byte) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return fmt.Errorf("scene: parse xml: %w", err)
	}
	root := doc.Root()
	if root == nil || (root.Tag != "scene" && root.Tag != "node") {
		return ErrBadMagic
	}
	s.Clear(true, true)

	resolver := NewSceneResolver()
	resolver.AddNode(NodeID(parseID(root.SelectAttrValue("id", "0"))), &s.Node)
	s.Node.loadXMLFrom(root, &resolver, true)
	s.finishLoading(&resolver, "", xxhash.Sum64(data))
	return nil
}

// SaveJSON writes the whole scene as an indented JSON document.
func (s *Scene) SaveJSON(w io.Writer) error {
	return s.Node.SaveJSON(w)
}

// LoadJSON replaces the scene content from a JSON scene document.
func (s *Scene) LoadJSON(data []byte) error {
	root, err := decodeJSONRoot(data)
	if err != nil {
		return err
	}
	s.Clear(true, true)

	resolver := NewSceneResolver()
	resolver.AddNode(NodeID(jsonID(root["id"])), &s.Node)
	s.Node.loadJSONFrom(root, &resolver, true)
	s.finishLoading(&resolver, "", xxhash.Sum64(data))
	return nil
}

// decodeJSONRoot parses scene or node JSON data into its root object.
func decodeJSONRoot(data []byte) (map[string]any, error) {
	var root map[string]any
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("scene: parse json: %w", err)
	}
	return root, nil
}

// LoadFile loads a scene file, picking the codec from the extension: .xml
// and .json load as text, anything else as binary.
func (s *Scene) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml":
		err = s.LoadXML(data)
	case ".json":
		err = s.LoadJSON(data)
	default:
		err = s.Load(data)
	}
	if err != nil {
		return err
	}
	s.fileName = path
	return nil
}

// SaveFile saves the scene to a file, picking the codec from the extension
// the way LoadFile does.
func (s *Scene) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml":
		err = s.SaveXML(f)
	case ".json":
		err = s.SaveJSON(f)
	default:
		err = s.Save(f)
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		s.fileName = path
	}
	return err
}

// Instantiate creates a node subtree from binary node data (Node.Save
// output or a scene file payload root) under the scene root, at the given
// position and rotation. References inside the instantiated content are
// remapped; the stored transform of the subtree root is overridden.
func (s *Scene) Instantiate(data []byte, position math3d.Vector3, rotation math3d.Quaternion, mode CreateMode) (*Node, error) {
	r := encoding.NewReader(data)
	resolver := NewSceneResolver()
	fileID := r.ReadU32()
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("scene: %w", err)
	}
	node := s.Node.CreateChild("", mode)
	resolver.AddNode(NodeID(fileID), node)
	if err := node.loadBinary(r, &resolver, true); err != nil {
		node.Remove()
		return nil, fmt.Errorf("scene: %w", err)
	}
	s.finishInstantiate(node, &resolver, position, rotation)
	return node, nil
}

// InstantiateXML creates a node subtree from an XML node document.
func (s *Scene) InstantiateXML(data []byte, position math3d.Vector3, rotation math3d.Quaternion, mode CreateMode) (*Node, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("scene: parse xml: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, ErrBadMagic
	}
	resolver := NewSceneResolver()
	node := s.Node.CreateChild("", mode)
	resolver.AddNode(NodeID(parseID(root.SelectAttrValue("id", "0"))), node)
	node.loadXMLFrom(root, &resolver, true)
	s.finishInstantiate(node, &resolver, position, rotation)
	return node, nil
}

// InstantiateJSON creates a node subtree from a JSON node document.
func (s *Scene) InstantiateJSON(data []byte, position math3d.Vector3, rotation math3d.Quaternion, mode CreateMode) (*Node, error) {
	root, err := decodeJSONRoot(data)
	if err != nil {
		return nil, err
	}
	resolver := NewSceneResolver()
	node := s.Node.CreateChild("", mode)
	resolver.AddNode(NodeID(jsonID(root["id"])), node)
	node.loadJSONFrom(root, &resolver, true)
	s.finishInstantiate(node, &resolver, position, rotation)
	return node, nil
}

func (s *Scene) finishInstantiate(node *Node, resolver *SceneResolver, position math3d.Vector3, rotation math3d.Quaternion) {
	node.SetPosition(position)
	node.SetRotation(rotation)
	resolver.Resolve(s.reg, s.logger)
	node.ApplyAttributes()
}
