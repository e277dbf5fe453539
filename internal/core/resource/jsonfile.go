package resource

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// JSONFile is a JSON document resource holding the decoded value tree.
type JSONFile struct {
	Base
	root any
}

// NewJSONFile creates an empty JSON resource with an object root.
func NewJSONFile() *JSONFile {
	return &JSONFile{root: map[string]any{}}
}

func (j *JSONFile) TypeName() string { return "JSONFile" }

// Root returns the decoded document root.
func (j *JSONFile) Root() any { return j.root }

// SetRoot replaces the document root.
func (j *JSONFile) SetRoot(root any) { j.root = root }

func (j *JSONFile) Load(data []byte, _ *Cache) error {
	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("parse json: %w", err)
	}
	j.root = root
	j.SetMemoryUse(len(data))
	return nil
}

func (j *JSONFile) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(j.root)
}

// Lookup walks a dot-separated path through objects and arrays, e.g.
// "nodes.0.name". An empty path returns the root.
func (j *JSONFile) Lookup(path string) (any, bool) {
	cur := j.root
	if path == "" {
		return cur, true
	}
	for _, step := range strings.Split(path, ".") {
		switch v := cur.(type) {
		case map[string]any:
			next, ok := v[step]
			if !ok {
				return nil, false
			}
			cur = next
		case []any:
			idx, err := strconv.Atoi(step)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			cur = v[idx]
		default:
			return nil, false
		}
	}
	return cur, true
}

// String returns the string at path, or def when absent or mistyped.
func (j *JSONFile) String(path, def string) string {
	if v, ok := j.Lookup(path); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Number returns the number at path, or def when absent or mistyped.
func (j *JSONFile) Number(path string, def float64) float64 {
	if v, ok := j.Lookup(path); ok {
		if f, ok := v.(float64); ok {
			return f
		}
	}
	return def
}

// Bool returns the boolean at path, or def when absent or mistyped.
func (j *JSONFile) Bool(path string, def bool) bool {
	if v, ok := j.Lookup(path); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}
