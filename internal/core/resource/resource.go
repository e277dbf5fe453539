// Package resource implements the file-backed resource layer: a cache with
// search directories, asynchronous background loading, dependency-driven
// reloads, and the XML/JSON file resource types scene content is built from.
package resource

import (
	"io"
	"path"
	"strings"
)

// Resource is a named, cacheable asset. Load receives the raw file bytes
// plus the owning cache so composite resources can pull in what they
// reference while parsing.
type Resource interface {
	TypeName() string
	Name() string
	SetName(name string)
	MemoryUse() int

	Load(data []byte, c *Cache) error
	Save(w io.Writer) error
}

// Base carries the bookkeeping shared by all resource types. Embed it and
// implement TypeName/Load/Save.
type Base struct {
	name      string
	memoryUse int
}

func (b *Base) Name() string         { return b.name }
func (b *Base) SetName(name string)  { b.name = name }
func (b *Base) MemoryUse() int       { return b.memoryUse }
func (b *Base) SetMemoryUse(use int) { b.memoryUse = use }

// SanitizeName normalizes a resource name to forward slashes with no
// leading separators, so lookups and dependency keys agree.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Clean(strings.TrimSpace(name))
	name = strings.TrimPrefix(name, "./")
	return strings.TrimPrefix(name, "/")
}

// BinaryFile is the fallback resource type: raw bytes with no parsing.
// Preloading unknown resource types lands here.
type BinaryFile struct {
	Base
	Data []byte
}

func NewBinaryFile() *BinaryFile { return &BinaryFile{} }

func (*BinaryFile) TypeName() string { return "BinaryFile" }

func (b *BinaryFile) Load(data []byte, _ *Cache) error {
	b.Data = data
	b.SetMemoryUse(len(data))
	return nil
}

func (b *BinaryFile) Save(w io.Writer) error {
	_, err := w.Write(b.Data)
	return err
}
