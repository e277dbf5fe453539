package resource

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/beevik/etree"

	"github.com/zeusync/scenegraph/internal/core/observability/log"
)

// XMLFile is an XML document resource. A root element carrying an
// inherit="<name>" attribute turns the document into a patch: the named
// base file is loaded through the cache, copied, and the child elements
// of the root are applied to the copy as patch operations.
//
// Patch operations follow the add/replace/remove dialect:
//
//	<add sel="/scene/node[@id='5']" pos="after"><node id="9"/></add>
//	<add sel="/scene" type="@version">3</add>
//	<replace sel="/scene/node[@id='5']/@name">patched</replace>
//	<remove sel="/scene/node[@id='7']"/>
//
// Selectors use etree path syntax, with a trailing /@name step selecting
// an attribute of the final element.
type XMLFile struct {
	Base
	doc *etree.Document
}

// NewXMLFile creates an empty XML resource.
func NewXMLFile() *XMLFile {
	return &XMLFile{doc: etree.NewDocument()}
}

func (x *XMLFile) TypeName() string { return "XMLFile" }

// Document returns the underlying DOM.
func (x *XMLFile) Document() *etree.Document { return x.doc }

// Root returns the document's root element, or nil if the file is empty.
func (x *XMLFile) Root() *etree.Element {
	if x.doc == nil {
		return nil
	}
	return x.doc.Root()
}

// CreateRoot resets the document to a single empty root element.
func (x *XMLFile) CreateRoot(name string) *etree.Element {
	x.doc = etree.NewDocument()
	return x.doc.CreateElement(name)
}

// Load parses the document and resolves inheritance. Patch operations
// that fail are skipped; the failures are reported through the cache log
// rather than failing the load, so one bad selector cannot take the
// whole resource down.
func (x *XMLFile) Load(data []byte, c *Cache) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return fmt.Errorf("parse xml: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return errors.New("xml file has no root element")
	}
	x.doc = doc
	x.SetMemoryUse(len(data))

	inherit := root.SelectAttrValue("inherit", "")
	if inherit == "" {
		return nil
	}
	if c == nil {
		return fmt.Errorf("cannot inherit %q without a cache", inherit)
	}
	baseRes, err := c.Get("XMLFile", inherit)
	if err != nil {
		return fmt.Errorf("inherit %q: %w", inherit, err)
	}
	base, ok := baseRes.(*XMLFile)
	if !ok {
		return fmt.Errorf("inherit %q: not an xml file", inherit)
	}

	merged := base.doc.Copy()
	if err = applyPatch(merged, root); err != nil {
		c.log.Warn("xml patch", log.ResourceName(x.Name()), log.Error(err))
	}
	x.doc = merged
	c.StoreDependency(x, inherit)
	return nil
}

// Save writes the document with tab indentation.
func (x *XMLFile) Save(w io.Writer) error {
	x.doc.IndentTabs()
	_, err := x.doc.WriteTo(w)
	return err
}

// Patch applies another file's root-level operations to this document.
// All operations are attempted; the returned error joins the failures.
func (x *XMLFile) Patch(patch *XMLFile) error {
	if patch == nil || patch.Root() == nil {
		return errors.New("patch has no root element")
	}
	return applyPatch(x.doc, patch.Root())
}

func applyPatch(doc *etree.Document, patchRoot *etree.Element) error {
	var errs error
	for _, op := range patchRoot.ChildElements() {
		var err error
		switch op.Tag {
		case "add":
			err = patchAdd(doc, op)
		case "replace":
			err = patchReplace(doc, op)
		case "remove":
			err = patchRemove(doc, op)
		default:
			err = fmt.Errorf("unknown patch operation %q", op.Tag)
		}
		errs = errors.Join(errs, err)
	}
	return errs
}

// findTarget resolves an operation selector to its element and, when the
// selector ends in /@name, the attribute name.
func findTarget(doc *etree.Document, sel string) (*etree.Element, string, error) {
	if sel == "" {
		return nil, "", errors.New("patch operation has no sel")
	}
	nodeSel, attr := sel, ""
	if i := strings.LastIndex(sel, "/@"); i >= 0 {
		nodeSel, attr = sel[:i], sel[i+2:]
	}
	path, err := etree.CompilePath(nodeSel)
	if err != nil {
		return nil, "", fmt.Errorf("sel %q: %w", sel, err)
	}
	tgt := doc.FindElementPath(path)
	if tgt == nil {
		return nil, "", fmt.Errorf("sel %q matched nothing", sel)
	}
	return tgt, attr, nil
}

func patchAdd(doc *etree.Document, op *etree.Element) error {
	sel := op.SelectAttrValue("sel", "")
	tgt, attr, err := findTarget(doc, sel)
	if err != nil {
		return err
	}
	if attr != "" {
		return fmt.Errorf("add sel %q must select an element", sel)
	}

	if typ := op.SelectAttrValue("type", ""); strings.HasPrefix(typ, "@") {
		tgt.CreateAttr(strings.TrimPrefix(typ, "@"), op.Text())
		return nil
	}

	switch pos := op.SelectAttrValue("pos", ""); pos {
	case "", "append":
		for _, ch := range op.ChildElements() {
			tgt.AddChild(ch.Copy())
		}
	case "prepend":
		at := 0
		for _, ch := range op.ChildElements() {
			tgt.InsertChildAt(at, ch.Copy())
			at++
		}
	case "before":
		par := tgt.Parent()
		if par == nil {
			return fmt.Errorf("add sel %q target has no parent", sel)
		}
		for _, ch := range op.ChildElements() {
			par.InsertChildAt(tgt.Index(), ch.Copy())
		}
	case "after":
		par := tgt.Parent()
		if par == nil {
			return fmt.Errorf("add sel %q target has no parent", sel)
		}
		at := tgt.Index() + 1
		for _, ch := range op.ChildElements() {
			par.InsertChildAt(at, ch.Copy())
			at++
		}
	default:
		return fmt.Errorf("unknown add pos %q", pos)
	}
	return nil
}

func patchReplace(doc *etree.Document, op *etree.Element) error {
	sel := op.SelectAttrValue("sel", "")
	tgt, attr, err := findTarget(doc, sel)
	if err != nil {
		return err
	}
	if attr != "" {
		tgt.CreateAttr(attr, op.Text())
		return nil
	}

	children := op.ChildElements()
	if len(children) == 0 {
		return fmt.Errorf("replace sel %q has no replacement element", sel)
	}
	par := tgt.Parent()
	if par == nil {
		return fmt.Errorf("replace sel %q target has no parent", sel)
	}
	par.InsertChildAt(tgt.Index(), children[0].Copy())
	par.RemoveChild(tgt)
	return nil
}

func patchRemove(doc *etree.Document, op *etree.Element) error {
	sel := op.SelectAttrValue("sel", "")
	tgt, attr, err := findTarget(doc, sel)
	if err != nil {
		return err
	}
	if attr != "" {
		tgt.RemoveAttr(attr)
		return nil
	}
	if par := tgt.Parent(); par != nil {
		par.RemoveChild(tgt)
	}
	return nil
}
