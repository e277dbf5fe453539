package resource

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zeusync/scenegraph/internal/core/observability/log"
)

func mustParseXML(t *testing.T, src string) *XMLFile {
	t.Helper()
	x := NewXMLFile()
	require.NoError(t, x.Load([]byte(src), nil))
	return x
}

func childIDs(x *XMLFile) []string {
	var out []string
	for _, ch := range x.Root().ChildElements() {
		out = append(out, ch.SelectAttrValue("id", ""))
	}
	return out
}

const patchBase = `<scene><node id="4"/><node id="5"/><node id="6"/></scene>`

func TestPatchAddAfter(t *testing.T) {
	doc := mustParseXML(t, patchBase)
	patch := mustParseXML(t, `<patch>
		<add sel="/scene/node[@id='5']" pos="after"><node id="9"/><node id="10"/></add>
	</patch>`)

	require.NoError(t, doc.Patch(patch))
	require.Equal(t, []string{"4", "5", "9", "10", "6"}, childIDs(doc))
}

func TestPatchAddPositions(t *testing.T) {
	doc := mustParseXML(t, patchBase)
	patch := mustParseXML(t, `<patch>
		<add sel="/scene"><node id="7"/></add>
		<add sel="/scene" pos="prepend"><node id="1"/><node id="2"/></add>
		<add sel="/scene/node[@id='4']" pos="before"><node id="3"/></add>
	</patch>`)

	require.NoError(t, doc.Patch(patch))
	require.Equal(t, []string{"1", "2", "3", "4", "5", "6", "7"}, childIDs(doc))
}

func TestPatchAddAttribute(t *testing.T) {
	doc := mustParseXML(t, patchBase)
	patch := mustParseXML(t, `<patch>
		<add sel="/scene" type="@version">3</add>
	</patch>`)

	require.NoError(t, doc.Patch(patch))
	require.Equal(t, "3", doc.Root().SelectAttrValue("version", ""))
}

func TestPatchReplace(t *testing.T) {
	doc := mustParseXML(t, `<scene><node id="5" name="old"/><node id="6"/></scene>`)
	patch := mustParseXML(t, `<patch>
		<replace sel="/scene/node[@id='6']"><node id="60"/></replace>
		<replace sel="/scene/node[@id='5']/@name">patched</replace>
	</patch>`)

	require.NoError(t, doc.Patch(patch))
	require.Equal(t, []string{"5", "60"}, childIDs(doc))
	require.Equal(t, "patched", doc.Root().ChildElements()[0].SelectAttrValue("name", ""))
}

func TestPatchRemove(t *testing.T) {
	doc := mustParseXML(t, `<scene><node id="5" name="gone"/><node id="6"/></scene>`)
	patch := mustParseXML(t, `<patch>
		<remove sel="/scene/node[@id='5']/@name"/>
		<remove sel="/scene/node[@id='6']"/>
	</patch>`)

	require.NoError(t, doc.Patch(patch))
	require.Equal(t, []string{"5"}, childIDs(doc))
	require.Nil(t, doc.Root().ChildElements()[0].SelectAttr("name"))
}

func TestPatchBadSelectorContinues(t *testing.T) {
	doc := mustParseXML(t, patchBase)
	patch := mustParseXML(t, `<patch>
		<remove sel="/scene/node[@id='99']"/>
		<frobnicate sel="/scene"/>
		<remove sel="/scene/node[@id='5']"/>
	</patch>`)

	err := doc.Patch(patch)
	require.Error(t, err)
	require.Contains(t, err.Error(), "matched nothing")
	require.Contains(t, err.Error(), "unknown patch operation")
	// The valid removal still went through.
	require.Equal(t, []string{"4", "6"}, childIDs(doc))
}

func TestXMLFileInherit(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "base.xml", patchBase)
	writeTestFile(t, dir, "derived.xml", `<scene inherit="base.xml">
		<add sel="/scene/node[@id='5']" pos="after"><node id="9"/></add>
		<remove sel="/scene/node[@id='4']"/>
	</scene>`)

	c := NewCache(log.Nop(), nil)
	require.NoError(t, c.AddResourceDir(dir))

	res, err := c.Get("XMLFile", "derived.xml")
	require.NoError(t, err)
	derived := res.(*XMLFile)
	require.Equal(t, []string{"5", "9", "6"}, childIDs(derived))

	// The base stays cached and untouched by the patch.
	baseRes, err := c.Get("XMLFile", "base.xml")
	require.NoError(t, err)
	require.Equal(t, []string{"4", "5", "6"}, childIDs(baseRes.(*XMLFile)))
}

func TestXMLFileInheritReloadCascade(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "base.xml", patchBase)
	writeTestFile(t, dir, "derived.xml", `<scene inherit="base.xml">
		<remove sel="/scene/node[@id='4']"/>
	</scene>`)

	c := NewCache(log.Nop(), nil)
	require.NoError(t, c.AddResourceDir(dir))

	res, err := c.Get("XMLFile", "derived.xml")
	require.NoError(t, err)
	require.Equal(t, []string{"5", "6"}, childIDs(res.(*XMLFile)))

	writeTestFile(t, dir, "base.xml", `<scene><node id="4"/><node id="5"/><node id="6"/><node id="7"/></scene>`)
	baseRes, err := c.Get("XMLFile", "base.xml")
	require.NoError(t, err)
	require.NoError(t, c.Reload(baseRes))

	// Same resource instance, repatched against the new base.
	require.Equal(t, []string{"5", "6", "7"}, childIDs(res.(*XMLFile)))
}

func TestXMLFileSaveLoadRoundTrip(t *testing.T) {
	doc := mustParseXML(t, `<scene asyncLoading="false"><node id="1" name="root"><component type="Probe"/></node></scene>`)

	var buf bytes.Buffer
	require.NoError(t, doc.Save(&buf))

	again := mustParseXML(t, buf.String())
	require.Equal(t, "scene", again.Root().Tag)
	node := again.Root().ChildElements()[0]
	require.Equal(t, "root", node.SelectAttrValue("name", ""))
	require.Equal(t, "Probe", node.ChildElements()[0].SelectAttrValue("type", ""))
}

func writeTestFile(t *testing.T, dir, name, content string) {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}
