package resource

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zeusync/scenegraph/internal/core/events/bus"
	"github.com/zeusync/scenegraph/internal/core/observability/log"
)

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"scenes\\base.xml":      "scenes/base.xml",
		"./scenes/../base.xml":  "base.xml",
		"/data/scenes/town.xml": "data/scenes/town.xml",
		"data//scenes/town.xml": "data/scenes/town.xml",
		"town.xml":              "town.xml",
	}
	for in, want := range cases {
		require.Equal(t, want, SanitizeName(in), "input %q", in)
	}
}

func TestCacheGetCachesInstance(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "data/level.xml", `<scene/>`)

	c := NewCache(log.Nop(), nil)
	require.NoError(t, c.AddResourceDir(dir))

	first, err := c.Get("XMLFile", "data/level.xml")
	require.NoError(t, err)
	second, err := c.Get("XMLFile", "data\\level.xml")
	require.NoError(t, err)
	require.Same(t, first, second)
}

func TestCacheErrors(t *testing.T) {
	c := NewCache(log.Nop(), nil)
	require.NoError(t, c.AddResourceDir(t.TempDir()))

	_, err := c.Get("Mesh", "a.mdl")
	require.ErrorIs(t, err, ErrUnknownResource)

	_, err = c.Get("XMLFile", "missing.xml")
	require.ErrorIs(t, err, ErrNotFound)
	require.False(t, c.Exists("missing.xml"))
}

func TestCacheReleaseDropsInstance(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "level.xml", `<scene/>`)

	c := NewCache(log.Nop(), nil)
	require.NoError(t, c.AddResourceDir(dir))

	first, err := c.Get("XMLFile", "level.xml")
	require.NoError(t, err)
	c.Release("XMLFile", "level.xml")

	second, err := c.Get("XMLFile", "level.xml")
	require.NoError(t, err)
	require.NotSame(t, first, second)
}

func TestCacheAddManualResource(t *testing.T) {
	c := NewCache(log.Nop(), nil)

	x := NewXMLFile()
	x.CreateRoot("scene")
	x.SetName("generated/level.xml")
	c.Add(x)

	got, err := c.Get("XMLFile", "generated/level.xml")
	require.NoError(t, err)
	require.Same(t, Resource(x), got)
}

func TestBinaryFileFallback(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "blob.bin", "\x01\x02\x03")

	c := NewCache(log.Nop(), nil)
	require.NoError(t, c.AddResourceDir(dir))

	res, err := c.Get("BinaryFile", "blob.bin")
	require.NoError(t, err)
	bin := res.(*BinaryFile)
	require.Equal(t, []byte{1, 2, 3}, bin.Data)
	require.Equal(t, 3, bin.MemoryUse())
}

func TestBackgroundLoading(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "level.xml", `<scene><node id="1"/></scene>`)

	events := bus.New()
	loaded := make(chan ResourceEvent, 4)
	_, err := events.Subscribe(EventBackgroundLoaded, func(ev bus.Event) error {
		loaded <- ev.Data().(ResourceEvent)
		return nil
	})
	require.NoError(t, err)

	c := NewCache(log.Nop(), events)
	require.NoError(t, c.AddResourceDir(dir))
	t.Cleanup(func() { _ = c.Close() })

	// Queue before the workers start so the duplicate is seen while pending.
	require.True(t, c.BackgroundLoad("XMLFile", "level.xml", 0))
	require.False(t, c.BackgroundLoad("XMLFile", "level.xml", 0))
	require.Equal(t, 1, c.PendingBackgroundLoads())

	c.StartBackgroundLoader(context.Background(), 2)
	require.Eventually(t, func() bool {
		return c.FinishBackgroundLoading() > 0
	}, 2*time.Second, 2*time.Millisecond)
	require.Equal(t, 0, c.PendingBackgroundLoads())

	select {
	case ev := <-loaded:
		require.NoError(t, ev.Err)
		require.Equal(t, "level.xml", ev.Name)
		require.NotNil(t, ev.Resource)
	default:
		t.Fatal("no background load event published")
	}

	// The drained resource is now served from the cache.
	res, err := c.Get("XMLFile", "level.xml")
	require.NoError(t, err)
	require.Equal(t, "level.xml", res.Name())
}

func TestBackgroundLoadFailurePublishesError(t *testing.T) {
	events := bus.New()
	loaded := make(chan ResourceEvent, 1)
	_, err := events.Subscribe(EventBackgroundLoaded, func(ev bus.Event) error {
		loaded <- ev.Data().(ResourceEvent)
		return nil
	})
	require.NoError(t, err)

	c := NewCache(log.Nop(), events)
	require.NoError(t, c.AddResourceDir(t.TempDir()))
	t.Cleanup(func() { _ = c.Close() })

	c.StartBackgroundLoader(context.Background(), 1)
	require.True(t, c.BackgroundLoad("XMLFile", "missing.xml", 0))
	require.Eventually(t, func() bool {
		return c.FinishBackgroundLoading() > 0
	}, 2*time.Second, 2*time.Millisecond)

	ev := <-loaded
	require.ErrorIs(t, ev.Err, ErrNotFound)
	require.Nil(t, ev.Resource)
}

func TestJSONFileLookup(t *testing.T) {
	j := NewJSONFile()
	src := `{"name":"town","enabled":true,"nodes":[{"id":1},{"id":2}]}`
	require.NoError(t, j.Load([]byte(src), nil))

	require.Equal(t, "town", j.String("name", ""))
	require.True(t, j.Bool("enabled", false))
	require.Equal(t, float64(2), j.Number("nodes.1.id", 0))

	_, ok := j.Lookup("nodes.5.id")
	require.False(t, ok)
	require.Equal(t, "fallback", j.String("missing", "fallback"))

	var buf bytes.Buffer
	require.NoError(t, j.Save(&buf))
	again := NewJSONFile()
	require.NoError(t, again.Load(buf.Bytes(), nil))
	require.Equal(t, float64(1), again.Number("nodes.0.id", 0))
}
