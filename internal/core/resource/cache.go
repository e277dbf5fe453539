package resource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/zeusync/scenegraph/internal/core/events/bus"
	"github.com/zeusync/scenegraph/internal/core/observability/log"
)

var (
	ErrNotFound        = errors.New("resource file not found")
	ErrUnknownResource = errors.New("unknown resource type")
)

// Bus event types published by the cache.
const (
	EventResourceReloaded = "resource.reloaded"
	EventBackgroundLoaded = "resource.background_loaded"
)

// ResourceEvent is the payload for cache bus events.
type ResourceEvent struct {
	TypeName string
	Name     string
	Resource Resource
	Err      error
}

type resKey struct {
	typeName string
	name     string
}

// Cache loads resources from mounted directories and keeps them alive by
// (type, name). Safe for concurrent use; loading the same resource from two
// goroutines at once may load it twice, with one copy winning the map slot.
type Cache struct {
	log log.Log
	bus bus.EventBus

	mu        sync.RWMutex
	dirs      []string
	factories map[string]func() Resource
	resources map[string]map[string]Resource
	deps      map[string]map[resKey]struct{}

	loader *BackgroundLoader

	watchMu sync.Mutex
	watcher *fsnotify.Watcher
	watchWG sync.WaitGroup
}

// NewCache creates a cache with the built-in resource types registered.
func NewCache(logger log.Log, eventBus bus.EventBus) *Cache {
	c := &Cache{
		log:       logger,
		bus:       eventBus,
		factories: make(map[string]func() Resource),
		resources: make(map[string]map[string]Resource),
		deps:      make(map[string]map[resKey]struct{}),
	}
	c.loader = newBackgroundLoader(c)
	c.RegisterType("XMLFile", func() Resource { return NewXMLFile() })
	c.RegisterType("JSONFile", func() Resource { return NewJSONFile() })
	c.RegisterType("BinaryFile", func() Resource { return NewBinaryFile() })
	return c
}

// RegisterType adds a factory for a resource type name.
func (c *Cache) RegisterType(name string, factory func() Resource) {
	c.mu.Lock()
	c.factories[name] = factory
	c.mu.Unlock()
}

// AddResourceDir mounts a directory for lookups. Directories are searched
// in mount order. When auto-reload is active the directory tree is watched.
func (c *Cache) AddResourceDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("resource dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("resource dir %q is not a directory", dir)
	}

	c.mu.Lock()
	c.dirs = append(c.dirs, dir)
	c.mu.Unlock()

	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	if c.watcher != nil {
		return c.watchTree(dir)
	}
	return nil
}

// ResourceDirs returns the mounted directories in search order.
func (c *Cache) ResourceDirs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.dirs))
	copy(out, c.dirs)
	return out
}

// Exists reports whether a file for the name can be found in any mounted
// directory.
func (c *Cache) Exists(name string) bool {
	_, err := c.FindFile(name)
	return err == nil
}

// FindFile resolves a resource name to an absolute file path.
func (c *Cache) FindFile(name string) (string, error) {
	name = SanitizeName(name)
	c.mu.RLock()
	dirs := c.dirs
	c.mu.RUnlock()
	for _, dir := range dirs {
		full := filepath.Join(dir, filepath.FromSlash(name))
		if info, err := os.Stat(full); err == nil && info.Mode().IsRegular() {
			return full, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Get returns the cached resource, loading it on first use.
func (c *Cache) Get(typeName, name string) (Resource, error) {
	name = SanitizeName(name)

	c.mu.RLock()
	if byName, ok := c.resources[typeName]; ok {
		if res, ok := byName[name]; ok {
			c.mu.RUnlock()
			return res, nil
		}
	}
	factory, ok := c.factories[typeName]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownResource, typeName)
	}

	res := factory()
	res.SetName(name)
	if err := c.loadFromDisk(res); err != nil {
		return nil, err
	}

	c.insert(res)
	return res, nil
}

// Add inserts a manually built resource, replacing any cached one.
func (c *Cache) Add(res Resource) {
	res.SetName(SanitizeName(res.Name()))
	c.insert(res)
}

// Release drops a resource from the cache. Live references stay valid.
func (c *Cache) Release(typeName, name string) {
	name = SanitizeName(name)
	c.mu.Lock()
	if byName, ok := c.resources[typeName]; ok {
		delete(byName, name)
	}
	c.mu.Unlock()
}

// StoreDependency records that dependent must be reloaded whenever the
// resource named dependsOn changes.
func (c *Cache) StoreDependency(dependent Resource, dependsOn string) {
	dependsOn = SanitizeName(dependsOn)
	key := resKey{typeName: dependent.TypeName(), name: dependent.Name()}
	c.mu.Lock()
	if c.deps[dependsOn] == nil {
		c.deps[dependsOn] = make(map[resKey]struct{})
	}
	c.deps[dependsOn][key] = struct{}{}
	c.mu.Unlock()
}

// Reload re-reads a resource from disk in place and cascades to resources
// that depend on it.
func (c *Cache) Reload(res Resource) error {
	seen := make(map[resKey]struct{})
	return c.reload(res, seen)
}

// BackgroundLoad queues a resource for loading off the caller goroutine.
// Returns false when the resource is already cached or already queued.
func (c *Cache) BackgroundLoad(typeName, name string, priority int) bool {
	name = SanitizeName(name)
	c.mu.RLock()
	_, cached := c.resources[typeName][name]
	c.mu.RUnlock()
	if cached {
		return false
	}
	return c.loader.Queue(typeName, name, priority)
}

// StartBackgroundLoader launches the worker pool. Call once at startup.
func (c *Cache) StartBackgroundLoader(ctx context.Context, workers int) {
	c.loader.Start(ctx, workers)
}

// PendingBackgroundLoads reports queued plus in-flight background loads.
func (c *Cache) PendingBackgroundLoads() int {
	return c.loader.Pending()
}

// FinishBackgroundLoading drains completed background loads into the cache
// on the caller's goroutine and publishes one bus event per resource.
// Returns the number of resources finished.
func (c *Cache) FinishBackgroundLoading() int {
	done := c.loader.drainReady()
	for _, item := range done {
		if item.err == nil {
			c.insert(item.res)
		} else {
			c.log.Warn("background load failed",
				log.String("type", item.typeName),
				log.ResourceName(item.name),
				log.Error(item.err))
		}
		if c.bus != nil {
			_ = c.bus.Publish(bus.NewEvent(EventBackgroundLoaded, "resource.cache", ResourceEvent{
				TypeName: item.typeName,
				Name:     item.name,
				Resource: item.res,
				Err:      item.err,
			}))
		}
	}
	return len(done)
}

// SetAutoReload starts or stops watching mounted directories for changes.
func (c *Cache) SetAutoReload(enable bool) error {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()

	if enable == (c.watcher != nil) {
		return nil
	}
	if !enable {
		err := c.watcher.Close()
		c.watcher = nil
		c.watchWG.Wait()
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	c.watcher = watcher
	for _, dir := range c.ResourceDirs() {
		if err = c.watchTree(dir); err != nil {
			_ = watcher.Close()
			c.watcher = nil
			return err
		}
	}
	c.watchWG.Add(1)
	go c.watchLoop(watcher)
	return nil
}

// Close shuts down the watcher and the background loader.
func (c *Cache) Close() error {
	err := c.SetAutoReload(false)
	c.loader.Stop()
	return err
}

func (c *Cache) insert(res Resource) {
	c.mu.Lock()
	byName := c.resources[res.TypeName()]
	if byName == nil {
		byName = make(map[string]Resource)
		c.resources[res.TypeName()] = byName
	}
	byName[res.Name()] = res
	c.mu.Unlock()
}

func (c *Cache) loadFromDisk(res Resource) error {
	full, err := c.FindFile(res.Name())
	if err != nil {
		return err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return fmt.Errorf("read %s: %w", res.Name(), err)
	}
	if err = res.Load(data, c); err != nil {
		return fmt.Errorf("load %s: %w", res.Name(), err)
	}
	return nil
}

func (c *Cache) reload(res Resource, seen map[resKey]struct{}) error {
	key := resKey{typeName: res.TypeName(), name: res.Name()}
	if _, ok := seen[key]; ok {
		return nil
	}
	seen[key] = struct{}{}

	if err := c.loadFromDisk(res); err != nil {
		return err
	}
	c.log.Info("resource reloaded",
		log.String("type", res.TypeName()),
		log.ResourceName(res.Name()))
	if c.bus != nil {
		_ = c.bus.Publish(bus.NewEvent(EventResourceReloaded, "resource.cache", ResourceEvent{
			TypeName: res.TypeName(),
			Name:     res.Name(),
			Resource: res,
		}))
	}
	return c.cascade(res.Name(), seen)
}

func (c *Cache) cascade(changed string, seen map[resKey]struct{}) error {
	c.mu.RLock()
	var dependents []Resource
	for key := range c.deps[changed] {
		if res, ok := c.resources[key.typeName][key.name]; ok {
			dependents = append(dependents, res)
		}
	}
	c.mu.RUnlock()

	var all error
	for _, res := range dependents {
		if err := c.reload(res, seen); err != nil {
			all = errors.Join(all, err)
		}
	}
	return all
}

func (c *Cache) watchTree(root string) error {
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return c.watcher.Add(p)
		}
		return nil
	})
}

func (c *Cache) watchLoop(watcher *fsnotify.Watcher) {
	defer c.watchWG.Done()
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if name, ok := c.nameForPath(event.Name); ok {
				c.reloadByName(name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			c.log.Warn("resource watcher error", log.Error(err))
		}
	}
}

func (c *Cache) nameForPath(full string) (string, bool) {
	c.mu.RLock()
	dirs := c.dirs
	c.mu.RUnlock()
	for _, dir := range dirs {
		if rel, err := filepath.Rel(dir, full); err == nil && filepath.IsLocal(rel) {
			return SanitizeName(filepath.ToSlash(rel)), true
		}
	}
	return "", false
}

func (c *Cache) reloadByName(name string) {
	c.mu.RLock()
	var hits []Resource
	for _, byName := range c.resources {
		if res, ok := byName[name]; ok {
			hits = append(hits, res)
		}
	}
	hasDependents := len(c.deps[name]) > 0
	c.mu.RUnlock()

	seen := make(map[resKey]struct{})
	for _, res := range hits {
		if err := c.reload(res, seen); err != nil {
			c.log.Warn("auto reload failed", log.ResourceName(name), log.Error(err))
		}
	}
	// A changed file that is not cached can still invalidate dependents,
	// e.g. a patch base loaded only transiently.
	if len(hits) == 0 && hasDependents {
		if err := c.cascade(name, seen); err != nil {
			c.log.Warn("dependent reload failed", log.ResourceName(name), log.Error(err))
		}
	}
}
