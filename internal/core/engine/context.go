package engine

import (
	"github.com/zeusync/scenegraph/internal/core/events/bus"
	"github.com/zeusync/scenegraph/internal/core/observability/log"
	"github.com/zeusync/scenegraph/internal/core/registry"
	"github.com/zeusync/scenegraph/internal/core/resource"
	"github.com/zeusync/scenegraph/internal/core/scene"
)

// Context aggregates the shared subsystems a scene needs: the type
// registry, the resource cache, the event bus and the logger. One context
// can host any number of scenes.
type Context struct {
	Log      log.Log
	Registry *registry.Registry
	Cache    *resource.Cache
	Bus      bus.EventBus
}

// NewContext builds a context from a config: console logger at the
// configured level, empty registry with the scene types installed, cache
// mounted on the resource dirs.
func NewContext(cfg Config) (*Context, error) {
	logger := log.NewConsole(parseLevel(cfg.LogLevel))
	eventBus := bus.New()

	reg := registry.New()
	scene.EnsureSceneTypes(reg)

	cache := resource.NewCache(logger, eventBus)
	for _, dir := range cfg.ResourceDirs {
		if err := cache.AddResourceDir(dir); err != nil {
			logger.Warn("Skipping resource dir", log.String("dir", dir), log.Error(err))
		}
	}
	if cfg.AutoReload {
		if err := cache.SetAutoReload(true); err != nil {
			logger.Warn("Auto-reload unavailable", log.Error(err))
		}
	}

	return &Context{
		Log:      logger,
		Registry: reg,
		Cache:    cache,
		Bus:      eventBus,
	}, nil
}

// NewScene creates a scene wired to the context's subsystems.
func (c *Context) NewScene() *scene.Scene {
	return scene.NewScene(c.Registry, c.Cache, c.Bus, c.Log)
}

// Close releases the context's resources.
func (c *Context) Close() error {
	return c.Cache.Close()
}

func parseLevel(level string) log.Level {
	switch level {
	case "debug":
		return log.LevelDebug
	case "warn", "warning":
		return log.LevelWarn
	case "error":
		return log.LevelError
	default:
		return log.LevelInfo
	}
}
