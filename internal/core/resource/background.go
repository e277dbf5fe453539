package resource

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/scenegraph/pkg/sequence"
)

type loadRequest struct {
	typeName string
	name     string
}

type loadedItem struct {
	typeName string
	name     string
	res      Resource
	err      error
}

// BackgroundLoader loads queued resources on worker goroutines. Finished
// resources sit in a ready list until the cache drains them, so cache
// insertion and event delivery stay on the caller's update goroutine.
type BackgroundLoader struct {
	cache *Cache

	mu      sync.Mutex
	queue   *sequence.PriorityQueue[loadRequest]
	queued  map[loadRequest]struct{}
	ready   []loadedItem
	pending int

	wake    chan struct{}
	started bool
	cancel  context.CancelFunc
	eg      *errgroup.Group
}

func newBackgroundLoader(c *Cache) *BackgroundLoader {
	return &BackgroundLoader{
		cache:  c,
		queue:  sequence.NewPriorityQueue[loadRequest](),
		queued: make(map[loadRequest]struct{}),
		wake:   make(chan struct{}, 128),
	}
}

// Start launches the worker pool. Subsequent calls are no-ops.
func (l *BackgroundLoader) Start(ctx context.Context, workers int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return
	}
	if workers <= 0 {
		workers = 2
	}
	ctx, l.cancel = context.WithCancel(ctx)
	l.eg, ctx = errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		l.eg.Go(func() error {
			l.work(ctx)
			return nil
		})
	}
	l.started = true
}

// Stop cancels the workers and waits for them to exit. Already finished
// loads stay in the ready list.
func (l *BackgroundLoader) Stop() {
	l.mu.Lock()
	if !l.started {
		l.mu.Unlock()
		return
	}
	cancel, eg := l.cancel, l.eg
	l.started = false
	l.mu.Unlock()

	cancel()
	_ = eg.Wait()
}

// Queue adds a load request. Duplicate requests for a still-pending
// resource are dropped.
func (l *BackgroundLoader) Queue(typeName, name string, priority int) bool {
	req := loadRequest{typeName: typeName, name: name}
	l.mu.Lock()
	if _, dup := l.queued[req]; dup {
		l.mu.Unlock()
		return false
	}
	l.queued[req] = struct{}{}
	l.queue.Enqueue(req, priority)
	l.pending++
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Pending reports requests that are queued, loading, or loaded but not
// yet drained.
func (l *BackgroundLoader) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending
}

func (l *BackgroundLoader) drainReady() []loadedItem {
	l.mu.Lock()
	done := l.ready
	l.ready = nil
	for _, item := range done {
		delete(l.queued, loadRequest{typeName: item.typeName, name: item.name})
		l.pending--
	}
	l.mu.Unlock()
	return done
}

func (l *BackgroundLoader) work(ctx context.Context) {
	for {
		l.mu.Lock()
		req, ok := l.queue.Dequeue()
		l.mu.Unlock()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-l.wake:
				continue
			}
		}

		item := l.load(req)
		l.mu.Lock()
		l.ready = append(l.ready, item)
		l.mu.Unlock()
	}
}

func (l *BackgroundLoader) load(req loadRequest) loadedItem {
	item := loadedItem{typeName: req.typeName, name: req.name}

	l.cache.mu.RLock()
	factory, ok := l.cache.factories[req.typeName]
	l.cache.mu.RUnlock()
	if !ok {
		item.err = fmt.Errorf("%w: %s", ErrUnknownResource, req.typeName)
		return item
	}

	res := factory()
	res.SetName(req.name)
	if err := l.cache.loadFromDisk(res); err != nil {
		item.err = err
		return item
	}
	item.res = res
	return item
}
