// Package concurrent provides small helpers for fanning slice work across
// a bounded set of goroutines.
package concurrent

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ForEach runs fn for every item on up to workers goroutines and waits for
// all of them. workers <= 0 uses GOMAXPROCS. Every item is processed even
// when some fail; the first error is returned.
func ForEach[T any](items []T, workers int, fn func(T) error) error {
	if len(items) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	var eg errgroup.Group
	eg.SetLimit(workers)
	for _, item := range items {
		item := item
		eg.Go(func() error {
			return fn(item)
		})
	}
	return eg.Wait()
}

// Each is ForEach for functions that cannot fail.
func Each[T any](items []T, workers int, fn func(T)) {
	_ = ForEach(items, workers, func(item T) error {
		fn(item)
		return nil
	})
}

// Batch splits items into contiguous chunks of batchSize and runs fn once
// per chunk, each on its own goroutine. Cheaper than ForEach when per-item
// work is tiny.
func Batch[T any](items []T, batchSize int, fn func([]T)) {
	if len(items) == 0 {
		return
	}
	if batchSize <= 0 {
		batchSize = (len(items) + runtime.GOMAXPROCS(0) - 1) / runtime.GOMAXPROCS(0)
	}
	var eg errgroup.Group
	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}
		chunk := items[start:end]
		eg.Go(func() error {
			fn(chunk)
			return nil
		})
	}
	_ = eg.Wait()
}
