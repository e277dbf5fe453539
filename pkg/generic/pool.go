package generic

import "sync"

// Pool recycles values of one type across goroutines.
type Pool[T any] struct {
	pool  sync.Pool
	reset func(T)
}

// NewPool creates a pool that fills itself with generate.
func NewPool[T any](generate func() T) *Pool[T] {
	return &Pool[T]{
		pool: sync.Pool{
			New: func() any {
				return generate()
			},
		},
	}
}

// NewResetPool creates a pool that runs reset on every value returned to it,
// so Get always hands out a clean value.
func NewResetPool[T any](generate func() T, reset func(T)) *Pool[T] {
	p := NewPool(generate)
	p.reset = reset
	return p
}

// Warm pre-populates the pool with n fresh values.
func (p *Pool[T]) Warm(n int) {
	for i := 0; i < n; i++ {
		p.pool.Put(p.pool.New())
	}
}

func (p *Pool[T]) Get() T {
	return p.pool.Get().(T)
}

func (p *Pool[T]) Put(value T) {
	if p.reset != nil {
		p.reset(value)
	}
	p.pool.Put(value)
}
