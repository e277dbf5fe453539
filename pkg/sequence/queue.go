// Package sequence provides ordering primitives for scheduling queued work.
package sequence

import "container/heap"

// PriorityQueue orders values by descending priority, so the most urgent
// queued work dequeues first. Values with equal priority dequeue in heap
// order, not insertion order. Not safe for concurrent use; callers guard
// it with their own lock.
type PriorityQueue[T any] struct {
	h entryHeap[T]
}

type entry[T any] struct {
	value    T
	priority int
}

type entryHeap[T any] []entry[T]

func (h entryHeap[T]) Len() int           { return len(h) }
func (h entryHeap[T]) Less(i, j int) bool { return h[i].priority > h[j].priority }
func (h entryHeap[T]) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *entryHeap[T]) Push(x any) { *h = append(*h, x.(entry[T])) }

func (h *entryHeap[T]) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = entry[T]{}
	*h = old[:n-1]
	return e
}

// NewPriorityQueue returns an empty queue.
func NewPriorityQueue[T any]() *PriorityQueue[T] {
	return &PriorityQueue[T]{}
}

// Enqueue adds a value with the given priority.
func (q *PriorityQueue[T]) Enqueue(value T, priority int) {
	heap.Push(&q.h, entry[T]{value: value, priority: priority})
}

// Dequeue removes and returns the highest-priority value. It reports false
// when the queue is empty.
func (q *PriorityQueue[T]) Dequeue() (T, bool) {
	if len(q.h) == 0 {
		var zero T
		return zero, false
	}
	e := heap.Pop(&q.h).(entry[T])
	return e.value, true
}

// Len returns the number of queued values.
func (q *PriorityQueue[T]) Len() int { return len(q.h) }
