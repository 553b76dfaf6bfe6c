package queue

// SliceQueue implements the Queue interface using a slice.
//
// Unlike the lock-free queue it supports removing the first item that
// matches a predicate, which the pending-transmission scheduler needs to
// skip held messages without reordering the rest of the queue.
// SliceQueue is not safe for concurrent use; callers serialize access.
type SliceQueue[T any] struct {
	items []T
}

var _ Queue[int] = (*SliceQueue[int])(nil)

// NewSliceQueue creates a new SliceQueue.
func NewSliceQueue[T any](prealloc int) *SliceQueue[T] {
	return &SliceQueue[T]{items: make([]T, 0, prealloc)}
}

// Enqueue adds an item to the tail of the queue.
func (q *SliceQueue[T]) Enqueue(item T) {
	q.items = append(q.items, item)
}

// Dequeue removes and returns the item at the head of the queue.
func (q *SliceQueue[T]) Dequeue() (T, bool) {
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// DequeueFunc removes and returns the first item for which match returns
// true, preserving the order of the remaining items.
func (q *SliceQueue[T]) DequeueFunc(match func(T) bool) (T, bool) {
	for i, item := range q.items {
		if match(item) {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Peek returns the item at the head of the queue without removing it.
func (q *SliceQueue[T]) Peek() (T, bool) {
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	return q.items[0], true
}

// Each calls fn for every queued item in FIFO order.
func (q *SliceQueue[T]) Each(fn func(T)) {
	for _, item := range q.items {
		fn(item)
	}
}

// Reset resets the queue to an empty state.
func (q *SliceQueue[T]) Reset() {
	q.items = q.items[:0] // Reslice to 0 length to reuse the underlying array
}

// IsEmpty returns true if the queue is empty, false otherwise.
func (q *SliceQueue[T]) IsEmpty() bool {
	return len(q.items) == 0
}

// Length returns the number of items in the queue.
func (q *SliceQueue[T]) Length() int {
	return len(q.items)
}
