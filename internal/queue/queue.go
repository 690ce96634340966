// Package queue provides the FIFO buffer backing protocol round buffers and
// preprocessing stores.
package queue

// Queue is a FIFO queue implemented as a growable ring buffer.
// The zero value is ready to use.
type Queue[T any] struct {
	buf   []T
	head  int
	count int
}

// Len returns the number of queued elements.
func (q *Queue[T]) Len() int { return q.count }

// Push appends v at the back of the queue.
func (q *Queue[T]) Push(v T) {
	if q.count == len(q.buf) {
		q.grow()
	}
	q.buf[(q.head+q.count)%len(q.buf)] = v
	q.count++
}

// Pop removes and returns the element at the front of the queue.
// The second return value is false if the queue is empty.
func (q *Queue[T]) Pop() (T, bool) {
	var zero T
	if q.count == 0 {
		return zero, false
	}
	v := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return v, true
}

// Clear removes all elements, retaining the allocated capacity.
func (q *Queue[T]) Clear() {
	var zero T
	for i := 0; i < q.count; i++ {
		q.buf[(q.head+i)%len(q.buf)] = zero
	}
	q.head = 0
	q.count = 0
}

func (q *Queue[T]) grow() {
	newCap := 2 * len(q.buf)
	if newCap == 0 {
		newCap = 16
	}
	buf := make([]T, newCap)
	for i := 0; i < q.count; i++ {
		buf[i] = q.buf[(q.head+i)%len(q.buf)]
	}
	q.buf = buf
	q.head = 0
}
