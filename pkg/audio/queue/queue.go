// ABOUTME: Thread-safe FIFO of audio samples
// ABOUTME: Growable ring of one sample type shared by producer and consumer
package queue

import (
	"sync"

	"github.com/LAGonauta/pcmrender/pkg/audio"
)

const minCapacity = 1024

// Queue is an unbounded FIFO of samples of a single type. Every method is
// safe for concurrent use and none blocks on the queue being empty or
// full; blocking rendezvous is layered on top by the mixer.
type Queue[T audio.Sample] struct {
	mu    sync.Mutex
	buf   []T
	head  int
	count int
}

// New returns a queue with room for capacity samples before it grows.
func New[T audio.Sample](capacity int) *Queue[T] {
	if capacity < minCapacity {
		capacity = minCapacity
	}
	return &Queue[T]{buf: make([]T, capacity)}
}

// Push appends one sample.
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.growLocked(1)
	q.buf[(q.head+q.count)%len(q.buf)] = v
	q.count++
}

// PushSlice appends vs in order as one operation.
func (q *Queue[T]) PushSlice(vs []T) {
	if len(vs) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.growLocked(len(vs))

	tail := (q.head + q.count) % len(q.buf)
	n := copy(q.buf[tail:], vs)
	copy(q.buf, vs[n:])
	q.count += len(vs)
}

// TryPop removes the oldest sample. It reports false when the queue is empty.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if q.count == 0 {
		return zero, false
	}
	v := q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return v, true
}

// PopInto moves up to len(dst) of the oldest samples into dst and
// returns how many were moved.
func (q *Queue[T]) PopInto(dst []T) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := min(len(dst), q.count)
	if n == 0 {
		return 0
	}
	first := copy(dst[:n], q.buf[q.head:])
	copy(dst[first:n], q.buf)
	q.head = (q.head + n) % len(q.buf)
	q.count -= n
	return n
}

// Len returns the number of queued samples. Under concurrency the value
// is only a hint.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Clear drops every queued sample.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.head = 0
	q.count = 0
}

// growLocked makes room for n more samples, unwrapping the ring into the
// new backing array.
func (q *Queue[T]) growLocked(n int) {
	need := q.count + n
	if need <= len(q.buf) {
		return
	}
	size := max(len(q.buf)*2, minCapacity)
	for size < need {
		size *= 2
	}
	buf := make([]T, size)
	first := copy(buf, q.buf[q.head:min(q.head+q.count, len(q.buf))])
	copy(buf[first:q.count], q.buf)
	q.buf = buf
	q.head = 0
}
