// ABOUTME: Buffer-queue source shared by every backend
// ABOUTME: Turns submitted device buffers into a pull stream for callback-driven APIs
package output

import (
	"fmt"
	"sync"
	"time"

	"github.com/LAGonauta/pcmrender/pkg/audio"
)

type sourceState int

const (
	stateInitial sourceState = iota
	statePlaying
	statePaused
	stateStopped
)

type deviceBuffer struct {
	data   []byte
	tag    FormatTag
	freq   int
	queued bool
}

// bufferQueue models a single OpenAL-style source with a buffer queue.
// Backends call read from their audio callback; the device loop talks to
// it through the Device methods.
type bufferQueue struct {
	mu        sync.Mutex
	buffers   map[BufferID]*deviceBuffer
	nextID    BufferID
	queue     []BufferID
	processed int // leading entries of queue that finished playing
	pos       int // byte offset into queue[processed]
	state     sourceState
	gain      float32
	silence   byte
}

func newBufferQueue() *bufferQueue {
	return &bufferQueue{
		buffers: make(map[BufferID]*deviceBuffer),
		nextID:  1,
		gain:    1,
	}
}

func (q *bufferQueue) allocate(n int) ([]BufferID, error) {
	if n <= 0 {
		return nil, fmt.Errorf("output: cannot allocate %d buffers", n)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	ids := make([]BufferID, n)
	for i := range ids {
		ids[i] = q.nextID
		q.buffers[q.nextID] = &deviceBuffer{}
		q.nextID++
	}
	return ids, nil
}

func (q *bufferQueue) release(ids []BufferID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, id := range ids {
		b, ok := q.buffers[id]
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownBuffer, id)
		}
		if b.queued {
			return fmt.Errorf("%w: %d", ErrBufferQueued, id)
		}
	}
	for _, id := range ids {
		delete(q.buffers, id)
	}
	return nil
}

func (q *bufferQueue) submit(id BufferID, pcm []byte, tag FormatTag, freq int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	b, ok := q.buffers[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownBuffer, id)
	}
	if b.queued {
		return fmt.Errorf("%w: %d", ErrBufferQueued, id)
	}
	b.data = append(b.data[:0], pcm...)
	b.tag = tag
	b.freq = freq
	b.queued = true
	q.queue = append(q.queue, id)
	q.silence = audio.Silence(tag.Bitness)
	return nil
}

func (q *bufferQueue) processedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.processed
}

func (q *bufferQueue) unqueue(n int) ([]BufferID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n < 0 || n > q.processed {
		return nil, fmt.Errorf("%w: %d requested, %d processed", ErrInvalidUnqueue, n, q.processed)
	}
	ids := make([]BufferID, n)
	copy(ids, q.queue[:n])
	for _, id := range ids {
		q.buffers[id].queued = false
	}
	q.queue = append(q.queue[:0], q.queue[n:]...)
	q.processed -= n
	return ids, nil
}

func (q *bufferQueue) playing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state == statePlaying
}

// play resumes from the first unprocessed buffer. With nothing pending
// the source goes straight back to stopped.
func (q *bufferQueue) play() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.processed < len(q.queue) {
		q.state = statePlaying
	} else {
		q.state = stateStopped
	}
}

// stop marks every queued buffer processed.
func (q *bufferQueue) stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.state = stateStopped
	q.processed = len(q.queue)
	q.pos = 0
}

func (q *bufferQueue) pause() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.state == statePlaying {
		q.state = statePaused
	}
}

func (q *bufferQueue) setGain(g float32) {
	if g < 0 {
		g = 0
	}
	q.mu.Lock()
	q.gain = g
	q.mu.Unlock()
}

func (q *bufferQueue) getGain() float32 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.gain
}

func (q *bufferQueue) offset() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.processed >= len(q.queue) {
		return 0
	}
	b := q.buffers[q.queue[q.processed]]
	frameSize := b.tag.FrameSize()
	if frameSize == 0 || b.freq == 0 {
		return 0
	}
	return time.Duration(q.pos/frameSize) * time.Second / time.Duration(b.freq)
}

// reset drops the queue and every buffer.
func (q *bufferQueue) reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.buffers = make(map[BufferID]*deviceBuffer)
	q.queue = nil
	q.processed = 0
	q.pos = 0
	q.state = stateStopped
}

// read fills p with the next bytes of the queue, applying gain. When the
// source is not playing, p is silence. Running out of queued data while
// playing is an underrun: the rest of p is silence and the source stops.
// It always fills all of p.
func (q *bufferQueue) read(p []byte) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	if q.state == statePlaying {
		for n < len(p) && q.processed < len(q.queue) {
			b := q.buffers[q.queue[q.processed]]
			c := min(len(b.data)-q.pos, len(p)-n)
			if c < len(b.data)-q.pos {
				// keep gain sample-aligned when the callback splits a buffer
				c -= c % b.tag.Bitness.DeviceBytes()
				if c == 0 {
					break
				}
			}
			copy(p[n:n+c], b.data[q.pos:q.pos+c])
			audio.ScaleInPlace(p[n:n+c], b.tag.Bitness, q.gain)
			n += c
			q.pos += c
			if q.pos >= len(b.data) {
				q.processed++
				q.pos = 0
			}
		}
		if q.processed >= len(q.queue) && n < len(p) {
			q.state = stateStopped
		}
	}
	for i := n; i < len(p); i++ {
		p[i] = q.silence
	}
	return len(p)
}

// Read implements io.Reader for stream-based players.
func (q *bufferQueue) Read(p []byte) (int, error) {
	return q.read(p), nil
}
