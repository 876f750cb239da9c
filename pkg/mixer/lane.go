// ABOUTME: Typed sample lanes behind the mixer
// ABOUTME: Picks the queue element type for a bitness and converts bytes in and out
package mixer

import (
	"github.com/LAGonauta/pcmrender/pkg/audio"
	"github.com/LAGonauta/pcmrender/pkg/audio/queue"
)

// lane is a sample queue of one bitness. push is called by the producer
// under the mixer lock, pop only by the single consumer.
type lane interface {
	push(p []byte) int
	pop(dst []byte, samples int) int
	len() int
	clear()
}

type typedLane[T audio.Sample] struct {
	q      *queue.Queue[T]
	decode func([]T, []byte) int
	encode func([]byte, []T) int
	in     int // bytes per input sample

	pushBuf []T
	popBuf  []T
}

func newTypedLane[T audio.Sample](in int, decode func([]T, []byte) int, encode func([]byte, []T) int) *typedLane[T] {
	return &typedLane[T]{
		q:      queue.New[T](0),
		decode: decode,
		encode: encode,
		in:     in,
	}
}

func newLane(b audio.Bitness) lane {
	switch b {
	case audio.Bit8:
		return newTypedLane(1, audio.DecodeU8, audio.EncodeU8)
	case audio.Bit16:
		return newTypedLane(2, audio.DecodeS16, audio.EncodeS16)
	case audio.Bit24:
		return newTypedLane(3, audio.DecodeS24, audio.EncodeS32)
	case audio.Bit32:
		return newTypedLane(4, audio.DecodeS32, audio.EncodeS32)
	case audio.BitFloat:
		return newTypedLane(4, audio.DecodeF32, audio.EncodeF32)
	}
	return nil
}

func (l *typedLane[T]) push(p []byte) int {
	n := len(p) / l.in
	if cap(l.pushBuf) < n {
		l.pushBuf = make([]T, n)
	}
	buf := l.pushBuf[:n]
	n = l.decode(buf, p)
	l.q.PushSlice(buf[:n])
	return n
}

func (l *typedLane[T]) pop(dst []byte, samples int) int {
	if cap(l.popBuf) < samples {
		l.popBuf = make([]T, samples)
	}
	buf := l.popBuf[:samples]
	n := l.q.PopInto(buf)
	return l.encode(dst, buf[:n])
}

func (l *typedLane[T]) len() int { return l.q.Len() }

func (l *typedLane[T]) clear() { l.q.Clear() }
