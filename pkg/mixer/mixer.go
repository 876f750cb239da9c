// ABOUTME: Producer/consumer sample mixer
// ABOUTME: Accepts pushed PCM with back-pressure and serves fixed-size pulls with silence on starvation
package mixer

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LAGonauta/pcmrender/pkg/audio"
)

const (
	DefaultReceiveTimeout = 500 * time.Millisecond
	DefaultPollInterval   = 30 * time.Millisecond
	DefaultMaxWait        = 100 * time.Millisecond
)

// ErrInvalidFormat is returned by SetFormat for a format with unknown
// layout, bitness or a non-positive rate.
var ErrInvalidFormat = errors.New("mixer: invalid format")

// Option configures a Mixer.
type Option interface {
	apply(*Mixer)
}

type receiveTimeoutOption time.Duration

func (o receiveTimeoutOption) apply(m *Mixer) { m.receiveTimeout = time.Duration(o) }

// WithReceiveTimeout bounds how long Receive waits for the consumer to ask
// for more samples. Defaults to 500ms.
func WithReceiveTimeout(d time.Duration) Option { return receiveTimeoutOption(d) }

type pollIntervalOption time.Duration

func (o pollIntervalOption) apply(m *Mixer) { m.pollInterval = time.Duration(o) }

// WithPollInterval sets how long Mix waits for each "samples ready" signal
// before re-checking its state. Defaults to 30ms.
func WithPollInterval(d time.Duration) Option { return pollIntervalOption(d) }

type maxWaitOption time.Duration

func (o maxWaitOption) apply(m *Mixer) { m.maxWait = time.Duration(o) }

// WithMaxWait bounds the total time a single Mix call waits for the
// producer before padding with silence. Defaults to 100ms.
func WithMaxWait(d time.Duration) Option { return maxWaitOption(d) }

type formatOption audio.Format

func (o formatOption) apply(m *Mixer) { m.initial = audio.Format(o) }

// WithFormat sets the format the mixer starts with. Defaults to
// audio.DefaultFormat.
func WithFormat(f audio.Format) Option { return formatOption(f) }

// stream is the lane for one format generation. A new stream replaces the
// old one on every format change, so a consumer holding a stale pointer
// can tell it missed a change.
type stream struct {
	format audio.Format
	gen    uint64
	lane   lane
}

// Stats is a snapshot of mixer counters.
type Stats struct {
	FramesReceived       int64
	FramesMixed          int64
	BytesTruncated       int64
	StarvedMixes         int64
	BackpressureTimeouts int64
	FormatChanges        int64
}

// Mixer hands interleaved PCM from one producer goroutine to one consumer
// goroutine. The producer calls Receive with arbitrarily sized buffers and
// is held back until the consumer wants more. The consumer calls Mix for a
// fixed number of frames and always gets a full buffer, padded with
// silence when the producer falls behind.
//
// It is safe to call methods on Mixer from multiple goroutines.
type Mixer struct {
	receiveTimeout time.Duration
	pollInterval   time.Duration
	maxWait        time.Duration
	initial        audio.Format

	format  *FormatState
	current atomic.Pointer[stream]

	mu        sync.Mutex // producer side: streaming state and lane swaps
	streaming bool
	done      chan struct{}
	eos       atomic.Bool

	mixMu sync.Mutex // serializes consumers

	samplesReady chan struct{}
	moreWanted   chan struct{}

	framesReceived       atomic.Int64
	framesMixed          atomic.Int64
	bytesTruncated       atomic.Int64
	starvedMixes         atomic.Int64
	backpressureTimeouts atomic.Int64
	formatChanges        atomic.Int64
}

// New creates a stopped Mixer.
func New(opts ...Option) *Mixer {
	m := &Mixer{
		receiveTimeout: DefaultReceiveTimeout,
		pollInterval:   DefaultPollInterval,
		maxWait:        DefaultMaxWait,
		initial:        audio.DefaultFormat,
		samplesReady:   make(chan struct{}, 1),
		moreWanted:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt.apply(m)
	}
	if !m.initial.Valid() {
		m.initial = audio.DefaultFormat
	}
	m.format = NewFormatState(m.initial)
	m.current.Store(&stream{format: m.initial, lane: newLane(m.initial.Bitness)})
	return m
}

// StartStreaming lets Receive accept data and Mix serve it. Calling it
// while streaming is a no-op.
func (m *Mixer) StartStreaming() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.streaming {
		return
	}
	m.streaming = true
	m.done = make(chan struct{})
	m.eos.Store(false)
}

// StopStreaming drops queued samples and releases any Receive or Mix
// call that is waiting. Calling it while stopped is a no-op.
func (m *Mixer) StopStreaming() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.streaming {
		return
	}
	m.streaming = false
	close(m.done)
	m.current.Load().lane.clear()
	m.eos.Store(false)
}

// IsStreaming reports whether the mixer is between StartStreaming and
// StopStreaming.
func (m *Mixer) IsStreaming() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streaming
}

// Format returns the current stream format.
func (m *Mixer) Format() audio.Format {
	f, _ := m.format.Load()
	return f
}

// Generation returns how many times the format has changed.
func (m *Mixer) Generation() uint64 {
	return m.format.Generation()
}

// SetFormat switches the stream format. Samples queued in the old format
// are discarded before any sample in the new one can be queued, and a
// consumer waiting in Mix is woken so it returns without data. Setting the
// current format again is a no-op.
func (m *Mixer) SetFormat(f audio.Format) error {
	if !f.Valid() {
		return fmt.Errorf("%w: %v", ErrInvalidFormat, f)
	}

	m.mu.Lock()
	old := m.current.Load()
	if old.format == f {
		m.mu.Unlock()
		return nil
	}
	old.lane.clear()
	gen := m.format.Store(f)
	m.current.Store(&stream{format: f, gen: gen, lane: newLane(f.Bitness)})
	m.eos.Store(false)
	m.mu.Unlock()

	m.formatChanges.Add(1)
	notify(m.samplesReady)
	log.Printf("Mixer format changed: %v -> %v (generation %d)", old.format, f, gen)
	return nil
}

// Receive queues the whole frames in p and then waits, up to the receive
// timeout, for the consumer to ask for more. A trailing partial frame is
// dropped. It returns immediately when the mixer is not streaming and
// returns early if streaming stops while it waits.
func (m *Mixer) Receive(p []byte) {
	if len(p) == 0 {
		return
	}

	m.mu.Lock()
	if !m.streaming {
		m.mu.Unlock()
		return
	}
	done := m.done
	s := m.current.Load()
	frameSize := s.format.InputFrameSize()
	n := len(p) - len(p)%frameSize
	if n > 0 {
		s.lane.push(p[:n])
		m.eos.Store(false)
	}
	m.mu.Unlock()

	if rem := len(p) - n; rem > 0 {
		m.bytesTruncated.Add(int64(rem))
	}
	if n == 0 {
		return
	}
	m.framesReceived.Add(int64(n / frameSize))
	notify(m.samplesReady)

	timer := time.NewTimer(m.receiveTimeout)
	defer timer.Stop()
	select {
	case <-m.moreWanted:
	case <-done:
	case <-timer.C:
		if c := m.backpressureTimeouts.Add(1); c <= 5 || c%100 == 0 {
			log.Printf("Mixer receive timed out waiting for consumer (%d times)", c)
		}
	}
}

// Mix fills dst with exactly frames frames of device-width samples and
// returns it along with the number of frames that came from the producer;
// the rest is silence. width is the device sample width in bytes and must
// match the current format. It returns 0 frames without waiting when the
// mixer is stopped or the width is wrong, and returns 0 frames when the
// format changes or streaming stops while it waits. It never waits longer
// than the configured maximum.
func (m *Mixer) Mix(dst []byte, frames, width int) ([]byte, int) {
	m.mixMu.Lock()
	defer m.mixMu.Unlock()

	m.mu.Lock()
	streaming, done := m.streaming, m.done
	m.mu.Unlock()
	s := m.current.Load()
	if !streaming || frames <= 0 || width != s.format.Bitness.DeviceBytes() {
		return dst[:0], 0
	}

	channels := s.format.Channels()
	want := frames * channels
	size := want * width
	if cap(dst) < size {
		dst = make([]byte, size)
	}
	dst = dst[:size]

	deadline := time.Now().Add(m.maxWait)
	for s.lane.len() < want && !m.eos.Load() {
		notify(m.moreWanted)
		wait := min(m.pollInterval, time.Until(deadline))
		if wait <= 0 {
			break
		}
		timer := time.NewTimer(wait)
		select {
		case <-m.samplesReady:
		case <-timer.C:
		case <-done:
			timer.Stop()
			return dst[:0], 0
		}
		timer.Stop()
		if m.current.Load() != s {
			return dst[:0], 0
		}
	}

	avail := min(s.lane.len(), want)
	avail -= avail % channels
	got := s.lane.pop(dst, avail)
	audio.FillSilence(dst[got*width:], s.format.Bitness.Device())

	mixed := got / channels
	m.framesMixed.Add(int64(mixed))
	if mixed < frames {
		m.starvedMixes.Add(1)
	}
	return dst, mixed
}

// Flush drops every queued sample and clears end of stream.
func (m *Mixer) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.Load().lane.clear()
	m.eos.Store(false)
}

// EndOfStream tells the consumer no more data is coming, so Mix drains
// what is queued without waiting. The next Receive, Flush or format
// change clears it.
func (m *Mixer) EndOfStream() {
	m.eos.Store(true)
	notify(m.samplesReady)
}

// Buffered returns how much audio is queued.
func (m *Mixer) Buffered() time.Duration {
	s := m.current.Load()
	return s.format.Duration(int64(s.lane.len() / s.format.Channels()))
}

// Stats returns a snapshot of the mixer counters.
func (m *Mixer) Stats() Stats {
	return Stats{
		FramesReceived:       m.framesReceived.Load(),
		FramesMixed:          m.framesMixed.Load(),
		BytesTruncated:       m.bytesTruncated.Load(),
		StarvedMixes:         m.starvedMixes.Load(),
		BackpressureTimeouts: m.backpressureTimeouts.Load(),
		FormatChanges:        m.formatChanges.Load(),
	}
}

// notify sets a single-slot signal without blocking.
func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
