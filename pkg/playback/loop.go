// ABOUTME: Device output loop
// ABOUTME: Keeps an N-buffer device ring filled from a mixing source on a dedicated goroutine
package playback

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LAGonauta/pcmrender/pkg/audio"
	"github.com/LAGonauta/pcmrender/pkg/audio/output"
)

const (
	DefaultLatency   = 64 * time.Millisecond
	DefaultBuffers   = 8
	MinBuffers       = 2
	MaxBuffers       = 8
	DefaultIdleSleep = time.Millisecond

	MinVolume  = -10000 // millibels
	MaxVolume  = 0
	MinBalance = -10000
	MaxBalance = 10000
)

var (
	ErrVolumeRange  = errors.New("playback: volume out of range")
	ErrBalanceRange = errors.New("playback: balance out of range")
)

// Source is what the loop pulls audio from. Generation must change
// before Mix can serve samples of a new format.
type Source interface {
	IsStreaming() bool
	Format() audio.Format
	Generation() uint64
	Mix(dst []byte, frames, width int) ([]byte, int)
}

// Config holds loop settings. Zero values take the defaults.
type Config struct {
	Latency   time.Duration
	Buffers   int
	IdleSleep time.Duration
}

// Stats tracks loop metrics
type Stats struct {
	BuffersSubmitted int64
	FramesSubmitted  int64
	FramesReclaimed  int64
	FramesDropped    int64
	Underruns        int64
	StarvedTicks     int64
	FormatResets     int64
	DeviceErrors     int64
	Outstanding      int
	FramesPerBuffer  int
}

// submission is one buffer on the device, remembered so the play clock
// can be advanced when it comes back.
type submission struct {
	frames int64
	rate   int
}

// Loop feeds a Device from a Source. Each iteration reclaims buffers the
// device finished, mixes the next one and submits it, restarting the
// device if it ran dry.
type Loop struct {
	src        Source
	dev        output.Device
	latency    time.Duration
	numBuffers int
	idle       time.Duration

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// devMu guards the device and the ring bookkeeping below. It is never
	// held across Mix, which can wait on the producer.
	devMu           sync.Mutex
	ring            []output.BufferID
	next            int
	outstanding     int
	fifo            []submission
	format          audio.Format
	configured      bool
	framesPerBuffer int
	epoch           uint64
	primed          bool
	playedFrames    int64
	playedTime      time.Duration
	gain            float32
	balance         int

	mixBuf []byte // loop goroutine only

	buffersSubmitted atomic.Int64
	framesSubmitted  atomic.Int64
	framesReclaimed  atomic.Int64
	framesDropped    atomic.Int64
	underruns        atomic.Int64
	starvedTicks     atomic.Int64
	formatResets     atomic.Int64
	deviceErrors     atomic.Int64
}

// New creates a stopped loop.
func New(src Source, dev output.Device, cfg Config) *Loop {
	if cfg.Latency <= 0 {
		cfg.Latency = DefaultLatency
	}
	if cfg.Buffers == 0 {
		cfg.Buffers = DefaultBuffers
	}
	cfg.Buffers = min(max(cfg.Buffers, MinBuffers), MaxBuffers)
	if cfg.IdleSleep <= 0 {
		cfg.IdleSleep = DefaultIdleSleep
	}
	return &Loop{
		src:        src,
		dev:        dev,
		latency:    cfg.Latency,
		numBuffers: cfg.Buffers,
		idle:       cfg.IdleSleep,
		gain:       1,
	}
}

// FramesPerBuffer returns the device buffer size for a sample rate.
func FramesPerBuffer(rate int, latency time.Duration, buffers int) int {
	return max(1, rate/1000*int(latency/time.Millisecond)/buffers)
}

// Start launches the loop goroutine. Starting a running loop is a no-op.
func (l *Loop) Start() {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	if l.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.wg.Add(1)
	go l.run(ctx)
}

// Stop ends the loop goroutine and waits for it to exit. The device keeps
// whatever is queued; use Reset to drop it.
func (l *Loop) Stop() {
	l.runMu.Lock()
	cancel := l.cancel
	l.cancel = nil
	l.runMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	l.wg.Wait()
}

// Running reports whether the loop goroutine is active.
func (l *Loop) Running() bool {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	return l.cancel != nil
}

func (l *Loop) run(ctx context.Context) {
	defer l.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if !l.step() {
			sleep(ctx, l.idle)
		}
	}
}

// step runs one iteration and reports whether a buffer was submitted.
func (l *Loop) step() bool {
	if !l.src.IsStreaming() {
		return false
	}
	gen := l.src.Generation()
	f := l.src.Format()

	l.devMu.Lock()
	if !l.configured || f != l.format {
		if err := l.configureLocked(f); err != nil {
			l.devMu.Unlock()
			l.deviceError("configuring buffers", err)
			return false
		}
	}
	l.reclaimLocked()
	if l.outstanding >= len(l.ring) {
		l.devMu.Unlock()
		return false
	}
	epoch := l.epoch
	frames := l.framesPerBuffer
	l.devMu.Unlock()

	buf, mixed := l.src.Mix(l.mixBuf, frames, f.Bitness.DeviceBytes())
	l.mixBuf = buf
	if mixed == 0 {
		l.starvedTicks.Add(1)
		return false
	}

	if l.src.Generation() != gen {
		// format changed under Mix; the samples may not be in f
		l.framesDropped.Add(int64(mixed))
		return false
	}

	l.devMu.Lock()
	defer l.devMu.Unlock()
	if l.epoch != epoch || l.format != f {
		// reset or reconfigured while mixing
		l.framesDropped.Add(int64(mixed))
		return false
	}

	id := l.ring[l.next]
	if err := l.dev.Submit(id, buf[:mixed*f.DeviceFrameSize()], output.TagFor(f), f.SampleRate); err != nil {
		l.deviceError("submitting buffer", err)
		return false
	}
	l.fifo = append(l.fifo, submission{frames: int64(mixed), rate: f.SampleRate})
	l.next = (l.next + 1) % len(l.ring)
	l.outstanding++
	l.buffersSubmitted.Add(1)
	l.framesSubmitted.Add(int64(mixed))

	if !l.dev.Playing() {
		l.dev.Play()
		if l.primed {
			if c := l.underruns.Add(1); c <= 5 || c%50 == 0 {
				log.Printf("Buffer underrun, resuming playback (buffers queued: %d, underruns: %d)", l.outstanding, c)
			}
		}
		l.primed = true
	}
	return true
}

// configureLocked rebuilds the ring for format f. Buffers the device
// already played are credited; anything still queued is dropped.
func (l *Loop) configureLocked(f audio.Format) error {
	if l.configured {
		l.reclaimLocked()
		l.dev.Stop()
		l.discardLocked()
		if err := l.dev.ReleaseBuffers(l.ring); err != nil {
			l.deviceError("releasing buffers", err)
		}
		l.formatResets.Add(1)
	}
	l.ring = nil
	l.configured = false

	ids, err := l.dev.AllocateBuffers(l.numBuffers)
	if err != nil {
		return fmt.Errorf("allocate %d buffers: %w", l.numBuffers, err)
	}
	l.ring = ids
	l.next = 0
	l.outstanding = 0
	l.fifo = l.fifo[:0]
	l.format = f
	l.framesPerBuffer = FramesPerBuffer(f.SampleRate, l.latency, l.numBuffers)
	l.configured = true
	l.primed = false
	l.dev.SetGain(l.gain)

	log.Printf("Device ring configured: %s (%s), %d buffers x %d frames",
		f, output.TagFor(f), l.numBuffers, l.framesPerBuffer)
	return nil
}

// reclaimLocked unqueues what the device finished and advances the clock.
func (l *Loop) reclaimLocked() {
	n := l.dev.Processed()
	if n == 0 {
		return
	}
	ids, err := l.dev.Unqueue(n)
	if err != nil {
		l.deviceError("unqueueing buffers", err)
		return
	}
	for range ids {
		s := l.popSubmissionLocked()
		l.playedFrames += s.frames
		l.playedTime += time.Duration(s.frames) * time.Second / time.Duration(s.rate)
		l.framesReclaimed.Add(s.frames)
	}
}

// discardLocked unqueues everything after a device Stop without crediting
// the play clock.
func (l *Loop) discardLocked() {
	n := l.dev.Processed()
	if n > 0 {
		if _, err := l.dev.Unqueue(n); err != nil {
			l.deviceError("unqueueing buffers", err)
		}
	}
	for l.outstanding > 0 {
		s := l.popSubmissionLocked()
		l.framesDropped.Add(s.frames)
	}
}

func (l *Loop) popSubmissionLocked() submission {
	var s submission
	if len(l.fifo) > 0 {
		s = l.fifo[0]
		l.fifo = l.fifo[1:]
	}
	if l.outstanding > 0 {
		l.outstanding--
	}
	if s.rate == 0 {
		s.rate = 1
	}
	return s
}

// Reset stops the device, drops every queued buffer and zeroes the play
// clock. A buffer being mixed while Reset runs is discarded.
func (l *Loop) Reset() {
	l.devMu.Lock()
	defer l.devMu.Unlock()
	l.epoch++
	l.primed = false
	if l.configured {
		l.dev.Stop()
		l.discardLocked()
		l.next = 0
	}
	l.playedFrames = 0
	l.playedTime = 0
}

// Pause pauses the device, keeping queued buffers.
func (l *Loop) Pause() {
	l.devMu.Lock()
	defer l.devMu.Unlock()
	l.primed = false
	l.dev.Pause()
}

// ResetSampleTime zeroes the play clock without touching the device.
func (l *Loop) ResetSampleTime() {
	l.devMu.Lock()
	defer l.devMu.Unlock()
	l.playedFrames = 0
	l.playedTime = 0
}

// SampleTime returns how much audio has played since the last reset,
// including the device's position in its current buffer.
func (l *Loop) SampleTime() time.Duration {
	l.devMu.Lock()
	defer l.devMu.Unlock()
	return l.playedTime + l.dev.Offset()
}

// PlayedFrames returns the frames of reclaimed buffers since the last reset.
func (l *Loop) PlayedFrames() int64 {
	l.devMu.Lock()
	defer l.devMu.Unlock()
	return l.playedFrames
}

// Release stops the device and frees the ring. The loop must be stopped.
func (l *Loop) Release() error {
	l.devMu.Lock()
	defer l.devMu.Unlock()
	if !l.configured {
		return nil
	}
	l.dev.Stop()
	l.discardLocked()
	err := l.dev.ReleaseBuffers(l.ring)
	l.ring = nil
	l.configured = false
	return err
}

// SetVolume sets the output level in millibels, -10000 (silent) to 0
// (full scale).
func (l *Loop) SetVolume(mB int) error {
	if mB < MinVolume || mB > MaxVolume {
		return fmt.Errorf("%w: %d", ErrVolumeRange, mB)
	}
	gain := float32(1)
	if mB != 0 {
		gain = float32(math.Pow(10, float64(mB)/2000))
	}
	l.devMu.Lock()
	defer l.devMu.Unlock()
	l.gain = gain
	l.dev.SetGain(gain)
	return nil
}

// Volume returns the output level in millibels.
func (l *Loop) Volume() int {
	l.devMu.Lock()
	gain := l.gain
	l.devMu.Unlock()
	if gain == 1 {
		return 0
	}
	if gain <= 0 {
		return MinVolume
	}
	return int(math.Round(math.Log10(float64(gain)) * 2000))
}

// SetBalance stores the left/right balance. Devices here have no pan
// control, so the value is reported back but not applied.
func (l *Loop) SetBalance(balance int) error {
	if balance < MinBalance || balance > MaxBalance {
		return fmt.Errorf("%w: %d", ErrBalanceRange, balance)
	}
	l.devMu.Lock()
	defer l.devMu.Unlock()
	l.balance = balance
	return nil
}

// Balance returns the stored balance.
func (l *Loop) Balance() int {
	l.devMu.Lock()
	defer l.devMu.Unlock()
	return l.balance
}

// Stats returns loop statistics
func (l *Loop) Stats() Stats {
	l.devMu.Lock()
	outstanding, fpb := l.outstanding, l.framesPerBuffer
	l.devMu.Unlock()
	return Stats{
		BuffersSubmitted: l.buffersSubmitted.Load(),
		FramesSubmitted:  l.framesSubmitted.Load(),
		FramesReclaimed:  l.framesReclaimed.Load(),
		FramesDropped:    l.framesDropped.Load(),
		Underruns:        l.underruns.Load(),
		StarvedTicks:     l.starvedTicks.Load(),
		FormatResets:     l.formatResets.Load(),
		DeviceErrors:     l.deviceErrors.Load(),
		Outstanding:      outstanding,
		FramesPerBuffer:  fpb,
	}
}

func (l *Loop) deviceError(op string, err error) {
	if c := l.deviceErrors.Add(1); c <= 5 || c%100 == 0 {
		log.Printf("Device error %s: %v", op, err)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
