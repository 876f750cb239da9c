// ABOUTME: High-level renderer API
// ABOUTME: Ties the mixer, device loop and output device together behind a host-facing facade
package renderer

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/LAGonauta/pcmrender/pkg/audio"
	"github.com/LAGonauta/pcmrender/pkg/audio/output"
	"github.com/LAGonauta/pcmrender/pkg/mixer"
	"github.com/LAGonauta/pcmrender/pkg/playback"
	"github.com/google/uuid"
)

var (
	// ErrFormatRejected is returned when a stream format cannot be played.
	// Nothing about the renderer changes when it is returned.
	ErrFormatRejected = errors.New("renderer: format rejected")

	ErrFlushing = errors.New("renderer: flushing")
	ErrClosed   = errors.New("renderer: closed")
)

// State is the host-visible transport state.
type State string

const (
	StateStopped State = "stopped"
	StatePaused  State = "paused"
	StateRunning State = "running"
)

// Sink is what a media source pushes into.
type Sink interface {
	SetFormat(channels, sampleRate, bitsPerSample int, isFloat bool) error
	Deliver(p []byte) error
	EndOfStream()
}

// Config holds renderer configuration
type Config struct {
	// Backend names the output backend (default: "malgo"). Ignored when
	// Bindings is set.
	Backend string

	// Bindings overrides backend resolution, e.g. with a test device.
	Bindings *output.Bindings

	// Latency is the total device buffering (default: 64ms)
	Latency time.Duration

	// Buffers is the device ring size, 2 to 8 (default: 8)
	Buffers int

	// ReceiveTimeout bounds producer back-pressure (default: 500ms)
	ReceiveTimeout time.Duration

	// PollInterval is the consumer's wait between producer checks (default: 30ms)
	PollInterval time.Duration

	// MaxMixWait bounds one device buffer's wait for data (default: 100ms)
	MaxMixWait time.Duration

	// IdleSleep is how long the device loop sleeps with nothing to do (default: 1ms)
	IdleSleep time.Duration

	// Volume is the initial level in millibels, -10000 to 0 (default: 0)
	Volume int

	// Format is the format assumed until SetFormat (default: 48kHz s16 stereo)
	Format audio.Format

	// OnStateChange is called when state, format or volume change
	OnStateChange func(Status)

	// OnEndOfStream is called when the producer signals end of stream
	OnEndOfStream func()

	// OnError is called when errors occur
	OnError func(error)
}

// Status describes the current renderer state
type Status struct {
	State     State
	SessionID string
	Backend   string
	Format    audio.Format
	Tag       string
	Volume    int // millibels
	Balance   int
	Flushing  bool
}

// Stats contains pipeline statistics
type Stats struct {
	Mixer      mixer.Stats
	Loop       playback.Stats
	Buffered   time.Duration
	SampleTime time.Duration
}

// Renderer accepts PCM from a media pipeline and plays it on an output
// device. The producer calls SetFormat and Deliver on its own goroutine;
// transport control (Run, Pause, Stop) may come from any goroutine.
type Renderer struct {
	config  Config
	backend string
	device  output.Device
	caps    output.Capabilities
	mixer   *mixer.Mixer
	loop    *playback.Loop

	mu        sync.Mutex
	state     State
	sessionID string
	flushing  bool
	closed    bool
}

// New opens the output device and returns a stopped renderer. If the
// device cannot be opened, nothing is left running.
func New(config Config) (*Renderer, error) {
	if config.Backend == "" {
		config.Backend = "malgo"
	}
	if config.Format == (audio.Format{}) {
		config.Format = audio.DefaultFormat
	}

	bindings := config.Bindings
	if bindings == nil {
		var err error
		bindings, err = output.Load(config.Backend)
		if err != nil {
			return nil, err
		}
	}

	dev, err := bindings.OpenDevice()
	if err != nil {
		return nil, err
	}
	caps := dev.Capabilities()
	if err := caps.Check(config.Format); err != nil {
		dev.Close()
		return nil, fmt.Errorf("%w: initial format %v: %w", ErrFormatRejected, config.Format, err)
	}

	mx := mixer.New(
		mixer.WithFormat(config.Format),
		mixer.WithReceiveTimeout(orDefault(config.ReceiveTimeout, mixer.DefaultReceiveTimeout)),
		mixer.WithPollInterval(orDefault(config.PollInterval, mixer.DefaultPollInterval)),
		mixer.WithMaxWait(orDefault(config.MaxMixWait, mixer.DefaultMaxWait)),
	)
	loop := playback.New(mx, dev, playback.Config{
		Latency:   config.Latency,
		Buffers:   config.Buffers,
		IdleSleep: config.IdleSleep,
	})
	if err := loop.SetVolume(config.Volume); err != nil {
		dev.Close()
		return nil, err
	}

	log.Printf("Renderer ready: backend=%s, format=%v, layouts=%v, bitness=%v",
		bindings.Backend, config.Format, caps.Layouts, caps.Bitness)

	return &Renderer{
		config:  config,
		backend: bindings.Backend,
		device:  dev,
		caps:    caps,
		mixer:   mx,
		loop:    loop,
		state:   StateStopped,
	}, nil
}

// Capabilities reports what the output device can play.
func (r *Renderer) Capabilities() output.Capabilities {
	return r.caps
}

// CheckFormat reports whether a stream format would be accepted, without
// changing anything.
func (r *Renderer) CheckFormat(channels, sampleRate, bitsPerSample int, isFloat bool) (audio.Format, error) {
	layout, ok := audio.LayoutForChannels(channels)
	if !ok {
		return audio.Format{}, fmt.Errorf("%w: %d channels", ErrFormatRejected, channels)
	}
	bitness, ok := audio.BitnessFor(bitsPerSample, isFloat)
	if !ok {
		return audio.Format{}, fmt.Errorf("%w: %d-bit (float=%v) samples", ErrFormatRejected, bitsPerSample, isFloat)
	}
	if sampleRate <= 0 {
		return audio.Format{}, fmt.Errorf("%w: sample rate %d", ErrFormatRejected, sampleRate)
	}
	f := audio.Format{Layout: layout, Bitness: bitness, SampleRate: sampleRate}
	if err := r.caps.Check(f); err != nil {
		return audio.Format{}, fmt.Errorf("%w: %w", ErrFormatRejected, err)
	}
	return f, nil
}

// SetFormat negotiates the stream format. A rejected format leaves the
// current one in place.
func (r *Renderer) SetFormat(channels, sampleRate, bitsPerSample int, isFloat bool) error {
	f, err := r.CheckFormat(channels, sampleRate, bitsPerSample, isFloat)
	if err != nil {
		r.notifyError(err)
		return err
	}
	return r.SetAudioFormat(f)
}

// SetAudioFormat is SetFormat for an already built format.
func (r *Renderer) SetAudioFormat(f audio.Format) error {
	if err := r.caps.Check(f); err != nil {
		return fmt.Errorf("%w: %w", ErrFormatRejected, err)
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	changed := r.mixer.Format() != f
	err := r.mixer.SetFormat(f)
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFormatRejected, err)
	}
	if changed {
		r.notifyStateChange()
	}
	return nil
}

// Format returns the negotiated stream format.
func (r *Renderer) Format() audio.Format {
	return r.mixer.Format()
}

// Deliver hands interleaved PCM in the negotiated format to the mixer.
// It blocks until the device side wants more, bounded by the receive
// timeout. Data delivered while not running is dropped.
func (r *Renderer) Deliver(p []byte) error {
	r.mu.Lock()
	closed, flushing := r.closed, r.flushing
	r.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if flushing {
		return ErrFlushing
	}
	r.mixer.Receive(p)
	return nil
}

// EndOfStream tells the renderer that no more data follows, so whatever
// is queued plays out without waiting.
func (r *Renderer) EndOfStream() {
	r.mixer.EndOfStream()
	log.Printf("End of stream")
	if r.config.OnEndOfStream != nil {
		r.config.OnEndOfStream()
	}
}

// BeginFlush drops queued audio and rejects Deliver until EndFlush.
func (r *Renderer) BeginFlush() {
	r.mu.Lock()
	r.flushing = true
	r.mu.Unlock()
	r.mixer.Flush()
	r.notifyStateChange()
}

// EndFlush accepts data again.
func (r *Renderer) EndFlush() {
	r.mu.Lock()
	r.flushing = false
	r.mu.Unlock()
	r.notifyStateChange()
}

// Flush drops queued audio.
func (r *Renderer) Flush() {
	r.BeginFlush()
	r.EndFlush()
}

// Run starts streaming. From the stopped state it begins a new session.
func (r *Renderer) Run() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if r.state == StateRunning {
		r.mu.Unlock()
		return nil
	}
	if r.state == StateStopped {
		r.sessionID = uuid.New().String()
		r.loop.ResetSampleTime()
	}
	r.mixer.StartStreaming()
	r.loop.Start()
	r.state = StateRunning
	session := r.sessionID
	r.mu.Unlock()

	log.Printf("Renderer running (session %s)", session)
	r.notifyStateChange()
	return nil
}

// Pause stops streaming and pauses the device, keeping what it has
// queued. The play clock restarts from zero.
func (r *Renderer) Pause() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	changed := r.pauseLocked()
	r.mu.Unlock()

	if changed {
		log.Printf("Renderer paused")
		r.notifyStateChange()
	}
	return nil
}

func (r *Renderer) pauseLocked() bool {
	if r.state == StatePaused {
		return false
	}
	if r.state == StateRunning {
		r.mixer.StopStreaming()
		r.loop.Pause()
		r.loop.ResetSampleTime()
	}
	r.state = StatePaused
	return true
}

// Stop pauses if running, then stops the device loop and drops
// everything queued on the device.
func (r *Renderer) Stop() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	changed := r.stopLocked()
	r.mu.Unlock()

	if changed {
		log.Printf("Renderer stopped")
		r.notifyStateChange()
	}
	return nil
}

func (r *Renderer) stopLocked() bool {
	if r.state == StateStopped {
		return false
	}
	if r.state == StateRunning {
		r.pauseLocked()
	}
	r.loop.Stop()
	r.loop.Reset()
	r.state = StateStopped
	return true
}

// State returns the transport state.
func (r *Renderer) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// SetVolume sets the level in millibels, -10000 to 0.
func (r *Renderer) SetVolume(mB int) error {
	if err := r.loop.SetVolume(mB); err != nil {
		return err
	}
	r.notifyStateChange()
	return nil
}

// Volume returns the level in millibels.
func (r *Renderer) Volume() int {
	return r.loop.Volume()
}

// SetBalance stores the balance, -10000 (left) to 10000 (right).
func (r *Renderer) SetBalance(balance int) error {
	if err := r.loop.SetBalance(balance); err != nil {
		return err
	}
	r.notifyStateChange()
	return nil
}

// Balance returns the stored balance.
func (r *Renderer) Balance() int {
	return r.loop.Balance()
}

// SampleTime returns how much audio the device has played since the
// clock was last reset.
func (r *Renderer) SampleTime() time.Duration {
	return r.loop.SampleTime()
}

// Buffered returns how much delivered audio is waiting to be mixed.
func (r *Renderer) Buffered() time.Duration {
	return r.mixer.Buffered()
}

// Status returns current renderer state
func (r *Renderer) Status() Status {
	r.mu.Lock()
	state, session, flushing := r.state, r.sessionID, r.flushing
	r.mu.Unlock()

	f := r.mixer.Format()
	return Status{
		State:     state,
		SessionID: session,
		Backend:   r.backend,
		Format:    f,
		Tag:       output.TagFor(f).String(),
		Volume:    r.loop.Volume(),
		Balance:   r.loop.Balance(),
		Flushing:  flushing,
	}
}

// Stats returns pipeline statistics
func (r *Renderer) Stats() Stats {
	return Stats{
		Mixer:      r.mixer.Stats(),
		Loop:       r.loop.Stats(),
		Buffered:   r.mixer.Buffered(),
		SampleTime: r.loop.SampleTime(),
	}
}

// Close stops playback and releases the device
func (r *Renderer) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.stopLocked()
	r.closed = true
	r.mu.Unlock()

	if err := r.loop.Release(); err != nil {
		r.notifyError(fmt.Errorf("failed to release device buffers: %w", err))
	}
	if err := r.device.Close(); err != nil {
		return fmt.Errorf("failed to close device: %w", err)
	}
	log.Printf("Renderer closed")
	return nil
}

// notifyStateChange calls state change callback
func (r *Renderer) notifyStateChange() {
	if r.config.OnStateChange != nil {
		r.config.OnStateChange(r.Status())
	}
}

// notifyError calls error callback
func (r *Renderer) notifyError(err error) {
	if r.config.OnError != nil {
		r.config.OnError(err)
	} else {
		log.Printf("Renderer error: %v", err)
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
