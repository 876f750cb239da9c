// ABOUTME: Oto-based audio output implementation
// ABOUTME: Streams the buffer queue through a persistent oto player
package output

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/LAGonauta/pcmrender/pkg/audio"
	"github.com/ebitengine/oto/v3"
)

// oto allows one context per process, so it is shared by every Oto device
// and fixed to the first format it was created with.
var (
	otoMu     sync.Mutex
	otoCtx    *oto.Context
	otoTag    FormatTag
	otoFreq   int
	otoBuffer = 20 * time.Millisecond
)

// Oto output implementation using oto library
type Oto struct {
	*bufferQueue

	mu     sync.Mutex
	open   bool
	player *oto.Player
}

// NewOto creates a new Oto output
func NewOto() *Oto {
	return &Oto{bufferQueue: newBufferQueue()}
}

// Open marks the device usable. The oto context itself is created on the
// first Submit, once the stream format is known.
func (o *Oto) Open() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.open = true
	return nil
}

// Close releases output resources
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player != nil {
		o.player.Pause()
		if err := o.player.Close(); err != nil {
			log.Printf("Warning: oto player close error: %v", err)
		}
		o.player = nil
	}
	o.open = false
	o.reset()
	return nil
}

// Capabilities reports what oto can render: any channel count, with
// unsigned 8-bit, signed 16-bit or float samples.
func (o *Oto) Capabilities() Capabilities {
	return ProbeCapabilities("oto", true, true, false)
}

func (o *Oto) AllocateBuffers(n int) ([]BufferID, error) {
	if !o.isOpen() {
		return nil, ErrNotOpen
	}
	return o.allocate(n)
}

func (o *Oto) ReleaseBuffers(ids []BufferID) error {
	return o.release(ids)
}

// Submit queues pcm, creating the oto context for tag and frequency if
// this is the first submission in the process.
func (o *Oto) Submit(id BufferID, pcm []byte, tag FormatTag, frequency int) error {
	if err := o.ensurePlayer(tag, frequency); err != nil {
		return err
	}
	return o.submit(id, pcm, tag, frequency)
}

func (o *Oto) ensurePlayer(tag FormatTag, frequency int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.open {
		return ErrNotOpen
	}

	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx == nil {
		format, err := otoFormat(tag.Bitness)
		if err != nil {
			return err
		}
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   frequency,
			ChannelCount: tag.Layout.Channels(),
			Format:       format,
			BufferSize:   otoBuffer,
		})
		if err != nil {
			return fmt.Errorf("failed to create oto context: %w", err)
		}
		<-ready
		otoCtx, otoTag, otoFreq = ctx, tag, frequency
		log.Printf("Audio output initialized: %s %dHz (oto)", tag, frequency)
	} else if tag != otoTag || frequency != otoFreq {
		// oto cannot be reinitialised within a process
		return fmt.Errorf("%w: oto context locked to %s %dHz, got %s %dHz",
			ErrUnsupportedFormat, otoTag, otoFreq, tag, frequency)
	}

	if o.player == nil {
		o.player = otoCtx.NewPlayer(o.bufferQueue)
		o.player.SetBufferSize(int(int64(frequency)*int64(otoBuffer)/int64(time.Second)) * tag.FrameSize())
		o.player.Play()
	}
	return nil
}

func (o *Oto) isOpen() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.open
}

func (o *Oto) Processed() int { return o.processedCount() }
func (o *Oto) Unqueue(n int) ([]BufferID, error) { return o.unqueue(n) }
func (o *Oto) Playing() bool { return o.playing() }
func (o *Oto) Play() { o.play() }
func (o *Oto) Stop() { o.stop() }
func (o *Oto) Pause() { o.pause() }
func (o *Oto) SetGain(gain float32) { o.setGain(gain) }
func (o *Oto) Gain() float32 { return o.getGain() }
func (o *Oto) Offset() time.Duration { return o.offset() }

func otoFormat(b audio.Bitness) (oto.Format, error) {
	switch b {
	case audio.Bit8:
		return oto.FormatUnsignedInt8, nil
	case audio.Bit16:
		return oto.FormatSignedInt16LE, nil
	case audio.BitFloat:
		return oto.FormatFloat32LE, nil
	}
	return 0, fmt.Errorf("%w: oto cannot play %s samples", ErrUnsupportedFormat, b)
}
