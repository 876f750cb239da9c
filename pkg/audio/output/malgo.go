// ABOUTME: Malgo-based audio output implementation
// ABOUTME: Uses miniaudio via malgo, reinitializing the device on format change
package output

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/LAGonauta/pcmrender/pkg/audio"
	"github.com/gen2brain/malgo"
)

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	*bufferQueue

	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	tag      FormatTag
	freq     int
}

// NewMalgo creates a new Malgo output
func NewMalgo() *Malgo {
	return &Malgo{bufferQueue: newBufferQueue()}
}

// Open initializes the miniaudio context. The playback device is created
// once the first buffer tells us the format.
func (m *Malgo) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.malgoCtx != nil {
		return nil
	}
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	m.malgoCtx = ctx
	return nil
}

// Close releases output resources
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeDevice()
	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	m.reset()
	return nil
}

// Capabilities reports every layout with u8, s16, s32 and float samples.
func (m *Malgo) Capabilities() Capabilities {
	return AllCapabilities("malgo")
}

func (m *Malgo) AllocateBuffers(n int) ([]BufferID, error) {
	m.mu.Lock()
	open := m.malgoCtx != nil
	m.mu.Unlock()
	if !open {
		return nil, ErrNotOpen
	}
	return m.allocate(n)
}

func (m *Malgo) ReleaseBuffers(ids []BufferID) error {
	return m.release(ids)
}

// Submit queues pcm, (re)initializing the playback device if the format
// differs from the one it was opened with.
func (m *Malgo) Submit(id BufferID, pcm []byte, tag FormatTag, frequency int) error {
	if err := m.ensureDevice(tag, frequency); err != nil {
		return err
	}
	return m.submit(id, pcm, tag, frequency)
}

func (m *Malgo) ensureDevice(tag FormatTag, frequency int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.malgoCtx == nil {
		return ErrNotOpen
	}
	if m.device != nil && m.tag == tag && m.freq == frequency {
		return nil
	}
	if m.device != nil {
		log.Printf("Format change detected (%s %dHz -> %s %dHz), reinitializing device",
			m.tag, m.freq, tag, frequency)
		m.closeDevice()
	}

	format, err := malgoFormat(tag.Bitness)
	if err != nil {
		return err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = format
	deviceConfig.Playback.Channels = uint32(tag.Layout.Channels())
	deviceConfig.SampleRate = uint32(frequency)
	deviceConfig.Alsa.NoMMap = 1

	// The callback runs on miniaudio's thread and must not take m.mu;
	// closeDevice waits for it while holding the lock.
	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, _ uint32) {
			m.read(pOutput)
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.device = device
	m.tag = tag
	m.freq = frequency
	log.Printf("Audio output initialized: %s %dHz (malgo/%s)", tag, frequency, formatName(format))
	return nil
}

// closeDevice stops and uninitializes the device (must hold m.mu)
func (m *Malgo) closeDevice() {
	if m.device == nil {
		return
	}
	if err := m.device.Stop(); err != nil {
		log.Printf("Warning: device stop error: %v", err)
	}
	m.device.Uninit()
	m.device = nil
}

func (m *Malgo) Processed() int { return m.processedCount() }
func (m *Malgo) Unqueue(n int) ([]BufferID, error) { return m.unqueue(n) }
func (m *Malgo) Playing() bool { return m.playing() }
func (m *Malgo) Play() { m.play() }
func (m *Malgo) Stop() { m.stop() }
func (m *Malgo) Pause() { m.pause() }
func (m *Malgo) SetGain(gain float32) { m.setGain(gain) }
func (m *Malgo) Gain() float32 { return m.getGain() }
func (m *Malgo) Offset() time.Duration { return m.offset() }

func malgoFormat(b audio.Bitness) (malgo.FormatType, error) {
	switch b {
	case audio.Bit8:
		return malgo.FormatU8, nil
	case audio.Bit16:
		return malgo.FormatS16, nil
	case audio.Bit32:
		return malgo.FormatS32, nil
	case audio.BitFloat:
		return malgo.FormatF32, nil
	}
	return malgo.FormatUnknown, fmt.Errorf("%w: malgo cannot play %s samples", ErrUnsupportedFormat, b)
}

// formatName returns human-readable format name
func formatName(format malgo.FormatType) string {
	switch format {
	case malgo.FormatU8:
		return "U8"
	case malgo.FormatS16:
		return "S16"
	case malgo.FormatS32:
		return "S32"
	case malgo.FormatF32:
		return "F32"
	default:
		return fmt.Sprintf("Unknown(%d)", format)
	}
}
