//go:build portaudio

// ABOUTME: PortAudio output implementation
// ABOUTME: Cross-platform audio output pulling from the buffer queue
package output

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/LAGonauta/pcmrender/pkg/audio"
	"github.com/gordonklaus/portaudio"
)

// PortAudio output implementation
type PortAudio struct {
	*bufferQueue

	mu          sync.Mutex
	initialized bool
	stream      *portaudio.Stream
	tag         FormatTag
	freq        int
	scratch     []byte
}

// NewPortAudio creates a new PortAudio output
func NewPortAudio() *PortAudio {
	return &PortAudio{bufferQueue: newBufferQueue()}
}

// Open initializes PortAudio
func (p *PortAudio) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	p.initialized = true
	return nil
}

// Close releases resources
func (p *PortAudio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeStream()
	p.reset()
	if !p.initialized {
		return nil
	}
	p.initialized = false
	return portaudio.Terminate()
}

func (p *PortAudio) Capabilities() Capabilities {
	return AllCapabilities("portaudio")
}

func (p *PortAudio) AllocateBuffers(n int) ([]BufferID, error) {
	p.mu.Lock()
	ok := p.initialized
	p.mu.Unlock()
	if !ok {
		return nil, ErrNotOpen
	}
	return p.allocate(n)
}

func (p *PortAudio) ReleaseBuffers(ids []BufferID) error {
	return p.release(ids)
}

func (p *PortAudio) Submit(id BufferID, pcm []byte, tag FormatTag, frequency int) error {
	if err := p.ensureStream(tag, frequency); err != nil {
		return err
	}
	return p.submit(id, pcm, tag, frequency)
}

func (p *PortAudio) ensureStream(tag FormatTag, frequency int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return ErrNotOpen
	}
	if p.stream != nil && p.tag == tag && p.freq == frequency {
		return nil
	}
	p.closeStream()

	stream, err := portaudio.OpenDefaultStream(0, tag.Layout.Channels(), float64(frequency), 0, p.callback(tag.Bitness))
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start stream: %w", err)
	}
	p.stream, p.tag, p.freq = stream, tag, frequency
	log.Printf("Audio output initialized: %s %dHz (portaudio)", tag, frequency)
	return nil
}

// callback returns a typed PortAudio callback that pulls device bytes
// from the queue and decodes them into the host sample type.
func (p *PortAudio) callback(b audio.Bitness) interface{} {
	bytesFor := func(n int) []byte {
		if cap(p.scratch) < n {
			p.scratch = make([]byte, n)
		}
		buf := p.scratch[:n]
		p.read(buf)
		return buf
	}
	switch b {
	case audio.Bit8:
		return func(out []uint8) { p.read(out) }
	case audio.Bit16:
		return func(out []int16) { audio.DecodeS16(out, bytesFor(len(out)*2)) }
	case audio.Bit32:
		return func(out []int32) { audio.DecodeS32(out, bytesFor(len(out)*4)) }
	default:
		return func(out []float32) { audio.DecodeF32(out, bytesFor(len(out)*4)) }
	}
}

// closeStream stops the active stream (must hold p.mu)
func (p *PortAudio) closeStream() {
	if p.stream == nil {
		return
	}
	if err := p.stream.Stop(); err != nil {
		log.Printf("Warning: portaudio stream stop error: %v", err)
	}
	if err := p.stream.Close(); err != nil {
		log.Printf("Warning: portaudio stream close error: %v", err)
	}
	p.stream = nil
}

func (p *PortAudio) Processed() int { return p.processedCount() }
func (p *PortAudio) Unqueue(n int) ([]BufferID, error) { return p.unqueue(n) }
func (p *PortAudio) Playing() bool { return p.playing() }
func (p *PortAudio) Play() { p.play() }
func (p *PortAudio) Stop() { p.stop() }
func (p *PortAudio) Pause() { p.pause() }
func (p *PortAudio) SetGain(gain float32) { p.setGain(gain) }
func (p *PortAudio) Gain() float32 { return p.getGain() }
func (p *PortAudio) Offset() time.Duration { return p.offset() }
