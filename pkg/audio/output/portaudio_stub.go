//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package output

import (
	"fmt"
	"time"
)

var errPortAudioDisabled = fmt.Errorf("%w: PortAudio support not enabled (build with -tags portaudio)", ErrBackendUnavailable)

// PortAudio output implementation (stub)
type PortAudio struct{}

// NewPortAudio creates a new PortAudio output
func NewPortAudio() *PortAudio {
	return &PortAudio{}
}

func (p *PortAudio) Open() error { return errPortAudioDisabled }
func (p *PortAudio) Close() error { return nil }
func (p *PortAudio) Capabilities() Capabilities { return Capabilities{Name: "portaudio"} }
func (p *PortAudio) AllocateBuffers(int) ([]BufferID, error) { return nil, errPortAudioDisabled }
func (p *PortAudio) ReleaseBuffers([]BufferID) error { return errPortAudioDisabled }
func (p *PortAudio) Submit(BufferID, []byte, FormatTag, int) error { return errPortAudioDisabled }
func (p *PortAudio) Processed() int { return 0 }
func (p *PortAudio) Unqueue(int) ([]BufferID, error) { return nil, errPortAudioDisabled }
func (p *PortAudio) Playing() bool { return false }
func (p *PortAudio) Play() {}
func (p *PortAudio) Stop() {}
func (p *PortAudio) Pause() {}
func (p *PortAudio) SetGain(float32) {}
func (p *PortAudio) Gain() float32 { return 1 }
func (p *PortAudio) Offset() time.Duration { return 0 }
