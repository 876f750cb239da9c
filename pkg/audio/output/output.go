// ABOUTME: Audio output device interface definition
// ABOUTME: Buffer-queue device model, format tags and capability gating
package output

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/LAGonauta/pcmrender/pkg/audio"
)

var (
	ErrNotOpen            = errors.New("output: device not open")
	ErrUnknownBuffer      = errors.New("output: unknown buffer")
	ErrBufferQueued       = errors.New("output: buffer is queued")
	ErrInvalidUnqueue     = errors.New("output: unqueue exceeds processed buffers")
	ErrUnsupportedFormat  = errors.New("output: unsupported format")
	ErrBackendUnavailable = errors.New("output: backend unavailable")
)

// BufferID names a device buffer returned by AllocateBuffers.
type BufferID uint32

// Device is a buffer-queue audio device: the caller allocates a fixed set
// of buffers, fills and submits them in order, and reclaims them once the
// device reports them processed. A device that runs out of queued data
// stops playing on its own and stays silent until Play is called again.
type Device interface {
	// Open acquires the underlying audio API.
	Open() error

	// Close stops playback and releases everything, buffers included.
	Close() error

	// Capabilities reports which layouts and encodings the device accepts.
	Capabilities() Capabilities

	// AllocateBuffers creates n empty buffers.
	AllocateBuffers(n int) ([]BufferID, error)

	// ReleaseBuffers deletes buffers. Queued buffers cannot be released.
	ReleaseBuffers(ids []BufferID) error

	// Submit fills a buffer with interleaved PCM and appends it to the
	// play queue.
	Submit(id BufferID, pcm []byte, tag FormatTag, frequency int) error

	// Processed returns how many queued buffers have finished playing.
	Processed() int

	// Unqueue removes the n oldest processed buffers from the queue.
	Unqueue(n int) ([]BufferID, error)

	Playing() bool
	Play()
	Stop()
	Pause()

	// SetGain sets the linear output gain applied to every sample.
	SetGain(gain float32)
	Gain() float32

	// Offset returns the play position inside the buffer being played.
	Offset() time.Duration
}

// FormatTag identifies the sample layout of a submitted buffer.
type FormatTag struct {
	Layout  audio.SpeakerLayout
	Bitness audio.Bitness
}

// TagFor returns the device tag for a stream format. Packed 24-bit
// streams are submitted as 32-bit.
func TagFor(f audio.Format) FormatTag {
	return FormatTag{Layout: f.Layout, Bitness: f.Bitness.Device()}
}

// FrameSize is the size in bytes of one interleaved frame.
func (t FormatTag) FrameSize() int {
	return t.Layout.Channels() * t.Bitness.DeviceBytes()
}

// String returns the OpenAL enum name for the tag, e.g.
// AL_FORMAT_STEREO16 or AL_FORMAT_51CHN32.
func (t FormatTag) String() string {
	name := "AL_FORMAT_"
	switch t.Layout {
	case audio.Mono:
		name += "MONO"
	case audio.Stereo:
		name += "STEREO"
	case audio.Quad:
		name += "QUAD"
	case audio.Surround6:
		name += "51CHN"
	case audio.Surround8:
		name += "71CHN"
	}

	multichannel := t.Layout != audio.Mono && t.Layout != audio.Stereo
	switch t.Bitness.Device() {
	case audio.Bit8:
		name += "8"
	case audio.Bit16:
		name += "16"
	case audio.Bit32:
		if multichannel {
			// 32 alone names the float multichannel formats
			name += "_INT32"
		} else {
			name += "32"
		}
	case audio.BitFloat:
		if multichannel {
			name += "32"
		} else {
			name += "_FLOAT32"
		}
	}
	return name
}

// Capabilities lists what a device can play. Bitness holds device
// encodings; packed 24-bit input is accepted wherever 32-bit is.
type Capabilities struct {
	Name    string
	Layouts []audio.SpeakerLayout
	Bitness []audio.Bitness
}

// ProbeCapabilities derives capabilities from the extensions an OpenAL
// style implementation advertises: float32 output, multichannel formats
// and 32-bit integer output.
func ProbeCapabilities(name string, hasFloat, hasSurround, hasFixed32 bool) Capabilities {
	caps := Capabilities{
		Name:    name,
		Layouts: []audio.SpeakerLayout{audio.Mono, audio.Stereo},
		Bitness: []audio.Bitness{audio.Bit8, audio.Bit16},
	}
	if hasFloat {
		caps.Bitness = append(caps.Bitness, audio.BitFloat)
	}
	if hasFixed32 {
		caps.Bitness = append(caps.Bitness, audio.Bit32)
	}
	if hasSurround {
		caps.Layouts = append(caps.Layouts, audio.Quad, audio.Surround6, audio.Surround8)
	}
	return caps
}

// AllCapabilities accepts every layout and encoding.
func AllCapabilities(name string) Capabilities {
	return ProbeCapabilities(name, true, true, true)
}

// SupportsLayout reports whether the device can play l.
func (c Capabilities) SupportsLayout(l audio.SpeakerLayout) bool {
	return slices.Contains(c.Layouts, l)
}

// SupportsBitness reports whether the device can play b, widening packed
// 24-bit input to 32-bit.
func (c Capabilities) SupportsBitness(b audio.Bitness) bool {
	return slices.Contains(c.Bitness, b.Device())
}

// Check returns an error wrapping ErrUnsupportedFormat when f cannot be
// played.
func (c Capabilities) Check(f audio.Format) error {
	if !c.SupportsLayout(f.Layout) {
		return fmt.Errorf("%w: %s does not support %s layout", ErrUnsupportedFormat, c.Name, f.Layout)
	}
	if !c.SupportsBitness(f.Bitness) {
		return fmt.Errorf("%w: %s does not support %s samples", ErrUnsupportedFormat, c.Name, f.Bitness)
	}
	return nil
}
