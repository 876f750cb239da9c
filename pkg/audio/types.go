// ABOUTME: Audio type definitions
// ABOUTME: Defines speaker layouts, sample bitness and the PCM stream format
package audio

import (
	"fmt"
	"time"
)

const (
	// 24-bit audio range constants
	Max24Bit = 8388607  // 2^23 - 1
	Min24Bit = -8388608 // -2^23
)

// SpeakerLayout is the channel arrangement of an interleaved stream.
type SpeakerLayout int

const (
	Mono SpeakerLayout = iota
	Stereo
	Quad
	Surround6 // 5.1
	Surround8 // 7.1
)

// Layouts lists every layout in ascending channel count.
var Layouts = []SpeakerLayout{Mono, Stereo, Quad, Surround6, Surround8}

// Channels returns the interleaved channel count of the layout.
func (l SpeakerLayout) Channels() int {
	switch l {
	case Mono:
		return 1
	case Stereo:
		return 2
	case Quad:
		return 4
	case Surround6:
		return 6
	case Surround8:
		return 8
	}
	return 0
}

func (l SpeakerLayout) String() string {
	switch l {
	case Mono:
		return "mono"
	case Stereo:
		return "stereo"
	case Quad:
		return "quad"
	case Surround6:
		return "5.1"
	case Surround8:
		return "7.1"
	}
	return fmt.Sprintf("layout(%d)", int(l))
}

// LayoutForChannels maps a channel count onto a layout.
func LayoutForChannels(channels int) (SpeakerLayout, bool) {
	for _, l := range Layouts {
		if l.Channels() == channels {
			return l, true
		}
	}
	return 0, false
}

// Bitness is the sample encoding of a stream.
type Bitness int

const (
	Bit8     Bitness = iota // unsigned 8-bit
	Bit16                   // signed 16-bit little-endian
	Bit24                   // signed 24-bit packed little-endian (input only)
	Bit32                   // signed 32-bit little-endian
	BitFloat                // IEEE float32 little-endian
)

// Bitnesses lists every bitness the renderer knows about.
var Bitnesses = []Bitness{Bit8, Bit16, Bit24, Bit32, BitFloat}

// InputBytes is the width of one sample as delivered by the producer.
func (b Bitness) InputBytes() int {
	switch b {
	case Bit8:
		return 1
	case Bit16:
		return 2
	case Bit24:
		return 3
	case Bit32, BitFloat:
		return 4
	}
	return 0
}

// Device returns the bitness a device is fed with. Packed 24-bit
// input is widened into a 32-bit container.
func (b Bitness) Device() Bitness {
	if b == Bit24 {
		return Bit32
	}
	return b
}

// DeviceBytes is the width of one sample as submitted to a device.
func (b Bitness) DeviceBytes() int {
	return b.Device().InputBytes()
}

func (b Bitness) String() string {
	switch b {
	case Bit8:
		return "u8"
	case Bit16:
		return "s16"
	case Bit24:
		return "s24"
	case Bit32:
		return "s32"
	case BitFloat:
		return "f32"
	}
	return fmt.Sprintf("bitness(%d)", int(b))
}

// BitnessFor maps a bits-per-sample value and float flag onto a bitness.
func BitnessFor(bits int, isFloat bool) (Bitness, bool) {
	if isFloat {
		return BitFloat, bits == 32
	}
	switch bits {
	case 8:
		return Bit8, true
	case 16:
		return Bit16, true
	case 24:
		return Bit24, true
	case 32:
		return Bit32, true
	}
	return 0, false
}

// Format describes an interleaved PCM stream.
type Format struct {
	Layout     SpeakerLayout
	Bitness    Bitness
	SampleRate int
}

// DefaultFormat is used until the producer negotiates one.
var DefaultFormat = Format{Layout: Stereo, Bitness: Bit16, SampleRate: 48000}

// Channels returns the channel count of the layout.
func (f Format) Channels() int {
	return f.Layout.Channels()
}

// InputFrameSize is the block alignment of producer data in bytes.
func (f Format) InputFrameSize() int {
	return f.Channels() * f.Bitness.InputBytes()
}

// DeviceFrameSize is the block alignment of device buffers in bytes.
func (f Format) DeviceFrameSize() int {
	return f.Channels() * f.Bitness.DeviceBytes()
}

// Duration converts a frame count at this rate into time.
func (f Format) Duration(frames int64) time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// Frames converts a duration into whole frames at this rate.
func (f Format) Frames(d time.Duration) int64 {
	return int64(d) * int64(f.SampleRate) / int64(time.Second)
}

// Valid reports whether every field holds a known value.
func (f Format) Valid() bool {
	return f.Channels() > 0 && f.Bitness.InputBytes() > 0 && f.SampleRate > 0
}

func (f Format) String() string {
	return fmt.Sprintf("%s %s %dHz", f.Layout, f.Bitness, f.SampleRate)
}

// SampleTo24Bit converts int32 to 24-bit packed bytes (little-endian)
func SampleTo24Bit(sample int32) [3]byte {
	return [3]byte{
		byte(sample),
		byte(sample >> 8),
		byte(sample >> 16),
	}
}

// SampleFrom24Bit converts 24-bit packed bytes to int32 (little-endian)
func SampleFrom24Bit(b [3]byte) int32 {
	val := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
	// Sign extend from 24-bit to 32-bit
	if val&0x800000 != 0 {
		val |= ^0xFFFFFF
	}
	return val
}
