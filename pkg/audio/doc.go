// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, layouts, bitness and PCM sample codecs
// Package audio provides the PCM vocabulary shared by the mixer, the
// device loop and the output backends.
//
// This package defines:
//   - SpeakerLayout: mono through 7.1 channel arrangements
//   - Bitness: u8, s16, packed s24, s32 and float32 sample encodings
//   - Format: layout, bitness and sample rate of an interleaved stream
//
// It also provides little-endian codecs between raw bytes and typed
// sample slices, plus silence and gain helpers that understand each
// encoding.
//
// Example:
//
//	format := audio.Format{
//	    Layout:     audio.Surround6,
//	    Bitness:    audio.BitFloat,
//	    SampleRate: 48000,
//	}
//
//	// 10ms of device data
//	size := int(format.Frames(10*time.Millisecond)) * format.DeviceFrameSize()
package audio
