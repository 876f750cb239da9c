// ABOUTME: Little-endian PCM sample codecs
// ABOUTME: Converts between raw interleaved bytes and typed sample slices
package audio

import (
	"encoding/binary"
	"math"
)

// Sample is the set of in-memory sample containers a queue can hold.
type Sample interface {
	~uint8 | ~int16 | ~int32 | ~float32
}

// DecodeU8 copies unsigned 8-bit samples. It returns the samples written.
func DecodeU8(dst []uint8, src []byte) int {
	return copy(dst, src)
}

// DecodeS16 decodes signed 16-bit little-endian samples.
func DecodeS16(dst []int16, src []byte) int {
	n := min(len(dst), len(src)/2)
	for i := 0; i < n; i++ {
		dst[i] = int16(binary.LittleEndian.Uint16(src[i*2:]))
	}
	return n
}

// DecodeS24 decodes packed 24-bit samples into the top of a 32-bit container.
func DecodeS24(dst []int32, src []byte) int {
	n := min(len(dst), len(src)/3)
	for i := 0; i < n; i++ {
		o := i * 3
		dst[i] = SampleFrom24Bit([3]byte{src[o], src[o+1], src[o+2]}) << 8
	}
	return n
}

// DecodeS32 decodes signed 32-bit little-endian samples.
func DecodeS32(dst []int32, src []byte) int {
	n := min(len(dst), len(src)/4)
	for i := 0; i < n; i++ {
		dst[i] = int32(binary.LittleEndian.Uint32(src[i*4:]))
	}
	return n
}

// DecodeF32 decodes IEEE float32 little-endian samples.
func DecodeF32(dst []float32, src []byte) int {
	n := min(len(dst), len(src)/4)
	for i := 0; i < n; i++ {
		dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
	return n
}

// EncodeU8 copies unsigned 8-bit samples. It returns the samples written.
func EncodeU8(dst []byte, src []uint8) int {
	return copy(dst, src)
}

// EncodeS16 encodes signed 16-bit little-endian samples.
func EncodeS16(dst []byte, src []int16) int {
	n := min(len(src), len(dst)/2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(src[i]))
	}
	return n
}

// EncodeS32 encodes signed 32-bit little-endian samples.
func EncodeS32(dst []byte, src []int32) int {
	n := min(len(src), len(dst)/4)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(dst[i*4:], uint32(src[i]))
	}
	return n
}

// EncodeF32 encodes IEEE float32 little-endian samples.
func EncodeF32(dst []byte, src []float32) int {
	n := min(len(src), len(dst)/4)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(src[i]))
	}
	return n
}

// Silence returns the byte pattern of a silent sample. Unsigned 8-bit
// audio is centred on 0x80, every other encoding on zero.
func Silence(b Bitness) byte {
	if b == Bit8 {
		return 0x80
	}
	return 0
}

// FillSilence writes silence for bitness b over all of dst.
func FillSilence(dst []byte, b Bitness) {
	s := Silence(b)
	for i := range dst {
		dst[i] = s
	}
}

// PutSample writes v (nominally -1..1) as one sample of bitness b into
// dst and returns the bytes used. Values are clipped to full scale.
func PutSample(dst []byte, b Bitness, v float64) int {
	v = math.Max(-1, math.Min(1, v))
	switch b {
	case Bit8:
		dst[0] = uint8(int(math.Round(v*127)) + 128)
		return 1
	case Bit16:
		binary.LittleEndian.PutUint16(dst, uint16(int16(math.Round(v*math.MaxInt16))))
		return 2
	case Bit24:
		p := SampleTo24Bit(int32(math.Round(v * Max24Bit)))
		copy(dst, p[:])
		return 3
	case Bit32:
		binary.LittleEndian.PutUint32(dst, uint32(int32(math.Round(v*math.MaxInt32))))
		return 4
	case BitFloat:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(float32(v)))
		return 4
	}
	return 0
}

// SampleAt reads the i-th sample of a device-width buffer as a value
// in -1..1.
func SampleAt(src []byte, b Bitness, i int) float64 {
	switch b.Device() {
	case Bit8:
		return float64(int(src[i])-128) / 128
	case Bit16:
		return float64(int16(binary.LittleEndian.Uint16(src[i*2:]))) / 32768
	case Bit32:
		return float64(int32(binary.LittleEndian.Uint32(src[i*4:]))) / 2147483648
	case BitFloat:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:])))
	}
	return 0
}

// ScaleInPlace multiplies every device-width sample in buf by gain,
// clamping to the encoding's range.
func ScaleInPlace(buf []byte, b Bitness, gain float32) {
	if gain == 1 {
		return
	}
	g := float64(gain)
	switch b.Device() {
	case Bit8:
		for i, s := range buf {
			v := math.Round(float64(int(s)-128) * g)
			buf[i] = uint8(clamp(v, -128, 127) + 128)
		}
	case Bit16:
		for i := 0; i+1 < len(buf); i += 2 {
			v := math.Round(float64(int16(binary.LittleEndian.Uint16(buf[i:]))) * g)
			binary.LittleEndian.PutUint16(buf[i:], uint16(int16(clamp(v, math.MinInt16, math.MaxInt16))))
		}
	case Bit32:
		for i := 0; i+3 < len(buf); i += 4 {
			v := math.Round(float64(int32(binary.LittleEndian.Uint32(buf[i:]))) * g)
			binary.LittleEndian.PutUint32(buf[i:], uint32(int32(clamp(v, math.MinInt32, math.MaxInt32))))
		}
	case BitFloat:
		for i := 0; i+3 < len(buf); i += 4 {
			v := math.Float32frombits(binary.LittleEndian.Uint32(buf[i:])) * gain
			binary.LittleEndian.PutUint32(buf[i:], math.Float32bits(v))
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
