// ABOUTME: Tests for audio types
// ABOUTME: Tests layouts, bitness mapping, frame math and sample codecs
package audio

import (
	"math"
	"testing"
	"time"
)

func TestLayoutForChannels(t *testing.T) {
	tests := []struct {
		channels int
		want     SpeakerLayout
		ok       bool
	}{
		{1, Mono, true},
		{2, Stereo, true},
		{4, Quad, true},
		{6, Surround6, true},
		{8, Surround8, true},
		{3, 0, false},
		{0, 0, false},
	}

	for _, tt := range tests {
		got, ok := LayoutForChannels(tt.channels)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("LayoutForChannels(%d) = %v, %v; want %v, %v", tt.channels, got, ok, tt.want, tt.ok)
		}
	}
}

func TestBitnessFor(t *testing.T) {
	tests := []struct {
		name    string
		bits    int
		isFloat bool
		want    Bitness
		ok      bool
	}{
		{"u8", 8, false, Bit8, true},
		{"s16", 16, false, Bit16, true},
		{"s24", 24, false, Bit24, true},
		{"s32", 32, false, Bit32, true},
		{"float", 32, true, BitFloat, true},
		{"float64 rejected", 64, true, BitFloat, false},
		{"s12 rejected", 12, false, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := BitnessFor(tt.bits, tt.isFloat)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestFormatFrameSizes(t *testing.T) {
	tests := []struct {
		name       string
		format     Format
		inputSize  int
		deviceSize int
	}{
		{"stereo s16", Format{Stereo, Bit16, 48000}, 4, 4},
		{"mono u8", Format{Mono, Bit8, 22050}, 1, 1},
		{"5.1 float", Format{Surround6, BitFloat, 48000}, 24, 24},
		{"stereo s24 widens", Format{Stereo, Bit24, 96000}, 6, 8},
		{"7.1 s32", Format{Surround8, Bit32, 48000}, 32, 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.format.InputFrameSize(); got != tt.inputSize {
				t.Errorf("input frame size: expected %d, got %d", tt.inputSize, got)
			}
			if got := tt.format.DeviceFrameSize(); got != tt.deviceSize {
				t.Errorf("device frame size: expected %d, got %d", tt.deviceSize, got)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	f := Format{Stereo, Bit16, 48000}
	if got := f.Duration(4800); got != 100*time.Millisecond {
		t.Errorf("expected 100ms, got %v", got)
	}
	if got := f.Frames(10 * time.Millisecond); got != 480 {
		t.Errorf("expected 480 frames, got %d", got)
	}
	if got := (Format{}).Duration(100); got != 0 {
		t.Errorf("expected zero duration for zero rate, got %v", got)
	}
}

func TestSampleTo24Bit(t *testing.T) {
	tests := []struct {
		name     string
		input    int32
		expected [3]byte
	}{
		{"zero", 0, [3]byte{0, 0, 0}},
		{"positive", 0x123456, [3]byte{0x56, 0x34, 0x12}},
		{"negative", -256, [3]byte{0x00, 0xFF, 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleTo24Bit(tt.input)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestSampleFrom24Bit(t *testing.T) {
	tests := []struct {
		name     string
		input    [3]byte
		expected int32
	}{
		{"zero", [3]byte{0, 0, 0}, 0},
		{"positive", [3]byte{0x56, 0x34, 0x12}, 0x123456},
		{"negative", [3]byte{0x00, 0xFF, 0xFF}, -256},
		{"max positive", [3]byte{0xFF, 0xFF, 0x7F}, Max24Bit},
		{"max negative", [3]byte{0x00, 0x00, 0x80}, Min24Bit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleFrom24Bit(tt.input)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestDecodeS24WidensToTopBits(t *testing.T) {
	src := []byte{0x56, 0x34, 0x12, 0x00, 0x00, 0x80}
	dst := make([]int32, 2)
	if n := DecodeS24(dst, src); n != 2 {
		t.Fatalf("expected 2 samples, got %d", n)
	}
	if dst[0] != 0x12345600 {
		t.Errorf("expected 0x12345600, got %#x", dst[0])
	}
	if dst[1] != math.MinInt32 {
		t.Errorf("expected MinInt32, got %d", dst[1])
	}
}

func TestS16Codec(t *testing.T) {
	in := []int16{0, 1, -1, math.MaxInt16, math.MinInt16}
	raw := make([]byte, len(in)*2)
	if n := EncodeS16(raw, in); n != len(in) {
		t.Fatalf("encoded %d samples, want %d", n, len(in))
	}
	out := make([]int16, len(in))
	if n := DecodeS16(out, raw); n != len(in) {
		t.Fatalf("decoded %d samples, want %d", n, len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("sample %d: expected %d, got %d", i, in[i], out[i])
		}
	}
}

func TestDecodeIgnoresTrailingBytes(t *testing.T) {
	dst := make([]float32, 4)
	if n := DecodeF32(dst, make([]byte, 7)); n != 1 {
		t.Errorf("expected 1 whole sample from 7 bytes, got %d", n)
	}
}

func TestFillSilence(t *testing.T) {
	buf := []byte{1, 2, 3}
	FillSilence(buf, Bit8)
	for i, b := range buf {
		if b != 0x80 {
			t.Errorf("u8 byte %d: expected 0x80, got %#x", i, b)
		}
	}
	FillSilence(buf, Bit16)
	for i, b := range buf {
		if b != 0 {
			t.Errorf("s16 byte %d: expected 0, got %#x", i, b)
		}
	}
}

func TestPutSampleAndSampleAt(t *testing.T) {
	tests := []struct {
		name    string
		bitness Bitness
		value   float64
		tol     float64
	}{
		{"u8 half", Bit8, 0.5, 1.0 / 64},
		{"s16 negative", Bit16, -0.25, 1.0 / 16384},
		{"s32 full", Bit32, 1, 1e-6},
		{"float", BitFloat, 0.125, 0},
		{"clip", Bit16, 3, 1.0 / 16384},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, 4)
			if n := PutSample(buf, tt.bitness, tt.value); n != tt.bitness.InputBytes() {
				t.Fatalf("expected %d bytes, got %d", tt.bitness.InputBytes(), n)
			}
			want := math.Max(-1, math.Min(1, tt.value))
			if got := SampleAt(buf, tt.bitness, 0); math.Abs(got-want) > tt.tol {
				t.Errorf("expected %v, got %v", want, got)
			}
		})
	}
}

func TestScaleInPlace(t *testing.T) {
	raw := make([]byte, 4)
	EncodeS16(raw, []int16{20000, -20000})
	ScaleInPlace(raw, Bit16, 0.5)
	got := make([]int16, 2)
	DecodeS16(got, raw)
	if got[0] != 10000 || got[1] != -10000 {
		t.Errorf("expected [10000 -10000], got %v", got)
	}

	u8 := []byte{0x80, 0xFF, 0x00}
	ScaleInPlace(u8, Bit8, 0)
	for i, b := range u8 {
		if b != 0x80 {
			t.Errorf("u8 sample %d: expected silence, got %#x", i, b)
		}
	}
}
