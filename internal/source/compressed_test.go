// ABOUTME: Tests for the compressed file sources
// ABOUTME: Round-trips FLAC and Ogg Opus files and drives Vorbis decoding through a fake
package source

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/LAGonauta/pcmrender/pkg/audio"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
	"gopkg.in/hraban/opus.v2"
)

func TestFLACRoundTrip(t *testing.T) {
	ints, want := testSamples()
	frames := len(ints) / 2
	left := make([]int32, frames)
	right := make([]int32, frames)
	for i := 0; i < frames; i++ {
		left[i] = int32(ints[2*i])
		right[i] = int32(ints[2*i+1])
	}

	path := filepath.Join(t.TempDir(), "ramp.flac")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	info := &meta.StreamInfo{
		BlockSizeMin:  16,
		BlockSizeMax:  uint16(frames),
		SampleRate:    44100,
		NChannels:     2,
		BitsPerSample: 16,
		NSamples:      uint64(frames),
	}
	enc, err := flac.NewEncoder(f, info)
	if err != nil {
		t.Fatal(err)
	}
	verbatim := func(samples []int32) *frame.Subframe {
		return &frame.Subframe{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   samples,
			NSamples:  len(samples),
		}
	}
	err = enc.WriteFrame(&frame.Frame{
		Header: frame.Header{
			HasFixedBlockSize: true,
			BlockSize:         uint16(frames),
			SampleRate:        44100,
			Channels:          frame.ChannelsLR,
			BitsPerSample:     16,
		},
		Subframes: []*frame.Subframe{verbatim(left), verbatim(right)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}

	src, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	if _, ok := src.(*FLACSource); !ok {
		t.Fatalf("expected *FLACSource, got %T", src)
	}
	wantFormat := audio.Format{Layout: audio.Stereo, Bitness: audio.Bit16, SampleRate: 44100}
	if src.Format() != wantFormat {
		t.Errorf("expected %v, got %v", wantFormat, src.Format())
	}
	got, err := readFrames(src)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("FLAC data differs: got %d bytes, want %d", len(got), len(want))
	}
}

// oggCRC is the Ogg page checksum: CRC-32 with polynomial 0x04c11db7,
// unreflected, zero initial value.
func oggCRC(page []byte) uint32 {
	var crc uint32
	for _, b := range page {
		crc ^= uint32(b) << 24
		for range 8 {
			if crc&0x80000000 != 0 {
				crc = crc<<1 ^ 0x04c11db7
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// oggPage frames a single packet as one Ogg page.
func oggPage(packet []byte, headerType byte, granule uint64, seq uint32) []byte {
	var lacing []byte
	n := len(packet)
	for ; n >= 255; n -= 255 {
		lacing = append(lacing, 255)
	}
	lacing = append(lacing, byte(n))

	page := make([]byte, 27, 27+len(lacing)+len(packet))
	copy(page, "OggS")
	page[5] = headerType
	binary.LittleEndian.PutUint64(page[6:], granule)
	binary.LittleEndian.PutUint32(page[14:], 0x5eed)
	binary.LittleEndian.PutUint32(page[18:], seq)
	page[26] = byte(len(lacing))
	page = append(page, lacing...)
	page = append(page, packet...)
	binary.LittleEndian.PutUint32(page[22:], oggCRC(page))
	return page
}

func opusHead(channels int) []byte {
	head := make([]byte, 19)
	copy(head, "OpusHead")
	head[8] = 1
	head[9] = byte(channels)
	binary.LittleEndian.PutUint32(head[12:], 48000)
	return head
}

// writeOggOpus encodes the given number of 20ms packets of a 440 Hz tone into an
// Ogg Opus file with no pre-skip.
func writeOggOpus(t *testing.T, path string, channels, packets int) {
	t.Helper()
	const frameSize = 960
	enc, err := opus.NewEncoder(48000, channels, opus.AppAudio)
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	out.Write(oggPage(opusHead(channels), 0x02, 0, 0))
	tags := []byte("OpusTags\x00\x00\x00\x00\x00\x00\x00\x00")
	out.Write(oggPage(tags, 0, 0, 1))

	pcm := make([]int16, frameSize*channels)
	data := make([]byte, 4000)
	for p := 0; p < packets; p++ {
		for i := 0; i < frameSize; i++ {
			v := int16(8000 * math.Sin(2*math.Pi*440*float64(p*frameSize+i)/48000))
			for ch := 0; ch < channels; ch++ {
				pcm[i*channels+ch] = v
			}
		}
		n, err := enc.Encode(pcm, data)
		if err != nil {
			t.Fatal(err)
		}
		var headerType byte
		if p == packets-1 {
			headerType = 0x04
		}
		out.Write(oggPage(data[:n], headerType, uint64((p+1)*frameSize), uint32(p+2)))
	}

	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestOpusChannelCountFromStream(t *testing.T) {
	tests := []struct {
		name     string
		channels int
		layout   audio.SpeakerLayout
	}{
		{"mono", 1, audio.Mono},
		{"stereo", 2, audio.Stereo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.name+".opus")
			writeOggOpus(t, path, tt.channels, 5)

			src, err := Open(path)
			if err != nil {
				t.Fatal(err)
			}
			defer src.Close()

			want := audio.Format{Layout: tt.layout, Bitness: audio.Bit16, SampleRate: 48000}
			if src.Format() != want {
				t.Errorf("expected %v, got %v", want, src.Format())
			}
			got, err := readFrames(src)
			if err != nil {
				t.Fatal(err)
			}
			if frames := len(got) / want.InputFrameSize(); frames != 5*960 {
				t.Errorf("expected %d frames, got %d", 5*960, frames)
			}
		})
	}
}

func TestOpusChannels(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    int
		wantErr bool
	}{
		{"mono", oggPage(opusHead(1), 0x02, 0, 0), 1, false},
		{"5.1", oggPage(opusHead(6), 0x02, 0, 0), 6, false},
		{"not ogg", []byte("RIFF$\x00\x00\x00WAVEfmt "), 0, true},
		{"vorbis stream", oggPage([]byte("\x01vorbis\x00\x00\x00\x00\x02"), 0x02, 0, 0), 0, true},
		{"truncated head", oggPage(opusHead(1), 0x02, 0, 0)[:30], 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := opusChannels(bytes.NewReader(tt.data))
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedFile) {
					t.Errorf("expected ErrUnsupportedFile, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("expected %d channels, got %d", tt.want, got)
			}
		})
	}
}

// fakeVorbis hands out fixed interleaved samples a few at a time.
type fakeVorbis struct {
	channels int
	rate     int
	samples  []float32
	chunk    int
}

func (f *fakeVorbis) Channels() int   { return f.channels }
func (f *fakeVorbis) SampleRate() int { return f.rate }

func (f *fakeVorbis) Read(p []float32) (int, error) {
	if len(f.samples) == 0 {
		return 0, io.EOF
	}
	n := copy(p[:min(len(p), f.chunk)], f.samples)
	f.samples = f.samples[n:]
	return n, nil
}

type closerFunc func() error

func (c closerFunc) Close() error { return c() }

func TestVorbisSourceEncodesFloat(t *testing.T) {
	samples := make([]float32, 6*300)
	for i := range samples {
		samples[i] = float32(i%200)/100 - 1
	}
	closed := false
	dec := &fakeVorbis{channels: 6, rate: 44100, samples: samples, chunk: 6 * 64}

	src, err := newVorbisSource(closerFunc(func() error { closed = true; return nil }), dec, "forest")
	if err != nil {
		t.Fatal(err)
	}

	want := audio.Format{Layout: audio.Surround6, Bitness: audio.BitFloat, SampleRate: 44100}
	if src.Format() != want {
		t.Errorf("expected %v, got %v", want, src.Format())
	}
	got, err := readFrames(src)
	if err != nil {
		t.Fatal(err)
	}
	decoded := make([]float32, len(got)/4)
	audio.DecodeF32(decoded, got)
	if len(decoded) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(decoded))
	}
	for i := range samples {
		if decoded[i] != samples[i] {
			t.Fatalf("sample %d: expected %v, got %v", i, samples[i], decoded[i])
		}
	}

	if err := src.Close(); err != nil || !closed {
		t.Errorf("expected file closed, got closed=%v err=%v", closed, err)
	}
}

func TestVorbisSourceShortBuffer(t *testing.T) {
	dec := &fakeVorbis{channels: 2, rate: 48000, samples: make([]float32, 8), chunk: 8}
	src, err := newVorbisSource(closerFunc(func() error { return nil }), dec, "short")
	if err != nil {
		t.Fatal(err)
	}
	// smaller than one stereo float frame
	if n, err := src.Read(make([]byte, 7)); n != 0 || err != nil {
		t.Errorf("expected (0, nil), got (%d, %v)", n, err)
	}
}

func TestVorbisSourceRejectsLayout(t *testing.T) {
	dec := &fakeVorbis{channels: 3, rate: 48000}
	if _, err := newVorbisSource(closerFunc(func() error { return nil }), dec, "odd"); !errors.Is(err, ErrUnsupportedSample) {
		t.Errorf("expected ErrUnsupportedSample, got %v", err)
	}
}

func TestOpenCompressedRejectsGarbage(t *testing.T) {
	for _, ext := range []string{".mp3", ".flac", ".ogg", ".opus"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "noise"+ext)
			if err := os.WriteFile(path, []byte("this is not audio data"), 0o644); err != nil {
				t.Fatal(err)
			}
			src, err := Open(path)
			if err == nil {
				src.Close()
				t.Fatalf("expected %s decode error", ext)
			}
		})
	}
}
