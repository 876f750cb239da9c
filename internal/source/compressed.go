// ABOUTME: Compressed file sources: MP3, FLAC, Ogg Vorbis and Ogg Opus
// ABOUTME: Each decodes to the renderer's little-endian input encoding
package source

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/LAGonauta/pcmrender/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/mewkiz/flac"
	"gopkg.in/hraban/opus.v2"
)

// MP3Source reads from an MP3 file
type MP3Source struct {
	file    *os.File
	decoder *mp3.Decoder
	title   string
}

// OpenMP3 creates a new MP3 audio source. go-mp3 always produces
// 16-bit stereo.
func OpenMP3(path string) (*MP3Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	s := &MP3Source{file: f, decoder: decoder, title: titleFromPath(path)}
	log.Printf("Loaded MP3: %s (sample rate: %d Hz)", s.title, decoder.SampleRate())
	return s, nil
}

func (s *MP3Source) Format() audio.Format {
	return audio.Format{Layout: audio.Stereo, Bitness: audio.Bit16, SampleRate: s.decoder.SampleRate()}
}
func (s *MP3Source) Title() string { return s.title }
func (s *MP3Source) Close() error { return s.file.Close() }

func (s *MP3Source) Read(p []byte) (int, error) {
	return s.decoder.Read(p[:len(p)-len(p)%2])
}

// FLACSource reads from a FLAC file
type FLACSource struct {
	file    *os.File
	stream  *flac.Stream
	format  audio.Format
	shift   int
	title   string
	pending []byte // encoded samples of the last frame not yet returned
}

// OpenFLAC creates a new FLAC audio source
func OpenFLAC(path string) (*FLACSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	bitness, shift, err := intBitness(int(info.BitsPerSample))
	if err != nil {
		f.Close()
		return nil, err
	}
	layout, err := layoutFor(int(info.NChannels))
	if err != nil {
		f.Close()
		return nil, err
	}

	s := &FLACSource{
		file:   f,
		stream: stream,
		format: audio.Format{Layout: layout, Bitness: bitness, SampleRate: int(info.SampleRate)},
		shift:  shift,
		title:  titleFromPath(path),
	}
	log.Printf("Loaded FLAC: %s (sample rate: %d Hz, channels: %d, bit depth: %d)",
		s.title, info.SampleRate, info.NChannels, info.BitsPerSample)
	return s, nil
}

func (s *FLACSource) Format() audio.Format { return s.format }
func (s *FLACSource) Title() string { return s.title }
func (s *FLACSource) Close() error { return s.file.Close() }

func (s *FLACSource) Read(p []byte) (int, error) {
	for len(s.pending) == 0 {
		frame, err := s.stream.ParseNext()
		if err != nil {
			return 0, err
		}

		channels := s.format.Channels()
		width := s.format.Bitness.InputBytes()
		buf := make([]byte, int(frame.BlockSize)*channels*width)
		off := 0
		for i := 0; i < int(frame.BlockSize); i++ {
			for ch := 0; ch < channels; ch++ {
				off += putInt(buf[off:], s.format.Bitness, int(frame.Subframes[ch].Samples[i])<<s.shift)
			}
		}
		s.pending = buf[:off]
	}

	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// vorbisDecoder is the part of oggvorbis.Reader the source uses. Read
// fills interleaved samples and returns how many it wrote.
type vorbisDecoder interface {
	Channels() int
	SampleRate() int
	Read(p []float32) (int, error)
}

// VorbisSource decodes Ogg Vorbis to float32 samples
type VorbisSource struct {
	file    io.Closer
	reader  vorbisDecoder
	format  audio.Format
	title   string
	samples []float32
}

// OpenVorbis creates a new Ogg Vorbis audio source
func OpenVorbis(path string) (*VorbisSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Ogg file: %w", err)
	}

	reader, err := oggvorbis.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode Ogg Vorbis: %w", err)
	}
	s, err := newVorbisSource(f, reader, titleFromPath(path))
	if err != nil {
		f.Close()
		return nil, err
	}
	log.Printf("Loaded Ogg Vorbis: %s (%v)", s.title, s.format)
	return s, nil
}

func newVorbisSource(file io.Closer, reader vorbisDecoder, title string) (*VorbisSource, error) {
	layout, err := layoutFor(reader.Channels())
	if err != nil {
		return nil, err
	}
	return &VorbisSource{
		file:   file,
		reader: reader,
		format: audio.Format{Layout: layout, Bitness: audio.BitFloat, SampleRate: reader.SampleRate()},
		title:  title,
	}, nil
}

func (s *VorbisSource) Format() audio.Format { return s.format }
func (s *VorbisSource) Title() string { return s.title }
func (s *VorbisSource) Close() error { return s.file.Close() }

func (s *VorbisSource) Read(p []byte) (int, error) {
	channels := s.format.Channels()
	want := len(p) / 4 / channels * channels
	if want == 0 {
		return 0, nil
	}
	if cap(s.samples) < want {
		s.samples = make([]float32, want)
	}
	n, err := s.reader.Read(s.samples[:want])
	written := audio.EncodeF32(p, s.samples[:n])
	return written * 4, err
}

// OpusSource decodes an Ogg Opus file to 16-bit samples. Opus always
// decodes at 48kHz; the channel count comes from the OpusHead packet.
type OpusSource struct {
	file    *os.File
	stream  *opus.Stream
	format  audio.Format
	title   string
	samples []int16
}

// OpenOpus creates a new Ogg Opus audio source
func OpenOpus(path string) (*OpusSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Opus file: %w", err)
	}

	channels, err := opusChannels(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	layout, err := layoutFor(channels)
	if err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to rewind Opus file: %w", err)
	}

	stream, err := opus.NewStream(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode Opus: %w", err)
	}

	s := &OpusSource{
		file:   f,
		stream: stream,
		format: audio.Format{Layout: layout, Bitness: audio.Bit16, SampleRate: 48000},
		title:  titleFromPath(path),
	}
	log.Printf("Loaded Opus: %s (%v)", s.title, s.format)
	return s, nil
}

// opusChannels reads the output channel count from the OpusHead packet
// that opens the first Ogg page.
func opusChannels(r io.Reader) (int, error) {
	var page [27]byte
	if _, err := io.ReadFull(r, page[:]); err != nil {
		return 0, fmt.Errorf("%w: short Ogg page header: %v", ErrUnsupportedFile, err)
	}
	if !bytes.Equal(page[:4], []byte("OggS")) {
		return 0, fmt.Errorf("%w: not an Ogg stream", ErrUnsupportedFile)
	}

	// Skip the segment table; OpusHead is the whole first packet
	segments := make([]byte, page[26])
	if _, err := io.ReadFull(r, segments); err != nil {
		return 0, fmt.Errorf("%w: short Ogg segment table: %v", ErrUnsupportedFile, err)
	}

	// magic, version, channel count
	var head [10]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return 0, fmt.Errorf("%w: short OpusHead: %v", ErrUnsupportedFile, err)
	}
	if !bytes.HasPrefix(head[:], []byte("OpusHead")) {
		return 0, fmt.Errorf("%w: first Ogg packet is not OpusHead", ErrUnsupportedFile)
	}
	return int(head[9]), nil
}

func (s *OpusSource) Format() audio.Format { return s.format }
func (s *OpusSource) Title() string { return s.title }

func (s *OpusSource) Close() error {
	return errors.Join(s.stream.Close(), s.file.Close())
}

func (s *OpusSource) Read(p []byte) (int, error) {
	channels := s.format.Channels()
	want := len(p) / 2 / channels * channels
	if want == 0 {
		return 0, nil
	}
	if cap(s.samples) < want {
		s.samples = make([]int16, want)
	}

	// Read returns samples per channel
	n, err := s.stream.Read(s.samples[:want])
	written := audio.EncodeS16(p, s.samples[:n*channels])
	if err == io.EOF && written > 0 {
		err = nil
	}
	return written * 2, err
}
