// ABOUTME: WAV and AIFF file sources
// ABOUTME: Uses go-audio decoders; WAV data chunks pass through untouched
package source

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/LAGonauta/pcmrender/pkg/audio"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/aiff"
	"github.com/go-audio/wav"
)

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

// WAVSource reads the data chunk of a RIFF/WAVE file. Its samples are
// already in the renderer's little-endian encoding, so bytes are passed
// along as they are.
type WAVSource struct {
	file   *os.File
	data   io.Reader
	format audio.Format
	title  string
}

// OpenWAV opens a PCM or IEEE float WAV file
func OpenWAV(path string) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is not a WAV file", ErrUnsupportedFile, path)
	}
	dec.ReadInfo()

	var isFloat bool
	switch dec.WavAudioFormat {
	case wavFormatPCM:
	case wavFormatFloat:
		isFloat = true
	default:
		f.Close()
		return nil, fmt.Errorf("%w: WAV format tag %d", ErrUnsupportedSample, dec.WavAudioFormat)
	}

	bitness, ok := audio.BitnessFor(int(dec.BitDepth), isFloat)
	if !ok {
		f.Close()
		return nil, fmt.Errorf("%w: %d-bit (float=%v) WAV", ErrUnsupportedSample, dec.BitDepth, isFloat)
	}
	layout, err := layoutFor(int(dec.NumChans))
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := dec.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to find WAV data chunk: %w", err)
	}

	s := &WAVSource{
		file:   f,
		data:   dec.PCMChunk,
		format: audio.Format{Layout: layout, Bitness: bitness, SampleRate: int(dec.SampleRate)},
		title:  titleFromPath(path),
	}
	log.Printf("Loaded WAV: %s (%v)", s.title, s.format)
	return s, nil
}

func (s *WAVSource) Format() audio.Format { return s.format }
func (s *WAVSource) Title() string { return s.title }
func (s *WAVSource) Close() error { return s.file.Close() }

func (s *WAVSource) Read(p []byte) (int, error) {
	return s.data.Read(p)
}

// AIFFSource decodes big-endian AIFF samples through go-audio's int
// buffers and re-encodes them little-endian.
type AIFFSource struct {
	file   *os.File
	dec    *aiff.Decoder
	format audio.Format
	shift  int
	title  string
	buf    *goaudio.IntBuffer
}

// OpenAIFF opens an integer PCM AIFF file
func OpenAIFF(path string) (*AIFFSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open AIFF file: %w", err)
	}

	dec := aiff.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is not an AIFF file", ErrUnsupportedFile, path)
	}
	dec.ReadInfo()

	bitness, shift, err := intBitness(int(dec.BitDepth))
	if err != nil {
		f.Close()
		return nil, err
	}
	layout, err := layoutFor(int(dec.NumChans))
	if err != nil {
		f.Close()
		return nil, err
	}

	s := &AIFFSource{
		file:   f,
		dec:    dec,
		format: audio.Format{Layout: layout, Bitness: bitness, SampleRate: int(dec.SampleRate)},
		shift:  shift,
		title:  titleFromPath(path),
	}
	log.Printf("Loaded AIFF: %s (%v)", s.title, s.format)
	return s, nil
}

func (s *AIFFSource) Format() audio.Format { return s.format }
func (s *AIFFSource) Title() string { return s.title }
func (s *AIFFSource) Close() error { return s.file.Close() }

func (s *AIFFSource) Read(p []byte) (int, error) {
	width := s.format.Bitness.InputBytes()
	want := len(p) / width
	if want == 0 {
		return 0, nil
	}
	if s.buf == nil || cap(s.buf.Data) < want {
		s.buf = &goaudio.IntBuffer{
			Data:   make([]int, want),
			Format: s.dec.Format(),
		}
	}
	s.buf.Data = s.buf.Data[:want]

	n, err := s.dec.PCMBuffer(s.buf)
	if n == 0 {
		if err != nil && err != io.EOF {
			return 0, err
		}
		return 0, io.EOF
	}

	off := 0
	for _, v := range s.buf.Data[:n] {
		off += putInt(p[off:], s.format.Bitness, v<<s.shift)
	}
	if err == io.EOF {
		err = nil
	}
	return off, err
}
