// ABOUTME: Media source abstraction for the renderer CLI
// ABOUTME: Opens WAV, AIFF, MP3, FLAC, Ogg Vorbis and Ogg Opus files as raw PCM
package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/LAGonauta/pcmrender/pkg/audio"
)

var (
	ErrUnsupportedFile   = errors.New("unsupported audio file")
	ErrUnsupportedSample = errors.New("unsupported sample encoding")
)

// Source provides interleaved PCM in a fixed format
type Source interface {
	// Format returns the layout, bitness and rate of the bytes Read produces
	Format() audio.Format
	// Read fills p with whole samples. Returns io.EOF at the end of the stream.
	Read(p []byte) (int, error)
	// Title returns a display name
	Title() string
	// Close closes the audio source
	Close() error
}

// Open creates a source from a file path, picking the decoder by extension.
func Open(path string) (Source, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("audio file not found: %s", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".wav", ".wave":
		return OpenWAV(path)
	case ".aif", ".aiff":
		return OpenAIFF(path)
	case ".mp3":
		return OpenMP3(path)
	case ".flac":
		return OpenFLAC(path)
	case ".ogg", ".oga":
		return OpenVorbis(path)
	case ".opus":
		return OpenOpus(path)
	default:
		return nil, fmt.Errorf("%w: %s (supported: .wav, .aiff, .mp3, .flac, .ogg, .opus)", ErrUnsupportedFile, ext)
	}
}

func titleFromPath(path string) string {
	filename := filepath.Base(path)
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

func layoutFor(channels int) (audio.SpeakerLayout, error) {
	layout, ok := audio.LayoutForChannels(channels)
	if !ok {
		return 0, fmt.Errorf("%w: %d channels", ErrUnsupportedSample, channels)
	}
	return layout, nil
}

// putInt writes v, a signed integer sample of the given bitness, in the
// renderer's little-endian input encoding.
func putInt(dst []byte, b audio.Bitness, v int) int {
	switch b {
	case audio.Bit8:
		dst[0] = byte(v + 128)
		return 1
	case audio.Bit16:
		dst[0], dst[1] = byte(v), byte(v>>8)
		return 2
	case audio.Bit24:
		p := audio.SampleTo24Bit(int32(v))
		copy(dst, p[:])
		return 3
	case audio.Bit32:
		dst[0], dst[1], dst[2], dst[3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
		return 4
	}
	return 0
}

// intBitness maps an integer sample depth to the narrowest bitness that
// holds it and the left shift that gets it there.
func intBitness(bits int) (audio.Bitness, int, error) {
	switch {
	case bits <= 0:
	case bits <= 8:
		return audio.Bit8, 8 - bits, nil
	case bits <= 16:
		return audio.Bit16, 16 - bits, nil
	case bits <= 24:
		return audio.Bit24, 24 - bits, nil
	case bits <= 32:
		return audio.Bit32, 32 - bits, nil
	}
	return 0, 0, fmt.Errorf("%w: %d-bit integer", ErrUnsupportedSample, bits)
}
