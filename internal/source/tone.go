// ABOUTME: Test tone generator source
// ABOUTME: Generates a sine wave in any layout and bitness
package source

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/LAGonauta/pcmrender/pkg/audio"
)

// DefaultToneFrequency is A4
const DefaultToneFrequency = 440.0

// Tone generates a sine wave on every channel at half scale
type Tone struct {
	format    audio.Format
	frequency float64
	remaining int64 // frames left, <0 for endless
	index     uint64
}

// NewTone creates a tone of the given length; d <= 0 never ends.
func NewTone(f audio.Format, frequency float64, d time.Duration) *Tone {
	if frequency <= 0 {
		frequency = DefaultToneFrequency
	}
	remaining := int64(-1)
	if d > 0 {
		remaining = f.Frames(d)
	}
	return &Tone{format: f, frequency: frequency, remaining: remaining}
}

func (t *Tone) Format() audio.Format { return t.format }
func (t *Tone) Close() error { return nil }

func (t *Tone) Title() string {
	return fmt.Sprintf("%.0f Hz tone", t.frequency)
}

func (t *Tone) Read(p []byte) (int, error) {
	frames := int64(len(p) / t.format.InputFrameSize())
	if frames == 0 && len(p) > 0 {
		return 0, io.ErrShortBuffer
	}
	if t.remaining >= 0 {
		if t.remaining == 0 {
			return 0, io.EOF
		}
		frames = min(frames, t.remaining)
		t.remaining -= frames
	}

	channels := t.format.Channels()
	off := 0
	for i := int64(0); i < frames; i++ {
		at := float64(t.index) / float64(t.format.SampleRate)
		v := 0.5 * math.Sin(2*math.Pi*t.frequency*at)
		for range channels {
			off += audio.PutSample(p[off:], t.format.Bitness, v)
		}
		t.index++
	}
	return off, nil
}
