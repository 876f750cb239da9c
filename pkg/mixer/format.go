// ABOUTME: Shared stream format state
// ABOUTME: Per-field atomics plus a generation counter read by producer and consumer
package mixer

import (
	"sync/atomic"

	"github.com/LAGonauta/pcmrender/pkg/audio"
)

// FormatState holds the current layout, bitness and sample rate. Each field
// is atomic on its own; the group is not. Writers bump the generation after
// the fields, so a reader that sees the generation move while loading must
// treat what it read as stale.
type FormatState struct {
	layout     atomic.Int32
	bitness    atomic.Int32
	rate       atomic.Int32
	generation atomic.Uint64
}

// NewFormatState returns state initialised to f at generation zero.
func NewFormatState(f audio.Format) *FormatState {
	s := &FormatState{}
	s.layout.Store(int32(f.Layout))
	s.bitness.Store(int32(f.Bitness))
	s.rate.Store(int32(f.SampleRate))
	return s
}

// Store publishes f and returns the new generation.
func (s *FormatState) Store(f audio.Format) uint64 {
	s.layout.Store(int32(f.Layout))
	s.bitness.Store(int32(f.Bitness))
	s.rate.Store(int32(f.SampleRate))
	return s.generation.Add(1)
}

// Load returns the fields with the generation they were read under. A
// store racing the load can still leave a mixed snapshot, but that store
// bumps the generation when it completes, so the next comparison catches it.
func (s *FormatState) Load() (audio.Format, uint64) {
	for {
		gen := s.generation.Load()
		f := audio.Format{
			Layout:     audio.SpeakerLayout(s.layout.Load()),
			Bitness:    audio.Bitness(s.bitness.Load()),
			SampleRate: int(s.rate.Load()),
		}
		if s.generation.Load() == gen {
			return f, gen
		}
	}
}

// Generation returns the number of stores so far.
func (s *FormatState) Generation() uint64 {
	return s.generation.Load()
}
