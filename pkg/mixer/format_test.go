// ABOUTME: Tests for the shared format state
// ABOUTME: Covers generation counting and concurrent loads
package mixer

import (
	"sync"
	"testing"

	"github.com/LAGonauta/pcmrender/pkg/audio"
)

func TestFormatStateStoreBumpsGeneration(t *testing.T) {
	s := NewFormatState(stereo16)
	f, gen := s.Load()
	if f != stereo16 || gen != 0 {
		t.Fatalf("expected %v at generation 0, got %v at %d", stereo16, f, gen)
	}

	if got := s.Store(surround6); got != 1 {
		t.Errorf("expected generation 1, got %d", got)
	}
	f, gen = s.Load()
	if f != surround6 || gen != 1 {
		t.Errorf("expected %v at generation 1, got %v at %d", surround6, f, gen)
	}
}

func TestFormatStateReadersSeeKnownFormats(t *testing.T) {
	s := NewFormatState(stereo16)
	formats := []audio.Format{stereo16, surround6}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 10000; i++ {
			s.Store(formats[i%2])
		}
	}()

	var last uint64
	for i := 0; i < 10000; i++ {
		_, gen := s.Load()
		if gen < last {
			t.Fatalf("generation went backwards: %d after %d", gen, last)
		}
		last = gen
	}
	wg.Wait()

	if f, gen := s.Load(); gen != 10000 || f != surround6 {
		t.Errorf("expected %v at generation 10000, got %v at %d", surround6, f, gen)
	}
}
