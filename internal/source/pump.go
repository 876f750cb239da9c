// ABOUTME: Pushes decoded audio into a renderer the way a media pipeline would
// ABOUTME: Irregular chunk sizes, one format negotiation per source, end of stream at the end
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"time"

	"github.com/LAGonauta/pcmrender/pkg/audio"
	"github.com/LAGonauta/pcmrender/pkg/renderer"
)

const (
	DefaultMinFrames = 64
	DefaultMaxFrames = 2048
)

// PumpConfig controls chunking
type PumpConfig struct {
	// MinFrames and MaxFrames bound the frames per Deliver call
	MinFrames int
	MaxFrames int

	// Seed makes chunk sizes reproducible
	Seed uint64

	// OnSource is called when a source starts playing
	OnSource func(Source)

	// Hold, when it returns true, stops the pump from reading until it
	// returns false. A paused renderer drops what it is given.
	Hold func() bool
}

const holdPoll = 10 * time.Millisecond

// Pump plays the sources one after another into sink, negotiating each
// source's format before its first chunk, and signals end of stream
// after the last. It returns early when ctx is done. Deliveries rejected
// because the sink is flushing are dropped.
func Pump(ctx context.Context, sink renderer.Sink, config PumpConfig, sources ...Source) error {
	if config.MinFrames <= 0 {
		config.MinFrames = DefaultMinFrames
	}
	if config.MaxFrames < config.MinFrames {
		config.MaxFrames = max(config.MinFrames, DefaultMaxFrames)
	}
	rng := rand.New(rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15))

	for _, src := range sources {
		if err := pumpOne(ctx, sink, config, rng, src); err != nil {
			return err
		}
	}
	sink.EndOfStream()
	return nil
}

func pumpOne(ctx context.Context, sink renderer.Sink, config PumpConfig, rng *rand.Rand, src Source) error {
	f := src.Format()
	if err := sink.SetFormat(f.Channels(), f.SampleRate, bitsOf(f.Bitness), f.Bitness == audio.BitFloat); err != nil {
		return fmt.Errorf("%s: %w", src.Title(), err)
	}
	log.Printf("Playing: %s (%v)", src.Title(), f)
	if config.OnSource != nil {
		config.OnSource(src)
	}

	frameSize := f.InputFrameSize()
	buf := make([]byte, config.MaxFrames*frameSize)
	chunks := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if config.Hold != nil && config.Hold() {
			select {
			case <-ctx.Done():
			case <-time.After(holdPoll):
			}
			continue
		}

		frames := config.MinFrames + rng.IntN(config.MaxFrames-config.MinFrames+1)
		n, err := io.ReadFull(src, buf[:frames*frameSize])
		if n > 0 {
			if derr := sink.Deliver(buf[:n]); derr != nil && !errors.Is(derr, renderer.ErrFlushing) {
				return derr
			}
			chunks++
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			log.Printf("Finished: %s (%d chunks)", src.Title(), chunks)
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", src.Title(), err)
		}
	}
}

func bitsOf(b audio.Bitness) int {
	return b.InputBytes() * 8
}
