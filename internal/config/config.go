// ABOUTME: Renderer CLI configuration
// ABOUTME: Layers defaults, a YAML file and command-line flags, then validates
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/LAGonauta/pcmrender/pkg/audio"
	"github.com/LAGonauta/pcmrender/pkg/audio/output"
	"github.com/LAGonauta/pcmrender/pkg/mixer"
	"github.com/LAGonauta/pcmrender/pkg/playback"
	"github.com/LAGonauta/pcmrender/pkg/renderer"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid configuration")

// Format is the stream format assumed before a source negotiates one
type Format struct {
	Channels   int  `yaml:"channels"`
	SampleRate int  `yaml:"sample_rate"`
	Bits       int  `yaml:"bits"`
	Float      bool `yaml:"float"`
}

// Config holds everything the CLI needs to build a renderer
type Config struct {
	Backend        string        `yaml:"backend"`
	Latency        time.Duration `yaml:"latency"`
	Buffers        int           `yaml:"buffers"`
	ReceiveTimeout time.Duration `yaml:"receive_timeout"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	MaxMixWait     time.Duration `yaml:"max_mix_wait"`
	IdleSleep      time.Duration `yaml:"idle_sleep"`
	Volume         int           `yaml:"volume"` // millibels
	Format         Format        `yaml:"format"`
	LogFile        string        `yaml:"log_file"`
	TUI            bool          `yaml:"tui"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Backend:        "malgo",
		Latency:        playback.DefaultLatency,
		Buffers:        playback.DefaultBuffers,
		ReceiveTimeout: mixer.DefaultReceiveTimeout,
		PollInterval:   mixer.DefaultPollInterval,
		MaxMixWait:     mixer.DefaultMaxWait,
		IdleSleep:      playback.DefaultIdleSleep,
		Volume:         0,
		Format: Format{
			Channels:   audio.DefaultFormat.Channels(),
			SampleRate: audio.DefaultFormat.SampleRate,
			Bits:       16,
		},
		LogFile: "pcmrender.log",
		TUI:     true,
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
// Keys missing from the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return cfg, nil
}

// Validate checks every field is in range
func (c Config) Validate() error {
	if !slices.Contains(output.Backends(), c.Backend) {
		return fmt.Errorf("%w: backend %q (available: %v)", ErrInvalid, c.Backend, output.Backends())
	}
	if c.Latency <= 0 {
		return fmt.Errorf("%w: latency must be positive, got %v", ErrInvalid, c.Latency)
	}
	if c.Buffers < playback.MinBuffers || c.Buffers > playback.MaxBuffers {
		return fmt.Errorf("%w: buffers must be %d-%d, got %d", ErrInvalid, playback.MinBuffers, playback.MaxBuffers, c.Buffers)
	}
	for name, d := range map[string]time.Duration{
		"receive_timeout": c.ReceiveTimeout,
		"poll_interval":   c.PollInterval,
		"max_mix_wait":    c.MaxMixWait,
		"idle_sleep":      c.IdleSleep,
	} {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalid, name, d)
		}
	}
	if c.Volume < playback.MinVolume || c.Volume > playback.MaxVolume {
		return fmt.Errorf("%w: volume must be %d-%d mB, got %d", ErrInvalid, playback.MinVolume, playback.MaxVolume, c.Volume)
	}
	if _, err := c.AudioFormat(); err != nil {
		return err
	}
	return nil
}

// AudioFormat converts the configured format
func (c Config) AudioFormat() (audio.Format, error) {
	layout, ok := audio.LayoutForChannels(c.Format.Channels)
	if !ok {
		return audio.Format{}, fmt.Errorf("%w: %d channels", ErrInvalid, c.Format.Channels)
	}
	bitness, ok := audio.BitnessFor(c.Format.Bits, c.Format.Float)
	if !ok {
		return audio.Format{}, fmt.Errorf("%w: %d-bit (float=%v) samples", ErrInvalid, c.Format.Bits, c.Format.Float)
	}
	if c.Format.SampleRate <= 0 {
		return audio.Format{}, fmt.Errorf("%w: sample rate %d", ErrInvalid, c.Format.SampleRate)
	}
	return audio.Format{Layout: layout, Bitness: bitness, SampleRate: c.Format.SampleRate}, nil
}

// Renderer builds a renderer configuration. Callbacks are left for the
// caller to fill in.
func (c Config) Renderer() (renderer.Config, error) {
	if err := c.Validate(); err != nil {
		return renderer.Config{}, err
	}
	f, _ := c.AudioFormat()
	return renderer.Config{
		Backend:        c.Backend,
		Latency:        c.Latency,
		Buffers:        c.Buffers,
		ReceiveTimeout: c.ReceiveTimeout,
		PollInterval:   c.PollInterval,
		MaxMixWait:     c.MaxMixWait,
		IdleSleep:      c.IdleSleep,
		Volume:         c.Volume,
		Format:         f,
	}, nil
}
