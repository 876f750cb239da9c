// ABOUTME: CLI commands: play files, play a test tone, list output devices
// ABOUTME: Each playback command runs one renderer session until done or interrupted
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"runtime"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/LAGonauta/pcmrender/internal/config"
	"github.com/LAGonauta/pcmrender/internal/source"
	"github.com/LAGonauta/pcmrender/internal/ui"
	"github.com/LAGonauta/pcmrender/pkg/audio"
	"github.com/LAGonauta/pcmrender/pkg/audio/output"
	"github.com/LAGonauta/pcmrender/pkg/renderer"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var playCmd = &cobra.Command{
	Use:   "play <file>...",
	Short: "Play audio files one after another",
	Long: `Play WAV, AIFF, MP3, FLAC, Ogg Vorbis or Ogg Opus files. Each file
negotiates its own format, so consecutive files of different formats
exercise a mid-stream format change.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		var sources []source.Source
		defer func() {
			for _, s := range sources {
				s.Close()
			}
		}()
		for _, path := range args {
			s, err := source.Open(path)
			if err != nil {
				return err
			}
			sources = append(sources, s)
		}
		return runSession(cfg, sources)
	},
}

var (
	toneFreq     float64
	toneDuration time.Duration
	toneChannels int
	toneRate     int
	toneBits     int
	toneFloat    bool
	toneSwitch   bool
)

var toneCmd = &cobra.Command{
	Use:   "tone",
	Short: "Play a sine test tone",
	Example: `  pcmrender tone --duration 5s
  pcmrender tone --channels 6 --bits 32 --float
  pcmrender tone --switch   # stereo s16, then 5.1 float`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		layout, ok := audio.LayoutForChannels(toneChannels)
		if !ok {
			return fmt.Errorf("unsupported channel count %d", toneChannels)
		}
		bitness, ok := audio.BitnessFor(toneBits, toneFloat)
		if !ok {
			return fmt.Errorf("unsupported sample format: %d-bit (float=%v)", toneBits, toneFloat)
		}
		f := audio.Format{Layout: layout, Bitness: bitness, SampleRate: toneRate}

		sources := []source.Source{source.NewTone(f, toneFreq, toneDuration)}
		if toneSwitch {
			surround := audio.Format{Layout: audio.Surround6, Bitness: audio.BitFloat, SampleRate: toneRate}
			sources = append(sources, source.NewTone(surround, toneFreq*2, toneDuration))
		}
		return runSession(cfg, sources)
	},
}

func init() {
	flags := toneCmd.Flags()
	flags.Float64Var(&toneFreq, "freq", source.DefaultToneFrequency, "Tone frequency in Hz")
	flags.DurationVar(&toneDuration, "duration", 3*time.Second, "Tone length (0 plays until interrupted)")
	flags.IntVar(&toneChannels, "channels", 2, "Channel count (1, 2, 4, 6 or 8)")
	flags.IntVar(&toneRate, "rate", 48000, "Sample rate in Hz")
	flags.IntVar(&toneBits, "bits", 16, "Bits per sample (8, 16, 24 or 32)")
	flags.BoolVar(&toneFloat, "float", false, "Use 32-bit float samples")
	flags.BoolVar(&toneSwitch, "switch", false, "Follow with a 5.1 float tone to exercise a format change")
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List output backends and what they can play",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "BACKEND\tSTATUS\tLAYOUTS\tSAMPLES")
		for _, name := range output.Backends() {
			b, err := output.Load(name)
			if err != nil {
				return err
			}
			dev, err := b.OpenDevice()
			if err != nil {
				fmt.Fprintf(w, "%s\tunavailable\t-\t-\n", name)
				continue
			}
			caps := dev.Capabilities()
			fmt.Fprintf(w, "%s\tok\t%v\t%v\n", name, caps.Layouts, caps.Bitness)
			dev.Close()
		}
		return w.Flush()
	},
}

// runSession plays sources through one renderer until they finish and
// drain, or until the user quits.
func runSession(cfg config.Config, sources []source.Source) error {
	closeLog, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// TUI setup
	var tuiProg *tea.Program
	var controls *ui.Controls
	if cfg.TUI {
		controls = ui.NewControls()
		tuiProg = ui.Run(controls, cfg.Volume)
		tuiDone := make(chan struct{})
		go func() {
			defer close(tuiDone)
			if _, err := tuiProg.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
			cancel()
		}()
		defer func() {
			tuiProg.Quit()
			<-tuiDone
		}()
	}

	// Helper to update TUI
	updateTUI := func(msg ui.StatusMsg) {
		if tuiProg != nil {
			tuiProg.Send(msg)
		}
	}

	rc, err := cfg.Renderer()
	if err != nil {
		return err
	}
	rc.OnStateChange = func(s renderer.Status) {
		updateTUI(ui.StatusMsg{Status: &s})
	}
	rc.OnError = func(err error) {
		log.Printf("Renderer error: %v", err)
	}

	r, err := renderer.New(rc)
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}
	defer func() {
		if err := r.Close(); err != nil {
			log.Printf("Error closing renderer: %v", err)
		}
	}()

	if err := r.Run(); err != nil {
		return err
	}

	// The session ends when the sources drain, the user quits, or a
	// component fails.
	sessionCtx, endSession := context.WithCancel(ctx)
	defer endSession()
	g, gctx := errgroup.WithContext(sessionCtx)

	if controls != nil {
		g.Go(func() error {
			handleControls(gctx, r, controls)
			return nil
		})
	}
	if tuiProg != nil {
		g.Go(func() error {
			statsUpdateLoop(gctx, r, updateTUI)
			return nil
		})
	}

	g.Go(func() error {
		defer endSession()
		err := source.Pump(gctx, r, source.PumpConfig{
			Seed: uint64(time.Now().UnixNano()),
			Hold: func() bool { return r.State() == renderer.StatePaused },
			OnSource: func(s source.Source) {
				updateTUI(ui.StatusMsg{Title: s.Title()})
			},
		}, sources...)
		if errors.Is(err, context.Canceled) {
			log.Printf("Shutdown signal received")
			return nil
		}
		if err != nil {
			return err
		}
		waitForDrain(gctx, r, cfg.Latency)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Printf("Session finished after %v of audio", r.SampleTime().Round(time.Millisecond))
	return nil
}

// waitForDrain waits for queued audio to reach the device and play out.
func waitForDrain(ctx context.Context, r *renderer.Renderer, latency time.Duration) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for r.Buffered() > 0 {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
	select {
	case <-ctx.Done():
	case <-time.After(latency):
	}
}

// handleControls applies key presses from the TUI to the renderer
func handleControls(ctx context.Context, r *renderer.Renderer, controls *ui.Controls) {
	for {
		select {
		case c := <-controls.Changes:
			switch c.Action {
			case ui.ActionVolume:
				log.Printf("Volume change: %d mB", c.Volume)
				if err := r.SetVolume(c.Volume); err != nil {
					log.Printf("Volume change failed: %v", err)
				}
			case ui.ActionPause:
				var err error
				if r.State() == renderer.StateRunning {
					err = r.Pause()
				} else {
					err = r.Run()
				}
				if err != nil {
					log.Printf("Pause/resume failed: %v", err)
				}
			case ui.ActionFlush:
				r.Flush()
			}
		case <-ctx.Done():
			return
		}
	}
}

// statsUpdateLoop periodically updates TUI with pipeline statistics
func statsUpdateLoop(ctx context.Context, r *renderer.Renderer, updateTUI func(ui.StatusMsg)) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	// Use a slower ticker for expensive runtime stats to avoid GC pauses
	runtimeStatsTicker := time.NewTicker(2 * time.Second)
	defer runtimeStatsTicker.Stop()

	var goroutines int
	var memAlloc uint64

	for {
		select {
		case <-ctx.Done():
			return
		case <-runtimeStatsTicker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			goroutines = runtime.NumGoroutine()
			memAlloc = m.Alloc
		case <-ticker.C:
			status := r.Status()
			stats := r.Stats()
			updateTUI(ui.StatusMsg{
				Status:     &status,
				Stats:      &stats,
				Goroutines: goroutines,
				MemAlloc:   memAlloc,
			})
		}
	}
}
