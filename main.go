// ABOUTME: Entry point for the PCM renderer CLI
// ABOUTME: Builds the cobra command tree and sets up logging
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/LAGonauta/pcmrender/internal/config"
	"github.com/LAGonauta/pcmrender/internal/version"
	"github.com/spf13/cobra"
)

var (
	configFile string
	backend    string
	latency    time.Duration
	buffers    int
	volume     int
	logFile    string
	noTUI      bool
)

var rootCmd = &cobra.Command{
	Use:     "pcmrender",
	Short:   "Play PCM audio through a buffered device pipeline",
	Version: version.Version,
	Long: `pcmrender pushes decoded audio through a back-pressured mixer into a
ring of device buffers, the way a media pipeline's audio renderer does.

Configuration is read from a YAML file (--config) and overridden by flags.`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "YAML configuration file")
	flags.StringVarP(&backend, "backend", "b", "malgo", "Output backend (malgo, oto, portaudio, null)")
	flags.DurationVar(&latency, "latency", 64*time.Millisecond, "Total device buffering")
	flags.IntVar(&buffers, "buffers", 8, "Device buffers in the ring (2-8)")
	flags.IntVar(&volume, "volume", 0, "Initial volume in millibels (-10000 to 0)")
	flags.StringVar(&logFile, "log-file", "pcmrender.log", "Log file path")
	flags.BoolVar(&noTUI, "no-tui", false, "Disable TUI, use streaming logs instead")

	rootCmd.AddCommand(playCmd, toneCmd, devicesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig layers the config file under any flags set on the command line
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend = backend
	}
	if flags.Changed("latency") {
		cfg.Latency = latency
	}
	if flags.Changed("buffers") {
		cfg.Buffers = buffers
	}
	if flags.Changed("volume") {
		cfg.Volume = volume
	}
	if flags.Changed("log-file") {
		cfg.LogFile = logFile
	}
	if flags.Changed("no-tui") {
		cfg.TUI = !noTUI
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// setupLogging sends log output to the log file, and to stdout too when
// the TUI is off. The returned function closes the file.
func setupLogging(cfg config.Config) (func(), error) {
	f, err := os.OpenFile(cfg.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("error opening log file: %w", err)
	}

	if cfg.TUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}
	log.Printf("Starting %s %s (backend %s, %v latency, %d buffers)",
		version.Product, version.Version, cfg.Backend, cfg.Latency, cfg.Buffers)

	return func() { _ = f.Close() }, nil
}
