// ABOUTME: Bubbletea model for the renderer monitor
// ABOUTME: Shows transport state, format, volume and pipeline counters
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/LAGonauta/pcmrender/pkg/playback"
	"github.com/LAGonauta/pcmrender/pkg/renderer"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// VolumeStep is how far one key press moves the volume, in millibels
const VolumeStep = 500

// Model represents the TUI state
type Model struct {
	// Renderer
	status renderer.Status
	stats  renderer.Stats
	title  string

	// Local volume state; muting remembers the level to return to
	volume int
	muted  bool

	// Runtime
	goroutines int
	memAlloc   uint64

	showDebug bool
	controls  *Controls

	// Dimensions
	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("PCM Renderer"))
	b.WriteString("\n\n")
	m.renderStatus(&b)
	b.WriteString("\n")
	m.renderControls(&b)
	b.WriteString("\n")
	m.renderStats(&b)
	if m.showDebug {
		b.WriteString("\n")
		m.renderDebug(&b)
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓:Volume  m:Mute  space:Pause  f:Flush  d:Debug  q:Quit"))
	b.WriteString("\n")
	return b.String()
}

func field(b *strings.Builder, name, value string) {
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-9s", name+":")))
	b.WriteString(valueStyle.Render(value))
	b.WriteString("\n")
}

func (m Model) renderStatus(b *strings.Builder) {
	state := string(m.status.State)
	if state == "" {
		state = string(renderer.StateStopped)
	}
	if m.status.Flushing {
		state += " (flushing)"
	}
	field(b, "State", state)
	field(b, "Backend", m.status.Backend)
	if m.title != "" {
		field(b, "Playing", truncate(m.title, 48))
	}
	if m.status.Format.Valid() {
		field(b, "Format", fmt.Sprintf("%v (%s)", m.status.Format, m.status.Tag))
	} else {
		field(b, "Format", "none")
	}
}

func (m Model) renderControls(b *strings.Builder) {
	vol := fmt.Sprintf("[%s] %d mB", renderBar(volumePercent(m.volume), 100, 20), m.volume)
	if m.muted {
		vol += " (muted)"
	}
	field(b, "Volume", vol)
	field(b, "Buffer", fmt.Sprintf("%v queued, %d/%d device buffers",
		m.stats.Buffered.Round(time.Millisecond), m.stats.Loop.Outstanding, m.stats.Loop.FramesPerBuffer))
	field(b, "Clock", m.stats.SampleTime.Round(10*time.Millisecond).String())
}

func (m Model) renderStats(b *strings.Builder) {
	field(b, "Mixed", fmt.Sprintf("%d of %d frames received", m.stats.Mixer.FramesMixed, m.stats.Mixer.FramesReceived))

	problems := fmt.Sprintf("underruns %d  starved %d  timeouts %d  dropped %d",
		m.stats.Loop.Underruns, m.stats.Mixer.StarvedMixes,
		m.stats.Mixer.BackpressureTimeouts, m.stats.Loop.FramesDropped)
	if m.stats.Loop.Underruns > 0 {
		problems = warnStyle.Render(problems)
	}
	field(b, "Issues", problems)
}

func (m Model) renderDebug(b *strings.Builder) {
	field(b, "Session", m.status.SessionID)
	field(b, "Formats", fmt.Sprintf("%d changes, %d ring resets", m.stats.Mixer.FormatChanges, m.stats.Loop.FormatResets))
	field(b, "Runtime", fmt.Sprintf("%d goroutines, %.1f MiB", m.goroutines, float64(m.memAlloc)/(1<<20)))
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.controls != nil {
			select {
			case m.controls.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case "up":
		m.muted = false
		m.volume = min(m.volume+VolumeStep, playback.MaxVolume)
		m.send(ControlMsg{Action: ActionVolume, Volume: m.volume})
	case "down":
		m.muted = false
		m.volume = max(m.volume-VolumeStep, playback.MinVolume)
		m.send(ControlMsg{Action: ActionVolume, Volume: m.volume})
	case "m":
		m.muted = !m.muted
		vol := m.volume
		if m.muted {
			vol = playback.MinVolume
		}
		m.send(ControlMsg{Action: ActionVolume, Volume: vol})
	case " ", "space", "p":
		m.send(ControlMsg{Action: ActionPause})
	case "f":
		m.send(ControlMsg{Action: ActionFlush})
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

func (m Model) send(c ControlMsg) {
	if m.controls == nil {
		return
	}
	select {
	case m.controls.Changes <- c:
	default:
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Status != nil {
		m.status = *msg.Status
		// a muted renderer reports the floor; keep showing the level we unmute to
		if !m.muted {
			m.volume = msg.Status.Volume
		}
	}
	if msg.Stats != nil {
		m.stats = *msg.Stats
	}
	if msg.Title != "" {
		m.title = msg.Title
	}
	if msg.Goroutines != 0 {
		m.goroutines = msg.Goroutines
		m.memAlloc = msg.MemAlloc
	}
}

// StatusMsg updates TUI state
type StatusMsg struct {
	Status     *renderer.Status
	Stats      *renderer.Stats
	Title      string
	Goroutines int
	MemAlloc   uint64
}

// Utility functions
func volumePercent(mB int) int {
	return (mB - playback.MinVolume) * 100 / (playback.MaxVolume - playback.MinVolume)
}

func renderBar(value, max, width int) string {
	filled := (value * width) / max
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
