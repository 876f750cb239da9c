// ABOUTME: Tests for TUI model and state management
// ABOUTME: Tests status updates, key handling, and rendering
package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/LAGonauta/pcmrender/pkg/audio"
	"github.com/LAGonauta/pcmrender/pkg/renderer"
	tea "github.com/charmbracelet/bubbletea"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m Model, keys ...string) Model {
	for _, k := range keys {
		next, _ := m.Update(key(k))
		m = next.(Model)
	}
	return m
}

func drain(c *Controls) []ControlMsg {
	var got []ControlMsg
	for {
		select {
		case msg := <-c.Changes:
			got = append(got, msg)
		default:
			return got
		}
	}
}

func TestNewModel(t *testing.T) {
	model := NewModel(nil, -600)

	if model.volume != -600 {
		t.Errorf("expected volume -600, got %d", model.volume)
	}
	if model.muted {
		t.Error("expected muted to be false initially")
	}
	if model.showDebug {
		t.Error("expected showDebug to be false initially")
	}
}

func TestVolumeKeys(t *testing.T) {
	tests := []struct {
		name  string
		start int
		keys  []string
		want  []int
	}{
		{"up at full scale stays", 0, []string{"up"}, []int{0}},
		{"down steps", 0, []string{"down", "down"}, []int{-500, -1000}},
		{"floor", -9800, []string{"down"}, []int{-10000}},
		{"up from floor", -10000, []string{"up"}, []int{-9500}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			controls := NewControls()
			press(NewModel(controls, tt.start), tt.keys...)
			got := drain(controls)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d changes, got %v", len(tt.want), got)
			}
			for i, msg := range got {
				if msg.Action != ActionVolume || msg.Volume != tt.want[i] {
					t.Errorf("change %d: expected volume %d, got %+v", i, tt.want[i], msg)
				}
			}
		})
	}
}

func TestMuteRestoresVolume(t *testing.T) {
	controls := NewControls()
	m := press(NewModel(controls, -1500), "m")
	if !m.muted {
		t.Fatal("expected muted")
	}

	// the renderer reports the floor while muted
	floor := renderer.Status{Volume: -10000}
	m.applyStatus(StatusMsg{Status: &floor})
	if m.volume != -1500 {
		t.Errorf("expected remembered volume -1500, got %d", m.volume)
	}

	m = press(m, "m")
	got := drain(controls)
	if len(got) != 2 || got[0].Volume != -10000 || got[1].Volume != -1500 {
		t.Errorf("expected mute to -10000 then restore to -1500, got %v", got)
	}
}

func TestTransportKeys(t *testing.T) {
	controls := NewControls()
	press(NewModel(controls, 0), " ", "p", "f")
	got := drain(controls)
	want := []Action{ActionPause, ActionPause, ActionFlush}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i].Action != want[i] {
			t.Errorf("expected %v, got %v", want, got)
		}
	}
}

func TestQuitKey(t *testing.T) {
	controls := NewControls()
	_, cmd := NewModel(controls, 0).Update(key("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	select {
	case <-controls.Quit:
	default:
		t.Error("expected quit signal on controls")
	}
}

func TestKeysWithoutControls(t *testing.T) {
	m := press(NewModel(nil, 0), "down", "m", " ", "f", "d")
	if !m.showDebug {
		t.Error("expected debug toggled")
	}
}

func TestStatusMsg(t *testing.T) {
	m := NewModel(nil, 0)
	status := renderer.Status{
		State:   renderer.StateRunning,
		Backend: "null",
		Format:  audio.Format{Layout: audio.Surround6, Bitness: audio.BitFloat, SampleRate: 48000},
		Tag:     "AL_FORMAT_51CHN32",
		Volume:  -2000,
	}
	stats := renderer.Stats{Buffered: 40 * time.Millisecond}
	stats.Loop.Underruns = 3

	next, _ := m.Update(StatusMsg{Status: &status, Stats: &stats, Title: "440 Hz tone"})
	m = next.(Model)

	if m.volume != -2000 || m.status.State != renderer.StateRunning || m.stats.Loop.Underruns != 3 {
		t.Errorf("status not applied: %+v", m)
	}

	// a later message with only stats keeps the status
	more := renderer.Stats{}
	m.applyStatus(StatusMsg{Stats: &more})
	if m.status.Backend != "null" || m.title != "440 Hz tone" {
		t.Error("partial update cleared earlier fields")
	}
}

func TestView(t *testing.T) {
	m := NewModel(nil, 0)
	if m.View() != "Loading..." {
		t.Error("expected loading view before the first window size")
	}

	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = next.(Model)
	status := renderer.Status{
		State:  renderer.StatePaused,
		Format: audio.DefaultFormat,
		Tag:    "AL_FORMAT_STEREO16",
	}
	m.applyStatus(StatusMsg{Status: &status})

	view := m.View()
	for _, want := range []string{"PCM Renderer", "paused", "AL_FORMAT_STEREO16", "q:Quit"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestVolumePercent(t *testing.T) {
	tests := []struct {
		mB   int
		want int
	}{
		{0, 100},
		{-10000, 0},
		{-5000, 50},
	}
	for _, tt := range tests {
		if got := volumePercent(tt.mB); got != tt.want {
			t.Errorf("volumePercent(%d) = %d, want %d", tt.mB, got, tt.want)
		}
	}
}

func TestTruncateFunction(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"this is longer than allowed", 10, "this is..."},
		{"", 10, ""},
		{"abcd", 4, "abcd"},
		{"abcde", 4, "a..."},
	}

	for _, tt := range tests {
		if result := truncate(tt.input, tt.maxLen); result != tt.expected {
			t.Errorf("truncate(%q, %d) = %q, expected %q", tt.input, tt.maxLen, result, tt.expected)
		}
	}
}
