// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and the channels back to the CLI
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Action is something the user asked the renderer to do
type Action int

const (
	ActionVolume Action = iota
	ActionPause
	ActionFlush
)

// ControlMsg is sent to the CLI when a key changes the renderer
type ControlMsg struct {
	Action Action
	Volume int // millibels, for ActionVolume
}

// QuitMsg is sent when the user quits
type QuitMsg struct{}

// Controls holds channels for communication back to the CLI
type Controls struct {
	Changes chan ControlMsg
	Quit    chan QuitMsg
}

// NewControls creates a new control handler
func NewControls() *Controls {
	return &Controls{
		Changes: make(chan ControlMsg, 10),
		Quit:    make(chan QuitMsg, 1),
	}
}

// NewModel creates a new TUI model
func NewModel(controls *Controls, volume int) Model {
	return Model{
		volume:   volume,
		controls: controls,
	}
}

// Run creates the TUI program; the caller runs it
func Run(controls *Controls, volume int) *tea.Program {
	return tea.NewProgram(NewModel(controls, volume), tea.WithAltScreen())
}
