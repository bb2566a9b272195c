// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program for the live session UI
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// NewModel creates a TUI model. Any argument may be nil in tests.
func NewModel(ctrl Controller, input, output Spectrum) Model {
	m := Model{
		ctrl:   ctrl,
		input:  input,
		output: output,
		volume: 100,
	}
	if ctrl != nil {
		m.volume = ctrl.Volume()
		m.muted = ctrl.Muted()
		m.status = ctrl.Status()
	}
	return m
}

// Run creates the TUI program; callers feed it session callbacks with Send
func Run(model Model) *tea.Program {
	return tea.NewProgram(model, tea.WithAltScreen())
}
