// ABOUTME: Bubbletea model for the live session TUI
// ABOUTME: Draws both spectra, the transcript and session status
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/harperreed/livewave-go/pkg/audio/analyze"
	"github.com/harperreed/livewave-go/pkg/live"
)

// FrameInterval is how often the spectra are polled
const FrameInterval = time.Second / 60

// maxTranscript bounds the transcript kept for display
const maxTranscript = 200

// spectrumRows is the height of a drawn spectrum
const spectrumRows = 4

var levels = []rune(" ▁▂▃▄▅▆▇█")

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	micStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	modelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle   = lipgloss.NewStyle().Faint(true)
)

// Spectrum is a polled frequency analyzer
type Spectrum interface {
	Update()
	Snapshot() []byte
}

// Controller is the session surface the TUI drives
type Controller interface {
	Start(ctx context.Context) error
	Reset()
	Interrupt()
	SetVolume(volume int)
	Volume() int
	Mute(muted bool)
	Muted() bool
	Status() live.Status
	Stats() live.Stats
}

// Model represents the TUI state
type Model struct {
	ctrl   Controller
	input  Spectrum
	output Spectrum

	inputBins  [analyze.BinCount]byte
	outputBins [analyze.BinCount]byte

	// Session
	status  live.Status
	stats   live.Stats
	lastErr string

	// Transcript
	transcript   []live.TranscriptEntry
	userPartial  string
	modelPartial string

	// Playback
	volume int
	muted  bool

	// Debug
	showDebug bool

	// Dimensions
	width  int
	height int
}

// tickMsg drives spectrum polling
type tickMsg time.Time

// StatusMsg carries a session status change
type StatusMsg live.Status

// TranscriptMsg carries a finished transcript entry
type TranscriptMsg live.TranscriptEntry

// FragmentMsg carries a partial transcript
type FragmentMsg struct {
	Speaker live.Speaker
	Text    string
}

// ErrorMsg carries a session error
type ErrorMsg struct {
	Err error
}

// reconnectedMsg reports the outcome of a reconnect
type reconnectedMsg struct {
	err error
}

func tick() tea.Cmd {
	return tea.Tick(FrameInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts spectrum polling
func (m Model) Init() tea.Cmd {
	return tick()
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		m.poll()
		return m, tick()
	case StatusMsg:
		m.status = live.Status(msg)
	case TranscriptMsg:
		m.addEntry(live.TranscriptEntry(msg))
	case FragmentMsg:
		m.addFragment(msg)
	case ErrorMsg:
		if msg.Err != nil {
			m.lastErr = msg.Err.Error()
		}
	case reconnectedMsg:
		if msg.err != nil {
			m.lastErr = msg.err.Error()
		} else {
			m.lastErr = ""
		}
	}

	return m, nil
}

// poll samples both analyzers and the session counters
func (m *Model) poll() {
	if m.input != nil {
		m.input.Update()
		copy(m.inputBins[:], m.input.Snapshot())
	}
	if m.output != nil {
		m.output.Update()
		copy(m.outputBins[:], m.output.Snapshot())
	}
	if m.ctrl != nil {
		m.status = m.ctrl.Status()
		m.stats = m.ctrl.Stats()
	}
}

func (m *Model) addEntry(entry live.TranscriptEntry) {
	switch entry.Speaker {
	case live.SpeakerUser:
		m.userPartial = ""
	case live.SpeakerModel:
		m.modelPartial = ""
	}

	m.transcript = append(m.transcript, entry)
	if len(m.transcript) > maxTranscript {
		m.transcript = m.transcript[len(m.transcript)-maxTranscript:]
	}
}

func (m *Model) addFragment(msg FragmentMsg) {
	switch msg.Speaker {
	case live.SpeakerUser:
		m.userPartial += msg.Text
	case live.SpeakerModel:
		m.modelPartial += msg.Text
	}
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString(m.renderSpectra())
	b.WriteString(m.renderTranscript())
	b.WriteString(m.renderControls())

	if m.showDebug {
		b.WriteString(m.renderDebug())
	}

	b.WriteString(m.renderHelp())
	return b.String()
}

// renderHeader renders connection state
func (m Model) renderHeader() string {
	state := string(m.status.State)
	if state == "" {
		state = string(live.StateIdle)
	}
	line := fmt.Sprintf("%s  %s", titleStyle.Render("livewave"), state)
	if m.status.State == live.StateLive {
		line += fmt.Sprintf(" (%s)", m.status.Playback)
	}
	if m.status.Reason != "" {
		line += dimStyle.Render(" - " + m.status.Reason)
	}
	s := line + "\n"
	if m.lastErr != "" {
		s += errStyle.Render("error: "+m.lastErr) + "\n"
	}
	return s + "\n"
}

// renderSpectra draws the mic and model spectra side by side
func (m Model) renderSpectra() string {
	in := spectrumLines(m.inputBins[:])
	out := spectrumLines(m.outputBins[:])

	var b strings.Builder
	for row := range in {
		b.WriteString(micStyle.Render(in[row]))
		b.WriteString("    ")
		b.WriteString(modelStyle.Render(out[row]))
		b.WriteString("\n")
	}

	label := fmt.Sprintf("%-*s    %s", analyze.BinCount*2, "you", "model")
	b.WriteString(dimStyle.Render(label))
	b.WriteString("\n\n")
	return b.String()
}

// spectrumLines draws bins as spectrumRows lines of block characters,
// top row first
func spectrumLines(bins []byte) []string {
	steps := len(levels) - 1
	lines := make([]string, spectrumRows)
	for row := 0; row < spectrumRows; row++ {
		base := (spectrumRows - 1 - row) * steps
		var b strings.Builder
		for _, v := range bins {
			level := int(v) * spectrumRows * steps / 255
			cell := level - base
			if cell < 0 {
				cell = 0
			}
			if cell > steps {
				cell = steps
			}
			b.WriteRune(levels[cell])
			b.WriteRune(levels[cell])
		}
		lines[row] = b.String()
	}
	return lines
}

// renderTranscript renders the most recent lines that fit
func (m Model) renderTranscript() string {
	lines := make([]string, 0, len(m.transcript)+2)
	for _, entry := range m.transcript {
		lines = append(lines, speakerLine(entry.Speaker, entry.Text))
	}
	if m.userPartial != "" {
		lines = append(lines, speakerLine(live.SpeakerUser, m.userPartial)+dimStyle.Render(" ..."))
	}
	if m.modelPartial != "" {
		lines = append(lines, speakerLine(live.SpeakerModel, m.modelPartial)+dimStyle.Render(" ..."))
	}

	room := m.height - 14
	if room < 3 {
		room = 3
	}
	if len(lines) > room {
		lines = lines[len(lines)-room:]
	}
	if len(lines) == 0 {
		return dimStyle.Render("(say something)") + "\n\n"
	}
	return strings.Join(lines, "\n") + "\n\n"
}

func speakerLine(speaker live.Speaker, text string) string {
	if speaker == live.SpeakerUser {
		return micStyle.Render("you:   ") + text
	}
	return modelStyle.Render("model: ") + text
}

// renderControls renders volume state
func (m Model) renderControls() string {
	muteIcon := ""
	if m.muted {
		muteIcon = " muted"
	}
	return fmt.Sprintf("Volume: [%s] %d%%%s\n", renderBar(m.volume, 100, 10), m.volume, muteIcon)
}

// renderDebug renders session counters
func (m Model) renderDebug() string {
	st := m.stats
	return fmt.Sprintf("Sent: %d  Dropped: %d  Scheduled: %d  In flight: %d  Gaps: %d  Interrupts: %d  Clock: %s\n",
		st.Capture.Sent, st.Capture.Dropped, st.Playback.Enqueued, st.InFlight,
		st.Playback.Gaps, st.Interrupts, st.OutputClock.Truncate(time.Millisecond))
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return dimStyle.Render("↑/↓:Volume  m:Mute  i:Interrupt  r:Reconnect  d:Debug  q:Quit") + "\n"
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up":
		m.setVolume(m.volume + 5)
	case "down":
		m.setVolume(m.volume - 5)
	case "m":
		m.muted = !m.muted
		if m.ctrl != nil {
			m.ctrl.Mute(m.muted)
		}
	case "i":
		if m.ctrl != nil {
			m.ctrl.Interrupt()
		}
	case "r":
		m.transcript = nil
		m.userPartial = ""
		m.modelPartial = ""
		m.lastErr = ""
		return m, m.reconnect()
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

func (m *Model) setVolume(volume int) {
	if volume > 100 {
		volume = 100
	}
	if volume < 0 {
		volume = 0
	}
	m.volume = volume
	if m.ctrl != nil {
		m.ctrl.SetVolume(volume)
	}
}

// reconnect resets the session and starts a new conversation
func (m Model) reconnect() tea.Cmd {
	ctrl := m.ctrl
	if ctrl == nil {
		return nil
	}
	return func() tea.Msg {
		ctrl.Reset()
		return reconnectedMsg{err: ctrl.Start(context.Background())}
	}
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	var b strings.Builder
	for i := 0; i < width; i++ {
		if i < filled {
			b.WriteString("█")
		} else {
			b.WriteString("░")
		}
	}
	return b.String()
}
