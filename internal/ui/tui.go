// ABOUTME: Playback HUD for transport state and session stats
// ABOUTME: Real-time status display and keyboard transport control using bubbletea
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cutplane/playback-go/internal/monitor"
	"github.com/cutplane/playback-go/internal/transport"
)

// Controls is the subset of the transport the HUD drives
type Controls interface {
	TogglePlay()
	Seek(timeSec float64)
	SetVolume(volume float64)
	SetMuted(muted bool)
}

// Status holds playback state for display
type Status struct {
	SequenceName string
	State        transport.State
	Stats        monitor.SessionStats
	LiveSources  int
	DurationSec  float64
}

// PlaybackTUI manages the HUD program
type PlaybackTUI struct {
	program  *tea.Program
	updates  chan Status
	quitChan chan struct{}
}

type tickMsg time.Time
type statusMsg Status

// hudModel is the bubbletea model for the playback HUD
type hudModel struct {
	status   Status
	controls Controls
	quitting bool
	quitChan chan struct{}
}

func (m hudModel) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m hudModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		return m, tickEvery()

	case statusMsg:
		m.status = Status(msg)
		return m, nil
	}

	return m, nil
}

func (m hudModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		select {
		case m.quitChan <- struct{}{}:
		default:
		}
		return m, tea.Quit

	case " ":
		m.controls.TogglePlay()

	case "left":
		m.controls.Seek(m.status.State.CurrentTimeSec - 5)

	case "right":
		m.controls.Seek(m.status.State.CurrentTimeSec + 5)

	case "up", "+":
		m.controls.SetVolume(m.status.State.Volume + 0.05)

	case "down", "-":
		m.controls.SetVolume(m.status.State.Volume - 0.05)

	case "m":
		m.controls.SetMuted(!m.status.State.IsMuted)
	}

	return m, nil
}

func (m hudModel) View() string {
	if m.quitting {
		return "Stopping playback...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		MarginBottom(1)

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250"))

	warnStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("220"))

	var b strings.Builder

	b.WriteString(titleStyle.Render("Cutplane Playback"))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Sequence: "))
	b.WriteString(valueStyle.Render(m.status.SequenceName))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Transport: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%s  %s / %s",
		playSymbol(m.status.State),
		formatTime(m.status.State.CurrentTimeSec),
		formatTime(m.status.DurationSec))))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Volume: "))
	vol := fmt.Sprintf("%3.0f%%", m.status.State.Volume*100)
	if m.status.State.IsMuted {
		vol += " (muted)"
	}
	b.WriteString(valueStyle.Render(vol))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Sources: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d live", m.status.LiveSources)))
	b.WriteString("\n\n")

	stats := m.status.Stats
	b.WriteString(headerStyle.Render("Frames: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d rendered, %d dropped (%.1f%%), %.1fms avg",
		stats.Frames.Rendered, stats.Frames.Dropped, stats.Frames.DropRate*100, stats.Frames.AvgRenderTimeMs)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Drift: "))
	drift := fmt.Sprintf("%.1fms avg, %.1fms max", stats.Drift.AvgDriftMs, stats.Drift.MaxDriftMs)
	if stats.Drift.MaxDriftMs > 200 {
		b.WriteString(warnStyle.Render(drift))
	} else {
		b.WriteString(valueStyle.Render(drift))
	}
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Cache: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d/%d entries, %.0f%% hits, %.1fms avg fetch",
		stats.Cache.EntryCount, stats.Cache.MaxEntries, stats.Cache.HitRate*100, stats.AvgFetchLatencyMs)))
	b.WriteString("\n\n")

	b.WriteString(lipgloss.NewStyle().Faint(true).Render(
		"space play/pause · ←/→ seek 5s · ↑/↓ volume · m mute · q quit"))

	return b.String()
}

func playSymbol(s transport.State) string {
	if s.IsPlaying {
		return "playing"
	}
	return "paused"
}

func formatTime(sec float64) string {
	if sec < 0 {
		sec = 0
	}
	d := time.Duration(sec * float64(time.Second))
	return fmt.Sprintf("%02d:%05.2f", int(d.Minutes()), d.Seconds()-float64(int(d.Minutes()))*60)
}

// NewPlaybackTUI creates the HUD over the given controls
func NewPlaybackTUI() *PlaybackTUI {
	return &PlaybackTUI{
		updates:  make(chan Status, 10),
		quitChan: make(chan struct{}, 1),
	}
}

// Start runs the HUD until quit; blocks the calling goroutine
func (t *PlaybackTUI) Start(sequenceName string, durationSec float64, controls Controls) error {
	m := hudModel{
		status: Status{
			SequenceName: sequenceName,
			DurationSec:  durationSec,
		},
		controls: controls,
		quitChan: t.quitChan,
	}

	t.program = tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		for status := range t.updates {
			if t.program != nil {
				t.program.Send(statusMsg(status))
			}
		}
	}()

	_, err := t.program.Run()
	return err
}

// Update sends a status refresh; drops when the HUD is behind
func (t *PlaybackTUI) Update(status Status) {
	select {
	case t.updates <- status:
	default:
	}
}

// Stop quits the HUD
func (t *PlaybackTUI) Stop() {
	if t.program != nil {
		t.program.Quit()
	}
	close(t.updates)
}

// QuitChan signals when the user asked to quit
func (t *PlaybackTUI) QuitChan() <-chan struct{} {
	return t.quitChan
}
