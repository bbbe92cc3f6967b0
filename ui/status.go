package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/readaloud/internal/playback"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	kindStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#1DB954"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))
	regenStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00AAFF"))
	statusColors = map[string]lipgloss.Color{
		"playing": lipgloss.Color("#00FF00"),
		"paused":  lipgloss.Color("#FFFF00"),
		"stopped": lipgloss.Color("#FF8800"),
		"idle":    lipgloss.Color("#666666"),
	}
)

// StatusDisplay renders a player state.
type StatusDisplay struct {
	state playback.StateResponse
	bar   progress.Model
}

// NewStatusDisplay creates an empty display.
func NewStatusDisplay() *StatusDisplay {
	return &StatusDisplay{
		state: playback.StateResponse{State: playback.Idle.String(), Speed: 1},
		bar:   progress.New(progress.WithSolidFill("#1DB954"), progress.WithoutPercentage()),
	}
}

// Update replaces the displayed state.
func (s *StatusDisplay) Update(state playback.StateResponse) {
	s.state = state
}

// State returns the displayed state.
func (s *StatusDisplay) State() playback.StateResponse { return s.state }

// Icon returns a glyph for the playback state.
func (s *StatusDisplay) Icon() string {
	if s.state.Regenerating {
		return "⟳"
	}
	switch s.state.State {
	case "playing":
		return "▶"
	case "paused":
		return "⏸"
	case "stopped":
		return "■"
	default:
		return "○"
	}
}

// CompactStatus returns a single line suitable for a status bar.
func (s *StatusDisplay) CompactStatus() string {
	if !s.state.Loaded {
		return dimStyle.Render("○ nothing loaded")
	}
	color, ok := statusColors[s.state.State]
	if !ok {
		color = statusColors["idle"]
	}
	status := lipgloss.NewStyle().Foreground(color).Render(s.Icon() + " " + s.state.State)
	status += dimStyle.Render(fmt.Sprintf(" %s/%s %.2gx",
		s.state.PositionFormatted, s.state.DurationFormatted, s.state.Speed))
	if s.state.Regenerating {
		status += regenStyle.Render(" regenerating")
	}
	return status
}

// DetailedStatus returns the multi-line view for a terminal width.
func (s *StatusDisplay) DetailedStatus(width int) string {
	width = max(width, 20)
	var lines []string

	title := "Nothing loaded"
	if s.state.Loaded {
		title = s.state.Title
		if title == "" {
			title = "Untitled"
		}
	}
	lines = append(lines, titleStyle.Render(runewidth.Truncate(title, width, "…")))
	if s.state.Type != "" {
		lines = append(lines, kindStyle.Render(s.state.Type))
	}
	lines = append(lines, "")

	s.bar.Width = width
	lines = append(lines, s.bar.ViewAs(float64(s.state.ProgressPercent)/100))

	left := s.state.PositionFormatted
	right := s.state.DurationFormatted
	if left == "" {
		left = playback.FormatClock(0)
	}
	if right == "" {
		right = playback.FormatClock(0)
	}
	gap := max(width-runewidth.StringWidth(left)-runewidth.StringWidth(right), 1)
	lines = append(lines, dimStyle.Render(left+strings.Repeat(" ", gap)+right))
	lines = append(lines, "")
	lines = append(lines, s.CompactStatus())

	if s.state.Error != "" {
		msg := truncate.StringWithTail(s.state.Error, uint(max(width-7, 1)), "...") //nolint:gosec
		lines = append(lines, errorStyle.Render("Error: "+msg))
	}
	return strings.Join(lines, "\n")
}
