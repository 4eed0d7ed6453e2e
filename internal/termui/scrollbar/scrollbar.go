// Package scrollbar renders a vertical scrollbar from a list's estimated
// content height and offset.
package scrollbar

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Model defines the state of the scrollbar. Heights and offsets are in
// layout units; Rows is the number of terminal rows the bar occupies.
type Model struct {
	// ContentHeight is the estimated extent of the whole list.
	ContentHeight float64
	// ViewportHeight is the extent of the visible window.
	ViewportHeight float64
	// Offset is the estimated position of the viewport start within the
	// content.
	Offset float64
	// Rows is the rendered height. Zero renders nothing.
	Rows int

	ThumbStyle lipgloss.Style
	TrackStyle lipgloss.Style
	ThumbChar  string
	TrackChar  string
}

// Option is used to set options in New.
type Option func(*Model)

// New creates a new scrollbar model with default settings.
func New(opts ...Option) Model {
	m := Model{
		ThumbChar: " ",
		TrackChar: "│",
		ThumbStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("57")),
		TrackStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// WithEstimate sets the content height, offset and viewport height, as
// returned by the list's estimate and the constraint of the last pass.
func WithEstimate(height, offset, viewport float64) Option {
	return func(m *Model) {
		m.ContentHeight = height
		m.Offset = offset
		m.ViewportHeight = viewport
	}
}

// WithRows sets the rendered height.
func WithRows(rows int) Option {
	return func(m *Model) { m.Rows = rows }
}

// WithStyles sets the styles for the thumb and track.
func WithStyles(thumb, track lipgloss.Style) Option {
	return func(m *Model) {
		m.ThumbStyle = thumb
		m.TrackStyle = track
	}
}

// WithChars sets the characters for the thumb and track.
func WithChars(thumb, track string) Option {
	return func(m *Model) {
		m.ThumbChar = thumb
		m.TrackChar = track
	}
}

// Thumb returns the first row and the row count of the thumb.
func (m Model) Thumb() (top, height int) {
	rows := m.Rows
	if rows <= 0 {
		return 0, 0
	}
	content := sanitize(m.ContentHeight)
	viewport := sanitize(m.ViewportHeight)
	// nothing to scroll: a full-height thumb
	if viewport <= 0 || content <= viewport {
		return 0, rows
	}

	maxOffset := content - viewport
	offset := min(max(sanitize(m.Offset), 0), maxOffset)

	height = int(float64(rows) * viewport / content)
	height = min(max(height, 1), rows)

	maxTop := rows - height
	if maxTop > 0 {
		top = int(math.Round(offset / maxOffset * float64(maxTop)))
	}
	return min(max(top, 0), maxTop), height
}

// View renders exactly Rows lines.
func (m Model) View() string {
	if m.Rows <= 0 {
		return ""
	}
	top, height := m.Thumb()

	// a non-breaking space keeps lipgloss from dropping the background
	// escape of a plain space
	thumb, track := m.ThumbChar, m.TrackChar
	if thumb == " " {
		thumb = "\u00a0"
	}
	if track == " " {
		track = "\u00a0"
	}

	var s strings.Builder
	for i := 0; i < m.Rows; i++ {
		if top <= i && i < top+height {
			s.WriteString(m.ThumbStyle.Render(thumb))
		} else {
			s.WriteString(m.TrackStyle.Render(track))
		}
		if i < m.Rows-1 {
			s.WriteByte('\n')
		}
	}
	return s.String()
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
