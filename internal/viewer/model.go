// Package viewer is an interactive terminal view over a list session. Every
// frame runs one layout pass at the terminal size and paints the realized
// slots.
package viewer

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joeycumines/vlist/internal/layout"
	"github.com/joeycumines/vlist/internal/memhost"
	"github.com/joeycumines/vlist/internal/scripting"
	"github.com/joeycumines/vlist/internal/termui/scrollbar"
	"github.com/mattn/go-runewidth"
)

const logPaneRows = 5

// Options configures New.
type Options struct {
	Keys KeyMap
	// Queue runs prefetch slices between input events. It must be the
	// queue the session was built with.
	Queue *IdleQueue
	// Logs feeds the log pane. Nil hides it permanently.
	Logs *scripting.LogBuffer
	// PageStep is the page scroll distance. Zero pages by the viewport.
	PageStep      float64
	ShowScrollbar bool
	ShowLogs      bool
	Logger        *slog.Logger
}

// Styles holds the lipgloss styles of the view.
type Styles struct {
	Item    lipgloss.Style
	Pressed lipgloss.Style
	Group   lipgloss.Style
	Status  lipgloss.Style
	Logs    lipgloss.Style
}

// DefaultStyles returns the default styles.
func DefaultStyles() Styles {
	return Styles{
		Item:    lipgloss.NewStyle(),
		Pressed: lipgloss.NewStyle().Reverse(true),
		Group:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		Status:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Logs:    lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
	}
}

// Model is the Bubble Tea model of the viewer.
type Model struct {
	session *memhost.Session
	keys    KeyMap
	styles  Styles
	queue   *IdleQueue
	logs    *scripting.LogBuffer
	logger  *slog.Logger

	pageStep      float64
	showScrollbar bool
	showLogs      bool

	width, height int
	last          layout.PassResult
}

// New creates a viewer over s.
func New(s *memhost.Session, opts Options) Model {
	keys := opts.Keys
	if len(keys.Quit.Keys()) == 0 {
		keys = DefaultKeyMap()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return Model{
		session:       s,
		keys:          keys,
		styles:        DefaultStyles(),
		queue:         opts.Queue,
		logs:          opts.Logs,
		logger:        logger,
		pageStep:      opts.PageStep,
		showScrollbar: opts.ShowScrollbar,
		showLogs:      opts.ShowLogs && opts.Logs != nil,
	}
}

// WithStyles returns a copy of m using styles.
func (m Model) WithStyles(styles Styles) Model {
	m.styles = styles
	return m
}

// Init starts waiting for idle work.
func (m Model) Init() tea.Cmd {
	if m.queue == nil {
		return nil
	}
	return m.queue.wait()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.pass()
		return m, nil

	case idleMsg:
		if m.queue == nil {
			return m, nil
		}
		n := m.queue.runPending()
		m.logger.Debug("[Viewer] idle turn", slog.Int("tasks", n))
		m.pass()
		return m, m.queue.wait()

	case tea.KeyMsg:
		list := m.session.List
		mainSize, _ := m.viewport()
		switch {
		case key.Matches(msg, m.keys.Quit):
			if m.queue != nil {
				m.queue.Close()
			}
			return m, tea.Quit
		case key.Matches(msg, m.keys.Down):
			list.ScrollBy(1)
		case key.Matches(msg, m.keys.Up):
			list.ScrollBy(-1)
		case key.Matches(msg, m.keys.PageDown):
			list.ScrollBy(m.page(mainSize))
		case key.Matches(msg, m.keys.PageUp):
			list.ScrollBy(-m.page(mainSize))
		case key.Matches(msg, m.keys.Top):
			list.ScrollToIndex(0, layout.AlignStart, 0)
		case key.Matches(msg, m.keys.Bottom):
			list.ScrollToIndex(layout.LastItem, layout.AlignEnd, 0)
		case key.Matches(msg, m.keys.Snap):
			if t, ok := list.PredictSnap(0, 0); ok {
				list.ScrollBy(t.Offset)
			}
		case key.Matches(msg, m.keys.Press):
			if mid := list.MidIndex(); mid >= 0 {
				slot, _ := list.Slot(mid)
				m.session.Host.SetPressed(mid, !slot.IsPressed)
			}
		case key.Matches(msg, m.keys.Insert):
			if err := m.session.Host.Insert(max(list.MidIndex(), 0), 1); err != nil {
				m.logger.Warn("[Viewer] insert failed", slog.Any("error", err))
			}
		case key.Matches(msg, m.keys.Delete):
			if mid := list.MidIndex(); mid >= 0 {
				if err := m.session.Host.Delete(mid, 1); err != nil {
					m.logger.Warn("[Viewer] delete failed", slog.Any("error", err))
				}
			}
		case key.Matches(msg, m.keys.ToggleLogs):
			m.showLogs = !m.showLogs && m.logs != nil
		default:
			return m, nil
		}
		m.pass()
		return m, nil
	}
	return m, nil
}

func (m Model) page(mainSize float64) float64 {
	if m.pageStep > 0 {
		return m.pageStep
	}
	return max(mainSize-1, 1)
}

// listArea returns the rows and columns the list is painted in.
func (m Model) listArea() (rows, cols int) {
	rows = m.height - 1
	if m.showLogs {
		rows -= logPaneRows
	}
	cols = m.width
	if m.showScrollbar {
		cols--
	}
	return max(rows, 0), max(cols, 0)
}

// viewport maps the list area onto the list's axes.
func (m Model) viewport() (mainSize, crossSize float64) {
	rows, cols := m.listArea()
	if m.session.List.Config().Axis == layout.Horizontal {
		return float64(cols), float64(rows)
	}
	return float64(rows), float64(cols)
}

func (m *Model) pass() {
	mainSize, crossSize := m.viewport()
	if mainSize <= 0 {
		return
	}
	m.last = m.session.Pass(mainSize, crossSize)
}

// View renders the list, scrollbar, log pane and status line.
func (m Model) View() string {
	rows, cols := m.listArea()
	if rows <= 0 || cols <= 0 {
		return ""
	}
	body := strings.Join(m.renderSlots(rows, cols), "\n")
	if m.showScrollbar {
		mainSize, _ := m.viewport()
		height, offset := m.session.List.EstimatedHeightAndOffset()
		bar := scrollbar.New(scrollbar.WithEstimate(height, offset, mainSize), scrollbar.WithRows(rows))
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, bar.View())
	}
	parts := []string{body}
	if m.showLogs {
		parts = append(parts, m.renderLogs())
	}
	parts = append(parts, m.styles.Status.Render(runewidth.Truncate(m.status(), m.width, "…")))
	return strings.Join(parts, "\n")
}

func (m Model) status() string {
	start, end := m.session.List.Window()
	height, offset := m.session.List.EstimatedHeightAndOffset()
	s := fmt.Sprintf("%d-%d of %d  %.0f/%.0f  %s",
		start, end, m.session.Host.ChildCount(), offset, height, m.session.List.State())
	if m.session.Scheduler != nil {
		s += fmt.Sprintf("  prefetched %d", m.session.Scheduler.Stats().Built)
	}
	if m.last.Jumped {
		s += "  jumped"
	}
	return s
}

// cell is a run of text placed at a column of one screen row.
type cell struct {
	col   int
	width int
	text  string
	style lipgloss.Style
}

func (m Model) renderSlots(rows, cols int) []string {
	cfg := m.session.List.Config()
	horizontal := cfg.Axis == layout.Horizontal
	_, crossSize := m.viewport()
	lanes := max(cfg.Lanes, 1)
	laneWidth := int((crossSize - cfg.LaneGutter*float64(lanes-1)) / float64(lanes))

	grid := make([][]cell, rows)
	for _, slot := range m.session.List.Slots() {
		label := m.session.Host.Label(slot.Index)
		style := m.styles.Item
		switch {
		case slot.IsPressed:
			style = m.styles.Pressed
		case slot.IsGroup:
			style = m.styles.Group
		}
		mainStart := int(math.Floor(slot.StartPos))
		mainEnd := max(int(math.Ceil(slot.EndPos)), mainStart+1)
		cross := int(math.Round(slot.CrossPos))

		if horizontal {
			// Columns span the main extent; the label sits on the lane's
			// first row.
			row := cross
			if row < 0 || row >= rows {
				continue
			}
			col := max(mainStart, 0)
			w := min(mainEnd, cols) - col
			if w <= 0 {
				continue
			}
			grid[row] = append(grid[row], cell{col: col, width: w, text: label, style: style})
			continue
		}

		width := laneWidth
		if slot.IsGroup {
			width = int(crossSize) - cross
		}
		width = min(width, cols-cross)
		if width <= 0 {
			continue
		}
		lines := []string{label}
		if !slot.IsGroup {
			lines = memhost.Wrap(label, width)
		}
		for row := max(mainStart, 0); row < min(mainEnd, rows); row++ {
			text := ""
			if i := row - mainStart; i < len(lines) {
				text = lines[i]
			}
			grid[row] = append(grid[row], cell{col: cross, width: width, text: text, style: style})
		}
	}

	out := make([]string, rows)
	for r, cells := range grid {
		sort.Slice(cells, func(i, j int) bool { return cells[i].col < cells[j].col })
		var b strings.Builder
		at := 0
		for _, c := range cells {
			if c.col < at {
				continue
			}
			b.WriteString(strings.Repeat(" ", c.col-at))
			b.WriteString(c.style.Render(runewidth.FillRight(runewidth.Truncate(c.text, c.width, "…"), c.width)))
			at = c.col + c.width
		}
		if at < cols {
			b.WriteString(strings.Repeat(" ", cols-at))
		}
		out[r] = b.String()
	}
	return out
}

func (m Model) renderLogs() string {
	entries := m.logs.Recent(logPaneRows)
	lines := make([]string, logPaneRows)
	for i := range lines {
		if i < len(entries) {
			e := entries[i]
			lines[i] = runewidth.Truncate(fmt.Sprintf("%-5s %s", e.Level, e.Message), m.width, "…")
		}
		lines[i] = m.styles.Logs.Render(runewidth.FillRight(lines[i], m.width))
	}
	return strings.Join(lines, "\n")
}
