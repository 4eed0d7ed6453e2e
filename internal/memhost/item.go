package memhost

import (
	"strings"

	"github.com/joeycumines/vlist/internal/layout"
	"github.com/rivo/uniseg"
)

// Row is a fixed-extent leaf item.
type Row struct {
	Index   int
	Label   string
	Size    float64
	pressed bool
}

func (r *Row) MainSize(layout.Constraint) float64 { return r.Size }

func (r *Row) Pressed() bool { return r.pressed }

// TextItem is a block of text whose main extent is the number of wrapped
// display lines times LineHeight. Lines wrap at grapheme boundaries once
// their display width would exceed the cross size.
type TextItem struct {
	Index      int
	Text       string
	LineHeight float64

	width int
	lines int
}

func (t *TextItem) MainSize(c layout.Constraint) float64 {
	w := int(c.CrossSize)
	if t.lines == 0 || w != t.width {
		t.width, t.lines = w, WrappedLines(t.Text, w)
	}
	return float64(t.lines) * t.LineHeight
}

// WrappedLines counts the display lines text occupies at width cells. A
// width of zero or less disables wrapping. Every paragraph occupies at
// least one line.
func WrappedLines(text string, width int) int {
	total := 0
	for _, para := range strings.Split(text, "\n") {
		total += paragraphLines(para, width)
	}
	return total
}

func paragraphLines(s string, width int) int {
	if width <= 0 || s == "" {
		return 1
	}
	lines, cur := 1, 0
	state := -1
	var w int
	for len(s) > 0 {
		_, s, w, state = uniseg.FirstGraphemeClusterInString(s, state)
		if cur > 0 && cur+w > width {
			lines++
			cur = 0
		}
		cur += w
	}
	return lines
}

// Wrap splits text into the display lines counted by WrappedLines.
func Wrap(text string, width int) []string {
	var out []string
	for _, para := range strings.Split(text, "\n") {
		if width <= 0 || para == "" {
			out = append(out, para)
			continue
		}
		var line strings.Builder
		cur, state := 0, -1
		var cluster string
		var w int
		for len(para) > 0 {
			cluster, para, w, state = uniseg.FirstGraphemeClusterInString(para, state)
			if cur > 0 && cur+w > width {
				out = append(out, line.String())
				line.Reset()
				cur = 0
			}
			line.WriteString(cluster)
			cur += w
		}
		out = append(out, line.String())
	}
	return out
}
