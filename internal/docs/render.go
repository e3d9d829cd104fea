package docs

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// DefaultStyle is the glamour standard style used when none is configured.
const DefaultStyle = "dark"

// glamour's left gutter
const gutter = 2

// Render renders markdown for a terminal of the given width. It falls back
// to the source text when rendering fails.
func Render(markdown, style string, width int) string {
	if style == "" {
		style = DefaultStyle
	}
	wrap := width - gutter
	if wrap < 10 {
		wrap = 10
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return trimEdgeBlankLines(markdown)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return trimEdgeBlankLines(markdown)
	}
	return trimEdgeBlankLines(out)
}

// trimEdgeBlankLines removes leading and trailing blank lines.
func trimEdgeBlankLines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	j := len(lines) - 1
	for j >= i && strings.TrimSpace(lines[j]) == "" {
		j--
	}
	return strings.Join(lines[i:j+1], "\n")
}
