package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
)

// renderStatusBar draws a segmented bar: a key chip, colored nuggets on the
// left and right, and filler between. Trailing left items and then right
// items are dropped when the bar does not fit.
func renderStatusBar(width int, leftParts, rightParts []string) string {
	if width <= 0 {
		width = 100
	}
	base := statusBarBase()
	keyStyle := chipKeyStyle().Inherit(base).MarginRight(1)
	nugget := lipgloss.NewStyle().Foreground(Vitesse.OnAccent).Padding(0, 1)
	colors := []lipgloss.Color{Vitesse.Blue, Vitesse.Yellow, Vitesse.Magenta, Vitesse.Primary}

	left := make([]string, 0, len(leftParts))
	for i, s := range leftParts {
		if s == "" {
			continue
		}
		if i == 0 {
			left = append(left, keyStyle.Render(s))
			continue
		}
		left = append(left, nugget.Background(colors[(i-1)%len(colors)]).Render(s))
	}
	right := make([]string, 0, len(rightParts))
	for i, s := range rightParts {
		if s == "" {
			continue
		}
		right = append(right, nugget.Background(colors[i%len(colors)]).Render(s))
	}

	join := func(parts []string) (string, int) {
		s := strings.Join(parts, "")
		return s, xansi.StringWidth(s)
	}
	l, lw := join(left)
	r, rw := join(right)
	for lw+rw > width && len(left) > 1 {
		left = left[:len(left)-1]
		l, lw = join(left)
	}
	for lw+rw > width && len(right) > 0 {
		right = right[:len(right)-1]
		r, rw = join(right)
	}
	fill := width - lw - rw
	if fill < 0 {
		fill = 0
	}
	center := lipgloss.NewStyle().Inherit(base).Width(fill).Render("")
	return base.Width(width).Render(l + center + r)
}
