package tui

import (
	"fmt"
	"strings"
	"time"

	xansi "github.com/charmbracelet/x/ansi"
	zone "github.com/lrstanley/bubblezone"

	"cookterm/internal/history"
)

const histZonePrefix = "hist."

// histRow is one line of the history pane.
type histRow struct {
	id      string
	command string
	running bool
}

// historyRows lists running commands first, then finished ones newest first.
func historyRows(running []history.Running, entries []history.Entry) []histRow {
	rows := make([]histRow, 0, len(running)+len(entries))
	for _, r := range running {
		rows = append(rows, histRow{id: r.ID, command: r.Command, running: true})
	}
	for i := len(entries) - 1; i >= 0; i-- {
		rows = append(rows, histRow{id: entries[i].ID, command: entries[i].Command})
	}
	return rows
}

// renderHistory draws the history pane body. Finished rows are clickable
// zones so a click can dismiss them.
func renderHistory(h *history.Store, sel, width int, now time.Time) string {
	running := h.Running()
	entries := h.Entries()
	if len(running) == 0 && len(entries) == 0 {
		return mutedStyle.Render("no commands yet")
	}
	byID := make(map[string]history.Entry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}

	var b strings.Builder
	for i, r := range historyRows(running, entries) {
		var mark, meta string
		if r.running {
			mark = runStyle.Render("●")
			for _, rr := range running {
				if rr.ID == r.id {
					meta = history.FormatDuration(now.Sub(rr.StartedAt))
				}
			}
		} else {
			e := byID[r.id]
			if e.ExitCode == 0 {
				mark = okStyle.Render("✓")
			} else {
				mark = failStyle.Render(fmt.Sprintf("✗%d", e.ExitCode))
			}
			meta = history.FormatDuration(e.Duration())
		}
		line := fmt.Sprintf("%s %s %s", mark, r.command, mutedStyle.Render(meta))
		if xansi.StringWidth(line) > width {
			line = xansi.Truncate(line, width, "…")
		}
		if i == sel {
			line = selStyle.Width(width).Render(line)
		}
		if !r.running {
			line = zone.Mark(histZonePrefix+r.id, line)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
