package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	xansi "github.com/charmbracelet/x/ansi"
	"github.com/mattn/go-runewidth"
)

// keyToPTYBytes maps a key press to the bytes a terminal would send.
func keyToPTYBytes(k tea.KeyMsg) []byte {
	var out []byte
	switch {
	case k.Type == tea.KeyRunes && len(k.Runes) > 0:
		out = []byte(string(k.Runes))
	case k.Type == tea.KeySpace:
		out = []byte(" ")
	case k.Type == tea.KeyBackspace:
		out = []byte{0x7f}
	case k.Type >= 0 && k.Type < 0x20:
		// Enter, Tab, Esc and the ctrl-letter keys are their control codes.
		out = []byte{byte(k.Type)}
	default:
		out = namedKeys[k.Type]
	}
	if len(out) > 0 && k.Alt {
		out = append([]byte{xansi.ESC}, out...)
	}
	return out
}

var namedKeys = map[tea.KeyType][]byte{
	tea.KeyUp:       []byte("\x1b[A"),
	tea.KeyDown:     []byte("\x1b[B"),
	tea.KeyRight:    []byte("\x1b[C"),
	tea.KeyLeft:     []byte("\x1b[D"),
	tea.KeyHome:     []byte("\x1b[H"),
	tea.KeyEnd:      []byte("\x1b[F"),
	tea.KeyPgUp:     []byte("\x1b[5~"),
	tea.KeyPgDown:   []byte("\x1b[6~"),
	tea.KeyDelete:   []byte("\x1b[3~"),
	tea.KeyInsert:   []byte("\x1b[2~"),
	tea.KeyShiftTab: []byte("\x1b[Z"),
	tea.KeyF1:       []byte("\x1bOP"),
	tea.KeyF2:       []byte("\x1bOQ"),
	tea.KeyF3:       []byte("\x1bOR"),
	tea.KeyF4:       []byte("\x1bOS"),
}

// overlayCursor draws an inverse-video cursor at display column col of an
// ANSI-styled line, padding with spaces past the end.
func overlayCursor(line string, col int) string {
	if col < 0 {
		col = 0
	}
	var b strings.Builder
	b.Grow(len(line) + 16)
	visible := 0
	state := xansi.NormalState
	rest := line
	placed := false
	for len(rest) > 0 {
		seq, _, n, newState := xansi.DecodeSequence(rest, state, nil)
		state = newState
		if n <= 0 {
			break
		}
		rest = rest[n:]
		if seq != "" && seq[0] == xansi.ESC || len(seq) == 1 && seq[0] < 0x20 {
			b.WriteString(seq)
			continue
		}
		w := runewidth.StringWidth(seq)
		if w <= 0 {
			w = 1
		}
		if !placed && visible == col {
			b.WriteString("\x1b[7m" + seq + "\x1b[27m")
			placed = true
		} else {
			b.WriteString(seq)
		}
		visible += w
	}
	if !placed && col >= visible {
		b.WriteString(strings.Repeat(" ", col-visible))
		b.WriteString("\x1b[7m \x1b[27m")
	}
	return b.String()
}

// withCursor overlays the cursor on row y of a rendered screen.
func withCursor(screen string, x, y int) string {
	lines := strings.Split(strings.ReplaceAll(screen, "\r\n", "\n"), "\n")
	if y < 0 {
		y = 0
	}
	for len(lines) <= y {
		lines = append(lines, "")
	}
	lines[y] = overlayCursor(lines[y], x)
	return strings.Join(lines, "\n")
}

// fitLines pads or cuts s to exactly h lines of at most w cells.
func fitLines(s string, w, h int) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	if len(lines) > h {
		lines = lines[:h]
	}
	for i, l := range lines {
		if xansi.StringWidth(l) > w {
			lines[i] = xansi.Truncate(l, w, "")
		}
	}
	for len(lines) < h {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}
