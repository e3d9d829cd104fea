// Package sanitize strips terminal escape sequences from captured text so it
// can be displayed or stored safely.
package sanitize

import (
	"strings"

	xansi "github.com/charmbracelet/x/ansi"
)

var crlf = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Strip removes ANSI CSI, OSC, DCS/SOS/PM/APC and single-ESC sequences, then
// drops remaining control characters except TAB and LF. CRLF and lone CR are
// normalized to LF first.
func Strip(s string) string {
	if s == "" {
		return ""
	}
	out := crlf.Replace(s)
	out = xansi.Strip(out)
	return dropControls(out)
}

func dropControls(s string) string {
	clean := true
	for i := 0; i < len(s); i++ {
		if isDroppedControl(s[i]) {
			clean = false
			break
		}
	}
	if clean {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if isDroppedControl(s[i]) {
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isDroppedControl(c byte) bool {
	if c == '\t' || c == '\n' {
		return false
	}
	return c < 0x20 || c == 0x7f
}
