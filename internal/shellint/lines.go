package shellint

import (
	"strings"

	clog "github.com/charmbracelet/log"

	"cookterm/internal/termbuf"
)

// LineBuffer is the terminal widget the decoder reads from and registers its
// OSC handlers on. *termbuf.Buffer implements it.
type LineBuffer interface {
	Write(p []byte) (int, error)
	RegisterMarker(offset int) *termbuf.Marker
	Line(index int) (string, bool)
	RegisterOscHandler(code int, h termbuf.OscHandler)
	SetTextObserver(fn func(string))
}

// lines wraps marker registration and range reads so that every failure
// degrades to "no region" with a warning instead of an error.
type lines struct {
	buf LineBuffer
	log *clog.Logger
}

func (l lines) mark(offset int, what string) *termbuf.Marker {
	m := l.buf.RegisterMarker(offset)
	if m == nil {
		l.log.Warn("marker unavailable", "marker", what, "offset", offset)
	}
	return m
}

// textAt reads the line at offset from the cursor through a short-lived
// marker.
func (l lines) textAt(offset int) (string, bool) {
	m := l.buf.RegisterMarker(offset)
	if m == nil {
		return "", false
	}
	defer m.Dispose()
	line, ok := m.Line()
	if !ok {
		return "", false
	}
	return l.buf.Line(line)
}

// between joins the lines from start+skip through end. ok is false when a
// marker does not resolve or end precedes start.
func (l lines) between(start, end *termbuf.Marker, skip int) (string, bool) {
	s, sok := start.Line()
	e, eok := end.Line()
	if !sok || !eok || e < s {
		return "", false
	}
	var out []string
	for i := s + skip; i <= e; i++ {
		if text, ok := l.buf.Line(i); ok {
			out = append(out, text)
		}
	}
	return strings.Join(out, "\n"), true
}

func release(m **termbuf.Marker) {
	if *m != nil {
		(*m).Dispose()
		*m = nil
	}
}
