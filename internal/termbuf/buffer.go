// Package termbuf implements a line-addressed terminal scrollback buffer with
// line markers and OSC handler dispatch. It interprets the subset of VT
// sequences that move text between lines (cursor motion, erase, scrolling,
// alternate screen) so that marker-based line reads match what a terminal
// would show. Rendering is left to the display sink.
//
// A Buffer is not safe for concurrent use.
package termbuf

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	xansi "github.com/charmbracelet/x/ansi"
	clog "github.com/charmbracelet/log"

	"cookterm/internal/system"
)

// maxPending caps the bytes held back while waiting for the rest of a split
// escape sequence or UTF-8 rune.
const maxPending = 4096

// MaxCols and MaxRows bound the screen size accepted by Resize.
const (
	MaxCols = 1000
	MaxRows = 1000
)

// OscHandler receives the payload of an OSC sequence (the text after
// "<code>;"). It returns true when it consumed the sequence.
type OscHandler func(payload string) bool

type dataSub struct {
	id int
	fn func([]byte)
}

// Buffer is the terminal widget model: it consumes output written by the
// shell, keeps a primary grid with scrollback plus an alternate grid, and
// hands out markers bound to primary-grid lines.
type Buffer struct {
	primary *grid
	alt     *grid
	active  *grid

	markers      []*Marker
	nextMarkerID int

	osc      map[int][]OscHandler
	display  io.Writer
	observer func(string)

	subs    []dataSub
	nextSub int

	pending []byte
	parser  *xansi.Parser
	log     *clog.Logger
}

// New returns a buffer of cols x rows keeping up to scrollback lines above
// the screen.
func New(cols, rows, scrollback int) *Buffer {
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}
	if scrollback < 0 {
		scrollback = 0
	}
	b := &Buffer{
		osc:    make(map[int][]OscHandler),
		parser: xansi.NewParser(),
		log:    system.Logger.WithPrefix("termbuf"),
	}
	b.initGrids(cols, rows, scrollback)
	return b
}

func (b *Buffer) initGrids(cols, rows, scrollback int) {
	b.primary = newGrid(cols, rows, scrollback)
	b.primary.onTrim = b.trimMarkers
	b.primary.onCut = b.cutMarkers
	b.alt = newGrid(cols, rows, 0)
	b.active = b.primary
}

// SetLogger overrides the logger used for diagnostics.
func (b *Buffer) SetLogger(l *clog.Logger) { b.log = system.Or(l) }

// SetDisplay sets a sink receiving every byte passed to Write, unmodified.
func (b *Buffer) SetDisplay(w io.Writer) { b.display = w }

// SetTextObserver registers fn to receive each decoded token (printable
// grapheme, control byte or escape sequence) in stream order, except OSC
// sequences consumed by a handler.
func (b *Buffer) SetTextObserver(fn func(string)) { b.observer = fn }

// RegisterOscHandler adds h for OSC code. Handlers for the same code are
// tried newest first until one returns true.
func (b *Buffer) RegisterOscHandler(code int, h OscHandler) {
	b.osc[code] = append(b.osc[code], h)
}

// OnData subscribes fn to user input passed to Input. The returned function
// removes the subscription.
func (b *Buffer) OnData(fn func([]byte)) (unsubscribe func()) {
	b.nextSub++
	id := b.nextSub
	b.subs = append(b.subs, dataSub{id: id, fn: fn})
	return func() {
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Input forwards user keystrokes to OnData subscribers.
func (b *Buffer) Input(p []byte) {
	if len(p) == 0 {
		return
	}
	for _, s := range b.subs {
		s.fn(p)
	}
}

// Cols returns the screen width.
func (b *Buffer) Cols() int { return b.primary.cols }

// Rows returns the screen height.
func (b *Buffer) Rows() int { return b.primary.rows }

// Cursor returns the cursor column and absolute line on the active grid.
func (b *Buffer) Cursor() (x, line int) {
	g := b.active
	x = g.x
	if x >= g.cols {
		x = g.cols - 1
	}
	return x, g.cursorLine()
}

// AltScreen reports whether the alternate screen is active.
func (b *Buffer) AltScreen() bool { return b.active == b.alt }

// Resize changes the screen size of both grids. Lines are not reflowed.
func (b *Buffer) Resize(cols, rows int) {
	if cols < 1 || rows < 1 {
		return
	}
	cols, rows = min(cols, MaxCols), min(rows, MaxRows)
	b.primary.resize(cols, rows)
	b.alt.resize(cols, rows)
}

// RegisterMarker binds a marker to the line at offset relative to the
// cursor line. It returns nil while the alternate screen is active or when
// the line does not exist.
func (b *Buffer) RegisterMarker(offset int) *Marker {
	if b.active != b.primary {
		return nil
	}
	abs := b.primary.cursorLine() + offset
	if !b.primary.hasLine(abs) {
		return nil
	}
	b.nextMarkerID++
	m := &Marker{id: b.nextMarkerID, line: abs}
	b.markers = append(b.markers, m)
	return m
}

// Line returns the text of absolute line index on the active grid with
// trailing blanks removed.
func (b *Buffer) Line(index int) (string, bool) {
	return b.active.text(index, true)
}

// Lines returns the visible screen rows of the active grid.
func (b *Buffer) Lines() []string {
	g := b.active
	out := make([]string, 0, g.rows)
	for y := 0; y < g.rows; y++ {
		s, _ := g.text(g.ybase+y, true)
		out = append(out, s)
	}
	return out
}

// cutMarkers disposes markers on lines at or past end.
func (b *Buffer) cutMarkers(end int) {
	live := b.markers[:0]
	for _, m := range b.markers {
		if m.disposed {
			continue
		}
		if m.line >= end {
			m.Dispose()
			continue
		}
		live = append(live, m)
	}
	for i := len(live); i < len(b.markers); i++ {
		b.markers[i] = nil
	}
	b.markers = live
}

func (b *Buffer) trimMarkers(base int) {
	live := b.markers[:0]
	for _, m := range b.markers {
		if m.disposed {
			continue
		}
		if m.line < base {
			m.Dispose()
			continue
		}
		live = append(live, m)
	}
	for i := len(live); i < len(b.markers); i++ {
		b.markers[i] = nil
	}
	b.markers = live
}

func (b *Buffer) disposeMarkers() {
	for _, m := range b.markers {
		m.Dispose()
	}
	b.markers = nil
}

// Write feeds shell output into the buffer. OSC handlers run synchronously,
// in stream order. Escape sequences or runes split across calls are
// reassembled.
func (b *Buffer) Write(p []byte) (int, error) {
	if b.display != nil && len(p) > 0 {
		if _, err := b.display.Write(p); err != nil {
			b.log.Debug("display write failed", "err", err)
		}
	}

	data := p
	if len(b.pending) > 0 {
		data = append(b.pending, p...)
		b.pending = nil
	}

	for len(data) > 0 {
		if c := data[0]; c >= 0xC0 && !utf8.FullRune(data) {
			b.hold(data)
			break
		}
		seq, width, n, state := xansi.DecodeSequence(data, xansi.NormalState, b.parser)
		if state != xansi.NormalState {
			if len(data) <= maxPending {
				b.hold(data)
				break
			}
			// Too long to be a real sequence: drop the ESC and read the
			// rest as text so later markers still dispatch.
			b.log.Debug("unterminated sequence over limit, reading as text", "bytes", len(data))
			data = data[1:]
			continue
		}
		if n == len(data)-1 && data[n] == xansi.ESC && isStringSeq(seq) && len(data) <= maxPending {
			// ESC of a 7-bit ST arrived without its backslash
			b.hold(data)
			break
		}
		if n <= 0 {
			n = 1
			seq = data[:1]
		}
		b.handle(seq, width)
		data = data[n:]
	}
	return len(p), nil
}

func (b *Buffer) hold(data []byte) {
	b.pending = append([]byte(nil), data...)
}

func isStringSeq(seq []byte) bool {
	return xansi.HasOscPrefix(seq) || xansi.HasDcsPrefix(seq) ||
		xansi.HasSosPrefix(seq) || xansi.HasPmPrefix(seq) || xansi.HasApcPrefix(seq)
}

func (b *Buffer) handle(seq []byte, width int) {
	c := seq[0]
	switch {
	case len(seq) == 1 && (c < 0x20 || c == 0x7f):
		b.control(c)
	case xansi.HasOscPrefix(seq):
		if b.dispatchOsc(seq) {
			return
		}
	case xansi.HasCsiPrefix(seq):
		b.csi()
	case xansi.HasDcsPrefix(seq), xansi.HasSosPrefix(seq), xansi.HasPmPrefix(seq), xansi.HasApcPrefix(seq):
	case c == xansi.ESC:
		b.esc()
	case len(seq) == 1 && c >= 0x80 && c < 0xC0:
		// stray C1 or continuation byte
		return
	default:
		b.active.put(string(seq), width)
	}
	if b.observer != nil {
		b.observer(string(seq))
	}
}

func (b *Buffer) control(c byte) {
	g := b.active
	switch c {
	case '\r':
		g.carriageReturn()
	case '\n', '\v', '\f':
		g.lineFeed()
	case '\b':
		g.backspace()
	case '\t':
		g.tab()
	}
}

// parseOsc splits an OSC sequence into its numeric code and payload.
func parseOsc(seq []byte) (code int, payload string, ok bool) {
	body := seq
	if body[0] == xansi.OSC {
		body = body[1:]
	} else {
		body = body[2:]
	}
	switch {
	case bytes.HasSuffix(body, []byte{xansi.ESC, '\\'}):
		body = body[:len(body)-2]
	case bytes.HasSuffix(body, []byte{xansi.BEL}), bytes.HasSuffix(body, []byte{xansi.ST}):
		body = body[:len(body)-1]
	default:
		// cancelled by CAN/SUB or an unterminated ESC
		return 0, "", false
	}
	codeStr, payload, _ := strings.Cut(string(body), ";")
	code, err := strconv.Atoi(codeStr)
	if err != nil {
		return 0, "", false
	}
	return code, payload, true
}

func (b *Buffer) dispatchOsc(seq []byte) bool {
	code, payload, ok := parseOsc(seq)
	if !ok {
		return false
	}
	hs := b.osc[code]
	for i := len(hs) - 1; i >= 0; i-- {
		if hs[i](payload) {
			return true
		}
	}
	return false
}

func (b *Buffer) csi() {
	cmd := xansi.Cmd(b.parser.Command())
	params := b.parser.Params()
	arg := func(i, def int) int {
		v, _, _ := params.Param(i, def)
		return v
	}
	count := func() int {
		if v := arg(0, 1); v > 0 {
			return v
		}
		return 1
	}
	g := b.active

	if cmd.Prefix() == '?' {
		switch cmd.Final() {
		case 'h', 'l':
			set := cmd.Final() == 'h'
			params.ForEach(0, func(_, mode int, _ bool) {
				b.privateMode(mode, set)
			})
		}
		return
	}
	if cmd.Prefix() != 0 || cmd.Intermediate() != 0 {
		return
	}

	switch cmd.Final() {
	case 'A':
		g.moveBy(-count(), 0)
	case 'B', 'e':
		g.moveBy(count(), 0)
	case 'C', 'a':
		g.moveBy(0, count())
	case 'D':
		g.moveBy(0, -count())
	case 'E':
		g.moveBy(count(), 0)
		g.carriageReturn()
	case 'F':
		g.moveBy(-count(), 0)
		g.carriageReturn()
	case 'G', '`':
		g.moveTo(g.y, count()-1)
	case 'd':
		g.moveTo(count()-1, g.x)
	case 'H', 'f':
		row, col := arg(0, 1), arg(1, 1)
		if row < 1 {
			row = 1
		}
		if col < 1 {
			col = 1
		}
		g.moveTo(row-1, col-1)
	case 'K':
		g.eraseLine(arg(0, 0))
	case 'J':
		switch mode := arg(0, 0); mode {
		case 3:
			if g == b.primary {
				g.clearScrollback()
			}
		default:
			g.eraseDisplay(mode)
		}
	case 'P':
		g.deleteChars(count())
	case '@':
		g.insertBlanks(count())
	case 'X':
		g.eraseChars(count())
	}
}

func (b *Buffer) privateMode(mode int, set bool) {
	switch mode {
	case 47, 1047, 1049:
	default:
		return
	}
	if set {
		if b.active == b.alt {
			return
		}
		if mode == 1049 {
			b.primary.saveCursor()
		}
		b.alt = newGrid(b.primary.cols, b.primary.rows, 0)
		b.alt.moveTo(b.primary.y, b.primary.x)
		b.active = b.alt
		return
	}
	if b.active != b.alt {
		return
	}
	b.active = b.primary
	if mode == 1049 {
		b.primary.restoreCursor()
	}
}

func (b *Buffer) esc() {
	cmd := xansi.Cmd(b.parser.Command())
	if cmd.Intermediate() != 0 {
		return
	}
	g := b.active
	switch cmd.Final() {
	case 'c':
		b.reset()
	case 'D':
		g.lineFeed()
	case 'E':
		g.carriageReturn()
		g.lineFeed()
	case 'M':
		g.reverseIndex()
	case '7':
		g.saveCursor()
	case '8':
		g.restoreCursor()
	}
}

// reset performs a full terminal reset. Every marker is invalidated.
func (b *Buffer) reset() {
	b.disposeMarkers()
	b.initGrids(b.primary.cols, b.primary.rows, b.primary.scrollback)
}
