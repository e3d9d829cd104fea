package termbuf

import "strings"

// cell holds one grapheme. A wide grapheme occupies its own cell plus a
// continuation cell with width 0.
type cell struct {
	content string
	width   int
}

var blankCell = cell{content: " ", width: 1}

// grid is a line-addressed screen with optional scrollback. Lines are
// addressed absolutely: lines[0] is absolute line base, the top screen row is
// absolute line ybase, and the cursor sits at (x, ybase+y).
type grid struct {
	cols, rows int
	scrollback int

	lines [][]cell
	base  int
	ybase int
	x, y  int

	savedX, savedY int

	// onTrim is called with the new base after lines are dropped from the top.
	onTrim func(base int)
	// onCut is called with the new end (exclusive) after lines below the
	// screen are dropped.
	onCut func(end int)
}

func newGrid(cols, rows, scrollback int) *grid {
	g := &grid{cols: cols, rows: rows, scrollback: scrollback}
	g.lines = make([][]cell, rows)
	return g
}

func (g *grid) cursorLine() int { return g.ybase + g.y }

// line returns the cells of absolute line abs, or nil when out of range.
func (g *grid) line(abs int) []cell {
	i := abs - g.base
	if i < 0 || i >= len(g.lines) {
		return nil
	}
	return g.lines[i]
}

func (g *grid) hasLine(abs int) bool {
	i := abs - g.base
	return i >= 0 && i < len(g.lines)
}

// text renders absolute line abs as a string. Wide-character continuation
// cells are skipped. With trimRight, trailing spaces are removed.
func (g *grid) text(abs int, trimRight bool) (string, bool) {
	if !g.hasLine(abs) {
		return "", false
	}
	var b strings.Builder
	for _, c := range g.line(abs) {
		if c.width == 0 {
			continue
		}
		if c.content == "" {
			b.WriteByte(' ')
			continue
		}
		b.WriteString(c.content)
	}
	s := b.String()
	if trimRight {
		s = strings.TrimRight(s, " ")
	}
	return s, true
}

// ensureScreen makes sure every screen row has a backing line.
func (g *grid) ensureScreen() {
	need := g.ybase + g.rows - g.base
	for len(g.lines) < need {
		g.lines = append(g.lines, nil)
	}
}

func (g *grid) setCell(x int, c cell) {
	i := g.cursorLine() - g.base
	ln := g.lines[i]
	for len(ln) <= x {
		ln = append(ln, blankCell)
	}
	ln[x] = c
	g.lines[i] = ln
}

// put writes one grapheme of the given display width at the cursor,
// wrapping to the next line when the row is full.
func (g *grid) put(content string, width int) {
	if width <= 0 {
		// zero-width: attach to the previous cell on this line
		i := g.cursorLine() - g.base
		ln := g.lines[i]
		px := g.x - 1
		for px >= 0 && px < len(ln) && ln[px].width == 0 {
			px--
		}
		if px >= 0 && px < len(ln) {
			ln[px].content += content
		}
		return
	}
	if g.x+width > g.cols {
		g.x = 0
		g.lineFeed()
	}
	g.setCell(g.x, cell{content: content, width: width})
	for k := 1; k < width && g.x+k < g.cols; k++ {
		g.setCell(g.x+k, cell{width: 0})
	}
	g.x += width
}

// lineFeed moves the cursor down one row, scrolling when it is on the
// bottom row.
func (g *grid) lineFeed() {
	if g.y < g.rows-1 {
		g.y++
		return
	}
	g.ybase++
	g.ensureScreen()
	g.trim()
}

// reverseIndex moves the cursor up one row without scrolling history.
func (g *grid) reverseIndex() {
	if g.y > 0 {
		g.y--
	}
}

func (g *grid) trim() {
	max := g.rows + g.scrollback
	drop := len(g.lines) - max
	if drop <= 0 {
		return
	}
	g.lines = append([][]cell(nil), g.lines[drop:]...)
	g.base += drop
	if g.onTrim != nil {
		g.onTrim(g.base)
	}
}

func (g *grid) carriageReturn() { g.x = 0 }

func (g *grid) backspace() {
	if g.x >= g.cols {
		g.x = g.cols - 1
	}
	if g.x > 0 {
		g.x--
	}
}

func (g *grid) tab() {
	next := (g.x/8 + 1) * 8
	if next > g.cols-1 {
		next = g.cols - 1
	}
	g.x = next
}

func (g *grid) moveTo(row, col int) {
	g.y = clamp(row, 0, g.rows-1)
	g.x = clamp(col, 0, g.cols-1)
}

func (g *grid) moveBy(dy, dx int) {
	if g.x >= g.cols {
		g.x = g.cols - 1
	}
	g.moveTo(g.y+dy, g.x+dx)
}

// eraseLine implements EL: 0 = cursor to end, 1 = start to cursor, 2 = all.
func (g *grid) eraseLine(mode int) {
	i := g.cursorLine() - g.base
	ln := g.lines[i]
	switch mode {
	case 0:
		if g.x < len(ln) {
			ln = ln[:g.x]
		}
	case 1:
		for k := 0; k <= g.x && k < len(ln); k++ {
			ln[k] = blankCell
		}
	case 2:
		ln = nil
	}
	g.lines[i] = ln
}

// eraseDisplay implements ED for modes 0-2 on the visible screen.
func (g *grid) eraseDisplay(mode int) {
	cur := g.cursorLine()
	top := g.ybase
	bottom := g.ybase + g.rows - 1
	switch mode {
	case 0:
		g.eraseLine(0)
		for abs := cur + 1; abs <= bottom; abs++ {
			g.lines[abs-g.base] = nil
		}
	case 1:
		for abs := top; abs < cur; abs++ {
			g.lines[abs-g.base] = nil
		}
		g.eraseLine(1)
	case 2:
		for abs := top; abs <= bottom; abs++ {
			g.lines[abs-g.base] = nil
		}
	}
}

// clearScrollback drops every line above the screen.
func (g *grid) clearScrollback() {
	drop := g.ybase - g.base
	if drop <= 0 {
		return
	}
	g.lines = append([][]cell(nil), g.lines[drop:]...)
	g.base = g.ybase
	if g.onTrim != nil {
		g.onTrim(g.base)
	}
}

func (g *grid) deleteChars(n int) {
	i := g.cursorLine() - g.base
	ln := g.lines[i]
	if g.x >= len(ln) {
		return
	}
	end := g.x + n
	if end > len(ln) {
		end = len(ln)
	}
	g.lines[i] = append(ln[:g.x], ln[end:]...)
}

func (g *grid) insertBlanks(n int) {
	i := g.cursorLine() - g.base
	ln := g.lines[i]
	if g.x >= len(ln) {
		return
	}
	blanks := make([]cell, n)
	for k := range blanks {
		blanks[k] = blankCell
	}
	ln = append(ln[:g.x], append(blanks, ln[g.x:]...)...)
	if len(ln) > g.cols {
		ln = ln[:g.cols]
	}
	g.lines[i] = ln
}

func (g *grid) eraseChars(n int) {
	i := g.cursorLine() - g.base
	ln := g.lines[i]
	for k := g.x; k < g.x+n && k < len(ln); k++ {
		ln[k] = blankCell
	}
}

func (g *grid) saveCursor()    { g.savedX, g.savedY = g.x, g.y }
func (g *grid) restoreCursor() { g.moveTo(g.savedY, g.savedX) }

// resize changes the screen size without reflowing existing lines. The
// cursor row is kept on screen by scrolling the viewport when rows shrink.
func (g *grid) resize(cols, rows int) {
	g.cols, g.rows = cols, rows
	if g.y >= rows {
		shift := g.y - rows + 1
		g.ybase += shift
		g.y -= shift
	}
	if g.x > cols {
		g.x = cols
	}
	// Lines below the new screen go first so trim never reaches the
	// cursor line.
	if end := g.ybase + rows - g.base; len(g.lines) > end {
		g.lines = g.lines[:end]
		if g.onCut != nil {
			g.onCut(g.base + end)
		}
	}
	g.ensureScreen()
	g.trim()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
