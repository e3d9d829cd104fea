// Package tui is the full-screen terminal front end: the shell pane, the
// command history and the recipe docs with a run palette.
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	clog "github.com/charmbracelet/log"
	"github.com/charmbracelet/x/vt"
	zone "github.com/lrstanley/bubblezone"

	"cookterm/internal/capture"
	"cookterm/internal/docs"
	"cookterm/internal/host"
	"cookterm/internal/session"
	"cookterm/internal/system"
)

// Options configures the TUI.
type Options struct {
	Session       *session.Session
	Docs          *docs.Library // optional; the docs pane is empty without it
	FrameInterval time.Duration
	GlamourStyle  string
	Logger        *clog.Logger
}

type focus int

const (
	focusTerminal focus = iota
	focusHistory
	focusDocs
)

func (f focus) String() string {
	switch f {
	case focusHistory:
		return "history"
	case focusDocs:
		return "docs"
	default:
		return "shell"
	}
}

type frameMsg struct{}

type runDoneMsg struct {
	command string
	res     capture.Result
	err     error
}

type gitMsg struct {
	dir  string
	info system.GitInfo
}

type docCache struct {
	idx   int
	width int
	out   string
}

type model struct {
	opts Options
	sess *session.Session
	log  *clog.Logger

	emu *vt.Emulator
	// replies carries terminal query answers (DA, cursor reports) from the
	// emulator back to the shell.
	replies chan []byte

	width, height      int
	termCols, termRows int
	rightW             int
	histH, docsH       int
	focus              focus

	histVP    viewport.Model
	histSel   int
	histDirty *atomic.Bool

	docsVP    viewport.Model
	docIdx    int
	docsDirty *atomic.Bool
	cache     docCache

	pal palette

	flash   string
	lastErr string
	running string
	git     system.GitInfo
	gitDir  string
}

func newModel(opts Options) *model {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = session.DefaultFrameInterval
	}
	snap := opts.Session.Snapshot()
	m := &model{
		opts:      opts,
		sess:      opts.Session,
		log:       system.Or(opts.Logger).WithPrefix("tui"),
		emu:       vt.NewEmulator(snap.Cols, snap.Rows),
		replies:   make(chan []byte, 64),
		termCols:  snap.Cols,
		termRows:  snap.Rows,
		histVP:    viewport.New(0, 0),
		docsVP:    viewport.New(0, 0),
		histDirty: &atomic.Bool{},
		docsDirty: &atomic.Bool{},
		pal:       newPalette(),
	}
	m.histDirty.Store(true)
	m.docsDirty.Store(true)
	m.sess.SetDisplay(m.emu)
	m.sess.History().Subscribe(func() { m.histDirty.Store(true) })
	if opts.Docs != nil {
		opts.Docs.OnChange(func() { m.docsDirty.Store(true) })
	}
	go m.pumpReplies()
	return m
}

func (m *model) pumpReplies() {
	buf := make([]byte, 1024)
	for {
		n, err := m.emu.Read(buf)
		if n > 0 {
			select {
			case m.replies <- append([]byte(nil), buf[:n]...):
			default:
				m.log.Debug("dropping terminal reply", "bytes", n)
			}
		}
		if err != nil {
			return
		}
	}
}

func frameCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return frameMsg{} })
}

func gitCmd(dir string) tea.Cmd {
	return func() tea.Msg {
		gi, _ := system.GetGitInfo(context.Background(), dir)
		return gitMsg{dir: dir, info: gi}
	}
}

func (m *model) Init() tea.Cmd { return frameCmd(m.opts.FrameInterval) }

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout(msg.Width, msg.Height)
		return m, nil
	case frameMsg:
		return m, m.frame()
	case gitMsg:
		if msg.dir == m.gitDir {
			m.git = msg.info
		}
		return m, nil
	case runDoneMsg:
		m.running = ""
		if msg.err != nil {
			m.flash = msg.err.Error()
		} else {
			m.flash = fmt.Sprintf("exit %d · %s", msg.res.ExitCode, msg.command)
		}
		return m, nil
	case tea.MouseMsg:
		return m, m.mouse(msg)
	case tea.KeyMsg:
		return m, m.key(msg)
	}
	return m, nil
}

// frame runs one poll of the shell and refreshes what changed.
func (m *model) frame() tea.Cmd {
	for drained := false; !drained; {
		select {
		case b := <-m.replies:
			m.sess.Input(b)
		default:
			drained = true
		}
	}

	if err := m.sess.Tick(); err != nil {
		if errors.Is(err, host.ErrClosed) {
			return tea.Quit
		}
		if err.Error() != m.lastErr {
			m.lastErr = err.Error()
			m.log.Warn("shell read failed", "err", err)
		}
	} else {
		m.lastErr = ""
	}

	// Running rows show a live duration.
	if m.histDirty.Swap(false) || len(m.sess.History().Running()) > 0 {
		m.refreshHistory()
	}
	if m.docsDirty.Swap(false) {
		m.cache = docCache{}
		m.refreshDocs()
	}

	cmds := []tea.Cmd{frameCmd(m.opts.FrameInterval)}
	if cwd := m.sess.Cwd(); cwd != m.gitDir {
		m.gitDir = cwd
		cmds = append(cmds, gitCmd(cwd))
	}
	return tea.Batch(cmds...)
}

// layout splits the window into the shell pane on the left and the
// history/docs column on the right, and resizes the shell to fit.
func (m *model) layout(w, h int) {
	m.width, m.height = w, h
	body := h - 1
	if body < 4 {
		body = 4
	}
	m.rightW = 0
	if w >= 80 {
		m.rightW = w * 2 / 5
	}
	cols := w - m.rightW - 2
	rows := body - 2
	if cols < 2 {
		cols = 2
	}
	if rows < 2 {
		rows = 2
	}
	if cols != m.termCols || rows != m.termRows {
		m.termCols, m.termRows = cols, rows
		m.emu.Resize(cols, rows)
		if err := m.sess.Resize(cols, rows); err != nil {
			m.log.Warn("resize failed", "err", err)
		}
	}

	m.histH = body / 2
	m.docsH = body - m.histH
	inner := m.rightW - 2
	if inner < 0 {
		inner = 0
	}
	m.histVP.Width, m.histVP.Height = inner, max(m.histH-3, 1)
	m.docsVP.Width, m.docsVP.Height = inner, max(m.docsH-3, 1)
	m.refreshHistory()
	m.refreshDocs()
}

func (m *model) refreshHistory() {
	m.histVP.SetContent(renderHistory(m.sess.History(), m.histSel, m.histVP.Width, time.Now()))
}

func (m *model) currentDoc() (docs.Doc, int, bool) {
	if m.opts.Docs == nil {
		return docs.Doc{}, 0, false
	}
	ds := m.opts.Docs.Docs()
	if len(ds) == 0 {
		return docs.Doc{}, 0, false
	}
	if m.docIdx >= len(ds) {
		m.docIdx = len(ds) - 1
	}
	if m.docIdx < 0 {
		m.docIdx = 0
	}
	return ds[m.docIdx], len(ds), true
}

func (m *model) refreshDocs() {
	d, _, ok := m.currentDoc()
	if !ok {
		dir := ""
		if m.opts.Docs != nil {
			dir = m.opts.Docs.Dir()
		}
		m.docsVP.SetContent(mutedStyle.Render("no recipes in " + dir))
		return
	}
	if m.cache.out == "" || m.cache.idx != m.docIdx || m.cache.width != m.docsVP.Width {
		m.cache = docCache{
			idx:   m.docIdx,
			width: m.docsVP.Width,
			out:   docs.Render(d.Source, m.opts.GlamourStyle, m.docsVP.Width),
		}
	}
	m.docsVP.SetContent(m.cache.out)
}

func (m *model) historyIDs() []histRow {
	h := m.sess.History()
	return historyRows(h.Running(), h.Entries())
}

func (m *model) submit(command string) tea.Cmd {
	p, err := m.sess.Submit(command)
	if err != nil {
		m.flash = err.Error()
		return nil
	}
	m.running = command
	m.flash = ""
	return func() tea.Msg {
		res, err := p.Wait(context.Background())
		return runDoneMsg{command: command, res: res, err: err}
	}
}

func (m *model) openPalette(items paletteItems) {
	m.pal.show(items)
	m.pal.input.Width = max(m.rightW-6, 10)
}

func (m *model) allItems() paletteItems {
	var items paletteItems
	if m.opts.Docs != nil {
		items = blockItems(m.opts.Docs.Docs(), func(name string) bool {
			ok, _ := host.BinaryExists(name)
			return ok
		})
	}
	seen := map[string]bool{}
	for _, r := range m.historyIDs() {
		if r.running || seen[r.command] {
			continue
		}
		seen[r.command] = true
		items = append(items, paletteItem{kind: itemHistory, label: r.command, command: r.command, detail: "history"})
	}
	return items
}

func (m *model) key(k tea.KeyMsg) tea.Cmd {
	switch k.String() {
	case "alt+q":
		return tea.Quit
	case "alt+p":
		if m.pal.open {
			m.pal.hide()
		} else {
			m.openPalette(m.allItems())
		}
		return nil
	case "alt+o":
		if m.rightW > 0 {
			m.focus = (m.focus + 1) % 3
		}
		return nil
	}

	if m.pal.open {
		return m.paletteKey(k)
	}

	switch m.focus {
	case focusHistory:
		return m.historyKey(k)
	case focusDocs:
		return m.docsKey(k)
	}
	if b := keyToPTYBytes(k); len(b) > 0 {
		m.sess.Input(b)
	}
	return nil
}

func (m *model) paletteKey(k tea.KeyMsg) tea.Cmd {
	switch k.String() {
	case "esc":
		m.pal.hide()
		return nil
	case "up", "ctrl+p":
		m.pal.move(-1)
		return nil
	case "down", "ctrl+n":
		m.pal.move(1)
		return nil
	case "enter":
		it, ok := m.pal.selected()
		m.pal.hide()
		if !ok {
			return nil
		}
		if it.interactive {
			if err := m.sess.Paste(it.command); err != nil {
				m.flash = err.Error()
			}
			m.focus = focusTerminal
			return nil
		}
		return m.submit(it.command)
	}
	var cmd tea.Cmd
	m.pal.input, cmd = m.pal.input.Update(k)
	m.pal.filter()
	return cmd
}

func (m *model) historyKey(k tea.KeyMsg) tea.Cmd {
	rows := m.historyIDs()
	switch k.String() {
	case "esc":
		m.focus = focusTerminal
	case "up", "k":
		if m.histSel > 0 {
			m.histSel--
		}
	case "down", "j":
		if m.histSel < len(rows)-1 {
			m.histSel++
		}
	case "d", "delete", "backspace":
		if m.histSel < len(rows) && !rows[m.histSel].running {
			m.sess.History().Dismiss(rows[m.histSel].id)
		}
	case "c":
		m.sess.History().Clear()
		m.histSel = 0
	case "enter", "r":
		if m.histSel < len(rows) {
			return m.submit(rows[m.histSel].command)
		}
	}
	if m.histSel >= len(rows) {
		m.histSel = max(len(rows)-1, 0)
	}
	m.refreshHistory()
	if m.histSel < m.histVP.YOffset {
		m.histVP.SetYOffset(m.histSel)
	} else if m.histSel >= m.histVP.YOffset+m.histVP.Height {
		m.histVP.SetYOffset(m.histSel - m.histVP.Height + 1)
	}
	return nil
}

func (m *model) docsKey(k tea.KeyMsg) tea.Cmd {
	_, n, ok := m.currentDoc()
	switch k.String() {
	case "esc":
		m.focus = focusTerminal
	case "left", "h":
		if ok && m.docIdx > 0 {
			m.docIdx--
			m.refreshDocs()
			m.docsVP.GotoTop()
		}
	case "right", "l":
		if ok && m.docIdx < n-1 {
			m.docIdx++
			m.refreshDocs()
			m.docsVP.GotoTop()
		}
	case "enter":
		if d, _, ok := m.currentDoc(); ok {
			m.openPalette(blockItems([]docs.Doc{d}, func(name string) bool {
				ok, _ := host.BinaryExists(name)
				return ok
			}))
		}
	default:
		var cmd tea.Cmd
		m.docsVP, cmd = m.docsVP.Update(k)
		return cmd
	}
	return nil
}

func (m *model) mouse(msg tea.MouseMsg) tea.Cmd {
	switch msg.Button {
	case tea.MouseButtonWheelUp, tea.MouseButtonWheelDown:
		down := msg.Button == tea.MouseButtonWheelDown
		switch {
		case zone.Get("pane.docs").InBounds(msg):
			if down {
				m.docsVP.ScrollDown(3)
			} else {
				m.docsVP.ScrollUp(3)
			}
		case zone.Get("pane.hist").InBounds(msg):
			if down {
				m.histVP.ScrollDown(1)
			} else {
				m.histVP.ScrollUp(1)
			}
		}
		return nil
	case tea.MouseButtonLeft:
	default:
		return nil
	}
	if msg.Action != tea.MouseActionRelease {
		return nil
	}
	for _, r := range m.historyIDs() {
		if !r.running && zone.Get(histZonePrefix+r.id).InBounds(msg) {
			m.sess.History().Dismiss(r.id)
			m.flash = "dismissed " + r.command
			return nil
		}
	}
	switch {
	case zone.Get("pane.term").InBounds(msg):
		m.focus = focusTerminal
	case zone.Get("pane.hist").InBounds(msg):
		m.focus = focusHistory
	case zone.Get("pane.docs").InBounds(msg):
		m.focus = focusDocs
	}
	return nil
}

func (m *model) View() string {
	if m.width == 0 {
		return ""
	}
	body := m.height - 1

	screen := m.emu.Render()
	if m.focus == focusTerminal && !m.pal.open {
		pos := m.emu.CursorPosition()
		screen = withCursor(screen, pos.X, pos.Y)
	}
	term := paneStyle(m.focus == focusTerminal).
		Width(m.termCols).Height(m.termRows).
		Render(fitLines(screen, m.termCols, m.termRows))
	term = zone.Mark("pane.term", term)

	view := term
	if m.rightW > 0 {
		inner := m.rightW - 2
		var right string
		if m.pal.open {
			right = paneStyle(true).Width(inner).Height(body - 2).
				Render(fitLines(m.pal.view(inner, body-2), inner, body-2))
		} else {
			hist := titleStyle.Render("History") + "\n" + m.histVP.View()
			hist = paneStyle(m.focus == focusHistory).Width(inner).Height(m.histH - 2).
				Render(fitLines(hist, inner, m.histH-2))

			title := "Recipes"
			if d, n, ok := m.currentDoc(); ok {
				title = fmt.Sprintf("‹ %s › %d/%d  %s", d.Title, m.docIdx+1, n,
					mutedStyle.Render(docs.DisplayPath(d.Path, m.sess.Cwd(), true)))
			}
			doc := titleStyle.Render(title) + "\n" + m.docsVP.View()
			doc = paneStyle(m.focus == focusDocs).Width(inner).Height(m.docsH - 2).
				Render(fitLines(doc, inner, m.docsH-2))
			right = lipgloss.JoinVertical(lipgloss.Left, zone.Mark("pane.hist", hist), zone.Mark("pane.docs", doc))
		}
		view = lipgloss.JoinHorizontal(lipgloss.Top, term, right)
	}
	return zone.Scan(view + "\n" + m.statusBar())
}

func (m *model) statusBar() string {
	snap := m.sess.Snapshot()
	cwd := snap.Cwd
	if home := homeDir(); home != "" && (cwd == home || strings.HasPrefix(cwd, home+"/")) {
		cwd = "~" + strings.TrimPrefix(cwd, home)
	}
	prompt := snap.Prompt
	if i := strings.LastIndexByte(prompt, '\n'); i >= 0 {
		prompt = prompt[i+1:]
	}
	left := []string{"cookterm", m.focus.String(), snap.State, cwd, m.git.Label(), strings.TrimSpace(prompt)}

	msg := m.flash
	switch {
	case m.running != "":
		msg = "running " + m.running
	case m.lastErr != "":
		msg = m.lastErr
	}
	right := []string{msg, "alt+p palette · alt+o focus · alt+q quit"}
	return renderStatusBar(m.width, left, right)
}

var homeDir = func() string {
	h, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Clean(h)
}

// Run starts the TUI on an already started session and blocks until the
// user quits or the shell exits.
func Run(ctx context.Context, opts Options) error {
	if opts.Session == nil {
		return errors.New("tui: no session")
	}
	zone.NewGlobal()
	m := newModel(opts)
	defer m.emu.Close()

	if opts.Docs != nil {
		if err := opts.Docs.Reload(); err != nil {
			m.log.Warn("loading recipes failed", "dir", opts.Docs.Dir(), "err", err)
		}
		go func() {
			if err := opts.Docs.Watch(ctx); err != nil {
				m.log.Debug("recipe watcher stopped", "err", err)
			}
		}()
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
