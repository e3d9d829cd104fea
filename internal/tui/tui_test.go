package tui

import (
	"os"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	xansi "github.com/charmbracelet/x/ansi"
	zone "github.com/lrstanley/bubblezone"

	"cookterm/internal/docs"
	"cookterm/internal/history"
)

func TestMain(m *testing.M) {
	zone.NewGlobal()
	os.Exit(m.Run())
}

func TestKeyToPTYBytes(t *testing.T) {
	cases := []struct {
		name string
		key  tea.KeyMsg
		want string
	}{
		{"runes", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hé")}, "hé"},
		{"space", tea.KeyMsg{Type: tea.KeySpace}, " "},
		{"enter", tea.KeyMsg{Type: tea.KeyEnter}, "\r"},
		{"tab", tea.KeyMsg{Type: tea.KeyTab}, "\t"},
		{"ctrl-c", tea.KeyMsg{Type: tea.KeyCtrlC}, "\x03"},
		{"backspace", tea.KeyMsg{Type: tea.KeyBackspace}, "\x7f"},
		{"up", tea.KeyMsg{Type: tea.KeyUp}, "\x1b[A"},
		{"alt-b", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("b"), Alt: true}, "\x1bb"},
		{"unknown", tea.KeyMsg{Type: tea.KeyF12}, ""},
	}
	for _, c := range cases {
		if got := string(keyToPTYBytes(c.key)); got != c.want {
			t.Fatalf("%s: got %q want %q", c.name, got, c.want)
		}
	}
}

func TestOverlayCursor(t *testing.T) {
	got := overlayCursor("ab\x1b[31mcd\x1b[0m", 2)
	if !strings.Contains(got, "\x1b[7mc\x1b[27m") {
		t.Fatalf("cursor not on c: %q", got)
	}
	if xansi.Strip(got) != "abcd" {
		t.Fatalf("text changed: %q", xansi.Strip(got))
	}

	got = overlayCursor("ab", 4)
	if xansi.Strip(got) != "ab   " {
		t.Fatalf("padding: %q", xansi.Strip(got))
	}

	got = overlayCursor("世x", 2)
	if !strings.Contains(got, "\x1b[7mx\x1b[27m") {
		t.Fatalf("wide rune: %q", got)
	}
}

func TestWithCursorAndFitLines(t *testing.T) {
	s := withCursor("one\r\ntwo", 0, 3)
	lines := strings.Split(s, "\n")
	if len(lines) != 4 || xansi.Strip(lines[3]) != " " {
		t.Fatalf("lines: %q", lines)
	}

	fit := fitLines("abcdef\nx\ny\nz", 3, 2)
	if fit != "abc\nx" {
		t.Fatalf("fit: %q", fit)
	}
	fit = fitLines("a", 3, 3)
	if fit != "a\n\n" {
		t.Fatalf("pad: %q", fit)
	}
}

func TestHistoryRowsOrder(t *testing.T) {
	rows := historyRows(
		[]history.Running{{ID: "r1", Command: "sleep 5"}},
		[]history.Entry{{ID: "e1", Command: "ls"}, {ID: "e2", Command: "pwd"}},
	)
	var got []string
	for _, r := range rows {
		got = append(got, r.id)
	}
	if strings.Join(got, ",") != "r1,e2,e1" {
		t.Fatalf("order: %v", got)
	}
	if !rows[0].running || rows[1].running {
		t.Fatalf("running flags: %+v", rows)
	}
}

func TestRenderHistory(t *testing.T) {
	h := history.NewStore()
	if got := xansi.Strip(renderHistory(h, 0, 40, time.Now())); got != "no commands yet" {
		t.Fatalf("empty: %q", got)
	}

	start := time.Unix(100, 0)
	h.RecordRun(history.Entry{Command: "ls", ExitCode: 0, StartedAt: start, FinishedAt: start.Add(120 * time.Millisecond)})
	h.RecordRun(history.Entry{Command: "false", ExitCode: 1, StartedAt: start, FinishedAt: start.Add(2 * time.Second)})

	out := xansi.Strip(renderHistory(h, -1, 40, time.Now()))
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("lines: %q", lines)
	}
	if !strings.Contains(lines[0], "✗1 false") || !strings.Contains(lines[0], "2.0s") {
		t.Fatalf("first row: %q", lines[0])
	}
	if !strings.Contains(lines[1], "✓ ls") || !strings.Contains(lines[1], "120ms") {
		t.Fatalf("second row: %q", lines[1])
	}
}

func TestBlockItemsAndPalette(t *testing.T) {
	d := docs.Parse("setup.md", []byte("# Setup\n\n## Install\n\n```sh binary=brew\nbrew install jq\n```\n\n```bash\n# @interactive\nread -p name\n```\n\n```go\nfmt.Println()\n```\n"))
	items := blockItems([]docs.Doc{d}, func(name string) bool { return name == "brew" })
	if len(items) != 2 {
		t.Fatalf("items: %+v", items)
	}
	if !strings.Contains(items[0].detail, "brew installed") {
		t.Fatalf("detail: %q", items[0].detail)
	}
	if !items[1].interactive {
		t.Fatalf("interactive flag lost: %+v", items[1])
	}

	items = append(items, paletteItem{kind: itemHistory, label: "git status", command: "git status"})
	p := newPalette()
	p.show(items)
	if len(p.matches) != 3 {
		t.Fatalf("empty query should list all, got %d", len(p.matches))
	}

	p.input.SetValue("gst")
	p.filter()
	it, ok := p.selected()
	if !ok || it.command != "git status" {
		t.Fatalf("fuzzy pick: %+v %v", it, ok)
	}

	p.input.SetValue("")
	p.filter()
	p.move(-1)
	if it, _ := p.selected(); it.command != "git status" {
		t.Fatalf("wrap to last: %+v", it)
	}
	p.move(1)
	if it, _ := p.selected(); it.command != "brew install jq" {
		t.Fatalf("wrap to first: %+v", it)
	}

	p.input.SetValue("zzzz")
	p.filter()
	if _, ok := p.selected(); ok {
		t.Fatal("no match should select nothing")
	}
}

func TestStatusBarFitsWidth(t *testing.T) {
	bar := renderStatusBar(30, []string{"cookterm", "shell", "idle", "/a/very/long/working/dir"}, []string{"alt+p palette"})
	if w := xansi.StringWidth(bar); w != 30 {
		t.Fatalf("width %d: %q", w, xansi.Strip(bar))
	}
	if !strings.Contains(xansi.Strip(bar), "cookterm") {
		t.Fatalf("key chip dropped: %q", xansi.Strip(bar))
	}
}
