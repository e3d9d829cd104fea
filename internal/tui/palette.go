package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
	"github.com/sahilm/fuzzy"

	"cookterm/internal/docs"
)

type itemKind int

const (
	itemBlock itemKind = iota
	itemHistory
)

// paletteItem is something the palette can run.
type paletteItem struct {
	kind    itemKind
	label   string
	detail  string
	command string
	// interactive items are typed at the prompt instead of run.
	interactive bool
	binary      string
}

type paletteItems []paletteItem

func (p paletteItems) String(i int) string { return p[i].label + " " + p[i].command }
func (p paletteItems) Len() int            { return len(p) }

// palette is a fuzzy-filtered picker over recipe blocks and past commands.
type palette struct {
	open    bool
	input   textinput.Model
	items   paletteItems
	matches []int
	sel     int
}

func newPalette() palette {
	ti := textinput.New()
	ti.Prompt = "› "
	ti.Placeholder = "run a recipe or past command"
	ti.CharLimit = 256
	return palette{input: ti}
}

// blockItems lists the runnable blocks of every document.
func blockItems(ds []docs.Doc, binaryExists func(string) bool) paletteItems {
	var out paletteItems
	for _, d := range ds {
		for _, b := range d.Runnable() {
			it := paletteItem{
				kind:        itemBlock,
				label:       b.Title(),
				detail:      d.Title,
				command:     b.Code,
				interactive: b.Interactive,
				binary:      b.Binary,
			}
			if b.Binary != "" && binaryExists != nil {
				if binaryExists(b.Binary) {
					it.detail += " · " + b.Binary + " installed"
				} else {
					it.detail += " · " + b.Binary + " missing"
				}
			}
			out = append(out, it)
		}
	}
	return out
}

func (p *palette) show(items paletteItems) {
	p.open = true
	p.items = items
	p.input.SetValue("")
	p.input.Focus()
	p.filter()
}

func (p *palette) hide() {
	p.open = false
	p.input.Blur()
}

// filter recomputes matches from the input. An empty query keeps the
// original order.
func (p *palette) filter() {
	q := strings.TrimSpace(p.input.Value())
	p.matches = p.matches[:0]
	if q == "" {
		for i := range p.items {
			p.matches = append(p.matches, i)
		}
	} else {
		for _, m := range fuzzy.FindFrom(q, p.items) {
			p.matches = append(p.matches, m.Index)
		}
	}
	if p.sel >= len(p.matches) {
		p.sel = len(p.matches) - 1
	}
	if p.sel < 0 {
		p.sel = 0
	}
}

func (p *palette) move(delta int) {
	if len(p.matches) == 0 {
		return
	}
	p.sel = (p.sel + delta + len(p.matches)) % len(p.matches)
}

func (p *palette) selected() (paletteItem, bool) {
	if p.sel < 0 || p.sel >= len(p.matches) {
		return paletteItem{}, false
	}
	return p.items[p.matches[p.sel]], true
}

func (p palette) view(width, height int) string {
	inner := width - 2
	if inner < 20 {
		inner = 20
	}
	var b strings.Builder
	b.WriteString(p.input.View() + "\n")
	b.WriteString(mutedStyle.Render(strings.Repeat("─", inner)) + "\n")

	rows := height - 4
	if rows < 1 {
		rows = 1
	}
	start := 0
	if p.sel >= rows {
		start = p.sel - rows + 1
	}
	if len(p.matches) == 0 {
		b.WriteString(mutedStyle.Render("  no matches") + "\n")
	}
	for i := start; i < len(p.matches) && i < start+rows; i++ {
		it := p.items[p.matches[i]]
		tag := "run "
		switch {
		case it.interactive:
			tag = "edit"
		case it.kind == itemHistory:
			tag = "hist"
		}
		line := fmt.Sprintf(" %s  %s  %s", tag, it.label, mutedStyle.Render(it.detail))
		if xansi.StringWidth(line) > inner {
			line = xansi.Truncate(line, inner, "…")
		}
		if i == p.sel {
			line = selStyle.Width(inner).Render(line)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString(mutedStyle.Render("↑/↓ select · enter run · esc close"))
	return lipgloss.NewStyle().Width(inner).Render(b.String())
}
