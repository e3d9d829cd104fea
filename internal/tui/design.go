package tui

import "github.com/charmbracelet/lipgloss"

// Palette is based on Vitesse Dark Soft:
// https://github.com/antfu/vscode-theme-vitesse/blob/main/themes/vitesse-dark-soft.json
type designTheme struct {
	Primary lipgloss.Color
	Blue    lipgloss.Color
	Yellow  lipgloss.Color
	Magenta lipgloss.Color
	Red     lipgloss.Color

	Text      lipgloss.Color
	Secondary lipgloss.Color
	Muted     lipgloss.Color

	Bg     lipgloss.Color
	BgSoft lipgloss.Color
	Border lipgloss.Color

	OnAccent lipgloss.Color

	BarFG lipgloss.AdaptiveColor
	BarBG lipgloss.AdaptiveColor
}

var Vitesse = designTheme{
	Primary: lipgloss.Color("#4d9375"),
	Blue:    lipgloss.Color("#6394bf"),
	Yellow:  lipgloss.Color("#e6cc77"),
	Magenta: lipgloss.Color("#d9739f"),
	Red:     lipgloss.Color("#cb7676"),

	Text:      lipgloss.Color("#dbd7caee"),
	Secondary: lipgloss.Color("#bfbaaa"),
	Muted:     lipgloss.Color("#dedcd590"),

	Bg:     lipgloss.Color("#181818"),
	BgSoft: lipgloss.Color("#292929"),
	Border: lipgloss.Color("#3a3a3a"),

	OnAccent: lipgloss.Color("#222"),

	BarFG: lipgloss.AdaptiveColor{Light: "#343433", Dark: "#bfbaaa"},
	BarBG: lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#222"},
}

// paneStyle is the rounded frame around each pane; focused panes use the
// accent color.
func paneStyle(focused bool) lipgloss.Style {
	c := Vitesse.Border
	if focused {
		c = Vitesse.Primary
	}
	return lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(c)
}

func statusBarBase() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(Vitesse.BarFG).Background(Vitesse.BarBG)
}

func chipKeyStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(Vitesse.OnAccent).Background(Vitesse.Primary).Padding(0, 1)
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(Vitesse.Blue)
	mutedStyle = lipgloss.NewStyle().Foreground(Vitesse.Muted)
	okStyle    = lipgloss.NewStyle().Foreground(Vitesse.Primary)
	failStyle  = lipgloss.NewStyle().Foreground(Vitesse.Red)
	runStyle   = lipgloss.NewStyle().Foreground(Vitesse.Yellow)
	selStyle   = lipgloss.NewStyle().Background(Vitesse.BgSoft).Bold(true)
)
