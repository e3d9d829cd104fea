package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

var glamourStyles = []string{"dark", "light", "notty", "dracula", "tokyo-night", "pink", "ascii"}

func wizardTheme() *huh.Theme {
	green := lipgloss.Color("#03BF87")
	theme := huh.ThemeCharm()
	theme.FieldSeparator = lipgloss.NewStyle()
	theme.Blurred.Title = theme.Blurred.Title.Width(22).Foreground(lipgloss.Color("7"))
	theme.Focused.Title = theme.Focused.Title.Width(22).Foreground(green).Bold(true)
	theme.Blurred.SelectedOption = theme.Blurred.SelectedOption.Foreground(lipgloss.Color("243"))
	theme.Focused.SelectedOption = lipgloss.NewStyle().Foreground(green)
	theme.Focused.Base.BorderForeground(green)
	return theme
}

func validDuration(s string) error {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}

func validInt(min int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("not a number")
		}
		if n < min {
			return fmt.Errorf("must be at least %d", min)
		}
		return nil
	}
}

// RunWizard edits the current settings with an interactive form and saves
// them on submit.
func RunWizard() (Settings, error) {
	cur, _ := Load()

	shell := cur.Shell
	delay := cur.PromptFinalizeDelay.String()
	frame := cur.FrameInterval.String()
	scrollback := strconv.Itoa(cur.Scrollback)
	docsDir := cur.DocsDir
	addr := cur.ServerAddr
	style := cur.GlamourStyle

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewNote().Title("Settings").Description("Edit cookterm settings.yaml"),
			huh.NewInput().Title("Shell").Placeholder("$SHELL").Value(&shell),
			huh.NewInput().Title("Prompt finalize delay").Value(&delay).Validate(validDuration),
			huh.NewInput().Title("Frame interval").Value(&frame).Validate(validDuration),
			huh.NewInput().Title("Scrollback lines").Value(&scrollback).Validate(validInt(0)),
		),
		huh.NewGroup(
			huh.NewInput().Title("Recipes directory").Placeholder(cur.ResolvedDocsDir()).Value(&docsDir),
			huh.NewInput().Title("Server address").Value(&addr),
			huh.NewSelect[string]().
				Title("Markdown style").
				Options(huh.NewOptions(glamourStyles...)...).
				Value(&style),
		),
	).WithTheme(wizardTheme()).WithWidth(70)

	if err := form.Run(); err != nil {
		return cur, err
	}

	next := cur
	next.Shell = shell
	next.PromptFinalizeDelay, _ = time.ParseDuration(strings.TrimSpace(delay))
	next.FrameInterval, _ = time.ParseDuration(strings.TrimSpace(frame))
	next.Scrollback, _ = strconv.Atoi(strings.TrimSpace(scrollback))
	next.DocsDir = docsDir
	next.ServerAddr = addr
	next.GlamourStyle = style
	next.Normalize()
	if err := Save(next); err != nil {
		return cur, err
	}
	return next, nil
}
