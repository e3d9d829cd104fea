// Package config loads and saves cookterm settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings is the content of settings.yaml.
type Settings struct {
	Shell               string        `yaml:"shell,omitempty" json:"shell,omitempty" jsonschema:"description=Shell to launch instead of $SHELL"`
	PromptFinalizeDelay time.Duration `yaml:"prompt_finalize_delay" json:"prompt_finalize_delay" jsonschema:"description=How long to wait for the end-of-prompt marker (nanoseconds in JSON; Go duration string in YAML)"`
	FrameInterval       time.Duration `yaml:"frame_interval" json:"frame_interval" jsonschema:"description=Polling period of the shell output loop"`
	Scrollback          int           `yaml:"scrollback" json:"scrollback" jsonschema:"minimum=0,description=Lines kept above the screen"`
	Cols                int           `yaml:"cols" json:"cols" jsonschema:"minimum=2"`
	Rows                int           `yaml:"rows" json:"rows" jsonschema:"minimum=2"`
	DocsDir             string        `yaml:"docs_dir,omitempty" json:"docs_dir,omitempty" jsonschema:"description=Directory of markdown recipes"`
	ServerAddr          string        `yaml:"server_addr" json:"server_addr" jsonschema:"description=Listen address of cookterm serve"`
	GlamourStyle        string        `yaml:"glamour_style" json:"glamour_style" jsonschema:"enum=dark,enum=light,enum=notty,enum=dracula,enum=tokyo-night,enum=pink,enum=ascii"`
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	return Settings{
		PromptFinalizeDelay: 200 * time.Millisecond,
		FrameInterval:       16 * time.Millisecond,
		Scrollback:          1000,
		Cols:                80,
		Rows:                24,
		ServerAddr:          "127.0.0.1:8787",
		GlamourStyle:        "dark",
	}
}

// Normalize trims strings and resets out-of-range values to defaults.
func (s *Settings) Normalize() {
	d := Defaults()
	s.Shell = strings.TrimSpace(s.Shell)
	s.DocsDir = strings.TrimSpace(s.DocsDir)
	s.ServerAddr = strings.TrimSpace(s.ServerAddr)
	s.GlamourStyle = strings.TrimSpace(s.GlamourStyle)
	if s.PromptFinalizeDelay <= 0 {
		s.PromptFinalizeDelay = d.PromptFinalizeDelay
	}
	if s.FrameInterval <= 0 {
		s.FrameInterval = d.FrameInterval
	}
	if s.Scrollback < 0 {
		s.Scrollback = d.Scrollback
	}
	if s.Cols < 2 {
		s.Cols = d.Cols
	}
	if s.Rows < 2 {
		s.Rows = d.Rows
	}
	if s.ServerAddr == "" {
		s.ServerAddr = d.ServerAddr
	}
	if s.GlamourStyle == "" {
		s.GlamourStyle = d.GlamourStyle
	}
}

// ResolvedDocsDir returns DocsDir, or <config dir>/recipes when unset.
func (s Settings) ResolvedDocsDir() string {
	if s.DocsDir != "" {
		if strings.HasPrefix(s.DocsDir, "~/") {
			if home, err := os.UserHomeDir(); err == nil {
				return filepath.Join(home, s.DocsDir[2:])
			}
		}
		return s.DocsDir
	}
	if d, err := Dir(); err == nil {
		return filepath.Join(d, "recipes")
	}
	return "recipes"
}

// Load reads settings.yaml. A missing file yields defaults and no error.
func Load() (Settings, error) {
	p, err := SettingsPath()
	if err != nil {
		return Defaults(), err
	}
	return LoadFile(p)
}

// LoadFile reads settings from path. Fields absent from the file keep their
// default values.
func LoadFile(path string) (Settings, error) {
	s := Defaults()
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &s); err != nil {
		return Defaults(), fmt.Errorf("config: parse %s: %w", path, err)
	}
	s.Normalize()
	return s, nil
}

// Save writes settings.yaml, creating the config directory.
func Save(s Settings) error {
	p, err := SettingsPath()
	if err != nil {
		return err
	}
	return SaveFile(p, s)
}

// SaveFile writes s to path.
func SaveFile(path string, s Settings) error {
	s.Normalize()
	b, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: mkdir: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
