package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// EnvDir overrides the config directory.
const EnvDir = "COOKTERM_CONFIG_DIR"

// Dir returns the cookterm config directory under the user config base.
// On Linux, this typically resolves to $XDG_CONFIG_HOME/cookterm; on macOS
// to ~/Library/Application Support/cookterm; and on Windows to %AppData%/cookterm.
// Falls back to HOME when UserConfigDir is unavailable.
func Dir() (string, error) {
	if d := strings.TrimSpace(os.Getenv(EnvDir)); d != "" {
		return d, nil
	}
	base, err := os.UserConfigDir()
	if err != nil || strings.TrimSpace(base) == "" {
		if home, herr := os.UserHomeDir(); herr == nil {
			base = home
		} else {
			return "", errors.New("cannot determine config directory")
		}
	}
	return filepath.Join(base, "cookterm"), nil
}

// SettingsPath returns the settings.yaml path.
func SettingsPath() (string, error) {
	d, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "settings.yaml"), nil
}

// LogPath returns the file the TUI logs to.
func LogPath() (string, error) {
	d, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "cookterm.log"), nil
}
