package system

import (
	"io"
	"os"
	"strings"

	clog "github.com/charmbracelet/log"
)

// Logger is the shared application logger.
// It prints to stderr with timestamps enabled; the TUI redirects it to a file.
var Logger = clog.NewWithOptions(os.Stderr, clog.Options{
	ReportTimestamp: true,
	Prefix:          "cookterm",
})

// SetLevel parses a level name (debug, info, warn, error) and applies it.
// Unknown names leave the level unchanged and return false.
func SetLevel(name string) bool {
	lvl, err := clog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return false
	}
	Logger.SetLevel(lvl)
	return true
}

// RedirectTo points the shared logger at w (e.g. a log file while the
// alternate screen is active).
func RedirectTo(w io.Writer) {
	Logger.SetOutput(w)
}

// Or returns l, or the shared Logger when l is nil.
func Or(l *clog.Logger) *clog.Logger {
	if l == nil {
		return Logger
	}
	return l
}
