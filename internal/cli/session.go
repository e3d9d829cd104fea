package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	clog "github.com/charmbracelet/log"

	cfg "cookterm/internal/config"
	"cookterm/internal/docs"
	"cookterm/internal/host"
	"cookterm/internal/session"
	"cookterm/internal/system"
)

// loadSettings reads settings.yaml, falling back to defaults on a parse
// error so a broken file never blocks the shell.
func loadSettings() cfg.Settings {
	st, err := cfg.Load()
	if err != nil {
		system.Logger.Warn("using default settings", "err", err)
		st = cfg.Defaults()
	}
	if docsDir != "" {
		wd, _ := os.Getwd()
		st.DocsDir = docs.ToAbsolutePath(docsDir, filepath.ToSlash(wd))
	}
	return st
}

// startSession launches the configured shell in a PTY and wraps it in a
// session. The caller owns Close.
func startSession(ctx context.Context, st cfg.Settings, log *clog.Logger) (*session.Session, error) {
	h := host.NewPTY(host.Options{
		Shell:  st.Shell,
		Cols:   st.Cols,
		Rows:   st.Rows,
		Logger: log,
	})
	sess := session.New(h, session.Options{
		Cols:                st.Cols,
		Rows:                st.Rows,
		Scrollback:          st.Scrollback,
		PromptFinalizeDelay: st.PromptFinalizeDelay,
		Logger:              log,
	})
	if err := sess.Start(ctx); err != nil {
		return nil, fmt.Errorf("start shell: %w", err)
	}
	return sess, nil
}

// pollSession drives sess until ctx is done, logging read failures.
// onExit runs once the shell has gone away.
func pollSession(ctx context.Context, sess *session.Session, st cfg.Settings, log *clog.Logger, onExit func()) {
	_ = session.Loop(ctx, sess, st.FrameInterval, func(err error) {
		if errors.Is(err, host.ErrClosed) {
			log.Info("shell exited")
			if onExit != nil {
				onExit()
			}
			return
		}
		log.Warn("shell read failed", "err", err)
	})
}
