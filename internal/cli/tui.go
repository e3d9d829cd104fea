package cli

import (
	"context"
	"os"
	"path/filepath"

	cfg "cookterm/internal/config"
	"cookterm/internal/docs"
	"cookterm/internal/system"
	"cookterm/internal/tui"
)

func runTUI(ctx context.Context) error {
	// The alternate screen owns stderr, so logs go to a file.
	if p, err := cfg.LogPath(); err == nil {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err == nil {
			if f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
				defer f.Close()
				system.RedirectTo(f)
				defer system.RedirectTo(os.Stderr)
			}
		}
	}

	st := loadSettings()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sess, err := startSession(ctx, st, system.Logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	return tui.Run(ctx, tui.Options{
		Session:       sess,
		Docs:          docs.NewLibrary(st.ResolvedDocsDir(), system.Logger),
		FrameInterval: st.FrameInterval,
		GlamourStyle:  st.GlamourStyle,
		Logger:        system.Logger,
	})
}
