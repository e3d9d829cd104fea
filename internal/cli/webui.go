package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"cookterm/internal/docs"
	"cookterm/internal/system"
	"cookterm/internal/webui/server"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "address to bind (host:port); defaults to server_addr")
	serveCmd.Flags().BoolP("open", "o", false, "open the browser after start")
}

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"webui"},
	Short:   "Start the local web API and UI",
	RunE: func(cmd *cobra.Command, args []string) error {
		st := loadSettings()
		addr, _ := cmd.Flags().GetString("addr")
		if addr == "" {
			addr = st.ServerAddr
		}
		open, _ := cmd.Flags().GetBool("open")

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		sess, err := startSession(ctx, st, system.Logger)
		if err != nil {
			return err
		}
		defer sess.Close()
		go pollSession(ctx, sess, st, system.Logger, cancel)

		lib := docs.NewLibrary(st.ResolvedDocsDir(), system.Logger)
		if err := lib.Reload(); err != nil {
			system.Logger.Warn("loading recipes failed", "dir", lib.Dir(), "err", err)
		}
		go func() {
			if err := lib.Watch(ctx); err != nil {
				system.Logger.Debug("recipe watcher stopped", "err", err)
			}
		}()

		srv := &server.Server{Addr: addr, Session: sess, Docs: lib, Log: system.Logger}
		url := fmt.Sprintf("http://%s/", addr)
		system.Logger.Info("starting web ui", "url", url)
		if open {
			if err := server.OpenBrowser(url); err != nil {
				system.Logger.Warn("failed to open browser", "err", err)
			}
		}
		return srv.Start(ctx)
	},
}
