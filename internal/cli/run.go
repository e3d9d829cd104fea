package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"cookterm/internal/system"
)

var (
	runJSON    bool
	runTimeout time.Duration
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the result as JSON")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "give up after this long (0 waits forever)")
}

var runCmd = &cobra.Command{
	Use:   "run <command>",
	Short: "Run a command in a fresh integrated shell and print its output",
	Long: "Starts the configured shell with integration loaded, runs the command\n" +
		"as a captured command and exits with its exit code.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		command := strings.Join(args, " ")
		st := loadSettings()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		if runTimeout > 0 {
			ctx, cancel = context.WithTimeout(ctx, runTimeout)
			defer cancel()
		}

		sess, err := startSession(ctx, st, system.Logger)
		if err != nil {
			return err
		}
		defer sess.Close()

		exited := make(chan struct{})
		var once sync.Once
		go pollSession(ctx, sess, st, system.Logger, func() { once.Do(func() { close(exited) }) })

		p, err := sess.Submit(command)
		if err != nil {
			return err
		}
		wctx, wcancel := context.WithCancel(ctx)
		defer wcancel()
		go func() {
			select {
			case <-exited:
				wcancel()
			case <-wctx.Done():
			}
		}()
		res, err := p.Wait(wctx)
		if err != nil {
			select {
			case <-exited:
				return errors.New("shell exited before the command finished")
			default:
			}
			return fmt.Errorf("waiting for %q: %w", command, err)
		}

		out := cmd.OutOrStdout()
		if runJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(struct {
				Command  string `json:"command"`
				Output   string `json:"output"`
				ExitCode int    `json:"exitCode"`
			}{command, res.Output, res.ExitCode}); err != nil {
				return err
			}
		} else if res.Output != "" {
			fmt.Fprintln(out, res.Output)
		}
		if res.ExitCode != 0 {
			return exitCodeError{code: res.ExitCode}
		}
		return nil
	},
}
