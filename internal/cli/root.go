package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"cookterm/internal/system"
)

var (
	logLevel string
	docsDir  string
)

var rootCmd = &cobra.Command{
	Use:   "cookterm",
	Short: "cookterm – a terminal that knows where each command starts and ends",
	Long: "cookterm runs your shell with prompt/command/output tracking and\n" +
		"lets you run markdown recipes against it from a TUI or a local web API.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logLevel != "" && !system.SetLevel(logLevel) {
			return fmt.Errorf("unknown log level %q (debug, info, warn, error)", logLevel)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default action: launch the TUI
		return runTUI(cmd.Context())
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&docsDir, "docs", "", "recipe directory (overrides docs_dir)")
}

// exitCodeError carries a process exit code out of RunE without printing.
type exitCodeError struct{ code int }

func (e exitCodeError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// Execute runs the CLI.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if err == nil {
		return
	}
	var ec exitCodeError
	if errors.As(err, &ec) {
		os.Exit(ec.code)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
