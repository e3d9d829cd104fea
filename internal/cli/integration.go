package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"cookterm/internal/host"
)

func init() { rootCmd.AddCommand(integrationCmd) }

var integrationCmd = &cobra.Command{
	Use:       "integration <shell>",
	Short:     "Print the shell integration script (bash, zsh, fish)",
	Long:      "Prints the script that makes a shell emit OSC 133 prompt markers and OSC 7\ncwd reports. Source it from your rc file to use it outside cookterm.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: host.Shells(),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := host.Script(args[0])
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), s)
		return nil
	},
}
