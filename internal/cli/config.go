package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	cfg "cookterm/internal/config"
)

var configWizard bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSchemaCmd)
	configCmd.Flags().BoolVarP(&configWizard, "wizard", "w", false, "run the interactive settings wizard")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Create settings.yaml and show the effective settings",
	Long:  "Writes settings.yaml with defaults when it is missing, then prints its\nlocation and the effective settings.",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if configWizard {
			st, err := cfg.RunWizard()
			if err != nil {
				return err
			}
			p, _ := cfg.SettingsPath()
			fmt.Fprintf(out, "✓ saved %s (recipes: %s)\n", p, st.ResolvedDocsDir())
			return nil
		}

		p, err := cfg.SettingsPath()
		if err != nil {
			return err
		}
		st, err := cfg.Load()
		if err != nil {
			return err
		}
		if _, statErr := os.Stat(p); os.IsNotExist(statErr) {
			if err := cfg.Save(st); err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ created %s\n", p)
		} else {
			fmt.Fprintf(out, "• using %s\n", p)
		}
		if dir := st.ResolvedDocsDir(); dir != "" {
			fmt.Fprintf(out, "• recipes: %s\n\n", dir)
		}
		b, err := yaml.Marshal(st)
		if err != nil {
			return err
		}
		_, err = out.Write(b)
		return err
	},
}

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of settings.yaml",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := cfg.MarshalSchema(cfg.Schema())
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return err
	},
}
