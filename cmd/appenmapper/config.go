package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and save configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration after merging defaults, config files and
APPENMAPPER_* environment variables. Secrets are masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := manager.Marshal()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, p := range manager.GetPaths() {
			fmt.Fprintf(out, "# loaded: %s\n", p)
		}
		_, err = out.Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration to ~/.appenmapper/config.yaml",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := manager.Save(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Configuration saved to ~/.appenmapper/config.yaml")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}
