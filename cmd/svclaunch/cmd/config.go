package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/psantana5/svclaunch/internal/config"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and create launcher configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Show prints the configuration after merging built-in defaults, the
config file and SVCLAUNCH_* environment overrides. YAML by default, JSON with
--output json.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a sample configuration file",
	Long: `Init writes the built-in configuration to path, by default
$HOME/.svclaunch/config.yaml, as a starting point for overrides.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)

	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing file")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if IsJSONOutput() {
		return printJSON(cmd.OutOrStdout(), cfg)
	}
	if cfg.File != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "# from %s\n", cfg.File)
	}
	return cfg.Render(cmd.OutOrStdout())
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := serviceArg(args)
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("find home directory: %w", err)
		}
		path = filepath.Join(home, ".svclaunch", "config.yaml")
	}

	if err := config.WriteSample(path, configInitForce); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
