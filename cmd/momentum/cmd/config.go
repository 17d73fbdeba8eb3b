package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/momentum/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage momentum configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  momentum config init -o momentum.yaml
  momentum config validate -f momentum.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	Long: `Create a new configuration file with the default scoring weights,
the default strategy and deployment settings. The format follows the
extension: .yaml/.yml for YAML, anything else for JSON.

Example:
  momentum config init -o momentum.yaml`,
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Check that a configuration file loads and passes validation.

Example:
  momentum config validate -f momentum.yaml`,
	RunE: runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "momentum.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	c := config.Default()
	if err := c.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Created default configuration: %s\n", configInitOutput)
	fmt.Fprintln(out, "\nEdit the file and run with:")
	fmt.Fprintf(out, "  momentum backtest -c %s --start 2023-01-02 --end 2023-12-29\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	c, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Configuration valid: %s\n", configValidatePath)
	for _, name := range c.StrategyNames() {
		s := c.Strategies[name]
		fmt.Fprintf(out, "  Strategy: %s (capital %.2f, risk %.2f%%, %d positions)\n",
			name, s.InitialCapital, s.RiskThreshold, s.MaxPositions)
	}
	fmt.Fprintf(out, "  Feed: %s\n", c.Feed.Type)
	fmt.Fprintf(out, "  Journal: %s\n", c.Journal.Type)
	if c.Schedule.Spec != "" {
		fmt.Fprintf(out, "  Schedule: %s (top %d)\n", c.Schedule.Spec, c.Schedule.TopN)
	}
	return nil
}
