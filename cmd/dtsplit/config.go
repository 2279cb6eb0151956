package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dtsplit/internal/config"
	dtserrors "dtsplit/internal/errors"
)

var (
	configFormat    string
	configInitForce bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage dtsplit configuration",
	Long:  "Create, check and view the configuration stored in .dtsplit/config.toml",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configCheckCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Check a TOML configuration file for unknown keys and invalid values",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigCheck,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Display the configuration after defaults, the config file and DTSPLIT_*
environment overrides are applied.

Examples:
  dtsplit config show                  # YAML
  dtsplit config show --format json    # JSON`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing config file")
	configShowCmd.Flags().StringVar(&configFormat, "format", "yaml", "Output format (json, yaml)")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configCheckCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	root, err := getProjectRoot()
	if err != nil {
		return err
	}
	path, err := config.Init(root, config.DefaultConfig(), configInitForce)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}

func runConfigCheck(cmd *cobra.Command, args []string) error {
	root, err := getProjectRoot()
	if err != nil {
		return err
	}
	path := config.DefaultPath(root)
	if len(args) == 1 {
		path = args[0]
	}

	result, err := config.Check(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, key := range result.Unknown {
		fmt.Fprintf(out, "unknown key: %s\n", key)
	}
	if result.Error != "" {
		fmt.Fprintf(out, "invalid: %s\n", result.Error)
	}
	if !result.OK() {
		return dtserrors.Newf(dtserrors.ConfigInvalid, "%d problem(s) found", len(result.Unknown)+boolToInt(result.Error != "")).WithPath(path)
	}
	fmt.Fprintf(out, "%s: ok\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadConfig()
	if err != nil {
		return err
	}

	source := cfg.File
	if source == "" {
		source = "defaults"
	}
	output, err := FormatResponse(cfg, OutputFormat(strings.ToLower(configFormat)))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "# source: %s\n", source)
	fmt.Fprint(cmd.OutOrStdout(), output)
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
