package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vaultbook/vaultbook/internal/config"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage vaultbook configuration",
		Long: `Manage vaultbook configuration settings.

You can view, set, or get individual configuration values.
Configuration is stored in ~/.config/vaultbook/config.yaml by default.

Example:
  vaultbook config path                      # Show config file path
  vaultbook config get default_currency      # Get the default currency
  vaultbook config set default_sort name-asc # Sort listings by name
  vaultbook config set log.level debug       # Verbose logs
  vaultbook config get                       # Show all configuration`,
	}

	getCmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Get configuration value(s)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return a.runConfigGetAll(cmd)
			}
			return a.runConfigGet(cmd, args[0])
		},
	}

	setCmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConfigSet(cmd, args[0], args[1])
		},
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeOutput(cmd.OutOrStdout(), "%s\n", a.cfgFile)
		},
	}

	cmd.AddCommand(getCmd)
	cmd.AddCommand(setCmd)
	cmd.AddCommand(pathCmd)

	return cmd
}

func (a *app) runConfigGetAll(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	if err := writeOutput(out, "Configuration file: %s\n\n", a.cfgFile); err != nil {
		return err
	}
	for _, key := range config.Keys {
		value, err := a.cfg.Get(key)
		if err != nil {
			return err
		}
		if err := writeOutput(out, "%s: %s\n", key, value); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) runConfigGet(cmd *cobra.Command, key string) error {
	value, err := a.cfg.Get(key)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), "%s\n", value)
}

func (a *app) runConfigSet(cmd *cobra.Command, key, value string) error {
	if err := a.cfg.Set(key, value); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	if err := config.SaveConfig(a.cfg, a.cfgFile); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}
	a.log.Debug().Str("key", key).Str("value", value).Msg("configuration updated")

	return writeOutput(cmd.OutOrStdout(), "✓ Configuration updated: %s = %s\n", key, value)
}
