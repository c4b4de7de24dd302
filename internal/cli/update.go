package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vaultbook/vaultbook/internal/catalog"
	"github.com/vaultbook/vaultbook/internal/domain"
)

func newUpdateCommand(a *app) *cobra.Command {
	var (
		newName    string
		newType    string
		position   int
		settings   settingsFlags
		updateJSON bool
	)

	cmd := &cobra.Command{
		Use:   "update <vault>",
		Short: "Update a vault",
		Long: `Update a vault's name, type, settings or position.

Only the flags you pass are changed. Changing the type resets the settings
to that type's defaults (keeping the currency) unless settings flags are
given as well. --position is 1-based within the custom order.

Example:
  vaultbook update Household --name Family
  vaultbook update Buffer --reserve-pct 25
  vaultbook update "Daily cash" --position 1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			if !flags.Changed("name") && !flags.Changed("type") && !flags.Changed("position") && !settings.changed(cmd) {
				return fmt.Errorf("%w: nothing to update, pass at least one of --name, --type, --position or a settings flag", catalog.ErrValidation)
			}

			return a.withVault(cmd, args[0], func(ctx context.Context, svc *catalog.Service, e domain.VaultIndexEntry) error {
				cur, err := svc.GetVault(ctx, e.ID)
				if err != nil {
					return err
				}

				next := cur.Clone()
				if flags.Changed("name") {
					next.Name = newName
				}
				if flags.Changed("type") {
					t, err := domain.ParseVaultType(newType)
					if err != nil {
						return fmt.Errorf("%w: %w", catalog.ErrValidation, err)
					}
					next.Type = t
				}
				if flags.Changed("position") {
					if position < 1 {
						return fmt.Errorf("%w: --position must be at least 1", catalog.ErrValidation)
					}
					next.SortOrder = position - 1
				}

				switch {
				case settings.changed(cmd):
					next.Settings, err = settings.build(cmd, next.Type, next.Settings, domain.CurrencyOf(cur.Settings))
					if err != nil {
						return err
					}
				case next.Type != cur.Type:
					next.Settings = nil
				}

				if err := svc.UpdateVault(ctx, next); err != nil {
					return fmt.Errorf("failed to update vault: %w", err)
				}

				updated, err := svc.GetVault(ctx, e.ID)
				if err != nil {
					return err
				}
				if a.jsonOutput(updateJSON) {
					return writeJSON(cmd.OutOrStdout(), entityView(updated))
				}
				return writeOutput(cmd.OutOrStdout(), "✓ Vault '%s' updated\n", updated.Name)
			})
		},
	}

	cmd.Flags().StringVarP(&newName, "name", "n", "", "New vault name")
	cmd.Flags().StringVarP(&newType, "type", "t", "", "New vault type")
	cmd.Flags().IntVarP(&position, "position", "p", 0, "New position in the custom order (1-based)")
	cmd.Flags().BoolVar(&updateJSON, "json", false, "Output in JSON format")
	settings.register(cmd)

	return cmd
}
