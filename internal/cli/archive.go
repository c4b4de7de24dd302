package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vaultbook/vaultbook/internal/catalog"
	"github.com/vaultbook/vaultbook/internal/domain"
)

func newArchiveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <vault>",
		Short: "Archive a vault",
		Long: `Archive a vault. Archived vaults keep their data but are hidden from
listings and cannot be active. Archiving the active vault selects the
first remaining vault.

Example:
  vaultbook archive "Trip 2023"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withVault(cmd, args[0], func(ctx context.Context, svc *catalog.Service, e domain.VaultIndexEntry) error {
				if e.IsArchived {
					return writeOutput(cmd.OutOrStdout(), "Vault '%s' is already archived\n", e.Name)
				}
				if err := svc.ArchiveVault(ctx, e.ID); err != nil {
					return fmt.Errorf("failed to archive vault: %w", err)
				}
				return writeOutput(cmd.OutOrStdout(), "✓ Vault '%s' archived\n", e.Name)
			})
		},
	}
}

func newUnarchiveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "unarchive <vault>",
		Short: "Restore an archived vault",
		Long: `Restore an archived vault to the end of the custom order.

Fails when an open vault already uses the same name.

Example:
  vaultbook unarchive "Trip 2023"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withVault(cmd, args[0], func(ctx context.Context, svc *catalog.Service, e domain.VaultIndexEntry) error {
				if !e.IsArchived {
					return writeOutput(cmd.OutOrStdout(), "Vault '%s' is not archived\n", e.Name)
				}
				if err := svc.UnarchiveVault(ctx, e.ID); err != nil {
					return fmt.Errorf("failed to unarchive vault: %w", err)
				}
				return writeOutput(cmd.OutOrStdout(), "✓ Vault '%s' restored\n", e.Name)
			})
		},
	}
}
