package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vaultbook/vaultbook/internal/catalog"
)

func newReorderCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <vault>...",
		Short: "Set the custom order of all open vaults",
		Long: `Set the custom order of the open vaults. Every open vault must be
listed exactly once, by id or name. Archived vaults are not part of the
custom order.

To move a single vault use 'vaultbook update <vault> --position N'.

Example:
  vaultbook reorder Household "Daily cash" Buffer`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *catalog.Service) error {
				ids := make([]string, 0, len(args))
				for _, ref := range args {
					e, err := svc.ResolveVault(ctx, ref)
					if err != nil {
						return err
					}
					ids = append(ids, e.ID)
				}

				if err := svc.ReorderVaults(ctx, ids); err != nil {
					return fmt.Errorf("failed to reorder vaults: %w", err)
				}

				out := cmd.OutOrStdout()
				for i, e := range svc.GetAllVaults(ctx) {
					if err := writeOutput(out, "%d. %s\n", i+1, e.Name); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}
