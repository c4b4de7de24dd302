package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vaultbook/vaultbook/internal/catalog"
)

func newUseCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "use [vault]",
		Short: "Select the active vault",
		Long: `Select the vault that transaction commands act on.

Without an argument you are asked to pick one of the open vaults.
Archived vaults cannot be selected.

Example:
  vaultbook use Household
  vaultbook use`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *catalog.Service) error {
				var ref string
				if len(args) == 1 {
					e, err := svc.ResolveVault(ctx, args[0])
					if err != nil {
						return err
					}
					ref = e.ID
				} else {
					id, err := a.pickVault(ctx, cmd, svc)
					if err != nil {
						return err
					}
					ref = id
				}

				if err := svc.SetActiveVault(ctx, ref); err != nil {
					return fmt.Errorf("failed to select vault: %w", err)
				}
				v, err := svc.GetActiveVault(ctx)
				if err != nil {
					return err
				}
				return writeOutput(cmd.OutOrStdout(), "✓ Active vault is now '%s'\n", v.Name)
			})
		},
	}
}

// pickVault asks the user to choose among the open vaults in custom order
func (a *app) pickVault(ctx context.Context, cmd *cobra.Command, svc *catalog.Service) (string, error) {
	if !interactive(cmd.InOrStdin()) {
		return "", fmt.Errorf("%w: vault argument is required in non-interactive mode", catalog.ErrValidation)
	}

	entries := svc.GetAllVaults(ctx)
	if len(entries) == 0 {
		return "", fmt.Errorf("%w: no vaults to choose from", catalog.ErrNotFound)
	}
	choices := make([]string, len(entries))
	for i, e := range entries {
		choices[i] = e.Name + " (" + e.Type.Label() + ")"
		if e.IsActive {
			choices[i] += " *"
		}
	}

	i, err := PromptChoice(cmd.InOrStdin(), cmd.OutOrStdout(), "Select a vault:", choices)
	if err != nil {
		return "", fmt.Errorf("%w: %w", catalog.ErrValidation, err)
	}
	return entries[i].ID, nil
}
