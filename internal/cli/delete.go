package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vaultbook/vaultbook/internal/catalog"
	"github.com/vaultbook/vaultbook/internal/domain"
)

func newDeleteCommand(a *app) *cobra.Command {
	var deleteYes bool

	cmd := &cobra.Command{
		Use:     "delete <vault>",
		Aliases: []string{"rm"},
		Short:   "Delete a vault and its transactions",
		Long: `Delete a vault permanently, including every transaction it holds.

This action cannot be undone. You will be prompted for confirmation
unless you use the --yes flag or confirm_destructive is disabled.

Example:
  vaultbook delete "Old savings"
  vaultbook delete "Old savings" --yes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withVault(cmd, args[0], func(ctx context.Context, svc *catalog.Service, e domain.VaultIndexEntry) error {
				return a.runDelete(ctx, cmd, svc, e, deleteYes)
			})
		},
	}

	cmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Skip confirmation prompt")

	return cmd
}

func (a *app) runDelete(ctx context.Context, cmd *cobra.Command, svc *catalog.Service, e domain.VaultIndexEntry, yes bool) error {
	out := cmd.OutOrStdout()
	activeID, _ := svc.Selector().ActiveID()

	// Confirm deletion unless --yes flag is used
	if !yes && a.cfg.ConfirmDestructive {
		if !interactive(cmd.InOrStdin()) {
			return fmt.Errorf("%w: refusing to delete without --yes in non-interactive mode", catalog.ErrValidation)
		}
		prompt := fmt.Sprintf("Delete vault '%s' and its %d transactions?", e.Name, e.TransactionCount)
		confirmed, err := PromptConfirm(cmd.InOrStdin(), out, prompt, false)
		if err != nil {
			return fmt.Errorf("failed to get confirmation: %w", err)
		}
		if !confirmed {
			return writeOutput(out, "Vault deletion cancelled\n")
		}
	}

	if err := svc.DeleteVault(ctx, e.ID); err != nil {
		return fmt.Errorf("failed to delete vault: %w", err)
	}

	if err := writeOutput(out, "✓ Vault '%s' deleted\n", e.Name); err != nil {
		return err
	}
	if e.ID == activeID {
		if v, err := svc.GetActiveVault(ctx); err == nil {
			return writeOutput(out, "Active vault is now '%s'\n", v.Name)
		}
		return writeOutput(out, "No active vault remains\n")
	}
	return nil
}
