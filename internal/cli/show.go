package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vaultbook/vaultbook/internal/catalog"
	"github.com/vaultbook/vaultbook/internal/clipboard"
	"github.com/vaultbook/vaultbook/internal/domain"
)

func newShowCommand(a *app) *cobra.Command {
	var (
		showJSON bool
		copyID   bool
	)

	cmd := &cobra.Command{
		Use:   "show <vault>",
		Short: "Show a vault's details",
		Long: `Show the full record of a vault, looked up by id or name.

Example:
  vaultbook show Household
  vaultbook show Household --copy-id     # Copy the vault id to the clipboard
  vaultbook show Household --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withVault(cmd, args[0], func(ctx context.Context, svc *catalog.Service, e domain.VaultIndexEntry) error {
				v, err := svc.GetVault(ctx, e.ID)
				if err != nil {
					return err
				}
				return a.printVault(cmd, v, showJSON, copyID)
			})
		},
	}

	cmd.Flags().BoolVar(&showJSON, "json", false, "Output in JSON format")
	cmd.Flags().BoolVarP(&copyID, "copy-id", "c", false, "Copy the vault id to the clipboard")

	return cmd
}

func newActiveCommand(a *app) *cobra.Command {
	var (
		activeJSON bool
		copyID     bool
	)

	cmd := &cobra.Command{
		Use:   "active",
		Short: "Show the active vault",
		Long: `Show the vault that transaction commands currently act on.

Example:
  vaultbook active
  vaultbook active --copy                # Copy the vault id to the clipboard`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *catalog.Service) error {
				v, err := svc.GetActiveVault(ctx)
				if err != nil {
					return err
				}
				return a.printVault(cmd, v, activeJSON, copyID)
			})
		},
	}

	cmd.Flags().BoolVar(&activeJSON, "json", false, "Output in JSON format")
	cmd.Flags().BoolVarP(&copyID, "copy", "c", false, "Copy the vault id to the clipboard")

	return cmd
}

func (a *app) printVault(cmd *cobra.Command, v *domain.VaultEntity, asJSON, copyID bool) error {
	out := cmd.OutOrStdout()

	if copyID {
		if err := clipboard.CopyWithTimeout(a.clipboard, v.ID, a.cfg.ClipboardTTL); err != nil {
			return err
		}
		a.log.Debug().Str("vault_id", v.ID).Dur("ttl", a.cfg.ClipboardTTL).Msg("vault id copied")
	}

	if a.jsonOutput(asJSON) {
		return writeJSON(out, entityView(v))
	}

	if err := outputVaultDetails(out, v); err != nil {
		return err
	}
	if copyID {
		return writeOutput(cmd.ErrOrStderr(), "✓ Vault id copied to clipboard (clears in %s)\n", a.cfg.ClipboardTTL)
	}
	return nil
}

func outputVaultDetails(out io.Writer, v *domain.VaultEntity) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	status := "open"
	if v.IsArchived {
		status = "archived"
	}
	rows := [][2]string{
		{"Name", v.Name},
		{"ID", v.ID},
		{"Type", v.Type.Label()},
		{"Status", status},
		{"Active", fmt.Sprintf("%t", v.IsActive)},
		{"Position", fmt.Sprintf("%d", v.SortOrder)},
		{"Transactions", fmt.Sprintf("%d", v.TransactionCount)},
		{"Created", formatTime(v.CreatedAt)},
		{"Modified", formatTime(v.LastModified)},
	}
	rows = append(rows, describeSettings(v.Settings)...)

	for _, row := range rows {
		if _, err := fmt.Fprintf(w, "%s:\t%s\n", row[0], row[1]); err != nil {
			return fmt.Errorf("failed to write vault details: %w", err)
		}
	}
	return w.Flush()
}
