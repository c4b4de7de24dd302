package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vaultbook/vaultbook/internal/catalog"
)

func newReconcileCommand(a *app) *cobra.Command {
	var (
		dryRun        bool
		reconcileJSON bool
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Repair the catalog from the vault records on disk",
		Long: `Compare the catalog with the vault records and data stores on disk and
repair every divergence that can be repaired automatically:

- vaults on disk missing from the catalog are registered
- catalog entries without a vault record are dropped
- stale names, types and transaction counts are refreshed
- the custom order is renumbered and the active vault is repaired

Data stores that no vault record explains are reported and never deleted.
The command exits with an integrity error when divergences remain.

Example:
  vaultbook reconcile --dry-run          # Show what would be repaired
  vaultbook reconcile`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *catalog.Service) error {
				report, err := svc.Reconcile(ctx, catalog.ReconcileOptions{DryRun: dryRun})
				if err != nil {
					return fmt.Errorf("reconciliation failed: %w", err)
				}

				out := cmd.OutOrStdout()
				if a.jsonOutput(reconcileJSON) {
					if err := writeJSON(out, report); err != nil {
						return err
					}
				} else if err := outputReport(out, report); err != nil {
					return err
				}
				return outstanding(report)
			}, catalog.WithReconcileOnOpen(false))
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report divergences without repairing them")
	cmd.Flags().BoolVar(&reconcileJSON, "json", false, "Output in JSON format")

	return cmd
}

// outstanding returns the hard divergences the pass left in place
func outstanding(report *catalog.RepairReport) error {
	var left []catalog.Divergence
	for _, d := range report.Divergences {
		if !d.Repaired && !d.Kind.Soft() {
			left = append(left, d)
		}
	}
	if len(left) == 0 {
		return nil
	}
	return &catalog.ConsistencyError{Divergences: left}
}

func outputReport(out io.Writer, report *catalog.RepairReport) error {
	if report.Clean() {
		return writeOutput(out, "✓ Catalog is consistent (%d vaults)\n", report.Vaults)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintf(w, "KIND\tVAULT\tDETAIL\tSTATUS\n"); err != nil {
		return fmt.Errorf("failed to write table header: %w", err)
	}
	for _, d := range report.Divergences {
		vault := d.Name
		if vault == "" {
			vault = d.VaultID
		}
		status := "repaired"
		switch {
		case d.Repaired:
		case !d.Kind.Repairable():
			status = "needs attention"
		default:
			status = "would repair"
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Kind, vault, d.Detail, status); err != nil {
			return fmt.Errorf("failed to write divergence: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if report.DryRun {
		return writeOutput(out, "\nFound %d divergences across %d vaults (dry run)\n", len(report.Divergences), report.Vaults)
	}
	repaired := 0
	for _, d := range report.Divergences {
		if d.Repaired {
			repaired++
		}
	}
	return writeOutput(out, "\nRepaired %d of %d divergences across %d vaults\n", repaired, len(report.Divergences), report.Vaults)
}
