package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vaultbook/vaultbook/internal/catalog"
	"github.com/vaultbook/vaultbook/internal/clipboard"
	"github.com/vaultbook/vaultbook/internal/store"
)

// checkup tallies the results of the doctor checks
type checkup struct {
	out      io.Writer
	issues   int
	warnings int
}

func (c *checkup) section(n int, title string) {
	fmt.Fprintf(c.out, "\n%d. %s\n", n, title)
}

func (c *checkup) ok(format string, args ...interface{}) {
	fmt.Fprintf(c.out, "   ✅ "+format+"\n", args...)
}

func (c *checkup) warn(format string, args ...interface{}) {
	fmt.Fprintf(c.out, "   ⚠️  "+format+"\n", args...)
	c.warnings++
}

func (c *checkup) fail(format string, args ...interface{}) {
	fmt.Fprintf(c.out, "   ❌ "+format+"\n", args...)
	c.issues++
}

func (c *checkup) hint(format string, args ...interface{}) {
	fmt.Fprintf(c.out, "      "+format+"\n", args...)
}

// permissions checks that path is not readable by group or others
func (c *checkup) permissions(label, path string, want os.FileMode) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		c.ok("%s not found (using defaults)", label)
		return
	}
	if err != nil {
		c.fail("Cannot check %s: %v", label, err)
		return
	}
	perm := info.Mode().Perm()
	switch {
	case perm == want:
		c.ok("%s permissions: %o (secure)", label, perm)
	case perm&0o077 != 0:
		c.fail("%s permissions: %o (too permissive, should be %o)", label, perm, want)
		c.hint("Fix with: chmod %o %s", want, path)
	default:
		c.warn("%s permissions: %o (acceptable but %o recommended)", label, perm, want)
	}
}

func newDoctorCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Perform health checks on the data directory",
		Long: `Perform health checks on the data directory without changing anything.

This command checks:
- File permissions of the data directory, catalog and configuration
- Catalog consistency with the vault records on disk (dry run)
- The active vault selection
- Clipboard support

Run 'vaultbook reconcile' to repair what doctor reports.

Example:
  vaultbook doctor`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDoctor(cmd)
		},
	}
}

func (a *app) runDoctor(cmd *cobra.Command) error {
	c := &checkup{out: cmd.OutOrStdout()}
	fmt.Fprintln(c.out, "Vaultbook Health Check")
	fmt.Fprintln(c.out, "======================")

	layout := store.Layout{Root: a.dataDir}

	c.section(1, "Data Directory")
	if _, err := os.Stat(layout.Root); errors.Is(err, os.ErrNotExist) {
		c.warn("Data directory does not exist yet: %s", layout.Root)
		c.hint("It is created by 'vaultbook create'")
	} else {
		c.permissions("Data directory", layout.Root, 0o700)
		c.permissions("Catalog file", layout.CatalogPath(), 0o600)
	}

	c.section(2, "Configuration")
	c.permissions("Config file", a.cfgFile, 0o600)
	if !a.cfg.ReconcileOnStart {
		c.warn("reconcile_on_start is disabled; divergences are only repaired on demand")
	} else {
		c.ok("Startup reconciliation enabled")
	}

	c.section(3, "Catalog Consistency")
	err := a.withService(cmd, func(ctx context.Context, svc *catalog.Service) error {
		report, err := svc.Reconcile(ctx, catalog.ReconcileOptions{DryRun: true})
		if err != nil {
			return err
		}
		if report.Clean() {
			c.ok("Catalog matches %d vault records", report.Vaults)
		}
		for _, d := range report.Divergences {
			switch {
			case d.Kind.Soft():
				c.warn("%s", d)
			case d.Kind.Repairable():
				c.fail("%s", d)
				c.hint("Repair with: vaultbook reconcile")
			default:
				c.fail("%s", d)
				c.hint("Needs manual attention under %s", layout.VaultDir(d.VaultID))
			}
		}

		c.section(4, "Active Vault")
		v, err := svc.GetActiveVault(ctx)
		switch {
		case errors.Is(err, catalog.ErrNoActiveVault) && len(svc.GetAllVaults(ctx)) == 0:
			c.ok("No vaults yet")
		case err != nil:
			c.fail("No usable active vault: %v", err)
			c.hint("Select one with: vaultbook use <vault>")
		default:
			c.ok("Active vault: %s (%s, %d transactions)", v.Name, v.Type.Label(), v.TransactionCount)
		}
		return nil
	}, catalog.WithReconcileOnOpen(false))
	if err != nil {
		c.fail("Cannot open catalog: %v", err)
	}

	c.section(5, "Clipboard")
	if clipboard.IsAvailable(a.clipboard) {
		c.ok("Clipboard available (ids clear after %v)", a.cfg.ClipboardTTL)
	} else {
		c.warn("Clipboard not available; --copy flags will fail")
	}

	// Summary
	fmt.Fprintln(c.out, "\n"+strings.Repeat("=", 40))
	if c.issues == 0 && c.warnings == 0 {
		fmt.Fprintln(c.out, "✅ All checks passed!")
		return nil
	}
	if c.warnings > 0 {
		fmt.Fprintf(c.out, "⚠️  Found %d warnings for consideration\n", c.warnings)
	}
	if c.issues > 0 {
		fmt.Fprintf(c.out, "❌ Found %d issues that should be fixed\n", c.issues)
		return fmt.Errorf("%w: doctor found %d issues", catalog.ErrConsistency, c.issues)
	}
	return nil
}
