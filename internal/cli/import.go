package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vaultbook/vaultbook/internal/catalog"
	"github.com/vaultbook/vaultbook/internal/domain"
)

// Conflict resolution modes for transactions whose id already exists
const (
	conflictFail      = "fail"
	conflictSkip      = "skip"
	conflictDuplicate = "duplicate"
)

func newImportCommand(a *app) *cobra.Command {
	var importConflict string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import transactions into the active vault",
		Long: `Import transactions from a file produced by 'vaultbook tx export', or
from a plain JSON array of transactions.

The import is all-or-nothing. Conflict resolution determines what happens
when a transaction id already exists in the active vault:
  fail       abort the import (default)
  skip       leave existing transactions alone and import the rest
  duplicate  import every transaction under a fresh id

Example:
  vaultbook tx import household.json
  vaultbook tx import household.json --conflict skip`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch importConflict {
			case conflictFail, conflictSkip, conflictDuplicate:
			default:
				return fmt.Errorf("%w: invalid conflict mode %q (valid: fail, skip, duplicate)", catalog.ErrValidation, importConflict)
			}

			txs, err := readImportFile(args[0])
			if err != nil {
				return err
			}

			return a.withService(cmd, func(ctx context.Context, svc *catalog.Service) error {
				return a.runImport(ctx, cmd, svc, txs, importConflict)
			})
		},
	}

	cmd.Flags().StringVar(&importConflict, "conflict", conflictFail, "Conflict resolution (fail|skip|duplicate)")

	return cmd
}

// readImportFile accepts an export document or a bare transaction array
func readImportFile(path string) ([]domain.Transaction, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read import file: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var txs []domain.Transaction
		if err := json.Unmarshal(trimmed, &txs); err != nil {
			return nil, fmt.Errorf("%w: invalid transaction list: %w", catalog.ErrValidation, err)
		}
		return txs, nil
	}

	var doc exportDocument
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("%w: invalid export file: %w", catalog.ErrValidation, err)
	}
	if doc.Version > exportVersion {
		return nil, fmt.Errorf("%w: export version %d is newer than supported version %d", catalog.ErrValidation, doc.Version, exportVersion)
	}
	return doc.Transactions, nil
}

func (a *app) runImport(ctx context.Context, cmd *cobra.Command, svc *catalog.Service, txs []domain.Transaction, conflict string) error {
	ledger := svc.Ledger()
	skipped := 0

	switch conflict {
	case conflictDuplicate:
		for i := range txs {
			txs[i].ID = ""
		}
	case conflictSkip:
		existing, err := ledger.ListTransactions(ctx)
		if err != nil {
			return fmt.Errorf("failed to read existing transactions: %w", err)
		}
		seen := make(map[string]bool, len(existing))
		for _, t := range existing {
			seen[t.ID] = true
		}
		kept := txs[:0]
		for _, t := range txs {
			if t.ID != "" && seen[t.ID] {
				skipped++
				continue
			}
			kept = append(kept, t)
		}
		txs = kept
	}

	n, err := ledger.ImportTransactions(ctx, txs)
	if err != nil {
		return fmt.Errorf("failed to import transactions: %w", err)
	}

	v, err := svc.GetActiveVault(ctx)
	if err != nil {
		return err
	}
	a.log.Info().Str("vault_id", v.ID).Int("imported", n).Int("skipped", skipped).Msg("transactions imported")

	if skipped > 0 {
		return writeOutput(cmd.OutOrStdout(), "✓ Imported %d transactions into '%s' (%d skipped)\n", n, v.Name, skipped)
	}
	return writeOutput(cmd.OutOrStdout(), "✓ Imported %d transactions into '%s'\n", n, v.Name)
}
