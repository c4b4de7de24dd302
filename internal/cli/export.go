package cli

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaultbook/vaultbook/internal/catalog"
	"github.com/vaultbook/vaultbook/internal/domain"
	"github.com/vaultbook/vaultbook/internal/store"
)

const exportVersion = 1

// exportDocument is the file format shared by tx export and tx import
type exportDocument struct {
	Version      int                  `json:"version"`
	ExportedAt   time.Time            `json:"exported_at"`
	Vault        exportVault          `json:"vault"`
	Transactions []domain.Transaction `json:"transactions"`
}

type exportVault struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Type     domain.VaultType `json:"type"`
	Currency string           `json:"currency,omitempty"`
}

func newExportCommand(a *app) *cobra.Command {
	var exportPath string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the active vault's transactions",
		Long: `Export every transaction of the active vault as JSON, for backup or
migration into another vault with 'vaultbook tx import'.

The file is written atomically with 0600 permissions. Without --output the
document is printed to stdout.

Example:
  vaultbook tx export --output household.json
  vaultbook tx export > household.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *catalog.Service) error {
				return a.runExport(ctx, cmd, svc, exportPath)
			})
		},
	}

	cmd.Flags().StringVarP(&exportPath, "output", "o", "", "Export file path")

	return cmd
}

func (a *app) runExport(ctx context.Context, cmd *cobra.Command, svc *catalog.Service, path string) error {
	id, txs, err := svc.Ledger().ExportTransactions(ctx)
	if err != nil {
		return fmt.Errorf("failed to export transactions: %w", err)
	}
	v, err := svc.GetVault(ctx, id)
	if err != nil {
		return err
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}

	doc := exportDocument{
		Version:    exportVersion,
		ExportedAt: time.Now().UTC(),
		Vault: exportVault{
			ID:       v.ID,
			Name:     v.Name,
			Type:     v.Type,
			Currency: domain.CurrencyOf(v.Settings),
		},
		Transactions: txs,
	}

	if path == "" {
		return writeJSON(cmd.OutOrStdout(), doc)
	}

	var buf bytes.Buffer
	if err := writeJSON(&buf, doc); err != nil {
		return err
	}
	if err := store.AtomicWriteFile(path, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	a.log.Info().Str("vault_id", v.ID).Int("transactions", len(txs)).Str("path", path).Msg("transactions exported")

	return writeOutput(cmd.OutOrStdout(), "✓ Exported %d transactions from '%s' to %s\n", len(txs), v.Name, path)
}
