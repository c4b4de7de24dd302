package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/vaultbook/vaultbook/internal/catalog"
	"github.com/vaultbook/vaultbook/internal/domain"
)

const dateLayout = "2006-01-02"

func newTxCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tx",
		Aliases: []string{"transactions"},
		Short:   "Manage transactions of the active vault",
		Long: `Manage the transactions stored in the active vault.

Select the vault first with 'vaultbook use <vault>'.

Example:
  vaultbook tx add --category groceries -- -12.50
  vaultbook tx list
  vaultbook tx export --output backup.json`,
	}

	cmd.AddCommand(newTxAddCommand(a))
	cmd.AddCommand(newTxListCommand(a))
	cmd.AddCommand(newTxRemoveCommand(a))
	cmd.AddCommand(newImportCommand(a))
	cmd.AddCommand(newExportCommand(a))

	return cmd
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if d, err := time.ParseInLocation(dateLayout, raw, time.Local); err == nil {
		return d.UTC(), nil
	}
	d, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q (use YYYY-MM-DD or RFC 3339)", catalog.ErrValidation, raw)
	}
	return d.UTC(), nil
}

func newTxAddCommand(a *app) *cobra.Command {
	var (
		date     string
		category string
		note     string
		currency string
		addJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "add <amount>",
		Short: "Record a transaction in the active vault",
		Long: `Record a transaction in the active vault. Negative amounts are
expenses; put them after '--' so they are not read as flags.

The currency defaults to the vault's currency and the date to now.

Example:
  vaultbook tx add 1200 --category salary
  vaultbook tx add --date 2024-03-01 --note rent -- -850`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[0])
			if err != nil {
				return fmt.Errorf("%w: invalid amount %q", catalog.ErrValidation, args[0])
			}
			when, err := parseDate(date)
			if err != nil {
				return err
			}

			t := domain.Transaction{
				Date:     when,
				Amount:   amount,
				Currency: strings.ToUpper(currency),
				Category: category,
				Note:     note,
			}

			return a.withService(cmd, func(ctx context.Context, svc *catalog.Service) error {
				stored, err := svc.Ledger().AddTransaction(ctx, t)
				if err != nil {
					return fmt.Errorf("failed to add transaction: %w", err)
				}
				if a.jsonOutput(addJSON) {
					return writeJSON(cmd.OutOrStdout(), stored)
				}
				return writeOutput(cmd.OutOrStdout(), "✓ Recorded %s on %s (id %s)\n",
					stored.Display(), stored.Date.Local().Format(dateLayout), stored.ID)
			})
		},
	}

	cmd.Flags().StringVarP(&date, "date", "d", "", "Transaction date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Category")
	cmd.Flags().StringVarP(&note, "note", "n", "", "Free-form note")
	cmd.Flags().StringVar(&currency, "currency", "", "ISO currency code (default from vault)")
	cmd.Flags().BoolVar(&addJSON, "json", false, "Output in JSON format")

	return cmd
}

func newTxListCommand(a *app) *cobra.Command {
	var (
		listJSON bool
		category string
		limit    int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List transactions of the active vault",
		Long: `List the active vault's transactions, oldest first, with totals per currency.

Example:
  vaultbook tx list
  vaultbook tx list --category groceries
  vaultbook tx list --limit 10           # Only the 10 most recent`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *catalog.Service) error {
				v, err := svc.GetActiveVault(ctx)
				if err != nil {
					return err
				}
				txs, err := svc.Ledger().ListTransactions(ctx)
				if err != nil {
					return fmt.Errorf("failed to list transactions: %w", err)
				}

				if category != "" {
					filtered := txs[:0]
					for _, t := range txs {
						if strings.EqualFold(t.Category, category) {
							filtered = append(filtered, t)
						}
					}
					txs = filtered
				}
				if limit > 0 && len(txs) > limit {
					txs = txs[len(txs)-limit:]
				}

				out := cmd.OutOrStdout()
				if a.jsonOutput(listJSON) {
					if txs == nil {
						txs = []domain.Transaction{}
					}
					return writeJSON(out, txs)
				}
				if len(txs) == 0 {
					return writeOutput(out, "No transactions in vault '%s'\n", v.Name)
				}
				if err := outputTransactionsTable(out, txs); err != nil {
					return err
				}
				return outputTotals(out, v.Name, txs)
			})
		},
	}

	cmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Filter by category")
	cmd.Flags().IntVar(&limit, "limit", 0, "Show only the most recent N transactions")

	return cmd
}

func outputTransactionsTable(out io.Writer, txs []domain.Transaction) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	if _, err := fmt.Fprintf(w, "DATE\tAMOUNT\tCATEGORY\tNOTE\tID\n"); err != nil {
		return fmt.Errorf("failed to write table header: %w", err)
	}
	for _, t := range txs {
		if _, err := fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			t.Date.Local().Format(dateLayout), t.Display(), t.Category, t.Note, t.ID); err != nil {
			return fmt.Errorf("failed to write transaction: %w", err)
		}
	}
	return w.Flush()
}

func outputTotals(out io.Writer, vaultName string, txs []domain.Transaction) error {
	totals := make(map[string]decimal.Decimal)
	for _, t := range txs {
		totals[t.Currency] = totals[t.Currency].Add(t.Amount)
	}
	currencies := make([]string, 0, len(totals))
	for c := range totals {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)

	parts := make([]string, len(currencies))
	for i, c := range currencies {
		parts[i] = domain.FormatAmount(totals[c], c)
	}
	_, err := fmt.Fprintf(out, "\n%d transactions in vault '%s', total %s\n", len(txs), vaultName, strings.Join(parts, ", "))
	return err
}

func newTxRemoveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <transaction-id>",
		Aliases: []string{"delete"},
		Short:   "Remove a transaction from the active vault",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *catalog.Service) error {
				if err := svc.Ledger().DeleteTransaction(ctx, args[0]); err != nil {
					return fmt.Errorf("failed to remove transaction: %w", err)
				}
				return writeOutput(cmd.OutOrStdout(), "✓ Transaction %s removed\n", args[0])
			})
		},
	}
}
