package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vaultbook/vaultbook/internal/catalog"
	"github.com/vaultbook/vaultbook/internal/domain"
)

type listOptions struct {
	search   string
	types    []string
	sort     string
	archived bool
	json     bool
	long     bool
}

func newListCommand(a *app) *cobra.Command {
	opts := &listOptions{}

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List vaults",
		Long: `List vaults, with optional filtering and sorting.

The active vault is marked with '*'. Archived vaults are hidden unless
--archived is given. --search matches vault names and type labels.

Sort options: custom, name-asc, name-desc, created-asc, created-desc,
modified-asc, modified-desc, count-asc, count-desc

Example:
  vaultbook list                         # Custom order
  vaultbook list --type shared,cash      # Only shared and cash vaults
  vaultbook list --search buf            # Vaults matching 'buf'
  vaultbook list --sort count-desc       # Busiest vaults first
  vaultbook list --json                  # Output in JSON format`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runList(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.search, "search", "s", "", "Search in name and type")
	cmd.Flags().StringSliceVar(&opts.types, "type", nil, "Filter by vault type")
	cmd.Flags().StringVar(&opts.sort, "sort", "", "Sort order (default from config)")
	cmd.Flags().BoolVarP(&opts.archived, "archived", "a", false, "Include archived vaults")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Output in JSON format")
	cmd.Flags().BoolVarP(&opts.long, "long", "l", false, "Show detailed output with additional columns")

	return cmd
}

func (a *app) buildQuery(opts *listOptions) (catalog.Query, error) {
	rawSort := opts.sort
	if rawSort == "" {
		rawSort = a.cfg.DefaultSort
	}
	sortOpt, err := catalog.ParseSortOption(rawSort)
	if err != nil {
		return catalog.Query{}, err
	}

	q := catalog.Query{
		Search:          opts.search,
		Sort:            sortOpt,
		IncludeArchived: opts.archived,
	}
	for _, raw := range opts.types {
		t, err := domain.ParseVaultType(raw)
		if err != nil {
			return catalog.Query{}, fmt.Errorf("%w: %w", catalog.ErrValidation, err)
		}
		q.Types = append(q.Types, t)
	}
	return q, nil
}

func (a *app) runList(cmd *cobra.Command, opts *listOptions) error {
	q, err := a.buildQuery(opts)
	if err != nil {
		return err
	}

	return a.withService(cmd, func(ctx context.Context, svc *catalog.Service) error {
		out := cmd.OutOrStdout()
		entries := svc.Vaults(ctx, q)

		if a.jsonOutput(opts.json) {
			views := make([]vaultView, 0, len(entries))
			for _, e := range entries {
				views = append(views, entryView(e))
			}
			return writeJSON(out, views)
		}

		if len(entries) == 0 {
			if q.Search != "" || len(q.Types) > 0 {
				return writeOutput(out, "No vaults found matching the filter criteria\n")
			}
			if err := writeOutput(out, "No vaults found\n"); err != nil {
				return fmt.Errorf("failed to write no vaults message: %w", err)
			}
			return writeOutput(out, "Use 'vaultbook create <name>' to create your first vault\n")
		}

		if err := outputVaultsTable(out, entries, opts.long); err != nil {
			return err
		}

		if _, err := fmt.Fprintf(out, "\nFound %d vaults\n", len(entries)); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
		return nil
	})
}

func outputVaultsTable(out io.Writer, entries []domain.VaultIndexEntry, long bool) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	// Helper function to write to tabwriter with error checking
	write := func(format string, args ...interface{}) error {
		_, err := fmt.Fprintf(w, format, args...)
		return err
	}

	if long {
		if err := write("\tNAME\tTYPE\tTRANSACTIONS\tCREATED\tMODIFIED\tSTATUS\tID\n"); err != nil {
			return fmt.Errorf("failed to write table header: %w", err)
		}
	} else if err := write("\tNAME\tTYPE\tTRANSACTIONS\n"); err != nil {
		return fmt.Errorf("failed to write table header: %w", err)
	}

	for _, e := range entries {
		var err error
		if long {
			status := "open"
			if e.IsArchived {
				status = "archived"
			}
			err = write("%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
				activeMarker(e.IsActive), e.Name, e.Type.Label(), e.TransactionCount,
				formatTime(e.CreatedAt), formatTime(e.LastModified), status, e.ID)
		} else {
			name := e.Name
			if e.IsArchived {
				name += " (archived)"
			}
			err = write("%s\t%s\t%s\t%d\n", activeMarker(e.IsActive), name, e.Type.Label(), e.TransactionCount)
		}
		if err != nil {
			return fmt.Errorf("failed to write vault: %w", err)
		}
	}

	return w.Flush()
}
