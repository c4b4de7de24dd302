package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaultbook/vaultbook/internal/catalog"
)

type statusInfo struct {
	DataDir        string     `json:"data_dir"`
	ConfigFile     string     `json:"config_file"`
	OpenVaults     int        `json:"open_vaults"`
	ArchivedVaults int        `json:"archived_vaults"`
	Transactions   int        `json:"transactions"`
	ActiveVault    string     `json:"active_vault,omitempty"`
	ActiveVaultID  string     `json:"active_vault_id,omitempty"`
	LastModified   *time.Time `json:"last_modified,omitempty"`
}

func newStatusCommand(a *app) *cobra.Command {
	var statusJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show catalog status",
		Long:  "Display the data directory, vault counts, the active vault and the last change.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd, func(ctx context.Context, svc *catalog.Service) error {
				result := statusInfo{
					DataDir:    a.dataDir,
					ConfigFile: a.cfgFile,
				}

				for _, e := range svc.Vaults(ctx, catalog.Query{IncludeArchived: true}) {
					if e.IsArchived {
						result.ArchivedVaults++
					} else {
						result.OpenVaults++
					}
					result.Transactions += e.TransactionCount
					if e.IsActive {
						result.ActiveVault = e.Name
						result.ActiveVaultID = e.ID
					}
					if result.LastModified == nil || e.LastModified.After(*result.LastModified) {
						ts := e.LastModified
						result.LastModified = &ts
					}
				}

				out := cmd.OutOrStdout()
				if a.jsonOutput(statusJSON) {
					return writeJSON(out, result)
				}

				active := result.ActiveVault
				if active == "" {
					active = "(none)"
				}
				lastModified := "n/a"
				if result.LastModified != nil {
					lastModified = result.LastModified.Format(time.RFC3339)
				}
				return writeOutput(out,
					"Data directory: %s\nConfig: %s\nVaults: %d open, %d archived\nTransactions: %d\nActive vault: %s\nLast Updated: %s\n",
					result.DataDir, result.ConfigFile, result.OpenVaults, result.ArchivedVaults,
					result.Transactions, active, lastModified)
			})
		},
	}

	cmd.Flags().BoolVar(&statusJSON, "json", false, "Output status as JSON")

	return cmd
}
