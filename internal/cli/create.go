package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/vaultbook/vaultbook/internal/catalog"
	"github.com/vaultbook/vaultbook/internal/domain"
)

// settingsFlags are the type-specific settings accepted by create and update
type settingsFlags struct {
	currency       string
	openingBalance string
	bufferTarget   string
	reservePct     string
	members        []string
	splitEvenly    bool
}

var settingsFlagNames = []string{"currency", "opening-balance", "buffer-target", "reserve-pct", "members", "split-evenly"}

func (f *settingsFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.currency, "currency", "", "ISO currency code (default from config)")
	cmd.Flags().StringVar(&f.openingBalance, "opening-balance", "", "opening balance (cash)")
	cmd.Flags().StringVar(&f.bufferTarget, "buffer-target", "", "buffer target amount (anti_fragile)")
	cmd.Flags().StringVar(&f.reservePct, "reserve-pct", "", "volatility reserve percentage (anti_fragile)")
	cmd.Flags().StringSliceVar(&f.members, "members", nil, "member names (shared)")
	cmd.Flags().BoolVar(&f.splitEvenly, "split-evenly", true, "split evenly between members (shared)")
}

func (f *settingsFlags) changed(cmd *cobra.Command) bool {
	for _, name := range settingsFlagNames {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

// build applies the changed flags on top of base, or on the defaults for t
// when base is of another type
func (f *settingsFlags) build(cmd *cobra.Command, t domain.VaultType, base domain.Settings, currency string) (domain.Settings, error) {
	if f.currency != "" {
		currency = strings.ToUpper(f.currency)
	}
	s := base
	if s == nil || s.Kind() != t {
		s = domain.DefaultSettings(t, currency)
	}

	parse := func(flag, raw string) (decimal.Decimal, error) {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("%w: --%s: invalid amount %q", catalog.ErrValidation, flag, raw)
		}
		return d, nil
	}
	wrongType := func(flag string) error {
		return fmt.Errorf("%w: --%s does not apply to %s vaults", catalog.ErrValidation, flag, t)
	}

	switch v := s.(type) {
	case *domain.CashSettings:
		if cmd.Flags().Changed("currency") {
			v.Currency = currency
		}
		if cmd.Flags().Changed("opening-balance") {
			d, err := parse("opening-balance", f.openingBalance)
			if err != nil {
				return nil, err
			}
			v.OpeningBalance = d
		}
		for _, flag := range []string{"buffer-target", "reserve-pct", "members", "split-evenly"} {
			if cmd.Flags().Changed(flag) {
				return nil, wrongType(flag)
			}
		}
	case *domain.AntiFragileSettings:
		if cmd.Flags().Changed("currency") {
			v.Currency = currency
		}
		if cmd.Flags().Changed("buffer-target") {
			d, err := parse("buffer-target", f.bufferTarget)
			if err != nil {
				return nil, err
			}
			v.BufferTarget = d
		}
		if cmd.Flags().Changed("reserve-pct") {
			d, err := parse("reserve-pct", f.reservePct)
			if err != nil {
				return nil, err
			}
			v.VolatilityReservePct = d
		}
		for _, flag := range []string{"opening-balance", "members", "split-evenly"} {
			if cmd.Flags().Changed(flag) {
				return nil, wrongType(flag)
			}
		}
	case *domain.SharedSettings:
		if cmd.Flags().Changed("currency") {
			v.Currency = currency
		}
		if cmd.Flags().Changed("members") {
			v.Members = f.members
		}
		if cmd.Flags().Changed("split-evenly") {
			v.SplitEvenly = f.splitEvenly
		}
		for _, flag := range []string{"opening-balance", "buffer-target", "reserve-pct"} {
			if cmd.Flags().Changed(flag) {
				return nil, wrongType(flag)
			}
		}
	}
	return s, nil
}

func newCreateCommand(a *app) *cobra.Command {
	var (
		vaultType  string
		settings   settingsFlags
		createJSON bool
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new vault",
		Long: `Create a new vault with its own settings and transaction ledger.

The first vault you create becomes the active vault. Names are unique
(case-insensitive) among vaults that are not archived.

Example:
  vaultbook create "Daily cash"
  vaultbook create Buffer --type anti_fragile --buffer-target 5000 --reserve-pct 20
  vaultbook create Household --type shared --members alice,bob --currency EUR`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := domain.ParseVaultType(vaultType)
			if err != nil {
				return fmt.Errorf("%w: %w", catalog.ErrValidation, err)
			}

			var s domain.Settings
			if settings.changed(cmd) {
				if s, err = settings.build(cmd, t, nil, a.cfg.DefaultCurrency); err != nil {
					return err
				}
			}

			return a.withService(cmd, func(ctx context.Context, svc *catalog.Service) error {
				v, err := svc.CreateVault(ctx, args[0], t, s)
				if err != nil {
					return fmt.Errorf("failed to create vault: %w", err)
				}
				activeID, _ := svc.Selector().ActiveID()
				v.IsActive = v.ID == activeID

				out := cmd.OutOrStdout()
				if a.jsonOutput(createJSON) {
					return writeJSON(out, entityView(v))
				}
				if err := writeOutput(out, "✓ Vault '%s' created (%s, id %s)\n", v.Name, v.Type.Label(), v.ID); err != nil {
					return err
				}
				if v.IsActive {
					return writeOutput(out, "Active vault is now '%s'\n", v.Name)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&vaultType, "type", "t", string(domain.TypeCash), "vault type (cash, anti_fragile, shared)")
	cmd.Flags().BoolVar(&createJSON, "json", false, "Output in JSON format")
	settings.register(cmd)

	return cmd
}
