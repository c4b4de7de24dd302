package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vaultbook/vaultbook/internal/catalog"
	"github.com/vaultbook/vaultbook/internal/domain"
)

// openService locks the data directory and loads the catalog for one command
func (a *app) openService(ctx context.Context, extra ...catalog.Option) (*catalog.Service, error) {
	opts := []catalog.Option{
		catalog.WithLogger(a.log),
		catalog.WithHook(catalog.LogHook{Log: a.log}),
		catalog.WithDefaultCurrency(a.cfg.DefaultCurrency),
		catalog.WithLockTimeout(a.cfg.LockTimeout),
		catalog.WithReconcileOnOpen(a.cfg.ReconcileOnStart),
	}
	opts = append(opts, a.serviceOptions...)
	opts = append(opts, extra...)

	svc, err := catalog.Open(ctx, a.dataDir, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open data directory %s: %w", a.dataDir, err)
	}
	return svc, nil
}

// withService runs fn with an open service and releases the directory lock afterwards
func (a *app) withService(cmd *cobra.Command, fn func(ctx context.Context, svc *catalog.Service) error, extra ...catalog.Option) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	svc, err := a.openService(ctx, extra...)
	if err != nil {
		return err
	}
	defer func() {
		a.checkDeferredErr(&err, "close catalog", svc.Close())
	}()

	return fn(ctx, svc)
}

// withVault resolves ref by id or name before running fn
func (a *app) withVault(cmd *cobra.Command, ref string, fn func(ctx context.Context, svc *catalog.Service, e domain.VaultIndexEntry) error) error {
	return a.withService(cmd, func(ctx context.Context, svc *catalog.Service) error {
		e, err := svc.ResolveVault(ctx, ref)
		if err != nil {
			return err
		}
		return fn(ctx, svc, e)
	})
}
