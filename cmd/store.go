package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/demand-cli/internal/store"
)

// initStore opens and migrates the run ledger. It fails when no ledger is
// configured.
func initStore(ctx context.Context) (store.Store, error) {
	if cfg.Store.DatabaseURL == "" {
		return nil, eris.New("run ledger is not configured (DEMAND_STORE_DATABASE_URL)")
	}
	st, err := store.NewSQLite(cfg.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// initOptionalStore is initStore for commands that run without a ledger. It
// returns nil when none is configured.
func initOptionalStore(ctx context.Context) (store.Store, error) {
	if cfg.Store.DatabaseURL == "" {
		return nil, nil
	}
	return initStore(ctx)
}
