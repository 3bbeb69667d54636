package app

import (
	"context"
	"time"
)

// Scan runs a single scan cycle immediately, without the scheduler. Useful
// for cron-style invocation and for verifying configuration end to end.
func (a *App) Scan(ctx context.Context) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if closeStore != nil {
		defer closeStore()
	}

	svc := a.newService(nil, store, a.newMetrics())
	return svc.RunCycle(ctx, time.Now().UTC())
}
