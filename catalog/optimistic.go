package catalog

import "context"

// Optimistic applies a local change, persists it, and undoes the local change
// when persisting fails. The persist error is returned unchanged.
func Optimistic(ctx context.Context, apply func(), persist func(ctx context.Context) error, revert func()) error {
	apply()
	if err := persist(ctx); err != nil {
		revert()
		return err
	}
	return nil
}
