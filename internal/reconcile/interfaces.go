package reconcile

import (
	"context"
	"time"

	"github.com/dvloznov/simplefin-sync/internal/snapshot"
)

// Source produces validated account snapshots for one sync pass.
// This interface enables mocking and testing of the fetch side; the
// simplefin.Client is the production implementation.
type Source interface {
	// Fetch returns one snapshot per account, with transactions covering
	// [since, until]. Pending transactions are included when includePending
	// is set. Any transport or payload error means no snapshots at all.
	Fetch(ctx context.Context, since, until time.Time, includePending bool) ([]snapshot.Account, error)
}
