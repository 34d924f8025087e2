package reconcile

import (
	"context"

	"github.com/dvloznov/simplefin-sync/internal/logger"
	"github.com/dvloznov/simplefin-sync/internal/store"
)

// evictStale deletes the account's persisted transactions that were posted
// inside the trailing window but are absent from the incoming snapshot. The
// remote source only returns transactions still live, so a recent one it no
// longer reports is presumed retracted upstream (a cancelled pending charge,
// typically). Anything posted before the cutoff, or never posted, is left
// alone even when absent from the response. Returns the number removed.
func (s *Syncer) evictStale(ctx context.Context, tx *store.Tx, accountID int64, accountExternalID string, incoming map[string]struct{}, windowDays int) (int, error) {
	if windowDays <= 0 {
		return 0, nil
	}

	cutoff := s.now().AddDate(0, 0, -windowDays)
	persisted, err := tx.ListTransactionExternalIDsSince(ctx, accountID, cutoff)
	if err != nil {
		return 0, err
	}

	var stale []string
	for _, id := range persisted {
		if _, ok := incoming[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	removed, err := tx.DeleteTransactions(ctx, accountID, stale)
	if err != nil {
		return 0, err
	}

	// This is an expected housekeeping outcome, not an error.
	log := logger.FromContext(ctx)
	log.Warn().
		Int64("removed", removed).
		Str("account_id", accountExternalID).
		Time("cutoff", cutoff).
		Msg("Removed stale transactions")

	return int(removed), nil
}
