// Package reconcile merges fetched account snapshots into the store.
// One Sync call is one transactional pass: organizations, accounts and
// transactions are upserted by natural key, and transactions that vanished
// from the source inside a trailing window are evicted. Nothing is visible
// until the whole pass commits.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/simplefin-sync/internal/logger"
	"github.com/dvloznov/simplefin-sync/internal/snapshot"
	"github.com/dvloznov/simplefin-sync/internal/store"
)

// DefaultStaleWindowDays bounds how far back eviction looks. A week covers
// the horizon in which pending charges normally settle or disappear.
const DefaultStaleWindowDays = 7

// Syncer drives reconciliation passes against one store.
type Syncer struct {
	store *store.Store
	now   func() time.Time
}

// New creates a Syncer backed by the given store.
func New(st *store.Store) *Syncer {
	return &Syncer{
		store: st,
		now:   time.Now,
	}
}

type syncStats struct {
	orgsCreated     int
	orgsUpdated     int
	accountsCreated int
	accountsUpdated int
	txnsCreated     int
	txnsUpdated     int
	evicted         int
}

// Sync reconciles the snapshots into the store as a single transaction.
// Snapshots are processed in input order. Any validation failure or
// constraint violation aborts the pass; partial syncs are never committed.
// staleWindowDays <= 0 disables eviction.
func (s *Syncer) Sync(ctx context.Context, snapshots []snapshot.Account, staleWindowDays int) error {
	log := logger.FromContext(ctx).With().Str("sync_run_id", uuid.NewString()).Logger()
	ctx = logger.WithContext(ctx, log)

	log.Info().
		Int("accounts", len(snapshots)).
		Int("stale_window_days", staleWindowDays).
		Msg("Starting sync pass")

	var stats syncStats
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		for i := range snapshots {
			if err := s.syncAccount(ctx, tx, &snapshots[i], staleWindowDays, &stats); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("Sync: %w", err)
	}

	log.Info().
		Int("orgs_created", stats.orgsCreated).
		Int("orgs_updated", stats.orgsUpdated).
		Int("accounts_created", stats.accountsCreated).
		Int("accounts_updated", stats.accountsUpdated).
		Int("transactions_created", stats.txnsCreated).
		Int("transactions_updated", stats.txnsUpdated).
		Int("transactions_evicted", stats.evicted).
		Msg("Sync pass completed")

	return nil
}

// SyncFromSource fetches one snapshot batch from src and reconciles it with
// Sync. The fetch completes strictly before the storage transaction begins,
// so a source failure means no writes at all.
func (s *Syncer) SyncFromSource(ctx context.Context, src Source, since, until time.Time, includePending bool, staleWindowDays int) error {
	snapshots, err := src.Fetch(ctx, since, until, includePending)
	if err != nil {
		return fmt.Errorf("SyncFromSource: %w", err)
	}
	return s.Sync(ctx, snapshots, staleWindowDays)
}

// syncAccount reconciles one account snapshot: organization first, then the
// account with the organization's surrogate id attached, then eviction of
// stale transactions, then the incoming transactions themselves.
func (s *Syncer) syncAccount(ctx context.Context, tx *store.Tx, acc *snapshot.Account, staleWindowDays int, stats *syncStats) error {
	orgID, created, err := upsertOrganization(ctx, tx, acc.Org)
	if err != nil {
		return err
	}
	countUpsert(created, &stats.orgsCreated, &stats.orgsUpdated)

	accountID, created, err := upsertAccount(ctx, tx, acc, orgID)
	if err != nil {
		return err
	}
	countUpsert(created, &stats.accountsCreated, &stats.accountsUpdated)

	if staleWindowDays > 0 {
		removed, err := s.evictStale(ctx, tx, accountID, acc.ID, acc.TransactionIDs(), staleWindowDays)
		if err != nil {
			return err
		}
		stats.evicted += removed
	}

	for i := range acc.Transactions {
		created, err := upsertTransaction(ctx, tx, &acc.Transactions[i], accountID)
		if err != nil {
			return err
		}
		countUpsert(created, &stats.txnsCreated, &stats.txnsUpdated)
	}
	return nil
}

func countUpsert(created bool, createdCounter, updatedCounter *int) {
	if created {
		*createdCounter++
	} else {
		*updatedCounter++
	}
}
