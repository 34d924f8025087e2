package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/simplefin-sync/internal/snapshot"
	"github.com/dvloznov/simplefin-sync/internal/store"
)

// The upsert functions below share one contract: resolve the incoming record
// by its natural key, overwrite every field if a row exists, insert a fresh
// row otherwise. Surrogate ids and parent references are never touched by an
// update. Field mapping is explicit per entity, and validation runs before
// any write is attempted.

// upsertOrganization finds or creates the organization keyed by the exact
// (domain, name) pair. Returns the surrogate id and whether a row was created.
func upsertOrganization(ctx context.Context, tx *store.Tx, org snapshot.Organization) (int64, bool, error) {
	if err := org.Validate(); err != nil {
		return 0, false, err
	}

	row := &store.OrganizationRow{
		Domain:     org.Domain,
		Name:       org.Name,
		SfinURL:    org.SfinURL,
		ExternalID: org.ExternalID,
		URL:        org.URL,
	}

	existing, err := tx.FindOrganization(ctx, org.Domain, org.Name)
	switch {
	case err == nil:
		row.ID = existing.ID
		if err := tx.UpdateOrganization(ctx, row); err != nil {
			return 0, false, fmt.Errorf("upsertOrganization: %w", err)
		}
		return existing.ID, false, nil
	case errors.Is(err, store.ErrNotFound):
		id, err := tx.InsertOrganization(ctx, row)
		if err != nil {
			return 0, false, fmt.Errorf("upsertOrganization: %w", err)
		}
		return id, true, nil
	default:
		return 0, false, fmt.Errorf("upsertOrganization: %w", err)
	}
}

// upsertAccount finds or creates the account keyed by (external id, orgID).
// The organization's surrogate id is attached as the parent reference.
func upsertAccount(ctx context.Context, tx *store.Tx, acc *snapshot.Account, orgID int64) (int64, bool, error) {
	if acc.ID == "" {
		return 0, false, &snapshot.ValidationError{Entity: "account", Field: "id", Reason: "must not be empty"}
	}
	if acc.Currency == "" {
		return 0, false, &snapshot.ValidationError{Entity: "account", Field: "currency", Reason: "must not be empty"}
	}

	row := &store.AccountRow{
		ExternalID:       acc.ID,
		OrgID:            orgID,
		Name:             acc.Name,
		Currency:         acc.Currency,
		Balance:          acc.Balance,
		AvailableBalance: acc.AvailableBalance,
		BalanceDate:      acc.BalanceDate,
		Extra:            acc.Extra,
	}

	existing, err := tx.FindAccount(ctx, acc.ID, orgID)
	switch {
	case err == nil:
		row.ID = existing.ID
		if err := tx.UpdateAccount(ctx, row); err != nil {
			return 0, false, fmt.Errorf("upsertAccount: %w", err)
		}
		return existing.ID, false, nil
	case errors.Is(err, store.ErrNotFound):
		id, err := tx.InsertAccount(ctx, row)
		if err != nil {
			return 0, false, fmt.Errorf("upsertAccount: %w", err)
		}
		return id, true, nil
	default:
		return 0, false, fmt.Errorf("upsertAccount: %w", err)
	}
}

// upsertTransaction finds or creates the transaction keyed by
// (external id, accountID).
func upsertTransaction(ctx context.Context, tx *store.Tx, txn *snapshot.Transaction, accountID int64) (bool, error) {
	if err := txn.Validate(); err != nil {
		return false, err
	}

	row := &store.TransactionRow{
		ExternalID:   txn.ID,
		AccountID:    accountID,
		Posted:       txn.Posted,
		Amount:       txn.Amount,
		Description:  txn.Description,
		TransactedAt: txn.TransactedAt,
		Pending:      txn.Pending,
		Extra:        txn.Extra,
	}

	existing, err := tx.FindTransaction(ctx, txn.ID, accountID)
	switch {
	case err == nil:
		row.ID = existing.ID
		if err := tx.UpdateTransaction(ctx, row); err != nil {
			return false, fmt.Errorf("upsertTransaction: %w", err)
		}
		return false, nil
	case errors.Is(err, store.ErrNotFound):
		if _, err := tx.InsertTransaction(ctx, row); err != nil {
			return false, fmt.Errorf("upsertTransaction: %w", err)
		}
		return true, nil
	default:
		return false, fmt.Errorf("upsertTransaction: %w", err)
	}
}
