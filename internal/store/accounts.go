package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// FindAccount looks up an account by its natural key: the source-assigned
// external id scoped to the owning organization's surrogate id.
func (t *Tx) FindAccount(ctx context.Context, externalID string, orgID int64) (*AccountRow, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT id, external_id, org_id, name, currency, balance,
		       available_balance, balance_date, extra
		FROM accounts
		WHERE external_id = ? AND org_id = ?`,
		externalID, orgID)

	acc, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("FindAccount: %w", err)
	}
	return acc, nil
}

// InsertAccount persists a new account and returns its surrogate id.
// The foreign-key constraint rejects an OrgID that does not exist.
func (t *Tx) InsertAccount(ctx context.Context, acc *AccountRow) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO accounts (external_id, org_id, name, currency, balance,
		                      available_balance, balance_date, extra)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		acc.ExternalID, acc.OrgID, acc.Name, acc.Currency, acc.Balance.String(),
		nullDecimal(acc.AvailableBalance), acc.BalanceDate.Unix(), nullJSON(acc.Extra))
	if err != nil {
		return 0, fmt.Errorf("InsertAccount: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("InsertAccount: last insert id: %w", err)
	}
	return id, nil
}

// UpdateAccount overwrites every field of the row identified by acc.ID.
func (t *Tx) UpdateAccount(ctx context.Context, acc *AccountRow) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE accounts
		SET external_id = ?, org_id = ?, name = ?, currency = ?, balance = ?,
		    available_balance = ?, balance_date = ?, extra = ?
		WHERE id = ?`,
		acc.ExternalID, acc.OrgID, acc.Name, acc.Currency, acc.Balance.String(),
		nullDecimal(acc.AvailableBalance), acc.BalanceDate.Unix(), nullJSON(acc.Extra),
		acc.ID)
	if err != nil {
		return fmt.Errorf("UpdateAccount: %w", err)
	}
	return nil
}

// CountAccounts reports the number of persisted accounts.
func (t *Tx) CountAccounts(ctx context.Context) (int, error) {
	var n int
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("CountAccounts: %w", err)
	}
	return n, nil
}

func scanAccount(row *sql.Row) (*AccountRow, error) {
	var (
		acc         AccountRow
		balance     string
		available   sql.NullString
		balanceDate int64
		extra       sql.NullString
	)
	err := row.Scan(&acc.ID, &acc.ExternalID, &acc.OrgID, &acc.Name, &acc.Currency,
		&balance, &available, &balanceDate, &extra)
	if err != nil {
		return nil, err
	}

	if acc.Balance, err = scanDecimal(balance); err != nil {
		return nil, err
	}
	if acc.AvailableBalance, err = scanNullDecimal(available); err != nil {
		return nil, err
	}
	acc.BalanceDate = time.Unix(balanceDate, 0).UTC()
	acc.Extra = scanNullJSON(extra)
	return &acc, nil
}
