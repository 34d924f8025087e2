package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// FindTransaction looks up a transaction by its natural key: the external id
// scoped to the owning account's surrogate id.
func (t *Tx) FindTransaction(ctx context.Context, externalID string, accountID int64) (*TransactionRow, error) {
	row := t.tx.QueryRowContext(ctx, `
		SELECT id, external_id, account_id, posted, amount, description,
		       transacted_at, pending, extra
		FROM transactions
		WHERE external_id = ? AND account_id = ?`,
		externalID, accountID)

	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("FindTransaction: %w", err)
	}
	return txn, nil
}

// InsertTransaction persists a new transaction and returns its surrogate id.
func (t *Tx) InsertTransaction(ctx context.Context, txn *TransactionRow) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO transactions (external_id, account_id, posted, amount,
		                          description, transacted_at, pending, extra)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ExternalID, txn.AccountID, nullUnix(txn.Posted), txn.Amount.String(),
		txn.Description, nullUnix(txn.TransactedAt), nullBool(txn.Pending), nullJSON(txn.Extra))
	if err != nil {
		return 0, fmt.Errorf("InsertTransaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("InsertTransaction: last insert id: %w", err)
	}
	return id, nil
}

// UpdateTransaction overwrites every field of the row identified by txn.ID.
func (t *Tx) UpdateTransaction(ctx context.Context, txn *TransactionRow) error {
	_, err := t.tx.ExecContext(ctx, `
		UPDATE transactions
		SET external_id = ?, account_id = ?, posted = ?, amount = ?,
		    description = ?, transacted_at = ?, pending = ?, extra = ?
		WHERE id = ?`,
		txn.ExternalID, txn.AccountID, nullUnix(txn.Posted), txn.Amount.String(),
		txn.Description, nullUnix(txn.TransactedAt), nullBool(txn.Pending), nullJSON(txn.Extra),
		txn.ID)
	if err != nil {
		return fmt.Errorf("UpdateTransaction: %w", err)
	}
	return nil
}

// ListTransactionExternalIDsSince returns the external ids of the account's
// transactions posted at or after cutoff. Transactions with no posted time
// are never returned; they are not eviction candidates.
func (t *Tx) ListTransactionExternalIDsSince(ctx context.Context, accountID int64, cutoff time.Time) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT external_id
		FROM transactions
		WHERE account_id = ? AND posted IS NOT NULL AND posted >= ?`,
		accountID, cutoff.Unix())
	if err != nil {
		return nil, fmt.Errorf("ListTransactionExternalIDsSince: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ListTransactionExternalIDsSince: scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListTransactionExternalIDsSince: %w", err)
	}
	return ids, nil
}

// DeleteTransactions deletes the account's transactions with the given
// external ids and returns how many rows were removed.
func (t *Tx) DeleteTransactions(ctx context.Context, accountID int64, externalIDs []string) (int64, error) {
	if len(externalIDs) == 0 {
		return 0, nil
	}

	placeholders := strings.Repeat("?, ", len(externalIDs)-1) + "?"
	args := make([]interface{}, 0, len(externalIDs)+1)
	args = append(args, accountID)
	for _, id := range externalIDs {
		args = append(args, id)
	}

	res, err := t.tx.ExecContext(ctx,
		`DELETE FROM transactions WHERE account_id = ? AND external_id IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return 0, fmt.Errorf("DeleteTransactions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("DeleteTransactions: rows affected: %w", err)
	}
	return n, nil
}

// ListTransactionsByAccount returns all of the account's transactions
// ordered by posted time, unposted first.
func (t *Tx) ListTransactionsByAccount(ctx context.Context, accountID int64) ([]*TransactionRow, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, external_id, account_id, posted, amount, description,
		       transacted_at, pending, extra
		FROM transactions
		WHERE account_id = ?
		ORDER BY posted ASC`,
		accountID)
	if err != nil {
		return nil, fmt.Errorf("ListTransactionsByAccount: %w", err)
	}
	defer rows.Close()

	var txns []*TransactionRow
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("ListTransactionsByAccount: %w", err)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListTransactionsByAccount: %w", err)
	}
	return txns, nil
}

// CountTransactions reports the number of persisted transactions.
func (t *Tx) CountTransactions(ctx context.Context) (int, error) {
	var n int
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("CountTransactions: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(s rowScanner) (*TransactionRow, error) {
	var (
		txn          TransactionRow
		posted       sql.NullInt64
		amount       string
		transactedAt sql.NullInt64
		pending      sql.NullBool
		extra        sql.NullString
	)
	err := s.Scan(&txn.ID, &txn.ExternalID, &txn.AccountID, &posted, &amount,
		&txn.Description, &transactedAt, &pending, &extra)
	if err != nil {
		return nil, err
	}

	if txn.Amount, err = scanDecimal(amount); err != nil {
		return nil, err
	}
	txn.Posted = scanNullUnix(posted)
	txn.TransactedAt = scanNullUnix(transactedAt)
	txn.Pending = scanNullBool(pending)
	txn.Extra = scanNullJSON(extra)
	return &txn, nil
}
