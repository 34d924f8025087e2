package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrganizationRow is a persisted organization. ID is the surrogate key
// assigned at first insert; accounts reference it, never the natural key.
type OrganizationRow struct {
	ID         int64
	Domain     string
	Name       string
	SfinURL    string
	ExternalID string
	URL        string
}

// AccountRow is a persisted account. Natural key: (ExternalID, OrgID).
type AccountRow struct {
	ID               int64
	ExternalID       string
	OrgID            int64
	Name             string
	Currency         string
	Balance          decimal.Decimal
	AvailableBalance *decimal.Decimal
	BalanceDate      time.Time
	Extra            json.RawMessage
}

// TransactionRow is a persisted transaction. Natural key: (ExternalID, AccountID).
type TransactionRow struct {
	ID           int64
	ExternalID   string
	AccountID    int64
	Posted       *time.Time
	Amount       decimal.Decimal
	Description  string
	TransactedAt *time.Time
	Pending      *bool
	Extra        json.RawMessage
}

// Decimals are stored as their exact text form; timestamps as unix seconds.

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func scanDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("scan decimal %q: %w", s, err)
	}
	return d, nil
}

func scanNullDecimal(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid {
		return nil, nil
	}
	d, err := scanDecimal(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func scanNullUnix(ni sql.NullInt64) *time.Time {
	if !ni.Valid {
		return nil
	}
	t := time.Unix(ni.Int64, 0).UTC()
	return &t
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func scanNullBool(nb sql.NullBool) *bool {
	if !nb.Valid {
		return nil
	}
	b := nb.Bool
	return &b
}

func nullJSON(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

func scanNullJSON(ns sql.NullString) json.RawMessage {
	if !ns.Valid {
		return nil
	}
	return json.RawMessage(ns.String)
}
