// Package snapshot holds the value records produced by one fetch from a
// SimpleFIN-compatible source. These are domain structs, not storage rows;
// the reconcile package maps them into the store schema.
package snapshot

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Organization identifies the institution an account belongs to.
// At least one of Domain and Name must be set.
type Organization struct {
	Domain     string
	Name       string
	SfinURL    string // access URL of the SimpleFIN server; required, not unique
	ExternalID string
	URL        string
}

// Validate checks the required-field invariants for an organization.
func (o Organization) Validate() error {
	if o.Domain == "" && o.Name == "" {
		return &ValidationError{Entity: "organization", Field: "domain/name", Reason: "either domain or name or both must be provided"}
	}
	if o.SfinURL == "" {
		return &ValidationError{Entity: "organization", Field: "sfin-url", Reason: "must not be empty"}
	}
	return nil
}

// Transaction is a single transaction as reported by the remote source.
// Amounts are signed fixed-point decimals; Posted is nil for transactions
// the source has not posted yet.
type Transaction struct {
	ID           string
	Posted       *time.Time
	Amount       decimal.Decimal
	Description  string
	TransactedAt *time.Time
	Pending      *bool
	Extra        json.RawMessage
}

// Validate checks the required-field invariants for a transaction.
func (t Transaction) Validate() error {
	if t.ID == "" {
		return &ValidationError{Entity: "transaction", Field: "id", Reason: "must not be empty"}
	}
	return nil
}

// Account is one account snapshot: the owning organization, the account
// fields as of BalanceDate, and the transactions the source returned for
// the requested window.
type Account struct {
	Org              Organization
	ID               string
	Name             string
	Currency         string
	Balance          decimal.Decimal
	AvailableBalance *decimal.Decimal
	BalanceDate      time.Time
	Transactions     []Transaction
	Extra            json.RawMessage
}

// Validate checks the account and everything it owns.
func (a Account) Validate() error {
	if err := a.Org.Validate(); err != nil {
		return err
	}
	if a.ID == "" {
		return &ValidationError{Entity: "account", Field: "id", Reason: "must not be empty"}
	}
	if a.Currency == "" {
		return &ValidationError{Entity: "account", Field: "currency", Reason: "must not be empty"}
	}
	for _, txn := range a.Transactions {
		if err := txn.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// TransactionIDs returns the set of transaction external ids present in the
// snapshot. The evictor compares this set against persisted ids.
func (a Account) TransactionIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(a.Transactions))
	for _, txn := range a.Transactions {
		ids[txn.ID] = struct{}{}
	}
	return ids
}

// ValidationError reports a required-field violation found before any write.
type ValidationError struct {
	Entity string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s: %s", e.Entity, e.Field, e.Reason)
}
