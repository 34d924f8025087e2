package simplefin

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/simplefin-sync/internal/snapshot"
)

// convertAccount turns one wire account into a validated snapshot. Custom
// currency descriptors are resolved here so the reconciler only ever sees
// plain currency names.
func (c *Client) convertAccount(ctx context.Context, w wireAccount) (snapshot.Account, error) {
	currency, err := c.currencies.resolve(ctx, w.Currency)
	if err != nil {
		return snapshot.Account{}, fmt.Errorf("convertAccount %q: %w", w.ID, err)
	}

	balance, err := decimal.NewFromString(w.Balance)
	if err != nil {
		return snapshot.Account{}, fmt.Errorf("convertAccount %q: balance %q: %w", w.ID, w.Balance, err)
	}

	var available *decimal.Decimal
	if w.AvailableBalance != "" {
		d, err := decimal.NewFromString(w.AvailableBalance)
		if err != nil {
			return snapshot.Account{}, fmt.Errorf("convertAccount %q: available-balance %q: %w", w.ID, w.AvailableBalance, err)
		}
		available = &d
	}

	acc := snapshot.Account{
		Org: snapshot.Organization{
			Domain:     w.Org.Domain,
			Name:       w.Org.Name,
			SfinURL:    w.Org.SfinURL,
			ExternalID: w.Org.ID,
			URL:        w.Org.URL,
		},
		ID:               w.ID,
		Name:             w.Name,
		Currency:         currency,
		Balance:          balance,
		AvailableBalance: available,
		BalanceDate:      time.Unix(w.BalanceDate, 0).UTC(),
		Transactions:     make([]snapshot.Transaction, 0, len(w.Transactions)),
		Extra:            w.Extra,
	}

	for _, wt := range w.Transactions {
		txn, err := convertTransaction(wt)
		if err != nil {
			return snapshot.Account{}, fmt.Errorf("convertAccount %q: %w", w.ID, err)
		}
		acc.Transactions = append(acc.Transactions, txn)
	}

	if err := acc.Validate(); err != nil {
		return snapshot.Account{}, fmt.Errorf("convertAccount %q: %w", w.ID, err)
	}
	return acc, nil
}

func convertTransaction(w wireTransaction) (snapshot.Transaction, error) {
	amount, err := decimal.NewFromString(w.Amount)
	if err != nil {
		return snapshot.Transaction{}, fmt.Errorf("convertTransaction %q: amount %q: %w", w.ID, w.Amount, err)
	}

	return snapshot.Transaction{
		ID:           w.ID,
		Posted:       unixOrNil(w.Posted),
		Amount:       amount,
		Description:  w.Description,
		TransactedAt: unixOrNil(w.TransactedAt),
		Pending:      w.Pending,
		Extra:        w.Extra,
	}, nil
}

// The protocol uses 0 for "not posted yet".
func unixOrNil(v int64) *time.Time {
	if v == 0 {
		return nil
	}
	t := time.Unix(v, 0).UTC()
	return &t
}
