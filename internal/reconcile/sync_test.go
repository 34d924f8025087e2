package reconcile

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/simplefin-sync/internal/snapshot"
	"github.com/dvloznov/simplefin-sync/internal/store"
)

var testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func newTestSyncer(t *testing.T) (*Syncer, *store.Store) {
	t.Helper()
	st, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory failed: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	s := New(st)
	s.now = func() time.Time { return testNow }
	return s, st
}

func daysAgo(n int) *time.Time {
	t := testNow.AddDate(0, 0, -n)
	return &t
}

func testOrg() snapshot.Organization {
	return snapshot.Organization{
		Domain:  "example.com",
		Name:    "Test Bank",
		SfinURL: "https://bridge.example.com/sfin",
	}
}

func testAccount(txns ...snapshot.Transaction) snapshot.Account {
	return snapshot.Account{
		Org:          testOrg(),
		ID:           "acc1",
		Name:         "Checking",
		Currency:     "USD",
		Balance:      decimal.RequireFromString("15.00"),
		BalanceDate:  testNow,
		Transactions: txns,
	}
}

func testTxn(id, amount string, posted *time.Time) snapshot.Transaction {
	return snapshot.Transaction{
		ID:          id,
		Posted:      posted,
		Amount:      decimal.RequireFromString(amount),
		Description: "txn " + id,
	}
}

type storeState struct {
	orgs     int
	accounts int
	txns     int
}

func readState(t *testing.T, st *store.Store) storeState {
	t.Helper()
	var state storeState
	err := st.WithTx(context.Background(), func(tx *store.Tx) error {
		var err error
		if state.orgs, err = tx.CountOrganizations(context.Background()); err != nil {
			return err
		}
		if state.accounts, err = tx.CountAccounts(context.Background()); err != nil {
			return err
		}
		state.txns, err = tx.CountTransactions(context.Background())
		return err
	})
	if err != nil {
		t.Fatalf("reading store state failed: %v", err)
	}
	return state
}

func readAccountTxnIDs(t *testing.T, st *store.Store) []string {
	t.Helper()
	var ids []string
	err := st.WithTx(context.Background(), func(tx *store.Tx) error {
		org, err := tx.FindOrganization(context.Background(), "example.com", "Test Bank")
		if err != nil {
			return err
		}
		acc, err := tx.FindAccount(context.Background(), "acc1", org.ID)
		if err != nil {
			return err
		}
		txns, err := tx.ListTransactionsByAccount(context.Background(), acc.ID)
		if err != nil {
			return err
		}
		for _, txn := range txns {
			ids = append(ids, txn.ExternalID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("reading account transactions failed: %v", err)
	}
	sort.Strings(ids)
	return ids
}

func TestSync_SingleSnapshot(t *testing.T) {
	s, st := newTestSyncer(t)
	ctx := context.Background()

	acc := testAccount(
		testTxn("txn1", "-10.00", daysAgo(1)),
		testTxn("txn2", "5.00", daysAgo(2)),
	)
	if err := s.Sync(ctx, []snapshot.Account{acc}, DefaultStaleWindowDays); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	state := readState(t, st)
	if state.orgs != 1 || state.accounts != 1 || state.txns != 2 {
		t.Errorf("store state = %+v, want 1 org, 1 account, 2 transactions", state)
	}

	ids := readAccountTxnIDs(t, st)
	if len(ids) != 2 || ids[0] != "txn1" || ids[1] != "txn2" {
		t.Errorf("transaction ids = %v, want [txn1 txn2]", ids)
	}
}

func TestSync_Idempotent(t *testing.T) {
	s, st := newTestSyncer(t)
	ctx := context.Background()

	acc := testAccount(
		testTxn("txn1", "-10.00", daysAgo(1)),
		testTxn("txn2", "5.00", daysAgo(2)),
	)

	if err := s.Sync(ctx, []snapshot.Account{acc}, DefaultStaleWindowDays); err != nil {
		t.Fatalf("first Sync failed: %v", err)
	}

	var firstOrgID, firstAccID int64
	err := st.WithTx(ctx, func(tx *store.Tx) error {
		org, err := tx.FindOrganization(ctx, "example.com", "Test Bank")
		if err != nil {
			return err
		}
		firstOrgID = org.ID
		accRow, err := tx.FindAccount(ctx, "acc1", org.ID)
		if err != nil {
			return err
		}
		firstAccID = accRow.ID
		return nil
	})
	if err != nil {
		t.Fatalf("reading ids failed: %v", err)
	}

	if err := s.Sync(ctx, []snapshot.Account{acc}, DefaultStaleWindowDays); err != nil {
		t.Fatalf("second Sync failed: %v", err)
	}

	state := readState(t, st)
	if state.orgs != 1 || state.accounts != 1 || state.txns != 2 {
		t.Errorf("store state after resync = %+v, want 1 org, 1 account, 2 transactions", state)
	}

	// Surrogate ids are stable across passes.
	err = st.WithTx(ctx, func(tx *store.Tx) error {
		org, err := tx.FindOrganization(ctx, "example.com", "Test Bank")
		if err != nil {
			return err
		}
		if org.ID != firstOrgID {
			t.Errorf("organization id changed from %d to %d", firstOrgID, org.ID)
		}
		accRow, err := tx.FindAccount(ctx, "acc1", org.ID)
		if err != nil {
			return err
		}
		if accRow.ID != firstAccID {
			t.Errorf("account id changed from %d to %d", firstAccID, accRow.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("re-reading ids failed: %v", err)
	}
}

func TestSync_UpsertUpdatesInPlace(t *testing.T) {
	s, st := newTestSyncer(t)
	ctx := context.Background()

	if err := s.Sync(ctx, []snapshot.Account{testAccount()}, 0); err != nil {
		t.Fatalf("first Sync failed: %v", err)
	}

	changed := testAccount()
	changed.Name = "Renamed Checking"
	changed.Balance = decimal.RequireFromString("20.50")
	if err := s.Sync(ctx, []snapshot.Account{changed}, 0); err != nil {
		t.Fatalf("second Sync failed: %v", err)
	}

	state := readState(t, st)
	if state.accounts != 1 {
		t.Fatalf("expected a single account row after update, got %d", state.accounts)
	}

	err := st.WithTx(ctx, func(tx *store.Tx) error {
		org, err := tx.FindOrganization(ctx, "example.com", "Test Bank")
		if err != nil {
			return err
		}
		acc, err := tx.FindAccount(ctx, "acc1", org.ID)
		if err != nil {
			return err
		}
		if acc.Name != "Renamed Checking" {
			t.Errorf("account name = %q, want %q", acc.Name, "Renamed Checking")
		}
		if acc.Balance.String() != "20.50" {
			t.Errorf("account balance = %s, want 20.50", acc.Balance.String())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("reading account failed: %v", err)
	}
}

// The second fetch no longer contains txn2 (posted 3 days ago, inside the
// 7-day window) but still lacks txn4 (posted 10 days ago, outside it).
// Only txn2 must go.
func TestSync_EvictsStaleInsideWindowOnly(t *testing.T) {
	s, st := newTestSyncer(t)
	ctx := context.Background()

	first := testAccount(
		testTxn("txn1", "-10.00", daysAgo(1)),
		testTxn("txn2", "5.00", daysAgo(3)),
		testTxn("txn4", "-7.00", daysAgo(10)),
	)
	if err := s.Sync(ctx, []snapshot.Account{first}, DefaultStaleWindowDays); err != nil {
		t.Fatalf("first Sync failed: %v", err)
	}

	second := testAccount(
		testTxn("txn1", "-10.00", daysAgo(1)),
		testTxn("txn3", "100.00", daysAgo(0)),
	)
	if err := s.Sync(ctx, []snapshot.Account{second}, DefaultStaleWindowDays); err != nil {
		t.Fatalf("second Sync failed: %v", err)
	}

	ids := readAccountTxnIDs(t, st)
	want := []string{"txn1", "txn3", "txn4"}
	if len(ids) != len(want) {
		t.Fatalf("transaction ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("transaction ids = %v, want %v", ids, want)
			break
		}
	}
}

func TestSync_WindowZeroDisablesEviction(t *testing.T) {
	s, st := newTestSyncer(t)
	ctx := context.Background()

	first := testAccount(testTxn("txn1", "-10.00", daysAgo(1)))
	if err := s.Sync(ctx, []snapshot.Account{first}, 0); err != nil {
		t.Fatalf("first Sync failed: %v", err)
	}

	second := testAccount(testTxn("txn2", "5.00", daysAgo(0)))
	if err := s.Sync(ctx, []snapshot.Account{second}, 0); err != nil {
		t.Fatalf("second Sync failed: %v", err)
	}

	ids := readAccountTxnIDs(t, st)
	if len(ids) != 2 {
		t.Errorf("transaction ids = %v, want both txn1 and txn2 kept", ids)
	}
}

func TestEvictStale_ReturnsRemovedCount(t *testing.T) {
	s, st := newTestSyncer(t)
	ctx := context.Background()

	acc := testAccount(
		testTxn("keep", "-1.00", daysAgo(2)),
		testTxn("drop1", "-2.00", daysAgo(3)),
		testTxn("drop2", "-3.00", daysAgo(4)),
	)
	if err := s.Sync(ctx, []snapshot.Account{acc}, 0); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	err := st.WithTx(ctx, func(tx *store.Tx) error {
		org, err := tx.FindOrganization(ctx, "example.com", "Test Bank")
		if err != nil {
			return err
		}
		accRow, err := tx.FindAccount(ctx, "acc1", org.ID)
		if err != nil {
			return err
		}

		incoming := map[string]struct{}{"keep": {}}
		removed, err := s.evictStale(ctx, tx, accRow.ID, accRow.ExternalID, incoming, 7)
		if err != nil {
			return err
		}
		if removed != 2 {
			t.Errorf("evictStale removed %d, want 2", removed)
		}

		removed, err = s.evictStale(ctx, tx, accRow.ID, accRow.ExternalID, incoming, 0)
		if err != nil {
			return err
		}
		if removed != 0 {
			t.Errorf("evictStale with windowDays=0 removed %d, want 0", removed)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx failed: %v", err)
	}
}

func TestSync_InvalidOrganizationAbortsPass(t *testing.T) {
	s, st := newTestSyncer(t)
	ctx := context.Background()

	good := testAccount(testTxn("txn1", "-10.00", daysAgo(1)))
	bad := testAccount()
	bad.ID = "acc2"
	bad.Org = snapshot.Organization{SfinURL: "https://bridge.example.com/sfin"} // no domain, no name

	err := s.Sync(ctx, []snapshot.Account{good, bad}, DefaultStaleWindowDays)
	if err == nil {
		t.Fatal("expected Sync to fail on invalid organization")
	}
	var verr *snapshot.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("expected a *snapshot.ValidationError, got %v", err)
	}

	// The first snapshot's writes must have been rolled back with the pass.
	state := readState(t, st)
	if state.orgs != 0 || state.accounts != 0 || state.txns != 0 {
		t.Errorf("store state after aborted pass = %+v, want empty", state)
	}
}

func TestSync_InvalidTransactionAbortsPass(t *testing.T) {
	s, st := newTestSyncer(t)
	ctx := context.Background()

	acc := testAccount(
		testTxn("txn1", "-10.00", daysAgo(1)),
		testTxn("txn2", "5.00", daysAgo(2)),
		testTxn("", "1.00", daysAgo(3)), // invalid: missing external id
		testTxn("txn4", "2.00", daysAgo(4)),
		testTxn("txn5", "3.00", daysAgo(5)),
	)

	if err := s.Sync(ctx, []snapshot.Account{acc}, DefaultStaleWindowDays); err == nil {
		t.Fatal("expected Sync to fail on invalid transaction")
	}

	state := readState(t, st)
	if state.orgs != 0 || state.accounts != 0 || state.txns != 0 {
		t.Errorf("store state after aborted pass = %+v, want empty", state)
	}
}

func TestSync_TwoOrganizationsShareNothing(t *testing.T) {
	s, st := newTestSyncer(t)
	ctx := context.Background()

	first := testAccount(testTxn("txn1", "-10.00", daysAgo(1)))

	second := testAccount(testTxn("txn1", "-99.00", daysAgo(1)))
	second.Org = snapshot.Organization{
		Domain:  "other.com",
		Name:    "Other Bank",
		SfinURL: "https://bridge.example.com/sfin", // sfin-url need not be unique
	}

	if err := s.Sync(ctx, []snapshot.Account{first, second}, DefaultStaleWindowDays); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	// Same account and transaction external ids under different parents
	// stay distinct rows.
	state := readState(t, st)
	if state.orgs != 2 || state.accounts != 2 || state.txns != 2 {
		t.Errorf("store state = %+v, want 2 orgs, 2 accounts, 2 transactions", state)
	}
}
