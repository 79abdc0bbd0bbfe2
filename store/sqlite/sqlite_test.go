package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/policy-billing/billing"
	"github.com/warp/policy-billing/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedPolicy(t *testing.T, s *sqlite.Store, id string) *billing.Policy {
	t.Helper()
	p := &billing.Policy{
		ID:            billing.PolicyID(id),
		Number:        "P-" + id,
		EffectiveDate: billing.NewDate(2015, time.January, 1),
		AnnualPremium: billing.MoneyFromInt(1200),
		Schedule:      billing.ScheduleMonthly,
		Status:        billing.PolicyActive,
		NamedInsured:  "c-insured",
		Agent:         "c-agent",
	}
	require.NoError(t, s.SavePolicy(context.Background(), p))
	return p
}

func invoice(id, policyID string, bill billing.Date, amount int64) billing.Invoice {
	due := bill.AddMonths(1)
	return billing.Invoice{
		ID:         billing.InvoiceID(id),
		PolicyID:   billing.PolicyID(policyID),
		BillDate:   bill,
		DueDate:    due,
		CancelDate: due.AddDays(14),
		AmountDue:  billing.MoneyFromInt(amount),
		Active:     true,
	}
}

// =============================================================================
// POLICY PERSISTENCE
// =============================================================================

func TestSQLite_PolicyRoundTrip(t *testing.T) {
	// GIVEN: A saved policy
	// WHEN: Reading it back
	// THEN: Every field survives, including the decimal premium

	s := newTestStore(t)
	ctx := context.Background()
	seedPolicy(t, s, "p1")

	got, err := s.GetPolicy(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, "P-p1", got.Number)
	assert.True(t, got.EffectiveDate.Equal(billing.NewDate(2015, time.January, 1)))
	assert.Equal(t, "1200", got.AnnualPremium.String())
	assert.Equal(t, billing.ScheduleMonthly, got.Schedule)
	assert.Equal(t, billing.PolicyActive, got.Status)
	assert.Nil(t, got.CancelDate)
	assert.Equal(t, billing.ContactID("c-insured"), got.NamedInsured)
	assert.Equal(t, billing.ContactID("c-agent"), got.Agent)
}

func TestSQLite_PolicyNotFound_ReturnsNil(t *testing.T) {
	s := newTestStore(t)

	got, err := s.GetPolicy(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_PolicyUpsert_PersistsCancellation(t *testing.T) {
	// GIVEN: A saved active policy
	// WHEN: Canceling it and saving again
	// THEN: The stored row carries the cancel date and reason

	s := newTestStore(t)
	ctx := context.Background()
	p := seedPolicy(t, s, "p1")

	p.Cancel(billing.NewDate(2015, time.March, 15), billing.ReasonLackOfPayment)
	require.NoError(t, s.SavePolicy(ctx, p))

	got, err := s.GetPolicy(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, billing.PolicyCanceled, got.Status)
	assert.Equal(t, billing.ReasonLackOfPayment, got.CancelReason)
	require.NotNil(t, got.CancelDate)
	assert.True(t, got.CancelDate.Equal(billing.NewDate(2015, time.March, 15)))
}

// =============================================================================
// INVOICE PERSISTENCE
// =============================================================================

func TestSQLite_InvoicesOrderedByBillDate(t *testing.T) {
	// GIVEN: Invoices inserted out of order
	// WHEN: Reading them back
	// THEN: Bill-date ascending

	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertInvoices(ctx, []billing.Invoice{
		invoice("i2", "p1", billing.NewDate(2015, time.February, 1), 100),
		invoice("i1", "p1", billing.NewDate(2015, time.January, 1), 100),
	}))

	invoices, err := s.InvoicesByPolicy(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, invoices, 2)
	assert.Equal(t, billing.InvoiceID("i1"), invoices[0].ID)
	assert.Equal(t, billing.InvoiceID("i2"), invoices[1].ID)
}

func TestSQLite_DeactivateRetainsRows(t *testing.T) {
	// GIVEN: An active batch
	// WHEN: Deactivating and inserting a replacement batch
	// THEN: ActiveInvoices shows only the new batch, all rows remain

	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertInvoices(ctx, []billing.Invoice{
		invoice("old1", "p1", billing.NewDate(2015, time.January, 1), 100),
		invoice("old2", "p1", billing.NewDate(2015, time.February, 1), 100),
	}))
	require.NoError(t, s.DeactivateInvoices(ctx, "p1"))
	require.NoError(t, s.InsertInvoices(ctx, []billing.Invoice{
		invoice("new1", "p1", billing.NewDate(2015, time.January, 1), 200),
	}))

	active, err := s.ActiveInvoices(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, billing.InvoiceID("new1"), active[0].ID)
	assert.Equal(t, "200", active[0].AmountDue.String())

	all, err := s.InvoicesByPolicy(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// =============================================================================
// PAYMENT PERSISTENCE
// =============================================================================

func TestSQLite_PaymentsOrderedByTransactionDate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, p := range []billing.Payment{
		{ID: "pay2", PolicyID: "p1", ContactID: "c1", AmountPaid: billing.MoneyFromInt(200), TransactionDate: billing.NewDate(2015, time.May, 1)},
		{ID: "pay1", PolicyID: "p1", ContactID: "c1", AmountPaid: billing.MoneyFromInt(400), TransactionDate: billing.NewDate(2015, time.February, 1)},
	} {
		require.NoError(t, s.InsertPayment(ctx, p))
	}

	payments, err := s.PaymentsByPolicy(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, billing.PaymentID("pay1"), payments[0].ID)
	assert.Equal(t, "400", payments[0].AmountPaid.String())
	assert.Equal(t, billing.PaymentID("pay2"), payments[1].ID)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestSQLite_WithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that deactivates, inserts, then fails
	// WHEN: The function returns an error
	// THEN: The original batch is untouched

	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	require.NoError(t, s.InsertInvoices(ctx, []billing.Invoice{
		invoice("i1", "p1", billing.NewDate(2015, time.January, 1), 100),
	}))

	err := s.WithTx(ctx, func(tx billing.Store) error {
		if err := tx.DeactivateInvoices(ctx, "p1"); err != nil {
			return err
		}
		if err := tx.InsertInvoices(ctx, []billing.Invoice{
			invoice("i2", "p1", billing.NewDate(2015, time.February, 1), 100),
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	active, err := s.ActiveInvoices(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, billing.InvoiceID("i1"), active[0].ID)
}

func TestSQLite_WithTx_CommitsOnSuccess(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx billing.Store) error {
		return tx.InsertInvoices(ctx, []billing.Invoice{
			invoice("i1", "p1", billing.NewDate(2015, time.January, 1), 100),
		})
	})
	require.NoError(t, err)

	active, err := s.ActiveInvoices(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

// =============================================================================
// ENGINE ON SQLITE
// =============================================================================

func TestSQLite_AccountingScenario(t *testing.T) {
	// GIVEN: A Quarterly 1600 policy stored in SQLite
	// WHEN: Opening accounting, paying 400 at the effective date
	// THEN: Balance behaves exactly as on the memory store

	s := newTestStore(t)
	ctx := context.Background()

	p := seedPolicy(t, s, "p1")
	p.EffectiveDate = billing.NewDate(2015, time.February, 1)
	p.AnnualPremium = billing.MoneyFromInt(1600)
	p.Schedule = billing.ScheduleQuarterly
	require.NoError(t, s.SavePolicy(ctx, p))

	clock := billing.FixedClock{Date: billing.NewDate(2015, time.June, 1)}
	acct, err := billing.OpenAccounting(ctx, s, clock, p.ID)
	require.NoError(t, err)

	invoices, err := acct.Invoices(ctx)
	require.NoError(t, err)
	assert.Len(t, invoices, 4)

	_, err = acct.MakePayment(ctx, billing.PaymentInput{
		Date:   billing.NewDate(2015, time.February, 1),
		Amount: billing.MoneyFromInt(400),
	})
	require.NoError(t, err)

	balance, err := acct.Balance(ctx, billing.NewDate(2015, time.February, 1))
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	balance, err = acct.Balance(ctx, billing.NewDate(2015, time.May, 1))
	require.NoError(t, err)
	assert.Equal(t, "400", balance.String())
}

func TestSQLite_Reset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedPolicy(t, s, "p1")

	require.NoError(t, s.Reset(ctx))

	got, err := s.GetPolicy(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
