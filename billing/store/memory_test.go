package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/policy-billing/billing"
	"github.com/warp/policy-billing/billing/store"
)

func testPolicy(id string) *billing.Policy {
	return &billing.Policy{
		ID:            billing.PolicyID(id),
		Number:        "P-" + id,
		EffectiveDate: billing.NewDate(2015, time.January, 1),
		AnnualPremium: billing.MoneyFromInt(1200),
		Schedule:      billing.ScheduleMonthly,
		Status:        billing.PolicyActive,
	}
}

func testInvoice(id, policyID string, bill billing.Date) billing.Invoice {
	due := bill.AddMonths(1)
	return billing.Invoice{
		ID:         billing.InvoiceID(id),
		PolicyID:   billing.PolicyID(policyID),
		BillDate:   bill,
		DueDate:    due,
		CancelDate: due.AddDays(14),
		AmountDue:  billing.MoneyFromInt(100),
		Active:     true,
	}
}

func TestMemory_PolicyRoundTrip(t *testing.T) {
	// GIVEN: A saved policy
	// WHEN: Reading it back and listing
	// THEN: The copy matches and unknown ids return nil, nil

	m := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.SavePolicy(ctx, testPolicy("p1")))

	got, err := m.GetPolicy(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "P-p1", got.Number)

	missing, err := m.GetPolicy(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMemory_InvoicesOrderedByBillDate(t *testing.T) {
	// GIVEN: Invoices inserted out of order
	// WHEN: Reading them back
	// THEN: They come out bill-date ascending

	m := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.InsertInvoices(ctx, []billing.Invoice{
		testInvoice("i3", "p1", billing.NewDate(2015, time.March, 1)),
		testInvoice("i1", "p1", billing.NewDate(2015, time.January, 1)),
		testInvoice("i2", "p1", billing.NewDate(2015, time.February, 1)),
	}))

	invoices, err := m.InvoicesByPolicy(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, invoices, 3)
	assert.Equal(t, billing.InvoiceID("i1"), invoices[0].ID)
	assert.Equal(t, billing.InvoiceID("i2"), invoices[1].ID)
	assert.Equal(t, billing.InvoiceID("i3"), invoices[2].ID)
}

func TestMemory_DeactivateInvoices(t *testing.T) {
	// GIVEN: Two active invoices
	// WHEN: Deactivating the policy's invoices
	// THEN: ActiveInvoices is empty but the rows remain

	m := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.InsertInvoices(ctx, []billing.Invoice{
		testInvoice("i1", "p1", billing.NewDate(2015, time.January, 1)),
		testInvoice("i2", "p1", billing.NewDate(2015, time.February, 1)),
	}))
	require.NoError(t, m.DeactivateInvoices(ctx, "p1"))

	active, err := m.ActiveInvoices(ctx, "p1")
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := m.InvoicesByPolicy(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMemory_WithTx_CommitsOnSuccess(t *testing.T) {
	// GIVEN: A transaction that deactivates and inserts
	// WHEN: The function returns nil
	// THEN: Both effects are visible afterwards

	m := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.InsertInvoices(ctx, []billing.Invoice{
		testInvoice("old", "p1", billing.NewDate(2015, time.January, 1)),
	}))

	err := m.WithTx(ctx, func(s billing.Store) error {
		if err := s.DeactivateInvoices(ctx, "p1"); err != nil {
			return err
		}
		return s.InsertInvoices(ctx, []billing.Invoice{
			testInvoice("new", "p1", billing.NewDate(2015, time.January, 1)),
		})
	})
	require.NoError(t, err)

	active, err := m.ActiveInvoices(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, billing.InvoiceID("new"), active[0].ID)
}

func TestMemory_WithTx_RollsBackOnError(t *testing.T) {
	// GIVEN: A transaction that mutates then fails
	// WHEN: The function returns an error
	// THEN: No mutation survives

	m := store.NewMemory()
	ctx := context.Background()
	boom := errors.New("boom")

	require.NoError(t, m.InsertInvoices(ctx, []billing.Invoice{
		testInvoice("i1", "p1", billing.NewDate(2015, time.January, 1)),
	}))

	err := m.WithTx(ctx, func(s billing.Store) error {
		if err := s.DeactivateInvoices(ctx, "p1"); err != nil {
			return err
		}
		if err := s.InsertInvoices(ctx, []billing.Invoice{
			testInvoice("i2", "p1", billing.NewDate(2015, time.February, 1)),
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	active, err := m.ActiveInvoices(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, billing.InvoiceID("i1"), active[0].ID)

	all, err := m.InvoicesByPolicy(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMemory_PaymentsOrderedByTransactionDate(t *testing.T) {
	// GIVEN: Payments inserted out of order
	// WHEN: Reading them back
	// THEN: Earliest first

	m := store.NewMemory()
	ctx := context.Background()

	for _, p := range []billing.Payment{
		{ID: "pay2", PolicyID: "p1", ContactID: "c1", AmountPaid: billing.MoneyFromInt(100), TransactionDate: billing.NewDate(2015, time.March, 1)},
		{ID: "pay1", PolicyID: "p1", ContactID: "c1", AmountPaid: billing.MoneyFromInt(100), TransactionDate: billing.NewDate(2015, time.February, 1)},
	} {
		require.NoError(t, m.InsertPayment(ctx, p))
	}

	payments, err := m.PaymentsByPolicy(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, billing.PaymentID("pay1"), payments[0].ID)
	assert.Equal(t, billing.PaymentID("pay2"), payments[1].ID)
}
