/*
ledger.go - Invoice batch materialization and supersession

PURPOSE:
  The InvoiceLedger owns the set of invoices for a policy. Regenerating a
  schedule never removes rows: the current batch is marked inactive and a
  fresh batch is inserted, so the invoice history remains auditable.

CRITICAL INVARIANTS:
  1. At most one ACTIVE batch per policy, matching one schedule-calculator
     output set.
  2. Superseded rows are retained forever; the invoice count for a policy
     only grows.
  3. Deactivate + insert happen atomically (single store transaction).

RE-INVOCATION:
  Generate is safely re-invocable. Calling it twice with an unchanged
  schedule still supersedes the previous batch and writes a functionally
  identical new one. There is no dedup; balances are unaffected because the
  active totals are unchanged.
*/
package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// InvoiceLedger materializes and supersedes invoice batches for a policy.
type InvoiceLedger struct {
	store TxStore
}

func NewInvoiceLedger(store TxStore) *InvoiceLedger {
	return &InvoiceLedger{store: store}
}

// Generate marks every currently-active invoice for the policy inactive,
// runs the schedule calculator against the policy's current premium,
// schedule and effective date, and persists the new batch as active.
func (l *InvoiceLedger) Generate(ctx context.Context, policy *Policy) error {
	specs, err := ComputeSchedule(policy.AnnualPremium, policy.Schedule, policy.EffectiveDate)
	if err != nil {
		return err
	}

	batch := make([]Invoice, len(specs))
	for i, spec := range specs {
		batch[i] = Invoice{
			ID:         InvoiceID(uuid.NewString()),
			PolicyID:   policy.ID,
			BillDate:   spec.BillDate,
			DueDate:    spec.DueDate,
			CancelDate: spec.CancelDate,
			AmountDue:  spec.AmountDue,
			Active:     true,
		}
	}

	err = l.store.WithTx(ctx, func(s Store) error {
		if err := s.DeactivateInvoices(ctx, policy.ID); err != nil {
			return err
		}
		return s.InsertInvoices(ctx, batch)
	})
	if err != nil {
		return fmt.Errorf("generate invoices for policy %s: %w", policy.ID, err)
	}
	return nil
}

// HasInvoices reports whether any invoice rows exist for the policy,
// superseded ones included. Used by session open to decide whether the
// first batch needs generating.
func (l *InvoiceLedger) HasInvoices(ctx context.Context, id PolicyID) (bool, error) {
	invoices, err := l.store.InvoicesByPolicy(ctx, id)
	if err != nil {
		return false, err
	}
	return len(invoices) > 0, nil
}

// AllInvoices returns every invoice row for the policy, superseded ones
// included, ordered by bill date. Audit view.
func (l *InvoiceLedger) AllInvoices(ctx context.Context, id PolicyID) ([]Invoice, error) {
	return l.store.InvoicesByPolicy(ctx, id)
}

// ActiveInvoicesAsOf returns active invoices with bill date <= cutoff,
// ordered by bill date ascending.
func (l *InvoiceLedger) ActiveInvoicesAsOf(ctx context.Context, id PolicyID, cutoff Date) ([]Invoice, error) {
	active, err := l.store.ActiveInvoices(ctx, id)
	if err != nil {
		return nil, err
	}
	var result []Invoice
	for _, inv := range active {
		if inv.BillDate.BeforeOrEqual(cutoff) {
			result = append(result, inv)
		}
	}
	return result, nil
}

// InvoicesPastCancelDate returns active invoices whose cancel date has
// passed as of cutoff, ordered by bill date ascending.
func (l *InvoiceLedger) InvoicesPastCancelDate(ctx context.Context, id PolicyID, cutoff Date) ([]Invoice, error) {
	active, err := l.store.ActiveInvoices(ctx, id)
	if err != nil {
		return nil, err
	}
	var result []Invoice
	for _, inv := range active {
		if inv.CancelDate.BeforeOrEqual(cutoff) {
			result = append(result, inv)
		}
	}
	return result, nil
}
