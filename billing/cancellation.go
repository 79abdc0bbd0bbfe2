/*
cancellation.go - Cancellation-pending checks and the Active -> Canceled transition

PURPOSE:
  Determines when a policy should be flagged or canceled for non-payment.
  Two states: Active and Canceled (terminal). The transition fires only
  through EvaluateCancel and happens at most once.

PENDING vs. CANCELED:
  An invoice past its due date but still inside its 14-day grace window
  makes the policy cancellation-PENDING if the matured obligations are
  unpaid. Only once a cancel date has passed with a positive remainder does
  the policy actually cancel.

EXPLICIT CANCELLATION:
  EvaluateCancel with a reason cancels immediately regardless of payment
  state (underwriting decisions and the like).
*/
package billing

import (
	"context"
	"fmt"
)

// ReasonLackOfPayment is the cancel reason recorded on the non-payment path.
const ReasonLackOfPayment = "Lack of payment"

// CancellationEvaluator drives the policy status state machine.
type CancellationEvaluator struct {
	store   TxStore
	ledger  *InvoiceLedger
	balance *BalanceCalculator
}

func NewCancellationEvaluator(store TxStore) *CancellationEvaluator {
	return &CancellationEvaluator{
		store:   store,
		ledger:  NewInvoiceLedger(store),
		balance: NewBalanceCalculator(store),
	}
}

// PendingDueToNonPay reports whether an active invoice has passed its due
// date without being paid in full, while its grace period has not yet
// expired (dueDate < cutoff <= cancelDate).
//
// The balance check is restricted to invoices billed on or before the
// earliest such invoice's bill date: a just-billed later invoice must not
// flag the policy before its own due date.
func (ce *CancellationEvaluator) PendingDueToNonPay(ctx context.Context, policy *Policy, cutoff Date) (bool, error) {
	if policy.Canceled() {
		return false, nil
	}

	active, err := ce.store.ActiveInvoices(ctx, policy.ID)
	if err != nil {
		return false, err
	}

	// Earliest invoice inside its grace window. Store ordering is bill
	// date ascending, so the first hit is the earliest.
	var overdue *Invoice
	for i := range active {
		inv := &active[i]
		if inv.DueDate.Before(cutoff) && cutoff.BeforeOrEqual(inv.CancelDate) {
			overdue = inv
			break
		}
	}
	if overdue == nil {
		return false, nil
	}

	remaining, err := ce.balance.balanceThroughBill(ctx, policy.ID, overdue.BillDate, cutoff)
	if err != nil {
		return false, err
	}
	return remaining.IsPositive(), nil
}

// EvaluateCancel evaluates whether the policy should transition to
// Canceled as of the cutoff date, and performs the transition if so.
//
// With an explicit reason the policy cancels immediately, regardless of
// payment state. Otherwise the non-payment rule applies: active invoices
// whose cancel date has passed are summed, payments strictly before the
// latest such cancel date are subtracted, and a positive remainder cancels
// the policy with reason "Lack of payment".
//
// Idempotent: once Canceled the policy is terminal and subsequent calls
// are no-ops.
func (ce *CancellationEvaluator) EvaluateCancel(ctx context.Context, policy *Policy, cutoff Date, reason string) error {
	if policy.Canceled() {
		return nil
	}

	if reason != "" {
		return ce.cancel(ctx, policy, cutoff, reason)
	}

	matured, err := ce.ledger.InvoicesPastCancelDate(ctx, policy.ID, cutoff)
	if err != nil {
		return err
	}
	if len(matured) == 0 {
		return nil
	}

	owed := MoneyFromInt(0)
	for _, inv := range matured {
		owed = owed.Add(inv.AmountDue)
	}

	// Payments strictly before the latest matured cancel date count.
	latestCancel := matured[0].CancelDate
	for _, inv := range matured[1:] {
		if inv.CancelDate.After(latestCancel) {
			latestCancel = inv.CancelDate
		}
	}

	payments, err := ce.store.PaymentsByPolicy(ctx, policy.ID)
	if err != nil {
		return err
	}
	for _, p := range payments {
		if p.TransactionDate.Before(latestCancel) {
			owed = owed.Sub(p.AmountPaid)
		}
	}

	if !owed.IsPositive() {
		return nil
	}
	return ce.cancel(ctx, policy, cutoff, ReasonLackOfPayment)
}

func (ce *CancellationEvaluator) cancel(ctx context.Context, policy *Policy, on Date, reason string) error {
	policy.Cancel(on, reason)
	if err := ce.store.SavePolicy(ctx, policy); err != nil {
		return fmt.Errorf("persist cancellation of policy %s: %w", policy.ID, err)
	}
	return nil
}
