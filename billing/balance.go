/*
balance.go - Outstanding balance calculation

PURPOSE:
  Computes what a policy owes as of a cursor date. This is the central
  calculation that answers "how much is due?".

THE CALCULATION:
  balance(asOf) = sum of active invoice amounts with bill_date <= asOf
                - sum of payments with transaction_date <= asOf

  The result can be negative: that is an overpayment/credit, not an error.
  Superseded invoices never count. Payments always count in aggregate;
  they are not tied to individual invoices.
*/
package billing

import (
	"context"

	"github.com/shopspring/decimal"
)

// BalanceCalculator computes outstanding balances from the invoice ledger
// and payment history.
type BalanceCalculator struct {
	ledger *InvoiceLedger
	store  Store
}

func NewBalanceCalculator(store TxStore) *BalanceCalculator {
	return &BalanceCalculator{ledger: NewInvoiceLedger(store), store: store}
}

// Balance returns the policy's outstanding balance as of the cutoff date.
func (bc *BalanceCalculator) Balance(ctx context.Context, id PolicyID, asOf Date) (decimal.Decimal, error) {
	invoices, err := bc.ledger.ActiveInvoicesAsOf(ctx, id, asOf)
	if err != nil {
		return decimal.Zero, err
	}

	due := decimal.Zero
	for _, inv := range invoices {
		due = due.Add(inv.AmountDue)
	}

	payments, err := bc.store.PaymentsByPolicy(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	for _, p := range payments {
		if p.TransactionDate.BeforeOrEqual(asOf) {
			due = due.Sub(p.AmountPaid)
		}
	}
	return due, nil
}

// balanceThroughBill is the restricted balance used by the cancellation
// evaluator: obligations are capped at invoices billed on or before
// billCutoff, while payments count through payCutoff.
func (bc *BalanceCalculator) balanceThroughBill(ctx context.Context, id PolicyID, billCutoff, payCutoff Date) (decimal.Decimal, error) {
	invoices, err := bc.ledger.ActiveInvoicesAsOf(ctx, id, billCutoff)
	if err != nil {
		return decimal.Zero, err
	}

	due := decimal.Zero
	for _, inv := range invoices {
		due = due.Add(inv.AmountDue)
	}

	payments, err := bc.store.PaymentsByPolicy(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	for _, p := range payments {
		if p.TransactionDate.BeforeOrEqual(payCutoff) {
			due = due.Sub(p.AmountPaid)
		}
	}
	return due, nil
}
