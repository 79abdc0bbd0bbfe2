/*
accounting.go - Per-policy accounting session

PURPOSE:
  The Accounting session is the front door of the engine: a caller opens a
  session for a policy id and gets balance, payment, regeneration and
  cancellation operations bound to that policy.

FIRST ACCESS:
  Opening a session for a policy that has no invoice rows at all generates
  the first batch from the policy's billing schedule.

DATE DEFAULTS:
  Every operation takes an as-of cursor date; the zero Date defaults to the
  injected clock's today. The engine never reads the wall clock itself.

CONSISTENCY:
  One session serves one policy, synchronously. Callers must not interleave
  a schedule regeneration with a concurrent balance read on the same policy
  without external serialization; the store's transaction keeps the
  deactivate+insert pair atomic, the session does not add its own locking.
*/
package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Accounting is an accounting session bound to a single policy.
type Accounting struct {
	store  TxStore
	clock  Clock
	policy *Policy

	ledger  *InvoiceLedger
	balance *BalanceCalculator
	cancel  *CancellationEvaluator
}

// OpenAccounting loads the policy and binds a session to it. If the policy
// has no invoices yet, the first batch is generated from its billing
// schedule. Returns ErrPolicyNotFound for an unknown id.
func OpenAccounting(ctx context.Context, store TxStore, clock Clock, id PolicyID) (*Accounting, error) {
	policy, err := store.GetPolicy(ctx, id)
	if err != nil {
		return nil, err
	}
	if policy == nil {
		return nil, fmt.Errorf("open accounting for %s: %w", id, ErrPolicyNotFound)
	}

	a := &Accounting{
		store:   store,
		clock:   clock,
		policy:  policy,
		ledger:  NewInvoiceLedger(store),
		balance: NewBalanceCalculator(store),
		cancel:  NewCancellationEvaluator(store),
	}

	exists, err := a.ledger.HasInvoices(ctx, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := a.ledger.Generate(ctx, policy); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Policy returns the session's policy record.
func (a *Accounting) Policy() *Policy {
	return a.policy
}

// asOfOrToday resolves the zero Date to the clock's today.
func (a *Accounting) asOfOrToday(asOf Date) Date {
	if asOf.IsZero() {
		return a.clock.Today()
	}
	return asOf
}

// Balance returns the outstanding balance as of the cutoff date (zero
// Date = today). Negative means overpayment/credit.
func (a *Accounting) Balance(ctx context.Context, asOf Date) (decimal.Decimal, error) {
	return a.balance.Balance(ctx, a.policy.ID, a.asOfOrToday(asOf))
}

// PaymentInput carries the optional fields of a payment registration.
// ContactID defaults to the policy's named insured; Date defaults to today.
type PaymentInput struct {
	ContactID ContactID
	Date      Date
	Amount    decimal.Decimal
}

// MakePayment registers a payment against the policy's aggregate balance.
// Returns ErrMissingPayer (and writes nothing) when no contact id is
// resolvable, and ErrInvalidAmount for a non-positive amount.
func (a *Accounting) MakePayment(ctx context.Context, in PaymentInput) (*Payment, error) {
	payer := in.ContactID
	if payer == "" {
		payer = a.policy.NamedInsured
	}
	if payer == "" {
		return nil, ErrMissingPayer
	}
	if !in.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	payment := Payment{
		ID:              PaymentID(uuid.NewString()),
		PolicyID:        a.policy.ID,
		ContactID:       payer,
		AmountPaid:      in.Amount,
		TransactionDate: a.asOfOrToday(in.Date),
	}
	if err := a.store.InsertPayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("register payment on policy %s: %w", a.policy.ID, err)
	}
	return &payment, nil
}

// RegenerateInvoices supersedes the active invoice batch with a fresh one
// computed from the policy's current premium and schedule.
func (a *Accounting) RegenerateInvoices(ctx context.Context) error {
	return a.ledger.Generate(ctx, a.policy)
}

// Invoices returns every invoice row for the policy, superseded batches
// included, ordered by bill date.
func (a *Accounting) Invoices(ctx context.Context) ([]Invoice, error) {
	return a.ledger.AllInvoices(ctx, a.policy.ID)
}

// ActiveInvoices returns the active invoices billed on or before the
// cutoff date (zero Date = today).
func (a *Accounting) ActiveInvoices(ctx context.Context, asOf Date) ([]Invoice, error) {
	return a.ledger.ActiveInvoicesAsOf(ctx, a.policy.ID, a.asOfOrToday(asOf))
}

// Payments returns the policy's payment history, earliest first.
func (a *Accounting) Payments(ctx context.Context) ([]Payment, error) {
	return a.store.PaymentsByPolicy(ctx, a.policy.ID)
}

// CancellationPending reports whether the policy is pending cancellation
// due to non-payment as of the cutoff date (zero Date = today).
func (a *Accounting) CancellationPending(ctx context.Context, asOf Date) (bool, error) {
	return a.cancel.PendingDueToNonPay(ctx, a.policy, a.asOfOrToday(asOf))
}

// EvaluateCancel evaluates and possibly performs the Active -> Canceled
// transition as of the cutoff date (zero Date = today). A non-empty reason
// cancels unconditionally.
func (a *Accounting) EvaluateCancel(ctx context.Context, asOf Date, reason string) error {
	return a.cancel.EvaluateCancel(ctx, a.policy, a.asOfOrToday(asOf), reason)
}
