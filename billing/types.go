/*
Package billing provides the core policy accounting engine.

PURPOSE:
  This package contains the types and algorithms for insurance-policy
  billing: generating invoice schedules from an annual premium, computing
  outstanding balances from the invoice/payment history, and evaluating
  cancellation for non-payment.

KEY CONCEPTS IN THIS FILE (types.go):
  - Policy: The insured contract (premium, schedule, Active/Canceled status)
  - Invoice: A single installment obligation with bill/due/cancel dates
  - Payment: Money received against a policy's aggregate balance
  - Contact: An agent or named insured, weakly referenced by ID

DESIGN PRINCIPLES:
  1. Supersession, not deletion: invoices made obsolete by a schedule change
     are marked inactive and kept forever (audit trail)
  2. Precision: all money uses decimal.Decimal, whole currency units
  3. Payments are policy-level: they reduce the aggregate balance, never a
     specific invoice
  4. Cancellation is terminal: Active -> Canceled happens at most once

SEE ALSO:
  - schedule.go: Invoice schedule generation
  - ledger.go: Invoice batch materialization and supersession
  - balance.go: Balance calculation
  - cancellation.go: Cancellation state machine
*/
package billing

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Whole-currency-unit amounts
// =============================================================================

// MoneyFromInt builds a whole-currency-unit amount.
func MoneyFromInt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// MustMoney parses a decimal string, returning zero on failure.
// Only for trusted inputs (storage round-trips, fixtures).
func MustMoney(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PolicyID string
type InvoiceID string
type PaymentID string
type ContactID string

// =============================================================================
// BILLING SCHEDULE - Installment cadence
// =============================================================================

// BillingSchedule is the enumerated installment plan for a policy.
type BillingSchedule string

const (
	ScheduleAnnual    BillingSchedule = "Annual"
	ScheduleTwoPay    BillingSchedule = "Two-Pay"
	ScheduleQuarterly BillingSchedule = "Quarterly"
	ScheduleMonthly   BillingSchedule = "Monthly"
)

// Installments returns the number of invoices a schedule produces.
func (s BillingSchedule) Installments() (int, error) {
	switch s {
	case ScheduleAnnual:
		return 1, nil
	case ScheduleTwoPay:
		return 2, nil
	case ScheduleQuarterly:
		return 4, nil
	case ScheduleMonthly:
		return 12, nil
	default:
		return 0, &InvalidScheduleError{Schedule: s}
	}
}

// MonthStep returns the number of months between consecutive bill dates.
func (s BillingSchedule) MonthStep() (int, error) {
	n, err := s.Installments()
	if err != nil {
		return 0, err
	}
	return 12 / n, nil
}

// =============================================================================
// POLICY
// =============================================================================

type PolicyStatus string

const (
	PolicyActive   PolicyStatus = "Active"
	PolicyCanceled PolicyStatus = "Canceled"
)

// Policy is the insured contract the engine accounts for.
//
// INVARIANT: Status is Canceled iff CancelDate and CancelReason are both set.
// Use Cancel() to transition; never set the fields directly.
type Policy struct {
	ID            PolicyID
	Number        string
	EffectiveDate Date
	AnnualPremium decimal.Decimal
	Schedule      BillingSchedule
	Status        PolicyStatus
	CancelDate    *Date
	CancelReason  string

	// Weak references by identifier only. Either may be empty.
	NamedInsured ContactID
	Agent        ContactID
}

// Canceled reports whether the policy has reached its terminal state.
func (p *Policy) Canceled() bool {
	return p.Status == PolicyCanceled
}

// Cancel transitions the policy to Canceled. The transition is terminal:
// calling Cancel on an already-canceled policy is a no-op.
func (p *Policy) Cancel(on Date, reason string) {
	if p.Canceled() {
		return
	}
	p.Status = PolicyCanceled
	p.CancelDate = &on
	p.CancelReason = reason
}

// =============================================================================
// INVOICE
// =============================================================================

// Invoice is a single installment obligation.
//
// An invoice superseded by schedule regeneration is marked inactive and is
// permanently excluded from balance and cancellation computations. Rows are
// never physically removed.
type Invoice struct {
	ID         InvoiceID
	PolicyID   PolicyID
	BillDate   Date
	DueDate    Date // BillDate + 1 month
	CancelDate Date // DueDate + 14 days
	AmountDue  decimal.Decimal
	Active     bool
}

// =============================================================================
// PAYMENT
// =============================================================================

// Payment is money received against a policy. There is no linkage to a
// specific invoice: payments reduce the policy's aggregate balance.
type Payment struct {
	ID              PaymentID
	PolicyID        PolicyID
	ContactID       ContactID
	AmountPaid      decimal.Decimal
	TransactionDate Date
}

// =============================================================================
// CONTACT
// =============================================================================

type ContactRole string

const (
	RoleAgent        ContactRole = "Agent"
	RoleNamedInsured ContactRole = "Named Insured"
)

// Contact is an agent or named insured. Policies and payments reference
// contacts by ID only; there is no ownership relationship.
type Contact struct {
	ID   ContactID
	Name string
	Role ContactRole
}
