/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY AND DATES:
  Amounts are serialized as JSON numbers of whole currency units; dates as
  YYYY-MM-DD strings. An omitted date means "today" on the server.
*/
package api

import (
	"github.com/warp/policy-billing/billing"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// ContactDTO represents an agent or named insured in API responses.
type ContactDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// CreateContactRequest is the request to create a contact.
type CreateContactRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// PolicyDTO represents a policy in API responses.
type PolicyDTO struct {
	ID              string  `json:"id"`
	Number          string  `json:"number"`
	EffectiveDate   string  `json:"effective_date"`
	AnnualPremium   float64 `json:"annual_premium"`
	BillingSchedule string  `json:"billing_schedule"`
	Status          string  `json:"status"`
	CancelDate      *string `json:"cancel_date,omitempty"`
	CancelReason    string  `json:"cancel_reason,omitempty"`
	NamedInsured    string  `json:"named_insured,omitempty"`
	Agent           string  `json:"agent,omitempty"`
}

// CreatePolicyRequest is the request to create a policy.
type CreatePolicyRequest struct {
	Number          string  `json:"number"`
	EffectiveDate   string  `json:"effective_date"`
	AnnualPremium   float64 `json:"annual_premium"`
	BillingSchedule string  `json:"billing_schedule"`
	NamedInsured    string  `json:"named_insured,omitempty"`
	Agent           string  `json:"agent,omitempty"`
}

// InvoiceDTO represents a single installment invoice.
type InvoiceDTO struct {
	ID         string  `json:"id"`
	BillDate   string  `json:"bill_date"`
	DueDate    string  `json:"due_date"`
	CancelDate string  `json:"cancel_date"`
	AmountDue  float64 `json:"amount_due"`
	Active     bool    `json:"active"`
}

// PaymentDTO represents a registered payment.
type PaymentDTO struct {
	ID              string  `json:"id"`
	PolicyID        string  `json:"policy_id"`
	ContactID       string  `json:"contact_id"`
	AmountPaid      float64 `json:"amount_paid"`
	TransactionDate string  `json:"transaction_date"`
}

// CreatePaymentRequest is the request to register a payment. ContactID
// defaults to the policy's named insured; Date defaults to today.
type CreatePaymentRequest struct {
	ContactID string  `json:"contact_id,omitempty"`
	Date      string  `json:"date,omitempty"`
	Amount    float64 `json:"amount"`
}

// BalanceDTO is the outstanding balance as of a date.
type BalanceDTO struct {
	PolicyID string  `json:"policy_id"`
	AsOf     string  `json:"as_of"`
	Balance  float64 `json:"balance"`
}

// CancellationPendingDTO reports the pending-cancellation flag.
type CancellationPendingDTO struct {
	PolicyID string `json:"policy_id"`
	AsOf     string `json:"as_of"`
	Pending  bool   `json:"pending"`
}

// EvaluateCancelRequest drives a cancellation evaluation. A non-empty
// reason cancels unconditionally (e.g., an underwriting decision).
type EvaluateCancelRequest struct {
	Date   string `json:"date,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// ConsultRequest asks for a policy's standing as of a date.
type ConsultRequest struct {
	Date string `json:"date"`
}

// ConsultResponse bundles the balance with the billed active invoices,
// the shape the policy-consultation screen renders.
type ConsultResponse struct {
	TotalBalance float64      `json:"total_balance"`
	Invoices     []InvoiceDTO `json:"invoices"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// DOMAIN -> DTO CONVERSION
// =============================================================================

func toPolicyDTO(p *billing.Policy) PolicyDTO {
	dto := PolicyDTO{
		ID:              string(p.ID),
		Number:          p.Number,
		EffectiveDate:   p.EffectiveDate.String(),
		AnnualPremium:   p.AnnualPremium.InexactFloat64(),
		BillingSchedule: string(p.Schedule),
		Status:          string(p.Status),
		CancelReason:    p.CancelReason,
		NamedInsured:    string(p.NamedInsured),
		Agent:           string(p.Agent),
	}
	if p.CancelDate != nil {
		s := p.CancelDate.String()
		dto.CancelDate = &s
	}
	return dto
}

func toInvoiceDTO(inv billing.Invoice) InvoiceDTO {
	return InvoiceDTO{
		ID:         string(inv.ID),
		BillDate:   inv.BillDate.String(),
		DueDate:    inv.DueDate.String(),
		CancelDate: inv.CancelDate.String(),
		AmountDue:  inv.AmountDue.InexactFloat64(),
		Active:     inv.Active,
	}
}

func toPaymentDTO(p billing.Payment) PaymentDTO {
	return PaymentDTO{
		ID:              string(p.ID),
		PolicyID:        string(p.PolicyID),
		ContactID:       string(p.ContactID),
		AmountPaid:      p.AmountPaid.InexactFloat64(),
		TransactionDate: p.TransactionDate.String(),
	}
}

func toContactDTO(c billing.Contact) ContactDTO {
	return ContactDTO{
		ID:   string(c.ID),
		Name: c.Name,
		Role: string(c.Role),
	}
}
