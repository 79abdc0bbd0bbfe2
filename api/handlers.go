/*
handlers.go - HTTP API handlers for the policy billing system

PURPOSE:
  Exposes the billing engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Policies:
    GET    /api/policies                      List all policies
    POST   /api/policies                      Create policy
    GET    /api/policies/{id}                 Get policy details
    GET    /api/policies/{id}/balance         Balance as of ?date=
    GET    /api/policies/{id}/invoices        Active invoices (?date=, ?all=true for full history)
    POST   /api/policies/{id}/invoices/regenerate  Supersede the active batch
    GET    /api/policies/{id}/payments        Payment history
    POST   /api/policies/{id}/payments        Register a payment
    POST   /api/policies/{id}/consult         Balance + billed invoices as of a date
    GET    /api/policies/{id}/cancellation    Pending-cancellation flag (?date=)
    POST   /api/policies/{id}/cancellation    Evaluate (and maybe perform) cancellation

  Contacts:
    GET    /api/contacts                      List contacts
    POST   /api/contacts                      Create contact

  Demo:
    POST   /api/demo/load                     Load demo policies and contacts

REQUEST FLOW:
  1. Parse HTTP request
  2. Open an accounting session for the policy (generates invoices on first access)
  3. Call domain logic (ledger, balance, cancellation)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed JSON, bad dates, invalid schedules
  - 404: Policy or contact not found
  - 422: Valid request the engine refuses (missing payer, bad amount)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo data loader
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/policy-billing/billing"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store billing.TxStore
	Clock billing.Clock
}

// NewHandler creates a new handler with the given store. A nil clock
// defaults to the system clock.
func NewHandler(store billing.TxStore, clock billing.Clock) *Handler {
	if clock == nil {
		clock = billing.SystemClock{}
	}
	return &Handler{Store: store, Clock: clock}
}

// open binds an accounting session to the policy in the URL. Writes the
// error response and returns nil when the session cannot be opened.
func (h *Handler) open(w http.ResponseWriter, r *http.Request) *billing.Accounting {
	id := billing.PolicyID(chi.URLParam(r, "id"))

	acct, err := billing.OpenAccounting(r.Context(), h.Store, h.Clock, id)
	if err != nil {
		if billing.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "Policy not found", err)
		} else {
			writeError(w, http.StatusInternalServerError, "Failed to open policy accounting", err)
		}
		return nil
	}
	return acct
}

// parseDate parses an optional YYYY-MM-DD value. Empty means the zero
// Date, which the engine resolves to today. Writes 400 and reports false
// on a malformed value.
func parseDate(w http.ResponseWriter, value string) (billing.Date, bool) {
	if value == "" {
		return billing.Date{}, true
	}
	d, err := billing.ParseDate(value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date, expected YYYY-MM-DD", err)
		return billing.Date{}, false
	}
	return d, true
}

// =============================================================================
// POLICY HANDLERS
// =============================================================================

// ListPolicies returns all policies.
func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.Store.ListPolicies(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list policies", err)
		return
	}

	dtos := make([]PolicyDTO, len(policies))
	for i := range policies {
		dtos[i] = toPolicyDTO(&policies[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPolicy returns a single policy.
func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	id := billing.PolicyID(chi.URLParam(r, "id"))

	policy, err := h.Store.GetPolicy(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get policy", err)
		return
	}
	if policy == nil {
		writeError(w, http.StatusNotFound, "Policy not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTO(policy))
}

// CreatePolicy creates a new policy. Invoices are generated lazily on the
// first accounting access, not here.
func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	var req CreatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	effective, err := billing.ParseDate(req.EffectiveDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid effective_date, expected YYYY-MM-DD", err)
		return
	}

	schedule := billing.BillingSchedule(req.BillingSchedule)
	if _, err := schedule.Installments(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid billing_schedule", err)
		return
	}

	policy := &billing.Policy{
		ID:            billing.PolicyID(uuid.NewString()),
		Number:        req.Number,
		EffectiveDate: effective,
		AnnualPremium: decimal.NewFromFloat(req.AnnualPremium),
		Schedule:      schedule,
		Status:        billing.PolicyActive,
		NamedInsured:  billing.ContactID(req.NamedInsured),
		Agent:         billing.ContactID(req.Agent),
	}
	if err := h.Store.SavePolicy(r.Context(), policy); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create policy", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPolicyDTO(policy))
}

// =============================================================================
// BALANCE AND INVOICE HANDLERS
// =============================================================================

// GetBalance returns the outstanding balance as of ?date= (default today).
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	acct := h.open(w, r)
	if acct == nil {
		return
	}
	asOf, ok := parseDate(w, r.URL.Query().Get("date"))
	if !ok {
		return
	}

	balance, err := acct.Balance(r.Context(), asOf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute balance", err)
		return
	}

	resolved := asOf
	if resolved.IsZero() {
		resolved = h.Clock.Today()
	}
	writeJSON(w, http.StatusOK, BalanceDTO{
		PolicyID: string(acct.Policy().ID),
		AsOf:     resolved.String(),
		Balance:  balance.InexactFloat64(),
	})
}

// ListInvoices returns the active invoices billed by ?date= (default
// today). With ?all=true the full history is returned, superseded batches
// included.
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	acct := h.open(w, r)
	if acct == nil {
		return
	}

	var (
		invoices []billing.Invoice
		err      error
	)
	if r.URL.Query().Get("all") == "true" {
		invoices, err = acct.Invoices(r.Context())
	} else {
		asOf, ok := parseDate(w, r.URL.Query().Get("date"))
		if !ok {
			return
		}
		invoices, err = acct.ActiveInvoices(r.Context(), asOf)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list invoices", err)
		return
	}

	dtos := make([]InvoiceDTO, len(invoices))
	for i, inv := range invoices {
		dtos[i] = toInvoiceDTO(inv)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RegenerateInvoices supersedes the active invoice batch with a fresh one.
func (h *Handler) RegenerateInvoices(w http.ResponseWriter, r *http.Request) {
	acct := h.open(w, r)
	if acct == nil {
		return
	}

	if err := acct.RegenerateInvoices(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to regenerate invoices", err)
		return
	}

	invoices, err := acct.Invoices(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list invoices", err)
		return
	}
	dtos := make([]InvoiceDTO, len(invoices))
	for i, inv := range invoices {
		dtos[i] = toInvoiceDTO(inv)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Consult returns the balance together with the billed active invoices as
// of the requested date, the shape the policy-consultation screen needs.
func (h *Handler) Consult(w http.ResponseWriter, r *http.Request) {
	acct := h.open(w, r)
	if acct == nil {
		return
	}

	var req ConsultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	asOf, ok := parseDate(w, req.Date)
	if !ok {
		return
	}

	balance, err := acct.Balance(r.Context(), asOf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute balance", err)
		return
	}
	invoices, err := acct.ActiveInvoices(r.Context(), asOf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list invoices", err)
		return
	}

	dtos := make([]InvoiceDTO, len(invoices))
	for i, inv := range invoices {
		dtos[i] = toInvoiceDTO(inv)
	}
	writeJSON(w, http.StatusOK, ConsultResponse{
		TotalBalance: balance.InexactFloat64(),
		Invoices:     dtos,
	})
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// ListPayments returns the policy's payment history, earliest first.
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	acct := h.open(w, r)
	if acct == nil {
		return
	}

	payments, err := acct.Payments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list payments", err)
		return
	}
	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePayment registers a payment. The payer defaults to the policy's
// named insured; a payment with no resolvable payer is rejected with 422
// and nothing is written.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	acct := h.open(w, r)
	if acct == nil {
		return
	}

	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, ok := parseDate(w, req.Date)
	if !ok {
		return
	}

	payment, err := acct.MakePayment(r.Context(), billing.PaymentInput{
		ContactID: billing.ContactID(req.ContactID),
		Date:      date,
		Amount:    decimal.NewFromFloat(req.Amount),
	})
	if err != nil {
		if billing.IsClientError(err) {
			writeError(w, http.StatusUnprocessableEntity, "Payment rejected", err)
		} else {
			writeError(w, http.StatusInternalServerError, "Failed to register payment", err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentDTO(*payment))
}

// =============================================================================
// CANCELLATION HANDLERS
// =============================================================================

// GetCancellationPending reports whether the policy is pending
// cancellation due to non-payment as of ?date= (default today).
func (h *Handler) GetCancellationPending(w http.ResponseWriter, r *http.Request) {
	acct := h.open(w, r)
	if acct == nil {
		return
	}
	asOf, ok := parseDate(w, r.URL.Query().Get("date"))
	if !ok {
		return
	}

	pending, err := acct.CancellationPending(r.Context(), asOf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to evaluate pending cancellation", err)
		return
	}

	resolved := asOf
	if resolved.IsZero() {
		resolved = h.Clock.Today()
	}
	writeJSON(w, http.StatusOK, CancellationPendingDTO{
		PolicyID: string(acct.Policy().ID),
		AsOf:     resolved.String(),
		Pending:  pending,
	})
}

// EvaluateCancel evaluates (and possibly performs) the cancellation of a
// policy as of the requested date. A non-empty reason cancels
// unconditionally. Returns the policy in its post-evaluation state.
func (h *Handler) EvaluateCancel(w http.ResponseWriter, r *http.Request) {
	acct := h.open(w, r)
	if acct == nil {
		return
	}

	var req EvaluateCancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	asOf, ok := parseDate(w, req.Date)
	if !ok {
		return
	}

	if err := acct.EvaluateCancel(r.Context(), asOf, req.Reason); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to evaluate cancellation", err)
		return
	}
	writeJSON(w, http.StatusOK, toPolicyDTO(acct.Policy()))
}

// =============================================================================
// CONTACT HANDLERS
// =============================================================================

// ListContacts returns all contacts.
func (h *Handler) ListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.Store.ListContacts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list contacts", err)
		return
	}
	dtos := make([]ContactDTO, len(contacts))
	for i, c := range contacts {
		dtos[i] = toContactDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateContact creates a new contact.
func (h *Handler) CreateContact(w http.ResponseWriter, r *http.Request) {
	var req CreateContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Role != string(billing.RoleAgent) && req.Role != string(billing.RoleNamedInsured) {
		writeError(w, http.StatusBadRequest, "Role must be Agent or Named Insured", nil)
		return
	}

	contact := &billing.Contact{
		ID:   billing.ContactID(uuid.NewString()),
		Name: req.Name,
		Role: billing.ContactRole(req.Role),
	}
	if err := h.Store.SaveContact(r.Context(), contact); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create contact", err)
		return
	}
	writeJSON(w, http.StatusCreated, toContactDTO(*contact))
}

// =============================================================================
// DEMO HANDLERS
// =============================================================================

// LoadDemo loads the demo contacts, policies and payments.
func (h *Handler) LoadDemo(w http.ResponseWriter, r *http.Request) {
	if err := LoadDemoData(r.Context(), h.Store, h.Clock); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load demo data", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded"})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
