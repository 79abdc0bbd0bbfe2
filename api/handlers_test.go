package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/policy-billing/api"
	"github.com/warp/policy-billing/billing"
	"github.com/warp/policy-billing/billing/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestServer(t *testing.T) (*httptest.Server, *store.Memory) {
	t.Helper()
	s := store.NewMemory()
	clock := billing.FixedClock{Date: billing.NewDate(2015, time.June, 1)}
	handler := api.NewHandler(s, clock)

	srv := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(srv.Close)
	return srv, s
}

func seedPolicy(t *testing.T, s *store.Memory, premium int64, schedule billing.BillingSchedule, effective billing.Date, insured billing.ContactID) billing.PolicyID {
	t.Helper()
	p := billing.Policy{
		ID:            billing.PolicyID(uuid.NewString()),
		Number:        "P-test",
		EffectiveDate: effective,
		AnnualPremium: billing.MoneyFromInt(premium),
		Schedule:      schedule,
		Status:        billing.PolicyActive,
		NamedInsured:  insured,
	}
	require.NoError(t, s.SavePolicy(context.Background(), &p))
	return p.ID
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// =============================================================================
// CONSULT ENDPOINT
// =============================================================================

func TestConsult_ReturnsBalanceAndInvoices(t *testing.T) {
	// GIVEN: A Monthly 1200 policy effective 2015-01-01
	// WHEN: Consulting as of 2015-03-01
	// THEN: total_balance is 300 and three invoices are listed

	srv, s := newTestServer(t)
	id := seedPolicy(t, s, 1200, billing.ScheduleMonthly, billing.NewDate(2015, time.January, 1), "c1")

	resp := postJSON(t, srv.URL+"/api/policies/"+string(id)+"/consult",
		api.ConsultRequest{Date: "2015-03-01"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[api.ConsultResponse](t, resp)
	assert.Equal(t, 300.0, body.TotalBalance)
	require.Len(t, body.Invoices, 3)
	assert.Equal(t, "2015-01-01", body.Invoices[0].BillDate)
	assert.Equal(t, 100.0, body.Invoices[0].AmountDue)
}

func TestConsult_UnknownPolicy_404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/policies/nope/consult", api.ConsultRequest{Date: "2015-03-01"})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// BALANCE ENDPOINT
// =============================================================================

func TestGetBalance_WithDateQuery(t *testing.T) {
	// GIVEN: A Quarterly 1600 policy effective 2015-02-01
	// WHEN: Requesting the balance at the second bill date
	// THEN: 800 (two unpaid installments)

	srv, s := newTestServer(t)
	id := seedPolicy(t, s, 1600, billing.ScheduleQuarterly, billing.NewDate(2015, time.February, 1), "c1")

	resp, err := http.Get(srv.URL + "/api/policies/" + string(id) + "/balance?date=2015-05-01")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[api.BalanceDTO](t, resp)
	assert.Equal(t, 800.0, body.Balance)
	assert.Equal(t, "2015-05-01", body.AsOf)
}

func TestGetBalance_BadDate_400(t *testing.T) {
	srv, s := newTestServer(t)
	id := seedPolicy(t, s, 1200, billing.ScheduleMonthly, billing.NewDate(2015, time.January, 1), "c1")

	resp, err := http.Get(srv.URL + "/api/policies/" + string(id) + "/balance?date=03-01-2015")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// PAYMENT ENDPOINT
// =============================================================================

func TestCreatePayment_DefaultsToNamedInsured(t *testing.T) {
	// GIVEN: A policy with a named insured
	// WHEN: Posting a payment without a contact id
	// THEN: 201 and the payment is attributed to the insured

	srv, s := newTestServer(t)
	id := seedPolicy(t, s, 1600, billing.ScheduleQuarterly, billing.NewDate(2015, time.February, 1), "c-anna")

	resp := postJSON(t, srv.URL+"/api/policies/"+string(id)+"/payments",
		api.CreatePaymentRequest{Date: "2015-02-01", Amount: 400})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	body := decode[api.PaymentDTO](t, resp)
	assert.Equal(t, "c-anna", body.ContactID)
	assert.Equal(t, 400.0, body.AmountPaid)
	assert.Equal(t, "2015-02-01", body.TransactionDate)
}

func TestCreatePayment_MissingPayer_422(t *testing.T) {
	// GIVEN: A policy with no named insured
	// WHEN: Posting a payment without a contact id
	// THEN: 422 and no payment is stored

	srv, s := newTestServer(t)
	id := seedPolicy(t, s, 365, billing.ScheduleAnnual, billing.NewDate(2015, time.January, 1), "")

	resp := postJSON(t, srv.URL+"/api/policies/"+string(id)+"/payments",
		api.CreatePaymentRequest{Amount: 100})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	payments, err := s.PaymentsByPolicy(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestCreatePayment_UnknownPolicy_404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/policies/nope/payments",
		api.CreatePaymentRequest{Amount: 100})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// POLICY ENDPOINTS
// =============================================================================

func TestCreatePolicy_ThenInvoicesGenerateOnFirstAccess(t *testing.T) {
	// GIVEN: A policy created over the API
	// WHEN: Listing its invoices for the first time
	// THEN: The schedule batch exists

	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/policies", api.CreatePolicyRequest{
		Number:          "Policy Ten",
		EffectiveDate:   "2015-01-01",
		AnnualPremium:   1200,
		BillingSchedule: "Monthly",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[api.PolicyDTO](t, resp)

	listResp, err := http.Get(srv.URL + "/api/policies/" + created.ID + "/invoices?date=2015-12-01")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, listResp.StatusCode)

	invoices := decode[[]api.InvoiceDTO](t, listResp)
	assert.Len(t, invoices, 12)
}

func TestCreatePolicy_InvalidSchedule_400(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/policies", api.CreatePolicyRequest{
		Number:          "Policy Bad",
		EffectiveDate:   "2015-01-01",
		AnnualPremium:   1200,
		BillingSchedule: "Weekly",
	})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// CANCELLATION ENDPOINTS
// =============================================================================

func TestEvaluateCancel_OverHTTP(t *testing.T) {
	// GIVEN: A Monthly policy with only the first installment paid
	// WHEN: Posting a cancellation evaluation at 2015-03-15
	// THEN: The returned policy is Canceled for lack of payment

	srv, s := newTestServer(t)
	id := seedPolicy(t, s, 1200, billing.ScheduleMonthly, billing.NewDate(2015, time.January, 1), "c1")

	resp := postJSON(t, srv.URL+"/api/policies/"+string(id)+"/payments",
		api.CreatePaymentRequest{Date: "2015-02-01", Amount: 100})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/policies/"+string(id)+"/cancellation",
		api.EvaluateCancelRequest{Date: "2015-03-15"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	policy := decode[api.PolicyDTO](t, resp)
	assert.Equal(t, "Canceled", policy.Status)
	assert.Equal(t, "Lack of payment", policy.CancelReason)
	require.NotNil(t, policy.CancelDate)
	assert.Equal(t, "2015-03-15", *policy.CancelDate)
}

func TestGetCancellationPending_OverHTTP(t *testing.T) {
	// GIVEN: An unpaid Monthly policy one day past its first due date
	// WHEN: Requesting the pending flag
	// THEN: pending is true

	srv, s := newTestServer(t)
	id := seedPolicy(t, s, 1200, billing.ScheduleMonthly, billing.NewDate(2015, time.January, 1), "c1")

	resp, err := http.Get(srv.URL + "/api/policies/" + string(id) + "/cancellation?date=2015-02-02")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode[api.CancellationPendingDTO](t, resp)
	assert.True(t, body.Pending)
}

// =============================================================================
// DEMO LOADER
// =============================================================================

func TestLoadDemo_SeedsPolicies(t *testing.T) {
	srv, s := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/demo/load", struct{}{})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	policies, err := s.ListPolicies(context.Background())
	require.NoError(t, err)
	assert.Len(t, policies, 3)

	contacts, err := s.ListContacts(context.Background())
	require.NoError(t, err)
	assert.Len(t, contacts, 6)
}
