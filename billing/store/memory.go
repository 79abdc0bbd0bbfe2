// Package store provides billing.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/policy-billing/billing"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	policies map[billing.PolicyID]billing.Policy
	invoices map[billing.PolicyID][]billing.Invoice
	payments map[billing.PolicyID][]billing.Payment
	contacts map[billing.ContactID]billing.Contact
}

func NewMemory() *Memory {
	return &Memory{
		policies: make(map[billing.PolicyID]billing.Policy),
		invoices: make(map[billing.PolicyID][]billing.Invoice),
		payments: make(map[billing.PolicyID][]billing.Payment),
		contacts: make(map[billing.ContactID]billing.Contact),
	}
}

// --- Policies ---

func (m *Memory) GetPolicy(_ context.Context, id billing.PolicyID) (*billing.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.policies[id]
	if !ok {
		return nil, nil
	}
	cp := p
	return &cp, nil
}

func (m *Memory) SavePolicy(_ context.Context, p *billing.Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[p.ID] = *p
	return nil
}

func (m *Memory) ListPolicies(_ context.Context) ([]billing.Policy, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]billing.Policy, 0, len(m.policies))
	for _, p := range m.policies {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Number < result[j].Number })
	return result, nil
}

// --- Invoices ---

func (m *Memory) InsertInvoices(_ context.Context, invoices []billing.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertInvoicesLocked(invoices)
	return nil
}

func (m *Memory) insertInvoicesLocked(invoices []billing.Invoice) {
	for _, inv := range invoices {
		rows := m.invoices[inv.PolicyID]
		// Insert keeping bill-date order.
		i := sort.Search(len(rows), func(i int) bool {
			return rows[i].BillDate.After(inv.BillDate)
		})
		rows = append(rows, billing.Invoice{})
		copy(rows[i+1:], rows[i:])
		rows[i] = inv
		m.invoices[inv.PolicyID] = rows
	}
}

func (m *Memory) InvoicesByPolicy(_ context.Context, id billing.PolicyID) ([]billing.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]billing.Invoice, len(m.invoices[id]))
	copy(result, m.invoices[id])
	return result, nil
}

func (m *Memory) ActiveInvoices(_ context.Context, id billing.PolicyID) ([]billing.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []billing.Invoice
	for _, inv := range m.invoices[id] {
		if inv.Active {
			result = append(result, inv)
		}
	}
	return result, nil
}

func (m *Memory) DeactivateInvoices(_ context.Context, id billing.PolicyID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deactivateInvoicesLocked(id)
	return nil
}

func (m *Memory) deactivateInvoicesLocked(id billing.PolicyID) {
	rows := m.invoices[id]
	for i := range rows {
		rows[i].Active = false
	}
}

// --- Payments ---

func (m *Memory) InsertPayment(_ context.Context, p billing.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertPaymentLocked(p)
	return nil
}

func (m *Memory) insertPaymentLocked(p billing.Payment) {
	rows := m.payments[p.PolicyID]
	i := sort.Search(len(rows), func(i int) bool {
		return rows[i].TransactionDate.After(p.TransactionDate)
	})
	rows = append(rows, billing.Payment{})
	copy(rows[i+1:], rows[i:])
	rows[i] = p
	m.payments[p.PolicyID] = rows
}

func (m *Memory) PaymentsByPolicy(_ context.Context, id billing.PolicyID) ([]billing.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]billing.Payment, len(m.payments[id]))
	copy(result, m.payments[id])
	return result, nil
}

// --- Contacts ---

func (m *Memory) GetContact(_ context.Context, id billing.ContactID) (*billing.Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.contacts[id]
	if !ok {
		return nil, nil
	}
	cp := c
	return &cp, nil
}

func (m *Memory) SaveContact(_ context.Context, c *billing.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts[c.ID] = *c
	return nil
}

func (m *Memory) ListContacts(_ context.Context) ([]billing.Contact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]billing.Contact, 0, len(m.contacts))
	for _, c := range m.contacts {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// WithTx executes fn against a transactional view. For the memory store
// this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(_ context.Context, fn func(billing.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshot()
	view := &txView{parent: m}

	if err := fn(view); err != nil {
		m.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	policies map[billing.PolicyID]billing.Policy
	invoices map[billing.PolicyID][]billing.Invoice
	payments map[billing.PolicyID][]billing.Payment
	contacts map[billing.ContactID]billing.Contact
}

func (m *Memory) snapshot() memorySnapshot {
	s := memorySnapshot{
		policies: make(map[billing.PolicyID]billing.Policy, len(m.policies)),
		invoices: make(map[billing.PolicyID][]billing.Invoice, len(m.invoices)),
		payments: make(map[billing.PolicyID][]billing.Payment, len(m.payments)),
		contacts: make(map[billing.ContactID]billing.Contact, len(m.contacts)),
	}
	for k, v := range m.policies {
		s.policies[k] = v
	}
	for k, v := range m.invoices {
		s.invoices[k] = append([]billing.Invoice{}, v...)
	}
	for k, v := range m.payments {
		s.payments[k] = append([]billing.Payment{}, v...)
	}
	for k, v := range m.contacts {
		s.contacts[k] = v
	}
	return s
}

func (m *Memory) restore(s memorySnapshot) {
	m.policies = s.policies
	m.invoices = s.invoices
	m.payments = s.payments
	m.contacts = s.contacts
}

// txView operates on the parent's maps directly while the parent's lock is
// held by WithTx. Rollback is the parent restoring its snapshot.
type txView struct {
	parent *Memory
}

func (tv *txView) GetPolicy(_ context.Context, id billing.PolicyID) (*billing.Policy, error) {
	p, ok := tv.parent.policies[id]
	if !ok {
		return nil, nil
	}
	cp := p
	return &cp, nil
}

func (tv *txView) SavePolicy(_ context.Context, p *billing.Policy) error {
	tv.parent.policies[p.ID] = *p
	return nil
}

func (tv *txView) ListPolicies(ctx context.Context) ([]billing.Policy, error) {
	result := make([]billing.Policy, 0, len(tv.parent.policies))
	for _, p := range tv.parent.policies {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Number < result[j].Number })
	return result, nil
}

func (tv *txView) InsertInvoices(_ context.Context, invoices []billing.Invoice) error {
	tv.parent.insertInvoicesLocked(invoices)
	return nil
}

func (tv *txView) InvoicesByPolicy(_ context.Context, id billing.PolicyID) ([]billing.Invoice, error) {
	result := make([]billing.Invoice, len(tv.parent.invoices[id]))
	copy(result, tv.parent.invoices[id])
	return result, nil
}

func (tv *txView) ActiveInvoices(_ context.Context, id billing.PolicyID) ([]billing.Invoice, error) {
	var result []billing.Invoice
	for _, inv := range tv.parent.invoices[id] {
		if inv.Active {
			result = append(result, inv)
		}
	}
	return result, nil
}

func (tv *txView) DeactivateInvoices(_ context.Context, id billing.PolicyID) error {
	tv.parent.deactivateInvoicesLocked(id)
	return nil
}

func (tv *txView) InsertPayment(_ context.Context, p billing.Payment) error {
	tv.parent.insertPaymentLocked(p)
	return nil
}

func (tv *txView) PaymentsByPolicy(_ context.Context, id billing.PolicyID) ([]billing.Payment, error) {
	result := make([]billing.Payment, len(tv.parent.payments[id]))
	copy(result, tv.parent.payments[id])
	return result, nil
}

func (tv *txView) GetContact(_ context.Context, id billing.ContactID) (*billing.Contact, error) {
	c, ok := tv.parent.contacts[id]
	if !ok {
		return nil, nil
	}
	cp := c
	return &cp, nil
}

func (tv *txView) SaveContact(_ context.Context, c *billing.Contact) error {
	tv.parent.contacts[c.ID] = *c
	return nil
}

func (tv *txView) ListContacts(ctx context.Context) ([]billing.Contact, error) {
	result := make([]billing.Contact, 0, len(tv.parent.contacts))
	for _, c := range tv.parent.contacts {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}
