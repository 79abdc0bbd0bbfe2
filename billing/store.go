/*
store.go - Persistence interface for policies, invoices, payments, contacts

PURPOSE:
  Defines the interface between the billing engine and the database.
  Different implementations can use SQLite or in-memory storage.

SUPERSESSION CONTRACT:
  Invoices are never deleted. DeactivateInvoices flips the active flag on a
  policy's current batch; InsertInvoices appends the replacement batch. The
  two calls MUST run inside WithTx so a reader never observes the torn state
  (old batch deactivated, new batch not yet visible).

ORDERING:
  All invoice and payment listings are returned in ascending date order.
  The engine relies on this and does not re-sort.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - billing/store: In-memory for testing/dev
*/
package billing

import "context"

// Store handles persistence for the billing engine. Lookups return
// (nil, nil) when the record does not exist; the engine maps that to its
// own not-found errors.
type Store interface {
	// Policies
	GetPolicy(ctx context.Context, id PolicyID) (*Policy, error)
	SavePolicy(ctx context.Context, p *Policy) error
	ListPolicies(ctx context.Context) ([]Policy, error)

	// Invoices. InvoicesByPolicy returns every row including superseded
	// ones; ActiveInvoices returns only the current batch. Both ordered by
	// bill date ascending.
	InsertInvoices(ctx context.Context, invoices []Invoice) error
	InvoicesByPolicy(ctx context.Context, id PolicyID) ([]Invoice, error)
	ActiveInvoices(ctx context.Context, id PolicyID) ([]Invoice, error)
	DeactivateInvoices(ctx context.Context, id PolicyID) error

	// Payments, ordered by transaction date ascending.
	InsertPayment(ctx context.Context, p Payment) error
	PaymentsByPolicy(ctx context.Context, id PolicyID) ([]Payment, error)

	// Contacts
	GetContact(ctx context.Context, id ContactID) (*Contact, error)
	SaveContact(ctx context.Context, c *Contact) error
	ListContacts(ctx context.Context) ([]Contact, error)
}

// TxStore wraps Store with transaction support. Invoice-batch supersession
// runs through WithTx: if fn returns an error the transaction is rolled
// back, otherwise it is committed.
type TxStore interface {
	Store

	WithTx(ctx context.Context, fn func(Store) error) error
}
