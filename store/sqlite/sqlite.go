/*
Package sqlite provides a SQLite-backed implementation of billing.TxStore.

PURPOSE:
  Implements persistence for policies, invoices, payments and contacts
  using SQLite. In production, the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

SUPERSESSION ENFORCEMENT:
  Invoices are never deleted. The only mutation on the invoices table is
  flipping the active flag; schedule regeneration runs the flip and the
  insert of the replacement batch inside one SQL transaction (WithTx).

KEY TABLES:
  contacts:  Agents and named insureds (weak references)
  policies:  Policy records incl. cancellation state
  invoices:  All invoice batches, superseded rows retained with active=0
  payments:  Append-only payment history

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, single writer at a time.

USAGE:
  store, err := sqlite.New("./data/billing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/policy-billing/billing"
)

// Store implements billing.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS contacts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		role TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS policies (
		id TEXT PRIMARY KEY,
		number TEXT NOT NULL,
		effective_date TEXT NOT NULL,
		annual_premium TEXT NOT NULL,
		billing_schedule TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'Active',
		cancel_date TEXT,
		cancel_reason TEXT,
		named_insured TEXT,
		agent TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Invoice rows are retained forever; active=0 marks supersession.
	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		policy_id TEXT NOT NULL,
		bill_date TEXT NOT NULL,
		due_date TEXT NOT NULL,
		cancel_date TEXT NOT NULL,
		amount_due TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_policy
		ON invoices(policy_id, bill_date);
	-- Hot path: active batch for balance/cancellation queries.
	CREATE INDEX IF NOT EXISTS idx_invoices_policy_active
		ON invoices(policy_id, active, bill_date);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		policy_id TEXT NOT NULL,
		contact_id TEXT NOT NULL,
		amount_paid TEXT NOT NULL,
		transaction_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_policy
		ON payments(policy_id, transaction_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so every query helper can
// run inside or outside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func now() string { return time.Now().UTC().Format(time.RFC3339) }

// =============================================================================
// POLICIES
// =============================================================================

func (s *Store) GetPolicy(ctx context.Context, id billing.PolicyID) (*billing.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getPolicy(ctx, s.db, id)
}

func getPolicy(ctx context.Context, db dbtx, id billing.PolicyID) (*billing.Policy, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, number, effective_date, annual_premium, billing_schedule,
		       status, cancel_date, cancel_reason, named_insured, agent
		FROM policies WHERE id = ?`, id)

	p, err := scanPolicy(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get policy: %w", err)
	}
	return p, nil
}

func scanPolicy(scan func(...any) error) (*billing.Policy, error) {
	var (
		p             billing.Policy
		effectiveDate string
		premium       string
		cancelDate    sql.NullString
		cancelReason  sql.NullString
		namedInsured  sql.NullString
		agent         sql.NullString
	)

	err := scan(&p.ID, &p.Number, &effectiveDate, &premium, &p.Schedule,
		&p.Status, &cancelDate, &cancelReason, &namedInsured, &agent)
	if err != nil {
		return nil, err
	}

	p.EffectiveDate, _ = billing.ParseDate(effectiveDate)
	p.AnnualPremium = billing.MustMoney(premium)
	p.CancelReason = cancelReason.String
	p.NamedInsured = billing.ContactID(namedInsured.String)
	p.Agent = billing.ContactID(agent.String)
	if cancelDate.Valid {
		if d, err := billing.ParseDate(cancelDate.String); err == nil {
			p.CancelDate = &d
		}
	}
	return &p, nil
}

func (s *Store) SavePolicy(ctx context.Context, p *billing.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return savePolicy(ctx, s.db, p)
}

func savePolicy(ctx context.Context, db dbtx, p *billing.Policy) error {
	var cancelDate any
	if p.CancelDate != nil {
		cancelDate = p.CancelDate.String()
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO policies
		(id, number, effective_date, annual_premium, billing_schedule,
		 status, cancel_date, cancel_reason, named_insured, agent, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			number = excluded.number,
			effective_date = excluded.effective_date,
			annual_premium = excluded.annual_premium,
			billing_schedule = excluded.billing_schedule,
			status = excluded.status,
			cancel_date = excluded.cancel_date,
			cancel_reason = excluded.cancel_reason,
			named_insured = excluded.named_insured,
			agent = excluded.agent,
			updated_at = excluded.updated_at`,
		p.ID, p.Number, p.EffectiveDate.String(), p.AnnualPremium.String(), p.Schedule,
		p.Status, cancelDate, nullString(p.CancelReason),
		nullString(string(p.NamedInsured)), nullString(string(p.Agent)), now(), now())
	if err != nil {
		return fmt.Errorf("failed to save policy: %w", err)
	}
	return nil
}

func (s *Store) ListPolicies(ctx context.Context) ([]billing.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listPolicies(ctx, s.db)
}

func listPolicies(ctx context.Context, db dbtx) ([]billing.Policy, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, number, effective_date, annual_premium, billing_schedule,
		       status, cancel_date, cancel_reason, named_insured, agent
		FROM policies ORDER BY number`)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	defer rows.Close()

	var policies []billing.Policy
	for rows.Next() {
		p, err := scanPolicy(rows.Scan)
		if err != nil {
			return nil, err
		}
		policies = append(policies, *p)
	}
	return policies, rows.Err()
}

// =============================================================================
// INVOICES
// =============================================================================

func (s *Store) InsertInvoices(ctx context.Context, invoices []billing.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertInvoices(ctx, s.db, invoices)
}

func insertInvoices(ctx context.Context, db dbtx, invoices []billing.Invoice) error {
	for _, inv := range invoices {
		_, err := db.ExecContext(ctx, `
			INSERT INTO invoices
			(id, policy_id, bill_date, due_date, cancel_date, amount_due, active, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			inv.ID, inv.PolicyID, inv.BillDate.String(), inv.DueDate.String(),
			inv.CancelDate.String(), inv.AmountDue.String(), inv.Active, now())
		if err != nil {
			return fmt.Errorf("failed to insert invoice: %w", err)
		}
	}
	return nil
}

func (s *Store) InvoicesByPolicy(ctx context.Context, id billing.PolicyID) ([]billing.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return invoicesByPolicy(ctx, s.db, id)
}

func invoicesByPolicy(ctx context.Context, db dbtx, id billing.PolicyID) ([]billing.Invoice, error) {
	return queryInvoices(ctx, db, `
		SELECT id, policy_id, bill_date, due_date, cancel_date, amount_due, active
		FROM invoices WHERE policy_id = ?
		ORDER BY bill_date ASC, created_at ASC`, id)
}

func (s *Store) ActiveInvoices(ctx context.Context, id billing.PolicyID) ([]billing.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return activeInvoices(ctx, s.db, id)
}

func activeInvoices(ctx context.Context, db dbtx, id billing.PolicyID) ([]billing.Invoice, error) {
	return queryInvoices(ctx, db, `
		SELECT id, policy_id, bill_date, due_date, cancel_date, amount_due, active
		FROM invoices WHERE policy_id = ? AND active = TRUE
		ORDER BY bill_date ASC`, id)
}

func queryInvoices(ctx context.Context, db dbtx, query string, args ...any) ([]billing.Invoice, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []billing.Invoice
	for rows.Next() {
		var (
			inv        billing.Invoice
			billDate   string
			dueDate    string
			cancelDate string
			amountDue  string
		)
		if err := rows.Scan(&inv.ID, &inv.PolicyID, &billDate, &dueDate,
			&cancelDate, &amountDue, &inv.Active); err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		inv.BillDate, _ = billing.ParseDate(billDate)
		inv.DueDate, _ = billing.ParseDate(dueDate)
		inv.CancelDate, _ = billing.ParseDate(cancelDate)
		inv.AmountDue = billing.MustMoney(amountDue)
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (s *Store) DeactivateInvoices(ctx context.Context, id billing.PolicyID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deactivateInvoices(ctx, s.db, id)
}

func deactivateInvoices(ctx context.Context, db dbtx, id billing.PolicyID) error {
	_, err := db.ExecContext(ctx,
		"UPDATE invoices SET active = FALSE WHERE policy_id = ? AND active = TRUE", id)
	if err != nil {
		return fmt.Errorf("failed to deactivate invoices: %w", err)
	}
	return nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (s *Store) InsertPayment(ctx context.Context, p billing.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertPayment(ctx, s.db, p)
}

func insertPayment(ctx context.Context, db dbtx, p billing.Payment) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO payments
		(id, policy_id, contact_id, amount_paid, transaction_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.PolicyID, p.ContactID, p.AmountPaid.String(),
		p.TransactionDate.String(), now())
	if err != nil {
		return fmt.Errorf("failed to insert payment: %w", err)
	}
	return nil
}

func (s *Store) PaymentsByPolicy(ctx context.Context, id billing.PolicyID) ([]billing.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return paymentsByPolicy(ctx, s.db, id)
}

func paymentsByPolicy(ctx context.Context, db dbtx, id billing.PolicyID) ([]billing.Payment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, policy_id, contact_id, amount_paid, transaction_date
		FROM payments WHERE policy_id = ?
		ORDER BY transaction_date ASC, created_at ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []billing.Payment
	for rows.Next() {
		var (
			p      billing.Payment
			amount string
			txDate string
		)
		if err := rows.Scan(&p.ID, &p.PolicyID, &p.ContactID, &amount, &txDate); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		p.AmountPaid = billing.MustMoney(amount)
		p.TransactionDate, _ = billing.ParseDate(txDate)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// =============================================================================
// CONTACTS
// =============================================================================

func (s *Store) GetContact(ctx context.Context, id billing.ContactID) (*billing.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getContact(ctx, s.db, id)
}

func getContact(ctx context.Context, db dbtx, id billing.ContactID) (*billing.Contact, error) {
	var c billing.Contact
	err := db.QueryRowContext(ctx,
		"SELECT id, name, role FROM contacts WHERE id = ?", id,
	).Scan(&c.ID, &c.Name, &c.Role)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return &c, nil
}

func (s *Store) SaveContact(ctx context.Context, c *billing.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveContact(ctx, s.db, c)
}

func saveContact(ctx context.Context, db dbtx, c *billing.Contact) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO contacts (id, name, role, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			role = excluded.role`,
		c.ID, c.Name, c.Role, now())
	if err != nil {
		return fmt.Errorf("failed to save contact: %w", err)
	}
	return nil
}

func (s *Store) ListContacts(ctx context.Context) ([]billing.Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listContacts(ctx, s.db)
}

func listContacts(ctx context.Context, db dbtx) ([]billing.Contact, error) {
	rows, err := db.QueryContext(ctx, "SELECT id, name, role FROM contacts ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []billing.Contact
	for rows.Next() {
		var c billing.Contact
		if err := rows.Scan(&c.ID, &c.Name, &c.Role); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (billing.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(billing.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// txStore runs every Store operation against the open transaction.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) GetPolicy(ctx context.Context, id billing.PolicyID) (*billing.Policy, error) {
	return getPolicy(ctx, ts.tx, id)
}

func (ts *txStore) SavePolicy(ctx context.Context, p *billing.Policy) error {
	return savePolicy(ctx, ts.tx, p)
}

func (ts *txStore) ListPolicies(ctx context.Context) ([]billing.Policy, error) {
	return listPolicies(ctx, ts.tx)
}

func (ts *txStore) InsertInvoices(ctx context.Context, invoices []billing.Invoice) error {
	return insertInvoices(ctx, ts.tx, invoices)
}

func (ts *txStore) InvoicesByPolicy(ctx context.Context, id billing.PolicyID) ([]billing.Invoice, error) {
	return invoicesByPolicy(ctx, ts.tx, id)
}

func (ts *txStore) ActiveInvoices(ctx context.Context, id billing.PolicyID) ([]billing.Invoice, error) {
	return activeInvoices(ctx, ts.tx, id)
}

func (ts *txStore) DeactivateInvoices(ctx context.Context, id billing.PolicyID) error {
	return deactivateInvoices(ctx, ts.tx, id)
}

func (ts *txStore) InsertPayment(ctx context.Context, p billing.Payment) error {
	return insertPayment(ctx, ts.tx, p)
}

func (ts *txStore) PaymentsByPolicy(ctx context.Context, id billing.PolicyID) ([]billing.Payment, error) {
	return paymentsByPolicy(ctx, ts.tx, id)
}

func (ts *txStore) GetContact(ctx context.Context, id billing.ContactID) (*billing.Contact, error) {
	return getContact(ctx, ts.tx, id)
}

func (ts *txStore) SaveContact(ctx context.Context, c *billing.Contact) error {
	return saveContact(ctx, ts.tx, c)
}

func (ts *txStore) ListContacts(ctx context.Context) ([]billing.Contact, error) {
	return listContacts(ctx, ts.tx)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"payments", "invoices", "policies", "contacts"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
