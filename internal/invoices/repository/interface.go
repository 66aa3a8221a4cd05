package repository

import (
	"context"
	"time"

	"invoicing_backend/internal/invoices/domain"
)

// Repository is the persistence boundary of the invoice engine.
type Repository interface {
	GetByID(ctx context.Context, id int64) (domain.Invoice, error)
	GetByNumber(ctx context.Context, number string) (domain.Invoice, error)
	List(ctx context.Context, limit, offset int) ([]domain.Invoice, int, error)

	// Create assigns the next invoice number and persists the invoice with
	// its line items in one transaction. The sequence increment commits or
	// rolls back together with the insert, so numbers are neither skipped
	// nor repeated.
	Create(ctx context.Context, inv *domain.Invoice) error

	// Update replaces the invoice's mutable fields and its line items.
	Update(ctx context.Context, inv *domain.Invoice) error

	SetStatus(ctx context.Context, id int64, status domain.Status) error
	SetDocumentKey(ctx context.Context, id int64, key string) error

	// RecordPayment stores a payment and returns the sum of all payments
	// recorded against the invoice. A repeated transaction id is a no-op.
	RecordPayment(ctx context.Context, invoiceID int64, transactionID string, amountCents int64, paidOn time.Time) (int64, error)

	ListRecurringTemplateIDs(ctx context.Context) ([]int64, error)
	ListUnpaidInvoiceIDs(ctx context.Context) ([]int64, error)

	// RunRecurringUnit executes the due-check-and-advance step for one
	// template as a single transaction: lock the template row (skipped if
	// another tick holds it), re-evaluate due, materialize the clone with
	// a fresh number, run work (render and deliver), then advance the
	// template's last-send cursor. Any failure rolls back everything,
	// including the clone and its number. Returns true if a clone was
	// produced and committed.
	RunRecurringUnit(ctx context.Context, templateID int64, issueDate time.Time,
		due func(domain.Invoice) bool,
		work func(ctx context.Context, template domain.Invoice, clone *domain.Invoice) error) (bool, error)

	// RunReminderUnit executes the due-check-and-advance step for one
	// unpaid invoice as a single transaction: lock the row, re-evaluate
	// due, run work (send the reminder), then advance last_reminder_at.
	// A failed send rolls back the cursor so the next tick retries.
	// Returns true if a reminder was sent and committed.
	RunReminderUnit(ctx context.Context, invoiceID int64, now time.Time,
		due func(domain.Invoice) bool,
		work func(ctx context.Context, inv domain.Invoice) error) (bool, error)
}
