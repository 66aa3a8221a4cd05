// Package repository persists invoices, line items, payments, and the
// invoice number sequence in Postgres.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"invoicing_backend/internal/invoices/domain"
	"invoicing_backend/platform/apperr"
	"invoicing_backend/platform/logger"
)

type PostgresRepository struct {
	pool         *pgxpool.Pool
	log          *logger.Logger
	numberPrefix string
}

var _ Repository = (*PostgresRepository)(nil)

func NewPostgresRepository(pool *pgxpool.Pool, log *logger.Logger, numberPrefix string) *PostgresRepository {
	return &PostgresRepository{pool: pool, log: log, numberPrefix: numberPrefix}
}

const invoiceColumns = `id, invoice_number, client_name, client_company, client_address,
	client_email, client_phone, issue_date, billing_period, payment_term, project_code,
	subtotal_cents, transfer_charge_cents, total_cents, status, recurrence_interval,
	last_reminder_at, last_recurring_sent_at, sender_email, document_key, created_at, updated_at`

func scanInvoice(row pgx.Row) (domain.Invoice, error) {
	var inv domain.Invoice
	var status, recurrence string
	err := row.Scan(
		&inv.ID, &inv.InvoiceNumber, &inv.ClientName, &inv.ClientCompany, &inv.ClientAddress,
		&inv.ClientEmail, &inv.ClientPhone, &inv.IssueDate, &inv.BillingPeriod, &inv.PaymentTerm,
		&inv.ProjectCode, &inv.SubtotalCents, &inv.TransferChargeCents, &inv.TotalCents,
		&status, &recurrence, &inv.LastReminderAt, &inv.LastRecurringSentAt,
		&inv.SenderEmail, &inv.DocumentKey, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return domain.Invoice{}, err
	}
	inv.Status = domain.Status(status)
	inv.Recurrence = domain.RecurrenceInterval(recurrence)
	return inv, nil
}

// rowQuerier is the slice of pgx both pgxpool.Pool and pgx.Tx satisfy.
type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *PostgresRepository) loadItems(ctx context.Context, q rowQuerier, invoiceID int64) ([]domain.LineItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, invoice_id, description, base_rate_cents, unit_quantity, amount_cents, position
		FROM line_items WHERE invoice_id = $1 ORDER BY position, id`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("query line items: %w", err)
	}
	defer rows.Close()

	var items []domain.LineItem
	for rows.Next() {
		var item domain.LineItem
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.Description,
			&item.BaseRateCents, &item.UnitQuantity, &item.AmountCents, &item.Position); err != nil {
			return nil, fmt.Errorf("scan line item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (domain.Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Invoice{}, apperr.NotFound("invoice not found")
		}
		return domain.Invoice{}, fmt.Errorf("query invoice: %w", err)
	}
	inv.Items, err = r.loadItems(ctx, r.pool, inv.ID)
	return inv, err
}

func (r *PostgresRepository) GetByNumber(ctx context.Context, number string) (domain.Invoice, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE invoice_number = $1`, number)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Invoice{}, apperr.NotFound(fmt.Sprintf("invoice %s not found", number))
		}
		return domain.Invoice{}, fmt.Errorf("query invoice by number: %w", err)
	}
	inv.Items, err = r.loadItems(ctx, r.pool, inv.ID)
	return inv, err
}

func (r *PostgresRepository) List(ctx context.Context, limit, offset int) ([]domain.Invoice, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}

	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range invoices {
		invoices[i].Items, err = r.loadItems(ctx, r.pool, invoices[i].ID)
		if err != nil {
			return nil, 0, err
		}
	}
	return invoices, total, nil
}

// nextSequenceValue claims the next invoice number within the caller's
// transaction. The row lock taken by UPDATE serializes concurrent claims;
// GREATEST lets a raised starting_number take effect without a reset.
func (r *PostgresRepository) nextSequenceValue(ctx context.Context, tx pgx.Tx) (int64, error) {
	var current int64
	err := tx.QueryRow(ctx, `
		UPDATE invoice_sequence
		SET current_number = GREATEST(current_number, starting_number) + 1
		WHERE id = 1
		RETURNING current_number - 1`).Scan(&current)
	if err != nil {
		return 0, fmt.Errorf("advance invoice sequence: %w", err)
	}
	return current, nil
}

func (r *PostgresRepository) formatNumber(seq int64) string {
	return fmt.Sprintf("%s%06d", r.numberPrefix, seq)
}

func (r *PostgresRepository) insertInvoice(ctx context.Context, tx pgx.Tx, inv *domain.Invoice) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO invoices (invoice_number, client_name, client_company, client_address,
			client_email, client_phone, issue_date, billing_period, payment_term, project_code,
			subtotal_cents, transfer_charge_cents, total_cents, status, recurrence_interval,
			sender_email, document_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at, updated_at`,
		inv.InvoiceNumber, inv.ClientName, inv.ClientCompany, inv.ClientAddress,
		inv.ClientEmail, inv.ClientPhone, inv.IssueDate, inv.BillingPeriod, inv.PaymentTerm,
		inv.ProjectCode, inv.SubtotalCents, inv.TransferChargeCents, inv.TotalCents,
		string(inv.Status), string(inv.Recurrence), inv.SenderEmail, inv.DocumentKey,
	).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return r.insertItems(ctx, tx, inv)
}

func (r *PostgresRepository) insertItems(ctx context.Context, tx pgx.Tx, inv *domain.Invoice) error {
	for i := range inv.Items {
		item := &inv.Items[i]
		item.InvoiceID = inv.ID
		if item.Position == 0 {
			item.Position = i
		}
		err := tx.QueryRow(ctx, `
			INSERT INTO line_items (invoice_id, description, base_rate_cents, unit_quantity, amount_cents, position)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id`,
			item.InvoiceID, item.Description, item.BaseRateCents, item.UnitQuantity,
			item.AmountCents, item.Position,
		).Scan(&item.ID)
		if err != nil {
			return fmt.Errorf("insert line item: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) Create(ctx context.Context, inv *domain.Invoice) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	seq, err := r.nextSequenceValue(ctx, tx)
	if err != nil {
		return err
	}
	inv.InvoiceNumber = r.formatNumber(seq)

	if err := r.insertInvoice(ctx, tx, inv); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PostgresRepository) Update(ctx context.Context, inv *domain.Invoice) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE invoices SET
			client_name = $2, client_company = $3, client_address = $4, client_email = $5,
			client_phone = $6, issue_date = $7, billing_period = $8, payment_term = $9,
			project_code = $10, subtotal_cents = $11, transfer_charge_cents = $12,
			total_cents = $13, status = $14, recurrence_interval = $15, sender_email = $16,
			document_key = $17, updated_at = NOW()
		WHERE id = $1`,
		inv.ID, inv.ClientName, inv.ClientCompany, inv.ClientAddress, inv.ClientEmail,
		inv.ClientPhone, inv.IssueDate, inv.BillingPeriod, inv.PaymentTerm, inv.ProjectCode,
		inv.SubtotalCents, inv.TransferChargeCents, inv.TotalCents,
		string(inv.Status), string(inv.Recurrence), inv.SenderEmail, inv.DocumentKey)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("invoice not found")
	}

	// Line items are owned rows: replace wholesale.
	if _, err := tx.Exec(ctx, `DELETE FROM line_items WHERE invoice_id = $1`, inv.ID); err != nil {
		return fmt.Errorf("clear line items: %w", err)
	}
	if err := r.insertItems(ctx, tx, inv); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PostgresRepository) SetStatus(ctx context.Context, id int64, status domain.Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE invoices SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("set invoice status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("invoice not found")
	}
	return nil
}

func (r *PostgresRepository) SetDocumentKey(ctx context.Context, id int64, key string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE invoices SET document_key = $2, updated_at = NOW() WHERE id = $1`, id, key)
	if err != nil {
		return fmt.Errorf("set document key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("invoice not found")
	}
	return nil
}

func (r *PostgresRepository) RecordPayment(ctx context.Context, invoiceID int64, transactionID string, amountCents int64, paidOn time.Time) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// A replayed bank notification carries the same transaction id; the
	// unique constraint turns it into a no-op instead of double-counting.
	_, err = tx.Exec(ctx, `
		INSERT INTO payments (invoice_id, transaction_id, amount_cents, paid_on)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (invoice_id, transaction_id) DO NOTHING`,
		invoiceID, transactionID, amountCents, paidOn)
	if err != nil {
		return 0, fmt.Errorf("record payment: %w", err)
	}

	var paidTotal int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM payments WHERE invoice_id = $1`, invoiceID).Scan(&paidTotal)
	if err != nil {
		return 0, fmt.Errorf("sum payments: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return paidTotal, nil
}

func (r *PostgresRepository) ListRecurringTemplateIDs(ctx context.Context) ([]int64, error) {
	return r.listIDs(ctx, `SELECT id FROM invoices WHERE recurrence_interval <> 'none' ORDER BY id`)
}

func (r *PostgresRepository) ListUnpaidInvoiceIDs(ctx context.Context) ([]int64, error) {
	return r.listIDs(ctx, `SELECT id FROM invoices WHERE status IN ('sent', 'partially_paid') ORDER BY id`)
}

func (r *PostgresRepository) listIDs(ctx context.Context, query string) ([]int64, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list invoice ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// lockInvoice loads one invoice under FOR UPDATE SKIP LOCKED. The second
// return is false when another transaction already holds the row, which a
// concurrent scheduler tick treats as "someone else is on it".
func (r *PostgresRepository) lockInvoice(ctx context.Context, tx pgx.Tx, id int64) (domain.Invoice, bool, error) {
	row := tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE SKIP LOCKED`, id)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Invoice{}, false, nil
		}
		return domain.Invoice{}, false, fmt.Errorf("lock invoice: %w", err)
	}
	inv.Items, err = r.loadItems(ctx, tx, inv.ID)
	if err != nil {
		return domain.Invoice{}, false, err
	}
	return inv, true, nil
}

func (r *PostgresRepository) RunRecurringUnit(ctx context.Context, templateID int64, issueDate time.Time,
	due func(domain.Invoice) bool,
	work func(ctx context.Context, template domain.Invoice, clone *domain.Invoice) error) (bool, error) {

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	template, ok, err := r.lockInvoice(ctx, tx, templateID)
	if err != nil || !ok {
		return false, err
	}
	if !due(template) {
		return false, nil
	}

	clone := template.CloneForPeriod(issueDate)
	seq, err := r.nextSequenceValue(ctx, tx)
	if err != nil {
		return false, err
	}
	clone.InvoiceNumber = r.formatNumber(seq)
	if err := r.insertInvoice(ctx, tx, &clone); err != nil {
		return false, err
	}

	// Delivery runs inside the unit on purpose: if it fails, the clone,
	// its number, and the cursor advance all roll back together.
	if err := work(ctx, template, &clone); err != nil {
		return false, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE invoices SET last_recurring_sent_at = $2, updated_at = NOW() WHERE id = $1`,
		templateID, issueDate)
	if err != nil {
		return false, fmt.Errorf("advance recurring cursor: %w", err)
	}
	return true, tx.Commit(ctx)
}

func (r *PostgresRepository) RunReminderUnit(ctx context.Context, invoiceID int64, now time.Time,
	due func(domain.Invoice) bool,
	work func(ctx context.Context, inv domain.Invoice) error) (bool, error) {

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	inv, ok, err := r.lockInvoice(ctx, tx, invoiceID)
	if err != nil || !ok {
		return false, err
	}
	if !due(inv) {
		return false, nil
	}

	if err := work(ctx, inv); err != nil {
		return false, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE invoices SET last_reminder_at = $2, updated_at = NOW() WHERE id = $1`,
		invoiceID, now)
	if err != nil {
		return false, fmt.Errorf("advance reminder cursor: %w", err)
	}
	return true, tx.Commit(ctx)
}
