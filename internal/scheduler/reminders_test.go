package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"invoicing_backend/internal/events"
	"invoicing_backend/internal/invoices/domain"
	"invoicing_backend/platform/logger"
)

type recordingMailer struct {
	sent []string
	fail bool
}

func (m *recordingMailer) SendReminderEmail(_ context.Context, toEmail, _, invoiceNumber string, _ int64, _ int) error {
	if m.fail {
		return errors.New("smtp down")
	}
	m.sent = append(m.sent, toEmail+":"+invoiceNumber)
	return nil
}

func unpaidInvoice(id int64, createdAt time.Time) *domain.Invoice {
	return &domain.Invoice{
		ID:            id,
		InvoiceNumber: "INV-000042",
		ClientName:    "Upward Agency",
		ClientEmail:   "billing@upward.test",
		Status:        domain.StatusSent,
		Recurrence:    domain.RecurrenceNone,
		TotalCents:    108500,
		CreatedAt:     createdAt,
	}
}

func newReminderScheduler(store *memoryStore, mailer *recordingMailer, now time.Time) *ReminderScheduler {
	s := NewReminderScheduler(store, mailer, events.NewInMemoryBus(logger.New("development")),
		time.Minute, 14, logger.New("development"))
	s.now = func() time.Time { return now }
	return s
}

func TestReminderTick_SendsAfterThreshold(t *testing.T) {
	store := newMemoryStore(unpaidInvoice(1, date(2025, 4, 1)))
	mailer := &recordingMailer{}
	s := newReminderScheduler(store, mailer, date(2025, 4, 20))

	if sent := s.Tick(context.Background()); sent != 1 {
		t.Fatalf("expected 1 reminder, got %d", sent)
	}
	if len(mailer.sent) != 1 || mailer.sent[0] != "billing@upward.test:INV-000042" {
		t.Fatalf("unexpected sends: %v", mailer.sent)
	}
}

func TestReminderTick_NoSecondReminderWithinThreshold(t *testing.T) {
	store := newMemoryStore(unpaidInvoice(1, date(2025, 4, 1)))
	mailer := &recordingMailer{}
	s := newReminderScheduler(store, mailer, date(2025, 4, 20))

	s.Tick(context.Background())
	s.Tick(context.Background())

	if len(mailer.sent) != 1 {
		t.Fatalf("expected exactly 1 reminder within the threshold, got %d", len(mailer.sent))
	}

	// Two weeks later a follow-up goes out.
	s.now = func() time.Time { return date(2025, 5, 5) }
	if sent := s.Tick(context.Background()); sent != 1 {
		t.Fatalf("expected a follow-up reminder, got %d", sent)
	}
}

func TestReminderTick_TooYoungInvoiceSkipped(t *testing.T) {
	store := newMemoryStore(unpaidInvoice(1, date(2025, 4, 15)))
	mailer := &recordingMailer{}
	s := newReminderScheduler(store, mailer, date(2025, 4, 20))

	if sent := s.Tick(context.Background()); sent != 0 {
		t.Fatalf("invoice younger than the threshold must be skipped, got %d", sent)
	}
}

func TestReminderTick_FailedSendKeepsCursorUnadvanced(t *testing.T) {
	store := newMemoryStore(unpaidInvoice(1, date(2025, 4, 1)))
	mailer := &recordingMailer{fail: true}
	s := newReminderScheduler(store, mailer, date(2025, 4, 20))

	s.Tick(context.Background())
	if store.invoices[1].LastReminderAt != nil {
		t.Fatal("cursor must not advance on a failed send")
	}

	mailer.fail = false
	if sent := s.Tick(context.Background()); sent != 1 {
		t.Fatalf("next tick should retry the send, got %d", sent)
	}
}

func TestReminderTick_PaidInvoiceNeverReminded(t *testing.T) {
	inv := unpaidInvoice(1, date(2025, 4, 1))
	inv.Status = domain.StatusFullyPaid
	store := newMemoryStore(inv)
	mailer := &recordingMailer{}
	s := newReminderScheduler(store, mailer, date(2025, 4, 20))

	if sent := s.Tick(context.Background()); sent != 0 {
		t.Fatalf("fully paid invoices must not be reminded, got %d", sent)
	}
}

func TestReminderTick_PrefersSenderAddress(t *testing.T) {
	inv := unpaidInvoice(1, date(2025, 4, 1))
	sender := "ops@studio.test"
	inv.SenderEmail = &sender
	store := newMemoryStore(inv)
	mailer := &recordingMailer{}
	s := newReminderScheduler(store, mailer, date(2025, 4, 20))

	s.Tick(context.Background())
	if len(mailer.sent) != 1 || mailer.sent[0] != "ops@studio.test:INV-000042" {
		t.Fatalf("reminder should go to the stored sender address: %v", mailer.sent)
	}
}
