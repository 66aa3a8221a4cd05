package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"invoicing_backend/internal/events"
	"invoicing_backend/internal/invoices/domain"
	"invoicing_backend/platform/logger"
)

// memoryStore mimics the transactional unit semantics of the Postgres
// repository: due is re-checked under the lock, and the cursor only moves
// when the work callback succeeds.
type memoryStore struct {
	seq      int64
	invoices map[int64]*domain.Invoice
	clones   []domain.Invoice
}

func newMemoryStore(invoices ...*domain.Invoice) *memoryStore {
	store := &memoryStore{invoices: make(map[int64]*domain.Invoice)}
	for _, inv := range invoices {
		store.invoices[inv.ID] = inv
	}
	return store
}

func (m *memoryStore) ListRecurringTemplateIDs(context.Context) ([]int64, error) {
	var ids []int64
	for id, inv := range m.invoices {
		if inv.Recurrence != domain.RecurrenceNone {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memoryStore) ListUnpaidInvoiceIDs(context.Context) ([]int64, error) {
	var ids []int64
	for id, inv := range m.invoices {
		if inv.Status.Unpaid() {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memoryStore) RunRecurringUnit(ctx context.Context, templateID int64, issueDate time.Time,
	due func(domain.Invoice) bool,
	work func(ctx context.Context, template domain.Invoice, clone *domain.Invoice) error) (bool, error) {
	template, ok := m.invoices[templateID]
	if !ok || !due(*template) {
		return false, nil
	}

	clone := template.CloneForPeriod(issueDate)
	m.seq++
	clone.ID = 1000 + m.seq
	clone.InvoiceNumber = fmt.Sprintf("INV-%06d", m.seq)
	if err := work(ctx, *template, &clone); err != nil {
		return false, err
	}

	m.clones = append(m.clones, clone)
	sentAt := issueDate
	template.LastRecurringSentAt = &sentAt
	return true, nil
}

func (m *memoryStore) RunReminderUnit(ctx context.Context, invoiceID int64, now time.Time,
	due func(domain.Invoice) bool,
	work func(ctx context.Context, inv domain.Invoice) error) (bool, error) {
	inv, ok := m.invoices[invoiceID]
	if !ok || !due(*inv) {
		return false, nil
	}
	if err := work(ctx, *inv); err != nil {
		return false, err
	}
	remindedAt := now
	inv.LastReminderAt = &remindedAt
	return true, nil
}

type recordingDeliverer struct {
	sent []string
	fail bool
}

func (d *recordingDeliverer) Deliver(_ context.Context, inv domain.Invoice, toEmail string) error {
	if d.fail {
		return errors.New("smtp down")
	}
	d.sent = append(d.sent, toEmail+":"+inv.InvoiceNumber)
	return nil
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func monthlyTemplate(id int64, createdAt time.Time) *domain.Invoice {
	return &domain.Invoice{
		ID:          id,
		ClientName:  "Upward Agency",
		ClientEmail: "billing@upward.test",
		Status:      domain.StatusSent,
		Recurrence:  domain.RecurrenceOnceAMonth,
		Items: []domain.LineItem{
			{Description: "Retainer", BaseRateCents: 100000, UnitQuantity: 1, AmountCents: 100000},
		},
		TotalCents: 100000,
		CreatedAt:  createdAt,
	}
}

func newRecurringScheduler(store *memoryStore, deliver *recordingDeliverer, now time.Time) *RecurringScheduler {
	s := NewRecurringScheduler(store, deliver, events.NewInMemoryBus(logger.New("development")),
		time.Minute, logger.New("development"))
	s.now = func() time.Time { return now }
	return s
}

func TestRecurringTick_MonthlyDueProducesOneClone(t *testing.T) {
	store := newMemoryStore(monthlyTemplate(1, date(2025, 3, 1)))
	deliver := &recordingDeliverer{}
	s := newRecurringScheduler(store, deliver, date(2025, 4, 10))

	if cloned := s.Tick(context.Background()); cloned != 1 {
		t.Fatalf("expected 1 clone, got %d", cloned)
	}
	if len(store.clones) != 1 {
		t.Fatalf("expected stored clone, got %d", len(store.clones))
	}
	clone := store.clones[0]
	if clone.Recurrence != domain.RecurrenceNone {
		t.Fatalf("clone must not recur itself, got %q", clone.Recurrence)
	}
	if len(deliver.sent) != 1 {
		t.Fatalf("clone should be delivered: %v", deliver.sent)
	}
}

func TestRecurringTick_DoubleTickClonesAtMostOnce(t *testing.T) {
	store := newMemoryStore(monthlyTemplate(1, date(2025, 3, 1)))
	s := newRecurringScheduler(store, &recordingDeliverer{}, date(2025, 4, 10))

	s.Tick(context.Background())
	s.Tick(context.Background())

	if len(store.clones) != 1 {
		t.Fatalf("double tick must clone at most once, got %d clones", len(store.clones))
	}
}

func TestRecurringTick_NotDueBeforeOneMonth(t *testing.T) {
	store := newMemoryStore(monthlyTemplate(1, date(2025, 4, 1)))
	s := newRecurringScheduler(store, &recordingDeliverer{}, date(2025, 4, 10))

	if cloned := s.Tick(context.Background()); cloned != 0 {
		t.Fatalf("template is not a month old yet, got %d clones", cloned)
	}
}

func TestRecurringTick_FailedDeliveryLeavesCursorUnadvanced(t *testing.T) {
	store := newMemoryStore(monthlyTemplate(1, date(2025, 3, 1)))
	deliver := &recordingDeliverer{fail: true}
	s := newRecurringScheduler(store, deliver, date(2025, 4, 10))

	if cloned := s.Tick(context.Background()); cloned != 0 {
		t.Fatalf("failed delivery must not count as a clone, got %d", cloned)
	}
	if len(store.clones) != 0 {
		t.Fatal("failed delivery must roll the clone back")
	}
	if store.invoices[1].LastRecurringSentAt != nil {
		t.Fatal("cursor must stay unadvanced after a failed delivery")
	}

	// The next tick retries and succeeds.
	deliver.fail = false
	if cloned := s.Tick(context.Background()); cloned != 1 {
		t.Fatalf("retry tick should clone, got %d", cloned)
	}
}

func TestRecurringDue_TwiceAMonthFixedDays(t *testing.T) {
	template := monthlyTemplate(1, date(2025, 3, 20))
	template.Recurrence = domain.RecurrenceTwiceAMonth

	if !recurringDue(date(2025, 4, 1))(*template) {
		t.Fatal("day 1 should be due")
	}
	if !recurringDue(date(2025, 4, 15))(*template) {
		t.Fatal("day 15 should be due")
	}
	if recurringDue(date(2025, 4, 14))(*template) {
		t.Fatal("day 14 should not be due")
	}

	sent := date(2025, 4, 15)
	template.LastRecurringSentAt = &sent
	if recurringDue(date(2025, 4, 15).Add(6*time.Hour))(*template) {
		t.Fatal("already sent today, must not be due again")
	}
	if !recurringDue(date(2025, 5, 1))(*template) {
		t.Fatal("next anchor day should be due again")
	}
}

func TestRecurringDue_TemplateCreatedOnAnchorDayWaits(t *testing.T) {
	template := monthlyTemplate(1, date(2025, 4, 15))
	template.Recurrence = domain.RecurrenceTwiceAMonth

	if recurringDue(date(2025, 4, 15))(*template) {
		t.Fatal("a template created on the anchor day must not clone the same day")
	}
}
