package scheduler

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"invoicing_backend/internal/events"
	"invoicing_backend/internal/invoices/domain"
	"invoicing_backend/platform/logger"
)

// RecurringStore is the repository slice the recurring loop uses. The unit
// runs due-check, clone, delivery, and cursor advance inside one
// transaction, so a failed delivery rolls the whole clone back.
type RecurringStore interface {
	ListRecurringTemplateIDs(ctx context.Context) ([]int64, error)
	RunRecurringUnit(ctx context.Context, templateID int64, issueDate time.Time,
		due func(domain.Invoice) bool,
		work func(ctx context.Context, template domain.Invoice, clone *domain.Invoice) error) (bool, error)
}

// CloneDeliverer sends a freshly cloned invoice to an address.
type CloneDeliverer interface {
	Deliver(ctx context.Context, inv domain.Invoice, toEmail string) error
}

// RecurringScheduler clones due recurring templates on a timer. Overlapping
// ticks collapse into one run; per-template failures are logged and never
// abort the rest of the batch.
type RecurringScheduler struct {
	store    RecurringStore
	deliver  CloneDeliverer
	bus      events.Bus
	log      *logger.Logger
	interval time.Duration
	group    singleflight.Group
	now      func() time.Time
}

func NewRecurringScheduler(store RecurringStore, deliver CloneDeliverer, bus events.Bus,
	interval time.Duration, log *logger.Logger) *RecurringScheduler {
	return &RecurringScheduler{
		store:    store,
		deliver:  deliver,
		bus:      bus,
		log:      log,
		interval: interval,
		now:      time.Now,
	}
}

// Run ticks until the context is cancelled.
func (s *RecurringScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickOnce(ctx)
		}
	}
}

func (s *RecurringScheduler) tickOnce(ctx context.Context) {
	_, _, _ = s.group.Do("recurring", func() (interface{}, error) {
		s.Tick(ctx)
		return nil, nil
	})
}

// Tick processes every recurring template once. It returns the number of
// clones produced.
func (s *RecurringScheduler) Tick(ctx context.Context) int {
	ids, err := s.store.ListRecurringTemplateIDs(ctx)
	if err != nil {
		s.log.Error("list recurring templates failed", "error", err)
		return 0
	}

	now := s.now().UTC()
	issueDate := midnight(now)
	cloned := 0
	for _, id := range ids {
		ran, err := s.store.RunRecurringUnit(ctx, id, issueDate, recurringDue(now), s.cloneWork)
		if err != nil {
			s.log.SchedulerItemError("recurring", id, err)
			continue
		}
		if ran {
			cloned++
		}
	}
	if cloned > 0 {
		s.log.Info("recurring tick", "cloned", cloned)
	}
	return cloned
}

func (s *RecurringScheduler) cloneWork(ctx context.Context, template domain.Invoice, clone *domain.Invoice) error {
	if clone.ClientEmail != "" {
		if err := s.deliver.Deliver(ctx, *clone, clone.ClientEmail); err != nil {
			return err
		}
	}
	s.bus.Publish(ctx, events.InvoiceMaterialized{
		BaseEvent:     events.NewBaseEvent(),
		InvoiceID:     clone.ID,
		InvoiceNumber: clone.InvoiceNumber,
		Source:        "recurring",
	})
	return nil
}

// recurringDue decides whether a template produces a clone now. Monthly
// templates anchor on the later of creation and last send; twice-a-month
// templates fire on fixed calendar days, at most once per day.
func recurringDue(now time.Time) func(domain.Invoice) bool {
	now = now.UTC()
	today := midnight(now)

	return func(template domain.Invoice) bool {
		switch template.Recurrence {
		case domain.RecurrenceOnceAMonth:
			anchor := template.CreatedAt
			if template.LastRecurringSentAt != nil && template.LastRecurringSentAt.After(anchor) {
				anchor = *template.LastRecurringSentAt
			}
			return !now.Before(anchor.AddDate(0, 1, 0))
		case domain.RecurrenceTwiceAMonth:
			if now.Day() != domain.TwiceAMonthAnchorDays[0] && now.Day() != domain.TwiceAMonthAnchorDays[1] {
				return false
			}
			if template.CreatedAt.After(today) || midnight(template.CreatedAt.UTC()).Equal(today) {
				return false
			}
			return template.LastRecurringSentAt == nil || template.LastRecurringSentAt.Before(today)
		default:
			return false
		}
	}
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
