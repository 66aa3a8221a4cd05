package scheduler

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"invoicing_backend/internal/events"
	"invoicing_backend/internal/invoices/domain"
	"invoicing_backend/platform/logger"
)

// ReminderStore is the repository slice the reminder loop uses. The unit
// advances the last-reminder cursor only after the send callback returns
// nil, so a failed send is retried on the next tick.
type ReminderStore interface {
	ListUnpaidInvoiceIDs(ctx context.Context) ([]int64, error)
	RunReminderUnit(ctx context.Context, invoiceID int64, now time.Time,
		due func(domain.Invoice) bool,
		work func(ctx context.Context, inv domain.Invoice) error) (bool, error)
}

// ReminderMailer sends the outstanding-payment nudge.
type ReminderMailer interface {
	SendReminderEmail(ctx context.Context, toEmail, clientName, invoiceNumber string,
		totalCents int64, daysOutstanding int) error
}

// ReminderScheduler nudges unpaid invoices every threshold days. It never
// changes invoice status; reconciliation owns that.
type ReminderScheduler struct {
	store         ReminderStore
	mailer        ReminderMailer
	bus           events.Bus
	log           *logger.Logger
	interval      time.Duration
	thresholdDays int
	group         singleflight.Group
	now           func() time.Time
}

func NewReminderScheduler(store ReminderStore, mailer ReminderMailer, bus events.Bus,
	interval time.Duration, thresholdDays int, log *logger.Logger) *ReminderScheduler {
	return &ReminderScheduler{
		store:         store,
		mailer:        mailer,
		bus:           bus,
		log:           log,
		interval:      interval,
		thresholdDays: thresholdDays,
		now:           time.Now,
	}
}

// Run ticks until the context is cancelled.
func (s *ReminderScheduler) Run(ctx context.Context) {
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

func (s *ReminderScheduler) tickOnce(ctx context.Context) {
	_, _, _ = s.group.Do("reminders", func() (interface{}, error) {
		s.Tick(ctx)
		return nil, nil
	})
}

// Tick processes every unpaid invoice once and returns the number of
// reminders sent.
func (s *ReminderScheduler) Tick(ctx context.Context) int {
	ids, err := s.store.ListUnpaidInvoiceIDs(ctx)
	if err != nil {
		s.log.Error("list unpaid invoices failed", "error", err)
		return 0
	}

	now := s.now().UTC()
	sent := 0
	for _, id := range ids {
		ran, err := s.store.RunReminderUnit(ctx, id, now, reminderDue(now, s.thresholdDays), s.remindWork(now))
		if err != nil {
			s.log.SchedulerItemError("reminders", id, err)
			continue
		}
		if ran {
			sent++
		}
	}
	if sent > 0 {
		s.log.Info("reminder tick", "sent", sent)
	}
	return sent
}

func (s *ReminderScheduler) remindWork(now time.Time) func(ctx context.Context, inv domain.Invoice) error {
	return func(ctx context.Context, inv domain.Invoice) error {
		toEmail := inv.ClientEmail
		if inv.SenderEmail != nil && *inv.SenderEmail != "" {
			toEmail = *inv.SenderEmail
		}
		if toEmail == "" {
			return fmt.Errorf("invoice %s has no reminder address", inv.InvoiceNumber)
		}

		daysOutstanding := int(now.Sub(inv.CreatedAt).Hours() / 24)
		if err := s.mailer.SendReminderEmail(ctx, toEmail, inv.ClientName, inv.InvoiceNumber,
			inv.TotalCents, daysOutstanding); err != nil {
			return err
		}

		s.bus.Publish(ctx, events.ReminderSent{
			BaseEvent:     events.NewBaseEvent(),
			InvoiceID:     inv.ID,
			InvoiceNumber: inv.InvoiceNumber,
			Destination:   toEmail,
		})
		return nil
	}
}

// reminderDue gates on the threshold: a first reminder once the invoice is
// old enough, follow-ups only after the threshold has elapsed since the
// last successful one.
func reminderDue(now time.Time, thresholdDays int) func(domain.Invoice) bool {
	threshold := time.Duration(thresholdDays) * 24 * time.Hour
	return func(inv domain.Invoice) bool {
		if !inv.Status.Unpaid() {
			return false
		}
		cursor := inv.CreatedAt
		if inv.LastReminderAt != nil {
			cursor = *inv.LastReminderAt
		}
		return now.Sub(cursor) >= threshold
	}
}
