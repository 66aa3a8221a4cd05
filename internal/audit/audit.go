// Package audit keeps a bounded in-memory trail of invoice lifecycle
// events. It subscribes to the domain event bus and serves the recent
// history to operators through the admin API.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"invoicing_backend/internal/events"
	"invoicing_backend/platform/logger"
)

// Entry is one recorded lifecycle event.
type Entry struct {
	Event         string    `json:"event"`
	InvoiceNumber string    `json:"invoiceNumber"`
	Detail        string    `json:"detail"`
	At            time.Time `json:"at"`
}

const defaultTrailLimit = 256

// Trail records invoice lifecycle events as they are published, keeping
// the newest entries up to a fixed limit.
type Trail struct {
	log   *logger.Logger
	limit int

	mu      sync.Mutex
	entries []Entry
}

func NewTrail(log *logger.Logger) *Trail {
	return &Trail{log: log, limit: defaultTrailLimit}
}

// RegisterHandlers subscribes the trail to all invoice lifecycle events.
func (t *Trail) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.InvoiceMaterialized{}.EventName(), t)
	bus.Subscribe(events.PaymentReconciled{}.EventName(), t)
	bus.Subscribe(events.ReminderSent{}.EventName(), t)
}

// Handle records one event. Events the trail does not know are ignored.
func (t *Trail) Handle(_ context.Context, event events.Event) error {
	entry := Entry{Event: event.EventName(), At: event.OccurredAt()}
	switch e := event.(type) {
	case events.InvoiceMaterialized:
		entry.InvoiceNumber = e.InvoiceNumber
		entry.Detail = "materialized via " + e.Source
	case events.PaymentReconciled:
		entry.InvoiceNumber = e.InvoiceNumber
		entry.Detail = fmt.Sprintf("payment of %d cents, status %s", e.AmountCents, e.NewStatus)
	case events.ReminderSent:
		entry.InvoiceNumber = e.InvoiceNumber
		entry.Detail = "reminder to " + e.Destination
	default:
		return nil
	}

	t.mu.Lock()
	t.entries = append(t.entries, entry)
	if len(t.entries) > t.limit {
		t.entries = t.entries[len(t.entries)-t.limit:]
	}
	t.mu.Unlock()

	t.log.Info("invoice lifecycle event",
		"event", entry.Event, "invoiceNumber", entry.InvoiceNumber, "detail", entry.Detail)
	return nil
}

// Recent returns up to n entries, newest first.
func (t *Trail) Recent(n int) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n <= 0 || n > len(t.entries) {
		n = len(t.entries)
	}
	out := make([]Entry, 0, n)
	for i := len(t.entries) - 1; i >= len(t.entries)-n; i-- {
		out = append(out, t.entries[i])
	}
	return out
}
