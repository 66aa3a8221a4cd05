package audit

import (
	"context"
	"testing"

	"invoicing_backend/internal/events"
	"invoicing_backend/platform/logger"
)

func newTestTrail() (*Trail, events.Bus) {
	log := logger.New("development")
	bus := events.NewInMemoryBus(log)
	trail := NewTrail(log)
	trail.RegisterHandlers(bus)
	return trail, bus
}

func TestTrail_RecordsLifecycleEvents(t *testing.T) {
	trail, bus := newTestTrail()
	ctx := context.Background()

	if err := bus.PublishSync(ctx, events.InvoiceMaterialized{
		BaseEvent: events.NewBaseEvent(), InvoiceNumber: "INV-000001", Source: "chat",
	}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if err := bus.PublishSync(ctx, events.PaymentReconciled{
		BaseEvent: events.NewBaseEvent(), InvoiceNumber: "INV-000001",
		AmountCents: 108500, NewStatus: "fully_paid",
	}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if err := bus.PublishSync(ctx, events.ReminderSent{
		BaseEvent: events.NewBaseEvent(), InvoiceNumber: "INV-000002",
		Destination: "billing@upward.test",
	}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	entries := trail.Recent(10)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	// Newest first.
	if entries[0].Event != "invoice.reminder_sent" || entries[0].Detail != "reminder to billing@upward.test" {
		t.Fatalf("unexpected newest entry: %+v", entries[0])
	}
	if entries[2].Event != "invoice.materialized" || entries[2].Detail != "materialized via chat" {
		t.Fatalf("unexpected oldest entry: %+v", entries[2])
	}
}

func TestTrail_BoundsHistory(t *testing.T) {
	trail, bus := newTestTrail()
	trail.limit = 5
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		if err := bus.PublishSync(ctx, events.InvoiceMaterialized{
			BaseEvent: events.NewBaseEvent(), InvoiceNumber: "INV-000001", Source: "recurring",
		}); err != nil {
			t.Fatalf("publish failed: %v", err)
		}
	}
	if got := len(trail.Recent(100)); got != 5 {
		t.Fatalf("expected the trail to hold 5 entries, got %d", got)
	}
}

func TestTrail_IgnoresUnknownEvents(t *testing.T) {
	trail, _ := newTestTrail()

	if err := trail.Handle(context.Background(), unknownEvent{}); err != nil {
		t.Fatalf("unknown event must be a no-op, got %v", err)
	}
	if got := len(trail.Recent(10)); got != 0 {
		t.Fatalf("expected no entries, got %d", got)
	}
}

type unknownEvent struct{ events.BaseEvent }

func (unknownEvent) EventName() string { return "something.else" }
