package events

// Domain events published by the invoice engine.

// InvoiceMaterialized fires after an invoice (chat-created, email-created,
// or recurring clone) has been numbered, persisted, and rendered.
type InvoiceMaterialized struct {
	BaseEvent
	InvoiceID     int64
	InvoiceNumber string
	Source        string // "chat", "email", "recurring"
}

// EventName returns the unique event identifier.
func (e InvoiceMaterialized) EventName() string { return "invoice.materialized" }

// PaymentReconciled fires after a payment has been recorded against an
// invoice and its status recomputed.
type PaymentReconciled struct {
	BaseEvent
	InvoiceID     int64
	InvoiceNumber string
	AmountCents   int64
	NewStatus     string
}

// EventName returns the unique event identifier.
func (e PaymentReconciled) EventName() string { return "invoice.payment_reconciled" }

// ReminderSent fires after a payment reminder was delivered.
type ReminderSent struct {
	BaseEvent
	InvoiceID     int64
	InvoiceNumber string
	Destination   string
}

// EventName returns the unique event identifier.
func (e ReminderSent) EventName() string { return "invoice.reminder_sent" }
