// Package domain holds the invoice entities and the money arithmetic the
// rest of the engine builds on. Amounts are integer cents.
package domain

import (
	"math"
	"time"
)

// Status is the invoice payment lifecycle state.
type Status string

const (
	StatusDraft         Status = "draft"
	StatusSent          Status = "sent"
	StatusPartiallyPaid Status = "partially_paid"
	StatusFullyPaid     Status = "fully_paid"
)

// Unpaid reports whether the invoice still awaits (full) payment.
func (s Status) Unpaid() bool {
	return s == StatusSent || s == StatusPartiallyPaid
}

// RecurrenceInterval marks an invoice as a template for periodic clones.
type RecurrenceInterval string

const (
	RecurrenceNone        RecurrenceInterval = "none"
	RecurrenceOnceAMonth  RecurrenceInterval = "once_a_month"
	RecurrenceTwiceAMonth RecurrenceInterval = "twice_a_month"
)

// TwiceAMonthAnchorDays are the fixed calendar days the twice-a-month
// interval fires on, regardless of when the template was created.
var TwiceAMonthAnchorDays = [2]int{1, 15}

// LineItem is owned exclusively by one Invoice.
type LineItem struct {
	ID            int64
	InvoiceID     int64
	Description   string
	BaseRateCents int64
	UnitQuantity  float64
	AmountCents   int64
	Position      int
}

// Invoice is the aggregate root of the engine.
type Invoice struct {
	ID                  int64
	InvoiceNumber       string
	ClientName          string
	ClientCompany       string
	ClientAddress       string
	ClientEmail         string
	ClientPhone         string
	IssueDate           time.Time
	BillingPeriod       string
	PaymentTerm         string
	ProjectCode         string
	Items               []LineItem
	SubtotalCents       int64
	TransferChargeCents int64
	TotalCents          int64
	Status              Status
	Recurrence          RecurrenceInterval
	LastReminderAt      *time.Time
	LastRecurringSentAt *time.Time
	SenderEmail         *string
	DocumentKey         string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ItemAmountCents resolves a line item amount: the explicit override wins,
// otherwise base rate times unit quantity, rounded to the nearest cent.
func ItemAmountCents(baseRateCents int64, unitQuantity float64, explicit *int64) int64 {
	if explicit != nil {
		return *explicit
	}
	return int64(math.Round(float64(baseRateCents) * unitQuantity))
}

// ComputeTotals recomputes subtotal and total from the line items and the
// transfer charge. Total always equals subtotal plus transfer charge.
func (inv *Invoice) ComputeTotals() {
	var subtotal int64
	for _, item := range inv.Items {
		subtotal += item.AmountCents
	}
	inv.SubtotalCents = subtotal
	inv.TotalCents = subtotal + inv.TransferChargeCents
}

// CloneForPeriod copies the template's client, terms, and items into a
// brand-new invoice for the given issue date. The clone is a one-off
// instance: recurrence cleared, cursors empty, number unassigned.
func (inv *Invoice) CloneForPeriod(issueDate time.Time) Invoice {
	clone := Invoice{
		ClientName:          inv.ClientName,
		ClientCompany:       inv.ClientCompany,
		ClientAddress:       inv.ClientAddress,
		ClientEmail:         inv.ClientEmail,
		ClientPhone:         inv.ClientPhone,
		IssueDate:           issueDate,
		BillingPeriod:       inv.BillingPeriod,
		PaymentTerm:         inv.PaymentTerm,
		ProjectCode:         inv.ProjectCode,
		TransferChargeCents: inv.TransferChargeCents,
		Status:              StatusSent,
		Recurrence:          RecurrenceNone,
		SenderEmail:         inv.SenderEmail,
	}
	clone.Items = make([]LineItem, len(inv.Items))
	for i, item := range inv.Items {
		clone.Items[i] = LineItem{
			Description:   item.Description,
			BaseRateCents: item.BaseRateCents,
			UnitQuantity:  item.UnitQuantity,
			AmountCents:   item.AmountCents,
			Position:      item.Position,
		}
	}
	clone.ComputeTotals()
	return clone
}

// ParseRecurrence normalizes a free-text recurrence value.
func ParseRecurrence(value string) RecurrenceInterval {
	switch value {
	case string(RecurrenceOnceAMonth), "monthly", "once a month":
		return RecurrenceOnceAMonth
	case string(RecurrenceTwiceAMonth), "twice a month":
		return RecurrenceTwiceAMonth
	default:
		return RecurrenceNone
	}
}
