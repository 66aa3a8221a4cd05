package domain

import (
	"testing"
	"time"
)

func TestItemAmountCents_DerivedFromRateAndUnit(t *testing.T) {
	got := ItemAmountCents(10000, 2, nil)
	if got != 20000 {
		t.Fatalf("expected 20000, got %d", got)
	}
}

func TestItemAmountCents_ExplicitOverrideWins(t *testing.T) {
	override := int64(14000)
	got := ItemAmountCents(5000, 3, &override)
	if got != 14000 {
		t.Fatalf("expected override 14000, got %d", got)
	}
}

func TestItemAmountCents_FractionalQuantityRounds(t *testing.T) {
	// 3.333 units at 1.00 -> 333 cents, not truncated to 332
	got := ItemAmountCents(100, 3.333, nil)
	if got != 333 {
		t.Fatalf("expected 333, got %d", got)
	}
}

func TestComputeTotals(t *testing.T) {
	inv := Invoice{
		Items: []LineItem{
			{AmountCents: 100000},
			{AmountCents: 25000},
		},
		TransferChargeCents: 3500,
	}
	inv.ComputeTotals()

	if inv.SubtotalCents != 125000 {
		t.Fatalf("expected subtotal 125000, got %d", inv.SubtotalCents)
	}
	if inv.TotalCents != 128500 {
		t.Fatalf("expected total 128500, got %d", inv.TotalCents)
	}
}

func TestCloneForPeriod(t *testing.T) {
	sent := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	sender := "client@example.com"
	template := Invoice{
		ID:                  7,
		InvoiceNumber:       "INV-000007",
		ClientName:          "Acme",
		ClientEmail:         "billing@acme.test",
		PaymentTerm:         "14 days",
		ProjectCode:         "UP-AND-1073",
		TransferChargeCents: 3500,
		Status:              StatusFullyPaid,
		Recurrence:          RecurrenceOnceAMonth,
		LastRecurringSentAt: &sent,
		SenderEmail:         &sender,
		Items: []LineItem{
			{ID: 1, InvoiceID: 7, Description: "Consulting", BaseRateCents: 10000, UnitQuantity: 10, AmountCents: 100000},
		},
	}

	issue := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	clone := template.CloneForPeriod(issue)

	if clone.ID != 0 || clone.InvoiceNumber != "" {
		t.Fatalf("clone must not carry identity, got id=%d number=%q", clone.ID, clone.InvoiceNumber)
	}
	if clone.Recurrence != RecurrenceNone {
		t.Fatalf("clone must not itself be recurring, got %q", clone.Recurrence)
	}
	if clone.LastRecurringSentAt != nil || clone.LastReminderAt != nil {
		t.Fatal("clone must start with empty cursors")
	}
	if !clone.IssueDate.Equal(issue) {
		t.Fatalf("expected issue date %v, got %v", issue, clone.IssueDate)
	}
	if clone.Status != StatusSent {
		t.Fatalf("expected clone status sent, got %q", clone.Status)
	}
	if len(clone.Items) != 1 || clone.Items[0].ID != 0 || clone.Items[0].InvoiceID != 0 {
		t.Fatalf("clone items must be detached copies: %+v", clone.Items)
	}
	if clone.SubtotalCents != 100000 || clone.TotalCents != 103500 {
		t.Fatalf("clone totals wrong: subtotal=%d total=%d", clone.SubtotalCents, clone.TotalCents)
	}

	// Mutating the clone's items must not touch the template.
	clone.Items[0].Description = "changed"
	if template.Items[0].Description != "Consulting" {
		t.Fatal("clone items alias the template items")
	}
}

func TestParseRecurrence(t *testing.T) {
	cases := map[string]RecurrenceInterval{
		"once_a_month":  RecurrenceOnceAMonth,
		"monthly":       RecurrenceOnceAMonth,
		"twice a month": RecurrenceTwiceAMonth,
		"twice_a_month": RecurrenceTwiceAMonth,
		"":              RecurrenceNone,
		"weekly":        RecurrenceNone,
	}
	for input, want := range cases {
		if got := ParseRecurrence(input); got != want {
			t.Fatalf("ParseRecurrence(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestStatusUnpaid(t *testing.T) {
	if !StatusSent.Unpaid() || !StatusPartiallyPaid.Unpaid() {
		t.Fatal("sent and partially_paid are unpaid")
	}
	if StatusDraft.Unpaid() || StatusFullyPaid.Unpaid() {
		t.Fatal("draft and fully_paid are not unpaid")
	}
}
