// Package commands turns free-form invoice instructions (chat messages,
// email bodies) into typed commands the invoice service executes.
package commands

import (
	"time"

	"invoicing_backend/internal/invoices/domain"
)

// Command is one of CreateInvoice, UpdateInvoice, or ReconcilePayment.
type Command interface {
	command()
}

// ItemInput is a line item as stated by the user. ExplicitAmountCents, when
// present, overrides the rate-times-quantity derivation.
type ItemInput struct {
	Description         string
	BaseRateCents       int64
	UnitQuantity        float64
	ExplicitAmountCents *int64
}

// Resolve converts the input into a line item with its amount settled.
func (in ItemInput) Resolve(position int) domain.LineItem {
	return domain.LineItem{
		Description:   in.Description,
		BaseRateCents: in.BaseRateCents,
		UnitQuantity:  in.UnitQuantity,
		AmountCents:   domain.ItemAmountCents(in.BaseRateCents, in.UnitQuantity, in.ExplicitAmountCents),
		Position:      position,
	}
}

// CreateInvoice materializes a brand-new invoice.
type CreateInvoice struct {
	ClientName            string
	ClientCompany         string
	ClientAddress         string
	ClientEmail           string
	ClientPhone           string
	IssueDate             time.Time
	BillingPeriod         string
	PaymentTerm           string
	ProjectIdentifier     string
	Items                 []ItemInput
	IncludeTransferCharge bool
	Recurrence            domain.RecurrenceInterval
	DeliveryEmail         string
}

func (CreateInvoice) command() {}

// UpdateInvoice patches an existing invoice, addressed by number. Nil
// pointers mean "leave unchanged".
type UpdateInvoice struct {
	InvoiceNumber         string
	ClientName            *string
	ClientCompany         *string
	ClientAddress         *string
	ClientEmail           *string
	ClientPhone           *string
	IssueDate             *time.Time
	BillingPeriod         *string
	PaymentTerm           *string
	ProjectIdentifier     *string
	IncludeTransferCharge *bool
	Recurrence            *domain.RecurrenceInterval
	AddItems              []ItemInput
	// RemoveItems names line items by description; matching is
	// case-insensitive on the trimmed description.
	RemoveItems []string
	// ReplaceItems swap the item with the same description wholesale.
	ReplaceItems []ItemInput
}

func (UpdateInvoice) command() {}

// ReconcilePayment records a bank transaction against an invoice.
type ReconcilePayment struct {
	InvoiceNumber string
	TransactionID string
	AmountCents   int64
	PaidOn        time.Time
}

func (ReconcilePayment) command() {}
