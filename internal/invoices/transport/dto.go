// Package transport holds the JSON shapes of the invoice read API.
package transport

import (
	"time"

	"invoicing_backend/internal/invoices/domain"
)

type LineItemResponse struct {
	Description   string  `json:"description"`
	BaseRateCents int64   `json:"baseRateCents"`
	UnitQuantity  float64 `json:"unitQuantity"`
	AmountCents   int64   `json:"amountCents"`
}

type InvoiceResponse struct {
	ID                  int64              `json:"id"`
	InvoiceNumber       string             `json:"invoiceNumber"`
	ClientName          string             `json:"clientName"`
	ClientCompany       string             `json:"clientCompany,omitempty"`
	ClientAddress       string             `json:"clientAddress,omitempty"`
	ClientEmail         string             `json:"clientEmail,omitempty"`
	ClientPhone         string             `json:"clientPhone,omitempty"`
	IssueDate           string             `json:"issueDate"`
	BillingPeriod       string             `json:"billingPeriod,omitempty"`
	PaymentTerm         string             `json:"paymentTerm,omitempty"`
	ProjectCode         string             `json:"projectCode,omitempty"`
	Items               []LineItemResponse `json:"items"`
	SubtotalCents       int64              `json:"subtotalCents"`
	TransferChargeCents int64              `json:"transferChargeCents"`
	TotalCents          int64              `json:"totalCents"`
	Status              string             `json:"status"`
	Recurrence          string             `json:"recurrence"`
	LastReminderAt      *time.Time         `json:"lastReminderAt,omitempty"`
	LastRecurringSentAt *time.Time         `json:"lastRecurringSentAt,omitempty"`
	DocumentURL         string             `json:"documentUrl,omitempty"`
	CreatedAt           time.Time          `json:"createdAt"`
}

type ListInvoicesResponse struct {
	Invoices []InvoiceResponse `json:"invoices"`
	Total    int               `json:"total"`
}

// FromDomain maps an invoice onto its response shape. documentURL may be
// empty when no presigned link is available.
func FromDomain(inv domain.Invoice, documentURL string) InvoiceResponse {
	resp := InvoiceResponse{
		ID:                  inv.ID,
		InvoiceNumber:       inv.InvoiceNumber,
		ClientName:          inv.ClientName,
		ClientCompany:       inv.ClientCompany,
		ClientAddress:       inv.ClientAddress,
		ClientEmail:         inv.ClientEmail,
		ClientPhone:         inv.ClientPhone,
		IssueDate:           inv.IssueDate.Format("2006-01-02"),
		BillingPeriod:       inv.BillingPeriod,
		PaymentTerm:         inv.PaymentTerm,
		ProjectCode:         inv.ProjectCode,
		SubtotalCents:       inv.SubtotalCents,
		TransferChargeCents: inv.TransferChargeCents,
		TotalCents:          inv.TotalCents,
		Status:              string(inv.Status),
		Recurrence:          string(inv.Recurrence),
		LastReminderAt:      inv.LastReminderAt,
		LastRecurringSentAt: inv.LastRecurringSentAt,
		DocumentURL:         documentURL,
		CreatedAt:           inv.CreatedAt,
	}
	for _, item := range inv.Items {
		resp.Items = append(resp.Items, LineItemResponse{
			Description:   item.Description,
			BaseRateCents: item.BaseRateCents,
			UnitQuantity:  item.UnitQuantity,
			AmountCents:   item.AmountCents,
		})
	}
	if resp.Items == nil {
		resp.Items = []LineItemResponse{}
	}
	return resp
}
