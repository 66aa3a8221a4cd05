// Package service implements the invoice lifecycle operations: materialize,
// update, reconcile payments, and deliver.
package service

import (
	"context"
	"fmt"
	"strings"

	"invoicing_backend/internal/commands"
	"invoicing_backend/internal/email"
	"invoicing_backend/internal/events"
	"invoicing_backend/internal/invoices/domain"
	"invoicing_backend/internal/invoices/repository"
	"invoicing_backend/internal/pdf"
	"invoicing_backend/internal/storage"
	"invoicing_backend/platform/apperr"
	"invoicing_backend/platform/config"
	"invoicing_backend/platform/logger"
)

type Service struct {
	repo     repository.Repository
	renderer pdf.Renderer
	store    storage.DocumentStore
	sender   email.Sender
	bus      events.Bus
	log      *logger.Logger
	cfg      config.InvoiceConfig
}

func New(repo repository.Repository, renderer pdf.Renderer, store storage.DocumentStore,
	sender email.Sender, bus events.Bus, log *logger.Logger, cfg config.InvoiceConfig) *Service {
	return &Service{
		repo:     repo,
		renderer: renderer,
		store:    store,
		sender:   sender,
		bus:      bus,
		log:      log,
		cfg:      cfg,
	}
}

// BuildFromCreate maps a create command onto a new invoice with all money
// fields settled.
func (s *Service) BuildFromCreate(cmd commands.CreateInvoice) domain.Invoice {
	inv := domain.Invoice{
		ClientName:    cmd.ClientName,
		ClientCompany: cmd.ClientCompany,
		ClientAddress: cmd.ClientAddress,
		ClientEmail:   cmd.ClientEmail,
		ClientPhone:   cmd.ClientPhone,
		IssueDate:     cmd.IssueDate,
		BillingPeriod: cmd.BillingPeriod,
		PaymentTerm:   cmd.PaymentTerm,
		ProjectCode:   cmd.ProjectIdentifier,
		Status:        domain.StatusSent,
		Recurrence:    cmd.Recurrence,
	}
	if inv.PaymentTerm == "" {
		inv.PaymentTerm = s.cfg.GetDefaultPaymentTerm()
	}
	if cmd.IncludeTransferCharge {
		inv.TransferChargeCents = s.cfg.GetTransferChargeCents()
	}
	for i, in := range cmd.Items {
		inv.Items = append(inv.Items, in.Resolve(i))
	}
	inv.ComputeTotals()
	return inv
}

// Materialize assigns an invoice number, persists the invoice, renders and
// stores its document, and publishes the materialization event. Source is
// "chat", "email", or "recurring".
func (s *Service) Materialize(ctx context.Context, inv *domain.Invoice, source string) error {
	if inv.ID != 0 || inv.InvoiceNumber != "" {
		return apperr.StateConflict("invoice is already materialized")
	}
	inv.ComputeTotals()
	if err := s.repo.Create(ctx, inv); err != nil {
		return apperr.Materialization("persist invoice", err)
	}

	if err := s.renderAndStore(ctx, inv); err != nil {
		return apperr.Materialization("render invoice document", err)
	}

	s.bus.Publish(ctx, events.InvoiceMaterialized{
		BaseEvent:     events.NewBaseEvent(),
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		Source:        source,
	})
	s.log.Info("invoice materialized",
		"invoiceNumber", inv.InvoiceNumber, "source", source, "totalCents", inv.TotalCents)
	return nil
}

func (s *Service) renderAndStore(ctx context.Context, inv *domain.Invoice) error {
	doc, err := s.renderer.RenderInvoiceDocument(ctx, *inv)
	if err != nil {
		return err
	}
	key := documentKey(inv.InvoiceNumber)
	if err := s.store.Store(ctx, key, doc); err != nil {
		return err
	}
	inv.DocumentKey = key
	return s.repo.SetDocumentKey(ctx, inv.ID, key)
}

func documentKey(invoiceNumber string) string {
	return fmt.Sprintf("invoices/%s.pdf", invoiceNumber)
}

// ApplyUpdate patches an existing invoice per the command, recomputes its
// totals, and regenerates the document.
func (s *Service) ApplyUpdate(ctx context.Context, cmd commands.UpdateInvoice) (domain.Invoice, error) {
	inv, err := s.repo.GetByNumber(ctx, cmd.InvoiceNumber)
	if err != nil {
		return domain.Invoice{}, err
	}

	applyString := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	applyString(&inv.ClientName, cmd.ClientName)
	applyString(&inv.ClientCompany, cmd.ClientCompany)
	applyString(&inv.ClientAddress, cmd.ClientAddress)
	applyString(&inv.ClientEmail, cmd.ClientEmail)
	applyString(&inv.ClientPhone, cmd.ClientPhone)
	applyString(&inv.BillingPeriod, cmd.BillingPeriod)
	applyString(&inv.PaymentTerm, cmd.PaymentTerm)
	applyString(&inv.ProjectCode, cmd.ProjectIdentifier)
	if cmd.IssueDate != nil {
		inv.IssueDate = *cmd.IssueDate
	}
	if cmd.IncludeTransferCharge != nil {
		if *cmd.IncludeTransferCharge {
			inv.TransferChargeCents = s.cfg.GetTransferChargeCents()
		} else {
			inv.TransferChargeCents = 0
		}
	}
	if cmd.Recurrence != nil {
		inv.Recurrence = *cmd.Recurrence
	}

	if err := applyItemEdits(&inv, cmd); err != nil {
		return domain.Invoice{}, err
	}

	inv.ComputeTotals()
	if err := s.repo.Update(ctx, &inv); err != nil {
		return domain.Invoice{}, err
	}

	if err := s.renderAndStore(ctx, &inv); err != nil {
		return domain.Invoice{}, apperr.Materialization("render updated document", err)
	}
	s.log.Info("invoice updated", "invoiceNumber", inv.InvoiceNumber)
	return inv, nil
}

// applyItemEdits removes, replaces, and adds line items. Removal and
// replacement match on the trimmed description, case-insensitively.
func applyItemEdits(inv *domain.Invoice, cmd commands.UpdateInvoice) error {
	sameDescription := func(a, b string) bool {
		return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
	}

	for _, desc := range cmd.RemoveItems {
		removed := false
		kept := inv.Items[:0]
		for _, item := range inv.Items {
			if !removed && sameDescription(item.Description, desc) {
				removed = true
				continue
			}
			kept = append(kept, item)
		}
		if !removed {
			return apperr.NotFound(fmt.Sprintf("line item %q not found", desc))
		}
		inv.Items = kept
	}

	for _, in := range cmd.ReplaceItems {
		replaced := false
		for i := range inv.Items {
			if sameDescription(inv.Items[i].Description, in.Description) {
				item := in.Resolve(inv.Items[i].Position)
				item.ID = 0
				inv.Items[i] = item
				replaced = true
				break
			}
		}
		if !replaced {
			return apperr.NotFound(fmt.Sprintf("line item %q not found", in.Description))
		}
	}

	for _, in := range cmd.AddItems {
		inv.Items = append(inv.Items, in.Resolve(len(inv.Items)))
	}

	// Reassign positions so ordering stays dense after removals.
	for i := range inv.Items {
		inv.Items[i].Position = i
		inv.Items[i].ID = 0
	}
	return nil
}

// ReconcilePayment records the payment and moves the invoice's status to
// partially or fully paid based on the running paid total.
func (s *Service) ReconcilePayment(ctx context.Context, cmd commands.ReconcilePayment) (domain.Invoice, error) {
	inv, err := s.repo.GetByNumber(ctx, cmd.InvoiceNumber)
	if err != nil {
		return domain.Invoice{}, err
	}

	paidTotal, err := s.repo.RecordPayment(ctx, inv.ID, cmd.TransactionID, cmd.AmountCents, cmd.PaidOn)
	if err != nil {
		return domain.Invoice{}, err
	}

	newStatus := domain.StatusPartiallyPaid
	if paidTotal >= inv.TotalCents {
		newStatus = domain.StatusFullyPaid
	}
	if newStatus != inv.Status {
		if err := s.repo.SetStatus(ctx, inv.ID, newStatus); err != nil {
			return domain.Invoice{}, err
		}
		inv.Status = newStatus
	}

	s.bus.Publish(ctx, events.PaymentReconciled{
		BaseEvent:     events.NewBaseEvent(),
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		AmountCents:   cmd.AmountCents,
		NewStatus:     string(inv.Status),
	})
	s.log.Info("payment reconciled",
		"invoiceNumber", inv.InvoiceNumber, "transactionId", cmd.TransactionID,
		"amountCents", cmd.AmountCents, "status", inv.Status)
	return inv, nil
}

// Deliver emails the invoice with its document attached.
func (s *Service) Deliver(ctx context.Context, inv domain.Invoice, toEmail string) error {
	doc, err := s.renderer.RenderInvoiceDocument(ctx, inv)
	if err != nil {
		return apperr.Delivery("render document for delivery", err)
	}

	downloadURL := ""
	if inv.DocumentKey != "" {
		if url, err := s.store.DownloadURL(ctx, inv.DocumentKey); err == nil {
			downloadURL = url
		}
	}

	err = s.sender.SendInvoiceEmail(ctx, toEmail, inv.ClientName, inv.InvoiceNumber,
		inv.BillingPeriod, inv.TotalCents, downloadURL,
		email.Attachment{FileName: inv.InvoiceNumber + ".pdf", Content: doc})
	if err != nil {
		s.log.DeliveryError(toEmail, "Invoice "+inv.InvoiceNumber, err)
		return apperr.Delivery("send invoice email", err)
	}
	return nil
}

// Resend re-delivers an already materialized invoice, defaulting to the
// client's stored address.
func (s *Service) Resend(ctx context.Context, invoiceID int64, toEmail string) error {
	inv, err := s.repo.GetByID(ctx, invoiceID)
	if err != nil {
		return err
	}
	if toEmail == "" {
		toEmail = inv.ClientEmail
	}
	if toEmail == "" {
		return apperr.BadRequest("invoice has no client email to send to")
	}
	return s.Deliver(ctx, inv, toEmail)
}

func (s *Service) Get(ctx context.Context, id int64) (domain.Invoice, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByNumber(ctx context.Context, number string) (domain.Invoice, error) {
	return s.repo.GetByNumber(ctx, number)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]domain.Invoice, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

// DocumentURL returns a short-lived download link for the invoice document.
func (s *Service) DocumentURL(ctx context.Context, inv domain.Invoice) (string, error) {
	if inv.DocumentKey == "" {
		return "", apperr.NotFound("invoice has no document")
	}
	return s.store.DownloadURL(ctx, inv.DocumentKey)
}

// TransferChargeCents exposes the configured fixed fee to the chat dialog.
func (s *Service) TransferChargeCents() int64 {
	return s.cfg.GetTransferChargeCents()
}
