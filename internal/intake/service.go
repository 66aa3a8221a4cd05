// Package intake turns inbound email bodies into invoice mutations. A
// structured body goes through the deterministic parser; free-form text
// falls back to AI extraction when configured. Malformed input is rejected
// back to the caller so the message can stay unread for manual review.
package intake

import (
	"context"
	"time"

	"invoicing_backend/internal/commands"
	"invoicing_backend/internal/email"
	"invoicing_backend/internal/invoices/domain"
	"invoicing_backend/internal/projects"
	"invoicing_backend/platform/apperr"
	"invoicing_backend/platform/logger"
)

// InvoiceOps is the slice of the invoice service the intake pipeline uses.
type InvoiceOps interface {
	BuildFromCreate(cmd commands.CreateInvoice) domain.Invoice
	Materialize(ctx context.Context, inv *domain.Invoice, source string) error
	ApplyUpdate(ctx context.Context, cmd commands.UpdateInvoice) (domain.Invoice, error)
	ReconcilePayment(ctx context.Context, cmd commands.ReconcilePayment) (domain.Invoice, error)
	Deliver(ctx context.Context, inv domain.Invoice, toEmail string) error
}

// Extractor is the AI fallback for bodies without structured fields.
type Extractor interface {
	Extract(ctx context.Context, body string, now time.Time) (commands.Command, error)
}

// ProjectResolver canonicalizes the optional project identifier.
type ProjectResolver interface {
	Resolve(ctx context.Context, code string, threshold int) (projects.Resolution, error)
}

type Service struct {
	invoices  InvoiceOps
	extractor Extractor
	resolver  ProjectResolver
	threshold int
	sender    email.Sender
	log       *logger.Logger
}

func New(invoices InvoiceOps, extractor Extractor, resolver ProjectResolver,
	threshold int, sender email.Sender, log *logger.Logger) *Service {
	return &Service{
		invoices:  invoices,
		extractor: extractor,
		resolver:  resolver,
		threshold: threshold,
		sender:    sender,
		log:       log,
	}
}

// ProcessEmail parses one inbound message and applies the resulting
// command. A returned error is the rejection signal: the caller decides
// what to do with the message (typically leave it unread).
func (s *Service) ProcessEmail(ctx context.Context, senderAddress, body string) error {
	cmd, err := s.parse(ctx, body)
	if err != nil {
		s.log.Warn("inbound email rejected", "sender", senderAddress, "error", err)
		s.notifyRejection(ctx, senderAddress, err)
		return err
	}

	switch c := cmd.(type) {
	case commands.CreateInvoice:
		return s.handleCreate(ctx, senderAddress, c)
	case commands.UpdateInvoice:
		return s.handleUpdate(ctx, senderAddress, c)
	case commands.ReconcilePayment:
		return s.handleReconcile(ctx, senderAddress, c)
	default:
		return apperr.Internal("unhandled command type")
	}
}

func (s *Service) parse(ctx context.Context, body string) (commands.Command, error) {
	now := time.Now().UTC()
	if commands.HasStructuredFields(body) {
		return commands.Parse(body, now)
	}
	if s.extractor == nil {
		return nil, apperr.Malformed("body", "no structured fields and AI extraction is disabled")
	}
	return s.extractor.Extract(ctx, body, now)
}

func (s *Service) handleCreate(ctx context.Context, senderAddress string, cmd commands.CreateInvoice) error {
	if err := s.canonicalizeProject(ctx, &cmd.ProjectIdentifier); err != nil {
		s.notifyRejection(ctx, senderAddress, err)
		return err
	}

	inv := s.invoices.BuildFromCreate(cmd)
	inv.SenderEmail = &senderAddress
	if err := s.invoices.Materialize(ctx, &inv, "email"); err != nil {
		return err
	}

	toEmail := cmd.DeliveryEmail
	if toEmail == "" {
		toEmail = cmd.ClientEmail
	}
	if err := s.invoices.Deliver(ctx, inv, toEmail); err != nil {
		// The invoice exists; report the failed send but don't reject the
		// message as malformed.
		return err
	}

	s.acknowledge(ctx, senderAddress, "created", inv.InvoiceNumber)
	return nil
}

func (s *Service) handleUpdate(ctx context.Context, senderAddress string, cmd commands.UpdateInvoice) error {
	inv, err := s.invoices.ApplyUpdate(ctx, cmd)
	if err != nil {
		s.notifyRejection(ctx, senderAddress, err)
		return err
	}
	s.acknowledge(ctx, senderAddress, "updated", inv.InvoiceNumber)
	return nil
}

func (s *Service) handleReconcile(ctx context.Context, senderAddress string, cmd commands.ReconcilePayment) error {
	inv, err := s.invoices.ReconcilePayment(ctx, cmd)
	if err != nil {
		s.notifyRejection(ctx, senderAddress, err)
		return err
	}
	s.acknowledge(ctx, senderAddress, "payment recorded for", inv.InvoiceNumber)
	return nil
}

// canonicalizeProject replaces a free-text project identifier with the
// directory's canonical code. An unresolvable identifier rejects the
// message; the field is optional, so an empty one passes through.
func (s *Service) canonicalizeProject(ctx context.Context, identifier *string) error {
	if *identifier == "" || s.resolver == nil {
		return nil
	}
	resolution, err := s.resolver.Resolve(ctx, *identifier, s.threshold)
	if err != nil {
		return err
	}
	if resolution.Outcome == projects.OutcomeNoMatch {
		return apperr.NoMatch("unknown project identifier " + *identifier)
	}
	*identifier = resolution.Candidate.Code
	return nil
}

func (s *Service) acknowledge(ctx context.Context, senderAddress, action, invoiceNumber string) {
	if err := s.sender.SendIntakeAckEmail(ctx, senderAddress, action, invoiceNumber); err != nil {
		s.log.Warn("intake acknowledgement failed", "sender", senderAddress, "error", err)
	}
}

func (s *Service) notifyRejection(ctx context.Context, senderAddress string, cause error) {
	if err := s.sender.SendIntakeRejectionEmail(ctx, senderAddress, cause.Error()); err != nil {
		s.log.Warn("intake rejection notice failed", "sender", senderAddress, "error", err)
	}
}
