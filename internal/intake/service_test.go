package intake

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"invoicing_backend/internal/commands"
	"invoicing_backend/internal/email"
	"invoicing_backend/internal/invoices/domain"
	"invoicing_backend/internal/projects"
	"invoicing_backend/platform/apperr"
	"invoicing_backend/platform/logger"
)

type fakeOps struct {
	nextID       int64
	materialized []domain.Invoice
	updates      []commands.UpdateInvoice
	reconciles   []commands.ReconcilePayment
	deliveries   []string
}

func (f *fakeOps) BuildFromCreate(cmd commands.CreateInvoice) domain.Invoice {
	inv := domain.Invoice{
		ClientName:    cmd.ClientName,
		ClientAddress: cmd.ClientAddress,
		ClientEmail:   cmd.ClientEmail,
		IssueDate:     cmd.IssueDate,
		BillingPeriod: cmd.BillingPeriod,
		ProjectCode:   cmd.ProjectIdentifier,
		Status:        domain.StatusSent,
		Recurrence:    cmd.Recurrence,
	}
	for i, in := range cmd.Items {
		inv.Items = append(inv.Items, in.Resolve(i))
	}
	inv.ComputeTotals()
	return inv
}

func (f *fakeOps) Materialize(_ context.Context, inv *domain.Invoice, _ string) error {
	f.nextID++
	inv.ID = f.nextID
	inv.InvoiceNumber = fmt.Sprintf("INV-%06d", f.nextID)
	f.materialized = append(f.materialized, *inv)
	return nil
}

func (f *fakeOps) ApplyUpdate(_ context.Context, cmd commands.UpdateInvoice) (domain.Invoice, error) {
	f.updates = append(f.updates, cmd)
	return domain.Invoice{InvoiceNumber: cmd.InvoiceNumber}, nil
}

func (f *fakeOps) ReconcilePayment(_ context.Context, cmd commands.ReconcilePayment) (domain.Invoice, error) {
	f.reconciles = append(f.reconciles, cmd)
	return domain.Invoice{InvoiceNumber: cmd.InvoiceNumber}, nil
}

func (f *fakeOps) Deliver(_ context.Context, inv domain.Invoice, toEmail string) error {
	f.deliveries = append(f.deliveries, toEmail+":"+inv.InvoiceNumber)
	return nil
}

type recordingSender struct {
	acks       []string
	rejections []string
}

func (r *recordingSender) SendInvoiceEmail(_ context.Context, _, _, _, _ string, _ int64, _ string, _ ...email.Attachment) error {
	return nil
}

func (r *recordingSender) SendReminderEmail(context.Context, string, string, string, int64, int) error {
	return nil
}

func (r *recordingSender) SendIntakeAckEmail(_ context.Context, toEmail, action, invoiceNumber string) error {
	r.acks = append(r.acks, toEmail+":"+action+":"+invoiceNumber)
	return nil
}

func (r *recordingSender) SendIntakeRejectionEmail(_ context.Context, toEmail, reason string) error {
	r.rejections = append(r.rejections, toEmail+":"+reason)
	return nil
}

func (r *recordingSender) SendCustomEmail(context.Context, string, string, string) error { return nil }

type directoryResolver struct {
	candidates []projects.Candidate
}

func (d *directoryResolver) Resolve(ctx context.Context, code string, threshold int) (projects.Resolution, error) {
	return projects.NewResolver(listSource(d.candidates)).Resolve(ctx, code, threshold)
}

type listSource []projects.Candidate

func (l listSource) ListCandidates(context.Context) ([]projects.Candidate, error) { return l, nil }

func newTestService(ops *fakeOps, sender *recordingSender) *Service {
	resolver := &directoryResolver{candidates: []projects.Candidate{
		{ID: 1, Code: "UP-AND-1073", ClientName: "Upward Agency"},
	}}
	return New(ops, nil, resolver, 2, sender, logger.New("development"))
}

const createBody = `Client: Upward Agency
Address: 12 Canal Street, Amsterdam
Email: billing@upward.test
Date: 2025-04-10
Billing Period: Apr 2025
Items:
- Design, Base Rate: 100, Unit: 2
- Dev, Base Rate: 50, Unit: 3, Amount: 140
`

func TestProcessEmail_CreateWithExplicitAmountOverride(t *testing.T) {
	ops := &fakeOps{}
	sender := &recordingSender{}
	svc := newTestService(ops, sender)

	if err := svc.ProcessEmail(context.Background(), "ops@studio.test", createBody); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if len(ops.materialized) != 1 {
		t.Fatalf("expected 1 invoice, got %d", len(ops.materialized))
	}
	inv := ops.materialized[0]
	// 100.00 * 2 plus the explicit 140.00 override of 50.00 * 3.
	if inv.SubtotalCents != 34000 {
		t.Fatalf("expected subtotal 34000, got %d", inv.SubtotalCents)
	}
	if inv.SenderEmail == nil || *inv.SenderEmail != "ops@studio.test" {
		t.Fatalf("sender address should be stored on the invoice: %v", inv.SenderEmail)
	}
	if len(ops.deliveries) != 1 || !strings.HasPrefix(ops.deliveries[0], "billing@upward.test:") {
		t.Fatalf("expected delivery to the client address: %v", ops.deliveries)
	}
	if len(sender.acks) != 1 || !strings.Contains(sender.acks[0], "created") {
		t.Fatalf("expected a created acknowledgement: %v", sender.acks)
	}
}

func TestProcessEmail_UpdateRoutesOnInvoiceNumber(t *testing.T) {
	ops := &fakeOps{}
	sender := &recordingSender{}
	svc := newTestService(ops, sender)

	body := "Invoice Number: INV-000007\nPayment Term: 30 days\n"
	if err := svc.ProcessEmail(context.Background(), "ops@studio.test", body); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if len(ops.updates) != 1 || ops.updates[0].InvoiceNumber != "INV-000007" {
		t.Fatalf("expected one update for INV-000007: %+v", ops.updates)
	}
	if len(ops.materialized) != 0 {
		t.Fatal("update must not materialize a new invoice")
	}
}

func TestProcessEmail_ReconcileMissingTransactionIsRejected(t *testing.T) {
	ops := &fakeOps{}
	sender := &recordingSender{}
	svc := newTestService(ops, sender)

	body := "Invoice Number: INV-000007\nTransaction: \nAmount: 1085.00\nPaid On: 2025-04-20\n"
	err := svc.ProcessEmail(context.Background(), "ops@studio.test", body)
	if !apperr.Is(err, apperr.KindMalformed) {
		t.Fatalf("expected malformed rejection, got %v", err)
	}
	if len(ops.reconciles) != 0 && len(ops.materialized) != 0 && len(ops.updates) != 0 {
		t.Fatal("a rejected message must produce no mutation")
	}
	if len(sender.rejections) != 1 {
		t.Fatalf("expected one rejection notice: %v", sender.rejections)
	}
}

func TestProcessEmail_ReconcileHappyPath(t *testing.T) {
	ops := &fakeOps{}
	sender := &recordingSender{}
	svc := newTestService(ops, sender)

	body := "Invoice Number: INV-000007\nTransaction: TX-42\nAmount: 1085.00\nPaid On: 2025-04-20\n"
	if err := svc.ProcessEmail(context.Background(), "ops@studio.test", body); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if len(ops.reconciles) != 1 {
		t.Fatalf("expected one reconciliation: %+v", ops.reconciles)
	}
	got := ops.reconciles[0]
	if got.TransactionID != "TX-42" || got.AmountCents != 108500 {
		t.Fatalf("unexpected reconcile command: %+v", got)
	}
}

func TestProcessEmail_UnknownProjectIdentifierIsRejected(t *testing.T) {
	ops := &fakeOps{}
	sender := &recordingSender{}
	svc := newTestService(ops, sender)

	body := createBody + "Project: ZZZZZZZZ\n"
	err := svc.ProcessEmail(context.Background(), "ops@studio.test", body)
	if !apperr.Is(err, apperr.KindNoMatch) {
		t.Fatalf("expected no-match rejection, got %v", err)
	}
	if len(ops.materialized) != 0 {
		t.Fatal("no invoice should be created for an unknown project")
	}
}

func TestProcessEmail_FreeFormWithoutExtractorIsRejected(t *testing.T) {
	ops := &fakeOps{}
	sender := &recordingSender{}
	svc := newTestService(ops, sender)

	err := svc.ProcessEmail(context.Background(), "ops@studio.test", "hey, please invoice upward for april")
	if !apperr.Is(err, apperr.KindMalformed) {
		t.Fatalf("expected malformed rejection, got %v", err)
	}
}
