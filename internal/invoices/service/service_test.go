package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"invoicing_backend/internal/commands"
	"invoicing_backend/internal/email"
	"invoicing_backend/internal/events"
	"invoicing_backend/internal/invoices/domain"
	"invoicing_backend/internal/storage"
	"invoicing_backend/platform/apperr"
	"invoicing_backend/platform/logger"
)

// fakeRepo is an in-memory stand-in for the Postgres repository.
type fakeRepo struct {
	mu       sync.Mutex
	nextID   int64
	seq      int64
	invoices map[int64]*domain.Invoice
	payments map[int64]map[string]int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		invoices: make(map[int64]*domain.Invoice),
		payments: make(map[int64]map[string]int64),
	}
}

func (r *fakeRepo) GetByID(_ context.Context, id int64) (domain.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return domain.Invoice{}, apperr.NotFound("invoice not found")
	}
	return *inv, nil
}

func (r *fakeRepo) GetByNumber(_ context.Context, number string) (domain.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invoices {
		if inv.InvoiceNumber == number {
			return *inv, nil
		}
	}
	return domain.Invoice{}, apperr.NotFound("invoice not found")
}

func (r *fakeRepo) List(_ context.Context, _, _ int) ([]domain.Invoice, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Invoice
	for _, inv := range r.invoices {
		out = append(out, *inv)
	}
	return out, len(out), nil
}

func (r *fakeRepo) Create(_ context.Context, inv *domain.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.nextID++
	inv.ID = r.nextID
	inv.InvoiceNumber = fmt.Sprintf("INV-%06d", r.seq)
	inv.CreatedAt = time.Now()
	stored := *inv
	r.invoices[inv.ID] = &stored
	return nil
}

func (r *fakeRepo) Update(_ context.Context, inv *domain.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.invoices[inv.ID]; !ok {
		return apperr.NotFound("invoice not found")
	}
	stored := *inv
	r.invoices[inv.ID] = &stored
	return nil
}

func (r *fakeRepo) SetStatus(_ context.Context, id int64, status domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return apperr.NotFound("invoice not found")
	}
	inv.Status = status
	return nil
}

func (r *fakeRepo) SetDocumentKey(_ context.Context, id int64, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return apperr.NotFound("invoice not found")
	}
	inv.DocumentKey = key
	return nil
}

func (r *fakeRepo) RecordPayment(_ context.Context, invoiceID int64, transactionID string, amountCents int64, _ time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.payments[invoiceID] == nil {
		r.payments[invoiceID] = make(map[string]int64)
	}
	if _, seen := r.payments[invoiceID][transactionID]; !seen {
		r.payments[invoiceID][transactionID] = amountCents
	}
	var total int64
	for _, amount := range r.payments[invoiceID] {
		total += amount
	}
	return total, nil
}

func (r *fakeRepo) ListRecurringTemplateIDs(_ context.Context) ([]int64, error) { return nil, nil }
func (r *fakeRepo) ListUnpaidInvoiceIDs(_ context.Context) ([]int64, error)    { return nil, nil }

func (r *fakeRepo) RunRecurringUnit(_ context.Context, _ int64, _ time.Time,
	_ func(domain.Invoice) bool,
	_ func(context.Context, domain.Invoice, *domain.Invoice) error) (bool, error) {
	return false, nil
}

func (r *fakeRepo) RunReminderUnit(_ context.Context, _ int64, _ time.Time,
	_ func(domain.Invoice) bool,
	_ func(context.Context, domain.Invoice) error) (bool, error) {
	return false, nil
}

type fakeRenderer struct {
	fail bool
}

func (f *fakeRenderer) RenderInvoiceDocument(_ context.Context, inv domain.Invoice) ([]byte, error) {
	if f.fail {
		return nil, errors.New("render exploded")
	}
	return []byte("pdf:" + inv.InvoiceNumber), nil
}

// senderSpy records invoice sends and can be made to fail.
type senderSpy struct {
	mu       sync.Mutex
	invoices []string
	fail     bool
}

func newSenderSpy() *senderSpy { return &senderSpy{} }

func (f *senderSpy) SendInvoiceEmail(_ context.Context, toEmail, _, invoiceNumber, _ string, _ int64, _ string, _ ...email.Attachment) error {
	if f.fail {
		return errors.New("smtp down")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invoices = append(f.invoices, toEmail+":"+invoiceNumber)
	return nil
}

func (f *senderSpy) SendReminderEmail(context.Context, string, string, string, int64, int) error {
	return nil
}

func (f *senderSpy) SendIntakeAckEmail(context.Context, string, string, string) error { return nil }

func (f *senderSpy) SendIntakeRejectionEmail(context.Context, string, string) error { return nil }

func (f *senderSpy) SendCustomEmail(context.Context, string, string, string) error { return nil }

type testConfig struct{}

func (testConfig) GetInvoiceNumberPrefix() string { return "INV-" }
func (testConfig) GetTransferChargeCents() int64  { return 3500 }
func (testConfig) GetChatFuzzyThreshold() int     { return 4 }
func (testConfig) GetAPIFuzzyThreshold() int      { return 2 }
func (testConfig) GetDefaultPaymentTerm() string  { return "14 days" }

func newTestService(repo *fakeRepo, renderer *fakeRenderer, sender *senderSpy) (*Service, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	log := logger.New("development")
	bus := events.NewInMemoryBus(log)
	return New(repo, renderer, store, sender, bus, log, testConfig{}), store
}

func TestBuildFromCreate_TotalsAndCharge(t *testing.T) {
	svc, _ := newTestService(newFakeRepo(), &fakeRenderer{}, newSenderSpy())

	inv := svc.BuildFromCreate(commands.CreateInvoice{
		ClientName: "Acme",
		IssueDate:  time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC),
		Items: []commands.ItemInput{
			{Description: "Consulting", BaseRateCents: 10000, UnitQuantity: 10},
			{Description: "Support", BaseRateCents: 5000, UnitQuantity: 5},
		},
		IncludeTransferCharge: true,
	})

	if inv.SubtotalCents != 125000 {
		t.Fatalf("expected subtotal 125000, got %d", inv.SubtotalCents)
	}
	if inv.TransferChargeCents != 3500 {
		t.Fatalf("expected charge 3500, got %d", inv.TransferChargeCents)
	}
	if inv.TotalCents != 128500 {
		t.Fatalf("expected total 128500, got %d", inv.TotalCents)
	}
	if inv.PaymentTerm != "14 days" {
		t.Fatalf("expected default payment term, got %q", inv.PaymentTerm)
	}
}

func TestMaterialize_AssignsNumberAndStoresDocument(t *testing.T) {
	repo := newFakeRepo()
	svc, store := newTestService(repo, &fakeRenderer{}, newSenderSpy())

	inv := svc.BuildFromCreate(commands.CreateInvoice{
		ClientName: "Acme",
		Items:      []commands.ItemInput{{Description: "Work", BaseRateCents: 100, UnitQuantity: 1}},
	})
	if err := svc.Materialize(context.Background(), &inv, "chat"); err != nil {
		t.Fatalf("materialize failed: %v", err)
	}

	if inv.InvoiceNumber != "INV-000001" {
		t.Fatalf("expected INV-000001, got %q", inv.InvoiceNumber)
	}
	if inv.DocumentKey != "invoices/INV-000001.pdf" {
		t.Fatalf("unexpected document key %q", inv.DocumentKey)
	}
	if _, ok := store.Get(inv.DocumentKey); !ok {
		t.Fatal("document was not stored")
	}
}

func TestMaterialize_AlreadyMaterializedIsStateConflict(t *testing.T) {
	svc, _ := newTestService(newFakeRepo(), &fakeRenderer{}, newSenderSpy())

	inv := svc.BuildFromCreate(commands.CreateInvoice{
		ClientName: "Acme",
		Items:      []commands.ItemInput{{Description: "Work", BaseRateCents: 100, UnitQuantity: 1}},
	})
	if err := svc.Materialize(context.Background(), &inv, "chat"); err != nil {
		t.Fatalf("materialize failed: %v", err)
	}

	err := svc.Materialize(context.Background(), &inv, "chat")
	if !apperr.Is(err, apperr.KindStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestMaterialize_RenderFailureIsMaterializationError(t *testing.T) {
	svc, _ := newTestService(newFakeRepo(), &fakeRenderer{fail: true}, newSenderSpy())

	inv := svc.BuildFromCreate(commands.CreateInvoice{
		ClientName: "Acme",
		Items:      []commands.ItemInput{{Description: "Work", BaseRateCents: 100, UnitQuantity: 1}},
	})
	err := svc.Materialize(context.Background(), &inv, "chat")
	if !apperr.Is(err, apperr.KindMaterialization) {
		t.Fatalf("expected materialization error, got %v", err)
	}
}

func TestApplyUpdate_ItemEdits(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, &fakeRenderer{}, newSenderSpy())

	inv := svc.BuildFromCreate(commands.CreateInvoice{
		ClientName: "Acme",
		Items: []commands.ItemInput{
			{Description: "Design", BaseRateCents: 10000, UnitQuantity: 2},
			{Description: "Dev", BaseRateCents: 5000, UnitQuantity: 3},
		},
	})
	if err := svc.Materialize(context.Background(), &inv, "email"); err != nil {
		t.Fatalf("materialize failed: %v", err)
	}

	term := "30 days"
	updated, err := svc.ApplyUpdate(context.Background(), commands.UpdateInvoice{
		InvoiceNumber: inv.InvoiceNumber,
		PaymentTerm:   &term,
		RemoveItems:   []string{"design"},
		ReplaceItems:  []commands.ItemInput{{Description: "Dev", BaseRateCents: 6000, UnitQuantity: 3}},
		AddItems:      []commands.ItemInput{{Description: "Hosting", BaseRateCents: 2500, UnitQuantity: 1}},
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if updated.PaymentTerm != "30 days" {
		t.Fatalf("payment term not patched: %q", updated.PaymentTerm)
	}
	if len(updated.Items) != 2 {
		t.Fatalf("expected 2 items after edits, got %d: %+v", len(updated.Items), updated.Items)
	}
	// Dev replaced: 60.00 * 3 = 180.00; Hosting added: 25.00
	if updated.SubtotalCents != 20500 {
		t.Fatalf("expected subtotal 20500, got %d", updated.SubtotalCents)
	}
}

func TestApplyUpdate_RemoveUnknownItemFails(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, &fakeRenderer{}, newSenderSpy())

	inv := svc.BuildFromCreate(commands.CreateInvoice{
		ClientName: "Acme",
		Items:      []commands.ItemInput{{Description: "Work", BaseRateCents: 100, UnitQuantity: 1}},
	})
	if err := svc.Materialize(context.Background(), &inv, "email"); err != nil {
		t.Fatalf("materialize failed: %v", err)
	}

	_, err := svc.ApplyUpdate(context.Background(), commands.UpdateInvoice{
		InvoiceNumber: inv.InvoiceNumber,
		RemoveItems:   []string{"Nonexistent"},
	})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReconcilePayment_StatusTransitions(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, &fakeRenderer{}, newSenderSpy())

	inv := svc.BuildFromCreate(commands.CreateInvoice{
		ClientName: "Acme",
		Items:      []commands.ItemInput{{Description: "Work", BaseRateCents: 100000, UnitQuantity: 1}},
	})
	if err := svc.Materialize(context.Background(), &inv, "email"); err != nil {
		t.Fatalf("materialize failed: %v", err)
	}

	partial, err := svc.ReconcilePayment(context.Background(), commands.ReconcilePayment{
		InvoiceNumber: inv.InvoiceNumber,
		TransactionID: "TX-1",
		AmountCents:   40000,
		PaidOn:        time.Now(),
	})
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if partial.Status != domain.StatusPartiallyPaid {
		t.Fatalf("expected partially_paid, got %q", partial.Status)
	}

	full, err := svc.ReconcilePayment(context.Background(), commands.ReconcilePayment{
		InvoiceNumber: inv.InvoiceNumber,
		TransactionID: "TX-2",
		AmountCents:   60000,
		PaidOn:        time.Now(),
	})
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if full.Status != domain.StatusFullyPaid {
		t.Fatalf("expected fully_paid, got %q", full.Status)
	}
}

func TestReconcilePayment_DuplicateTransactionIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, &fakeRenderer{}, newSenderSpy())

	inv := svc.BuildFromCreate(commands.CreateInvoice{
		ClientName: "Acme",
		Items:      []commands.ItemInput{{Description: "Work", BaseRateCents: 100000, UnitQuantity: 1}},
	})
	if err := svc.Materialize(context.Background(), &inv, "email"); err != nil {
		t.Fatalf("materialize failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		got, err := svc.ReconcilePayment(context.Background(), commands.ReconcilePayment{
			InvoiceNumber: inv.InvoiceNumber,
			TransactionID: "TX-1",
			AmountCents:   40000,
			PaidOn:        time.Now(),
		})
		if err != nil {
			t.Fatalf("reconcile failed: %v", err)
		}
		if got.Status != domain.StatusPartiallyPaid {
			t.Fatalf("replayed transaction must not double-count, got %q", got.Status)
		}
	}
}

func TestResend_DefaultsToClientEmail(t *testing.T) {
	repo := newFakeRepo()
	sender := newSenderSpy()
	svc, _ := newTestService(repo, &fakeRenderer{}, sender)

	inv := svc.BuildFromCreate(commands.CreateInvoice{
		ClientName:  "Acme",
		ClientEmail: "billing@acme.test",
		Items:       []commands.ItemInput{{Description: "Work", BaseRateCents: 100, UnitQuantity: 1}},
	})
	if err := svc.Materialize(context.Background(), &inv, "chat"); err != nil {
		t.Fatalf("materialize failed: %v", err)
	}

	if err := svc.Resend(context.Background(), inv.ID, ""); err != nil {
		t.Fatalf("resend failed: %v", err)
	}
	if len(sender.invoices) != 1 || sender.invoices[0] != "billing@acme.test:"+inv.InvoiceNumber {
		t.Fatalf("unexpected sends: %v", sender.invoices)
	}
}

func TestDeliver_SendFailureIsDeliveryError(t *testing.T) {
	repo := newFakeRepo()
	sender := newSenderSpy()
	sender.fail = true
	svc, _ := newTestService(repo, &fakeRenderer{}, sender)

	inv := svc.BuildFromCreate(commands.CreateInvoice{
		ClientName:  "Acme",
		ClientEmail: "billing@acme.test",
		Items:       []commands.ItemInput{{Description: "Work", BaseRateCents: 100, UnitQuantity: 1}},
	})
	if err := svc.Materialize(context.Background(), &inv, "chat"); err != nil {
		t.Fatalf("materialize failed: %v", err)
	}

	err := svc.Deliver(context.Background(), inv, "billing@acme.test")
	if !apperr.Is(err, apperr.KindDelivery) {
		t.Fatalf("expected delivery error, got %v", err)
	}
}
