package chat

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"invoicing_backend/internal/commands"
	"invoicing_backend/internal/invoices/domain"
	"invoicing_backend/internal/projects"
	"invoicing_backend/platform/logger"
)

// InvoiceService is the slice of the invoice service the dialog needs.
type InvoiceService interface {
	BuildFromCreate(cmd commands.CreateInvoice) domain.Invoice
	Materialize(ctx context.Context, inv *domain.Invoice, source string) error
	Resend(ctx context.Context, invoiceID int64, toEmail string) error
	Get(ctx context.Context, id int64) (domain.Invoice, error)
	DocumentURL(ctx context.Context, inv domain.Invoice) (string, error)
	TransferChargeCents() int64
}

// ProjectResolver matches a free-text project code against the directory.
type ProjectResolver interface {
	Resolve(ctx context.Context, code string, threshold int) (projects.Resolution, error)
}

// Reply is what a dialog turn hands back to the transport.
type Reply struct {
	Text        string
	InvoiceID   int64
	DocumentURL string
}

// Engine processes one chat turn at a time per session. Turns for the same
// session are serialized with a per-session lock so state transitions keep
// their arrival order.
type Engine struct {
	store     Store
	svc       InvoiceService
	resolver  ProjectResolver
	threshold int
	log       *logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewEngine(store Store, svc InvoiceService, resolver ProjectResolver, threshold int, log *logger.Logger) *Engine {
	return &Engine{
		store:     store,
		svc:       svc,
		resolver:  resolver,
		threshold: threshold,
		log:       log,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (e *Engine) sessionLock(id string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[id] = lock
	}
	return lock
}

// HandleTurn runs one message through the session's current state. Errors
// never escape as raw failures to the user; every turn produces a reply.
func (e *Engine) HandleTurn(ctx context.Context, sessionID, message string) (Reply, error) {
	lock := e.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	session, err := e.store.Get(ctx, sessionID)
	if err != nil {
		return Reply{}, err
	}
	if session == nil {
		session = NewSession(sessionID)
	}

	reply := e.step(ctx, session, strings.TrimSpace(message))

	if err := e.store.Put(ctx, session); err != nil {
		return Reply{}, err
	}
	return reply, nil
}

func (e *Engine) step(ctx context.Context, session *Session, input string) Reply {
	switch session.State {
	case StateAwaitProjectCode, "":
		return e.stepAwaitProjectCode(ctx, session, input)
	case StateConfirmClient:
		return e.stepConfirmClient(session, input)
	case StateCollectItems:
		return e.stepCollectItems(session, input)
	case StateCollectPeriod:
		return e.stepCollectPeriod(session, input)
	case StateCollectPaymentChargeChoice:
		return e.stepCollectCharge(session, input)
	case StateConfirmInvoice:
		return e.stepConfirmInvoice(ctx, session, input)
	case StateAwaitDeliveryEmail:
		return e.stepAwaitDeliveryEmail(ctx, session, input)
	case StateIdle:
		return e.stepIdle(ctx, session, input)
	default:
		session.ResetCycle()
		return Reply{Text: "Let's start over. Which project is this invoice for?"}
	}
}

func (e *Engine) stepAwaitProjectCode(ctx context.Context, session *Session, input string) Reply {
	// A session that already produced an invoice can ask for a resend by
	// just typing an address.
	if session.LastInvoiceID != 0 && isEmailAddress(input) {
		if err := e.svc.Resend(ctx, session.LastInvoiceID, input); err != nil {
			return Reply{Text: "Sending the invoice failed. Please try again in a moment."}
		}
		return Reply{Text: fmt.Sprintf("Invoice sent to %s.", input)}
	}

	if session.Suggestion != nil && isAffirmative(input) {
		candidate := *session.Suggestion
		session.Suggestion = nil
		return e.acceptProject(session, candidate)
	}

	resolution, err := e.resolver.Resolve(ctx, input, e.threshold)
	if err != nil {
		e.log.Error("project resolution failed", "error", err)
		return Reply{Text: "Something went wrong looking up that project. Please try again."}
	}

	switch resolution.Outcome {
	case projects.OutcomeExact:
		session.Suggestion = nil
		return e.acceptProject(session, resolution.Candidate)
	case projects.OutcomeFuzzy:
		session.Suggestion = &resolution.Candidate
		return Reply{Text: fmt.Sprintf("I couldn't find %q. Did you mean %s? (yes/no)", input, resolution.Candidate.Code)}
	default:
		session.Suggestion = nil
		return Reply{Text: fmt.Sprintf("No project found matching %q. Please check the code and try again.", input)}
	}
}

func (e *Engine) acceptProject(session *Session, candidate projects.Candidate) Reply {
	session.Project = &candidate
	session.State = StateConfirmClient
	summary := candidate.ClientName
	if candidate.ClientCompany != "" {
		summary += " (" + candidate.ClientCompany + ")"
	}
	return Reply{Text: fmt.Sprintf("Project %s belongs to %s. Is this the client to invoice? (yes/no)", candidate.Code, summary)}
}

func (e *Engine) stepConfirmClient(session *Session, input string) Reply {
	if !isAffirmative(input) {
		session.Project = nil
		session.State = StateAwaitProjectCode
		return Reply{Text: "Okay, discarded. Which project is this invoice for?"}
	}
	session.State = StateCollectItems
	return Reply{Text: "Please list the billing period and items, for example: " + ItemsFormatExample}
}

func (e *Engine) stepCollectItems(session *Session, input string) Reply {
	items, period := parseItemsMessage(input)
	if len(items) == 0 {
		return Reply{Text: "I couldn't read any items. Use the form: " + ItemsFormatExample}
	}

	session.Items = items
	if period != "" {
		session.Period = period
		session.State = StateCollectPaymentChargeChoice
		return e.chargePrompt()
	}
	session.State = StateCollectPeriod
	return Reply{Text: "Which billing period is this invoice for?"}
}

func (e *Engine) stepCollectPeriod(session *Session, input string) Reply {
	if input == "" {
		return Reply{Text: "Please give me a billing period, for example: Apr 2025"}
	}
	session.Period = input
	session.State = StateCollectPaymentChargeChoice
	return e.chargePrompt()
}

func (e *Engine) chargePrompt() Reply {
	return Reply{Text: fmt.Sprintf("Should I include the %s bank transfer charge? (yes/no)", formatCents(e.svc.TransferChargeCents()))}
}

func (e *Engine) stepCollectCharge(session *Session, input string) Reply {
	if isAffirmative(input) {
		session.ChargeCents = e.svc.TransferChargeCents()
	} else {
		session.ChargeCents = 0
	}
	session.State = StateConfirmInvoice
	return Reply{Text: e.invoiceSummary(session) + "\nShall I create this invoice? (yes/no)"}
}

func (e *Engine) invoiceSummary(session *Session) string {
	var sb strings.Builder
	sb.WriteString("Invoice for " + session.Project.ClientName)
	if session.Period != "" {
		sb.WriteString(", period " + session.Period)
	}
	sb.WriteString(":")
	var subtotal int64
	for _, item := range session.Items {
		amount := domain.ItemAmountCents(item.BaseRateCents, item.UnitQuantity, item.ExplicitAmountCents)
		subtotal += amount
		sb.WriteString(fmt.Sprintf("\n- %s: %g x %s = %s",
			item.Description, item.UnitQuantity, formatCents(item.BaseRateCents), formatCents(amount)))
	}
	sb.WriteString("\nSubtotal: " + formatCents(subtotal))
	if session.ChargeCents > 0 {
		sb.WriteString("\nTransfer charge: " + formatCents(session.ChargeCents))
	}
	sb.WriteString("\nTotal: " + formatCents(subtotal+session.ChargeCents))
	return sb.String()
}

func (e *Engine) stepConfirmInvoice(ctx context.Context, session *Session, input string) Reply {
	if !isAffirmative(input) {
		session.Items = nil
		session.Period = ""
		session.ChargeCents = 0
		session.State = StateCollectItems
		return Reply{Text: "Okay, let's redo the items. For example: " + ItemsFormatExample}
	}

	// Leave ConfirmInvoice before the side effect so a retransmitted "yes"
	// can never materialize twice.
	session.State = StateAwaitDeliveryEmail

	inv := e.svc.BuildFromCreate(commands.CreateInvoice{
		ClientName:            session.Project.ClientName,
		ClientCompany:         session.Project.ClientCompany,
		ClientAddress:         session.Project.ClientAddress,
		ClientEmail:           session.Project.ClientEmail,
		ClientPhone:           session.Project.ClientPhone,
		IssueDate:             today(),
		BillingPeriod:         session.Period,
		ProjectIdentifier:     session.Project.Code,
		Items:                 session.Items,
		IncludeTransferCharge: session.ChargeCents > 0,
	})
	if err := e.svc.Materialize(ctx, &inv, "chat"); err != nil {
		e.log.Error("chat materialization failed", "sessionId", session.ID, "error", err)
		session.ResetCycle()
		return Reply{Text: "Creating the invoice failed. Nothing was saved; let's start over with the project code."}
	}

	session.LastInvoiceID = inv.ID
	session.Items = nil
	session.Period = ""
	session.ChargeCents = 0

	documentURL, _ := e.svc.DocumentURL(ctx, inv)
	return Reply{
		Text:        fmt.Sprintf("Created invoice %s over %s. Where should I send it? (an email address, or \"skip\")", inv.InvoiceNumber, formatCents(inv.TotalCents)),
		InvoiceID:   inv.ID,
		DocumentURL: documentURL,
	}
}

func (e *Engine) stepAwaitDeliveryEmail(ctx context.Context, session *Session, input string) Reply {
	if strings.EqualFold(input, "skip") {
		session.State = StateIdle
		return Reply{Text: "Okay, not sending it. Anything else?"}
	}
	if !isEmailAddress(input) {
		return Reply{Text: "That doesn't look like an email address. Please give me one, or say \"skip\"."}
	}

	if err := e.svc.Resend(ctx, session.LastInvoiceID, input); err != nil {
		e.log.Error("chat delivery failed", "sessionId", session.ID, "error", err)
		return Reply{Text: "Sending the invoice failed. Try the address again, or say \"skip\"."}
	}
	session.State = StateIdle
	return Reply{Text: fmt.Sprintf("Invoice sent to %s. Anything else?", input)}
}

func (e *Engine) stepIdle(ctx context.Context, session *Session, input string) Reply {
	if session.LastInvoiceID != 0 && mentionsMissingEmail(input) {
		if err := e.svc.Resend(ctx, session.LastInvoiceID, ""); err != nil {
			return Reply{Text: "Re-sending failed. Please try again in a moment."}
		}
		return Reply{Text: "I've re-sent the last invoice to the client's address."}
	}

	session.ResetCycle()
	return e.step(ctx, session, input)
}

func isAffirmative(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "yes", "y":
		return true
	}
	return false
}

func isEmailAddress(input string) bool {
	addr, err := mail.ParseAddress(input)
	return err == nil && addr.Address == input
}

// mentionsMissingEmail spots the "never got the email" family of phrases.
func mentionsMissingEmail(input string) bool {
	lowered := strings.ToLower(input)
	if strings.Contains(lowered, "resend") || strings.Contains(lowered, "re-send") {
		return true
	}
	if !strings.Contains(lowered, "mail") {
		return false
	}
	return strings.Contains(lowered, "never got") ||
		strings.Contains(lowered, "didn't receive") ||
		strings.Contains(lowered, "did not receive") ||
		strings.Contains(lowered, "didn't get") ||
		strings.Contains(lowered, "did not get") ||
		strings.Contains(lowered, "never received")
}

func formatCents(cents int64) string {
	return fmt.Sprintf("EUR %.2f", float64(cents)/100)
}

func today() time.Time {
	now := time.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
