package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"invoicing_backend/internal/invoices/domain"
	"invoicing_backend/platform/apperr"
	"invoicing_backend/platform/phone"
)

// Extractor pulls invoice fields out of unstructured prose using Gemini
// with a constrained JSON response schema. It is the fallback strategy
// when a message carries no recognizable Key: value lines. The model only
// extracts fields; all validation and money arithmetic stay deterministic
// on our side.
type Extractor struct {
	client *genai.Client
	model  string
}

func NewExtractor(ctx context.Context, apiKey, model string) (*Extractor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Extractor{client: client, model: model}, nil
}

type extractedItem struct {
	Description string  `json:"description"`
	Rate        string  `json:"rate"`
	Quantity    string  `json:"quantity"`
	Amount      *string `json:"amount,omitempty"`
}

type extractedCommand struct {
	Intent         string          `json:"intent"` // create, update, or reconcile
	InvoiceNumber  string          `json:"invoiceNumber,omitempty"`
	Client         string          `json:"client,omitempty"`
	Company        string          `json:"company,omitempty"`
	Address        string          `json:"address,omitempty"`
	Email          string          `json:"email,omitempty"`
	Phone          string          `json:"phone,omitempty"`
	Date           string          `json:"date,omitempty"`
	BillingPeriod  string          `json:"billingPeriod,omitempty"`
	PaymentTerm    string          `json:"paymentTerm,omitempty"`
	Project        string          `json:"project,omitempty"`
	Items          []extractedItem `json:"items,omitempty"`
	TransferCharge string          `json:"transferCharge,omitempty"`
	Recurrence     string          `json:"recurrence,omitempty"`
	TransactionID  string          `json:"transactionId,omitempty"`
	Amount         string          `json:"amount,omitempty"`
	PaidOn         string          `json:"paidOn,omitempty"`
}

var extractionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"intent":        {Type: genai.TypeString, Enum: []string{"create", "update", "reconcile"}},
		"invoiceNumber": {Type: genai.TypeString},
		"client":        {Type: genai.TypeString},
		"company":       {Type: genai.TypeString},
		"address":       {Type: genai.TypeString},
		"email":         {Type: genai.TypeString},
		"phone":         {Type: genai.TypeString},
		"date":          {Type: genai.TypeString},
		"billingPeriod": {Type: genai.TypeString},
		"paymentTerm":   {Type: genai.TypeString},
		"project":       {Type: genai.TypeString},
		"items": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"description": {Type: genai.TypeString},
					"rate":        {Type: genai.TypeString},
					"quantity":    {Type: genai.TypeString},
					"amount":      {Type: genai.TypeString},
				},
				Required: []string{"description", "rate", "quantity"},
			},
		},
		"transferCharge": {Type: genai.TypeString},
		"recurrence":     {Type: genai.TypeString},
		"transactionId":  {Type: genai.TypeString},
		"amount":         {Type: genai.TypeString},
		"paidOn":         {Type: genai.TypeString},
	},
	Required: []string{"intent"},
}

const extractionInstruction = `You extract invoice instructions from a message.
Classify the intent: "create" for a new invoice, "update" when the message
references an existing invoice number without a payment, "reconcile" when it
reports a received payment or bank transaction.
Copy values verbatim from the message. Leave out anything not stated. Never
invent amounts, dates, or identifiers. Rates, quantities, and amounts are
returned as the literal text from the message.`

// Extract runs the model over the body and converts the structured reply
// through the same validation path the deterministic parser uses.
func (e *Extractor) Extract(ctx context.Context, body string, now time.Time) (Command, error) {
	resp, err := e.client.Models.GenerateContent(ctx, e.model,
		genai.Text(body),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(extractionInstruction, genai.RoleUser),
			ResponseMIMEType:  "application/json",
			ResponseSchema:    extractionSchema,
		})
	if err != nil {
		return nil, fmt.Errorf("generate extraction: %w", err)
	}

	var extracted extractedCommand
	if err := json.Unmarshal([]byte(resp.Text()), &extracted); err != nil {
		return nil, fmt.Errorf("decode extraction: %w", err)
	}
	return extracted.toCommand(now)
}

func (x extractedCommand) toCommand(now time.Time) (Command, error) {
	switch x.Intent {
	case "reconcile":
		return x.toReconcile()
	case "update":
		return x.toUpdate()
	case "create":
		return x.toCreate(now)
	default:
		return nil, apperr.BadRequest("message does not describe an invoice action")
	}
}

func (x extractedCommand) items() ([]ItemInput, error) {
	var items []ItemInput
	for _, raw := range x.Items {
		item := ItemInput{Description: strings.TrimSpace(raw.Description)}
		if item.Description == "" {
			return nil, apperr.Malformed("items", "item description is required")
		}
		rate, err := ParseMoneyCents("items", raw.Rate)
		if err != nil {
			return nil, err
		}
		item.BaseRateCents = rate
		item.UnitQuantity, err = ParseQuantity("items", raw.Quantity)
		if err != nil {
			return nil, err
		}
		if raw.Amount != nil && strings.TrimSpace(*raw.Amount) != "" {
			amount, err := ParseMoneyCents("items", *raw.Amount)
			if err != nil {
				return nil, err
			}
			item.ExplicitAmountCents = &amount
		}
		items = append(items, item)
	}
	return items, nil
}

func (x extractedCommand) toCreate(now time.Time) (Command, error) {
	if strings.TrimSpace(x.Client) == "" {
		return nil, apperr.Malformed("client", "client name is required")
	}
	if strings.TrimSpace(x.Address) == "" {
		return nil, apperr.Malformed("address", "client address is required")
	}
	if strings.TrimSpace(x.Email) == "" {
		return nil, apperr.Malformed("email", "client email is required")
	}
	items, err := x.items()
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperr.Malformed("items", "at least one line item is required")
	}
	return CreateInvoice{
		ClientName:            x.Client,
		ClientCompany:         x.Company,
		ClientAddress:         x.Address,
		ClientEmail:           x.Email,
		ClientPhone:           phone.NormalizeE164(x.Phone),
		IssueDate:             ParseDateOrDefault(x.Date, now),
		BillingPeriod:         x.BillingPeriod,
		PaymentTerm:           x.PaymentTerm,
		ProjectIdentifier:     x.Project,
		Items:                 items,
		IncludeTransferCharge: ParseTransferCharge(x.TransferCharge),
		Recurrence:            domain.ParseRecurrence(strings.ToLower(strings.TrimSpace(x.Recurrence))),
	}, nil
}

func (x extractedCommand) toUpdate() (Command, error) {
	number := strings.TrimSpace(x.InvoiceNumber)
	if number == "" {
		return nil, apperr.Malformed("invoice number", "invoice number is required")
	}
	cmd := UpdateInvoice{InvoiceNumber: number}

	set := func(value string, dst **string) {
		if strings.TrimSpace(value) != "" {
			v := value
			*dst = &v
		}
	}
	set(x.Client, &cmd.ClientName)
	set(x.Company, &cmd.ClientCompany)
	set(x.Address, &cmd.ClientAddress)
	set(x.Email, &cmd.ClientEmail)
	set(x.BillingPeriod, &cmd.BillingPeriod)
	set(x.PaymentTerm, &cmd.PaymentTerm)
	set(x.Project, &cmd.ProjectIdentifier)

	if strings.TrimSpace(x.Phone) != "" {
		normalized := phone.NormalizeE164(x.Phone)
		cmd.ClientPhone = &normalized
	}
	if strings.TrimSpace(x.Date) != "" {
		d, err := ParseDate("date", x.Date)
		if err != nil {
			return nil, err
		}
		cmd.IssueDate = &d
	}
	if strings.TrimSpace(x.TransferCharge) != "" {
		include := ParseTransferCharge(x.TransferCharge)
		cmd.IncludeTransferCharge = &include
	}
	if strings.TrimSpace(x.Recurrence) != "" {
		r := domain.ParseRecurrence(strings.ToLower(strings.TrimSpace(x.Recurrence)))
		cmd.Recurrence = &r
	}

	// Restated items on an update are treated as replacements; the model
	// has no reliable way to distinguish add from replace, so the safer
	// interpretation wins and the service matches by description.
	items, err := x.items()
	if err != nil {
		return nil, err
	}
	cmd.ReplaceItems = items
	return cmd, nil
}

func (x extractedCommand) toReconcile() (Command, error) {
	number := strings.TrimSpace(x.InvoiceNumber)
	if number == "" {
		return nil, apperr.Malformed("invoice number", "invoice number is required")
	}
	txID := strings.TrimSpace(x.TransactionID)
	if txID == "" {
		return nil, apperr.Malformed("transaction", "transaction id is required")
	}
	if strings.TrimSpace(x.Amount) == "" {
		return nil, apperr.Malformed("amount", "payment amount is required")
	}
	amount, err := ParseMoneyCents("amount", x.Amount)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, apperr.Malformed("amount", "payment amount must be positive")
	}
	paidOn, err := ParseDate("paid on", x.PaidOn)
	if err != nil {
		return nil, err
	}
	return ReconcilePayment{
		InvoiceNumber: number,
		TransactionID: txID,
		AmountCents:   amount,
		PaidOn:        paidOn,
	}, nil
}
