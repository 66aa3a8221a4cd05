package pdf

import (
	"bytes"
	"context"
	"embed"
	"encoding/base64"
	"fmt"
	"html/template"

	"github.com/jung-kurt/gofpdf"

	"invoicing_backend/internal/invoices/domain"
	"invoicing_backend/platform/config"
)

//go:embed templates/*.html
var templateFS embed.FS

const qrSizePx = 200

// Renderer turns an invoice into its delivery document.
type Renderer interface {
	RenderInvoiceDocument(ctx context.Context, inv domain.Invoice) ([]byte, error)
}

// Generator renders invoices through Gotenberg when configured, falling
// back to a plain gofpdf layout when it is not.
type Generator struct {
	gotenberg *GotenbergClient
	profile   config.CompanyProfile
}

var _ Renderer = (*Generator)(nil)

// NewGenerator builds a Generator. gotenberg may be nil.
func NewGenerator(gotenberg *GotenbergClient, profile config.CompanyProfile) *Generator {
	return &Generator{gotenberg: gotenberg, profile: profile}
}

type documentItem struct {
	Description     string
	RateFormatted   string
	Quantity        float64
	AmountFormatted string
}

type documentData struct {
	Company       config.CompanyProfile
	Invoice       domain.Invoice
	Items         []documentItem
	IssueDate     string
	Subtotal      string
	TransferFee   string
	Total         string
	HasTransfer   bool
	QRCodeDataURI template.URL
}

func (g *Generator) RenderInvoiceDocument(ctx context.Context, inv domain.Invoice) ([]byte, error) {
	if g.gotenberg != nil {
		html, err := g.renderHTML(inv)
		if err != nil {
			return nil, err
		}
		return g.gotenberg.ConvertHTML(ctx, html, InvoiceOpts())
	}
	return g.renderFallback(inv)
}

func (g *Generator) renderHTML(inv domain.Invoice) ([]byte, error) {
	data := documentData{
		Company:     g.profile,
		Invoice:     inv,
		IssueDate:   inv.IssueDate.Format("2 January 2006"),
		Subtotal:    formatEUR(inv.SubtotalCents),
		TransferFee: formatEUR(inv.TransferChargeCents),
		Total:       formatEUR(inv.TotalCents),
		HasTransfer: inv.TransferChargeCents > 0,
	}
	for _, item := range inv.Items {
		data.Items = append(data.Items, documentItem{
			Description:     item.Description,
			RateFormatted:   formatEUR(item.BaseRateCents),
			Quantity:        item.UnitQuantity,
			AmountFormatted: formatEUR(item.AmountCents),
		})
	}

	if png, err := g.paymentQR(inv); err == nil && png != nil {
		data.QRCodeDataURI = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))
	}

	tmpl, err := template.ParseFS(templateFS, "templates/invoice.html")
	if err != nil {
		return nil, fmt.Errorf("parse invoice template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("execute invoice template: %w", err)
	}
	return buf.Bytes(), nil
}

func (g *Generator) paymentQR(inv domain.Invoice) ([]byte, error) {
	if g.profile.Bank.IBAN == "" {
		return nil, nil
	}
	qr := PaymentQR{
		BeneficiaryName: g.profile.Bank.AccountHolder,
		IBAN:            g.profile.Bank.IBAN,
		BIC:             g.profile.Bank.BIC,
		AmountCents:     inv.TotalCents,
		Remittance:      inv.InvoiceNumber,
	}
	return qr.Encode(qrSizePx)
}

// renderFallback draws a minimal invoice with gofpdf so the engine keeps
// working without a Gotenberg instance.
func (g *Generator) renderFallback(inv domain.Invoice) ([]byte, error) {
	doc := gofpdf.New("P", "mm", "A4", "")
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 18)
	doc.Cell(0, 10, fmt.Sprintf("Invoice %s", inv.InvoiceNumber))
	doc.Ln(12)

	doc.SetFont("Helvetica", "", 10)
	if g.profile.Name != "" {
		doc.Cell(0, 5, g.profile.Name)
		doc.Ln(5)
	}
	if g.profile.Address != "" {
		doc.Cell(0, 5, g.profile.Address)
		doc.Ln(5)
	}
	doc.Ln(5)

	doc.SetFont("Helvetica", "B", 10)
	doc.Cell(0, 5, "Billed to")
	doc.Ln(5)
	doc.SetFont("Helvetica", "", 10)
	doc.Cell(0, 5, inv.ClientName)
	doc.Ln(5)
	if inv.ClientCompany != "" {
		doc.Cell(0, 5, inv.ClientCompany)
		doc.Ln(5)
	}
	if inv.ClientAddress != "" {
		doc.Cell(0, 5, inv.ClientAddress)
		doc.Ln(5)
	}
	doc.Ln(3)
	doc.Cell(0, 5, fmt.Sprintf("Issue date: %s", inv.IssueDate.Format("2 January 2006")))
	doc.Ln(5)
	if inv.BillingPeriod != "" {
		doc.Cell(0, 5, fmt.Sprintf("Period: %s", inv.BillingPeriod))
		doc.Ln(5)
	}
	if inv.PaymentTerm != "" {
		doc.Cell(0, 5, fmt.Sprintf("Payment term: %s", inv.PaymentTerm))
		doc.Ln(5)
	}
	doc.Ln(5)

	doc.SetFont("Helvetica", "B", 10)
	doc.CellFormat(90, 7, "Description", "1", 0, "L", false, 0, "")
	doc.CellFormat(30, 7, "Rate", "1", 0, "R", false, 0, "")
	doc.CellFormat(20, 7, "Qty", "1", 0, "R", false, 0, "")
	doc.CellFormat(30, 7, "Amount", "1", 1, "R", false, 0, "")

	doc.SetFont("Helvetica", "", 10)
	for _, item := range inv.Items {
		doc.CellFormat(90, 7, item.Description, "1", 0, "L", false, 0, "")
		doc.CellFormat(30, 7, formatEUR(item.BaseRateCents), "1", 0, "R", false, 0, "")
		doc.CellFormat(20, 7, fmt.Sprintf("%g", item.UnitQuantity), "1", 0, "R", false, 0, "")
		doc.CellFormat(30, 7, formatEUR(item.AmountCents), "1", 1, "R", false, 0, "")
	}

	doc.Ln(3)
	doc.CellFormat(140, 7, "Subtotal", "", 0, "R", false, 0, "")
	doc.CellFormat(30, 7, formatEUR(inv.SubtotalCents), "", 1, "R", false, 0, "")
	if inv.TransferChargeCents > 0 {
		doc.CellFormat(140, 7, "Transfer charge", "", 0, "R", false, 0, "")
		doc.CellFormat(30, 7, formatEUR(inv.TransferChargeCents), "", 1, "R", false, 0, "")
	}
	doc.SetFont("Helvetica", "B", 10)
	doc.CellFormat(140, 7, "Total", "", 0, "R", false, 0, "")
	doc.CellFormat(30, 7, formatEUR(inv.TotalCents), "", 1, "R", false, 0, "")

	if png, err := g.paymentQR(inv); err == nil && png != nil {
		opts := gofpdf.ImageOptions{ImageType: "PNG"}
		doc.RegisterImageOptionsReader("payment-qr", opts, bytes.NewReader(png))
		doc.ImageOptions("payment-qr", 10, doc.GetY()+10, 35, 35, false, opts, 0, "")
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render fallback pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func formatEUR(cents int64) string {
	return fmt.Sprintf("EUR %.2f", float64(cents)/100)
}
