package pdf

import (
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// PaymentQR renders an EPC069-12 (SEPA credit transfer) QR code so the
// client can pay by scanning it in a banking app.
type PaymentQR struct {
	BeneficiaryName string
	IBAN            string
	BIC             string
	AmountCents     int64
	Remittance      string
}

// Encode returns the QR code as a PNG.
func (q PaymentQR) Encode(size int) ([]byte, error) {
	payload := q.payload()
	png, err := qrcode.Encode(payload, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode payment qr: %w", err)
	}
	return png, nil
}

// payload builds the EPC QR text block. Field order is fixed by the spec;
// empty trailing fields still need their line.
func (q PaymentQR) payload() string {
	lines := []string{
		"BCD",
		"002",
		"1",
		"SCT",
		q.BIC,
		q.BeneficiaryName,
		strings.ReplaceAll(q.IBAN, " ", ""),
		fmt.Sprintf("EUR%.2f", float64(q.AmountCents)/100),
		"",
		"",
		q.Remittance,
	}
	return strings.Join(lines, "\n")
}
