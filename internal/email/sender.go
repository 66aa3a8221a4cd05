// Package email renders and delivers the engine's outbound mail: invoice
// delivery, payment reminders, and intake acknowledgements.
package email

import "context"

// Attachment is a file attached to an outgoing email.
type Attachment struct {
	FileName string
	Content  []byte
}

// Sender delivers the engine's outbound emails. Implementations must treat
// a returned error as "nothing was delivered" so callers can retry safely.
type Sender interface {
	SendInvoiceEmail(ctx context.Context, toEmail, clientName, invoiceNumber, period string, totalCents int64, downloadURL string, attachments ...Attachment) error
	SendReminderEmail(ctx context.Context, toEmail, clientName, invoiceNumber string, totalCents int64, daysOutstanding int) error
	SendIntakeAckEmail(ctx context.Context, toEmail, action, invoiceNumber string) error
	SendIntakeRejectionEmail(ctx context.Context, toEmail, reason string) error
	SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error
}

// NoopSender is used when SMTP is not configured; sends succeed silently.
type NoopSender struct{}

func (NoopSender) SendInvoiceEmail(ctx context.Context, toEmail, clientName, invoiceNumber, period string, totalCents int64, downloadURL string, attachments ...Attachment) error {
	return nil
}

func (NoopSender) SendReminderEmail(ctx context.Context, toEmail, clientName, invoiceNumber string, totalCents int64, daysOutstanding int) error {
	return nil
}

func (NoopSender) SendIntakeAckEmail(ctx context.Context, toEmail, action, invoiceNumber string) error {
	return nil
}

func (NoopSender) SendIntakeRejectionEmail(ctx context.Context, toEmail, reason string) error {
	return nil
}

func (NoopSender) SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error {
	return nil
}

var _ Sender = NoopSender{}
