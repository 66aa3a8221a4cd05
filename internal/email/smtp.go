package email

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"

	"invoicing_backend/platform/config"
)

// SMTPSender delivers mail over a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

var _ Sender = (*SMTPSender)(nil)

func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
	}
}

func (s *SMTPSender) send(ctx context.Context, toEmail, subject, htmlContent string, attachments ...Attachment) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	for _, att := range attachments {
		msg.AttachReader(att.FileName, bytes.NewReader(att.Content))
	}

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}

func (s *SMTPSender) SendInvoiceEmail(ctx context.Context, toEmail, clientName, invoiceNumber, period string, totalCents int64, downloadURL string, attachments ...Attachment) error {
	data := invoiceEmailData{
		baseEmailData: baseEmailData{
			Title:   "Your invoice",
			Heading: fmt.Sprintf("Invoice %s", invoiceNumber),
		},
		ClientName:     clientName,
		InvoiceNumber:  invoiceNumber,
		Period:         period,
		TotalFormatted: formatCurrencyEUR(totalCents),
		HasAttachment:  len(attachments) > 0,
	}
	if downloadURL != "" {
		data.CTALabel = "Download invoice"
		data.CTAURL = downloadURL
	}
	content, err := renderEmailTemplate("invoice.html", data)
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectInvoiceFmt, invoiceNumber), content, attachments...)
}

func (s *SMTPSender) SendReminderEmail(ctx context.Context, toEmail, clientName, invoiceNumber string, totalCents int64, daysOutstanding int) error {
	content, err := renderEmailTemplate("reminder.html", reminderEmailData{
		baseEmailData: baseEmailData{
			Title:   "Payment reminder",
			Heading: "Payment reminder",
		},
		ClientName:      clientName,
		InvoiceNumber:   invoiceNumber,
		TotalFormatted:  formatCurrencyEUR(totalCents),
		DaysOutstanding: daysOutstanding,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectReminderFmt, invoiceNumber), content)
}

func (s *SMTPSender) SendIntakeAckEmail(ctx context.Context, toEmail, action, invoiceNumber string) error {
	content, err := renderEmailTemplate("intake_ack.html", intakeAckEmailData{
		baseEmailData: baseEmailData{
			Title:   "Request processed",
			Heading: "Request processed",
		},
		Action:        action,
		InvoiceNumber: invoiceNumber,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, fmt.Sprintf(subjectIntakeAckFmt, action), content)
}

func (s *SMTPSender) SendIntakeRejectionEmail(ctx context.Context, toEmail, reason string) error {
	content, err := renderEmailTemplate("intake_rejected.html", intakeRejectedEmailData{
		baseEmailData: baseEmailData{
			Title:   "Request not processed",
			Heading: "Request not processed",
		},
		Reason: reason,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, toEmail, subjectIntakeRejected, content)
}

func (s *SMTPSender) SendCustomEmail(ctx context.Context, toEmail, subject, htmlContent string) error {
	return s.send(ctx, toEmail, subject, htmlContent)
}
