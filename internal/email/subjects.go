package email

const (
	subjectInvoiceFmt     = "Invoice %s"
	subjectReminderFmt    = "Payment reminder for invoice %s"
	subjectIntakeAckFmt   = "Confirmation: %s processed"
	subjectIntakeRejected = "Your invoice request could not be processed"
)
