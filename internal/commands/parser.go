package commands

import (
	"strings"
	"time"

	"invoicing_backend/internal/invoices/domain"
	"invoicing_backend/platform/apperr"
	"invoicing_backend/platform/phone"
)

// Field keys understood by the deterministic grammar. Keys are matched
// case-insensitively with inner whitespace collapsed.
const (
	keyClient        = "client"
	keyCompany       = "company"
	keyAddress       = "address"
	keyEmail         = "email"
	keyPhone         = "phone"
	keyDate          = "date"
	keyPeriod        = "period"
	keyBillingPeriod = "billing period"
	keyPaymentTerm   = "payment term"
	keyProject       = "project"
	keyItems         = "items"
	keyCharge        = "transfer charge"
	keyRecurrence    = "recurrence"
	keyInvoiceNumber = "invoice number"
	keyTransaction   = "transaction"
	keyAmount        = "amount"
	keyPaidOn        = "paid on"
	keySendTo        = "send to"
	keyAddItem       = "add item"
	keyRemoveItem    = "remove item"
	keyReplaceItem   = "replace item"
)

type field struct {
	key   string
	value string
}

// HasStructuredFields reports whether the body contains at least one
// recognizable "Key: value" line, which selects the deterministic parser
// over AI extraction.
func HasStructuredFields(body string) bool {
	for _, f := range scanFields(body) {
		if isKnownKey(f.key) {
			return true
		}
	}
	return false
}

func isKnownKey(key string) bool {
	switch key {
	case keyClient, keyCompany, keyAddress, keyEmail, keyPhone, keyDate,
		keyPeriod, keyBillingPeriod, keyPaymentTerm, keyProject, keyItems,
		keyCharge, keyRecurrence, keyInvoiceNumber, keyTransaction,
		keyAmount, keyPaidOn, keySendTo, keyAddItem, keyRemoveItem, keyReplaceItem:
		return true
	}
	return false
}

func normalizeKey(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(raw))), " ")
}

// scanFields extracts the Key: value lines in document order. Bullet lines
// (starting with "-" or "*") following an "Items:" header are folded into
// that header's value, separated by "|".
func scanFields(body string) []field {
	var fields []field
	itemsIdx := -1

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if bullet, ok := strings.CutPrefix(line, "-"); ok && itemsIdx >= 0 {
			appendItemGroup(&fields[itemsIdx], bullet)
			continue
		}
		if bullet, ok := strings.CutPrefix(line, "*"); ok && itemsIdx >= 0 {
			appendItemGroup(&fields[itemsIdx], bullet)
			continue
		}

		rawKey, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key := normalizeKey(rawKey)
		if !isKnownKey(key) {
			continue
		}
		fields = append(fields, field{key: key, value: strings.TrimSpace(value)})
		if key == keyItems {
			itemsIdx = len(fields) - 1
		} else {
			itemsIdx = -1
		}
	}
	return fields
}

func appendItemGroup(f *field, group string) {
	group = strings.TrimSpace(group)
	if group == "" {
		return
	}
	if f.value == "" {
		f.value = group
		return
	}
	f.value += " | " + group
}

// Parse interprets the body as one command. The routing is positional:
// a Transaction field means reconcile, an Invoice Number field without a
// transaction means update, anything else is a create.
func Parse(body string, now time.Time) (Command, error) {
	fields := scanFields(body)
	if len(fields) == 0 {
		return nil, apperr.BadRequest("no invoice fields found in message")
	}

	byKey := map[string]string{}
	for _, f := range fields {
		if _, seen := byKey[f.key]; !seen {
			byKey[f.key] = f.value
		}
	}

	if _, ok := byKey[keyTransaction]; ok {
		return parseReconcile(byKey)
	}
	if _, ok := byKey[keyInvoiceNumber]; ok {
		return parseUpdate(fields, byKey)
	}
	return parseCreate(byKey, now)
}

func parseCreate(byKey map[string]string, now time.Time) (Command, error) {
	cmd := CreateInvoice{
		ClientName:        byKey[keyClient],
		ClientCompany:     byKey[keyCompany],
		ClientAddress:     byKey[keyAddress],
		ClientEmail:       byKey[keyEmail],
		BillingPeriod:     firstNonEmpty(byKey[keyBillingPeriod], byKey[keyPeriod]),
		PaymentTerm:       byKey[keyPaymentTerm],
		ProjectIdentifier: byKey[keyProject],
		DeliveryEmail:     byKey[keySendTo],
	}
	if cmd.ClientName == "" {
		return nil, apperr.Malformed("client", "client name is required")
	}
	if cmd.ClientAddress == "" {
		return nil, apperr.Malformed("address", "client address is required")
	}
	if cmd.ClientEmail == "" {
		return nil, apperr.Malformed("email", "client email is required")
	}

	cmd.IssueDate = ParseDateOrDefault(byKey[keyDate], now)

	var err error
	cmd.Items, err = ParseItemGroups(byKey[keyItems])
	if err != nil {
		return nil, err
	}
	if len(cmd.Items) == 0 {
		return nil, apperr.Malformed("items", "at least one line item is required")
	}
	cmd.IncludeTransferCharge = ParseTransferCharge(byKey[keyCharge])
	cmd.Recurrence = domain.ParseRecurrence(strings.ToLower(strings.TrimSpace(byKey[keyRecurrence])))

	cmd.ClientPhone = phone.NormalizeE164(byKey[keyPhone])
	return cmd, nil
}

func parseUpdate(fields []field, byKey map[string]string) (Command, error) {
	number := strings.TrimSpace(byKey[keyInvoiceNumber])
	if number == "" {
		return nil, apperr.Malformed("invoice number", "invoice number is required")
	}
	cmd := UpdateInvoice{InvoiceNumber: number}

	setIf := func(key string, dst **string) {
		if v, ok := byKey[key]; ok {
			v := v
			*dst = &v
		}
	}
	setIf(keyClient, &cmd.ClientName)
	setIf(keyCompany, &cmd.ClientCompany)
	setIf(keyAddress, &cmd.ClientAddress)
	setIf(keyEmail, &cmd.ClientEmail)
	setIf(keyPaymentTerm, &cmd.PaymentTerm)
	setIf(keyProject, &cmd.ProjectIdentifier)

	if v, ok := byKey[keyBillingPeriod]; ok {
		cmd.BillingPeriod = &v
	} else if v, ok := byKey[keyPeriod]; ok {
		cmd.BillingPeriod = &v
	}
	if v, ok := byKey[keyDate]; ok {
		d, err := ParseDate("date", v)
		if err != nil {
			return nil, err
		}
		cmd.IssueDate = &d
	}
	if v, ok := byKey[keyCharge]; ok {
		include := ParseTransferCharge(v)
		cmd.IncludeTransferCharge = &include
	}
	if v, ok := byKey[keyRecurrence]; ok {
		r := domain.ParseRecurrence(strings.ToLower(strings.TrimSpace(v)))
		cmd.Recurrence = &r
	}
	if v, ok := byKey[keyPhone]; ok {
		normalized := phone.NormalizeE164(v)
		cmd.ClientPhone = &normalized
	}

	// Item edits keep their stated order and may repeat, so they come
	// from the ordered field list rather than the first-wins map.
	for _, f := range fields {
		switch f.key {
		case keyAddItem:
			item, err := ParseItemGroup(f.value)
			if err != nil {
				return nil, err
			}
			cmd.AddItems = append(cmd.AddItems, item)
		case keyReplaceItem:
			item, err := ParseItemGroup(f.value)
			if err != nil {
				return nil, err
			}
			cmd.ReplaceItems = append(cmd.ReplaceItems, item)
		case keyRemoveItem:
			desc := strings.TrimSpace(f.value)
			if desc == "" {
				return nil, apperr.Malformed("remove item", "item description is required")
			}
			cmd.RemoveItems = append(cmd.RemoveItems, desc)
		}
	}
	return cmd, nil
}

func parseReconcile(byKey map[string]string) (Command, error) {
	number := strings.TrimSpace(byKey[keyInvoiceNumber])
	if number == "" {
		return nil, apperr.Malformed("invoice number", "invoice number is required")
	}
	txID := strings.TrimSpace(byKey[keyTransaction])
	if txID == "" {
		return nil, apperr.Malformed("transaction", "transaction id is required")
	}
	rawAmount, ok := byKey[keyAmount]
	if !ok || strings.TrimSpace(rawAmount) == "" {
		return nil, apperr.Malformed("amount", "payment amount is required")
	}
	amount, err := ParseMoneyCents("amount", rawAmount)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, apperr.Malformed("amount", "payment amount must be positive")
	}
	paidOn, err := ParseDate("paid on", byKey[keyPaidOn])
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

// ParseItemGroups splits an items value into groups ("(a, 1, 2) | (b, 3, 4)"
// or bullet-folded "a, 1, 2 | b, 3, 4") and parses each.
func ParseItemGroups(value string) ([]ItemInput, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	var items []ItemInput
	for _, group := range strings.Split(value, "|") {
		group = strings.TrimSpace(group)
		if group == "" {
			continue
		}
		item, err := ParseItemGroup(group)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// ParseItemGroup parses one item group. The first comma-separated part is
// the description; the rest are named sub-fields ("Base Rate: 100",
// "Unit: 2", "Amount: 140") or, without labels, rate then quantity then
// amount positionally. Surrounding parentheses and a leading period are
// tolerated.
func ParseItemGroup(group string) (ItemInput, error) {
	group = strings.TrimSpace(group)
	group = strings.TrimPrefix(group, ".")
	group = strings.TrimSpace(group)
	group = strings.TrimPrefix(group, "(")
	group = strings.TrimSuffix(group, ")")

	parts := strings.Split(group, ",")
	item := ItemInput{}

	var rateValue, quantityValue, amountValue string
	var positional []string
	for i, part := range parts {
		part = strings.TrimSpace(part)
		label, value, labeled := strings.Cut(part, ":")
		if labeled {
			switch normalizeKey(label) {
			case "base rate", "rate":
				rateValue = value
				continue
			case "unit", "units", "quantity", "qty":
				quantityValue = value
				continue
			case "amount":
				amountValue = value
				continue
			case "description":
				item.Description = strings.TrimSpace(value)
				continue
			}
		}
		if i == 0 && item.Description == "" {
			item.Description = part
			continue
		}
		positional = append(positional, part)
	}

	// Unlabeled leftovers fill rate, quantity, amount in that order.
	for _, value := range positional {
		switch {
		case rateValue == "":
			rateValue = value
		case quantityValue == "":
			quantityValue = value
		case amountValue == "":
			amountValue = value
		default:
			return ItemInput{}, apperr.Malformed("items", "too many item fields")
		}
	}

	if item.Description == "" {
		return ItemInput{}, apperr.Malformed("items", "item description is required")
	}
	if strings.TrimSpace(rateValue) == "" || strings.TrimSpace(quantityValue) == "" {
		return ItemInput{}, apperr.Malformed("items", "item needs a base rate and a unit quantity")
	}

	rate, err := ParseMoneyCents("items", rateValue)
	if err != nil {
		return ItemInput{}, err
	}
	item.BaseRateCents = rate

	item.UnitQuantity, err = ParseQuantity("items", quantityValue)
	if err != nil {
		return ItemInput{}, err
	}

	if strings.TrimSpace(amountValue) != "" {
		amount, err := ParseMoneyCents("items", amountValue)
		if err != nil {
			return ItemInput{}, err
		}
		item.ExplicitAmountCents = &amount
	}
	return item, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
