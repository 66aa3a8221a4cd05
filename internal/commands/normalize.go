package commands

import (
	"strconv"
	"strings"
	"time"

	"invoicing_backend/platform/apperr"
)

// transferChargeTokens are the values that mean "yes, add the fixed
// transfer charge". Anything else, including absence, means no charge.
var transferChargeTokens = map[string]struct{}{
	"yes":      {},
	"y":        {},
	"true":     {},
	"1":        {},
	"include":  {},
	"included": {},
}

// ParseTransferCharge maps a free-text charge answer to a boolean.
func ParseTransferCharge(value string) bool {
	_, ok := transferChargeTokens[strings.ToLower(strings.TrimSpace(value))]
	return ok
}

// ParseMoneyCents parses a decimal money value ("100", "140.00", "€1250,50")
// into integer cents. Both "." and "," are accepted as the decimal mark; at
// most two fraction digits are allowed.
func ParseMoneyCents(field, value string) (int64, error) {
	s := strings.TrimSpace(value)
	s = strings.TrimLeft(s, "€$£ ")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, apperr.Malformed(field, "amount is empty")
	}

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}

	// Normalize a comma decimal mark, but only when it is unambiguous.
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}

	whole, frac, _ := strings.Cut(s, ".")
	if len(frac) > 2 {
		return 0, apperr.Malformed(field, "amount has more than two decimal places")
	}
	for len(frac) < 2 {
		frac += "0"
	}

	wholeN, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, apperr.Malformed(field, "amount is not a number")
	}
	fracN, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, apperr.Malformed(field, "amount is not a number")
	}

	cents := wholeN*100 + fracN
	if negative {
		cents = -cents
	}
	return cents, nil
}

// ParseQuantity parses a unit quantity; integers and decimals are accepted.
func ParseQuantity(field, value string) (float64, error) {
	s := strings.TrimSpace(value)
	s = strings.Replace(s, ",", ".", 1)
	q, err := strconv.ParseFloat(s, 64)
	if err != nil || q <= 0 {
		return 0, apperr.Malformed(field, "quantity must be a positive number")
	}
	return q, nil
}

// dateLayouts are tried in order when parsing a stated date.
var dateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"January 2, 2006",
	"2 January 2006",
}

// ParseDate parses a required date field. A missing or unreadable value is
// a field-specific error; financial dates are never defaulted.
func ParseDate(field, value string) (time.Time, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}, apperr.Malformed(field, "date is required")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apperr.Malformed(field, "date not understood, use YYYY-MM-DD")
}

// ParseDateOrDefault parses a stated date, falling back to def when the
// value is absent or not understood. Used for the invoice issue date,
// which defaults to today.
func ParseDateOrDefault(value string, def time.Time) time.Time {
	if t, err := ParseDate("date", value); err == nil {
		return t
	}
	return def
}
