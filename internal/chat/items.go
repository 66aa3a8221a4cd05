package chat

import (
	"strings"

	"invoicing_backend/internal/commands"
)

// ItemsFormatExample is shown whenever a turn yields zero usable items.
const ItemsFormatExample = "Apr 2025 (Consulting, 10, 100 | Support, 5, 50)"

// parseItemsMessage reads the single collect-items turn: an optional
// leading period segment followed by a parenthesized or pipe/line
// delimited list of item triples (description, quantity, rate). A four
// field form carries a period override in the third position. Items whose
// quantity or rate do not parse are dropped.
func parseItemsMessage(message string) (items []commands.ItemInput, period string) {
	message = strings.TrimSpace(message)
	list := message

	if open := strings.IndexByte(message, '('); open >= 0 {
		period = strings.TrimSpace(message[:open])
		list = message[open+1:]
		if end := strings.LastIndexByte(list, ')'); end >= 0 {
			list = list[:end]
		}
	}

	for _, group := range splitGroups(list) {
		item, periodOverride, ok := parseItemTriple(group)
		if !ok {
			continue
		}
		if periodOverride != "" {
			period = periodOverride
		}
		items = append(items, item)
	}
	return items, period
}

// splitGroups separates the item list on pipes and newlines.
func splitGroups(list string) []string {
	raw := strings.FieldsFunc(list, func(r rune) bool {
		return r == '|' || r == '\n'
	})
	groups := make([]string, 0, len(raw))
	for _, group := range raw {
		if trimmed := strings.TrimSpace(group); trimmed != "" {
			groups = append(groups, trimmed)
		}
	}
	return groups
}

// parseItemTriple reads one group of comma or semicolon separated fields.
// Three fields are (description, quantity, rate); four fields put a period
// override in the third position.
func parseItemTriple(group string) (commands.ItemInput, string, bool) {
	raw := strings.FieldsFunc(group, func(r rune) bool {
		return r == ',' || r == ';'
	})
	fields := make([]string, 0, len(raw))
	for _, field := range raw {
		if trimmed := strings.TrimSpace(field); trimmed != "" {
			fields = append(fields, trimmed)
		}
	}

	var description, quantityField, rateField, periodOverride string
	switch len(fields) {
	case 3:
		description, quantityField, rateField = fields[0], fields[1], fields[2]
	case 4:
		description, quantityField, periodOverride, rateField = fields[0], fields[1], fields[2], fields[3]
	default:
		return commands.ItemInput{}, "", false
	}

	quantity, err := commands.ParseQuantity("quantity", quantityField)
	if err != nil {
		return commands.ItemInput{}, "", false
	}
	rateCents, err := commands.ParseMoneyCents("rate", rateField)
	if err != nil {
		return commands.ItemInput{}, "", false
	}

	return commands.ItemInput{
		Description:   description,
		BaseRateCents: rateCents,
		UnitQuantity:  quantity,
	}, periodOverride, true
}
