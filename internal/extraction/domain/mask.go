package domain

import "strings"

const (
	maskChar    = "*"
	visibleTail = 4
)

var fullMask = strings.Repeat(maskChar, visibleTail)

// Mask derives the display-safe representation of a value for the given kind.
// Free text passes through unchanged.
func Mask(kind FieldKind, value string) string {
	switch kind {
	case KindFreeText:
		return value
	case KindSSN:
		return maskDigits(value, "***-**-")
	case KindTaxID:
		return maskDigits(value, "**-***")
	case KindBankAccount, KindRoutingNumber:
		return maskDigits(value, "****")
	default:
		panic("unhandled field kind")
	}
}

// maskDigits keeps the last four digits after a fixed prefix. Inputs with four or fewer
// digits render as fullMask whatever their length.
func maskDigits(value, prefix string) string {
	var digits []byte
	for i := 0; i < len(value); i++ {
		if value[i] >= '0' && value[i] <= '9' {
			digits = append(digits, value[i])
		}
	}

	if len(digits) <= visibleTail {
		return fullMask
	}

	return prefix + string(digits[len(digits)-visibleTail:])
}
