package domain

import "sort"

// FieldName is one of the known extracted field names.
type FieldName string

const (
	FieldSSN               FieldName = "ssn"
	FieldTaxID             FieldName = "taxId"
	FieldBankAccountNumber FieldName = "bankAccountNumber"
	FieldRoutingNumber     FieldName = "routingNumber"
	FieldBusinessName      FieldName = "businessName"
	FieldDBAName           FieldName = "dbaName"
	FieldOwnerName         FieldName = "ownerName"
	FieldBusinessAddress   FieldName = "businessAddress"
	FieldCity              FieldName = "city"
	FieldState             FieldName = "state"
	FieldPostalCode        FieldName = "postalCode"
	FieldPhone             FieldName = "phone"
	FieldEmail             FieldName = "email"
	FieldBankName          FieldName = "bankName"
	FieldEntityType        FieldName = "entityType"
)

// FieldKind classifies a field and selects its masking rule.
type FieldKind uint8

const (
	KindFreeText FieldKind = iota
	KindSSN
	KindTaxID
	KindBankAccount
	KindRoutingNumber
)

// classification is the single source of truth for which fields are sensitive.
var classification = map[FieldName]FieldKind{
	FieldSSN:               KindSSN,
	FieldTaxID:             KindTaxID,
	FieldBankAccountNumber: KindBankAccount,
	FieldRoutingNumber:     KindRoutingNumber,
	FieldBusinessName:      KindFreeText,
	FieldDBAName:           KindFreeText,
	FieldOwnerName:         KindFreeText,
	FieldBusinessAddress:   KindFreeText,
	FieldCity:              KindFreeText,
	FieldState:             KindFreeText,
	FieldPostalCode:        KindFreeText,
	FieldPhone:             KindFreeText,
	FieldEmail:             KindFreeText,
	FieldBankName:          KindFreeText,
	FieldEntityType:        KindFreeText,
}

// ParseFieldName validates a raw field name against the known set.
func ParseFieldName(raw string) (FieldName, error) {
	name := FieldName(raw)
	if _, ok := classification[name]; !ok {
		return "", ErrUnknownField
	}
	return name, nil
}

// Kind returns the classification of a known field name.
func (f FieldName) Kind() FieldKind {
	return classification[f]
}

// IsSensitive reports whether the field must be encrypted at rest.
func (f FieldName) IsSensitive() bool {
	return f.Kind().IsSensitive()
}

// IsSensitive reports whether values of this kind are encrypted and masked.
func (k FieldKind) IsSensitive() bool {
	switch k {
	case KindSSN, KindTaxID, KindBankAccount, KindRoutingNumber:
		return true
	case KindFreeText:
		return false
	default:
		panic("unhandled field kind")
	}
}

func (k FieldKind) String() string {
	switch k {
	case KindFreeText:
		return "free_text"
	case KindSSN:
		return "ssn"
	case KindTaxID:
		return "tax_id"
	case KindBankAccount:
		return "bank_account"
	case KindRoutingNumber:
		return "routing_number"
	default:
		return "unknown"
	}
}

// sensitiveFields lists the sensitive field names in stable order.
func sensitiveFields() []FieldName {
	var out []FieldName
	for name, kind := range classification {
		if kind.IsSensitive() {
			out = append(out, name)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
