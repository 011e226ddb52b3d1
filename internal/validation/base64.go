package validation

import (
	"encoding/base64"

	validation "github.com/jellydator/validation"
)

// Base64 validates that a string is standard base64-encoded data. Empty strings pass so
// Required can report them.
var Base64 = validation.By(func(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_base64_type", "must be a string")
	}
	if s == "" {
		return nil
	}
	if _, err := base64.StdEncoding.DecodeString(s); err != nil {
		return validation.NewError("validation_base64", "must be valid base64-encoded data")
	}
	return nil
})

// MaxDecodedLen rejects base64 strings whose decoded payload would exceed n bytes.
func MaxDecodedLen(n int) validation.Rule {
	return validation.By(func(value interface{}) error {
		s, ok := value.(string)
		if !ok {
			return validation.NewError("validation_base64_type", "must be a string")
		}
		if base64.StdEncoding.DecodedLen(len(s)) > n+2 {
			return validation.NewError("validation_base64_too_large", "decoded payload is too large")
		}
		return nil
	})
}
