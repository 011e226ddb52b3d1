// Package validation provides custom validation rules for the application.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	validation "github.com/jellydator/validation"

	apperrors "github.com/allisson/extractvault/internal/errors"
	extractionDomain "github.com/allisson/extractvault/internal/extraction/domain"
)

// identifierRegex matches opaque external identifiers such as document and application ids.
var identifierRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:\-]{0,127}$`)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// Identifier validates an opaque external identifier.
var Identifier = validation.NewStringRuleWithError(
	func(s string) bool {
		return identifierRegex.MatchString(s)
	},
	validation.NewError(
		"validation_identifier",
		"must be 1-128 characters of letters, digits, '.', '_', ':' or '-'",
	),
)

// FieldName validates that a string names a known extraction field.
var FieldName = validation.NewStringRuleWithError(
	func(s string) bool {
		_, err := extractionDomain.ParseFieldName(s)
		return err == nil
	},
	validation.NewError("validation_field_name", "must be a known extraction field"),
)

// Confidence validates a decimal confidence score in [0,1].
var Confidence = validation.NewStringRuleWithError(
	func(s string) bool {
		_, err := extractionDomain.ParseConfidence(s)
		return err == nil
	},
	validation.NewError(
		"validation_confidence",
		fmt.Sprintf(
			"must be a decimal between 0 and 1 with at most %d fractional digits",
			extractionDomain.MaxConfidenceScale,
		),
	),
)

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)
