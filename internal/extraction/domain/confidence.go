package domain

import "github.com/shopspring/decimal"

// MaxConfidenceScale is the most fractional digits a confidence score may carry. Scores
// are stored as decimal text, so any accepted value round-trips exactly.
const MaxConfidenceScale = 16

var (
	minConfidence = decimal.Zero
	maxConfidence = decimal.NewFromInt(1)
)

// ValidateConfidence checks that a score lies in [0,1] with at most MaxConfidenceScale
// significant fractional digits. Trailing zeros do not count.
func ValidateConfidence(c decimal.Decimal) error {
	if c.LessThan(minConfidence) || c.GreaterThan(maxConfidence) {
		return ErrInvalidConfidence
	}
	if !c.Equal(c.Truncate(MaxConfidenceScale)) {
		return ErrInvalidConfidence
	}
	return nil
}

// ParseConfidence parses exact decimal text and validates it.
func ParseConfidence(s string) (decimal.Decimal, error) {
	c, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, ErrInvalidConfidence
	}
	if err := ValidateConfidence(c); err != nil {
		return decimal.Decimal{}, err
	}
	return c, nil
}

// ExtractionResult is what the upstream extraction provider returns for a document.
type ExtractionResult struct {
	Fields     map[string]string
	Confidence decimal.Decimal
}
