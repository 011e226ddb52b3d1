package httputil

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	validation "github.com/jellydator/validation"
)

// List endpoints page with offset/limit query parameters.
const (
	DefaultLimit = 50
	MaxLimit     = 100
)

var (
	offsetRule = validation.Min(0).Error("must be a non-negative integer")
	limitRules = []validation.Rule{
		validation.Min(1).Error(fmt.Sprintf("must be between 1 and %d", MaxLimit)),
		validation.Max(MaxLimit).Error(fmt.Sprintf("must be between 1 and %d", MaxLimit)),
	}
)

// ParsePagination reads offset (default 0) and limit (default DefaultLimit, at most
// MaxLimit) from the query string.
func ParsePagination(c *gin.Context) (offset, limit int, err error) {
	offset, err = queryInt(c, "offset", 0, offsetRule)
	if err != nil {
		return 0, 0, err
	}
	limit, err = queryInt(c, "limit", DefaultLimit, limitRules...)
	if err != nil {
		return 0, 0, err
	}
	return offset, limit, nil
}

func queryInt(c *gin.Context, name string, fallback int, rules ...validation.Rule) (int, error) {
	raw, ok := c.GetQuery(name)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err == nil {
		err = validation.Validate(n, rules...)
	} else {
		// Non-numeric input reports the same message as an out-of-range value.
		err = validation.Validate(-1, rules...)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid %s parameter: %w", name, err)
	}
	return n, nil
}
