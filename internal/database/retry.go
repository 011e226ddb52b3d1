package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	apperrors "github.com/allisson/extractvault/internal/errors"
)

// ErrStoreUnavailable is returned once a transient store failure survived every retry attempt.
var ErrStoreUnavailable = apperrors.Wrap(apperrors.ErrUnavailable, "store unavailable")

// RetryPolicy bounds how often a transient store failure is retried.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy allows three attempts with a short exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
	}
}

// Retry runs op until it succeeds, fails with a non-transient error, or the policy's
// attempts are exhausted. Exhausted transient failures are reported as ErrStoreUnavailable.
func Retry(ctx context.Context, policy RetryPolicy, op func() error) error {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = policy.InitialInterval
	expBackoff.MaxInterval = policy.MaxInterval
	expBackoff.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(expBackoff, uint64(attempts-1)), ctx)

	err := backoff.Retry(func() error {
		err := op()
		if err != nil && !IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b)

	if err != nil && IsTransient(err) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}

// IsTransient reports whether err is a connectivity, timeout or concurrency failure
// that may succeed when the operation is retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if apperrors.Is(err, driver.ErrBadConn) ||
		apperrors.Is(err, sql.ErrConnDone) ||
		apperrors.Is(err, context.DeadlineExceeded) ||
		apperrors.Is(err, mysql.ErrInvalidConn) {
		return true
	}

	var pqErr *pq.Error
	if apperrors.As(err, &pqErr) {
		code := string(pqErr.Code)
		switch {
		case strings.HasPrefix(code, "08"): // connection exception
			return true
		case code == "40001", code == "40P01": // serialization failure, deadlock
			return true
		case code == "57P01", code == "57P03": // admin shutdown, cannot connect now
			return true
		case code == "55P03": // lock not available
			return true
		}
		return false
	}

	var myErr *mysql.MySQLError
	if apperrors.As(err, &myErr) {
		switch myErr.Number {
		case 1205, 1213: // lock wait timeout, deadlock
			return true
		}
		return false
	}

	return false
}
