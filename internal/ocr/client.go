// Package ocr is the client for the external document extraction provider.
//
// The provider receives the raw document bytes and answers with the extracted field map
// and an overall confidence score:
//
//	{"fields": {"ssn": "123-45-6789", "businessName": "Acme LLC"}, "confidence": "0.93"}
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	apperrors "github.com/allisson/extractvault/internal/errors"
	extractionDomain "github.com/allisson/extractvault/internal/extraction/domain"
)

const maxResponseBytes = 1 << 20

var (
	// ErrProviderUnavailable indicates the provider could not be reached or failed.
	ErrProviderUnavailable = apperrors.Wrap(apperrors.ErrUnavailable, "extraction provider unavailable")

	// ErrInvalidResponse indicates the provider answered with an unreadable payload.
	ErrInvalidResponse = apperrors.New("extraction provider returned an invalid response")
)

// Option configures the Client.
type Option func(*Client)

// WithTimeout sets the per-attempt HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.HTTPClient.Timeout = d
		}
	}
}

// WithRateLimit sets the outbound requests-per-second limit.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			burst := max(int(rps), 1)
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// WithRetryMax sets how many times a failed request is retried.
func WithRetryMax(n int) Option {
	return func(c *Client) {
		c.http.RetryMax = n
	}
}

// WithLogger routes retry diagnostics to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.http.Logger = logger
		}
	}
}

// Client posts documents to the provider endpoint.
type Client struct {
	endpoint string
	http     *retryablehttp.Client
	limiter  *rate.Limiter
}

// NewClient creates a provider client for endpoint.
func NewClient(endpoint string, opts ...Option) *Client {
	httpClient := retryablehttp.NewClient()
	httpClient.HTTPClient.Timeout = 30 * time.Second
	httpClient.RetryMax = 2
	httpClient.RetryWaitMin = 200 * time.Millisecond
	httpClient.RetryWaitMax = 2 * time.Second
	httpClient.Logger = nil

	c := &Client{
		endpoint: endpoint,
		http:     httpClient,
		limiter:  rate.NewLimiter(5, 5),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type extractResponse struct {
	Fields     map[string]string `json:"fields"`
	Confidence decimal.Decimal   `json:"confidence"`
}

// Extract sends the document and decodes the provider's answer.
func (c *Client) Extract(ctx context.Context, document []byte) (*extractionDomain.ExtractionResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(document))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to build extraction request")
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var body extractResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	if err := extractionDomain.ValidateConfidence(body.Confidence); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidResponse, err)
	}

	return &extractionDomain.ExtractionResult{
		Fields:     body.Fields,
		Confidence: body.Confidence,
	}, nil
}
