// Package agora implements the vendor feed client for the hospitality
// back-office export API.
package agora

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/closeout/backend/internal/domain/integration"
	"github.com/closeout/backend/internal/logctx"
)

// maxResponseSize is the maximum accepted response size (32MB)
const maxResponseSize = 32 * 1024 * 1024

// Ensure Client implements VendorFeedClient
var _ integration.VendorFeedClient = (*Client)(nil)

// Client fetches export feeds over HTTP
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *zap.Logger
}

// ClientOption is a functional option for configuring Client
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithLogger sets the logger used when no context logger is present
func WithLogger(l *zap.Logger) ClientOption {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// NewClient creates a new export API client
func NewClient(config *Config, opts ...ClientOption) (*Client, error) {
	if config == nil {
		return nil, integration.ErrVendorNotConfigured
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchFeed fetches one export feed for a business day. 5xx responses and
// transport failures are retried with linear backoff; 4xx responses fail
// immediately with ErrVendorRejected.
func (c *Client) FetchFeed(ctx context.Context, req *integration.FeedRequest) ([]*integration.Document, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	endpoint, err := c.feedURL(req)
	if err != nil {
		return nil, err
	}

	log := c.logger
	if l, ok := ctx.Value(logctx.LoggerKey).(*zap.Logger); ok {
		log = l
	}

	var docs []*integration.Document
	attempt := 0
	operation := func() error {
		attempt++
		body, err := c.get(ctx, endpoint)
		if err != nil {
			return err
		}
		docs, err = unwrapFeed(req.Feed, body)
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		log.Warn("Vendor request failed, retrying",
			zap.String("feed", req.Feed.String()),
			zap.String("business_day", req.BusinessDay),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(newLinearBackOff(c.config.RetryStep), uint64(c.config.MaxRetries)),
		ctx,
	)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}

	log.Debug("Vendor feed fetched",
		zap.String("feed", req.Feed.String()),
		zap.String("business_day", req.BusinessDay),
		zap.Int("records", len(docs)),
		zap.Int("attempts", attempt),
	)
	return docs, nil
}

func (c *Client) feedURL(req *integration.FeedRequest) (string, error) {
	base, err := url.Parse(strings.TrimRight(c.config.BaseURL, "/") + "/" + strings.TrimLeft(c.config.ExportPath, "/"))
	if err != nil {
		return "", fmt.Errorf("agora: invalid base URL: %w", err)
	}
	q := base.Query()
	q.Set("business-day", req.BusinessDay)
	q.Set("filter", req.Feed.String())
	if len(req.WorkplaceIDs) > 0 {
		q.Set("workplaces", strings.Join(req.WorkplaceIDs, ","))
	}
	base.RawQuery = q.Encode()
	return base.String(), nil
}

// get performs one attempt. Errors other than transient ones are wrapped as permanent.
func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("agora: failed to create request: %w", err))
	}
	httpReq.Header.Set(c.config.TokenHeader, c.config.Token)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, backoff.Permanent(err)
		}
		return nil, fmt.Errorf("%w: %v", integration.ErrVendorUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", integration.ErrVendorUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: HTTP %d", integration.ErrVendorUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, backoff.Permanent(fmt.Errorf("%w: HTTP %d: %s",
			integration.ErrVendorRejected, resp.StatusCode, snippet(body)))
	}
	return body, nil
}

func snippet(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

// linearBackOff waits n*step before the n-th retry
type linearBackOff struct {
	step time.Duration
	n    int
}

func newLinearBackOff(step time.Duration) *linearBackOff {
	return &linearBackOff{step: step}
}

// NextBackOff implements backoff.BackOff
func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(b.n) * b.step
}

// Reset implements backoff.BackOff
func (b *linearBackOff) Reset() {
	b.n = 0
}
