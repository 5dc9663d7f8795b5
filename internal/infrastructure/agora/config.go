package agora

import (
	"errors"
	"fmt"
	"time"

	"github.com/closeout/backend/internal/domain/integration"
)

const (
	// DefaultTokenHeader is the header the export API reads the token from
	DefaultTokenHeader = "Api-Token"
	// DefaultExportPath is the export endpoint path
	DefaultExportPath = "/api/export/"
)

// ErrInvalidRetryBudget is returned for a negative retry budget
var ErrInvalidRetryBudget = errors.New("agora: retry budget cannot be negative")

// Config holds configuration for the back-office export API
type Config struct {
	// BaseURL is the scheme and host of the back-office server
	BaseURL string
	// Token is the API token
	Token string
	// TokenHeader is the header carrying Token
	TokenHeader string
	// ExportPath is the export endpoint, relative to BaseURL
	ExportPath string
	// Timeout bounds each HTTP attempt
	Timeout time.Duration
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int
	// RetryStep is the linear backoff step; the n-th retry waits n*RetryStep
	RetryStep time.Duration
}

// NewConfig creates a configuration with defaults
func NewConfig(baseURL, token string) *Config {
	return &Config{
		BaseURL:     baseURL,
		Token:       token,
		TokenHeader: DefaultTokenHeader,
		ExportPath:  DefaultExportPath,
		Timeout:     10 * time.Second,
		MaxRetries:  3,
		RetryStep:   500 * time.Millisecond,
	}
}

// Validate validates the configuration and fills defaults
func (c *Config) Validate() error {
	if c.BaseURL == "" || c.Token == "" {
		return integration.ErrVendorNotConfigured
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRetryBudget, c.MaxRetries)
	}
	if c.TokenHeader == "" {
		c.TokenHeader = DefaultTokenHeader
	}
	if c.ExportPath == "" {
		c.ExportPath = DefaultExportPath
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return nil
}
