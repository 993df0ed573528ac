package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/phrazzld/prdgen/internal/config"
	"github.com/phrazzld/prdgen/internal/generation"
	"github.com/phrazzld/prdgen/internal/redact"
	"github.com/sethvargo/go-retry"
)

const (
	// DefaultBaseURL is the public Gemini API host.
	DefaultBaseURL = "https://generativelanguage.googleapis.com"

	// DefaultModel is used when neither the request nor the config names one.
	DefaultModel = "gemini-1.5-flash"

	// DefaultMaxRetries bounds retries of rate-limited calls.
	DefaultMaxRetries = 3

	// DefaultRetryDelay is the first backoff delay; it doubles per retry.
	DefaultRetryDelay = 2 * time.Second

	apiVersion = "v1beta"
)

// Client implements generation.Generator against the Gemini REST API.
type Client struct {
	// logger is used for structured logging
	logger *slog.Logger

	// httpClient performs the requests
	httpClient *http.Client

	// baseURL is the scheme and host of the API, without a trailing slash
	baseURL string

	// model is used when a request does not name one
	model string

	maxRetries int
	retryDelay time.Duration
}

var _ generation.Generator = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for API calls.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBaseURL points the client at a different API host.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithRetryDelay overrides the first backoff delay.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// NewClient creates a Client from the LLM configuration.
//
// Parameters:
//   - logger: A structured logger for operation logging
//   - cfg: LLM configuration containing model name, endpoint and retry settings
//   - opts: Optional overrides, mainly for tests
//
// Returns:
//   - A properly initialized Client or an error if the configuration is invalid
func NewClient(logger *slog.Logger, cfg config.LLMConfig, opts ...Option) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("%w: max retries cannot be negative", generation.ErrInvalidConfig)
	}

	c := &Client{
		logger:     logger,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.ModelName,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}

	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.retryDelay <= 0 {
		c.retryDelay = DefaultRetryDelay
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.retryDelay <= 0 {
		return nil, fmt.Errorf("%w: retry delay must be positive", generation.ErrInvalidConfig)
	}

	return c, nil
}

// Generate sends one generateContent request, retrying HTTP 429 responses
// with exponential backoff, and returns the first candidate's text.
//
// Every failure is returned as an error whose message is safe to show to a
// user: the API key never appears in it.
func (c *Client) Generate(ctx context.Context, req generation.Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	model := strings.TrimPrefix(req.Model, "models/")
	if model == "" {
		model = c.model
	}

	body, err := buildRequestBody(req)
	if err != nil {
		return "", err
	}

	endpoint := c.endpoint(model, req.APIKey)

	c.logger.DebugContext(ctx, "Prepared Gemini request",
		"model", model,
		"prompt_length", len(req.PromptText),
		"image_count", len(req.Images),
		"body_bytes", len(body))

	attempts := 0
	var text string

	backoff := retry.WithMaxRetries(uint64(c.maxRetries), retry.NewExponential(c.retryDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		c.logger.InfoContext(ctx, "Making Gemini API call",
			"attempt", attempts,
			"max_attempts", c.maxRetries+1,
			"model", model)

		result, err := c.post(ctx, endpoint, body)
		if errors.Is(err, generation.ErrRateLimited) {
			c.logger.WarnContext(ctx, "Gemini API rate limited",
				"attempt", attempts,
				"retries_left", c.maxRetries-(attempts-1))
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}

		text = result
		return nil
	})

	switch {
	case err == nil:
		c.logger.InfoContext(ctx, "Gemini API call successful",
			"attempt", attempts,
			"text_length", len(text))
		return text, nil
	case errors.Is(err, generation.ErrRateLimited):
		c.logger.WarnContext(ctx, "Maximum retry attempts reached",
			"max_retries", c.maxRetries)
		return "", &generation.RateLimitError{Retries: attempts - 1}
	case ctx.Err() != nil && !errors.Is(err, generation.ErrTransport):
		c.logger.WarnContext(ctx, "Gemini API call cancelled",
			"attempt", attempts,
			"ctx_err", ctx.Err())
		return "", fmt.Errorf("%w: %w", generation.ErrTransport, ctx.Err())
	default:
		c.logger.ErrorContext(ctx, "Gemini API call failed",
			"attempt", attempts,
			"error", redact.Error(err))
		return "", err
	}
}

// endpoint builds the generateContent URL including the key query parameter.
// The result must never be logged.
func (c *Client) endpoint(model, apiKey string) string {
	path := fmt.Sprintf("%s/%s/models/%s:generateContent", c.baseURL, apiVersion, url.PathEscape(model))
	return path + "?" + url.Values{"key": {apiKey}}.Encode()
}

// post performs a single attempt. A 429 is reported as generation.ErrRateLimited.
func (c *Client) post(ctx context.Context, endpoint string, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", transportError(ctx, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", transportError(ctx, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transportError(ctx, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", generation.ErrRateLimited
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &generation.HTTPError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Detail:     errorDetail(respBody),
		}
	}

	text, err := extractText(respBody)
	if err != nil {
		c.logger.WarnContext(ctx, "Gemini API returned an unusable body",
			"error", err,
			"finish_reason", finishReason(respBody))
		return "", err
	}

	return text, nil
}

// transportError wraps a failure that produced no HTTP response. The request
// URL carries the API key, so *url.Error is unwrapped and the rest redacted.
func transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %w", generation.ErrTransport, ctxErr)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	return fmt.Errorf("%w: %s", generation.ErrTransport, redact.Error(err))
}
