package blur

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/poolbid/internal/domain"
	"github.com/alejandrodnm/poolbid/internal/ports"
)

const (
	defaultBaseURL = "https://nfttools.pro/blur_blast"

	// Calls per second shared by every wallet and collection.
	defaultRatePerSec = 3

	maxRetries    = 2
	baseRetryWait = 500 * time.Millisecond
)

// Business messages that are answers, not failures: never retried.
const (
	msgLimitExceeded     = "Limit exceeded"
	msgInsufficientFunds = "Insufficient funds"
	msgNoBidsFound       = "No bids found"
)

// APIError is a non-2xx answer from the marketplace.
type APIError struct {
	Status  int
	Message string
	Body    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("status %d: %s", e.Status, e.Body)
}

// Unwrap maps business messages onto the domain sentinels.
func (e *APIError) Unwrap() error {
	switch e.Message {
	case msgLimitExceeded:
		return domain.ErrLimitExceeded
	case msgInsufficientFunds:
		return domain.ErrInsufficientFunds
	case msgNoBidsFound:
		return domain.ErrNoBidsFound
	}
	return nil
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIKey     string
	RatePerSec float64
	DryRun     bool
	HTTPClient *http.Client
}

// Client is the marketplace HTTP client. A single limiter with burst 1 spaces
// every request uniformly across the process.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	limiter *rate.Limiter
	dryRun  bool
}

var (
	_ ports.Marketplace   = (*Client)(nil)
	_ ports.Authenticator = (*Client)(nil)
)

// NewClient creates a Client. Empty options fall back to production values.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = defaultRatePerSec
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		http:    opts.HTTPClient,
		baseURL: opts.BaseURL,
		apiKey:  opts.APIKey,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSec), 1),
		dryRun:  opts.DryRun,
	}
}

// request describes one marketplace call.
type request struct {
	method string
	path   string
	query  url.Values
	body   any
	wallet *domain.Wallet
}

// do executes req with rate limiting and retries and decodes into out.
func (c *Client) do(ctx context.Context, req request, out any) error {
	var payload []byte
	if req.body != nil {
		b, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		payload = b
	}

	fullURL := c.baseURL + req.path
	if len(req.query) > 0 {
		fullURL += "?" + req.query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		httpReq, err := http.NewRequestWithContext(ctx, req.method, fullURL, body)
		if err != nil {
			return fmt.Errorf("new request: %w", err)
		}
		httpReq.Header.Set("Accept", "application/json")
		if payload != nil {
			httpReq.Header.Set("Content-Type", "application/json")
		}
		if c.apiKey != "" {
			httpReq.Header.Set("X-NFT-API-KEY", c.apiKey)
		}
		if req.wallet != nil {
			httpReq.Header.Set("authToken", req.wallet.AuthToken())
			httpReq.Header.Set("walletAddress", req.wallet.Address)
		}

		resp, err := c.http.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			if attempt < maxRetries {
				c.sleep(ctx, attempt)
			}
			continue
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode >= 400 {
			apiErr := newAPIError(resp.StatusCode, respBody)
			if apiErr.Unwrap() != nil {
				return apiErr
			}
			lastErr = apiErr
			if resp.StatusCode == http.StatusTooManyRequests {
				slog.Warn("blur: rate limited by API", "attempt", attempt+1, "path", req.path)
			}
			if attempt < maxRetries {
				c.sleep(ctx, attempt)
			}
			continue
		}

		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("decode response: %w", err)
			}
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries: %w", maxRetries, lastErr)
}

func newAPIError(status int, body []byte) *APIError {
	var msg struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &msg)
	return &APIError{Status: status, Message: msg.Message, Body: string(body)}
}

// sleep waits with exponential backoff, honouring the context.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
