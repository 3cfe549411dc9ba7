// Package graph implements the directory ports against the Microsoft Graph
// v1.0 API: group and member reads, the managed-device inventory, batched
// user lookups, and membership writes.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"golang.org/x/time/rate"

	"groupsync/internal/domain"
)

const defaultBaseURL = "https://graph.microsoft.com/v1.0"

// Config carries everything a Client needs. Zero values are filled in by
// SetDefaults; only the TokenProvider is mandatory.
type Config struct {
	TokenProvider TokenProvider
	HTTPClient    *http.Client
	BaseURL       string
	PageSize      int
	MaxRetries    int
	// Client-side throttle. The directory throttles aggressively per app id;
	// staying under its limits beats handling 429 storms after the fact.
	RequestsPerSecond float64
	Burst             int
	Logger            *slog.Logger
}

// SetDefaults fills unset fields with production defaults.
func (cfg *Config) SetDefaults() {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 4
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 20
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
}

// Validate checks that the config is usable.
func (cfg *Config) Validate() error {
	if cfg.TokenProvider == nil {
		return domain.ErrValidation("graph: TokenProvider must be set")
	}
	return nil
}

// Client is a rate-limited, retrying directory client. All reads paginate
// transparently; callers see flat results.
type Client struct {
	httpClient *http.Client
	tokens     TokenProvider
	baseURL    *url.URL
	pageSize   int
	maxRetries int
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// Compile-time check: Client implements the full directory port.
var _ domain.Directory = (*Client)(nil)

// NewClient builds a Client from cfg.
func NewClient(cfg Config) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse directory base URL: %w", err)
	}
	return &Client{
		httpClient: cfg.HTTPClient,
		tokens:     cfg.TokenProvider,
		baseURL:    base,
		pageSize:   cfg.PageSize,
		maxRetries: cfg.MaxRetries,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		logger:     cfg.Logger,
	}, nil
}

// Close releases pooled connections. It is safe to call more than once and
// runs via defer so teardown happens on every exit path.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// endpointURL joins an endpoint path and query onto the base URL.
func (c *Client) endpointURL(endpoint string, query url.Values) string {
	u := *c.baseURL
	u.Path = path.Join(u.Path, endpoint)
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// directoryObjectURL is the canonical reference form used in $ref bodies.
func (c *Client) directoryObjectURL(id string) string {
	return c.baseURL.JoinPath("directoryObjects", id).String()
}

// do issues one request with auth, throttling, and bounded retries on
// transient statuses. Auth rejections map to domain.AuthError; other non-2xx
// answers come back as *Error.
func (c *Client) do(ctx context.Context, method, uri string, body []byte) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	token, err := c.tokens.GetToken(ctx, policy.TokenRequestOptions{Scopes: scopes})
	if err != nil {
		return nil, domain.ErrAuth("acquire directory token: %v", err)
	}

	var delay time.Duration
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, delay); err != nil {
				return nil, err
			}
		}

		var reqBody io.Reader
		if len(body) > 0 {
			reqBody = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, uri, reqBody)
		if err != nil {
			return nil, fmt.Errorf("build directory request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token.Token)
		req.Header.Set("Accept", "application/json")
		if len(body) > 0 {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("directory request: %w", err)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		gerr := readError(resp.StatusCode, resp.Body)
		retryAfter := resp.Header.Get("Retry-After")
		_ = resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, domain.ErrAuth("directory rejected request: %v", gerr)
		}
		if !isRetriable(resp.StatusCode) {
			return nil, gerr
		}

		lastErr = gerr
		delay = retryDelay(retryAfter, attempt)
		c.logger.Debug("directory throttled, retrying",
			"status", resp.StatusCode,
			"attempt", attempt+1,
			"delay", delay,
		)
	}
	return nil, lastErr
}

// getJSON fetches a single object endpoint.
func getJSON[T any](ctx context.Context, c *Client, endpoint string, query url.Values, out *T) error {
	resp, err := c.do(ctx, http.MethodGet, c.endpointURL(endpoint, query), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

// listAll walks a collection endpoint through every @odata.nextLink page and
// returns the concatenated items.
func listAll[T any](ctx context.Context, c *Client, endpoint string, query url.Values) ([]T, error) {
	if query == nil {
		query = url.Values{}
	}
	if query.Get("$top") == "" {
		query.Set("$top", strconv.Itoa(c.pageSize))
	}

	var out []T
	uri := c.endpointURL(endpoint, query)
	for uri != "" {
		resp, err := c.do(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return nil, err
		}

		var page oDataPage
		err = json.NewDecoder(resp.Body).Decode(&page)
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode %s page: %w", endpoint, err)
		}

		if len(page.Value) > 0 {
			var items []T
			if err := json.Unmarshal(page.Value, &items); err != nil {
				return nil, fmt.Errorf("decode %s items: %w", endpoint, err)
			}
			out = append(out, items...)
		}
		uri = page.NextLink
	}
	return out, nil
}

// escapeFilterValue doubles single quotes per the OData string-literal rules.
func escapeFilterValue(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func isRetriable(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusGatewayTimeout
}

// retryDelay honors Retry-After when the directory supplies one, and falls
// back to exponential backoff.
func retryDelay(retryAfter string, attempt int) time.Duration {
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return time.Second << attempt
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
