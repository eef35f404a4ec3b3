// Package api is the HTTP client for the measurement API. It implements
// store.Requester, so promise builders never see transport details.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/speedviz/speedviz/internal/config"
	"github.com/speedviz/speedviz/internal/hostutil"
	"github.com/speedviz/speedviz/internal/observability"
	"github.com/speedviz/speedviz/internal/output"
	"github.com/speedviz/speedviz/internal/resilience"
	"github.com/speedviz/speedviz/internal/store"
	"github.com/speedviz/speedviz/internal/version"
)

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = 500 * time.Millisecond
	maxJitter         = 100 * time.Millisecond
	maxBodySize       = 32 << 20
)

var _ store.Requester = (*Client)(nil)

// TokenSource supplies the bearer token. An empty token means anonymous.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client is an HTTP client for the measurement API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	cache      *Cache
	gate       *resilience.Gate
	hooks      observability.Hooks
	logger     *slog.Logger
	maxRetries int
	baseDelay  time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }
func WithTokenSource(ts TokenSource) Option { return func(c *Client) { c.tokens = ts } }
func WithCache(cache *Cache) Option { return func(c *Client) { c.cache = cache } }
func WithGate(g *resilience.Gate) Option { return func(c *Client) { c.gate = g } }
func WithHooks(h observability.Hooks) Option { return func(c *Client) { c.hooks = h } }
func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }
func WithTimeout(d time.Duration) Option { return func(c *Client) { c.httpClient.Timeout = d } }

// WithRetries sets the attempt budget and the first backoff delay.
func WithRetries(attempts int, baseDelay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = max(1, attempts)
		c.baseDelay = baseDelay
	}
}

// New returns a client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: hostutil.Normalize(baseURL),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger:     slog.New(slog.DiscardHandler),
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		sleep:      sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// gateConfig applies the limits configured for cfg's host.
func gateConfig(cfg *config.Config) *resilience.Config {
	l := cfg.LimitsFor(cfg.BaseURL)
	return resilience.DefaultConfig().WithLimits(resilience.Limits{
		RequestsPerSecond: l.RequestsPerSecond,
		Burst:             l.Burst,
		MaxConcurrent:     l.MaxConcurrent,
		FailureThreshold:  l.FailureThreshold,
		Cooldown:          l.Cooldown,
	})
}

// NewFromConfig wires the response cache and resilience gate described
// by cfg. A cache that cannot be opened is skipped with a warning. Entries
// older than CacheMaxAge are pruned on open.
func NewFromConfig(cfg *config.Config, tokens TokenSource, opts ...Option) *Client {
	c := New(cfg.BaseURL, append([]Option{WithTokenSource(tokens), WithTimeout(cfg.Timeout)}, opts...)...)

	if cfg.CacheEnabled && c.cache == nil {
		cache, err := OpenCache(filepath.Join(cfg.CacheDir, "http"))
		if err != nil {
			c.logger.Warn("response cache disabled", "error", err)
		} else {
			c.cache = cache
			if n, err := cache.Prune(context.Background(), time.Now().Add(-CacheMaxAge)); err != nil {
				c.logger.Warn("prune response cache", "error", err)
			} else if n > 0 {
				c.logger.Debug("pruned response cache", "entries", n)
			}
		}
	}
	if c.gate == nil {
		rs := resilience.NewStore(filepath.Join(cfg.CacheDir, resilience.DefaultDirName))
		c.gate = resilience.NewGate(rs, hostutil.Host(cfg.BaseURL), gateConfig(cfg))
	}
	return c
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Gate returns the resilience gate, or nil.
func (c *Client) Gate() *resilience.Gate { return c.gate }

// Cache returns the response cache, or nil.
func (c *Client) Cache() *Cache { return c.cache }

// Close releases the response cache.
func (c *Client) Close() error {
	return c.cache.Close()
}

// Get fetches path and decodes the JSON body into out. Transport errors,
// HTTP errors and error-in-body responses all come back as *output.Error.
func (c *Client) Get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.buildURL(path, params)

	body, err := c.getWithRetry(ctx, u)
	if err != nil {
		return err
	}
	if err := bodyError(body); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &output.Error{
			Code:    output.CodeAPI,
			Message: "Malformed response from " + path,
			Hint:    err.Error(),
			Cause:   err,
		}
	}
	return nil
}

func (c *Client) getWithRetry(ctx context.Context, u string) ([]byte, error) {
	for attempt := 1; ; attempt++ {
		body, err := c.attempt(ctx, u, attempt)
		if err == nil {
			return body, nil
		}
		if !shouldRetry(err) || attempt >= c.maxRetries {
			return nil, err
		}

		info := observability.RequestInfo{Method: http.MethodGet, URL: u, Attempt: attempt}
		if c.hooks != nil {
			c.hooks.OnRetry(ctx, info, attempt+1, err)
		}
		delay := c.backoffDelay(attempt)
		c.logger.Debug("retrying request", "url", u, "attempt", attempt, "delay", delay, "error", err)
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// shouldRetry limits retries to transient transport and server failures.
// Local shedding and rate limits are not retried in-process.
func shouldRetry(err error) bool {
	var e *output.Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == output.CodeNetwork || (e.Code == output.CodeAPI && e.HTTPStatus >= 500)
}

func (c *Client) attempt(ctx context.Context, u string, n int) (body []byte, err error) {
	if c.gate != nil {
		done, gerr := c.gate.Enter(ctx)
		if gerr != nil {
			return nil, gerr
		}
		defer func() { done(err) }()
	}

	var token string
	if c.tokens != nil {
		if token, err = c.tokens.Token(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, output.ErrUsage(fmt.Sprintf("invalid request URL %s: %v", u, err))
	}
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	var cacheKey string
	var cached CacheEntry
	var haveCached bool
	if c.cache != nil {
		cacheKey = c.cache.Key(u, token)
		if entry, ok, cerr := c.cache.Get(ctx, cacheKey); cerr != nil {
			c.logger.Debug("cache read failed", "error", cerr)
		} else if ok {
			cached, haveCached = entry, true
			req.Header.Set("If-None-Match", entry.ETag)
		}
	}

	info := observability.RequestInfo{Method: http.MethodGet, URL: u, Attempt: n}
	if c.hooks != nil {
		ctx = c.hooks.OnRequestStart(ctx, info)
		req = req.WithContext(ctx)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	start := time.Now()
	result := observability.RequestResult{}
	defer func() {
		result.Duration = time.Since(start)
		result.Error = err
		result.Retryable = err != nil && shouldRetry(err)
		if c.hooks != nil {
			c.hooks.OnRequestEnd(ctx, info, result)
		}
	}()

	c.logger.Debug("request", "method", http.MethodGet, "url", u, "attempt", n)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, output.ErrNetwork(err)
	}
	defer resp.Body.Close()
	result.StatusCode = resp.StatusCode

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, output.ErrNetwork(err)
	}
	c.logger.Debug("response", "url", u, "status", resp.StatusCode, "bytes", len(body))

	switch {
	case resp.StatusCode == http.StatusNotModified:
		if !haveCached {
			return nil, output.ErrAPI(http.StatusNotModified, "304 received with no cached response")
		}
		result.FromCache = true
		return cached.Body, nil

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if etag := resp.Header.Get("ETag"); etag != "" && cacheKey != "" {
			if perr := c.cache.Put(ctx, cacheKey, u, etag, body); perr != nil {
				c.logger.Debug("cache write failed", "error", perr)
			}
		}
		return body, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		wait := parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		if c.gate != nil {
			c.gate.ObserveRateLimit(wait)
		}
		return nil, output.ErrRateLimit(int(wait.Round(time.Second).Seconds()))

	case resp.StatusCode == http.StatusUnauthorized:
		return nil, output.ErrAuth("API token rejected")

	case resp.StatusCode == http.StatusForbidden:
		return nil, output.ErrForbidden("Access denied")

	case resp.StatusCode == http.StatusNotFound:
		if msg := errorMessage(body); msg != "" {
			return nil, &output.Error{Code: output.CodeNotFound, Message: msg, HTTPStatus: http.StatusNotFound}
		}
		return nil, output.ErrNotFound("Resource", req.URL.Path)
	}

	if msg := errorMessage(body); msg != "" {
		return nil, output.ErrAPI(resp.StatusCode, msg)
	}
	return nil, output.ErrAPI(resp.StatusCode, fmt.Sprintf("Request failed (HTTP %d)", resp.StatusCode))
}

// bodyError detects a logical failure carried in a successful response.
func bodyError(body []byte) error {
	if msg := errorMessage(body); msg != "" {
		return &output.Error{Code: output.CodeAPI, Message: msg, HTTPStatus: http.StatusOK}
	}
	return nil
}

// errorMessage extracts {"error": "..."} or {"error": {"message": "..."}}.
func errorMessage(body []byte) string {
	var probe struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &probe) != nil {
		return ""
	}
	switch raw := strings.TrimSpace(string(probe.Error)); raw {
	case "", "null", "false", `""`:
		return ""
	}

	var s string
	if json.Unmarshal(probe.Error, &s) == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(probe.Error, &obj) == nil && obj.Message != "" {
		return obj.Message
	}
	return string(probe.Error)
}

func (c *Client) buildURL(path string, params url.Values) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := c.baseDelay * time.Duration(1<<(attempt-1))
	return delay + rand.N(maxJitter) //nolint:gosec // G404: jitter needs no crypto rand
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(header string, now time.Time) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return max(0, time.Duration(secs)*time.Second)
	}
	if t, err := http.ParseTime(header); err == nil {
		return max(0, t.Sub(now))
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
