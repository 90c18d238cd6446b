// Package upstream wraps the external ad-platform API behind a small typed
// client: every call is paced by a rate limiter keyed on the client's
// configured account (calls that name another account share that bucket),
// retried with exponential
// backoff on transient failures, and protected by a circuit breaker so a
// sustained upstream outage fails fast instead of queuing retries forever.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/adcontrol/internal/apperr"
	"github.com/ignite/adcontrol/internal/cache"
	"github.com/ignite/adcontrol/internal/metrics"
	"github.com/ignite/adcontrol/internal/pkg/httpretry"
	"github.com/sony/gobreaker"
)

// placeholderTokens are values a caller might leave in Settings by mistake;
// the client treats them the same as an empty token for the "not configured"
// error class.
var placeholderTokens = map[string]bool{
	"":               true,
	"changeme":       true,
	"your-api-token": true,
	"REPLACE_ME":     true,
}

// Client talks to the upstream ad platform's Campaign/AdSet/Ad/Insights API.
type Client struct {
	http        httpretry.HTTPDoer
	breaker     *gobreaker.CircuitBreaker
	baseURL     string
	accountID   string
	apiToken    string
	rateLimiter *RateLimiter
	timeout     time.Duration
	uploadTO    time.Duration
	cache       *cache.Cache
}

// Option configures a Client at construction time.
type Option func(*Client)

// WithRateLimiter attaches a per-account RateLimiter.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(c *Client) { c.rateLimiter = rl }
}

// WithTimeouts overrides the default 30s ordinary-request / 120s media-upload
// timeouts per §4.1.
func WithTimeouts(ordinary, upload time.Duration) Option {
	return func(c *Client) { c.timeout = ordinary; c.uploadTO = upload }
}

// WithCache attaches a read-through Cache over the list/summary endpoints,
// keyed per account so one account's stale data never leaks into another's
// request. A nil cache (the zero value of this option's argument) disables
// caching, same as never calling WithCache at all.
func WithCache(c2 *cache.Cache) Option {
	return func(c *Client) { c.cache = c2 }
}

// New creates a Client. apiToken and accountID come from the Settings Store,
// not from static Config; the Client keeps the values it was built with, so
// a rotated token reaches only a Client built afterwards.
func New(baseURL, accountID, apiToken string, opts ...Option) *Client {
	c := &Client{
		http:      httpretry.NewRetryClient(nil, 3),
		baseURL:   baseURL,
		accountID: accountID,
		apiToken:  apiToken,
		timeout:   30 * time.Second,
		uploadTO:  120 * time.Second,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "upstream-ad-platform",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetUpstreamBreakerOpen(to == gobreaker.StateOpen)
		},
	})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether the client has a usable token and account, the
// check every public method runs first so a missing credential surfaces
// immediately as KindConfiguration rather than failing mid-call.
func (c *Client) Configured() bool {
	return !placeholderTokens[c.apiToken] && !placeholderTokens[c.accountID]
}

func (c *Client) requireConfigured() error {
	if !c.Configured() {
		return apperr.Configuration("upstream: ad-platform token or account id is not configured", nil)
	}
	return nil
}

// resolveAccount returns account if non-empty, else the client's default
// configured account — every read operation accepts an optional override.
func (c *Client) resolveAccount(account string) string {
	if account != "" {
		return account
	}
	return c.accountID
}

func isRateLimitedBody(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "limit") || strings.Contains(lower, "code\":17") || strings.Contains(lower, "code\":4")
}

// errorEnvelope mirrors the upstream's documented error payload shape:
// { error: { code, message, ... } }.
type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	return c.doTimeout(ctx, method, path, body, out, c.timeout)
}

func (c *Client) doTimeout(ctx context.Context, method, path string, body any, out any, timeout time.Duration) error {
	if err := c.requireConfigured(); err != nil {
		return err
	}
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx, c.accountID); err != nil {
			return apperr.Internal("upstream: rate limiter wait", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return apperr.Internal("upstream: marshal request", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	type breakerErr struct {
		transient bool
		err       error
	}

	_, err := c.breaker.Execute(func() (any, error) {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		url := fmt.Sprintf("%s%s%saccess_token=%s", c.baseURL, path, sep, c.apiToken)
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, breakerErr{transient: true, err: err}
		}
		defer resp.Body.Close()

		var buf bytes.Buffer
		if out != nil || resp.StatusCode >= 400 {
			buf.ReadFrom(resp.Body)
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, breakerErr{transient: true, err: fmt.Errorf("upstream transient status %d: %s", resp.StatusCode, buf.String())}
		}
		if resp.StatusCode >= 400 {
			var env errorEnvelope
			_ = json.Unmarshal(buf.Bytes(), &env)
			msg := env.Error.Message
			if msg == "" {
				msg = buf.String()
			}
			if isRateLimitedBody(buf.String()) {
				return nil, breakerErr{transient: true, err: fmt.Errorf("upstream rate limited: %s", msg)}
			}
			return nil, breakerErr{transient: false, err: fmt.Errorf("upstream error (status %d): %s", resp.StatusCode, msg)}
		}
		if out != nil {
			return nil, json.Unmarshal(buf.Bytes(), out)
		}
		return nil, nil
	})
	if err == nil {
		metrics.RecordUpstreamRequest("success")
		return nil
	}
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		metrics.RecordUpstreamRequest("circuit_open")
		return apperr.UpstreamTransient("upstream: circuit open", err)
	}
	if be, ok := err.(breakerErr); ok {
		if be.transient {
			metrics.RecordUpstreamRequest("transient")
			return apperr.UpstreamTransient("upstream: transient failure", be.err)
		}
		metrics.RecordUpstreamRequest("rejected")
		return apperr.UpstreamOther("upstream: request failed", be.err)
	}
	metrics.RecordUpstreamRequest("internal")
	return apperr.Internal("upstream: unmarshal response", err)
}

// IsRateLimited reports whether err represents the rate-limited/transient
// failure class, the distinction callers (the worker's export, analyze and
// scheduled_report tasks) use to decide whether a retry is worthwhile.
func IsRateLimited(err error) bool {
	return apperr.KindOf(err) == apperr.KindUpstreamTransient
}
