// Package httpds reads pipeline inputs over HTTP(S) with retry and
// exponential backoff on transient failures.
package httpds

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"movieetl/internal/datasource"
)

func init() {
	f := func(ref *url.URL, opt datasource.Options) (datasource.Source, error) {
		c := NewClient(Config{Timeout: opt.HTTPTimeout, MaxRetries: opt.HTTPRetries})
		return c.Source(ref.String()), nil
	}
	datasource.Register("http", f)
	datasource.Register("https", f)
}

// Config configures the HTTP client. Zero values get defaults: Timeout 30s,
// InitialBackoff 200ms, MaxBackoff 5s.
type Config struct {
	// Timeout bounds a whole request including reading the body.
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Header is sent with every request.
	Header http.Header

	// Transport overrides the default transport, mostly for tests.
	Transport http.RoundTripper
}

// Client wraps an http.Client with retry and backoff behavior.
type Client struct {
	httpClient     *http.Client
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	header         http.Header

	// wait is swapped in tests to skip real sleeps.
	wait func(ctx context.Context, d time.Duration) error
}

// NewClient constructs a Client from Config, applying defaults for zero values.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Client{
		httpClient:     &http.Client{Timeout: cfg.Timeout, Transport: transport},
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		header:         cfg.Header.Clone(),
		wait:           sleepWithContext,
	}
}

// Get issues a GET for rawURL, retrying transport errors, 429 and 5xx. Any
// other non-2xx status is a permanent error. The caller closes the body.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	if rawURL == "" {
		return nil, errors.New("httpds: url must not be empty")
	}
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			d := backoffDuration(c.initialBackoff, attempt-1, c.maxBackoff)
			log.Debugf("httpds: retry %d/%d for %s in %s: %v", attempt, c.maxRetries, rawURL, d, lastErr)
			if err := c.wait(ctx, d); err != nil {
				return nil, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, errors.Wrap(err, "httpds: build request")
		}
		for k, vs := range c.header {
			req.Header[k] = append([]string(nil), vs...)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return resp, nil
		case isRetryableStatus(resp.StatusCode):
			_ = resp.Body.Close()
			lastErr = errors.Errorf("httpds: retryable status %d from %s", resp.StatusCode, rawURL)
		default:
			_ = resp.Body.Close()
			return nil, errors.Errorf("httpds: GET %s: status %d", rawURL, resp.StatusCode)
		}
	}
	return nil, errors.Wrapf(lastErr, "httpds: GET %s: giving up after %d attempts", rawURL, c.maxRetries+1)
}

// Source binds the client to one URL.
func (c *Client) Source(rawURL string) *Source { return &Source{client: c, url: rawURL} }

// Source is a datasource.Source reading one URL.
type Source struct {
	client *Client
	url    string
}

// URL returns the bound URL.
func (s *Source) URL() string { return s.url }

func (s *Source) Open(ctx context.Context) (io.ReadCloser, error) {
	resp, err := s.client.Get(ctx, s.url)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// isRetryableStatus treats 429 and 5xx as transient.
func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

// backoffDuration returns initial * 2^retry, clamped to max.
func backoffDuration(initial time.Duration, retry int, max time.Duration) time.Duration {
	if retry > 30 {
		return max
	}
	d := initial << retry
	if d > max || d <= 0 {
		return max
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
