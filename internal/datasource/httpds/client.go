// Package httpds fetches source data over HTTP. Transport errors, 429 and 5xx
// responses are retried with capped exponential backoff; any other non-2xx
// status fails at once.
package httpds

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"recjoin/pkg/records"
)

// Config configures a Client. Zero values get defaults: Timeout 30s,
// InitialBackoff 200ms, MaxBackoff 5s. MaxRetries 0 means a single attempt.
type Config struct {
	// Timeout bounds each attempt up to the response headers. Reading the
	// body is bounded only by the caller's context.
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// InsecureSkipVerify disables TLS certificate checks. Ignored when
	// Transport is set.
	InsecureSkipVerify bool

	// Headers are added to every request.
	Headers http.Header

	// Transport replaces the default *http.Transport.
	Transport http.RoundTripper
}

// Client is an http.Client with retries.
type Client struct {
	http           *http.Client
	timeout        time.Duration
	maxRetries     uint64
	initialBackoff time.Duration
	maxBackoff     time.Duration
	headers        http.Header
}

// NewClient builds a Client from cfg.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}

	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}, //nolint:gosec // opt-in
		}
	}

	return &Client{
		http:           &http.Client{Transport: transport},
		timeout:        cfg.Timeout,
		maxRetries:     uint64(max(cfg.MaxRetries, 0)),
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		headers:        cfg.Headers.Clone(),
	}
}

// StatusError is a final non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Get fetches url. The caller must close the response body.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	backoff := retry.WithMaxRetries(c.maxRetries,
		retry.WithCappedDuration(c.maxBackoff, retry.NewExponential(c.initialBackoff)))

	var resp *http.Response
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithCancel(ctx)
		req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
		if err != nil {
			cancel()
			return fmt.Errorf("build request: %w", err)
		}
		for k, vs := range c.headers {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}

		// The timer only covers connect and headers; once stopped, the body
		// lives as long as attemptCtx, which ends when the body is closed.
		timer := time.AfterFunc(c.timeout, cancel)
		r, err := c.http.Do(req)
		stopped := timer.Stop()
		if err != nil {
			cancel()
			if ctx.Err() != nil {
				return err
			}
			if !stopped {
				err = fmt.Errorf("no response headers within %s: %w", c.timeout, err)
			}
			return retry.RetryableError(err)
		}
		if !stopped {
			_ = r.Body.Close()
			cancel()
			return retry.RetryableError(fmt.Errorf("GET %s: no response headers within %s", url, c.timeout))
		}
		if r.StatusCode >= 200 && r.StatusCode <= 299 {
			r.Body = &cancelOnClose{ReadCloser: r.Body, cancel: cancel}
			resp = r
			return nil
		}
		// Drain so the connection can be reused by the next attempt.
		_, _ = io.Copy(io.Discard, r.Body)
		_ = r.Body.Close()
		cancel()

		serr := &StatusError{URL: url, Code: r.StatusCode}
		if isRetryableStatus(r.StatusCode) {
			return retry.RetryableError(serr)
		}
		return serr
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// cancelOnClose releases the attempt context together with the body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

// Remote is a datasource whose bytes are the body of a GET request.
type Remote struct {
	client *Client
	url    string
}

// NewRemote returns a source reading url through c.
func NewRemote(c *Client, url string) *Remote { return &Remote{client: c, url: url} }

// Name returns the URL.
func (r *Remote) Name() string { return r.url }

// Open issues the request. Failures after retries come back as a
// *records.SourceUnavailableError; a canceled ctx returns ctx.Err().
func (r *Remote) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := r.client.Get(ctx, r.url)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, ctxErr
		}
		return nil, &records.SourceUnavailableError{Path: r.url, Err: err}
	}
	return resp.Body, nil
}
