// Package httpclient builds the pooled, proxy-aware, retrying HTTP
// client every registry and dist-download call goes through, generalized
// from the teacher's gopkg.in/resty.v0 usage in pkg/client/gitlab/client.go
// into resty/v2 with HTTP/2 and a host-keyed credential table.
package httpclient

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	resty "github.com/go-resty/resty/v2"
	"golang.org/x/net/http2"
	"golang.org/x/net/http/httpproxy"

	"github.com/libretto-pm/libretto-sub002/pkg/credential"
	"github.com/libretto-pm/libretto-sub002/pkg/pipelineerr"
)

// Config tunes the shared client.
type Config struct {
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	UserAgent      string
}

// DefaultConfig mirrors the teacher's implicit resty defaults plus a
// conservative retry budget.
func DefaultConfig() Config {
	return Config{
		Timeout:        60 * time.Second,
		MaxRetries:     3,
		RetryBaseDelay: 500 * time.Millisecond,
		RetryMaxDelay:  30 * time.Second,
		UserAgent:      "libretto/1.0 (+composer-compatible installer)",
	}
}

// Client wraps a resty client with credentials, proxy resolution, and a
// cenkalti/backoff-driven retry wrapper (used instead of resty's own
// retry hooks) around Get.
type Client struct {
	rc    *resty.Client
	creds *credential.Table
	cfg   Config
}

// New builds a Client. creds may be nil, in which case no per-host
// Authorization header is ever attached.
func New(cfg Config, creds *credential.Table) *Client {
	transport := &http.Transport{
		Proxy:           proxyFunc,
		TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
	}
	// Prefer HTTP/2 when the server supports it; resty falls back to
	// HTTP/1.1 transparently if protocol negotiation fails.
	_ = http2.ConfigureTransport(transport)

	rc := resty.New().
		SetTransport(transport).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent)

	if creds == nil {
		creds = credential.NewTable()
	}

	return &Client{rc: rc, creds: creds, cfg: cfg}
}

// proxyFunc resolves the proxy for a request the way curl/git do: explicit
// env vars first (HTTPS_PROXY/HTTP_PROXY), with NO_PROXY host/wildcard
// exclusions honored, via golang.org/x/net/http/httpproxy.
func proxyFunc(req *http.Request) (*url.URL, error) {
	cfg := httpproxy.FromEnvironment()
	return cfg.ProxyFunc()(req.URL)
}

// NewRequest returns a resty request bound to ctx (set the URL on it,
// then call Execute). No host credentials are attached to it and it is
// not retried; only Get does either.
func (c *Client) NewRequest(ctx context.Context) *resty.Request {
	return c.rc.R().SetContext(ctx)
}

// Get issues a GET to rawURL, attaching host credentials, retrying
// transient failures with exponential backoff + jitter.
func (c *Client) Get(ctx context.Context, rawURL string) (*resty.Response, error) {
	return c.do(ctx, http.MethodGet, rawURL, nil)
}

// do executes a single HTTP call wrapped in the retry policy.
func (c *Client) do(ctx context.Context, method, rawURL string, body []byte) (*resty.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, pipelineerr.Wrap(pipelineerr.KindConfig, "httpclient.parse", err)
	}

	var resp *resty.Response
	operation := func() error {
		req := c.NewRequest(ctx)
		if auth, ok := c.creds.For(u.Host); ok {
			auth.Apply(req)
		}
		if body != nil {
			req.SetBody(body)
		}

		r, err := req.Execute(method, rawURL)
		if err != nil {
			return pipelineerr.WrapRetryable(pipelineerr.KindNetwork, "httpclient.do", err)
		}
		if r.StatusCode() >= 500 || r.StatusCode() == http.StatusTooManyRequests {
			return pipelineerr.WrapRetryable(pipelineerr.KindHTTP, "httpclient.do", httpStatusError(r.StatusCode()))
		}
		if r.StatusCode() >= 400 {
			return backoff.Permanent(pipelineerr.New(pipelineerr.KindHTTP, "httpclient.do", httpStatusError(r.StatusCode()).Error()))
		}
		resp = r
		return nil
	}

	bo := c.backoffPolicy(ctx)
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) backoffPolicy(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.cfg.RetryBaseDelay
	eb.MaxInterval = c.cfg.RetryMaxDelay
	eb.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(c.cfg.MaxRetries)), ctx)
}

type httpStatusErr struct{ code int }

func (e httpStatusErr) Error() string { return "unexpected HTTP status" }

func httpStatusError(code int) error { return httpStatusErr{code: code} }
