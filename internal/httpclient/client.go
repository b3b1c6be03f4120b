package httpclient

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

// NewDefaultHTTPClient creates a simple HTTP client with a timeout
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
	}
}

// throttledTransport applies a shared outbound rate limit and a default
// User-Agent to every request
type throttledTransport struct {
	base      http.RoundTripper
	limiter   *rate.Limiter
	userAgent string
}

// RoundTrip implements http.RoundTripper
func (t *throttledTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	if t.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	return t.base.RoundTrip(req)
}

// NewThrottledClient creates an HTTP client whose transport enforces a
// requests-per-second cap across all callers sharing it. A cookie jar is
// attached so session cookies from the platform survive across fetches
// within a cycle.
func NewThrottledClient(timeout time.Duration, requestsPerSecond float64, userAgent string) (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	return &http.Client{
		Jar:     jar,
		Timeout: timeout,
		Transport: &throttledTransport{
			base:      http.DefaultTransport,
			limiter:   rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
			userAgent: userAgent,
		},
	}, nil
}

// NewBearerClient wraps a base client so every request carries the given
// bearer token. The base client's transport (rate limit, cookies, timeout)
// stays in the chain.
func NewBearerClient(ctx context.Context, token string, base *http.Client) *http.Client {
	if base != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := oauth2.NewClient(ctx, ts)
	if base != nil {
		client.Timeout = base.Timeout
		client.Jar = base.Jar
	}
	return client
}
