package httpclient

import (
	"net/http"
	"time"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	MaxIdleConnsPerHost    = 16

	UserAgent = "iptvguide/1.0"
)

var defaultClient *http.Client

func init() {
	defaultClient = &http.Client{
		Timeout:   DefaultTimeout,
		Transport: newBaseTransport(),
	}
}

func newBaseTransport() *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: MaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}
}

// Default returns the shared tuned HTTP client (health checks, playlist downloads).
func Default() *http.Client {
	return defaultClient
}

// WithTimeout returns a client with the given timeout and a copy of Default's transport.
func WithTimeout(timeout time.Duration) *http.Client {
	t, ok := defaultClient.Transport.(*http.Transport)
	if !ok {
		return &http.Client{Timeout: timeout}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: t.Clone(),
	}
}

// Upstream is a transport shared by every fetch against the directory and guide
// hosts. Each request takes a per-host concurrency slot and waits on the per-host
// rate limiter before it is sent.
type Upstream struct {
	transport *upstreamTransport
}

// NewUpstream builds an Upstream. rps <= 0 disables rate limiting;
// hostConcurrency < 1 is treated as 1.
func NewUpstream(rps float64, hostConcurrency int) *Upstream {
	return &Upstream{transport: &upstreamTransport{
		base:    newBaseTransport(),
		sem:     NewHostSemaphore(hostConcurrency),
		limiter: NewHostLimiter(rps, hostConcurrency),
	}}
}

// Client returns a client over the shared upstream transport with its own
// overall timeout, so directory and guide fetches can be bounded differently.
func (u *Upstream) Client(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout, Transport: u.transport}
}

type upstreamTransport struct {
	base    http.RoundTripper
	sem     *HostSemaphore
	limiter *HostLimiter
}

func (t *upstreamTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	release, err := t.sem.Acquire(ctx, req.URL.Scheme+"://"+req.URL.Host)
	if err != nil {
		return nil, err
	}
	// Slot is held until response headers arrive, not for the body read.
	defer release()
	if err := t.limiter.Wait(ctx, req.URL.Host); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req)
}
