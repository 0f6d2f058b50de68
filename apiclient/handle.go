package apiclient

import (
	"net/http"
	"net/url"
	"sync"
)

// Handle owns the reusable HTTP client behind a Request. The client and its
// connection pool are created lazily on the first Open and kept for the
// lifetime of the Handle. Per-request configuration (proxy, cookie jar) is
// applied before a call and cleared by Reset afterwards.
//
// A Handle serves one call at a time. Request serializes its own calls;
// callers sharing a Handle between several Requests must do the same.
type Handle struct {
	mu sync.Mutex

	cfg       *internalConfig
	client    *http.Client
	transport *http.Transport

	proxy *url.URL
}

// NewHandle creates a Handle. No connection is made until the first call.
//
// Example:
//
//	handle := apiclient.NewHandle(
//	    apiclient.WithServiceName("shop-api"),
//	    apiclient.WithConfig(apiclient.LowLatencyConfig()),
//	)
//	defer handle.Close()
func NewHandle(opts ...Option) *Handle {
	return &Handle{cfg: newConfig(opts...)}
}

// Open returns the underlying client, creating it on first use.
//
// The transport chain is, from the outside in: OpenTelemetry
// instrumentation, rate limiting, circuit breaker, network (or mock).
// Redirects are never followed; the 3xx response is returned as is.
func (h *Handle) Open() *http.Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.client != nil {
		return h.client
	}

	var base http.RoundTripper
	if h.cfg.MockTransport != nil {
		base = h.cfg.MockTransport
	} else {
		h.transport = h.cfg.buildTransport(h.proxyFor)
		base = h.transport
	}

	rt := newCircuitBreakerTransport(base, h.cfg)
	if h.cfg.RateLimit != nil {
		rt = newRateLimitTransport(rt, *h.cfg.RateLimit)
	}
	rt = newOtelTransport(rt, h.cfg)

	h.client = &http.Client{
		Transport: rt,
		Timeout:   h.cfg.httpConfig.Timeout,
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return h.client
}

// SetProxy routes subsequent calls through proxy until the next Reset.
func (h *Handle) SetProxy(proxy *url.URL) {
	h.mu.Lock()
	h.proxy = proxy
	h.mu.Unlock()
}

// SetCookieJar attaches jar to subsequent calls until the next Reset.
func (h *Handle) SetCookieJar(jar http.CookieJar) {
	client := h.Open()
	h.mu.Lock()
	client.Jar = jar
	h.mu.Unlock()
}

// Reset clears the per-request proxy and cookie jar. The client and its
// idle connections are kept. Reset is idempotent and safe before Open.
func (h *Handle) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.proxy = nil
	if h.client != nil {
		h.client.Jar = nil
	}
}

// Close releases idle connections. The Handle can still be used afterwards.
func (h *Handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.transport != nil {
		h.transport.CloseIdleConnections()
	}
}

// ServiceName returns the configured service name.
func (h *Handle) ServiceName() string {
	return h.cfg.ServiceName
}

// CookieFile returns the Netscape cookie file path used for cookie-enabled
// calls.
func (h *Handle) CookieFile() string {
	return h.cfg.CookieFile
}

func (h *Handle) proxyFor(req *http.Request) (*url.URL, error) {
	h.mu.Lock()
	proxy := h.proxy
	h.mu.Unlock()

	if proxy != nil {
		return proxy, nil
	}
	if h.cfg.ProxyFromEnvironment {
		return http.ProxyFromEnvironment(req)
	}
	return nil, nil
}
