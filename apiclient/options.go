package apiclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	// scope is the instrumentation scope name for OpenTelemetry.
	scope = "github.com/kroma-labs/apiwrap-go/apiclient"

	// DefaultCookieFile is the cookie file used when cookies are enabled
	// and WithCookieFile was not given.
	DefaultCookieFile = "cookie.txt"
)

// =============================================================================
// Config - HTTP Transport Configuration
// =============================================================================

// Config holds the HTTP transport parameters of a Handle.
// Use DefaultConfig() to get a properly initialized configuration,
// then modify specific fields as needed. Every field can also be loaded
// from the environment with ConfigFromEnv.
//
// Example:
//
//	cfg := apiclient.DefaultConfig()
//	cfg.Timeout = 30 * time.Second
//
//	handle := apiclient.NewHandle(apiclient.WithConfig(cfg))
type Config struct {
	// Timeout limits the entire call, including connection establishment,
	// sending the body and reading the response.
	//
	// A Timeout of zero means no timeout.
	//
	// Default: 15s
	Timeout time.Duration `env:"TIMEOUT"`

	// MaxIdleConns controls the maximum number of idle (keep-alive)
	// connections across all hosts.
	//
	// Default: 100
	MaxIdleConns int `env:"MAX_IDLE_CONNS"`

	// MaxIdleConnsPerHost controls the idle connections kept per host.
	// API clients usually talk to a single host, so keep this close to
	// MaxIdleConns.
	//
	// Default: 20
	MaxIdleConnsPerHost int `env:"MAX_IDLE_CONNS_PER_HOST"`

	// MaxConnsPerHost limits idle plus active connections per host.
	// Zero means unlimited.
	//
	// Default: 100
	MaxConnsPerHost int `env:"MAX_CONNS_PER_HOST"`

	// IdleConnTimeout is how long an idle connection remains in the pool.
	//
	// Default: 90s
	IdleConnTimeout time.Duration `env:"IDLE_CONN_TIMEOUT"`

	// TLSHandshakeTimeout is the maximum time to wait for a TLS handshake.
	//
	// Default: 10s
	TLSHandshakeTimeout time.Duration `env:"TLS_HANDSHAKE_TIMEOUT"`

	// ExpectContinueTimeout is how long to wait for "100 Continue" when a
	// request carries "Expect: 100-continue".
	//
	// Default: 1s
	ExpectContinueTimeout time.Duration `env:"EXPECT_CONTINUE_TIMEOUT"`

	// ResponseHeaderTimeout is the time to wait for response headers after
	// the request is written. Zero falls back to Timeout.
	//
	// Default: 0
	ResponseHeaderTimeout time.Duration `env:"RESPONSE_HEADER_TIMEOUT"`

	// DialTimeout is the maximum time to establish a TCP connection.
	//
	// Default: 5s
	DialTimeout time.Duration `env:"DIAL_TIMEOUT"`

	// KeepAlive is the interval between TCP keep-alive packets.
	//
	// Default: 30s
	KeepAlive time.Duration `env:"KEEP_ALIVE"`

	// DisableKeepAlives forces a new connection for each request.
	//
	// Default: false
	DisableKeepAlives bool `env:"DISABLE_KEEP_ALIVES"`
}

// DefaultConfig returns a balanced configuration suitable for most API
// clients.
func DefaultConfig() Config {
	return Config{
		Timeout: 15 * time.Second,

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     100,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: 0, // Uses overall Timeout

		DialTimeout: 5 * time.Second,
		KeepAlive:   30 * time.Second,
	}
}

// LowLatencyConfig returns a configuration that fails fast.
//
// Key differences from DefaultConfig:
//   - 5s overall timeout and 2s dial timeout
//   - Header timeout so slow backends are abandoned early
func LowLatencyConfig() Config {
	cfg := DefaultConfig()
	cfg.Timeout = 5 * time.Second
	cfg.DialTimeout = 2 * time.Second
	cfg.TLSHandshakeTimeout = 5 * time.Second
	cfg.ResponseHeaderTimeout = 3 * time.Second
	cfg.IdleConnTimeout = 60 * time.Second
	return cfg
}

// ConservativeConfig returns a resource-conscious configuration for
// short-lived processes such as cron jobs and serverless functions.
//
// Key differences from DefaultConfig:
//   - Small connection pool
//   - Short idle timeout to release sockets quickly
func ConservativeConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxIdleConns = 10
	cfg.MaxIdleConnsPerHost = 2
	cfg.MaxConnsPerHost = 10
	cfg.IdleConnTimeout = 30 * time.Second
	return cfg
}

// =============================================================================
// Internal Configuration
// =============================================================================

// internalConfig holds all Handle configuration including OTel settings.
type internalConfig struct {
	httpConfig Config

	// === OpenTelemetry Configuration ===

	// TracerProvider is the tracer provider to use.
	// If not set, uses the global provider via otel.GetTracerProvider().
	TracerProvider trace.TracerProvider

	// MeterProvider is the meter provider to use.
	// If not set, uses the global provider via otel.GetMeterProvider().
	MeterProvider metric.MeterProvider

	Tracer  trace.Tracer
	Meter   metric.Meter
	Metrics *metrics

	// ServiceName identifies the API client in spans, metrics and the
	// circuit breaker name.
	ServiceName string

	// EnableNetworkTrace enables httptrace integration for DNS, connect and
	// TLS timing. Default: true
	EnableNetworkTrace bool

	// ProxyFromEnvironment uses HTTP_PROXY, HTTPS_PROXY and NO_PROXY when
	// no per-request proxy is set on Params. Default: true
	ProxyFromEnvironment bool

	// CookieFile is the Netscape cookie file used by cookie-enabled calls.
	CookieFile string

	RateLimit     *RateLimitConfig
	BreakerConfig *BreakerConfig
	MockTransport *MockTransport
}

// newConfig creates a new internal config with defaults and applies options.
func newConfig(opts ...Option) *internalConfig {
	cfg := &internalConfig{
		httpConfig:     DefaultConfig(),
		TracerProvider: otel.GetTracerProvider(),
		MeterProvider:  otel.GetMeterProvider(),

		EnableNetworkTrace:   true,
		ProxyFromEnvironment: true,
		CookieFile:           DefaultCookieFile,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	cfg.Tracer = cfg.TracerProvider.Tracer(scope)
	cfg.Meter = cfg.MeterProvider.Meter(scope)

	// Metrics stay nil on failure; every recorder is nil-safe.
	cfg.Metrics, _ = newMetrics(cfg.Meter)

	return cfg
}

// buildTransport creates an http.Transport from the configuration.
// Certificate verification is always disabled and compression is handled
// by the Request so that deflate and zstd are decoded too.
func (cfg *internalConfig) buildTransport(proxy func(*http.Request) (*url.URL, error)) *http.Transport {
	hc := cfg.httpConfig

	dialer := &net.Dialer{
		Timeout:   hc.DialTimeout,
		KeepAlive: hc.KeepAlive,
	}

	return &http.Transport{
		DialContext:           dialer.DialContext,
		Proxy:                 proxy,
		MaxIdleConns:          hc.MaxIdleConns,
		MaxIdleConnsPerHost:   hc.MaxIdleConnsPerHost,
		MaxConnsPerHost:       hc.MaxConnsPerHost,
		IdleConnTimeout:       hc.IdleConnTimeout,
		TLSHandshakeTimeout:   hc.TLSHandshakeTimeout,
		ResponseHeaderTimeout: hc.ResponseHeaderTimeout,
		ExpectContinueTimeout: hc.ExpectContinueTimeout,
		DisableKeepAlives:     hc.DisableKeepAlives,
		DisableCompression:    true,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // peer verification is off for every call
		},
	}
}

// baseAttributes returns common attributes for all spans and metrics.
func (cfg *internalConfig) baseAttributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 1)
	if cfg.ServiceName != "" {
		attrs = append(attrs, attribute.String("http.client.name", cfg.ServiceName))
	}
	return attrs
}

// =============================================================================
// Options - Functional Options for Handle Configuration
// =============================================================================

// Option configures a Handle.
type Option func(*internalConfig)

// WithConfig sets the HTTP transport configuration.
// Use DefaultConfig(), LowLatencyConfig(), ConservativeConfig() or
// ConfigFromEnv() as a starting point.
func WithConfig(c Config) Option {
	return func(cfg *internalConfig) {
		cfg.httpConfig = c
	}
}

// WithServiceName sets the service name used in spans and metrics.
func WithServiceName(name string) Option {
	return func(cfg *internalConfig) {
		cfg.ServiceName = name
	}
}

// WithTracerProvider sets a custom tracer provider.
// If not set, the global tracer provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *internalConfig) {
		if tp != nil {
			cfg.TracerProvider = tp
		}
	}
}

// WithMeterProvider sets a custom meter provider.
// If not set, the global meter provider is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(cfg *internalConfig) {
		if mp != nil {
			cfg.MeterProvider = mp
		}
	}
}

// WithNetworkTrace enables or disables DNS, connect and TLS timing events.
func WithNetworkTrace(enabled bool) Option {
	return func(cfg *internalConfig) {
		cfg.EnableNetworkTrace = enabled
	}
}

// WithProxyFromEnvironment controls whether HTTP_PROXY and friends are
// honoured when Params carries no proxy.
func WithProxyFromEnvironment(enabled bool) Option {
	return func(cfg *internalConfig) {
		cfg.ProxyFromEnvironment = enabled
	}
}

// WithCookieFile sets the Netscape cookie file used when cookies are
// enabled on a Request.
func WithCookieFile(path string) Option {
	return func(cfg *internalConfig) {
		if path != "" {
			cfg.CookieFile = path
		}
	}
}

// WithRateLimit enables client-side rate limiting.
//
// Example:
//
//	handle := apiclient.NewHandle(
//	    apiclient.WithRateLimit(apiclient.RateLimitConfig{
//	        RequestsPerSecond: 5,
//	        Burst:             1,
//	        WaitOnLimit:       true,
//	    }),
//	)
func WithRateLimit(rl RateLimitConfig) Option {
	return func(cfg *internalConfig) {
		cfg.RateLimit = &rl
	}
}

// WithBreaker enables a circuit breaker in front of the transport.
// An open breaker fails calls immediately; calls are never retried.
func WithBreaker(bc BreakerConfig) Option {
	return func(cfg *internalConfig) {
		cfg.BreakerConfig = &bc
	}
}

// WithMockTransport replaces the network transport with mock. The rest of
// the chain (rate limiting, breaker, instrumentation) still applies.
func WithMockTransport(mock *MockTransport) Option {
	return func(cfg *internalConfig) {
		cfg.MockTransport = mock
	}
}
