package apiclient

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Compile-time interface check.
var _ http.RoundTripper = (*otelTransport)(nil)

// otelTransport wraps an http.RoundTripper with OpenTelemetry instrumentation.
// It is the outermost layer of the Handle transport chain, so rate limiter
// waits and breaker rejections are part of the recorded span.
type otelTransport struct {
	base       http.RoundTripper
	cfg        *internalConfig
	propagator propagation.TextMapPropagator
}

// newOtelTransport creates a new instrumented transport.
func newOtelTransport(base http.RoundTripper, cfg *internalConfig) *otelTransport {
	return &otelTransport{
		base: base,
		cfg:  cfg,
		propagator: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	}
}

// RoundTrip implements http.RoundTripper. The span stays open until the
// response body is consumed.
func (t *otelTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	ctx, span := t.cfg.Tracer.Start(req.Context(), "HTTP "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(t.requestAttributes(req)...),
	)
	t.propagator.Inject(ctx, propagation.HeaderCarrier(req.Header))

	base := t.cfg.baseAttributes()
	t.cfg.Metrics.addActiveRequests(ctx, 1, base)
	defer t.cfg.Metrics.addActiveRequests(ctx, -1, base)
	if req.ContentLength > 0 {
		t.cfg.Metrics.recordBodySize(ctx, "request", req.ContentLength, base)
	}

	var nt *networkTrace
	if t.cfg.EnableNetworkTrace {
		ctx, nt = withNetworkTrace(ctx)
	}

	resp, err := t.base.RoundTrip(req.WithContext(ctx))
	elapsed := time.Since(start)

	if nt != nil {
		nt.addTraceEvents(span)
		nt.recordTimingMetrics(ctx, t.cfg.Metrics, base)
	}

	if err != nil {
		code := errorCode(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(
			attribute.String("error.type", CodeName(code)),
			attribute.Int("apiclient.errno", code),
		)
		t.cfg.Metrics.recordRequestDuration(ctx, elapsed, t.metricsAttributes(req, nil,
			attribute.String("error.type", CodeName(code))))
		span.End()
		return nil, err
	}

	span.SetAttributes(t.responseAttributes(resp)...)
	var extra []attribute.KeyValue
	if resp.StatusCode >= 400 {
		errType := strconv.Itoa(resp.StatusCode)
		span.SetStatus(codes.Error, "HTTP "+errType)
		span.SetAttributes(attribute.String("error.type", errType))
		extra = append(extra, attribute.String("error.type", errType))
	}
	t.cfg.Metrics.recordRequestDuration(ctx, elapsed, t.metricsAttributes(req, resp, extra...))

	resp.Body = newTrackedBody(span, resp.Body, func(n int64) {
		t.cfg.Metrics.recordBodySize(ctx, "response", n, base)
	})
	return resp, nil
}

func (t *otelTransport) requestAttributes(req *http.Request) []attribute.KeyValue {
	attrs := append(t.cfg.baseAttributes(),
		attribute.String("http.request.method", req.Method),
	)
	if req.URL != nil {
		attrs = append(attrs,
			attribute.String("url.full", redactedURL(req.URL)),
			attribute.String("url.scheme", req.URL.Scheme),
		)
		attrs = append(attrs, serverAttributes(req.URL, true)...)
	}
	if id := req.Header.Get(requestIDHeader); id != "" {
		attrs = append(attrs, attribute.String("http.request.id", id))
	}
	if req.ContentLength > 0 {
		attrs = append(attrs, attribute.Int64("http.request.body.size", req.ContentLength))
	}
	if ct := req.Header.Get("Content-Type"); ct != "" {
		attrs = append(attrs, attribute.String("http.request.header.content-type", ct))
	}
	return attrs
}

func (t *otelTransport) responseAttributes(resp *http.Response) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.Int("http.response.status_code", resp.StatusCode)}
	if resp.ContentLength > 0 {
		attrs = append(attrs, attribute.Int64("http.response.body.size", resp.ContentLength))
	}
	if enc := resp.Header.Get("Content-Encoding"); enc != "" {
		attrs = append(attrs, attribute.String("http.response.header.content-encoding", enc))
	}
	if v := strings.TrimPrefix(resp.Proto, "HTTP/"); v != "" {
		if v == "2.0" {
			v = "2"
		}
		attrs = append(attrs, attribute.String("network.protocol.version", v))
	}
	return attrs
}

// metricsAttributes keeps metric cardinality low: no URL path, no ids.
func (t *otelTransport) metricsAttributes(
	req *http.Request,
	resp *http.Response,
	extra ...attribute.KeyValue,
) []attribute.KeyValue {
	attrs := append(t.cfg.baseAttributes(),
		attribute.String("http.request.method", req.Method),
	)
	if req.URL != nil {
		attrs = append(attrs, serverAttributes(req.URL, resp != nil)...)
	}
	if resp != nil {
		attrs = append(attrs, attribute.Int("http.response.status_code", resp.StatusCode))
	}
	return append(attrs, extra...)
}

// serverAttributes returns server.address and server.port for u. When
// withDefaultPort is set, the scheme's default port is used if u has none.
func serverAttributes(u *url.URL, withDefaultPort bool) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if host := u.Hostname(); host != "" {
		attrs = append(attrs, attribute.String("server.address", host))
	}

	if port := u.Port(); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			attrs = append(attrs, attribute.Int("server.port", p))
		}
		return attrs
	}
	if !withDefaultPort {
		return attrs
	}
	switch u.Scheme {
	case "http":
		attrs = append(attrs, attribute.Int("server.port", 80))
	case "https":
		attrs = append(attrs, attribute.Int("server.port", 443))
	}
	return attrs
}

// redactedURL returns u without credentials and with auth-looking query
// values masked. Auth parameters routinely travel in the query string.
func redactedURL(u *url.URL) string {
	c := *u
	c.User = nil
	q := c.Query()
	changed := false
	for k := range q {
		if isSensitiveKey(k) {
			q.Set(k, "REDACTED")
			changed = true
		}
	}
	if changed {
		c.RawQuery = q.Encode()
	}
	return c.String()
}

func isSensitiveKey(k string) bool {
	k = strings.ToLower(k)
	for _, s := range []string{"key", "token", "secret", "password", "hash", "signature"} {
		if strings.Contains(k, s) {
			return true
		}
	}
	return false
}
