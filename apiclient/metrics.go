package apiclient

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names. The http.client.* instruments are recorded by the
// transport for every round trip; the apiclient.* ones by Request.Do once
// per call.
const (
	metricCallDuration    = "apiclient.call.duration"
	metricCallErrors      = "apiclient.call.errors"
	metricParseFailures   = "apiclient.response.parse_failures"
	metricRequestDuration = "http.client.request.duration"
	metricBodySize        = "http.client.body.size"
	metricActiveRequests  = "http.client.active_requests"
	metricOpenConnections = "http.client.open_connections"
	metricPhaseDuration   = "http.client.phase.duration"
	metricBreakerRequests = "http.client.breaker.requests"
	metricBreakerState    = "http.client.breaker.state"
)

var (
	latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15}
	phaseBuckets   = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}
	sizeBuckets    = []float64{0, 128, 1024, 16 * 1024, 128 * 1024, 1024 * 1024, 8 * 1024 * 1024}
)

// metrics holds the instruments. A nil *metrics records nothing.
type metrics struct {
	callDuration  metric.Float64Histogram
	callErrors    metric.Int64Counter
	parseFailures metric.Int64Counter

	requestDuration metric.Float64Histogram
	bodySize        metric.Int64Histogram
	activeRequests  metric.Int64UpDownCounter
	openConnections metric.Int64UpDownCounter
	phaseDuration   metric.Float64Histogram

	breakerRequests metric.Int64Counter
	breakerState    metric.Int64Gauge
}

// instruments creates instruments on one meter and keeps the first error.
type instruments struct {
	meter metric.Meter
	err   error
}

func (in *instruments) seconds(name, desc string, buckets []float64) metric.Float64Histogram {
	if in.err != nil {
		return nil
	}
	h, err := in.meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(buckets...),
	)
	in.err = err
	return h
}

func (in *instruments) counter(name, desc, unit string) metric.Int64Counter {
	if in.err != nil {
		return nil
	}
	c, err := in.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	in.err = err
	return c
}

func (in *instruments) upDown(name, desc, unit string) metric.Int64UpDownCounter {
	if in.err != nil {
		return nil
	}
	c, err := in.meter.Int64UpDownCounter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	in.err = err
	return c
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	in := &instruments{meter: meter}
	m := &metrics{
		callDuration: in.seconds(metricCallDuration,
			"Duration of API calls, from endpoint build to decoded body", latencyBuckets),
		callErrors: in.counter(metricCallErrors,
			"API calls that failed without a body, by transport error code", "{call}"),
		parseFailures: in.counter(metricParseFailures,
			"Response bodies that were not valid JSON", "{response}"),
		requestDuration: in.seconds(metricRequestDuration,
			"Duration of HTTP round trips", latencyBuckets),
		activeRequests: in.upDown(metricActiveRequests,
			"In-flight HTTP round trips", "{request}"),
		openConnections: in.upDown(metricOpenConnections,
			"Connections opened rather than reused", "{connection}"),
		phaseDuration: in.seconds(metricPhaseDuration,
			"Duration of round trip phases (dns, connect, tls, ttfb, transfer)", phaseBuckets),
		breakerRequests: in.counter(metricBreakerRequests,
			"Calls seen by the circuit breaker", "{request}"),
	}
	if in.err != nil {
		return nil, in.err
	}

	var err error
	if m.bodySize, err = meter.Int64Histogram(metricBodySize,
		metric.WithDescription("Size of request and response bodies"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(sizeBuckets...),
	); err != nil {
		return nil, err
	}
	if m.breakerState, err = meter.Int64Gauge(metricBreakerState,
		metric.WithDescription("Circuit breaker state: 0 closed, 1 half-open, 2 open"),
		metric.WithUnit("{state}"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

func withExtra(attrs []attribute.KeyValue, extra ...attribute.KeyValue) metric.MeasurementOption {
	all := make([]attribute.KeyValue, 0, len(attrs)+len(extra))
	all = append(all, attrs...)
	all = append(all, extra...)
	return metric.WithAttributes(all...)
}

// recordCall records one Request.Do call.
func (m *metrics) recordCall(ctx context.Context, d time.Duration, attrs []attribute.KeyValue) {
	if m == nil || m.callDuration == nil {
		return
	}
	m.callDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
}

// recordCallError counts a call that ended in a *NetworkError.
func (m *metrics) recordCallError(ctx context.Context, code int, attrs []attribute.KeyValue) {
	if m == nil || m.callErrors == nil {
		return
	}
	m.callErrors.Add(ctx, 1, withExtra(attrs,
		attribute.Int("apiclient.errno", code),
		attribute.String("error.type", CodeName(code)),
	))
}

// recordParseFailure counts a body that ParseJSON could not decode.
func (m *metrics) recordParseFailure(ctx context.Context, attrs []attribute.KeyValue) {
	if m == nil || m.parseFailures == nil {
		return
	}
	m.parseFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *metrics) recordRequestDuration(ctx context.Context, d time.Duration, attrs []attribute.KeyValue) {
	if m == nil || m.requestDuration == nil {
		return
	}
	m.requestDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
}

// recordBodySize records a body size; direction is "request" or "response".
func (m *metrics) recordBodySize(ctx context.Context, direction string, n int64, attrs []attribute.KeyValue) {
	if m == nil || m.bodySize == nil {
		return
	}
	m.bodySize.Record(ctx, n, withExtra(attrs, attribute.String("http.body.direction", direction)))
}

func (m *metrics) addActiveRequests(ctx context.Context, delta int64, attrs []attribute.KeyValue) {
	if m == nil || m.activeRequests == nil {
		return
	}
	m.activeRequests.Add(ctx, delta, metric.WithAttributes(attrs...))
}

func (m *metrics) recordConnectionOpened(ctx context.Context, attrs []attribute.KeyValue) {
	if m == nil || m.openConnections == nil {
		return
	}
	m.openConnections.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// recordPhase records the duration of a round trip phase.
func (m *metrics) recordPhase(ctx context.Context, phase string, d time.Duration, attrs []attribute.KeyValue) {
	if m == nil || m.phaseDuration == nil {
		return
	}
	m.phaseDuration.Record(ctx, d.Seconds(), withExtra(attrs, attribute.String("http.phase", phase)))
}

// recordBreakerRequest counts a call that went through the breaker.
func (m *metrics) recordBreakerRequest(ctx context.Context, name, result string) {
	if m == nil || m.breakerRequests == nil {
		return
	}
	m.breakerRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("breaker.name", name),
		attribute.String("breaker.result", result),
	))
}

// recordBreakerState records a breaker state transition.
func (m *metrics) recordBreakerState(ctx context.Context, name string, state int64) {
	if m == nil || m.breakerState == nil {
		return
	}
	m.breakerState.Record(ctx, state, metric.WithAttributes(
		attribute.String("breaker.name", name),
	))
}
