package apiclient

import (
	"context"
	"crypto/tls"
	"net/http"
	"net/http/httptrace"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// networkTrace collects httptrace timings for one call. The same value
// feeds the span events, the timing metrics and the "transport info" log
// entry.
type networkTrace struct {
	dnsStart, dnsDone         time.Time
	connectStart, connectDone time.Time
	tlsStart, tlsDone         time.Time
	gotConn                   time.Time
	wroteRequest              time.Time
	firstByte                 time.Time

	connReused bool
	connIdle   bool
	connRemote string
	connLocal  string
	alpn       string
	dnsAddrs   []string
}

type networkTraceKey struct{}

// withNetworkTrace returns ctx carrying a networkTrace and its httptrace
// hooks. A trace already present in ctx is reused, so a call is traced
// once no matter how many layers ask for it.
func withNetworkTrace(ctx context.Context) (context.Context, *networkTrace) {
	if nt, ok := ctx.Value(networkTraceKey{}).(*networkTrace); ok {
		return ctx, nt
	}
	nt := &networkTrace{}
	ctx = context.WithValue(ctx, networkTraceKey{}, nt)
	return httptrace.WithClientTrace(ctx, nt.clientTrace()), nt
}

func (nt *networkTrace) clientTrace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			nt.gotConn = time.Now()
			nt.connReused = info.Reused
			nt.connIdle = info.WasIdle
			if info.Conn == nil {
				return
			}
			if addr := info.Conn.RemoteAddr(); addr != nil {
				nt.connRemote = addr.String()
			}
			if addr := info.Conn.LocalAddr(); addr != nil {
				nt.connLocal = addr.String()
			}
		},
		DNSStart: func(httptrace.DNSStartInfo) { nt.dnsStart = time.Now() },
		DNSDone: func(info httptrace.DNSDoneInfo) {
			nt.dnsDone = time.Now()
			nt.dnsAddrs = nt.dnsAddrs[:0]
			for _, addr := range info.Addrs {
				nt.dnsAddrs = append(nt.dnsAddrs, addr.String())
			}
		},
		ConnectStart: func(_, _ string) { nt.connectStart = time.Now() },
		ConnectDone:  func(_, _ string, _ error) { nt.connectDone = time.Now() },
		TLSHandshakeStart: func() {
			nt.tlsStart = time.Now()
		},
		TLSHandshakeDone: func(state tls.ConnectionState, _ error) {
			nt.tlsDone = time.Now()
			nt.alpn = state.NegotiatedProtocol
		},
		WroteRequest:         func(httptrace.WroteRequestInfo) { nt.wroteRequest = time.Now() },
		GotFirstResponseByte: func() { nt.firstByte = time.Now() },
	}
}

// tracePhase is a completed stage of a call.
type tracePhase struct {
	name       string
	start, end time.Time
	attrs      []attribute.KeyValue
}

func (p tracePhase) duration() time.Duration { return p.end.Sub(p.start) }

// phases returns the stages that both started and finished.
func (nt *networkTrace) phases() []tracePhase {
	all := []tracePhase{
		{name: "dns", start: nt.dnsStart, end: nt.dnsDone,
			attrs: []attribute.KeyValue{attribute.StringSlice("dns.addresses", nt.dnsAddrs)}},
		{name: "connect", start: nt.connectStart, end: nt.connectDone},
		{name: "tls", start: nt.tlsStart, end: nt.tlsDone,
			attrs: []attribute.KeyValue{attribute.String("tls.protocol", nt.alpn)}},
		{name: "ttfb", start: nt.wroteRequest, end: nt.firstByte},
	}
	out := all[:0]
	for _, p := range all {
		if !p.start.IsZero() && !p.end.IsZero() {
			out = append(out, p)
		}
	}
	return out
}

// addTraceEvents adds a start and a done event per phase, plus one for the
// acquired connection.
func (nt *networkTrace) addTraceEvents(span trace.Span) {
	for _, p := range nt.phases() {
		span.AddEvent(p.name+".start", trace.WithTimestamp(p.start))
		attrs := append([]attribute.KeyValue{
			attribute.Float64(p.name+".duration_ms", float64(p.duration().Microseconds())/1000),
		}, p.attrs...)
		span.AddEvent(p.name+".done", trace.WithTimestamp(p.end), trace.WithAttributes(attrs...))
	}

	if !nt.gotConn.IsZero() {
		span.AddEvent("got_conn", trace.WithTimestamp(nt.gotConn), trace.WithAttributes(
			attribute.Bool("connection.reused", nt.connReused),
			attribute.Bool("connection.was_idle", nt.connIdle),
			attribute.String("network.peer.address", nt.connRemote),
		))
	}
}

func (nt *networkTrace) recordTimingMetrics(ctx context.Context, m *metrics, attrs []attribute.KeyValue) {
	if m == nil {
		return
	}
	if !nt.connReused && !nt.connectStart.IsZero() {
		m.recordConnectionOpened(ctx, attrs)
	}
	for _, p := range nt.phases() {
		m.recordPhase(ctx, p.name, p.duration(), attrs)
	}
}

// transportInfo summarizes the round trip for logging. Durations are
// measured from start; resp is nil when the call failed.
func (nt *networkTrace) transportInfo(
	start time.Time,
	req *http.Request,
	resp *http.Response,
	downloaded int64,
) TransportInfo {
	since := func(ts time.Time) time.Duration {
		if ts.IsZero() {
			return 0
		}
		return ts.Sub(start)
	}

	ti := TransportInfo{
		URL:           req.URL.String(),
		Method:        req.Method,
		RequestSize:   req.ContentLength,
		DownloadSize:  downloaded,
		ConnReused:    nt.connReused,
		NameLookup:    since(nt.dnsDone),
		Connect:       since(nt.connectDone),
		AppConnect:    since(nt.tlsDone),
		StartTransfer: since(nt.firstByte),
		Total:         time.Since(start),
	}
	ti.PrimaryIP, ti.PrimaryPort = splitHostPort(nt.connRemote)
	ti.LocalIP, ti.LocalPort = splitHostPort(nt.connLocal)

	if resp != nil {
		ti.StatusCode = resp.StatusCode
		ti.ContentType = resp.Header.Get("Content-Type")
		if loc, err := resp.Location(); err == nil {
			ti.RedirectURL = loc.String()
		}
	}
	return ti
}
