package apiclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newBenchServer(b *testing.B) *httptest.Server {
	b.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1,"items":[{"sku":"a","qty":2},{"sku":"b","qty":1}]}`))
	}))
	b.Cleanup(ts.Close)
	return ts
}

func benchRequest(b *testing.B, ts *httptest.Server, opts ...Option) *Request {
	b.Helper()
	handle := NewHandle(append([]Option{WithNetworkTrace(false)}, opts...)...)
	b.Cleanup(handle.Close)
	params := NewParams().AddAuth(AuthDomain, ts.Listener.Addr().String())
	return NewRequest(params, handle, nil, WithHTTPS(false))
}

// BenchmarkStandardClient is the baseline: a bare http.Client.
func BenchmarkStandardClient(b *testing.B) {
	ts := newBenchServer(b)
	client := ts.Client()
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL, nil)
		resp, err := client.Do(req)
		if err != nil {
			b.Fatalf("unexpected error: %v", err)
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
}

func BenchmarkRequest_Default(b *testing.B) {
	ts := newBenchServer(b)
	req := benchRequest(b, ts)
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := req.Get(ctx, "/orders", nil); err != nil {
			b.Fatalf("unexpected error: %v", err)
		}
	}
}

func BenchmarkRequest_WithBreaker(b *testing.B) {
	ts := newBenchServer(b)
	req := benchRequest(b, ts, WithBreaker(DefaultBreakerConfig()))
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := req.Get(ctx, "/orders", nil); err != nil {
			b.Fatalf("unexpected error: %v", err)
		}
	}
}

func BenchmarkRequest_WithRateLimit(b *testing.B) {
	ts := newBenchServer(b)
	req := benchRequest(b, ts, WithRateLimit(RateLimitConfig{
		RequestsPerSecond: 1e9,
		Burst:             1000,
		WaitOnLimit:       true,
	}))
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := req.Get(ctx, "/orders", nil); err != nil {
			b.Fatalf("unexpected error: %v", err)
		}
	}
}

func BenchmarkRequest_Post(b *testing.B) {
	ts := newBenchServer(b)
	req := benchRequest(b, ts)
	ctx := context.Background()
	body := map[string]any{"sku": "a", "qty": 2, "tags": []string{"x", "y"}}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := req.Post(ctx, "/orders", body); err != nil {
			b.Fatalf("unexpected error: %v", err)
		}
	}
}

func BenchmarkBuildQuery(b *testing.B) {
	values := map[string]any{
		"type":   "order_bot",
		"filter": map[string]any{"status": "open", "ids": []int{1, 2, 3}},
		"active": true,
	}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = BuildQuery(values)
	}
}
