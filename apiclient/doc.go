// Package apiclient is the transport core of an API client: it keeps call
// parameters, owns a reusable HTTP handle, executes calls and parses the
// answers.
//
// # Quick Start
//
//	params := apiclient.NewParams().
//	    AddAuth(apiclient.AuthDomain, "example.pro").
//	    AddAuth("key", "abc")
//
//	handle := apiclient.NewHandle(apiclient.WithServiceName("shop-api"))
//	defer handle.Close()
//
//	req := apiclient.NewRequest(params, handle, log,
//	    apiclient.WithAuthInQuery(true),
//	)
//
//	res, err := req.Get(ctx, "/orders", map[string]any{"page": 2})
//	if err != nil {
//	    return err // *NetworkError, *ValidationError or *IOError
//	}
//	if res.IsError() {
//	    log.Warning("orders", logger.Context{"code": res.StatusCode})
//	}
//	total := res.Get("meta.total").Int()
//
// A non-2xx status is not an error: the Result carries the status code and
// the parsed body. Only failures to complete the exchange are returned as
// errors.
//
// # Handle
//
// A Handle opens its http.Client lazily and reuses it, together with its
// connection pool, for every call. Per-call state (proxy, cookie jar) is
// cleared after each call with Reset. Transport presets:
//
//	apiclient.NewHandle(apiclient.WithConfig(apiclient.LowLatencyConfig()))
//	apiclient.NewHandle(apiclient.WithConfig(apiclient.ConservativeConfig()))
//
// or load them from the environment:
//
//	cfg, err := apiclient.ConfigFromEnv("SHOP_HTTP_")
//
// Rate limiting and a circuit breaker can be placed in front of the
// network. Calls are never retried.
//
//	apiclient.NewHandle(
//	    apiclient.WithRateLimit(apiclient.RateLimitConfig{RequestsPerSecond: 5, Burst: 1}),
//	    apiclient.WithBreaker(apiclient.DefaultBreakerConfig()),
//	)
//
// # Observability
//
// Every call produces a client span that ends once the body has been read,
// plus the http.client.* metrics (duration, body sizes, DNS, TLS, TTFB,
// content transfer, breaker). With debug enabled the Request logs each
// stage of the call through its logger, including an equivalent cURL
// command.
//
// # Testing
//
// MockTransport replaces the network while keeping the rest of the
// transport chain:
//
//	mock := apiclient.NewMockTransport().StubJSON(http.StatusOK, map[string]any{"id": 5})
//	handle := apiclient.NewHandle(apiclient.WithMockTransport(mock))
package apiclient
