package apiclient

import (
	"context"
	"errors"
	"net/http"

	"github.com/sony/gobreaker/v2"
)

// defaultBreakerName is used when no service name is configured.
const defaultBreakerName = "apiwrap-client"

// circuitBreakerTransport is a RoundTripper that wraps requests in a circuit breaker.
type circuitBreakerTransport struct {
	breaker    CircuitBreaker
	next       http.RoundTripper
	classifier BreakerClassifier
	cfg        *internalConfig
	name       string
}

// errSyntheticFailure tells the breaker that a call failed (e.g. a 500
// status) although RoundTrip returned no error. It never reaches callers.
var errSyntheticFailure = errors.New("synthetic failure")

// RoundTrip implements http.RoundTripper.
func (t *circuitBreakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	res, err := t.breaker.Execute(func() (any, error) {
		resp, err := t.next.RoundTrip(req) //nolint:bodyclose // returned to the caller

		if err == nil && t.classifier(resp, nil) {
			return resp, errSyntheticFailure
		}
		return resp, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			t.cfg.Metrics.recordBreakerRequest(ctx, t.name, "rejected")
		} else {
			t.cfg.Metrics.recordBreakerRequest(ctx, t.name, "failure")
		}

		if errors.Is(err, errSyntheticFailure) {
			if resp, ok := res.(*http.Response); ok {
				return resp, nil
			}
		}

		return nil, err
	}

	t.cfg.Metrics.recordBreakerRequest(ctx, t.name, "success")

	if resp, ok := res.(*http.Response); ok {
		return resp, nil
	}

	return nil, errors.New("circuit breaker returned unknown response type")
}

// newCircuitBreakerTransport wraps next in a breaker, or returns next when
// no breaker is configured.
func newCircuitBreakerTransport(next http.RoundTripper, cfg *internalConfig) http.RoundTripper {
	if cfg.BreakerConfig == nil {
		return next
	}
	bc := *cfg.BreakerConfig

	name := cfg.ServiceName
	if name == "" {
		name = defaultBreakerName
	}

	classifier := bc.Classifier
	if classifier == nil {
		classifier = DefaultBreakerClassifier
	}

	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: bc.MaxRequests,
		Interval:    bc.Interval,
		Timeout:     bc.Timeout,
		ReadyToTrip: bc.readyToTrip,
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			return !errors.Is(err, errSyntheticFailure) && !classifier(nil, err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			cfg.Metrics.recordBreakerState(context.Background(), name, int64(to))
			if bc.OnStateChange != nil {
				bc.OnStateChange(name, from, to)
			}
		},
	}

	var cb CircuitBreaker = gobreaker.NewCircuitBreaker[any](st)
	if bc.Store != nil {
		// A local breaker still protects this process if the shared one
		// cannot be created.
		if dcb, err := gobreaker.NewDistributedCircuitBreaker[any](bc.Store, st); err == nil {
			cb = dcb
		}
	}

	return &circuitBreakerTransport{
		breaker:    cb,
		next:       next,
		classifier: classifier,
		cfg:        cfg,
		name:       name,
	}
}
