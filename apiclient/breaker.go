package apiclient

import (
	"errors"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	gobreaker "github.com/sony/gobreaker/v2"
	gobreakerredis "github.com/sony/gobreaker/v2/redis"
)

// NewRedisStore creates a SharedDataStore backed by Redis so that several
// processes calling the same API share one breaker state.
//
// Usage:
//
//	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{"localhost:6379"}})
//	handle := apiclient.NewHandle(
//	    apiclient.WithBreaker(apiclient.DistributedBreakerConfig(apiclient.NewRedisStore(rdb))),
//	)
func NewRedisStore(client redis.UniversalClient) gobreaker.SharedDataStore {
	return gobreakerredis.NewStoreFromClient(client)
}

// CircuitBreaker is the subset of gobreaker used by the breaker transport.
type CircuitBreaker interface {
	Execute(req func() (any, error)) (any, error)
}

// BreakerClassifier reports whether a call outcome counts as a failure.
type BreakerClassifier func(resp *http.Response, err error) bool

// BreakerConfig configures the optional circuit breaker.
//
// An open breaker rejects calls with gobreaker.ErrOpenState before they
// reach the network. Nothing is retried: the rejection is returned to the
// caller like any other transport error.
type BreakerConfig struct {
	// MaxRequests is the number of trial calls allowed while half-open.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state after which the
	// failure counts are cleared. Zero never clears them.
	Interval time.Duration

	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration

	// FailureThreshold is the minimum number of calls before the failure
	// ratio is considered.
	FailureThreshold uint32

	// FailureRatio trips the breaker once reached (0.0 - 1.0).
	FailureRatio float64

	// ConsecutiveFailures trips the breaker after this many failures in a
	// row. Zero disables the rule.
	ConsecutiveFailures uint32

	// Store shares the breaker state between processes. Nil keeps the
	// state in memory.
	Store gobreaker.SharedDataStore

	// Classifier decides which outcomes count as failures.
	// Default: DefaultBreakerClassifier
	Classifier BreakerClassifier

	// OnStateChange is invoked when the breaker changes state.
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultBreakerConfig returns an in-memory breaker that opens after five
// consecutive failures, or half of at least twenty calls failing.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:         1,
		Interval:            10 * time.Second,
		Timeout:             10 * time.Second,
		FailureThreshold:    20,
		FailureRatio:        0.5,
		ConsecutiveFailures: 5,
		Classifier:          DefaultBreakerClassifier,
	}
}

// DistributedBreakerConfig returns DefaultBreakerConfig backed by store.
func DistributedBreakerConfig(store gobreaker.SharedDataStore) BreakerConfig {
	cfg := DefaultBreakerConfig()
	cfg.Store = store
	return cfg
}

// DefaultBreakerClassifier counts 5xx responses and network errors as
// failures. 4xx responses, including 429, are the caller's concern.
func DefaultBreakerClassifier(resp *http.Response, err error) bool {
	if err != nil {
		return isNetworkError(err)
	}
	return resp != nil && resp.StatusCode >= http.StatusInternalServerError
}

func isNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errorCode(err) == CodeCouldNotResolveHost
}

// readyToTrip builds the gobreaker trip rule from the config.
func (c BreakerConfig) readyToTrip(counts gobreaker.Counts) bool {
	if c.ConsecutiveFailures > 0 && counts.ConsecutiveFailures >= c.ConsecutiveFailures {
		return true
	}
	if c.FailureThreshold > 0 && counts.Requests < c.FailureThreshold {
		return false
	}
	if c.FailureRatio > 0 && counts.Requests > 0 {
		return float64(counts.TotalFailures)/float64(counts.Requests) >= c.FailureRatio
	}
	return false
}
