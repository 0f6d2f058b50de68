package apiclient

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

type mockCircuitBreaker struct {
	mock.Mock
}

func (m *mockCircuitBreaker) Execute(req func() (any, error)) (any, error) {
	args := m.Called(req)
	if fn, ok := args.Get(0).(func(func() (any, error)) (any, error)); ok {
		return fn(req)
	}
	return args.Get(0), args.Error(1)
}

// passThrough makes the mocked breaker run the wrapped call.
var passThrough = func(req func() (any, error)) (any, error) { return req() }

type fakeNetError struct{ msg string }

func (e *fakeNetError) Error() string   { return e.msg }
func (e *fakeNetError) Timeout() bool   { return false }
func (e *fakeNetError) Temporary() bool { return false }

func TestDefaultBreakerConfig(t *testing.T) {
	cfg := DefaultBreakerConfig()
	assert.Equal(t, uint32(1), cfg.MaxRequests)
	assert.Equal(t, 10*time.Second, cfg.Interval)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, uint32(20), cfg.FailureThreshold)
	assert.InEpsilon(t, 0.5, cfg.FailureRatio, 0.001)
	assert.Equal(t, uint32(5), cfg.ConsecutiveFailures)
	assert.NotNil(t, cfg.Classifier)
	assert.Nil(t, cfg.Store)
}

func TestDistributedBreakerConfig(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := NewRedisStore(rdb)
	cfg := DistributedBreakerConfig(store)

	assert.Equal(t, store, cfg.Store)
	assert.Equal(t, 10*time.Second, cfg.Interval)
}

func TestDefaultBreakerClassifier(t *testing.T) {
	tests := []struct {
		name string
		resp *http.Response
		err  error
		want bool
	}{
		{name: "given 200, then success", resp: &http.Response{StatusCode: http.StatusOK}, want: false},
		{name: "given 429, then success", resp: &http.Response{StatusCode: http.StatusTooManyRequests}, want: false},
		{name: "given 503, then failure", resp: &http.Response{StatusCode: http.StatusServiceUnavailable}, want: true},
		{name: "given net error, then failure", err: &fakeNetError{msg: "broken pipe"}, want: true},
		{name: "given DNS failure text, then failure", err: errors.New("Could not resolve host"), want: true},
		{name: "given validation error, then success", err: ErrConflictingBody, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultBreakerClassifier(tt.resp, tt.err))
		})
	}
}

func TestBreakerConfig_ReadyToTrip(t *testing.T) {
	cfg := DefaultBreakerConfig()

	tests := []struct {
		name   string
		counts gobreaker.Counts
		want   bool
	}{
		{name: "given consecutive failures reached, then trips", counts: gobreaker.Counts{ConsecutiveFailures: 5}, want: true},
		{name: "given too few requests, then stays closed", counts: gobreaker.Counts{Requests: 10, TotalFailures: 9}, want: false},
		{name: "given failure ratio reached, then trips", counts: gobreaker.Counts{Requests: 20, TotalFailures: 10}, want: true},
		{name: "given low failure ratio, then stays closed", counts: gobreaker.Counts{Requests: 20, TotalFailures: 2}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.readyToTrip(tt.counts))
		})
	}
}

func TestBreakerTransport_RoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		next    *MockTransport
		mockFn  func(*mockCircuitBreaker)
		wantSC  int
		wantErr error
	}{
		{
			name: "given successful execution, then returns response",
			next: NewMockTransport().StubResponse(http.StatusOK, "ok"),
			mockFn: func(cb *mockCircuitBreaker) {
				cb.On("Execute", mock.Anything).Return(passThrough, nil).Once()
			},
			wantSC: http.StatusOK,
		},
		{
			name: "given circuit open, then returns ErrOpenState",
			next: NewMockTransport(),
			mockFn: func(cb *mockCircuitBreaker) {
				cb.On("Execute", mock.Anything).Return(nil, gobreaker.ErrOpenState).Once()
			},
			wantErr: gobreaker.ErrOpenState,
		},
		{
			name: "given 500, then still returns the response",
			next: NewMockTransport().StubResponse(http.StatusInternalServerError, "boom"),
			mockFn: func(cb *mockCircuitBreaker) {
				cb.On("Execute", mock.Anything).Return(passThrough, nil).Once()
			},
			wantSC: http.StatusInternalServerError,
		},
		{
			name: "given network error, then returns it",
			next: NewMockTransport().StubError(&fakeNetError{msg: "network down"}),
			mockFn: func(cb *mockCircuitBreaker) {
				cb.On("Execute", mock.Anything).Return(passThrough, nil).Once()
			},
			wantErr: &fakeNetError{msg: "network down"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := &mockCircuitBreaker{}
			tt.mockFn(cb)

			m, _ := newMetrics(noop.NewMeterProvider().Meter("test"))
			tr := &circuitBreakerTransport{
				breaker:    cb,
				next:       tt.next,
				classifier: DefaultBreakerClassifier,
				cfg:        &internalConfig{Metrics: m},
				name:       "test-service",
			}

			req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
			resp, err := tr.RoundTrip(req)

			cb.AssertExpectations(t)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.Nil(t, resp)
				if errors.Is(tt.wantErr, gobreaker.ErrOpenState) {
					assert.ErrorIs(t, err, gobreaker.ErrOpenState)
				} else {
					assert.Equal(t, tt.wantErr.Error(), err.Error())
				}
				return
			}

			require.NoError(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tt.wantSC, resp.StatusCode)
		})
	}
}

func tripConfig() BreakerConfig {
	cfg := DefaultBreakerConfig()
	cfg.ConsecutiveFailures = 2
	cfg.Timeout = time.Minute
	return cfg
}

func TestBreaker_OpensAndFailsFast(t *testing.T) {
	stub := NewMockTransport().StubResponse(http.StatusServiceUnavailable, `{"error":"down"}`)

	var transitions []gobreaker.State
	cfg := tripConfig()
	cfg.OnStateChange = func(_ string, _, to gobreaker.State) {
		transitions = append(transitions, to)
	}

	handle := NewHandle(WithMockTransport(stub), WithBreaker(cfg), WithServiceName("shop-api"))
	params := NewParams().AddAuth(AuthDomain, "example.pro")
	req := NewRequest(params, handle, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := req.Get(ctx, "/x", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	}

	_, err := req.Get(ctx, "/x", nil)

	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, stub.RequestCount())
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)
}

func TestBreaker_Distributed(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := tripConfig()
	cfg.Store = NewRedisStore(rdb)

	stub := NewMockTransport().
		StubPath("/ok", http.StatusOK, `{"ok":true}`).
		StubPath("/down", http.StatusBadGateway, `{}`)
	handle := NewHandle(WithMockTransport(stub), WithBreaker(cfg), WithServiceName("shop-api-dist"))
	params := NewParams().AddAuth(AuthDomain, "example.pro")
	req := NewRequest(params, handle, nil)
	ctx := context.Background()

	res, err := req.Get(ctx, "/ok", nil)
	require.NoError(t, err)
	assert.True(t, res.Get("ok").Bool())

	for i := 0; i < 2; i++ {
		_, err = req.Get(ctx, "/down", nil)
		require.NoError(t, err)
	}

	_, err = req.Get(ctx, "/ok", nil)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, stub.RequestCount())
}
