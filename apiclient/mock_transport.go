package apiclient

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"sync"

	json "github.com/goccy/go-json"
)

// MockTransport provides a configurable http.RoundTripper for testing code
// built on Request. Plug it in with WithMockTransport.
//
// Example:
//
//	mock := apiclient.NewMockTransport().
//	    StubPath("/exchange", http.StatusOK, `{"ok":true}`)
//	handle := apiclient.NewHandle(apiclient.WithMockTransport(mock))
type MockTransport struct {
	mu          sync.RWMutex
	stubs       []stub
	defaultResp *stubResponse
	defaultErr  error
	requests    []recordedRequest
	requestHook func(*http.Request)
}

type stub struct {
	matcher  func(*http.Request) bool
	response *stubResponse
	err      error
}

type stubResponse struct {
	statusCode int
	header     http.Header
	body       []byte
}

// recordedRequest keeps the request with its body already drained, since
// the transport chain closes the original body after the call.
type recordedRequest struct {
	req  *http.Request
	body []byte
}

// NewMockTransport creates a new MockTransport for testing.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// StubResponse stubs all unmatched requests to return the given response.
func (m *MockTransport) StubResponse(statusCode int, body string) *MockTransport {
	return m.StubResponseWithHeaders(statusCode, body, nil)
}

// StubResponseWithHeaders is StubResponse with response headers.
func (m *MockTransport) StubResponseWithHeaders(statusCode int, body string, header http.Header) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultResp = &stubResponse{statusCode: statusCode, header: header, body: []byte(body)}
	return m
}

// StubJSON stubs all unmatched requests to return v encoded as JSON.
func (m *MockTransport) StubJSON(statusCode int, v any) *MockTransport {
	body, err := json.Marshal(v)
	if err != nil {
		return m.StubError(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultResp = &stubResponse{
		statusCode: statusCode,
		header:     http.Header{"Content-Type": {"application/json"}},
		body:       body,
	}
	return m
}

// StubError stubs all unmatched requests to fail with err.
func (m *MockTransport) StubError(err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultErr = err
	return m
}

// StubPath stubs requests matching the path to return the given response.
func (m *MockTransport) StubPath(path string, statusCode int, body string) *MockTransport {
	return m.StubFunc(func(req *http.Request) bool {
		return req.URL.Path == path
	}, statusCode, body)
}

// StubMethod stubs requests with the given method to return the given response.
func (m *MockTransport) StubMethod(method string, statusCode int, body string) *MockTransport {
	return m.StubFunc(func(req *http.Request) bool {
		return req.Method == method
	}, statusCode, body)
}

// StubFunc stubs requests matching the predicate to return the given response.
func (m *MockTransport) StubFunc(
	matcher func(*http.Request) bool,
	statusCode int,
	body string,
) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, stub{
		matcher:  matcher,
		response: &stubResponse{statusCode: statusCode, body: []byte(body)},
	})
	return m
}

// StubFuncError stubs requests matching the predicate to fail with err.
func (m *MockTransport) StubFuncError(matcher func(*http.Request) bool, err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, stub{
		matcher: matcher,
		err:     err,
	})
	return m
}

// OnRequest sets a hook that is called for each request.
func (m *MockTransport) OnRequest(fn func(*http.Request)) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestHook = fn
	return m
}

// RoundTrip implements http.RoundTripper.
func (m *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := req.Context().Err(); err != nil {
		return nil, err
	}

	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
		_ = req.Body.Close()
		req.Body = io.NopCloser(bytes.NewReader(body))
	}

	m.mu.Lock()
	m.requests = append(m.requests, recordedRequest{req: req, body: body})
	hook := m.requestHook
	m.mu.Unlock()

	if hook != nil {
		hook(req)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	// First match wins
	for _, s := range m.stubs {
		if s.matcher(req) {
			if s.err != nil {
				return nil, s.err
			}
			return s.response.build(req), nil
		}
	}

	if m.defaultErr != nil {
		return nil, m.defaultErr
	}
	if m.defaultResp != nil {
		return m.defaultResp.build(req), nil
	}

	return nil, errors.New("no stub found for request: " + req.Method + " " + req.URL.String())
}

// Requests returns all requests made through this transport.
func (m *MockTransport) Requests() []*http.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*http.Request, 0, len(m.requests))
	for _, r := range m.requests {
		out = append(out, r.req)
	}
	return out
}

// RequestCount returns the number of requests made.
func (m *MockTransport) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// LastRequest returns the most recent request, or nil if none.
func (m *MockTransport) LastRequest() *http.Request {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1].req
}

// LastBody returns the body of the most recent request.
func (m *MockTransport) LastBody() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1].body
}

// Reset clears all recorded requests and stubs.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.stubs = nil
	m.defaultResp = nil
	m.defaultErr = nil
	m.requestHook = nil
}

// build returns a fresh response so the body can be read on every call.
func (s *stubResponse) build(req *http.Request) *http.Response {
	header := s.header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{
		StatusCode:    s.statusCode,
		Status:        http.StatusText(s.statusCode),
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(s.body)),
		ContentLength: int64(len(s.body)),
		Request:       req,
	}
}
