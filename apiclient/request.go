package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kroma-labs/apiwrap-go/logger"
)

const (
	requestIDHeader = "X-Request-Id"

	// suppressedResult replaces the response body in logs for calls made
	// with WithoutResultLog.
	suppressedResult = "**NOT DEBUG RESULT**"
)

// Request executes API calls against the domain held in its Params.
//
// Every call merges its parameters into the shared Params, builds the
// endpoint and headers, runs one round trip through the Handle, resets the
// Handle and returns a *Result. Calls on one Request are serialized.
//
// Example:
//
//	params := apiclient.NewParams().
//	    AddAuth(apiclient.AuthDomain, "example.pro").
//	    AddAuth("key", "abc")
//	req := apiclient.NewRequest(params, apiclient.NewHandle(), log,
//	    apiclient.WithAuthInQuery(true))
//
//	res, err := req.Get(ctx, "/exchange", map[string]any{"type": "order_bot"})
type Request struct {
	mu sync.Mutex

	params    *Params
	handle    *Handle
	log       *logger.Logger
	settings  Settings
	sessionID string

	lastCode int
	lastBody []byte
}

// NewRequest creates a Request with DefaultSettings adjusted by opts.
// Nil collaborators are replaced with empty ones.
func NewRequest(params *Params, handle *Handle, log *logger.Logger, opts ...Setting) *Request {
	if params == nil {
		params = NewParams()
	}
	if handle == nil {
		handle = NewHandle()
	}
	if log == nil {
		log = logger.Nop()
	}

	r := &Request{
		params:    params,
		handle:    handle,
		log:       log,
		settings:  DefaultSettings(),
		sessionID: uuid.NewString(),
	}
	r.Apply(opts...)
	return r
}

// Apply changes the defaults used by subsequent calls. Turning Debug on or
// off also moves the logger's leveled routes to debug or info.
func (r *Request) Apply(opts ...Setting) {
	r.mu.Lock()
	before := r.settings.Debug
	for _, opt := range opts {
		opt(&r.settings)
	}
	after := r.settings.Debug
	r.mu.Unlock()

	if before == after {
		return
	}
	if after {
		r.log.SetLevel(logger.LevelDebug)
	} else {
		r.log.SetLevel(logger.LevelInfo)
	}
}

// Settings returns a copy of the current defaults.
func (r *Request) Settings() Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings.clone()
}

// Params returns the parameter store.
func (r *Request) Params() *Params { return r.params }

// Handle returns the transport handle.
func (r *Request) Handle() *Handle { return r.handle }

// Logger returns the logger.
func (r *Request) Logger() *logger.Logger { return r.log }

// SessionID identifies this Request in logs and in the X-Request-Id header.
func (r *Request) SessionID() string { return r.sessionID }

// LastHTTPCode returns the status code of the last call that produced a
// response, or 0.
func (r *Request) LastHTTPCode() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastCode
}

// LastHTTPResponse returns the decoded body of the last call that produced
// a response.
func (r *Request) LastHTTPResponse() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return bytes.Clone(r.lastBody)
}

// Get merges query into the GET parameters and performs the call.
func (r *Request) Get(ctx context.Context, path string, query map[string]any, opts ...CallOption) (*Result, error) {
	if len(query) > 0 {
		r.params.MergeGet(query)
	}
	return r.Do(ctx, path, opts...)
}

// Post merges body into the POST parameters and performs the call.
func (r *Request) Post(ctx context.Context, path string, body map[string]any, opts ...CallOption) (*Result, error) {
	if len(body) > 0 {
		r.params.MergePost(body)
	}
	return r.Do(ctx, path, opts...)
}

// Do performs one call to path using the current Params.
//
// The method is POST when POST parameters or a file are staged, GET
// otherwise. A transport failure that produced no body is returned as a
// *NetworkError. Any HTTP status, including 4xx and 5xx, is a *Result.
func (r *Request) Do(ctx context.Context, path string, opts ...CallOption) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	co := callOptions{}
	for _, opt := range opts {
		opt(&co)
	}
	if co.err != nil {
		return nil, co.err
	}

	s := r.settings.clone()
	for _, opt := range co.overrides {
		opt(&s)
	}

	endpoint, err := r.endpoint(s, path)
	if err != nil {
		return nil, err
	}

	body, err := r.body(s)
	if err != nil {
		return nil, err
	}
	if body.file != "" {
		defer func() {
			if err := r.params.CloseFile(); err != nil {
				r.log.Warning("close upload file", r.logContext(logger.Context{"error": err.Error()}))
			}
		}()
	}

	// The transport layers pick up the same trace from ctx.
	ctx, trace := withNetworkTrace(ctx)
	req, err := http.NewRequestWithContext(ctx, body.method, endpoint, body.reader)
	if err != nil {
		return nil, &ValidationError{Field: "url", Reason: err.Error()}
	}
	req.ContentLength = body.length
	req.Header = r.headers(s, co, body)

	// From here on the handle carries per-call state.
	defer r.handle.Reset()

	proxy, err := r.applyProxy()
	if err != nil {
		return nil, err
	}

	var jar *CookieFile
	if s.Cookies {
		if jar, err = LoadCookieFile(r.handle.CookieFile()); err != nil {
			return nil, err
		}
		r.handle.SetCookieJar(jar)
	}

	if s.BasicAuth {
		login, _ := r.params.Auth(AuthLogin)
		password, _ := r.params.Auth(AuthPassword)
		req.SetBasicAuth(login, password)
	}

	r.logRequest(s, req, body, jar, proxy)

	rec := r.handle.cfg.Metrics
	callAttrs := r.callAttributes(req, body)

	client := r.handle.Open()
	started := time.Now()
	resp, callErr := client.Do(req)

	var raw []byte
	if resp != nil {
		readStart := time.Now()
		var readErr error
		raw, readErr = io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		rec.recordPhase(ctx, "transfer", time.Since(readStart), callAttrs)
		if callErr == nil {
			callErr = readErr
		}
	}

	if jar != nil {
		if err := jar.Save(); err != nil {
			r.log.Warning("save cookies", r.logContext(logger.Context{"error": err.Error()}))
		}
	}

	var netErr *NetworkError
	if callErr != nil {
		netErr = newNetworkError(callErr)
	}
	r.logTransport(co, trace.transportInfo(started, req, resp, int64(len(raw))), raw, netErr)

	// http.Client returns either a response or an error.
	if netErr != nil && (resp == nil || len(raw) == 0) {
		rec.recordCallError(ctx, netErr.Code, callAttrs)
		rec.recordCall(ctx, time.Since(started), callAttrs)
		return nil, netErr
	}

	decoded, err := decodeContent(raw, resp.Header.Get("Content-Encoding"))
	if err != nil {
		netErr = &NetworkError{Message: err.Error(), Code: CodeBadContentEncoding, Err: err}
		rec.recordCallError(ctx, netErr.Code, callAttrs)
		rec.recordCall(ctx, time.Since(started), callAttrs)
		return nil, netErr
	}
	if !s.BinaryTransfer {
		decoded = transcodeToUTF8(decoded, resp.Header.Get("Content-Type"))
	}

	r.lastCode = resp.StatusCode
	r.lastBody = decoded

	res := newResult(resp, decoded, s.ParseResponse)
	callAttrs = append(callAttrs, attribute.Int("http.response.status_code", resp.StatusCode))
	if s.ParseResponse && res.IsNull() && !isJSONNull(decoded) {
		rec.recordParseFailure(ctx, callAttrs)
	}
	rec.recordCall(ctx, time.Since(started), callAttrs)
	return res, nil
}

// callAttributes describes a call for the apiclient.* metrics.
func (r *Request) callAttributes(req *http.Request, body requestBody) []attribute.KeyValue {
	attrs := append(r.handle.cfg.baseAttributes(),
		attribute.String("http.request.method", req.Method),
		attribute.String("apiclient.body_mode", body.mode),
	)
	return append(attrs, serverAttributes(req.URL, true)...)
}

// isJSONNull reports whether body is empty or the JSON literal null, the
// two bodies for which a nil parse result is not a failure.
func isJSONNull(body []byte) bool {
	b := bytes.TrimSpace(body)
	return len(b) == 0 || string(b) == "null"
}

// endpoint builds {scheme}://{domain}{path}?{query}.
func (r *Request) endpoint(s Settings, path string) (string, error) {
	domain, ok := r.params.Auth(AuthDomain)
	if !ok || domain == "" {
		return "", &ValidationError{Field: AuthDomain, Reason: "not set"}
	}

	query := make(map[string]any)
	if s.AuthInQuery {
		for k, v := range r.params.AuthParams() {
			query[k] = v
		}
	}
	for k, v := range r.params.GetParams() {
		query[k] = v
	}

	scheme := "http"
	if s.HTTPS {
		scheme = "https"
	}
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	endpoint := scheme + "://" + domain + path
	if q := BuildQuery(query); q != "" {
		endpoint += "?" + q
	}
	return endpoint, nil
}

type requestBody struct {
	// mode is "json", "form", "file" or "none".
	mode   string
	method string
	reader io.Reader
	length int64
	raw    []byte
	file   string
	ctype  string
}

// body encodes the staged POST parameters or opens the staged file.
func (r *Request) body(s Settings) (requestBody, error) {
	post := r.params.PostParams()
	hasFile := r.params.HasFile()

	switch {
	case len(post) > 0 && hasFile:
		return requestBody{}, ErrConflictingBody
	case len(post) > 0:
		raw, ctype, err := encodeBody(post, s.JSON)
		if err != nil {
			return requestBody{}, &ValidationError{Field: "post", Reason: err.Error()}
		}
		mode := "form"
		if s.JSON {
			mode = "json"
		}
		return requestBody{
			mode:   mode,
			method: http.MethodPost,
			reader: bytes.NewReader(raw),
			length: int64(len(raw)),
			raw:    raw,
			ctype:  ctype,
		}, nil
	case hasFile:
		fp, ok := r.params.FileParams()
		if !ok {
			return requestBody{}, &IOError{Op: "stat", Path: r.params.Filename()}
		}
		f, err := r.params.OpenFile()
		if err != nil {
			return requestBody{}, err
		}
		return requestBody{
			mode:   "file",
			method: http.MethodPost,
			// Params owns the stream; the transport must not close it.
			reader: io.NopCloser(f),
			length: fp.Size,
			file:   fp.Name,
		}, nil
	default:
		return requestBody{mode: "none", method: http.MethodGet}, nil
	}
}

func (r *Request) headers(s Settings, co callOptions, body requestBody) http.Header {
	h := make(http.Header)
	h.Set("Connection", "keep-alive")
	switch {
	case s.JSON:
		h.Set("Content-Type", "application/json")
	case body.ctype != "":
		h.Set("Content-Type", body.ctype)
	}
	if co.ifModifiedSince != "" {
		h.Set("If-Modified-Since", co.ifModifiedSince)
	}
	for k, vs := range s.Headers {
		for _, v := range vs {
			h.Add(k, v)
		}
	}
	// Extra headers take precedence over these two.
	if h.Get("Accept-Encoding") == "" {
		h.Set("Accept-Encoding", acceptEncoding)
	}
	if h.Get(requestIDHeader) == "" {
		h.Set(requestIDHeader, r.sessionID)
	}
	return h
}

// applyProxy hands the Params proxy, if any, to the handle.
func (r *Request) applyProxy() (string, error) {
	addr, ok := r.params.Proxy()
	if !ok || addr == "" {
		return "", nil
	}
	raw := addr
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", &ValidationError{Field: "proxy", Reason: fmt.Sprintf("invalid address %q", addr)}
	}
	r.handle.SetProxy(u)
	return addr, nil
}

func (r *Request) logContext(ctx logger.Context) logger.Context {
	if ctx == nil {
		ctx = logger.Context{}
	}
	ctx["session_id"] = r.sessionID
	return ctx
}

func (r *Request) logRequest(s Settings, req *http.Request, body requestBody, jar *CookieFile, proxy string) {
	r.log.Debug("json", r.logContext(logger.Context{"enabled": s.JSON}))

	cookies := logger.Context{"enabled": s.Cookies}
	if jar != nil {
		cookies["file"] = jar.Path()
		cookies["names"] = sortedCookieNames(jar, req.URL)
	}
	r.log.Debug("cookies", r.logContext(cookies))

	r.log.Debug("url", r.logContext(logger.Context{"method": req.Method, "url": req.URL.String()}))
	r.log.Debug("headers", r.logContext(logger.Context{"headers": redactHeaders(req.Header)}))

	if body.raw != nil {
		r.log.Debug("post params", r.logContext(logger.Context{"params": r.params.PostParams()}))
	}
	if body.file != "" {
		r.log.Debug("file params", r.logContext(logger.Context{"name": body.file, "size": body.length}))
	}

	if s.Debug {
		opts := curlOptions{
			body:       body.raw,
			uploadFile: body.file,
			proxy:      proxy,
			basicAuth:  s.BasicAuth,
		}
		if jar != nil {
			opts.cookieFile = jar.Path()
		}
		r.log.Debug("curl", r.logContext(logger.Context{"command": generateCurlCommand(req, opts)}))
	}
}

func (r *Request) logTransport(
	co callOptions,
	info TransportInfo,
	raw []byte,
	netErr *NetworkError,
) {
	if co.suppressResult {
		r.log.Debug("response", r.logContext(logger.Context{"body": suppressedResult}))
	} else {
		r.log.Debug("response", r.logContext(logger.Context{"body": string(raw)}))
	}

	r.log.Debug("transport info", r.logContext(info.Fields()))

	var msg string
	code := CodeUnknown
	if netErr != nil {
		msg, code = netErr.Message, netErr.Code
	}
	r.log.Debug("transport error", r.logContext(logger.Context{"error": msg}))
	r.log.Debug("transport errno", r.logContext(logger.Context{"errno": code}))
}

// CallOption adjusts a single call.
type CallOption func(*callOptions)

type callOptions struct {
	ifModifiedSince string
	suppressResult  bool
	overrides       []Setting
	err             error
}

// IfModifiedSince sends an If-Modified-Since header for t.
func IfModifiedSince(t time.Time) CallOption {
	return func(o *callOptions) {
		o.ifModifiedSince = t.UTC().Format(http.TimeFormat)
	}
}

// IfModifiedSinceUnix sends an If-Modified-Since header for a Unix
// timestamp, converted to an HTTP-date.
func IfModifiedSinceUnix(sec int64) CallOption {
	return IfModifiedSince(time.Unix(sec, 0))
}

var ifModifiedSinceLayouts = []string{
	http.TimeFormat,
	time.RFC1123,
	time.RFC1123Z,
	time.RFC850,
	time.ANSIC,
	time.RFC3339,
	time.DateTime,
	time.DateOnly,
}

// IfModifiedSinceString sends an If-Modified-Since header for a date
// string. HTTP-dates, RFC 3339 and "2006-01-02[ 15:04:05]" are accepted;
// anything else fails the call with a *ValidationError.
func IfModifiedSinceString(date string) CallOption {
	return func(o *callOptions) {
		date = strings.TrimSpace(date)
		for _, layout := range ifModifiedSinceLayouts {
			if t, err := time.Parse(layout, date); err == nil {
				o.ifModifiedSince = t.UTC().Format(http.TimeFormat)
				return
			}
		}
		o.err = &ValidationError{
			Field:  "If-Modified-Since",
			Reason: fmt.Sprintf("cannot parse date %q", date),
		}
	}
}

// WithoutResultLog keeps the response body out of the logs.
func WithoutResultLog() CallOption {
	return func(o *callOptions) { o.suppressResult = true }
}

// Override applies settings to this call only.
func Override(opts ...Setting) CallOption {
	return func(o *callOptions) { o.overrides = append(o.overrides, opts...) }
}
