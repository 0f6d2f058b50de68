package apiclient

import (
	"net/http"

	json "github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// ParseJSON decodes raw into generic Go values (map[string]any, []any,
// float64, string, bool). Malformed or empty input yields nil, never an
// error: callers treat nil as "no data".
func ParseJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

// Result is the outcome of a call that produced a response body.
//
// Any status code is a Result, including 4xx and 5xx; only transport
// failures are errors. Use IsSuccess to tell them apart.
//
// Example usage:
//
//	res, err := req.Get(ctx, "/exchange", map[string]any{"type": "order_bot"})
//	if err != nil {
//	    return err
//	}
//	if !res.IsSuccess() {
//	    return fmt.Errorf("exchange: HTTP %d: %s", res.StatusCode, res.String())
//	}
//	id := res.Get("result.id").Int()
type Result struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Header holds the response headers.
	Header http.Header

	// raw is the decoded (decompressed, and transcoded in text mode) body.
	raw []byte

	// data is the parsed JSON body, or the body as a string when parsing
	// was disabled.
	data any

	parsed bool
}

func newResult(resp *http.Response, body []byte, parse bool) *Result {
	r := &Result{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		raw:        body,
		parsed:     parse,
	}
	if parse {
		r.data = ParseJSON(body)
	} else {
		r.data = string(body)
	}
	return r
}

// Raw returns the response body bytes.
func (r *Result) Raw() []byte {
	return r.raw
}

// String returns the response body as a string.
func (r *Result) String() string {
	return string(r.raw)
}

// Data returns the parsed body when response parsing is enabled, otherwise
// the raw body as a string. A body that is not valid JSON parses to nil.
func (r *Result) Data() any {
	return r.data
}

// Parsed reports whether the body was run through ParseJSON.
func (r *Result) Parsed() bool {
	return r.parsed
}

// IsNull reports whether there is no usable data.
func (r *Result) IsNull() bool {
	return r.data == nil
}

// Map returns the parsed body as an object, if it is one.
func (r *Result) Map() (map[string]any, bool) {
	m, ok := r.data.(map[string]any)
	return m, ok
}

// List returns the parsed body as an array, if it is one.
func (r *Result) List() ([]any, bool) {
	l, ok := r.data.([]any)
	return l, ok
}

// Get looks up a value with a gjson path such as "items.0.id" or
// "items.#.id". It works regardless of whether parsing was enabled.
func (r *Result) Get(path string) gjson.Result {
	return gjson.GetBytes(r.raw, path)
}

// Decode unmarshals the JSON body into v.
func (r *Result) Decode(v any) error {
	return json.Unmarshal(r.raw, v)
}

// IsSuccess returns true if the response status code is 2xx.
func (r *Result) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsError returns true if the response status code is 4xx or 5xx.
func (r *Result) IsError() bool {
	return r.StatusCode >= 400
}
