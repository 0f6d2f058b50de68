package apiclient

import "net/http"

// Settings controls how a Request builds and decodes a call. It is a plain
// value: a Request snapshots it at the start of every call, so changing the
// defaults never affects a call already in flight.
type Settings struct {
	// ParseResponse decodes the body as JSON into Result.Data().
	// Default: true
	ParseResponse bool

	// BinaryTransfer returns the body bytes untouched. When false the body
	// is transcoded to UTF-8 using the charset of the Content-Type header.
	// Default: true
	BinaryTransfer bool

	// HTTPS selects the https scheme. Default: true
	HTTPS bool

	// BasicAuth sends the login and password auth values as HTTP Basic
	// credentials. Default: false
	BasicAuth bool

	// AuthInQuery copies the free-form auth parameters into the query
	// string. GET parameters win on key collision. Default: false
	AuthInQuery bool

	// JSON encodes POST parameters as a JSON body and sends
	// "Content-Type: application/json". When false they are form-encoded.
	// Default: true
	JSON bool

	// Cookies persists cookies in a Netscape cookie file between calls.
	// Default: false
	Cookies bool

	// Debug raises the logger to debug level and logs an equivalent cURL
	// command for each call. Default: false
	Debug bool

	// Headers are appended after the built-in headers. Keys are not
	// deduplicated against them.
	Headers http.Header
}

// DefaultSettings returns the settings a new Request starts with.
func DefaultSettings() Settings {
	return Settings{
		ParseResponse:  true,
		BinaryTransfer: true,
		HTTPS:          true,
		JSON:           true,
	}
}

// clone returns a copy that shares no mutable state with s.
func (s Settings) clone() Settings {
	s.Headers = s.Headers.Clone()
	return s
}

// Setting adjusts Settings.
type Setting func(*Settings)

// WithParseResponse toggles JSON decoding of the response body.
func WithParseResponse(on bool) Setting {
	return func(s *Settings) { s.ParseResponse = on }
}

// WithBinaryTransfer toggles raw body transfer.
func WithBinaryTransfer(on bool) Setting {
	return func(s *Settings) { s.BinaryTransfer = on }
}

// WithHTTPS toggles the https scheme.
func WithHTTPS(on bool) Setting {
	return func(s *Settings) { s.HTTPS = on }
}

// WithBasicAuth toggles HTTP Basic credentials.
func WithBasicAuth(on bool) Setting {
	return func(s *Settings) { s.BasicAuth = on }
}

// WithAuthInQuery toggles copying auth parameters into the query string.
func WithAuthInQuery(on bool) Setting {
	return func(s *Settings) { s.AuthInQuery = on }
}

// WithJSON toggles JSON request bodies.
func WithJSON(on bool) Setting {
	return func(s *Settings) { s.JSON = on }
}

// WithCookies toggles cookie file persistence.
func WithCookies(on bool) Setting {
	return func(s *Settings) { s.Cookies = on }
}

// WithDebug toggles debug logging.
func WithDebug(on bool) Setting {
	return func(s *Settings) { s.Debug = on }
}

// WithHeaders appends extra header lines. Repeated calls accumulate, and a
// key already present gets an additional value.
//
// Example:
//
//	req.Apply(apiclient.WithHeaders(http.Header{
//	    "X-Api-Version": {"2"},
//	}))
func WithHeaders(h http.Header) Setting {
	return func(s *Settings) {
		if s.Headers == nil {
			s.Headers = make(http.Header, len(h))
		}
		for k, vs := range h {
			for _, v := range vs {
				s.Headers.Add(k, v)
			}
		}
	}
}
