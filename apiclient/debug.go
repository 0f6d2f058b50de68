package apiclient

import (
	"net"
	"net/http"
	"sort"
	"strings"
	"time"
)

// curlOptions carries the parts of a call that are not visible on the
// *http.Request itself.
type curlOptions struct {
	body       []byte
	uploadFile string
	cookieFile string
	proxy      string
	basicAuth  bool
}

// generateCurlCommand creates a cURL command equivalent for the given request.
//
// The generated command can be used to reproduce the call from the command
// line. Basic credentials are masked; query-string auth is left as is.
//
// Example output:
//
//	curl -k --compressed -X POST 'https://api.example.com/users' \
//	  -H 'Content-Type: application/json' \
//	  -d '{"name":"John"}'
func generateCurlCommand(req *http.Request, opts curlOptions) string {
	parts := []string{"curl", "-k", "--compressed"}

	if req.Method != http.MethodGet {
		parts = append(parts, "-X", req.Method)
	}

	parts = append(parts, shellQuote(req.URL.String()))

	if opts.basicAuth {
		if user, _, ok := req.BasicAuth(); ok {
			parts = append(parts, "-u", shellQuote(user+":***"))
		}
	}
	if opts.proxy != "" {
		parts = append(parts, "-x", shellQuote(opts.proxy))
	}
	if opts.cookieFile != "" {
		parts = append(parts, "-b", shellQuote(opts.cookieFile), "-c", shellQuote(opts.cookieFile))
	}

	// Headers (sorted for consistent output)
	headerKeys := make([]string, 0, len(req.Header))
	for k := range req.Header {
		if k == "Authorization" && opts.basicAuth {
			continue
		}
		headerKeys = append(headerKeys, k)
	}
	sort.Strings(headerKeys)

	for _, k := range headerKeys {
		for _, v := range req.Header[k] {
			parts = append(parts, "-H", shellQuote(k+": "+v))
		}
	}

	switch {
	case opts.uploadFile != "":
		parts = append(parts, "--data-binary", shellQuote("@"+opts.uploadFile))
	case len(opts.body) > 0:
		parts = append(parts, "-d", shellQuote(string(opts.body)))
	}

	return strings.Join(parts, " ")
}

// redactHeaders returns a copy of h with credential values masked. The
// auth scheme is kept so logs still show which one was used.
func redactHeaders(h http.Header) http.Header {
	out := h.Clone()
	for _, k := range []string{"Authorization", "Proxy-Authorization"} {
		vs := out.Values(k)
		if len(vs) == 0 {
			continue
		}
		masked := make([]string, len(vs))
		for i, v := range vs {
			if scheme, _, ok := strings.Cut(v, " "); ok {
				masked[i] = scheme + " ***"
			} else {
				masked[i] = "***"
			}
		}
		out[http.CanonicalHeaderKey(k)] = masked
	}
	return out
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// TransportInfo describes a finished round trip, in the spirit of
// curl_getinfo. Durations are measured from the start of the call.
type TransportInfo struct {
	URL           string
	Method        string
	StatusCode    int
	ContentType   string
	RequestSize   int64
	DownloadSize  int64
	RedirectURL   string
	PrimaryIP     string
	PrimaryPort   string
	LocalIP       string
	LocalPort     string
	ConnReused    bool
	NameLookup    time.Duration
	Connect       time.Duration
	AppConnect    time.Duration
	StartTransfer time.Duration
	Total         time.Duration
}

// Fields returns the info as log context.
func (ti TransportInfo) Fields() map[string]any {
	return map[string]any{
		"url":                ti.URL,
		"method":             ti.Method,
		"http_code":          ti.StatusCode,
		"content_type":       ti.ContentType,
		"request_size":       ti.RequestSize,
		"size_download":      ti.DownloadSize,
		"redirect_url":       ti.RedirectURL,
		"primary_ip":         ti.PrimaryIP,
		"primary_port":       ti.PrimaryPort,
		"local_ip":           ti.LocalIP,
		"local_port":         ti.LocalPort,
		"conn_reused":        ti.ConnReused,
		"namelookup_time":    ti.NameLookup.Seconds(),
		"connect_time":       ti.Connect.Seconds(),
		"appconnect_time":    ti.AppConnect.Seconds(),
		"starttransfer_time": ti.StartTransfer.Seconds(),
		"total_time":         ti.Total.Seconds(),
	}
}

func splitHostPort(addr string) (string, string) {
	if addr == "" {
		return "", ""
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, ""
	}
	return host, port
}
