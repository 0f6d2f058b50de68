package apiclient

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"
	"syscall"
)

// Sentinel errors for use with errors.Is.
var (
	// ErrValidation marks malformed local state (unknown field, bad ID, bad header date).
	ErrValidation = errors.New("validation error")

	// ErrIO marks a local file that cannot be staged or read.
	ErrIO = errors.New("io error")

	// ErrNetwork marks a transport-level failure that produced no body.
	ErrNetwork = errors.New("network error")

	// ErrConflictingBody is returned when POST fields and a file upload are
	// both staged for the same request.
	ErrConflictingBody = fmt.Errorf("%w: post fields and file upload are mutually exclusive", ErrValidation)

	// ErrRateLimited is returned when a request is rejected due to rate limiting.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// ValidationError reports malformed local state.
type ValidationError struct {
	// Field names the offending field or parameter, if any.
	Field string
	// Reason describes what is wrong.
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// IOError reports a local file that could not be staged or opened.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s", e.Op, e.Path)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *IOError) Unwrap() error { return e.Err }

// Is reports whether target is ErrIO.
func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

// Transport error codes carried by NetworkError. The values follow libcurl's
// CURLcode numbering so logs stay comparable with cURL-based clients.
const (
	CodeUnknown              = 0
	CodeUnsupportedProtocol  = 1
	CodeURLMalformat         = 3
	CodeCouldNotResolveProxy = 5
	CodeCouldNotResolveHost  = 6
	CodeCouldNotConnect      = 7
	CodeOperationTimedOut    = 28
	CodeAbortedByCallback    = 42
	CodeSSLConnectError      = 35
	CodeGotNothing           = 52
	CodeSendError            = 55
	CodeRecvError            = 56
	CodeBadContentEncoding   = 61
)

// NetworkError reports a transport failure for which no response body was
// received. It is never retried internally.
type NetworkError struct {
	// Message is the transport error string.
	Message string
	// Code is the transport error code (see the Code constants).
	Code int
	// Err is the underlying error.
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error %d: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error { return e.Err }

// Is reports whether target is ErrNetwork.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// newNetworkError builds a NetworkError from a round trip error.
// *url.Error wrappers added by http.Client are stripped from the message.
func newNetworkError(err error) *NetworkError {
	msg := err.Error()
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		msg = urlErr.Err.Error()
	}
	return &NetworkError{
		Message: msg,
		Code:    errorCode(err),
		Err:     err,
	}
}

// errorCode derives the transport error code for a round trip error.
// Typed errors are checked first; the message is a fallback for transports
// that only return strings.
func errorCode(err error) int {
	var (
		netErr  net.Error
		opErr   *net.OpError
		dnsErr  *net.DNSError
		recErr  tls.RecordHeaderError
		certErr *tls.CertificateVerificationError
	)
	switch {
	case err == nil:
		return CodeUnknown
	case errors.Is(err, context.Canceled):
		return CodeAbortedByCallback
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		return CodeOperationTimedOut
	case errors.As(err, &opErr) && opErr.Op == "proxyconnect":
		return CodeCouldNotResolveProxy
	case errors.As(err, &dnsErr):
		return CodeCouldNotResolveHost
	case errors.As(err, &recErr), errors.As(err, &certErr):
		return CodeSSLConnectError
	case errors.Is(err, syscall.ECONNREFUSED):
		return CodeCouldNotConnect
	case errors.Is(err, syscall.ECONNRESET):
		return CodeRecvError
	case errors.Is(err, syscall.EPIPE):
		return CodeSendError
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return CodeGotNothing
	}

	msg := strings.ToLower(err.Error())
	for _, m := range errorMessageCodes {
		if strings.Contains(msg, m.substr) {
			return m.code
		}
	}
	return CodeUnknown
}

// errorMessageCodes is checked in order; proxy must precede host.
var errorMessageCodes = []struct {
	substr string
	code   int
}{
	{"timeout", CodeOperationTimedOut},
	{"resolve proxy", CodeCouldNotResolveProxy},
	{"proxyconnect", CodeCouldNotResolveProxy},
	{"no such host", CodeCouldNotResolveHost},
	{"resolve host", CodeCouldNotResolveHost},
	{"connection refused", CodeCouldNotConnect},
	{"couldn't connect", CodeCouldNotConnect},
	{"connection reset", CodeRecvError},
	{"broken pipe", CodeSendError},
	{"x509", CodeSSLConnectError},
	{"certificate", CodeSSLConnectError},
	{"tls", CodeSSLConnectError},
	{"unsupported protocol scheme", CodeUnsupportedProtocol},
	{"eof", CodeGotNothing},
}

var codeNames = map[int]string{
	CodeUnknown:              "unknown",
	CodeUnsupportedProtocol:  "unsupported_protocol",
	CodeURLMalformat:         "url_malformat",
	CodeCouldNotResolveProxy: "couldnt_resolve_proxy",
	CodeCouldNotResolveHost:  "couldnt_resolve_host",
	CodeCouldNotConnect:      "couldnt_connect",
	CodeOperationTimedOut:    "operation_timedout",
	CodeSSLConnectError:      "ssl_connect_error",
	CodeAbortedByCallback:    "aborted_by_callback",
	CodeGotNothing:           "got_nothing",
	CodeSendError:            "send_error",
	CodeRecvError:            "recv_error",
	CodeBadContentEncoding:   "bad_content_encoding",
}

// CodeName returns the name of a transport error code, used as the
// error.type of spans and metrics.
func CodeName(code int) string {
	if name, ok := codeNames[code]; ok {
		return name
	}
	return "code_" + strconv.Itoa(code)
}
