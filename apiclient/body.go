package apiclient

import (
	"io"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// trackedBody keeps a client span open until the response body has been
// consumed. Request reads every body in full, so the span covers the
// download and onDone sees the number of bytes received on the wire
// (before content decoding).
type trackedBody struct {
	span trace.Span
	body io.ReadCloser
	read atomic.Int64
	done atomic.Bool

	onDone func(bytesRead int64)
}

// newTrackedBody wraps body. A nil body ends the span right away.
func newTrackedBody(span trace.Span, body io.ReadCloser, onDone func(bytesRead int64)) io.ReadCloser {
	if body == nil {
		span.End()
		return nil
	}
	return &trackedBody{span: span, body: body, onDone: onDone}
}

func (b *trackedBody) Read(p []byte) (int, error) {
	n, err := b.body.Read(p)
	b.read.Add(int64(n))

	switch err {
	case nil:
	case io.EOF:
		b.finish()
	default:
		b.span.RecordError(err)
		b.span.SetStatus(codes.Error, err.Error())
	}
	return n, err
}

func (b *trackedBody) Close() error {
	b.finish()
	return b.body.Close()
}

// finish runs onDone and ends the span exactly once.
func (b *trackedBody) finish() {
	if !b.done.CompareAndSwap(false, true) {
		return
	}
	n := b.read.Load()
	b.span.SetAttributes(attribute.Int64("http.response.body.read", n))
	if b.onDone != nil {
		b.onDone(n)
	}
	b.span.End()
}
