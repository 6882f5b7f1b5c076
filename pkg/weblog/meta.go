package weblog

import (
	"time"

	"github.com/google/uuid"
)

// Meta carries the lifecycle metadata of one instrumented request. It is
// created at request entry, finalized exactly once at completion or
// error, and owned by the interceptor for the duration of the request;
// reporters must treat it as read-only.
type Meta struct {
	// RequestID correlates the begin and finish events of one request.
	RequestID string

	// Start is when the wrapped handler was entered.
	Start time.Time

	// End is when the handler completed or errored. Zero until then.
	End time.Time

	// StatusCode is the HTTP status actually sent (or implied by the
	// handler error). Zero until the request finishes.
	StatusCode int

	// Err is the handler error, if any. A finished request has either a
	// captured response or an error, never both.
	Err error

	// RequestBody is a bounded preview of the request body, captured
	// before the handler consumed it.
	RequestBody []byte

	// ResponseBody is a bounded capture of the payload the handler sent.
	// Nil when the handler errored.
	ResponseBody []byte
}

// newMeta stamps a fresh Meta at request entry.
func newMeta() *Meta {
	return &Meta{
		RequestID: uuid.New().String(),
		Start:     time.Now(),
	}
}

// finish finalizes the Meta. Called exactly once per request.
func (m *Meta) finish(status int, err error) {
	m.End = time.Now()
	m.StatusCode = status
	m.Err = err
	if err != nil {
		m.ResponseBody = nil
	}
}

// Finished reports whether the request has completed or errored.
func (m *Meta) Finished() bool { return !m.End.IsZero() }

// Elapsed returns the wall time between begin and finish. Only valid
// once Finished reports true.
func (m *Meta) Elapsed() time.Duration { return m.End.Sub(m.Start) }
