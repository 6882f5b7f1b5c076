package weblog

import (
	"net/http"
	"time"
)

// Record types for persisted lifecycle events.
const (
	RecordBegin  = "begin"
	RecordFinish = "finish"
)

// Record is one self-contained structured event, serialized as a single
// JSON line. A logical request produces exactly two records (begin and
// finish) sharing a RequestID; they are not guaranteed to land in the
// same file once the store rotates.
type Record struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"requestId"`

	Method     string         `json:"method"`
	Path       string         `json:"path"`
	Query      map[string]any `json:"query,omitempty"`
	Body       any            `json:"body,omitempty"`
	RemoteAddr string         `json:"remoteAddr,omitempty"`

	// Finish-only fields. Response holds the captured payload on normal
	// completion; it is absent when the handler errored.
	StatusCode int        `json:"statusCode,omitempty"`
	ElapsedMs  int64      `json:"elapsedMs,omitempty"`
	Response   any        `json:"response,omitempty"`
	Error      *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo captures a handler error in a persisted record.
type ErrorInfo struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

// recordOptions controls which request data a reporter includes in the
// records it builds.
type recordOptions struct {
	logParams    bool
	logBody      bool
	maxBodyBytes int
}

// newBeginRecord builds the begin record for a request. Sensitive fields
// are already redacted.
func newBeginRecord(r *http.Request, m *Meta, opts recordOptions) *Record {
	rec := &Record{
		Type:       RecordBegin,
		Timestamp:  m.Start,
		RequestID:  m.RequestID,
		Method:     r.Method,
		Path:       r.URL.Path,
		RemoteAddr: r.RemoteAddr,
	}
	if opts.logParams {
		rec.Query = redactQuery(r.URL.Query())
	}
	if opts.logBody {
		rec.Body = redactPayload(truncate(m.RequestBody, opts.maxBodyBytes))
	}
	return rec
}

// newFinishRecord builds the finish record for a completed or errored
// request.
func newFinishRecord(r *http.Request, m *Meta, opts recordOptions) *Record {
	rec := &Record{
		Type:       RecordFinish,
		Timestamp:  m.End,
		RequestID:  m.RequestID,
		Method:     r.Method,
		Path:       r.URL.Path,
		RemoteAddr: r.RemoteAddr,
		StatusCode: m.StatusCode,
		ElapsedMs:  m.Elapsed().Milliseconds(),
	}
	if opts.logParams {
		rec.Query = redactQuery(r.URL.Query())
	}
	if m.Err != nil {
		rec.Error = &ErrorInfo{Message: m.Err.Error(), Type: errorType(m.Err)}
		return rec
	}
	if opts.logBody && len(m.ResponseBody) > 0 {
		rec.Response = redactPayload(truncate(m.ResponseBody, opts.maxBodyBytes))
	}
	return rec
}

// errorType names the concrete error for the record, so consumers can
// distinguish handler panics from typed HTTP errors.
func errorType(err error) string {
	switch err.(type) {
	case *HTTPError:
		return "HTTPError"
	default:
		return ""
	}
}

func truncate(b []byte, max int) []byte {
	if max > 0 && len(b) > max {
		return b[:max]
	}
	return b
}
