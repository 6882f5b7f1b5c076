package weblog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/bweblog/bweblog/pkg/metrics"
)

// DefaultMaxBodyBytes bounds the request/response payload captured per
// request by the interceptor.
const DefaultMaxBodyBytes = 4096

// HandlerFunc is a handler that reports failure by returning an error,
// typically an *HTTPError carrying the intended status code.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// ErrorHandler writes the response for a handler error. It runs after
// the finish fan-out, so reporters observe the failure first.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Interceptor wraps handlers so that every invocation produces one begin
// and one finish fan-out through the registry, without altering the
// handler's observable behavior. Reporter failures never surface on the
// request; handler panics and errors are re-raised unchanged after the
// finish fan-out completes.
type Interceptor struct {
	reg          *Registry
	log          *slog.Logger
	maxBodyBytes int
	errorHandler ErrorHandler
}

// InterceptorOption adjusts an Interceptor.
type InterceptorOption func(*Interceptor)

// WithMaxBodyBytes bounds captured request/response payloads.
func WithMaxBodyBytes(n int) InterceptorOption {
	return func(i *Interceptor) {
		if n > 0 {
			i.maxBodyBytes = n
		}
	}
}

// WithErrorHandler installs the host's error-handling path for errors
// returned by WrapFunc handlers.
func WithErrorHandler(fn ErrorHandler) InterceptorOption {
	return func(i *Interceptor) {
		if fn != nil {
			i.errorHandler = fn
		}
	}
}

// NewInterceptor creates an interceptor dispatching through reg.
func NewInterceptor(reg *Registry, log *slog.Logger, opts ...InterceptorOption) *Interceptor {
	if log == nil {
		log = slog.Default()
	}
	i := &Interceptor{
		reg:          reg,
		log:          log,
		maxBodyBytes: DefaultMaxBodyBytes,
		errorHandler: defaultErrorHandler,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Wrap instruments h. The wrapped handler records start time, runs the
// begin fan-out, invokes h against a response recorder that forwards
// everything to the real ResponseWriter, then records status, captured
// payload and end time and runs the finish fan-out. If h panics, the
// finish fan-out still runs with the error recorded and the panic is
// re-raised unchanged.
func (i *Interceptor) Wrap(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := i.begin(r)
		rec := newResponseRecorder(w, i.maxBodyBytes)

		defer func() {
			if v := recover(); v != nil {
				m.finish(http.StatusInternalServerError, fmt.Errorf("panic: %v", v))
				i.finish(r, m)
				panic(v)
			}
		}()

		h.ServeHTTP(rec, r)

		m.ResponseBody = rec.Body()
		m.finish(rec.Status(), nil)
		i.finish(r, m)
	})
}

// WrapFunc instruments an error-returning handler. A returned error is
// recorded on the Meta (with the status of an *HTTPError when the error
// carries one), observed by the finish fan-out, and then handed, still
// unchanged, to the host's error handler which writes the response.
func (i *Interceptor) WrapFunc(fn HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := i.begin(r)
		rec := newResponseRecorder(w, i.maxBodyBytes)

		defer func() {
			if v := recover(); v != nil {
				m.finish(http.StatusInternalServerError, fmt.Errorf("panic: %v", v))
				i.finish(r, m)
				panic(v)
			}
		}()

		err := fn(rec, r)
		if err != nil {
			m.finish(errorStatus(err), err)
			i.finish(r, m)
			i.errorHandler(w, r, err)
			return
		}

		m.ResponseBody = rec.Body()
		m.finish(rec.Status(), nil)
		i.finish(r, m)
	})
}

// begin stamps a fresh Meta, captures a bounded request body preview and
// runs the begin fan-out. The preview bytes are stitched back so the
// handler reads the body it would have read unwrapped.
func (i *Interceptor) begin(r *http.Request) *Meta {
	m := newMeta()

	if r.Body != nil && r.ContentLength != 0 {
		preview := make([]byte, i.maxBodyBytes)
		n, _ := io.ReadFull(r.Body, preview)
		if n > 0 {
			m.RequestBody = preview[:n]
			r.Body = struct {
				io.Reader
				io.Closer
			}{io.MultiReader(bytes.NewReader(preview[:n]), r.Body), r.Body}
		}
	}

	i.reg.FanOutBegin(r, m)
	return m
}

// finish runs the finish fan-out and counts the request.
func (i *Interceptor) finish(r *http.Request, m *Meta) {
	i.reg.FanOutFinish(r, m)
	metrics.ObserveRequest(m.StatusCode)
}

// errorStatus extracts the status a handler error implies.
func errorStatus(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.Status != 0 {
		return httpErr.Status
	}
	return http.StatusInternalServerError
}

// defaultErrorHandler answers a handler error with a structured JSON
// body, mirroring what a host without its own error path would do.
func defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   http.StatusText(status),
		"message": err.Error(),
	})
}

// responseRecorder observes the payload a handler sends while forwarding
// every operation to the real ResponseWriter, so the handler's visible
// behavior (including how a second WriteHeader attempt is treated) is
// exactly that of the unwrapped writer.
type responseRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
	maxCapture  int
}

func newResponseRecorder(w http.ResponseWriter, maxCapture int) *responseRecorder {
	return &responseRecorder{
		ResponseWriter: w,
		status:         http.StatusOK,
		maxCapture:     maxCapture,
	}
}

func (rr *responseRecorder) WriteHeader(code int) {
	if !rr.wroteHeader {
		rr.status = code
		rr.wroteHeader = true
	}
	// Forward unconditionally: a duplicate call is rejected by the real
	// writer the same way it would be without the recorder.
	rr.ResponseWriter.WriteHeader(code)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	rr.wroteHeader = true
	if rr.body.Len() < rr.maxCapture {
		remaining := rr.maxCapture - rr.body.Len()
		if len(b) <= remaining {
			rr.body.Write(b)
		} else {
			rr.body.Write(b[:remaining])
		}
	}
	return rr.ResponseWriter.Write(b)
}

// Flush forwards to the underlying writer when it supports streaming.
func (rr *responseRecorder) Flush() {
	if f, ok := rr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the real writer to http.ResponseController.
func (rr *responseRecorder) Unwrap() http.ResponseWriter { return rr.ResponseWriter }

// Status returns the status code actually sent.
func (rr *responseRecorder) Status() int { return rr.status }

// Body returns the captured payload, nil when nothing was written.
func (rr *responseRecorder) Body() []byte {
	if rr.body.Len() == 0 {
		return nil
	}
	return rr.body.Bytes()
}
