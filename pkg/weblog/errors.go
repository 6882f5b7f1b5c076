package weblog

import (
	"errors"
	"fmt"
	"net/http"
)

// Registry state-machine errors. Checked with errors.Is.
var (
	// ErrDuplicateID is returned when registering an id twice.
	ErrDuplicateID = errors.New("weblog: reporter id already registered")

	// ErrUnknownReporter is returned for operations on an unregistered id.
	ErrUnknownReporter = errors.New("weblog: unknown reporter")

	// ErrAlreadyEnabled is returned when enabling an enabled reporter.
	ErrAlreadyEnabled = errors.New("weblog: reporter already enabled")

	// ErrNotEnabled is returned when the operation needs an enabled reporter.
	ErrNotEnabled = errors.New("weblog: reporter not enabled")
)

// ConfigError reports an invalid runtime configuration value. SetConfig
// applies nothing when it returns a ConfigError.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("weblog: config %s: %s", e.Field, e.Message)
}

// ResourceError reports that a reporter failed to acquire its backing
// resource while being enabled. The reporter stays available.
type ResourceError struct {
	ID  string
	Err error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("weblog: reporter %q failed to open: %v", e.ID, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// ReporterError tags a fan-out failure with the reporter it came from.
// These are surfaced through the registry's out-of-band error handler,
// never through the instrumented request.
type ReporterError struct {
	ID  string
	Err error
}

func (e *ReporterError) Error() string {
	return fmt.Sprintf("weblog: reporter %q: %v", e.ID, e.Err)
}

func (e *ReporterError) Unwrap() error { return e.Err }

// HTTPError is a handler error that carries the status code the host
// should answer with. The interceptor records the status on the Meta and
// passes the error, unchanged, to the host's error handler.
type HTTPError struct {
	Status  int
	Message string
	Err     error
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Status)
}

func (e *HTTPError) Unwrap() error { return e.Err }

// NewHTTPError builds an HTTPError with a status code and message.
func NewHTTPError(status int, message string) *HTTPError {
	return &HTTPError{Status: status, Message: message}
}
