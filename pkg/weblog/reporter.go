package weblog

import (
	"fmt"
	"math"
	"net/http"
)

// Reporter is a pluggable consumer of request lifecycle events. A
// constructed-but-unopened reporter never receives OnBegin or OnFinish;
// the registry only dispatches to instances it has opened.
//
// Implementations must be safe for concurrent callbacks: finish events
// for different requests may arrive at the same time.
type Reporter interface {
	// Open acquires the reporter's backing resources. The registry calls
	// it once per enable.
	Open() error

	// Close releases resources. It must tolerate a partially failed Open
	// and never fail for resources that were not acquired.
	Close() error

	// OnBegin observes a request entering its handler. The Meta is still
	// mutable and must only be read.
	OnBegin(r *http.Request, m *Meta) error

	// OnFinish observes a finalized request, whether it completed
	// normally or errored.
	OnFinish(r *http.Request, m *Meta) error

	// Config returns the live configuration.
	Config() map[string]any

	// SetConfig validates and applies a partial configuration update.
	// Unknown keys and mistyped values are rejected with a *ConfigError
	// and nothing is applied.
	SetConfig(cfg map[string]any) error
}

// Factory constructs a fresh, unopened reporter instance. The registry
// applies the merged configuration via SetConfig before calling Open.
type Factory func() Reporter

// Configuration decoding helpers shared by the built-in reporters. JSON
// and YAML both deliver numbers loosely typed, so the helpers accept any
// integral numeric representation.

func configBool(field string, v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, &ConfigError{Field: field, Message: "must be a boolean"}
	}
	return b, nil
}

func configString(field string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", &ConfigError{Field: field, Message: "must be a string"}
	}
	return s, nil
}

func configInt(field string, v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, &ConfigError{Field: field, Message: "must be an integer"}
		}
		return int64(n), nil
	default:
		return 0, &ConfigError{Field: field, Message: "must be an integer"}
	}
}

func configPositiveInt(field string, v any) (int64, error) {
	n, err := configInt(field, v)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, &ConfigError{Field: field, Message: "must be positive"}
	}
	return n, nil
}

func unknownField(field string) error {
	return &ConfigError{Field: field, Message: fmt.Sprintf("unknown option %q", field)}
}
