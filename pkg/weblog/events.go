package weblog

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/bweblog/bweblog/pkg/logstore"
	"github.com/bweblog/bweblog/pkg/metrics"
)

// Field kinds the event vocabulary can extract.
const (
	fieldString = "string"
	fieldNumber = "number"
)

// eventField names one typed value to pull from the request body.
type eventField struct {
	name string
	path string
	kind string
}

// eventPattern maps a method and path shape to an operation name.
// Segments written as "{name}" match any value and are captured as
// parameters.
type eventPattern struct {
	method   string
	shape    string
	op       string
	fields   []eventField
	segments []string
}

// eventVocabulary is the fixed set of operations the events reporter
// recognizes. Extraction is best-effort: a request whose body lacks the
// expected fields produces no event.
var eventVocabulary = []eventPattern{
	{
		method: http.MethodPost,
		shape:  "/wallet",
		op:     "wallet.create",
		fields: []eventField{
			{name: "id", path: "$.id", kind: fieldString},
		},
	},
	{
		method: http.MethodPost,
		shape:  "/wallet/{id}/send",
		op:     "wallet.send",
		fields: []eventField{
			{name: "address", path: "$.address", kind: fieldString},
			{name: "value", path: "$.value", kind: fieldNumber},
		},
	},
	{
		method: http.MethodPost,
		shape:  "/broadcast",
		op:     "tx.broadcast",
		fields: []eventField{
			{name: "tx", path: "$.tx", kind: fieldString},
		},
	},
}

// EventRecord is one derived domain event, serialized as a JSON line.
type EventRecord struct {
	Type       string            `json:"type"`
	Timestamp  time.Time         `json:"timestamp"`
	RequestID  string            `json:"requestId"`
	Op         string            `json:"op"`
	Params     map[string]string `json:"params,omitempty"`
	Fields     map[string]any    `json:"fields,omitempty"`
	StatusCode int               `json:"statusCode,omitempty"`
	Outcome    string            `json:"outcome,omitempty"`
}

// DefaultEventsConfig returns the events reporter's default options.
func DefaultEventsConfig() map[string]any {
	return map[string]any{
		"maxFileSize": int(logstore.DefaultMaxFileSize),
		"maxFiles":    logstore.DefaultMaxFiles,
	}
}

// EventsReporter derives structured domain events from requests by
// matching method and path shape against the fixed vocabulary. Matching
// and extraction are cheap and best-effort; they never block or fail the
// request. The outcome hash is only attached once the response is
// observable at completion time.
type EventsReporter struct {
	path     string
	patterns []compiledPattern

	mu          sync.RWMutex
	store       *logstore.Store
	maxFileSize int64
	maxFiles    int
}

type compiledField struct {
	name string
	expr jp.Expr
	kind string
}

type compiledPattern struct {
	method   string
	segments []string
	op       string
	fields   []compiledField
}

// NewEventsReporter creates an unopened events reporter writing derived
// events to path once enabled.
func NewEventsReporter(path string) *EventsReporter {
	e := &EventsReporter{
		path:        path,
		maxFileSize: logstore.DefaultMaxFileSize,
		maxFiles:    logstore.DefaultMaxFiles,
	}
	for _, p := range eventVocabulary {
		cp := compiledPattern{
			method:   p.method,
			segments: splitPath(p.shape),
			op:       p.op,
		}
		for _, f := range p.fields {
			x, err := jp.ParseString(f.path)
			if err != nil {
				// Vocabulary paths are fixed; skip anything unparsable
				// rather than failing construction.
				continue
			}
			cp.fields = append(cp.fields, compiledField{name: f.name, expr: x, kind: f.kind})
		}
		e.patterns = append(e.patterns, cp)
	}
	return e
}

// Open acquires the backing store.
func (e *EventsReporter) Open() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	store, err := logstore.Open(e.path, logstore.Options{
		MaxFileSize: e.maxFileSize,
		MaxFiles:    e.maxFiles,
		OnRotate:    metrics.ObserveRotation,
	})
	if err != nil {
		return err
	}
	e.store = store
	return nil
}

// Close releases the store. Safe to call when Open never succeeded.
func (e *EventsReporter) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.store == nil {
		return nil
	}
	err := e.store.Close()
	e.store = nil
	return err
}

// OnBegin does nothing; events only exist once the outcome is known.
func (e *EventsReporter) OnBegin(r *http.Request, m *Meta) error { return nil }

// OnFinish derives and persists an event when the request matches the
// vocabulary and its body carries the expected fields.
func (e *EventsReporter) OnFinish(r *http.Request, m *Meta) error {
	rec, ok := e.derive(r, m)
	if !ok {
		return nil
	}

	e.mu.RLock()
	store := e.store
	e.mu.RUnlock()
	if store == nil {
		return logstore.ErrClosed
	}

	err := store.WriteRecord(rec)
	var rotErr *logstore.RotationError
	if err == nil || errors.As(err, &rotErr) {
		metrics.ObserveRecordWritten("events")
	}
	return err
}

// derive matches the request against the vocabulary and extracts the
// typed fields. Missing or mistyped fields produce no event.
func (e *EventsReporter) derive(r *http.Request, m *Meta) (*EventRecord, bool) {
	segments := splitPath(r.URL.Path)

	for _, p := range e.patterns {
		if p.method != r.Method {
			continue
		}
		params, ok := matchSegments(p.segments, segments)
		if !ok {
			continue
		}

		fields := make(map[string]any, len(p.fields))
		if len(p.fields) > 0 {
			data, err := oj.Parse(m.RequestBody)
			if err != nil {
				return nil, false
			}
			for _, f := range p.fields {
				v, ok := typedValue(f.expr.First(data), f.kind)
				if !ok {
					return nil, false
				}
				if isSensitive(f.name) {
					v = Redacted
				}
				fields[f.name] = v
			}
		}

		rec := &EventRecord{
			Type:       "event",
			Timestamp:  m.End,
			RequestID:  m.RequestID,
			Op:         p.op,
			Params:     params,
			Fields:     fields,
			StatusCode: m.StatusCode,
		}
		if m.Err == nil && len(m.ResponseBody) > 0 {
			rec.Outcome = outcomeHash(m.ResponseBody)
		}
		return rec, true
	}
	return nil, false
}

// Config returns the live configuration.
func (e *EventsReporter) Config() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return map[string]any{
		"maxFileSize": int(e.maxFileSize),
		"maxFiles":    e.maxFiles,
	}
}

// SetConfig validates every field before applying any. Store bounds are
// enable-time options.
func (e *EventsReporter) SetConfig(cfg map[string]any) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	staged := struct {
		maxFileSize *int64
		maxFiles    *int
	}{}

	for field, v := range cfg {
		switch field {
		case "maxFileSize":
			n, err := configPositiveInt(field, v)
			if err != nil {
				return err
			}
			if e.store != nil && n != e.maxFileSize {
				return &ConfigError{Field: field, Message: "cannot change while enabled"}
			}
			staged.maxFileSize = &n
		case "maxFiles":
			n, err := configPositiveInt(field, v)
			if err != nil {
				return err
			}
			m := int(n)
			if e.store != nil && m != e.maxFiles {
				return &ConfigError{Field: field, Message: "cannot change while enabled"}
			}
			staged.maxFiles = &m
		default:
			return unknownField(field)
		}
	}

	if staged.maxFileSize != nil {
		e.maxFileSize = *staged.maxFileSize
	}
	if staged.maxFiles != nil {
		e.maxFiles = *staged.maxFiles
	}
	return nil
}

// typedValue checks an extracted value against the expected kind.
func typedValue(v any, kind string) (any, bool) {
	switch kind {
	case fieldString:
		s, ok := v.(string)
		return s, ok
	case fieldNumber:
		switch n := v.(type) {
		case int64:
			return n, true
		case float64:
			return n, true
		default:
			return nil, false
		}
	default:
		return nil, false
	}
}

// outcomeHash identifies the observable outcome of a completed request.
func outcomeHash(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:8])
}

// splitPath breaks a URL path into its non-empty segments.
func splitPath(p string) []string {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	if len(parts) == 1 && parts[0] == "" {
		return nil
	}
	return parts
}

// matchSegments matches a request path against a shape, capturing
// "{name}" wildcards as parameters.
func matchSegments(shape, path []string) (map[string]string, bool) {
	if len(shape) != len(path) {
		return nil, false
	}
	var params map[string]string
	for i, s := range shape {
		if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
			if params == nil {
				params = make(map[string]string)
			}
			params[strings.Trim(s, "{}")] = path[i]
			continue
		}
		if s != path[i] {
			return nil, false
		}
	}
	return params, true
}

var _ Reporter = (*EventsReporter)(nil)
