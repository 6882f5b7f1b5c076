package weblog

import (
	"errors"
	"net/http"
	"sync"

	"github.com/bweblog/bweblog/pkg/logstore"
	"github.com/bweblog/bweblog/pkg/metrics"
)

// DefaultFileConfig returns the file reporter's default options.
func DefaultFileConfig() map[string]any {
	return map[string]any{
		"logParams":    true,
		"logBody":      true,
		"maxBodyBytes": DefaultMaxBodyBytes,
		"maxFileSize":  int(logstore.DefaultMaxFileSize),
		"maxFiles":     logstore.DefaultMaxFiles,
	}
}

// FileReporter persists one begin and one finish record per request as
// JSON lines through a rotating log store. Sensitive fields are redacted
// before anything reaches disk.
type FileReporter struct {
	path string

	mu           sync.RWMutex
	store        *logstore.Store
	logParams    bool
	logBody      bool
	maxBodyBytes int
	maxFileSize  int64
	maxFiles     int
}

// NewFileReporter creates an unopened file reporter that will write to
// path once enabled.
func NewFileReporter(path string) *FileReporter {
	return &FileReporter{
		path:         path,
		logParams:    true,
		logBody:      true,
		maxBodyBytes: DefaultMaxBodyBytes,
		maxFileSize:  logstore.DefaultMaxFileSize,
		maxFiles:     logstore.DefaultMaxFiles,
	}
}

// Open acquires the backing store, creating the directory and resuming
// an existing file's size.
func (f *FileReporter) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	store, err := logstore.Open(f.path, logstore.Options{
		MaxFileSize: f.maxFileSize,
		MaxFiles:    f.maxFiles,
		OnRotate:    metrics.ObserveRotation,
	})
	if err != nil {
		return err
	}
	f.store = store
	return nil
}

// Close releases the store. Safe to call when Open never succeeded.
func (f *FileReporter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.store == nil {
		return nil
	}
	err := f.store.Close()
	f.store = nil
	return err
}

// OnBegin persists the begin record.
func (f *FileReporter) OnBegin(r *http.Request, m *Meta) error {
	f.mu.RLock()
	store := f.store
	opts := f.recordOptions()
	f.mu.RUnlock()

	return f.write(store, newBeginRecord(r, m, opts))
}

// OnFinish persists the finish record.
func (f *FileReporter) OnFinish(r *http.Request, m *Meta) error {
	f.mu.RLock()
	store := f.store
	opts := f.recordOptions()
	f.mu.RUnlock()

	return f.write(store, newFinishRecord(r, m, opts))
}

// write appends rec. A rotation error is still returned for out-of-band
// reporting, but the record itself was persisted.
func (f *FileReporter) write(store *logstore.Store, rec *Record) error {
	if store == nil {
		return logstore.ErrClosed
	}
	err := store.WriteRecord(rec)

	var rotErr *logstore.RotationError
	if err == nil || errors.As(err, &rotErr) {
		metrics.ObserveRecordWritten("file")
	}
	return err
}

// recordOptions snapshots the knobs under f.mu.
func (f *FileReporter) recordOptions() recordOptions {
	return recordOptions{
		logParams:    f.logParams,
		logBody:      f.logBody,
		maxBodyBytes: f.maxBodyBytes,
	}
}

// Config returns the live configuration.
func (f *FileReporter) Config() map[string]any {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return map[string]any{
		"logParams":    f.logParams,
		"logBody":      f.logBody,
		"maxBodyBytes": f.maxBodyBytes,
		"maxFileSize":  int(f.maxFileSize),
		"maxFiles":     f.maxFiles,
	}
}

// SetConfig validates every field before applying any. The store bounds
// (maxFileSize, maxFiles) are enable-time options: once the store is
// open they can no longer change.
func (f *FileReporter) SetConfig(cfg map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	staged := struct {
		logParams, logBody *bool
		maxBodyBytes       *int
		maxFileSize        *int64
		maxFiles           *int
	}{}

	for field, v := range cfg {
		switch field {
		case "logParams":
			b, err := configBool(field, v)
			if err != nil {
				return err
			}
			staged.logParams = &b
		case "logBody":
			b, err := configBool(field, v)
			if err != nil {
				return err
			}
			staged.logBody = &b
		case "maxBodyBytes":
			n, err := configPositiveInt(field, v)
			if err != nil {
				return err
			}
			m := int(n)
			staged.maxBodyBytes = &m
		case "maxFileSize":
			n, err := configPositiveInt(field, v)
			if err != nil {
				return err
			}
			if f.store != nil && n != f.maxFileSize {
				return &ConfigError{Field: field, Message: "cannot change while enabled"}
			}
			staged.maxFileSize = &n
		case "maxFiles":
			n, err := configPositiveInt(field, v)
			if err != nil {
				return err
			}
			m := int(n)
			if f.store != nil && m != f.maxFiles {
				return &ConfigError{Field: field, Message: "cannot change while enabled"}
			}
			staged.maxFiles = &m
		default:
			return unknownField(field)
		}
	}

	if staged.logParams != nil {
		f.logParams = *staged.logParams
	}
	if staged.logBody != nil {
		f.logBody = *staged.logBody
	}
	if staged.maxBodyBytes != nil {
		f.maxBodyBytes = *staged.maxBodyBytes
	}
	if staged.maxFileSize != nil {
		f.maxFileSize = *staged.maxFileSize
	}
	if staged.maxFiles != nil {
		f.maxFiles = *staged.maxFiles
	}
	return nil
}

var _ Reporter = (*FileReporter)(nil)
