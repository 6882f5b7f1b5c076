package logstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Default bounds applied when Options leaves them zero.
const (
	DefaultMaxFileSize = 10 << 20 // 10 MiB
	DefaultMaxFiles    = 5
)

// Options configures a Store.
type Options struct {
	// MaxFileSize is the size bound for the current file in bytes.
	// A record that would cross the bound triggers a rotation first.
	MaxFileSize int64

	// MaxFiles is the number of rotated history files to retain.
	// The oldest (highest-numbered) files beyond the bound are deleted.
	MaxFiles int

	// OnRotate, if set, is called after each successful rotation.
	OnRotate func()
}

// Store is an append-only writer of newline-delimited records with
// size-based rotation. All methods are safe for concurrent use; writes
// are serialized to keep each line intact and in append order.
type Store struct {
	mu   sync.Mutex
	path string
	opts Options
	file *os.File
	size int64
}

// Open creates or reopens the store at path. The parent directory is
// created if absent. An existing current file is appended to, never
// truncated; its size is resumed so the rotation bound keeps holding
// across restarts.
func Open(path string, opts Options) (*Store, error) {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = DefaultMaxFiles
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logstore: create directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logstore: open %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("logstore: stat %s: %w", path, err)
	}

	return &Store{
		path: path,
		opts: opts,
		file: file,
		size: info.Size(),
	}, nil
}

// WriteRecord serializes v as JSON and appends it as one line.
func (s *Store) WriteRecord(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return &WriteError{Path: s.path, Err: err}
	}
	return s.Write(line)
}

// Write appends line as one self-terminated record. If the record would
// push the current file past the size bound and the file is non-empty,
// the file is rotated first. A *RotationError return means the record
// was still written; only the file shuffle or cleanup failed.
func (s *Store) Write(line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return &WriteError{Path: s.path, Err: ErrClosed}
	}

	need := int64(len(line)) + 1
	var rotErr error
	if s.size > 0 && s.size+need > s.opts.MaxFileSize {
		rotErr = s.rotate()
		if s.file == nil {
			// Rotation left us without a writable file; the record is lost
			// and that is a write failure, not a rotation warning.
			return &WriteError{Path: s.path, Err: errors.Join(ErrClosed, rotErr)}
		}
	}

	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')

	n, err := s.file.Write(buf)
	s.size += int64(n)
	if err != nil {
		return &WriteError{Path: s.path, Err: err}
	}

	if rotErr != nil {
		return &RotationError{Path: s.path, Err: rotErr}
	}
	return nil
}

// rotate demotes the current file into the numbered history and opens a
// fresh current file. Called with s.mu held. On return s.file is valid
// unless the fresh open itself failed, in which case s.file is nil and
// the returned error describes the failure.
//
// History slots shift upward: path.1 is always the most recent rotated
// file. Anything at or beyond the retention bound is deleted first.
func (s *Store) rotate() error {
	var errs []error

	s.file.Close()
	s.file = nil

	// Delete the slot that would shift past the retention bound.
	oldest := s.slot(s.opts.MaxFiles)
	if err := os.Remove(oldest); err != nil && !os.IsNotExist(err) {
		errs = append(errs, err)
	}

	for n := s.opts.MaxFiles - 1; n >= 1; n-- {
		from := s.slot(n)
		if _, err := os.Stat(from); err != nil {
			continue
		}
		if err := os.Rename(from, s.slot(n+1)); err != nil {
			errs = append(errs, err)
		}
	}

	demoted := true
	if err := os.Rename(s.path, s.slot(1)); err != nil {
		// The current file could not be demoted. Keep appending to it so
		// the triggering record is not lost; the size bound is exceeded
		// until a later rotation succeeds.
		errs = append(errs, err)
		demoted = false
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		errs = append(errs, err)
		return errors.Join(errs...)
	}
	s.file = file

	if demoted {
		s.size = 0
	} else if info, err := file.Stat(); err == nil {
		s.size = info.Size()
	}

	if demoted && s.opts.OnRotate != nil {
		s.opts.OnRotate()
	}
	return errors.Join(errs...)
}

// slot returns the path of history slot n.
func (s *Store) slot(n int) string {
	return fmt.Sprintf("%s.%d", s.path, n)
}

// Size returns the bytes written to the current file so far.
func (s *Store) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Path returns the current file path.
func (s *Store) Path() string { return s.path }

// Close flushes and releases the current file. Closing a closed store is
// a no-op.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}

	// Sync failures must not leak the handle; Close still runs.
	_ = s.file.Sync()
	err := s.file.Close()
	s.file = nil
	return err
}
