package weblog

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
)

// descriptor is a registered reporter: its factory plus default
// configuration.
type descriptor struct {
	factory  Factory
	defaults map[string]any
}

// enabledEntry is an opened, running reporter instance. The WaitGroup
// counts its in-flight callbacks so Disable can drain them before Close.
type enabledEntry struct {
	id  string
	rep Reporter
	wg  sync.WaitGroup
}

// Registry owns reporter lifecycle and fan-out. Per id the state machine
// is available -> enabled -> available; Register adds ids, Enable
// constructs, configures and opens an instance, Disable removes it from
// the dispatch set, waits for its in-flight callbacks and closes it.
//
// Fan-out dispatches concurrently to a snapshot of the enabled set taken
// at dispatch time, so a fan-out either sees a reporter or does not,
// never a half-configured instance. One reporter's failure cannot stop
// delivery to the others or reach the request path; failures go to the
// out-of-band error handler, tagged with the reporter id.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]descriptor
	enabled     map[string]*enabledEntry

	onError func(*ReporterError)
	log     *slog.Logger
}

// NewRegistry creates an empty registry. Fan-out failures are logged
// through log until SetErrorHandler installs something else.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	r := &Registry{
		descriptors: make(map[string]descriptor),
		enabled:     make(map[string]*enabledEntry),
		log:         log,
	}
	r.onError = func(err *ReporterError) {
		r.log.Error("reporter error", "reporter", err.ID, "error", err.Err)
	}
	return r
}

// SetErrorHandler installs the out-of-band sink for fan-out failures.
// It is invoked from fan-out goroutines and must be safe for concurrent
// use.
func (r *Registry) SetErrorHandler(fn func(*ReporterError)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fn != nil {
		r.onError = fn
	}
}

// Register adds a reporter id with its factory and default configuration.
// Registering an id twice fails with ErrDuplicateID.
func (r *Registry) Register(id string, factory Factory, defaults map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.descriptors[id]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateID, id)
	}
	r.descriptors[id] = descriptor{factory: factory, defaults: defaults}
	return nil
}

// Enable constructs an instance for id, applies the defaults overlaid
// with overrides, opens it and adds it to the dispatch set. On any
// failure the reporter stays available: configuration errors surface as
// *ConfigError, open failures as *ResourceError.
func (r *Registry) Enable(id string, overrides map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	desc, ok := r.descriptors[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownReporter, id)
	}
	if _, ok := r.enabled[id]; ok {
		return fmt.Errorf("%w: %q", ErrAlreadyEnabled, id)
	}

	rep := desc.factory()

	cfg := make(map[string]any, len(desc.defaults)+len(overrides))
	for k, v := range desc.defaults {
		cfg[k] = v
	}
	for k, v := range overrides {
		cfg[k] = v
	}
	if len(cfg) > 0 {
		if err := rep.SetConfig(cfg); err != nil {
			return err
		}
	}

	if err := rep.Open(); err != nil {
		// Close releases whatever Open acquired before failing.
		_ = rep.Close()
		return &ResourceError{ID: id, Err: err}
	}

	r.enabled[id] = &enabledEntry{id: id, rep: rep}
	return nil
}

// Disable removes id from the dispatch set, waits for the instance's
// in-flight callbacks to drain, then closes and discards it. In-flight
// fan-outs that already hold the instance complete against it; no
// callback ever observes a closed reporter.
func (r *Registry) Disable(id string) error {
	r.mu.Lock()
	entry, ok := r.enabled[id]
	if !ok {
		r.mu.Unlock()
		if _, known := r.descriptors[id]; !known {
			return fmt.Errorf("%w: %q", ErrUnknownReporter, id)
		}
		return fmt.Errorf("%w: %q", ErrNotEnabled, id)
	}
	delete(r.enabled, id)
	r.mu.Unlock()

	entry.wg.Wait()
	if err := entry.rep.Close(); err != nil {
		return fmt.Errorf("weblog: close reporter %q: %w", id, err)
	}
	return nil
}

// Enabled returns the live instance for id. Used by the management API
// for configuration reads and updates.
func (r *Registry) Enabled(id string) (Reporter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.enabled[id]; ok {
		return entry.rep, nil
	}
	if _, known := r.descriptors[id]; !known {
		return nil, fmt.Errorf("%w: %q", ErrUnknownReporter, id)
	}
	return nil, fmt.Errorf("%w: %q", ErrNotEnabled, id)
}

// Known reports whether id has been registered.
func (r *Registry) Known(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.descriptors[id]
	return ok
}

// Status returns every registered id mapped to whether it is enabled.
func (r *Registry) Status() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := make(map[string]bool, len(r.descriptors))
	for id := range r.descriptors {
		_, on := r.enabled[id]
		status[id] = on
	}
	return status
}

// IDs returns the registered reporter ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.descriptors))
	for id := range r.descriptors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// FanOutBegin dispatches the begin event to every enabled reporter and
// waits for all of them.
func (r *Registry) FanOutBegin(req *http.Request, m *Meta) {
	r.fanOut(req, m, func(rep Reporter, req *http.Request, m *Meta) error {
		return rep.OnBegin(req, m)
	})
}

// FanOutFinish dispatches the finish event to every enabled reporter and
// waits for all of them.
func (r *Registry) FanOutFinish(req *http.Request, m *Meta) {
	r.fanOut(req, m, func(rep Reporter, req *http.Request, m *Meta) error {
		return rep.OnFinish(req, m)
	})
}

// fanOut snapshots the enabled set and dispatches call to each instance
// concurrently. Each instance's in-flight counter is raised while the
// snapshot lock is held, so a concurrent Disable cannot close an
// instance a dispatch already holds. Panics and errors are isolated per
// reporter.
func (r *Registry) fanOut(req *http.Request, m *Meta, call func(Reporter, *http.Request, *Meta) error) {
	r.mu.RLock()
	entries := make([]*enabledEntry, 0, len(r.enabled))
	for _, entry := range r.enabled {
		entry.wg.Add(1)
		entries = append(entries, entry)
	}
	onError := r.onError
	r.mu.RUnlock()

	if len(entries) == 0 {
		return
	}

	var pending sync.WaitGroup
	pending.Add(len(entries))
	for _, entry := range entries {
		go func(entry *enabledEntry) {
			defer pending.Done()
			defer entry.wg.Done()
			defer func() {
				if v := recover(); v != nil {
					onError(&ReporterError{ID: entry.id, Err: fmt.Errorf("panic: %v", v)})
				}
			}()
			if err := call(entry.rep, req, m); err != nil {
				onError(&ReporterError{ID: entry.id, Err: err})
			}
		}(entry)
	}
	pending.Wait()
}

// CloseAll disables every enabled reporter. Used at shutdown.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	entries := make([]*enabledEntry, 0, len(r.enabled))
	for id, entry := range r.enabled {
		entries = append(entries, entry)
		delete(r.enabled, id)
	}
	r.mu.Unlock()

	var firstErr error
	for _, entry := range entries {
		entry.wg.Wait()
		if err := entry.rep.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("weblog: close reporter %q: %w", entry.id, err)
		}
	}
	return firstErr
}
