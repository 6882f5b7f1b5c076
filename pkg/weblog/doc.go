// Package weblog instruments HTTP handlers and fans request lifecycle
// events out to pluggable reporters.
//
// The Interceptor wraps a handler without changing its observable
// behavior: it stamps a Meta with start/end times, status, captured
// bodies and any handler error, and invokes the Registry's begin fan-out
// before the handler and its finish fan-out after. Both fan-outs complete
// before the request does; reporter failures never reach the request path.
//
// Reporters implement a small capability set (Open, Close, OnBegin,
// OnFinish, Config, SetConfig) and are registered by id with a factory
// and default configuration. The Registry drives their lifecycle:
// registered reporters are available, Enable constructs and opens an
// instance, Disable removes it from the dispatch set, waits out its
// in-flight callbacks and closes it. Enable, Disable and SetConfig are
// safe to call while requests are in flight.
//
// Three reporters ship with the package: a console reporter that logs one
// structured line per request (optionally filtered by an expression), a
// file reporter that persists begin/finish records through a rotating
// logstore.Store, and an events reporter that derives domain events from
// a fixed vocabulary of operations. Persisted records redact the values
// of fields named "token" and "passphrase" wherever they appear.
package weblog
