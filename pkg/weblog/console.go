package weblog

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// DefaultConsoleConfig returns the console reporter's default options.
func DefaultConsoleConfig() map[string]any {
	return map[string]any{
		"logParams": false,
		"logBody":   false,
		"filter":    "",
	}
}

// ConsoleReporter renders one ephemeral log line per lifecycle event.
// An optional filter expression, evaluated against the finished request
// (method, path, status, elapsedMs, hasError), suppresses non-matching
// lines.
type ConsoleReporter struct {
	log *slog.Logger

	mu        sync.RWMutex
	logParams bool
	logBody   bool
	filterSrc string
	filter    *vm.Program
}

// NewConsoleReporter creates an unopened console reporter writing
// through log.
func NewConsoleReporter(log *slog.Logger) *ConsoleReporter {
	if log == nil {
		log = slog.Default()
	}
	return &ConsoleReporter{log: log}
}

// Open acquires nothing; the console reporter writes through the
// process logger.
func (c *ConsoleReporter) Open() error { return nil }

// Close releases nothing.
func (c *ConsoleReporter) Close() error { return nil }

// OnBegin logs the request entry at debug level.
func (c *ConsoleReporter) OnBegin(r *http.Request, m *Meta) error {
	c.log.Debug("request begin",
		"id", m.RequestID,
		"method", r.Method,
		"path", r.URL.Path,
	)
	return nil
}

// OnFinish logs one line for the finished request. A filter expression
// that evaluates false suppresses the line; a filter runtime failure is
// returned so the registry can surface it out-of-band.
func (c *ConsoleReporter) OnFinish(r *http.Request, m *Meta) error {
	c.mu.RLock()
	logParams := c.logParams
	logBody := c.logBody
	filter := c.filter
	c.mu.RUnlock()

	env := map[string]any{
		"method":    r.Method,
		"path":      r.URL.Path,
		"status":    m.StatusCode,
		"elapsedMs": m.Elapsed().Milliseconds(),
		"hasError":  m.Err != nil,
	}
	if filter != nil {
		out, err := expr.Run(filter, env)
		if err != nil {
			return fmt.Errorf("filter: %w", err)
		}
		if keep, ok := out.(bool); !ok || !keep {
			return nil
		}
	}

	args := []any{
		"id", m.RequestID,
		"method", r.Method,
		"path", r.URL.Path,
		"status", m.StatusCode,
		"elapsedMs", m.Elapsed().Milliseconds(),
	}
	if logParams {
		if q := redactQuery(r.URL.Query()); q != nil {
			args = append(args, "query", q)
		}
	}
	if logBody && len(m.ResponseBody) > 0 {
		args = append(args, "response", string(m.ResponseBody))
	}

	if m.Err != nil {
		args = append(args, "error", m.Err.Error())
		c.log.Warn("request failed", args...)
		return nil
	}
	c.log.Info("request finished", args...)
	return nil
}

// Config returns the live configuration.
func (c *ConsoleReporter) Config() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return map[string]any{
		"logParams": c.logParams,
		"logBody":   c.logBody,
		"filter":    c.filterSrc,
	}
}

// SetConfig validates every field before applying any of them. The
// filter expression is compiled here, so an invalid expression is
// rejected without touching the previous one.
func (c *ConsoleReporter) SetConfig(cfg map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	staged := struct {
		logParams, logBody *bool
		filterSrc          *string
		filter             *vm.Program
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
		case "filter":
			s, err := configString(field, v)
			if err != nil {
				return err
			}
			staged.filterSrc = &s
			if s != "" {
				prog, err := expr.Compile(s, expr.Env(map[string]any{}), expr.AsBool())
				if err != nil {
					return &ConfigError{Field: field, Message: err.Error()}
				}
				staged.filter = prog
			}
		default:
			return unknownField(field)
		}
	}

	if staged.logParams != nil {
		c.logParams = *staged.logParams
	}
	if staged.logBody != nil {
		c.logBody = *staged.logBody
	}
	if staged.filterSrc != nil {
		c.filterSrc = *staged.filterSrc
		c.filter = staged.filter
	}
	return nil
}

var _ Reporter = (*ConsoleReporter)(nil)
