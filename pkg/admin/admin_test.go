package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bweblog/bweblog/pkg/logging"
	"github.com/bweblog/bweblog/pkg/weblog"
)

func newTestMux(t *testing.T) (*http.ServeMux, *weblog.Registry) {
	t.Helper()
	log := logging.Nop()

	reg := weblog.NewRegistry(log)
	require.NoError(t, reg.Register("console", func() weblog.Reporter {
		return weblog.NewConsoleReporter(log)
	}, weblog.DefaultConsoleConfig()))

	path := filepath.Join(t.TempDir(), "http.log")
	require.NoError(t, reg.Register("file", func() weblog.Reporter {
		return weblog.NewFileReporter(path)
	}, weblog.DefaultFileConfig()))

	t.Cleanup(func() { reg.CloseAll() })

	mux := http.NewServeMux()
	New(reg, log).Routes(mux)
	return mux, reg
}

func do(t *testing.T, mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func TestListReporters(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodGet, "/bweb-log", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	status := decode[StatusResponse](t, rec)
	assert.Equal(t, map[string]bool{"console": false, "file": false}, status.Reporters)
}

func TestToggleLifecycle(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodPut, "/bweb-log", `{"id":"console","enabled":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[StatusResponse](t, rec)
	assert.True(t, status.Reporters["console"])
	assert.False(t, status.Reporters["file"])

	// Enabling an already-enabled reporter is rejected.
	rec = do(t, mux, http.MethodPut, "/bweb-log", `{"id":"console","enabled":true}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrCodeAlreadyEnabled, decode[ErrorResponse](t, rec).Error)

	rec = do(t, mux, http.MethodPut, "/bweb-log", `{"id":"console","enabled":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[StatusResponse](t, rec).Reporters["console"])

	rec = do(t, mux, http.MethodPut, "/bweb-log", `{"id":"console","enabled":false}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrCodeNotEnabled, decode[ErrorResponse](t, rec).Error)
}

func TestToggleUnknownReporter(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodPut, "/bweb-log", `{"id":"nope","enabled":true}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrCodeReporterNotFound, decode[ErrorResponse](t, rec).Error)
}

func TestToggleInvalidBody(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodPut, "/bweb-log", `{not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrCodeInvalidJSON, decode[ErrorResponse](t, rec).Error)

	rec = do(t, mux, http.MethodPut, "/bweb-log", `{"id":"console"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrCodeInvalidJSON, decode[ErrorResponse](t, rec).Error)

	rec = do(t, mux, http.MethodPut, "/bweb-log", `{"enabled":true}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrCodeInvalidJSON, decode[ErrorResponse](t, rec).Error)
}

func TestConfigBeforeEnable(t *testing.T) {
	mux, _ := newTestMux(t)

	// A known but disabled reporter has no live configuration to read.
	rec := do(t, mux, http.MethodGet, "/bweb-log/file", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrCodeNotEnabled, decode[ErrorResponse](t, rec).Error)

	rec = do(t, mux, http.MethodPut, "/bweb-log/file", `{"logBody":false}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrCodeNotEnabled, decode[ErrorResponse](t, rec).Error)
}

func TestConfigUnknownReporter(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodGet, "/bweb-log/nope", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrCodeReporterNotFound, decode[ErrorResponse](t, rec).Error)
}

func TestConfigRoundTrip(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodPut, "/bweb-log", `{"id":"file","enabled":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, mux, http.MethodGet, "/bweb-log/file", "")
	require.Equal(t, http.StatusOK, rec.Code)
	opts := decode[OptionsResponse](t, rec).Options
	assert.Equal(t, true, opts["logParams"])
	assert.Equal(t, true, opts["logBody"])

	rec = do(t, mux, http.MethodPut, "/bweb-log/file", `{"logBody":false,"maxBodyBytes":512}`)
	require.Equal(t, http.StatusOK, rec.Code)
	opts = decode[OptionsResponse](t, rec).Options
	assert.Equal(t, false, opts["logBody"])
	assert.Equal(t, float64(512), opts["maxBodyBytes"])

	// The update is live, not just echoed.
	rec = do(t, mux, http.MethodGet, "/bweb-log/file", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode[OptionsResponse](t, rec).Options["logBody"])
}

func TestConfigRejected(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodPut, "/bweb-log", `{"id":"file","enabled":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, mux, http.MethodPut, "/bweb-log/file", `{"bogus":1}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrCodeConfig, decode[ErrorResponse](t, rec).Error)

	// Store bounds cannot change while the reporter is enabled.
	rec = do(t, mux, http.MethodPut, "/bweb-log/file", `{"maxFileSize":123}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrCodeConfig, decode[ErrorResponse](t, rec).Error)

	rec = do(t, mux, http.MethodPut, "/bweb-log/file", `[1,2,3]`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrCodeInvalidJSON, decode[ErrorResponse](t, rec).Error)
}

func TestEnableSurfacesResourceError(t *testing.T) {
	log := logging.Nop()
	reg := weblog.NewRegistry(log)

	// Point the reporter under a regular file so directory creation fails.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	require.NoError(t, reg.Register("file", func() weblog.Reporter {
		return weblog.NewFileReporter(filepath.Join(blocker, "sub", "http.log"))
	}, weblog.DefaultFileConfig()))

	mux := http.NewServeMux()
	New(reg, log).Routes(mux)

	rec := do(t, mux, http.MethodPut, "/bweb-log", `{"id":"file","enabled":true}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrCodeResource, decode[ErrorResponse](t, rec).Error)

	// The reporter stays available for a later attempt.
	rec = do(t, mux, http.MethodGet, "/bweb-log", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[StatusResponse](t, rec).Reporters["file"])
}

func TestHealth(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := do(t, mux, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[HealthResponse](t, rec)
	assert.Equal(t, "ok", health.Status)
	assert.NotEmpty(t, health.Uptime)
}
