package weblog

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func openEventsReporter(t *testing.T) (*EventsReporter, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.log")
	rep := NewEventsReporter(path)
	if err := rep.Open(); err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { rep.Close() })
	return rep, path
}

func eventMeta(reqBody, respBody string, status int, err error) *Meta {
	m := newMeta()
	if reqBody != "" {
		m.RequestBody = []byte(reqBody)
	}
	if respBody != "" {
		m.ResponseBody = []byte(respBody)
	}
	m.finish(status, err)
	return m
}

func TestEventsReporter_WalletSend(t *testing.T) {
	rep, path := openEventsReporter(t)

	r := httptest.NewRequest(http.MethodPost, "/wallet/w1/send", nil)
	m := eventMeta(`{"address":"bc1qxyz","value":12345}`, `{"txid":"deadbeef"}`, http.StatusOK, nil)
	if err := rep.OnFinish(r, m); err != nil {
		t.Fatalf("on finish: %v", err)
	}

	lines := readLogLines(t, path)
	if len(lines) != 1 {
		t.Fatalf("expected 1 event, got %d", len(lines))
	}
	ev := lines[0]
	if ev["type"] != "event" || ev["op"] != "wallet.send" {
		t.Errorf("unexpected event identity: %v", ev)
	}
	params := ev["params"].(map[string]any)
	if params["id"] != "w1" {
		t.Errorf("expected path parameter id=w1, got %v", params)
	}
	fields := ev["fields"].(map[string]any)
	if fields["address"] != "bc1qxyz" {
		t.Errorf("expected extracted address, got %v", fields)
	}
	if fields["value"] != float64(12345) {
		t.Errorf("expected extracted value, got %v", fields)
	}
	if ev["statusCode"] != float64(http.StatusOK) {
		t.Errorf("expected statusCode 200, got %v", ev["statusCode"])
	}
	outcome, _ := ev["outcome"].(string)
	if len(outcome) != 16 {
		t.Errorf("expected 16-char outcome hash, got %q", outcome)
	}
}

func TestEventsReporter_WalletCreate(t *testing.T) {
	rep, path := openEventsReporter(t)

	r := httptest.NewRequest(http.MethodPost, "/wallet", nil)
	m := eventMeta(`{"id":"w9"}`, `{"id":"w9"}`, http.StatusCreated, nil)
	if err := rep.OnFinish(r, m); err != nil {
		t.Fatalf("on finish: %v", err)
	}

	lines := readLogLines(t, path)
	if len(lines) != 1 {
		t.Fatalf("expected 1 event, got %d", len(lines))
	}
	if lines[0]["op"] != "wallet.create" {
		t.Errorf("unexpected op: %v", lines[0]["op"])
	}
	if lines[0]["fields"].(map[string]any)["id"] != "w9" {
		t.Errorf("unexpected fields: %v", lines[0]["fields"])
	}
}

func TestEventsReporter_SoftFailure(t *testing.T) {
	cases := []struct {
		name   string
		method string
		target string
		body   string
	}{
		{"missing field", http.MethodPost, "/wallet/w1/send", `{"address":"bc1qxyz"}`},
		{"mistyped field", http.MethodPost, "/wallet/w1/send", `{"address":"bc1qxyz","value":"12345"}`},
		{"unparsable body", http.MethodPost, "/wallet/w1/send", `not json`},
		{"empty body", http.MethodPost, "/wallet/w1/send", ""},
		{"wrong method", http.MethodGet, "/wallet", `{"id":"w1"}`},
		{"unknown path", http.MethodPost, "/transfer", `{"id":"w1"}`},
		{"extra segment", http.MethodPost, "/wallet/w1/send/now", `{"address":"a","value":1}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rep, path := openEventsReporter(t)

			r := httptest.NewRequest(tc.method, tc.target, nil)
			m := eventMeta(tc.body, `{"ok":true}`, http.StatusOK, nil)
			if err := rep.OnFinish(r, m); err != nil {
				t.Fatalf("soft failure must not surface an error, got %v", err)
			}

			if lines := readLogLines(t, path); len(lines) != 0 {
				t.Errorf("expected no event, got %v", lines)
			}
		})
	}
}

func TestEventsReporter_ErroredRequestHasNoOutcome(t *testing.T) {
	rep, path := openEventsReporter(t)

	r := httptest.NewRequest(http.MethodPost, "/broadcast", nil)
	m := eventMeta(`{"tx":"0100ff"}`, "", http.StatusBadGateway, errors.New("node unreachable"))
	if err := rep.OnFinish(r, m); err != nil {
		t.Fatalf("on finish: %v", err)
	}

	lines := readLogLines(t, path)
	if len(lines) != 1 {
		t.Fatalf("expected 1 event, got %d", len(lines))
	}
	ev := lines[0]
	if ev["op"] != "tx.broadcast" {
		t.Errorf("unexpected op: %v", ev["op"])
	}
	if ev["statusCode"] != float64(http.StatusBadGateway) {
		t.Errorf("expected statusCode 502, got %v", ev["statusCode"])
	}
	if _, present := ev["outcome"]; present {
		t.Error("errored request must not carry an outcome hash")
	}
}

func TestEventsReporter_OutcomeIdentifiesResponse(t *testing.T) {
	rep, path := openEventsReporter(t)

	r := httptest.NewRequest(http.MethodPost, "/wallet", nil)
	m1 := eventMeta(`{"id":"w1"}`, `{"id":"w1"}`, http.StatusOK, nil)
	m2 := eventMeta(`{"id":"w1"}`, `{"id":"w2"}`, http.StatusOK, nil)
	if err := rep.OnFinish(r, m1); err != nil {
		t.Fatal(err)
	}
	if err := rep.OnFinish(r, m2); err != nil {
		t.Fatal(err)
	}

	lines := readLogLines(t, path)
	if len(lines) != 2 {
		t.Fatalf("expected 2 events, got %d", len(lines))
	}
	if lines[0]["outcome"] == lines[1]["outcome"] {
		t.Error("different responses must yield different outcome hashes")
	}

	// Same response, same hash.
	m3 := eventMeta(`{"id":"w1"}`, `{"id":"w1"}`, http.StatusOK, nil)
	if err := rep.OnFinish(r, m3); err != nil {
		t.Fatal(err)
	}
	lines = readLogLines(t, path)
	if lines[2]["outcome"] != lines[0]["outcome"] {
		t.Error("identical responses must yield the same outcome hash")
	}
}

func TestEventsReporter_StoreBoundsLockedWhileEnabled(t *testing.T) {
	rep, _ := openEventsReporter(t)

	var cfgErr *ConfigError
	if err := rep.SetConfig(map[string]any{"maxFiles": 9}); !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %v", err)
	}
	if err := rep.SetConfig(map[string]any{"bogus": 1}); !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError for unknown field, got %v", err)
	}
}

func TestMatchSegments(t *testing.T) {
	params, ok := matchSegments(splitPath("/wallet/{id}/send"), splitPath("/wallet/w42/send"))
	if !ok || params["id"] != "w42" {
		t.Errorf("expected capture id=w42, got %v ok=%v", params, ok)
	}
	if _, ok := matchSegments(splitPath("/wallet"), splitPath("/wallet/w1")); ok {
		t.Error("length mismatch must not match")
	}
	if _, ok := matchSegments(splitPath("/wallet"), splitPath("/broadcast")); ok {
		t.Error("literal mismatch must not match")
	}
}
