package cli

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/bweblog/bweblog/pkg/weblog"
)

// registerDemoRoutes mounts a small instrumented surface so the daemon
// exercises the pipeline end to end. Every route goes through the
// interceptor; the management endpoints live on the same mux.
func registerDemoRoutes(mux *http.ServeMux, i *weblog.Interceptor) {
	mux.Handle("POST /echo", i.WrapFunc(handleEcho))
	mux.Handle("GET /boom", i.WrapFunc(handleBoom))
	mux.Handle("POST /wallet", i.WrapFunc(handleWalletCreate))
	mux.Handle("POST /wallet/{id}/send", i.WrapFunc(handleWalletSend))
}

// handleEcho answers with the JSON body it received.
func handleEcho(w http.ResponseWriter, r *http.Request) error {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return weblog.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	return writeDemoJSON(w, http.StatusOK, body)
}

// handleBoom always fails, demonstrating the error path through the
// finish fan-out.
func handleBoom(w http.ResponseWriter, r *http.Request) error {
	return weblog.NewHTTPError(http.StatusNotFound, "nothing here")
}

// handleWalletCreate acknowledges a wallet creation request.
func handleWalletCreate(w http.ResponseWriter, r *http.Request) error {
	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.ID == "" {
		return weblog.NewHTTPError(http.StatusBadRequest, "body must carry a wallet id")
	}
	return writeDemoJSON(w, http.StatusOK, map[string]string{"id": body.ID})
}

// handleWalletSend acknowledges a send request with a synthetic txid.
func handleWalletSend(w http.ResponseWriter, r *http.Request) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	var req struct {
		Address string   `json:"address"`
		Value   *float64 `json:"value"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.Address == "" || req.Value == nil {
		return weblog.NewHTTPError(http.StatusBadRequest, "body must carry address and value")
	}

	sum := sha256.Sum256(append(body, []byte(r.PathValue("id"))...))
	return writeDemoJSON(w, http.StatusOK, map[string]string{
		"wallet": r.PathValue("id"),
		"txid":   hex.EncodeToString(sum[:]),
	})
}

func writeDemoJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}
