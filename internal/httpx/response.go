// Package httpx holds the JSON response helpers shared by every handler.
// All API responses use the {ok: bool, ...} envelope and are marked
// uncacheable.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/festahub/backoffice/internal/apperr"
)

// JSON writes payload merged into the {ok:true} envelope. payload must be a
// map or struct serializable by encoding/json; callers pass maps with an
// explicit "ok" key already set when they need ok:false by hand.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	body, err := json.Marshal(payload)
	if err != nil {
		// best-effort error response; avoid writing partial JSON
		http.Error(w, `{"ok":false,"error":"INTERNAL_ERROR","message":"encode error"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		_ = err
	}
}

// OK wraps data under the standard envelope: {"ok":true, <key>: data}.
func OK(w http.ResponseWriter, status int, key string, data any) {
	JSON(w, status, map[string]any{"ok": true, key: data})
}

// Envelope writes {"ok":true} merged with extra fields.
func Envelope(w http.ResponseWriter, status int, extra map[string]any) {
	out := map[string]any{"ok": true}
	for k, v := range extra {
		out[k] = v
	}
	JSON(w, status, out)
}

// Error converts err through the apperr taxonomy and writes the failure
// envelope. Internal causes stay out of the body.
func Error(w http.ResponseWriter, err error) {
	ae := apperr.From(err)
	JSON(w, ae.Status, map[string]any{"ok": false, "error": ae.Code, "message": ae.Message})
}
