// Package handlers contains the HTTP resource handlers. Every business
// handler runs the same gauntlet before touching storage: session claims,
// tenant guard, permission evaluation.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/festahub/backoffice/internal/apperr"
	"github.com/festahub/backoffice/internal/auth"
	"github.com/festahub/backoffice/internal/httpx"
	"github.com/festahub/backoffice/internal/rbac"
)

// guard extracts the session claims, enforces the tenant guard and
// evaluates the permission for the request's HTTP method. On failure the
// error response is already written and ok is false.
func guard(w http.ResponseWriter, r *http.Request, eval *rbac.Evaluator, module rbac.Module) (auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		httpx.Error(w, apperr.Unauthenticated())
		return auth.Claims{}, false
	}
	if err := rbac.RequireTenant(claims); err != nil {
		httpx.Error(w, err)
		return auth.Claims{}, false
	}
	if err := eval.RequireForMethod(r.Context(), claims, module, r.Method); err != nil {
		httpx.Error(w, err)
		return auth.Claims{}, false
	}
	return claims, true
}

// guardAction is guard with an explicit action instead of the method map.
// Used by nested routes whose method does not reflect the gated action
// (e.g. POST /eventos/{id}/equipe/recalcular gates events:update).
func guardAction(w http.ResponseWriter, r *http.Request, eval *rbac.Evaluator, module rbac.Module, action rbac.Action) (auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		httpx.Error(w, apperr.Unauthenticated())
		return auth.Claims{}, false
	}
	if err := rbac.RequireTenant(claims); err != nil {
		httpx.Error(w, err)
		return auth.Claims{}, false
	}
	if err := eval.Require(r.Context(), claims, module, action); err != nil {
		httpx.Error(w, err)
		return auth.Claims{}, false
	}
	return claims, true
}

func idParam(r *http.Request, key string) (uint, error) {
	raw := chi.URLParam(r, key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, apperr.BadRequest("identificador inválido: " + raw)
	}
	return uint(id), nil
}

func decodeJSON(r *http.Request, dst any) error {
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return apperr.BadRequest("JSON inválido")
	}
	return nil
}

// notFoundIfMissing maps gorm's record-not-found onto the API taxonomy so
// foreign-tenant rows are indistinguishable from absent ones.
func notFoundIfMissing(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(what)
	}
	return apperr.Internal(err)
}
