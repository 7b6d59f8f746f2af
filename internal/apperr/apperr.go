// Package apperr defines the error taxonomy every handler converts failures
// into before writing a response. Codes are stable identifiers for API
// clients; the HTTP status is derived from the code, never leaked stack
// traces.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeUnauthenticated   = "UNAUTHENTICATED"
	CodeInvalidSession    = "INVALID_SESSION"
	CodeBadRequest        = "BAD_REQUEST"
	CodeValidation        = "VALIDATION_ERROR"
	CodeForbidden         = "FORBIDDEN"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeInvalidState      = "INVALID_STATE"
	CodeRBACConfig        = "RBAC_CONFIG"
	CodeMigrationRequired = "MIGRATION_REQUIRED"
	CodeInternal          = "INTERNAL_ERROR"
)

// Error carries an API error code, the HTTP status it maps to, and a
// user-safe message. The wrapped cause is for logs only.
type Error struct {
	Code    string
	Status  int
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func Unauthenticated() *Error {
	return &Error{Code: CodeUnauthenticated, Status: http.StatusUnauthorized, Message: "autenticação necessária"}
}

func InvalidSession() *Error {
	return &Error{Code: CodeInvalidSession, Status: http.StatusBadRequest, Message: "sessão sem empresa válida"}
}

func Forbidden() *Error {
	return &Error{Code: CodeForbidden, Status: http.StatusForbidden, Message: "permissão negada"}
}

func BadRequest(msg string) *Error {
	return &Error{Code: CodeBadRequest, Status: http.StatusBadRequest, Message: msg}
}

func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Status: http.StatusUnprocessableEntity, Message: msg}
}

func NotFound(what string) *Error {
	return &Error{Code: CodeNotFound, Status: http.StatusNotFound, Message: what + " não encontrado"}
}

func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Status: http.StatusConflict, Message: msg}
}

func InvalidState(msg string) *Error {
	return &Error{Code: CodeInvalidState, Status: http.StatusConflict, Message: msg}
}

func RBACConfig(msg string) *Error {
	return &Error{Code: CodeRBACConfig, Status: http.StatusInternalServerError, Message: msg}
}

func MigrationRequired() *Error {
	return &Error{Code: CodeMigrationRequired, Status: http.StatusInternalServerError, Message: "esquema do banco desatualizado"}
}

func Internal(cause error) *Error {
	return &Error{Code: CodeInternal, Status: http.StatusInternalServerError, Message: "erro interno", cause: cause}
}

// From normalizes any error into an *Error. Unknown errors become
// INTERNAL_ERROR so nothing unexpected ever reaches a client verbatim.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal(err)
}
