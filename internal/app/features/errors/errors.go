// internal/app/features/errors/errors.go
package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	consentstore "github.com/dalemusser/mentorhub/internal/app/store/consent"
	groupstore "github.com/dalemusser/mentorhub/internal/app/store/groups"
	userstore "github.com/dalemusser/mentorhub/internal/app/store/users"
	"go.mongodb.org/mongo-driver/mongo"
)

// Error codes carried in API responses. Clients branch on Code, not on the
// human-readable message.
const (
	CodeInvalid      = "invalid"
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeUnavailable  = "unavailable"
	CodeInternal     = "internal"
)

type envelope struct {
	Error body `json:"error"`
}

type body struct {
	Code    string `json:"code"`
	Message string `json:"message"`

	// Retryable tells the client whether repeating the same call can
	// succeed (transient store failures) or not (validation, permission).
	Retryable bool `json:"retryable"`
}

// Render writes a JSON error response.
func Render(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Error: body{
		Code:      code,
		Message:   message,
		Retryable: code == CodeUnavailable || code == CodeInternal,
	}})
}

func Invalid(w http.ResponseWriter, message string) {
	Render(w, http.StatusBadRequest, CodeInvalid, message)
}

func Unauthorized(w http.ResponseWriter, message string) {
	if message == "" {
		message = "sign in required"
	}
	Render(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

func Forbidden(w http.ResponseWriter, message string) {
	if message == "" {
		message = "you do not have permission to do that"
	}
	Render(w, http.StatusForbidden, CodeForbidden, message)
}

func NotFound(w http.ResponseWriter, message string) {
	if message == "" {
		message = "not found"
	}
	Render(w, http.StatusNotFound, CodeNotFound, message)
}

func Conflict(w http.ResponseWriter, message string) {
	Render(w, http.StatusConflict, CodeConflict, message)
}

func Internal(w http.ResponseWriter) {
	Render(w, http.StatusInternalServerError, CodeInternal, "something went wrong")
}

// FromStore translates known store errors into API responses; anything
// unrecognized becomes a retryable internal error. Handlers log the error
// before calling this.
func FromStore(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		NotFound(w, "")
	case errors.Is(err, consentstore.ErrConflictingRequest):
		Conflict(w, err.Error())
	case errors.Is(err, consentstore.ErrAlreadyResolved):
		Conflict(w, err.Error())
	case errors.Is(err, groupstore.ErrGroupExists):
		Conflict(w, err.Error())
	case errors.Is(err, userstore.ErrDuplicateEmail):
		Conflict(w, err.Error())
	default:
		Internal(w)
	}
}
