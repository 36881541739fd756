package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vitolahq/vitola/internal/access"
	"github.com/vitolahq/vitola/internal/appctx"
	"github.com/vitolahq/vitola/internal/identity"
	"github.com/vitolahq/vitola/internal/publiclink"
	"github.com/vitolahq/vitola/internal/sharing"
	"github.com/vitolahq/vitola/internal/store"
	"github.com/vitolahq/vitola/internal/transfer"
	"github.com/vitolahq/vitola/internal/validate"
)

// Deterministic reason codes for stable error classification. These
// stay fixed across versions so clients can branch on them.
const (
	ReasonUnauthorized   = "unauthorized"
	ReasonForbidden      = "forbidden"
	ReasonNotFound       = "not_found"
	ReasonInvalidRequest = "invalid_request"
	ReasonConflict       = "conflict"
	ReasonRateLimited    = "rate_limited"
	ReasonTransferFailed = "transfer_failed"
	ReasonInternalError  = "internal_error"
)

// ErrorEnvelope is the standard error response format.
type ErrorEnvelope struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error information.
type ErrorDetail struct {
	Code       string `json:"code"`        // HTTP status text (e.g., "forbidden")
	ReasonCode string `json:"reason_code"` // Deterministic reason code
	Message    string `json:"message"`     // Human-readable message
}

// WriteError writes a standardized JSON error response.
func WriteError(w http.ResponseWriter, statusCode int, reasonCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	envelope := ErrorEnvelope{
		Error: ErrorDetail{
			Code:       http.StatusText(statusCode),
			ReasonCode: reasonCode,
			Message:    message,
		},
	}

	json.NewEncoder(w).Encode(envelope)
}

// WriteUnauthorized writes a 401 Unauthorized error.
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, ReasonUnauthorized, message)
}

// WriteForbidden writes a 403 Forbidden error.
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, ReasonForbidden, message)
}

// WriteNotFound writes a 404 Not Found error.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, ReasonNotFound, message)
}

// WriteBadRequest writes a 400 Bad Request error.
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, ReasonInvalidRequest, message)
}

// WriteConflict writes a 409 Conflict error.
func WriteConflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, ReasonConflict, message)
}

// WriteTooManyRequests writes a 429 Too Many Requests error.
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, ReasonRateLimited, message)
}

// WriteInternalError writes a 500 Internal Server Error.
// Be careful not to leak sensitive information in the message.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, ReasonInternalError, message)
}

// WriteServiceError translates a domain error into its HTTP response.
//
// Absent resources and no-relationship rejections share one 404 body,
// so probing for container ids reveals nothing. A 403 only appears when
// the actor is known to hold SOME level on the container.
func WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *validate.Error
	switch {
	case errors.As(err, &verr):
		WriteBadRequest(w, verr.Error())
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, access.ErrNoAccess),
		errors.Is(err, publiclink.ErrInvalidToken):
		WriteNotFound(w, "not found")
	case errors.Is(err, access.ErrInsufficient):
		WriteForbidden(w, "insufficient permission")
	case errors.Is(err, store.ErrAlreadyExists):
		WriteConflict(w, "username or email already in use")
	case errors.Is(err, identity.ErrInvalidCredentials):
		WriteUnauthorized(w, "invalid credentials")
	case errors.Is(err, identity.ErrUserDisabled):
		WriteUnauthorized(w, "account is disabled")
	case errors.Is(err, identity.ErrSessionNotFound),
		errors.Is(err, identity.ErrSessionExpired):
		WriteUnauthorized(w, "session expired or invalid")
	case errors.Is(err, identity.ErrSelfChange),
		errors.Is(err, identity.ErrLastAdmin),
		errors.Is(err, identity.ErrPasswordTooLong),
		errors.Is(err, sharing.ErrGranteeNotFound),
		errors.Is(err, sharing.ErrSelfShare),
		errors.Is(err, sharing.ErrOwnerShare),
		errors.Is(err, transfer.ErrSameUser):
		WriteBadRequest(w, err.Error())
	case errors.Is(err, transfer.ErrTransferFailed):
		appctx.GetLogger(r.Context()).Error("transfer failed", "error", err)
		WriteError(w, http.StatusInternalServerError, ReasonTransferFailed, "transfer failed")
	default:
		appctx.GetLogger(r.Context()).Error("request failed", "error", err)
		WriteInternalError(w, "internal error")
	}
}
