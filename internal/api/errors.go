package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/meshsim/internal/device"
	"github.com/nerrad567/meshsim/internal/endpoint"
	"github.com/nerrad567/meshsim/internal/mesh"
	"github.com/nerrad567/meshsim/internal/message"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest    = "bad_request"
	ErrCodeUnauthorized  = "unauthorized"
	ErrCodeNotFound      = "not_found"
	ErrCodeConflict      = "conflict"
	ErrCodeInternal      = "internal_error"
	ErrCodeUnavailable   = "service_unavailable"
	ErrCodeBadGateway    = "bad_gateway"
	ErrCodeUnprocessable = "unprocessable"
	ErrCodeNotAllowed    = "method_not_allowed"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeUnauthorized writes a 401 error response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeUnavailable writes a 503 error response for an unconfigured backend.
func writeUnavailable(w http.ResponseWriter, message string) {
	writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, message)
}

// writeDomainError maps registry, mesh and device errors to HTTP responses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		writeNotFound(w, err.Error())
	case errors.Is(err, device.ErrNotFinalized),
		errors.Is(err, device.ErrAlreadyFinalized),
		errors.Is(err, device.ErrNotAMember),
		errors.Is(err, mesh.ErrInvalidTransition):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, device.ErrNoExecutor):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeUnprocessable, err.Error())
	case errors.Is(err, device.ErrNoEndpoint),
		errors.Is(err, endpoint.ErrSendFailed):
		writeError(w, http.StatusBadGateway, ErrCodeBadGateway, err.Error())
	case errors.Is(err, device.ErrInvalidMode),
		errors.Is(err, message.ErrUnknownType),
		errors.Is(err, message.ErrInvalidPayload):
		writeBadRequest(w, err.Error())
	default:
		writeInternalError(w, err.Error())
	}
}
