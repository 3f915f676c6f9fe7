package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Strob0t/docmesh/internal/domain"
)

// DefaultBodyLimit caps JSON request bodies.
const DefaultBodyLimit = 1 << 20

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ReadJSON decodes a JSON request body with a size limit. On failure it
// writes a 400 (or 413) response and returns false.
func ReadJSON[T any](w http.ResponseWriter, r *http.Request, bodyLimit int64) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "request body too large", Code: domain.CodeMalformed})
		} else {
			WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: domain.CodeMalformed})
		}
		return v, false
	}
	return v, true
}

// WriteJSON writes data as a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

// WriteError writes an ErrorResponse without a code.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// WriteDomainError maps a domain error to its HTTP status and wire code.
func WriteDomainError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		WriteJSON(w, status, ErrorResponse{Error: "internal server error", Code: domain.CodeUpstreamFailure})
		return
	}
	WriteJSON(w, status, ErrorResponse{Error: err.Error(), Code: domain.Code(err)})
}

// StatusFor returns the HTTP status for a domain error.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrMalformed), errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidQuery), errors.Is(err, domain.ErrUnknownSkill):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrUnreachable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
