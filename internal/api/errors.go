package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/pettracker-core/internal/entity"
	"github.com/nerrad567/pettracker-core/internal/home"
	"github.com/nerrad567/pettracker-core/internal/schema"
	"github.com/nerrad567/pettracker-core/internal/service"
)

// Error represents a structured error response.
type Error struct {
	Status     int                `json:"status"`
	Code       string             `json:"code"`
	Message    string             `json:"message"`
	Violations []schema.Violation `json:"violations,omitempty"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeConflict     = "conflict"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
	ErrCodeConsistency  = "consistency_error"
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

// writeForbidden writes a 403 error response.
func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, http.StatusForbidden, ErrCodeForbidden, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps an error returned by the home manager to a response.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *schema.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, Error{
			Status:     http.StatusBadRequest,
			Code:       ErrCodeValidation,
			Message:    err.Error(),
			Violations: verr.Violations,
		})

	case isBadRequest(err):
		writeBadRequest(w, err.Error())

	case errors.Is(err, entity.ErrNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())

	case isConflict(err):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())

	case errors.Is(err, service.ErrMultipleOccupancy), errors.Is(err, service.ErrDefaultRoom):
		s.logger.Error("smart home is inconsistent",
			"path", r.URL.Path,
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeError(w, http.StatusInternalServerError, ErrCodeConsistency, err.Error())

	default:
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeInternalError(w, "internal server error")
	}
}

func isBadRequest(err error) bool {
	return errors.Is(err, schema.ErrValidation) ||
		errors.Is(err, entity.ErrInvalidFilter) ||
		errors.Is(err, entity.ErrInvalidType) ||
		errors.Is(err, home.ErrReservedName) ||
		errors.Is(err, home.ErrForeignRoom) ||
		errors.Is(err, service.ErrUnknownService)
}

func isConflict(err error) bool {
	return errors.Is(err, entity.ErrExists) ||
		errors.Is(err, entity.ErrReferenced) ||
		errors.Is(err, home.ErrDefaultRoomImmutable) ||
		errors.Is(err, home.ErrSeqNumberTaken)
}
