package http

import (
	"encoding/json"
	"io"
	"net/http"

	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"

	"normalz-service/internal/domain"
)

// Error codes returned in the "code" field of error bodies.
const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeInvalidOptions   = "INVALID_OPTIONS"
	ErrCodeUnknownOption    = "UNKNOWN_OPTION"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodePoolEmpty        = "POOL_EMPTY"
	ErrCodeContention       = "CONTENTION"
	ErrCodeNotAuthenticated = "NOT_AUTHENTICATED"
	ErrCodeInternalServer   = "INTERNAL_SERVER_ERROR"
)

// APIError is an error with an HTTP status and a stable code.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	return e.Message
}

func BadRequest(message string) *APIError {
	return &APIError{Status: http.StatusBadRequest, Code: ErrCodeBadRequest, Message: message}
}

// ToAPIError maps domain errors onto HTTP statuses. Unknown errors are logged and
// reported as a terse 500.
func ToAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return &APIError{Status: http.StatusBadRequest, Code: ErrCodeBadRequest, Message: err.Error()}
	case errors.Is(err, domain.ErrInvalidOptions):
		return &APIError{Status: http.StatusBadRequest, Code: ErrCodeInvalidOptions, Message: err.Error()}
	case errors.Is(err, domain.ErrUnknownOption):
		return &APIError{Status: http.StatusBadRequest, Code: ErrCodeUnknownOption, Message: err.Error()}
	case errors.Is(err, domain.ErrNotFound):
		return &APIError{Status: http.StatusNotFound, Code: ErrCodeNotFound, Message: err.Error()}
	case errors.Is(err, domain.ErrPoolEmpty):
		return &APIError{Status: http.StatusServiceUnavailable, Code: ErrCodePoolEmpty, Message: err.Error()}
	case errors.Is(err, domain.ErrContention):
		return &APIError{Status: http.StatusServiceUnavailable, Code: ErrCodeContention, Message: err.Error()}
	case errors.Is(err, domain.ErrNotAuthenticated):
		return &APIError{Status: http.StatusServiceUnavailable, Code: ErrCodeNotAuthenticated, Message: err.Error()}
	}

	log.WithError(err).WithField("details", errors.GetDetails(err)).Error("internal error")
	return &APIError{Status: http.StatusInternalServerError, Code: ErrCodeInternalServer, Message: "Internal server error"}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.WithError(err).Warn("write response")
		}
	}
}

func respondError(w http.ResponseWriter, err error) {
	apiErr := ToAPIError(err)
	respondJSON(w, apiErr.Status, apiErr)
}

func decodeJSON(r *http.Request, target interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return BadRequest("Request body is empty")
		}
		return BadRequest("Invalid JSON: " + err.Error())
	}
	return nil
}
