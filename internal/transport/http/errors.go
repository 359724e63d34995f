package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"glassmind-quiz-service/internal/domain"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeProfileNotFound  = "PROFILE_NOT_FOUND"
	CodeMatchNotFound    = "MATCH_NOT_FOUND"
	CodeMatchUnavailable = "MATCH_UNAVAILABLE"
	CodeOwnMatch         = "OWN_MATCH"
	CodeNoOpenMatch      = "NO_OPEN_MATCH"
	CodeInvalidCode      = "INVALID_CODE"
	CodeCodeInUse        = "CODE_IN_USE"
	CodeNotParticipant   = "NOT_PARTICIPANT"
	CodeInternalError    = "INTERNAL_ERROR"
)

type httpError struct {
	status   int
	apiError apiError
}

func (e *httpError) Error() string {
	return e.apiError.Message
}

func invalidRequest(message string) error {
	return &httpError{http.StatusBadRequest, apiError{CodeInvalidRequest, message}}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	writeJSON(w, he.status, errorResponse{Error: he.apiError})
}

// toHTTPError maps domain errors to a status and a stable code. Anything unknown is
// reported as an internal error without leaking its message.
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	case errors.Is(err, domain.ErrProfileNotFound):
		return &httpError{http.StatusNotFound, apiError{CodeProfileNotFound, "Profile not found"}}
	case errors.Is(err, domain.ErrMatchNotFound):
		return &httpError{http.StatusNotFound, apiError{CodeMatchNotFound, "Match not found"}}
	case errors.Is(err, domain.ErrMatchUnavailable):
		return &httpError{http.StatusConflict, apiError{CodeMatchUnavailable, "Match was already taken"}}
	case errors.Is(err, domain.ErrOwnMatch):
		return &httpError{http.StatusConflict, apiError{CodeOwnMatch, "You cannot join your own match"}}
	case errors.Is(err, domain.ErrNoOpenMatch):
		return &httpError{http.StatusNotFound, apiError{CodeNoOpenMatch, "Nobody is waiting for an opponent"}}
	case errors.Is(err, domain.ErrInvalidCode):
		return &httpError{http.StatusBadRequest, apiError{CodeInvalidCode, "Join code must be six digits"}}
	case errors.Is(err, domain.ErrCodeInUse):
		return &httpError{http.StatusConflict, apiError{CodeCodeInUse, "Join code is already in use"}}
	case errors.Is(err, domain.ErrNotParticipant):
		return &httpError{http.StatusForbidden, apiError{CodeNotParticipant, "You are not playing in this match"}}
	case errors.Is(err, domain.ErrInvalidSlot):
		return &httpError{http.StatusBadRequest, apiError{CodeInvalidRequest, "Invalid player slot"}}
	default:
		return &httpError{http.StatusInternalServerError, apiError{CodeInternalError, "Internal server error"}}
	}
}
