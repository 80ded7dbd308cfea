package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for the handler layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// UserSafeMessage reduces any error to a message fit for a template.
// Normalized upstream failures keep their mapped wording; anything else
// becomes a generic failure line.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.UserMessage()
	}
	return "Something went wrong, please try again"
}

// RespondError maps upstream and handler errors to RFC7807 responses.
// Normalized upstream failures keep their status; everything else collapses
// to a generic internal error so transport details never leak.
func RespondError(w http.ResponseWriter, err error) {
	if apiErr, ok := AsAPIError(err); ok {
		status := apiErr.Status
		if status == 0 {
			status = http.StatusBadGateway
		}
		Problem(w, status, http.StatusText(status), apiErr.UserMessage())
		return
	}
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
