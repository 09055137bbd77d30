// Package httpapi holds the REST surface of both services. The chat and
// identity services share middleware and response plumbing but keep
// their historical error envelopes: the chat API reports
// {"error": "<message>"} while the identity API reports
// {"status_code": <code>, "data": {"message": "<msg>"}}.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/driftchat/drift/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type chatErrorBody struct {
	Error string `json:"error"`
}

func chatError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, chatErrorBody{Error: message})
}

type identityErrorBody struct {
	StatusCode int `json:"status_code"`
	Data       struct {
		Message string `json:"message"`
	} `json:"data"`
}

func identityError(w http.ResponseWriter, status int, message string) {
	body := identityErrorBody{StatusCode: status}
	body.Data.Message = message
	writeJSON(w, status, body)
}

// uniquenessStatus differs between the services: the chat API treats a
// name collision like any other validation failure, the identity API
// reports a conflict.
func statusFor(err error, uniquenessStatus int) (int, string) {
	switch {
	case domain.IsValidation(err):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, domain.ErrChannelNotFound),
		errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrNameAlreadyExists),
		errors.Is(err, domain.ErrUsernameAlreadyExists),
		errors.Is(err, domain.ErrEmailAlreadyExists):
		return uniquenessStatus, err.Error()
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, domain.ErrInvalidCredentials.Error()
	case errors.Is(err, domain.ErrServiceUnavailable):
		return http.StatusServiceUnavailable, domain.ErrServiceUnavailable.Error()
	default:
		return http.StatusInternalServerError, domain.ErrDatabase.Error()
	}
}

func chatServiceError(w http.ResponseWriter, err error) {
	status, message := statusFor(err, http.StatusUnprocessableEntity)
	chatError(w, status, message)
}

func identityServiceError(w http.ResponseWriter, err error) {
	status, message := statusFor(err, http.StatusConflict)
	identityError(w, status, message)
}
