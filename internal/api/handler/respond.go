package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/solweekly/weekly-roundup/internal/domain"
)

const (
	msgUnauthorized       = "Unauthorized"
	msgAlreadySubscribed  = "This email is already subscribed to our mailing list"
	hintSecretConfigured  = "An admin key is configured on the server; the key supplied does not match it."
	msgInvalidJSON        = "invalid JSON body"
	msgInternalError      = "internal server error"
	msgDeliveryFailedHint = "Check the email provider dashboard to verify the sending domain, and the server logs for details."
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads the request body into v. An empty body leaves v at its
// zero value so the service can report the missing field itself.
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// mapError translates domain sentinel errors to HTTP status codes.
// All mapping lives here so individual handlers stay concise.
func mapError(w http.ResponseWriter, err error) {
	var missing *domain.MissingConfigError
	switch {
	case errors.Is(err, domain.ErrAlreadySubscribed):
		respondError(w, http.StatusBadRequest, msgAlreadySubscribed)
	case errors.Is(err, domain.ErrInvalidEmail),
		errors.Is(err, domain.ErrMissingField),
		errors.Is(err, domain.ErrNoSubscribers):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidAdminKey):
		respondJSON(w, http.StatusUnauthorized, map[string]string{
			"error": msgUnauthorized,
			"hint":  hintSecretConfigured,
		})
	case errors.Is(err, domain.ErrAuthNotConfigured):
		respondError(w, http.StatusInternalServerError, err.Error())
	case errors.Is(err, domain.ErrSubscriberNotFound),
		errors.Is(err, domain.ErrArticleNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &missing):
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":   missing.Error(),
			"missing": missing.Missing,
		})
	case errors.Is(err, domain.ErrReadOnlyStore):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		respondError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, domain.ErrDeliveryFailed):
		respondJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   domain.ErrDeliveryFailed.Error(),
			"details": err.Error(),
			"hint":    msgDeliveryFailedHint,
		})
	default:
		respondError(w, http.StatusInternalServerError, msgInternalError)
	}
}
