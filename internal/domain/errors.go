package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors used throughout the application.
// Handlers translate these to HTTP status codes via a single mapError function.
var (
	ErrInvalidEmail       = errors.New("please enter a valid email address")
	ErrMissingField       = errors.New("required field is missing")
	ErrAlreadySubscribed  = errors.New("this email is already subscribed to our mailing list")
	ErrSubscriberNotFound = errors.New("email not found")
	ErrArticleNotFound    = errors.New("roundup not found")
	ErrNoSubscribers      = errors.New("no subscribers found")
	ErrDeliveryFailed     = errors.New("failed to send email")

	ErrInvalidAdminKey   = errors.New("invalid admin key")
	ErrAuthNotConfigured = errors.New("admin authentication is not configured")

	// ErrReadOnlyStore is returned by a local store that cannot be written in
	// the current environment (e.g. a read-only deployment filesystem).
	ErrReadOnlyStore = errors.New("subscriber storage is read-only in this environment")
	ErrNotConfigured = errors.New("feature is not configured")
	ErrRateLimited   = errors.New("too many requests, try again later")
)

// MissingConfigError reports a configuration gap that disables a feature.
// It matches ErrNotConfigured under errors.Is.
type MissingConfigError struct {
	Feature string
	Missing []string
}

func (e *MissingConfigError) Error() string {
	return fmt.Sprintf("%s is not configured: set %s", e.Feature, strings.Join(e.Missing, " and "))
}

func (e *MissingConfigError) Is(target error) bool {
	return target == ErrNotConfigured
}
