package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
)

// APIError is a non-2xx response from the provider API.
type APIError struct {
	StatusCode int
	Name       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("provider error %d (%s): %s", e.StatusCode, e.Name, e.Message)
	}
	return fmt.Sprintf("provider error %d", e.StatusCode)
}

// Class is the normalised category of a provider failure.
type Class int

const (
	ClassUnknown Class = iota
	ClassDuplicate
	ClassNotFound
	ClassTransient
)

func (c Class) String() string {
	switch c {
	case ClassDuplicate:
		return "duplicate"
	case ClassNotFound:
		return "not_found"
	case ClassTransient:
		return "transient"
	default:
		return "unknown"
	}
}

var duplicateMarkers = []string{
	"already exists",
	"duplicate",
	"already subscribed",
	"already in audience",
	"already in",
	"email already",
}

// Classify maps any error returned by a provider call onto a Class.
// Message markers win over status codes because providers report
// duplicates with a variety of codes.
func Classify(err error) Class {
	if err == nil {
		return ClassUnknown
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		text := strings.ToLower(apiErr.Name + " " + apiErr.Message + " " + apiErr.Body)
		switch {
		case containsAny(text, duplicateMarkers):
			return ClassDuplicate
		case apiErr.StatusCode == 409, apiErr.StatusCode == 422:
			return ClassDuplicate
		case apiErr.StatusCode == 404:
			return ClassNotFound
		case apiErr.StatusCode == 408, apiErr.StatusCode == 429, apiErr.StatusCode >= 500:
			return ClassTransient
		}
		return ClassUnknown
	}

	if errors.Is(err, circuitbreaker.ErrOpen) ||
		errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransient
	}

	text := strings.ToLower(err.Error())
	switch {
	case containsAny(text, duplicateMarkers):
		return ClassDuplicate
	case strings.Contains(text, "not found"):
		return ClassNotFound
	}
	return ClassUnknown
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}
