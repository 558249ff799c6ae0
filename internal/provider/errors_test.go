package provider_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/stretchr/testify/assert"

	"github.com/solweekly/weekly-roundup/internal/provider"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want provider.Class
	}{
		{"nil", nil, provider.ClassUnknown},
		{"409 conflict", &provider.APIError{StatusCode: 409}, provider.ClassDuplicate},
		{"422 validation", &provider.APIError{StatusCode: 422, Name: "validation_error"}, provider.ClassDuplicate},
		{"400 with already exists", &provider.APIError{StatusCode: 400, Message: "Contact already exists"}, provider.ClassDuplicate},
		{"body marker only", &provider.APIError{StatusCode: 400, Body: `{"detail":"Email already in audience"}`}, provider.ClassDuplicate},
		{"duplicate name", &provider.APIError{StatusCode: 400, Name: "duplicate_contact"}, provider.ClassDuplicate},
		{"404", &provider.APIError{StatusCode: 404, Name: "not_found", Message: "Contact not found"}, provider.ClassNotFound},
		{"429", &provider.APIError{StatusCode: 429, Name: "rate_limit_exceeded"}, provider.ClassTransient},
		{"500", &provider.APIError{StatusCode: 500}, provider.ClassTransient},
		{"503", &provider.APIError{StatusCode: 503}, provider.ClassTransient},
		{"401", &provider.APIError{StatusCode: 401, Name: "missing_api_key"}, provider.ClassUnknown},
		{"wrapped api error", fmt.Errorf("create contact: %w", &provider.APIError{StatusCode: 409}), provider.ClassDuplicate},
		{"circuit open", circuitbreaker.ErrOpen, provider.ClassTransient},
		{"deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), provider.ClassTransient},
		{"plain duplicate text", errors.New("Email already subscribed"), provider.ClassDuplicate},
		{"plain not found text", errors.New("contact not found"), provider.ClassNotFound},
		{"plain other", errors.New("boom"), provider.ClassUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, provider.Classify(tc.err))
		})
	}
}

func TestAPIError_Message(t *testing.T) {
	err := &provider.APIError{StatusCode: 422, Name: "validation_error", Message: "Invalid email"}
	assert.Equal(t, "provider error 422 (validation_error): Invalid email", err.Error())
	assert.Equal(t, "provider error 502", (&provider.APIError{StatusCode: 502}).Error())
}
