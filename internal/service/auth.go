package service

import (
	"crypto/subtle"
	"strings"

	"github.com/solweekly/weekly-roundup/internal/domain"
)

// AdminAuth guards privileged operations with a shared secret.
type AdminAuth struct {
	secret []byte
}

func NewAdminAuth(secret string) *AdminAuth {
	return &AdminAuth{secret: []byte(strings.TrimSpace(secret))}
}

// Configured reports whether an admin secret is set.
func (a *AdminAuth) Configured() bool {
	return len(a.secret) > 0
}

// Check trims key and compares it byte-for-byte with the secret in constant
// time. Empty keys never match.
func (a *AdminAuth) Check(key string) error {
	if !a.Configured() {
		return domain.ErrAuthNotConfigured
	}
	k := []byte(strings.TrimSpace(key))
	if len(k) == 0 || subtle.ConstantTimeCompare(k, a.secret) != 1 {
		return domain.ErrInvalidAdminKey
	}
	return nil
}
