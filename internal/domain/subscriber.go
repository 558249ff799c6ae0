package domain

import (
	"regexp"
	"slices"
	"strings"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail lowercases and trims an address. It is idempotent.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail normalizes email and checks it against the local@domain.tld
// pattern. The normalized address is returned on success.
func ValidateEmail(email string) (string, error) {
	n := NormalizeEmail(email)
	if n == "" {
		return "", ErrMissingField
	}
	if !strings.Contains(n, "@") || !emailPattern.MatchString(n) {
		return "", ErrInvalidEmail
	}
	return n, nil
}

// UniqueSorted normalizes every address, drops blanks and duplicates, and
// returns the result in ascending order.
func UniqueSorted(emails []string) []string {
	seen := make(map[string]struct{}, len(emails))
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		n := NormalizeEmail(e)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}
