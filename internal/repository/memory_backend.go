package repository

import (
	"context"
	"slices"
	"sync"

	"github.com/solweekly/weekly-roundup/internal/domain"
)

// MemoryBackend is a hand-written, in-memory Backend used in unit tests.
// No mock-generation library needed.
type MemoryBackend struct {
	mu       sync.RWMutex
	kind     string
	emails   []string
	readOnly bool

	// Optional error overrides, set in tests to simulate failure paths.
	ListErr     error
	ContainsErr error
	AddErr      error
	RemoveErr   error

	// Call counters for assertions.
	AddCalls    int
	RemoveCalls int
}

// NewMemoryBackend returns a writable backend seeded with emails.
func NewMemoryBackend(kind string, emails ...string) *MemoryBackend {
	return &MemoryBackend{kind: kind, emails: slices.Clone(emails)}
}

// SetReadOnly toggles the writable flag.
func (m *MemoryBackend) SetReadOnly(ro bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readOnly = ro
}

// Snapshot returns a copy of the stored addresses in insertion order.
func (m *MemoryBackend) Snapshot() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.emails)
}

func (m *MemoryBackend) Kind() string { return m.kind }

func (m *MemoryBackend) Writable() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.readOnly
}

func (m *MemoryBackend) List(_ context.Context) ([]string, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Snapshot(), nil
}

func (m *MemoryBackend) Contains(_ context.Context, email string) (bool, error) {
	if m.ContainsErr != nil {
		return false, m.ContainsErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Contains(m.emails, email), nil
}

func (m *MemoryBackend) Add(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AddCalls++
	if m.AddErr != nil {
		return m.AddErr
	}
	if m.readOnly {
		return domain.ErrReadOnlyStore
	}
	if slices.Contains(m.emails, email) {
		return domain.ErrAlreadySubscribed
	}
	m.emails = append(m.emails, email)
	return nil
}

func (m *MemoryBackend) Remove(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RemoveCalls++
	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	if m.readOnly {
		return domain.ErrReadOnlyStore
	}
	i := slices.Index(m.emails, email)
	if i < 0 {
		return domain.ErrSubscriberNotFound
	}
	m.emails = slices.Delete(m.emails, i, i+1)
	return nil
}

var _ Backend = (*MemoryBackend)(nil)
