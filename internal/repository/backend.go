package repository

import (
	"context"
)

// Backend kinds reported by Kind.
const (
	KindFile     = "file"
	KindPostgres = "postgres"
	KindRemote   = "remote"
	KindMemory   = "memory"
)

// Backend is one physical store of subscriber addresses. Addresses passed in
// are already normalized by the caller.
//
// Add returns domain.ErrAlreadySubscribed for an existing address and
// Remove returns domain.ErrSubscriberNotFound for a missing one. Writes
// against a store that cannot be written in the current environment return
// domain.ErrReadOnlyStore.
//
// Implementations: FileBackend and PostgresBackend (local), RemoteBackend
// (provider audience), MemoryBackend (tests).
type Backend interface {
	Kind() string
	Writable() bool
	List(ctx context.Context) ([]string, error)
	Contains(ctx context.Context, email string) (bool, error)
	Add(ctx context.Context, email string) error
	Remove(ctx context.Context, email string) error
}
