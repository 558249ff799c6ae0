package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/solweekly/weekly-roundup/internal/domain"
	"github.com/solweekly/weekly-roundup/internal/repository"
)

// RegistryHooks carries optional metric callbacks injected by main.
type RegistryHooks struct {
	OnFallback      func(operation string)
	OnMirrorFailure func()
}

// RegistryStatus describes which stores back the registry. It never
// includes credentials.
type RegistryStatus struct {
	RemoteConfigured bool   `json:"remote_store_configured"`
	LocalStore       string `json:"local_store"`
	LocalWritable    bool   `json:"local_store_writable"`
}

// Registry is the single source of truth for who is subscribed. It composes
// a local store with an optional remote store:
//
//   - reads prefer the remote store and fall back to the local one when the
//     remote read fails or comes back empty;
//   - adds go to the remote store when configured and are mirrored into the
//     local store on a best-effort basis;
//   - without a writable remote store the local store is used exclusively,
//     and a read-only local store turns writes into a configuration error.
//
// The two stores can diverge (e.g. a subscriber written only locally after a
// remote failure). That divergence is accepted and visible in the logs.
type Registry struct {
	local         repository.Backend
	remote        repository.Backend
	missingRemote []string
	logger        *zap.Logger
	hooks         RegistryHooks
}

// NewRegistry builds a registry. remote may be nil; missingRemote names the
// variables that would enable it and is reported when no store can accept
// writes.
func NewRegistry(
	local repository.Backend,
	remote repository.Backend,
	missingRemote []string,
	logger *zap.Logger,
	hooks RegistryHooks,
) *Registry {
	if hooks.OnFallback == nil {
		hooks.OnFallback = func(string) {}
	}
	if hooks.OnMirrorFailure == nil {
		hooks.OnMirrorFailure = func() {}
	}
	return &Registry{
		local:         local,
		remote:        remote,
		missingRemote: missingRemote,
		logger:        logger,
		hooks:         hooks,
	}
}

func (r *Registry) Status() RegistryStatus {
	return RegistryStatus{
		RemoteConfigured: r.remote != nil,
		LocalStore:       r.local.Kind(),
		LocalWritable:    r.local.Writable(),
	}
}

// List returns every subscriber, de-duplicated and sorted. It never fails;
// when no store can be read the result is empty.
func (r *Registry) List(ctx context.Context) []string {
	if r.remote != nil {
		emails, err := r.remote.List(ctx)
		switch {
		case err != nil:
			r.logger.Warn("remote store list failed, reading local store", zap.Error(err))
			r.hooks.OnFallback("list")
		case len(emails) == 0:
			r.logger.Debug("remote store is empty, reading local store")
			r.hooks.OnFallback("list")
		default:
			return domain.UniqueSorted(emails)
		}
	}

	emails, err := r.local.List(ctx)
	if err != nil {
		r.logger.Error("local store list failed", zap.Error(err))
		return []string{}
	}
	return domain.UniqueSorted(emails)
}

// Add subscribes email and returns its normalized form. It returns a
// validation error for malformed input and domain.ErrAlreadySubscribed for
// an existing subscriber.
func (r *Registry) Add(ctx context.Context, email string) (string, error) {
	email, err := domain.ValidateEmail(email)
	if err != nil {
		return "", err
	}

	if r.remote != nil && r.remote.Writable() {
		err := r.addRemote(ctx, email)
		switch {
		case err == nil:
			r.bestEffort(ctx, "mirror add", email, r.local.Add)
			return email, nil
		case errors.Is(err, domain.ErrAlreadySubscribed):
			return email, err
		case !r.local.Writable():
			return "", fmt.Errorf("add to remote store: %w", err)
		}
		r.logger.Warn("remote store add failed, writing local store only", zap.Error(err))
		r.hooks.OnFallback("add")
	}

	if !r.local.Writable() {
		return "", r.unavailable()
	}
	if err := r.local.Add(ctx, email); err != nil {
		if errors.Is(err, domain.ErrAlreadySubscribed) {
			return email, err
		}
		return "", fmt.Errorf("add to local store: %w", err)
	}
	return email, nil
}

// addRemote checks for an existing contact before creating one. An
// inconclusive check never blocks the create.
func (r *Registry) addRemote(ctx context.Context, email string) error {
	exists, err := r.remote.Contains(ctx, email)
	switch {
	case err != nil:
		r.logger.Warn("remote existence check inconclusive, creating anyway", zap.Error(err))
	case exists:
		return domain.ErrAlreadySubscribed
	}
	return r.remote.Add(ctx, email)
}

// Remove unsubscribes email and returns its normalized form, or
// domain.ErrSubscriberNotFound when it is not subscribed.
//
// A writable local store is authoritative: its membership decides NotFound
// and the remote delete is best-effort. An address present only remotely
// (a failed mirror) is still removed. With a read-only local store the
// remote store is authoritative.
func (r *Registry) Remove(ctx context.Context, email string) (string, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return "", domain.ErrMissingField
	}

	if !r.local.Writable() {
		if r.remote == nil {
			return "", r.unavailable()
		}
		if err := r.removeRemote(ctx, email); err != nil {
			if errors.Is(err, domain.ErrSubscriberNotFound) {
				return "", err
			}
			return "", fmt.Errorf("remove from remote store: %w", err)
		}
		return email, nil
	}

	err := r.local.Remove(ctx, email)
	switch {
	case err == nil:
		if r.remote != nil {
			r.bestEffort(ctx, "mirror remove", email, r.remote.Remove)
		}
		return email, nil
	case !errors.Is(err, domain.ErrSubscriberNotFound):
		return "", fmt.Errorf("remove from local store: %w", err)
	}

	if r.remote == nil {
		return "", domain.ErrSubscriberNotFound
	}
	if err := r.removeRemote(ctx, email); err != nil {
		if !errors.Is(err, domain.ErrSubscriberNotFound) {
			r.logger.Warn("remote remove failed", zap.Error(err))
		}
		return "", domain.ErrSubscriberNotFound
	}
	return email, nil
}

func (r *Registry) removeRemote(ctx context.Context, email string) error {
	exists, err := r.remote.Contains(ctx, email)
	if err == nil && !exists {
		return domain.ErrSubscriberNotFound
	}
	return r.remote.Remove(ctx, email)
}

// bestEffort performs a write against a secondary store. Its failure is
// logged and counted but never returned; "already there" and "already gone"
// answers count as success.
func (r *Registry) bestEffort(ctx context.Context, op, email string, write func(context.Context, string) error) {
	err := write(ctx, email)
	switch {
	case err == nil,
		errors.Is(err, domain.ErrAlreadySubscribed),
		errors.Is(err, domain.ErrSubscriberNotFound):
		return
	case errors.Is(err, domain.ErrReadOnlyStore):
		r.logger.Debug("secondary store is read-only, skipped", zap.String("op", op))
		return
	}
	r.logger.Warn("best-effort write failed", zap.String("op", op), zap.Error(err))
	r.hooks.OnMirrorFailure()
}

func (r *Registry) unavailable() error {
	if len(r.missingRemote) == 0 {
		return domain.ErrReadOnlyStore
	}
	return &domain.MissingConfigError{Feature: "subscriber storage", Missing: r.missingRemote}
}
