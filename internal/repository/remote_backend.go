package repository

import (
	"context"
	"fmt"

	"github.com/solweekly/weekly-roundup/internal/domain"
	"github.com/solweekly/weekly-roundup/internal/provider"
)

// RemoteBackend exposes a provider audience as a subscriber store.
// Provider failures are normalised through provider.Classify; anything that
// is not a duplicate or a not-found answer is returned wrapped so callers
// can still classify it.
type RemoteBackend struct {
	contacts provider.Contacts
}

func NewRemoteBackend(contacts provider.Contacts) *RemoteBackend {
	return &RemoteBackend{contacts: contacts}
}

func (b *RemoteBackend) Kind() string   { return KindRemote }
func (b *RemoteBackend) Writable() bool { return true }

// List returns subscribed contacts only.
func (b *RemoteBackend) List(ctx context.Context) ([]string, error) {
	contacts, err := b.contacts.ListContacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	emails := make([]string, 0, len(contacts))
	for _, c := range contacts {
		if c.Unsubscribed {
			continue
		}
		emails = append(emails, domain.NormalizeEmail(c.Email))
	}
	return emails, nil
}

// Contains reports whether email is a subscribed contact. A not-found answer
// is a definite false, not an error.
func (b *RemoteBackend) Contains(ctx context.Context, email string) (bool, error) {
	c, err := b.contacts.GetContact(ctx, email)
	if err != nil {
		if provider.Classify(err) == provider.ClassNotFound {
			return false, nil
		}
		return false, fmt.Errorf("get contact: %w", err)
	}
	return !c.Unsubscribed, nil
}

// Add creates a subscribed contact. A contact that already exists but has
// unsubscribed is switched back to subscribed; a subscribed one is
// domain.ErrAlreadySubscribed.
func (b *RemoteBackend) Add(ctx context.Context, email string) error {
	_, err := b.contacts.CreateContact(ctx, email)
	if err == nil {
		return nil
	}
	if provider.Classify(err) != provider.ClassDuplicate {
		return fmt.Errorf("create contact: %w", err)
	}

	c, err := b.contacts.GetContact(ctx, email)
	if err != nil || !c.Unsubscribed {
		return domain.ErrAlreadySubscribed
	}
	if err := b.contacts.UpdateContact(ctx, email, false); err != nil {
		return fmt.Errorf("resubscribe contact: %w", err)
	}
	return nil
}

func (b *RemoteBackend) Remove(ctx context.Context, email string) error {
	if err := b.contacts.RemoveContact(ctx, email); err != nil {
		if provider.Classify(err) == provider.ClassNotFound {
			return domain.ErrSubscriberNotFound
		}
		return fmt.Errorf("remove contact: %w", err)
	}
	return nil
}

var _ Backend = (*RemoteBackend)(nil)
