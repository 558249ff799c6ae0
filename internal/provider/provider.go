package provider

import (
	"context"
)

// Message is a single outbound email.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
}

// SendResponse carries the provider's identifier for an accepted message.
type SendResponse struct {
	MessageID string `json:"id"`
}

// Sender abstracts delivery through an email provider.
// Mocking this interface in tests gives full control over provider behaviour
// without making real network calls.
type Sender interface {
	Send(ctx context.Context, msg Message) (*SendResponse, error)
}

// Contact is one entry of a remote audience.
type Contact struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Unsubscribed bool   `json:"unsubscribed"`
}

// Contacts abstracts the remote audience used as a subscriber store.
type Contacts interface {
	ListContacts(ctx context.Context) ([]Contact, error)
	GetContact(ctx context.Context, email string) (*Contact, error)
	CreateContact(ctx context.Context, email string) (*Contact, error)
	UpdateContact(ctx context.Context, email string, unsubscribed bool) error
	RemoveContact(ctx context.Context, email string) error
}
