package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	contactsPageSize = 100
	maxErrorBody     = 4 << 10
)

// ResendClient talks to the Resend REST API. It sends email and, when an
// audience ID is configured, manages the audience contacts that back the
// remote subscriber store. The base URL is injected from config so tests can
// point it at a local server.
type ResendClient struct {
	baseURL    string
	apiKey     string
	audienceID string
	httpClient *http.Client
	breaker    *CircuitBreaker
}

// ResendOption customises a ResendClient.
type ResendOption func(*ResendClient)

// WithCircuitBreaker routes every contacts call through b.
func WithCircuitBreaker(b *CircuitBreaker) ResendOption {
	return func(c *ResendClient) { c.breaker = b }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(hc *http.Client) ResendOption {
	return func(c *ResendClient) { c.httpClient = hc }
}

func NewResendClient(baseURL, apiKey, audienceID string, timeout time.Duration, opts ...ResendOption) *ResendClient {
	c := &ResendClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		audienceID: audienceID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sendEmailRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

// Send posts one email and returns the provider message id.
func (c *ResendClient) Send(ctx context.Context, msg Message) (*SendResponse, error) {
	var resp SendResponse
	err := c.do(ctx, http.MethodPost, "/emails", sendEmailRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

type contactList struct {
	Data    []Contact `json:"data"`
	HasMore bool      `json:"has_more"`
}

// ListContacts returns every contact in the audience, following pagination.
func (c *ResendClient) ListContacts(ctx context.Context) ([]Contact, error) {
	var all []Contact
	after := ""
	for {
		q := url.Values{"limit": {fmt.Sprint(contactsPageSize)}}
		if after != "" {
			q.Set("after", after)
		}
		var page contactList
		err := c.guard(func() error {
			return c.do(ctx, http.MethodGet, c.contactsPath("")+"?"+q.Encode(), nil, &page)
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page.Data...)
		if !page.HasMore || len(page.Data) == 0 {
			return all, nil
		}
		after = page.Data[len(page.Data)-1].ID
	}
}

// GetContact looks up a single contact by email. A missing contact is an
// *APIError with status 404.
func (c *ResendClient) GetContact(ctx context.Context, email string) (*Contact, error) {
	var contact Contact
	err := c.guard(func() error {
		return c.do(ctx, http.MethodGet, c.contactsPath(email), nil, &contact)
	})
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

// CreateContact adds email to the audience as subscribed.
func (c *ResendClient) CreateContact(ctx context.Context, email string) (*Contact, error) {
	body := map[string]any{"email": email, "unsubscribed": false}
	var contact Contact
	err := c.guard(func() error {
		return c.do(ctx, http.MethodPost, c.contactsPath(""), body, &contact)
	})
	if err != nil {
		return nil, err
	}
	contact.Email = email
	return &contact, nil
}

// UpdateContact sets the subscription flag of an existing contact.
func (c *ResendClient) UpdateContact(ctx context.Context, email string, unsubscribed bool) error {
	body := map[string]any{"unsubscribed": unsubscribed}
	return c.guard(func() error {
		return c.do(ctx, http.MethodPatch, c.contactsPath(email), body, nil)
	})
}

// RemoveContact deletes email from the audience.
func (c *ResendClient) RemoveContact(ctx context.Context, email string) error {
	return c.guard(func() error {
		return c.do(ctx, http.MethodDelete, c.contactsPath(email), nil, nil)
	})
}

func (c *ResendClient) contactsPath(email string) string {
	p := "/audiences/" + url.PathEscape(c.audienceID) + "/contacts"
	if email != "" {
		p += "/" + url.PathEscape(email)
	}
	return p
}

func (c *ResendClient) guard(fn func() error) error {
	if c.breaker == nil {
		return fn()
	}
	return c.breaker.Call(fn)
}

func (c *ResendClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(raw)}

	var payload struct {
		Name    string `json:"name"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &payload) == nil {
		apiErr.Name = payload.Name
		apiErr.Message = payload.Message
		if apiErr.Message == "" {
			apiErr.Message = payload.Error
		}
	}
	return apiErr
}

// compile-time checks that ResendClient implements both provider roles
var (
	_ Sender   = (*ResendClient)(nil)
	_ Contacts = (*ResendClient)(nil)
)
