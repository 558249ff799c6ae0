package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-mail/mail/v2"
	"github.com/google/uuid"
)

// SMTPSender delivers email through an SMTP relay. Each message is sent on
// its own connection so one recipient's failure cannot affect another.
type SMTPSender struct {
	dialer *mail.Dialer
	domain string
}

func NewSMTPSender(host string, port int, username, password string, timeout time.Duration) *SMTPSender {
	d := mail.NewDialer(host, port, username, password)
	d.Timeout = timeout
	return &SMTPSender{dialer: d, domain: host}
}

// Send builds a multipart/alternative message. SMTP has no provider message
// id, so a generated Message-ID header is reported instead.
func (s *SMTPSender) Send(ctx context.Context, msg Message) (*SendResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := fmt.Sprintf("<%s@%s>", uuid.New().String(), s.messageDomain(msg.From))

	m := mail.NewMessage()
	m.SetHeader("From", msg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", id)
	m.SetBody("text/plain", msg.Text)
	if msg.HTML != "" {
		m.AddAlternative("text/html", msg.HTML)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return nil, fmt.Errorf("smtp send: %w", err)
	}
	return &SendResponse{MessageID: id}, nil
}

// messageDomain takes the domain of the From address, falling back to the
// relay host.
func (s *SMTPSender) messageDomain(from string) string {
	addr := strings.TrimSuffix(from, ">")
	if i := strings.LastIndex(addr, "@"); i >= 0 && i < len(addr)-1 {
		return addr[i+1:]
	}
	return s.domain
}

var _ Sender = (*SMTPSender)(nil)
