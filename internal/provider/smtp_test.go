package provider

import (
	"context"
	"testing"
	"time"
)

func TestSMTPSender_MessageDomain(t *testing.T) {
	s := NewSMTPSender("smtp.relay.test", 587, "", "", time.Second)

	tests := []struct {
		from string
		want string
	}{
		{"Solana Weekly <newsletter@solweekly.xyz>", "solweekly.xyz"},
		{"newsletter@solweekly.xyz", "solweekly.xyz"},
		{"no address here", "smtp.relay.test"},
		{"broken@", "smtp.relay.test"},
	}
	for _, tc := range tests {
		t.Run(tc.from, func(t *testing.T) {
			if got := s.messageDomain(tc.from); got != tc.want {
				t.Fatalf("messageDomain(%q) = %q, want %q", tc.from, got, tc.want)
			}
		})
	}
}

func TestSMTPSender_CancelledContext(t *testing.T) {
	s := NewSMTPSender("127.0.0.1", 1, "", "", time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Send(ctx, Message{To: "a@x.io"}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
