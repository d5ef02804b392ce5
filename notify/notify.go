package notify

import (
	"context"
	"errors"
)

var ErrUnsupportedChannel = errors.New("unsupported notification channel")

// Channel is how a recipient is reached.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

type Recipient struct {
	TenantID string
	Address  string
	Channel  Channel
}

// Notifier delivers one-time codes and links. Callers treat delivery as fire-and-forget and
// never fail a response because of a returned error.
type Notifier interface {
	SendCode(ctx context.Context, to Recipient, code, language string) error
	// SendLink sends a magic link. code is included for clients that also display it.
	SendLink(ctx context.Context, to Recipient, code, link, language string) error
	SendResetPassword(ctx context.Context, to Recipient, link, language string) error
}
