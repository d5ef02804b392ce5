package notify

import (
	"context"
	"crypto/tls"
	"fmt"

	mail "github.com/go-mail/mail"
	"github.com/rs/zerolog/log"
)

// SMTPConfig is the subset of configuration the SMTP notifier needs.
type SMTPConfig interface {
	GetSmtpHost() string
	GetSmtpPort() int
	GetSmtpAccount() string
	GetSmtpPassword() string
	GetSmtpFrom() string
	GetSmtpTLSMode() string // "auto" | "ssl" | "none"
}

// SMTPNotifier sends email messages through an SMTP relay. Messages for other channels go
// to the fallback notifier.
type SMTPNotifier struct {
	host     string
	port     int
	user     string
	pass     string
	from     string
	tlsMode  string
	fallback Notifier
}

func NewSMTPNotifier(cfg SMTPConfig, fallback Notifier) *SMTPNotifier {
	return &SMTPNotifier{
		host:     cfg.GetSmtpHost(),
		port:     cfg.GetSmtpPort(),
		user:     cfg.GetSmtpAccount(),
		pass:     cfg.GetSmtpPassword(),
		from:     cfg.GetSmtpFrom(),
		tlsMode:  cfg.GetSmtpTLSMode(),
		fallback: fallback,
	}
}

func (s *SMTPNotifier) SendCode(ctx context.Context, to Recipient, code, language string) error {
	if to.Channel != ChannelEmail {
		return s.forward(func(n Notifier) error { return n.SendCode(ctx, to, code, language) })
	}
	return s.send(to.Address, codeMessage(code, language))
}

func (s *SMTPNotifier) SendLink(ctx context.Context, to Recipient, code, link, language string) error {
	if to.Channel != ChannelEmail {
		return s.forward(func(n Notifier) error { return n.SendLink(ctx, to, code, link, language) })
	}
	return s.send(to.Address, linkMessage(code, link, language))
}

func (s *SMTPNotifier) SendResetPassword(ctx context.Context, to Recipient, link, language string) error {
	if to.Channel != ChannelEmail {
		return s.forward(func(n Notifier) error { return n.SendResetPassword(ctx, to, link, language) })
	}
	return s.send(to.Address, resetMessage(link, language))
}

func (s *SMTPNotifier) forward(fn func(Notifier) error) error {
	if s.fallback == nil {
		return ErrUnsupportedChannel
	}
	return fn(s.fallback)
}

func (s *SMTPNotifier) newMessage(to string, msg message) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Text)
	m.AddAlternative("text/html", msg.HTML)
	return m
}

func (s *SMTPNotifier) send(to string, msg message) error {
	d := mail.NewDialer(s.host, s.port, s.user, s.pass)
	d.TLSConfig = &tls.Config{ServerName: s.host}
	switch s.tlsMode {
	case "ssl":
		d.SSL = true
	case "none":
		d.StartTLSPolicy = mail.NoStartTLS
	}

	if err := d.DialAndSend(s.newMessage(to, msg)); err != nil {
		log.Err(err).Str("host", s.host).Msg("smtp send failed")
		return fmt.Errorf("smtp send: %w", err)
	}
	log.Debug().Str("host", s.host).Str("subject", msg.Subject).Msg("smtp message sent")
	return nil
}
