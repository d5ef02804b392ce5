package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogNotifier writes messages to the log instead of delivering them. Used in development
// and for channels without a configured transport.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	if logger == nil {
		logger = &log.Logger
	}
	return &LogNotifier{logger: logger.With().Str("component", "notify").Logger()}
}

func (n *LogNotifier) SendCode(_ context.Context, to Recipient, code, language string) error {
	n.logger.Info().Str("tenant_id", to.TenantID).Str("to", to.Address).Str("channel", string(to.Channel)).
		Str("code", code).Str("language", language).Msg("verification code")
	return nil
}

func (n *LogNotifier) SendLink(_ context.Context, to Recipient, code, link, language string) error {
	n.logger.Info().Str("tenant_id", to.TenantID).Str("to", to.Address).Str("channel", string(to.Channel)).
		Str("code", code).Str("link", link).Str("language", language).Msg("magic link")
	return nil
}

func (n *LogNotifier) SendResetPassword(_ context.Context, to Recipient, link, language string) error {
	n.logger.Info().Str("tenant_id", to.TenantID).Str("to", to.Address).
		Str("link", link).Str("language", language).Msg("password reset link")
	return nil
}

// Async delivers through next on a background goroutine so slow transports never hold up
// the response. Failures are logged.
type Async struct {
	next    Notifier
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewAsync(next Notifier, timeout time.Duration) *Async {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Async{next: next, timeout: timeout}
}

func (a *Async) SendCode(ctx context.Context, to Recipient, code, language string) error {
	a.run(ctx, to, func(ctx context.Context) error { return a.next.SendCode(ctx, to, code, language) })
	return nil
}

func (a *Async) SendLink(ctx context.Context, to Recipient, code, link, language string) error {
	a.run(ctx, to, func(ctx context.Context) error { return a.next.SendLink(ctx, to, code, link, language) })
	return nil
}

func (a *Async) SendResetPassword(ctx context.Context, to Recipient, link, language string) error {
	a.run(ctx, to, func(ctx context.Context) error { return a.next.SendResetPassword(ctx, to, link, language) })
	return nil
}

// Wait blocks until in-flight deliveries finish.
func (a *Async) Wait() {
	a.wg.Wait()
}

func (a *Async) run(parent context.Context, to Recipient, fn func(context.Context) error) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), a.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			log.Warn().Err(err).Str("tenant_id", to.TenantID).Str("channel", string(to.Channel)).Msg("notification delivery failed")
		}
	}()
}
