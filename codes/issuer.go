package codes

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	// MaxCreateAttempts bounds the collision retry loop.
	MaxCreateAttempts = 10
	otpLength         = 6
	randomCodeBytes   = 32
)

// Issuer creates and redeems codes on top of a Repo.
type Issuer struct {
	repo       Repo
	now        func() time.Time
	generators map[CodeType]Generator
	lifetimes  map[CodeType]time.Duration
}

type IssuerOption func(*Issuer)

func WithNowFunc(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.now = now
	}
}

// WithGenerator overrides the id generator for one code type.
func WithGenerator(codeType CodeType, g Generator) IssuerOption {
	return func(i *Issuer) {
		i.generators[codeType] = g
	}
}

// WithLifetime overrides the lifetime of one code type.
func WithLifetime(codeType CodeType, d time.Duration) IssuerOption {
	return func(i *Issuer) {
		if d > 0 {
			i.lifetimes[codeType] = d
		}
	}
}

func NewIssuer(repo Repo, options ...IssuerOption) *Issuer {
	random := RandomGenerator(randomCodeBytes)
	i := &Issuer{
		repo: repo,
		now:  time.Now,
		generators: map[CodeType]Generator{
			TypeOTP:               DigitGenerator(otpLength),
			TypeOAuth2State:       random,
			TypeTicket:            random,
			TypeAuthorizationCode: random,
			TypePasswordReset:     random,
		},
		lifetimes: map[CodeType]time.Duration{
			TypeOTP:               OTPLifetime,
			TypeOAuth2State:       OAuth2StateLifetime,
			TypeTicket:            TicketLifetime,
			TypeAuthorizationCode: AuthorizationCodeLifetime,
			TypePasswordReset:     PasswordResetLifetime,
		},
	}
	for _, opt := range options {
		opt(i)
	}
	return i
}

func (i *Issuer) Repo() Repo {
	return i.repo
}

// Issue fills in id, timestamps and expiry of template and stores it. A new id is generated
// and the insert retried while the id collides within (tenant, type).
func (i *Issuer) Issue(ctx context.Context, template Code) (*Code, error) {
	generate, ok := i.generators[template.CodeType]
	if !ok {
		return nil, fmt.Errorf("[Issuer.Issue] unknown code type %q", template.CodeType)
	}

	now := i.now()
	for attempt := 0; attempt < MaxCreateAttempts; attempt++ {
		id, err := generate()
		if err != nil {
			return nil, fmt.Errorf("[Issuer.Issue] generate: %w", err)
		}
		code := template
		code.CodeID = id
		code.CreatedAt = now
		code.ExpiresAt = now.Add(i.lifetimes[template.CodeType])

		err = i.repo.Create(ctx, &code)
		if errors.Is(err, ErrCodeExists) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("[Issuer.Issue] create: %w", err)
		}
		return &code, nil
	}
	return nil, ErrCodeCollision
}

// Lookup returns an unexpired code without consuming it.
func (i *Issuer) Lookup(ctx context.Context, tenantID, codeID string, codeType CodeType) (*Code, error) {
	if codeID == "" {
		return nil, ErrCodeNotFound
	}
	code, err := i.repo.Get(ctx, tenantID, codeID, codeType)
	if err != nil {
		return nil, err
	}
	if code.Expired(i.now()) {
		return nil, ErrCodeNotFound
	}
	return code, nil
}

// Redeem fetches and deletes a code. Of two concurrent redemptions exactly one succeeds;
// the other gets ErrCodeNotFound.
func (i *Issuer) Redeem(ctx context.Context, tenantID, codeID string, codeType CodeType) (*Code, error) {
	code, err := i.Lookup(ctx, tenantID, codeID, codeType)
	if err != nil {
		return nil, err
	}
	if err := i.Consume(ctx, code); err != nil {
		return nil, err
	}
	return code, nil
}

// Consume deletes a code previously returned by Lookup. Flows that must finish other writes
// before invalidating the code call it last.
func (i *Issuer) Consume(ctx context.Context, code *Code) error {
	return i.repo.Remove(ctx, code.TenantID, code.CodeID, code.CodeType)
}
