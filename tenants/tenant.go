package tenants

import (
	"errors"
	"time"
)

var ErrTenantNotFound = errors.New("tenant not found")

// SignerType selects how tokens issued for the tenant are signed.
type SignerType string

const (
	SignerTypeHMAC  SignerType = "HS256"
	SignerTypeRS256 SignerType = "RS256"
)

// Default lifetimes used when the tenant does not override them.
const (
	DefaultLoginSessionLifetime = time.Hour
	DefaultSessionLifetime      = 30 * 24 * time.Hour
	DefaultIdleSessionLifetime  = 3 * 24 * time.Hour
)

// Tenant represents an isolated identity domain with its own issuer and signing key.
type Tenant struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Issuer   string `json:"issuer" yaml:"issuer"`     // e.g. "https://acme.auth.example.com/"
	Audience string `json:"audience" yaml:"audience"` // default access token audience

	// ManagementAudience is the resource server whose permissions govern admin actions such as impersonation.
	ManagementAudience string `json:"management_audience,omitempty" yaml:"management_audience"`

	SignerType    SignerType `json:"signer_type" yaml:"signer_type"`
	KeyID         string     `json:"key_id,omitempty" yaml:"key_id"`
	HMACSecret    string     `json:"-" yaml:"hmac_secret"`
	PrivateKeyPEM string     `json:"-" yaml:"private_key_pem"`

	LoginSessionLifetime time.Duration `json:"login_session_lifetime,omitempty" yaml:"login_session_lifetime"`
	SessionLifetime      time.Duration `json:"session_lifetime,omitempty" yaml:"session_lifetime"`
	IdleSessionLifetime  time.Duration `json:"idle_session_lifetime,omitempty" yaml:"idle_session_lifetime"`

	// DefaultCountry is the ISO 3166 region used to parse phone numbers without a country code.
	DefaultCountry string `json:"default_country,omitempty" yaml:"default_country"`
	DefaultLocale  string `json:"default_locale,omitempty" yaml:"default_locale"`

	// Texts overrides login page texts per language, e.g. Texts["en"]["login.title"].
	Texts map[string]map[string]string `json:"texts,omitempty" yaml:"texts"`
}

func (t *Tenant) GetLoginSessionLifetime() time.Duration {
	if t.LoginSessionLifetime > 0 {
		return t.LoginSessionLifetime
	}
	return DefaultLoginSessionLifetime
}

func (t *Tenant) GetSessionLifetime() time.Duration {
	if t.SessionLifetime > 0 {
		return t.SessionLifetime
	}
	return DefaultSessionLifetime
}

func (t *Tenant) GetIdleSessionLifetime() time.Duration {
	if t.IdleSessionLifetime > 0 {
		return t.IdleSessionLifetime
	}
	return DefaultIdleSessionLifetime
}

func (t *Tenant) GetDefaultCountry() string {
	if t.DefaultCountry != "" {
		return t.DefaultCountry
	}
	return "US"
}
