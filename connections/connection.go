package connections

import "errors"

var ErrConnectionNotFound = errors.New("connection not found")

// Strategy is the kind of credential a connection verifies.
type Strategy string

const (
	StrategyEmail    Strategy = "email"                            // passwordless email
	StrategySMS      Strategy = "sms"                              // passwordless SMS
	StrategyPassword Strategy = "Username-Password-Authentication" // database connection with passwords
	StrategyOIDC     Strategy = "oidc"                             // upstream OpenID Connect provider
)

// AuthenticationMethod is how a passwordless email connection delivers its credential.
type AuthenticationMethod string

const (
	MethodCode      AuthenticationMethod = "code"
	MethodMagicLink AuthenticationMethod = "magic_link"
)

// Provider names stored on users created through each strategy.
const (
	ProviderEmail    = "email"
	ProviderSMS      = "sms"
	ProviderPassword = "auth2"
	ProviderOIDC     = "oidc"
)

type Options struct {
	AuthenticationMethod AuthenticationMethod `json:"authentication_method,omitempty" yaml:"authentication_method"`

	// RequiresUsername allows plain usernames as identifiers on password connections.
	RequiresUsername bool `json:"requires_username,omitempty" yaml:"requires_username"`

	// Upstream OIDC settings.
	Issuer       string   `json:"issuer,omitempty" yaml:"issuer"`
	ClientID     string   `json:"client_id,omitempty" yaml:"client_id"`
	ClientSecret string   `json:"-" yaml:"client_secret"`
	Scopes       []string `json:"scopes,omitempty" yaml:"scopes"`
}

type Connection struct {
	ID       string   `json:"id" yaml:"id"`
	TenantID string   `json:"tenant_id" yaml:"tenant_id"`
	Name     string   `json:"name" yaml:"name"`
	Strategy Strategy `json:"strategy" yaml:"strategy"`
	Options  Options  `json:"options" yaml:"options"`
	// DisplayName is shown on login buttons. Name is used when empty.
	DisplayName string `json:"display_name,omitempty" yaml:"display_name"`
}

func (c *Connection) Label() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.Name
}

// Provider returns the provider name users of this connection are stored under.
func (c *Connection) Provider() string {
	switch c.Strategy {
	case StrategyEmail:
		return ProviderEmail
	case StrategySMS:
		return ProviderSMS
	case StrategyPassword:
		return ProviderPassword
	default:
		return ProviderOIDC
	}
}

func (c *Connection) IsPasswordRealm() bool {
	return c.Strategy == StrategyPassword
}

func (c *Connection) UsesMagicLink() bool {
	return c.Strategy == StrategyEmail && c.Options.AuthenticationMethod == MethodMagicLink
}
