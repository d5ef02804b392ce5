package users

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrUserExists       = errors.New("user already exists")
	ErrPasswordNotFound = errors.New("password not found")
)

// AppMetadata is engine-owned data kept on the user record.
type AppMetadata struct {
	// FailedLogins holds failure timestamps in unix milliseconds. It is only meaningful
	// on the primary user of a linking chain.
	FailedLogins []int64 `json:"failed_logins,omitempty"`
}

type User struct {
	ID         string `json:"id,omitempty"`
	TenantID   string `json:"tenant_id"`
	Provider   string `json:"provider"`   // "email", "sms", "auth2" or "oidc"
	Connection string `json:"connection"` // connection name
	// Subject is the identifier at the upstream provider for federated users.
	Subject string `json:"subject,omitempty"`

	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified"`
	PhoneNumber   string `json:"phone_number,omitempty"`
	PhoneVerified bool   `json:"phone_verified"`
	Username      string `json:"username,omitempty"`

	Name       string `json:"name,omitempty"`
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
	Picture    string `json:"picture,omitempty"`
	Locale     string `json:"locale,omitempty"`

	// LinkedTo points at the primary user when this identity has been linked.
	LinkedTo string `json:"linked_to,omitempty"`

	Blocked      bool              `json:"blocked,omitempty"`
	AppMetadata  AppMetadata       `json:"app_metadata"`
	UserMetadata map[string]string `json:"user_metadata,omitempty"`

	LastLogin  *time.Time `json:"last_login,omitempty"`
	LastIP     string     `json:"last_ip,omitempty"`
	LoginCount int        `json:"login_count"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// IsPrimary reports whether the user is the root of its linking chain.
func (u *User) IsPrimary() bool {
	return u.LinkedTo == ""
}

// Identifier returns the value the user types to log in for the user's provider.
func (u *User) Identifier() string {
	switch {
	case u.Provider == "sms":
		return u.PhoneNumber
	case u.Email != "":
		return u.Email
	default:
		return u.Username
	}
}

// Matches reports whether identifier (already normalized) is one of the user's login identifiers.
func (u *User) Matches(identifier string) bool {
	if identifier == "" {
		return false
	}
	return strings.EqualFold(u.Email, identifier) ||
		u.PhoneNumber == identifier ||
		strings.EqualFold(u.Username, identifier)
}

func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if name := strings.TrimSpace(u.GivenName + " " + u.FamilyName); name != "" {
		return name
	}
	return u.Identifier()
}
