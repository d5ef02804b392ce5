package auth

import (
	"context"
	"net/mail"
	"strings"

	"github.com/jrsteele09/go-auth-engine/clients"
	"github.com/jrsteele09/go-auth-engine/connections"
	apperrors "github.com/jrsteele09/go-auth-engine/internal/errors"
	"github.com/jrsteele09/go-auth-engine/users"
	"github.com/nyaruka/phonenumbers"
	"github.com/pkg/errors"
)

// IdentifierType is what a raw identifier was classified as.
type IdentifierType string

const (
	IdentifierEmail    IdentifierType = "email"
	IdentifierPhone    IdentifierType = "phone"
	IdentifierUsername IdentifierType = "username"
)

// Strategy is how the user proves the identifier.
type Strategy string

const (
	StrategyCode     Strategy = "code"
	StrategyPassword Strategy = "password"
)

// LoginSelectionCode forces the code strategy where a password would otherwise be used.
const LoginSelectionCode = "code"

// Identifier is a normalized, classified identifier.
type Identifier struct {
	Raw        string
	Normalized string
	Type       IdentifierType
}

// ClassifyIdentifier normalizes raw into an email address (lower-cased), an E.164 phone
// number (parsed with defaultCountry as the region hint) or a username.
func ClassifyIdentifier(raw, defaultCountry string) (Identifier, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Identifier{}, apperrors.Validation("username", "Enter your email address or phone number.")
	}

	if strings.Contains(trimmed, "@") {
		addr, err := mail.ParseAddress(trimmed)
		if err != nil || addr.Address != trimmed {
			return Identifier{}, apperrors.Validation("username", "Enter a valid email address.")
		}
		return Identifier{Raw: raw, Normalized: strings.ToLower(trimmed), Type: IdentifierEmail}, nil
	}

	if looksLikePhone(trimmed) {
		num, err := phonenumbers.Parse(trimmed, strings.ToUpper(defaultCountry))
		if err != nil || !phonenumbers.IsValidNumber(num) {
			return Identifier{}, apperrors.Validation("username", "Enter a valid phone number.")
		}
		return Identifier{Raw: raw, Normalized: phonenumbers.Format(num, phonenumbers.E164), Type: IdentifierPhone}, nil
	}

	if strings.ContainsAny(trimmed, " \t") {
		return Identifier{}, apperrors.Validation("username", "Usernames cannot contain spaces.")
	}
	return Identifier{Raw: raw, Normalized: strings.ToLower(trimmed), Type: IdentifierUsername}, nil
}

func looksLikePhone(s string) bool {
	digits := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' || r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		default:
			return false
		}
	}
	return digits >= 5
}

// Resolution is the outcome of strategy resolution for one identifier.
type Resolution struct {
	Identifier Identifier
	Connection *connections.Connection
	Provider   string
	Strategy   Strategy
	// User is the existing user, nil when the identifier would sign up.
	User *users.User
}

// ResolveStrategy picks the connection and strategy for identifier among the connections
// enabled for client. An existing user decides the connection; otherwise the first capable
// connection in the client's order is used.
func (as *AuthorizationService) ResolveStrategy(ctx context.Context, client *clients.Client, id Identifier, loginSelection string) (*Resolution, error) {
	candidates, err := as.candidateConnections(ctx, client, id.Type)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, apperrors.Validation("username", "This login method is not enabled for the application.")
	}

	res := &Resolution{Identifier: id, Connection: candidates[0]}
	for _, conn := range candidates {
		user, err := as.repos.Users.Find(ctx, client.TenantID, conn.Provider(), id.Normalized)
		if errors.Is(err, users.ErrUserNotFound) {
			continue
		}
		if err != nil {
			return nil, transient("[AuthorizationService.ResolveStrategy] Find", err)
		}
		res.Connection = conn
		res.User = user
		break
	}

	if res.Connection.IsPasswordRealm() && loginSelection == LoginSelectionCode {
		for _, conn := range candidates {
			if !conn.IsPasswordRealm() {
				res.Connection = conn
				break
			}
		}
	}

	res.Provider = res.Connection.Provider()
	res.Strategy = StrategyCode
	if res.Connection.IsPasswordRealm() {
		res.Strategy = StrategyPassword
	}
	return res, nil
}

func (as *AuthorizationService) candidateConnections(ctx context.Context, client *clients.Client, idType IdentifierType) ([]*connections.Connection, error) {
	var out []*connections.Connection
	for _, name := range client.Connections {
		conn, err := as.repos.Connections.GetByName(ctx, client.TenantID, name)
		if errors.Is(err, connections.ErrConnectionNotFound) {
			continue
		}
		if err != nil {
			return nil, transient("[AuthorizationService.candidateConnections] GetByName", err)
		}
		if connectionAccepts(conn, idType) {
			out = append(out, conn)
		}
	}
	return out, nil
}

func connectionAccepts(conn *connections.Connection, idType IdentifierType) bool {
	switch conn.Strategy {
	case connections.StrategyEmail:
		return idType == IdentifierEmail
	case connections.StrategySMS:
		return idType == IdentifierPhone
	case connections.StrategyPassword:
		return idType == IdentifierEmail || (idType == IdentifierUsername && conn.Options.RequiresUsername)
	default:
		return false
	}
}
