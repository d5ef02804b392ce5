package token

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-engine/resourceservers"
	"github.com/jrsteele09/go-auth-engine/tenants"
	"github.com/jrsteele09/go-auth-engine/users"
	"github.com/pkg/errors"
)

var ErrJWKSUnsupported = errors.New("JWKS only supported for RSA signing")

// IDTokenRequest describes the id token issued to a client for an authenticated user.
type IDTokenRequest struct {
	User      *users.User
	ClientID  string
	Nonce     string
	SessionID string
	OrgID     string
	AuthTime  time.Time
}

// AccessTokenRequest describes an access token. Subject is the user id, or the client id
// for client credentials tokens. ActorID is set when the token is issued under impersonation.
type AccessTokenRequest struct {
	Subject   string
	ClientID  string
	Audience  string
	Claims    resourceservers.AccessClaims
	SessionID string
	OrgID     string
	ActorID   string
	GrantType string
}

// Manager issues and verifies tenant-signed JWTs.
type Manager struct {
	accessTokenExpiry time.Duration
	idTokenExpiry     time.Duration
	nowFunc           func() time.Time

	mu      sync.Mutex
	signers map[string]Signer // tenantID|signerType|keyID -> Signer
}

type ManagerOption func(*Manager)

func WithTokenExpiry(accessTokenExpiry, idTokenExpiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = accessTokenExpiry
		m.idTokenExpiry = idTokenExpiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func New(options ...ManagerOption) *Manager {
	m := &Manager{
		signers: make(map[string]Signer),
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	if m.accessTokenExpiry == 0 {
		m.accessTokenExpiry = time.Hour
	}
	if m.idTokenExpiry == 0 {
		m.idTokenExpiry = time.Hour
	}
	return m
}

func (m *Manager) AccessTokenExpiry() time.Duration {
	return m.accessTokenExpiry
}

// Signer returns the tenant's signer, building it on first use.
func (m *Manager) Signer(tenant *tenants.Tenant) (Signer, error) {
	key := fmt.Sprintf("%s|%s|%s", tenant.ID, tenant.SignerType, tenant.KeyID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if signer, ok := m.signers[key]; ok {
		return signer, nil
	}
	signer, err := NewSignerForTenant(tenant)
	if err != nil {
		return nil, err
	}
	m.signers[key] = signer
	return signer, nil
}

func (m *Manager) CreateIDToken(tenant *tenants.Tenant, req IDTokenRequest) (string, error) {
	if req.User == nil {
		return "", errors.New("[Manager.CreateIDToken] user is required")
	}
	now := m.nowFunc()
	user := req.User
	claims := jwt.MapClaims{
		"iss": tenant.Issuer,
		"sub": user.ID,
		"aud": req.ClientID,
		"iat": now.Unix(),
		"exp": now.Add(m.idTokenExpiry).Unix(),
		"jti": uuid.New().String(),
	}
	if !req.AuthTime.IsZero() {
		claims["auth_time"] = req.AuthTime.Unix()
	}
	setIfNotEmpty(claims, "nonce", req.Nonce)
	setIfNotEmpty(claims, "sid", req.SessionID)
	setIfNotEmpty(claims, "org_id", req.OrgID)
	setIfNotEmpty(claims, "name", user.DisplayName())
	setIfNotEmpty(claims, "given_name", user.GivenName)
	setIfNotEmpty(claims, "family_name", user.FamilyName)
	setIfNotEmpty(claims, "nickname", user.Username)
	setIfNotEmpty(claims, "picture", user.Picture)
	setIfNotEmpty(claims, "locale", user.Locale)
	if user.Email != "" {
		claims["email"] = user.Email
		claims["email_verified"] = user.EmailVerified
	}
	if user.PhoneNumber != "" {
		claims["phone_number"] = user.PhoneNumber
		claims["phone_number_verified"] = user.PhoneVerified
	}
	if !user.UpdatedAt.IsZero() {
		claims["updated_at"] = user.UpdatedAt.UTC().Format(time.RFC3339)
	}
	return m.sign(tenant, claims)
}

func (m *Manager) CreateAccessToken(tenant *tenants.Tenant, req AccessTokenRequest) (string, error) {
	now := m.nowFunc()
	audience := req.Audience
	if audience == "" {
		audience = tenant.Audience
	}
	claims := jwt.MapClaims{
		"iss": tenant.Issuer,
		"sub": req.Subject,
		"azp": req.ClientID,
		"iat": now.Unix(),
		"exp": now.Add(m.accessTokenExpiry).Unix(),
		"jti": uuid.New().String(),
	}
	if audience != "" {
		claims["aud"] = audience
	}
	if req.Claims.IncludePermissions {
		permissions := req.Claims.Permissions
		if permissions == nil {
			permissions = []string{}
		}
		claims["permissions"] = permissions
	}
	if req.Claims.IncludePermissions || len(req.Claims.Scope) > 0 {
		claims["scope"] = strings.Join(req.Claims.Scope, " ")
	}
	setIfNotEmpty(claims, "sid", req.SessionID)
	setIfNotEmpty(claims, "org_id", req.OrgID)
	setIfNotEmpty(claims, "gty", req.GrantType)
	if req.ActorID != "" {
		claims["act"] = map[string]any{"sub": req.ActorID}
	}
	return m.sign(tenant, claims)
}

// Verify parses a token signed by tenant and checks its issuer and expiry.
func (m *Manager) Verify(tenant *tenants.Tenant, rawToken string) (jwt.MapClaims, error) {
	signer, err := m.Signer(tenant)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.Verify] Signer")
	}
	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(rawToken, claims, signer.VerificationKey,
		jwt.WithValidMethods([]string{signer.Method().Alg()}),
		jwt.WithIssuer(tenant.Issuer),
		jwt.WithTimeFunc(m.nowFunc),
	)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.Verify] ParseWithClaims")
	}
	return claims, nil
}

// JWKS returns the tenant's public signing keys. HMAC tenants have none to publish.
func (m *Manager) JWKS(tenant *tenants.Tenant) (*JWKS, error) {
	signer, err := m.Signer(tenant)
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.JWKS] Signer")
	}
	rsaSigner, ok := signer.(*RSASigner)
	if !ok {
		return nil, ErrJWKSUnsupported
	}
	return rsaSigner.JWKS(), nil
}

func (m *Manager) sign(tenant *tenants.Tenant, claims jwt.MapClaims) (string, error) {
	signer, err := m.Signer(tenant)
	if err != nil {
		return "", errors.Wrap(err, "[Manager.sign] Signer")
	}
	return signer.Sign(claims)
}

func setIfNotEmpty(claims jwt.MapClaims, name, value string) {
	if value != "" {
		claims[name] = value
	}
}
