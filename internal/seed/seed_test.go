package seed_test

import (
	"context"
	"testing"
	"time"

	clientrepofakes "github.com/jrsteele09/go-auth-engine/clients/repofakes"
	connectionrepofakes "github.com/jrsteele09/go-auth-engine/connections/repofakes"
	"github.com/jrsteele09/go-auth-engine/hooks"
	"github.com/jrsteele09/go-auth-engine/internal/seed"
	"github.com/jrsteele09/go-auth-engine/organizations"
	organizationrepofakes "github.com/jrsteele09/go-auth-engine/organizations/repofakes"
	tenantrepofakes "github.com/jrsteele09/go-auth-engine/tenants/repofakes"
	"github.com/jrsteele09/go-auth-engine/users"
	userrepofakes "github.com/jrsteele09/go-auth-engine/users/repofakes"
	"github.com/stretchr/testify/require"
)

const seedYAML = `
tenants:
  - id: acme
    name: Acme
    issuer: https://acme.example.com/
    signer_type: HS256
    login_session_lifetime: 30m
clients:
  - id: spa
    tenant_id: acme
    type: public
    redirect_uris: [https://app.acme.example.com/callback]
    connections: [email, Username-Password-Authentication]
connections:
  - tenant_id: acme
    name: email
    strategy: email
  - tenant_id: acme
    name: Username-Password-Authentication
    strategy: Username-Password-Authentication
users:
  - id: auth2|alice
    tenant_id: acme
    connection: Username-Password-Authentication
    email: alice@acme.example.com
    email_verified: true
    password: Sup3rSecret
organizations:
  - id: org_1
    tenant_id: acme
    name: engineering
    members: [auth2|alice]
forms:
  - id: terms
    tenant_id: acme
    nodes:
      - id: accept
hooks:
  - tenant_id: acme
    denied_signup_domains: [spam.example]
`

func TestApplySeedFile(t *testing.T) {
	ctx := context.Background()
	f, err := seed.Parse([]byte(seedYAML))
	require.NoError(t, err)

	tenantRepo := tenantrepofakes.NewFakeTenantRepo()
	userRepo := userrepofakes.NewFakeUserRepo()
	passwordRepo := userrepofakes.NewFakePasswordRepo()
	orgRepo := organizationrepofakes.NewFakeOrganizationRepo()
	forms := hooks.NewInMemoryFormRepo()
	gate := hooks.NewRulesGate(forms)

	require.NoError(t, seed.Apply(ctx, f, seed.Targets{
		Tenants:       tenantRepo,
		Clients:       clientrepofakes.NewFakeClientRepo(),
		Connections:   connectionrepofakes.NewFakeConnectionRepo(),
		Users:         userRepo,
		Passwords:     passwordRepo,
		Organizations: orgRepo,
		Forms:         forms,
		Gate:          gate,
	}))

	tenant, err := tenantRepo.Get(ctx, "acme")
	require.NoError(t, err)
	require.NotEmpty(t, tenant.HMACSecret)
	require.Equal(t, 30*time.Minute, tenant.GetLoginSessionLifetime())

	alice, err := userRepo.Get(ctx, "acme", "auth2|alice")
	require.NoError(t, err)
	require.Equal(t, "auth2", alice.Provider)

	pw, err := passwordRepo.Get(ctx, "acme", "auth2|alice")
	require.NoError(t, err)
	require.True(t, users.CheckPasswordHash("Sup3rSecret", pw.Hash))

	member, err := organizations.IsVerifiedMember(ctx, orgRepo, "acme", "org_1", "auth2|alice")
	require.NoError(t, err)
	require.True(t, member)

	d, err := gate.ValidateSignupEmail(ctx, hooks.SignupRequest{TenantID: "acme", Email: "x@spam.example"})
	require.NoError(t, err)
	require.Equal(t, hooks.ActionDeny, d.Action)
}
