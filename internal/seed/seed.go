package seed

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jrsteele09/go-auth-engine/clients"
	"github.com/jrsteele09/go-auth-engine/connections"
	"github.com/jrsteele09/go-auth-engine/hooks"
	"github.com/jrsteele09/go-auth-engine/organizations"
	"github.com/jrsteele09/go-auth-engine/resourceservers"
	"github.com/jrsteele09/go-auth-engine/tenants"
	"github.com/jrsteele09/go-auth-engine/token"
	"github.com/jrsteele09/go-auth-engine/users"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// User is the seed representation of a user with an optional plain text password.
type User struct {
	ID            string `yaml:"id"`
	TenantID      string `yaml:"tenant_id"`
	Connection    string `yaml:"connection"`
	Email         string `yaml:"email"`
	EmailVerified bool   `yaml:"email_verified"`
	PhoneNumber   string `yaml:"phone_number"`
	Username      string `yaml:"username"`
	Name          string `yaml:"name"`
	LinkedTo      string `yaml:"linked_to"`
	Blocked       bool   `yaml:"blocked"`
	Password      string `yaml:"password"`
}

type Organization struct {
	organizations.Organization `yaml:",inline"`
	Members                    []string `yaml:"members"`
}

type Rules struct {
	TenantID    string `yaml:"tenant_id"`
	hooks.Rules `yaml:",inline"`
}

// File is the layout of a seed file.
type File struct {
	Tenants         []tenants.Tenant                 `yaml:"tenants"`
	Clients         []clients.Client                 `yaml:"clients"`
	Connections     []connections.Connection         `yaml:"connections"`
	Users           []User                           `yaml:"users"`
	Organizations   []Organization                   `yaml:"organizations"`
	ResourceServers []resourceservers.ResourceServer `yaml:"resource_servers"`
	Permissions     []resourceservers.UserPermission `yaml:"permissions"`
	ClientGrants    []resourceservers.ClientGrant    `yaml:"client_grants"`
	Forms           []hooks.Form                     `yaml:"forms"`
	Hooks           []Rules                          `yaml:"hooks"`
}

// Targets are the stores a seed file is written into.
type Targets struct {
	Tenants         tenants.Repo
	Clients         clients.Repo
	Connections     connections.Repo
	Users           users.UserRepo
	Passwords       users.PasswordRepo
	Organizations   organizations.Repo
	ResourceServers resourceservers.Repo
	Permissions     resourceservers.PermissionRepo
	ClientGrants    resourceservers.ClientGrantRepo
	Forms           hooks.FormRepo
	Gate            *hooks.RulesGate
}

func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &f, nil
}

// Apply writes every record in f. Tenants without key material get fresh keys.
func Apply(ctx context.Context, f *File, t Targets) error {
	for i := range f.Tenants {
		tenant := f.Tenants[i]
		if _, err := token.EnsureTenantKeys(&tenant); err != nil {
			return fmt.Errorf("tenant %s keys: %w", tenant.ID, err)
		}
		if err := t.Tenants.Upsert(ctx, &tenant); err != nil {
			return fmt.Errorf("tenant %s: %w", tenant.ID, err)
		}
	}
	for i := range f.Clients {
		if err := t.Clients.Upsert(ctx, &f.Clients[i]); err != nil {
			return fmt.Errorf("client %s: %w", f.Clients[i].ID, err)
		}
	}
	for i := range f.Connections {
		if err := t.Connections.Upsert(ctx, &f.Connections[i]); err != nil {
			return fmt.Errorf("connection %s: %w", f.Connections[i].Name, err)
		}
	}
	for _, su := range f.Users {
		if err := applyUser(ctx, su, t); err != nil {
			return fmt.Errorf("user %s: %w", su.ID, err)
		}
	}
	if t.Organizations != nil {
		for _, so := range f.Organizations {
			org := so.Organization
			if err := t.Organizations.Upsert(ctx, &org); err != nil {
				return fmt.Errorf("organization %s: %w", org.Name, err)
			}
			for _, userID := range so.Members {
				if err := t.Organizations.AddMember(ctx, &organizations.Member{
					TenantID:       org.TenantID,
					OrganizationID: org.ID,
					UserID:         userID,
					Verified:       true,
					JoinedAt:       time.Now(),
				}); err != nil {
					return fmt.Errorf("organization %s member %s: %w", org.Name, userID, err)
				}
			}
		}
	}
	if t.ResourceServers != nil {
		for i := range f.ResourceServers {
			if err := t.ResourceServers.Upsert(ctx, &f.ResourceServers[i]); err != nil {
				return fmt.Errorf("resource server %s: %w", f.ResourceServers[i].Identifier, err)
			}
		}
	}
	if t.Permissions != nil {
		for i := range f.Permissions {
			if err := t.Permissions.Add(ctx, &f.Permissions[i]); err != nil {
				return fmt.Errorf("permission %s: %w", f.Permissions[i].Permission, err)
			}
		}
	}
	if t.ClientGrants != nil {
		for i := range f.ClientGrants {
			if err := t.ClientGrants.Upsert(ctx, &f.ClientGrants[i]); err != nil {
				return fmt.Errorf("client grant %s: %w", f.ClientGrants[i].ClientID, err)
			}
		}
	}
	if t.Forms != nil {
		for i := range f.Forms {
			if err := t.Forms.Upsert(ctx, &f.Forms[i]); err != nil {
				return fmt.Errorf("form %s: %w", f.Forms[i].ID, err)
			}
		}
	}
	if t.Gate != nil {
		for _, r := range f.Hooks {
			t.Gate.SetRules(r.TenantID, r.Rules)
		}
	}
	log.Info().Int("tenants", len(f.Tenants)).Int("clients", len(f.Clients)).Int("users", len(f.Users)).Msg("seed applied")
	return nil
}

func applyUser(ctx context.Context, su User, t Targets) error {
	conn, err := t.Connections.GetByName(ctx, su.TenantID, su.Connection)
	if err != nil {
		return fmt.Errorf("connection %q: %w", su.Connection, err)
	}
	now := time.Now()
	user := &users.User{
		ID:            su.ID,
		TenantID:      su.TenantID,
		Provider:      conn.Provider(),
		Connection:    conn.Name,
		Email:         su.Email,
		EmailVerified: su.EmailVerified,
		PhoneNumber:   su.PhoneNumber,
		PhoneVerified: su.PhoneNumber != "",
		Username:      su.Username,
		Name:          su.Name,
		LinkedTo:      su.LinkedTo,
		Blocked:       su.Blocked,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := t.Users.Create(ctx, user); err != nil {
		return err
	}
	if su.Password == "" || t.Passwords == nil {
		return nil
	}
	hash, err := users.HashPassword(su.Password)
	if err != nil {
		return err
	}
	return t.Passwords.Create(ctx, &users.Password{TenantID: su.TenantID, UserID: user.ID, Hash: hash, CreatedAt: now})
}
