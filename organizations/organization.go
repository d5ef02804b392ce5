package organizations

import (
	"context"
	"errors"
	"time"
)

var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrMemberNotFound       = errors.New("member not found")
)

type Organization struct {
	ID          string `json:"id" yaml:"id"`
	TenantID    string `json:"tenant_id" yaml:"tenant_id"`
	Name        string `json:"name" yaml:"name"`
	DisplayName string `json:"display_name,omitempty" yaml:"display_name"`
}

// Member is a user's membership of an organization. Only verified memberships count.
type Member struct {
	TenantID       string    `json:"tenant_id" yaml:"tenant_id"`
	OrganizationID string    `json:"organization_id" yaml:"organization_id"`
	UserID         string    `json:"user_id" yaml:"user_id"`
	Verified       bool      `json:"verified" yaml:"verified"`
	Roles          []string  `json:"roles,omitempty" yaml:"roles"`
	JoinedAt       time.Time `json:"joined_at" yaml:"joined_at"`
}

type Repo interface {
	Upsert(ctx context.Context, org *Organization) error
	// Get resolves an organization by id or by name.
	Get(ctx context.Context, tenantID, idOrName string) (*Organization, error)
	AddMember(ctx context.Context, member *Member) error
	GetMember(ctx context.Context, tenantID, organizationID, userID string) (*Member, error)
}

// IsVerifiedMember reports whether userID is a verified member of organizationID.
func IsVerifiedMember(ctx context.Context, repo Repo, tenantID, organizationID, userID string) (bool, error) {
	member, err := repo.GetMember(ctx, tenantID, organizationID, userID)
	if errors.Is(err, ErrMemberNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return member.Verified, nil
}
