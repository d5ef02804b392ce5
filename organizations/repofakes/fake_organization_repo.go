package organizationrepofakes

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-engine/organizations"
)

var _ organizations.Repo = (*FakeOrganizationRepo)(nil)

type FakeOrganizationRepo struct {
	orgs    map[string]organizations.Organization
	members map[string]organizations.Member // tenant|org|user
	lock    sync.RWMutex
}

func NewFakeOrganizationRepo() *FakeOrganizationRepo {
	return &FakeOrganizationRepo{
		orgs:    make(map[string]organizations.Organization),
		members: make(map[string]organizations.Member),
	}
}

func (r *FakeOrganizationRepo) Upsert(_ context.Context, org *organizations.Organization) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if org.ID == "" {
		org.ID = "org_" + uuid.New().String()
	}
	r.orgs[org.ID] = *org
	return nil
}

func (r *FakeOrganizationRepo) Get(_ context.Context, tenantID, idOrName string) (*organizations.Organization, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if o, ok := r.orgs[idOrName]; ok && o.TenantID == tenantID {
		return &o, nil
	}
	for _, o := range r.orgs {
		if o.TenantID == tenantID && o.Name == idOrName {
			return &o, nil
		}
	}
	return nil, organizations.ErrOrganizationNotFound
}

func (r *FakeOrganizationRepo) AddMember(_ context.Context, member *organizations.Member) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.members[member.TenantID+"|"+member.OrganizationID+"|"+member.UserID] = *member
	return nil
}

func (r *FakeOrganizationRepo) GetMember(_ context.Context, tenantID, organizationID, userID string) (*organizations.Member, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	m, ok := r.members[tenantID+"|"+organizationID+"|"+userID]
	if !ok {
		return nil, organizations.ErrMemberNotFound
	}
	return &m, nil
}
