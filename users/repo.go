package users

import "context"

type UserRepo interface {
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, tenantID, userID string) error
	Get(ctx context.Context, tenantID, userID string) (*User, error)
	// Find looks a user up by provider and normalized identifier (email, phone or username).
	Find(ctx context.Context, tenantID, provider, identifier string) (*User, error)
	// FindBySubject looks a federated user up by connection and upstream subject.
	FindBySubject(ctx context.Context, tenantID, connection, subject string) (*User, error)
	ListByEmail(ctx context.Context, tenantID, email string) ([]*User, error)
}

type PasswordRepo interface {
	Get(ctx context.Context, tenantID, userID string) (*Password, error)
	Create(ctx context.Context, password *Password) error
	Remove(ctx context.Context, tenantID, userID string) error
}
