package auth

import (
	"context"
	"time"

	"github.com/jrsteele09/go-auth-engine/users"
	"github.com/pkg/errors"
)

const (
	LockoutWindow    = 5 * time.Minute
	LockoutThreshold = 3
	maxLinkDepth     = 8
)

// LockoutTracker keeps failed password attempts on the primary user of a linking chain.
//
// Updates are read-modify-write on the user record without a compare-and-swap, so two
// concurrent failures can read the same list and one append is lost. The count is an
// approximation under concurrency.
type LockoutTracker struct {
	users     users.UserRepo
	now       func() time.Time
	window    time.Duration
	threshold int
}

func NewLockoutTracker(repo users.UserRepo, now func() time.Time) *LockoutTracker {
	return &LockoutTracker{users: repo, now: now, window: LockoutWindow, threshold: LockoutThreshold}
}

// Primary follows LinkedTo pointers from user to the root of its chain.
func (l *LockoutTracker) Primary(ctx context.Context, user *users.User) (*users.User, error) {
	current := user
	for depth := 0; !current.IsPrimary(); depth++ {
		if depth == maxLinkDepth {
			return nil, errors.Errorf("[LockoutTracker.Primary] linking chain of %s is too deep", user.ID)
		}
		next, err := l.users.Get(ctx, current.TenantID, current.LinkedTo)
		if err != nil {
			return nil, errors.Wrap(err, "[LockoutTracker.Primary] Get")
		}
		current = next
	}
	return current, nil
}

// IsLockedOut reports whether primary has reached the threshold within the window.
func (l *LockoutTracker) IsLockedOut(primary *users.User) bool {
	return len(l.recent(primary.AppMetadata.FailedLogins)) >= l.threshold
}

// RecordFailure prunes old entries, appends now and stores the list. It returns the number
// of failures inside the window.
func (l *LockoutTracker) RecordFailure(ctx context.Context, primary *users.User) (int, error) {
	failures := append(l.recent(primary.AppMetadata.FailedLogins), l.now().UnixMilli())
	primary.AppMetadata.FailedLogins = failures
	primary.UpdatedAt = l.now()
	if err := l.users.Update(ctx, primary); err != nil {
		return 0, errors.Wrap(err, "[LockoutTracker.RecordFailure] Update")
	}
	return len(failures), nil
}

// Clear empties the failure list after a successful login.
func (l *LockoutTracker) Clear(ctx context.Context, primary *users.User) error {
	if len(primary.AppMetadata.FailedLogins) == 0 {
		return nil
	}
	primary.AppMetadata.FailedLogins = []int64{}
	primary.UpdatedAt = l.now()
	if err := l.users.Update(ctx, primary); err != nil {
		return errors.Wrap(err, "[LockoutTracker.Clear] Update")
	}
	return nil
}

func (l *LockoutTracker) recent(failures []int64) []int64 {
	cutoff := l.now().Add(-l.window).UnixMilli()
	out := make([]int64, 0, len(failures)+1)
	for _, ts := range failures {
		if ts > cutoff {
			out = append(out, ts)
		}
	}
	return out
}
