package driven

import (
	"context"
	"time"
)

// Locker grants short-lived exclusive leases on named keys.
// Leases expire on their own so a crashed holder never blocks forever.
type Locker interface {
	// Acquire takes the lease for key. It returns domain.ErrLockHeld when
	// another holder owns it. The returned release func is safe to call
	// more than once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}
