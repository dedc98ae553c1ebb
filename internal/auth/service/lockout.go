package service

import (
	"time"

	"github.com/devAO-bit/my-auth/internal/auth/domain"
)

// LockoutPolicy decides when an account transitions between unlocked
// and locked. The counter and lock deadline themselves live on the
// users row so the state survives restarts; the atomic increment is
// done by the repository.
type LockoutPolicy struct {
	Threshold    int
	LockDuration time.Duration
}

func NewLockoutPolicy(threshold int, lockDuration time.Duration) LockoutPolicy {
	return LockoutPolicy{Threshold: threshold, LockDuration: lockDuration}
}

// Locked reports whether login attempts must be rejected without a
// password check.
func (p LockoutPolicy) Locked(u *domain.User, now time.Time) bool {
	return u.Locked(now)
}

// LockDeadline is the lock expiry to stamp when the failure that is
// about to be recorded reaches the threshold.
func (p LockoutPolicy) LockDeadline(now time.Time) time.Time {
	return now.Add(p.LockDuration)
}
