package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/devAO-bit/my-auth/internal/auth/domain"
)

func TestLockoutPolicy_Locked(t *testing.T) {
	policy := NewLockoutPolicy(5, time.Hour)
	now := time.Now()

	t.Run("never locked", func(t *testing.T) {
		user := &domain.User{}
		assert.False(t, policy.Locked(user, now))
	})

	t.Run("lock window open", func(t *testing.T) {
		until := now.Add(30 * time.Minute)
		user := &domain.User{FailedLoginAttempts: 5, LockedUntil: &until}
		assert.True(t, policy.Locked(user, now))
	})

	t.Run("lock window elapsed", func(t *testing.T) {
		until := now.Add(-time.Minute)
		user := &domain.User{FailedLoginAttempts: 5, LockedUntil: &until}
		assert.False(t, policy.Locked(user, now))
	})

	t.Run("boundary is exclusive", func(t *testing.T) {
		until := now
		user := &domain.User{LockedUntil: &until}
		assert.False(t, policy.Locked(user, now))
	})
}

func TestLockoutPolicy_LockDeadline(t *testing.T) {
	policy := NewLockoutPolicy(5, time.Hour)
	now := time.Now()

	assert.Equal(t, now.Add(time.Hour), policy.LockDeadline(now))
}
