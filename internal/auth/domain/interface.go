package domain

//go:generate mockgen -destination=../../mocks/mock_repository.go -package=mocks github.com/devAO-bit/my-auth/internal/auth/domain UserRepository

import (
	"context"
	"time"
)

// UserRepository is the persistence boundary for accounts, sessions and
// login history. All reads exclude soft-deleted users. Methods that
// touch per-user session or history lists apply their filter-then-append
// logic atomically so concurrent requests cannot lose updates.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	// GetByEmail returns the user without secrets, or nil when absent.
	GetByEmail(ctx context.Context, email string) (*User, error)
	// GetByEmailWithSecrets is the only read that includes the password
	// hash. Callers must opt in explicitly.
	GetByEmailWithSecrets(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)

	// RecordFailedLogin atomically increments the failure counter and
	// stamps locked_until once the counter reaches threshold.
	RecordFailedLogin(ctx context.Context, userID string, threshold int, lockUntil time.Time) error
	// RecordSuccessfulLogin resets the failure counter, clears the lock,
	// stamps last_login and appends a history entry, pruning the history
	// to historyLimit entries (oldest dropped).
	RecordSuccessfulLogin(ctx context.Context, userID string, entry LoginEntry, historyLimit int) error

	// StoreSession removes any session with the identical token value,
	// inserts the new session and prunes the user's sessions to
	// maxSessions (oldest evicted), all in one transaction.
	StoreSession(ctx context.Context, session *Session, maxSessions int) error
	// DeleteSession removes the matching session and reports whether a
	// row was removed. Absence is not an error.
	DeleteSession(ctx context.Context, userID, token string) (bool, error)
	DeleteAllSessions(ctx context.Context, userID string) error
	SessionExists(ctx context.Context, userID, token string) (bool, error)
}
