package domain

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusBanned   Status = "banned"
)

// User is the account record. PasswordHash is only populated by reads
// that explicitly request secrets; every other read path leaves it
// empty so it cannot leak through generic serialization.
type User struct {
	ID                  string
	Name                string
	Email               string
	PasswordHash        string
	Role                Role
	Status              Status
	IsVerified          bool
	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastLogin           *time.Time
	LastPasswordChange  *time.Time
	IsDeleted           bool
	DeletedAt           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Locked reports whether the account's lockout window is still open.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// Session is the server-side record of one issued, still-valid refresh
// token. Deleting the row is what revokes the token.
type Session struct {
	ID        string
	UserID    string
	Token     string
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

// LoginEntry is one entry in the bounded per-user login history.
type LoginEntry struct {
	IPAddress string
	UserAgent string
	LoginAt   time.Time
}
