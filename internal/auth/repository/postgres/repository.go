package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/devAO-bit/my-auth/internal/auth/domain"
	autherror "github.com/devAO-bit/my-auth/internal/errors"
)

const uniqueViolation = "23505"

// DBTX is the subset of pgxpool.Pool the repository needs. Tests
// substitute a pgxmock pool.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PostgresRepository struct {
	db DBTX
}

func NewPostgresRepository(db DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Soft-deleted rows are excluded by every read; the predicate is spelled
// out in each statement rather than hidden in a helper.
const userColumns = `id, name, email, role, status, is_verified,
		failed_login_attempts, locked_until, last_login, last_password_change,
		created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, user *domain.User) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO users (id, name, email, password_hash, role, status, last_password_change, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, user.ID, user.Name, user.Email, user.PasswordHash, user.Role, user.Status,
		user.LastPasswordChange, user.CreatedAt, user.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return autherror.ErrEmailAlreadyInUse
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE lower(email) = lower($1) AND is_deleted = FALSE
		LIMIT 1
	`, email)

	return scanUser(row, nil)
}

func (r *PostgresRepository) GetByEmailWithSecrets(ctx context.Context, email string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`, password_hash
		FROM users
		WHERE lower(email) = lower($1) AND is_deleted = FALSE
		LIMIT 1
	`, email)

	var hash string
	user, err := scanUser(row, &hash)
	if user != nil {
		user.PasswordHash = hash
	}

	return user, err
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1 AND is_deleted = FALSE
		LIMIT 1
	`, id)

	return scanUser(row, nil)
}

func scanUser(row pgx.Row, hash *string) (*domain.User, error) {
	var user domain.User
	dest := []any{
		&user.ID, &user.Name, &user.Email, &user.Role, &user.Status, &user.IsVerified,
		&user.FailedLoginAttempts, &user.LockedUntil, &user.LastLogin, &user.LastPasswordChange,
		&user.CreatedAt, &user.UpdatedAt,
	}
	if hash != nil {
		dest = append(dest, hash)
	}

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// RecordFailedLogin is a single UPDATE so concurrent failures cannot
// lose increments; the lock stamp happens in the same statement the
// moment the counter reaches the threshold.
func (r *PostgresRepository) RecordFailedLogin(ctx context.Context, userID string, threshold int, lockUntil time.Time) error {
	_, err := r.db.Exec(ctx, `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
		    locked_until = CASE WHEN failed_login_attempts + 1 >= $2 THEN $3 ELSE locked_until END,
		    updated_at = now()
		WHERE id = $1 AND is_deleted = FALSE
	`, userID, threshold, lockUntil)
	if err != nil {
		return fmt.Errorf("failed to record login failure: %w", err)
	}

	return nil
}

func (r *PostgresRepository) RecordSuccessfulLogin(ctx context.Context, userID string, entry domain.LoginEntry, historyLimit int) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		UPDATE users
		SET failed_login_attempts = 0,
		    locked_until = NULL,
		    last_login = $2,
		    updated_at = now()
		WHERE id = $1 AND is_deleted = FALSE
	`, userID, entry.LoginAt)
	if err != nil {
		return fmt.Errorf("failed to reset login state: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO login_history (user_id, ip_address, user_agent, login_at)
		VALUES ($1, $2, $3, $4)
	`, userID, entry.IPAddress, entry.UserAgent, entry.LoginAt)
	if err != nil {
		return fmt.Errorf("failed to append login history: %w", err)
	}

	// Keep the newest historyLimit entries, drop the rest.
	_, err = tx.Exec(ctx, `
		DELETE FROM login_history
		WHERE user_id = $1 AND id NOT IN (
			SELECT id FROM login_history
			WHERE user_id = $1
			ORDER BY login_at DESC, id DESC
			LIMIT $2
		)
	`, userID, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to prune login history: %w", err)
	}

	return tx.Commit(ctx)
}

// StoreSession applies filter-then-append-then-prune in one transaction
// per account, so two concurrent refreshes cannot both land a stale
// session list.
func (r *PostgresRepository) StoreSession(ctx context.Context, session *domain.Session, maxSessions int) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Idempotent re-issue: an identical token value replaces its row.
	_, err = tx.Exec(ctx, `
		DELETE FROM sessions WHERE user_id = $1 AND token = $2
	`, session.UserID, session.Token)
	if err != nil {
		return fmt.Errorf("failed to clear duplicate session: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO sessions (id, user_id, token, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, session.ID, session.UserID, session.Token, session.IPAddress, session.UserAgent, session.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}

	_, err = tx.Exec(ctx, `
		DELETE FROM sessions
		WHERE user_id = $1 AND id NOT IN (
			SELECT id FROM sessions
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		)
	`, session.UserID, maxSessions)
	if err != nil {
		return fmt.Errorf("failed to prune sessions: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *PostgresRepository) DeleteSession(ctx context.Context, userID, token string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM sessions WHERE user_id = $1 AND token = $2
	`, userID, token)
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRepository) DeleteAllSessions(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM sessions WHERE user_id = $1
	`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}

	return nil
}

func (r *PostgresRepository) SessionExists(ctx context.Context, userID, token string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM sessions WHERE user_id = $1 AND token = $2
		)
	`, userID, token).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check session: %w", err)
	}

	return exists, nil
}
