package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sharp-crm/crm-sub000/internal/domain"
	"github.com/sharp-crm/crm-sub000/pkg/database"
	apperrors "github.com/sharp-crm/crm-sub000/pkg/errors"
)

// UserRepository implements repository.UserRepository using PostgreSQL.
type UserRepository struct {
	pool database.DBTX
}

// NewUserRepository creates a new PostgreSQL-backed user repository.
func NewUserRepository(pool database.DBTX) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, email, password_hash, first_name, last_name, phone, role, tenant_id, created_by, is_deleted, deleted_by, deleted_at, created_at, updated_at`

// Create inserts a new user into the database.
func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.pool.Exec(ctx, query,
		u.ID,
		u.Email,
		u.PasswordHash,
		u.FirstName,
		u.LastName,
		u.Phone,
		u.Role,
		u.TenantID,
		u.CreatedBy,
		u.IsDeleted,
		u.DeletedBy,
		u.DeletedAt,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by their ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1`

	return r.scanUser(ctx, query, id)
}

// GetByEmail retrieves a user by their email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1`

	return r.scanUser(ctx, query, email)
}

// ListByTenant returns all users in the given tenant.
func (r *UserRepository) ListByTenant(ctx context.Context, tenantID string, includeDeleted bool) ([]domain.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE tenant_id = $1`
	if !includeDeleted {
		query += ` AND is_deleted = false`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := scanUserRow(rows, &u); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}

	if users == nil {
		users = []domain.User{}
	}

	return users, nil
}

// Update modifies an existing, non-deleted user. The write is conditioned
// on is_deleted=false so a concurrent soft-delete surfaces as a conflict
// rather than silently resurrecting fields.
func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	u.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE users
		SET email = $1, password_hash = $2, first_name = $3, last_name = $4, phone = $5,
		    role = $6, tenant_id = $7, updated_at = $8
		WHERE id = $9 AND is_deleted = false`

	ct, err := r.pool.Exec(ctx, query,
		u.Email,
		u.PasswordHash,
		u.FirstName,
		u.LastName,
		u.Phone,
		u.Role,
		u.TenantID,
		u.UpdatedAt,
		u.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("user", "email", u.Email)
		}
		return fmt.Errorf("update user: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return r.missOrConflict(ctx, u.ID, "user has been deleted")
	}

	return nil
}

// SoftDelete marks a user deleted. Conditioned on is_deleted=false; the
// second delete of the same user fails with Conflict, not silent success.
func (r *UserRepository) SoftDelete(ctx context.Context, id, deletedBy string, at time.Time) error {
	query := `
		UPDATE users
		SET is_deleted = true, deleted_by = $2, deleted_at = $3, updated_at = $3
		WHERE id = $1 AND is_deleted = false`

	ct, err := r.pool.Exec(ctx, query, id, deletedBy, at)
	if err != nil {
		return fmt.Errorf("soft delete user: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return r.missOrConflict(ctx, id, "user already deleted")
	}

	return nil
}

// Restore clears the deleted flag. Conditioned on is_deleted=true.
func (r *UserRepository) Restore(ctx context.Context, id, restoredBy string, at time.Time) error {
	query := `
		UPDATE users
		SET is_deleted = false, deleted_by = NULL, deleted_at = NULL, updated_at = $2
		WHERE id = $1 AND is_deleted = true`

	ct, err := r.pool.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("restore user: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return r.missOrConflict(ctx, id, "user is not deleted")
	}

	return nil
}

// HardDelete physically removes a user from the database.
func (r *UserRepository) HardDelete(ctx context.Context, id string) error {
	query := `DELETE FROM users WHERE id = $1`

	ct, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("hard delete user: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("user", id)
	}

	return nil
}

// missOrConflict distinguishes "row absent" from "conditional check failed"
// after a zero-row conditional write.
func (r *UserRepository) missOrConflict(ctx context.Context, id, conflictMsg string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check user existence: %w", err)
	}
	if exists {
		return apperrors.Conflict(conflictMsg)
	}
	return apperrors.NotFound("user", id)
}

// scanUser is a helper that executes a query expected to return a single user row.
func (r *UserRepository) scanUser(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var u domain.User
	if err := scanUserRow(r.pool.QueryRow(ctx, query, args...), &u); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// scanUserRow scans the userColumns set into a User from either a Row or Rows.
func scanUserRow(row pgx.Row, u *domain.User) error {
	return row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Phone,
		&u.Role,
		&u.TenantID,
		&u.CreatedBy,
		&u.IsDeleted,
		&u.DeletedBy,
		&u.DeletedAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}
