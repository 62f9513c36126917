package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sharp-crm/crm-sub000/internal/domain"
	"github.com/sharp-crm/crm-sub000/pkg/database"
	apperrors "github.com/sharp-crm/crm-sub000/pkg/errors"
)

// RefreshTokenRepository implements repository.RefreshTokenRepository using
// PostgreSQL. Rows are keyed by the token's jti claim; the absence of a row
// means the session has been revoked.
type RefreshTokenRepository struct {
	pool database.DBTX
}

// NewRefreshTokenRepository creates a new PostgreSQL-backed refresh token repository.
func NewRefreshTokenRepository(pool database.DBTX) *RefreshTokenRepository {
	return &RefreshTokenRepository{pool: pool}
}

// Create stores a new refresh token record.
func (r *RefreshTokenRepository) Create(ctx context.Context, t *domain.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (jti, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query, t.JTI, t.UserID, t.TokenHash, t.ExpiresAt, t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("refresh token", "jti", t.JTI)
		}
		return fmt.Errorf("insert refresh token: %w", err)
	}

	return nil
}

// GetByJTI retrieves a refresh token record by its jti.
func (r *RefreshTokenRepository) GetByJTI(ctx context.Context, jti string) (*domain.RefreshToken, error) {
	query := `
		SELECT jti, user_id, token_hash, expires_at, created_at
		FROM refresh_tokens
		WHERE jti = $1`

	var t domain.RefreshToken
	err := r.pool.QueryRow(ctx, query, jti).Scan(&t.JTI, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}

	return &t, nil
}

// Delete removes the record for the given jti. Deleting an absent jti is not
// an error, so revocation stays idempotent.
func (r *RefreshTokenRepository) Delete(ctx context.Context, jti string) error {
	query := `DELETE FROM refresh_tokens WHERE jti = $1`

	if _, err := r.pool.Exec(ctx, query, jti); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}

	return nil
}

// DeleteByUserID removes all refresh token records for the given user,
// invalidating every session at once.
func (r *RefreshTokenRepository) DeleteByUserID(ctx context.Context, userID string) error {
	query := `DELETE FROM refresh_tokens WHERE user_id = $1`

	if _, err := r.pool.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("delete refresh tokens for user: %w", err)
	}

	return nil
}
