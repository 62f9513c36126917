package repository

import (
	"context"
	"time"

	"github.com/sharp-crm/crm-sub000/internal/domain"
)

// UserRepository defines the interface for user identity persistence.
type UserRepository interface {
	// Create inserts a new user. Fails with AlreadyExists if the email is
	// taken or the id collides.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their surrogate id.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// GetByEmail retrieves a user by their email address, the natural key.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// ListByTenant returns all users in the given tenant, optionally
	// including soft-deleted accounts.
	ListByTenant(ctx context.Context, tenantID string, includeDeleted bool) ([]domain.User, error)

	// Update modifies an existing, non-deleted user. The write is
	// conditioned on is_deleted=false; a raced soft-delete surfaces as
	// Conflict.
	Update(ctx context.Context, user *domain.User) error

	// SoftDelete marks a user deleted, conditioned on is_deleted=false.
	// A second delete of the same user fails with Conflict.
	SoftDelete(ctx context.Context, id, deletedBy string, at time.Time) error

	// Restore clears the deleted flag, conditioned on is_deleted=true.
	Restore(ctx context.Context, id, restoredBy string, at time.Time) error

	// HardDelete physically removes the user.
	HardDelete(ctx context.Context, id string) error
}

// RefreshTokenRepository defines the interface for refresh token
// persistence. Records are keyed by the token's jti claim.
type RefreshTokenRepository interface {
	// Create stores a new refresh token record.
	Create(ctx context.Context, token *domain.RefreshToken) error

	// GetByJTI retrieves a refresh token record by its jti.
	GetByJTI(ctx context.Context, jti string) (*domain.RefreshToken, error)

	// Delete removes the record for the given jti. Deleting an absent jti
	// is not an error.
	Delete(ctx context.Context, jti string) error

	// DeleteByUserID removes all refresh token records for the given user,
	// invalidating every session.
	DeleteByUserID(ctx context.Context, userID string) error
}

// RecordRepository defines the persistence interface shared by all
// tenant-scoped entity collections (leads, deals, contacts, dealers,
// subsidiaries). One implementation serves every kind; the kind selects
// the table.
type RecordRepository interface {
	// Create inserts a new record. The write is conditioned on the id not
	// already existing and fails with AlreadyExists on collision.
	Create(ctx context.Context, kind domain.RecordKind, rec *domain.Record) error

	// GetByID fetches a record by id with no tenant or visibility
	// filtering. Callers must apply the visibility predicate before
	// returning the record to anyone.
	GetByID(ctx context.Context, kind domain.RecordKind, id string) (*domain.Record, error)

	// ListByTenant returns all records in the tenant, optionally including
	// soft-deleted ones. Visibility filtering happens in the service
	// layer.
	ListByTenant(ctx context.Context, kind domain.RecordKind, tenantID string, includeDeleted bool) ([]domain.Record, error)

	// Update writes the record's mutable fields, conditioned on tenant
	// match and is_deleted=false. Fails with Conflict when the condition
	// no longer holds (e.g. a concurrent soft-delete won the race).
	Update(ctx context.Context, kind domain.RecordKind, rec *domain.Record) error

	// SoftDelete marks the record deleted, conditioned on tenant match and
	// is_deleted=false. Fails with Conflict if already deleted.
	SoftDelete(ctx context.Context, kind domain.RecordKind, tenantID, id, deletedBy string, at time.Time) error

	// Restore clears the deleted flag, conditioned on tenant match and
	// is_deleted=true. Fails with Conflict if not currently deleted.
	Restore(ctx context.Context, kind domain.RecordKind, tenantID, id, restoredBy string, at time.Time) error

	// HardDelete physically removes the record, conditioned on tenant
	// match. Irreversible.
	HardDelete(ctx context.Context, kind domain.RecordKind, tenantID, id string) error
}
