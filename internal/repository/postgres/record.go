package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sharp-crm/crm-sub000/internal/domain"
	"github.com/sharp-crm/crm-sub000/pkg/database"
	apperrors "github.com/sharp-crm/crm-sub000/pkg/errors"
)

// recordTables maps each record kind to its backing table. All five tables
// share the same column layout; only the name differs.
var recordTables = map[domain.RecordKind]string{
	domain.KindLead:       "leads",
	domain.KindDeal:       "deals",
	domain.KindContact:    "contacts",
	domain.KindDealer:     "dealers",
	domain.KindSubsidiary: "subsidiaries",
}

// RecordRepository implements repository.RecordRepository using PostgreSQL.
// A single implementation serves every record kind; the kind selects the
// table, nothing else changes.
type RecordRepository struct {
	pool database.DBTX
}

// NewRecordRepository creates a new PostgreSQL-backed record repository.
func NewRecordRepository(pool database.DBTX) *RecordRepository {
	return &RecordRepository{pool: pool}
}

const recordColumns = `id, tenant_id, owner_id, visible_to, attributes, created_by, created_at, updated_by, updated_at, is_deleted, deleted_by, deleted_at`

func tableFor(kind domain.RecordKind) (string, error) {
	table, ok := recordTables[kind]
	if !ok {
		return "", apperrors.InvalidInput(fmt.Sprintf("unknown record kind %q", kind))
	}
	return table, nil
}

// Create inserts a new record.
func (r *RecordRepository) Create(ctx context.Context, kind domain.RecordKind, rec *domain.Record) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	attrs, err := json.Marshal(rec.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}

	query := `
		INSERT INTO ` + table + ` (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = r.pool.Exec(ctx, query,
		rec.ID,
		rec.TenantID,
		rec.OwnerID,
		rec.VisibleTo,
		attrs,
		rec.CreatedBy,
		rec.CreatedAt,
		rec.UpdatedBy,
		rec.UpdatedAt,
		rec.IsDeleted,
		rec.DeletedBy,
		rec.DeletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists(string(kind), "id", rec.ID)
		}
		return fmt.Errorf("insert %s: %w", kind, err)
	}

	return nil
}

// GetByID fetches a record by id with no tenant or visibility filtering.
// Callers apply the visibility predicate before handing the record to anyone.
func (r *RecordRepository) GetByID(ctx context.Context, kind domain.RecordKind, id string) (*domain.Record, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + recordColumns + `
		FROM ` + table + `
		WHERE id = $1`

	var rec domain.Record
	if err := scanRecordRow(r.pool.QueryRow(ctx, query, id), &rec); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("scan %s: %w", kind, err)
	}

	return &rec, nil
}

// ListByTenant returns all records in the tenant, newest first.
func (r *RecordRepository) ListByTenant(ctx context.Context, kind domain.RecordKind, tenantID string, includeDeleted bool) ([]domain.Record, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + recordColumns + `
		FROM ` + table + `
		WHERE tenant_id = $1`
	if !includeDeleted {
		query += ` AND is_deleted = false`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		var rec domain.Record
		if err := scanRecordRow(rows, &rec); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", kind, err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", kind, err)
	}

	if records == nil {
		records = []domain.Record{}
	}

	return records, nil
}

// Update writes the record's mutable fields, conditioned on tenant match and
// is_deleted=false.
func (r *RecordRepository) Update(ctx context.Context, kind domain.RecordKind, rec *domain.Record) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	attrs, err := json.Marshal(rec.Attributes)
	if err != nil {
		return fmt.Errorf("marshal attributes: %w", err)
	}

	query := `
		UPDATE ` + table + `
		SET owner_id = $1, visible_to = $2, attributes = $3, updated_by = $4, updated_at = $5
		WHERE id = $6 AND tenant_id = $7 AND is_deleted = false`

	ct, err := r.pool.Exec(ctx, query,
		rec.OwnerID,
		rec.VisibleTo,
		attrs,
		rec.UpdatedBy,
		rec.UpdatedAt,
		rec.ID,
		rec.TenantID,
	)
	if err != nil {
		return fmt.Errorf("update %s: %w", kind, err)
	}

	if ct.RowsAffected() == 0 {
		return r.missOrConflict(ctx, table, kind, rec.TenantID, rec.ID, fmt.Sprintf("%s has been deleted", kind))
	}

	return nil
}

// SoftDelete marks the record deleted, conditioned on tenant match and
// is_deleted=false.
func (r *RecordRepository) SoftDelete(ctx context.Context, kind domain.RecordKind, tenantID, id, deletedBy string, at time.Time) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	query := `
		UPDATE ` + table + `
		SET is_deleted = true, deleted_by = $3, deleted_at = $4, updated_by = $3, updated_at = $4
		WHERE id = $1 AND tenant_id = $2 AND is_deleted = false`

	ct, err := r.pool.Exec(ctx, query, id, tenantID, deletedBy, at)
	if err != nil {
		return fmt.Errorf("soft delete %s: %w", kind, err)
	}

	if ct.RowsAffected() == 0 {
		return r.missOrConflict(ctx, table, kind, tenantID, id, fmt.Sprintf("%s already deleted", kind))
	}

	return nil
}

// Restore clears the deleted flag, conditioned on tenant match and
// is_deleted=true.
func (r *RecordRepository) Restore(ctx context.Context, kind domain.RecordKind, tenantID, id, restoredBy string, at time.Time) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	query := `
		UPDATE ` + table + `
		SET is_deleted = false, deleted_by = NULL, deleted_at = NULL, updated_by = $3, updated_at = $4
		WHERE id = $1 AND tenant_id = $2 AND is_deleted = true`

	ct, err := r.pool.Exec(ctx, query, id, tenantID, restoredBy, at)
	if err != nil {
		return fmt.Errorf("restore %s: %w", kind, err)
	}

	if ct.RowsAffected() == 0 {
		return r.missOrConflict(ctx, table, kind, tenantID, id, fmt.Sprintf("%s is not deleted", kind))
	}

	return nil
}

// HardDelete physically removes the record, conditioned on tenant match.
func (r *RecordRepository) HardDelete(ctx context.Context, kind domain.RecordKind, tenantID, id string) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	query := `DELETE FROM ` + table + ` WHERE id = $1 AND tenant_id = $2`

	ct, err := r.pool.Exec(ctx, query, id, tenantID)
	if err != nil {
		return fmt.Errorf("hard delete %s: %w", kind, err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound(string(kind), id)
	}

	return nil
}

// missOrConflict distinguishes "row absent in this tenant" from "conditional
// check failed" after a zero-row conditional write.
func (r *RecordRepository) missOrConflict(ctx context.Context, table string, kind domain.RecordKind, tenantID, id, conflictMsg string) error {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM ` + table + ` WHERE id = $1 AND tenant_id = $2)`
	if err := r.pool.QueryRow(ctx, query, id, tenantID).Scan(&exists); err != nil {
		return fmt.Errorf("check %s existence: %w", kind, err)
	}
	if exists {
		return apperrors.Conflict(conflictMsg)
	}
	return apperrors.NotFound(string(kind), id)
}

// scanRecordRow scans the recordColumns set into a Record from either a Row
// or Rows. The attributes column travels as raw JSONB bytes.
func scanRecordRow(row pgx.Row, rec *domain.Record) error {
	var attrs []byte
	if err := row.Scan(
		&rec.ID,
		&rec.TenantID,
		&rec.OwnerID,
		&rec.VisibleTo,
		&attrs,
		&rec.CreatedBy,
		&rec.CreatedAt,
		&rec.UpdatedBy,
		&rec.UpdatedAt,
		&rec.IsDeleted,
		&rec.DeletedBy,
		&rec.DeletedAt,
	); err != nil {
		return err
	}

	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &rec.Attributes); err != nil {
			return fmt.Errorf("unmarshal attributes: %w", err)
		}
	}
	if rec.Attributes == nil {
		rec.Attributes = map[string]any{}
	}
	if rec.VisibleTo == nil {
		rec.VisibleTo = []string{}
	}

	return nil
}
