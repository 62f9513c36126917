package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sharp-crm/crm-sub000/internal/domain"
	"github.com/sharp-crm/crm-sub000/internal/event"
	"github.com/sharp-crm/crm-sub000/internal/rbac"
	"github.com/sharp-crm/crm-sub000/internal/repository"
	apperrors "github.com/sharp-crm/crm-sub000/pkg/errors"
	"github.com/sharp-crm/crm-sub000/pkg/pagination"
)

// RecordService implements the tenant-scoped access rules shared by all
// entity kinds. Visibility is enforced here, not in the repository: a record
// the caller may not see is reported as not found.
type RecordService struct {
	recordRepo repository.RecordRepository
	producer   *event.Producer
	logger     *slog.Logger
}

// NewRecordService creates a new record service.
func NewRecordService(recordRepo repository.RecordRepository, producer *event.Producer, logger *slog.Logger) *RecordService {
	return &RecordService{
		recordRepo: recordRepo,
		producer:   producer,
		logger:     logger,
	}
}

// CreateRecordInput holds the parameters for creating a record.
type CreateRecordInput struct {
	OwnerID    string
	VisibleTo  []string
	Attributes map[string]any
}

// UpdateRecordInput holds the parameters for updating a record. Nil fields
// are left unchanged.
type UpdateRecordInput struct {
	OwnerID    *string
	VisibleTo  *[]string
	Attributes map[string]any
}

// Create inserts a new record into the caller's tenant. The caller becomes
// the creator; ownership defaults to the caller unless assigned explicitly.
func (s *RecordService) Create(ctx context.Context, caller *domain.Identity, kind domain.RecordKind, input CreateRecordInput) (*domain.Record, error) {
	if !rbac.Can(caller.Role, rbac.CapCreateRecord) {
		return nil, apperrors.Forbidden("insufficient permissions to create records")
	}

	ownerID := input.OwnerID
	if ownerID == "" {
		ownerID = caller.UserID
	}

	visibleTo := input.VisibleTo
	if visibleTo == nil {
		visibleTo = []string{}
	}
	attributes := input.Attributes
	if attributes == nil {
		attributes = map[string]any{}
	}

	now := time.Now().UTC()
	rec := &domain.Record{
		ID:         uuid.New().String(),
		TenantID:   caller.TenantID,
		OwnerID:    ownerID,
		VisibleTo:  visibleTo,
		Attributes: attributes,
		CreatedBy:  caller.UserID,
		CreatedAt:  now,
		UpdatedBy:  caller.UserID,
		UpdatedAt:  now,
	}

	if err := s.recordRepo.Create(ctx, kind, rec); err != nil {
		return nil, fmt.Errorf("create %s: %w", kind, err)
	}

	s.logger.InfoContext(ctx, "record created",
		slog.String("kind", string(kind)),
		slog.String("record_id", rec.ID),
		slog.String("tenant_id", rec.TenantID),
		slog.String("created_by", caller.UserID),
	)

	return rec, nil
}

// GetByID fetches a single record. Cross-tenant, invisible, and soft-deleted
// records all surface as NotFound so existence never leaks.
func (s *RecordService) GetByID(ctx context.Context, caller *domain.Identity, kind domain.RecordKind, id string) (*domain.Record, error) {
	if !rbac.Can(caller.Role, rbac.CapViewRecords) {
		return nil, apperrors.Forbidden("insufficient permissions to view records")
	}

	rec, err := s.fetchVisible(ctx, caller, kind, id)
	if err != nil {
		return nil, err
	}
	if rec.IsDeleted {
		return nil, apperrors.NotFound(string(kind), id)
	}

	return rec, nil
}

// ListByTenant returns the caller-visible records of the tenant, paginated
// after visibility filtering so page boundaries are stable per caller.
func (s *RecordService) ListByTenant(ctx context.Context, caller *domain.Identity, kind domain.RecordKind, includeDeleted bool, params pagination.Params) ([]domain.Record, int, error) {
	if !rbac.Can(caller.Role, rbac.CapViewRecords) {
		return nil, 0, apperrors.Forbidden("insufficient permissions to view records")
	}

	records, err := s.recordRepo.ListByTenant(ctx, kind, caller.TenantID, includeDeleted)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", kind, err)
	}

	visible := records[:0]
	for i := range records {
		if records[i].VisibleToCaller(caller) {
			visible = append(visible, records[i])
		}
	}

	total := len(visible)
	return paginate(visible, params), total, nil
}

// Update applies the caller's changes to a visible, non-deleted record.
func (s *RecordService) Update(ctx context.Context, caller *domain.Identity, kind domain.RecordKind, id string, input UpdateRecordInput) (*domain.Record, error) {
	if !rbac.Can(caller.Role, rbac.CapUpdateRecords) {
		return nil, apperrors.Forbidden("insufficient permissions to update records")
	}

	rec, err := s.fetchVisible(ctx, caller, kind, id)
	if err != nil {
		return nil, err
	}

	if input.OwnerID != nil {
		if *input.OwnerID == "" {
			return nil, apperrors.InvalidInput("owner id must not be empty")
		}
		rec.OwnerID = *input.OwnerID
	}
	if input.VisibleTo != nil {
		rec.VisibleTo = *input.VisibleTo
	}
	if input.Attributes != nil {
		rec.Attributes = input.Attributes
	}

	rec.UpdatedBy = caller.UserID
	rec.UpdatedAt = time.Now().UTC()

	if err := s.recordRepo.Update(ctx, kind, rec); err != nil {
		return nil, fmt.Errorf("update %s: %w", kind, err)
	}

	s.logger.InfoContext(ctx, "record updated",
		slog.String("kind", string(kind)),
		slog.String("record_id", rec.ID),
		slog.String("updated_by", caller.UserID),
	)

	return rec, nil
}

// SoftDelete marks a visible record deleted. A second delete of the same
// record is a Conflict, not a silent success.
func (s *RecordService) SoftDelete(ctx context.Context, caller *domain.Identity, kind domain.RecordKind, id string) error {
	if !rbac.Can(caller.Role, rbac.CapDeleteRecords) {
		return apperrors.Forbidden("insufficient permissions to delete records")
	}

	rec, err := s.fetchVisible(ctx, caller, kind, id)
	if err != nil {
		return err
	}

	if err := s.recordRepo.SoftDelete(ctx, kind, caller.TenantID, rec.ID, caller.UserID, time.Now().UTC()); err != nil {
		return fmt.Errorf("soft delete %s: %w", kind, err)
	}

	if err := s.producer.PublishRecordDeleted(ctx, kind, caller.TenantID, rec.ID, caller.UserID, false); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish record.deleted event",
			slog.String("record_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "record soft-deleted",
		slog.String("kind", string(kind)),
		slog.String("record_id", rec.ID),
		slog.String("deleted_by", caller.UserID),
	)

	return nil
}

// Restore clears the deleted flag on a visible record.
func (s *RecordService) Restore(ctx context.Context, caller *domain.Identity, kind domain.RecordKind, id string) error {
	if !rbac.Can(caller.Role, rbac.CapRestoreRecords) {
		return apperrors.Forbidden("insufficient permissions to restore records")
	}

	rec, err := s.fetchVisible(ctx, caller, kind, id)
	if err != nil {
		return err
	}

	if err := s.recordRepo.Restore(ctx, kind, caller.TenantID, rec.ID, caller.UserID, time.Now().UTC()); err != nil {
		return fmt.Errorf("restore %s: %w", kind, err)
	}

	s.logger.InfoContext(ctx, "record restored",
		slog.String("kind", string(kind)),
		slog.String("record_id", rec.ID),
		slog.String("restored_by", caller.UserID),
	)

	return nil
}

// HardDelete physically removes a visible record. Irreversible; the router
// additionally restricts this to admin roles.
func (s *RecordService) HardDelete(ctx context.Context, caller *domain.Identity, kind domain.RecordKind, id string) error {
	if !rbac.Can(caller.Role, rbac.CapPurgeRecords) {
		return apperrors.Forbidden("insufficient permissions to purge records")
	}

	rec, err := s.fetchVisible(ctx, caller, kind, id)
	if err != nil {
		return err
	}

	if err := s.recordRepo.HardDelete(ctx, kind, caller.TenantID, rec.ID); err != nil {
		return fmt.Errorf("hard delete %s: %w", kind, err)
	}

	if err := s.producer.PublishRecordDeleted(ctx, kind, caller.TenantID, rec.ID, caller.UserID, true); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish record.deleted event",
			slog.String("record_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "record purged",
		slog.String("kind", string(kind)),
		slog.String("record_id", rec.ID),
		slog.String("deleted_by", caller.UserID),
	)

	return nil
}

// fetchVisible loads a record and applies the visibility predicate. Records
// the caller may not see come back as NotFound.
func (s *RecordService) fetchVisible(ctx context.Context, caller *domain.Identity, kind domain.RecordKind, id string) (*domain.Record, error) {
	rec, err := s.recordRepo.GetByID(ctx, kind, id)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound(string(kind), id)
		}
		return nil, fmt.Errorf("get %s: %w", kind, err)
	}

	if !rec.VisibleToCaller(caller) {
		return nil, apperrors.NotFound(string(kind), id)
	}

	return rec, nil
}
