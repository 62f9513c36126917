package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sharp-crm/crm-sub000/internal/domain"
	pkgkafka "github.com/sharp-crm/crm-sub000/pkg/kafka"
)

// Kafka topic constants for CRM lifecycle events.
const (
	TopicUserRegistered = "crm.user.registered"
	TopicUserDeleted    = "crm.user.deleted"
	TopicRecordDeleted  = "crm.record.deleted"
)

// Aggregate type constants.
const (
	AggregateTypeUser   = "user"
	AggregateTypeRecord = "record"
)

// Source identifier for events originating from this service.
const SourceCRMCore = "crm-core"

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	TenantID  string `json:"tenant_id"`
}

// UserDeletedData is the payload for a user.deleted event.
type UserDeletedData struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	TenantID  string `json:"tenant_id"`
	DeletedBy string `json:"deleted_by"`
	Hard      bool   `json:"hard"`
}

// RecordDeletedData is the payload for a record.deleted event.
type RecordDeletedData struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	TenantID  string `json:"tenant_id"`
	DeletedBy string `json:"deleted_by"`
	Hard      bool   `json:"hard"`
}

// Producer publishes CRM lifecycle events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, user *domain.User) error {
	data := UserRegisteredData{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
		TenantID:  user.TenantID,
	}

	event, err := pkgkafka.NewEvent(TopicUserRegistered, user.ID, AggregateTypeUser, SourceCRMCore, data)
	if err != nil {
		return fmt.Errorf("create user.registered event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicUserRegistered, event); err != nil {
		return fmt.Errorf("publish user.registered event: %w", err)
	}

	p.logger.DebugContext(ctx, "published user.registered event",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return nil
}

// PublishUserDeleted publishes a user.deleted event. Hard distinguishes a
// physical purge from a soft delete.
func (p *Producer) PublishUserDeleted(ctx context.Context, user *domain.User, deletedBy string, hard bool) error {
	data := UserDeletedData{
		ID:        user.ID,
		Email:     user.Email,
		TenantID:  user.TenantID,
		DeletedBy: deletedBy,
		Hard:      hard,
	}

	event, err := pkgkafka.NewEvent(TopicUserDeleted, user.ID, AggregateTypeUser, SourceCRMCore, data)
	if err != nil {
		return fmt.Errorf("create user.deleted event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicUserDeleted, event); err != nil {
		return fmt.Errorf("publish user.deleted event: %w", err)
	}

	p.logger.DebugContext(ctx, "published user.deleted event",
		slog.String("user_id", user.ID),
		slog.Bool("hard", hard),
	)

	return nil
}

// PublishRecordDeleted publishes a record.deleted event.
func (p *Producer) PublishRecordDeleted(ctx context.Context, kind domain.RecordKind, tenantID, id, deletedBy string, hard bool) error {
	data := RecordDeletedData{
		ID:        id,
		Kind:      string(kind),
		TenantID:  tenantID,
		DeletedBy: deletedBy,
		Hard:      hard,
	}

	event, err := pkgkafka.NewEvent(TopicRecordDeleted, id, AggregateTypeRecord, SourceCRMCore, data)
	if err != nil {
		return fmt.Errorf("create record.deleted event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicRecordDeleted, event); err != nil {
		return fmt.Errorf("publish record.deleted event: %w", err)
	}

	p.logger.DebugContext(ctx, "published record.deleted event",
		slog.String("record_id", id),
		slog.String("kind", string(kind)),
		slog.Bool("hard", hard),
	)

	return nil
}
