package disputes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/agritrace/agritrace-backend/pkg/db"
	"github.com/agritrace/agritrace-backend/pkg/db/models"
	"github.com/agritrace/agritrace-backend/pkg/enums"
	pkgerrors "github.com/agritrace/agritrace-backend/pkg/errors"
	"github.com/agritrace/agritrace-backend/pkg/metrics"
	"github.com/agritrace/agritrace-backend/pkg/outbox"
)

const maxReasonLength = 256

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// batchStore is the slice of batch persistence dispute handling needs. The
// produce repository satisfies it.
type batchStore interface {
	GetByBatchNumberForUpdateTx(ctx context.Context, tx *gorm.DB, batchNumber uint64) (*models.ProduceBatch, error)
	GetByIDForUpdateTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.ProduceBatch, error)
	SaveTx(ctx context.Context, tx *gorm.DB, batch *models.ProduceBatch) error
}

// Service raises and resolves disputes. A batch carries at most one open
// dispute; while it is open, settlement is frozen.
type Service interface {
	RaiseDispute(ctx context.Context, input RaiseDisputeInput) (*models.Dispute, error)
	ResolveDispute(ctx context.Context, input ResolveDisputeInput) (*models.Dispute, error)
	GetDispute(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]models.Dispute, error)
}

// RaiseDisputeInput opens a dispute against a batch.
type RaiseDisputeInput struct {
	ActorID     uuid.UUID
	ActorRole   enums.ParticipantRole
	BatchNumber uint64
	Reason      string
}

// ResolveDisputeInput closes a dispute with an arbitrated outcome. Outcome
// true upholds the delivery; false leaves the batch disputed.
type ResolveDisputeInput struct {
	ActorID   uuid.UUID
	ActorRole enums.ParticipantRole
	DisputeID uuid.UUID
	Outcome   bool
}

// DisputeRaisedEvent is the payload for dispute.raised.
type DisputeRaisedEvent struct {
	BatchNumber uint64    `json:"batch_number"`
	DisputeID   uuid.UUID `json:"dispute_id"`
	RaiserID    uuid.UUID `json:"raiser_id"`
	Reason      string    `json:"reason"`
	Automatic   bool      `json:"automatic"`
}

// DisputeResolvedEvent is the payload for dispute.resolved.
type DisputeResolvedEvent struct {
	BatchNumber uint64    `json:"batch_number"`
	DisputeID   uuid.UUID `json:"dispute_id"`
	ResolvedBy  uuid.UUID `json:"resolved_by"`
	Outcome     bool      `json:"outcome"`
}

type service struct {
	repo    Repository
	batches batchStore
	tx      txRunner
	outbox  outboxEmitter
	metrics *metrics.SettlementMetrics
}

// NewService wires the dispute service.
func NewService(repo Repository, batches batchStore, tx txRunner, emitter outboxEmitter, m *metrics.SettlementMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("dispute repository required")
	}
	if batches == nil {
		return nil, fmt.Errorf("batch store required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:    repo,
		batches: batches,
		tx:      tx,
		outbox:  emitter,
		metrics: m,
	}, nil
}

// RaiseDispute opens a dispute against the batch and freezes settlement. Any
// registered participant may raise one; a batch with an open dispute rejects
// a second.
func (s *service) RaiseDispute(ctx context.Context, input RaiseDisputeInput) (*models.Dispute, error) {
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing")
	}
	if input.Reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute reason required")
	}
	if len(input.Reason) > maxReasonLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute reason too long").
			WithDetails(map[string]any{"max_length": maxReasonLength})
	}

	var dispute *models.Dispute
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		batch, err := s.batches.GetByBatchNumberForUpdateTx(ctx, tx, input.BatchNumber)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "produce batch not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load produce batch")
		}
		if batch.DisputeOpen {
			return pkgerrors.New(pkgerrors.CodeConflict, "batch already has an open dispute")
		}

		dispute = &models.Dispute{
			ID:       uuid.New(),
			BatchID:  batch.ID,
			RaiserID: input.ActorID,
			Reason:   input.Reason,
		}
		if err := s.repo.CreateTx(ctx, tx, dispute); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_disputes_open_batch") {
				return pkgerrors.New(pkgerrors.CodeConflict, "batch already has an open dispute")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create dispute")
		}

		batch.Status = enums.ProduceStatusDisputed
		batch.DisputeOpen = true
		batch.UpdatedAt = time.Now()
		if err := s.batches.SaveTx(ctx, tx, batch); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist dispute flag")
		}

		s.metrics.IncDispute("manual")
		return s.emit(ctx, tx, enums.OutboxEventDisputeRaised, dispute.ID, input.ActorID, input.ActorRole, DisputeRaisedEvent{
			BatchNumber: batch.BatchNumber,
			DisputeID:   dispute.ID,
			RaiserID:    input.ActorID,
			Reason:      input.Reason,
		})
	})
	if err != nil {
		return nil, err
	}
	return dispute, nil
}

// ResolveDispute closes the dispute and unfreezes the batch. An upheld
// outcome returns the batch to delivered so settlement can proceed; a
// rejected one leaves it disputed, permanently excluding the quality penalty
// from any later payment.
func (s *service) ResolveDispute(ctx context.Context, input ResolveDisputeInput) (*models.Dispute, error) {
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing")
	}
	if input.ActorRole != enums.ParticipantRoleArbitrator {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only arbitrators may resolve disputes")
	}

	var resolved *models.Dispute
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		dispute, err := s.repo.WithTx(tx).GetByIDForUpdate(ctx, input.DisputeID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "dispute not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispute")
		}
		if dispute.Resolved {
			return pkgerrors.New(pkgerrors.CodeConflict, "dispute already resolved")
		}

		batch, err := s.batches.GetByIDForUpdateTx(ctx, tx, dispute.BatchID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load disputed batch")
		}

		if input.Outcome {
			batch.Status = enums.ProduceStatusDelivered
		} else {
			batch.Status = enums.ProduceStatusDisputed
		}
		batch.DisputeOpen = false
		batch.UpdatedAt = time.Now()
		if err := s.batches.SaveTx(ctx, tx, batch); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist dispute resolution")
		}

		now := time.Now()
		actorID := input.ActorID
		dispute.Resolved = true
		dispute.Outcome = input.Outcome
		dispute.ResolvedBy = &actorID
		dispute.ResolvedAt = &now
		if err := s.repo.WithTx(tx).Save(ctx, dispute); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist dispute")
		}

		resolved = dispute
		return s.emit(ctx, tx, enums.OutboxEventDisputeResolved, dispute.ID, input.ActorID, input.ActorRole, DisputeResolvedEvent{
			BatchNumber: batch.BatchNumber,
			DisputeID:   dispute.ID,
			ResolvedBy:  input.ActorID,
			Outcome:     input.Outcome,
		})
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

func (s *service) GetDispute(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	dispute, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "dispute not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dispute")
	}
	return dispute, nil
}

func (s *service) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]models.Dispute, error) {
	disputes, err := s.repo.ListByBatch(ctx, batchID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list disputes")
	}
	return disputes, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, disputeID, actorID uuid.UUID, role enums.ParticipantRole, data interface{}) error {
	if s.outbox == nil {
		return nil
	}
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.OutboxAggregateDispute,
		AggregateID:   disputeID,
		Actor:         &outbox.ActorRef{ParticipantID: actorID, Role: role.String()},
		Data:          data,
		Version:       1,
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit dispute event")
	}
	return nil
}
