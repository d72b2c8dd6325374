package produce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agritrace/agritrace-backend/internal/settlement"
	dbpkg "github.com/agritrace/agritrace-backend/pkg/db"
	"github.com/agritrace/agritrace-backend/pkg/db/models"
	"github.com/agritrace/agritrace-backend/pkg/enums"
	pkgerrors "github.com/agritrace/agritrace-backend/pkg/errors"
	"github.com/agritrace/agritrace-backend/pkg/metrics"
	"github.com/agritrace/agritrace-backend/pkg/outbox"
)

// AutoDisputeReason is recorded on disputes opened by quality verification.
const AutoDisputeReason = "verified quality below acceptance threshold"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type settler interface {
	SettleInTx(ctx context.Context, tx *gorm.DB, batch *models.ProduceBatch, trigger string) error
}

// disputeCreator persists dispute rows opened automatically by quality
// verification. The disputes repository satisfies it.
type disputeCreator interface {
	CreateTx(ctx context.Context, tx *gorm.DB, dispute *models.Dispute) error
}

// Service drives a produce batch through its lifecycle. Every mutation loads
// the batch under a row lock, checks the caller and the current status, and
// persists the transition together with its outbox event.
type Service interface {
	LogHarvest(ctx context.Context, input LogHarvestInput) (*models.ProduceBatch, error)
	RecordPickup(ctx context.Context, input RecordPickupInput) (*models.ProduceBatch, error)
	ConfirmPickup(ctx context.Context, input ActorInput) (*models.ProduceBatch, error)
	RecordDelivery(ctx context.Context, input ActorInput) (*models.ProduceBatch, error)
	ConfirmDelivery(ctx context.Context, input ActorInput) (*models.ProduceBatch, error)
	VerifyQuality(ctx context.Context, input VerifyQualityInput) (*models.ProduceBatch, error)
	GetByBatchNumber(ctx context.Context, batchNumber uint64) (*models.ProduceBatch, error)
	ListByProducer(ctx context.Context, producerID uuid.UUID) ([]models.ProduceBatch, error)
}

// LogHarvestInput creates a new batch record.
type LogHarvestInput struct {
	ActorID         uuid.UUID
	ActorRole       enums.ParticipantRole
	BatchNumber     uint64
	Kind            string
	Quantity        uint64
	DeclaredQuality int
	ProducerPrice   uint64
	CarrierFee      uint64
	HarvestedAt     time.Time
}

// RecordPickupInput carries the transport readings taken at pickup.
type RecordPickupInput struct {
	ActorID           uuid.UUID
	ActorRole         enums.ParticipantRole
	BatchNumber       uint64
	TransportTempC    int
	TransportHumidity int
}

// ActorInput identifies the batch and the caller for transitions that carry
// no payload of their own.
type ActorInput struct {
	ActorID     uuid.UUID
	ActorRole   enums.ParticipantRole
	BatchNumber uint64
}

// VerifyQualityInput records an inspected quality score.
type VerifyQualityInput struct {
	ActorID     uuid.UUID
	ActorRole   enums.ParticipantRole
	BatchNumber uint64
	Quality     int
}

// HarvestLoggedEvent is the payload for harvest.logged.
type HarvestLoggedEvent struct {
	BatchNumber     uint64    `json:"batch_number"`
	ProducerID      uuid.UUID `json:"producer_id"`
	Kind            string    `json:"kind"`
	Quantity        uint64    `json:"quantity"`
	DeclaredQuality int       `json:"declared_quality"`
}

// StatusChangedEvent is the payload shared by the transition events.
type StatusChangedEvent struct {
	BatchNumber uint64              `json:"batch_number"`
	Status      enums.ProduceStatus `json:"status"`
}

// QualityVerifiedEvent is the payload for produce.quality_verified.
type QualityVerifiedEvent struct {
	BatchNumber     uint64 `json:"batch_number"`
	VerifiedQuality int    `json:"verified_quality"`
	DisputeOpened   bool   `json:"dispute_opened"`
}

// DisputeRaisedEvent is the payload for dispute.raised.
type DisputeRaisedEvent struct {
	BatchNumber uint64    `json:"batch_number"`
	DisputeID   uuid.UUID `json:"dispute_id"`
	RaiserID    uuid.UUID `json:"raiser_id"`
	Reason      string    `json:"reason"`
	Automatic   bool      `json:"automatic"`
}

type service struct {
	repo       Repository
	tx         txRunner
	settlement settler
	disputes   disputeCreator
	outbox     outboxEmitter
	metrics    *metrics.SettlementMetrics
}

// NewService wires the produce lifecycle service.
func NewService(repo Repository, tx txRunner, settlementSvc settler, disputes disputeCreator, emitter outboxEmitter, m *metrics.SettlementMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("produce repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if settlementSvc == nil {
		return nil, fmt.Errorf("settlement service required")
	}
	if disputes == nil {
		return nil, fmt.Errorf("dispute creator required")
	}
	return &service{
		repo:       repo,
		tx:         tx,
		settlement: settlementSvc,
		disputes:   disputes,
		outbox:     emitter,
		metrics:    m,
	}, nil
}

// LogHarvest registers a new batch. Only producers may call it; the verified
// quality starts equal to the declared quality until an inspection overwrites
// it.
func (s *service) LogHarvest(ctx context.Context, input LogHarvestInput) (*models.ProduceBatch, error) {
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing")
	}
	if input.ActorRole != enums.ParticipantRoleProducer {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only producers may log harvests")
	}
	if input.BatchNumber == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "batch number required")
	}
	if input.Kind == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "produce kind required")
	}
	if input.Quantity == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.DeclaredQuality < 0 || input.DeclaredQuality > 100 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "declared quality must be between 0 and 100")
	}
	harvestedAt := input.HarvestedAt
	if harvestedAt.IsZero() {
		harvestedAt = time.Now()
	}

	batch := &models.ProduceBatch{
		ID:              uuid.New(),
		BatchNumber:     input.BatchNumber,
		ProducerID:      input.ActorID,
		Kind:            input.Kind,
		Quantity:        input.Quantity,
		HarvestedAt:     harvestedAt,
		DeclaredQuality: input.DeclaredQuality,
		VerifiedQuality: input.DeclaredQuality,
		Status:          enums.ProduceStatusHarvested,
		ProducerPrice:   input.ProducerPrice,
		CarrierFee:      input.CarrierFee,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, batch); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "batch number already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create produce batch")
		}
		return s.emit(ctx, tx, enums.OutboxEventHarvestLogged, batch, input.ActorID, input.ActorRole, HarvestLoggedEvent{
			BatchNumber:     batch.BatchNumber,
			ProducerID:      batch.ProducerID,
			Kind:            batch.Kind,
			Quantity:        batch.Quantity,
			DeclaredQuality: batch.DeclaredQuality,
		})
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// RecordPickup moves a harvested batch to picked up. The calling carrier
// becomes the batch's carrier of record and the transport readings taken at
// the dock are pinned on the batch.
func (s *service) RecordPickup(ctx context.Context, input RecordPickupInput) (*models.ProduceBatch, error) {
	if input.ActorRole != enums.ParticipantRoleCarrier {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only carriers may record pickups")
	}
	if input.TransportHumidity < 0 || input.TransportHumidity > 100 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "humidity must be between 0 and 100")
	}

	return s.transition(ctx, input.BatchNumber, func(tx *gorm.DB, batch *models.ProduceBatch) error {
		if batch.Status != enums.ProduceStatusHarvested {
			return pkgerrors.New(pkgerrors.CodeInvalidStatus, "batch is not awaiting pickup").
				WithDetails(map[string]any{"status": batch.Status})
		}
		actorID := input.ActorID
		temp := input.TransportTempC
		humidity := input.TransportHumidity
		batch.Status = enums.ProduceStatusPickedUp
		batch.CarrierID = &actorID
		batch.TransportTempC = &temp
		batch.TransportHumidity = &humidity
		batch.UpdatedAt = time.Now()
		if err := s.repo.WithTx(tx).Save(ctx, batch); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist pickup")
		}
		return s.emit(ctx, tx, enums.OutboxEventProducePickedUp, batch, input.ActorID, input.ActorRole, StatusChangedEvent{
			BatchNumber: batch.BatchNumber,
			Status:      batch.Status,
		})
	})
}

// ConfirmPickup lets the producer who logged the batch acknowledge that the
// carrier collected it.
func (s *service) ConfirmPickup(ctx context.Context, input ActorInput) (*models.ProduceBatch, error) {
	return s.transition(ctx, input.BatchNumber, func(tx *gorm.DB, batch *models.ProduceBatch) error {
		if input.ActorID != batch.ProducerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the batch producer may confirm pickup")
		}
		if batch.Status != enums.ProduceStatusPickedUp {
			return pkgerrors.New(pkgerrors.CodeInvalidStatus, "batch has not been picked up").
				WithDetails(map[string]any{"status": batch.Status})
		}
		batch.PickupConfirmed = true
		batch.UpdatedAt = time.Now()
		if err := s.repo.WithTx(tx).Save(ctx, batch); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist pickup confirmation")
		}
		return nil
	})
}

// RecordDelivery moves a picked-up batch in transit.
func (s *service) RecordDelivery(ctx context.Context, input ActorInput) (*models.ProduceBatch, error) {
	if input.ActorRole != enums.ParticipantRoleCarrier {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only carriers may record deliveries")
	}
	return s.transition(ctx, input.BatchNumber, func(tx *gorm.DB, batch *models.ProduceBatch) error {
		if batch.Status != enums.ProduceStatusPickedUp {
			return pkgerrors.New(pkgerrors.CodeInvalidStatus, "batch is not out for delivery").
				WithDetails(map[string]any{"status": batch.Status})
		}
		batch.Status = enums.ProduceStatusInTransit
		batch.UpdatedAt = time.Now()
		if err := s.repo.WithTx(tx).Save(ctx, batch); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist delivery record")
		}
		return nil
	})
}

// ConfirmDelivery marks an in-transit batch delivered and immediately runs
// settlement in the same transaction. An open dispute defers the payout but
// the delivery confirmation itself still commits.
func (s *service) ConfirmDelivery(ctx context.Context, input ActorInput) (*models.ProduceBatch, error) {
	if input.ActorRole != enums.ParticipantRoleRetailer {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only retailers may confirm delivery")
	}
	return s.transition(ctx, input.BatchNumber, func(tx *gorm.DB, batch *models.ProduceBatch) error {
		if batch.Status != enums.ProduceStatusInTransit {
			return pkgerrors.New(pkgerrors.CodeInvalidStatus, "batch is not in transit").
				WithDetails(map[string]any{"status": batch.Status})
		}
		batch.Status = enums.ProduceStatusDelivered
		batch.DeliveryConfirmed = true
		batch.UpdatedAt = time.Now()
		if err := s.repo.WithTx(tx).Save(ctx, batch); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist delivery confirmation")
		}
		if err := s.emit(ctx, tx, enums.OutboxEventProduceDelivered, batch, input.ActorID, input.ActorRole, StatusChangedEvent{
			BatchNumber: batch.BatchNumber,
			Status:      batch.Status,
		}); err != nil {
			return err
		}
		return s.settlement.SettleInTx(ctx, tx, batch, settlement.TriggerDelivery)
	})
}

// VerifyQuality records the inspected score. A score below the acceptance
// threshold flips the batch into dispute and opens a dispute record; any other
// score marks the batch quality verified. The operation is valid at any point
// in the lifecycle.
func (s *service) VerifyQuality(ctx context.Context, input VerifyQualityInput) (*models.ProduceBatch, error) {
	if input.ActorRole != enums.ParticipantRoleWholesaler && input.ActorRole != enums.ParticipantRoleRetailer {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only wholesalers and retailers may verify quality")
	}
	if input.Quality < 0 || input.Quality > 100 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quality must be between 0 and 100")
	}

	return s.transition(ctx, input.BatchNumber, func(tx *gorm.DB, batch *models.ProduceBatch) error {
		batch.VerifiedQuality = input.Quality
		disputed := input.Quality < settlement.QualityThresholdLow
		if disputed {
			batch.Status = enums.ProduceStatusDisputed
		} else {
			batch.Status = enums.ProduceStatusQualityVerified
		}

		var dispute *models.Dispute
		if disputed && !batch.DisputeOpen {
			batch.DisputeOpen = true
			dispute = &models.Dispute{
				ID:       uuid.New(),
				BatchID:  batch.ID,
				RaiserID: input.ActorID,
				Reason:   AutoDisputeReason,
			}
			if err := s.disputes.CreateTx(ctx, tx, dispute); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open dispute")
			}
		}

		batch.UpdatedAt = time.Now()
		if err := s.repo.WithTx(tx).Save(ctx, batch); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist quality verification")
		}

		if err := s.emit(ctx, tx, enums.OutboxEventQualityVerified, batch, input.ActorID, input.ActorRole, QualityVerifiedEvent{
			BatchNumber:     batch.BatchNumber,
			VerifiedQuality: batch.VerifiedQuality,
			DisputeOpened:   dispute != nil,
		}); err != nil {
			return err
		}
		if dispute != nil {
			s.metrics.IncDispute("automatic")
			return s.emit(ctx, tx, enums.OutboxEventDisputeRaised, batch, input.ActorID, input.ActorRole, DisputeRaisedEvent{
				BatchNumber: batch.BatchNumber,
				DisputeID:   dispute.ID,
				RaiserID:    input.ActorID,
				Reason:      dispute.Reason,
				Automatic:   true,
			})
		}
		return nil
	})
}

func (s *service) GetByBatchNumber(ctx context.Context, batchNumber uint64) (*models.ProduceBatch, error) {
	batch, err := s.repo.GetByBatchNumber(ctx, batchNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "produce batch not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load produce batch")
	}
	return batch, nil
}

func (s *service) ListByProducer(ctx context.Context, producerID uuid.UUID) ([]models.ProduceBatch, error) {
	batches, err := s.repo.ListByProducer(ctx, producerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list produce batches")
	}
	return batches, nil
}

// transition loads the batch under a row lock, applies the mutation, and
// returns the updated batch.
func (s *service) transition(ctx context.Context, batchNumber uint64, fn func(tx *gorm.DB, batch *models.ProduceBatch) error) (*models.ProduceBatch, error) {
	var updated *models.ProduceBatch
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		batch, err := s.repo.WithTx(tx).GetByBatchNumberForUpdate(ctx, batchNumber)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "produce batch not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load produce batch")
		}
		if err := fn(tx, batch); err != nil {
			return err
		}
		updated = batch
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, batch *models.ProduceBatch, actorID uuid.UUID, role enums.ParticipantRole, data interface{}) error {
	if s.outbox == nil {
		return nil
	}
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.OutboxAggregateProduceBatch,
		AggregateID:   batch.ID,
		Actor:         &outbox.ActorRef{ParticipantID: actorID, Role: role.String()},
		Data:          data,
		Version:       1,
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit lifecycle event")
	}
	return nil
}
