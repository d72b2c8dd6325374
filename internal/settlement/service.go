package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agritrace/agritrace-backend/internal/vault"
	"github.com/agritrace/agritrace-backend/pkg/db/models"
	"github.com/agritrace/agritrace-backend/pkg/enums"
	pkgerrors "github.com/agritrace/agritrace-backend/pkg/errors"
	"github.com/agritrace/agritrace-backend/pkg/metrics"
	"github.com/agritrace/agritrace-backend/pkg/outbox"
)

// Triggers recorded on settlement metrics and events.
const (
	TriggerDelivery = "delivery"
	TriggerPayment  = "payment"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// BatchStore is the slice of batch persistence the engine needs. The produce
// repository satisfies it.
type BatchStore interface {
	GetByBatchNumberForUpdateTx(ctx context.Context, tx *gorm.DB, batchNumber uint64) (*models.ProduceBatch, error)
	SaveTx(ctx context.Context, tx *gorm.DB, batch *models.ProduceBatch) error
}

type accountResolver interface {
	AccountOf(ctx context.Context, participantID uuid.UUID) (*models.Account, error)
	TransferTx(ctx context.Context, tx *gorm.DB, input vault.TransferInput) error
}

// Service executes settlements. Both call sites — delivery confirmation and
// the standalone payment operation — run through SettleInTx, and the settled
// flag makes re-settlement a no-op.
type Service interface {
	SettleInTx(ctx context.Context, tx *gorm.DB, batch *models.ProduceBatch, trigger string) error
	ProcessPayment(ctx context.Context, input ProcessPaymentInput) (*models.ProduceBatch, error)
}

type service struct {
	batches   BatchStore
	vault     accountResolver
	tx        txRunner
	outbox    outboxEmitter
	metrics   *metrics.SettlementMetrics
	minReward uint64
}

// ProcessPaymentInput identifies the batch to settle and the caller.
type ProcessPaymentInput struct {
	BatchNumber uint64
	ActorID     uuid.UUID
	ActorRole   enums.ParticipantRole
}

// SettlementPaidEvent is emitted on the outbox when a settlement executes.
type SettlementPaidEvent struct {
	BatchNumber    uint64 `json:"batch_number"`
	ProducerReward uint64 `json:"producer_reward"`
	CarrierReward  uint64 `json:"carrier_reward"`
	Trigger        string `json:"trigger"`
}

// NewService wires the settlement service.
func NewService(batches BatchStore, vaultSvc accountResolver, tx txRunner, emitter outboxEmitter, m *metrics.SettlementMetrics, minReward uint64) (Service, error) {
	if batches == nil {
		return nil, fmt.Errorf("batch store required")
	}
	if vaultSvc == nil {
		return nil, fmt.Errorf("vault service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		batches:   batches,
		vault:     vaultSvc,
		tx:        tx,
		outbox:    emitter,
		metrics:   m,
		minReward: minReward,
	}, nil
}

// SettleInTx computes rewards for the batch and, unless a dispute defers the
// payment, pays producer and carrier out of the escrow vault and marks the
// batch settled. It mutates and persists the batch inside the caller's
// transaction; a failure anywhere rolls the whole operation back.
func (s *service) SettleInTx(ctx context.Context, tx *gorm.DB, batch *models.ProduceBatch, trigger string) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required")
	}
	if batch == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "batch required")
	}
	if batch.Settled {
		return nil
	}

	rewards, err := Compute(Snapshot{
		ProducerPrice:     batch.ProducerPrice,
		CarrierFee:        batch.CarrierFee,
		VerifiedQuality:   batch.VerifiedQuality,
		DisputeOpen:       batch.DisputeOpen,
		TransportTempC:    batch.TransportTempC,
		TransportHumidity: batch.TransportHumidity,
	}, s.minReward)
	if err != nil {
		return err
	}

	if rewards.Deferred {
		s.metrics.IncDeferred()
		return nil
	}

	if batch.CarrierID == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "batch has no recorded carrier")
	}

	producerAccount, err := s.vault.AccountOf(ctx, batch.ProducerID)
	if err != nil {
		return err
	}
	carrierAccount, err := s.vault.AccountOf(ctx, *batch.CarrierID)
	if err != nil {
		return err
	}

	batchID := batch.ID
	if err := s.vault.TransferTx(ctx, tx, vault.TransferInput{
		From:      vault.EscrowVaultID,
		To:        producerAccount.ID,
		Amount:    rewards.Producer,
		Kind:      enums.TransferKindProducerPayout,
		BatchID:   &batchID,
		Authority: vault.AuthorityID,
	}); err != nil {
		return err
	}
	if err := s.vault.TransferTx(ctx, tx, vault.TransferInput{
		From:      vault.EscrowVaultID,
		To:        carrierAccount.ID,
		Amount:    rewards.Carrier,
		Kind:      enums.TransferKindCarrierPayout,
		BatchID:   &batchID,
		Authority: vault.AuthorityID,
	}); err != nil {
		return err
	}

	now := time.Now()
	producerReward := rewards.Producer
	carrierReward := rewards.Carrier
	batch.Settled = true
	batch.SettledAt = &now
	batch.ProducerReward = &producerReward
	batch.CarrierReward = &carrierReward
	batch.UpdatedAt = now
	if err := s.batches.SaveTx(ctx, tx, batch); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist settlement")
	}

	if s.outbox != nil {
		event := outbox.DomainEvent{
			EventType:     enums.OutboxEventSettlementPaid,
			AggregateType: enums.OutboxAggregateProduceBatch,
			AggregateID:   batch.ID,
			Data: SettlementPaidEvent{
				BatchNumber:    batch.BatchNumber,
				ProducerReward: rewards.Producer,
				CarrierReward:  rewards.Carrier,
				Trigger:        trigger,
			},
			Version: 1,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit settlement event")
		}
	}

	s.metrics.IncSettled(trigger)
	s.metrics.AddPayout("producer", rewards.Producer)
	s.metrics.AddPayout("carrier", rewards.Carrier)
	return nil
}

// ProcessPayment is the standalone settlement entry point. Calling it on an
// already-settled batch returns the recorded rewards without paying again.
func (s *service) ProcessPayment(ctx context.Context, input ProcessPaymentInput) (*models.ProduceBatch, error) {
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing")
	}

	var settled *models.ProduceBatch
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		batch, err := s.batches.GetByBatchNumberForUpdateTx(ctx, tx, input.BatchNumber)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "produce batch not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load produce batch")
		}

		if batch.Settled {
			settled = batch
			return nil
		}

		if !batch.DeliveryConfirmed || batch.Status != enums.ProduceStatusDelivered {
			return pkgerrors.New(pkgerrors.CodeInvalidStatus, "batch is not in a payable state")
		}

		if err := s.SettleInTx(ctx, tx, batch, TriggerPayment); err != nil {
			return err
		}
		settled = batch
		return nil
	})
	if err != nil {
		return nil, err
	}
	return settled, nil
}
