package disputes

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agritrace/agritrace-backend/pkg/db/models"
	"github.com/agritrace/agritrace-backend/pkg/enums"
	pkgerrors "github.com/agritrace/agritrace-backend/pkg/errors"
	"github.com/agritrace/agritrace-backend/pkg/outbox"
)

type fakeRepository struct {
	byID map[uuid.UUID]*models.Dispute
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{byID: map[uuid.UUID]*models.Dispute{}}
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, dispute *models.Dispute) error {
	f.byID[dispute.ID] = dispute
	return nil
}

func (f *fakeRepository) CreateTx(ctx context.Context, tx *gorm.DB, dispute *models.Dispute) error {
	return f.Create(ctx, dispute)
}

func (f *fakeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	if dispute, ok := f.byID[id]; ok {
		return dispute, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeRepository) Save(ctx context.Context, dispute *models.Dispute) error {
	f.byID[dispute.ID] = dispute
	return nil
}

func (f *fakeRepository) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]models.Dispute, error) {
	var out []models.Dispute
	for _, dispute := range f.byID {
		if dispute.BatchID == batchID {
			out = append(out, *dispute)
		}
	}
	return out, nil
}

type fakeBatchStore struct {
	byNumber map[uint64]*models.ProduceBatch
	saved    int
}

func newFakeBatchStore() *fakeBatchStore {
	return &fakeBatchStore{byNumber: map[uint64]*models.ProduceBatch{}}
}

func (f *fakeBatchStore) GetByBatchNumberForUpdateTx(ctx context.Context, tx *gorm.DB, batchNumber uint64) (*models.ProduceBatch, error) {
	if batch, ok := f.byNumber[batchNumber]; ok {
		return batch, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeBatchStore) GetByIDForUpdateTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.ProduceBatch, error) {
	for _, batch := range f.byNumber {
		if batch.ID == id {
			return batch, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeBatchStore) SaveTx(ctx context.Context, tx *gorm.DB, batch *models.ProduceBatch) error {
	f.saved++
	f.byNumber[batch.BatchNumber] = batch
	return nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeEmitter struct {
	events []outbox.DomainEvent
}

func (f *fakeEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

func setupDisputes(t *testing.T) (Service, *fakeRepository, *fakeBatchStore, *fakeEmitter) {
	t.Helper()
	repo := newFakeRepository()
	batches := newFakeBatchStore()
	emitter := &fakeEmitter{}
	svc, err := NewService(repo, batches, fakeTxRunner{}, emitter, nil)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc, repo, batches, emitter
}

func inTransitBatch(batchNumber uint64) *models.ProduceBatch {
	return &models.ProduceBatch{
		ID:          uuid.New(),
		BatchNumber: batchNumber,
		ProducerID:  uuid.New(),
		Status:      enums.ProduceStatusInTransit,
	}
}

func TestRaiseDisputeFreezesBatch(t *testing.T) {
	svc, _, batches, emitter := setupDisputes(t)
	batch := inTransitBatch(9)
	batches.byNumber[9] = batch
	raiser := uuid.New()

	dispute, err := svc.RaiseDispute(context.Background(), RaiseDisputeInput{
		ActorID: raiser, ActorRole: enums.ParticipantRoleRetailer,
		BatchNumber: 9, Reason: "crates arrived crushed",
	})
	if err != nil {
		t.Fatalf("raise dispute: %v", err)
	}
	if dispute.BatchID != batch.ID || dispute.RaiserID != raiser {
		t.Fatalf("unexpected dispute record: %+v", dispute)
	}
	if batch.Status != enums.ProduceStatusDisputed || !batch.DisputeOpen {
		t.Fatalf("batch not frozen: %+v", batch)
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType != enums.OutboxEventDisputeRaised {
		t.Fatalf("expected dispute.raised event, got %+v", emitter.events)
	}
}

func TestRaiseDisputeRejectsSecondOpenDispute(t *testing.T) {
	svc, _, batches, _ := setupDisputes(t)
	batch := inTransitBatch(9)
	batch.DisputeOpen = true
	batches.byNumber[9] = batch

	_, err := svc.RaiseDispute(context.Background(), RaiseDisputeInput{
		ActorID: uuid.New(), ActorRole: enums.ParticipantRoleProducer,
		BatchNumber: 9, Reason: "pricing disagreement",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}

func TestRaiseDisputeValidatesReason(t *testing.T) {
	svc, _, batches, _ := setupDisputes(t)
	batches.byNumber[9] = inTransitBatch(9)

	_, err := svc.RaiseDispute(context.Background(), RaiseDisputeInput{
		ActorID: uuid.New(), ActorRole: enums.ParticipantRoleProducer, BatchNumber: 9,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR for empty reason, got %v", err)
	}

	_, err = svc.RaiseDispute(context.Background(), RaiseDisputeInput{
		ActorID: uuid.New(), ActorRole: enums.ParticipantRoleProducer,
		BatchNumber: 9, Reason: strings.Repeat("x", maxReasonLength+1),
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected VALIDATION_ERROR for long reason, got %v", err)
	}
}

func TestRaiseDisputeUnknownBatch(t *testing.T) {
	svc, _, _, _ := setupDisputes(t)
	_, err := svc.RaiseDispute(context.Background(), RaiseDisputeInput{
		ActorID: uuid.New(), ActorRole: enums.ParticipantRoleProducer,
		BatchNumber: 404, Reason: "missing shipment",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestResolveDisputeUpheldReturnsBatchToDelivered(t *testing.T) {
	svc, _, batches, emitter := setupDisputes(t)
	batch := inTransitBatch(9)
	batches.byNumber[9] = batch

	dispute, err := svc.RaiseDispute(context.Background(), RaiseDisputeInput{
		ActorID: uuid.New(), ActorRole: enums.ParticipantRoleRetailer,
		BatchNumber: 9, Reason: "short delivery",
	})
	if err != nil {
		t.Fatalf("raise dispute: %v", err)
	}

	arbitrator := uuid.New()
	resolved, err := svc.ResolveDispute(context.Background(), ResolveDisputeInput{
		ActorID: arbitrator, ActorRole: enums.ParticipantRoleArbitrator,
		DisputeID: dispute.ID, Outcome: true,
	})
	if err != nil {
		t.Fatalf("resolve dispute: %v", err)
	}
	if !resolved.Resolved || !resolved.Outcome {
		t.Fatalf("dispute not resolved: %+v", resolved)
	}
	if resolved.ResolvedBy == nil || *resolved.ResolvedBy != arbitrator {
		t.Fatal("resolver not recorded")
	}
	if batch.Status != enums.ProduceStatusDelivered || batch.DisputeOpen {
		t.Fatalf("upheld outcome must unfreeze to delivered: %+v", batch)
	}
	last := emitter.events[len(emitter.events)-1]
	if last.EventType != enums.OutboxEventDisputeResolved {
		t.Fatalf("expected dispute.resolved event, got %s", last.EventType)
	}
}

func TestResolveDisputeRejectedLeavesBatchDisputed(t *testing.T) {
	svc, _, batches, _ := setupDisputes(t)
	batch := inTransitBatch(9)
	batches.byNumber[9] = batch

	dispute, err := svc.RaiseDispute(context.Background(), RaiseDisputeInput{
		ActorID: uuid.New(), ActorRole: enums.ParticipantRoleRetailer,
		BatchNumber: 9, Reason: "spoiled on arrival",
	})
	if err != nil {
		t.Fatalf("raise dispute: %v", err)
	}

	_, err = svc.ResolveDispute(context.Background(), ResolveDisputeInput{
		ActorID: uuid.New(), ActorRole: enums.ParticipantRoleArbitrator,
		DisputeID: dispute.ID, Outcome: false,
	})
	if err != nil {
		t.Fatalf("resolve dispute: %v", err)
	}
	if batch.Status != enums.ProduceStatusDisputed {
		t.Fatalf("rejected outcome must leave the batch disputed: %+v", batch)
	}
	if batch.DisputeOpen {
		t.Fatal("resolution must close the dispute either way")
	}
}

func TestResolveDisputeRequiresArbitrator(t *testing.T) {
	svc, _, _, _ := setupDisputes(t)
	_, err := svc.ResolveDispute(context.Background(), ResolveDisputeInput{
		ActorID: uuid.New(), ActorRole: enums.ParticipantRoleRetailer,
		DisputeID: uuid.New(), Outcome: true,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN, got %v", err)
	}
}

func TestResolveDisputeAlreadyResolved(t *testing.T) {
	svc, _, batches, _ := setupDisputes(t)
	batch := inTransitBatch(9)
	batches.byNumber[9] = batch

	dispute, err := svc.RaiseDispute(context.Background(), RaiseDisputeInput{
		ActorID: uuid.New(), ActorRole: enums.ParticipantRoleRetailer,
		BatchNumber: 9, Reason: "weight mismatch",
	})
	if err != nil {
		t.Fatalf("raise dispute: %v", err)
	}

	input := ResolveDisputeInput{
		ActorID: uuid.New(), ActorRole: enums.ParticipantRoleArbitrator,
		DisputeID: dispute.ID, Outcome: true,
	}
	if _, err := svc.ResolveDispute(context.Background(), input); err != nil {
		t.Fatalf("first resolution: %v", err)
	}
	_, err = svc.ResolveDispute(context.Background(), input)
	if !pkgerrors.HasCode(err, pkgerrors.CodeConflict) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}
}

func TestResolveDisputeNotFound(t *testing.T) {
	svc, _, _, _ := setupDisputes(t)
	_, err := svc.ResolveDispute(context.Background(), ResolveDisputeInput{
		ActorID: uuid.New(), ActorRole: enums.ParticipantRoleArbitrator,
		DisputeID: uuid.New(), Outcome: true,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}
