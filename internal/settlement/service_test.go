package settlement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agritrace/agritrace-backend/internal/vault"
	"github.com/agritrace/agritrace-backend/pkg/db/models"
	"github.com/agritrace/agritrace-backend/pkg/enums"
	pkgerrors "github.com/agritrace/agritrace-backend/pkg/errors"
	"github.com/agritrace/agritrace-backend/pkg/outbox"
)

type fakeBatchStore struct {
	batches map[uint64]*models.ProduceBatch
	saved   []*models.ProduceBatch
}

func newFakeBatchStore() *fakeBatchStore {
	return &fakeBatchStore{batches: map[uint64]*models.ProduceBatch{}}
}

func (f *fakeBatchStore) GetByBatchNumberForUpdateTx(ctx context.Context, tx *gorm.DB, batchNumber uint64) (*models.ProduceBatch, error) {
	if batch, ok := f.batches[batchNumber]; ok {
		return batch, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeBatchStore) SaveTx(ctx context.Context, tx *gorm.DB, batch *models.ProduceBatch) error {
	f.saved = append(f.saved, batch)
	return nil
}

type fakeVault struct {
	accounts    map[uuid.UUID]*models.Account
	transfers   []vault.TransferInput
	transferErr error
}

func newFakeVault() *fakeVault {
	return &fakeVault{accounts: map[uuid.UUID]*models.Account{}}
}

func (f *fakeVault) AccountOf(ctx context.Context, participantID uuid.UUID) (*models.Account, error) {
	if account, ok := f.accounts[participantID]; ok {
		return account, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
}

func (f *fakeVault) TransferTx(ctx context.Context, tx *gorm.DB, input vault.TransferInput) error {
	if f.transferErr != nil {
		return f.transferErr
	}
	f.transfers = append(f.transfers, input)
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

func payableBatch(producer, carrier uuid.UUID) *models.ProduceBatch {
	return &models.ProduceBatch{
		ID:                uuid.New(),
		BatchNumber:       1,
		ProducerID:        producer,
		CarrierID:         &carrier,
		Status:            enums.ProduceStatusDelivered,
		DeliveryConfirmed: true,
		VerifiedQuality:   90,
		ProducerPrice:     100,
		CarrierFee:        50,
	}
}

func setupSettlement(t *testing.T) (Service, *fakeBatchStore, *fakeVault, *fakeEmitter) {
	t.Helper()
	store := newFakeBatchStore()
	vaultSvc := newFakeVault()
	emitter := &fakeEmitter{}
	svc, err := NewService(store, vaultSvc, fakeTxRunner{}, emitter, nil, 10)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc, store, vaultSvc, emitter
}

func registerParticipants(vaultSvc *fakeVault, producer, carrier uuid.UUID) (uuid.UUID, uuid.UUID) {
	producerAccount := uuid.New()
	carrierAccount := uuid.New()
	vaultSvc.accounts[producer] = &models.Account{ID: producerAccount, OwnerID: &producer, Kind: enums.AccountKindParticipant}
	vaultSvc.accounts[carrier] = &models.Account{ID: carrierAccount, OwnerID: &carrier, Kind: enums.AccountKindParticipant}
	return producerAccount, carrierAccount
}

func TestSettlePaysBothPartiesAndMarksSettled(t *testing.T) {
	svc, store, vaultSvc, emitter := setupSettlement(t)
	producer, carrier := uuid.New(), uuid.New()
	producerAccount, carrierAccount := registerParticipants(vaultSvc, producer, carrier)

	batch := payableBatch(producer, carrier)
	if err := svc.SettleInTx(context.Background(), &gorm.DB{}, batch, TriggerDelivery); err != nil {
		t.Fatalf("settle error: %v", err)
	}

	if len(vaultSvc.transfers) != 2 {
		t.Fatalf("expected 2 transfers, got %d", len(vaultSvc.transfers))
	}
	first, second := vaultSvc.transfers[0], vaultSvc.transfers[1]
	if first.From != vault.EscrowVaultID || first.To != producerAccount || first.Amount != 120 {
		t.Fatalf("unexpected producer transfer: %+v", first)
	}
	if second.From != vault.EscrowVaultID || second.To != carrierAccount || second.Amount != 55 {
		t.Fatalf("unexpected carrier transfer: %+v", second)
	}
	if first.Authority != vault.AuthorityID || second.Authority != vault.AuthorityID {
		t.Fatal("vault debits must use the system authority")
	}

	if !batch.Settled || batch.ProducerReward == nil || *batch.ProducerReward != 120 {
		t.Fatalf("batch not marked settled correctly: %+v", batch)
	}
	if len(store.saved) != 1 {
		t.Fatalf("expected batch persisted once, got %d", len(store.saved))
	}
	if len(emitter.events) != 1 || emitter.events[0].EventType != enums.OutboxEventSettlementPaid {
		t.Fatalf("expected settlement.paid event, got %+v", emitter.events)
	}
}

func TestSettleIsIdempotentOnSettledBatch(t *testing.T) {
	svc, store, vaultSvc, _ := setupSettlement(t)
	producer, carrier := uuid.New(), uuid.New()
	registerParticipants(vaultSvc, producer, carrier)

	batch := payableBatch(producer, carrier)
	batch.Settled = true
	settledAt := time.Now()
	batch.SettledAt = &settledAt

	if err := svc.SettleInTx(context.Background(), &gorm.DB{}, batch, TriggerPayment); err != nil {
		t.Fatalf("settle error: %v", err)
	}
	if len(vaultSvc.transfers) != 0 {
		t.Fatal("settled batch must not pay again")
	}
	if len(store.saved) != 0 {
		t.Fatal("settled batch must not be rewritten")
	}
}

func TestSettleDefersWhenDisputeOpen(t *testing.T) {
	svc, store, vaultSvc, emitter := setupSettlement(t)
	producer, carrier := uuid.New(), uuid.New()
	registerParticipants(vaultSvc, producer, carrier)

	batch := payableBatch(producer, carrier)
	batch.DisputeOpen = true

	if err := svc.SettleInTx(context.Background(), &gorm.DB{}, batch, TriggerDelivery); err != nil {
		t.Fatalf("settle error: %v", err)
	}
	if len(vaultSvc.transfers) != 0 {
		t.Fatal("open dispute must not debit the vault")
	}
	if batch.Settled {
		t.Fatal("deferred batch must stay unsettled")
	}
	if len(store.saved) != 0 {
		t.Fatal("deferred batch must not be rewritten")
	}
	if len(emitter.events) != 0 {
		t.Fatal("no event on deferral")
	}
}

func TestSettlePropagatesInsufficientFunds(t *testing.T) {
	svc, _, vaultSvc, _ := setupSettlement(t)
	producer, carrier := uuid.New(), uuid.New()
	registerParticipants(vaultSvc, producer, carrier)
	vaultSvc.transferErr = pkgerrors.New(pkgerrors.CodeInsufficientFunds, "source balance below transfer amount")

	batch := payableBatch(producer, carrier)
	err := svc.SettleInTx(context.Background(), &gorm.DB{}, batch, TriggerDelivery)
	if !pkgerrors.HasCode(err, pkgerrors.CodeInsufficientFunds) {
		t.Fatalf("expected INSUFFICIENT_FUNDS, got %v", err)
	}
	if batch.Settled {
		t.Fatal("batch must not settle when the vault cannot cover the payout")
	}
}

func TestProcessPaymentRequiresPayableState(t *testing.T) {
	svc, store, vaultSvc, _ := setupSettlement(t)
	producer, carrier := uuid.New(), uuid.New()
	registerParticipants(vaultSvc, producer, carrier)

	batch := payableBatch(producer, carrier)
	batch.Status = enums.ProduceStatusInTransit
	batch.DeliveryConfirmed = false
	store.batches[batch.BatchNumber] = batch

	_, err := svc.ProcessPayment(context.Background(), ProcessPaymentInput{
		BatchNumber: batch.BatchNumber,
		ActorID:     uuid.New(),
		ActorRole:   enums.ParticipantRoleRetailer,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidStatus) {
		t.Fatalf("expected INVALID_STATUS, got %v", err)
	}
}

func TestProcessPaymentIsIdempotent(t *testing.T) {
	svc, store, vaultSvc, _ := setupSettlement(t)
	producer, carrier := uuid.New(), uuid.New()
	registerParticipants(vaultSvc, producer, carrier)

	batch := payableBatch(producer, carrier)
	store.batches[batch.BatchNumber] = batch

	actor := ProcessPaymentInput{BatchNumber: batch.BatchNumber, ActorID: uuid.New(), ActorRole: enums.ParticipantRoleRetailer}

	first, err := svc.ProcessPayment(context.Background(), actor)
	if err != nil {
		t.Fatalf("first payment error: %v", err)
	}
	if !first.Settled || len(vaultSvc.transfers) != 2 {
		t.Fatalf("first payment did not settle: %+v", first)
	}

	second, err := svc.ProcessPayment(context.Background(), actor)
	if err != nil {
		t.Fatalf("second payment error: %v", err)
	}
	if len(vaultSvc.transfers) != 2 {
		t.Fatal("second payment must not transfer again")
	}
	if second.ProducerReward == nil || *second.ProducerReward != 120 {
		t.Fatalf("second payment must return the recorded rewards: %+v", second)
	}
}

func TestProcessPaymentAfterDisputeClearsPaysOnce(t *testing.T) {
	svc, store, vaultSvc, _ := setupSettlement(t)
	producer, carrier := uuid.New(), uuid.New()
	registerParticipants(vaultSvc, producer, carrier)

	batch := payableBatch(producer, carrier)
	batch.VerifiedQuality = 40
	batch.DisputeOpen = true
	store.batches[batch.BatchNumber] = batch

	input := ProcessPaymentInput{BatchNumber: batch.BatchNumber, ActorID: uuid.New(), ActorRole: enums.ParticipantRoleRetailer}

	deferred, err := svc.ProcessPayment(context.Background(), input)
	if err != nil {
		t.Fatalf("deferred payment error: %v", err)
	}
	if deferred.Settled || len(vaultSvc.transfers) != 0 {
		t.Fatalf("open dispute must defer the payout: %+v", deferred)
	}

	batch.DisputeOpen = false

	paid, err := svc.ProcessPayment(context.Background(), input)
	if err != nil {
		t.Fatalf("payment after resolution error: %v", err)
	}
	if !paid.Settled || len(vaultSvc.transfers) != 2 {
		t.Fatalf("cleared dispute must settle: %+v", paid)
	}
	if vaultSvc.transfers[0].Amount != 70 || vaultSvc.transfers[1].Amount != 43 {
		t.Fatalf("unexpected penalty payouts: %d/%d", vaultSvc.transfers[0].Amount, vaultSvc.transfers[1].Amount)
	}

	if _, err := svc.ProcessPayment(context.Background(), input); err != nil {
		t.Fatalf("repeat payment error: %v", err)
	}
	if len(vaultSvc.transfers) != 2 {
		t.Fatal("repeat payment must not transfer again")
	}
}

func TestProcessPaymentUnknownBatch(t *testing.T) {
	svc, _, _, _ := setupSettlement(t)
	_, err := svc.ProcessPayment(context.Background(), ProcessPaymentInput{
		BatchNumber: 404,
		ActorID:     uuid.New(),
		ActorRole:   enums.ParticipantRoleRetailer,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}
