package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agritrace/agritrace-backend/api/middleware"
	"github.com/agritrace/agritrace-backend/internal/produce"
	"github.com/agritrace/agritrace-backend/pkg/db/models"
	"github.com/agritrace/agritrace-backend/pkg/enums"
	pkgerrors "github.com/agritrace/agritrace-backend/pkg/errors"
)

type fakeProduceService struct {
	lastHarvest produce.LogHarvestInput
	lastVerify  produce.VerifyQualityInput
	batch       *models.ProduceBatch
	err         error
}

func (f *fakeProduceService) LogHarvest(_ context.Context, input produce.LogHarvestInput) (*models.ProduceBatch, error) {
	f.lastHarvest = input
	return f.batch, f.err
}

func (f *fakeProduceService) RecordPickup(context.Context, produce.RecordPickupInput) (*models.ProduceBatch, error) {
	return f.batch, f.err
}

func (f *fakeProduceService) ConfirmPickup(context.Context, produce.ActorInput) (*models.ProduceBatch, error) {
	return f.batch, f.err
}

func (f *fakeProduceService) RecordDelivery(context.Context, produce.ActorInput) (*models.ProduceBatch, error) {
	return f.batch, f.err
}

func (f *fakeProduceService) ConfirmDelivery(context.Context, produce.ActorInput) (*models.ProduceBatch, error) {
	return f.batch, f.err
}

func (f *fakeProduceService) VerifyQuality(_ context.Context, input produce.VerifyQualityInput) (*models.ProduceBatch, error) {
	f.lastVerify = input
	return f.batch, f.err
}

func (f *fakeProduceService) GetByBatchNumber(context.Context, uint64) (*models.ProduceBatch, error) {
	return f.batch, f.err
}

func (f *fakeProduceService) ListByProducer(context.Context, uuid.UUID) ([]models.ProduceBatch, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []models.ProduceBatch{*f.batch}, nil
}

func sampleBatch() *models.ProduceBatch {
	return &models.ProduceBatch{
		ID:              uuid.New(),
		BatchNumber:     42,
		ProducerID:      uuid.New(),
		Kind:            "tomatoes",
		Quantity:        500,
		DeclaredQuality: 85,
		VerifiedQuality: 85,
		Status:          enums.ProduceStatusHarvested,
		ProducerPrice:   1000,
		CarrierFee:      200,
	}
}

func authedRequest(method, target, body string, role enums.ParticipantRole) *http.Request {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(middleware.WithParticipant(req.Context(), uuid.New(), role))
}

func withBatchNumberParam(req *http.Request, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("batchNumber", value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestHarvestCreateReturnsCreatedBatch(t *testing.T) {
	svc := &fakeProduceService{batch: sampleBatch()}
	handler := HarvestCreate(svc, nil)

	body := `{"batch_number":42,"kind":"tomatoes","quantity":500,"declared_quality":85,"producer_price":1000,"carrier_fee":200}`
	rec := httptest.NewRecorder()
	handler(rec, authedRequest(http.MethodPost, "/api/v1/harvests", body, enums.ParticipantRoleProducer))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, uint64(42), svc.lastHarvest.BatchNumber)
	assert.Equal(t, enums.ParticipantRoleProducer, svc.lastHarvest.ActorRole)

	var envelope struct {
		Data batchResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, uint64(42), envelope.Data.BatchNumber)
	assert.Equal(t, "harvested", envelope.Data.Status)
}

func TestHarvestCreateRejectsBadTimestamp(t *testing.T) {
	svc := &fakeProduceService{batch: sampleBatch()}
	handler := HarvestCreate(svc, nil)

	body := `{"batch_number":42,"kind":"tomatoes","quantity":500,"producer_price":1000,"carrier_fee":200,"harvested_at":"yesterday"}`
	rec := httptest.NewRecorder()
	handler(rec, authedRequest(http.MethodPost, "/api/v1/harvests", body, enums.ParticipantRoleProducer))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, svc.lastHarvest.BatchNumber)
}

func TestHarvestCreateRejectsUnknownFields(t *testing.T) {
	svc := &fakeProduceService{batch: sampleBatch()}
	handler := HarvestCreate(svc, nil)

	body := `{"batch_number":42,"kind":"tomatoes","quantity":500,"producer_price":1000,"carrier_fee":200,"bogus":true}`
	rec := httptest.NewRecorder()
	handler(rec, authedRequest(http.MethodPost, "/api/v1/harvests", body, enums.ParticipantRoleProducer))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQualityVerifyPassesScoreAndActor(t *testing.T) {
	svc := &fakeProduceService{batch: sampleBatch()}
	handler := QualityVerify(svc, nil)

	req := authedRequest(http.MethodPost, "/api/v1/batches/42/quality", `{"quality":40}`, enums.ParticipantRoleRetailer)
	req = withBatchNumberParam(req, "42")
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 40, svc.lastVerify.Quality)
	assert.Equal(t, uint64(42), svc.lastVerify.BatchNumber)
	assert.Equal(t, enums.ParticipantRoleRetailer, svc.lastVerify.ActorRole)
}

func TestTransitionHandlerMapsServiceErrors(t *testing.T) {
	svc := &fakeProduceService{err: pkgerrors.New(pkgerrors.CodeInvalidStatus, "batch is not picked up")}
	handler := DeliveryRecord(svc, nil)

	req := authedRequest(http.MethodPost, "/api/v1/batches/42/delivery", "", enums.ParticipantRoleCarrier)
	req = withBatchNumberParam(req, "42")
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "batch is not picked up")
}

func TestBatchGetRejectsNonNumericParam(t *testing.T) {
	svc := &fakeProduceService{batch: sampleBatch()}
	handler := BatchGet(svc, nil)

	req := authedRequest(http.MethodGet, "/api/v1/batches/abc", "", enums.ParticipantRoleProducer)
	req = withBatchNumberParam(req, "abc")
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
