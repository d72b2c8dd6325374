package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/agritrace/agritrace-backend/api/middleware"
	"github.com/agritrace/agritrace-backend/api/responses"
	"github.com/agritrace/agritrace-backend/api/validators"
	"github.com/agritrace/agritrace-backend/internal/produce"
	"github.com/agritrace/agritrace-backend/internal/settlement"
	"github.com/agritrace/agritrace-backend/pkg/db/models"
	"github.com/agritrace/agritrace-backend/pkg/logger"
)

type harvestCreateRequest struct {
	BatchNumber     uint64 `json:"batch_number" validate:"required,gte=1"`
	Kind            string `json:"kind" validate:"required,max=64"`
	Quantity        uint64 `json:"quantity" validate:"required,gte=1"`
	DeclaredQuality int    `json:"declared_quality" validate:"gte=0,lte=100"`
	ProducerPrice   uint64 `json:"producer_price" validate:"required,gte=1"`
	CarrierFee      uint64 `json:"carrier_fee" validate:"required,gte=1"`
	HarvestedAt     string `json:"harvested_at,omitempty"`
}

type pickupRequest struct {
	TransportTempC    int `json:"transport_temp_c"`
	TransportHumidity int `json:"transport_humidity" validate:"gte=0,lte=100"`
}

type qualityVerifyRequest struct {
	Quality int `json:"quality" validate:"gte=0,lte=100"`
}

type batchResponse struct {
	ID                string     `json:"id"`
	BatchNumber       uint64     `json:"batch_number"`
	ProducerID        string     `json:"producer_id"`
	CarrierID         *string    `json:"carrier_id,omitempty"`
	Kind              string     `json:"kind"`
	Quantity          uint64     `json:"quantity"`
	HarvestedAt       time.Time  `json:"harvested_at"`
	DeclaredQuality   int        `json:"declared_quality"`
	VerifiedQuality   int        `json:"verified_quality"`
	Status            string     `json:"status"`
	TransportTempC    *int       `json:"transport_temp_c,omitempty"`
	TransportHumidity *int       `json:"transport_humidity,omitempty"`
	PickupConfirmed   bool       `json:"pickup_confirmed"`
	DeliveryConfirmed bool       `json:"delivery_confirmed"`
	DisputeOpen       bool       `json:"dispute_open"`
	ProducerPrice     uint64     `json:"producer_price"`
	CarrierFee        uint64     `json:"carrier_fee"`
	Settled           bool       `json:"settled"`
	SettledAt         *time.Time `json:"settled_at,omitempty"`
	ProducerReward    *uint64    `json:"producer_reward,omitempty"`
	CarrierReward     *uint64    `json:"carrier_reward,omitempty"`
}

func toBatchResponse(b *models.ProduceBatch) batchResponse {
	resp := batchResponse{
		ID:                b.ID.String(),
		BatchNumber:       b.BatchNumber,
		ProducerID:        b.ProducerID.String(),
		Kind:              b.Kind,
		Quantity:          b.Quantity,
		HarvestedAt:       b.HarvestedAt,
		DeclaredQuality:   b.DeclaredQuality,
		VerifiedQuality:   b.VerifiedQuality,
		Status:            b.Status.String(),
		TransportTempC:    b.TransportTempC,
		TransportHumidity: b.TransportHumidity,
		PickupConfirmed:   b.PickupConfirmed,
		DeliveryConfirmed: b.DeliveryConfirmed,
		DisputeOpen:       b.DisputeOpen,
		ProducerPrice:     b.ProducerPrice,
		CarrierFee:        b.CarrierFee,
		Settled:           b.Settled,
		SettledAt:         b.SettledAt,
		ProducerReward:    b.ProducerReward,
		CarrierReward:     b.CarrierReward,
	}
	if b.CarrierID != nil {
		id := b.CarrierID.String()
		resp.CarrierID = &id
	}
	return resp
}

// HarvestCreate registers a new produce batch for the calling producer.
func HarvestCreate(svc produce.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body harvestCreateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var harvestedAt time.Time
		if body.HarvestedAt != "" {
			parsed, err := time.Parse(time.RFC3339, body.HarvestedAt)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, validators.InvalidTimestamp("harvested_at"))
				return
			}
			harvestedAt = parsed
		}

		batch, err := svc.LogHarvest(r.Context(), produce.LogHarvestInput{
			ActorID:         middleware.ParticipantIDFromContext(r.Context()),
			ActorRole:       middleware.RoleFromContext(r.Context()),
			BatchNumber:     body.BatchNumber,
			Kind:            body.Kind,
			Quantity:        body.Quantity,
			DeclaredQuality: body.DeclaredQuality,
			ProducerPrice:   body.ProducerPrice,
			CarrierFee:      body.CarrierFee,
			HarvestedAt:     harvestedAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toBatchResponse(batch))
	}
}

// BatchGet returns a batch by its public number.
func BatchGet(svc produce.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchNumber, err := validators.ParseBatchNumber(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		batch, err := svc.GetByBatchNumber(r.Context(), batchNumber)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toBatchResponse(batch))
	}
}

// BatchListMine lists the calling producer's batches.
func BatchListMine(svc produce.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batches, err := svc.ListByProducer(r.Context(), middleware.ParticipantIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]batchResponse, 0, len(batches))
		for i := range batches {
			out = append(out, toBatchResponse(&batches[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// PickupRecord moves a batch to picked up with its transport readings.
func PickupRecord(svc produce.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchNumber, err := validators.ParseBatchNumber(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body pickupRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		batch, err := svc.RecordPickup(r.Context(), produce.RecordPickupInput{
			ActorID:           middleware.ParticipantIDFromContext(r.Context()),
			ActorRole:         middleware.RoleFromContext(r.Context()),
			BatchNumber:       batchNumber,
			TransportTempC:    body.TransportTempC,
			TransportHumidity: body.TransportHumidity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toBatchResponse(batch))
	}
}

func actorInput(r *http.Request, batchNumber uint64) produce.ActorInput {
	return produce.ActorInput{
		ActorID:     middleware.ParticipantIDFromContext(r.Context()),
		ActorRole:   middleware.RoleFromContext(r.Context()),
		BatchNumber: batchNumber,
	}
}

// PickupConfirm lets the batch's producer acknowledge the pickup.
func PickupConfirm(svc produce.Service, logg *logger.Logger) http.HandlerFunc {
	return transitionHandler(func(ctx context.Context, input produce.ActorInput) (*models.ProduceBatch, error) {
		return svc.ConfirmPickup(ctx, input)
	}, logg)
}

// DeliveryRecord moves a picked-up batch in transit.
func DeliveryRecord(svc produce.Service, logg *logger.Logger) http.HandlerFunc {
	return transitionHandler(func(ctx context.Context, input produce.ActorInput) (*models.ProduceBatch, error) {
		return svc.RecordDelivery(ctx, input)
	}, logg)
}

// DeliveryConfirm marks the batch delivered and settles it.
func DeliveryConfirm(svc produce.Service, logg *logger.Logger) http.HandlerFunc {
	return transitionHandler(func(ctx context.Context, input produce.ActorInput) (*models.ProduceBatch, error) {
		return svc.ConfirmDelivery(ctx, input)
	}, logg)
}

func transitionHandler(op func(ctx context.Context, input produce.ActorInput) (*models.ProduceBatch, error), logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchNumber, err := validators.ParseBatchNumber(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		batch, err := op(r.Context(), actorInput(r, batchNumber))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toBatchResponse(batch))
	}
}

// QualityVerify records an inspected quality score.
func QualityVerify(svc produce.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchNumber, err := validators.ParseBatchNumber(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body qualityVerifyRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		batch, err := svc.VerifyQuality(r.Context(), produce.VerifyQualityInput{
			ActorID:     middleware.ParticipantIDFromContext(r.Context()),
			ActorRole:   middleware.RoleFromContext(r.Context()),
			BatchNumber: batchNumber,
			Quality:     body.Quality,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toBatchResponse(batch))
	}
}

// PaymentProcess runs the standalone settlement for a delivered batch.
func PaymentProcess(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchNumber, err := validators.ParseBatchNumber(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		batch, err := svc.ProcessPayment(r.Context(), settlement.ProcessPaymentInput{
			BatchNumber: batchNumber,
			ActorID:     middleware.ParticipantIDFromContext(r.Context()),
			ActorRole:   middleware.RoleFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toBatchResponse(batch))
	}
}
