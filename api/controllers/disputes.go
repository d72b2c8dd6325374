package controllers

import (
	"net/http"
	"time"

	"github.com/agritrace/agritrace-backend/api/middleware"
	"github.com/agritrace/agritrace-backend/api/responses"
	"github.com/agritrace/agritrace-backend/api/validators"
	"github.com/agritrace/agritrace-backend/internal/disputes"
	"github.com/agritrace/agritrace-backend/internal/produce"
	"github.com/agritrace/agritrace-backend/pkg/db/models"
	"github.com/agritrace/agritrace-backend/pkg/logger"
)

type disputeRaiseRequest struct {
	BatchNumber uint64 `json:"batch_number" validate:"required,gte=1"`
	Reason      string `json:"reason" validate:"required,max=256"`
}

type disputeResolveRequest struct {
	Outcome bool `json:"outcome"`
}

type disputeResponse struct {
	ID         string     `json:"id"`
	BatchID    string     `json:"batch_id"`
	RaiserID   string     `json:"raiser_id"`
	Reason     string     `json:"reason"`
	Resolved   bool       `json:"resolved"`
	Outcome    bool       `json:"outcome"`
	ResolvedBy *string    `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func toDisputeResponse(d *models.Dispute) disputeResponse {
	resp := disputeResponse{
		ID:         d.ID.String(),
		BatchID:    d.BatchID.String(),
		RaiserID:   d.RaiserID.String(),
		Reason:     d.Reason,
		Resolved:   d.Resolved,
		Outcome:    d.Outcome,
		ResolvedAt: d.ResolvedAt,
		CreatedAt:  d.CreatedAt,
	}
	if d.ResolvedBy != nil {
		id := d.ResolvedBy.String()
		resp.ResolvedBy = &id
	}
	return resp
}

// DisputeRaise opens a dispute against a batch.
func DisputeRaise(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body disputeRaiseRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.RaiseDispute(r.Context(), disputes.RaiseDisputeInput{
			ActorID:     middleware.ParticipantIDFromContext(r.Context()),
			ActorRole:   middleware.RoleFromContext(r.Context()),
			BatchNumber: body.BatchNumber,
			Reason:      body.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toDisputeResponse(dispute))
	}
}

// DisputeResolve closes a dispute with the arbitrated outcome.
func DisputeResolve(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		disputeID, err := validators.ParseUUIDParam(r, "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body disputeResolveRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.ResolveDispute(r.Context(), disputes.ResolveDisputeInput{
			ActorID:   middleware.ParticipantIDFromContext(r.Context()),
			ActorRole: middleware.RoleFromContext(r.Context()),
			DisputeID: disputeID,
			Outcome:   body.Outcome,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toDisputeResponse(dispute))
	}
}

// DisputeGet returns one dispute by id.
func DisputeGet(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		disputeID, err := validators.ParseUUIDParam(r, "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dispute, err := svc.GetDispute(r.Context(), disputeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toDisputeResponse(dispute))
	}
}

// DisputeListByBatch lists every dispute raised against a batch.
func DisputeListByBatch(svc disputes.Service, produceSvc produce.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchNumber, err := validators.ParseBatchNumber(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		batch, err := produceSvc.GetByBatchNumber(r.Context(), batchNumber)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListByBatch(r.Context(), batch.ID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]disputeResponse, 0, len(list))
		for i := range list {
			out = append(out, toDisputeResponse(&list[i]))
		}
		responses.WriteSuccess(w, out)
	}
}
