package controllers

import (
	"net/http"
	"time"

	"github.com/agritrace/agritrace-backend/api/middleware"
	"github.com/agritrace/agritrace-backend/api/responses"
	"github.com/agritrace/agritrace-backend/api/validators"
	"github.com/agritrace/agritrace-backend/internal/governance"
	"github.com/agritrace/agritrace-backend/pkg/db/models"
	"github.com/agritrace/agritrace-backend/pkg/logger"
)

type proposalCreateRequest struct {
	ProposalNumber uint64 `json:"proposal_number" validate:"required,gte=1"`
	Description    string `json:"description" validate:"required,max=512"`
}

type proposalVoteRequest struct {
	InFavor bool `json:"in_favor"`
}

type proposalResponse struct {
	ID             string    `json:"id"`
	ProposalNumber uint64    `json:"proposal_number"`
	ProposerID     string    `json:"proposer_id"`
	Description    string    `json:"description"`
	VotesFor       uint64    `json:"votes_for"`
	VotesAgainst   uint64    `json:"votes_against"`
	Executed       bool      `json:"executed"`
	CreatedAt      time.Time `json:"created_at"`
}

func toProposalResponse(p *models.Proposal) proposalResponse {
	return proposalResponse{
		ID:             p.ID.String(),
		ProposalNumber: p.ProposalNumber,
		ProposerID:     p.ProposerID.String(),
		Description:    p.Description,
		VotesFor:       p.VotesFor,
		VotesAgainst:   p.VotesAgainst,
		Executed:       p.Executed,
		CreatedAt:      p.CreatedAt,
	}
}

// ProposalCreate registers a governance proposal.
func ProposalCreate(svc governance.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body proposalCreateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		proposal, err := svc.CreateProposal(r.Context(), governance.CreateProposalInput{
			ActorID:        middleware.ParticipantIDFromContext(r.Context()),
			ProposalNumber: body.ProposalNumber,
			Description:    body.Description,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toProposalResponse(proposal))
	}
}

// ProposalVote casts the caller's ballot.
func ProposalVote(svc governance.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		proposalNumber, err := validators.ParseProposalNumber(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body proposalVoteRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		proposal, err := svc.Vote(r.Context(), governance.VoteInput{
			ActorID:        middleware.ParticipantIDFromContext(r.Context()),
			ProposalNumber: proposalNumber,
			InFavor:        body.InFavor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toProposalResponse(proposal))
	}
}

// ProposalExecute marks the proposal executed.
func ProposalExecute(svc governance.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		proposalNumber, err := validators.ParseProposalNumber(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		proposal, err := svc.Execute(r.Context(), governance.ExecuteInput{
			ActorID:        middleware.ParticipantIDFromContext(r.Context()),
			ProposalNumber: proposalNumber,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toProposalResponse(proposal))
	}
}

// ProposalGet returns one proposal by number.
func ProposalGet(svc governance.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		proposalNumber, err := validators.ParseProposalNumber(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		proposal, err := svc.GetProposal(r.Context(), proposalNumber)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toProposalResponse(proposal))
	}
}

// ProposalList returns every proposal ordered by number.
func ProposalList(svc governance.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		proposals, err := svc.ListProposals(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]proposalResponse, 0, len(proposals))
		for i := range proposals {
			out = append(out, toProposalResponse(&proposals[i]))
		}
		responses.WriteSuccess(w, out)
	}
}
