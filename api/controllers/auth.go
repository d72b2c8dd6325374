package controllers

import (
	"net/http"
	"time"

	"github.com/agritrace/agritrace-backend/api/middleware"
	"github.com/agritrace/agritrace-backend/api/responses"
	"github.com/agritrace/agritrace-backend/api/validators"
	"github.com/agritrace/agritrace-backend/internal/participants"
	"github.com/agritrace/agritrace-backend/pkg/db/models"
	"github.com/agritrace/agritrace-backend/pkg/enums"
	pkgerrors "github.com/agritrace/agritrace-backend/pkg/errors"
	"github.com/agritrace/agritrace-backend/pkg/logger"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"required,oneof=producer carrier wholesaler retailer arbitrator"`
	Name     string `json:"name" validate:"required,max=32"`
	Contact  string `json:"contact" validate:"max=64"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type participantResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Name      string    `json:"name"`
	Contact   string    `json:"contact"`
	CreatedAt time.Time `json:"created_at"`
}

type loginResponse struct {
	AccessToken string              `json:"access_token"`
	ExpiresAt   time.Time           `json:"expires_at"`
	Participant participantResponse `json:"participant"`
}

func toParticipantResponse(p *models.Participant) participantResponse {
	return participantResponse{
		ID:        p.ID.String(),
		Email:     p.Email,
		Role:      p.Role.String(),
		Name:      p.Name,
		Contact:   p.Contact,
		CreatedAt: p.CreatedAt,
	}
}

// AuthRegister creates a participant identity plus its ledger account.
func AuthRegister(svc participants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body registerRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		role, err := enums.ParseParticipantRole(body.Role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "unknown participant role"))
			return
		}

		participant, err := svc.Register(r.Context(), participants.RegisterInput{
			Email:    body.Email,
			Password: body.Password,
			Role:     role,
			Name:     body.Name,
			Contact:  body.Contact,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, toParticipantResponse(participant))
	}
}

// AuthLogin verifies credentials and returns a role-bearing access token.
func AuthLogin(svc participants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body loginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), participants.LoginInput{
			Email:    body.Email,
			Password: body.Password,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, loginResponse{
			AccessToken: result.AccessToken,
			ExpiresAt:   result.ExpiresAt,
			Participant: toParticipantResponse(result.Participant),
		})
	}
}

// Me returns the authenticated participant's profile.
func Me(svc participants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		participant, err := svc.Lookup(r.Context(), middleware.ParticipantIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toParticipantResponse(participant))
	}
}
