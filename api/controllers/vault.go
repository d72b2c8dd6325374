package controllers

import (
	"net/http"

	"github.com/agritrace/agritrace-backend/api/middleware"
	"github.com/agritrace/agritrace-backend/api/responses"
	"github.com/agritrace/agritrace-backend/api/validators"
	"github.com/agritrace/agritrace-backend/internal/produce"
	"github.com/agritrace/agritrace-backend/internal/vault"
	"github.com/agritrace/agritrace-backend/pkg/db/models"
	"github.com/agritrace/agritrace-backend/pkg/logger"
)

type vaultFundRequest struct {
	BatchNumber uint64 `json:"batch_number" validate:"required,gte=1"`
	Amount      uint64 `json:"amount" validate:"required,gte=1"`
}

type depositRequest struct {
	Amount uint64 `json:"amount" validate:"required,gte=1"`
}

type stakeRequest struct {
	Amount uint64 `json:"amount" validate:"required,gte=1"`
}

type accountResponse struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Balance uint64 `json:"balance"`
}

func toAccountResponse(a *models.Account) accountResponse {
	return accountResponse{
		ID:      a.ID.String(),
		Kind:    a.Kind.String(),
		Balance: a.Balance,
	}
}

// VaultFund escrows the batch price plus carrier fee from the calling retailer.
func VaultFund(vaultSvc vault.Service, produceSvc produce.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body vaultFundRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		batch, err := produceSvc.GetByBatchNumber(r.Context(), body.BatchNumber)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := vaultSvc.FundVault(r.Context(), vault.FundVaultInput{
			BatchID:   batch.ID,
			Amount:    body.Amount,
			ActorID:   middleware.ParticipantIDFromContext(r.Context()),
			ActorRole: middleware.RoleFromContext(r.Context()),
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"batch_number": body.BatchNumber, "escrowed": body.Amount})
	}
}

// AccountMe returns the calling participant's ledger account.
func AccountMe(svc vault.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		account, err := svc.AccountOf(r.Context(), middleware.ParticipantIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toAccountResponse(account))
	}
}

// DepositCreate credits the caller's account from outside the ledger. Wired
// only in non-production environments.
func DepositCreate(svc vault.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body depositRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Deposit(r.Context(), vault.DepositInput{
			ParticipantID: middleware.ParticipantIDFromContext(r.Context()),
			Amount:        body.Amount,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"deposited": body.Amount})
	}
}

// StakeCreate parks caller funds in the stake vault.
func StakeCreate(svc vault.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body stakeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Stake(r.Context(), vault.StakeInput{
			ActorID: middleware.ParticipantIDFromContext(r.Context()),
			Amount:  body.Amount,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"staked": body.Amount})
	}
}

// StakeWithdraw returns previously staked funds to the caller's account.
func StakeWithdraw(svc vault.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body stakeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Unstake(r.Context(), vault.UnstakeInput{
			ActorID: middleware.ParticipantIDFromContext(r.Context()),
			Amount:  body.Amount,
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"unstaked": body.Amount})
	}
}
