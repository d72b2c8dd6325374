package vault

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agritrace/agritrace-backend/pkg/db/models"
	"github.com/agritrace/agritrace-backend/pkg/enums"
	pkgerrors "github.com/agritrace/agritrace-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type batchReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.ProduceBatch, error)
}

// Service exposes every balance-moving operation. All mutations run inside a
// transaction; the escrow and stake vault debits are serialized by row locks.
type Service interface {
	EnsureSystemAccounts(ctx context.Context) error
	CreateParticipantAccountTx(ctx context.Context, tx *gorm.DB, participantID uuid.UUID) (*models.Account, error)
	AccountOf(ctx context.Context, participantID uuid.UUID) (*models.Account, error)
	TransferTx(ctx context.Context, tx *gorm.DB, input TransferInput) error
	FundVault(ctx context.Context, input FundVaultInput) error
	Deposit(ctx context.Context, input DepositInput) error
	Stake(ctx context.Context, input StakeInput) error
	Unstake(ctx context.Context, input UnstakeInput) error
}

type service struct {
	repo    Repository
	tx      txRunner
	batches batchReader
}

// TransferInput is the single atomic balance movement: authority must match
// the debited account's owner (or the derived system authority for vault
// accounts) before any balance changes.
type TransferInput struct {
	From      uuid.UUID
	To        uuid.UUID
	Amount    uint64
	Kind      enums.TransferKind
	BatchID   *uuid.UUID
	Authority uuid.UUID
}

// FundVaultInput moves escrow funding from the buyer into the vault.
type FundVaultInput struct {
	BatchID   uuid.UUID
	Amount    uint64
	ActorID   uuid.UUID
	ActorRole enums.ParticipantRole
}

// DepositInput credits a participant account outside the ledger (non-prod).
type DepositInput struct {
	ParticipantID uuid.UUID
	Amount        uint64
}

// StakeInput parks participant funds in the stake vault.
type StakeInput struct {
	ActorID uuid.UUID
	Amount  uint64
}

// UnstakeInput withdraws previously staked funds.
type UnstakeInput struct {
	ActorID uuid.UUID
	Amount  uint64
}

// NewService wires the vault service.
func NewService(repo Repository, tx txRunner, batches batchReader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("vault repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if batches == nil {
		return nil, fmt.Errorf("batch reader required")
	}
	return &service{repo: repo, tx: tx, batches: batches}, nil
}

func (s *service) EnsureSystemAccounts(ctx context.Context) error {
	for id, kind := range map[uuid.UUID]enums.AccountKind{
		EscrowVaultID: enums.AccountKindEscrow,
		StakeVaultID:  enums.AccountKindStake,
	} {
		if _, err := s.repo.GetAccount(ctx, id); err == nil {
			continue
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load system account")
		}
		if err := s.repo.CreateAccount(ctx, &models.Account{ID: id, Kind: kind}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create system account")
		}
	}
	return nil
}

func (s *service) CreateParticipantAccountTx(ctx context.Context, tx *gorm.DB, participantID uuid.UUID) (*models.Account, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction required")
	}
	if participantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "participant id required")
	}
	account := &models.Account{
		ID:      uuid.New(),
		OwnerID: &participantID,
		Kind:    enums.AccountKindParticipant,
	}
	if err := s.repo.WithTx(tx).CreateAccount(ctx, account); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create participant account")
	}
	return account, nil
}

func (s *service) AccountOf(ctx context.Context, participantID uuid.UUID) (*models.Account, error) {
	if participantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "participant id required")
	}
	account, err := s.repo.GetAccountByOwner(ctx, participantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}
	return account, nil
}

// TransferTx debits From and credits To within the caller's transaction. Both
// rows are locked in a stable order so two concurrent settlements touching the
// same accounts cannot deadlock, and check-balance-then-debit happens under
// the lock.
func (s *service) TransferTx(ctx context.Context, tx *gorm.DB, input TransferInput) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required")
	}
	if input.Amount == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "transfer amount must be positive")
	}
	if input.From == input.To {
		return pkgerrors.New(pkgerrors.CodeValidation, "transfer endpoints must differ")
	}
	if !input.Kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transfer kind %q", input.Kind))
	}

	repo := s.repo.WithTx(tx)

	ids := []uuid.UUID{input.From, input.To}
	if strings.Compare(ids[0].String(), ids[1].String()) > 0 {
		ids[0], ids[1] = ids[1], ids[0]
	}
	locked := map[uuid.UUID]*models.Account{}
	for _, id := range ids {
		account, err := repo.GetAccountForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock account")
		}
		locked[id] = account
	}
	from, to := locked[input.From], locked[input.To]

	if err := checkDebitAuthority(from, input.Authority); err != nil {
		return err
	}
	if from.Balance < input.Amount {
		return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "source balance below transfer amount")
	}

	credited, err := addU64(to.Balance, input.Amount)
	if err != nil {
		return err
	}

	if err := repo.SaveBalance(ctx, from.ID, from.Balance-input.Amount); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit account")
	}
	if err := repo.SaveBalance(ctx, to.ID, credited); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit account")
	}

	fromID := input.From
	row := &models.Transfer{
		FromAccountID: &fromID,
		ToAccountID:   input.To,
		Amount:        input.Amount,
		Kind:          input.Kind,
		BatchID:       input.BatchID,
	}
	if err := repo.CreateTransfer(ctx, row); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record transfer")
	}
	return nil
}

func (s *service) FundVault(ctx context.Context, input FundVaultInput) error {
	if input.ActorRole != enums.ParticipantRoleRetailer {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only a retailer may fund the vault")
	}
	if input.BatchID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "batch id required")
	}

	batch, err := s.batches.GetByID(ctx, input.BatchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "produce batch not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load produce batch")
	}

	required, err := addU64(batch.ProducerPrice, batch.CarrierFee)
	if err != nil {
		return err
	}
	if input.Amount < required {
		return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "funding amount below required total").
			WithDetails(map[string]any{"required": required})
	}

	buyerAccount, err := s.AccountOf(ctx, input.ActorID)
	if err != nil {
		return err
	}

	batchID := input.BatchID
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.TransferTx(ctx, tx, TransferInput{
			From:      buyerAccount.ID,
			To:        EscrowVaultID,
			Amount:    input.Amount,
			Kind:      enums.TransferKindVaultFunding,
			BatchID:   &batchID,
			Authority: input.ActorID,
		})
	})
}

func (s *service) Deposit(ctx context.Context, input DepositInput) error {
	if input.Amount == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "deposit amount must be positive")
	}

	account, err := s.AccountOf(ctx, input.ParticipantID)
	if err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.GetAccountForUpdate(ctx, account.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock account")
		}
		credited, err := addU64(locked.Balance, input.Amount)
		if err != nil {
			return err
		}
		if err := repo.SaveBalance(ctx, locked.ID, credited); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit account")
		}
		row := &models.Transfer{
			ToAccountID: locked.ID,
			Amount:      input.Amount,
			Kind:        enums.TransferKindDeposit,
		}
		if err := repo.CreateTransfer(ctx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record deposit")
		}
		return nil
	})
}

func (s *service) Stake(ctx context.Context, input StakeInput) error {
	if input.Amount == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stake amount must be positive")
	}

	account, err := s.AccountOf(ctx, input.ActorID)
	if err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.TransferTx(ctx, tx, TransferInput{
			From:      account.ID,
			To:        StakeVaultID,
			Amount:    input.Amount,
			Kind:      enums.TransferKindStake,
			Authority: input.ActorID,
		}); err != nil {
			return err
		}

		repo := s.repo.WithTx(tx)
		position, err := repo.GetStakePositionForUpdate(ctx, input.ActorID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repo.CreateStakePosition(ctx, &models.StakePosition{
					ParticipantID: input.ActorID,
					Amount:        input.Amount,
				})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock stake position")
		}
		total, err := addU64(position.Amount, input.Amount)
		if err != nil {
			return err
		}
		if err := repo.SaveStakeAmount(ctx, position.ID, total); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update stake position")
		}
		return nil
	})
}

func (s *service) Unstake(ctx context.Context, input UnstakeInput) error {
	if input.Amount == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "unstake amount must be positive")
	}

	account, err := s.AccountOf(ctx, input.ActorID)
	if err != nil {
		return err
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		position, err := repo.GetStakePositionForUpdate(ctx, input.ActorID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "no stake position")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock stake position")
		}
		if position.Amount < input.Amount {
			return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "stake position below requested amount")
		}

		// The stake vault debit is authorized by the derived system authority;
		// the position check above is what protects other stakers' funds.
		if err := s.TransferTx(ctx, tx, TransferInput{
			From:      StakeVaultID,
			To:        account.ID,
			Amount:    input.Amount,
			Kind:      enums.TransferKindUnstake,
			Authority: AuthorityID,
		}); err != nil {
			return err
		}
		if err := repo.SaveStakeAmount(ctx, position.ID, position.Amount-input.Amount); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update stake position")
		}
		return nil
	})
}

func checkDebitAuthority(from *models.Account, authority uuid.UUID) error {
	switch from.Kind {
	case enums.AccountKindParticipant:
		if from.OwnerID == nil || authority != *from.OwnerID {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "authority does not own source account")
		}
	case enums.AccountKindEscrow, enums.AccountKindStake:
		if authority != AuthorityID {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "vault debits require the system authority")
		}
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown account kind %q", from.Kind))
	}
	return nil
}

func addU64(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, pkgerrors.New(pkgerrors.CodeOverflow, "balance addition overflow")
	}
	return a + b, nil
}
