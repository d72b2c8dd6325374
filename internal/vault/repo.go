package vault

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/agritrace/agritrace-backend/pkg/db"
	"github.com/agritrace/agritrace-backend/pkg/db/models"
)

// Repository manages persistence for accounts, ledger rows and stake positions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetAccountByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Account, error)
	CreateAccount(ctx context.Context, account *models.Account) error
	SaveBalance(ctx context.Context, id uuid.UUID, balance uint64) error
	CreateTransfer(ctx context.Context, transfer *models.Transfer) error
	GetStakePositionForUpdate(ctx context.Context, participantID uuid.UUID) (*models.StakePosition, error)
	CreateStakePosition(ctx context.Context, position *models.StakePosition) error
	SaveStakeAmount(ctx context.Context, id uuid.UUID, amount uint64) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a vault repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := dbpkg.LockForUpdate(r.db.WithContext(ctx)).
		Where("id = ?", id).
		First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) GetAccountByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) CreateAccount(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *repository) SaveBalance(ctx context.Context, id uuid.UUID, balance uint64) error {
	return r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Update("balance", balance).Error
}

func (r *repository) CreateTransfer(ctx context.Context, transfer *models.Transfer) error {
	return r.db.WithContext(ctx).Create(transfer).Error
}

func (r *repository) GetStakePositionForUpdate(ctx context.Context, participantID uuid.UUID) (*models.StakePosition, error) {
	var position models.StakePosition
	if err := dbpkg.LockForUpdate(r.db.WithContext(ctx)).
		Where("participant_id = ?", participantID).
		First(&position).Error; err != nil {
		return nil, err
	}
	return &position, nil
}

func (r *repository) CreateStakePosition(ctx context.Context, position *models.StakePosition) error {
	return r.db.WithContext(ctx).Create(position).Error
}

func (r *repository) SaveStakeAmount(ctx context.Context, id uuid.UUID, amount uint64) error {
	return r.db.WithContext(ctx).
		Model(&models.StakePosition{}).
		Where("id = ?", id).
		Update("amount", amount).Error
}
