package participants

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agritrace/agritrace-backend/pkg/db/models"
)

// Repository manages persistence for participant identities.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, participant *models.Participant) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Participant, error)
	GetByEmail(ctx context.Context, email string) (*models.Participant, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a participant repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, participant *models.Participant) error {
	return r.db.WithContext(ctx).Create(participant).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Participant, error) {
	var participant models.Participant
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&participant).Error; err != nil {
		return nil, err
	}
	return &participant, nil
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*models.Participant, error) {
	var participant models.Participant
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&participant).Error; err != nil {
		return nil, err
	}
	return &participant, nil
}
