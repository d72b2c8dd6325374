package disputes

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/agritrace/agritrace-backend/pkg/db"
	"github.com/agritrace/agritrace-backend/pkg/db/models"
)

// Repository manages persistence for dispute records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, dispute *models.Dispute) error
	CreateTx(ctx context.Context, tx *gorm.DB, dispute *models.Dispute) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	Save(ctx context.Context, dispute *models.Dispute) error
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]models.Dispute, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a dispute repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, dispute *models.Dispute) error {
	return r.db.WithContext(ctx).Create(dispute).Error
}

func (r *repository) CreateTx(ctx context.Context, tx *gorm.DB, dispute *models.Dispute) error {
	return r.WithTx(tx).Create(ctx, dispute)
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&dispute).Error; err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *repository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := dbpkg.LockForUpdate(r.db.WithContext(ctx)).
		Where("id = ?", id).
		First(&dispute).Error; err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *repository) Save(ctx context.Context, dispute *models.Dispute) error {
	return r.db.WithContext(ctx).Save(dispute).Error
}

func (r *repository) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]models.Dispute, error) {
	var disputes []models.Dispute
	if err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at DESC").
		Find(&disputes).Error; err != nil {
		return nil, err
	}
	return disputes, nil
}
