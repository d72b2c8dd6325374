package produce

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/agritrace/agritrace-backend/pkg/db"
	"github.com/agritrace/agritrace-backend/pkg/db/models"
)

// Repository manages persistence for produce batches. The tx-suffixed
// accessors run against an explicit transaction and back the settlement
// engine's BatchStore.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, batch *models.ProduceBatch) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ProduceBatch, error)
	GetByBatchNumber(ctx context.Context, batchNumber uint64) (*models.ProduceBatch, error)
	GetByBatchNumberForUpdate(ctx context.Context, batchNumber uint64) (*models.ProduceBatch, error)
	Save(ctx context.Context, batch *models.ProduceBatch) error
	ListByProducer(ctx context.Context, producerID uuid.UUID) ([]models.ProduceBatch, error)
	GetByBatchNumberForUpdateTx(ctx context.Context, tx *gorm.DB, batchNumber uint64) (*models.ProduceBatch, error)
	GetByIDForUpdateTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.ProduceBatch, error)
	SaveTx(ctx context.Context, tx *gorm.DB, batch *models.ProduceBatch) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a produce repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, batch *models.ProduceBatch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*models.ProduceBatch, error) {
	var batch models.ProduceBatch
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&batch).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *repository) GetByBatchNumber(ctx context.Context, batchNumber uint64) (*models.ProduceBatch, error) {
	var batch models.ProduceBatch
	if err := r.db.WithContext(ctx).Where("batch_number = ?", batchNumber).First(&batch).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *repository) GetByBatchNumberForUpdate(ctx context.Context, batchNumber uint64) (*models.ProduceBatch, error) {
	var batch models.ProduceBatch
	if err := dbpkg.LockForUpdate(r.db.WithContext(ctx)).
		Where("batch_number = ?", batchNumber).
		First(&batch).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *repository) Save(ctx context.Context, batch *models.ProduceBatch) error {
	return r.db.WithContext(ctx).Save(batch).Error
}

func (r *repository) ListByProducer(ctx context.Context, producerID uuid.UUID) ([]models.ProduceBatch, error) {
	var batches []models.ProduceBatch
	if err := r.db.WithContext(ctx).
		Where("producer_id = ?", producerID).
		Order("created_at DESC").
		Find(&batches).Error; err != nil {
		return nil, err
	}
	return batches, nil
}

func (r *repository) GetByBatchNumberForUpdateTx(ctx context.Context, tx *gorm.DB, batchNumber uint64) (*models.ProduceBatch, error) {
	return r.WithTx(tx).GetByBatchNumberForUpdate(ctx, batchNumber)
}

func (r *repository) GetByIDForUpdateTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.ProduceBatch, error) {
	scoped := r.WithTx(tx).(*repository)
	var batch models.ProduceBatch
	if err := dbpkg.LockForUpdate(scoped.db.WithContext(ctx)).
		Where("id = ?", id).
		First(&batch).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func (r *repository) SaveTx(ctx context.Context, tx *gorm.DB, batch *models.ProduceBatch) error {
	return r.WithTx(tx).Save(ctx, batch)
}
