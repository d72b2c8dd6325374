package governance

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/agritrace/agritrace-backend/pkg/db"
	"github.com/agritrace/agritrace-backend/pkg/db/models"
)

// Repository manages persistence for proposals and their ballots.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateProposal(ctx context.Context, proposal *models.Proposal) error
	GetProposalByNumber(ctx context.Context, proposalNumber uint64) (*models.Proposal, error)
	GetProposalByNumberForUpdate(ctx context.Context, proposalNumber uint64) (*models.Proposal, error)
	SaveProposal(ctx context.Context, proposal *models.Proposal) error
	ListProposals(ctx context.Context) ([]models.Proposal, error)
	CreateVote(ctx context.Context, vote *models.ProposalVote) error
	HasVoted(ctx context.Context, proposalID, voterID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a governance repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateProposal(ctx context.Context, proposal *models.Proposal) error {
	return r.db.WithContext(ctx).Create(proposal).Error
}

func (r *repository) GetProposalByNumber(ctx context.Context, proposalNumber uint64) (*models.Proposal, error) {
	var proposal models.Proposal
	if err := r.db.WithContext(ctx).Where("proposal_number = ?", proposalNumber).First(&proposal).Error; err != nil {
		return nil, err
	}
	return &proposal, nil
}

func (r *repository) GetProposalByNumberForUpdate(ctx context.Context, proposalNumber uint64) (*models.Proposal, error) {
	var proposal models.Proposal
	if err := dbpkg.LockForUpdate(r.db.WithContext(ctx)).
		Where("proposal_number = ?", proposalNumber).
		First(&proposal).Error; err != nil {
		return nil, err
	}
	return &proposal, nil
}

func (r *repository) SaveProposal(ctx context.Context, proposal *models.Proposal) error {
	return r.db.WithContext(ctx).Save(proposal).Error
}

func (r *repository) ListProposals(ctx context.Context) ([]models.Proposal, error) {
	var proposals []models.Proposal
	if err := r.db.WithContext(ctx).Order("proposal_number ASC").Find(&proposals).Error; err != nil {
		return nil, err
	}
	return proposals, nil
}

func (r *repository) CreateVote(ctx context.Context, vote *models.ProposalVote) error {
	return r.db.WithContext(ctx).Create(vote).Error
}

func (r *repository) HasVoted(ctx context.Context, proposalID, voterID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.ProposalVote{}).
		Where("proposal_id = ? AND voter_id = ?", proposalID, voterID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
