package governance

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/agritrace/agritrace-backend/pkg/db"
	"github.com/agritrace/agritrace-backend/pkg/db/models"
	"github.com/agritrace/agritrace-backend/pkg/enums"
	pkgerrors "github.com/agritrace/agritrace-backend/pkg/errors"
	"github.com/agritrace/agritrace-backend/pkg/outbox"
)

const maxDescriptionLength = 512

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service runs the proposal lifecycle: create, vote once per participant,
// execute once.
type Service interface {
	CreateProposal(ctx context.Context, input CreateProposalInput) (*models.Proposal, error)
	Vote(ctx context.Context, input VoteInput) (*models.Proposal, error)
	Execute(ctx context.Context, input ExecuteInput) (*models.Proposal, error)
	GetProposal(ctx context.Context, proposalNumber uint64) (*models.Proposal, error)
	ListProposals(ctx context.Context) ([]models.Proposal, error)
}

// CreateProposalInput registers a new proposal.
type CreateProposalInput struct {
	ActorID        uuid.UUID
	ProposalNumber uint64
	Description    string
}

// VoteInput casts one ballot.
type VoteInput struct {
	ActorID        uuid.UUID
	ProposalNumber uint64
	InFavor        bool
}

// ExecuteInput marks a proposal executed.
type ExecuteInput struct {
	ActorID        uuid.UUID
	ProposalNumber uint64
}

// ProposalCreatedEvent is the payload for governance.proposal_created.
type ProposalCreatedEvent struct {
	ProposalNumber uint64    `json:"proposal_number"`
	ProposerID     uuid.UUID `json:"proposer_id"`
	Description    string    `json:"description"`
}

// ProposalExecutedEvent is the payload for governance.proposal_executed.
type ProposalExecutedEvent struct {
	ProposalNumber uint64 `json:"proposal_number"`
	VotesFor       uint64 `json:"votes_for"`
	VotesAgainst   uint64 `json:"votes_against"`
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxEmitter
}

// NewService wires the governance service.
func NewService(repo Repository, tx txRunner, emitter outboxEmitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("governance repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, outbox: emitter}, nil
}

// CreateProposal registers a proposal with zeroed tallies. Any registered
// participant may propose.
func (s *service) CreateProposal(ctx context.Context, input CreateProposalInput) (*models.Proposal, error) {
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing")
	}
	if input.ProposalNumber == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "proposal number required")
	}
	if input.Description == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "description required")
	}
	if len(input.Description) > maxDescriptionLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "description too long").
			WithDetails(map[string]any{"max_length": maxDescriptionLength})
	}

	proposal := &models.Proposal{
		ID:             uuid.New(),
		ProposalNumber: input.ProposalNumber,
		ProposerID:     input.ActorID,
		Description:    input.Description,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).CreateProposal(ctx, proposal); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "proposal number already registered")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create proposal")
		}
		return s.emit(ctx, tx, enums.OutboxEventProposalCreated, proposal.ID, input.ActorID, ProposalCreatedEvent{
			ProposalNumber: proposal.ProposalNumber,
			ProposerID:     proposal.ProposerID,
			Description:    proposal.Description,
		})
	})
	if err != nil {
		return nil, err
	}
	return proposal, nil
}

// Vote casts the caller's ballot. One ballot per participant per proposal;
// the running tally rejects additions past uint64.
func (s *service) Vote(ctx context.Context, input VoteInput) (*models.Proposal, error) {
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing")
	}

	var updated *models.Proposal
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		proposal, err := repo.GetProposalByNumberForUpdate(ctx, input.ProposalNumber)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "proposal not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load proposal")
		}

		voted, err := repo.HasVoted(ctx, proposal.ID, input.ActorID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check ballot")
		}
		if voted {
			return pkgerrors.New(pkgerrors.CodeConflict, "participant already voted on this proposal")
		}

		if input.InFavor {
			if proposal.VotesFor == math.MaxUint64 {
				return pkgerrors.New(pkgerrors.CodeOverflow, "vote tally overflow")
			}
			proposal.VotesFor++
		} else {
			if proposal.VotesAgainst == math.MaxUint64 {
				return pkgerrors.New(pkgerrors.CodeOverflow, "vote tally overflow")
			}
			proposal.VotesAgainst++
		}

		vote := &models.ProposalVote{
			ID:         uuid.New(),
			ProposalID: proposal.ID,
			VoterID:    input.ActorID,
			InFavor:    input.InFavor,
		}
		if err := repo.CreateVote(ctx, vote); err != nil {
			if dbpkg.IsUniqueViolation(err, "ux_proposal_votes_proposal_voter") {
				return pkgerrors.New(pkgerrors.CodeConflict, "participant already voted on this proposal")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record ballot")
		}
		if err := repo.SaveProposal(ctx, proposal); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist tally")
		}
		updated = proposal
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Execute marks the proposal executed exactly once.
func (s *service) Execute(ctx context.Context, input ExecuteInput) (*models.Proposal, error) {
	if input.ActorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller identity missing")
	}

	var executed *models.Proposal
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		proposal, err := repo.GetProposalByNumberForUpdate(ctx, input.ProposalNumber)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "proposal not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load proposal")
		}
		if proposal.Executed {
			return pkgerrors.New(pkgerrors.CodeConflict, "proposal already executed")
		}

		proposal.Executed = true
		if err := repo.SaveProposal(ctx, proposal); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist execution")
		}
		executed = proposal
		return s.emit(ctx, tx, enums.OutboxEventProposalExecuted, proposal.ID, input.ActorID, ProposalExecutedEvent{
			ProposalNumber: proposal.ProposalNumber,
			VotesFor:       proposal.VotesFor,
			VotesAgainst:   proposal.VotesAgainst,
		})
	})
	if err != nil {
		return nil, err
	}
	return executed, nil
}

func (s *service) GetProposal(ctx context.Context, proposalNumber uint64) (*models.Proposal, error) {
	proposal, err := s.repo.GetProposalByNumber(ctx, proposalNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "proposal not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load proposal")
	}
	return proposal, nil
}

func (s *service) ListProposals(ctx context.Context) ([]models.Proposal, error) {
	proposals, err := s.repo.ListProposals(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list proposals")
	}
	return proposals, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, proposalID, actorID uuid.UUID, data interface{}) error {
	if s.outbox == nil {
		return nil
	}
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.OutboxAggregateProposal,
		AggregateID:   proposalID,
		Actor:         &outbox.ActorRef{ParticipantID: actorID},
		Data:          data,
		Version:       1,
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit governance event")
	}
	return nil
}
