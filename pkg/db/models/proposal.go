package models

import (
	"time"

	"github.com/google/uuid"
)

// Proposal is a governance proposal with a running vote tally.
type Proposal struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProposalNumber uint64    `gorm:"column:proposal_number;not null;uniqueIndex"`
	ProposerID     uuid.UUID `gorm:"column:proposer_id;type:uuid;not null"`
	Description    string    `gorm:"column:description;type:text;not null"`
	VotesFor       uint64    `gorm:"column:votes_for;not null;default:0"`
	VotesAgainst   uint64    `gorm:"column:votes_against;not null;default:0"`
	Executed       bool      `gorm:"column:executed;not null;default:false"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

// ProposalVote records a single ballot; the unique index enforces one vote per
// voter per proposal.
type ProposalVote struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProposalID uuid.UUID `gorm:"column:proposal_id;type:uuid;not null;uniqueIndex:ux_proposal_votes_proposal_voter"`
	VoterID    uuid.UUID `gorm:"column:voter_id;type:uuid;not null;uniqueIndex:ux_proposal_votes_proposal_voter"`
	InFavor    bool      `gorm:"column:in_favor;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
