package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/agritrace/agritrace-backend/pkg/enums"
)

// Account holds a single balance. Participant accounts are owned by one
// principal; the escrow and stake vaults are system accounts whose debits are
// authorized only by the derived vault authority.
type Account struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID   *uuid.UUID        `gorm:"column:owner_id;type:uuid;uniqueIndex"`
	Kind      enums.AccountKind `gorm:"column:kind;type:account_kind;not null"`
	Balance   uint64            `gorm:"column:balance;not null;default:0"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// Transfer is the immutable ledger row written by every balance movement.
// FromAccountID is nil for deposit rows, which mint balance from outside the
// ledger.
type Transfer struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	FromAccountID *uuid.UUID         `gorm:"column:from_account_id;type:uuid;index"`
	ToAccountID   uuid.UUID          `gorm:"column:to_account_id;type:uuid;not null;index"`
	Amount        uint64             `gorm:"column:amount;not null"`
	Kind          enums.TransferKind `gorm:"column:kind;type:transfer_kind;not null"`
	BatchID       *uuid.UUID         `gorm:"column:batch_id;type:uuid;index"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
}

// StakePosition tracks how much one participant has parked in the stake vault.
type StakePosition struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ParticipantID uuid.UUID `gorm:"column:participant_id;type:uuid;not null;uniqueIndex"`
	Amount        uint64    `gorm:"column:amount;not null;default:0"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
