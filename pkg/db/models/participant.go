package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/agritrace/agritrace-backend/pkg/enums"
)

// Participant is the role-tagged identity record for one supply-chain principal.
// The lifecycle and settlement code only ever reads it.
type Participant struct {
	ID           uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string                `gorm:"column:email;type:text;not null;uniqueIndex"`
	PasswordHash string                `gorm:"column:password_hash;not null"`
	Role         enums.ParticipantRole `gorm:"column:role;type:participant_role;not null"`
	Name         string                `gorm:"column:name;type:text;not null"`
	Contact      string                `gorm:"column:contact;type:text;not null"`
	CreatedAt    time.Time             `gorm:"column:created_at;autoCreateTime"`
}
