package models

import (
	"time"

	"github.com/google/uuid"
)

// Dispute is raised against exactly one produce batch. At most one unresolved
// dispute may exist per batch; once resolved the row is immutable.
type Dispute struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BatchID    uuid.UUID  `gorm:"column:batch_id;type:uuid;not null;index"`
	RaiserID   uuid.UUID  `gorm:"column:raiser_id;type:uuid;not null"`
	Reason     string     `gorm:"column:reason;type:text;not null"`
	Resolved   bool       `gorm:"column:resolved;not null;default:false"`
	Outcome    bool       `gorm:"column:outcome;not null;default:false"`
	ResolvedBy *uuid.UUID `gorm:"column:resolved_by;type:uuid"`
	ResolvedAt *time.Time `gorm:"column:resolved_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}
