package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/agritrace/agritrace-backend/pkg/enums"
)

// ProduceBatch tracks one shipment from harvest to settlement. Created once,
// mutated in place through the lifecycle, never deleted.
//
// Transport readings are nullable rather than sentinel-valued: nil means the
// carrier has not recorded a reading yet.
type ProduceBatch struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BatchNumber uint64    `gorm:"column:batch_number;not null;uniqueIndex"`
	ProducerID  uuid.UUID `gorm:"column:producer_id;type:uuid;not null"`

	// CarrierID is recorded when the carrier picks the batch up; settlement
	// pays the carrier fee to this principal.
	CarrierID *uuid.UUID `gorm:"column:carrier_id;type:uuid"`

	Kind        string    `gorm:"column:kind;type:text;not null"`
	Quantity    uint64    `gorm:"column:quantity;not null"`
	HarvestedAt time.Time `gorm:"column:harvested_at;not null"`

	DeclaredQuality int `gorm:"column:declared_quality;not null"`
	VerifiedQuality int `gorm:"column:verified_quality;not null"`

	Status enums.ProduceStatus `gorm:"column:status;type:produce_status;not null;default:'harvested'"`

	TransportTempC    *int `gorm:"column:transport_temp_c"`
	TransportHumidity *int `gorm:"column:transport_humidity"`

	PickupConfirmed   bool `gorm:"column:pickup_confirmed;not null;default:false"`
	DeliveryConfirmed bool `gorm:"column:delivery_confirmed;not null;default:false"`
	DisputeOpen       bool `gorm:"column:dispute_open;not null;default:false"`

	ProducerPrice uint64 `gorm:"column:producer_price;not null"`
	CarrierFee    uint64 `gorm:"column:carrier_fee;not null"`

	Settled        bool       `gorm:"column:settled;not null;default:false"`
	SettledAt      *time.Time `gorm:"column:settled_at"`
	ProducerReward *uint64    `gorm:"column:producer_reward"`
	CarrierReward  *uint64    `gorm:"column:carrier_reward"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
