package enums

import "fmt"

// ProduceStatus tracks the lifecycle of a produce batch from harvest to market.
type ProduceStatus string

const (
	ProduceStatusHarvested       ProduceStatus = "harvested"
	ProduceStatusPickedUp        ProduceStatus = "picked_up"
	ProduceStatusInTransit       ProduceStatus = "in_transit"
	ProduceStatusDelivered       ProduceStatus = "delivered"
	ProduceStatusQualityVerified ProduceStatus = "quality_verified"
	ProduceStatusDisputed        ProduceStatus = "disputed"
)

var validProduceStatuses = []ProduceStatus{
	ProduceStatusHarvested,
	ProduceStatusPickedUp,
	ProduceStatusInTransit,
	ProduceStatusDelivered,
	ProduceStatusQualityVerified,
	ProduceStatusDisputed,
}

// String implements fmt.Stringer.
func (p ProduceStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ProduceStatus.
func (p ProduceStatus) IsValid() bool {
	for _, candidate := range validProduceStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseProduceStatus converts raw input into a ProduceStatus.
func ParseProduceStatus(value string) (ProduceStatus, error) {
	for _, candidate := range validProduceStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid produce status %q", value)
}
