package enums

import "fmt"

// ParticipantRole tags a registered principal with its supply-chain role.
type ParticipantRole string

const (
	ParticipantRoleProducer   ParticipantRole = "producer"
	ParticipantRoleCarrier    ParticipantRole = "carrier"
	ParticipantRoleWholesaler ParticipantRole = "wholesaler"
	ParticipantRoleRetailer   ParticipantRole = "retailer"
	ParticipantRoleArbitrator ParticipantRole = "arbitrator"
)

var validParticipantRoles = []ParticipantRole{
	ParticipantRoleProducer,
	ParticipantRoleCarrier,
	ParticipantRoleWholesaler,
	ParticipantRoleRetailer,
	ParticipantRoleArbitrator,
}

// String implements fmt.Stringer.
func (p ParticipantRole) String() string {
	return string(p)
}

// IsValid reports whether the value is a known ParticipantRole.
func (p ParticipantRole) IsValid() bool {
	for _, candidate := range validParticipantRoles {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParseParticipantRole converts raw input into a ParticipantRole.
func ParseParticipantRole(value string) (ParticipantRole, error) {
	for _, candidate := range validParticipantRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid participant role %q", value)
}
