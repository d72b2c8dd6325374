package enums

import "fmt"

// AccountKind distinguishes participant wallets from pooled system accounts.
type AccountKind string

const (
	AccountKindParticipant AccountKind = "participant"
	AccountKindEscrow      AccountKind = "escrow"
	AccountKindStake       AccountKind = "stake"
)

var validAccountKinds = []AccountKind{
	AccountKindParticipant,
	AccountKindEscrow,
	AccountKindStake,
}

// String implements fmt.Stringer.
func (a AccountKind) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AccountKind.
func (a AccountKind) IsValid() bool {
	for _, candidate := range validAccountKinds {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAccountKind converts raw input into an AccountKind.
func ParseAccountKind(value string) (AccountKind, error) {
	for _, candidate := range validAccountKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid account kind %q", value)
}
