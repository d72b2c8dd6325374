package enums

import "fmt"

// TransferKind labels a ledger row with the reason funds moved.
type TransferKind string

const (
	TransferKindVaultFunding   TransferKind = "vault_funding"
	TransferKindDeposit        TransferKind = "deposit"
	TransferKindProducerPayout TransferKind = "producer_payout"
	TransferKindCarrierPayout  TransferKind = "carrier_payout"
	TransferKindStake          TransferKind = "stake"
	TransferKindUnstake        TransferKind = "unstake"
)

var validTransferKinds = []TransferKind{
	TransferKindVaultFunding,
	TransferKindDeposit,
	TransferKindProducerPayout,
	TransferKindCarrierPayout,
	TransferKindStake,
	TransferKindUnstake,
}

// String implements fmt.Stringer.
func (t TransferKind) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TransferKind.
func (t TransferKind) IsValid() bool {
	for _, candidate := range validTransferKinds {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransferKind converts raw input into a TransferKind.
func ParseTransferKind(value string) (TransferKind, error) {
	for _, candidate := range validTransferKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transfer kind %q", value)
}
