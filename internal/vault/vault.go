package vault

import "github.com/google/uuid"

// System account ids are derived deterministically so every instance of the
// service agrees on them without coordination. The authority id stands in for
// the participant owner on system-account debits; no participant ever holds it.
var (
	EscrowVaultID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("agritrace:vault:escrow"))
	StakeVaultID  = uuid.NewSHA1(uuid.NameSpaceOID, []byte("agritrace:vault:stake"))
	AuthorityID   = uuid.NewSHA1(uuid.NameSpaceOID, []byte("agritrace:vault:authority"))
)
