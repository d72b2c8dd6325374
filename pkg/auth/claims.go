package auth

import (
	"github.com/agritrace/agritrace-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	ParticipantID uuid.UUID
	Role          enums.ParticipantRole
	JTI           string
}

// AccessTokenClaims represents the typed JWT issued to participants.
type AccessTokenClaims struct {
	ParticipantID uuid.UUID             `json:"participant_id"`
	Role          enums.ParticipantRole `json:"role"`
	jwt.RegisteredClaims
}
