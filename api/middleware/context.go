package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/agritrace/agritrace-backend/pkg/enums"
)

type contextKey string

const (
	ctxParticipantID contextKey = "participant_id"
	ctxRole          contextKey = "actor_role"
)

// ParticipantIDFromContext returns the authenticated caller's id, or uuid.Nil
// when the request is unauthenticated.
func ParticipantIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(ctxParticipantID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// RoleFromContext returns the authenticated caller's role, or "" when absent.
func RoleFromContext(ctx context.Context) enums.ParticipantRole {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(enums.ParticipantRole); ok {
		return v
	}
	return ""
}

// WithParticipant seeds the context with the caller identity. Exposed for
// handler tests.
func WithParticipant(ctx context.Context, participantID uuid.UUID, role enums.ParticipantRole) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxParticipantID, participantID)
	return context.WithValue(ctx, ctxRole, role)
}
