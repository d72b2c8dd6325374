package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/agritrace/agritrace-backend/pkg/errors"
)

// ParseBatchNumber reads the {batchNumber} path parameter.
func ParseBatchNumber(r *http.Request) (uint64, error) {
	return parseUintParam(r, "batchNumber")
}

// ParseProposalNumber reads the {proposalNumber} path parameter.
func ParseProposalNumber(r *http.Request) (uint64, error) {
	return parseUintParam(r, "proposalNumber")
}

// ParseUUIDParam reads a UUID path parameter.
func ParseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "path parameter must be a UUID").
			WithDetails(map[string]any{"field": key})
	}
	return id, nil
}

// InvalidTimestamp builds the validation error for unparseable RFC 3339
// timestamp fields.
func InvalidTimestamp(field string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "timestamp must be RFC 3339").
		WithDetails(map[string]any{"field": field})
}

func parseUintParam(r *http.Request, key string) (uint64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || value == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "path parameter must be a positive integer").
			WithDetails(map[string]any{"field": key})
	}
	return value, nil
}
