package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"gorm.io/gorm"

	"github.com/calderapay/connector/internal/charges"
	"github.com/calderapay/connector/internal/credentials"
	"github.com/calderapay/connector/internal/idempotency"
	pkgerrors "github.com/calderapay/connector/pkg/errors"
	"github.com/calderapay/connector/pkg/logger"
	"github.com/calderapay/connector/pkg/types"
)

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = translateDomainError(err)
	}

	meta := pkgerrors.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	switch typed.Code() {
	case pkgerrors.CodeValidation,
		pkgerrors.CodeNotFound,
		pkgerrors.CodeConflict,
		pkgerrors.CodeStateConflict,
		pkgerrors.CodeIdempotency,
		pkgerrors.CodeNoCredential:
		if m := typed.Message(); m != "" {
			msg = m
		}
	}

	payload := types.ErrorEnvelope{
		Error: types.APIError{
			Code:    string(typed.Code()),
			Message: msg,
		},
	}

	if meta.DetailsAllowed {
		if details := typed.Details(); details != nil {
			payload.Error.Details = details
		}
	}

	if logg != nil {
		dump := pkgerrors.Dump(err)
		ctx = logg.WithFields(ctx, map[string]any{
			"error":         dump.TopMessage,
			"error_code":    dump.Code,
			"error_chain":   dump.Chain,
			"pg_code":       dump.PGCode,
			"pg_detail":     dump.PGDetail,
			"pg_message":    dump.PGMessage,
			"pg_table":      dump.PGTable,
			"pg_column":     dump.PGColumn,
			"pg_constraint": dump.PGConstraint,
		})
		logg.Error(ctx, "request.error", err)
	}

	writeJSON(w, meta.HTTPStatus, payload)
}

// translateDomainError maps well-known domain errors onto API error codes so
// controllers can pass service errors straight through.
func translateDomainError(err error) *pkgerrors.Error {
	var noCredential *credentials.NoActiveCredentialError
	if errors.As(err, &noCredential) {
		return pkgerrors.Wrap(pkgerrors.CodeNoCredential, err, noCredential.Error())
	}

	var illegalCredState *credentials.IllegalStateTransitionError
	if errors.As(err, &illegalCredState) {
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, illegalCredState.Error())
	}

	var illegalTransition *charges.IllegalTransitionError
	if errors.As(err, &illegalTransition) {
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, illegalTransition.Error())
	}

	var lockErr *charges.OptimisticLockError
	if errors.As(err, &lockErr) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, lockErr.Error())
	}

	var idempotencyConflict *idempotency.ConflictError
	if errors.As(err, &idempotencyConflict) {
		return pkgerrors.Wrap(pkgerrors.CodeIdempotency, err, idempotencyConflict.Error())
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "resource not found")
	}

	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
