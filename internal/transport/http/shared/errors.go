package shared

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"perfreview/internal/domain/audit"
	"perfreview/internal/domain/auth"
	"perfreview/internal/domain/review"
	"perfreview/internal/requestctx"
	"perfreview/internal/transport/http/api"
)

// FailService maps a domain error onto the response envelope. Unknown errors are logged and
// reported as 500 without leaking their text.
func FailService(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	requestID := requestctx.GetRequestID(r.Context())

	var validation *review.ValidationError
	var incomplete *review.IncompleteEvaluationError
	var blocked *review.DependencyBlockedError
	switch {
	case errors.As(err, &validation):
		FailValidation(w, requestID, validation.Fields)
	case errors.As(err, &incomplete):
		missing := incomplete.MissingItemIDs
		if missing == nil {
			missing = []string{}
		}
		api.FailWithDetails(w, http.StatusUnprocessableEntity, "incomplete_evaluation", err.Error(), map[string]any{
			"missingItemIds":       missing,
			"missingOverallRating": incomplete.MissingOverallRating,
		}, requestID)
	case errors.As(err, &blocked):
		api.FailWithDetails(w, http.StatusConflict, "dependency_blocked", err.Error(), map[string]any{
			"operation":  blocked.Operation,
			"dependents": blocked.Dependents,
		}, requestID)
	case errors.Is(err, review.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "resource not found", requestID)
	case errors.Is(err, auth.ErrForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", requestID)
	case errors.Is(err, review.ErrDuplicateEvaluation):
		api.Fail(w, http.StatusConflict, "duplicate_evaluation", err.Error(), requestID)
	case errors.Is(err, review.ErrAlreadyArchived):
		api.Fail(w, http.StatusConflict, "already_archived", err.Error(), requestID)
	case errors.Is(err, review.ErrNotArchived):
		api.Fail(w, http.StatusConflict, "not_archived", err.Error(), requestID)
	case errors.Is(err, review.ErrInvalidTransition):
		api.Fail(w, http.StatusConflict, "invalid_transition", err.Error(), requestID)
	case errors.Is(err, audit.ErrInvalidRange):
		FailValidation(w, requestID, []ValidationIssue{{Field: "to", Reason: "must be on or after from"}})
	case errors.Is(err, context.DeadlineExceeded):
		api.Fail(w, http.StatusGatewayTimeout, "timeout", "request timed out", requestID)
	default:
		if logger != nil {
			logger.Error("request failed", zap.Error(err), zap.String("path", r.URL.Path), zap.String("requestId", requestID))
		}
		api.Fail(w, http.StatusInternalServerError, "internal_error", "internal server error", requestID)
	}
}

// FailDecode reports an unreadable request body.
func FailDecode(w http.ResponseWriter, r *http.Request, err error) {
	requestID := requestctx.GetRequestID(r.Context())
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", requestID)
		return
	}
	api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
}
