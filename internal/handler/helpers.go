package handler

import (
	"errors"
	"net/http"

	"cadence/internal/domain"
	"cadence/internal/httputil"
)

// handleError converts domain errors to HTTP responses. Every error response
// carries a machine-readable code; seq mismatches additionally carry the
// expected and stored sequence numbers so clients can resync without a
// separate read.
func handleError(w http.ResponseWriter, err error) {
	var seqErr *domain.SeqMismatchError
	if errors.As(err, &seqErr) {
		httputil.RespondErrorWithExtras(w, http.StatusConflict, seqErr.Error(), map[string]interface{}{
			"code":         domain.Code(err),
			"message_id":   seqErr.MessageID,
			"expected_seq": seqErr.ExpectedSeq,
			"actual_seq":   seqErr.ActualSeq,
		})
		return
	}

	status := http.StatusInternalServerError
	detail := "internal server error"

	switch {
	case errors.Is(err, domain.ErrValidation):
		status, detail = http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		status, detail = http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrNotLastMessage),
		errors.Is(err, domain.ErrEditNotAllowed),
		errors.Is(err, domain.ErrConflict):
		status, detail = http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		status, detail = http.StatusUnauthorized, err.Error()
	case errors.Is(err, domain.ErrForbidden):
		status, detail = http.StatusForbidden, err.Error()
	}

	httputil.RespondErrorWithExtras(w, status, detail, map[string]interface{}{
		"code": domain.Code(err),
	})
}
